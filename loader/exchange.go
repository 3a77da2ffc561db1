package loader

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/transport"
)

// exchange sends a single request and returns the raw response.
func (l *Loader) exchange(cmd protocol.Command, req protocol.Packet, timeout time.Duration) (protocol.Packet, error) {
	l.log.Debug("Sending command", zap.Stringer("cmd", cmd), zap.Int("len", len(req)))

	resp, err := l.transport.SendPacket(req, timeout)
	if err != nil {
		return nil, &CommunicationError{Command: cmd, Err: err}
	}

	return resp, nil
}

// classify turns a parser error into a DeviceError or ProtocolError.
func classify(cmd protocol.Command, err error) error {
	if err == nil {
		return nil
	}

	var negative *protocol.ErrorResponse
	if errors.As(err, &negative) {
		return &DeviceError{Command: cmd, Code: negative.Code}
	}

	return &ProtocolError{Command: cmd, Err: err}
}

func (l *Loader) sendConnect() (*protocol.ConnectResponse, error) {
	resp, err := l.exchange(protocol.CmdConnect, protocol.ConnectRequest(l.settings.ConnectMode), l.settings.T6)
	if err != nil {
		return nil, err
	}

	info, err := protocol.ParseConnect(resp)
	return info, classify(protocol.CmdConnect, err)
}

func (l *Loader) sendGetStatus() (*protocol.StatusResponse, error) {
	resp, err := l.exchange(protocol.CmdGetStatus, protocol.GetStatusRequest(), l.settings.T1)
	if err != nil {
		return nil, err
	}

	// A slow slave may still answer one of the CONNECT retries. Throw that
	// answer away and wait for the real status.
	if protocol.IsConnectResponse(resp) {
		l.log.Warn("Discarding late CONNECT response")

		resp, err = l.exchange(protocol.CmdGetStatus, nil, l.settings.T6)
		if err != nil {
			return nil, err
		}
	}

	status, err := protocol.ParseStatus(resp, l.order)
	return status, classify(protocol.CmdGetStatus, err)
}

func (l *Loader) sendGetSeed(mode byte, resource protocol.Resource) (*protocol.SeedResponse, error) {
	resp, err := l.exchange(protocol.CmdGetSeed, protocol.GetSeedRequest(mode, resource), l.settings.T1)
	if err != nil {
		return nil, err
	}

	seed, err := protocol.ParseSeed(resp, l.maxDto)
	return seed, classify(protocol.CmdGetSeed, err)
}

func (l *Loader) sendUnlock(remaining byte, chunk []byte) (protocol.Resource, error) {
	resp, err := l.exchange(protocol.CmdUnlock, protocol.UnlockRequest(remaining, chunk), l.settings.T1)
	if err != nil {
		return 0, err
	}

	protection, err := protocol.ParseUnlock(resp)
	return protection, classify(protocol.CmdUnlock, err)
}

func (l *Loader) sendSetMta(address uint32) error {
	resp, err := l.exchange(protocol.CmdSetMta, protocol.SetMtaRequest(address, l.order), l.settings.T1)
	if err != nil {
		return err
	}

	return classify(protocol.CmdSetMta, protocol.ParseAck(resp))
}

func (l *Loader) sendUpload(n int) ([]byte, error) {
	resp, err := l.exchange(protocol.CmdUpload, protocol.UploadRequest(byte(n)), l.settings.T1)
	if err != nil {
		return nil, err
	}

	data, err := protocol.ParseUpload(resp, n)
	return data, classify(protocol.CmdUpload, err)
}

func (l *Loader) sendProgramStart() (*protocol.ProgramStartResponse, error) {
	resp, err := l.exchange(protocol.CmdProgramStart, protocol.ProgramStartRequest(), l.settings.T3)
	if err != nil {
		return nil, err
	}

	info, err := protocol.ParseProgramStart(resp)
	return info, classify(protocol.CmdProgramStart, err)
}

func (l *Loader) sendProgramClear(length uint32) error {
	resp, err := l.exchange(protocol.CmdProgramClear, protocol.ProgramClearRequest(length, l.order), l.settings.T4)
	if err != nil {
		return err
	}

	return classify(protocol.CmdProgramClear, protocol.ParseAck(resp))
}

func (l *Loader) sendProgram(data []byte) error {
	resp, err := l.exchange(protocol.CmdProgram, protocol.ProgramRequest(data), l.settings.T2)
	if err != nil {
		return err
	}

	return classify(protocol.CmdProgram, protocol.ParseAck(resp))
}

func (l *Loader) sendProgramMax(data []byte) error {
	resp, err := l.exchange(protocol.CmdProgramMax, protocol.ProgramMaxRequest(data), l.settings.T2)
	if err != nil {
		return err
	}

	return classify(protocol.CmdProgramMax, protocol.ParseAck(resp))
}

// sendProgramReset treats a missing response as success, the slave is allowed
// to reset before it answers.
func (l *Loader) sendProgramReset() error {
	resp, err := l.transport.SendPacket(protocol.ProgramResetRequest(), l.settings.T5)
	if err != nil {
		if transport.IsNoResponse(err) {
			l.log.Debug("No response to PROGRAM_RESET, slave has reset")
			return nil
		}

		return &CommunicationError{Command: protocol.CmdProgramReset, Err: err}
	}

	return classify(protocol.CmdProgramReset, protocol.ParseAck(resp))
}

func (l *Loader) sendInfoTableGetInfo() (*protocol.InfoTableInfo, error) {
	resp, err := l.exchange(protocol.CmdUser, protocol.InfoTableGetInfoRequest(), l.settings.T1)
	if err != nil {
		return nil, err
	}

	info, err := protocol.ParseInfoTableInfo(resp, l.order)
	return info, classify(protocol.CmdUser, err)
}

func (l *Loader) sendInfoTableDownload(chunk []byte) error {
	resp, err := l.exchange(protocol.CmdUser, protocol.InfoTableDownloadRequest(chunk), l.settings.T1)
	if err != nil {
		return err
	}

	return classify(protocol.CmdUser, protocol.ParseInfoTableDownload(resp))
}

func (l *Loader) sendInfoTableCheck() (bool, error) {
	resp, err := l.exchange(protocol.CmdUser, protocol.InfoTableCheckRequest(), l.settings.T1)
	if err != nil {
		return false, err
	}

	okay, err := protocol.ParseInfoTableCheck(resp)
	return okay, classify(protocol.CmdUser, err)
}
