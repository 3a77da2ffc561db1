package protocol

// PacketSizeMax is the largest packet, in bytes, that any transport is able
// to carry in either direction.
const PacketSizeMax = 255

// Packet is a single XCP command or response, without any transport framing.
// A zero length request packet asks the transport to only receive.
type Packet []byte

// Command returns the command code of a request packet.
func (p Packet) Command() Command {
	if len(p) == 0 {
		return 0
	}

	return Command(p[0])
}

func ConnectRequest(mode byte) Packet {
	return Packet{byte(CmdConnect), mode}
}

func GetStatusRequest() Packet {
	return Packet{byte(CmdGetStatus)}
}

func GetSeedRequest(mode byte, resource Resource) Packet {
	return Packet{byte(CmdGetSeed), mode, byte(resource)}
}

// UnlockRequest carries one chunk of the key. remaining is the key length
// that is still outstanding including this chunk.
func UnlockRequest(remaining byte, chunk []byte) Packet {
	p := make(Packet, 0, 2+len(chunk))
	p = append(p, byte(CmdUnlock), remaining)
	return append(p, chunk...)
}

func SetMtaRequest(address uint32, order ByteOrder) Packet {
	addr := Encode32(address, order)
	return Packet{byte(CmdSetMta), 0, 0, 0, addr[0], addr[1], addr[2], addr[3]}
}

func UploadRequest(n byte) Packet {
	return Packet{byte(CmdUpload), n}
}

func ProgramStartRequest() Packet {
	return Packet{byte(CmdProgramStart)}
}

func ProgramClearRequest(length uint32, order ByteOrder) Packet {
	l := Encode32(length, order)
	return Packet{byte(CmdProgramClear), 0, 0, 0, l[0], l[1], l[2], l[3]}
}

// ProgramRequest carries up to maxProgCto-2 bytes. An empty payload signals
// the end of a programming sequence.
func ProgramRequest(data []byte) Packet {
	p := make(Packet, 0, 2+len(data))
	p = append(p, byte(CmdProgram), byte(len(data)))
	return append(p, data...)
}

// ProgramMaxRequest carries exactly maxProgCto-1 bytes and no length field.
func ProgramMaxRequest(data []byte) Packet {
	p := make(Packet, 0, 1+len(data))
	p = append(p, byte(CmdProgramMax))
	return append(p, data...)
}

func ProgramResetRequest() Packet {
	return Packet{byte(CmdProgramReset)}
}

func InfoTableGetInfoRequest() Packet {
	return Packet{byte(CmdUser), UserCmdInfoTable, InfoTableGetInfo}
}

func InfoTableDownloadRequest(chunk []byte) Packet {
	p := make(Packet, 0, 4+len(chunk))
	p = append(p, byte(CmdUser), UserCmdInfoTable, InfoTableDownload, byte(len(chunk)))
	return append(p, chunk...)
}

func InfoTableCheckRequest() Packet {
	return Packet{byte(CmdUser), UserCmdInfoTable, InfoTableCheck}
}
