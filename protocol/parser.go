package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrResponseEmpty  = errors.New("Response is empty")
	ErrResponsePID    = errors.New("Response does not start with the positive response PID")
	ErrResponseLength = errors.New("Response has an unexpected length")
)

// checkResponse validates the PID of a response and that its length lies
// within [minLen, maxLen]. A negative response becomes an *ErrorResponse.
func checkResponse(resp Packet, minLen, maxLen int) error {
	if len(resp) == 0 {
		return ErrResponseEmpty
	}

	if resp[0] == PIDError && len(resp) >= 2 {
		return &ErrorResponse{Code: ErrorCode(resp[1])}
	}

	if resp[0] != PIDResponse {
		return fmt.Errorf("%w: got 0x%02X", ErrResponsePID, resp[0])
	}

	if len(resp) < minLen || len(resp) > maxLen {
		if minLen == maxLen {
			return fmt.Errorf("%w: got %d bytes, want %d", ErrResponseLength, len(resp), minLen)
		}

		return fmt.Errorf("%w: got %d bytes, want %d to %d", ErrResponseLength, len(resp), minLen, maxLen)
	}

	return nil
}

// ParseAck validates the single byte acknowledgement returned by SET_MTA,
// PROGRAM, PROGRAM_MAX, PROGRAM_CLEAR and PROGRAM_RESET.
func ParseAck(resp Packet) error {
	return checkResponse(resp, 1, 1)
}

// ParseConnect decodes a CONNECT response. The sizes are reported as the
// slave declared them, negotiating them is up to the caller.
func ParseConnect(resp Packet) (*ConnectResponse, error) {
	if err := checkResponse(resp, 8, 8); err != nil {
		return nil, err
	}

	order := byteOrderFromCommMode(resp[2])

	return &ConnectResponse{
		Resources: Resource(resp[1]),
		Order:     order,
		MaxCto:    int(resp[3]),
		MaxDto:    int(Decode16(resp[4:6], order)),
	}, nil
}

// IsConnectResponse reports whether resp looks like a late CONNECT reply.
// Some slaves answer a CONNECT retry after the master already gave up on it.
func IsConnectResponse(resp Packet) bool {
	return len(resp) == 8 && resp[0] == PIDResponse
}

func ParseStatus(resp Packet, order ByteOrder) (*StatusResponse, error) {
	if err := checkResponse(resp, 6, 6); err != nil {
		return nil, err
	}

	return &StatusResponse{
		SessionStatus: resp[1],
		Protection:    Resource(resp[2]),
		ConfigID:      Decode16(resp[4:6], order),
	}, nil
}

// ParseSeed decodes a GET_SEED response. maxDto bounds both the response
// length and the number of seed bytes a single response can carry. A
// remaining length of zero, meaning the resource is unprotected, may come
// without any seed bytes.
func ParseSeed(resp Packet, maxDto int) (*SeedResponse, error) {
	if err := checkResponse(resp, 2, maxDto); err != nil {
		return nil, err
	}

	remaining := int(resp[1])
	n := remaining
	if n > maxDto-2 {
		n = maxDto - 2
	}

	if len(resp)-2 < n {
		return nil, fmt.Errorf("%w: seed part holds %d bytes, want %d", ErrResponseLength, len(resp)-2, n)
	}

	seed := make([]byte, n)
	copy(seed, resp[2:2+n])

	return &SeedResponse{Remaining: remaining, Seed: seed}, nil
}

// ParseUnlock returns the protection status the slave reports after
// accepting a key chunk.
func ParseUnlock(resp Packet) (Resource, error) {
	if err := checkResponse(resp, 2, 2); err != nil {
		return 0, err
	}

	return Resource(resp[1]), nil
}

// ParseUpload returns the n data bytes carried by an UPLOAD response.
func ParseUpload(resp Packet, n int) ([]byte, error) {
	if err := checkResponse(resp, 1+n, PacketSizeMax); err != nil {
		return nil, err
	}

	return resp[1 : 1+n], nil
}

func ParseProgramStart(resp Packet) (*ProgramStartResponse, error) {
	if err := checkResponse(resp, 7, 7); err != nil {
		return nil, err
	}

	return &ProgramStartResponse{
		CommMode:   resp[2],
		MaxProgCto: int(resp[3]),
	}, nil
}

func ParseInfoTableInfo(resp Packet, order ByteOrder) (*InfoTableInfo, error) {
	if err := checkResponse(resp, 8, 8); err != nil {
		return nil, err
	}

	return &InfoTableInfo{
		Length:  Decode16(resp[2:4], order),
		Address: Decode32(resp[4:8], order),
	}, nil
}

func ParseInfoTableDownload(resp Packet) error {
	return checkResponse(resp, 2, 2)
}

// ParseInfoTableCheck returns the slave's verdict on the downloaded table.
func ParseInfoTableCheck(resp Packet) (bool, error) {
	if err := checkResponse(resp, 3, 3); err != nil {
		return false, err
	}

	return resp[2] == 1, nil
}
