package protocol

import "fmt"

// ConnectResponse is the decoded reply to CONNECT.
type ConnectResponse struct {
	Resources Resource
	Order     ByteOrder
	MaxCto    int
	MaxDto    int
}

// StatusResponse is the decoded reply to GET_STATUS.
type StatusResponse struct {
	SessionStatus byte
	Protection    Resource
	ConfigID      uint16
}

// SeedResponse is one part of a seed. Remaining is the number of seed bytes
// the slave still had to send, including the ones in Seed.
type SeedResponse struct {
	Remaining int
	Seed      []byte
}

// ProgramStartResponse is the decoded reply to PROGRAM_START.
type ProgramStartResponse struct {
	CommMode   byte
	MaxProgCto int
}

// InfoTableInfo is the decoded reply to the info table GET_INFO user command.
type InfoTableInfo struct {
	Length  uint16
	Address uint32
}

// ErrorResponse is returned by the parsers when the slave answered with a
// negative response packet.
type ErrorResponse struct {
	Code ErrorCode
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("Slave returned negative response %s", e.Code)
}
