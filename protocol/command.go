package protocol

import "fmt"

type Command byte

const (
	CmdConnect      Command = 0xFF
	CmdGetStatus    Command = 0xFD
	CmdGetSeed      Command = 0xF8
	CmdUnlock       Command = 0xF7
	CmdSetMta       Command = 0xF6
	CmdUpload       Command = 0xF5
	CmdUser         Command = 0xF1
	CmdProgramStart Command = 0xD2
	CmdProgramClear Command = 0xD1
	CmdProgram      Command = 0xD0
	CmdProgramReset Command = 0xCF
	CmdProgramMax   Command = 0xC9
)

func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "CONNECT"
	case CmdGetStatus:
		return "GET_STATUS"
	case CmdGetSeed:
		return "GET_SEED"
	case CmdUnlock:
		return "UNLOCK"
	case CmdSetMta:
		return "SET_MTA"
	case CmdUpload:
		return "UPLOAD"
	case CmdUser:
		return "USER_CMD"
	case CmdProgramStart:
		return "PROGRAM_START"
	case CmdProgramClear:
		return "PROGRAM_CLEAR"
	case CmdProgram:
		return "PROGRAM"
	case CmdProgramReset:
		return "PROGRAM_RESET"
	case CmdProgramMax:
		return "PROGRAM_MAX"
	default:
		return fmt.Sprintf("CMD(0x%02X)", byte(c))
	}
}

// Packet identifiers that lead every response.
const (
	PIDResponse byte = 0xFF
	PIDError    byte = 0xFE
)

// Sub command of USER_CMD that groups the info table commands, followed by
// the info table command IDs.
const (
	UserCmdInfoTable byte = 0x17

	InfoTableGetInfo  byte = 0x04
	InfoTableDownload byte = 0x06
	InfoTableCheck    byte = 0x08
)

// GET_SEED modes.
const (
	SeedModeFirst    byte = 0x00
	SeedModeContinue byte = 0x01
)

// Resource is the bit mask of protectable resources used by GET_STATUS,
// GET_SEED and UNLOCK.
type Resource uint8

const (
	ResourceCalPag Resource = 0x01
	ResourceDaq    Resource = 0x04
	ResourceStim   Resource = 0x08
	ResourcePgm    Resource = 0x10
)

// Valid reports whether r is exactly one of the protectable resources.
func (r Resource) Valid() bool {
	switch r {
	case ResourceCalPag, ResourceDaq, ResourceStim, ResourcePgm:
		return true
	default:
		return false
	}
}

func (r Resource) String() string {
	switch r {
	case ResourceCalPag:
		return "CAL/PAG"
	case ResourceDaq:
		return "DAQ"
	case ResourceStim:
		return "STIM"
	case ResourcePgm:
		return "PGM"
	default:
		return fmt.Sprintf("RESOURCE(0x%02X)", byte(r))
	}
}

type ErrorCode byte

const (
	ErrCmdSynch        ErrorCode = 0x00
	ErrCmdBusy         ErrorCode = 0x10
	ErrDaqActive       ErrorCode = 0x11
	ErrPgmActive       ErrorCode = 0x12
	ErrCmdUnknown      ErrorCode = 0x20
	ErrCmdSyntax       ErrorCode = 0x21
	ErrOutOfRange      ErrorCode = 0x22
	ErrWriteProtected  ErrorCode = 0x23
	ErrAccessDenied    ErrorCode = 0x24
	ErrAccessLocked    ErrorCode = 0x25
	ErrPageNotValid    ErrorCode = 0x26
	ErrModeNotValid    ErrorCode = 0x27
	ErrSegmentNotValid ErrorCode = 0x28
	ErrSequence        ErrorCode = 0x29
	ErrDaqConfig       ErrorCode = 0x2A
	ErrMemoryOverflow  ErrorCode = 0x30
	ErrGeneric         ErrorCode = 0x31
	ErrVerify          ErrorCode = 0x32
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCmdSynch:
		return "ERR_CMD_SYNCH"
	case ErrCmdBusy:
		return "ERR_CMD_BUSY"
	case ErrDaqActive:
		return "ERR_DAQ_ACTIVE"
	case ErrPgmActive:
		return "ERR_PGM_ACTIVE"
	case ErrCmdUnknown:
		return "ERR_CMD_UNKNOWN"
	case ErrCmdSyntax:
		return "ERR_CMD_SYNTAX"
	case ErrOutOfRange:
		return "ERR_OUT_OF_RANGE"
	case ErrWriteProtected:
		return "ERR_WRITE_PROTECTED"
	case ErrAccessDenied:
		return "ERR_ACCESS_DENIED"
	case ErrAccessLocked:
		return "ERR_ACCESS_LOCKED"
	case ErrPageNotValid:
		return "ERR_PAGE_NOT_VALID"
	case ErrModeNotValid:
		return "ERR_MODE_NOT_VALID"
	case ErrSegmentNotValid:
		return "ERR_SEGMENT_NOT_VALID"
	case ErrSequence:
		return "ERR_SEQUENCE"
	case ErrDaqConfig:
		return "ERR_DAQ_CONFIG"
	case ErrMemoryOverflow:
		return "ERR_MEMORY_OVERFLOW"
	case ErrGeneric:
		return "ERR_GENERIC"
	case ErrVerify:
		return "ERR_VERIFY"
	default:
		return fmt.Sprintf("ERR(0x%02X)", byte(e))
	}
}
