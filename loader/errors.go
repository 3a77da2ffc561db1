package loader

import (
	"errors"
	"fmt"

	"github.com/luma/xcpflash/protocol"
)

var (
	ErrNotConnected     = errors.New("Loader is not connected")
	ErrProgrammingEnded = errors.New("Programming sequence has already ended")

	ErrNoAlgorithm      = errors.New("No seed/key algorithm is configured for the resource")
	ErrStillLocked      = errors.New("Resource is still locked after submitting the key")
	ErrKeyLength        = errors.New("Key length must be between 1 and 255 bytes")
	ErrSeedInconsistent = errors.New("Seed continuation does not match the declared seed length")

	ErrTableNotFound = errors.New("No firmware segment holds the info table")
)

// CommunicationError means the transport failed or no response arrived.
type CommunicationError struct {
	Command protocol.Command
	Err     error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s: communication failed: %v", e.Command, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// ProtocolError means a response arrived but did not have the expected shape.
type ProtocolError struct {
	Command protocol.Command
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DeviceError is a negative response from the slave.
type DeviceError struct {
	Command protocol.Command
	Code    protocol.ErrorCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: slave reported %s", e.Command, e.Code)
}

type UnlockError struct {
	Resource protocol.Resource
	Err      error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("failed to unlock %s: %v", e.Resource, e.Err)
}

func (e *UnlockError) Unwrap() error {
	return e.Err
}

// NegotiationError means the slave declared a size the loader cannot use.
type NegotiationError struct {
	Field string
	Value int
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("slave declared unusable %s of %d", e.Field, e.Value)
}

type MemoryOperationError struct {
	Op      string
	Address uint32
	Length  int
	Err     error
}

func (e *MemoryOperationError) Error() string {
	return fmt.Sprintf("failed to %s %d bytes at 0x%08X: %v", e.Op, e.Length, e.Address, e.Err)
}

func (e *MemoryOperationError) Unwrap() error {
	return e.Err
}

type InfoTableError struct {
	Op  string
	Err error
}

func (e *InfoTableError) Error() string {
	return fmt.Sprintf("info table %s failed: %v", e.Op, e.Err)
}

func (e *InfoTableError) Unwrap() error {
	return e.Err
}
