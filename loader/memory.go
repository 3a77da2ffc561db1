package loader

import (
	"go.uber.org/zap"
)

// ClearMemory erases length bytes starting at address.
func (l *Loader) ClearMemory(address uint32, length uint32) error {
	if !l.connected {
		return ErrNotConnected
	}

	if l.programmingEnded {
		return ErrProgrammingEnded
	}

	fail := func(err error) error {
		return &MemoryOperationError{Op: "erase", Address: address, Length: int(length), Err: err}
	}

	if err := l.sendSetMta(address); err != nil {
		return fail(err)
	}

	if err := l.sendProgramClear(length); err != nil {
		return fail(err)
	}

	l.log.Debug("Erased memory", zap.Uint32("address", address), zap.Uint32("length", length))

	return nil
}

// WriteData programs data starting at address. Full pieces go out as
// PROGRAM_MAX, the remainder as PROGRAM.
func (l *Loader) WriteData(address uint32, data []byte) error {
	if !l.connected {
		return ErrNotConnected
	}

	if l.programmingEnded {
		return ErrProgrammingEnded
	}

	fail := func(err error) error {
		return &MemoryOperationError{Op: "program", Address: address, Length: len(data), Err: err}
	}

	if len(data) == 0 {
		return nil
	}

	if err := l.sendSetMta(address); err != nil {
		return fail(err)
	}

	max := l.maxProgCto - 1
	chunks := Chunks(len(data), max)

	for offset, n, ok := chunks.Next(); ok; offset, n, ok = chunks.Next() {
		var err error
		if n < max {
			err = l.sendProgram(data[offset : offset+n])
		} else {
			err = l.sendProgramMax(data[offset : offset+n])
		}

		if err != nil {
			return fail(err)
		}
	}

	return nil
}

// ReadData uploads len(dst) bytes starting at address into dst.
func (l *Loader) ReadData(address uint32, dst []byte) error {
	if !l.connected {
		return ErrNotConnected
	}

	fail := func(err error) error {
		return &MemoryOperationError{Op: "upload", Address: address, Length: len(dst), Err: err}
	}

	if len(dst) == 0 {
		return nil
	}

	if err := l.sendSetMta(address); err != nil {
		return fail(err)
	}

	chunks := Chunks(len(dst), l.maxDto-1)

	for offset, n, ok := chunks.Next(); ok; offset, n, ok = chunks.Next() {
		data, err := l.sendUpload(n)
		if err != nil {
			return fail(err)
		}

		copy(dst[offset:], data)
	}

	return nil
}
