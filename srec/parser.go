// Package srec reads and writes Motorola S-record firmware files.
package srec

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luma/xcpflash/storage"
)

var (
	ErrNotSRecord   = errors.New("Line is not an S-record")
	ErrRecordLength = errors.New("S-record byte count does not match the line length")
	ErrChecksum     = errors.New("S-record checksum mismatch")
	ErrNoData       = errors.New("File holds no S1, S2 or S3 data records")
)

// SyntaxError reports the line of the file that failed to parse.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("srec line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// addressLength returns the size of the address field of a record type, and
// whether the record carries firmware data.
func addressLength(recordType byte) (int, bool, error) {
	switch recordType {
	case '0', '1', '5', '9':
		return 2, recordType == '1', nil
	case '2', '6', '8':
		return 3, recordType == '2', nil
	case '3', '7':
		return 4, recordType == '3', nil
	default:
		return 0, false, fmt.Errorf("%w: unknown record type S%c", ErrNotSRecord, recordType)
	}
}

// LoadFile parses the S-record file at path into store.
func LoadFile(path string, store storage.Store) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open firmware file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f, store, 0)
}

// Parse reads S-records from r and adds the data records to store. offset is
// added to every data record address.
func Parse(r io.Reader, store storage.Store, offset uint32) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	records := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		address, data, isData, err := parseLine(line)
		if err != nil {
			return &SyntaxError{Line: lineNum, Err: err}
		}

		if !isData {
			continue
		}

		if err := store.AddData(address+offset, data); err != nil {
			return &SyntaxError{Line: lineNum, Err: err}
		}
		records++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read firmware file: %w", err)
	}

	if records == 0 {
		return ErrNoData
	}

	return nil
}

func parseLine(line string) (address uint32, data []byte, isData bool, err error) {
	if len(line) < 4 || line[0] != 'S' {
		return 0, nil, false, ErrNotSRecord
	}

	addrLen, isData, err := addressLength(line[1])
	if err != nil {
		return 0, nil, false, err
	}

	raw, err := hex.DecodeString(line[2:])
	if err != nil {
		return 0, nil, false, fmt.Errorf("%w: %v", ErrNotSRecord, err)
	}

	// raw holds the byte count, the address, the data and the checksum
	count := int(raw[0])
	if count != len(raw)-1 || count < addrLen+1 {
		return 0, nil, false, ErrRecordLength
	}

	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}

	if ^sum != raw[len(raw)-1] {
		return 0, nil, false, ErrChecksum
	}

	for _, b := range raw[1 : 1+addrLen] {
		address = address<<8 | uint32(b)
	}

	return address, raw[1+addrLen : len(raw)-1], isData, nil
}
