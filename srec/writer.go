package srec

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/luma/xcpflash/storage"
)

// RecordSize is the number of data bytes per S3 record written by Write.
const RecordSize = 16

const maxHeaderLength = 64

// Write emits the store as an S0 header, S3 data records and an S7
// termination record.
func Write(w io.Writer, store storage.Store, header string) error {
	bw := bufio.NewWriter(w)

	if len(header) > maxHeaderLength {
		header = header[:maxHeaderLength]
	}

	if _, err := bw.WriteString(record('0', 2, 0, []byte(header))); err != nil {
		return err
	}

	for i := 0; i < store.SegmentCount(); i++ {
		seg := store.Segment(i)

		for ptr := 0; ptr < seg.Len(); ptr += RecordSize {
			end := ptr + RecordSize
			if end > seg.Len() {
				end = seg.Len()
			}

			if _, err := bw.WriteString(record('3', 4, seg.Base+uint32(ptr), seg.Data[ptr:end])); err != nil {
				return err
			}
		}
	}

	if _, err := bw.WriteString(record('7', 4, 0, nil)); err != nil {
		return err
	}

	return bw.Flush()
}

func record(recordType byte, addrLen int, address uint32, data []byte) string {
	raw := make([]byte, 0, 1+addrLen+len(data))
	raw = append(raw, byte(addrLen+len(data)+1))

	for shift := (addrLen - 1) * 8; shift >= 0; shift -= 8 {
		raw = append(raw, byte(address>>uint(shift)))
	}
	raw = append(raw, data...)

	var sum byte
	for _, b := range raw {
		sum += b
	}

	var sb strings.Builder
	sb.WriteByte('S')
	sb.WriteByte(recordType)
	for _, b := range raw {
		fmt.Fprintf(&sb, "%02X", b)
	}
	fmt.Fprintf(&sb, "%02X\n", ^sum)

	return sb.String()
}
