package storage

import "errors"

var (
	ErrAddressOverflow = errors.New("Data extends beyond the 32 bit address space")
	ErrSnapshotInvalid = errors.New("Snapshot is not a valid segment backup")
)

// Segment is a contiguous run of firmware bytes starting at Base.
type Segment struct {
	Base uint32
	Data []byte
}

func (s *Segment) Len() int {
	return len(s.Data)
}

// End returns the first address after the segment.
func (s *Segment) End() uint64 {
	return uint64(s.Base) + uint64(len(s.Data))
}

// Contains reports whether [address, address+n) lies entirely inside s.
func (s *Segment) Contains(address uint32, n int) bool {
	return address >= s.Base && uint64(address)+uint64(n) <= s.End()
}

// Store holds firmware data as an ordered list of non-overlapping segments.
type Store interface {
	SegmentCount() int
	Segment(i int) *Segment

	AddData(address uint32, data []byte) error
	RemoveData(address uint32, length uint32)
	Find(address uint32, n int) *Segment
	Read(address uint32, dst []byte, blank byte)
	Size() int
	Clear()

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
