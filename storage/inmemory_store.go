package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrStoreClosed = errors.New("Store has been closed")

type InmemoryStore struct {
	mu       sync.RWMutex
	segments []*Segment

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		segments: make([]*Segment, 0),
		stop:     make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRunning() {
		close(i.stop)
	}

	return nil
}

func (i *InmemoryStore) SegmentCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.segments)
}

// Segment returns the i-th segment in address order, or nil when i is out of
// range.
func (i *InmemoryStore) Segment(idx int) *Segment {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if idx < 0 || idx >= len(i.segments) {
		return nil
	}

	s := *i.segments[idx]
	return &s
}

// AddData stores data at address. Segments that overlap or touch the new range
// are merged into a single segment, where the new data wins on overlap.
func (i *InmemoryStore) AddData(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	end := uint64(address) + uint64(len(data))
	if end > 1<<32 {
		return fmt.Errorf("%w: 0x%08X + %d", ErrAddressOverflow, address, len(data))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return ErrStoreClosed
	}

	lo, hi := uint64(address), end
	first, last := -1, -1

	for idx, seg := range i.segments {
		if uint64(seg.Base) <= end && seg.End() >= uint64(address) {
			if first == -1 {
				first = idx
			}
			last = idx

			if uint64(seg.Base) < lo {
				lo = uint64(seg.Base)
			}
			if seg.End() > hi {
				hi = seg.End()
			}
		}
	}

	// data continuing a single segment grows it in place
	if first != -1 && first == last && i.segments[first].End() == uint64(address) {
		seg := i.segments[first]
		seg.Data = append(seg.Data, data...)
		return nil
	}

	merged := &Segment{Base: uint32(lo), Data: make([]byte, hi-lo)}

	if first == -1 {
		copy(merged.Data, data)
		i.insert(merged)
		return nil
	}

	for _, seg := range i.segments[first : last+1] {
		copy(merged.Data[uint64(seg.Base)-lo:], seg.Data)
	}
	copy(merged.Data[uint64(address)-lo:], data)

	segments := make([]*Segment, 0, len(i.segments)-(last-first))
	segments = append(segments, i.segments[:first]...)
	segments = append(segments, merged)
	i.segments = append(segments, i.segments[last+1:]...)

	return nil
}

func (i *InmemoryStore) insert(seg *Segment) {
	idx := sort.Search(len(i.segments), func(n int) bool {
		return i.segments[n].Base > seg.Base
	})

	i.segments = append(i.segments, nil)
	copy(i.segments[idx+1:], i.segments[idx:])
	i.segments[idx] = seg
}

// RemoveData drops [address, address+length) from the store, splitting any
// segment that only partly overlaps the range.
func (i *InmemoryStore) RemoveData(address uint32, length uint32) {
	if length == 0 {
		return
	}

	lo := uint64(address)
	hi := lo + uint64(length)

	i.mu.Lock()
	defer i.mu.Unlock()

	segments := make([]*Segment, 0, len(i.segments)+1)

	for _, seg := range i.segments {
		if seg.End() <= lo || uint64(seg.Base) >= hi {
			segments = append(segments, seg)
			continue
		}

		if uint64(seg.Base) < lo {
			segments = append(segments, &Segment{
				Base: seg.Base,
				// capped so growing it never writes into the remainder
				Data: seg.Data[:lo-uint64(seg.Base) : lo-uint64(seg.Base)],
			})
		}

		if seg.End() > hi {
			segments = append(segments, &Segment{
				Base: uint32(hi),
				Data: seg.Data[hi-uint64(seg.Base):],
			})
		}
	}

	i.segments = segments
}

// Find returns the segment that holds all of [address, address+n), or nil.
func (i *InmemoryStore) Find(address uint32, n int) *Segment {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, seg := range i.segments {
		if seg.Contains(address, n) {
			s := *seg
			return &s
		}
	}

	return nil
}

// Read copies [address, address+len(dst)) into dst. Bytes not covered by any
// segment are set to blank.
func (i *InmemoryStore) Read(address uint32, dst []byte, blank byte) {
	for n := range dst {
		dst[n] = blank
	}

	lo := uint64(address)
	hi := lo + uint64(len(dst))

	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, seg := range i.segments {
		if seg.End() <= lo || uint64(seg.Base) >= hi {
			continue
		}

		from, to := lo, hi
		if uint64(seg.Base) > from {
			from = uint64(seg.Base)
		}
		if seg.End() < to {
			to = seg.End()
		}

		copy(dst[from-lo:to-lo], seg.Data[from-uint64(seg.Base):to-uint64(seg.Base)])
	}
}

// Size returns the number of bytes held over all segments.
func (i *InmemoryStore) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	total := 0
	for _, seg := range i.segments {
		total += seg.Len()
	}

	return total
}

func (i *InmemoryStore) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.segments = i.segments[:0]
}

// Restore replaces the contents of the store with a snapshot taken by Backup.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return ErrSnapshotInvalid
	}

	restored := NewInmemoryStore()

	var err error
	gjson.GetBytes(values, "segments").ForEach(func(_, seg gjson.Result) bool {
		base := seg.Get("base")
		data, decodeErr := hex.DecodeString(seg.Get("data").String())

		if !base.Exists() || decodeErr != nil {
			err = ErrSnapshotInvalid
			return false
		}

		err = restored.AddData(uint32(base.Uint()), data)
		return err == nil
	})

	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.segments = restored.segments
	return nil
}

// Backup serialises the segments as JSON, with the data hex encoded.
func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	values := []byte(`{"segments":[]}`)

	var err error
	for _, seg := range i.segments {
		values, err = sjson.SetBytes(values, "segments.-1", map[string]interface{}{
			"base": seg.Base,
			"data": hex.EncodeToString(seg.Data),
		})
		if err != nil {
			return nil, err
		}
	}

	return values, nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
