package loader

// Chunker splits a transfer into packet sized pieces. The first piece takes
// the remainder of the division so every later piece has the maximum size.
type Chunker struct {
	total  int
	max    int
	offset int
}

// Chunks returns a Chunker over total bytes in pieces of at most max bytes.
func Chunks(total, max int) *Chunker {
	return &Chunker{total: total, max: max}
}

// Next returns the offset and length of the next piece, and false once the
// transfer is complete.
func (c *Chunker) Next() (offset, n int, ok bool) {
	remaining := c.total - c.offset
	if remaining <= 0 || c.max <= 0 {
		return 0, 0, false
	}

	n = remaining % c.max
	if n == 0 {
		n = c.max
	}

	offset = c.offset
	c.offset += n

	return offset, n, true
}
