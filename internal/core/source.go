package core

import (
	"fmt"
	"io"
)

// NamedSource is one input stream of a merge. Name labels errors, stats and
// history; it is usually the file name.
type NamedSource struct {
	Name   string
	Reader io.Reader
}

// countingReader tracks bytes read and fails once more than max bytes have
// come through. A limit of 0 means none.
type countingReader struct {
	r    io.Reader
	n    int64
	max  int64
	name string
}

func newCountingReader(r io.Reader, limit int64, name string) *countingReader {
	return &countingReader{r: r, max: limit, name: name}
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.max > 0 && c.n > c.max {
		return 0, c.tooLarge()
	}
	if c.max > 0 && int64(len(p)) > c.max-c.n+1 {
		p = p[:c.max-c.n+1]
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		return n, c.tooLarge()
	}
	return n, err
}

func (c *countingReader) tooLarge() error {
	return fmt.Errorf("%s: %w (limit %d bytes)", c.name, ErrFileTooLarge, c.max)
}

// BytesRead returns the bytes consumed so far.
func (c *countingReader) BytesRead() int64 { return c.n }
