package store

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var errSizeMismatch = errors.New("stream length does not match declared size")

// ctxReader fails the copy as soon as ctx is done, so an aborted request
// stops a long write at the next buffer boundary.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// exactReader enforces that the stream carries exactly want bytes.
// A short stream yields io.ErrUnexpectedEOF; a long one yields errSizeMismatch.
// want < 0 disables the check.
type exactReader struct {
	r    io.Reader
	want int64
	n    int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.want < 0 {
		return e.r.Read(p)
	}
	if e.n >= e.want {
		// Probe for trailing bytes the client did not declare.
		var one [1]byte
		if k, _ := io.ReadFull(e.r, one[:]); k > 0 {
			return 0, fmt.Errorf("%w: more than %d bytes", errSizeMismatch, e.want)
		}
		return 0, io.EOF
	}
	if rem := e.want - e.n; int64(len(p)) > rem {
		p = p[:rem]
	}
	k, err := e.r.Read(p)
	e.n += int64(k)
	if err == io.EOF && e.n < e.want {
		return k, fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, e.n, e.want)
	}
	if err == io.EOF {
		err = nil
	}
	return k, err
}
