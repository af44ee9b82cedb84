// Package body accumulates the chunks a BodyCmd stream delivers between
// EndHeaders and EndBody into a single write-once, read-many buffer: in
// memory while the message stays small, spilled to a temp file once it
// doesn't.
package body

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// ErrTooLarge is returned by Write once more bytes than a Buffer's
// sizeLimit have been accumulated across the whole transaction.
var ErrTooLarge = errors.New("body: message exceeds configured size limit")

// New returns a Buffer that keeps up to memLimit bytes in memory before
// spilling to a temp file, and rejects writes past sizeLimit bytes total.
//
// memLimit < 1 forces every Buffer to spill to a temp file immediately.
// sizeLimit <= 0 disables the total-size ceiling.
func New(memLimit int, sizeLimit int64) *Buffer {
	return &Buffer{memLimit: memLimit, sizeLimit: sizeLimit}
}

// Buffer is an io.Writer while a transaction's BODY chunks are arriving
// and an io.ReadSeekCloser once EndBody needs to read them back (possibly
// more than once, e.g. to compute a header diff and then stream a
// ReplaceBody sequence). The switch from writing to reading is one-way:
// once Read or Seek has been called, Write panics.
type Buffer struct {
	memLimit  int
	sizeLimit int64
	written   int64

	mem   bytes.Buffer
	spill *os.File

	memReader *bytes.Reader
	frozen    bool

	// Discard makes Write a no-op (as if writing to io.Discard) while
	// still reporting every byte as consumed.
	Discard bool
}

// Write implements io.Writer. Past memLimit bytes it transparently opens
// a temp file and continues there; past sizeLimit bytes total it returns
// ErrTooLarge alongside however many bytes it did accept.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if b.frozen {
		panic("body: Write after Read/Seek")
	}
	if b.Discard {
		return len(p), nil
	}
	if b.sizeLimit > 0 && b.written+int64(len(p)) > b.sizeLimit {
		if room := b.sizeLimit - b.written; room > 0 {
			n, _ = b.writeBytes(p[:room])
			b.written += int64(n)
		}
		return n, ErrTooLarge
	}
	n, err = b.writeBytes(p)
	b.written += int64(n)
	return n, err
}

// writeBytes appends p to whichever backing store is currently active,
// spilling from memory to a temp file the moment memLimit is crossed.
func (b *Buffer) writeBytes(p []byte) (int, error) {
	if b.spill != nil {
		return b.spill.Write(p)
	}
	n, _ := b.mem.Write(p)
	if b.mem.Len() > b.memLimit {
		f, err := os.CreateTemp("", "milterd-body-*")
		if err != nil {
			return n, err
		}
		if _, err := io.Copy(f, &b.mem); err != nil {
			return n, err
		}
		b.mem.Reset()
		b.spill = f
	}
	return n, nil
}

// freeze transitions the Buffer from write mode to read mode, rewinding
// whichever backing store holds the data. It is idempotent.
func (b *Buffer) freeze() error {
	if b.frozen {
		return nil
	}
	b.frozen = true
	if b.spill != nil {
		_, err := b.spill.Seek(0, io.SeekStart)
		return err
	}
	b.memReader = bytes.NewReader(b.mem.Bytes())
	return nil
}

// Read implements io.Reader. The first call freezes the Buffer against
// further writes.
func (b *Buffer) Read(p []byte) (int, error) {
	if err := b.freeze(); err != nil {
		return 0, err
	}
	if b.spill != nil {
		return b.spill.Read(p)
	}
	return b.memReader.Read(p)
}

// Seek implements io.Seeker. The first call freezes the Buffer against
// further writes, exactly like Read.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	if err := b.freeze(); err != nil {
		return 0, err
	}
	if b.spill != nil {
		return b.spill.Seek(offset, whence)
	}
	return b.memReader.Seek(offset, whence)
}

// Close implements io.Closer. If the Buffer spilled to a temp file, the
// file is closed and removed; a removal failure because the file is
// already gone is not reported as an error.
func (b *Buffer) Close() error {
	if b.spill == nil {
		b.memReader = nil
		b.mem.Reset()
		return nil
	}
	closeErr := b.spill.Close()
	removeErr := os.Remove(b.spill.Name())
	if closeErr != nil {
		return closeErr
	}
	if os.IsNotExist(removeErr) {
		return nil
	}
	return removeErr
}
