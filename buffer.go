package internode

import (
	"encoding/binary"
	"errors"
)

// ErrInsufficientData signals that a read needs more bytes than are currently
// buffered. It is a control-flow signal, not a failure: the read consumes
// nothing, and the caller retries once more bytes have been appended. It is
// always returned unwrapped so callers may compare it directly.
var ErrInsufficientData = errors.New("insufficient data")

// Buffer is a per-connection accumulation buffer with an explicit read cursor.
// The I/O layer appends raw bytes as they arrive and the decoder consumes them
// through the typed read methods. Reads either consume their bytes in full or
// return ErrInsufficientData with the cursor untouched, so a suspended decode
// resumes exactly where it stopped.
//
// A Buffer is not safe for concurrent use; each connection owns exactly one
// and serializes all access to it.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer returns a buffer reading from p. The buffer takes ownership of p.
func NewBuffer(p []byte) *Buffer {
	return &Buffer{data: p}
}

// Append adds newly arrived bytes behind any unread ones.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Readable returns the number of unread bytes.
func (b *Buffer) Readable() int {
	return len(b.data) - b.pos
}

// PeekByte returns the unread byte at offset off without consuming it.
func (b *Buffer) PeekByte(off int) (byte, bool) {
	if off < 0 || b.pos+off >= len(b.data) {
		return 0, false
	}
	return b.data[b.pos+off], true
}

// ReadUint32 consumes a big-endian 4-byte unsigned integer.
func (b *Buffer) ReadUint32() (uint32, error) {
	if b.Readable() < 4 {
		return 0, ErrInsufficientData
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

// ReadInt32 consumes a big-endian 4-byte signed integer.
func (b *Buffer) ReadInt32() (int32, error) {
	v, err := b.ReadUint32()
	return int32(v), err
}

// ReadBytes consumes exactly n bytes and returns them as a view into the
// buffer. The view is valid only until the next Append or Discard.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("negative read length")
	}
	if b.Readable() < n {
		return nil, ErrInsufficientData
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

// Skip consumes n bytes without returning them.
func (b *Buffer) Skip(n int) error {
	if n < 0 {
		return errors.New("negative skip length")
	}
	if b.Readable() < n {
		return ErrInsufficientData
	}
	b.pos += n
	return nil
}

// Discard drops all consumed bytes, moving any unread bytes to the front.
// The I/O layer calls this after each decode pass to keep per-connection
// memory bounded by the unread remainder.
func (b *Buffer) Discard() {
	if b.pos == 0 {
		return
	}
	n := copy(b.data, b.data[b.pos:])
	b.data = b.data[:n]
	b.pos = 0
}
