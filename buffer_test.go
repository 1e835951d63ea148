package internode

import (
	"bytes"
	"testing"
)

func TestBuffer_AppendAndReadable(t *testing.T) {
	buf := NewBuffer(nil)

	if buf.Readable() != 0 {
		t.Errorf("Readable = %d, want 0", buf.Readable())
	}

	buf.Append([]byte{1, 2, 3})
	if buf.Readable() != 3 {
		t.Errorf("Readable = %d, want 3", buf.Readable())
	}

	buf.Append([]byte{4, 5})
	if buf.Readable() != 5 {
		t.Errorf("Readable = %d, want 5", buf.Readable())
	}
}

func TestBuffer_ReadUint32(t *testing.T) {
	buf := NewBuffer([]byte{0x00, 0x00, 0x01, 0x02})

	v, err := buf.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32 failed: %v", err)
	}
	if v != 0x0102 {
		t.Errorf("ReadUint32 = %#x, want 0x0102", v)
	}
	if buf.Readable() != 0 {
		t.Errorf("Readable = %d, want 0", buf.Readable())
	}
}

func TestBuffer_ReadUint32_Insufficient(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3})

	_, err := buf.ReadUint32()
	if err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	// Nothing may be consumed on a short read.
	if buf.Readable() != 3 {
		t.Errorf("Readable = %d, want 3", buf.Readable())
	}
}

func TestBuffer_ReadInt32_Negative(t *testing.T) {
	buf := NewBuffer([]byte{0xff, 0xff, 0xff, 0xfe})

	v, err := buf.ReadInt32()
	if err != nil {
		t.Fatalf("ReadInt32 failed: %v", err)
	}
	if v != -2 {
		t.Errorf("ReadInt32 = %d, want -2", v)
	}
}

func TestBuffer_ReadBytes(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3, 4, 5})

	p, err := buf.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if !bytes.Equal(p, []byte{1, 2, 3}) {
		t.Errorf("ReadBytes = %v, want [1 2 3]", p)
	}
	if buf.Readable() != 2 {
		t.Errorf("Readable = %d, want 2", buf.Readable())
	}

	if _, err = buf.ReadBytes(3); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if buf.Readable() != 2 {
		t.Errorf("Readable = %d after failed read, want 2", buf.Readable())
	}
}

func TestBuffer_ReadBytes_Negative(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3})

	if _, err := buf.ReadBytes(-1); err == nil || err == ErrInsufficientData {
		t.Errorf("expected a hard error for negative length, got %v", err)
	}
}

func TestBuffer_PeekByte(t *testing.T) {
	buf := NewBuffer([]byte{10, 20, 30})
	_, _ = buf.ReadBytes(1)

	b, ok := buf.PeekByte(0)
	if !ok || b != 20 {
		t.Errorf("PeekByte(0) = %d,%v, want 20,true", b, ok)
	}

	b, ok = buf.PeekByte(1)
	if !ok || b != 30 {
		t.Errorf("PeekByte(1) = %d,%v, want 30,true", b, ok)
	}

	if _, ok = buf.PeekByte(2); ok {
		t.Error("PeekByte(2) should be out of range")
	}
	if buf.Readable() != 2 {
		t.Errorf("Readable = %d, peeking must not consume", buf.Readable())
	}
}

func TestBuffer_Skip(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3})

	if err := buf.Skip(2); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if buf.Readable() != 1 {
		t.Errorf("Readable = %d, want 1", buf.Readable())
	}
	if err := buf.Skip(2); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestBuffer_Discard(t *testing.T) {
	buf := NewBuffer([]byte{1, 2, 3, 4})
	_, _ = buf.ReadBytes(3)

	buf.Discard()
	if buf.Readable() != 1 {
		t.Errorf("Readable = %d, want 1", buf.Readable())
	}

	b, ok := buf.PeekByte(0)
	if !ok || b != 4 {
		t.Errorf("PeekByte(0) = %d,%v, want 4,true after Discard", b, ok)
	}

	// Appending after Discard continues the same stream.
	buf.Append([]byte{5})
	p, err := buf.ReadBytes(2)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if !bytes.Equal(p, []byte{4, 5}) {
		t.Errorf("ReadBytes = %v, want [4 5]", p)
	}
}
