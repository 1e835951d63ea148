package internode

import "math/bits"

// Unsigned variable-length integers are encoded most-significant-byte-first:
// the count of leading one-bits in the first byte gives the number of
// extension bytes (0..8), the remaining bits of the first byte hold the
// value's high bits, and the extension bytes follow in big-endian order.
// Values below 128 occupy a single byte; the full 64-bit range occupies nine.
//
// This layout is a wire-compatibility boundary with the peer's encoder and is
// deliberately not interchangeable with the LEB128 varints in encoding/binary.

// maxVIntLen is the largest possible encoding, 0xFF plus eight extension bytes.
const maxVIntLen = 9

// ReadUnsignedVInt reads one unsigned varint from b. If the encoding is not
// yet fully buffered it returns ErrInsufficientData and consumes nothing.
// Every fully buffered 1..9 byte sequence decodes to a value, so this reader
// has no malformed case; corruption can only be detected by the layers that
// interpret the decoded values.
func ReadUnsignedVInt(b *Buffer) (uint64, error) {
	first, ok := b.PeekByte(0)
	if !ok {
		return 0, ErrInsufficientData
	}
	extra := bits.LeadingZeros8(^first)
	if b.Readable() < 1+extra {
		return 0, ErrInsufficientData
	}
	v := uint64(first & firstByteValueMask(extra))
	for i := 1; i <= extra; i++ {
		next, _ := b.PeekByte(i)
		v = v<<8 | uint64(next)
	}
	// The full encoding is present, commit the read.
	_ = b.Skip(1 + extra)
	return v, nil
}

// firstByteValueMask isolates the value bits of the first byte once the
// extension-count prefix of extra one-bits (and its terminating zero) is known.
func firstByteValueMask(extra int) byte {
	return byte(0xff >> extra)
}

// ReadLengthPrefixedString reads a string framed by a 2-byte big-endian
// length prefix, as used for parameter keys. Same contract as
// ReadUnsignedVInt: nothing is consumed unless prefix and body are both
// fully buffered.
func ReadLengthPrefixedString(b *Buffer) (string, error) {
	hi, ok := b.PeekByte(0)
	if !ok {
		return "", ErrInsufficientData
	}
	lo, ok := b.PeekByte(1)
	if !ok {
		return "", ErrInsufficientData
	}
	n := int(hi)<<8 | int(lo)
	if b.Readable() < 2+n {
		return "", ErrInsufficientData
	}
	_ = b.Skip(2)
	body, _ := b.ReadBytes(n)
	return string(body), nil
}
