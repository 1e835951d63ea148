package internode

import (
	"encoding/binary"
	"math/bits"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// MessageOut is an outbound message. Encode produces the exact frame layout
// the inbound decoder consumes, so the two sides share one definition of the
// wire format.
type MessageOut struct {
	ID         uint32
	Verb       Verb
	Parameters map[ParameterType]any
	Payload    []byte
	// ConstructionTime defaults to the encoding time when zero.
	ConstructionTime time.Time
}

// Encode serializes the message for the given messaging version.
func (m *MessageOut) Encode(version int) ([]byte, error) {
	if version < MinimumVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "encode for version %d, need %d or higher", version, MinimumVersion)
	}
	params, err := encodeParameters(m.Parameters, version)
	if err != nil {
		return nil, err
	}
	ct := m.ConstructionTime
	if ct.IsZero() {
		ct = time.Now()
	}

	out := make([]byte, 0, firstChunkLength+verbLength+2*maxVIntLen+len(params)+len(m.Payload))
	out = binary.BigEndian.AppendUint32(out, protocolMagic)
	out = binary.BigEndian.AppendUint32(out, m.ID)
	out = binary.BigEndian.AppendUint32(out, uint32(ct.UnixMilli()))
	out = binary.BigEndian.AppendUint32(out, uint32(m.Verb))
	out = AppendUnsignedVInt(out, uint64(len(params)))
	out = append(out, params...)
	out = AppendUnsignedVInt(out, uint64(len(m.Payload)))
	out = append(out, m.Payload...)
	return out, nil
}

// encodeParameters serializes the parameter section. Entries are written in
// key order; receivers do not care, but deterministic output keeps frames
// comparable.
func encodeParameters(params map[ParameterType]any, version int) ([]byte, error) {
	if len(params) == 0 {
		return nil, nil
	}
	types := make([]ParameterType, 0, len(params))
	for pt := range params {
		types = append(types, pt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Key() < types[j].Key() })

	var out []byte
	for _, pt := range types {
		var err error
		out, err = AppendLengthPrefixedString(out, pt.Key())
		if err != nil {
			return nil, err
		}
		value, err := pt.encodeValue(nil, params[pt], version)
		if err != nil {
			return nil, err
		}
		out = AppendUnsignedVInt(out, uint64(len(value)))
		out = append(out, value...)
	}
	return out, nil
}

// UnsignedVIntLen returns the encoded size of v in bytes, 1 through 9.
func UnsignedVIntLen(v uint64) int {
	magnitude := bits.LeadingZeros64(v | 1)
	return (639 - magnitude*9) / 64
}

// AppendUnsignedVInt appends the varint encoding of v to dst.
func AppendUnsignedVInt(dst []byte, v uint64) []byte {
	size := UnsignedVIntLen(v)
	if size == 1 {
		return append(dst, byte(v))
	}
	var tmp [maxVIntLen]byte
	extra := size - 1
	if extra == 8 {
		tmp[0] = 0xff
		binary.BigEndian.PutUint64(tmp[1:], v)
		return append(dst, tmp[:]...)
	}
	for i := extra; i >= 1; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	tmp[0] = byte(v) | extensionCountBits(extra)
	return append(dst, tmp[:size]...)
}

// extensionCountBits builds the leading-ones prefix announcing extra
// extension bytes.
func extensionCountBits(extra int) byte {
	return byte(0xff &^ (0xff >> extra))
}

// AppendLengthPrefixedString appends s framed by its 2-byte big-endian
// length.
func AppendLengthPrefixedString(dst []byte, s string) ([]byte, error) {
	if len(s) > 0xffff {
		return nil, errors.Errorf("string of %d bytes exceeds the 2-byte length prefix", len(s))
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}
