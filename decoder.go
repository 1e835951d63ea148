package internode

import (
	"math"
	"net/netip"
	"time"

	"github.com/pkg/errors"
)

// Frame layout constants. The first chunk is read as one atomic unit.
const (
	// protocolMagic opens every frame; anything else means the stream is
	// desynchronized or the peer is not speaking this protocol.
	protocolMagic uint32 = 0x6e6f6465
	// firstChunkLength covers magic, message id and construction time.
	firstChunkLength = 12
	// verbLength is the fixed width of the verb field.
	verbLength = 4
)

// maxSectionLength caps the declared parameter and payload lengths. Larger
// declarations cannot be honest and are treated as corruption rather than
// accumulated.
const maxSectionLength = math.MaxInt32

// decodeState enumerates the stages of assembling one message. States only
// move forward; completing a message returns to stateReadFirstChunk.
type decodeState int

const (
	stateReadFirstChunk decodeState = iota
	stateReadVerb
	stateReadParametersSize
	stateReadParametersData
	stateReadPayloadSize
	stateReadPayload
)

// MessageDecoder incrementally reassembles inbound messages from an
// arbitrarily fragmented byte stream. Each Decode call advances as far as the
// buffered bytes allow and suspends, cursor intact, the moment a field is not
// fully available; the next call resumes at the same state. One decoder
// serves one connection and is driven from that connection's read goroutine
// only.
type MessageDecoder struct {
	peer     netip.AddrPort
	version  int
	consumer MessageConsumer
	body     BodyDeserializer

	state  decodeState
	header *MessageHeader
}

// NewMessageDecoder builds a decoder bound to peer and locked to the given
// messaging version. A nil consumer selects the process-wide default sink.
// Versions below MinimumVersion belong to the legacy decoder variant, so
// construction fails rather than producing a decoder that would misread
// every frame.
func NewMessageDecoder(peer netip.AddrPort, version int, consumer MessageConsumer) (*MessageDecoder, error) {
	if version < MinimumVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, need %d or higher", version, MinimumVersion)
	}
	if consumer == nil {
		consumer = defaultConsumer()
	}
	return &MessageDecoder{
		peer:     peer,
		version:  version,
		consumer: consumer,
		body:     DeserializeBody,
	}, nil
}

// SetBodyDeserializer replaces the payload deserializer. Must be called
// before the first Decode.
func (d *MessageDecoder) SetBodyDeserializer(body BodyDeserializer) {
	if body != nil {
		d.body = body
	}
}

// Decode consumes as many complete fields from buf as are available,
// emitting every fully assembled message to the consumer before looping for
// the next one. A nil return means all buffered complete messages were
// emitted and the decoder is suspended waiting for more bytes. A non-nil
// return means the stream is corrupt; byte accounting can no longer be
// trusted and the connection must be torn down, not retried.
func (d *MessageDecoder) Decode(buf *Buffer) error {
	for {
		switch d.state {
		case stateReadFirstChunk:
			header, err := d.readFirstChunk(buf)
			if err != nil {
				return err
			}
			if header == nil {
				return nil
			}
			header.From = d.peer
			d.header = header
			d.state = stateReadVerb

		case stateReadVerb:
			if buf.Readable() < verbLength {
				return nil
			}
			id, _ := buf.ReadInt32()
			verb, ok := VerbFromID(id)
			if !ok {
				return errors.Errorf("unknown verb id %d from %s", id, d.peer)
			}
			d.header.Verb = verb
			d.state = stateReadParametersSize

		case stateReadParametersSize:
			length, err := ReadUnsignedVInt(buf)
			if err != nil {
				// ErrInsufficientData is the reader's only failure; suspend.
				return nil
			}
			if length > maxSectionLength {
				return errors.Errorf("declared parameter length %d from %s is impossible", length, d.peer)
			}
			d.header.ParameterLength = int(length)
			if length == 0 {
				d.header.Parameters = emptyParameters
			} else {
				d.header.Parameters = make(map[ParameterType]any)
			}
			d.state = stateReadParametersData

		case stateReadParametersData:
			if d.header.ParameterLength > 0 {
				if buf.Readable() < d.header.ParameterLength {
					return nil
				}
				if err := d.readParameters(buf); err != nil {
					return err
				}
			}
			d.state = stateReadPayloadSize

		case stateReadPayloadSize:
			size, err := ReadUnsignedVInt(buf)
			if err != nil {
				// Suspend, same as the parameter length above.
				return nil
			}
			if size > maxSectionLength {
				return errors.Errorf("declared payload size %d from %s is impossible", size, d.peer)
			}
			d.header.PayloadSize = int(size)
			d.state = stateReadPayload

		case stateReadPayload:
			if buf.Readable() < d.header.PayloadSize {
				return nil
			}
			if err := d.readPayload(buf); err != nil {
				return err
			}
			d.state = stateReadFirstChunk
			d.header = nil
		}
	}
}

// readFirstChunk reads the fixed prologue as one unit. It returns (nil, nil)
// when fewer than firstChunkLength bytes are buffered, consuming nothing.
func (d *MessageDecoder) readFirstChunk(buf *Buffer) (*MessageHeader, error) {
	if buf.Readable() < firstChunkLength {
		return nil, nil
	}
	magic, _ := buf.ReadUint32()
	if magic != protocolMagic {
		return nil, errors.Errorf("invalid protocol magic 0x%08x from %s", magic, d.peer)
	}
	id, _ := buf.ReadUint32()
	partialMillis, _ := buf.ReadUint32()
	millis := reconstructTimestampMillis(time.Now().UnixMilli(), partialMillis)
	return &MessageHeader{
		ID:               id,
		ConstructionTime: time.UnixMilli(millis),
	}, nil
}

// readParameters decodes the parameter section. Decode has already verified
// that the declared length is fully buffered, so the section is sliced off as
// one atomic sub-buffer; running short inside it means the declared lengths
// are inconsistent, which is corruption rather than a reason to suspend.
func (d *MessageDecoder) readParameters(buf *Buffer) error {
	section, err := buf.ReadBytes(d.header.ParameterLength)
	if err != nil {
		return err
	}
	sub := NewBuffer(section)
	for sub.Readable() > 0 {
		// The sub-buffer readers can only run short, and inside a declared
		// section that is corruption. A fresh error keeps the
		// ErrInsufficientData sentinel from escaping as a fatal failure.
		key, err := ReadLengthPrefixedString(sub)
		if err != nil {
			return errors.Errorf("truncated parameter key from %s", d.peer)
		}
		pt, ok := ParameterTypeByKey(key)
		if !ok {
			return errors.Errorf("unknown parameter type %q from %s", key, d.peer)
		}
		valueLength, err := ReadUnsignedVInt(sub)
		if err != nil {
			return errors.Errorf("truncated length of parameter %s from %s", pt, d.peer)
		}
		if valueLength > uint64(sub.Readable()) {
			return errors.Errorf("parameter %s from %s declares %d value bytes, %d remain", pt, d.peer, valueLength, sub.Readable())
		}
		value, _ := sub.ReadBytes(int(valueLength))
		decoded, err := pt.decodeValue(value, d.version)
		if err != nil {
			return err
		}
		d.header.Parameters[pt] = decoded
	}
	return nil
}

// readPayload hands the payload section to the body deserializer and emits
// the result. The section is consumed in full regardless of what the
// deserializer does with it, which is what keeps byte accounting exact when a
// message is filtered.
func (d *MessageDecoder) readPayload(buf *Buffer) error {
	section, err := buf.ReadBytes(d.header.PayloadSize)
	if err != nil {
		return err
	}
	msg, err := d.body(NewBuffer(section), d.header, d.version)
	if err != nil {
		return errors.Wrapf(err, "payload of %s message %d from %s", d.header.Verb, d.header.ID, d.peer)
	}
	if msg != nil {
		d.consumer(msg, d.header.ID)
	}
	return nil
}
