package internode

import (
	"net/netip"
	"time"
)

// MessageHeader accumulates the fixed and variable header fields of one
// in-flight inbound message. Exactly one header is live per connection while
// a message is mid-decode; it is discarded as soon as the message completes.
type MessageHeader struct {
	// From is the remote endpoint this connection is bound to, stamped from
	// the decoder's peer identity, not read off the wire.
	From netip.AddrPort
	// ID is the sender's correlation id for this message.
	ID uint32
	// ConstructionTime is the sender-side creation time, reconstructed from
	// the 32 transmitted bits against the local clock.
	ConstructionTime time.Time
	Verb             Verb
	// ParameterLength is the declared byte length of the parameter section.
	ParameterLength int
	Parameters      map[ParameterType]any
	// PayloadSize is the declared byte length of the payload section.
	PayloadSize int
}

// emptyParameters is the shared sentinel installed when ParameterLength is
// zero, so the common no-parameters case allocates nothing. Read-only.
var emptyParameters = map[ParameterType]any{}

// MessageIn is a fully assembled inbound message as delivered to the
// consumer.
type MessageIn struct {
	From             netip.AddrPort
	Verb             Verb
	Parameters       map[ParameterType]any
	Payload          any
	Version          int
	ConstructionTime time.Time
}

// MessageConsumer receives each fully assembled, non-filtered message along
// with its correlation id. It is invoked exactly once per message, in wire
// order, on the goroutine that ran the decode.
type MessageConsumer func(msg *MessageIn, id uint32)

// BodyDeserializer turns the payload section of a message into its decoded
// form and builds the MessageIn. The buffer holds exactly the declared
// payload bytes and nothing else. Returning (nil, nil) drops the message
// without error: the bytes are consumed, state advances, and the consumer is
// never invoked for that id.
type BodyDeserializer func(buf *Buffer, header *MessageHeader, version int) (*MessageIn, error)

// DeserializeBody is the default BodyDeserializer. Superseded verbs are
// dropped; everything else is delivered with the raw payload bytes, leaving
// verb-specific interpretation to the consumer.
func DeserializeBody(buf *Buffer, header *MessageHeader, version int) (*MessageIn, error) {
	if header.Verb.Superseded() {
		return nil, nil
	}
	view, err := buf.ReadBytes(buf.Readable())
	if err != nil {
		return nil, err
	}
	// The view aliases the connection buffer; the message outlives it.
	payload := append([]byte(nil), view...)
	return &MessageIn{
		From:             header.From,
		Verb:             header.Verb,
		Parameters:       header.Parameters,
		Payload:          payload,
		Version:          version,
		ConstructionTime: header.ConstructionTime,
	}, nil
}

// messagingSink is the process-wide default consumer used by decoders
// constructed without an explicit override. It starts as a no-op so a decoder
// is always safe to run.
var messagingSink MessageConsumer = func(*MessageIn, uint32) {}

// RegisterDefaultConsumer installs the process-wide default consumer. Call it
// once during startup, before any connections are accepted.
func RegisterDefaultConsumer(c MessageConsumer) {
	if c != nil {
		messagingSink = c
	}
}

func defaultConsumer() MessageConsumer {
	return messagingSink
}
