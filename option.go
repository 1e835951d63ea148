package internode

import (
	"net/netip"
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing. Decode errors
	// ignore this: a desynchronized stream cannot be resumed.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	peer     netip.AddrPort
	version  int
	consumer MessageConsumer
	body     BodyDeserializer
	logger   Logger

	// onError is called when an error occurs. Returns Disconnect to close
	// the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize    int           // size of the send channel buffer
	maxReadLength int           // maximum size of a single message
	heartbeat     time.Duration // interval backing the read/write deadlines
}

// Option is a function that configures connection options.
type Option func(*options)

// PeerOption sets the remote endpoint identity stamped into every decoded
// message. Defaults to the connection's remote address.
func PeerOption(peer netip.AddrPort) Option {
	return func(o *options) {
		o.peer = peer
	}
}

// MessagingVersionOption locks the connection to a negotiated messaging
// version. Defaults to CurrentVersion; versions below MinimumVersion are
// rejected at construction.
func MessagingVersionOption(version int) Option {
	return func(o *options) {
		o.version = version
	}
}

// ConsumerOption overrides the consumer that receives each decoded message.
// Without it, messages go to the process-wide default sink.
func ConsumerOption(consumer MessageConsumer) Option {
	return func(o *options) {
		o.consumer = consumer
	}
}

// BodyDeserializerOption replaces the payload deserializer. The default
// delivers raw payload bytes and drops superseded verbs.
func BodyDeserializerOption(body BodyDeserializer) Option {
	return func(o *options) {
		o.body = body
	}
}

// BufferSizeOption returns an Option that sets the size of the send channel
// buffer. A larger buffer allows more frames to be queued before blocking.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// HeartbeatOption returns an Option that sets the heartbeat interval.
// This determines the read/write deadline timeout (heartbeat * 2).
func HeartbeatOption(heartbeat time.Duration) Option {
	return func(o *options) {
		o.heartbeat = heartbeat
	}
}

// MessageMaxSize returns an Option that sets the maximum message size.
// Messages whose accumulated bytes exceed it terminate the connection with
// ErrMessageTooLarge.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// OnErrorOption returns an Option that sets the error callback, the
// connection-level failure handler. It is invoked for socket errors, where
// its return value decides between Disconnect and Continue, and for decode
// errors, which always disconnect.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
