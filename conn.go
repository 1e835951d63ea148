// Package internode implements the inbound half of the node-to-node wire
// protocol of a distributed data store: an incremental frame decoder that
// reassembles messages from an arbitrarily fragmented TCP stream, plus the
// per-connection I/O plumbing that feeds it.
package internode

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrMessageTooLarge is returned when the unread accumulation for a
	// single message exceeds the configured maximum.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)

// Default configuration values.
const (
	// defaultBufferSize is the default size of the send channel buffer.
	defaultBufferSize = 1
	// defaultMaxMessageLength is the default maximum size of a single
	// message (1MB).
	defaultMaxMessageLength = 1024 * 1024
	// readChunkSize is how much is pulled off the socket per read.
	readChunkSize = 4096
)

// Conn owns one node-to-node connection: a read loop that accumulates raw
// bytes and drives the message decoder, and a write loop that drains queued
// outbound frames. The accumulation buffer and decoder are touched only from
// the read loop, so no locking is needed around decoding.
type Conn struct {
	rawConn *net.TCPConn
	decoder *MessageDecoder
	recvBuf *Buffer
	logger  Logger

	opts options

	sendMsg chan []byte
	closed  atomic.Bool
	cancel  context.CancelFunc
}

// NewConn wraps an established TCP connection. The peer identity defaults to
// the connection's remote address and the messaging version to
// CurrentVersion; both can be overridden through options. Construction fails
// for versions below MinimumVersion.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	peer := opts.peer
	if !peer.IsValid() {
		if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			peer = addr.AddrPort()
		}
	}

	decoder, err := NewMessageDecoder(peer, opts.version, opts.consumer)
	if err != nil {
		return nil, err
	}
	if opts.body != nil {
		decoder.SetBodyDeserializer(opts.body)
	}

	return &Conn{
		rawConn: conn,
		decoder: decoder,
		recvBuf: NewBuffer(nil),
		logger:  opts.logger,
		opts:    opts,
		sendMsg: make(chan []byte, opts.bufferSize),
	}, nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxMessageLength
	}

	if opts.heartbeat <= 0 {
		opts.heartbeat = time.Second * 30
	}

	if opts.version == 0 {
		opts.version = CurrentVersion
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// Run starts the connection's read and write loops and blocks until an error
// occurs or the context is canceled. The connection is closed when Run
// returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "peer", c.Addr())
	c.logger.Debug("connection options", "peer", c.Addr(),
		"version", c.opts.version,
		"buffer_size", c.opts.bufferSize,
		"max_read_length", c.opts.maxReadLength,
		"heartbeat", c.opts.heartbeat)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	// Unblock a pending Read as soon as the context ends, instead of waiting
	// out the heartbeat deadline.
	go func() {
		<-child.Done()
		_ = c.rawConn.SetReadDeadline(time.Now())
	}()

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "peer", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "peer", c.Addr())
	}

	return err
}

// Close gracefully closes the connection. Safe to call multiple times. Any
// partially assembled message is discarded; it was never exposed to the
// consumer.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// ErrBufferFull is returned when the send buffer is full and cannot accept
// more messages. Callers that cannot tolerate loss should use WriteBlocking
// or WriteTimeout instead.
var ErrBufferFull = errors.New("send buffer full")

// Write encodes and queues a message without blocking (fire-and-forget).
// Returns ErrBufferFull if the send buffer has no room; the message is then
// NOT queued.
func (c *Conn) Write(message *MessageOut) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := message.Encode(c.opts.version)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking encodes and queues a message, blocking until the frame is
// queued or the context is canceled.
func (c *Conn) WriteBlocking(ctx context.Context, message *MessageOut) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := message.Encode(c.opts.version)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout encodes and queues a message, waiting up to timeout for
// buffer space. Returns ErrBufferFull if the timeout expires first.
func (c *Conn) WriteTimeout(message *MessageOut, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	frame, err := message.Encode(c.opts.version)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-time.After(timeout):
		return ErrBufferFull
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// Peer returns the remote endpoint identity stamped into decoded messages.
func (c *Conn) Peer() netip.AddrPort {
	return c.decoder.peer
}

// readLoop pulls raw bytes off the socket, appends them to the accumulation
// buffer and invokes the decoder. Socket errors consult onError and may be
// suppressed; decode errors never are, because a framing failure
// desynchronizes every subsequent message, so the connection is torn down
// after the handler has been informed.
func (c *Conn) readLoop(ctx context.Context) error {
	scratch := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))

			n, err := c.rawConn.Read(scratch)
			if n > 0 {
				c.recvBuf.Append(scratch[:n])

				if derr := c.decoder.Decode(c.recvBuf); derr != nil {
					c.logger.Debug("decode error", "peer", c.Addr(), "error", derr)
					c.opts.onError(derr)
					return derr
				}
				c.recvBuf.Discard()

				if c.recvBuf.Readable() > c.opts.maxReadLength {
					c.opts.onError(ErrMessageTooLarge)
					return ErrMessageTooLarge
				}
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("read error", "peer", c.Addr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
				continue
			}
		}
	}
}

// writeLoop continuously sends queued frames to the connection.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-c.sendMsg:
			if err := c.write(frame); err != nil {
				return err
			}
		}
	}
}

// write sends one frame with a deadline. If an error occurs and onError
// returns Continue, the error is suppressed and writing continues.
func (c *Conn) write(frame []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	_, err := c.rawConn.Write(frame)

	if err != nil {
		c.logger.Debug("write error", "peer", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP
// connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
