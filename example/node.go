// A minimal receiving node: accepts inter-node connections and logs every
// decoded message. Run it, then point another node (or a test client) at the
// listen address.
package main

import (
	"context"
	"flag"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rzvoncek/internode"
)

// zerologAdapter exposes a zerolog.Logger through the internode.Logger
// interface. Args follow the slog convention of alternating keys and values.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (z zerologAdapter) Debug(msg string, args ...any) { z.emit(z.logger.Debug(), msg, args) }
func (z zerologAdapter) Info(msg string, args ...any)  { z.emit(z.logger.Info(), msg, args) }
func (z zerologAdapter) Warn(msg string, args ...any)  { z.emit(z.logger.Warn(), msg, args) }
func (z zerologAdapter) Error(msg string, args ...any) { z.emit(z.logger.Error(), msg, args) }

func (z zerologAdapter) emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, args[i+1])
	}
	event.Msg(msg)
}

func newLogger(level string) internode.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", "internode-example").Logger().Level(lvl)
	return zerologAdapter{logger: logger}
}

type nodeHandler struct {
	cfg    nodeConfig
	logger internode.Logger
}

func (h *nodeHandler) Handle(conn *net.TCPConn, peer netip.AddrPort) {
	consumer := func(msg *internode.MessageIn, id uint32) {
		payload, _ := msg.Payload.([]byte)
		h.logger.Info("message received",
			"peer", msg.From,
			"verb", msg.Verb.String(),
			"id", id,
			"parameters", len(msg.Parameters),
			"payload_bytes", len(payload))
	}

	newConn, err := internode.NewConn(conn,
		internode.PeerOption(peer),
		internode.MessagingVersionOption(h.cfg.Version),
		internode.ConsumerOption(consumer),
		internode.HeartbeatOption(h.cfg.Heartbeat),
		internode.MessageMaxSize(h.cfg.MaxMessageBytes),
		internode.LoggerOption(h.logger),
		internode.OnErrorOption(func(err error) internode.ErrorAction {
			h.logger.Error("connection error", "peer", peer, "error", err)
			return internode.Disconnect
		}),
	)
	if err != nil {
		h.logger.Error("failed to wrap connection", "peer", peer, "error", err)
		conn.Close()
		return
	}

	_ = newConn.Run(context.Background())
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := loadNodeConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.LogLevel)

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		logger.Error("bad listen address", "listen", cfg.Listen, "error", err)
		return
	}

	server, err := internode.NewServer(addr, internode.ServerLoggerOption(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return
	}

	// Handle graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down node...")
		cancel()
	}()

	logger.Info("node started", "addr", addr.String(), "version", cfg.Version)
	if err := server.Serve(ctx, &nodeHandler{cfg: cfg, logger: logger}); err != nil {
		logger.Error("server error", "error", err)
	}
}
