// Package server implements the inbound transport: a TCP listener that reads
// textual request lines of the form "METHOD target PROTOCOL", hands the
// target to the router and writes the framed response back verbatim.
// Method and protocol are ignored by design.
package server

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/retail-proxy/pkg/logging"
	"github.com/Sternrassler/retail-proxy/pkg/router"
)

// maxRequestBytes bounds a single request read.
const maxRequestBytes = 1024

// Handler routes one request target to a response.
type Handler interface {
	Route(ctx context.Context, target string) router.Response
}

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP listen address (default ":9999").
	Addr string
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr: ":9999",
	}
}

// Server accepts connections and serves each one's requests sequentially
// until the peer closes it. Connections are handled one at a time; scaling
// beyond that is a deployment concern, not part of this transport.
type Server struct {
	handler  Handler
	config   Config
	logger   zerolog.Logger
	listener net.Listener
}

// New creates a server over the given handler.
func New(handler Handler, cfg Config) *Server {
	if handler == nil {
		panic("handler cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	return &Server{
		handler: handler,
		config:  cfg,
		logger:  logging.NewLogger("server"),
	}
}

// ListenAndServe listens on the configured address and serves until Close.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from the listener until it is closed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Serving")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.handleConn(ctx, conn)
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handleConn serves requests on one connection until the peer closes it.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug().Str("remote", remote).Msg("Connection opened")

	buf := make([]byte, maxRequestBytes)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			s.logger.Debug().Str("remote", remote).Msg("Connection closed")
			return
		}

		target := parseTarget(buf[:n])
		resp := s.handler.Route(ctx, target)

		if _, err := conn.Write(resp.Bytes()); err != nil {
			s.logger.Warn().Err(err).Str("remote", remote).Msg("Failed to write response")
			return
		}
	}
}

// parseTarget extracts the target from a request line. Only the second
// whitespace-separated token is consumed; a malformed line yields an empty
// target, which the router answers with an empty success envelope.
func parseTarget(data []byte) string {
	line := string(data)
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
