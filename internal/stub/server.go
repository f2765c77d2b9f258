package stub

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/appctl/internal/auth"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrTLSRequired = errors.New("stub: tls config required")

// Handler serves one method. A returned error is sent as a fault.
type Handler func(req protocol.ServerRequest) (any, error)

// Config configures a stub server.
type Config struct {
	Addr      string
	TLS       *tls.Config
	Validator auth.Validator
	Logger    *zerolog.Logger
	// IdleTimeout bounds the wait for a request line.
	IdleTimeout time.Duration
}

// Server is a TLS controller stand-in.
type Server struct {
	ln        net.Listener
	validator auth.Validator
	logger    zerolog.Logger
	idle      time.Duration

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int

	accepted atomic.Int64
	wg       sync.WaitGroup
}

// Listen binds the server; call Serve to start accepting.
func Listen(cfg Config) (*Server, error) {
	if cfg.TLS == nil {
		return nil, ErrTLSRequired
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := tls.Listen("tcp", addr, cfg.TLS)
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Second
	}
	return &Server{
		ln:        ln,
		validator: cfg.Validator,
		logger:    logger.With().Str("component", "stub").Logger(),
		idle:      idle,
		handlers:  make(map[string]Handler),
		calls:     make(map[string]int),
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls returns how many requests for method reached dispatch.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Accepted returns the number of accepted connections.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("addr", s.Addr()).Msg("stub controller listening")
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.accepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops the listener.
func (s *Server) Close() error {
	return s.ln.Close()
}

// handleConn serves exactly one request per connection.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	_ = conn.SetReadDeadline(time.Now().Add(s.idle))
	req, err := protocol.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Warn().Str("remote", remote).Err(err).Msg("stub read failed")
			_ = protocol.WriteResult(conn, protocol.InvalidRequestResponse)
		}
		return
	}
	resp := s.dispatch(req)
	if err := protocol.WriteResponse(conn, resp); err != nil {
		s.logger.Warn().Str("remote", remote).Err(err).Msg("stub write failed")
	}
}

func (s *Server) dispatch(req protocol.ServerRequest) protocol.Response {
	s.mu.Lock()
	s.calls[req.Method]++
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if !ok {
		return faultResponse("unknown_method", fmt.Sprintf("%v: %s", protocol.ErrUnknownMethod, req.Method))
	}
	if n, known := protocol.Arity(req.Method); known && n != len(req.Args) {
		s.logger.Debug().Str("method", req.Method).Int("args", len(req.Args)).Int("want", n).Msg("stub arity mismatch")
		return resultResponse(protocol.InvalidRequestResponse)
	}
	if s.validator != nil {
		secret, err := req.Secret()
		if err != nil {
			return resultResponse(protocol.InvalidRequestResponse)
		}
		if err := s.validator.Validate(secret); err != nil {
			s.logger.Debug().Str("method", req.Method).Msg("stub rejected secret")
			return resultResponse(protocol.BadSecretResponse)
		}
	}

	out, err := h(req)
	if err != nil {
		return faultResponse("handler_error", err.Error())
	}
	if res, ok := out.(protocol.Result); ok {
		return protocol.Response{Result: res.Raw()}
	}
	return resultResponse(out)
}

func resultResponse(v any) protocol.Response {
	res, err := protocol.ValueResult(v)
	if err != nil {
		return faultResponse("encode_error", err.Error())
	}
	return protocol.Response{Result: res.Raw()}
}

func faultResponse(code, message string) protocol.Response {
	return protocol.Response{Fault: &protocol.Fault{Code: code, Message: message}}
}
