package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/maxdata-sh/max/internal/logger"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// Prompter lets a handler ask the connected client for input mid-request.
// Stream transports plumb it through the request context.
type Prompter interface {
	Prompt(ctx context.Context, text string) (string, error)
}

type prompterKey struct{}

// WithPrompter attaches a prompter to a dispatch context.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterKey{}, p)
}

// PrompterFrom extracts the prompter installed by the serving transport.
func PrompterFrom(ctx context.Context) (Prompter, bool) {
	p, ok := ctx.Value(prompterKey{}).(Prompter)
	return p, ok
}

// SocketServer accepts unix socket connections and serves JSON-lines RPC.
// Each connection is a bidirectional channel: requests are dispatched
// concurrently and responses multiplex back by id.
type SocketServer struct {
	path     string
	dispatch DispatchFunc
	log      *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewSocketServer builds a server bound to a unix socket path.
func NewSocketServer(path string, dispatch DispatchFunc, log *logger.Logger) *SocketServer {
	return &SocketServer{path: path, dispatch: dispatch, log: log.With("socket-server")}
}

// Listen binds the socket. A stale socket file from a previous process is
// removed first.
func (s *SocketServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	s.listener = ln
	return nil
}

// Serve accepts connections until the server is closed or the context is
// cancelled. It blocks.
func (s *SocketServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return maxerrors.Internal.New(maxerrors.Props{"cause": "serve before listen"})
	}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr returns the bound socket path.
func (s *SocketServer) Addr() string { return s.path }

// Close stops accepting and removes the socket file.
func (s *SocketServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	_ = os.Remove(s.path)
	return nil
}

// connPrompter writes a prompt frame and waits for the client's input frame.
// One prompt may be outstanding per connection at a time.
type connPrompter struct {
	writer *frameWriter

	mu    sync.Mutex
	input chan string
}

func (p *connPrompter) Prompt(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writer.write(frame{Kind: frameKindPrompt, Text: text}); err != nil {
		return "", err
	}
	select {
	case value := <-p.input:
		return value, nil
	case <-ctx.Done():
		return "", errIO.Wrap(ctx.Err(), maxerrors.Props{"cause": ctx.Err().Error()})
	}
}

func (s *SocketServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := newFrameReader(conn)
	writer := newFrameWriter(conn)
	prompter := &connPrompter{writer: writer, input: make(chan string, 1)}
	dispatchCtx := WithPrompter(ctx, prompter)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		f, err := reader.next()
		if err != nil {
			if err != io.EOF {
				s.log.Error(err, "connection read failed")
			}
			return
		}
		switch {
		case f.Kind == frameKindInput:
			select {
			case prompter.input <- f.Value:
			default:
			}
		case f.isRequest():
			req := Request{ID: f.ID, Target: f.Target, Method: f.Method, Args: f.Args, Scope: f.Scope}
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := s.dispatch(dispatchCtx, req)
				if err := writer.write(resp); err != nil {
					s.log.Error(err, "connection write failed")
				}
			}()
		default:
			s.log.Warn("dropping unrecognized frame")
		}
	}
}
