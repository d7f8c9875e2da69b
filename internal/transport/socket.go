package transport

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"

	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

// SocketClient speaks JSON-lines over a unix domain socket. Multiple
// in-flight requests share the connection; responses are matched back to
// callers by request id and may arrive out of order.
type SocketClient struct {
	conn   net.Conn
	writer *frameWriter
	prompt PromptFunc

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool
	readErr error

	done chan struct{}
}

// SocketOption configures a SocketClient.
type SocketOption func(*SocketClient)

// WithPrompt installs the handler for prompt frames sent by the server.
func WithPrompt(fn PromptFunc) SocketOption {
	return func(c *SocketClient) { c.prompt = fn }
}

// DialSocket connects to a unix socket server at path.
func DialSocket(path string, opts ...SocketOption) (*SocketClient, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errIO.Wrap(err, maxerrors.Props{"cause": err.Error()})
	}
	c := &SocketClient{
		conn:    conn,
		writer:  newFrameWriter(conn),
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c, nil
}

func (c *SocketClient) readLoop() {
	reader := newFrameReader(c.conn)
	var loopErr error
	for {
		f, err := reader.next()
		if err != nil {
			if err != io.EOF {
				loopErr = err
			}
			break
		}
		switch {
		case f.Kind == frameKindPrompt:
			go c.answerPrompt(f.Text)
		case f.isResponse():
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- Response{ID: f.ID, OK: *f.OK, Result: f.Result, Error: f.Error}
			}
		}
	}
	c.fail(loopErr)
}

func (c *SocketClient) answerPrompt(text string) {
	if c.prompt == nil {
		return
	}
	value, err := c.prompt(context.Background(), text)
	if err != nil {
		return
	}
	_ = c.writer.write(frame{Kind: frameKindInput, Value: value})
}

// fail closes the client and releases every outstanding send.
func (c *SocketClient) fail(err error) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.readErr = err
		close(c.done)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Send writes the request and blocks until its response arrives, the context
// is cancelled, or the transport closes.
func (c *SocketClient) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed.New(nil)
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.writer.write(req); err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resultOf(resp)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, errIO.Wrap(ctx.Err(), maxerrors.Props{"cause": ctx.Err().Error()})
	case <-c.done:
		if c.readErr != nil {
			return nil, c.readErr
		}
		return nil, ErrClosed.New(nil)
	}
}

// Close tears the connection down. Outstanding sends fail with a transport
// error.
func (c *SocketClient) Close() error {
	c.fail(nil)
	return nil
}
