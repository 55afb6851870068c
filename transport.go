package socketmode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// TransportState is the state of a Conn.
type TransportState int

const (
	TransportOpen TransportState = iota
	TransportCloseSent
	TransportClosed
)

// Conn is a duplex websocket connection delivering frames.
// Send, CloseOutput and Close must be safe to call while another goroutine
// is blocked in Receive.
type Conn interface {
	// Receive reads the next frame into buf. A close from the peer is
	// reported as a frame of type MessageClose.
	Receive(ctx context.Context, buf []byte) (Frame, error)

	// Send writes data. When final is false the next Send continues the
	// same message.
	Send(ctx context.Context, typ MessageType, data []byte, final bool) error

	// CloseOutput sends a close frame with the given reason.
	CloseOutput(reason string) error

	// Close closes the connection.
	Close(reason string) error

	State() TransportState
}

// Dialer opens a Conn to a websocket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialOptions configures the websocket connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during handshake.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// ReadLimit is the largest message accepted. Defaults to 32MB.
	ReadLimit int64
}

const defaultReadLimit = 32 * 1024 * 1024

// WebsocketDialer dials with github.com/coder/websocket.
type WebsocketDialer struct {
	Options DialOptions
}

// Dial connects to url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialOpts := &websocket.DialOptions{}
	if d.Options.HTTPHeader != nil {
		dialOpts.HTTPHeader = d.Options.HTTPHeader.Clone()
	}
	if d.Options.HTTPClient != nil {
		dialOpts.HTTPClient = d.Options.HTTPClient
	}

	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, err
	}

	limit := d.Options.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	return &wsConn{conn: conn}, nil
}

// wsConn implements Conn over a coder/websocket connection. Messages are
// read through the per-message reader, so frames are bounded by the size of
// the caller's buffer rather than the sender's fragmentation.
type wsConn struct {
	conn *websocket.Conn

	// reader state, owned by the receiving goroutine
	r    io.Reader
	rtyp MessageType

	mu    sync.Mutex
	state TransportState
	w     io.WriteCloser
}

func (c *wsConn) Receive(ctx context.Context, buf []byte) (Frame, error) {
	if c.r == nil {
		typ, r, err := c.conn.Reader(ctx)
		if err != nil {
			return c.readError(err)
		}
		c.r = r
		c.rtyp = fromWebsocketType(typ)
	}

	n, err := io.ReadFull(c.r, buf)
	switch {
	case err == nil:
		return Frame{Type: c.rtyp, Data: buf[:n]}, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.r = nil
		return Frame{Type: c.rtyp, Data: buf[:n], EndOfMessage: true}, nil
	default:
		c.r = nil
		return c.readError(err)
	}
}

func (c *wsConn) readError(err error) (Frame, error) {
	if websocket.CloseStatus(err) != -1 {
		c.mu.Lock()
		c.state = TransportClosed
		c.mu.Unlock()
		return Frame{Type: MessageClose, EndOfMessage: true}, nil
	}
	return Frame{}, err
}

func (c *wsConn) Send(ctx context.Context, typ MessageType, data []byte, final bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != TransportOpen {
		return ErrNotOpen
	}

	if c.w == nil && final {
		return c.conn.Write(ctx, toWebsocketType(typ), data)
	}

	if c.w == nil {
		w, err := c.conn.Writer(ctx, toWebsocketType(typ))
		if err != nil {
			return err
		}
		c.w = w
	}
	if _, err := c.w.Write(data); err != nil {
		c.w = nil
		return err
	}
	if final {
		w := c.w
		c.w = nil
		return w.Close()
	}
	return nil
}

func (c *wsConn) CloseOutput(reason string) error {
	c.mu.Lock()
	if c.state != TransportOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = TransportCloseSent
	c.mu.Unlock()

	err := c.conn.Close(websocket.StatusNormalClosure, reason)

	c.mu.Lock()
	c.state = TransportClosed
	c.mu.Unlock()
	return err
}

func (c *wsConn) Close(reason string) error {
	c.mu.Lock()
	state := c.state
	c.state = TransportClosed
	c.mu.Unlock()

	switch state {
	case TransportClosed:
		return nil
	case TransportCloseSent:
		return c.conn.CloseNow()
	}
	if err := c.conn.Close(websocket.StatusNormalClosure, reason); err != nil {
		return c.conn.CloseNow()
	}
	return nil
}

func (c *wsConn) State() TransportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func fromWebsocketType(typ websocket.MessageType) MessageType {
	if typ == websocket.MessageBinary {
		return MessageBinary
	}
	return MessageText
}

func toWebsocketType(typ MessageType) websocket.MessageType {
	if typ == MessageBinary {
		return websocket.MessageBinary
	}
	return websocket.MessageText
}
