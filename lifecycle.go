package socketmode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateOpen:         "open",
	StateClosing:      "closing",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

const (
	replacedCloseReason = "reconnecting"
	clientCloseReason   = "client closed"
)

// connManager owns the connection and its state. It holds at most one Conn.
type connManager struct {
	dialer  Dialer
	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer

	// wmu serializes writes and connection swaps.
	wmu sync.Mutex

	mu     sync.Mutex
	state  State
	conn   Conn
	connID string
	ctx    context.Context // read context of conn
	cancel context.CancelFunc
	opener ConnectionOpener
	gen    uint64 // bumped by teardown

	// connecting is closed when the connect in progress finishes.
	connecting chan struct{}
}

func newConnManager(cfg *clientConfig, m *metrics) *connManager {
	return &connManager{
		dialer:  cfg.dialer,
		logger:  cfg.logger,
		metrics: m,
		tracer:  cfg.resolvedTracer(),
		state:   StateDisconnected,
	}
}

// adopt installs an already open connection without an opener.
func (m *connManager) adopt(conn Conn) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.install(conn)
	m.opener = nil
}

// install must be called with m.mu held.
func (m *connManager) install(conn Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	m.conn = conn
	m.ctx = ctx
	m.cancel = cancel
	m.connID = uuid.NewString()
	m.state = StateOpen
}

// connect opens a session with opener, replacing any current connection.
// The opener is kept for later reconnects.
func (m *connManager) connect(ctx context.Context, opener ConnectionOpener) error {
	m.mu.Lock()
	if m.state == StateConnecting {
		m.mu.Unlock()
		return ErrConnectInProgress
	}
	m.state = StateConnecting
	m.opener = opener
	gen := m.gen
	ready := make(chan struct{})
	m.connecting = ready
	old, oldCancel := m.conn, m.cancel
	m.conn, m.cancel, m.connID = nil, nil, ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.connecting == ready {
			m.connecting = nil
		}
		m.mu.Unlock()
		close(ready)
	}()

	if old != nil {
		m.wmu.Lock()
		if err := old.Close(replacedCloseReason); err != nil && m.logger != nil {
			m.logger.Debug("close replaced connection failed", slog.Any("error", err))
		}
		m.wmu.Unlock()
		oldCancel()
	}

	ctx, span := m.tracer.Start(ctx, "socketmode.connect")
	defer span.End()

	start := time.Now()
	conn, err := m.open(ctx, opener)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		m.mu.Lock()
		if m.gen == gen {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		return err
	}

	m.wmu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.wmu.Unlock()
		conn.Close(clientCloseReason)
		span.SetStatus(codes.Error, ErrClosed.Error())
		return ErrClosed
	}
	m.install(conn)
	connID := m.connID
	m.mu.Unlock()
	m.wmu.Unlock()

	m.metrics.connected(start)
	span.SetAttributes(attribute.String("socketmode.conn_id", connID))

	if m.logger != nil {
		m.logger.Info("socket mode connected",
			slog.String("conn_id", connID),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// open asks the opener for a URL and dials it.
func (m *connManager) open(ctx context.Context, opener ConnectionOpener) (Conn, error) {
	resp, err := opener.OpenConnection(ctx)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &ConnectionError{Op: "open", Err: err}
	}
	if !resp.OK {
		return nil, &APIError{Method: openConnectionMethod, Reason: resp.Error}
	}

	conn, err := m.dialer.Dial(ctx, resp.URL)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: resp.URL, Err: err}
	}
	return conn, nil
}

// reconnect opens a new session with the held opener.
func (m *connManager) reconnect(ctx context.Context) error {
	m.mu.Lock()
	opener := m.opener
	m.mu.Unlock()

	if opener == nil {
		return ErrNoOpener
	}
	if err := m.connect(ctx, opener); err != nil {
		return err
	}
	m.metrics.reconnect()
	return nil
}

// closeOutput sends a close frame on the current connection and moves to
// StateDisconnected. The opener is kept.
func (m *connManager) closeOutput(reason string) error {
	m.mu.Lock()
	if m.state != StateOpen {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosing
	conn, cancel, gen := m.conn, m.cancel, m.gen
	m.mu.Unlock()

	err := conn.CloseOutput(reason)
	cancel()

	m.mu.Lock()
	if m.gen == gen && m.conn == conn {
		m.conn, m.cancel, m.connID = nil, nil, ""
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	return err
}

// teardown releases the connection from any state and forgets the opener.
// Calling it again is a no-op.
func (m *connManager) teardown(reason string) error {
	m.mu.Lock()
	if m.state == StateDisconnected && m.conn == nil && m.opener == nil {
		m.mu.Unlock()
		return nil
	}
	m.gen++
	gen := m.gen
	conn, cancel := m.conn, m.cancel
	m.conn, m.cancel, m.connID = nil, nil, ""
	m.opener = nil
	m.state = StateClosing
	m.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(reason)
	}
	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	if m.gen == gen {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	return err
}

// send writes one complete text frame on the current connection.
func (m *connManager) send(ctx context.Context, data []byte) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()

	m.mu.Lock()
	state, conn := m.state, m.conn
	m.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrNotOpen
	}
	if err := conn.Send(ctx, MessageText, data, true); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// waitConnect blocks until a connect in progress finishes or ctx is done.
func (m *connManager) waitConnect(ctx context.Context) {
	m.mu.Lock()
	ready := m.connecting
	m.mu.Unlock()

	if ready == nil {
		return
	}
	select {
	case <-ready:
	case <-ctx.Done():
	}
}

// active returns the current connection and its read context.
func (m *connManager) active() (Conn, context.Context, string, State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn, m.ctx, m.connID, m.state
}

func (m *connManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *connManager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

func (m *connManager) hasOpener() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opener != nil
}
