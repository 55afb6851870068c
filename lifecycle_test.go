package socketmode

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(dialer Dialer) *connManager {
	cfg := defaultClientConfig()
	cfg.dialer = dialer
	return newConnManager(&cfg, nil)
}

func TestConnManager_ConnectLifecycle(t *testing.T) {
	conn := newMockConn()
	m := newTestManager(&mockDialer{conns: []*mockConn{conn}})
	ctx := context.Background()

	if m.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", m.State())
	}

	if err := m.connect(ctx, newMockOpener(okResponse("wss://example/1"))); err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if m.State() != StateOpen {
		t.Errorf("state = %s, want open", m.State())
	}
	if m.ConnectionID() == "" {
		t.Error("connection id is empty")
	}

	if err := m.closeOutput("bye"); err != nil {
		t.Fatalf("closeOutput error: %v", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}
	if !m.hasOpener() {
		t.Error("opener should be kept after closeOutput")
	}
	if reasons := conn.getOutputReasons(); len(reasons) != 1 || reasons[0] != "bye" {
		t.Errorf("output reasons = %q", reasons)
	}

	// Closing output when not open is a no-op.
	if err := m.closeOutput("again"); err != nil {
		t.Errorf("second closeOutput error: %v", err)
	}
	if reasons := conn.getOutputReasons(); len(reasons) != 1 {
		t.Errorf("output reasons = %q, want one", reasons)
	}
}

func TestConnManager_ReconnectUsesHeldOpener(t *testing.T) {
	conn1, conn2 := newMockConn(), newMockConn()
	m := newTestManager(&mockDialer{conns: []*mockConn{conn1, conn2}})
	opener := newMockOpener(okResponse("wss://example/1"))
	ctx := context.Background()

	if err := m.connect(ctx, opener); err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if err := m.closeOutput("bye"); err != nil {
		t.Fatalf("closeOutput error: %v", err)
	}
	if err := m.reconnect(ctx); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}

	if got := opener.getCalls(); got != 2 {
		t.Errorf("opener calls = %d, want 2", got)
	}
	conn, _, _, state := m.active()
	if conn != conn2 || state != StateOpen {
		t.Errorf("active = %v/%s, want conn2/open", conn, state)
	}
}

func TestConnManager_ConnectReplacesOpenConnection(t *testing.T) {
	conn1, conn2 := newMockConn(), newMockConn()
	m := newTestManager(&mockDialer{conns: []*mockConn{conn1, conn2}})
	opener := newMockOpener(okResponse("wss://example/1"))
	ctx := context.Background()

	if err := m.connect(ctx, opener); err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if err := m.connect(ctx, opener); err != nil {
		t.Fatalf("second connect error: %v", err)
	}

	if reasons := conn1.getCloseReasons(); len(reasons) != 1 || reasons[0] != replacedCloseReason {
		t.Errorf("conn1 close reasons = %q, want [%q]", reasons, replacedCloseReason)
	}
	if conn, _, _, _ := m.active(); conn != conn2 {
		t.Error("active connection is not conn2")
	}
}

func TestConnManager_ReconnectWithoutOpener(t *testing.T) {
	m := newTestManager(&mockDialer{})
	if err := m.reconnect(context.Background()); !errors.Is(err, ErrNoOpener) {
		t.Errorf("err = %v, want ErrNoOpener", err)
	}
}

func TestConnManager_ConcurrentConnectRejected(t *testing.T) {
	conn := newMockConn()
	m := newTestManager(&mockDialer{conns: []*mockConn{conn}})
	opener := newMockOpener(okResponse("wss://example/1"))
	opener.block = make(chan struct{})
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.connect(ctx, opener)
	}()

	select {
	case <-opener.called:
	case <-time.After(time.Second):
		t.Fatal("opener was not called")
	}

	if m.State() != StateConnecting {
		t.Errorf("state = %s, want connecting", m.State())
	}
	if err := m.connect(ctx, opener); !errors.Is(err, ErrConnectInProgress) {
		t.Errorf("second connect err = %v, want ErrConnectInProgress", err)
	}
	if err := m.send(ctx, []byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("send while connecting err = %v, want ErrNotOpen", err)
	}

	close(opener.block)
	if err := <-errCh; err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if m.State() != StateOpen {
		t.Errorf("state = %s, want open", m.State())
	}
}

func TestConnManager_TeardownDuringConnect(t *testing.T) {
	conn := newMockConn()
	m := newTestManager(&mockDialer{conns: []*mockConn{conn}})
	opener := newMockOpener(okResponse("wss://example/1"))
	opener.block = make(chan struct{})
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.connect(ctx, opener)
	}()
	<-opener.called

	if err := m.teardown("shutdown"); err != nil {
		t.Fatalf("teardown error: %v", err)
	}
	close(opener.block)

	if err := <-errCh; !errors.Is(err, ErrClosed) {
		t.Fatalf("connect err = %v, want ErrClosed", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}
	if reasons := conn.getCloseReasons(); len(reasons) != 1 {
		t.Errorf("fresh connection should be closed, close reasons = %q", reasons)
	}
	if conn, _, _, _ := m.active(); conn != nil {
		t.Error("manager still holds a connection")
	}
}

func TestConnManager_TeardownIdempotent(t *testing.T) {
	conn := newMockConn()
	m := newTestManager(&mockDialer{})
	m.adopt(conn)

	if err := m.teardown("one"); err != nil {
		t.Fatalf("teardown error: %v", err)
	}
	if err := m.teardown("two"); err != nil {
		t.Fatalf("second teardown error: %v", err)
	}
	if reasons := conn.getCloseReasons(); len(reasons) != 1 || reasons[0] != "one" {
		t.Errorf("close reasons = %q, want [one]", reasons)
	}
	if m.hasOpener() {
		t.Error("opener should be dropped by teardown")
	}
}

func TestConnManager_TeardownCancelsReadContext(t *testing.T) {
	m := newTestManager(&mockDialer{})
	m.adopt(newMockConn())

	_, rctx, _, _ := m.active()
	m.teardown("bye")

	select {
	case <-rctx.Done():
	default:
		t.Error("read context not cancelled by teardown")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateOpen, "open"},
		{StateClosing, "closing"},
		{State(42), "State(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}
