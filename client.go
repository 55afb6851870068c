package socketmode

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client is a Socket Mode client. Send, Acknowledge and Close are safe for
// concurrent use; a client should have a single Events consumer at a time.
type Client struct {
	cfg     clientConfig
	mgr     *connManager
	metrics *metrics
	tracer  trace.Tracer

	mu              sync.RWMutex
	onDecodeFailure DecodeFailureHandler
}

// New creates a disconnected Client.
func New(opts ...ClientOption) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var m *metrics
	if cfg.registerer != nil {
		m = newMetrics(cfg.registerer)
	}

	return &Client{
		cfg:             cfg,
		mgr:             newConnManager(&cfg, m),
		metrics:         m,
		tracer:          cfg.resolvedTracer(),
		onDecodeFailure: cfg.onDecodeFailure,
	}
}

// Connect opens a session using an app-level token.
func Connect(ctx context.Context, appToken string, opts ...ClientOption) (*Client, error) {
	c := New(opts...)
	if err := c.Connect(ctx, appToken); err != nil {
		return nil, err
	}
	return c, nil
}

// ConnectWith opens a session using opener.
func ConnectWith(ctx context.Context, opener ConnectionOpener, opts ...ClientOption) (*Client, error) {
	c := New(opts...)
	if err := c.ConnectWith(ctx, opener); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithConn creates a Client around an already open connection.
// The client holds no opener, so a disconnect ends the event stream
// instead of reconnecting.
func NewWithConn(conn Conn, opts ...ClientOption) *Client {
	c := New(opts...)
	c.mgr.adopt(conn)
	return c
}

// Connect opens a session using an app-level token. An empty token falls
// back to the SLACK_APP_TOKEN environment variable.
func (c *Client) Connect(ctx context.Context, appToken string) error {
	wc, err := NewWebClient(WebClientConfig{Token: appToken})
	if err != nil {
		return err
	}
	return c.ConnectWith(ctx, wc)
}

// ConnectWith opens a session using opener, closing any current connection
// first. The opener is kept for reconnects.
func (c *Client) ConnectWith(ctx context.Context, opener ConnectionOpener) error {
	return c.mgr.connect(ctx, opener)
}

// Reconnect opens a new session with the opener given to Connect.
func (c *Client) Reconnect(ctx context.Context) error {
	return c.mgr.reconnect(ctx)
}

// CloseOutput sends a close frame on the current connection. The client
// keeps its opener and can Reconnect afterwards.
func (c *Client) CloseOutput(reason string) error {
	return c.mgr.closeOutput(reason)
}

// State returns the connection state.
func (c *Client) State() State {
	return c.mgr.State()
}

// ConnectionID returns the id of the current connection, or "" when there
// is none.
func (c *Client) ConnectionID() string {
	return c.mgr.ConnectionID()
}

// OnDecodeFailure registers the callback for undecodable messages,
// replacing any set with WithDecodeFailureHandler. A nil fn drops them.
func (c *Client) OnDecodeFailure(fn DecodeFailureHandler) {
	c.mu.Lock()
	c.onDecodeFailure = fn
	c.mu.Unlock()
}

// Close releases the connection and forgets the opener. It is safe to
// call more than once.
func (c *Client) Close() error {
	return c.mgr.teardown(clientCloseReason)
}

// Send sends text as one complete text frame.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.send(ctx, []byte(text))
}

// Acknowledge replies to the envelope with envelopeID. payload may be nil.
func (c *Client) Acknowledge(ctx context.Context, envelopeID string, payload any) error {
	ctx, span := c.tracer.Start(ctx, "socketmode.acknowledge",
		trace.WithAttributes(attribute.String("socketmode.envelope_id", envelopeID)),
	)
	defer span.End()

	data, err := json.Marshal(NewAcknowledgement(envelopeID, payload))
	if err != nil {
		err = &SendError{Op: "marshal", Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := c.send(ctx, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.metrics.ack()
	return nil
}

func (c *Client) send(ctx context.Context, data []byte) error {
	if c.cfg.onSend != nil {
		c.cfg.onSend(data)
	}

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("sending message",
			slog.String("conn_id", c.mgr.ConnectionID()),
			slog.Int("bytes", len(data)),
		)
	}

	return c.mgr.send(ctx, data)
}

// Events returns the envelopes received on the connection. Hello and
// disconnect messages are handled internally and the stream continues
// across reconnects. It ends when ctx is done, when the client is closed,
// or when the connection is not open after a disconnect was handled.
// Errors from the hello and disconnect handlers are yielded with a nil
// envelope.
//
// ctx is checked between messages; a receive already in progress is not
// interrupted by ctx. Close does interrupt it, so callers that need prompt
// cancellation pair the two:
//
//	stop := context.AfterFunc(ctx, func() { client.Close() })
//	defer stop()
//
// A Connect or Reconnect from another goroutine while Events is reading
// moves the stream onto the new connection.
func (c *Client) Events(ctx context.Context) iter.Seq2[*Envelope, error] {
	return func(yield func(*Envelope, error) bool) {
		r := newReassembler(c.cfg.bufferSize)

		for ctx.Err() == nil && c.mgr.State() == StateOpen {
			ev, ok := c.next(ctx, r)
			if !ok {
				return
			}
			if ev == nil {
				continue
			}

			if c.cfg.onReceive != nil {
				c.cfg.onReceive(ev)
			}

			switch ev := ev.(type) {
			case *Envelope:
				c.metrics.envelope(ev.Type)
				if c.cfg.logger != nil {
					c.cfg.logger.Debug("received envelope",
						slog.String("envelope_id", ev.EnvelopeID),
						slog.String("type", ev.Type),
					)
				}
				if !yield(ev, nil) {
					return
				}

			case *Hello:
				if c.cfg.logger != nil {
					c.cfg.logger.Debug("received hello",
						slog.String("conn_id", c.mgr.ConnectionID()),
						slog.Int("num_connections", ev.NumConnections),
					)
				}
				if err := c.cfg.onHello(ctx, c, ev); err != nil {
					if !yield(nil, err) {
						return
					}
				}

			case *DecodeFailure:
				c.decodeFailure(ev)

			case *Disconnect:
				c.metrics.disconnect(ev.Reason)
				if c.cfg.logger != nil {
					c.cfg.logger.Info("received disconnect",
						slog.String("conn_id", c.mgr.ConnectionID()),
						slog.String("reason", ev.Reason),
						slog.Bool("synthesized", ev.Synthesized),
					)
				}
				if ctx.Err() != nil {
					return
				}
				if err := c.cfg.onDisconnect(ctx, c, ev); err != nil {
					if !yield(nil, err) {
						return
					}
				}
			}
		}
	}
}

// next reads and parses one message. A closed or failed websocket becomes
// a synthesized Disconnect. When the connection was replaced while reading,
// next waits for the replacement and returns a nil event so the caller
// reads from it; ok is false when the connection was released instead.
func (c *Client) next(ctx context.Context, r *reassembler) (Event, bool) {
	conn, rctx, connID, state := c.mgr.active()
	if state != StateOpen || conn == nil {
		return nil, false
	}

	msg, err := r.readMessage(rctx, conn)
	if err != nil {
		if c.mgr.State() != StateOpen || c.mgr.ConnectionID() != connID {
			c.mgr.waitConnect(ctx)
			if c.mgr.State() == StateOpen && c.mgr.ConnectionID() != connID {
				return nil, true
			}
			return nil, false
		}
		if c.cfg.logger != nil {
			c.cfg.logger.Warn("websocket closed without disconnect message",
				slog.String("conn_id", connID),
				slog.Any("error", err),
			)
		}
		return &Disconnect{Reason: ReasonTransportClosed, Synthesized: true}, true
	}

	return Parse(msg), true
}

func (c *Client) decodeFailure(f *DecodeFailure) {
	c.metrics.decodeFailure(f.Class)
	if c.cfg.logger != nil {
		c.cfg.logger.Warn("could not decode message",
			slog.String("kind", f.Class.String()),
			slog.Any("error", f.Err),
		)
	}

	c.mu.RLock()
	fn := c.onDecodeFailure
	c.mu.RUnlock()
	if fn != nil {
		fn(f)
	}
}
