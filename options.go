package socketmode

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chrisboulton/socketmode-go"

// HelloHandler is called for every hello message. It is not forwarded to
// the consumer of Events.
type HelloHandler func(ctx context.Context, c *Client, hello *Hello) error

// DisconnectHandler is called for every disconnect, including those
// synthesized from a closed websocket.
type DisconnectHandler func(ctx context.Context, c *Client, d *Disconnect) error

// DecodeFailureHandler receives messages that could not be decoded.
type DecodeFailureHandler func(f *DecodeFailure)

// DefaultHelloHandler replies to the hello with a fixed text frame.
func DefaultHelloHandler(ctx context.Context, c *Client, _ *Hello) error {
	return c.Send(ctx, helloReply)
}

// DefaultDisconnectHandler closes the current connection and, if the client
// holds a ConnectionOpener, opens a new session with it.
func DefaultDisconnectHandler(ctx context.Context, c *Client, _ *Disconnect) error {
	if err := c.CloseOutput(disconnectCloseReason); err != nil && c.cfg.logger != nil {
		c.cfg.logger.Debug("close output failed", slog.Any("error", err))
	}
	if err := c.Reconnect(ctx); !errors.Is(err, ErrNoOpener) {
		return err
	}
	return nil
}

// ClientOption configures a Socket Mode client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger          *slog.Logger
	dialer          Dialer
	bufferSize      int
	onHello         HelloHandler
	onDisconnect    DisconnectHandler
	onDecodeFailure DecodeFailureHandler
	onSend          func([]byte)
	onReceive       func(Event)
	registerer      prometheus.Registerer
	tracer          trace.Tracer
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		dialer:       &WebsocketDialer{},
		bufferSize:   DefaultBufferSize,
		onHello:      DefaultHelloHandler,
		onDisconnect: DefaultDisconnectHandler,
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) ClientOption {
	return func(c *clientConfig) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithBufferSize sets the receive buffer size. Messages larger than the
// buffer are reassembled from several frames.
func WithBufferSize(n int) ClientOption {
	return func(c *clientConfig) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithHelloHandler overrides the hello handling. The default is
// DefaultHelloHandler.
func WithHelloHandler(fn HelloHandler) ClientOption {
	return func(c *clientConfig) {
		if fn != nil {
			c.onHello = fn
		}
	}
}

// WithDisconnectHandler overrides the disconnect handling. The default is
// DefaultDisconnectHandler.
func WithDisconnectHandler(fn DisconnectHandler) ClientOption {
	return func(c *clientConfig) {
		if fn != nil {
			c.onDisconnect = fn
		}
	}
}

// WithDecodeFailureHandler sets the callback for undecodable messages.
// Without one they are dropped.
func WithDecodeFailureHandler(fn DecodeFailureHandler) ClientOption {
	return func(c *clientConfig) {
		c.onDecodeFailure = fn
	}
}

// WithOnSend sets a callback invoked before each text frame is sent.
func WithOnSend(fn func([]byte)) ClientOption {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked after each message is decoded.
func WithOnReceive(fn func(Event)) ClientOption {
	return func(c *clientConfig) {
		c.onReceive = fn
	}
}

// WithMetrics registers Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithTracer sets the tracer used for connect and acknowledge spans.
// Defaults to the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *clientConfig) {
		c.tracer = t
	}
}

func (c *clientConfig) resolvedTracer() trace.Tracer {
	if c.tracer != nil {
		return c.tracer
	}
	return otel.Tracer(tracerName)
}
