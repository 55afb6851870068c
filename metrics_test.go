package socketmode

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_EventStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	conn := newMockConn()
	client := NewWithConn(conn, WithMetrics(reg))

	conn.pushText(`{"type":"hello","num_connections":1}`)
	conn.pushText(`{"envelope_id":"E1","type":"slash_commands","payload":{}}`)
	conn.pushText(`{"envelope_id":"E2","type":"events_api","payload":{"text":"unfinish`)
	conn.pushClose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for env, err := range client.Events(ctx) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if err := client.Acknowledge(ctx, env.EnvelopeID, nil); err != nil {
			t.Fatalf("Acknowledge error: %v", err)
		}
	}

	m := client.metrics
	if got := metricCounterValue(t, m.envelopesTotal.WithLabelValues(EnvelopeSlashCommands)); got != 1 {
		t.Errorf("envelopes_total(slash_commands) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.decodeFailures.WithLabelValues(KindEnvelope.String())); got != 1 {
		t.Errorf("decode_failures_total(envelope) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.disconnects.WithLabelValues(ReasonTransportClosed)); got != 1 {
		t.Errorf("disconnects_total(transport_closed) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.acksTotal); got != 1 {
		t.Errorf("acks_total = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"socketmode_envelopes_total", "socketmode_acks_total"} {
		if !names[want] {
			t.Errorf("registry missing %s", want)
		}
	}
}

func TestMetrics_ConnectAndReconnect(t *testing.T) {
	reg := prometheus.NewRegistry()
	dialer := &mockDialer{conns: []*mockConn{newMockConn(), newMockConn()}}
	ctx := context.Background()

	client, err := ConnectWith(ctx, newMockOpener(okResponse("wss://example/1")),
		WithDialer(dialer),
		WithMetrics(reg),
	)
	if err != nil {
		t.Fatalf("ConnectWith error: %v", err)
	}
	defer client.Close()

	if err := client.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect error: %v", err)
	}

	m := client.metrics
	if got := metricHistogramCount(t, m.connectDuration); got != 2 {
		t.Errorf("connect_duration_seconds count = %d, want 2", got)
	}
	if got := metricCounterValue(t, m.reconnectsTotal); got != 1 {
		t.Errorf("reconnects_total = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics
	m.envelope(EnvelopeEventsAPI)
	m.decodeFailure(KindHello)
	m.disconnect(ReasonWarning)
	m.reconnect()
	m.ack()
	m.connected(time.Now())
}
