// Package socketmode provides a Go client for Slack Socket Mode.
//
// Socket Mode delivers events, slash commands and interactions over a
// websocket instead of inbound HTTP requests. The client opens a session
// with apps.connections.open, turns websocket frames into typed envelopes,
// answers the hello handshake, and reconnects when Slack asks it to.
//
// # Thread Safety
//
// [Client.Send], [Client.Acknowledge] and [Client.Close] are safe for
// concurrent use. Writes are serialized, so acknowledgements never
// interleave on the wire. The sequence returned by [Client.Events] should be
// consumed by a single goroutine.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client, err := socketmode.Connect(ctx, "xapp-...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	for env, err := range client.Events(ctx) {
//	    if err != nil {
//	        log.Printf("socket mode: %v", err)
//	        continue
//	    }
//	    if err := client.Acknowledge(ctx, env.EnvelopeID, nil); err != nil {
//	        log.Printf("ack %s: %v", env.EnvelopeID, err)
//	    }
//	}
//
// # Message Classification
//
// Incoming text is classified by substring before it is decoded: anything
// containing "envelope_id" is an [Envelope], otherwise anything containing
// "hello" is a [Hello], and everything else is a [Disconnect]. A payload
// whose content happens to contain one of these markers is classified
// accordingly. Messages that fail to decode are reported to the handler set
// with [WithDecodeFailureHandler] or [Client.OnDecodeFailure] and never stop
// the stream.
//
// # Observability
//
// Use [WithLogger], [WithMetrics] and [WithTracer] to add logging, Prometheus
// collectors and OpenTelemetry spans:
//
//	client, err := socketmode.Connect(ctx, token,
//	    socketmode.WithLogger(slog.Default()),
//	    socketmode.WithMetrics(prometheus.DefaultRegisterer),
//	)
package socketmode
