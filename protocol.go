package socketmode

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which protocol message a text frame carries.
type Kind int

const (
	KindEnvelope Kind = iota
	KindHello
	KindDisconnect
)

var kindNames = [...]string{
	KindEnvelope:   "envelope",
	KindHello:      "hello",
	KindDisconnect: "disconnect",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Envelope types sent by Slack.
const (
	EnvelopeEventsAPI     = "events_api"
	EnvelopeSlashCommands = "slash_commands"
	EnvelopeInteractive   = "interactive"
)

// Disconnect reasons.
const (
	ReasonWarning          = "warning"
	ReasonRefreshRequested = "refresh_requested"
	ReasonLinkDisabled     = "link_disabled"

	// ReasonTransportClosed is used for disconnects synthesized when the
	// websocket closes without a disconnect message.
	ReasonTransportClosed = "transport_closed"
)

// Event is one decoded protocol message. It is implemented by *Hello,
// *Envelope, *Disconnect and *DecodeFailure.
type Event interface {
	Kind() Kind
	isEvent()
}

// --- Server -> Client ---

// Hello is sent once the session is ready.
type Hello struct {
	Type           string          `json:"type"`
	NumConnections int             `json:"num_connections"`
	ConnectionInfo *ConnectionInfo `json:"connection_info,omitempty"`
	DebugInfo      *DebugInfo      `json:"debug_info,omitempty"`
}

// ConnectionInfo describes the app the session belongs to.
type ConnectionInfo struct {
	AppID string `json:"app_id"`
}

// DebugInfo carries server-side diagnostics.
type DebugInfo struct {
	Host                      string `json:"host"`
	BuildNumber               int    `json:"build_number,omitempty"`
	ApproximateConnectionTime int    `json:"approximate_connection_time,omitempty"`
}

// Envelope is an inbound request or event.
type Envelope struct {
	EnvelopeID             string          `json:"envelope_id"`
	Type                   string          `json:"type"`
	Payload                json.RawMessage `json:"payload"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	RetryAttempt           *int            `json:"retry_attempt,omitempty"`
	RetryReason            *string         `json:"retry_reason,omitempty"`
}

// Disconnect asks the client to drop the session and open a new one.
type Disconnect struct {
	Type      string     `json:"type"`
	Reason    string     `json:"reason"`
	DebugInfo *DebugInfo `json:"debug_info,omitempty"`

	// Synthesized is set when the websocket closed without a disconnect
	// message.
	Synthesized bool `json:"-"`
}

// DecodeFailure wraps a message that could not be decoded. Raw holds the
// message text exactly as received.
type DecodeFailure struct {
	Raw   string
	Class Kind
	Err   error
}

func (d *DecodeFailure) Error() string {
	return fmt.Sprintf("socketmode: decode %s: %v", d.Class, d.Err)
}

func (d *DecodeFailure) Unwrap() error {
	return d.Err
}

func (*Hello) Kind() Kind      { return KindHello }
func (*Envelope) Kind() Kind   { return KindEnvelope }
func (*Disconnect) Kind() Kind { return KindDisconnect }

// Kind returns the class the message was assigned before decoding failed.
func (d *DecodeFailure) Kind() Kind { return d.Class }

func (*Hello) isEvent()         {}
func (*Envelope) isEvent()      {}
func (*Disconnect) isEvent()    {}
func (*DecodeFailure) isEvent() {}

// --- Client -> Server ---

// Acknowledgement replies to an envelope.
type Acknowledgement struct {
	EnvelopeID string `json:"envelope_id"`
	Payload    any    `json:"payload,omitempty"`
}

// NewAcknowledgement creates an acknowledgement for envelopeID. payload may
// be nil.
func NewAcknowledgement(envelopeID string, payload any) *Acknowledgement {
	return &Acknowledgement{
		EnvelopeID: envelopeID,
		Payload:    payload,
	}
}

// helloReply is the text sent back after a hello.
const helloReply = "hello"

// disconnectCloseReason is the close reason used when a disconnect message
// is handled.
const disconnectCloseReason = "Disconnect message received from slack"
