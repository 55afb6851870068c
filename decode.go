package socketmode

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

var (
	envelopeMarker = []byte("envelope_id")
	helloMarker    = []byte("hello")
)

// Classify picks the message kind by looking for marker substrings. Any text
// containing "envelope_id" is an envelope, otherwise any text containing
// "hello" is a hello, and everything else is a disconnect, regardless of
// where in the message the marker appears.
func Classify(msg []byte) Kind {
	switch {
	case bytes.Contains(msg, envelopeMarker):
		return KindEnvelope
	case bytes.Contains(msg, helloMarker):
		return KindHello
	default:
		return KindDisconnect
	}
}

// Decode decodes msg into the shape for kind.
func Decode(msg []byte, kind Kind) (Event, error) {
	if !utf8.Valid(msg) {
		return nil, ErrInvalidUTF8
	}
	trimmed := bytes.TrimLeft(msg, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var ev Event
	switch kind {
	case KindEnvelope:
		ev = &Envelope{}
	case KindHello:
		ev = &Hello{}
	default:
		ev = &Disconnect{}
	}
	if err := json.Unmarshal(msg, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Parse classifies and decodes msg. Decoding errors are returned as a
// *DecodeFailure event rather than an error.
func Parse(msg []byte) Event {
	kind := Classify(msg)
	ev, err := Decode(msg, kind)
	if err != nil {
		return &DecodeFailure{
			Raw:   string(msg),
			Class: kind,
			Err:   err,
		}
	}
	return ev
}
