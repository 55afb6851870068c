package socketmode

import (
	"bytes"
	"context"
	"fmt"
)

// DefaultBufferSize is the receive buffer size and the initial capacity of
// the reassembly buffer.
const DefaultBufferSize = 1024

// MessageType is the type of a websocket frame.
type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
	MessageClose
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessageClose:
		return "close"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Frame is a chunk of a message as delivered by a Conn. Data is only valid
// until the next Receive call.
type Frame struct {
	Type         MessageType
	Data         []byte
	EndOfMessage bool
}

// reassembler joins frames into complete messages.
type reassembler struct {
	buf  bytes.Buffer
	recv []byte
}

func newReassembler(size int) *reassembler {
	if size <= 0 {
		size = DefaultBufferSize
	}
	r := &reassembler{recv: make([]byte, size)}
	r.buf.Grow(size)
	return r
}

// push adds f to the pending message. When f ends the message, the full
// message is returned and the buffer is reset.
func (r *reassembler) push(f Frame) ([]byte, bool) {
	if !f.EndOfMessage {
		r.buf.Write(f.Data)
		return nil, false
	}
	if r.buf.Len() == 0 {
		return bytes.Clone(f.Data), true
	}
	r.buf.Write(f.Data)
	msg := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	return msg, true
}

// reset drops a partially received message.
func (r *reassembler) reset() {
	r.buf.Reset()
}

// readMessage receives frames from conn until a message completes. A close
// frame returns errTransportClosed.
func (r *reassembler) readMessage(ctx context.Context, conn Conn) ([]byte, error) {
	for {
		f, err := conn.Receive(ctx, r.recv)
		if err != nil {
			r.reset()
			return nil, err
		}
		if f.Type == MessageClose {
			r.reset()
			return nil, errTransportClosed
		}
		if msg, ok := r.push(f); ok {
			return msg, nil
		}
	}
}
