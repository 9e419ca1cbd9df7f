package stream

import (
	"context"
	"errors"

	"github.com/coder/websocket"
)

// MessageType distinguishes text from binary wire messages.
type MessageType int

const (
	// MessageText is a UTF-8 text message.
	MessageText MessageType = iota

	// MessageBinary is an opaque binary message.
	MessageBinary
)

// StatusNormalClosure is the close code sent on intentional disconnect.
const StatusNormalClosure = 1000

// Conn is the minimal transport surface the session needs. The production
// implementation wraps a WebSocket connection; tests use a scripted in-memory
// conn.
type Conn interface {
	// Read blocks until the next inbound message or a transport failure.
	Read(ctx context.Context) (MessageType, []byte, error)

	// Write sends one message. Callers serialise writes.
	Write(ctx context.Context, typ MessageType, data []byte) error

	// Close performs the transport close handshake with the given code.
	Close(code int, reason string) error
}

// Dialer establishes a [Conn] to a target URL.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// WSDialer is the production [Dialer] backed by coder/websocket.
type WSDialer struct{}

// Dial implements [Dialer].
func (WSDialer) Dial(ctx context.Context, target string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return wsConn{c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (w wsConn) Read(ctx context.Context) (MessageType, []byte, error) {
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if typ == websocket.MessageBinary {
		return MessageBinary, data, nil
	}
	return MessageText, data, nil
}

func (w wsConn) Write(ctx context.Context, typ MessageType, data []byte) error {
	wsType := websocket.MessageText
	if typ == MessageBinary {
		wsType = websocket.MessageBinary
	}
	return w.conn.Write(ctx, wsType, data)
}

func (w wsConn) Close(code int, reason string) error {
	return w.conn.Close(websocket.StatusCode(code), reason)
}

// closeInfo extracts the close code and reason from a transport read error.
// Errors that carry no close frame yield (-1, "").
func closeInfo(err error) (int, string) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return int(ce.Code), ce.Reason
	}
	return -1, ""
}
