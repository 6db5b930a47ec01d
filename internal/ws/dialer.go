package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal socket surface a Channel needs. *websocket.Conn
// satisfies it; tests supply an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens socket connections. Injecting it keeps the channel state
// machine testable without a network.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type gorillaDialer struct{}

// NewDialer returns the production dialer backed by gorilla/websocket.
func NewDialer() Dialer { return gorillaDialer{} }

func (gorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(512 * 1024)
	return conn, nil
}
