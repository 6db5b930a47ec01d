package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn is an in-memory socket: messages are fed through a channel and
// the read loop is released with a configurable error.
type fakeConn struct {
	msgs     chan []byte
	done     chan struct{}
	closeErr error
	mu       sync.Mutex
	once     sync.Once

	normalCloseSent bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:     make(chan []byte, 16),
		done:     make(chan struct{}),
		closeErr: errors.New("connection closed"),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.msgs:
		return websocket.TextMessage, msg, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return 0, nil, c.closeErr
	}
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage {
		c.mu.Lock()
		c.normalCloseSent = true
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// dropWith simulates the server closing the connection with err.
func (c *fakeConn) dropWith(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	c.Close()
}

func (c *fakeConn) sentNormalClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.normalCloseSent
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dialErr error
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type testPayload struct {
	Value string `json:"value"`
}

func decodeTestPayload(raw []byte) (testPayload, bool, error) {
	var p testPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return testPayload{}, false, err
	}
	if p.Value == "ignore-me" {
		return testPayload{}, false, nil
	}
	return p, true, nil
}

func newTestChannel(d *fakeDialer, delay time.Duration) *Channel[testPayload] {
	return NewChannel("test", "ws://unit.test/stream", decodeTestPayload, Options{
		Dialer:         d,
		ReconnectDelay: delay,
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestChannel_ConnectOpensSocket(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)

	if ch.Status() != StatusDisconnected {
		t.Fatalf("new channel status = %s, want disconnected", ch.Status())
	}

	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never reached connected")

	if d.dialCount() != 1 {
		t.Fatalf("dial count = %d, want 1", d.dialCount())
	}
}

func TestChannel_ConnectIdempotent(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)

	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	ch.Connect()
	ch.Connect()
	time.Sleep(10 * time.Millisecond)

	if d.dialCount() != 1 {
		t.Fatalf("redundant Connect opened extra sockets: dials = %d", d.dialCount())
	}
}

func TestChannel_MessageDeliveredToSubscribers(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)

	var mu sync.Mutex
	var got []testPayload
	ch.Subscribe(func(p testPayload) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	d.conn(0).msgs <- []byte(`{"value":"hello"}`)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "message never delivered")

	mu.Lock()
	defer mu.Unlock()
	if got[0].Value != "hello" {
		t.Fatalf("payload = %+v", got[0])
	}
}

func TestChannel_LateSubscriberReplay(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)
	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	d.conn(0).msgs <- []byte(`{"value":"cached"}`)
	waitFor(t, func() bool { _, ok := ch.Last(); return ok }, "payload never cached")

	var mu sync.Mutex
	var got *testPayload
	ch.Subscribe(func(p testPayload) {
		mu.Lock()
		got = &p
		mu.Unlock()
	})

	mu.Lock()
	defer mu.Unlock()
	if got == nil || got.Value != "cached" {
		t.Fatalf("late subscriber not replayed cached payload: %+v", got)
	}
}

func TestChannel_MalformedMessageDropped(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)

	var mu sync.Mutex
	var got []testPayload
	ch.Subscribe(func(p testPayload) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	d.conn(0).msgs <- []byte(`{not json`)
	d.conn(0).msgs <- []byte(`{"value":"after-garbage"}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "valid message after garbage never delivered")

	if ch.Status() != StatusConnected {
		t.Fatalf("decode failure must not affect channel state, got %s", ch.Status())
	}
}

func TestChannel_UnexpectedCloseSchedulesReconnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, 20*time.Millisecond)
	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	d.conn(0).dropWith(&websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "gone"})

	waitFor(t, func() bool { return d.dialCount() == 2 }, "reconnect never dialed")
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never re-connected")
}

func TestChannel_CleanCloseDoesNotReconnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, 20*time.Millisecond)
	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	d.conn(0).dropWith(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: ""})
	waitFor(t, func() bool { return ch.Status() == StatusDisconnected }, "channel never saw the close")

	time.Sleep(60 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("clean close must not arm a reconnect timer: dials = %d", d.dialCount())
	}
}

func TestChannel_DisconnectSendsNormalCloseAndSuppressesReconnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, 20*time.Millisecond)
	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	ch.Disconnect()

	if ch.Status() != StatusDisconnected {
		t.Fatalf("status after Disconnect = %s", ch.Status())
	}
	if !d.conn(0).sentNormalClose() {
		t.Error("Disconnect must close with a normal-closure frame")
	}

	time.Sleep(60 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("caller-initiated teardown must not reconnect: dials = %d", d.dialCount())
	}
}

func TestChannel_DisconnectCancelsPendingReconnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, 30*time.Millisecond)
	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	// Kill the socket so a reconnect timer arms, then disconnect before it
	// fires.
	d.conn(0).dropWith(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})
	waitFor(t, func() bool { return ch.Status() == StatusDisconnected }, "close never observed")
	ch.Disconnect()

	time.Sleep(80 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("cancelled timer still fired: dials = %d", d.dialCount())
	}
}

func TestChannel_DialFailureRetries(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{dialErr: fmt.Errorf("connection refused")}
	ch := newTestChannel(d, 15*time.Millisecond)
	ch.Connect()

	waitFor(t, func() bool { return ch.Status() == StatusDisconnected }, "dial failure never surfaced")

	d.mu.Lock()
	d.dialErr = nil
	d.mu.Unlock()

	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never recovered after dial failures")
}

func TestChannel_StatusSubscriberSeesTransitions(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	ch := newTestChannel(d, time.Second)

	var mu sync.Mutex
	var seen []Status
	ch.SubscribeStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	ch.Connect()
	waitFor(t, func() bool { return ch.Status() == StatusConnected }, "channel never connected")

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusDisconnected, StatusConnecting, StatusConnected}
	if len(seen) < len(want) {
		t.Fatalf("saw %v, want at least %v", seen, want)
	}
	for i, s := range want {
		if seen[i] != s {
			t.Fatalf("transition %d = %s, want %s (all: %v)", i, seen[i], s, seen)
		}
	}
}
