package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DefaultReconnectDelay is the fixed delay between an unexpected close and
// the next connection attempt. The upstream pushes complete snapshots, so a
// constant delay without backoff is the observed policy.
const DefaultReconnectDelay = 5 * time.Second

// DecodeFunc turns one raw socket message into a typed payload. A false ok
// means the message is recognized but not actionable on this channel (for
// example a heartbeat or an unrelated type tag) and is silently skipped; an
// error means the message is malformed and is logged and dropped.
type DecodeFunc[T any] func(raw []byte) (payload T, ok bool, err error)

// Options configures a Channel. Zero values select production defaults.
type Options struct {
	Dialer         Dialer
	ReconnectDelay time.Duration
	Recorder       Recorder
}

// Channel owns one persistent socket connection: its dial/read lifecycle,
// its reconnection timer, and its listener set. At most one live socket
// exists per channel at any time. A reconnect timer is armed only when the
// socket dies unexpectedly, never after an explicit Disconnect.
type Channel[T any] struct {
	name   string
	url    string
	dialer Dialer
	delay  time.Duration
	rec    Recorder
	decode DecodeFunc[T]

	data   *Bus[T]
	status *Bus[Status]

	mu    sync.Mutex
	state Status
	conn  Conn
	timer *time.Timer
	// gen increments on every Connect and Disconnect; dial results and close
	// events carrying a stale generation are ignored, which is how handler
	// stripping is expressed without racy callback removal.
	gen uint64
}

// NewChannel creates an idle channel. No socket is opened until Connect.
func NewChannel[T any](name, url string, decode DecodeFunc[T], opts Options) *Channel[T] {
	if opts.Dialer == nil {
		opts.Dialer = NewDialer()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	c := &Channel[T]{
		name:   name,
		url:    url,
		dialer: opts.Dialer,
		delay:  opts.ReconnectDelay,
		rec:    opts.Recorder,
		decode: decode,
		data:   NewBus[T](),
		status: NewBus[Status](),
		state:  StatusDisconnected,
	}
	rec, nm := opts.Recorder, name
	c.data.SetPanicHook(func() { rec.ListenerPanic(nm) })
	c.status.Publish(StatusDisconnected)
	return c
}

func (c *Channel[T]) Name() string { return c.name }

// Status returns the current connection state.
func (c *Channel[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the socket. It is a no-op while a connection attempt is in
// flight or the socket is already open, so it is safe to call redundantly
// from visibility/online handlers and reconnect timers alike.
func (c *Channel[T]) Connect() {
	c.mu.Lock()
	if c.state == StatusConnecting || c.state == StatusConnected {
		c.mu.Unlock()
		return
	}
	c.clearTimerLocked()
	c.state = StatusConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.status.Publish(StatusConnecting)
	go c.dial(gen)
}

// Disconnect is the only caller-initiated teardown path. It cancels any
// pending reconnect timer, invalidates in-flight socket callbacks, and
// closes the socket with a normal-closure frame. No auto-reconnect follows.
func (c *Channel[T]) Disconnect() {
	c.mu.Lock()
	c.clearTimerLocked()
	c.gen++
	conn := c.conn
	c.conn = nil
	if conn != nil {
		c.state = StatusClosing
	}
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		if err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline); err != nil {
			log.Debug().Err(err).Str("channel", c.name).Msg("close frame write failed")
		}
		conn.Close()
	}

	c.mu.Lock()
	c.state = StatusDisconnected
	c.mu.Unlock()
	c.status.Publish(StatusDisconnected)
}

// Subscribe registers a payload listener. If a payload has already arrived,
// cb is invoked immediately with the cached one so late subscribers are not
// starved until the next push. The returned function unsubscribes.
func (c *Channel[T]) Subscribe(cb func(T)) func() {
	return c.data.Subscribe(cb)
}

// SubscribeStatus registers a status listener; the current status is
// delivered immediately.
func (c *Channel[T]) SubscribeStatus(cb func(Status)) func() {
	return c.status.Subscribe(cb)
}

// Last returns the most recently decoded payload, if any.
func (c *Channel[T]) Last() (T, bool) {
	return c.data.Last()
}

func (c *Channel[T]) dial(gen uint64) {
	conn, err := c.dialer.Dial(context.Background(), c.url)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect (or a newer Connect) raced this dial; the socket, if
		// any, belongs to nobody.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.state = StatusDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		log.Warn().Err(err).Str("channel", c.name).Str("url", c.url).Msg("dial failed, reconnect scheduled")
		c.status.Publish(StatusDisconnected)
		return
	}
	c.conn = conn
	c.state = StatusConnected
	// A reconnect timer armed before this dial completed may still be
	// mid-flight; cancel it so two attempts never race to set the socket.
	c.clearTimerLocked()
	c.mu.Unlock()

	log.Info().Str("channel", c.name).Str("url", c.url).Msg("channel connected")
	c.status.Publish(StatusConnected)
	go c.readLoop(conn, gen)
}

func (c *Channel[T]) readLoop(conn Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		payload, ok, derr := c.decode(raw)
		if derr != nil {
			c.rec.ChannelDecodeFailure(c.name)
			log.Debug().Err(derr).Str("channel", c.name).Msg("dropping undecodable message")
			continue
		}
		if !ok {
			continue
		}
		c.rec.ChannelMessage(c.name)
		c.data.Publish(payload)
	}
}

func (c *Channel[T]) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// Socket already torn down by Disconnect; nothing to do.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StatusDisconnected
	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	if !clean {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	if clean {
		log.Info().Str("channel", c.name).Msg("channel closed normally")
	} else {
		log.Warn().Err(err).Str("channel", c.name).Dur("delay", c.delay).Msg("channel closed unexpectedly, reconnect scheduled")
	}
	c.status.Publish(StatusDisconnected)
}

// scheduleReconnectLocked arms the fixed-delay reconnect timer. Caller holds
// the mutex.
func (c *Channel[T]) scheduleReconnectLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.rec.ChannelReconnect(c.name)
		c.Connect()
	})
}

func (c *Channel[T]) clearTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
