package ws

// Conduit is the control surface the Manager needs from a Channel,
// independent of its payload type.
type Conduit interface {
	Name() string
	Connect()
	Disconnect()
	Status() Status
	SubscribeStatus(cb func(Status)) func()
}

// Manager owns the three named stream channels and computes the aggregate
// connection status the UI indicator keys off. It is constructed explicitly
// by the composition root and injected where needed; there is no package
// singleton.
type Manager struct {
	price     Conduit
	model     Conduit
	modelData Conduit
	status    *Bus[Status]
}

// NewManager wires the three channels and begins tracking their statuses.
func NewManager(price, model, modelData Conduit) *Manager {
	m := &Manager{
		price:     price,
		model:     model,
		modelData: modelData,
		status:    NewBus[Status](),
	}
	for _, ch := range m.channels() {
		ch.SubscribeStatus(func(Status) {
			m.status.Publish(m.OverallStatus())
		})
	}
	return m
}

func (m *Manager) channels() []Conduit {
	return []Conduit{m.price, m.model, m.modelData}
}

// ConnectAll starts every channel.
func (m *Manager) ConnectAll() {
	for _, ch := range m.channels() {
		ch.Connect()
	}
}

// DisconnectAll tears every channel down; none will auto-reconnect.
func (m *Manager) DisconnectAll() {
	for _, ch := range m.channels() {
		ch.Disconnect()
	}
}

// Resume re-issues Connect on any channel that is not open. It is the
// reaction to the page becoming visible again or the network coming back
// online, and is safe to call redundantly.
func (m *Manager) Resume() {
	for _, ch := range m.channels() {
		if ch.Status() != StatusConnected {
			ch.Connect()
		}
	}
}

// OverallStatus combines the three channel statuses. The precedence is
// fixed: all open wins, then any connecting, then any open (partial), then
// disconnected.
func (m *Manager) OverallStatus() Status {
	connected, connecting := 0, 0
	chans := m.channels()
	for _, ch := range chans {
		switch ch.Status() {
		case StatusConnected:
			connected++
		case StatusConnecting:
			connecting++
		}
	}
	switch {
	case connected == len(chans):
		return StatusConnected
	case connecting > 0:
		return StatusConnecting
	case connected > 0:
		return StatusPartial
	default:
		return StatusDisconnected
	}
}

// OpenChannels reports how many channels are currently open.
func (m *Manager) OpenChannels() int {
	n := 0
	for _, ch := range m.channels() {
		if ch.Status() == StatusConnected {
			n++
		}
	}
	return n
}

// SubscribeStatus registers an aggregate-status listener; the current
// aggregate is delivered immediately.
func (m *Manager) SubscribeStatus(cb func(Status)) func() {
	return m.status.Subscribe(cb)
}
