package ws

import (
	"sync"
	"testing"
)

// stubConduit is a hand-driven channel stand-in so the aggregate status
// logic can be tested without sockets.
type stubConduit struct {
	mu          sync.Mutex
	name        string
	state       Status
	status      *Bus[Status]
	connects    int
	disconnects int
}

func newStubConduit(name string, state Status) *stubConduit {
	s := &stubConduit{name: name, state: state, status: NewBus[Status]()}
	s.status.Publish(state)
	return s
}

func (s *stubConduit) Name() string { return s.name }

func (s *stubConduit) Connect() {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()
}

func (s *stubConduit) Disconnect() {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
}

func (s *stubConduit) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubConduit) SubscribeStatus(cb func(Status)) func() {
	return s.status.Subscribe(cb)
}

func (s *stubConduit) setStatus(st Status) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.status.Publish(st)
}

func (s *stubConduit) connectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func TestManager_OverallStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		price   Status
		model   Status
		modelDt Status
		want    Status
	}{
		{"all connected", StatusConnected, StatusConnected, StatusConnected, StatusConnected},
		{"one connecting outranks partial", StatusConnected, StatusConnecting, StatusDisconnected, StatusConnecting},
		{"all connecting", StatusConnecting, StatusConnecting, StatusConnecting, StatusConnecting},
		{"some open none connecting", StatusConnected, StatusDisconnected, StatusDisconnected, StatusPartial},
		{"two open one down", StatusConnected, StatusConnected, StatusDisconnected, StatusPartial},
		{"all down", StatusDisconnected, StatusDisconnected, StatusDisconnected, StatusDisconnected},
		{"closing counts as not open", StatusConnected, StatusConnected, StatusClosing, StatusPartial},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(
				newStubConduit("price", tc.price),
				newStubConduit("model", tc.model),
				newStubConduit("model-data-stream", tc.modelDt),
			)
			if got := m.OverallStatus(); got != tc.want {
				t.Fatalf("OverallStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestManager_StatusSubscriberTracksChildren(t *testing.T) {
	t.Parallel()

	price := newStubConduit("price", StatusDisconnected)
	model := newStubConduit("model", StatusDisconnected)
	modelData := newStubConduit("model-data-stream", StatusDisconnected)
	m := NewManager(price, model, modelData)

	var mu sync.Mutex
	var last Status
	m.SubscribeStatus(func(s Status) {
		mu.Lock()
		last = s
		mu.Unlock()
	})

	check := func(want Status) {
		t.Helper()
		mu.Lock()
		defer mu.Unlock()
		if last != want {
			t.Fatalf("aggregate = %s, want %s", last, want)
		}
	}

	check(StatusDisconnected)

	price.setStatus(StatusConnecting)
	check(StatusConnecting)

	price.setStatus(StatusConnected)
	check(StatusPartial)

	model.setStatus(StatusConnected)
	modelData.setStatus(StatusConnected)
	check(StatusConnected)

	model.setStatus(StatusDisconnected)
	check(StatusPartial)
}

func TestManager_ConnectAllAndDisconnectAll(t *testing.T) {
	t.Parallel()

	price := newStubConduit("price", StatusDisconnected)
	model := newStubConduit("model", StatusDisconnected)
	modelData := newStubConduit("model-data-stream", StatusDisconnected)
	m := NewManager(price, model, modelData)

	m.ConnectAll()
	for _, s := range []*stubConduit{price, model, modelData} {
		if s.connectCalls() != 1 {
			t.Fatalf("%s connect calls = %d, want 1", s.name, s.connectCalls())
		}
	}

	m.DisconnectAll()
	for _, s := range []*stubConduit{price, model, modelData} {
		s.mu.Lock()
		n := s.disconnects
		s.mu.Unlock()
		if n != 1 {
			t.Fatalf("%s disconnect calls = %d, want 1", s.name, n)
		}
	}
}

func TestManager_ResumeSkipsOpenChannels(t *testing.T) {
	t.Parallel()

	price := newStubConduit("price", StatusConnected)
	model := newStubConduit("model", StatusDisconnected)
	modelData := newStubConduit("model-data-stream", StatusDisconnected)
	m := NewManager(price, model, modelData)

	m.Resume()

	if price.connectCalls() != 0 {
		t.Errorf("open channel reconnected on Resume")
	}
	if model.connectCalls() != 1 || modelData.connectCalls() != 1 {
		t.Errorf("closed channels not resumed: model=%d modelData=%d",
			model.connectCalls(), modelData.connectCalls())
	}
}

func TestManager_OpenChannels(t *testing.T) {
	t.Parallel()

	price := newStubConduit("price", StatusConnected)
	model := newStubConduit("model", StatusConnected)
	modelData := newStubConduit("model-data-stream", StatusDisconnected)
	m := NewManager(price, model, modelData)

	if got := m.OpenChannels(); got != 2 {
		t.Fatalf("OpenChannels() = %d, want 2", got)
	}
}
