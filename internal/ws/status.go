package ws

// Status describes one channel's connection state, or the manager's
// aggregate of all three. The string values are what downstream status
// indicators key off, so they are part of the contract.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusClosing      Status = "disconnecting"

	// StatusPartial is aggregate-only: at least one channel open, not all.
	StatusPartial Status = "partial"
)

// Recorder receives channel lifecycle observations. The metrics package
// implements it; a no-op implementation is used when none is supplied.
type Recorder interface {
	ChannelReconnect(channel string)
	ChannelMessage(channel string)
	ChannelDecodeFailure(channel string)
	ListenerPanic(channel string)
}

type nopRecorder struct{}

func (nopRecorder) ChannelReconnect(string)     {}
func (nopRecorder) ChannelMessage(string)       {}
func (nopRecorder) ChannelDecodeFailure(string) {}
func (nopRecorder) ListenerPanic(string)        {}
