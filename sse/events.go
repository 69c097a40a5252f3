package sse

// Event types written on the event feed.
const (
	// EventTypeConnected is sent once when a client connects.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive is used for keep-alive comments.
	EventTypeKeepAlive = "keepalive"

	// EventTypeElement carries one element published by a hot stream.
	EventTypeElement = "element"

	// EventTypeState is sent when a stream is paused, resumed or stopped.
	EventTypeState = "state"

	// EventTypeError is sent when an element cannot be encoded or a stream
	// ends with an upstream error.
	EventTypeError = "error"
)

// Event is one server-sent event.
type Event struct {
	Type string
	Data []byte
}

// ConnectedEvent is the payload of the connected event.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	Stream   string `json:"stream"`
}

// StateEvent is the payload of a state event.
type StateEvent struct {
	Stream string `json:"stream"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}
