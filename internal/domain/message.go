package domain

type MessageType string

const (
	MessageBroadcast    MessageType = "broadcast"
	MessageSensorUpdate MessageType = "sensor-update"
)

// Message is one frame received from the transport.
type Message struct {
	Type      MessageType
	Broadcast string
	Sensors   map[string]string
}

// Values is the payload of one outbound value update.
type Values map[string]any
