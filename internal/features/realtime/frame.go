package realtime

import "time"

// Reserved frame types sent by the registry itself.
const (
	FrameTypeConnection = "connection"
	FrameTypeHeartbeat  = "heartbeat"
)

const connectedMessage = "Connected to notification service"

type controlFrame struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func connectionFrame(now time.Time) controlFrame {
	return controlFrame{Type: FrameTypeConnection, Message: connectedMessage, Timestamp: now.UTC()}
}

func heartbeatFrame(now time.Time) controlFrame {
	return controlFrame{Type: FrameTypeHeartbeat, Timestamp: now.UTC()}
}

// ClientFrame is what clients send upstream over the push connection.
type ClientFrame struct {
	Type string `json:"type"`
}

// IsKeepAlive reports whether the client frame only signals liveness.
func (f ClientFrame) IsKeepAlive() bool {
	return f.Type == "ping" || f.Type == FrameTypeHeartbeat
}
