package serialmux

import "strings"

// Inbound payload kinds.
const (
	EventTypeDetection = "detection"
	EventTypePump      = "pump"
	EventTypeAck       = "ack"
	EventTypeUnknown   = "unknown"
)

// ClassifyPayload returns the kind of an inbound line by its leading token.
func ClassifyPayload(payload string) string {
	head, _, _ := strings.Cut(strings.TrimSpace(payload), " ")
	switch strings.ToUpper(head) {
	case "DET":
		return EventTypeDetection
	case "PUMP_FULL":
		return EventTypePump
	case "OK", "ACK", "HELLO":
		return EventTypeAck
	default:
		return EventTypeUnknown
	}
}
