package device

import "encoding/json"

// Payload is the message envelope every communicator sends.
type Payload struct {
	Gateway string  `json:"gateway,omitempty"`
	Reading Reading `json:"reading"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(gateway string, r Reading) ([]byte, error) {
	return json.Marshal(Payload{Gateway: gateway, Reading: r})
}
