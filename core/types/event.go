package types

// Event represents a typed event emitted while processing a message.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
