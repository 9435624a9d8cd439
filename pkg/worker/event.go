package worker

import "encoding/json"

// Event represents a message received by the worker.
type Event struct {
	// Provider is the name of the webhook source (e.g., "render").
	Provider string `json:"provider"`
	// Type is the name of the event (e.g., "server_failed").
	Type string `json:"type"`
	// Topic is the name of the topic the message was received on.
	Topic string `json:"topic"`
	// Metadata contains message-transport metadata.
	Metadata map[string]string `json:"metadata"`
	// Payload is the raw webhook body as received on the wire.
	Payload json.RawMessage `json:"payload"`
	// Normalized is the flattened form of the payload.
	Normalized map[string]interface{} `json:"normalized"`
}
