package internal

import "encoding/json"

// Event is the envelope published to notification topics. Payload carries the
// raw webhook body exactly as received; Data is the flattened form used by
// the routing rules.
type Event struct {
	Provider string                 `json:"provider"`
	Name     string                 `json:"name"`
	Data     map[string]interface{} `json:"data"`
	Payload  json.RawMessage        `json:"payload"`
}
