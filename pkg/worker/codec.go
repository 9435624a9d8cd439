package worker

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Codec is an interface for decoding transport messages into an Event.
type Codec interface {
	// Decode transforms a Watermill message into an Event.
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DefaultCodec decodes the relay envelope published by the webhook receiver.
type DefaultCodec struct{}

// envelope mirrors the published event shape.
type envelope struct {
	Provider string                 `json:"provider"`
	Name     string                 `json:"name"`
	Data     map[string]interface{} `json:"data"`
	Payload  json.RawMessage        `json:"payload"`
}

// Decode unmarshals a Watermill message into an Event.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}

	payload := env.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(msg.Payload)
	}

	return &Event{
		Provider:   env.Provider,
		Type:       env.Name,
		Topic:      topic,
		Metadata:   metadata,
		Payload:    payload,
		Normalized: env.Data,
	}, nil
}
