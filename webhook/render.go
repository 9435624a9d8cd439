package webhook

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"deploybell/internal"
)

// Payload is the slim body Render posts to the webhook endpoint. Everything
// beyond the ids has to be fetched from the API afterwards.
type Payload struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

type PayloadData struct {
	ID        string `json:"id"`
	ServiceID string `json:"serviceId"`
}

// RenderHandler handles incoming webhooks from Render. It verifies the
// signature on the raw body, parses the payload, routes it through the rule
// engine, and publishes matches. The HTTP response is written once the
// payload is accepted; enrichment and delivery happen on the worker side and
// never surface back to the sender.
type RenderHandler struct {
	verifier  *Verifier
	rules     *internal.RuleEngine
	publisher internal.Publisher
	logger    *log.Logger
	maxBody   int64
}

func NewRenderHandler(verifier *Verifier, rules *internal.RuleEngine, publisher internal.Publisher, logger *log.Logger, maxBody int64) *RenderHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RenderHandler{
		verifier:  verifier,
		rules:     rules,
		publisher: publisher,
		logger:    logger,
		maxBody:   maxBody,
	}
}

func (h *RenderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	w.Header().Set("Content-Type", "application/json")
	internal.IncRequest("render")

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("read body failed: %v", err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	if err := h.verifier.Verify(rawBody, r.Header); err != nil {
		h.logger.Printf("verify failed: %v", err)
		internal.IncVerifyFailure("render")
		writeStatus(w, http.StatusBadRequest)
		return
	}

	var payload Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		h.logger.Printf("parse failed: %v", err)
		internal.IncParseError("render")
		writeStatus(w, http.StatusInternalServerError)
		return
	}

	event := internal.Event{
		Provider: "render",
		Name:     payload.Type,
		Data:     flattenBody(rawBody),
		Payload:  rawBody,
	}

	topics := h.rules.Evaluate(event)
	if len(topics) == 0 {
		h.logger.Printf("event type=%s not routed, dropping", payload.Type)
		internal.IncDropped(payload.Type)
		writeStatus(w, http.StatusOK)
		return
	}

	for _, topic := range topics {
		if err := h.publisher.Publish(r.Context(), topic, event); err != nil {
			// The sender already gets a 200; a failed publish is an
			// operator problem, not theirs.
			h.logger.Printf("publish %s failed: %v", topic, err)
			internal.IncPublishError(topic)
		}
	}

	writeStatus(w, http.StatusOK)
}

func flattenBody(raw []byte) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return internal.Flatten(out)
}

func writeStatus(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
	w.Write([]byte(`{}`)) // nolint: errcheck
}
