package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"deploybell/internal"
)

type capturingPublisher struct {
	events []internal.Event
	topics []string
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, event internal.Event) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func newTestHandler(t *testing.T, publisher internal.Publisher) (*RenderHandler, *Verifier) {
	t.Helper()
	verifier := testVerifier(t)
	rules, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules: []internal.Rule{{When: `type == "server_failed"`, Emit: internal.TopicServerFailed}},
	})
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	return NewRenderHandler(verifier, rules, publisher, nil, 1<<20), verifier
}

func postWebhook(handler http.Handler, verifier *Verifier, body string, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if sign {
		now := time.Now()
		req.Header.Set(HeaderID, "msg_1")
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
		req.Header.Set(HeaderSignature, verifier.Sign("msg_1", now, []byte(body)))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestHandlerPublishesRoutedEvent tests that a verified server_failed payload
// is acknowledged with 200 and published to its topic.
func TestHandlerPublishesRoutedEvent(t *testing.T) {
	publisher := &capturingPublisher{}
	handler, verifier := newTestHandler(t, publisher)

	body := `{"type":"server_failed","timestamp":"2026-01-02T03:04:05Z","data":{"id":"evt_1","serviceId":"srv_1"}}`
	rec := postWebhook(handler, verifier, body, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "{}" {
		t.Fatalf("expected {} body, got %q", rec.Body.String())
	}
	if len(publisher.topics) != 1 || publisher.topics[0] != internal.TopicServerFailed {
		t.Fatalf("expected one publish to %s, got %v", internal.TopicServerFailed, publisher.topics)
	}
	event := publisher.events[0]
	if event.Provider != "render" || event.Name != "server_failed" {
		t.Fatalf("unexpected envelope: %+v", event)
	}
	if string(event.Payload) != body {
		t.Fatalf("expected raw payload to be preserved byte for byte")
	}
}

// TestHandlerRejectsBadSignature tests that verification failure yields 400
// and nothing is published.
func TestHandlerRejectsBadSignature(t *testing.T) {
	publisher := &capturingPublisher{}
	handler, verifier := newTestHandler(t, publisher)

	rec := postWebhook(handler, verifier, `{"type":"server_failed"}`, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(publisher.topics) != 0 {
		t.Fatalf("expected no publishes, got %v", publisher.topics)
	}
}

// TestHandlerDropsUnroutedTypes tests that an unhandled event type is
// acknowledged but not published.
func TestHandlerDropsUnroutedTypes(t *testing.T) {
	publisher := &capturingPublisher{}
	handler, verifier := newTestHandler(t, publisher)

	rec := postWebhook(handler, verifier, `{"type":"deploy_started","data":{"id":"evt_1","serviceId":"srv_1"}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(publisher.topics) != 0 {
		t.Fatalf("expected no publishes for unrouted type, got %v", publisher.topics)
	}
}

// TestHandlerMalformedJSON tests that a verified but unparseable body yields 500.
func TestHandlerMalformedJSON(t *testing.T) {
	publisher := &capturingPublisher{}
	handler, verifier := newTestHandler(t, publisher)

	rec := postWebhook(handler, verifier, `{"type":`, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

// TestHandlerPublishFailureStillAcks tests that a failing publish does not
// change the already-determined acknowledgment.
func TestHandlerPublishFailureStillAcks(t *testing.T) {
	publisher := &capturingPublisher{err: context.DeadlineExceeded}
	handler, verifier := newTestHandler(t, publisher)

	rec := postWebhook(handler, verifier, `{"type":"server_failed","data":{"id":"evt_1","serviceId":"srv_1"}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite publish failure, got %d", rec.Code)
	}
}

// TestHandlerReplayProducesTwoPublishes tests that replaying the identical
// delivery produces two independent dispatches; the relay does not dedup.
func TestHandlerReplayProducesTwoPublishes(t *testing.T) {
	publisher := &capturingPublisher{}
	handler, verifier := newTestHandler(t, publisher)

	body := `{"type":"server_failed","data":{"id":"evt_1","serviceId":"srv_1"}}`
	now := time.Now()
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(HeaderID, "msg_1")
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
		req.Header.Set(HeaderSignature, verifier.Sign("msg_1", now, []byte(body)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("replay %d: expected 200, got %d", i, rec.Code)
		}
	}
	if len(publisher.topics) != 2 {
		t.Fatalf("expected two publishes, got %d", len(publisher.topics))
	}
}
