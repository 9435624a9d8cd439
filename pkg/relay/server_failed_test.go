package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"deploybell/pkg/notify"
	"deploybell/pkg/render"
	"deploybell/pkg/worker"
)

type fakeAPI struct {
	event      *render.Event
	eventErr   error
	service    *render.Service
	serviceErr error
	deploy     *render.Deploy
	deployErr  error

	eventCalls   int
	serviceCalls int
	deployCalls  int
}

func (f *fakeAPI) GetEvent(ctx context.Context, id string) (*render.Event, error) {
	f.eventCalls++
	return f.event, f.eventErr
}

func (f *fakeAPI) GetService(ctx context.Context, id string) (*render.Service, error) {
	f.serviceCalls++
	return f.service, f.serviceErr
}

func (f *fakeAPI) GetDeploy(ctx context.Context, serviceID, deployID string) (*render.Deploy, error) {
	f.deployCalls++
	return f.deploy, f.deployErr
}

type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func relayEvent(body string) *worker.Event {
	return &worker.Event{
		Provider: "render",
		Type:     "server_failed",
		Topic:    "notify.server_failed",
		Payload:  json.RawMessage(body),
	}
}

const serverFailedBody = `{"type":"server_failed","data":{"id":"evt_1","serviceId":"srv_1"}}`

// TestHandleNotifiesOnFailure tests the full enrichment chain: event fetch,
// service fetch, formatted delivery.
func TestHandleNotifiesOnFailure(t *testing.T) {
	api := &fakeAPI{
		event:   &render.Event{ID: "evt_1", Type: "server_failed", Details: map[string]interface{}{"oomKilled": true}},
		service: &render.Service{ID: "srv_1", Name: "api", DashboardURL: "https://x"},
	}
	notifier := &fakeNotifier{}
	h := NewServerFailed(api, notifier, nil)

	if err := h.Handle(context.Background(), relayEvent(serverFailedBody)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.Title != "api Failed" {
		t.Fatalf("expected title %q, got %q", "api Failed", n.Title)
	}
	if n.Body != "Out of Memory" {
		t.Fatalf("expected body %q, got %q", "Out of Memory", n.Body)
	}
	if n.LinkURL != "https://x/logs" {
		t.Fatalf("expected logs link, got %q", n.LinkURL)
	}
	if api.deployCalls != 0 {
		t.Fatalf("expected no deploy fetch without a deployId")
	}
}

// TestHandleEventFetchError tests that a failed event fetch aborts the chain
// with no notification.
func TestHandleEventFetchError(t *testing.T) {
	api := &fakeAPI{eventErr: &render.APIError{StatusCode: http.StatusNotFound}}
	notifier := &fakeNotifier{}
	h := NewServerFailed(api, notifier, nil)

	err := h.Handle(context.Background(), relayEvent(serverFailedBody))
	if err == nil {
		t.Fatalf("expected an error")
	}
	var apiErr *render.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected the 404 to be wrapped, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notification, got %d", len(notifier.sent))
	}
	if api.serviceCalls != 0 {
		t.Fatalf("expected no service fetch after event fetch failed")
	}
}

// TestHandleSuppressesImageBackedDeploy tests the deploy gate: a deploy with
// no commit drops the notification regardless of other content.
func TestHandleSuppressesImageBackedDeploy(t *testing.T) {
	api := &fakeAPI{
		event: &render.Event{ID: "evt_1", Details: map[string]interface{}{
			"unhealthy": "probe failed",
			"deployId":  "dep_1",
		}},
		service: &render.Service{ID: "srv_1", Name: "api", DashboardURL: "https://x"},
		deploy:  &render.Deploy{ID: "dep_1"},
	}
	notifier := &fakeNotifier{}
	h := NewServerFailed(api, notifier, nil)

	if err := h.Handle(context.Background(), relayEvent(serverFailedBody)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if api.deployCalls != 1 {
		t.Fatalf("expected one deploy fetch, got %d", api.deployCalls)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected suppression, got %d notifications", len(notifier.sent))
	}
}

// TestHandleDeliversForGitBackedDeploy tests that a deploy with a commit
// passes the gate.
func TestHandleDeliversForGitBackedDeploy(t *testing.T) {
	api := &fakeAPI{
		event: &render.Event{ID: "evt_1", Details: map[string]interface{}{
			"nonZeroExit": float64(1),
			"deployId":    "dep_1",
		}},
		service: &render.Service{ID: "srv_1", Name: "api"},
		deploy:  &render.Deploy{ID: "dep_1", Commit: &render.Commit{ID: "abc"}},
	}
	notifier := &fakeNotifier{}
	h := NewServerFailed(api, notifier, nil)

	if err := h.Handle(context.Background(), relayEvent(serverFailedBody)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if notifier.sent[0].Body != "Exited with status 1" {
		t.Fatalf("unexpected body %q", notifier.sent[0].Body)
	}
}

// TestHandleDeliveryErrorPropagates tests that a delivery failure surfaces as
// the chain error.
func TestHandleDeliveryErrorPropagates(t *testing.T) {
	api := &fakeAPI{
		event:   &render.Event{ID: "evt_1", Details: map[string]interface{}{}},
		service: &render.Service{ID: "srv_1", Name: "api"},
	}
	boom := &notify.DeliveryError{ChannelID: "123", Reason: "resolve failed"}
	h := NewServerFailed(api, &fakeNotifier{err: boom}, nil)

	err := h.Handle(context.Background(), relayEvent(serverFailedBody))
	var deliveryErr *notify.DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
}

// TestHandleRejectsPayloadWithoutIDs tests the missing-id guard.
func TestHandleRejectsPayloadWithoutIDs(t *testing.T) {
	api := &fakeAPI{}
	h := NewServerFailed(api, &fakeNotifier{}, nil)

	err := h.Handle(context.Background(), relayEvent(`{"type":"server_failed","data":{}}`))
	if err == nil {
		t.Fatalf("expected an error for missing ids")
	}
	if api.eventCalls != 0 {
		t.Fatalf("expected no API calls, got %d", api.eventCalls)
	}
}
