package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"deploybell/internal"
	"deploybell/pkg/notify"
	"deploybell/pkg/render"
	"deploybell/pkg/worker"
	"deploybell/webhook"
)

// API is the slice of the Render client the chain needs.
type API interface {
	GetEvent(ctx context.Context, id string) (*render.Event, error)
	GetService(ctx context.Context, id string) (*render.Service, error)
	GetDeploy(ctx context.Context, serviceID, deployID string) (*render.Deploy, error)
}

// ServerFailed is the enrichment-and-delivery chain for server_failed
// events: fetch the event detail and service, gate on the deploy when one is
// referenced, then deliver the formatted notification. Any returned error is
// observed only by the worker's listeners; the webhook sender was already
// acknowledged.
type ServerFailed struct {
	api      API
	notifier notify.Notifier
	logger   *log.Logger
}

func NewServerFailed(api API, notifier notify.Notifier, logger *log.Logger) *ServerFailed {
	if logger == nil {
		logger = log.Default()
	}
	return &ServerFailed{api: api, notifier: notifier, logger: logger}
}

// Handle processes one routed webhook event.
func (h *ServerFailed) Handle(ctx context.Context, evt *worker.Event) error {
	var payload webhook.Payload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return fmt.Errorf("relay: decode payload: %w", err)
	}
	if payload.Data.ID == "" || payload.Data.ServiceID == "" {
		return fmt.Errorf("relay: payload type=%s is missing event or service id", payload.Type)
	}

	event, err := h.api.GetEvent(ctx, payload.Data.ID)
	if err != nil {
		return fmt.Errorf("relay: fetch event %s: %w", payload.Data.ID, err)
	}
	reason := render.DecodeFailureReason(event.Details)

	service, err := h.api.GetService(ctx, payload.Data.ServiceID)
	if err != nil {
		return fmt.Errorf("relay: fetch service %s: %w", payload.Data.ServiceID, err)
	}

	if deployID := render.DeployID(event.Details); deployID != "" {
		deploy, err := h.api.GetDeploy(ctx, service.ID, deployID)
		if err != nil {
			return fmt.Errorf("relay: fetch deploy %s: %w", deployID, err)
		}
		if deploy.Commit == nil {
			// Image-backed deploy; failures of those are not relayed.
			h.logger.Printf("service %s deploy %s has no commit, suppressing notification", service.ID, deployID)
			return nil
		}
	}

	if err := h.notifier.Notify(ctx, notify.ServerFailed(service, reason)); err != nil {
		return err
	}
	internal.IncNotificationSent()
	h.logger.Printf("notified service=%s event=%s reason=%q", service.ID, event.ID, reason.Describe())
	return nil
}
