package notify

import (
	"strings"

	"deploybell/pkg/render"
)

// Notification is a formatted message ready for delivery: a title, a body,
// and an optional link button.
type Notification struct {
	Title     string
	Body      string
	LinkLabel string
	LinkURL   string
}

// ServerFailed formats the notification for a failed service.
func ServerFailed(service *render.Service, reason render.FailureReason) Notification {
	n := Notification{
		Title: service.Name + " Failed",
		Body:  reason.Describe(),
	}
	if service.DashboardURL != "" {
		n.LinkLabel = "View Logs"
		n.LinkURL = strings.TrimRight(service.DashboardURL, "/") + "/logs"
	}
	return n
}
