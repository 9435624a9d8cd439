package internal

import "expvar"

var (
	requestsTotal     = expvar.NewMap("deploybell_requests_total")
	verifyFailures    = expvar.NewMap("deploybell_verify_failures_total")
	parseErrors       = expvar.NewMap("deploybell_parse_errors_total")
	publishErrors     = expvar.NewMap("deploybell_publish_errors_total")
	droppedEvents     = expvar.NewMap("deploybell_dropped_events_total")
	notificationsSent = expvar.NewInt("deploybell_notifications_sent_total")
	notifyChainErrors = expvar.NewMap("deploybell_notify_errors_total")
)

func IncRequest(provider string) {
	requestsTotal.Add(provider, 1)
}

func IncVerifyFailure(provider string) {
	verifyFailures.Add(provider, 1)
}

func IncParseError(provider string) {
	parseErrors.Add(provider, 1)
}

func IncPublishError(topic string) {
	publishErrors.Add(topic, 1)
}

// IncDropped counts payloads that matched no routing rule.
func IncDropped(eventType string) {
	droppedEvents.Add(eventType, 1)
}

func IncNotificationSent() {
	notificationsSent.Add(1)
}

func IncNotifyError(topic string) {
	notifyChainErrors.Add(topic, 1)
}
