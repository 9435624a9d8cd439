package worker

import "context"

// RetryDecision defines whether a message should be retried or Nacked.
type RetryDecision struct {
	Retry bool
	Nack  bool
}

// RetryPolicy defines a policy for retrying failed messages.
type RetryPolicy interface {
	OnError(ctx context.Context, evt *Event, err error) RetryDecision
}

// NoRetry never retries: a failed chain is logged by the listeners and the
// message is acknowledged. This is the relay's only policy; a transient
// failure drops exactly one notification.
type NoRetry struct{}

// OnError always returns a decision to not retry and to Ack the message.
func (NoRetry) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	return RetryDecision{}
}
