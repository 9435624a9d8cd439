package render

import "fmt"

// FailureKind tags the reason a server failed.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureNonZeroExit
	FailureOOMKilled
	FailureTimedOut
	FailureUnhealthy
)

// FailureReason is the decoded form of the failure-detail convention in an
// event's details bag. The bag is decoded exactly once, at the enrichment
// boundary; everything downstream switches on Kind.
type FailureReason struct {
	Kind            FailureKind
	ExitCode        int
	TimedOutSeconds int
	TimedOutReason  string
	Message         string
}

// DecodeFailureReason inspects the details bag in priority order:
// nonZeroExit, oomKilled, timedOutSeconds, unhealthy. At most one field is
// expected to be populated; when none is, the reason is unknown.
func DecodeFailureReason(details map[string]interface{}) FailureReason {
	if code, ok := intValue(details["nonZeroExit"]); ok && code != 0 {
		return FailureReason{Kind: FailureNonZeroExit, ExitCode: code}
	}
	if truthy(details["oomKilled"]) {
		return FailureReason{Kind: FailureOOMKilled}
	}
	if seconds, ok := intValue(details["timedOutSeconds"]); ok && seconds > 0 {
		reason, _ := details["timedOutReason"].(string)
		return FailureReason{Kind: FailureTimedOut, TimedOutSeconds: seconds, TimedOutReason: reason}
	}
	if message, _ := details["unhealthy"].(string); message != "" {
		return FailureReason{Kind: FailureUnhealthy, Message: message}
	}
	return FailureReason{Kind: FailureUnknown}
}

// Describe renders the human-readable body for a notification.
func (r FailureReason) Describe() string {
	switch r.Kind {
	case FailureNonZeroExit:
		return fmt.Sprintf("Exited with status %d", r.ExitCode)
	case FailureOOMKilled:
		return "Out of Memory"
	case FailureTimedOut:
		if r.TimedOutReason != "" {
			return "Timed out " + r.TimedOutReason
		}
		return "Timed out"
	case FailureUnhealthy:
		return r.Message
	default:
		return "Failed for unknown reason"
	}
}

// DeployID extracts the deploy id from a details bag, or "" when the event
// is not tied to a deploy.
func DeployID(details map[string]interface{}) string {
	id, _ := details["deployId"].(string)
	return id
}

func intValue(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case map[string]interface{}:
		return true
	}
	return true
}
