package render

// Event is the full event record fetched from the API. Details is an open
// bag keyed by convention; use DecodeFailureReason and DeployID instead of
// reading it directly.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
}

// Service is a deployable unit on the platform.
type Service struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Branch       string `json:"branch,omitempty"`
	Repo         string `json:"repo,omitempty"`
	DashboardURL string `json:"dashboardUrl,omitempty"`
}

// Deploy is a single release of a service. Commit is nil for image-backed
// deploys.
type Deploy struct {
	ID     string  `json:"id"`
	Status string  `json:"status,omitempty"`
	Commit *Commit `json:"commit,omitempty"`
}

type Commit struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}
