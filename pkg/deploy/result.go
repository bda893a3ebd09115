package deploy

import "time"

// Result is what the orchestrator hands back for every pipeline run.
// Callers always receive a Result, never a panic or error escaping
// the pipeline. Best-effort side operations (routing) report into
// their own field and never flip Status.
type Result struct {
	Status         Status        `json:"status"` // success or failed
	ContainerName  string        `json:"containerName,omitempty"`
	ContainerImage string        `json:"containerImage,omitempty"`
	URL            string        `json:"url,omitempty"`
	Error          string        `json:"error,omitempty"`
	SkipReason     string        `json:"skipReason,omitempty"`
	RolledBack     bool          `json:"rolledBack,omitempty"`
	Unhealthy      bool          `json:"unhealthy,omitempty"`
	RoutingError   string        `json:"routingError,omitempty"`
	Duration       time.Duration `json:"duration"`
}
