package domain

import "time"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SourceResult is the per-source line of an ingestion report.
type SourceResult struct {
	Source string `json:"source"`
	Party  string `json:"party"`
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// RunReport aggregates one orchestrator invocation across all sources. Every
// attempted source appears exactly once, failed or not.
type RunReport struct {
	Message  string         `json:"message"`
	Results  []SourceResult `json:"results"`
	Duration time.Duration  `json:"duration"`
}

// Failed counts sources that ended with StatusFailed.
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			n++
		}
	}
	return n
}

// RunResult reports a single-source run.
type RunResult struct {
	Message string `json:"message"`
	Source  string `json:"source"`
	Count   int    `json:"count"`
}
