package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Report is the JSON form of a round of checks.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckReport is the JSON form of one Result.
type CheckReport struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Report runs every checker and summarizes the results.
func (a *Aggregator) Report(ctx context.Context) Report {
	results := a.CheckAll(ctx)
	report := Report{
		Status:    Overall(results),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]CheckReport, len(results)),
	}
	for name, r := range results {
		check := CheckReport{
			Status:   r.Status,
			Message:  r.Message,
			Duration: r.Duration.String(),
			Details:  r.Details,
		}
		if r.Error != nil {
			check.Error = r.Error.Error()
		}
		report.Checks[name] = check
	}
	return report
}

// HTTPStatus maps the report status to a response code. Degraded is still
// served.
func (r Report) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Handler serves the aggregator's Report as JSON.
func Handler(agg *Aggregator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := agg.Report(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(report.HTTPStatus())
		_ = json.NewEncoder(w).Encode(report)
	})
}
