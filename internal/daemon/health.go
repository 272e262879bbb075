package daemon

import (
	"time"

	"git.home.luguber.info/inful/notesync/internal/eventstore"
	"git.home.luguber.info/inful/notesync/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// StatusSnapshot is the payload of the /status endpoint.
type StatusSnapshot struct {
	Status      Status                   `json:"status"`
	StartTime   time.Time                `json:"start_time"`
	QueueLength int                      `json:"queue_length"`
	Halted      string                   `json:"halted,omitempty"`
	Paths       []eventstore.PathSummary `json:"paths"`
}

// PerformHealthChecks evaluates daemon state, the auth halt and the watcher.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	resp := &HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Version:   version.Version,
	}
	if !d.startTime.IsZero() {
		resp.Uptime = time.Since(d.startTime).Round(time.Second).String()
	}

	status := d.GetStatus()
	daemonCheck := HealthCheck{Name: "daemon", Status: HealthStatusHealthy, Message: string(status)}
	if status != StatusRunning {
		daemonCheck.Status = HealthStatusUnhealthy
	}
	resp.Checks = append(resp.Checks, daemonCheck)

	authCheck := HealthCheck{Name: "remote_auth", Status: HealthStatusHealthy}
	if err := d.queue.Halted(); err != nil {
		authCheck.Status = HealthStatusDegraded
		authCheck.Message = err.Error()
	}
	resp.Checks = append(resp.Checks, authCheck)

	watchCheck := HealthCheck{Name: "watcher", Status: HealthStatusHealthy, Message: "running"}
	if d.watcher == nil {
		watchCheck.Message = "disabled"
	}
	resp.Checks = append(resp.Checks, watchCheck)

	for _, c := range resp.Checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			resp.Status = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy:
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

// StatusSnapshot reports queue state and per-path publish summaries.
func (d *Daemon) StatusSnapshot() StatusSnapshot {
	snap := StatusSnapshot{
		Status:      d.GetStatus(),
		StartTime:   d.startTime,
		QueueLength: d.queue.Length(),
	}
	if err := d.queue.Halted(); err != nil {
		snap.Halted = err.Error()
	}
	if d.projection != nil {
		snap.Paths = d.projection.All()
	}
	return snap
}
