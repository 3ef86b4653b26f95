package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check report
type HealthCheck struct {
	Status         HealthStatus     `json:"status"`
	Version        string           `json:"version"`
	Uptime         int64            `json:"uptime"`
	UptimeHuman    string           `json:"uptime_human"`
	LibraryItems   int              `json:"library_items"`
	ActiveJobs     int              `json:"active_jobs"`
	MemoryUsageMB  uint64           `json:"memory_usage_mb"`
	DatabaseStatus string           `json:"database_status"`
	Checks         map[string]Check `json:"checks"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Check represents an individual health check
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker performs health checks
type HealthChecker struct {
	version   string
	startTime time.Time
	db        *sql.DB
	tools     []string
	lookPath  func(string) (string, error)
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string, db *sql.DB) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		db:        db,
		lookPath:  exec.LookPath,
	}
}

// WithTools adds external programs that must be on PATH
func (h *HealthChecker) WithTools(tools ...string) *HealthChecker {
	h.tools = append(h.tools, tools...)
	return h
}

// Check performs all health checks and returns the result
func (h *HealthChecker) Check(libraryItems, activeJobs int) *HealthCheck {
	checks := make(map[string]Check)
	overallStatus := HealthStatusHealthy

	degrade := func(status string) {
		switch {
		case status == "unhealthy":
			overallStatus = HealthStatusUnhealthy
		case status == "degraded" && overallStatus == HealthStatusHealthy:
			overallStatus = HealthStatusDegraded
		}
	}

	dbCheck := h.checkDatabase()
	checks["database"] = dbCheck
	degrade(dbCheck.Status)

	memCheck := h.checkMemory()
	checks["memory"] = memCheck
	degrade(memCheck.Status)

	for _, tool := range h.tools {
		toolCheck := h.checkTool(tool)
		checks["tool:"+tool] = toolCheck
		degrade(toolCheck.Status)
	}

	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	dbStatus := "connected"
	if dbCheck.Status != "healthy" {
		dbStatus = "disconnected"
	}

	return &HealthCheck{
		Status:         overallStatus,
		Version:        h.version,
		Uptime:         int64(uptime.Seconds()),
		UptimeHuman:    formatDuration(uptime),
		LibraryItems:   libraryItems,
		ActiveJobs:     activeJobs,
		MemoryUsageMB:  m.Alloc / 1024 / 1024,
		DatabaseStatus: dbStatus,
		Checks:         checks,
		Timestamp:      time.Now(),
	}
}

func (h *HealthChecker) checkDatabase() Check {
	if h.db == nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database connection not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database ping failed: " + err.Error(),
		}
	}

	return Check{
		Status:  "healthy",
		Message: "Database connection is healthy",
	}
}

func (h *HealthChecker) checkMemory() Check {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memoryMB := m.Alloc / 1024 / 1024

	const (
		warningThresholdMB  = 256
		criticalThresholdMB = 1024
	)

	if memoryMB > criticalThresholdMB {
		return Check{
			Status:  "unhealthy",
			Message: "Memory usage is critically high",
		}
	}

	if memoryMB > warningThresholdMB {
		return Check{
			Status:  "degraded",
			Message: "Memory usage is elevated",
		}
	}

	return Check{
		Status:  "healthy",
		Message: "Memory usage is normal",
	}
}

// checkTool degrades health when an external program is missing; the
// library still lists and plays without it.
func (h *HealthChecker) checkTool(name string) Check {
	path, err := h.lookPath(name)
	if err != nil {
		return Check{
			Status:  "degraded",
			Message: fmt.Sprintf("%s not found on PATH", name),
		}
	}
	return Check{
		Status:  "healthy",
		Message: path,
	}
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
