package monitoring

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthCheckHealthy(t *testing.T) {
	healthChecker := NewHealthChecker("1.0.0", openTestDB(t))

	healthCheck := healthChecker.Check(120, 2)

	if healthCheck.Status != HealthStatusHealthy {
		t.Errorf("Expected status healthy, got %s", healthCheck.Status)
	}
	if healthCheck.Version != "1.0.0" {
		t.Errorf("Expected version 1.0.0, got %s", healthCheck.Version)
	}
	if healthCheck.LibraryItems != 120 {
		t.Errorf("Expected 120 library items, got %d", healthCheck.LibraryItems)
	}
	if healthCheck.ActiveJobs != 2 {
		t.Errorf("Expected 2 active jobs, got %d", healthCheck.ActiveJobs)
	}
	if healthCheck.DatabaseStatus != "connected" {
		t.Errorf("Expected database status connected, got %s", healthCheck.DatabaseStatus)
	}
}

func TestHealthCheckUnhealthy(t *testing.T) {
	healthCheck := NewHealthChecker("1.0.0", nil).Check(0, 0)

	if healthCheck.Status != HealthStatusUnhealthy {
		t.Errorf("Expected status unhealthy, got %s", healthCheck.Status)
	}
	if healthCheck.DatabaseStatus != "disconnected" {
		t.Errorf("Expected database status disconnected, got %s", healthCheck.DatabaseStatus)
	}
	if dbCheck, ok := healthCheck.Checks["database"]; !ok || dbCheck.Status != "unhealthy" {
		t.Errorf("database check = %+v, want unhealthy", dbCheck)
	}
}

func TestHealthCheckMissingTool(t *testing.T) {
	healthChecker := NewHealthChecker("1.0.0", openTestDB(t)).WithTools("mpv", "ffprobe")
	healthChecker.lookPath = func(name string) (string, error) {
		if name == "ffprobe" {
			return "", fmt.Errorf("not found")
		}
		return "/usr/bin/" + name, nil
	}

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Status != HealthStatusDegraded {
		t.Errorf("Expected status degraded, got %s", healthCheck.Status)
	}
	if c := healthCheck.Checks["tool:mpv"]; c.Status != "healthy" || c.Message != "/usr/bin/mpv" {
		t.Errorf("mpv check = %+v", c)
	}
	if c := healthCheck.Checks["tool:ffprobe"]; c.Status != "degraded" {
		t.Errorf("ffprobe check = %+v, want degraded", c)
	}
}

func TestHealthCheckUptime(t *testing.T) {
	healthChecker := NewHealthChecker("1.0.0", openTestDB(t))
	healthChecker.startTime = time.Now().Add(-90 * time.Second)

	healthCheck := healthChecker.Check(0, 0)

	if healthCheck.Uptime < 90 {
		t.Errorf("Expected uptime >= 90, got %d", healthCheck.Uptime)
	}
	if healthCheck.UptimeHuman != "1m 30s" {
		t.Errorf("Expected uptime 1m 30s, got %s", healthCheck.UptimeHuman)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m 1s"},
		{90061 * time.Second, "1d 1h 1m 1s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, got, tt.expected)
			}
		})
	}
}
