package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/sawpanic/vedicwatch/internal/ephemeris"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Site      string                 `json:"site"`
	System    SystemInfo             `json:"system"`
	Checks    map[string]CheckResult `json:"checks"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	MemSys        uint64 `json:"mem_sys_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status    string                 `json:"status"` // "pass", "warn", "fail"
	Message   string                 `json:"message"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// handleHealth handles GET /health. An ephemeris failure makes the service
// unhealthy; journal trouble only degrades it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	resp := HealthResponse{
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Version:   s.config.Version,
		Site:      s.svc.Settings().Site.Name,
		System:    systemInfo(),
		Checks:    make(map[string]CheckResult),
	}

	resp.Checks["ephemeris"] = s.checkEphemeris(r.Context())
	resp.Checks["cache"] = CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Snapshot cache backend: %s", s.svc.CacheBackend()),
		Timestamp: time.Now(),
	}
	resp.Checks["database"] = s.checkJournal(r.Context())

	if resp.System.NumGoroutines > 1000 {
		resp.Checks["goroutines"] = CheckResult{
			Status:    "warn",
			Message:   fmt.Sprintf("High goroutine count: %d", resp.System.NumGoroutines),
			Timestamp: time.Now(),
		}
	} else {
		resp.Checks["goroutines"] = CheckResult{
			Status:    "pass",
			Message:   fmt.Sprintf("Goroutine count normal: %d", resp.System.NumGoroutines),
			Timestamp: time.Now(),
		}
	}

	resp.Status = overallStatus(resp.Checks)
	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) checkEphemeris(ctx context.Context) CheckResult {
	start := time.Now()
	_, err := s.svc.Adapter().Ayanamsa(ctx, s.svc.Now())
	res := CheckResult{Duration: time.Since(start), Timestamp: time.Now()}
	if err != nil {
		res.Status = "fail"
		res.Message = fmt.Sprintf("Ephemeris probe failed: %v", err)
		return res
	}
	res.Status = "pass"
	res.Message = "Ephemeris responding"

	if remote, ok := ephemeris.AsRemote(s.svc.Adapter()); ok {
		b := remote.BudgetStats()
		res.Message = fmt.Sprintf("Remote ephemeris responding, breaker %s", remote.BreakerState())
		if b.Limit > 0 {
			res.Message += fmt.Sprintf(", budget %d/%d", b.Used, b.Limit)
			if b.Remaining == 0 {
				res.Status = "warn"
			}
		}
	}
	return res
}

func (s *Server) checkJournal(ctx context.Context) CheckResult {
	h := s.svc.JournalHealth(ctx)
	res := CheckResult{
		Status:    "pass",
		Message:   "Database journal healthy",
		Duration:  time.Duration(h.ResponseTimeMS) * time.Millisecond,
		Timestamp: time.Now(),
		Details:   s.svc.JournalStatistics(ctx),
	}
	if len(h.Errors) > 0 {
		res.Message = strings.Join(h.Errors, "; ")
	}
	if !h.Healthy {
		res.Status = "warn"
	}
	return res
}

// systemInfo collects system runtime information
func systemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      memStats.Alloc,
		MemSys:        memStats.Sys,
		NumGC:         memStats.NumGC,
	}
}

// overallStatus determines overall service health
func overallStatus(checks map[string]CheckResult) string {
	status := "healthy"
	for _, check := range checks {
		switch check.Status {
		case "fail":
			return "unhealthy"
		case "warn":
			status = "degraded"
		}
	}
	return status
}
