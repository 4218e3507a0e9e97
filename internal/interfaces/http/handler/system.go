package handler

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]ReadinessCheck
	timeout   time.Duration
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, checks map[string]ReadinessCheck) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		timeout:   5 * time.Second,
	}
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health reports that the process is up
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ReadinessResponse lists the state of every dependency
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready runs the dependency checks in parallel. Any failure answers 503.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed bool
	)
	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check ReadinessCheck) {
			defer wg.Done()
			state := "ok"
			if err := check(ctx); err != nil {
				state = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = state
			if state != "ok" {
				failed = true
			}
		}(name, check)
	}
	wg.Wait()

	if failed {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    resp,
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeServiceNotReady,
				Message:   "One or more dependencies are unavailable",
				RequestID: getRequestID(c),
			},
		})
		return
	}
	h.Success(c, resp)
}
