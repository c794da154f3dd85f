package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"gorm.io/gorm"

	"github.com/stenograf/stenograf/internal/search"
)

// HealthHandler serves the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	engine    search.Engine
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now()}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithEngine sets the search engine for health checks.
func (h *HealthHandler) WithEngine(engine search.Engine) *HealthHandler {
	h.engine = engine
	return h
}

// ComponentHealth is one dependency's status.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MemoryInfo reports process and system memory usage.
type MemoryInfo struct {
	SystemTotalBytes uint64  `json:"system_total_bytes"`
	SystemUsedBytes  uint64  `json:"system_used_bytes"`
	SystemUsedPct    float64 `json:"system_used_pct"`
	HeapAllocBytes   uint64  `json:"heap_alloc_bytes"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	Version       string  `json:"version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	CPUCores int      `json:"cpu_cores"`
	Load1    *float64 `json:"load_1m,omitempty"`

	Memory MemoryInfo `json:"memory"`

	Components map[string]ComponentHealth `json:"components"`
}

// HealthInput is the (empty) health check input.
type HealthInput struct{}

// HealthOutput is the health check response.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including dependency status and system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth reports overall health. The service is degraded when the
// database is unreachable; the search engine being down is reported but
// does not degrade overall status because the SQL fallback still serves.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	components := map[string]ComponentHealth{
		"database": h.databaseHealth(ctx),
		"search":   h.engineHealth(ctx),
	}

	status := "healthy"
	if components["database"].Status != "ok" {
		status = "degraded"
	}

	resp := HealthResponse{
		Status:        status,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		CPUCores:      runtime.NumCPU(),
		Memory:        h.memoryInfo(),
		Components:    components,
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		resp.Load1 = &avg.Load1
	}

	return &HealthOutput{Body: resp}, nil
}

func (h *HealthHandler) databaseHealth(ctx context.Context) ComponentHealth {
	if h.db == nil {
		return ComponentHealth{Status: "unknown", Message: "not configured"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return ComponentHealth{Status: "error", Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return ComponentHealth{Status: "error", Message: err.Error()}
	}
	return ComponentHealth{Status: "ok"}
}

func (h *HealthHandler) engineHealth(ctx context.Context) ComponentHealth {
	if h.engine == nil {
		return ComponentHealth{Status: "unknown", Message: "not configured"}
	}
	if !h.engine.Healthy(ctx) {
		return ComponentHealth{Status: "error", Message: "engine unreachable"}
	}
	return ComponentHealth{Status: "ok"}
}

func (h *HealthHandler) memoryInfo() MemoryInfo {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	info := MemoryInfo{HeapAllocBytes: stats.HeapAlloc}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.SystemTotalBytes = vm.Total
		info.SystemUsedBytes = vm.Used
		info.SystemUsedPct = vm.UsedPercent
	}
	return info
}
