// health.go - обработчики health endpoints Export Module.
// /health/live - liveness probe (процесс жив)
// /health/ready - readiness probe (директория экспорта доступна для записи,
// хранилище коллекций отвечает)
// /metrics - Prometheus метрики
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/queenofscience/export-module/internal/config"
)

// Константы статусов health check.
const (
	statusOK   = "ok"
	statusFail = "fail"
)

// readyTimeout - предельное время проверок readiness.
const readyTimeout = 3 * time.Second

// ExportsDirChecker - проверка записи в директорию экспорта.
type ExportsDirChecker interface {
	Ping() error
}

// RecordsChecker - проверка хранилища коллекций.
type RecordsChecker interface {
	Ping(ctx context.Context) error
}

// DependencyReporter - состояние внешних зависимостей (topologymetrics).
type DependencyReporter interface {
	Health() map[string]bool
}

// HealthHandler - обработчик health endpoints.
type HealthHandler struct {
	exportsDir  ExportsDirChecker
	records     RecordsChecker
	deps        DependencyReporter
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil - тогда состояние зависимостей не выводится.
func NewHealthHandler(exportsDir ExportsDirChecker, records RecordsChecker, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		exportsDir:  exportsDir,
		records:     records,
		deps:        deps,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		ExportsDir   healthCheckResult `json:"exports_dir"`
		Records      healthCheckResult `json:"records"`
		Dependencies map[string]bool   `json:"dependencies,omitempty"`
	} `json:"checks"`
}

// HealthLive - liveness probe. Возвращает 200, если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "export-module",
	})
}

// HealthReady - readiness probe. Возвращает 200 (ok) или 503 (fail).
// Состояние зависимостей topologymetrics выводится для диагностики
// и на итоговый статус не влияет.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "export-module",
	}

	resp.Checks.ExportsDir = checkResult(h.exportsDir.Ping())
	resp.Checks.Records = checkResult(h.records.Ping(ctx))
	if h.deps != nil {
		resp.Checks.Dependencies = h.deps.Health()
	}

	resp.Status = statusOK
	status := http.StatusOK
	if resp.Checks.ExportsDir.Status == statusFail || resp.Checks.Records.Status == statusFail {
		resp.Status = statusFail
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// GetMetrics - Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func checkResult(err error) healthCheckResult {
	if err != nil {
		return healthCheckResult{Status: statusFail, Message: err.Error()}
	}
	return healthCheckResult{Status: statusOK}
}
