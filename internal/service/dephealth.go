// dephealth.go - мониторинг зависимостей через topologymetrics SDK.
//
// Export Module мониторит:
//   - JWKS endpoint - HTTP checker (critical: без ключей все запросы получают 401)
//   - PostgreSQL - SQL checker через существующий pgxpool, только при EX_RECORD_STORE=postgres
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig - параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID - имя вершины графа текущего приложения
	ServiceID string
	// Group - имя группы в метриках
	Group string
	// JWKSURL - URL JWKS endpoint; его путь используется как health path
	JWKSURL string
	// TLSSkipVerify - не проверять сертификат JWKS endpoint
	TLSSkipVerify bool
	// DB - пул PostgreSQL (stdlib.OpenDBFromPool); nil - PostgreSQL не мониторится
	DB *sql.DB
	// DBURL - URL PostgreSQL для меток (не для подключения)
	DBURL string
	// CheckInterval - интервал проверки
	CheckInterval time.Duration
}

// DephealthService - сервис мониторинга зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга с глобальным Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным registerer (для тестов).
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	parsed, err := url.Parse(cfg.JWKSURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("некорректный JWKS URL %q", cfg.JWKSURL)
	}

	healthPath := parsed.Path
	if healthPath == "" {
		healthPath = "/"
	}

	jwksOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.JWKSURL),
		dephealth.WithHTTPHealthPath(healthPath),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if parsed.Scheme == "https" {
		jwksOpts = append(jwksOpts, dephealth.WithHTTPTLSSkipVerify(cfg.TLSSkipVerify))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("auth-jwks", jwksOpts...),
	)

	if cfg.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.DBURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей (имя → ok).
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
