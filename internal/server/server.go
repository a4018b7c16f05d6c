// Пакет server - HTTP-сервер Export Module с опциональным TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/queenofscience/export-module/internal/api/errors"
	"github.com/bigkaa/queenofscience/export-module/internal/api/handlers"
	"github.com/bigkaa/queenofscience/export-module/internal/api/middleware"
	"github.com/bigkaa/queenofscience/export-module/internal/api/openapi"
	"github.com/bigkaa/queenofscience/export-module/internal/config"
)

// Routes - зависимости маршрутизатора.
type Routes struct {
	Exports *handlers.ExportsHandler
	Health  *handlers.HealthHandler
	// Auth - JWT middleware (JWTAuth.Middleware())
	Auth func(http.Handler) http.Handler
	// MemberUserType - user_type, которому доступны /api/export/*
	MemberUserType string
	// Validator - проверка запросов по OpenAPI контракту
	Validator *openapi.Validator
}

// NewRouter собирает маршруты и middleware.
// Публичные: /health/*, /metrics, /api/export/openapi.yaml.
// Остальные /api/export/* - только с JWT пользователя MemberUserType.
func NewRouter(logger *slog.Logger, rt Routes) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(chimw.Recoverer)

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Route not found")
	})

	router.Get("/health/live", rt.Health.HealthLive)
	router.Get("/health/ready", rt.Health.HealthReady)
	router.Get("/metrics", rt.Health.GetMetrics)

	router.Route("/api/export", func(r chi.Router) {
		r.Method(http.MethodGet, "/openapi.yaml", openapi.Handler())

		r.Group(func(r chi.Router) {
			r.Use(rt.Auth)
			r.Use(middleware.RequireUserType(rt.MemberUserType))
			r.Use(rt.Validator.Middleware())

			r.Get("/files", rt.Exports.ListFiles)
			r.Get("/download/{filename}", rt.Exports.DownloadFile)
			r.Delete("/files/{filename}", rt.Exports.DeleteFile)
			r.Post("/{collection}/{format}", rt.Exports.CreateExport)
		})
	})

	return router
}

// Server - HTTP-сервер Export Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с таймаутами из конфигурации.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
