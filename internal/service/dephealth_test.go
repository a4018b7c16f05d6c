package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newJWKSServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewDephealthService_ValidURL(t *testing.T) {
	srv := newJWKSServer(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:     "export-module-test-1",
		Group:         "queenofscience",
		JWKSURL:       srv.URL + "/auth/jwks",
		CheckInterval: 5 * time.Second,
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestNewDephealthService_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:     "export-module-test-2",
		Group:         "queenofscience",
		JWKSURL:       "not a url",
		CheckInterval: 5 * time.Second,
	}, logger, prometheus.NewRegistry())
	if err == nil {
		t.Error("ожидалась ошибка для некорректного URL")
	}
}

func TestDephealthService_StartStop(t *testing.T) {
	srv := newJWKSServer(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:     "export-module-test-3",
		Group:         "queenofscience",
		JWKSURL:       srv.URL + "/jwks",
		CheckInterval: time.Second,
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	ds.Stop()
}
