package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/queenofscience/export-module/internal/api/middleware"
	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
	"github.com/bigkaa/queenofscience/export-module/internal/service"
	"github.com/bigkaa/queenofscience/export-module/internal/storage/artifacts"
)

type fakeDir struct{ err error }

func (f fakeDir) Ping() error { return f.err }

type fakeRecords struct{ err error }

func (f fakeRecords) Ping(context.Context) error { return f.err }

type fakeDeps map[string]bool

func (f fakeDeps) Health() map[string]bool { return f }

type emptyLoader struct{}

func (emptyLoader) Posts(context.Context, model.Collection) []model.Post { return nil }
func (emptyLoader) Users(context.Context) []model.User                   { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestHealthReady проверяет итоговый статус readiness.
func TestHealthReady(t *testing.T) {
	tests := []struct {
		name    string
		dir     error
		records error
		want    int
		status  string
	}{
		{"all ok", nil, nil, http.StatusOK, "ok"},
		{"exports dir read-only", errors.New("read-only file system"), nil, http.StatusServiceUnavailable, "fail"},
		{"records down", nil, errors.New("connection refused"), http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakeDir{tt.dir}, fakeRecords{tt.records}, fakeDeps{"auth-jwks": false})
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d", tt.want, rec.Code)
			}
			var resp healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.status {
				t.Errorf("status: %q", resp.Status)
			}
			if ok, present := resp.Checks.Dependencies["auth-jwks"]; !present || ok {
				t.Errorf("состояние зависимостей не выведено: %v", resp.Checks.Dependencies)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(fakeDir{}, fakeRecords{}, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d", rec.Code)
	}
	var resp healthLiveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Service != "export-module" {
		t.Errorf("ответ: %+v", resp)
	}
}

// TestWriteServiceError проверяет сопоставление ошибок сервиса с HTTP.
func TestWriteServiceError(t *testing.T) {
	h := &ExportsHandler{logger: discardLogger()}

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: user_type %q", service.ErrForbidden, "Student"), http.StatusForbidden, "FORBIDDEN"},
		{service.ErrUnsupported, http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("%w: gone", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: layout", service.ErrGeneration), http.StatusInternalServerError, "GENERATION_FAILED"},
		{fmt.Errorf("%w: disk full", service.ErrStorage), http.StatusInternalServerError, "STORAGE_ERROR"},
		{errors.New("unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if rec.Code != tt.status {
				t.Errorf("ожидался статус %d, получен %d", tt.status, rec.Code)
			}
			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != tt.code || body.Error.Message == "" {
				t.Errorf("ошибка: %+v", body.Error)
			}
		})
	}
}

// TestCreateExport_Direct проверяет обработчик без роутера верхнего уровня.
func TestCreateExport_Direct(t *testing.T) {
	store, err := artifacts.New(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewExportService(emptyLoader{}, store, service.ExportOptions{}, discardLogger())
	h := NewExportsHandler(svc, discardLogger())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.ContextKeySubject, "admin")
			ctx = context.WithValue(ctx, middleware.ContextKeyUserType, "Member")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/export/{collection}/{format}", h.CreateExport)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/export/questions/excel", http.StatusOK},
		{"/api/export/users/pdf", http.StatusBadRequest},
		{"/api/export/posts/pdf", http.StatusBadRequest},
		{"/api/export/articles/txt", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: ожидался статус %d, получен %d, тело: %s", tt.target, tt.want, rec.Code, rec.Body.String())
		}
	}

	items, err := store.List(context.Background())
	if err != nil || len(items) != 1 {
		t.Errorf("ожидался один файл, получено %v, %v", items, err)
	}
}
