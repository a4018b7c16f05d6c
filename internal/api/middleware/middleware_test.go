package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRequestLogger_LevelByStatus проверяет выбор уровня по статус-коду.
func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := RequestID()(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/export/files", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("запись лога не JSON: %v (%s)", err, buf.String())
			}
			if entry["level"] != tt.level {
				t.Errorf("уровень: ожидался %s, получен %v", tt.level, entry["level"])
			}
			if entry["status"] != float64(tt.status) || entry["bytes"] != float64(4) {
				t.Errorf("статус/размер: %v/%v", entry["status"], entry["bytes"])
			}
			if entry["request_id"] == "" || entry["request_id"] != rec.Header().Get(HeaderRequestID) {
				t.Errorf("request_id в логе %v, в заголовке %q", entry["request_id"], rec.Header().Get(HeaderRequestID))
			}
		})
	}
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Errorf("идентификатор не сохранён: контекст %q, заголовок %q", seen, rec.Header().Get(HeaderRequestID))
	}
}

// TestMetricsMiddleware_RoutePattern проверяет, что в метку попадает шаблон маршрута.
func TestMetricsMiddleware_RoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/api/export/download/{filename}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/export/download/{filename}", "404")
	before := testutil.ToFloat64(counter)

	for _, name := range []string{"a.pdf", "b.pdf"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/export/download/"+name, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("ожидалось 2 запроса с одной меткой, получено %v", got)
	}

	unmatched := httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Errorf("неизвестный путь должен попадать в %s, прирост %v", unmatchedRoute, got)
	}
}
