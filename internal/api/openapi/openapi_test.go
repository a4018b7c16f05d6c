package openapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, err := NewValidator(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

// TestLoad проверяет, что встроенный контракт валиден и содержит все операции.
func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[string]string{
		"/api/export/files":                 http.MethodGet,
		"/api/export/download/{filename}":   http.MethodGet,
		"/api/export/files/{filename}":      http.MethodDelete,
		"/api/export/{collection}/{format}": http.MethodPost,
		"/health/ready":                     http.MethodGet,
	}
	for path, method := range want {
		item := doc.Paths.Find(path)
		if item == nil || item.GetOperation(method) == nil {
			t.Errorf("в контракте нет %s %s", method, path)
		}
	}
}

// TestValidator_Middleware проверяет проверку параметров пути.
func TestValidator_Middleware(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"valid export", http.MethodPost, "/api/export/articles/pdf", http.StatusOK},
		{"users pdf passes contract", http.MethodPost, "/api/export/users/pdf", http.StatusOK},
		{"unknown collection", http.MethodPost, "/api/export/comments/pdf", http.StatusBadRequest},
		{"unknown format", http.MethodPost, "/api/export/articles/csv", http.StatusBadRequest},
		{"list", http.MethodGet, "/api/export/files", http.StatusOK},
		{"download", http.MethodGet, "/api/export/download/doesnotexist.pdf", http.StatusOK},
		{"delete", http.MethodDelete, "/api/export/files/articles_export_1.pdf", http.StatusOK},
		{"long filename", http.MethodGet, "/api/export/download/" + strings.Repeat("a", 256), http.StatusBadRequest},
		{"outside contract", http.MethodGet, "/api/export/unknown/route/here", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Fatalf("ожидался статус %d, получен %d, тело: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusBadRequest {
				var body struct {
					Error struct {
						Code    string `json:"code"`
						Message string `json:"message"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("тело ответа не JSON: %v", err)
				}
				if body.Error.Code != "VALIDATION_ERROR" || body.Error.Message == "" {
					t.Errorf("неожиданная ошибка: %+v", body.Error)
				}
			}
		})
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export/openapi.yaml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Content-Type: %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "openapi: 3.0.3") {
		t.Errorf("тело не похоже на контракт: %.40q", rec.Body.String())
	}
}
