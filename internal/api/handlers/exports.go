// exports.go - HTTP handlers экспорта: генерация, список, скачивание, удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/queenofscience/export-module/internal/api/errors"
	"github.com/bigkaa/queenofscience/export-module/internal/api/middleware"
	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
	"github.com/bigkaa/queenofscience/export-module/internal/service"
)

// ExportsHandler - обработчик endpoints /api/export/*.
type ExportsHandler struct {
	svc    *service.ExportService
	logger *slog.Logger
}

// NewExportsHandler создаёт обработчик экспорта.
func NewExportsHandler(svc *service.ExportService, logger *slog.Logger) *ExportsHandler {
	return &ExportsHandler{
		svc:    svc,
		logger: logger.With(slog.String("component", "exports_handler")),
	}
}

// fileListResponse - ответ GET /api/export/files.
type fileListResponse struct {
	Files []model.Artifact `json:"files"`
}

// messageResponse - ответ с текстовым подтверждением.
type messageResponse struct {
	Message string `json:"message"`
}

// CreateExport обрабатывает POST /api/export/{collection}/{format}.
func (h *ExportsHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var rawCollection, rawFormat string
	if err := bindPathParam(r, "collection", &rawCollection); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if err := bindPathParam(r, "format", &rawFormat); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	collection, err := model.ParseCollection(rawCollection)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Unknown collection %q", rawCollection))
		return
	}
	format, err := model.ParseFormat(rawFormat)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Unknown format %q", rawFormat))
		return
	}

	result, err := h.svc.Export(r.Context(), principalFrom(r), collection, format)
	if err != nil {
		if errors.Is(err, service.ErrUnsupported) {
			apierrors.ValidationError(w, fmt.Sprintf("Export of %s to %s is not supported",
				collection.DisplayName(), format.DisplayName()))
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListFiles обрабатывает GET /api/export/files.
func (h *ExportsHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), principalFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileListResponse{Files: items})
}

// DownloadFile обрабатывает GET /api/export/download/{filename}.
// Поддерживает Range requests (206) и условные запросы через http.ServeContent.
func (h *ExportsHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	var filename string
	if err := bindPathParam(r, "filename", &filename); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.svc.ServeDownload(w, r, principalFrom(r), filename); err != nil {
		h.writeServiceError(w, r, err)
	}
}

// DeleteFile обрабатывает DELETE /api/export/files/{filename}.
func (h *ExportsHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var filename string
	if err := bindPathParam(r, "filename", &filename); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), principalFrom(r), filename); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

// writeServiceError сопоставляет ошибку сервиса с HTTP-ответом.
func (h *ExportsHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Access denied: Member role required")
	case errors.Is(err, service.ErrUnsupported):
		apierrors.ValidationError(w, "Unsupported export format")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "File not found")
	case errors.Is(err, service.ErrGeneration):
		apierrors.GenerationFailed(w, "Failed to generate export")
	case errors.Is(err, service.ErrStorage):
		apierrors.StorageError(w, "Export storage is unavailable")
	default:
		h.logger.Error("Необработанная ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Internal server error")
	}
}

// bindPathParam извлекает и декодирует параметр пути (style=simple).
func bindPathParam(r *http.Request, name string, dest *string) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}

// principalFrom собирает вызывающего пользователя из JWT контекста.
func principalFrom(r *http.Request) service.Principal {
	return service.Principal{
		Subject:  middleware.SubjectFromContext(r.Context()),
		UserType: middleware.UserTypeFromContext(r.Context()),
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
