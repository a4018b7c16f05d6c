// Пакет openapi - встроенный OpenAPI контракт Export Module
// и middleware проверки запросов по нему (kin-openapi).
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/queenofscience/export-module/internal/api/errors"
)

//go:embed openapi.yaml
var specYAML []byte

// Spec возвращает исходный YAML контракта.
func Spec() []byte {
	return specYAML
}

// Load разбирает и проверяет встроенный контракт.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI контракт невалиден: %w", err)
	}
	return doc, nil
}

// Validator проверяет входящие запросы по контракту.
type Validator struct {
	router routers.Router
	logger *slog.Logger
}

// NewValidator создаёт валидатор для документа doc.
func NewValidator(doc *openapi3.T, logger *slog.Logger) (*Validator, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение маршрутов OpenAPI: %w", err)
	}
	return &Validator{
		router: router,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает middleware проверки параметров запроса.
// Аутентификация выполняется отдельно (JWT middleware), поэтому схемы
// безопасности контракта здесь не проверяются. Запросы к путям вне
// контракта пропускаются дальше: 404/405 формирует роутер.
func (v *Validator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					MultiError:         false,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не соответствует контракту",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует краткое описание ошибки для клиента.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			reason := reqErr.Reason
			var schemaErr *openapi3.SchemaError
			if errors.As(reqErr.Err, &schemaErr) && schemaErr.Reason != "" {
				reason = schemaErr.Reason
			}
			if reason == "" && reqErr.Err != nil {
				reason = reqErr.Err.Error()
			}
			return fmt.Sprintf("Invalid %s parameter %q: %s", reqErr.Parameter.In, reqErr.Parameter.Name, reason)
		}
		return reqErr.Error()
	}
	return strings.TrimSpace(err.Error())
}

// Handler отдаёт YAML контракта.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(specYAML)
	})
}
