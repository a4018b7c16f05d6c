// auth.go - JWT middleware для аутентификации и авторизации.
// Использует RS256 + JWKS для валидации токенов сервиса авторизации.
// Claims: sub (subject), user_type (тип пользователя).
// Публичные endpoints (health, metrics, openapi.yaml) - без аутентификации.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/queenofscience/export-module/internal/api/errors"
)

// contextKey - тип для ключей контекста.
type contextKey string

const (
	// ContextKeySubject - ключ для sub из JWT в контексте запроса.
	ContextKeySubject contextKey = "jwt_subject"
	// ContextKeyUserType - ключ для user_type из JWT в контексте запроса.
	ContextKeyUserType contextKey = "jwt_user_type"
)

// Claims - структура JWT claims Export Module.
// Тип пользователя принимается как "user_type" или "userType".
type Claims struct {
	jwt.RegisteredClaims
	UserTypeSnake string `json:"user_type,omitempty"`
	UserTypeCamel string `json:"userType,omitempty"`
}

// UserType возвращает тип пользователя из любого из двух claims.
func (c *Claims) UserType() string {
	if c.UserTypeSnake != "" {
		return c.UserTypeSnake
	}
	return c.UserTypeCamel
}

// JWTAuth - middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig - параметры для создания JWT middleware.
type JWTAuthConfig struct {
	// URL JWKS endpoint
	JWKSURL string
	// Путь к CA-сертификату (опционально)
	CACertPath string
	// Пропускать проверку TLS-сертификатов
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из указанного URL.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать, даже если JWKS endpoint
	// ещё недоступен: ключи подтянутся при следующем обновлении.
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, authCfg.JWTLeeway, logger), nil
}

// buildHTTPClient создаёт HTTP-клиент JWKS с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: authCfg.TLSSkipVerify, //nolint:gosec // настраивается через EX_TLS_SKIP_VERIFY
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-сертификатов", authCfg.CACertPath)
		}
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовой keyfunc.
// Используется в тестах для подстановки JWKS из памяти.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, проверяет подпись (RS256) и exp/nbf,
// помещает sub и user_type в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Authorization header is required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Authorization header must be: Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Bearer token is empty")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Invalid or expired token")
				return
			}
			if !token.Valid {
				apierrors.Unauthorized(w, "Invalid token")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyUserType, claims.UserType())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUserType возвращает middleware, пропускающий только пользователей
// указанного типа. Иначе - 403 Forbidden.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireUserType(userType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserTypeFromContext(r.Context()) != userType {
				apierrors.Forbidden(w, "Access denied: "+userType+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если sub не найден.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// UserTypeFromContext извлекает user_type из контекста запроса.
func UserTypeFromContext(ctx context.Context) string {
	userType, _ := ctx.Value(ContextKeyUserType).(string)
	return userType
}
