// JWKS Mock Server - издатель токенов для локального запуска Export Module.
// Генерирует RSA ключевую пару при старте, отдаёт JWKS по GET /jwks
// и подписывает JWT с sub и user_type по POST /token.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/queenofscience/export-module/internal/api/errors"
)

const keyID = "jwks-mock-1"

// mockConfig - параметры из env-переменных.
type mockConfig struct {
	Port    string // MOCK_PORT - порт HTTP-сервера (default: 8081)
	TLSCert string // MOCK_TLS_CERT - путь к TLS сертификату (пусто - HTTP)
	TLSKey  string // MOCK_TLS_KEY - путь к TLS приватному ключу
	KeySize int    // MOCK_KEY_SIZE - размер RSA ключа (default: 2048)
}

func loadConfig() mockConfig {
	cfg := mockConfig{
		Port:    os.Getenv("MOCK_PORT"),
		TLSCert: os.Getenv("MOCK_TLS_CERT"),
		TLSKey:  os.Getenv("MOCK_TLS_KEY"),
		KeySize: 2048,
	}
	if cfg.Port == "" {
		cfg.Port = "8081"
	}
	if v := os.Getenv("MOCK_KEY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size >= 1024 {
			cfg.KeySize = size
		}
	}
	return cfg
}

// jwksKey - ключ JWKS (RFC 7517).
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

// tokenRequest - тело POST /token.
type tokenRequest struct {
	Sub        string `json:"sub"`
	UserType   string `json:"user_type"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// mockClaims - claims, которые принимает JWT middleware Export Module.
type mockClaims struct {
	jwt.RegisteredClaims
	UserType string `json:"user_type"`
}

// issuer хранит ключ и готовый JSON JWKS.
type issuer struct {
	privateKey *rsa.PrivateKey
	jwks       []byte
	now        func() time.Time
	logger     *slog.Logger
}

func newIssuer(keySize int, logger *slog.Logger) (*issuer, error) {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("генерация RSA ключа: %w", err)
	}
	jwks, err := json.Marshal(jwksResponse{Keys: []jwksKey{{
		Kty: "RSA",
		Kid: keyID,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}})
	if err != nil {
		return nil, fmt.Errorf("сериализация JWKS: %w", err)
	}
	return &issuer{privateKey: key, jwks: jwks, now: time.Now, logger: logger}, nil
}

func (s *issuer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/jwks", s.handleJWKS)
	r.Post("/token", s.handleToken)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}

func (s *issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.jwks)
}

func (s *issuer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Invalid JSON: "+err.Error())
		return
	}
	if req.Sub == "" {
		apierrors.ValidationError(w, "Field 'sub' is required")
		return
	}
	if req.UserType == "" {
		req.UserType = "Member"
	}
	ttl := req.TTLSeconds
	if ttl <= 0 {
		ttl = 3600
	}

	now := s.now()
	expiresAt := now.Add(time.Duration(ttl) * time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mockClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Sub,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "jwks-mock",
		},
		UserType: req.UserType,
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		s.logger.Error("Ошибка подписи JWT", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Failed to sign token")
		return
	}

	s.logger.Info("Токен выдан",
		slog.String("sub", req.Sub),
		slog.String("user_type", req.UserType),
		slog.Int("ttl_seconds", ttl),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func main() {
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	logger.Info("Генерация RSA ключевой пары", slog.Int("key_size", cfg.KeySize))
	iss, err := newIssuer(cfg.KeySize, logger)
	if err != nil {
		logger.Error("Ошибка инициализации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           iss.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		logger.Info("Запуск JWKS Mock Server (HTTPS)", slog.String("addr", srv.Addr))
		err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		logger.Info("Запуск JWKS Mock Server (HTTP)", slog.String("addr", srv.Addr))
		err = srv.ListenAndServe()
	}
	if err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
