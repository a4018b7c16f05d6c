// Пакет authtest - RSA ключи, JWKS и подписанные токены для тестов.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// KeyID - идентификатор тестового ключа.
const KeyID = "test-key"

// Issuer - тестовый ключ и keyfunc для его JWKS.
type Issuer struct {
	Key     *rsa.PrivateKey
	Keyfunc keyfunc.Keyfunc
}

// NewIssuer генерирует RSA ключ и keyfunc из JWKS с его публичной частью.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("генерация RSA ключа: %v", err)
	}
	kf, err := keyfunc.NewJWKSetJSON(JWKSetJSON(&key.PublicKey, KeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc из JWKS JSON: %v", err)
	}
	return &Issuer{Key: key, Keyfunc: kf}
}

// JWKSetJSON строит JWKS JSON из RSA публичного ключа.
func JWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// Sign подписывает произвольные claims ключом издателя.
func (i *Issuer) Sign(t testing.TB, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID
	s, err := token.SignedString(i.Key)
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return s
}

// Token выдаёт действующий час токен с sub и user_type.
func (i *Issuer) Token(t testing.TB, subject, userType string) string {
	t.Helper()
	now := time.Now()
	return i.Sign(t, jwt.MapClaims{
		"sub":       subject,
		"user_type": userType,
		"iat":       now.Unix(),
		"nbf":       now.Add(-time.Minute).Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	})
}
