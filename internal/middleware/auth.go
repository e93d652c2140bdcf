package middleware

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"smartlists/internal/logging"
	"smartlists/internal/metrics"
)

// AuthConfig holds configuration for the bearer token middleware
type AuthConfig struct {
	// TokenHash is the bcrypt hash of the API token. Empty disables auth.
	TokenHash string
	// PublicPaths are served without a token.
	PublicPaths []string
}

// DefaultAuthConfig returns a config with the health and version endpoints
// public.
func DefaultAuthConfig(tokenHash string) AuthConfig {
	return AuthConfig{
		TokenHash:   tokenHash,
		PublicPaths: []string{"/health", "/healthz", "/livez", "/readyz", "/version"},
	}
}

// tokenCache remembers digests of tokens that passed bcrypt so each request
// does not pay for a full hash comparison.
type tokenCache struct {
	mu       sync.Mutex
	accepted map[[32]byte]bool
}

const maxCachedTokens = 16

func (c *tokenCache) get(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted[sha256.Sum256([]byte(token))]
}

func (c *tokenCache) put(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.accepted) >= maxCachedTokens {
		clear(c.accepted)
	}
	c.accepted[sha256.Sum256([]byte(token))] = true
}

// BearerAuth returns a middleware requiring "Authorization: Bearer <token>"
// whose token matches config.TokenHash.
func BearerAuth(config AuthConfig) func(http.Handler) http.Handler {
	if config.TokenHash == "" {
		logging.Warn("API token hash not configured; the API is unauthenticated")
		return func(next http.Handler) http.Handler { return next }
	}

	hash := []byte(config.TokenHash)
	cache := &tokenCache{accepted: make(map[[32]byte]bool)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.PublicPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, ok := bearerToken(r)
			if !ok {
				metrics.AuthAttemptsTotal.WithLabelValues("missing").Inc()
				unauthorized(w)
				return
			}
			if !cache.get(token) {
				if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
					metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
					logging.Debug("Rejected API token from %s", sanitizeLogField(getClientIP(r)))
					unauthorized(w)
					return
				}
				cache.put(token)
			}
			metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="smartlists"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
