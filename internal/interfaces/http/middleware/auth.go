package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dreschagin/risk-dashboard/pkg/logger"
)

// ErrUnauthorized общая причина отказа; конкретные причины оборачивают ее
var ErrUnauthorized = errors.New("unauthorized")

var (
	errTokenNotConfigured = authError("token not configured")
	errMissingToken       = authError("missing token")
	errInvalidToken       = authError("invalid token")
)

type reasonError struct{ reason string }

func authError(reason string) error { return &reasonError{reason: reason} }

func (e *reasonError) Error() string        { return "unauthorized: " + e.reason }
func (e *reasonError) Is(target error) bool { return target == ErrUnauthorized }

type AuthConfig struct {
	Enabled     bool
	BearerToken string
	// OnFailure вызывается на каждый отказ (метрики), может быть nil
	OnFailure func()
}

// openPaths доступны без токена: пробы kubelet и scrape Prometheus
var openPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// Auth проверяет статический Bearer token на всех путях, кроме openPaths
func Auth(cfg AuthConfig, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, open := openPaths[r.URL.Path]; open {
				next.ServeHTTP(w, r)
				return
			}

			err := ValidateRequestAuth(r, cfg)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.OnFailure != nil {
				cfg.OnFailure()
			}
			log.Warn("Unauthorized request",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
				"reason", err.Error(),
			)
			rejectUnauthorized(w)
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="risk-dashboard"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

// ValidateRequestAuth возвращает ошибку, совместимую с errors.Is(err, ErrUnauthorized)
func ValidateRequestAuth(r *http.Request, cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	expected := strings.TrimSpace(cfg.BearerToken)
	if expected == "" {
		return errTokenNotConfigured
	}

	token := requestToken(r)
	if token == "" {
		return errMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errInvalidToken
	}
	return nil
}

// requestToken берет токен из Authorization; на /ws допускается ?token=,
// потому что браузерный WebSocket API не умеет задавать заголовки
func requestToken(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if r.URL.Path == "/ws" {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}
