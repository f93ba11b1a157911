package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"

	"bookline/internal/config"

	"golang.org/x/time/rate"
)

// APIAuth gates the REST endpoints with API keys and per-client rate
// limiting. The webhook authenticates itself through its HMAC signature and
// healthz/metrics stay open, so only /api/v1/ paths go through here.
type APIAuth struct {
	cfg      config.APIConfig
	header   string
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewAPIAuth(cfg config.APIConfig) *APIAuth {
	header := strings.TrimSpace(cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = "X-API-Key"
	}
	clients := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		clients[k.Key] = k
	}
	return &APIAuth{cfg: cfg, header: header, clients: clients}
}

func (a *APIAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		if len(a.clients) > 0 {
			client, ok := a.authenticate(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing or invalid api key")
				return
			}
			if !a.permitted(client, r) {
				writeError(w, http.StatusForbidden, codeUnauthorized, "api key lacks permission")
				return
			}
		}

		if !a.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *APIAuth) authenticate(r *http.Request) (config.APIClientKey, bool) {
	provided := strings.TrimSpace(r.Header.Get(a.header))
	if provided == "" {
		return config.APIClientKey{}, false
	}
	for key, client := range a.clients {
		if subtle.ConstantTimeCompare([]byte(key), []byte(provided)) == 1 {
			return client, true
		}
	}
	return config.APIClientKey{}, false
}

// permitted checks the path's required permission against the key's list.
// A key with an empty permission list can do everything.
func (a *APIAuth) permitted(client config.APIClientKey, r *http.Request) bool {
	required := requiredPermission(r.URL.Path)
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

func requiredPermission(path string) string {
	if strings.HasPrefix(path, "/api/v1/export/") {
		return "export:appointments"
	}
	return ""
}

func (a *APIAuth) allow(key string) bool {
	if a.cfg.RateLimit.RPS <= 0 {
		return true
	}
	return a.limiter(key).Allow()
}

func (a *APIAuth) limiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	if actual, loaded := a.limiters.LoadOrStore(key, lim); loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (a *APIAuth) clientKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(a.header)); key != "" {
		return key
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return "unknown"
}
