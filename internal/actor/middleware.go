package actor

import (
	"log/slog"
	"net/http"
	"strings"

	"caredesk/pkg/requestcontext"
)

// Gateway headers honoured when headers are trusted.
const (
	HeaderRole       = "X-Actor-Role"
	HeaderBranchID   = "X-Branch-ID"
	HeaderBranchName = "X-Branch-Name"
	HeaderSubject    = "X-Actor-Subject"
)

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(tokenString string) (Context, error)
}

type middlewareConfig struct {
	trustHeaders bool
	logger       *slog.Logger
}

type MiddlewareOption func(*middlewareConfig)

// WithTrustedHeaders accepts actor headers injected by the upstream gateway.
// Only for deployments where the gateway strips these headers from clients.
func WithTrustedHeaders(trusted bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.trustHeaders = trusted
	}
}

func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = logger
	}
}

// Middleware resolves the actor for each request and stores it in the request
// context. It never rejects: a missing or invalid credential yields Anonymous
// and the service decides.
func Middleware(verifier TokenVerifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := resolve(r, verifier, cfg)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), a)))
		})
	}
}

func resolve(r *http.Request, verifier TokenVerifier, cfg *middlewareConfig) Context {
	ctx := r.Context()
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && verifier != nil {
		a, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			cfg.logger.WarnContext(ctx, "actor token rejected",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			return Anonymous
		}
		return a
	}
	if !cfg.trustHeaders {
		return Anonymous
	}
	role := strings.TrimSpace(r.Header.Get(HeaderRole))
	if role == "" {
		return Anonymous
	}
	a, err := fromClaims(
		strings.ToLower(role),
		strings.TrimSpace(r.Header.Get(HeaderBranchID)),
		strings.TrimSpace(r.Header.Get(HeaderBranchName)),
		strings.TrimSpace(r.Header.Get(HeaderSubject)),
	)
	if err != nil {
		cfg.logger.WarnContext(ctx, "actor headers rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return Anonymous
	}
	return a
}
