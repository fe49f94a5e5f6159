package middleware

import (
	"context"
	"net/http"
	"strings"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/rbac"
)

type payloadContextKey struct{}

// PayloadFromContext returns the validated access-token payload injected by
// [Guard].
func PayloadFromContext(ctx context.Context) (*authcore.AccessTokenPayload, bool) {
	p, ok := ctx.Value(payloadContextKey{}).(*authcore.AccessTokenPayload)
	return p, ok
}

// Guard validates the bearer access token and passes its payload to the
// wrapped handler through the request context. Missing, malformed, and
// invalid tokens all answer 401.
func Guard(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := engine.ValidateAccessToken(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), payloadContextKey{}, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission is [Guard] followed by a policy check: the token's role
// must hold the given action on the given resource or the request answers
// 403.
func RequirePermission(engine *authcore.Engine, resource rbac.Resource, action rbac.Action) func(http.Handler) http.Handler {
	guard := Guard(engine)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := PayloadFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if err := engine.Authorize(r.Context(), payload.Subject, payload.Role, resource, action); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}))
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
