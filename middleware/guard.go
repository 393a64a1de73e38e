package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AccessVerifier validates an access credential and returns its subject.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (string, error)
}

type subjectContextKey struct{}

// SubjectFromContext returns the subject stored by [Guard].
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok && subject != ""
}

// Guard rejects requests without a valid bearer access credential. Every
// failure is an opaque 401.
func Guard(verifier AccessVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			subject, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				if log != nil {
					log.Debug("access credential rejected", zap.Error(err))
				}
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
