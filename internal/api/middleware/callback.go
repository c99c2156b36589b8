package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/code-brew-house/brewy-backend/internal/api/response"
)

const webhookSecretHeader = "X-Webhook-Secret"

// CallbackAuth authenticates workflow-engine callbacks with a shared secret
// header. With no secret configured the check is skipped entirely.
type CallbackAuth struct {
	secret string
}

// NewCallbackAuth creates a CallbackAuth middleware.
func NewCallbackAuth(secret string) *CallbackAuth {
	return &CallbackAuth{secret: secret}
}

// Verify rejects requests whose shared-secret header does not match before
// they reach the reconciler.
func (c *CallbackAuth) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.secret != "" {
			provided := r.Header.Get(webhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(c.secret)) != 1 {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_SECRET", "Webhook secret mismatch", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
