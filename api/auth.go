/*
auth.go - Caller attestation at the HTTP boundary

PURPOSE:
  The engine only compares identities; proving that a request really comes
  from a given identity is this layer's job. Callers present an HS256
  bearer token whose "sub" claim is their identity. The middleware verifies
  the signature and stashes the identity in the request context.

DEV MODE:
  With no secret configured, tokens are not required and the caller is
  taken from the X-Caller-ID header. Never run production this way.

SEE ALSO:
  - handlers.go: Handlers read the caller via CallerFrom
  - ledger/authority.go: The identity-equality check this layer feeds
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lypto/reward-engine/ledger"
)

type callerKey struct{}

// Authenticator resolves the caller identity for each request.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator. An empty secret enables dev
// mode (X-Caller-ID header, no signature check).
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return &Authenticator{}
	}
	return &Authenticator{secret: []byte(secret)}
}

// Middleware attaches the attested caller identity to the request context.
// Requests without a resolvable identity pass through with no caller;
// handlers that need one reject them.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.resolve(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", err)
			return
		}
		if caller != "" {
			r = r.WithContext(context.WithValue(r.Context(), callerKey{}, caller))
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFrom returns the attested caller identity, empty if anonymous.
func CallerFrom(ctx context.Context) ledger.Identity {
	caller, _ := ctx.Value(callerKey{}).(ledger.Identity)
	return caller
}

func (a *Authenticator) resolve(r *http.Request) (ledger.Identity, error) {
	authHeader := r.Header.Get("Authorization")

	if len(a.secret) == 0 {
		// Dev mode: trust the header.
		return ledger.Identity(r.Header.Get("X-Caller-ID")), nil
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", nil // anonymous
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return ledger.Identity(sub), nil
}

// SignToken mints a token for an identity. Used by tests and tooling.
func SignToken(secret, subject string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject})
	return tok.SignedString([]byte(secret))
}
