package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/juju/errors"
)

// Gate authorizes requests against a single static bearer token.
type Gate struct {
	Token string
}

// Authorize allows exactly the configured token. An empty configured
// token allows nothing.
func (g Gate) Authorize(presented string) error {
	if presented == "" {
		return errors.Unauthorizedf("missing bearer token")
	}
	if g.Token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(g.Token)) != 1 {
		return errors.Unauthorizedf("invalid or expired token")
	}
	return nil
}

// Bearer extracts the credential from an "Authorization: Bearer <token>"
// header value. Anything else yields "".
func Bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return token
}

// RequireBearer rejects requests the gate does not authorize with a 401
// and a Bearer challenge; next is never called for them.
func (g Gate) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Authorize(Bearer(r.Header.Get("Authorization"))); err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
