package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/lychee-technology/dataeditor"
)

// newBasicAuth hashes "login:password"; nil means no credentials are configured.
func newBasicAuth(credentials dataeditor.Credentials) *[32]byte {
	if credentials.IsZero() {
		return nil
	}
	sum := sha256.Sum256([]byte(credentials.Login + ":" + credentials.Password))
	return &sum
}

func (s *Server) checkAuth(r *http.Request) bool {
	if s.auth == nil {
		return true
	}
	user, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	given := sha256.Sum256([]byte(user + ":" + password))
	return subtle.ConstantTimeCompare(s.auth[:], given[:]) == 1
}

// requireAuth guards a mutating endpoint.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.checkAuth(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dataeditor"`)
			writeError(w, http.StatusUnauthorized, dataeditor.NewUnauthorizedError().Message)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// readAuth guards a read endpoint unless public reads are enabled.
func (s *Server) readAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.publicReads {
		return next
	}
	return s.requireAuth(next)
}
