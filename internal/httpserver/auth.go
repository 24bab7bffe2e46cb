// internal/httpserver/auth.go
//
// Operator authentication for session control. There are no user accounts:
// operators hold a token minted from the shared session secret (SignToken,
// also used by the ops CLI), and requireAuth checks it on the protected
// routes.

package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const operatorRole = "operator"

// SignToken mints an operator token for session control.
func SignToken(secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": operatorRole,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// requireAuth enforces a valid operator token on the wrapped routes.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerOrCookie(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if role, _ := claims["role"].(string); role != operatorRole {
			writeError(w, http.StatusForbidden, "wrong role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerOrCookie pulls the token from the Authorization header or the
// session cookie.
func bearerOrCookie(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}
