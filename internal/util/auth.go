package util

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth protects endpoints using Bearer JWT (HS256). An empty secret
// leaves the endpoints open for local development.
func JWTAuth(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := readBearer(r)
			if tok == "" {
				Error(w, http.StatusUnauthorized, "missing token")
				return
			}
			_, err := parser.Parse(tok, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func readBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}
