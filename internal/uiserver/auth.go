package uiserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"stationfleet/internal/config"
)

// authenticate returns a middleware enforcing cfg's mode, grounded on the
// teacher's api-gateway/internal/http/middleware.AuthMiddleware but
// generalized to the two modes SPEC_FULL.md's UIServer section names:
// HTTP Basic and Bearer JWT. An empty Type disables authentication.
func authenticate(cfg config.UIServerAuthConfig) func(http.Handler) http.Handler {
	switch cfg.Type {
	case "basic":
		return basicAuth(cfg.Username, cfg.Password)
	case "jwt":
		return jwtAuth(cfg.JWTSecret)
	default:
		return func(next http.Handler) http.Handler { return next }
	}
}

func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="ui"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jwtAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenInvalidClaims
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || claims["sub"] != "operator" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(r.Context()))
		})
	}
}

// wsAuthorized re-checks the same credentials for the WebSocket upgrade
// path, where there is no per-message Authorization header to re-verify.
func wsAuthorized(cfg config.UIServerAuthConfig, r *http.Request) bool {
	switch cfg.Type {
	case "basic":
		user, pass, ok := r.BasicAuth()
		return ok && subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1 &&
			subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
	case "jwt":
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return false
		}
		token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenInvalidClaims
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return false
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		return ok && claims["sub"] == "operator"
	default:
		return true
	}
}
