package auth

import (
	"net/http"
	"strings"
	"time"
)

const CookieName = "auth_token"

// Middleware resolves the request principal from a bearer token or the auth
// cookie. Requests without credentials pass through anonymously; handlers
// decide whether a principal is required.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, fromCookie := tokenFromRequest(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, exp, err := a.ParseToken(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		// Sliding session: refresh the cookie once it is past half its lifetime.
		if fromCookie && !exp.IsZero() && exp.Sub(a.now()) < TokenDuration/2 {
			if newToken, err := a.GenerateToken(principal); err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    newToken,
					Expires:  time.Now().Add(TokenDuration),
					HttpOnly: true,
					Path:     "/",
				})
			}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func tokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest), false
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}
