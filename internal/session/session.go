// Package session remembers which profile a browser belongs to.
package session

import (
	"net/http"
	"time"
)

// CookieName is the cookie carrying the session token or id.
const CookieName = "triplan_session"

// Store resolves and records the user behind a request.
type Store interface {
	UserID(r *http.Request) (int64, bool)
	Save(w http.ResponseWriter, r *http.Request, userID int64) error
	Clear(w http.ResponseWriter, r *http.Request)
}

func setCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
