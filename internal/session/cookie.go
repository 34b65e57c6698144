package session

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "triplan"

// CookieStore keeps the user id in an HS256-signed token inside the cookie.
type CookieStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCookieStore(secret string, ttl time.Duration) *CookieStore {
	return &CookieStore{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, userID int64) error {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	setCookie(w, token, s.ttl)
	return nil
}

func (s *CookieStore) UserID(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return 0, false
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return 0, false
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) {
	expireCookie(w)
}
