package guard

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName carries the signed session reference.
	SessionCookieName = "cvgen_session"
	// StateCookieName carries the OAuth state between login and callback.
	StateCookieName = "cvgen_oauth_state"

	stateTTL   = 10 * time.Minute
	stateBytes = 16
	statePath  = "/auth/"
)

// ErrInvalidCookie is returned when a session cookie is missing, forged or expired.
var ErrInvalidCookie = errors.New("invalid session cookie")

// CookiePolicy decides the attributes of cookies the relay sets.
type CookiePolicy struct {
	// Production forces Secure on every cookie.
	Production bool
	// CrossSite sends the session cookie with SameSite=None for a frontend
	// on another site. It always implies Secure.
	CrossSite bool
}

func (p CookiePolicy) secure(r *http.Request) bool {
	return p.Production || p.CrossSite || RequestIsSecure(r)
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.CrossSite {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Sessions issues and reads the signed session cookie.
type Sessions struct {
	policy CookiePolicy
	secret []byte
	now    func() time.Time
}

// NewSessions returns a Sessions signing cookie values with secret.
func NewSessions(secret string, policy CookiePolicy) *Sessions {
	return &Sessions{
		policy: policy,
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Encode signs a token referencing sessionID that expires at expiresAt.
func (s *Sessions) Encode(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies value and returns the session ID it references.
func (s *Sessions) Decode(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrInvalidCookie)
	}
	return claims.ID, nil
}

// Issue sets the session cookie for sessionID.
func (s *Sessions) Issue(w http.ResponseWriter, r *http.Request, sessionID string, expiresAt time.Time) error {
	value, err := s.Encode(sessionID, expiresAt)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.policy.secure(r),
		SameSite: s.policy.sameSite(),
		Expires:  expiresAt,
	})
	return nil
}

// SessionID returns the session ID carried by r, or "" when the cookie is
// absent or fails verification.
func (s *Sessions) SessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	id, err := s.Decode(c.Value)
	if err != nil {
		return ""
	}
	return id
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.policy.secure(r),
		SameSite: s.policy.sameSite(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// IssueState generates an OAuth state value and stores it in a short-lived cookie.
// The state cookie is always SameSite=Lax so it survives the provider redirect.
func (s *Sessions) IssueState(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     statePath,
		HttpOnly: true,
		Secure:   s.policy.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL.Seconds()),
	})
	return state, nil
}

// ConsumeState reports whether got matches the state cookie and clears the cookie.
func (s *Sessions) ConsumeState(w http.ResponseWriter, r *http.Request, got string) bool {
	c, err := r.Cookie(StateCookieName)
	if err != nil || c.Value == "" || got == "" {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     statePath,
		HttpOnly: true,
		Secure:   s.policy.secure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(got)) == 1
}
