package csrf

import (
	"net/http"
	"time"
)

// SecretStore persists the secret half of a pair on the client.
type SecretStore interface {
	// Load returns the secret sent with the request.
	Load(r *http.Request) ([]byte, bool)

	// Save sends secret to the client.
	Save(w http.ResponseWriter, secret []byte)
}

// CookieStore keeps the secret in a cookie.
type CookieStore struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

var _ SecretStore = (*CookieStore)(nil)

// NewCookieStore returns a cookie store with secure defaults.
func NewCookieStore() *CookieStore {
	return &CookieStore{
		Name:     DefaultCookieName,
		Path:     "/",
		MaxAge:   24 * time.Hour,
		Secure:   true,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Load implements SecretStore.
func (s *CookieStore) Load(r *http.Request) ([]byte, bool) {
	c, err := r.Cookie(s.cookieName())
	if err != nil {
		return nil, false
	}
	return decodeValue(c.Value)
}

// Save implements SecretStore.
func (s *CookieStore) Save(w http.ResponseWriter, secret []byte) {
	path := s.Path
	if path == "" {
		path = "/"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    Encode(secret),
		Path:     path,
		Domain:   s.Domain,
		MaxAge:   int(s.MaxAge.Seconds()),
		Secure:   s.Secure,
		HttpOnly: s.HTTPOnly,
		SameSite: s.SameSite,
	})
}

func (s *CookieStore) cookieName() string {
	if s.Name == "" {
		return DefaultCookieName
	}
	return s.Name
}
