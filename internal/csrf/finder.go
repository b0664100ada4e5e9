package csrf

import (
	"encoding/base64"
	"net/http"
)

// Default transport names.
const (
	// DefaultHeaderName is the request header carrying the token.
	DefaultHeaderName = "X-CSRF-Token"

	// DefaultFormField is the form field carrying the token.
	DefaultFormField = "csrf_token"

	// DefaultCookieName is the cookie carrying the secret.
	DefaultCookieName = "_csrf"
)

// Encode returns the wire form of a token or secret.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses the wire form of a token or secret.
func Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// TokenFinder extracts the submitted token from a request.
type TokenFinder interface {
	Find(r *http.Request) ([]byte, bool)
}

// HeaderFinder reads the token from a request header.
type HeaderFinder struct {
	Name string
}

// Find implements TokenFinder.
func (f HeaderFinder) Find(r *http.Request) ([]byte, bool) {
	name := f.Name
	if name == "" {
		name = DefaultHeaderName
	}
	return decodeValue(r.Header.Get(name))
}

// FormFinder reads the token from a url-encoded or multipart form field.
type FormFinder struct {
	Field string
}

// Find implements TokenFinder.
func (f FormFinder) Find(r *http.Request) ([]byte, bool) {
	field := f.Field
	if field == "" {
		field = DefaultFormField
	}
	return decodeValue(r.PostFormValue(field))
}

// ChainFinder tries each finder in order and returns the first token found.
type ChainFinder []TokenFinder

// Find implements TokenFinder.
func (c ChainFinder) Find(r *http.Request) ([]byte, bool) {
	for _, f := range c {
		if token, ok := f.Find(r); ok {
			return token, true
		}
	}
	return nil, false
}

func decodeValue(v string) ([]byte, bool) {
	if v == "" {
		return nil, false
	}
	b, err := Decode(v)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}
