package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/csrf"
	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// CSRF verification results used as metric labels.
const (
	csrfResultValid         = "valid"
	csrfResultMissingSecret = "missing_secret"
	csrfResultMissingToken  = "missing_token"
	csrfResultMismatch      = "mismatch"
)

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	// Cipher produces and verifies token/secret pairs.
	Cipher csrf.Cipher

	// Store carries the secret to and from the client.
	// Defaults to csrf.NewCookieStore().
	Store csrf.SecretStore

	// Finder locates the submitted token on unsafe requests.
	// Defaults to the X-CSRF-Token header, then the csrf_token form field.
	Finder csrf.TokenFinder

	// HeaderName is the response header that carries the token on safe
	// requests. Empty disables the header.
	HeaderName string

	Logger observability.Logger
}

// isSafeMethod reports whether method cannot change server state.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// CSRF returns a middleware implementing the synchronizer token pattern
// with a stateless AEAD pair. Safe requests receive a token (reusing the
// pair from the request's secret when the cipher can reveal it); unsafe
// requests must present a token sealed in their secret or get a 403.
// The request's token is available to handlers via csrf.TokenFromContext.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.Cipher == nil {
		panic("middleware: CSRF requires a cipher")
	}
	if cfg.Store == nil {
		cfg.Store = csrf.NewCookieStore()
	}
	if cfg.Finder == nil {
		cfg.Finder = csrf.ChainFinder{csrf.HeaderFinder{}, csrf.FormFinder{}}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	revealer, _ := cfg.Cipher.(csrf.Revealer)
	metrics := GetMiddlewareMetrics()

	issue := func(w http.ResponseWriter, r *http.Request) ([]byte, error) {
		if secret, ok := cfg.Store.Load(r); ok && revealer != nil {
			if token, ok := revealer.Reveal(secret); ok && len(token) >= csrf.MinTokenSize {
				metrics.csrfTokensIssued.WithLabelValues("reused").Inc()
				return token, nil
			}
		}

		token, secret, err := cfg.Cipher.Generate()
		if err != nil {
			return nil, err
		}
		cfg.Store.Save(w, secret)
		metrics.csrfTokensIssued.WithLabelValues("generated").Inc()
		return token, nil
	}

	verify := func(r *http.Request) ([]byte, string) {
		secret, ok := cfg.Store.Load(r)
		if !ok {
			return nil, csrfResultMissingSecret
		}
		token, ok := cfg.Finder.Find(r)
		if !ok {
			return nil, csrfResultMissingToken
		}
		if !cfg.Cipher.Verify(token, secret) {
			return nil, csrfResultMismatch
		}
		return token, csrfResultValid
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token, err := issue(w, r)
				if err != nil {
					cfg.Logger.WithContext(r.Context()).Error("failed to generate csrf token",
						observability.Error(err),
					)
					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = io.WriteString(w, ErrInternalServerError)
					return
				}

				encoded := csrf.Encode(token)
				if cfg.HeaderName != "" {
					w.Header().Set(cfg.HeaderName, encoded)
				}
				next.ServeHTTP(w, r.WithContext(csrf.NewContext(r.Context(), encoded)))
				return
			}

			token, result := verify(r)
			metrics.csrfVerifications.WithLabelValues(result).Inc()

			if result != csrfResultValid {
				observability.AddSpanEvent(r.Context(), "csrf.rejected",
					attribute.String("csrf.result", result),
				)
				cfg.Logger.WithContext(r.Context()).Warn("csrf verification failed",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("result", result),
				)
				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, ErrCSRFInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(csrf.NewContext(r.Context(), csrf.Encode(token))))
		})
	}
}

// NewCipherFromConfig builds the cipher named by cfg around key.
func NewCipherFromConfig(cfg *config.CSRFConfig, key [csrf.KeySize]byte) (csrf.Cipher, error) {
	var opts []csrf.Option
	if cfg.TokenSize != 0 {
		if cfg.TokenSize < csrf.MinTokenSize {
			return nil, fmt.Errorf("csrf token size must be at least %d, got %d", csrf.MinTokenSize, cfg.TokenSize)
		}
		opts = append(opts, csrf.WithTokenSize(cfg.TokenSize))
	}

	switch strings.ToLower(cfg.Cipher) {
	case "", "ccp":
		return csrf.NewCCPCipher(key, opts...), nil
	case "aesgcm":
		return csrf.NewAESGCMCipher(key, opts...), nil
	default:
		return nil, fmt.Errorf("unknown csrf cipher: %s", cfg.Cipher)
	}
}

// NewCookieStoreFromConfig builds the secret cookie store. Secure and
// HttpOnly default to true.
func NewCookieStoreFromConfig(cfg config.CookieConfig) *csrf.CookieStore {
	s := csrf.NewCookieStore()
	if cfg.Name != "" {
		s.Name = cfg.Name
	}
	if cfg.Path != "" {
		s.Path = cfg.Path
	}
	s.Domain = cfg.Domain
	if cfg.MaxAge > 0 {
		s.MaxAge = cfg.MaxAge.Duration()
	}
	if cfg.Secure != nil {
		s.Secure = *cfg.Secure
	}
	if cfg.HTTPOnly != nil {
		s.HTTPOnly = *cfg.HTTPOnly
	}
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		s.SameSite = http.SameSiteStrictMode
	case "none":
		s.SameSite = http.SameSiteNoneMode
	case "lax":
		s.SameSite = http.SameSiteLaxMode
	}
	return s
}

// CSRFFromConfig creates CSRF middleware from configuration and a key
// loaded by the caller.
func CSRFFromConfig(
	cfg *config.CSRFConfig,
	key [csrf.KeySize]byte,
	logger observability.Logger,
) (func(http.Handler) http.Handler, error) {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	cipher, err := NewCipherFromConfig(cfg, key)
	if err != nil {
		return nil, err
	}

	return CSRF(CSRFConfig{
		Cipher: cipher,
		Store:  NewCookieStoreFromConfig(cfg.Cookie),
		Finder: csrf.ChainFinder{
			csrf.HeaderFinder{Name: cfg.HeaderName},
			csrf.FormFinder{Field: cfg.FormField},
		},
		HeaderName: cfg.HeaderName,
		Logger:     logger,
	}), nil
}
