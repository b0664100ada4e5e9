package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/cors"
	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// CORS request types used as metric labels.
const (
	corsTypeNone              = "none"
	corsTypeActual            = "actual"
	corsTypeDisallowed        = "disallowed"
	corsTypePreflight         = "preflight"
	corsTypePreflightRejected = "preflight_rejected"
)

// defaultAllowMethods is used when no methods are configured.
var defaultAllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     cors.AllowHeaders
	ExposeHeaders    cors.ExposeHeaders
	AllowCredentials bool
	MaxAge           int
	Logger           observability.Logger
}

// DefaultCORSConfig returns default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: defaultAllowMethods,
		AllowHeaders: cors.AllowHeadersList("Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"),
		MaxAge:       86400,
	}
}

// corsPolicy holds the pre-computed parts of a CORS configuration.
type corsPolicy struct {
	allowOrigins     map[string]bool
	wildcardPatterns []string
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     cors.AllowHeaders
	exposeHeaders    cors.ExposeHeaders
	maxAge           string
	allowCredentials bool
	logger           observability.Logger
}

// newCORSPolicy pre-computes cfg. With credentials enabled a literal "*"
// is not honored by browsers, so wildcard header policies are replaced:
// allow headers mirror the request and expose headers are dropped.
func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	p := &corsPolicy{
		allowOrigins:     make(map[string]bool),
		allowHeaders:     cfg.AllowHeaders,
		exposeHeaders:    cfg.ExposeHeaders,
		allowCredentials: cfg.AllowCredentials,
		logger:           logger,
	}

	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			p.allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			p.wildcardPatterns = append(p.wildcardPatterns, origin)
		default:
			p.allowOrigins[origin] = true
		}
	}

	methods := cfg.AllowMethods
	if len(methods) == 0 {
		methods = defaultAllowMethods
	}
	p.allowMethods = strings.Join(methods, ", ")

	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	if cfg.AllowCredentials {
		if p.allowHeaders.IsWildcard() {
			logger.Info("credentialed CORS: mirroring request headers instead of wildcard allow headers")
			p.allowHeaders = cors.MirrorRequestHeaders()
		}
		if p.exposeHeaders.IsWildcard() {
			logger.Info("credentialed CORS: wildcard expose headers disabled")
			p.exposeHeaders = cors.ExposeHeaders{}
		}
	}

	return p
}

// isOriginAllowed checks if the given origin is allowed.
func (p *corsPolicy) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAllOrigins || p.allowOrigins[origin] {
		return true
	}
	for _, pattern := range p.wildcardPatterns {
		if matchWildcardOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchWildcardOrigin reports whether origin's host is a strict subdomain
// of a "*.example.com" pattern.
func matchWildcardOrigin(origin, pattern string) bool {
	suffix, ok := strings.CutPrefix(pattern, "*")
	if !ok {
		return false
	}

	host := origin
	if _, rest, found := strings.Cut(host, "://"); found {
		host = rest
	}
	if i := strings.LastIndexByte(host, ':'); i != -1 {
		host = host[:i]
	}

	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

// allowOriginValue is the Access-Control-Allow-Origin value for an allowed
// origin. The origin is echoed unless any origin may read the response
// without credentials.
func (p *corsPolicy) allowOriginValue(origin string) string {
	if p.allowAllOrigins && !p.allowCredentials {
		return "*"
	}
	return origin
}

func (p *corsPolicy) handleNonCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	if !p.allowAllOrigins || p.allowCredentials {
		h.Add(HeaderVary, HeaderOrigin)
		return
	}
	h.Set(HeaderACAllowOrigin, "*")
	if name, value, ok := p.exposeHeaders.Resolve(r.Context(), "", r); ok {
		h.Set(name, value)
	}
}

func (p *corsPolicy) handleActual(w http.ResponseWriter, r *http.Request, origin string) bool {
	h := w.Header()
	h.Add(HeaderVary, HeaderOrigin)

	if !p.isOriginAllowed(origin) {
		return false
	}

	h.Set(HeaderACAllowOrigin, p.allowOriginValue(origin))
	if p.allowCredentials {
		h.Set(HeaderACAllowCredentials, "true")
	}
	if name, value, ok := p.exposeHeaders.Resolve(r.Context(), origin, r); ok {
		h.Set(name, value)
	}
	return true
}

func (p *corsPolicy) handlePreflight(w http.ResponseWriter, r *http.Request, origin string) bool {
	h := w.Header()
	h.Add(HeaderVary, HeaderOrigin)
	h.Add(HeaderVary, HeaderACRequestMethod)
	h.Add(HeaderVary, HeaderACRequestHeaders)

	if !p.isOriginAllowed(origin) {
		return false
	}

	h.Set(HeaderACAllowOrigin, p.allowOriginValue(origin))
	if p.allowCredentials {
		h.Set(HeaderACAllowCredentials, "true")
	}
	h.Set(HeaderACAllowMethods, p.allowMethods)
	if name, value, ok := p.allowHeaders.Resolve(r.Context(), origin, r); ok {
		h.Set(name, value)
	}
	if p.maxAge != "" {
		h.Set(HeaderACMaxAge, p.maxAge)
	}
	return true
}

// isPreflight reports whether r is a CORS preflight request.
func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get(HeaderACRequestMethod) != ""
}

// CORS returns a middleware that handles CORS. Preflight requests are
// answered directly and never reach next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)
	metrics := GetMiddlewareMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get(HeaderOrigin)

			switch {
			case origin == "":
				metrics.corsRequestsTotal.WithLabelValues(corsTypeNone).Inc()
				p.handleNonCORS(w, r)

			case isPreflight(r):
				if !p.handlePreflight(w, r, origin) {
					metrics.corsRequestsTotal.WithLabelValues(corsTypePreflightRejected).Inc()
					observability.AddSpanEvent(r.Context(), "cors.preflight_rejected",
						attribute.String("cors.origin", origin),
					)
					p.logger.WithContext(r.Context()).Debug("CORS preflight rejected",
						observability.String("origin", origin),
					)
					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusForbidden)
					_, _ = io.WriteString(w, ErrOriginNotAllowed)
					return
				}
				metrics.corsRequestsTotal.WithLabelValues(corsTypePreflight).Inc()
				w.WriteHeader(http.StatusNoContent)
				return

			default:
				if p.handleActual(w, r, origin) {
					metrics.corsRequestsTotal.WithLabelValues(corsTypeActual).Inc()
				} else {
					metrics.corsRequestsTotal.WithLabelValues(corsTypeDisallowed).Inc()
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSFromConfig creates CORS middleware from configuration. CEL header
// policies are compiled here, so an invalid expression is an error.
func CORSFromConfig(cfg *config.CORSConfig, logger observability.Logger) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		c := DefaultCORSConfig()
		c.Logger = logger
		return CORS(c), nil
	}

	allowHeaders, err := AllowHeadersFromConfig(cfg.AllowHeaders, logger)
	if err != nil {
		return nil, err
	}
	exposeHeaders, err := ExposeHeadersFromConfig(cfg.ExposeHeaders, logger)
	if err != nil {
		return nil, err
	}

	c := CORSConfig{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     allowHeaders,
		ExposeHeaders:    exposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
		Logger:           logger,
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}

	return CORS(c), nil
}

// AllowHeadersFromConfig builds the Access-Control-Allow-Headers policy.
func AllowHeadersFromConfig(h config.HeaderPolicyConfig, logger observability.Logger) (cors.AllowHeaders, error) {
	switch h.EffectiveMode() {
	case config.HeaderModeAny:
		return cors.AnyAllowHeaders(), nil
	case config.HeaderModeList:
		return cors.AllowHeadersList(h.Headers...), nil
	case config.HeaderModeMirror:
		return cors.MirrorRequestHeaders(), nil
	case config.HeaderModeCEL:
		d, err := newHeaderDecider(h, logger)
		if err != nil {
			return cors.AllowHeaders{}, err
		}
		return cors.AllowHeadersFunc(d), nil
	default:
		return cors.AllowHeaders{}, nil
	}
}

// ExposeHeadersFromConfig builds the Access-Control-Expose-Headers policy.
func ExposeHeadersFromConfig(h config.HeaderPolicyConfig, logger observability.Logger) (cors.ExposeHeaders, error) {
	switch h.EffectiveMode() {
	case config.HeaderModeAny:
		return cors.AnyExposeHeaders(), nil
	case config.HeaderModeList:
		return cors.ExposeHeadersList(h.Headers...), nil
	case config.HeaderModeCEL:
		d, err := newHeaderDecider(h, logger)
		if err != nil {
			return cors.ExposeHeaders{}, err
		}
		return cors.ExposeHeadersFunc(d), nil
	default:
		return cors.ExposeHeaders{}, nil
	}
}

func newHeaderDecider(h config.HeaderPolicyConfig, logger observability.Logger) (*cors.CELDecider, error) {
	opts := []cors.CELDeciderOption{cors.WithFallback(h.Default)}
	if logger != nil {
		opts = append(opts, cors.WithDeciderLogger(logger))
	}
	return cors.NewCELDecider(h.Expression, opts...)
}
