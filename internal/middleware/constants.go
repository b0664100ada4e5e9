package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderOrigin is the Origin header name.
	HeaderOrigin = "Origin"

	// HeaderVary is the Vary header name.
	HeaderVary = "Vary"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXRateLimitLimit is the X-RateLimit-Limit header name.
	HeaderXRateLimitLimit = "X-RateLimit-Limit"

	// HeaderXRateLimitRemaining is the X-RateLimit-Remaining header name.
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderXRateLimitReset is the X-RateLimit-Reset header name.
	HeaderXRateLimitReset = "X-RateLimit-Reset"
)

// CORS header constants.
const (
	HeaderACAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderACAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderACAllowMethods     = "Access-Control-Allow-Methods"
	HeaderACMaxAge           = "Access-Control-Max-Age"
	HeaderACRequestMethod    = "Access-Control-Request-Method"
	HeaderACRequestHeaders   = "Access-Control-Request-Headers"
)

// ContentTypeJSON is the JSON content type.
const ContentTypeJSON = "application/json"

// Error response constants.
const (
	// ErrRateLimitExceeded is the error message for rate limit exceeded.
	ErrRateLimitExceeded = `{"error":"rate limit exceeded"}`

	// ErrCSRFInvalid is the error message for a missing or forged CSRF token.
	ErrCSRFInvalid = `{"error":"forbidden","message":"invalid csrf token"}`

	// ErrOriginNotAllowed is the error message for a rejected CORS preflight.
	ErrOriginNotAllowed = `{"error":"forbidden","message":"origin not allowed"}`

	// ErrInternalServerError is the error message for internal server error.
	ErrInternalServerError = `{"error":"internal server error"}`
)
