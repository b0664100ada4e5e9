// Package middleware provides the HTTP middleware chain of avaguard.
//
// # Middleware Components
//
//   - CORS: origin allow-list, preflight handling and the Allow/Expose
//     header policies from the cors package
//   - CSRF: stateless AEAD token pairs from the csrf package
//   - Rate Limiting: per-key quota checks against a ratelimit store
//   - Request ID, Logging, Recovery: request plumbing
//   - Client IP: trusted proxy-aware client IP extraction
//
// # Usage
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.CORS(corsCfg)(
//	            middleware.RateLimit(rlCfg)(
//	                middleware.CSRF(csrfCfg)(yourHandler),
//	            ),
//	        ),
//	    ),
//	)
package middleware
