package cors

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header names handled by the policy engine.
const (
	// HeaderAllowHeaders is the Access-Control-Allow-Headers response header.
	HeaderAllowHeaders = "Access-Control-Allow-Headers"

	// HeaderExposeHeaders is the Access-Control-Expose-Headers response header.
	HeaderExposeHeaders = "Access-Control-Expose-Headers"

	// HeaderRequestHeaders is the Access-Control-Request-Headers preflight header.
	HeaderRequestHeaders = "Access-Control-Request-Headers"
)

// Wildcard is the value that allows or exposes any header.
const Wildcard = "*"

// valueSep separates elements of a list-based header value.
const valueSep = ","

// joinHeaders joins names with commas in the order given.
// It reports false when names is empty.
func joinHeaders(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	return strings.Join(names, valueSep), true
}

// ValidHeaderName reports whether name is a valid HTTP header field name.
func ValidHeaderName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}
