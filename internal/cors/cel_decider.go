package cors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// CELDecider is a Decider backed by a CEL expression that evaluates to a
// string. The expression can reference:
//
//	origin          string               the Origin header value
//	method          string               the request method
//	path            string               the request path
//	headers         map(string, string)  request headers, lower-cased names
//	requestHeaders  string               Access-Control-Request-Headers
//
// Example:
//
//	origin.endsWith(".example.com") ? "content-type,x-api-key" : "content-type"
type CELDecider struct {
	expression string
	program    cel.Program
	fallback   string
	logger     observability.Logger
}

// CELDeciderOption is a functional option for the CEL decider.
type CELDeciderOption func(*CELDecider)

// WithFallback sets the value returned when evaluation fails.
func WithFallback(value string) CELDeciderOption {
	return func(d *CELDecider) {
		d.fallback = value
	}
}

// WithDeciderLogger sets the logger used to report evaluation errors.
func WithDeciderLogger(logger observability.Logger) CELDeciderOption {
	return func(d *CELDecider) {
		d.logger = logger
	}
}

// NewCELDecider compiles expression into a decider.
func NewCELDecider(expression string, opts ...CELDeciderOption) (*CELDecider, error) {
	env, err := cel.NewEnv(
		cel.Variable("origin", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("requestHeaders", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.StringType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must evaluate to a string, got %s", out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	d := &CELDecider{
		expression: expression,
		program:    program,
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Decide implements Decider.
func (d *CELDecider) Decide(ctx context.Context, origin string, r *http.Request) string {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, valueSep)
	}

	result, _, err := d.program.ContextEval(ctx, map[string]interface{}{
		"origin":         origin,
		"method":         r.Method,
		"path":           r.URL.Path,
		"headers":        headers,
		"requestHeaders": r.Header.Get(HeaderRequestHeaders),
	})
	if err != nil {
		d.logger.Warn("CEL evaluation error",
			observability.String("expression", d.expression),
			observability.Error(err),
		)
		return d.fallback
	}

	value, ok := result.Value().(string)
	if !ok {
		d.logger.Warn("CEL expression returned non-string value",
			observability.String("expression", d.expression),
			observability.String("type", fmt.Sprintf("%T", result.Value())),
		)
		return d.fallback
	}

	return value
}

// Expression returns the source expression.
func (d *CELDecider) Expression() string {
	return d.expression
}
