// Package cors decides the values of the Access-Control-Allow-Headers and
// Access-Control-Expose-Headers response headers.
//
// Each policy follows exactly one strategy:
//
//   - none: no header is sent (the zero value)
//   - exact: a constant value, either "*" or a comma-joined list
//   - decide: a value computed by a Decider for requests carrying an Origin
//   - mirror: the preflight's Access-Control-Request-Headers echoed back
//     (allow headers only)
//
// Policies are immutable and safe for concurrent use. Origin and method
// validation happen in the surrounding middleware, not here.
package cors
