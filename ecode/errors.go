// Package ecode defines business error codes for API responses.
//
// Codes follow a standardized numbering scheme:
//   - 0: success
//   - -400 to -499: request validation errors
//   - -500+: server errors
package ecode

// Business error codes.
const (
	OK                 = 0
	RequestErr         = -400
	NothingFound       = -404
	Conflict           = -409
	MethodNotAllowed   = -405
	ServerErr          = -500
	ServiceUnavailable = -503
)

var messages = map[int]string{
	OK:                 "success",
	RequestErr:         "invalid request",
	NothingFound:       "not found",
	Conflict:           "conflict",
	MethodNotAllowed:   "method not allowed",
	ServerErr:          "internal server error",
	ServiceUnavailable: "service unavailable",
}

// Text returns the human-readable message for a code.
func Text(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ServerErr]
}
