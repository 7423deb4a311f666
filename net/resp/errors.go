package resp

import (
	"net/http"

	"github.com/medialens/medialens/ecode"
)

// BadRequest indicates a bad request.
func BadRequest(message string, data ...any) *Exception {
	return newResponse(http.StatusBadRequest, ecode.RequestErr, message, data...)
}

// NotFound indicates that the requested resource is not found.
func NotFound(message string, data ...any) *Exception {
	return newResponse(http.StatusNotFound, ecode.NothingFound, message, data...)
}

// Conflict indicates a conflict error.
func Conflict(message string, data ...any) *Exception {
	return newResponse(http.StatusConflict, ecode.Conflict, message, data...)
}

// InternalServer indicates a server error.
func InternalServer(message string, data ...any) *Exception {
	return newResponse(http.StatusInternalServerError, ecode.ServerErr, message, data...)
}

// ServiceUnavailable indicates the service is temporarily unavailable.
func ServiceUnavailable(message string, data ...any) *Exception {
	return newResponse(http.StatusServiceUnavailable, ecode.ServiceUnavailable, message, data...)
}
