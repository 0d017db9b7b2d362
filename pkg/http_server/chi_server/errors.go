package chiserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JailtonJunior94/observable-service/pkg/http_server/common"
	"github.com/JailtonJunior94/observable-service/pkg/observability"
)

// HTTPError is an error that maps to a response status.
type HTTPError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %d - %s", e.Code, e.Message)
}

// NewHTTPError creates a new HTTPError.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, code int, detail string) {
	common.WriteProblem(w, r, code, detail)
}

// HandlerFunc is a handler that reports failures as errors.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.HandlerFunc. An *HTTPError becomes a problem
// response with its code; any other error is logged and answered with a
// generic 500.
func Handle(logger observability.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			writeErrorResponse(w, r, httpErr.Code, httpErr.Message)
			return
		}

		logger.Error(r.Context(), "request failed",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.String("request_id", common.RequestIDFromContext(r.Context())),
			observability.Error(err),
		)
		writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
