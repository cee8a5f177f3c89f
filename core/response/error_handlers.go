package response

import (
	"errors"
	"net/http"
)

// statusCode is an interface that errors can implement
// to provide a custom HTTP status code.
type statusCode interface {
	StatusCode() int
}

// ToHTTPError converts any error to an HTTPError.
// HTTPError values pass through; errors exposing StatusCode() map to the
// matching predefined error; everything else becomes a 500.
func ToHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	status := http.StatusInternalServerError
	var sc statusCode
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}

	baseErr, ok := httpErrorsByStatus[status]
	if !ok {
		baseErr = ErrInternalServerError
	}

	return baseErr.WithError(err)
}

// ErrorHandler returns errors as plain text.
func ErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := ToHTTPError(err)
	Render(w, r, StringWithStatus(httpErr.Error(), httpErr.Status))
}

// JSONErrorHandler returns errors as JSON bodies.
func JSONErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := ToHTTPError(err)
	Render(w, r, JSONWithStatus(httpErr, httpErr.Status))
}
