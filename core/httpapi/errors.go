package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/eventgateway/core/eventlog"
	"github.com/dmitrymomot/eventgateway/core/logger"
	"github.com/dmitrymomot/eventgateway/core/metrics"
	"github.com/dmitrymomot/eventgateway/core/response"
)

var (
	errInvalidBody    = response.ErrBadRequest.WithMessage("request body must be a JSON object")
	errInvalidEventID = response.ErrBadRequest.WithMessage("event id must be a UUID")
	errInvalidTime    = response.ErrBadRequest.WithMessage("from and to must be RFC3339 timestamps")
	errInvalidLimit   = response.ErrBadRequest.WithMessage("limit must be a positive integer")
	errInvalidStatus  = response.ErrBadRequest.WithMessage("unknown event status")
	errBodyTooLarge   = response.ErrRequestEntityTooLarge.WithMessage("request body too large")
)

// toHTTPError maps domain errors to API errors.
func toHTTPError(err error) response.HTTPError {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return errBodyTooLarge
	case errors.Is(err, eventlog.ErrNotFound):
		return response.ErrNotFound.WithMessage(err.Error())
	case errors.Is(err, eventlog.ErrNotReplayable):
		return response.ErrConflict.WithMessage(err.Error())
	case errors.Is(err, eventlog.ErrEmptyType),
		errors.Is(err, eventlog.ErrInvalidPayload),
		errors.Is(err, metrics.ErrEmptyName),
		errors.Is(err, metrics.ErrInvalidRange):
		return response.ErrUnprocessableEntity.WithMessage(err.Error())
	}
	return response.ToHTTPError(err)
}

func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := toHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		httpErr = httpErr.WithDetails(nil)
	}
	response.Render(w, r, response.JSONWithStatus(httpErr, httpErr.Status))
}
