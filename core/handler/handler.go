package handler

import (
	"fmt"
	"net/http"
)

// Response is a function that renders HTTP responses.
// It sets headers, status code, and writes the response body.
// Rendering errors are passed to the ErrorHandler.
type Response func(w http.ResponseWriter, r *http.Request) error

// Func produces a Response for a request.
type Func func(r *http.Request) Response

// ErrorHandler renders an error returned by a Response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Adapt turns a Func into an http.Handler.
// Panics raised while building or rendering the response are converted to errors.
func Adapt(fn Func, onError ErrorHandler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := run(fn, w, r); err != nil {
			onError(w, r, err)
		}
	})
}

func run(fn Func, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	resp := fn(r)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return resp(w, r)
}

// Chain applies middlewares so the first one is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
