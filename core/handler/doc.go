// Package handler defines the response-function style used by the HTTP API.
//
// A Func inspects the request and returns a Response; Adapt renders it and
// routes any error to an ErrorHandler, so handlers stay free of ResponseWriter
// bookkeeping:
//
//	mux.Handle("GET /v1/events/{id}", handler.Adapt(func(r *http.Request) handler.Response {
//		ev, err := store.Get(r.Context(), r.PathValue("id"))
//		if err != nil {
//			return response.Error(err)
//		}
//		return response.JSON(ev)
//	}, response.JSONErrorHandler))
package handler
