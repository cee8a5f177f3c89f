// Package middleware holds net/http middlewares for the gateway's HTTP API:
// request IDs, client IP resolution, access logging and CORS.
//
// Each constructor returns a handler.Middleware, so they compose with
// handler.Chain or httpapi.WithMiddleware:
//
//	api := httpapi.New(
//		httpapi.WithMiddleware(
//			middleware.RequestID(),
//			middleware.ClientIP(),
//			middleware.Logging(log),
//			middleware.CORS(),
//		),
//	)
//
// The logging middleware forwards http.Hijacker, so it can wrap the WebSocket
// route.
package middleware
