// Package logger builds structured loggers on top of log/slog and provides
// nil-safe attribute helpers shared by every gateway component.
//
// Loggers are created with functional options:
//
//	log := logger.New(
//		logger.WithProduction("eventgateway"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Info("connection registered",
//		logger.ConnectionID(conn.ID()),
//		logger.Identity(conn.Identity()),
//	)
//
// Attribute helpers return an empty slog.Attr for zero inputs, so callers never
// need nil checks:
//
//	log.Error("dispatch failed", logger.Error(err), logger.EventID(ev.ID))
//
// Context extractors add request-scoped values to every *Context call:
//
//	log := logger.New(logger.WithContextValue("request_id", requestIDKey{}))
//	log.InfoContext(ctx, "accepted")
package logger
