// Package server runs the gateway's HTTP listener with graceful shutdown.
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	g.Go(srv.Run(ctx, handler))
//
// Start binds the listener before serving, so Addr reports the real address
// when the configured one uses port 0. TLS is enabled when both
// SERVER_TLS_CERT_FILE and SERVER_TLS_KEY_FILE are set; otherwise the server
// speaks plain HTTP and is expected to sit behind a terminating proxy.
package server
