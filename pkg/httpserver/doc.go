// Package httpserver runs an HTTP server for the lifetime of a context and
// provides liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Cancelling ctx triggers a graceful shutdown bounded by the shutdown timeout.
package httpserver
