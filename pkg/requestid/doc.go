// Package requestid tags HTTP requests with an X-Request-ID and exposes it to
// pkg/logger through LoggerExtractor.
package requestid
