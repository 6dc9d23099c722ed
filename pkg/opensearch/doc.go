// Package opensearch wraps the official OpenSearch client with environment
// configuration and a health probe.
//
//	cfg, _ := config.Load[opensearch.Config]()
//	client, err := opensearch.New(ctx, cfg)
//	if errors.Is(err, opensearch.ErrConnectionFailed) {
//		// bad configuration
//	}
//
// Healthcheck returns a func(context.Context) error suitable for readiness probes.
package opensearch
