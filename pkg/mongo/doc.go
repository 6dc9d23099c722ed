// Package mongo connects to MongoDB with environment configuration, connect
// retries and a health probe.
//
//	cfg, _ := config.Load[mongo.Config]()
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if errors.Is(err, mongo.ErrFailedToConnectToMongo) {
//		// all attempts failed; the last driver error is joined in
//	}
//
// Healthcheck wraps Ping for readiness endpoints.
package mongo
