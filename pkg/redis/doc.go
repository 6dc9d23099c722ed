// Package redis connects to Redis with go-redis and exposes a readiness probe.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	probe := redis.Healthcheck(client)
//
// The same client backs the job queue, the feed cache and realtime pub/sub.
// Configuration comes from REDIS_* environment variables; see Config.
package redis
