// Package config loads typed configuration from environment variables using
// github.com/caarlos0/env struct tags, with optional .env files read through
// github.com/joho/godotenv.
//
//	type Config struct {
//		Addr  string        `env:"WORKER_HTTP_ADDR" envDefault:":8081"`
//		Redis redis.Config
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		// errors.Is(err, config.ErrParsingConfig)
//	}
//
// Nested structs are parsed recursively, so component configs such as
// redis.Config or pg.Config compose into one process-level struct.
package config
