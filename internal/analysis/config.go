package analysis

import "time"

// Config holds the analysis service connection settings.
type Config struct {
	URL     string        `env:"AI_SERVICE_URL" envDefault:"http://localhost:8000"`
	APIKey  string        `env:"AI_SERVICE_API_KEY"`
	Timeout time.Duration `env:"AI_SERVICE_TIMEOUT" envDefault:"30s"`

	BreakerFailureThreshold int           `env:"AI_SERVICE_BREAKER_FAILURES" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"AI_SERVICE_BREAKER_SUCCESSES" envDefault:"2"`
	BreakerRecoveryTimeout  time.Duration `env:"AI_SERVICE_BREAKER_RECOVERY" envDefault:"30s"`
}
