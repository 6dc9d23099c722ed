package opensearch

// Config holds OpenSearch connection parameters.
type Config struct {
	Enabled         bool     `env:"OPENSEARCH_ENABLED" envDefault:"false"`
	Addresses       []string `env:"OPENSEARCH_ADDRESSES" envDefault:"http://localhost:9200"`
	Username        string   `env:"OPENSEARCH_USERNAME"`
	Password        string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries      int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry    bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
	Index           string   `env:"OPENSEARCH_INDEX" envDefault:"solshare-posts"`
	VectorDimension int      `env:"OPENSEARCH_VECTOR_DIMENSION" envDefault:"512"`
}
