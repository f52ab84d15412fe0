package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (full-scan lock)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Embedding inference
	EmbeddingAPIKey         string        `env:"EMBEDDING_API_KEY" env-default:""`
	EmbeddingBaseURL        string        `env:"EMBEDDING_BASE_URL" env-default:""`
	EmbeddingModel          string        `env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	EmbeddingRequestTimeout time.Duration `env:"EMBEDDING_REQUEST_TIMEOUT" env-default:"10s"`

	// Image fetching / hashing
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" env-default:"15s"`
	ImageMaxBytes     int64         `env:"IMAGE_MAX_BYTES" env-default:"10485760"` // 10MB
	ImageHashCacheTTL time.Duration `env:"IMAGE_HASH_CACHE_TTL" env-default:"30m"`
	ExternalCallLimit int           `env:"EXTERNAL_CALL_LIMIT" env-default:"4"`

	// Detection profile
	LexicalWeight      float64       `env:"DETECT_LEXICAL_WEIGHT" env-default:"0.25"`
	SemanticWeight     float64       `env:"DETECT_SEMANTIC_WEIGHT" env-default:"0.50"`
	VisualWeight       float64       `env:"DETECT_VISUAL_WEIGHT" env-default:"0.25"`
	OverallThreshold   float64       `env:"DETECT_OVERALL_THRESHOLD" env-default:"0.70"`
	DuplicateThreshold float64       `env:"DETECT_DUPLICATE_THRESHOLD" env-default:"0.85"`
	PotentialThreshold float64       `env:"DETECT_POTENTIAL_THRESHOLD" env-default:"0.55"`
	CandidatePoolSize  int           `env:"DETECT_CANDIDATE_POOL_SIZE" env-default:"500"`
	FullScanLockTTL    time.Duration `env:"DETECT_FULL_SCAN_LOCK_TTL" env-default:"30m"`

	// Kafka producer (detection events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"detection-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
}
