package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	MinIO     MinIOConfig
	LLM       LLMConfig
	Scan      ScanConfig
	Chat      ChatConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLMin   int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
}

type ScanConfig struct {
	Endpoint   string
	TimeoutSec int
}

type ChatConfig struct {
	IdleTimeoutMin int
	ReapSchedule   string
	MaxImageBytes  int
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type IngestionConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxFileBytes int
	TopK         int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	MaxSizeMB  int
	MaxAgeDays int
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/healthbot")

	viper.SetEnvPrefix("HEALTHBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindSecrets()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwtSecret must be set")
	}

	return &config, nil
}

// Secrets carry no default, so AutomaticEnv alone would not surface them to Unmarshal.
func bindSecrets() {
	for _, key := range []string{
		"auth.jwtSecret",
		"llm.apiKey",
		"redis.password",
		"minio.accessKey",
		"minio.secretKey",
	} {
		_ = viper.BindEnv(key)
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 20971520)
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:5173"})
	viper.SetDefault("server.development", true)

	viper.SetDefault("sqlite.path", "./data/healthbot.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlMin", 60)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "medical_reports")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("minio.endpoint", "localhost:9000")
	viper.SetDefault("minio.bucket", "medical-reports")
	viper.SetDefault("minio.useSSL", false)
	viper.SetDefault("minio.publicURL", "http://localhost:9000")

	viper.SetDefault("llm.baseURL", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.model", "mistralai/mistral-7b-instruct")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 1000)
	viper.SetDefault("llm.timeoutSec", 60)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("scan.endpoint", "http://localhost:8000/predict")
	viper.SetDefault("scan.timeoutSec", 0)

	viper.SetDefault("chat.idleTimeoutMin", 30)
	viper.SetDefault("chat.reapSchedule", "@every 5m")
	viper.SetDefault("chat.maxImageBytes", 10485760)

	viper.SetDefault("auth.tokenTTLHours", 24)

	viper.SetDefault("rateLimit.maxRequestsPerMinute", 120)

	viper.SetDefault("ingestion.chunkSize", 1000)
	viper.SetDefault("ingestion.chunkOverlap", 200)
	viper.SetDefault("ingestion.maxFileBytes", 16777216)
	viper.SetDefault("ingestion.topK", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
	viper.SetDefault("logging.maxSizeMB", 100)
	viper.SetDefault("logging.maxAgeDays", 28)
}
