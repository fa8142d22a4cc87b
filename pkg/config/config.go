package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Storage  StorageConfig
	OCR      OCRProviderConfig
	LLM      LLMProviderConfig
	Pipeline PipelineConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig controls where uploaded certificate files live and how
// download links are signed.
type StorageConfig struct {
	BaseDir          string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// OCRProviderConfig points at the text-recognition service.
type OCRProviderConfig struct {
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// LLMProviderConfig points at the structured-extraction model server.
type LLMProviderConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// PipelineConfig tunes the stage consumers.
type PipelineConfig struct {
	Group              string
	OCRWorkers         int
	MetadataWorkers    int
	CategorizerWorkers int
	BlockInterval      time.Duration
	ClaimMinIdle       time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		BaseDir:          v.GetString("STORAGE_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.OCR = OCRProviderConfig{
		BaseURL:  v.GetString("OCR_BASE_URL"),
		Language: v.GetString("OCR_LANGUAGE"),
		Timeout:  parseDuration(v.GetString("OCR_TIMEOUT"), 2*time.Minute),
	}

	cfg.LLM = LLMProviderConfig{
		BaseURL:    v.GetString("LLM_BASE_URL"),
		Model:      v.GetString("LLM_MODEL"),
		Timeout:    parseDuration(v.GetString("LLM_TIMEOUT"), 2*time.Minute),
		MaxRetries: v.GetInt("LLM_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("LLM_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Pipeline = PipelineConfig{
		Group:              v.GetString("PIPELINE_GROUP"),
		OCRWorkers:         v.GetInt("PIPELINE_OCR_WORKERS"),
		MetadataWorkers:    v.GetInt("PIPELINE_METADATA_WORKERS"),
		CategorizerWorkers: v.GetInt("PIPELINE_CATEGORIZER_WORKERS"),
		BlockInterval:      parseDuration(v.GetString("PIPELINE_BLOCK_INTERVAL"), 5*time.Second),
		ClaimMinIdle:       parseDuration(v.GetString("PIPELINE_CLAIM_MIN_IDLE"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "cert_hours")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "application/pdf,image/png,image/jpeg")

	v.SetDefault("OCR_BASE_URL", "http://localhost:8884")
	v.SetDefault("OCR_LANGUAGE", "por")
	v.SetDefault("OCR_TIMEOUT", "2m")

	v.SetDefault("LLM_BASE_URL", "http://localhost:11434")
	v.SetDefault("LLM_MODEL", "llama3.1:8b")
	v.SetDefault("LLM_TIMEOUT", "2m")
	v.SetDefault("LLM_MAX_RETRIES", 3)
	v.SetDefault("LLM_RETRY_DELAY", "2s")

	v.SetDefault("PIPELINE_GROUP", "cert-pipeline")
	v.SetDefault("PIPELINE_OCR_WORKERS", 2)
	v.SetDefault("PIPELINE_METADATA_WORKERS", 2)
	v.SetDefault("PIPELINE_CATEGORIZER_WORKERS", 2)
	v.SetDefault("PIPELINE_BLOCK_INTERVAL", "5s")
	v.SetDefault("PIPELINE_CLAIM_MIN_IDLE", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
