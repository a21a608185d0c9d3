package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	Password     string
	AccessSecret string
	AccessTTL    time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type AIConfig struct {
	APIURL        string
	APIKey        string
	Model         string
	MaxTokens     int
	Timeout       time.Duration
	MinConfidence float64
}

type UploadConfig struct {
	MaxBytes int64
	MaxPages int
}

type StorageConfig struct {
	Dir string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	AI          AIConfig
	Upload      UploadConfig
	Storage     StorageConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			Password:     v.GetString("APP_PASSWORD"),
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AccessTTL:    v.GetDuration("JWT_ACCESS_TTL"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		AI: AIConfig{
			APIURL:        v.GetString("AI_API_URL"),
			APIKey:        v.GetString("AI_API_KEY"),
			Model:         v.GetString("AI_MODEL"),
			MaxTokens:     v.GetInt("AI_MAX_TOKENS"),
			Timeout:       v.GetDuration("AI_TIMEOUT"),
			MinConfidence: v.GetFloat64("AI_MIN_CONFIDENCE"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
			MaxPages: v.GetInt("UPLOAD_MAX_PAGES"),
		},
		Storage: StorageConfig{
			Dir: v.GetString("STORAGE_DIR"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "postgres"
	}
	if cfg.Auth.AccessTTL <= 0 {
		cfg.Auth.AccessTTL = 12 * time.Hour
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.AI.APIURL == "" {
		cfg.AI.APIURL = "https://api.anthropic.com/v1/messages"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "claude-sonnet-4-5"
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 8192
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 2 * time.Minute
	}
	if cfg.AI.MinConfidence <= 0 {
		cfg.AI.MinConfidence = 0.5
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 20 << 20
	}
	if cfg.Upload.MaxPages <= 0 {
		cfg.Upload.MaxPages = 30
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "./data/uploads"
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DB.Driver)
	}
	if cfg.Auth.Password == "" {
		return fmt.Errorf("APP_PASSWORD is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.AI.MinConfidence > 1 {
		return fmt.Errorf("AI_MIN_CONFIDENCE must be between 0 and 1")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
