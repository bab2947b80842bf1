package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location, relative to the
// service working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	GenerationProvider    string  `yaml:"generationProvider"`
	GenerationBaseURL     string  `yaml:"generationBaseURL"`
	GenerationAPIKey      string  `yaml:"generationAPIKey"`
	GenerationModel       string  `yaml:"generationModel"`
	GenerationTemperature float64 `yaml:"generationTemperature"`

	BarkPoolTarget      int `yaml:"barkPoolTarget"`
	BarkPoolLow         int `yaml:"barkPoolLow"`
	GraffitiPoolTarget  int `yaml:"graffitiPoolTarget"`
	GraffitiPoolLow     int `yaml:"graffitiPoolLow"`
	RefillTickSeconds   int `yaml:"refillTickSeconds"`
	DeathQuipTimeoutMS  int `yaml:"deathQuipTimeoutMs"`
	CommentaryTimeoutMS int `yaml:"commentaryTimeoutMs"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	DatabaseURL   string `yaml:"databaseURL"`
	RabbitMQURL   string `yaml:"rabbitmqURL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	ExportCron     string `yaml:"exportCron"`

	AdminKeyHash        string   `yaml:"adminKeyHash"`
	ServiceTokenSecret  string   `yaml:"serviceTokenSecret"`
	ServiceTokenIssuers []string `yaml:"serviceTokenIssuers"`

	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = v
	}
	if v := os.Getenv("GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitMQURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("ADMIN_KEY_HASH"); v != "" {
		cfg.AdminKeyHash = v
	}
	if v := os.Getenv("SERVICE_TOKEN_SECRET"); v != "" {
		cfg.ServiceTokenSecret = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.GenerationProvider != "" && cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required when generationProvider is set")
	}
	if cfg.BarkPoolTarget < 0 || cfg.BarkPoolLow < 0 {
		return errors.New("config: bark pool sizes must not be negative")
	}
	if cfg.BarkPoolTarget > 0 && cfg.BarkPoolLow > cfg.BarkPoolTarget {
		return errors.New("config: barkPoolLow must not exceed barkPoolTarget")
	}
	if cfg.GraffitiPoolTarget < 0 || cfg.GraffitiPoolLow < 0 {
		return errors.New("config: graffiti pool sizes must not be negative")
	}
	if cfg.GraffitiPoolTarget > 0 && cfg.GraffitiPoolLow > cfg.GraffitiPoolTarget {
		return errors.New("config: graffitiPoolLow must not exceed graffitiPoolTarget")
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if cfg.ServiceTokenSecret != "" && len(cfg.ServiceTokenIssuers) == 0 {
		return errors.New("config: serviceTokenIssuers is required when serviceTokenSecret is set")
	}
	return nil
}
