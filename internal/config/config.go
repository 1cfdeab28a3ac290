package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when a process that talks to the model API has no key configured.
var ErrMissingAPIKey = errors.New("ai.api_key is not configured (set AI_API_KEY)")

type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DB"`
	AI         AIConfig         `yaml:"ai" envconfig:"AI"`
	Downstream DownstreamConfig `yaml:"downstream" envconfig:"DOWNSTREAM"`
	Minio      MinioConfig      `yaml:"minio" envconfig:"MINIO"`
	Redis      RedisConfig      `yaml:"redis" envconfig:"REDIS"`
	Auth       AuthConfig       `yaml:"auth" envconfig:"AUTH"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit" envconfig:"RATELIMIT"`
	CORS       CORSConfig       `yaml:"cors" envconfig:"CORS"`
	Watcher    WatcherConfig    `yaml:"watcher" envconfig:"WATCHER"`
	Log        LogConfig        `yaml:"log" envconfig:"LOG"`
}

type ServerConfig struct {
	AggregatorPort int `yaml:"aggregatorPort" split_words:"true"`
	CompletionPort int `yaml:"completionPort" split_words:"true"`
	ChatPort       int `yaml:"chatPort" split_words:"true"`
	WatcherPort    int `yaml:"watcherPort" split_words:"true"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // mysql | postgres | sqlite
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	Path            string        `yaml:"path"` // sqlite file
	SSLMode         string        `yaml:"sslMode" split_words:"true"`
	MaxOpenConns    int           `yaml:"maxOpenConns" split_words:"true"`
	MaxIdleConns    int           `yaml:"maxIdleConns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" split_words:"true"`
	AutoMigrate     bool          `yaml:"autoMigrate" split_words:"true"`
}

type AIConfig struct {
	BaseURL         string        `yaml:"baseURL" split_words:"true"`
	APIKey          string        `yaml:"apiKey" split_words:"true"`
	CompletionModel string        `yaml:"completionModel" split_words:"true"`
	ChatModel       string        `yaml:"chatModel" split_words:"true"`
	JSONMode        bool          `yaml:"jsonMode" split_words:"true"`
	Timeout         time.Duration `yaml:"timeout"`
}

type DownstreamConfig struct {
	CompletionURL string        `yaml:"completionURL" split_words:"true"`
	ChatURL       string        `yaml:"chatURL" split_words:"true"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"maxRetries" split_words:"true"`
}

type MinioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey" split_words:"true"`
	SecretKey  string `yaml:"secretKey" split_words:"true"`
	BucketName string `yaml:"bucketName" split_words:"true"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL" split_words:"true"`
}

type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	// APIKeys maps a client name to its key. Empty disables auth on ingest.
	APIKeys map[string]string `yaml:"apiKeys" split_words:"true"`
}

type RateLimitConfig struct {
	Capacity   int `yaml:"capacity"`
	RefillRate int `yaml:"refillRate" split_words:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" split_words:"true"`
}

type WatcherConfig struct {
	AggregatorURL   string        `yaml:"aggregatorURL" split_words:"true"`
	APIKey          string        `yaml:"apiKey" split_words:"true"`
	MaxRepositories int           `yaml:"maxRepositories" split_words:"true"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	Debounce        time.Duration `yaml:"debounce"`
	ForwardRetries  int           `yaml:"forwardRetries" split_words:"true"`
	ForwardTimeout  time.Duration `yaml:"forwardTimeout" split_words:"true"`
	PendingWorkers  int           `yaml:"pendingWorkers" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// Default returns the configuration used when neither file nor env set a value.
// Secrets are intentionally left empty.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AggregatorPort: 5000,
			CompletionPort: 5001,
			ChatPort:       5002,
			WatcherPort:    8001,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Host:            "localhost",
			Port:            3306,
			User:            "root",
			Name:            "testcompanion",
			Path:            "testcompanion.db",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		AI: AIConfig{
			BaseURL:         "https://api.mistral.ai/v1",
			CompletionModel: "codestral-latest",
			ChatModel:       "mistral-large-latest",
			JSONMode:        true,
			Timeout:         60 * time.Second,
		},
		Downstream: DownstreamConfig{
			CompletionURL: "http://localhost:5001",
			ChatURL:       "http://localhost:5002",
			Timeout:       30 * time.Second,
			MaxRetries:    2,
		},
		Minio: MinioConfig{
			BucketName: "testcompanion",
			Region:     "us-east-1",
		},
		Redis: RedisConfig{
			TTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Capacity:   60,
			RefillRate: 1,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Watcher: WatcherConfig{
			AggregatorURL:   "http://localhost:5000",
			MaxRepositories: 10,
			Heartbeat:       30 * time.Second,
			Debounce:        300 * time.Millisecond,
			ForwardRetries:  3,
			ForwardTimeout:  30 * time.Second,
			PendingWorkers:  4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path (optional), a local .env file (optional) and
// then applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// file is optional, env + defaults are enough for local runs
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// ValidateAI checks the settings needed by the completion and chat processes.
func (c *Config) ValidateAI() error {
	if c.AI.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.AI.BaseURL == "" {
		return errors.New("ai.baseURL is required")
	}
	return nil
}

// MySQLDSN builds the go-sql-driver DSN. multiStatements is needed by the migrations.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq keyword DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
