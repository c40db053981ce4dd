package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	AI         AIConfig         `yaml:"ai" envconfig:"AI"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// Uploads of large workbooks are processed inside the request, so
	// processing routes carry a much longer timeout than the rest of the API.
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT" default:"600s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8000"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"output/app.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir     string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir     string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	TestDataDir string `yaml:"test_data_dir" envconfig:"TEST_DATA_DIR" default:"data/test"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
}

// ProcessingConfig tunes header detection and tab scoring.
// The pattern lists and weights mirror the categories a rent roll is
// normalized into: unit, resident, rate, move-in date and care level.
type ProcessingConfig struct {
	MinTabScore      int `yaml:"min_tab_score" envconfig:"MIN_TAB_SCORE" default:"25"`
	HeaderSearchRows int `yaml:"header_search_rows" envconfig:"HEADER_SEARCH_ROWS" default:"20"`
	MinHeaderScore   int `yaml:"min_header_score" envconfig:"MIN_HEADER_SCORE" default:"4"`
}

// AIConfig configures the OpenAI-compatible column mapping assistant.
// Mapping falls back to rule-based matching when no API key is set.
type AIConfig struct {
	APIKey  string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://api.openai.com/v1"`
	Model   string        `yaml:"model" envconfig:"MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
}

// Enabled reports whether AI-assisted mapping is configured
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

// StorageConfig configures the S3-compatible object store for processed output.
// Outputs stay local-only when no endpoint is configured.
type StorageConfig struct {
	Endpoint        string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey       string        `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey       string        `yaml:"secret_key" envconfig:"SECRET_KEY"`
	UseSSL          bool          `yaml:"use_ssl" envconfig:"USE_SSL" default:"true"`
	UploadBucket    string        `yaml:"upload_bucket" envconfig:"UPLOAD_BUCKET" default:"rentrolls"`
	ProcessedBucket string        `yaml:"processed_bucket" envconfig:"PROCESSED_BUCKET" default:"processed"`
	URLExpiry       time.Duration `yaml:"url_expiry" envconfig:"URL_EXPIRY" default:"24h"`
}

// Enabled reports whether object storage is configured
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("RENTROLL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Server.OperationTimeout == 0 {
		envConfig.Server.OperationTimeout = fileConfig.Server.OperationTimeout
	}
	if envConfig.AI.APIKey == "" {
		envConfig.AI.APIKey = fileConfig.AI.APIKey
	}
	if envConfig.Storage.Endpoint == "" {
		envConfig.Storage.Endpoint = fileConfig.Storage.Endpoint
	}
	if envConfig.Paths.BaseDir == "" {
		envConfig.Paths.BaseDir = fileConfig.Paths.BaseDir
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.OperationTimeout <= 0 {
		return fmt.Errorf("server operation timeout must be positive")
	}

	if c.Processing.HeaderSearchRows <= 0 {
		return fmt.Errorf("header search rows must be positive")
	}

	if c.Processing.MinHeaderScore <= 0 {
		return fmt.Errorf("min header score must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	// JSON is the only supported log format
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "output/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8000,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20,
			MaxUploadBytes:   50 << 20,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 600 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "output/app.log",
		},
		Paths: PathsConfig{
			DataDir:     "data",
			TestDataDir: "data/test",
			OutputDir:   "output",
		},
		Processing: ProcessingConfig{
			MinTabScore:      25,
			HeaderSearchRows: 20,
			MinHeaderScore:   4,
		},
		AI: AIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			UseSSL:          true,
			UploadBucket:    "rentrolls",
			ProcessedBucket: "processed",
			URLExpiry:       24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
