package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. DATAFLOW_SERVER_PORT
const EnvPrefix = "DATAFLOW"

// ConfigFileEnv names the variable that points at an explicit YAML file
const ConfigFileEnv = EnvPrefix + "_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	DevEngine DevEngineConfig `yaml:"devengine" envconfig:"DEVENGINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" envconfig:"HOST" default:"127.0.0.1"`
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080,http://127.0.0.1:8080"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"100" validate:"gte=0"`
}

// EngineConfig describes how the remote analysis engine is reached
type EngineConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"http://127.0.0.1:5000" validate:"required,url"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"90s" validate:"gt=0"`
	RPS            float64       `yaml:"rps" envconfig:"RPS" default:"10" validate:"gt=0"`
	Burst          int           `yaml:"burst" envconfig:"BURST" default:"5" validate:"min=1"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800" validate:"min=1"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"dataflow-workbench/0.3"`
}

// SessionConfig controls the lifetime of page sessions
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL" default:"2h" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"5m" validate:"gt=0"`
	MaxSessions   int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS" default:"1000" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/workbench.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT" default:"10s"`
	SendBuffer      int           `yaml:"send_buffer" envconfig:"SEND_BUFFER" default:"64" validate:"min=1"`
}

// TelemetryConfig contains OpenTelemetry settings
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING" default:"false"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS" default:"true"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"stdout" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0" validate:"gte=0,lte=1"`
}

// DevEngineConfig configures the local reference engine
type DevEngineConfig struct {
	Host        string `yaml:"host" envconfig:"HOST" default:"127.0.0.1"`
	Port        int    `yaml:"port" envconfig:"PORT" default:"5000" validate:"min=1,max=65535"`
	ChartWidth  int    `yaml:"chart_width" envconfig:"CHART_WIDTH" default:"640" validate:"min=100"`
	ChartHeight int    `yaml:"chart_height" envconfig:"CHART_HEIGHT" default:"400" validate:"min=100"`
	MaxRows     int    `yaml:"max_rows" envconfig:"MAX_ROWS" default:"100000" validate:"min=1"`
}

// Address returns the listen address of the workbench server
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the listen address of the dev engine
func (d DevEngineConfig) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Load loads configuration from environment variables and the config file
// named by DATAFLOW_CONFIG_FILE, or config.yaml when present.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom loads configuration with an explicit YAML file. An empty path
// means environment variables and defaults only.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

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

// fromFile copies a value set in the YAML file unless the matching
// environment variable was set explicitly.
func fromFile[T comparable](envKey string, dst *T, fileVal T) {
	var zero T
	if fileVal == zero {
		return
	}
	if _, set := os.LookupEnv(EnvPrefix + "_" + envKey); set {
		return
	}
	*dst = fileVal
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(f, env Config) Config {
	fromFile("SERVER_HOST", &env.Server.Host, f.Server.Host)
	fromFile("SERVER_PORT", &env.Server.Port, f.Server.Port)
	fromFile("SERVER_READ_TIMEOUT", &env.Server.ReadTimeout, f.Server.ReadTimeout)
	fromFile("SERVER_WRITE_TIMEOUT", &env.Server.WriteTimeout, f.Server.WriteTimeout)
	fromFile("SERVER_IDLE_TIMEOUT", &env.Server.IdleTimeout, f.Server.IdleTimeout)
	fromFile("SERVER_MAX_HEADER_BYTES", &env.Server.MaxHeaderBytes, f.Server.MaxHeaderBytes)
	fromFile("SERVER_SHUTDOWN_TIMEOUT", &env.Server.ShutdownTimeout, f.Server.ShutdownTimeout)
	if _, set := os.LookupEnv(EnvPrefix + "_SERVER_ALLOWED_ORIGINS"); !set && len(f.Server.AllowedOrigins) > 0 {
		env.Server.AllowedOrigins = f.Server.AllowedOrigins
	}
	fromFile("SERVER_RATE_LIMIT_RPS", &env.Server.RateLimit.RPS, f.Server.RateLimit.RPS)
	fromFile("SERVER_RATE_LIMIT_BURST", &env.Server.RateLimit.Burst, f.Server.RateLimit.Burst)

	fromFile("ENGINE_BASE_URL", &env.Engine.BaseURL, f.Engine.BaseURL)
	fromFile("ENGINE_TIMEOUT", &env.Engine.Timeout, f.Engine.Timeout)
	fromFile("ENGINE_RPS", &env.Engine.RPS, f.Engine.RPS)
	fromFile("ENGINE_BURST", &env.Engine.Burst, f.Engine.Burst)
	fromFile("ENGINE_MAX_UPLOAD_BYTES", &env.Engine.MaxUploadBytes, f.Engine.MaxUploadBytes)
	fromFile("ENGINE_USER_AGENT", &env.Engine.UserAgent, f.Engine.UserAgent)

	fromFile("SESSION_TTL", &env.Session.TTL, f.Session.TTL)
	fromFile("SESSION_SWEEP_INTERVAL", &env.Session.SweepInterval, f.Session.SweepInterval)
	fromFile("SESSION_MAX_SESSIONS", &env.Session.MaxSessions, f.Session.MaxSessions)

	fromFile("LOGGING_LEVEL", &env.Logging.Level, f.Logging.Level)
	fromFile("LOGGING_FORMAT", &env.Logging.Format, f.Logging.Format)
	fromFile("LOGGING_OUTPUT", &env.Logging.Output, f.Logging.Output)
	fromFile("LOGGING_FILE_PATH", &env.Logging.FilePath, f.Logging.FilePath)

	fromFile("WEBSOCKET_PING_PERIOD", &env.WebSocket.PingPeriod, f.WebSocket.PingPeriod)
	fromFile("WEBSOCKET_PONG_WAIT", &env.WebSocket.PongWait, f.WebSocket.PongWait)
	fromFile("WEBSOCKET_SEND_BUFFER", &env.WebSocket.SendBuffer, f.WebSocket.SendBuffer)

	fromFile("TELEMETRY_ENVIRONMENT", &env.Telemetry.Environment, f.Telemetry.Environment)
	fromFile("TELEMETRY_TRACE_EXPORTER", &env.Telemetry.TraceExporter, f.Telemetry.TraceExporter)
	fromFile("TELEMETRY_METRIC_EXPORTER", &env.Telemetry.MetricExporter, f.Telemetry.MetricExporter)
	fromFile("TELEMETRY_SAMPLE_RATIO", &env.Telemetry.SampleRatio, f.Telemetry.SampleRatio)

	fromFile("DEVENGINE_HOST", &env.DevEngine.Host, f.DevEngine.Host)
	fromFile("DEVENGINE_PORT", &env.DevEngine.Port, f.DevEngine.Port)
	fromFile("DEVENGINE_CHART_WIDTH", &env.DevEngine.ChartWidth, f.DevEngine.ChartWidth)
	fromFile("DEVENGINE_CHART_HEIGHT", &env.DevEngine.ChartHeight, f.DevEngine.ChartHeight)
	fromFile("DEVENGINE_MAX_ROWS", &env.DevEngine.MaxRows, f.DevEngine.MaxRows)

	return env
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/workbench.log"
	}

	c.Engine.BaseURL = strings.TrimRight(c.Engine.BaseURL, "/")

	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping period %s must be shorter than pong wait %s",
			c.WebSocket.PingPeriod, c.WebSocket.PongWait)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:8080", "http://127.0.0.1:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Engine: EngineConfig{
			BaseURL:        "http://127.0.0.1:5000",
			Timeout:        90 * time.Second,
			RPS:            10,
			Burst:          5,
			MaxUploadBytes: 50 << 20,
			UserAgent:      "dataflow-workbench/0.3",
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 5 * time.Minute,
			MaxSessions:   1000,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/workbench.log",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
			SendBuffer:      64,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		DevEngine: DevEngineConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			ChartWidth:  640,
			ChartHeight: 400,
			MaxRows:     100000,
		},
	}
}
