package config

import "time"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
	Prediction PredictionConfig `yaml:"prediction"`
	Events     EventsConfig     `yaml:"events"`
}

type ServerConfig struct {
	IP   string `yaml:"ip" envconfig:"SERVER_IP"`
	Port int    `yaml:"port" envconfig:"SERVER_PORT"`
	// CustomHandlerPort is set by the functions host for custom handlers and
	// takes precedence over Port.
	CustomHandlerPort int           `yaml:"-" envconfig:"FUNCTIONS_CUSTOMHANDLER_PORT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT"`
}

// ListenPort returns the port the HTTP server should bind.
func (s ServerConfig) ListenPort() int {
	if s.CustomHandlerPort > 0 {
		return s.CustomHandlerPort
	}
	return s.Port
}

type LogConfig struct {
	Level string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Dir   string `yaml:"log_dir" envconfig:"LOG_DIR"`
	File  string `yaml:"log_file" envconfig:"LOG_FILE"`
}

type WebConfig struct {
	StaticDir    string   `yaml:"static_dir" envconfig:"WEB_STATIC_DIR"`
	AllowOrigins []string `yaml:"allow_origins" envconfig:"WEB_ALLOW_ORIGINS"`
}

// PredictionConfig holds the upstream classifier credentials. Endpoint and
// Key are secrets and have no defaults.
type PredictionConfig struct {
	Endpoint     string        `yaml:"endpoint" envconfig:"PREDICTION_ENDPOINT"`
	Key          string        `yaml:"key" envconfig:"PREDICTION_KEY"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"PREDICTION_TIMEOUT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" envconfig:"PREDICTION_MAX_BODY_BYTES"`
}

// Configured reports whether both secrets are present. Values are used
// exactly as configured.
func (p PredictionConfig) Configured() bool {
	return p.Endpoint != "" && p.Key != ""
}

type EventsConfig struct {
	Workers   int `yaml:"workers" envconfig:"EVENTS_WORKERS"`
	QueueSize int `yaml:"queue_size" envconfig:"EVENTS_QUEUE_SIZE"`
}
