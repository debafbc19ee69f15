package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  "relay.log",
		},
		Web: WebConfig{
			AllowOrigins: []string{"*"},
		},
		Prediction: PredictionConfig{
			Timeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Workers:   4,
			QueueSize: 256,
		},
	}
}
