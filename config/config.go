// Package config loads service configuration from config.yaml via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()
}

// Config represents the configuration implementation.
type Config struct {
	AppName  string
	RunMode  string
	Host     string
	Port     int
	Logger   *Logger
	Data     *Data
	Storage  *Storage
	Pipeline *Pipeline
	Viper    *viper.Viper
}

// IsProd reports whether the service runs in release mode.
func (c *Config) IsProd() bool {
	return c.RunMode == "release" || c.RunMode == "prod"
}

// LoadConfig loads the configuration from the file.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		ex, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		v.SetConfigName("config")
		v.AddConfigPath("/etc/medialens")
		v.AddConfigPath("$HOME/.medialens")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(ex))
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return &Config{
		AppName:  v.GetString("app_name"),
		RunMode:  v.GetString("run_mode"),
		Host:     v.GetString("server.host"),
		Port:     v.GetInt("server.port"),
		Logger:   getLoggerConfig(v),
		Data:     getDataConfig(v),
		Storage:  getStorageConfig(v),
		Pipeline: getPipelineConfig(v),
		Viper:    v,
	}, nil
}

// Watch watches the configuration file and reloads it when it changes.
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := LoadConfig(v.ConfigFileUsed())
		if err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}
		if callback != nil {
			callback(cfg)
		}
	})
}
