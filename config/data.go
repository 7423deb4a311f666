package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data represents the data layer configuration.
type Data struct {
	MongoDB  *MongoDB
	RabbitMQ *RabbitMQ
}

// MongoDB mongodb config struct.
type MongoDB struct {
	URI      string
	Database string
}

// RabbitMQ rabbitmq config struct.
type RabbitMQ struct {
	URL               string
	Username          string
	Password          string
	Vhost             string
	ConnectionTimeout time.Duration
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
}

// getDataConfig reads data layer configurations.
func getDataConfig(v *viper.Viper) *Data {
	return &Data{
		MongoDB: &MongoDB{
			URI:      v.GetString("data.mongodb.uri"),
			Database: v.GetString("data.mongodb.database"),
		},
		RabbitMQ: getRabbitMQConfig(v),
	}
}

// getRabbitMQConfig reads RabbitMQ configurations.
func getRabbitMQConfig(v *viper.Viper) *RabbitMQ {
	cfg := &RabbitMQ{
		URL:               v.GetString("data.rabbitmq.url"),
		Username:          v.GetString("data.rabbitmq.username"),
		Password:          v.GetString("data.rabbitmq.password"),
		Vhost:             v.GetString("data.rabbitmq.vhost"),
		ConnectionTimeout: v.GetDuration("data.rabbitmq.connection_timeout"),
		HeartbeatInterval: v.GetDuration("data.rabbitmq.heartbeat_interval"),
		ReconnectDelay:    v.GetDuration("data.rabbitmq.reconnect_delay"),
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	// amqp.ParseURI rejects scheme-less URLs, so a bare host:port would
	// never connect. Normalize it here instead of looping on dial errors.
	if cfg.URL != "" && !strings.HasPrefix(cfg.URL, "amqp://") && !strings.HasPrefix(cfg.URL, "amqps://") {
		cfg.URL = "amqp://" + cfg.URL
	}
	return cfg
}
