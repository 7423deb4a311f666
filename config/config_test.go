package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const testConfig = `
app_name: medialens
run_mode: release
server:
  host: 127.0.0.1
  port: 9000
logger:
  level: 4
  format: json
data:
  mongodb:
    uri: mongodb://localhost:27017
    database: medialens
  rabbitmq:
    url: localhost:5672
    username: guest
    password: guest
storage:
  provider: filesystem
  bucket: /tmp/media
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.AppName != "medialens" || cfg.Host != "127.0.0.1" || cfg.Port != 9000 {
		t.Errorf("server config = %s %s:%d", cfg.AppName, cfg.Host, cfg.Port)
	}
	if !cfg.IsProd() {
		t.Error("run_mode release not reported as prod")
	}
	if cfg.Data.MongoDB.Database != "medialens" {
		t.Errorf("mongodb database = %q", cfg.Data.MongoDB.Database)
	}
	if cfg.Storage.Provider != "filesystem" {
		t.Errorf("storage provider = %q", cfg.Storage.Provider)
	}
	// A bare host:port would never pass amqp URI parsing; loading must
	// normalize it to a dialable URL.
	if cfg.Data.RabbitMQ.URL != "amqp://localhost:5672" {
		t.Errorf("rabbitmq url = %q, want amqp://localhost:5672", cfg.Data.RabbitMQ.URL)
	}
	if cfg.Data.RabbitMQ.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect delay = %v, want default 5s", cfg.Data.RabbitMQ.ReconnectDelay)
	}
}

func TestRabbitMQURLSchemes(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"localhost:5672", "amqp://localhost:5672"},
		{"amqp://broker:5672/", "amqp://broker:5672/"},
		{"amqps://broker:5671/", "amqps://broker:5671/"},
		{"", ""},
	}
	for _, c := range cases {
		v := viper.New()
		v.Set("data.rabbitmq.url", c.in)
		if got := getRabbitMQConfig(v).URL; got != c.want {
			t.Errorf("url %q normalized to %q, want %q", c.in, got, c.want)
		}
	}
}
