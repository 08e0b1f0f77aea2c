package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
platform:
  url: "https://platform.example.com"
  token: "test-network-token"

api:
  host: "127.0.0.1"
  port: 3000
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.URL != "https://platform.example.com" {
		t.Errorf("Platform.URL = %q, want %q", cfg.Platform.URL, "https://platform.example.com")
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "platform: [not: valid")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Supervisor.RestartInterval != 120 {
		t.Errorf("Supervisor.RestartInterval = %d, want 120", cfg.Supervisor.RestartInterval)
	}
	if cfg.Supervisor.QueueCapacity != 32 {
		t.Errorf("Supervisor.QueueCapacity = %d, want 32", cfg.Supervisor.QueueCapacity)
	}
	if cfg.MQTT.KeepAlive != 30 {
		t.Errorf("MQTT.KeepAlive = %d, want 30", cfg.MQTT.KeepAlive)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, validConfig)

	t.Setenv("MQTTRELAY_PLATFORM_TOKEN", "env-token")
	t.Setenv("MQTTRELAY_API_HOST", "0.0.0.0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.Token != "env-token" {
		t.Errorf("Platform.Token = %q, want env override %q", cfg.Platform.Token, "env-token")
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want env override %q", cfg.API.Host, "0.0.0.0")
	}
}

func TestValidateMissingPlatform(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 3000
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing platform settings")
	}
	if !strings.Contains(err.Error(), "platform.url is required") {
		t.Errorf("error = %v, want mention of platform.url", err)
	}
	if !strings.Contains(err.Error(), "platform.token is required") {
		t.Errorf("error = %v, want mention of platform.token", err)
	}
}

func TestValidateTLSRequiresCertAndKey(t *testing.T) {
	path := writeConfig(t, validConfig+`
  tls:
    enabled: true
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for TLS without cert/key")
	}
	if !strings.Contains(err.Error(), "api.tls.cert_file") {
		t.Errorf("error = %v, want mention of api.tls.cert_file", err)
	}
}

func TestValidateInvalidPort(t *testing.T) {
	path := writeConfig(t, `
platform:
  url: "https://platform.example.com"
  token: "t"

api:
  port: 99999
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for invalid port")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.RestartInterval(); got != 120*time.Second {
		t.Errorf("RestartInterval() = %v, want 120s", got)
	}
	if got := cfg.Platform.RequestTimeout(); got != 30*time.Second {
		t.Errorf("Platform.RequestTimeout() = %v, want 30s", got)
	}
	if got := cfg.API.ReadTimeout(); got != 30*time.Second {
		t.Errorf("API.ReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.API.WriteTimeout(); got != 30*time.Second {
		t.Errorf("API.WriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.API.IdleTimeout(); got != 60*time.Second {
		t.Errorf("API.IdleTimeout() = %v, want 60s", got)
	}
}
