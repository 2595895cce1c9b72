package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServiceInterval() != 10*time.Second {
		t.Fatalf("unexpected service interval: %s", cfg.ServiceInterval())
	}
	if cfg.RouterInterval() != 5*time.Second {
		t.Fatalf("unexpected router interval: %s", cfg.RouterInterval())
	}
	if cfg.ListTimeout() != 5*time.Second {
		t.Fatalf("unexpected list timeout: %s", cfg.ListTimeout())
	}
	if cfg.Router.DefaultAddr != ":8080" {
		t.Fatalf("unexpected router addr: %s", cfg.Router.DefaultAddr)
	}
	path, err := ConfigFilePath()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config.yaml to be written: %v", err)
	}
}

func TestLoad_NormalizesInvalidValues(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "gostly")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	content := []byte(strings.Join([]string{
		"engine:",
		"  log_level: LOUD",
		"poll:",
		"  service_seconds: -1",
		"  router_seconds: 0",
		"  list_timeout_seconds: 2",
		"router:",
		"  default_addr: \"8080\"",
		"",
	}, "\n"))
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Poll.ServiceSeconds != 10 || cfg.Poll.RouterSeconds != 5 {
		t.Fatalf("expected default poll intervals, got %+v", cfg.Poll)
	}
	if cfg.Poll.ListTimeoutSeconds != 2 {
		t.Fatalf("expected explicit list timeout to survive, got %d", cfg.Poll.ListTimeoutSeconds)
	}
	if cfg.Router.DefaultAddr != ":8080" {
		t.Fatalf("expected invalid router addr to be replaced, got %q", cfg.Router.DefaultAddr)
	}
	if cfg.Engine.LogLevel != "info" {
		t.Fatalf("expected engine log level info, got %q", cfg.Engine.LogLevel)
	}
}
