package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/treykane/gostly/internal/model"
)

// Config is the subset of the gost v3 configuration file gostly writes.
type Config struct {
	Services []Service `json:"services"`
	Log      LogConfig `json:"log"`
}

type Service struct {
	Name      string    `json:"name"`
	Addr      string    `json:"addr"`
	Handler   Handler   `json:"handler"`
	Forwarder Forwarder `json:"forwarder"`
}

type Handler struct {
	Type string `json:"type"`
	Auth *Auth  `json:"auth,omitempty"`
}

type Auth struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type Forwarder struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Addr string `json:"addr"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// HandlerFor maps a profile type to the gost handler that serves it. Unknown
// types get socks5.
func HandlerFor(t model.ProfileType) string {
	switch t {
	case model.ProfileForward:
		return "socks5"
	case model.ProfileReverse, model.ProfileTCP:
		return "tcp"
	case model.ProfileHTTP:
		return "http"
	case model.ProfileUDP:
		return "udp"
	case model.ProfileSS:
		return "ss"
	default:
		return "socks5"
	}
}

func supportsAuth(handler string) bool {
	return handler == "socks5" || handler == "http"
}

// BuildConfig produces the single-service config for p. Credentials are only
// attached when both are set and the handler understands them.
func BuildConfig(p model.Profile, logLevel string) Config {
	handler := Handler{Type: HandlerFor(p.Type)}
	if p.Username != "" && p.Password != "" && supportsAuth(handler.Type) {
		handler.Auth = &Auth{Username: p.Username, Password: p.Password}
	}
	switch strings.ToLower(logLevel) {
	case "debug", "info", "warn", "error":
		logLevel = strings.ToLower(logLevel)
	default:
		logLevel = "info"
	}
	return Config{
		Services: []Service{{
			Name:      p.Name,
			Addr:      p.Listen,
			Handler:   handler,
			Forwarder: Forwarder{Nodes: []Node{{Addr: p.Remote}}},
		}},
		Log: LogConfig{Level: logLevel, Format: "json", Output: "stderr"},
	}
}

// RenderConfig returns the indented JSON for p.
func RenderConfig(p model.Profile, logLevel string) ([]byte, error) {
	return json.MarshalIndent(BuildConfig(p, logLevel), "", "  ")
}

// ConfigPath is where the config for profile id lives under dir.
func ConfigPath(dir string, id int64) string {
	return filepath.Join(dir, fmt.Sprintf("profile_%d.json", id))
}

// WriteConfig renders p into dir and returns the file path. The file may
// carry credentials, so it is owner-only.
func WriteConfig(dir string, p model.Profile, logLevel string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create engine config dir: %w", err)
	}
	b, err := RenderConfig(p, logLevel)
	if err != nil {
		return "", err
	}
	path := ConfigPath(dir, p.ID)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("write engine config: %w", err)
	}
	return path, nil
}
