package engine

import (
	"encoding/json"
	"strings"

	"github.com/treykane/gostly/internal/model"
)

// DetectLevel classifies one line of gost output. JSON lines carry a level
// field; anything else is matched against keywords.
func DetectLevel(line string) string {
	var rec struct {
		Level string `json:"level"`
	}
	if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &rec); err == nil && rec.Level != "" {
			switch strings.ToLower(rec.Level) {
			case "debug", "trace":
				return model.LevelDebug
			case "warn", "warning":
				return model.LevelWarn
			case "error", "fatal", "panic":
				return model.LevelError
			default:
				return model.LevelInfo
			}
		}
	}

	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, "error", "failed", "fatal", "panic"):
		return model.LevelError
	case containsAny(lower, "warn", "deprecated", "notice"):
		return model.LevelWarn
	case containsAny(lower, "debug", "trace"):
		return model.LevelDebug
	}
	return model.LevelInfo
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
