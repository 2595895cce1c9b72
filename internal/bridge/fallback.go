package bridge

import "github.com/treykane/gostly/internal/model"

// FallbackEngineVersion is reported by the headless availability probe.
const FallbackEngineVersion = "3.2.4"

// FallbackProfiles is the snapshot shown when no backend is attached and
// nothing has been loaded yet.
func FallbackProfiles() []model.Profile {
	return []model.Profile{
		{
			ID:     1,
			Name:   "Local SOCKS5",
			Type:   model.ProfileForward,
			Listen: ":1080",
			Remote: "127.0.0.1:1080",
			Status: model.StatusStopped,
		},
		{
			ID:       2,
			Name:     "HTTP Proxy",
			Type:     model.ProfileHTTP,
			Listen:   ":8080",
			Remote:   "example.com:80",
			Username: "demo-user",
			Password: "demo-password",
			Status:   model.StatusRunning,
		},
	}
}

// FallbackTimeline returns sample history for headless mode.
func FallbackTimeline() []model.TimelineEvent {
	return []model.TimelineEvent{
		{ID: 1, Type: model.EventConfiguration, Action: "Profile Created", Details: "New SOCKS5 proxy profile created", Timestamp: "2024-01-01T10:00:00Z", ProfileName: "Local SOCKS5", Status: "success", User: "admin", Duration: "2s"},
		{ID: 2, Type: model.EventProxyAction, Action: "Service Started", Details: "SOCKS5 proxy service started on port 1080", Timestamp: "2024-01-01T10:05:00Z", ProfileName: "Local SOCKS5", Status: "success", User: "admin", Duration: "1s"},
		{ID: 3, Type: model.EventHostMapping, Action: "Host Router Started", Details: "Custom host mapping router started on port 8080", Timestamp: "2024-01-01T10:10:00Z", Status: "success", User: "admin", Duration: "3s"},
		{ID: 4, Type: model.EventHostMapping, Action: "Host Mapping Added", Details: "Added host mapping: example.local -> 127.0.0.1:3000", Timestamp: "2024-01-01T10:12:00Z", Status: "success", User: "admin", Duration: "1s"},
	}
}

// FallbackLogs returns sample log lines for headless mode.
func FallbackLogs() []model.LogEntry {
	pid := int64(1)
	return []model.LogEntry{
		{ID: 1, Timestamp: "2024-01-01T10:00:00Z", Level: model.LevelInfo, Source: model.SourceEngine, Message: "Starting SOCKS5 proxy on :1080", ProfileID: &pid, ProfileName: "Local SOCKS5"},
		{ID: 2, Timestamp: "2024-01-01T10:00:01Z", Level: model.LevelInfo, Source: model.SourceEngine, Message: "SOCKS5 proxy started successfully", ProfileID: &pid, ProfileName: "Local SOCKS5"},
		{ID: 3, Timestamp: "2024-01-01T10:05:00Z", Level: model.LevelInfo, Source: model.SourceSystem, Message: "Profile Local SOCKS5 activated", ProfileID: &pid, ProfileName: "Local SOCKS5"},
	}
}

// FallbackActivity returns sample profile operation records, newest first.
func FallbackActivity() []model.ActivityLog {
	return []model.ActivityLog{
		{ID: 3, ProfileID: 2, ProfileName: "HTTP Proxy", Action: "started", Details: "listen :8080", Timestamp: "2024-01-01T10:06:00Z", Status: "success"},
		{ID: 2, ProfileID: 1, ProfileName: "Local SOCKS5", Action: "started", Details: "listen :1080", Timestamp: "2024-01-01T10:05:00Z", Status: "success"},
		{ID: 1, ProfileID: 1, ProfileName: "Local SOCKS5", Action: "created", Details: "socks5 :1080 -> 127.0.0.1:1080", Timestamp: "2024-01-01T10:00:00Z", Status: "success"},
	}
}

// FallbackEngineStatus is what the headless status probe reports.
func FallbackEngineStatus() model.EngineStatus {
	return model.EngineStatus{Running: false, Version: "Unknown"}
}
