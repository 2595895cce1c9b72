package model

import (
	"fmt"
	"strings"
	"time"
)

// ProfileType selects the protocol semantics of a profile.
type ProfileType string

const (
	ProfileForward ProfileType = "forward"
	ProfileReverse ProfileType = "reverse"
	ProfileHTTP    ProfileType = "http"
	ProfileTCP     ProfileType = "tcp"
	ProfileUDP     ProfileType = "udp"
	ProfileSS      ProfileType = "ss"
)

// ProfileTypes lists every accepted profile type in display order.
var ProfileTypes = []ProfileType{ProfileForward, ProfileReverse, ProfileHTTP, ProfileTCP, ProfileUDP, ProfileSS}

func (t ProfileType) Valid() bool {
	for _, v := range ProfileTypes {
		if v == t {
			return true
		}
	}
	return false
}

type ProfileStatus string

const (
	StatusRunning ProfileStatus = "running"
	StatusStopped ProfileStatus = "stopped"
)

// Profile is one managed proxy instance (listen -> remote).
type Profile struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Type     ProfileType   `json:"type"`
	Listen   string        `json:"listen"`
	Remote   string        `json:"remote"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Status   ProfileStatus `json:"status"`
}

// ProfileDraft is a profile before the backend has assigned an id.
type ProfileDraft struct {
	Name     string      `json:"name"`
	Type     ProfileType `json:"type"`
	Listen   string      `json:"listen"`
	Remote   string      `json:"remote"`
	Username string      `json:"username"`
	Password string      `json:"password"`
}

// Profile materializes the draft with the given id and status.
func (d ProfileDraft) Profile(id int64, status ProfileStatus) Profile {
	return Profile{
		ID:       id,
		Name:     d.Name,
		Type:     d.Type,
		Listen:   d.Listen,
		Remote:   d.Remote,
		Username: d.Username,
		Password: d.Password,
		Status:   status,
	}
}

func (p Profile) Running() bool { return p.Status == StatusRunning }

// Draft strips the backend-owned fields.
func (p Profile) Draft() ProfileDraft {
	return ProfileDraft{
		Name:     p.Name,
		Type:     p.Type,
		Listen:   p.Listen,
		Remote:   p.Remote,
		Username: p.Username,
		Password: p.Password,
	}
}

type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolTCP   Protocol = "TCP"
)

// ParseProtocol accepts any casing of HTTP, HTTPS or TCP.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToUpper(strings.TrimSpace(s))) {
	case ProtocolHTTP:
		return ProtocolHTTP, nil
	case ProtocolHTTPS:
		return ProtocolHTTPS, nil
	case ProtocolTCP:
		return ProtocolTCP, nil
	}
	return "", fmt.Errorf("unknown protocol %q (want HTTP, HTTPS or TCP)", s)
}

// HostMapping routes requests for Hostname to IP:Port.
type HostMapping struct {
	ID       int64    `json:"id"`
	Hostname string   `json:"hostname"`
	IP       string   `json:"ip"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
	Active   bool     `json:"active"`
}

func (m HostMapping) Validate() error {
	if strings.TrimSpace(m.Hostname) == "" {
		return fmt.Errorf("hostname is required")
	}
	if strings.TrimSpace(m.IP) == "" {
		return fmt.Errorf("ip is required")
	}
	if m.Port <= 0 {
		return fmt.Errorf("port must be a positive integer")
	}
	if _, err := ParseProtocol(string(m.Protocol)); err != nil {
		return err
	}
	return nil
}

// Upstream returns the scheme://ip:port the router forwards to.
func (m HostMapping) Upstream() string {
	scheme := "http"
	if strings.EqualFold(string(m.Protocol), string(ProtocolHTTPS)) {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.IP, m.Port)
}

// EngineStatus is what the backend reports about the managed service.
type EngineStatus struct {
	Running bool   `json:"running"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// ServiceStatus is the engine-level status maintained by the poller.
type ServiceStatus struct {
	Available      bool      `json:"available"`
	Version        string    `json:"version"`
	Running        bool      `json:"running"`
	ServiceVersion string    `json:"service_version"`
	Uptime         string    `json:"uptime"`
	LastCheck      time.Time `json:"last_check"`
}

// ConnectionStatus is derived from the profile collection.
type ConnectionStatus struct {
	IsConnected    bool `json:"is_connected"`
	ActiveProfiles int  `json:"active_profiles"`
	TotalProfiles  int  `json:"total_profiles"`
}

// RouterStatus is the normalized answer to "is the host router running".
type RouterStatus struct {
	Running bool   `json:"running"`
	Addr    string `json:"addr"`
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message for the operator.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

type RouterState struct {
	Running    bool    `json:"running"`
	ListenAddr string  `json:"listen_addr"`
	Busy       bool    `json:"busy"`
	AddrError  string  `json:"addr_error,omitempty"`
	Notice     *Notice `json:"notice,omitempty"`
}

type TargetKind string

const (
	TargetProfile     TargetKind = "profile"
	TargetHostMapping TargetKind = "host_mapping"
)

// PendingConfirmation is a destructive action waiting for the operator.
type PendingConfirmation struct {
	TargetID    int64      `json:"target_id"`
	TargetLabel string     `json:"target_label"`
	TargetKind  TargetKind `json:"target_kind"`
}

// LogEntry is one line of engine or system output.
type LogEntry struct {
	ID          int64  `json:"id"`
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	Source      string `json:"source"`
	Message     string `json:"message"`
	ProfileID   *int64 `json:"profile_id,omitempty"`
	ProfileName string `json:"profile_name,omitempty"`
}

// Log levels and sources used by the backend.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"

	SourceEngine = "gost"
	SourceSystem = "system"
	SourceAPI    = "api"
)

// TimelineEvent is one entry of the activity history.
type TimelineEvent struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Action      string `json:"action"`
	Details     string `json:"details"`
	Timestamp   string `json:"timestamp"`
	ProfileName string `json:"profile_name,omitempty"`
	Status      string `json:"status"`
	User        string `json:"user,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Timeline event types.
const (
	EventProxyAction   = "proxy_action"
	EventConfiguration = "configuration"
	EventSystem        = "system"
	EventError         = "error"
	EventHostMapping   = "host_mapping"
)

// ActivityLog is a persisted profile operation record.
type ActivityLog struct {
	ID          int64  `json:"id"`
	ProfileID   int64  `json:"profile_id"`
	ProfileName string `json:"profile_name"`
	Action      string `json:"action"`
	Details     string `json:"details"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
}
