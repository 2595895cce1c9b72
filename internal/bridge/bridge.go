// Package bridge defines the contract between the orchestration layer and
// whatever owns the proxy engine.
//
// Two implementations exist: backend.Local runs everything in-process and
// rpc.Client forwards each call to a `gostly serve` daemon over a websocket.
// A nil Backend means headless mode; callers fall back to the snapshots in
// fallback.go.
package bridge

import (
	"context"

	"github.com/treykane/gostly/internal/model"
)

// Backend is every operation the core may ask of the engine owner.
type Backend interface {
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	AddProfile(ctx context.Context, draft model.ProfileDraft) (int64, error)
	UpdateProfile(ctx context.Context, p model.Profile) error
	DeleteProfile(ctx context.Context, id int64) error
	StartProfile(ctx context.Context, id int64) error
	StopProfile(ctx context.Context, id int64) error

	IsEngineAvailable(ctx context.Context) (bool, error)
	GetEngineVersion(ctx context.Context) (string, error)
	GetServiceStatus(ctx context.Context) (model.EngineStatus, error)

	ListTimelineEvents(ctx context.Context) ([]model.TimelineEvent, error)
	ListRecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error)
	ClearLogs(ctx context.Context) error
	// ListActivity returns persisted profile operation records, newest
	// first. profileID 0 means every profile.
	ListActivity(ctx context.Context, profileID int64, limit int) ([]model.ActivityLog, error)

	ListHostMappings(ctx context.Context) ([]model.HostMapping, error)
	UpsertHostMapping(ctx context.Context, m model.HostMapping) error
	DeleteHostMapping(ctx context.Context, id int64) error

	IsHostRouterRunning(ctx context.Context) (model.RouterStatus, error)
	StartHostRouter(ctx context.Context, addr string) error
	StopHostRouter(ctx context.Context) error
}

// Method names used on the wire. They double as log keys.
const (
	MethodListProfiles        = "list_profiles"
	MethodAddProfile          = "add_profile"
	MethodUpdateProfile       = "update_profile"
	MethodDeleteProfile       = "delete_profile"
	MethodStartProfile        = "start_profile"
	MethodStopProfile         = "stop_profile"
	MethodIsEngineAvailable   = "is_engine_available"
	MethodGetEngineVersion    = "get_engine_version"
	MethodGetServiceStatus    = "get_service_status"
	MethodListTimelineEvents  = "list_timeline_events"
	MethodListRecentLogs      = "list_recent_logs"
	MethodClearLogs           = "clear_logs"
	MethodListActivity        = "list_activity"
	MethodListHostMappings    = "list_host_mappings"
	MethodUpsertHostMapping   = "upsert_host_mapping"
	MethodDeleteHostMapping   = "delete_host_mapping"
	MethodIsHostRouterRunning = "is_host_router_running"
	MethodStartHostRouter     = "start_host_router"
	MethodStopHostRouter      = "stop_host_router"
)
