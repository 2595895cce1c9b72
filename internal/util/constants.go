// Package util provides small helpers and constants shared across gostly.
// It imports no other internal package.
package util

import "time"

const (
	// ServicePollInterval is how often the engine availability and status are
	// polled by the dashboard.
	ServicePollInterval = 10 * time.Second

	// RouterPollInterval is how often the host router state is refreshed while
	// the host mapping view is visible.
	RouterPollInterval = 5 * time.Second

	// ListTimeout bounds how long a profile listing may take before the
	// last-known snapshot is shown instead.
	ListTimeout = 5 * time.Second

	// DefaultLogLimit is the number of recent log entries fetched for display.
	DefaultLogLimit = 100

	// DefaultActivityLimit is how many profile operation records are shown.
	DefaultActivityLimit = 50

	// MaxLogEntries caps the backend's in-memory log ring.
	MaxLogEntries = 1000

	// EngineStopGrace is how long an engine process gets to exit after an
	// interrupt before it is killed.
	EngineStopGrace = 3 * time.Second

	// RouterShutdownTimeout bounds the graceful shutdown of the host router.
	RouterShutdownTimeout = 5 * time.Second

	// DefaultRouterAddr is offered when the operator has not chosen an address.
	DefaultRouterAddr = ":8080"
)
