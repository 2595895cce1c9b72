// Package rpc carries bridge.Backend calls over a websocket so the dashboard
// and CLI can drive a `gostly serve` daemon.
//
// Every frame is one JSON envelope. Requests carry a uuid that the daemon
// echoes in the matching response; responses may arrive in any order.
package rpc

import (
	"encoding/json"
	"time"
)

// Request is a single backend call.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers the request with the same ID. Error, when present, is
// decoded with bridge.DecodeError.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type idParams struct {
	ID int64 `json:"id"`
}

type limitParams struct {
	Limit int `json:"limit"`
}

type activityParams struct {
	ProfileID int64 `json:"profile_id,omitempty"`
	Limit     int   `json:"limit"`
}

type addrParams struct {
	Addr string `json:"addr"`
}

const (
	readLimit        = 4 << 20
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)
