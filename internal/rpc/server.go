package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// Handler serves a bridge.Backend to websocket clients. Requests on one
// connection are handled concurrently.
type Handler struct {
	backend  bridge.Backend
	hash     []byte
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler wraps backend. A non-empty token is required from every client
// as a bearer token; it may be given in plain text or as a bcrypt hash.
func NewHandler(backend bridge.Backend, token string) (*Handler, error) {
	h := &Handler{
		backend: backend,
		log:     slog.Default(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
		},
	}
	token = strings.TrimSpace(token)
	switch {
	case token == "":
	case isBcryptHash(token):
		h.hash = []byte(token)
	default:
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash bridge token: %w", err)
		}
		h.hash = hash
	}
	return h, nil
}

// HashToken returns the bcrypt form of token for storing in config.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.hash == nil {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(h.hash, []byte(token)) == nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}
	h.log.Debug("bridge client connected", "remote", r.RemoteAddr)
	h.serveConn(conn)
	h.log.Debug("bridge client disconnected", "remote", r.RemoteAddr)
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = conn.Close()
	}()
	conn.SetReadLimit(readLimit)

	var writeMu sync.Mutex
	write := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			h.log.Debug("bridge write failed", "id", resp.ID, "error", err)
			_ = conn.Close()
		}
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("bridge read error", "error", err)
			}
			return
		}
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			write(h.dispatch(ctx, req))
		}(req)
	}
}

func (h *Handler) dispatch(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	result, err := h.call(ctx, req.Method, req.Params)
	if err != nil {
		h.log.Debug("bridge call failed", "method", req.Method, "error", err)
		resp.Error = bridge.EncodeError(err)
		return resp
	}
	resp.Result = result
	return resp
}

func (h *Handler) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	b := h.backend
	switch method {
	case bridge.MethodListProfiles:
		v, err := b.ListProfiles(ctx)
		return encode(v, err)
	case bridge.MethodAddProfile:
		var d model.ProfileDraft
		if err := decodeParams(method, params, &d); err != nil {
			return nil, err
		}
		id, err := b.AddProfile(ctx, d)
		return encode(id, err)
	case bridge.MethodUpdateProfile:
		var p model.Profile
		if err := decodeParams(method, params, &p); err != nil {
			return nil, err
		}
		return nil, b.UpdateProfile(ctx, p)
	case bridge.MethodDeleteProfile, bridge.MethodStartProfile, bridge.MethodStopProfile, bridge.MethodDeleteHostMapping:
		var p idParams
		if err := decodeParams(method, params, &p); err != nil {
			return nil, err
		}
		switch method {
		case bridge.MethodDeleteProfile:
			return nil, b.DeleteProfile(ctx, p.ID)
		case bridge.MethodStartProfile:
			return nil, b.StartProfile(ctx, p.ID)
		case bridge.MethodStopProfile:
			return nil, b.StopProfile(ctx, p.ID)
		default:
			return nil, b.DeleteHostMapping(ctx, p.ID)
		}
	case bridge.MethodIsEngineAvailable:
		v, err := b.IsEngineAvailable(ctx)
		return encode(v, err)
	case bridge.MethodGetEngineVersion:
		v, err := b.GetEngineVersion(ctx)
		return encode(v, err)
	case bridge.MethodGetServiceStatus:
		v, err := b.GetServiceStatus(ctx)
		return encode(v, err)
	case bridge.MethodListTimelineEvents:
		v, err := b.ListTimelineEvents(ctx)
		return encode(v, err)
	case bridge.MethodListRecentLogs:
		var p limitParams
		if err := decodeParams(method, params, &p); err != nil {
			return nil, err
		}
		v, err := b.ListRecentLogs(ctx, p.Limit)
		return encode(v, err)
	case bridge.MethodClearLogs:
		return nil, b.ClearLogs(ctx)
	case bridge.MethodListActivity:
		var p activityParams
		if err := decodeParams(method, params, &p); err != nil {
			return nil, err
		}
		v, err := b.ListActivity(ctx, p.ProfileID, p.Limit)
		return encode(v, err)
	case bridge.MethodListHostMappings:
		v, err := b.ListHostMappings(ctx)
		return encode(v, err)
	case bridge.MethodUpsertHostMapping:
		var m model.HostMapping
		if err := decodeParams(method, params, &m); err != nil {
			return nil, err
		}
		return nil, b.UpsertHostMapping(ctx, m)
	case bridge.MethodIsHostRouterRunning:
		st, err := b.IsHostRouterRunning(ctx)
		if err != nil {
			return nil, err
		}
		return bridge.EncodeRouterStatus(st), nil
	case bridge.MethodStartHostRouter:
		var p addrParams
		if err := decodeParams(method, params, &p); err != nil {
			return nil, err
		}
		return nil, b.StartHostRouter(ctx, p.Addr)
	case bridge.MethodStopHostRouter:
		return nil, b.StopHostRouter(ctx)
	}
	return nil, fmt.Errorf("unknown method %q", method)
}

func encode(v any, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func decodeParams(method string, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%s: missing params", method)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: invalid params: %w", method, err)
	}
	return nil
}
