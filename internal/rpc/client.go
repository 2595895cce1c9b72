package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/treykane/gostly/internal/bridge"
	"github.com/treykane/gostly/internal/model"
)

// ErrUnauthorized is returned by Dial when the daemon rejects the token.
var ErrUnauthorized = errors.New("bridge token rejected")

// Client is a bridge.Backend backed by a daemon connection. Once the
// connection drops every pending and later call fails with
// bridge.ErrUnavailable.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	closed  bool
	done    chan struct{}
}

var _ bridge.Backend = (*Client)(nil)

// Dial connects to the daemon at url.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: dial %s: %v", bridge.ErrUnavailable, url, err)
	}
	conn.SetReadLimit(readLimit)
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
			ch <- resp
		}
		c.mu.Unlock()
	}
}

// shutdown marks the client closed and releases every waiting call.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	close(c.done)
	_ = c.conn.Close()
}

// Close drops the connection.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := Request{ID: uuid.NewString(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("%s: encode params: %w", method, err)
		}
		req.Params = raw
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, bridge.ErrUnavailable
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.shutdown()
		return nil, fmt.Errorf("%w: %v", bridge.ErrUnavailable, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, bridge.ErrUnavailable
		}
		if e := bytes.TrimSpace(resp.Error); len(e) > 0 && !bytes.Equal(e, []byte("null")) {
			return nil, bridge.DecodeError(resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) invoke(ctx context.Context, method string, params, out any) error {
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var out []model.Profile
	err := c.invoke(ctx, bridge.MethodListProfiles, nil, &out)
	return out, err
}

func (c *Client) AddProfile(ctx context.Context, d model.ProfileDraft) (int64, error) {
	var id int64
	err := c.invoke(ctx, bridge.MethodAddProfile, d, &id)
	return id, err
}

func (c *Client) UpdateProfile(ctx context.Context, p model.Profile) error {
	return c.invoke(ctx, bridge.MethodUpdateProfile, p, nil)
}

func (c *Client) DeleteProfile(ctx context.Context, id int64) error {
	return c.invoke(ctx, bridge.MethodDeleteProfile, idParams{ID: id}, nil)
}

func (c *Client) StartProfile(ctx context.Context, id int64) error {
	return c.invoke(ctx, bridge.MethodStartProfile, idParams{ID: id}, nil)
}

func (c *Client) StopProfile(ctx context.Context, id int64) error {
	return c.invoke(ctx, bridge.MethodStopProfile, idParams{ID: id}, nil)
}

func (c *Client) IsEngineAvailable(ctx context.Context) (bool, error) {
	var ok bool
	err := c.invoke(ctx, bridge.MethodIsEngineAvailable, nil, &ok)
	return ok, err
}

func (c *Client) GetEngineVersion(ctx context.Context) (string, error) {
	var v string
	err := c.invoke(ctx, bridge.MethodGetEngineVersion, nil, &v)
	return v, err
}

func (c *Client) GetServiceStatus(ctx context.Context) (model.EngineStatus, error) {
	var st model.EngineStatus
	err := c.invoke(ctx, bridge.MethodGetServiceStatus, nil, &st)
	return st, err
}

func (c *Client) ListTimelineEvents(ctx context.Context) ([]model.TimelineEvent, error) {
	var out []model.TimelineEvent
	err := c.invoke(ctx, bridge.MethodListTimelineEvents, nil, &out)
	return out, err
}

func (c *Client) ListRecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	var out []model.LogEntry
	err := c.invoke(ctx, bridge.MethodListRecentLogs, limitParams{Limit: limit}, &out)
	return out, err
}

func (c *Client) ClearLogs(ctx context.Context) error {
	return c.invoke(ctx, bridge.MethodClearLogs, nil, nil)
}

func (c *Client) ListActivity(ctx context.Context, profileID int64, limit int) ([]model.ActivityLog, error) {
	var out []model.ActivityLog
	err := c.invoke(ctx, bridge.MethodListActivity, activityParams{ProfileID: profileID, Limit: limit}, &out)
	return out, err
}

func (c *Client) ListHostMappings(ctx context.Context) ([]model.HostMapping, error) {
	var out []model.HostMapping
	err := c.invoke(ctx, bridge.MethodListHostMappings, nil, &out)
	return out, err
}

func (c *Client) UpsertHostMapping(ctx context.Context, m model.HostMapping) error {
	return c.invoke(ctx, bridge.MethodUpsertHostMapping, m, nil)
}

func (c *Client) DeleteHostMapping(ctx context.Context, id int64) error {
	return c.invoke(ctx, bridge.MethodDeleteHostMapping, idParams{ID: id}, nil)
}

// IsHostRouterRunning accepts any of the status shapes the daemon may send.
func (c *Client) IsHostRouterRunning(ctx context.Context) (model.RouterStatus, error) {
	raw, err := c.call(ctx, bridge.MethodIsHostRouterRunning, nil)
	if err != nil {
		return model.RouterStatus{}, err
	}
	return bridge.DecodeRouterStatus(raw)
}

func (c *Client) StartHostRouter(ctx context.Context, addr string) error {
	return c.invoke(ctx, bridge.MethodStartHostRouter, addrParams{Addr: addr}, nil)
}

func (c *Client) StopHostRouter(ctx context.Context) error {
	return c.invoke(ctx, bridge.MethodStopHostRouter, nil, nil)
}
