// Package hostrouter is the HTTP front door that routes requests to local
// upstreams by their Host header.
package hostrouter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/treykane/gostly/internal/model"
	"github.com/treykane/gostly/internal/util"
)

// ErrNotRunning is returned by Stop when no server is listening.
var ErrNotRunning = errors.New("host router not running")

type table struct {
	routes   map[string]*httputil.ReverseProxy
	fallback *httputil.ReverseProxy
}

// Router serves the active HTTP and HTTPS host mappings. Mapping changes take
// effect on the next request without a restart.
type Router struct {
	log      *slog.Logger
	fallback string
	current  atomic.Pointer[table]

	mu     sync.Mutex
	server *http.Server
	ln     net.Listener
	addr   string
}

// New builds a Router. fallbackUpstream, when set, receives requests for
// unknown hosts; otherwise they get 502.
func New(fallbackUpstream string, log *slog.Logger) (*Router, error) {
	if log == nil {
		log = slog.Default()
	}
	fallbackUpstream = strings.TrimSpace(fallbackUpstream)
	if fallbackUpstream != "" {
		if _, err := parseUpstream(fallbackUpstream); err != nil {
			return nil, fmt.Errorf("fallback upstream: %w", err)
		}
	}
	r := &Router{log: log, fallback: fallbackUpstream}
	r.SetMappings(nil)
	return r, nil
}

// SetMappings replaces the routing table. TCP and inactive mappings are not
// routable over HTTP and are skipped.
func (r *Router) SetMappings(mappings []model.HostMapping) {
	t := &table{routes: make(map[string]*httputil.ReverseProxy, len(mappings))}
	for _, m := range mappings {
		if !m.Active || strings.EqualFold(string(m.Protocol), string(model.ProtocolTCP)) {
			continue
		}
		target, err := parseUpstream(m.Upstream())
		if err != nil {
			r.log.Warn("skipping host mapping", "hostname", m.Hostname, "error", err)
			continue
		}
		t.routes[normalizeHost(m.Hostname)] = r.proxyFor(m.Hostname, target)
	}
	if r.fallback != "" {
		if target, err := parseUpstream(r.fallback); err == nil {
			t.fallback = r.proxyFor("fallback", target)
		}
	}
	r.current.Store(t)
}

// Routes returns the hostnames currently routed.
func (r *Router) Routes() []string {
	t := r.current.Load()
	out := make([]string, 0, len(t.routes))
	for h := range t.routes {
		out = append(out, h)
	}
	return out
}

func (r *Router) proxyFor(name string, target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		host := req.Host
		director(req)
		req.Host = target.Host
		req.Header.Set("X-Forwarded-Host", host)
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		r.log.Warn("host router upstream error", "route", name, "upstream", target.String(), "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return proxy
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	t := r.current.Load()
	if proxy, ok := t.routes[normalizeHost(req.Host)]; ok {
		proxy.ServeHTTP(w, req)
		return
	}
	if t.fallback != nil {
		t.fallback.ServeHTTP(w, req)
		return
	}
	r.log.Debug("no host mapping", "host", req.Host)
	http.Error(w, fmt.Sprintf("no host mapping for %q", req.Host), http.StatusBadGateway)
}

// Start listens on addr and serves in the background. A router that is
// already running is stopped first. Bind errors are returned directly.
func (r *Router) Start(addr string) error {
	addr = util.NormalizeAddr(addr, util.DefaultRouterAddr)
	if r.Running() {
		r.log.Info("stopping existing host router before starting new one")
		ctx, cancel := context.WithTimeout(context.Background(), util.RouterShutdownTimeout)
		err := r.Stop(ctx)
		cancel()
		if err != nil && !errors.Is(err, ErrNotRunning) {
			r.log.Warn("failed to stop existing router", "error", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: util.RouterShutdownTimeout}

	r.mu.Lock()
	r.server = srv
	r.ln = ln
	r.addr = addr
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("host router stopped", "addr", addr, "error", err)
			r.mu.Lock()
			if r.server == srv {
				r.server, r.ln, r.addr = nil, nil, ""
			}
			r.mu.Unlock()
		}
	}()
	r.log.Info("host router started", "addr", addr)
	return nil
}

// Stop shuts the server down gracefully within ctx.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	srv := r.server
	r.server, r.ln, r.addr = nil, nil, ""
	r.mu.Unlock()
	if srv == nil {
		return ErrNotRunning
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown host router: %w", err)
	}
	r.log.Info("host router stopped")
	return nil
}

func (r *Router) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.server != nil
}

// Status reports the requested listen address while running.
func (r *Router) Status() model.RouterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.RouterStatus{Running: r.server != nil, Addr: r.addr}
}

// BoundAddr is the actual listener address, which differs from Status().Addr
// when port 0 was requested.
func (r *Router) BoundAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return ""
	}
	return r.ln.Addr().String()
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}
