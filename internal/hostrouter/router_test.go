package hostrouter

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/treykane/gostly/internal/model"
)

func upstream(t *testing.T, body string) (*httptest.Server, string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Forwarded-Host", r.Header.Get("X-Forwarded-Host"))
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return srv, host, port
}

func serve(r *Router, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesByHostHeader(t *testing.T) {
	_, ipA, portA := upstream(t, "alpha")
	_, ipB, portB := upstream(t, "beta")

	r, err := New("", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetMappings([]model.HostMapping{
		{Hostname: "alpha.local", IP: ipA, Port: portA, Protocol: model.ProtocolHTTP, Active: true},
		{Hostname: "Beta.Local", IP: ipB, Port: portB, Protocol: model.ProtocolHTTP, Active: true},
		{Hostname: "off.local", IP: ipB, Port: portB, Protocol: model.ProtocolHTTP, Active: false},
		{Hostname: "raw.local", IP: ipB, Port: portB, Protocol: model.ProtocolTCP, Active: true},
	})

	rec := serve(r, "alpha.local:8080")
	if rec.Code != http.StatusOK || rec.Body.String() != "alpha" {
		t.Fatalf("alpha: %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Seen-Forwarded-Host"); got != "alpha.local:8080" {
		t.Fatalf("expected forwarded host to be preserved, got %q", got)
	}
	if rec := serve(r, "beta.local"); rec.Body.String() != "beta" {
		t.Fatalf("beta: %d %q", rec.Code, rec.Body.String())
	}
	for _, host := range []string{"off.local", "raw.local", "unknown.local"} {
		if rec := serve(r, host); rec.Code != http.StatusBadGateway {
			t.Fatalf("%s: expected 502, got %d", host, rec.Code)
		}
	}
	if len(r.Routes()) != 2 {
		t.Fatalf("expected 2 routable hosts, got %v", r.Routes())
	}
}

func TestFullyQualifiedHostMatches(t *testing.T) {
	_, ip, port := upstream(t, "fqdn")
	r, err := New("", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetMappings([]model.HostMapping{{Hostname: "example.local", IP: ip, Port: port, Protocol: model.ProtocolHTTP, Active: true}})

	for _, host := range []string{"example.local.", "example.local.:8080", "EXAMPLE.local.:80"} {
		if rec := serve(r, host); rec.Code != http.StatusOK || rec.Body.String() != "fqdn" {
			t.Fatalf("%s: %d %q", host, rec.Code, rec.Body.String())
		}
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"example.local":       "example.local",
		"example.local.":      "example.local",
		"Example.Local:8080":  "example.local",
		"example.local.:8080": "example.local",
		"[::1]:8080":          "::1",
	}
	for in, want := range cases {
		if got := normalizeHost(in); got != want {
			t.Fatalf("normalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMappingChangesApplyLive(t *testing.T) {
	_, ip, port := upstream(t, "v1")
	r, err := New("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec := serve(r, "app.local"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 before mapping, got %d", rec.Code)
	}
	r.SetMappings([]model.HostMapping{{Hostname: "app.local", IP: ip, Port: port, Protocol: model.ProtocolHTTP, Active: true}})
	if rec := serve(r, "app.local"); rec.Body.String() != "v1" {
		t.Fatalf("expected routed response, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestFallbackUpstream(t *testing.T) {
	fb, _, _ := upstream(t, "fallback")
	r, err := New(fb.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec := serve(r, "whatever.local"); rec.Code != http.StatusOK || rec.Body.String() != "fallback" {
		t.Fatalf("expected fallback, got %d %q", rec.Code, rec.Body.String())
	}
	if _, err := New("ftp://nope", nil); err == nil {
		t.Fatal("expected invalid fallback to be rejected")
	}
}

func TestUnreachableUpstreamIs502(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	r, _ := New("", nil)
	r.SetMappings([]model.HostMapping{{Hostname: "dead.local", IP: "127.0.0.1", Port: port, Protocol: model.ProtocolHTTP, Active: true}})
	if rec := serve(r, "dead.local"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	_, ip, port := upstream(t, "live")
	r, err := New("", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetMappings([]model.HostMapping{{Hostname: "live.local", IP: ip, Port: port, Protocol: model.ProtocolHTTP, Active: true}})

	if err := r.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if err := r.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	st := r.Status()
	if !st.Running || st.Addr != "127.0.0.1:0" {
		t.Fatalf("unexpected status: %+v", st)
	}
	first := r.BoundAddr()

	req, _ := http.NewRequest(http.MethodGet, "http://"+first+"/", nil)
	req.Host = "live.local"
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "live" {
		t.Fatalf("unexpected body %q", body)
	}

	// Starting again replaces the running server.
	if err := r.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if r.BoundAddr() == first {
		t.Fatal("expected a fresh listener after restart")
	}
	if _, err := client.Get("http://" + first + "/"); err == nil {
		t.Fatal("old listener should be closed")
	}

	if err := r.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := r.Status(); st.Running || st.Addr != "" {
		t.Fatalf("expected stopped status, got %+v", st)
	}
}

func TestStartReportsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	r, _ := New("", nil)
	if err := r.Start(ln.Addr().String()); err == nil {
		t.Fatal("expected bind error on an occupied port")
	}
	if r.Running() {
		t.Fatal("router must not report running after a bind failure")
	}
}
