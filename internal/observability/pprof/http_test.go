package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalizePrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/debug/pprof"},
		{"   ", "/debug/pprof"},
		{"/debug/pprof", "/debug/pprof"},
		{"/debug/pprof/", "/debug/pprof"},
		{"_prof", "/_prof"},
		{"/_prof///", "/_prof"},
	}
	for _, c := range cases {
		if got := normalizePrefix(c.in); got != c.want {
			t.Errorf("normalizePrefix(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:6060", true},
		{"localhost:6060", true},
		{"[::1]:6060", true},
		{":6060", false},
		{"0.0.0.0:6060", false},
		{"10.0.0.5:6060", false},
		{"example.com:6060", false},
	}
	for _, c := range cases {
		if got := isLoopbackAddr(c.addr); got != c.want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestRequireToken(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := requireToken("s3cret", inner)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/debug/pprof/", "", http.StatusUnauthorized},
		{"wrong token", "/debug/pprof/?token=nope", "", http.StatusUnauthorized},
		{"query token", "/debug/pprof/?token=s3cret", "", http.StatusOK},
		{"bearer token", "/debug/pprof/", "Bearer s3cret", http.StatusOK},
		{"healthz exempt", "/healthz", "", http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, c.path, nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != c.want {
				t.Fatalf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestNeedsRestart(t *testing.T) {
	base := Config{Addr: "127.0.0.1:6060", Prefix: "/debug/pprof", ReadTimeout: time.Second}

	if needsRestart(base, base) {
		t.Fatal("identical configs should not restart")
	}

	same := base
	same.Prefix = "/debug/pprof/"
	if needsRestart(base, same) {
		t.Fatal("prefix normalization should not restart")
	}

	changed := base
	changed.Addr = "127.0.0.1:7070"
	if !needsRestart(base, changed) {
		t.Fatal("addr change should restart")
	}

	changed = base
	changed.Token = "t"
	if !needsRestart(base, changed) {
		t.Fatal("token change should restart")
	}

	changed = base
	changed.ReadTimeout = 2 * time.Second
	if !needsRestart(base, changed) {
		t.Fatal("timeout change should restart")
	}

	// Runtime rates apply without a listener restart.
	changed = base
	changed.MutexProfileFraction = 5
	if needsRestart(base, changed) {
		t.Fatal("profile rate change should not restart")
	}
}
