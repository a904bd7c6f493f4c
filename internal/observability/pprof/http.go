package pprof

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	netpprof "net/http/pprof"
	"runtime"
	"strings"
	"time"

	logx "lawly-scheduler/pkg/logx"
)

const (
	defaultAddr   = "127.0.0.1:6060"
	defaultPrefix = "/debug/pprof"
)

// serveOnce runs one listen+serve cycle. It returns nil on clean shutdown
// (including refused insecure binds) and an error when the supervisor should
// retry with backoff.
func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if !cfg.Enabled {
		return nil
	}

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	if !isLoopbackAddr(addr) && cfg.Token == "" && !cfg.AllowInsecure {
		s.log.Error("pprof refused: non-loopback bind without token",
			logx.String("addr", addr))
		return nil
	}

	prefix := normalizePrefix(cfg.Prefix)

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", indexHandler(prefix))
	mux.HandleFunc(prefix+"/cmdline", netpprof.Cmdline)
	mux.HandleFunc(prefix+"/profile", netpprof.Profile)
	mux.HandleFunc(prefix+"/symbol", netpprof.Symbol)
	mux.HandleFunc(prefix+"/trace", netpprof.Trace)
	mux.HandleFunc("/healthz", s.handleHealthz)

	var handler http.Handler = mux
	if cfg.Token != "" {
		handler = requireToken(cfg.Token, mux)
	}

	srv := &http.Server{
		Handler:     handler,
		ReadTimeout: orDur(cfg.ReadTimeout, 10*time.Second),
		// Profile and trace endpoints stream for ?seconds=N, so the write
		// timeout has to stay generous.
		WriteTimeout: orDur(cfg.WriteTimeout, 2*time.Minute),
		IdleTimeout:  orDur(cfg.IdleTimeout, time.Minute),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("pprof listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	served := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		case <-served:
		}
	}()

	s.log.Info("pprof listening",
		logx.String("addr", ln.Addr().String()),
		logx.String("prefix", prefix))

	err = srv.Serve(ln)
	close(served)

	s.mu.Lock()
	if s.srv == srv {
		s.srv = nil
		s.ln = nil
	}
	s.mu.Unlock()

	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

// indexHandler rebases requests onto /debug/pprof so the stdlib index
// resolves profile names regardless of the configured prefix.
func indexHandler(prefix string) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.Path = defaultPrefix + r.URL.Path
		netpprof.Index(w, r)
	})
	return http.StripPrefix(prefix, h)
}

// requireToken guards everything except /healthz. The token is accepted as
// "Authorization: Bearer <token>" or "?token=<token>".
func requireToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.URL.Query().Get("token")
		if got == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"time":       time.Now().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	})
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func orDur(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
