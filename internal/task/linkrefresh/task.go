// Package linkrefresh keeps template file links usable.
//
// The platform hands clients presigned S3 links with a bounded lifetime, so
// every stored download_url/image_url goes stale unless it is re-signed
// before expiry. The runner walks every template carrying a link, re-signs
// links whose object is still in the store, and re-uploads from the link
// itself when the object is gone.
package linkrefresh

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"lawly-scheduler/internal/store"
	logx "lawly-scheduler/pkg/logx"
)

// Name is the task identity used for scheduling, logging and run history.
const Name = "link_refresh"

const (
	defaultPresignTTL  = 7 * 24 * time.Hour
	defaultHTTPTimeout = 2 * time.Minute
)

// Config tunes a single runner.
type Config struct {
	// PresignTTL is how long refreshed links stay valid.
	PresignTTL time.Duration

	// HTTPTimeout bounds the re-download of a missing object's source URL.
	HTTPTimeout time.Duration

	// RatePerSec throttles object store calls. 0 means unlimited.
	RatePerSec int

	// InsecureSkipVerify disables TLS verification on re-downloads. Set it
	// when the object store itself runs on a self-signed certificate.
	InsecureSkipVerify bool

	// DryRun computes and logs what would change without writing anything.
	DryRun bool
}

// TemplateSource lists templates and persists refreshed links.
type TemplateSource interface {
	ListWithFileLinks(ctx context.Context) ([]store.Template, error)
	UpdateLinks(ctx context.Context, id int64, downloadURL, imageURL string) error
}

// ObjectStore is the slice of the object store client the task needs.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Runner executes one link refresh pass per Run call.
type Runner struct {
	cfg       Config
	log       logx.Logger
	templates TemplateSource
	objects   ObjectStore
	http      *http.Client
	limiter   *rate.Limiter
}

func New(cfg Config, log logx.Logger, templates TemplateSource, objects ObjectStore) *Runner {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	limit := rate.Inf
	burst := 0
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.RatePerSec
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.InsecureSkipVerify {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Runner{
		cfg:       cfg,
		log:       log,
		templates: templates,
		objects:   objects,
		http:      hc,
		limiter:   rate.NewLimiter(limit, burst),
	}
}
