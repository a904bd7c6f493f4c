package linkrefresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// reupload downloads the link's content and stores it under a fresh key,
// returning a presigned URL for the new object.
//
// The source URL usually still serves the bytes even when the exact key is
// gone from the store (renamed objects, caches in front of the bucket).
func (r *Runner) reupload(ctx context.Context, rawURL string) (newURL, newKey string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	// Spool through a temp file; objects can be large and Upload wants a
	// seekable body for signing.
	tmp, err := os.CreateTemp("", "linkrefresh-*")
	if err != nil {
		return "", "", fmt.Errorf("temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", "", fmt.Errorf("download: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, merr := mimetype.DetectFile(tmp.Name()); merr == nil {
		contentType = mt.String()
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	key := uuid.NewString() + extFromURL(rawURL)
	if err := r.objects.Upload(ctx, key, tmp, contentType); err != nil {
		return "", "", err
	}

	newURL, err = r.objects.PresignGet(ctx, key, r.cfg.PresignTTL)
	if err != nil {
		return "", "", err
	}
	return newURL, key, nil
}

// extFromURL returns the filename extension of the URL path, query ignored.
func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(path.Base(u.Path))
}
