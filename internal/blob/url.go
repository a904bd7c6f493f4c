package blob

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyFromURL extracts the object key from an S3 object URL.
//
// Both layouts the platform has produced are understood:
//   - virtual-hosted: https://<bucket>.s3.<region>.amazonaws.com/<key>
//   - path-style:     https://<endpoint>/<bucket>/<key>
//
// Presign query parameters are ignored.
func KeyFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectURL, raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidObjectURL, raw)
	}

	host := strings.ToLower(u.Hostname())
	path := strings.TrimPrefix(u.Path, "/")

	// Amazon virtual-hosted URLs carry the bucket in the host, every other
	// layout carries it as the first path segment.
	virtualHosted := strings.HasSuffix(host, ".amazonaws.com") && !strings.HasPrefix(host, "s3.")

	key := path
	if !virtualHosted {
		_, rest, ok := strings.Cut(path, "/")
		if !ok {
			return "", fmt.Errorf("%w: no key in %q", ErrInvalidObjectURL, raw)
		}
		key = rest
	}
	if key == "" {
		return "", fmt.Errorf("%w: no key in %q", ErrInvalidObjectURL, raw)
	}
	return key, nil
}
