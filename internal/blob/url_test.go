package blob

import (
	"errors"
	"testing"
)

func TestKeyFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"virtual hosted", "https://lawly-docs.s3.amazonaws.com/contracts/rent.docx", "contracts/rent.docx"},
		{"virtual hosted regional", "https://lawly-docs.s3.eu-central-1.amazonaws.com/preview.png", "preview.png"},
		{"virtual hosted presigned", "https://lawly-docs.s3.amazonaws.com/a.pdf?X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Expires=604800", "a.pdf"},
		{"path style aws", "https://s3.amazonaws.com/lawly-docs/a.pdf", "a.pdf"},
		{"path style regional", "https://s3.eu-west-1.amazonaws.com/lawly-docs/dir/a.pdf", "dir/a.pdf"},
		{"self hosted", "https://storage.lawly.ru/lawly/templates/claim.docx?X-Amz-Signature=abc", "templates/claim.docx"},
		{"self hosted with port", "http://127.0.0.1:9000/lawly/claim.docx", "claim.docx"},
		{"percent encoded key", "https://storage.lawly.ru/lawly/my%20doc.docx", "my doc.docx"},
		{"surrounding whitespace", "  https://s3.amazonaws.com/lawly-docs/a.pdf ", "a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyFromURL(tt.url)
			if err != nil {
				t.Fatalf("KeyFromURL(%q): %v", tt.url, err)
			}
			if got != tt.want {
				t.Fatalf("KeyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestKeyFromURLInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"not-a-url",
		"ftp://host/bucket/key",
		"https://storage.lawly.ru/onlybucket",
		"https://storage.lawly.ru/bucket/",
		"https://lawly-docs.s3.amazonaws.com/",
	} {
		if _, err := KeyFromURL(raw); !errors.Is(err, ErrInvalidObjectURL) {
			t.Errorf("KeyFromURL(%q) error = %v, want ErrInvalidObjectURL", raw, err)
		}
	}
}
