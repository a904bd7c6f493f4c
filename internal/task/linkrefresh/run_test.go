package linkrefresh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lawly-scheduler/internal/store"
	logx "lawly-scheduler/pkg/logx"
)

type updateCall struct {
	id       int64
	download string
	image    string
}

type fakeTemplates struct {
	list      []store.Template
	listErr   error
	updateErr error
	updates   []updateCall
}

func (f *fakeTemplates) ListWithFileLinks(context.Context) ([]store.Template, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeTemplates) UpdateLinks(_ context.Context, id int64, downloadURL, imageURL string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, updateCall{id: id, download: downloadURL, image: imageURL})
	return nil
}

type fakeObjects struct {
	exists     map[string]bool
	uploads    map[string]string // key -> content type
	uploadData map[string][]byte
	deleted    []string
}

func newFakeObjects(keys ...string) *fakeObjects {
	f := &fakeObjects{
		exists:     map[string]bool{},
		uploads:    map[string]string{},
		uploadData: map[string][]byte{},
	}
	for _, k := range keys {
		f.exists[k] = true
	}
	return f
}

func (f *fakeObjects) Exists(_ context.Context, key string) (bool, error) {
	return f.exists[key], nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.test/lawly/" + key + "?X-Amz-Expires=604800", nil
}

func (f *fakeObjects) Upload(_ context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.exists[key] = true
	f.uploads[key] = contentType
	f.uploadData[key] = data
	return nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.exists, key)
	return nil
}

func (f *fakeObjects) uploadedKeys() []string {
	keys := make([]string, 0, len(f.uploads))
	for k := range f.uploads {
		keys = append(keys, k)
	}
	return keys
}

func TestRunRefreshesExistingLinks(t *testing.T) {
	t.Parallel()

	tpls := &fakeTemplates{list: []store.Template{
		{
			ID:          1,
			Name:        "rent",
			DownloadURL: "https://storage.lawly.ru/lawly/contracts/rent.docx?X-Amz-Signature=old",
			ImageURL:    "https://storage.lawly.ru/lawly/previews/rent.png?X-Amz-Signature=old",
		},
		{
			ID:          2,
			Name:        "claim",
			DownloadURL: "https://storage.lawly.ru/lawly/contracts/claim.docx?X-Amz-Signature=old",
		},
	}}
	objs := newFakeObjects("contracts/rent.docx", "previews/rent.png", "contracts/claim.docx")
	r := New(Config{}, logx.Nop(), tpls, objs)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Report{Templates: 2, Updated: 2, Refreshed: 3}); rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}
	if len(tpls.updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(tpls.updates))
	}
	first := tpls.updates[0]
	if !strings.Contains(first.download, "contracts/rent.docx") || !strings.HasPrefix(first.download, "https://signed.test/") {
		t.Fatalf("download link not re-signed in place: %q", first.download)
	}
	if !strings.Contains(first.image, "previews/rent.png") {
		t.Fatalf("image link not re-signed in place: %q", first.image)
	}
	if len(objs.uploads) != 0 || len(objs.deleted) != 0 {
		t.Fatalf("presign-only run touched objects: uploads=%v deleted=%v", objs.uploadedKeys(), objs.deleted)
	}
}

func TestRunReuploadsMissingObject(t *testing.T) {
	t.Parallel()

	content := []byte("%PDF-1.7 fake body")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	oldURL := srv.URL + "/lawly/contracts/rent.pdf?X-Amz-Signature=old"
	tpls := &fakeTemplates{list: []store.Template{{ID: 7, DownloadURL: oldURL}}}
	objs := newFakeObjects()
	r := New(Config{}, logx.Nop(), tpls, objs)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Report{Templates: 1, Updated: 1, Reuploaded: 1, Deleted: 1}); rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}

	keys := objs.uploadedKeys()
	if len(keys) != 1 {
		t.Fatalf("got %d uploads, want 1: %v", len(keys), keys)
	}
	key := keys[0]
	if !strings.HasSuffix(key, ".pdf") || key == "contracts/rent.pdf" || len(key) <= len(".pdf") {
		t.Fatalf("re-upload key %q not a fresh name with the original extension", key)
	}
	if !bytes.Equal(objs.uploadData[key], content) {
		t.Fatalf("uploaded bytes differ from source")
	}
	if ct := objs.uploads[key]; ct != "application/pdf" {
		t.Fatalf("content type not sniffed from bytes: %q", ct)
	}

	if len(tpls.updates) != 1 || !strings.Contains(tpls.updates[0].download, key) {
		t.Fatalf("row not updated with the new link: %+v", tpls.updates)
	}
	if len(objs.deleted) != 1 || objs.deleted[0] != "contracts/rent.pdf" {
		t.Fatalf("replaced object not deleted: %v", objs.deleted)
	}
}

func TestRunContinuesAfterBadLink(t *testing.T) {
	t.Parallel()

	tpls := &fakeTemplates{list: []store.Template{
		{ID: 1, DownloadURL: "not-a-url"},
		{ID: 2, DownloadURL: "https://storage.lawly.ru/lawly/contracts/claim.docx?X-Amz-Signature=old"},
	}}
	objs := newFakeObjects("contracts/claim.docx")
	r := New(Config{}, logx.Nop(), tpls, objs)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Report{Templates: 2, Updated: 1, Refreshed: 1, Failed: 1}); rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}
	if len(tpls.updates) != 1 || tpls.updates[0].id != 2 {
		t.Fatalf("wrong rows updated: %+v", tpls.updates)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	tpls := &fakeTemplates{list: []store.Template{
		{ID: 1, DownloadURL: "https://storage.lawly.ru/lawly/contracts/rent.docx?X-Amz-Signature=old"},
		{ID: 2, DownloadURL: "https://storage.lawly.ru/lawly/contracts/gone.docx?X-Amz-Signature=old"},
	}}
	objs := newFakeObjects("contracts/rent.docx")
	r := New(Config{DryRun: true}, logx.Nop(), tpls, objs)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Report{Templates: 2, Refreshed: 1, Reuploaded: 1, Skipped: 1}); rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}
	if len(tpls.updates) != 0 || len(objs.uploads) != 0 || len(objs.deleted) != 0 {
		t.Fatalf("dry run wrote something: updates=%v uploads=%v deleted=%v",
			tpls.updates, objs.uploadedKeys(), objs.deleted)
	}
}

func TestRunCleansOrphansWhenUpdateFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	tpls := &fakeTemplates{
		list:      []store.Template{{ID: 3, DownloadURL: srv.URL + "/lawly/contracts/rent.docx"}},
		updateErr: errors.New("db down"),
	}
	objs := newFakeObjects()
	r := New(Config{}, logx.Nop(), tpls, objs)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (Report{Templates: 1, Reuploaded: 1, Failed: 1}); rep != want {
		t.Fatalf("report = %+v, want %+v", rep, want)
	}

	keys := objs.uploadedKeys()
	if len(keys) != 1 {
		t.Fatalf("got %d uploads, want 1", len(keys))
	}
	if len(objs.deleted) != 1 || objs.deleted[0] != keys[0] {
		t.Fatalf("orphan object not cleaned up: deleted=%v uploaded=%v", objs.deleted, keys)
	}
	if objs.exists[keys[0]] {
		t.Fatalf("orphan object still in store")
	}
}

func TestRunFailsWhenListFails(t *testing.T) {
	t.Parallel()

	tpls := &fakeTemplates{listErr: errors.New("connection refused")}
	r := New(Config{}, logx.Nop(), tpls, newFakeObjects())

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error when template listing fails")
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tpls := &fakeTemplates{list: []store.Template{
		{ID: 1, DownloadURL: "https://storage.lawly.ru/lawly/contracts/rent.docx"},
	}}
	r := New(Config{}, logx.Nop(), tpls, newFakeObjects("contracts/rent.docx"))

	if _, err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}
