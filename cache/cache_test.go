package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	transporthttp "github.com/nvstream/adk-core/transport/http"
)

// fakeFetcher serves a fixed body/etag pair and records the If-None-Match
// header it was sent, standing in for the network in these tests.
type fakeFetcher struct {
	body    []byte
	etag    string
	status  int
	lastINM string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, headers map[string]string, _ int, cb transporthttp.FetchCallbacks) error {
	f.lastINM = headers["If-None-Match"]

	status := f.status
	if status == 0 {
		status = 200
	}

	cb.OnHeader([]byte(fmt.Sprintf("HTTP/1.1 %d OK\r\n", status)))
	cb.OnHeader([]byte(fmt.Sprintf("ETag: %q\r\n", f.etag)))
	if status == 200 {
		cb.OnHeader([]byte(fmt.Sprintf("Content-Length: %d\r\n", len(f.body))))
		cb.OnBody(f.body)
	}
	cb.OnComplete(0, status)
	return nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Destroy() })
	return c
}

func TestFetchThenGetContent(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("hello-cache"), etag: "v1"}

	status := c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeAtomic)
	if status != FetchSuccess {
		t.Fatalf("FetchResourceFromURL = %v, want success", status)
	}

	f, size, ok := c.GetContent("key")
	if !ok {
		t.Fatal("GetContent: expected hit after fetch")
	}
	defer f.Close()
	if size != int64(len(fetcher.body)) {
		t.Fatalf("size = %d, want %d", size, len(fetcher.body))
	}
	buf := make([]byte, size)
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello-cache" {
		t.Fatalf("content = %q, want %q", buf, "hello-cache")
	}
}

func TestSecondFetchSendsIfNoneMatch(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("v1-body"), etag: "etag-1"}

	if status := c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeAtomic); status != FetchSuccess {
		t.Fatalf("first fetch: %v", status)
	}

	fetcher.status = 304
	if status := c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeAtomic); status != FetchSuccess {
		t.Fatalf("second fetch: %v", status)
	}
	if fetcher.lastINM != `"etag-1"` {
		t.Fatalf("If-None-Match = %q, want %q", fetcher.lastINM, `"etag-1"`)
	}
}

func TestFetchInPlaceWritesDirectlyToFinal(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("in-place-body"), etag: "v1"}

	if _, _, ok := c.GetContent("key"); ok {
		t.Fatal("expected miss before fetch")
	}

	if status := c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeInPlace); status != FetchSuccess {
		t.Fatalf("FetchResourceFromURL: %v", status)
	}

	f, size, ok := c.GetContent("key")
	if !ok {
		t.Fatal("expected hit after in-place fetch")
	}
	f.Close()
	if size != int64(len(fetcher.body)) {
		t.Fatalf("size = %d, want %d", size, len(fetcher.body))
	}
}

func TestDeleteKeyRemovesEntry(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("body"), etag: "v1"}
	c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeInPlace)

	if _, _, ok := c.GetContent("key"); !ok {
		t.Fatal("expected hit before delete")
	}

	if err := c.DeleteKey("key"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	if _, _, ok := c.GetContent("key"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCorruptedContentIsRejected(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("body"), etag: "v1"}
	c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeInPlace)

	path := c.path("key", finalDir)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	f.Write([]byte("extra"))
	f.Close()

	if _, _, ok := c.GetContent("key"); ok {
		t.Fatal("expected corrupted content to be rejected")
	}
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := newTestCache(t)
	fetcher := &fakeFetcher{body: []byte("body"), etag: "v1"}
	c.FetchResourceFromURL(context.Background(), fetcher, "key", "http://example/asset", UpdateModeInPlace)

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, _, ok := c.GetContent("key"); ok {
		t.Fatal("expected miss after clear")
	}
}
