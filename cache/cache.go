// Package cache implements a URL-keyed content cache: fetched resources
// are stored under a per-cache subdirectory with an 8-byte binary header
// (version, type, ETag length, content length) followed by the ETag and
// the body, supporting both atomic (write-then-rename) and in-place
// updates. Grounded on
// _examples/original_source/source/adk/cache/cache.c and
// _examples/original_source/tests/cache_tests.c.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/tidwall/buntdb"

	"github.com/nvstream/adk-core/cmn/cos"
	"github.com/nvstream/adk-core/cmn/nlog"
)

// UpdateMode selects how a fetched resource is written to the cache.
type UpdateMode int

const (
	// UpdateModeAtomic writes to the partial directory and renames into
	// place only once the full body has been received.
	UpdateModeAtomic UpdateMode = iota
	// UpdateModeInPlace writes directly into the final path as bytes
	// arrive.
	UpdateModeInPlace
)

// FetchStatus is the outcome of a FetchResourceFromURL call.
type FetchStatus int

const (
	FetchSuccess FetchStatus = iota
	FetchInvalidContentLength
	FetchFileOpenFailure
	FetchKeyMoveFailure
	FetchInvalidVersion
	FetchInvalidFileHeaderType
	FetchHTTPRequestFailed
	FetchInvalidCacheFile
)

func (s FetchStatus) String() string {
	switch s {
	case FetchSuccess:
		return "success"
	case FetchInvalidContentLength:
		return "invalid_content_length"
	case FetchFileOpenFailure:
		return "file_open_failure"
	case FetchKeyMoveFailure:
		return "key_move_failure"
	case FetchInvalidVersion:
		return "invalid_version"
	case FetchInvalidFileHeaderType:
		return "invalid_file_header_type"
	case FetchHTTPRequestFailed:
		return "http_request_failed"
	case FetchInvalidCacheFile:
		return "invalid_cache_file"
	default:
		return "unknown"
	}
}

const (
	partialDir = "p"
	finalDir   = "f"
)

// Cache is a URL-keyed content cache rooted at a single subdirectory.
// A Cache is safe for concurrent GetContent/DeleteKey/FetchResourceFromURL
// calls, but the caller must not run two fetches for the same key
// concurrently (the cache does not deduplicate in-flight fetches).
type Cache struct {
	root string

	mu  sync.Mutex
	idx *buntdb.DB
}

// New creates (or reopens) a cache rooted at root, creating the root,
// root/p and root/f directories if they do not already exist.
func New(root string) (*Cache, error) {
	idx, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("cache: open index: %w", err)
	}
	c := &Cache{root: root, idx: idx}
	if err := c.createDirectories(); err != nil {
		idx.Close()
		return nil, err
	}
	c.reindex()
	return c, nil
}

func (c *Cache) createDirectories() error {
	for _, dir := range []string{c.root, filepath.Join(c.root, partialDir), filepath.Join(c.root, finalDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cache: create directory %s: %w", dir, err)
		}
	}
	return nil
}

// reindex populates the in-memory existence index from whatever is
// already on disk under f/, so GetContent can short-circuit a definite
// miss without touching the filesystem.
func (c *Cache) reindex() {
	entries, err := os.ReadDir(filepath.Join(c.root, finalDir))
	if err != nil {
		return
	}
	c.idx.Update(func(tx *buntdb.Tx) error {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			tx.Set(indexKey(e.Name()), "1", nil)
		}
		return nil
	})
}

// indexKey hashes the cache key before storing it, the way fs/hrw.go
// hashes uname strings rather than keying maps directly off raw input.
func indexKey(key string) string {
	return strconv.FormatUint(xxhash.ChecksumString64S(key, 0), 16)
}

// Destroy releases the cache's in-memory index. It does not touch the
// files on disk.
func (c *Cache) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Close()
}

// Clear recursively deletes and recreates the cache's subdirectory.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.RemoveAll(c.root); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	if err := c.createDirectories(); err != nil {
		return err
	}
	c.idx.Update(func(tx *buntdb.Tx) error {
		tx.DeleteAll()
		return nil
	})
	return nil
}

// DeleteKey removes the finalized entry for key, if any.
func (c *Cache) DeleteKey(key string) error {
	if !cos.IsUnderRoot(key) {
		return fmt.Errorf("cache: key escapes cache root: %q", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path(key, finalDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: delete key %q: %w", key, err)
	}
	c.idx.Update(func(tx *buntdb.Tx) error {
		tx.Delete(indexKey(key))
		return nil
	})
	return nil
}

func (c *Cache) path(key, state string) string {
	return filepath.Join(c.root, state, key)
}

// GetContent opens the finalized entry for key, validates its header, and
// returns the handle positioned at the start of the body along with the
// body's length. The second return value is false if the key is not
// cached or the cached entry fails validation.
func (c *Cache) GetContent(key string) (file *os.File, contentSize int64, ok bool) {
	if !cos.IsUnderRoot(key) {
		return nil, 0, false
	}

	c.mu.Lock()
	var present bool
	c.idx.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(indexKey(key))
		present = err == nil
		return nil
	})
	c.mu.Unlock()
	if !present {
		return nil, 0, false
	}

	f, err := os.Open(c.path(key, finalDir))
	if err != nil {
		return nil, 0, false
	}

	hdrBuf := make([]byte, fileHeaderSize)
	if _, err := readFull(f, hdrBuf); err != nil {
		f.Close()
		nlog.Errorf("cache: failed to read header of %s: %v", key, err)
		return nil, 0, false
	}

	hdr, ok := decodeFileHeader(hdrBuf)
	if !ok || hdr.version != fileHeaderVersion || hdr.typ != fileHeaderTypeHTTP {
		f.Close()
		return nil, 0, false
	}

	if _, err := f.Seek(int64(hdr.etagLength), io.SeekCurrent); err != nil {
		f.Close()
		return nil, 0, false
	}

	head, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, 0, false
	}
	tail, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, false
	}
	if _, err := f.Seek(head, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, false
	}

	if tail-head != int64(hdr.contentLength) {
		f.Close()
		nlog.Errorf("cache: content length mismatch for %s: header=%d actual=%d", key, hdr.contentLength, tail-head)
		return nil, 0, false
	}

	return f, int64(hdr.contentLength), true
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if total != len(buf) {
		return total, fmt.Errorf("short read: got %d want %d", total, len(buf))
	}
	return total, nil
}
