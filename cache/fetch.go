package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/OneOfOne/xxhash"
	"github.com/tidwall/buntdb"

	"github.com/nvstream/adk-core/cmn/nlog"
	transporthttp "github.com/nvstream/adk-core/transport/http"
)

const defaultFetchTimeoutSeconds = 30

type recvStatus int

const (
	recvInit recvStatus = iota
	recvAppend
	recvSkip
)

type fetchCtx struct {
	cache        *Cache
	key          string
	url          string
	etag         string
	updateMode   UpdateMode
	contentSize  int64
	recvStatus   recvStatus
	recvCount    int64
	recvFile     *os.File
	responseCode int
	status       FetchStatus
}

// FetchResourceFromURL fetches url through fetcher, storing the result
// under key per mode. If a finalized entry already exists for key, its
// stored ETag is sent as If-None-Match so the server can answer 304.
func (c *Cache) FetchResourceFromURL(ctx context.Context, fetcher transporthttp.Fetcher, key, url string, mode UpdateMode) FetchStatus {
	headers := map[string]string{}
	if etag, ok := c.readStoredETag(key); ok {
		if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
			headers["If-None-Match"] = etag
		} else {
			headers["If-None-Match"] = fmt.Sprintf(`"%s"`, etag)
		}
	}

	fc := &fetchCtx{cache: c, key: key, url: url, updateMode: mode, status: FetchSuccess}

	err := fetcher.Fetch(ctx, url, headers, defaultFetchTimeoutSeconds, transporthttp.FetchCallbacks{
		OnHeader:   fc.onHeader,
		OnBody:     fc.onBody,
		OnComplete: fc.onComplete,
	})
	if err != nil && fc.status == FetchSuccess {
		fc.status = FetchHTTPRequestFailed
	}

	if fc.status != FetchSuccess {
		return fc.status
	}

	switch fc.responseCode {
	case 304:
		nlog.Infof("cache: already cached version for %s", url)
	case 200:
		c.noteFetchSuccess(key, fc.etag)
	default:
		nlog.Errorf("cache: failed to fetch resource %s: response %d", url, fc.responseCode)
		return FetchHTTPRequestFailed
	}

	if fc.responseCode == 200 && fc.contentSize <= 0 {
		return FetchInvalidCacheFile
	}
	return FetchSuccess
}

// readStoredETag reads the ETag out of the currently finalized entry for
// key, if one exists, without validating or returning its body.
func (c *Cache) readStoredETag(key string) (string, bool) {
	f, err := os.Open(c.path(key, finalDir))
	if err != nil {
		return "", false
	}
	defer f.Close()

	hdrBuf := make([]byte, fileHeaderSize)
	if _, err := readFull(f, hdrBuf); err != nil {
		return "", false
	}
	hdr, ok := decodeFileHeader(hdrBuf)
	if !ok || hdr.version != fileHeaderVersion || hdr.typ != fileHeaderTypeHTTP || hdr.etagLength == 0 {
		return "", false
	}
	etagBuf := make([]byte, hdr.etagLength)
	if _, err := readFull(f, etagBuf); err != nil {
		return "", false
	}
	return string(etagBuf), true
}

func (fc *fetchCtx) onHeader(line []byte) bool {
	if fc.status != FetchSuccess {
		return true
	}
	if fc.responseCode == 0 {
		if code, ok := parseStatusLine(line); ok {
			fc.responseCode = code
			if code != 200 {
				fc.recvStatus = recvSkip
			}
		}
	}
	if etag, ok := parseHeaderForKey("ETag", line); ok {
		fc.etag = string(etag)
	}
	if cl, ok := parseHeaderForKey("Content-Length", line); ok {
		n, err := strconv.ParseInt(string(cl), 10, 64)
		if err == nil {
			fc.contentSize = n
		}
	}
	return true
}

func (fc *fetchCtx) onBody(body []byte) bool {
	if fc.status != FetchSuccess {
		return false
	}
	if fc.contentSize <= 0 {
		nlog.Errorf("cache: invalid or no content length for %s", fc.url)
		fc.status = FetchInvalidContentLength
		return false
	}

	writeState := finalDir
	if fc.updateMode == UpdateModeAtomic {
		writeState = partialDir
	}
	path := fc.cache.path(fc.key, writeState)

	switch fc.recvStatus {
	case recvInit:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			nlog.Errorf("cache: failed to open file %s: %v", path, err)
			fc.status = FetchFileOpenFailure
			return false
		}
		hdr := fileHeader{
			version:       fileHeaderVersion,
			typ:           fileHeaderTypeHTTP,
			etagLength:    uint16(len(fc.etag)),
			contentLength: uint32(fc.contentSize),
		}
		enc := hdr.encode()
		f.Write(enc[:])
		f.Write([]byte(fc.etag))

		fc.recvFile = f
		fc.recvStatus = recvAppend
		fallthrough

	case recvAppend:
		if fc.recvFile == nil {
			fc.recvStatus = recvSkip
			break
		}
		fc.recvFile.Write(body)
		fc.recvCount += int64(len(body))

		if fc.recvCount >= fc.contentSize {
			fc.recvFile.Close()
			fc.recvFile = nil

			if fc.updateMode == UpdateModeAtomic {
				finalPath := fc.cache.path(fc.key, finalDir)
				if err := os.Rename(path, finalPath); err != nil {
					nlog.Errorf("cache: failed to move key %q into place: %v", fc.key, err)
					fc.status = FetchKeyMoveFailure
					return false
				}
			}
		}

	case recvSkip:
	}
	return true
}

func (fc *fetchCtx) onComplete(resultCode, httpStatus int) {
	if fc.recvFile != nil {
		nlog.Errorf("cache: HTTP request completed before resource fully received/written: %q", fc.key)
		fc.recvFile.Close()
		fc.recvFile = nil
	}
	if resultCode != 0 {
		nlog.Errorf("cache: HTTP request failed: %s: %d", fc.url, resultCode)
		if fc.status == FetchSuccess {
			fc.status = FetchHTTPRequestFailed
		}
	}
	if fc.responseCode == 0 {
		fc.responseCode = httpStatus
	}
}

// noteFetchSuccess records key's presence in the in-memory index, storing
// the hex xxhash digest of the ETag as the entry's value. Nothing in this
// package reads the digest back; GetContent only checks that the key is
// present.
func (c *Cache) noteFetchSuccess(key, etag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	digest := xxhash.ChecksumString64S(etag, 0)
	c.idx.Update(func(tx *buntdb.Tx) error {
		tx.Set(indexKey(key), strconv.FormatUint(digest, 16), nil)
		return nil
	})
}
