package http

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// FastHTTPFetcher is the default Fetcher implementation, backed by
// github.com/valyala/fasthttp. fasthttp buffers the full response before
// returning control, so OnHeader is driven from the parsed response
// headers (status line first) and OnBody is invoked once with the whole
// body - callers that need true incremental streaming should provide
// their own Fetcher, but this satisfies the cancel-on-false contract and
// is enough for cache's request/response shape.
type FastHTTPFetcher struct {
	Client *fasthttp.Client
}

// NewFastHTTPFetcher builds a fetcher around a fresh fasthttp.Client.
func NewFastHTTPFetcher() *FastHTTPFetcher {
	return &FastHTTPFetcher{Client: &fasthttp.Client{}}
}

func (f *FastHTTPFetcher) client() *fasthttp.Client {
	if f.Client == nil {
		f.Client = &fasthttp.Client{}
	}
	return f.Client
}

// Fetch issues a synchronous GET and drives cb through the response.
func (f *FastHTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeoutSeconds int, cb FetchCallbacks) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	err := f.client().DoTimeout(req, resp, timeout)
	if err != nil {
		if cb.OnComplete != nil {
			cb.OnComplete(resultFromErr(err), 0)
		}
		return err
	}

	status := resp.StatusCode()
	statusLine := fmt.Appendf(nil, "HTTP/1.1 %d %s\r\n", status, fasthttp.StatusMessage(status))
	if cb.OnHeader != nil && !cb.OnHeader(statusLine) {
		if cb.OnComplete != nil {
			cb.OnComplete(resultOK, status)
		}
		return nil
	}

	cancelled := false
	resp.Header.VisitAll(func(key, value []byte) {
		if cancelled || cb.OnHeader == nil {
			return
		}
		line := fmt.Appendf(nil, "%s: %s\r\n", key, value)
		if !cb.OnHeader(line) {
			cancelled = true
		}
	})

	if !cancelled && cb.OnBody != nil {
		body := resp.Body()
		if len(body) > 0 {
			cb.OnBody(body)
		}
	}

	if cb.OnComplete != nil {
		cb.OnComplete(resultOK, status)
	}
	return nil
}

const (
	resultOK        = 0
	resultTransport = -1
)

func resultFromErr(err error) int {
	if err == nil {
		return resultOK
	}
	return resultTransport
}
