package http

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/fasthttp"
)

// FastHTTPAsyncClient is the default AsyncClient implementation. Each
// Send spawns a goroutine that performs the request and stores the
// result; Tick never blocks, it only reports whether any request is
// still outstanding.
type FastHTTPAsyncClient struct {
	client  fasthttp.Client
	mu      sync.Mutex
	pending int
}

// NewFastHTTPAsyncClient builds an async client.
func NewFastHTTPAsyncClient() *FastHTTPAsyncClient {
	return &FastHTTPAsyncClient{}
}

type fastRequest struct {
	method, url string
	headers     map[string]string
	body        []byte
	onComplete  func(Response, error)
}

func (c *FastHTTPAsyncClient) NewRequest(method, url string) Request {
	return &fastRequest{method: method, url: url, headers: make(map[string]string)}
}

func (r *fastRequest) SetHeader(key, value string) { r.headers[key] = value }
func (r *fastRequest) SetBody(body []byte)         { r.body = body }
func (r *fastRequest) SetOnComplete(fn func(Response, error)) {
	r.onComplete = fn
}

type fastResponseFuture struct {
	done atomic.Bool
}

func (f *fastResponseFuture) Done() bool { return f.done.Load() }

type fastResponse struct {
	status int
	header *fasthttp.ResponseHeader
	body   []byte
}

func (r *fastResponse) Status() int         { return r.status }
func (r *fastResponse) ResponseCode() int   { return r.status }
func (r *fastResponse) Header(key string) string {
	return string(r.header.Peek(key))
}
func (r *fastResponse) Body() []byte { return r.body }

// Send dispatches req asynchronously and returns immediately; the
// request's OnComplete callback fires from a background goroutine once
// the response (or a transport error) is available.
func (c *FastHTTPAsyncClient) Send(req Request) ResponseFuture {
	fr, ok := req.(*fastRequest)
	future := &fastResponseFuture{}
	if !ok {
		future.done.Store(true)
		return future
	}

	c.mu.Lock()
	c.pending++
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
			future.done.Store(true)
		}()

		httpReq := fasthttp.AcquireRequest()
		httpResp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(httpReq)
		defer fasthttp.ReleaseResponse(httpResp)

		httpReq.SetRequestURI(fr.url)
		httpReq.Header.SetMethod(fr.method)
		for k, v := range fr.headers {
			httpReq.Header.Set(k, v)
		}
		if len(fr.body) > 0 {
			httpReq.SetBody(fr.body)
		}

		err := c.client.Do(httpReq, httpResp)
		if fr.onComplete == nil {
			return
		}
		if err != nil {
			fr.onComplete(nil, err)
			return
		}

		header := httpResp.Header
		resp := &fastResponse{
			status: httpResp.StatusCode(),
			header: &header,
			body:   append([]byte(nil), httpResp.Body()...),
		}
		fr.onComplete(resp, nil)
	}()

	return future
}

// Tick reports whether any Send call is still outstanding.
func (c *FastHTTPAsyncClient) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}
