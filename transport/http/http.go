// Package http defines the two HTTP collaborator contracts this module's
// callers depend on - a synchronous fetch used by cache, and an
// asynchronous request/response-future API used by report - plus a
// fasthttp-backed default implementation of each.
package http

import "context"

// FetchCallbacks receives a synchronous fetch's progress. Returning false
// from OnHeader or OnBody cancels the remaining header and body callbacks
// for that fetch; OnComplete is still called.
type FetchCallbacks struct {
	// OnHeader is called once per response header line, in receive order,
	// including the status line itself as the first call.
	OnHeader func(line []byte) bool
	// OnBody is called zero or more times with successive chunks of the
	// response body.
	OnBody func(chunk []byte) bool
	// OnComplete is called exactly once, whether or not the fetch
	// succeeded, with the transport result code and HTTP status (0 if the
	// request never reached a server).
	OnComplete func(resultCode int, httpStatus int)
}

// Fetcher is cache's consumer contract (§6): a synchronous GET that
// streams header lines and body chunks through callbacks rather than
// buffering the whole response.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeoutSeconds int, cb FetchCallbacks) error
}

// Response is the result of an async Request once it completes.
type Response interface {
	Status() int
	ResponseCode() int
	Header(key string) string
	Body() []byte
}

// Request is an in-flight or not-yet-sent asynchronous request, report's
// consumer contract (§6).
type Request interface {
	SetHeader(key, value string)
	SetBody(body []byte)
	SetOnComplete(fn func(Response, error))
}

// ResponseFuture is returned by AsyncClient.Send; Done reports whether the
// request has completed. report's reporter discards it and tracks pending
// requests through AsyncClient.Tick instead.
type ResponseFuture interface {
	Done() bool
}

// AsyncClient is report's consumer contract (§6): build a request, attach
// callbacks, send it, and drive completion from Tick rather than blocking
// the caller.
type AsyncClient interface {
	NewRequest(method, url string) Request
	Send(req Request) ResponseFuture
	// Tick advances in-flight requests and reports whether any remain
	// pending.
	Tick() bool
}
