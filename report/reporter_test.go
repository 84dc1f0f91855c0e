package report

import (
	"testing"

	"github.com/nvstream/adk-core/metrics"
	transporthttp "github.com/nvstream/adk-core/transport/http"
)

type fakeRequest struct {
	method, url string
	headers     map[string]string
	body        []byte
	onComplete  func(transporthttp.Response, error)
}

func (r *fakeRequest) SetHeader(key, value string) { r.headers[key] = value }
func (r *fakeRequest) SetBody(body []byte)         { r.body = body }
func (r *fakeRequest) SetOnComplete(fn func(transporthttp.Response, error)) {
	r.onComplete = fn
}

type fakeResponse struct {
	code    int
	headers map[string]string
	body    []byte
}

func (r *fakeResponse) Status() int              { return r.code }
func (r *fakeResponse) ResponseCode() int        { return r.code }
func (r *fakeResponse) Header(key string) string { return r.headers[key] }
func (r *fakeResponse) Body() []byte             { return r.body }

type fakeFuture struct{}

func (fakeFuture) Done() bool { return true }

// fakeClient completes every Send synchronously with a scripted status
// code and optional Retry-After, recording each request it receives.
type fakeClient struct {
	status     int
	retryAfter string
	requests   []*fakeRequest
}

func (c *fakeClient) NewRequest(method, url string) transporthttp.Request {
	return &fakeRequest{method: method, url: url, headers: make(map[string]string)}
}

func (c *fakeClient) Send(req transporthttp.Request) transporthttp.ResponseFuture {
	fr := req.(*fakeRequest)
	c.requests = append(c.requests, fr)
	headers := map[string]string{}
	if c.retryAfter != "" {
		headers["Retry-After"] = c.retryAfter
	}
	if fr.onComplete != nil {
		fr.onComplete(&fakeResponse{code: c.status, headers: headers, body: fr.body}, nil)
	}
	return fakeFuture{}
}

func (c *fakeClient) Tick() bool { return false }

func testMetrics() metrics.System {
	return metrics.System{
		Vendor: "v", Partner: "p", Device: "d", Software: "s", GPU: "g", CPU: "x86_64",
		DeviceID: "abc", DeviceRegion: "dk", Tenancy: "dev", PartnerGUID: "0e0de8ec-bdc3-48cf-8941-bc073d32eacd",
		AdvertisingID: "0000_0000",
	}
}

func newTestReporter(t *testing.T, client *fakeClient, minLevel Level) *Reporter {
	t.Helper()
	r, err := New(Options{
		DSN:            "https://baaaaaaaaaaaaaaaaaaaaaaaaaaaaaab@dev-sentry.bamgrid.com/101",
		ReporterName:   "reporting_tests",
		Release:        "ncp-core@1.0",
		MinReportLevel: minLevel,
		SendQueueSize:  32,
		Client:         client,
		Metrics:        testMetrics(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestDeriveEndpointFromDSN(t *testing.T) {
	ep, err := deriveEndpoint("https://baaaaaaaaaaaaaaaaaaaaaaaaaaaaaab@dev-sentry.bamgrid.com/101")
	if err != nil {
		t.Fatalf("deriveEndpoint: %v", err)
	}
	wantEndpoint := "https://dev-sentry.bamgrid.com/api/101/store/"
	if ep.eventEndpoint != wantEndpoint {
		t.Errorf("eventEndpoint = %q, want %q", ep.eventEndpoint, wantEndpoint)
	}
	wantAuth := "Sentry sentry_key=baaaaaaaaaaaaaaaaaaaaaaaaaaaaaab,sentry_version=7,sentry_client=adk_reporting_sentry"
	if ep.authHeader != wantAuth {
		t.Errorf("authHeader = %q, want %q", ep.authHeader, wantAuth)
	}
	if ep.hostname != "dev-sentry.bamgrid.com" {
		t.Errorf("hostname = %q, want dev-sentry.bamgrid.com", ep.hostname)
	}
}

func TestDeriveEndpointRejectsDSNWithoutProjectPath(t *testing.T) {
	if _, err := deriveEndpoint("https://key@dev-sentry.bamgrid.com"); err == nil {
		t.Fatal("expected error for DSN missing a project path")
	}
}

func TestReportMessageBelowMinLevelIsSkipped(t *testing.T) {
	client := &fakeClient{status: 200}
	r := newTestReporter(t, client, LevelError)

	var called bool
	var success bool
	r.sentStatus = func(ok bool, msg string) { called, success = true, ok }

	r.ReportMessage("f.go", 1, "Fn", LevelDebug, nil, "hello")

	if !r.IsQueueEmpty() {
		t.Fatal("expected event to be skipped, not queued")
	}
	if !called || success {
		t.Fatalf("expected a false sentStatus callback, got called=%v success=%v", called, success)
	}
}

func TestTickPostsQueuedEventAndReportsSuccess(t *testing.T) {
	client := &fakeClient{status: 200}
	r := newTestReporter(t, client, LevelDebug)

	var success bool
	r.sentStatus = func(ok bool, _ string) { success = ok }

	r.ReportMessage("f.go", 42, "Fn", LevelDebug, []Tag{{Key: "msg_tag", Value: "v"}}, "hello world")
	if r.IsQueueEmpty() {
		t.Fatal("expected event queued before Tick")
	}

	if pending := r.Tick(); pending {
		t.Fatal("expected Tick to report no pending work after a 200")
	}
	if !r.IsQueueEmpty() {
		t.Fatal("expected queue drained after Tick")
	}
	if !success {
		t.Fatal("expected sentStatus(true, ...) after a 200 response")
	}
	if len(client.requests) != 1 {
		t.Fatalf("requests sent = %d, want 1", len(client.requests))
	}
	if client.requests[0].headers["x-sentry-auth"] == "" {
		t.Error("expected x-sentry-auth header to be set")
	}
}

func TestTickOnBadRequestDropsEventWithoutRetry(t *testing.T) {
	client := &fakeClient{status: 400}
	r := newTestReporter(t, client, LevelDebug)

	var success bool
	var msg string
	r.sentStatus = func(ok bool, m string) { success, msg = ok, m }

	r.ReportMessage("f.go", 1, "Fn", LevelDebug, nil, "boom")
	r.Tick()

	if !r.IsQueueEmpty() {
		t.Fatal("expected event dropped (not re-enqueued) on a non-retryable failure")
	}
	if success {
		t.Fatal("expected sentStatus(false, ...) on a 400")
	}
	if msg == "" {
		t.Error("expected a non-empty failure message")
	}
}

func TestTickOnRateLimitReenqueuesAndPausesUntilElapsed(t *testing.T) {
	client := &fakeClient{status: 429, retryAfter: "5"}
	r := newTestReporter(t, client, LevelDebug)

	now := int64(1000)
	r.queue.now = func() int64 { return now }

	r.ReportMessage("f.go", 1, "Fn", LevelDebug, nil, "rate limited")

	if pending := r.Tick(); !pending {
		t.Fatal("expected Tick to report pending work after a re-enqueue")
	}
	if r.IsQueueEmpty() {
		t.Fatal("expected the event to be re-enqueued behind the pause")
	}
	if len(client.requests) != 1 {
		t.Fatalf("requests sent = %d, want 1", len(client.requests))
	}

	// still within the pause window: Tick must not repost.
	if pending := r.Tick(); !pending {
		t.Fatal("expected Tick to still report pending work while paused")
	}
	if len(client.requests) != 1 {
		t.Fatalf("requests sent while paused = %d, want still 1", len(client.requests))
	}

	// pause has elapsed: the retry should go out.
	now = 1006
	client.status = 200
	if pending := r.Tick(); pending {
		t.Fatal("expected Tick to report no pending work once the retry succeeds")
	}
	if len(client.requests) != 2 {
		t.Fatalf("requests sent after pause elapsed = %d, want 2", len(client.requests))
	}
}

func TestPushTagUpdatesExistingKeyInPlace(t *testing.T) {
	client := &fakeClient{status: 200}
	r := newTestReporter(t, client, LevelDebug)

	r.PushTag("instance_ncp_version", "1.0")
	r.PushTag("instance_sentry_version", "test")
	r.PushTag("instance_ncp_version", "2.0")

	if len(r.instanceTags) != 2 {
		t.Fatalf("instanceTags length = %d, want 2", len(r.instanceTags))
	}
	for _, tg := range r.instanceTags {
		if tg.Key == "instance_ncp_version" && tg.Value != "2.0" {
			t.Errorf("instance_ncp_version = %q, want updated value 2.0", tg.Value)
		}
	}
}

func TestRetryEligible(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		retryAfter string
		wantOK     bool
		wantDelay  int
	}{
		{"not rate limited", 500, "5", false, 0},
		{"rate limited without header", 429, "", false, 0},
		{"rate limited with valid header", 429, "120", true, 120},
		{"rate limited exceeding max delay", 429, "301", false, 0},
		{"rate limited with garbage header", 429, "soon", false, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			delay, ok := retryEligible(c.status, c.retryAfter)
			if ok != c.wantOK || delay != c.wantDelay {
				t.Errorf("retryEligible(%d, %q) = (%d, %v), want (%d, %v)", c.status, c.retryAfter, delay, ok, c.wantDelay, c.wantOK)
			}
		})
	}
}
