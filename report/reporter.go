package report

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/nvstream/adk-core/cmn/urlutil"
	"github.com/nvstream/adk-core/cmn/xcrypto"
	"github.com/nvstream/adk-core/metrics"
	transporthttp "github.com/nvstream/adk-core/transport/http"
)

// maxValidRetryDelaySeconds caps how far in the future a 429 response's
// Retry-After may push a pause before it's treated as untrustworthy,
// mirroring adk_reporting_max_valid_retry_delay_seconds.
const maxValidRetryDelaySeconds = 300

// SentStatus is invoked when a ReportMessage/ReportException call is
// skipped by level, and once for every drained event's outcome during Tick
// (serialization failure, transport error, success, re-queue or drop). A
// call whose event is queued does not invoke it at call time.
type SentStatus func(success bool, errorMessage string)

// Options configures a Reporter, mirroring adk_reporting_init_options_t.
type Options struct {
	// DSN is the Sentry client DSN: scheme://public_key@host[:port]/project_id.
	DSN string
	// ReporterName is uploaded as the event's "logger" field.
	ReporterName string
	// Release is uploaded verbatim as the event's "release" field.
	Release string
	// MinReportLevel gates ReportMessage/ReportException: events below it
	// are dropped without being queued.
	MinReportLevel Level
	// SendQueueSize bounds the send queue; enqueueing past it evicts the
	// oldest queued event.
	SendQueueSize int
	// Client posts queued events; Tick drives it.
	Client transporthttp.AsyncClient
	// Metrics supplies the environment tag and the device/os/gpu contexts
	// shared by every event.
	Metrics metrics.System
	// SentStatus receives the outcome of every report and retry decision.
	// May be nil.
	SentStatus SentStatus
}

// Reporter batches and posts Sentry-compatible events over an AsyncClient,
// grounded on adk_reporting_sentry.c's adk_reporting_sentry_instance_t.
type Reporter struct {
	reporterName  string
	release       string
	environment   string
	minLevel      Level
	eventEndpoint string
	authHeader    string
	hostname      string
	contexts      map[string]any
	client        transporthttp.AsyncClient
	sentStatus    SentStatus

	mu           sync.Mutex
	instanceTags tagList

	queue *sendQueue
}

// New parses opts.DSN and builds a Reporter ready to accept events.
func New(opts Options) (*Reporter, error) {
	ep, err := deriveEndpoint(opts.DSN)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		reporterName:  opts.ReporterName,
		release:       opts.Release,
		environment:   opts.Metrics.Tenancy,
		minLevel:      opts.MinReportLevel,
		eventEndpoint: ep.eventEndpoint,
		authHeader:    ep.authHeader,
		hostname:      ep.hostname,
		contexts:      buildContexts(opts.Metrics),
		client:        opts.Client,
		sentStatus:    opts.SentStatus,
		queue:         newSendQueue(opts.SendQueueSize),
	}, nil
}

type endpointInfo struct {
	eventEndpoint string
	authHeader    string
	hostname      string
}

// deriveEndpoint decomposes a Sentry DSN into the posting endpoint and
// auth header, mirroring generate_sentry_endpoint_info,
// adk_reporting_sentry_get_base_endpoint and
// adk_reporting_sentry_get_auth_header. The DSN's public key arrives as
// the URL's username; the project id is its path.
func deriveEndpoint(dsn string) (endpointInfo, error) {
	info, ok := urlutil.Parse(dsn)
	if !ok || info.Hostname == "" || info.Pathname == "" {
		return endpointInfo{}, fmt.Errorf("report: invalid sentry dsn %q", dsn)
	}
	auth := info.Username
	if info.Password != "" {
		auth = info.Username + ":" + info.Password
	}

	baseEndpoint := info.Origin() + "/api" + info.Pathname + "/"
	return endpointInfo{
		eventEndpoint: baseEndpoint + "store/",
		authHeader:    fmt.Sprintf("Sentry sentry_key=%s,sentry_version=%s,sentry_client=%s", auth, sentryVersion, sentryClient),
		hostname:      info.Hostname,
	}, nil
}

// PushTag adds or updates an instance-wide tag applied to every event.
func (r *Reporter) PushTag(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instanceTags = r.instanceTags.push(key, value)
}

// ClearTags removes every instance-wide tag.
func (r *Reporter) ClearTags() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instanceTags = nil
}

func (r *Reporter) notify(success bool, errorMessage string) {
	if r.sentStatus != nil {
		r.sentStatus(success, errorMessage)
	}
}

func (r *Reporter) buildEvent(file string, line int, function string, level Level, tags []Tag) *sentryEvent {
	r.mu.Lock()
	merged := mergeTags(r.instanceTags, tagList(tags))
	r.mu.Unlock()

	return &sentryEvent{
		EventID:     xcrypto.NewUUIDCompact(),
		Release:     r.release,
		Environment: r.environment,
		Platform:    sentryPlatform,
		Logger:      r.reporterName,
		Level:       level.String(),
		Timestamp:   time.Now().Unix(),
		Transaction: transaction(file, function, line),
		Tags:        merged,
		Contexts:    r.contexts,
	}
}

// ReportMessage queues a message event if level meets the reporter's
// minimum report level, mirroring adk_reporting_report_msg.
func (r *Reporter) ReportMessage(file string, line int, function string, level Level, tags []Tag, message string) {
	if level < r.minLevel {
		r.notify(false, "level is less than minimum reporting level, skipping upload")
		return
	}
	e := r.buildEvent(file, line, function, level, tags)
	attachMessage(e, message)
	r.queue.enqueue(e)
}

// ReportException queues an exception event with an optional stack trace,
// mirroring adk_reporting_report_exception.
func (r *Reporter) ReportException(file string, line int, function string, level Level, tags []Tag, stackFrames []uintptr, errType, errMessage string) {
	if level < r.minLevel {
		r.notify(false, "level is less than minimum reporting level, skipping upload")
		return
	}
	e := r.buildEvent(file, line, function, level, tags)
	attachException(e, errType, errMessage, stackFrames)
	r.queue.enqueue(e)
}

// IsQueueEmpty reports whether the send queue currently holds no events.
func (r *Reporter) IsQueueEmpty() bool { return r.queue.isEmpty() }

// QueueLen reports how many events are currently queued.
func (r *Reporter) QueueLen() int { return r.queue.length() }

// Tick drains whatever the send queue currently holds through the
// AsyncClient and advances it, returning true while work remains
// outstanding - either events still queued (e.g. because of an active
// pause) or requests the client hasn't finished - mirroring
// adk_reporting_tick.
func (r *Reporter) Tick() bool {
	for _, e := range r.queue.flush(flushRegardPause) {
		r.postEvent(e)
	}
	if r.client.Tick() {
		return true
	}
	return !r.queue.isEmpty()
}

func (r *Reporter) postEvent(e *sentryEvent) {
	body, err := jsoniter.Marshal(e)
	if err != nil {
		r.notify(false, "failed to create json string from sentry event")
		return
	}

	req := r.client.NewRequest("POST", r.eventEndpoint)
	req.SetHeader("Content-Type", "application/json")
	req.SetHeader("Content-Length", strconv.Itoa(len(body)))
	req.SetHeader("x-sentry-auth", r.authHeader)
	req.SetHeader("Host", r.hostname)
	req.SetBody(body)
	req.SetOnComplete(func(resp transporthttp.Response, err error) {
		r.onEventComplete(e, resp, err)
	})
	r.client.Send(req)
}

// onEventComplete mirrors event_sent_on_complete_cb: a transport error is
// reported and dropped, a non-200 response either re-enqueues the event
// behind a retry pause or is dropped permanently, and 200 reports success.
func (r *Reporter) onEventComplete(e *sentryEvent, resp transporthttp.Response, err error) {
	if err != nil {
		r.notify(false, fmt.Sprintf("ERROR: transport failure posting event to sentry: %v", err))
		return
	}

	code := resp.ResponseCode()
	if code == 200 {
		r.notify(true, "")
		return
	}

	if delaySeconds, ok := retryEligible(code, resp.Header("Retry-After")); ok {
		r.queue.pause(delaySeconds)
		r.queue.enqueue(e)
		r.notify(false, fmt.Sprintf("the server is currently not accepting events, re-queueing event to be sent in %d seconds", delaySeconds))
		return
	}

	r.notify(false, fmt.Sprintf("the adk_reporting upload to sentry failed with HTTP code %d, the event will NOT be resent", code))
}

// retryEligible mirrors is_retry_eligible: only a 429 carrying a
// Retry-After header whose value is a non-negative integer no greater
// than maxValidRetryDelaySeconds is worth retrying.
func retryEligible(httpStatus int, retryAfter string) (delaySeconds int, ok bool) {
	const httpStatusRetry = 429
	if httpStatus != httpStatusRetry || retryAfter == "" {
		return 0, false
	}
	delay, err := strconv.Atoi(retryAfter)
	if err != nil || delay < 0 || delay > maxValidRetryDelaySeconds {
		return 0, false
	}
	return delay, true
}
