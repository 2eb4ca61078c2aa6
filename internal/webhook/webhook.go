// Package webhook ingests sequencing-partner callbacks: HMAC verification
// against the partner registry, admission, and queued asynchronous dispatch
// with exponential-backoff retries.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/xtergo/dnaresearch-sub000/internal/model"
	"github.com/xtergo/dnaresearch-sub000/internal/telemetry"
)

var (
	// ErrUnknownPartner is returned for callbacks from unregistered or
	// inactive partners.
	ErrUnknownPartner = errors.New("webhook: unknown or inactive partner")
	// ErrBadSignature is returned when HMAC verification fails.
	ErrBadSignature = errors.New("webhook: signature verification failed")
	// ErrUnsupportedEvent is returned when the event type is not in the
	// partner's supported set.
	ErrUnsupportedEvent = errors.New("webhook: unsupported event type")
	// ErrBadPayload is returned when a correctly signed body is not a JSON
	// object. Authentication passed; the content is the problem.
	ErrBadPayload = errors.New("webhook: body is not a JSON object")
	// ErrEventNotFound is returned for lookups of unknown event IDs.
	ErrEventNotFound = errors.New("webhook: event not found")
	// ErrQueueFull signals backpressure: the caller should retry later.
	ErrQueueFull = errors.New("webhook: queue at capacity, try again later")
)

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 3
)

// Pipeline owns the partner registry, the event store, and the work queue.
// One consumer goroutine drains the queue; the processing flag keeps a
// second Start from racing a live consumer.
type Pipeline struct {
	mu       sync.Mutex
	partners map[string]*model.WebhookPartner
	events   map[string]*model.WebhookEvent
	timers   map[string]*time.Timer // pending retry timers by event ID

	queue      chan string
	processing bool
	dropped    atomic.Int64

	logger     *slog.Logger
	now        func() time.Time
	retryUnit  time.Duration // 2^retry_count multiples of this
	cancelLoop context.CancelFunc
	done       chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQueueSize sets the work queue capacity.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.queue = make(chan string, n)
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRetryUnit overrides the backoff unit, normally one minute (tests).
func WithRetryUnit(d time.Duration) Option {
	return func(p *Pipeline) { p.retryUnit = d }
}

// NewPipeline creates an empty pipeline. Call Start before ingesting.
func NewPipeline(logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		partners:  make(map[string]*model.WebhookPartner),
		events:    make(map[string]*model.WebhookEvent),
		timers:    make(map[string]*time.Timer),
		queue:     make(chan string, defaultQueueSize),
		logger:    logger,
		now:       time.Now,
		retryUnit: time.Minute,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterPartner adds or replaces a partner in the registry.
func (p *Pipeline) RegisterPartner(partner model.WebhookPartner) {
	if partner.MaxRetries <= 0 {
		partner.MaxRetries = defaultMaxRetries
	}
	p.mu.Lock()
	p.partners[partner.PartnerID] = &partner
	p.mu.Unlock()
}

// Partner returns a registered partner.
func (p *Pipeline) Partner(partnerID string) (model.WebhookPartner, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	partner, ok := p.partners[partnerID]
	if !ok {
		return model.WebhookPartner{}, false
	}
	return *partner, true
}

// VerifySignature checks an X-Signature header ("sha256=<hex>") against
// HMAC-SHA256(partner secret, body). Comparison is constant-time.
func (p *Pipeline) VerifySignature(partnerID string, body []byte, sigHeader string) error {
	p.mu.Lock()
	partner, ok := p.partners[partnerID]
	p.mu.Unlock()
	if !ok || !partner.Active {
		return ErrUnknownPartner
	}

	want, ok := strings.CutPrefix(sigHeader, "sha256=")
	if !ok {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(partner.Secret))
	mac.Write(body)
	got := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}

// Ingest verifies and admits a partner callback. The body must be a JSON
// object carrying at least event_type; everything else is opaque partner
// data. The admitted event is stored and enqueued for the consumer.
func (p *Pipeline) Ingest(partnerID string, body []byte, sigHeader string) (model.WebhookEvent, error) {
	if err := p.VerifySignature(partnerID, body, sigHeader); err != nil {
		return model.WebhookEvent{}, err
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return model.WebhookEvent{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	eventType, _ := data["event_type"].(string)

	p.mu.Lock()
	partner := p.partners[partnerID]
	supported := false
	for _, et := range partner.SupportedEvents {
		if et == model.EventType(eventType) {
			supported = true
			break
		}
	}
	if !supported {
		p.mu.Unlock()
		return model.WebhookEvent{}, fmt.Errorf("%w: %q for partner %s", ErrUnsupportedEvent, eventType, partnerID)
	}

	now := p.now().UTC()
	event := &model.WebhookEvent{
		EventID:    fmt.Sprintf("%s_%s_%d", partnerID, randomHex(4), now.Unix()),
		PartnerID:  partnerID,
		EventType:  model.EventType(eventType),
		Data:       data,
		Timestamp:  now,
		Status:     model.EventReceived,
		Signature:  sigHeader,
		MaxRetries: partner.MaxRetries,
	}
	p.events[event.EventID] = event
	p.mu.Unlock()

	if err := p.enqueue(event.EventID); err != nil {
		return *event, err
	}

	p.logger.Info("webhook event admitted",
		"event_id", event.EventID,
		"partner_id", partnerID,
		"event_type", eventType,
	)
	return *event, nil
}

// Event returns a stored event by ID.
func (p *Pipeline) Event(eventID string) (model.WebhookEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event, ok := p.events[eventID]
	if !ok {
		return model.WebhookEvent{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return *event, nil
}

// QueueDepth returns the number of events waiting for the consumer.
func (p *Pipeline) QueueDepth() int { return len(p.queue) }

// Dropped returns the count of events rejected because the queue was full.
func (p *Pipeline) Dropped() int64 { return p.dropped.Load() }

// Start launches the consumer goroutine and registers OTEL gauges.
// A second Start while a consumer is live is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.processing {
		p.mu.Unlock()
		return
	}
	p.processing = true
	p.mu.Unlock()

	p.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancelLoop = cancel
	go p.consume(loopCtx)
}

// Drain stops the consumer and cancels pending retry timers. Events still
// queued or awaiting retry stay in their last recorded state; the queue is
// in-memory and does not survive the process.
func (p *Pipeline) Drain(ctx context.Context) {
	p.mu.Lock()
	if !p.processing {
		p.mu.Unlock()
		return
	}
	for id, timer := range p.timers {
		timer.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()

	p.cancelLoop()
	select {
	case <-p.done:
	case <-ctx.Done():
		p.logger.Warn("webhook drain timed out waiting for consumer")
	}
}

func (p *Pipeline) consume(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case eventID := <-p.queue:
			p.process(ctx, eventID)
		}
	}
}

func (p *Pipeline) enqueue(eventID string) error {
	select {
	case p.queue <- eventID:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// process runs the per-type handler for one event and drives the state
// machine: processing, then completed, or retrying with backoff until the
// retry budget is exhausted.
func (p *Pipeline) process(ctx context.Context, eventID string) {
	p.mu.Lock()
	event, ok := p.events[eventID]
	if !ok {
		p.mu.Unlock()
		return
	}
	event.Status = model.EventProcessing
	snapshot := *event
	p.mu.Unlock()

	result, err := handle(snapshot)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		now := p.now().UTC()
		event.Status = model.EventCompleted
		event.ProcessedAt = &now
		event.Result = result
		event.NextRetry = nil
		p.logger.Info("webhook event completed", "event_id", eventID, "event_type", event.EventType)
		return
	}

	event.ErrorMessage = err.Error()
	if event.RetryCount >= event.MaxRetries {
		event.Status = model.EventFailed
		event.NextRetry = nil
		p.logger.Error("webhook event failed permanently",
			"event_id", eventID,
			"retries", event.RetryCount,
			"error", err,
		)
		return
	}

	event.RetryCount++
	event.Status = model.EventRetrying
	delay := time.Duration(1<<event.RetryCount) * p.retryUnit
	next := p.now().UTC().Add(delay)
	event.NextRetry = &next

	p.timers[eventID] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, eventID)
		p.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := p.enqueue(eventID); err != nil {
			p.logger.Error("webhook retry enqueue failed", "event_id", eventID, "error", err)
		}
	})
	p.logger.Warn("webhook event scheduled for retry",
		"event_id", eventID,
		"retry_count", event.RetryCount,
		"next_retry", next,
		"error", err,
	)
}

func (p *Pipeline) registerMetrics() {
	meter := telemetry.Meter("genomelab/webhook")

	_, _ = meter.Int64ObservableGauge("genomelab.webhook.queue_depth",
		metric.WithDescription("Events waiting for the webhook consumer"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(p.QueueDepth()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("genomelab.webhook.dropped_total",
		metric.WithDescription("Events rejected because the queue was full"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(p.Dropped())
			return nil
		}),
	)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("webhook: read random: %v", err))
	}
	return hex.EncodeToString(buf)
}
