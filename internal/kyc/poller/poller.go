// Package poller turns a single-shot status fetch into a live, cancellable
// stream of session snapshots.
package poller

//go:generate mockgen -source=poller.go -destination=mocks/mocks.go -package=mocks StatusFetcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/tracer"
)

// DefaultInterval is the pause between the end of one status check and the
// start of the next.
const DefaultInterval = 3 * time.Second

// StatusFetcher is the single-shot status capability supplied by the caller.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, sessionID models.SessionID) (models.Snapshot, error)
}

// Clock schedules the next fetch. Tests substitute a manual clock.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// State is the poller lifecycle: IDLE → RUNNING → STOPPED. There is no way
// back from STOPPED; watching again needs a new Poller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// SnapshotFunc receives every successfully fetched snapshot.
type SnapshotFunc func(models.Snapshot)

// ErrorFunc receives failed status checks. Failures never stop polling.
type ErrorFunc func(error)

// Poller watches one session. It runs at most one fetch at a time and
// stops itself after delivering the first terminal snapshot.
//
// Every loop iteration is tagged with the generation current when the loop
// started. Delivery checks the generation and runs the callback while
// holding the delivery lock; Stop bumps the generation and then waits on that
// lock, so a result accepted before Stop is delivered before Stop returns and
// nothing is delivered after. Callbacks run on the poller goroutine and may
// call Stop. Stop never waits for a callback that is already running, since
// the callback may be the caller.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	// deliverMu is held across the generation check and the callback.
	deliverMu sync.Mutex
	// delivering runs after a result passed its generation check. Tests use
	// it to hold a delivery open.
	delivering func()

	mu         sync.Mutex
	state      State
	generation uint64
	inCallback bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the polling interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock replaces the clock that schedules fetches.
func WithClock(clock Clock) Option {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records poller metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithTracer sets the tracer for fetch spans.
func WithTracer(t tracer.Tracer) Option {
	return func(p *Poller) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New creates an idle Poller that fetches through fetcher.
func New(fetcher StatusFetcher, opts ...Option) (*Poller, error) {
	if fetcher == nil {
		return nil, errors.New("status fetcher is required")
	}
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		clock:    realClock{},
		logger:   slog.Default(),
		tracer:   tracer.NoopTracer{},
		state:    StateIdle,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Start begins polling sessionID: one fetch immediately, then one fetch per
// interval measured from the end of the previous fetch. Cancelling ctx has
// the same effect as Stop.
func (p *Poller) Start(ctx context.Context, sessionID models.SessionID, onSnapshot SnapshotFunc, onError ErrorFunc) error {
	if sessionID.IsZero() {
		return kycerrors.Precondition("start_poller", "session id is required")
	}
	if onSnapshot == nil {
		return kycerrors.Precondition("start_poller", "snapshot callback is required")
	}
	if onError == nil {
		onError = func(error) {}
	}

	p.mu.Lock()
	switch p.state {
	case StateRunning:
		p.mu.Unlock()
		return kycerrors.ErrAlreadyRunning
	case StateStopped:
		p.mu.Unlock()
		return kycerrors.ErrPollerStopped
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.state = StateRunning
	p.generation++
	gen := p.generation
	p.cancel = cancel
	p.mu.Unlock()

	p.metrics.PollerStarted()
	p.logger.InfoContext(ctx, "status polling started",
		"session", tracer.HashSessionID(sessionID.String()),
		"interval", p.interval.String(),
	)

	go p.run(loopCtx, gen, sessionID, onSnapshot, onError)
	return nil
}

// Stop cancels polling from any state. After it returns no new fetch is
// issued and no further result is delivered; a result that passed its check
// before Stop is delivered first. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return
	case StateIdle:
		p.state = StateStopped
		close(p.done)
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.generation++
	if p.cancel != nil {
		p.cancel()
	}
	wait := !p.inCallback
	p.mu.Unlock()

	if wait {
		// Barrier: a delivery that passed its generation check before the
		// bump finishes before Stop returns.
		p.deliverMu.Lock()
		p.deliverMu.Unlock()
	}
}

// State reports the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the poller has stopped and its goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) run(ctx context.Context, gen uint64, sessionID models.SessionID, onSnapshot SnapshotFunc, onError ErrorFunc) {
	defer close(p.done)
	defer p.metrics.PollerStopped()
	defer p.finish(gen)

	for {
		snapshot, err := p.fetch(ctx, sessionID)
		next := p.clock.After(p.interval)

		delivered := p.deliver(ctx, gen, func() {
			if err != nil {
				onError(kycerrors.StatusFetch(err))
				return
			}
			onSnapshot(snapshot)
		})
		if !delivered {
			p.metrics.RecordStaleResult()
			p.logger.DebugContext(ctx, "discarding status result after stop",
				"session", tracer.HashSessionID(sessionID.String()),
			)
			return
		}

		if err == nil && snapshot.IsTerminal() {
			p.metrics.RecordTerminal(snapshot.Status.String())
			p.logger.InfoContext(ctx, "session reached terminal status",
				"session", tracer.HashSessionID(sessionID.String()),
				"status", snapshot.Status.String(),
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-next:
		}
	}
}

func (p *Poller) fetch(ctx context.Context, sessionID models.SessionID) (snapshot models.Snapshot, err error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanPollTick,
		tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())),
	)
	defer func() { span.End(err) }()

	start := time.Now()
	snapshot, err = p.fetcher.FetchStatus(ctx, sessionID)
	if err == nil {
		span.SetAttributes(
			tracer.String(tracer.AttrStatus, snapshot.Status.String()),
			tracer.Int64(tracer.AttrProgress, int64(snapshot.Progress)),
		)
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = fetchOutcome(err)
		p.logger.WarnContext(ctx, "status check failed",
			"session", tracer.HashSessionID(sessionID.String()),
			"error", err,
		)
	}
	p.metrics.ObserveStatusFetch(outcome, time.Since(start).Seconds())
	return snapshot, err
}

// deliver runs callback if the loop tagged gen is still current. The check
// and the callback happen under deliverMu.
func (p *Poller) deliver(ctx context.Context, gen uint64, callback func()) bool {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if !p.current(ctx, gen) {
		return false
	}
	if p.delivering != nil {
		p.delivering()
	}
	p.setInCallback(true)
	defer p.setInCallback(false)
	callback()
	return true
}

func (p *Poller) setInCallback(v bool) {
	p.mu.Lock()
	p.inCallback = v
	p.mu.Unlock()
}

// current reports whether results of the loop tagged gen may still be
// delivered.
func (p *Poller) current(ctx context.Context, gen uint64) bool {
	if ctx.Err() != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateRunning && p.generation == gen
}

// finish moves a loop that ended on its own (terminal snapshot or parent
// context) to STOPPED.
func (p *Poller) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning && p.generation == gen {
		p.state = StateStopped
		p.generation++
	}
	if p.cancel != nil {
		p.cancel()
	}
}

func fetchOutcome(err error) string {
	switch kycerrors.GetCategory(err) {
	case kycerrors.CategoryTransport:
		return metrics.OutcomeTransport
	case kycerrors.CategoryRejected, kycerrors.CategoryUploadRejected:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
