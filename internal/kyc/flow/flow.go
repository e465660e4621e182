// Package flow runs one complete verification attempt: both uploads in
// order, then status polling until the session is terminal.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/poller"
	"kycflow/internal/kyc/tracer"
	"kycflow/internal/kyc/upload"
	"kycflow/internal/kyc/view"
)

// Observer is told about progress while an attempt runs. Updated is called
// from the polling goroutine, one call at a time.
type Observer interface {
	Uploaded(step models.UploadStep, sessionID models.SessionID)
	Updated(state view.State)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) Uploaded(models.UploadStep, models.SessionID) {}

func (NopObserver) Updated(view.State) {}

// Runner wires a sequencer, a poller and a display state for each attempt.
// It holds no per-attempt state and may run attempts concurrently.
type Runner struct {
	uploader upload.Uploader
	fetcher  poller.StatusFetcher
	interval time.Duration
	userID   string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the polling interval of every attempt.
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) {
		r.interval = interval
	}
}

// WithUserID pins the user id of every attempt.
func WithUserID(userID string) Option {
	return func(r *Runner) {
		r.userID = userID
	}
}

// WithLogger sets the logger passed to the sequencer and poller.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics shares m with the sequencer and poller.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer sets the tracer for attempt spans.
func WithTracer(t tracer.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a Runner over the upload and status capabilities.
func New(uploader upload.Uploader, fetcher poller.StatusFetcher, opts ...Option) (*Runner, error) {
	if uploader == nil || fetcher == nil {
		return nil, errors.New("uploader and status fetcher are required")
	}
	r := &Runner{
		uploader: uploader,
		fetcher:  fetcher,
		interval: poller.DefaultInterval,
		logger:   slog.Default(),
		tracer:   tracer.NoopTracer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Run submits the document and the face photo, then watches the session
// until it is terminal. The returned state is the last one shown; on error it
// is whatever was reached before the failure.
func (r *Runner) Run(ctx context.Context, document, face models.Image, obs Observer) (_ view.State, err error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanVerifyFlow)
	defer func() { span.End(err) }()

	if obs == nil {
		obs = NopObserver{}
	}

	seq, err := upload.New(r.uploader,
		upload.WithLogger(r.logger),
		upload.WithMetrics(r.metrics),
		upload.WithUserID(r.userID),
	)
	if err != nil {
		return view.State{}, err
	}

	sessionID, err := seq.SubmitDocument(ctx, document)
	if err != nil {
		return view.State{}, fmt.Errorf("submitting document: %w", err)
	}
	span.SetAttributes(tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())))
	obs.Uploaded(seq.Step(), sessionID)

	if err = seq.SubmitFace(ctx, face); err != nil {
		return view.New(sessionID), fmt.Errorf("submitting face photo: %w", err)
	}
	obs.Uploaded(seq.Step(), sessionID)

	state, err := r.Watch(ctx, sessionID, obs)
	if err != nil {
		return state, err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrStatus, state.Status.String()),
		tracer.Bool("kyc.passed", state.Passed()),
	)
	return state, nil
}

// Watch polls an existing session until it is terminal or ctx ends.
func (r *Runner) Watch(ctx context.Context, sessionID models.SessionID, obs Observer) (view.State, error) {
	if obs == nil {
		obs = NopObserver{}
	}

	p, err := poller.New(r.fetcher,
		poller.WithInterval(r.interval),
		poller.WithLogger(r.logger),
		poller.WithMetrics(r.metrics),
		poller.WithTracer(r.tracer),
	)
	if err != nil {
		return view.State{}, err
	}

	var mu sync.Mutex
	state := view.New(sessionID)
	update := func(apply func(view.State) view.State) {
		mu.Lock()
		state = apply(state)
		current := state
		mu.Unlock()
		obs.Updated(current)
	}

	err = p.Start(ctx, sessionID,
		func(s models.Snapshot) {
			update(func(v view.State) view.State { return v.Apply(s) })
		},
		func(err error) {
			update(func(v view.State) view.State { return v.Fail(err) })
		},
	)
	if err != nil {
		return state, err
	}
	<-p.Done()

	mu.Lock()
	defer mu.Unlock()
	if !state.IsTerminal() {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		return state, fmt.Errorf("watching %s: polling stopped before a terminal status", sessionID)
	}
	return state, nil
}

// Check performs one status fetch and returns the resulting display state.
func (r *Runner) Check(ctx context.Context, sessionID models.SessionID) (view.State, error) {
	snapshot, err := r.fetcher.FetchStatus(ctx, sessionID)
	if err != nil {
		return view.New(sessionID).Fail(err), err
	}
	return view.New(sessionID).Apply(snapshot), nil
}
