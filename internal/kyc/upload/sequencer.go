// Package upload enforces the document-then-face upload order for one
// verification attempt.
package upload

//go:generate mockgen -source=sequencer.go -destination=mocks/mocks.go -package=mocks Uploader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/tracer"
)

const (
	opSubmitDocument = "submit_document"
	opSubmitFace     = "submit_face"
	opReset          = "reset"
)

// Uploader is the remote upload capability. Implementations classify
// failures with kycerrors categories.
type Uploader interface {
	UploadDocument(ctx context.Context, userID string, image models.Image) (models.SessionID, error)
	UploadFace(ctx context.Context, sessionID models.SessionID, image models.Image) error
}

// Sequencer gates the two uploads of one attempt: exactly one document
// upload, then exactly one face upload scoped by the session id the first
// produced. Each call is a single attempt; retries belong to the caller.
//
// Calls are expected to be issued sequentially. A call made while another is
// in flight fails with a precondition error rather than racing it.
type Sequencer struct {
	uploader Uploader
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	step      models.UploadStep
	sessionID models.SessionID
	userID    string
	inFlight  bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records upload metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// WithUserID pins the user id sent with the document upload. By default a
// random id is generated per attempt.
func WithUserID(userID string) Option {
	return func(s *Sequencer) {
		if userID != "" {
			s.userID = userID
		}
	}
}

// New creates a Sequencer for one attempt, ready for SubmitDocument.
func New(uploader Uploader, opts ...Option) (*Sequencer, error) {
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	s := &Sequencer{
		uploader: uploader,
		logger:   slog.Default(),
		step:     models.StepNotStarted,
		userID:   uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SubmitDocument uploads the identity document and records the session id
// the backend assigns. It is valid only before any document was accepted.
func (s *Sequencer) SubmitDocument(ctx context.Context, image models.Image) (models.SessionID, error) {
	if err := image.Validate(); err != nil {
		s.metrics.RecordPrecondition(metrics.KindDocument)
		return "", kycerrors.Precondition(opSubmitDocument, err.Error())
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.metrics.RecordPrecondition(metrics.KindDocument)
		return "", kycerrors.Precondition(opSubmitDocument, "another upload is in progress")
	}
	if s.step != models.StepNotStarted || !s.sessionID.IsZero() {
		s.mu.Unlock()
		s.metrics.RecordPrecondition(metrics.KindDocument)
		return "", kycerrors.Precondition(opSubmitDocument, "a session already exists for this attempt; reset to start over")
	}
	s.inFlight = true
	userID := s.userID
	s.mu.Unlock()

	start := time.Now()
	sessionID, err := s.uploader.UploadDocument(ctx, userID, image)
	if err == nil && sessionID.IsZero() {
		err = kycerrors.UploadRejected(opSubmitDocument, "server accepted the document without a session id", "")
	}
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		err = normalize(opSubmitDocument, err)
		s.metrics.ObserveUpload(metrics.KindDocument, outcomeOf(err), elapsed)
		s.logger.WarnContext(ctx, "document upload failed",
			"error", err,
			"retryable", kycerrors.IsRetryable(err),
		)
		return "", err
	}

	s.sessionID = sessionID
	s.step = models.StepDocumentUploaded
	s.metrics.ObserveUpload(metrics.KindDocument, metrics.OutcomeSuccess, elapsed)
	s.logger.InfoContext(ctx, "document uploaded",
		"session", tracer.HashSessionID(sessionID.String()),
	)
	return sessionID, nil
}

// SubmitFace uploads the face photo for the session opened by
// SubmitDocument. It is the last step the client drives; the rest of the
// lifecycle is observed through polling.
func (s *Sequencer) SubmitFace(ctx context.Context, image models.Image) error {
	if err := image.Validate(); err != nil {
		s.metrics.RecordPrecondition(metrics.KindFace)
		return kycerrors.Precondition(opSubmitFace, err.Error())
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.metrics.RecordPrecondition(metrics.KindFace)
		return kycerrors.Precondition(opSubmitFace, "another upload is in progress")
	}
	if s.step != models.StepDocumentUploaded || s.sessionID.IsZero() {
		step := s.step
		s.mu.Unlock()
		s.metrics.RecordPrecondition(metrics.KindFace)
		if step == models.StepFaceUploaded {
			return kycerrors.Precondition(opSubmitFace, "face photo already uploaded for this session")
		}
		return kycerrors.Precondition(opSubmitFace, "upload the identity document first")
	}
	s.inFlight = true
	sessionID := s.sessionID
	s.mu.Unlock()

	start := time.Now()
	err := s.uploader.UploadFace(ctx, sessionID, image)
	elapsed := time.Since(start).Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		err = normalize(opSubmitFace, err)
		s.metrics.ObserveUpload(metrics.KindFace, outcomeOf(err), elapsed)
		s.logger.WarnContext(ctx, "face upload failed",
			"session", tracer.HashSessionID(sessionID.String()),
			"error", err,
			"retryable", kycerrors.IsRetryable(err),
		)
		return err
	}

	s.step = models.StepFaceUploaded
	s.metrics.ObserveUpload(metrics.KindFace, metrics.OutcomeSuccess, elapsed)
	s.logger.InfoContext(ctx, "face photo uploaded",
		"session", tracer.HashSessionID(sessionID.String()),
	)
	return nil
}

// Reset discards the session so a wholly new attempt can begin. It refuses
// while an upload is in flight.
func (s *Sequencer) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return kycerrors.Precondition(opReset, "cannot reset while an upload is in progress")
	}
	s.step = models.StepNotStarted
	s.sessionID = ""
	s.userID = uuid.NewString()
	return nil
}

func (s *Sequencer) Step() models.UploadStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Sequencer) SessionID() models.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Sequencer) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// normalize keeps upload rejections and precondition errors as reported and
// classifies everything else as a transport failure: the caller got no
// usable answer from the server.
func normalize(op string, err error) error {
	var ke *kycerrors.Error
	if errors.As(err, &ke) {
		switch ke.Category {
		case kycerrors.CategoryUploadRejected, kycerrors.CategoryPrecondition, kycerrors.CategoryTransport:
			return err
		case kycerrors.CategoryRejected:
			return kycerrors.UploadRejected(op, ke.Message, ke.Code)
		}
	}
	return kycerrors.Transport(op, err)
}

func outcomeOf(err error) string {
	switch {
	case kycerrors.IsUploadRejected(err):
		return metrics.OutcomeRejected
	case kycerrors.IsPrecondition(err):
		return metrics.OutcomePrecondition
	default:
		return metrics.OutcomeTransport
	}
}
