package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/upload/mocks"
)

type SequencerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	uploader *mocks.MockUploader
	metrics  *metrics.Metrics
	seq      *Sequencer
	ctx      context.Context
	document models.Image
	face     models.Image
}

func (s *SequencerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.uploader = mocks.NewMockUploader(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.seq, err = New(s.uploader,
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithUserID("user-1"),
	)
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.document = models.Image{FileName: "id.jpg", ContentType: "image/jpeg", Data: []byte("doc")}
	s.face = models.Image{FileName: "face.jpg", ContentType: "image/jpeg", Data: []byte("face")}
}

func (s *SequencerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSequencerSuite(t *testing.T) {
	suite.Run(t, new(SequencerSuite))
}

func (s *SequencerSuite) TestNewRequiresUploader() {
	_, err := New(nil)
	s.Require().Error(err)
}

func (s *SequencerSuite) TestHappyPath() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), "user-1", s.document).Return(models.SessionID("s1"), nil)
	s.uploader.EXPECT().UploadFace(gomock.Any(), models.SessionID("s1"), s.face).Return(nil)

	id, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)
	s.Equal(models.SessionID("s1"), id)
	s.Equal(models.StepDocumentUploaded, s.seq.Step())
	s.Equal(models.SessionID("s1"), s.seq.SessionID())

	s.Require().NoError(s.seq.SubmitFace(s.ctx, s.face))
	s.Equal(models.StepFaceUploaded, s.seq.Step())

	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsTotal.WithLabelValues(metrics.KindDocument, metrics.OutcomeSuccess)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsTotal.WithLabelValues(metrics.KindFace, metrics.OutcomeSuccess)))
}

func (s *SequencerSuite) TestFaceBeforeDocumentIsPreconditionViolation() {
	err := s.seq.SubmitFace(s.ctx, s.face)
	s.Require().Error(err)
	s.True(kycerrors.IsPrecondition(err))
	s.Equal(models.StepNotStarted, s.seq.Step())
}

func (s *SequencerSuite) TestSecondDocumentIsPreconditionViolation() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.SessionID("s1"), nil).Times(1)

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)

	_, err = s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().Error(err)
	s.True(kycerrors.IsPrecondition(err))
	s.Equal(models.SessionID("s1"), s.seq.SessionID())
}

func (s *SequencerSuite) TestSecondFaceIsPreconditionViolation() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.SessionID("s1"), nil)
	s.uploader.EXPECT().UploadFace(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)
	s.Require().NoError(s.seq.SubmitFace(s.ctx, s.face))

	err = s.seq.SubmitFace(s.ctx, s.face)
	s.True(kycerrors.IsPrecondition(err))
	s.Equal(models.StepFaceUploaded, s.seq.Step())
}

func (s *SequencerSuite) TestRejectedDocumentLeavesStateRetryable() {
	gomock.InOrder(
		s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.SessionID(""), kycerrors.UploadRejected("upload_document", "image too blurry", "UPLOAD_ERROR")),
		s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.SessionID("s2"), nil),
	)

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().Error(err)
	s.True(kycerrors.IsUploadRejected(err))
	s.False(kycerrors.IsRetryable(err))
	s.Contains(err.Error(), "image too blurry")
	s.Equal(models.StepNotStarted, s.seq.Step())
	s.True(s.seq.SessionID().IsZero())

	id, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)
	s.Equal(models.SessionID("s2"), id)
}

func (s *SequencerSuite) TestTransportFailureOnFaceKeepsDocumentStep() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.SessionID("s1"), nil)
	s.uploader.EXPECT().UploadFace(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection reset by peer"))

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)

	err = s.seq.SubmitFace(s.ctx, s.face)
	s.Require().Error(err)
	s.True(kycerrors.IsTransport(err))
	s.True(kycerrors.IsRetryable(err))
	s.Equal(models.StepDocumentUploaded, s.seq.Step())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsTotal.WithLabelValues(metrics.KindFace, metrics.OutcomeTransport)))
}

func (s *SequencerSuite) TestSuccessWithoutSessionIDIsRejected() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.SessionID(""), nil)

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.True(kycerrors.IsUploadRejected(err))
	s.Equal(models.StepNotStarted, s.seq.Step())
}

func (s *SequencerSuite) TestGenericRejectionIsReportedAsUploadRejected() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.SessionID(""), kycerrors.Rejected("upload_document", "duplicate document", "UPLOAD_ERROR"))

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.True(kycerrors.IsUploadRejected(err))
	s.Contains(err.Error(), "duplicate document")
}

func (s *SequencerSuite) TestEmptyImageIsRefusedWithoutUpload() {
	_, err := s.seq.SubmitDocument(s.ctx, models.Image{FileName: "id.jpg"})
	s.True(kycerrors.IsPrecondition(err))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsTotal.WithLabelValues(metrics.KindDocument, metrics.OutcomePrecondition)))
}

func (s *SequencerSuite) TestResetStartsNewAttempt() {
	s.uploader.EXPECT().UploadDocument(gomock.Any(), "user-1", gomock.Any()).Return(models.SessionID("s1"), nil)

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.Require().NoError(err)

	s.Require().NoError(s.seq.Reset())
	s.Equal(models.StepNotStarted, s.seq.Step())
	s.True(s.seq.SessionID().IsZero())
	s.NotEqual("user-1", s.seq.UserID())

	err = s.seq.SubmitFace(s.ctx, s.face)
	s.True(kycerrors.IsPrecondition(err))
}

func (s *SequencerSuite) TestConcurrentCallIsRefusedWhileUploadInFlight() {
	entered := make(chan struct{})
	release := make(chan struct{})
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, models.Image) (models.SessionID, error) {
			close(entered)
			<-release
			return models.SessionID("s1"), nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := s.seq.SubmitDocument(s.ctx, s.document)
		done <- err
	}()
	<-entered

	_, err := s.seq.SubmitDocument(s.ctx, s.document)
	s.True(kycerrors.IsPrecondition(err))
	s.True(kycerrors.IsPrecondition(s.seq.Reset()))
	s.True(kycerrors.IsPrecondition(s.seq.SubmitFace(s.ctx, s.face)))

	close(release)
	s.Require().NoError(<-done)
	s.Equal(models.StepDocumentUploaded, s.seq.Step())
}

// Property: for any interleaving of calls, a face upload only reaches the
// uploader after a successful document upload in the same attempt.
func (s *SequencerSuite) TestFaceNeverPrecedesDocument() {
	documentAccepted := false
	s.uploader.EXPECT().UploadDocument(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, models.Image) (models.SessionID, error) {
			documentAccepted = true
			return models.SessionID("s1"), nil
		}).AnyTimes()
	s.uploader.EXPECT().UploadFace(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.SessionID, models.Image) error {
			s.True(documentAccepted, "face upload reached the server before a document")
			return nil
		}).AnyTimes()

	calls := []string{"face", "reset", "face", "doc", "doc", "face", "face", "reset", "face", "doc", "face"}
	for _, c := range calls {
		switch c {
		case "doc":
			_, _ = s.seq.SubmitDocument(s.ctx, s.document)
		case "face":
			_ = s.seq.SubmitFace(s.ctx, s.face)
		case "reset":
			_ = s.seq.Reset()
			documentAccepted = false
		}
	}
}
