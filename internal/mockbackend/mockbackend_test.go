package mockbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"kycflow/internal/kyc/client"
	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/models"
	"kycflow/internal/platform/health"
	"kycflow/internal/platform/metrics"
)

const adminToken = "admin-secret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	idCard    = models.Image{FileName: "id.jpg", ContentType: "image/jpeg", Data: []byte("id-card")}
	facePhoto = models.Image{FileName: "face.jpg", ContentType: "image/jpeg", Data: []byte("face")}
)

type BackendSuite struct {
	suite.Suite
	clock   *fakeClock
	store   *Store
	metrics *metrics.Metrics
	server  *httptest.Server
	client  *client.Client
	admin   *client.Client
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}

func (s *BackendSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.clock = &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s.store = NewStore(0)
	s.metrics = metrics.New(prometheus.NewRegistry())

	h := New(s.store, Pipeline{StageDuration: 10 * time.Second},
		WithClock(s.clock.Now),
		WithLogger(logger),
		WithMetrics(s.metrics),
	)
	hc := health.New("test")
	hc.RegisterCheck("sessions", s.store.CheckCapacity)
	s.server = httptest.NewServer(NewRouter(h, hc, RouterConfig{AdminToken: adminToken}, logger))

	ua := client.WithUserAgent("Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")
	s.client = client.New(s.server.URL, ua, client.WithLogger(logger))
	s.admin = client.New(s.server.URL, ua, client.WithLogger(logger), client.WithAdminToken(adminToken))
}

func (s *BackendSuite) TearDownTest() {
	s.server.Close()
}

func (s *BackendSuite) fetch(id models.SessionID) models.Snapshot {
	snap, err := s.client.FetchStatus(context.Background(), id)
	s.Require().NoError(err)
	return snap
}

func (s *BackendSuite) TestSessionLifecycle() {
	ctx := context.Background()

	id, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	s.False(id.IsZero())

	snap := s.fetch(id)
	s.Equal(models.StatusPending, snap.Status)
	s.Equal(0, snap.Progress)

	s.Require().NoError(s.client.UploadFace(ctx, id, facePhoto))

	snap = s.fetch(id)
	s.Equal(models.StatusInProgress, snap.Status)
	s.Equal(models.NodeIDVerification, snap.CurrentNode)

	s.clock.Advance(15 * time.Second)
	snap = s.fetch(id)
	s.Equal(33, snap.Progress)
	s.Equal(models.NodeFaceVerification, snap.CurrentNode)

	s.clock.Advance(20 * time.Second)
	snap = s.fetch(id)
	s.Equal(models.StatusCompleted, snap.Status)
	s.Equal(100, snap.Progress)
	result, ok := snap.Result()
	s.Require().True(ok)
	s.Equal(models.Result{Passed: true, Reason: "All verifications passed", Confidence: 0.95}, result)

	s.fetch(id)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PipelineOutcomes.WithLabelValues("COMPLETED")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsCreated))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsReceived.WithLabelValues(kindFace)))
}

func (s *BackendSuite) TestFailingStageEndsFailed() {
	ctx := context.Background()
	id, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, id, models.Image{FileName: "deepfake-face.jpg", Data: []byte("x")}))

	s.clock.Advance(time.Minute)
	snap := s.fetch(id)
	s.Equal(models.StatusFailed, snap.Status)
	s.Equal(66, snap.Progress)
	result, ok := snap.Result()
	s.Require().True(ok)
	s.False(result.Passed)
}

func (s *BackendSuite) TestUploadRejections() {
	ctx := context.Background()

	_, err := s.client.UploadDocument(ctx, "user-1", models.Image{FileName: "reject-id.jpg", Data: []byte("x")})
	s.True(kycerrors.IsUploadRejected(err))
	s.Contains(err.Error(), "could not be read")

	err = s.client.UploadFace(ctx, "missing", facePhoto)
	s.True(kycerrors.IsUploadRejected(err))
	s.Contains(err.Error(), "KYC process not found: missing")

	id, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, id, facePhoto))
	err = s.client.UploadFace(ctx, id, facePhoto)
	s.True(kycerrors.IsUploadRejected(err))

	_, err = s.client.FetchStatus(ctx, "missing")
	s.Equal(kycerrors.CategoryRejected, kycerrors.GetCategory(err))

	s.Equal(2.0, testutil.ToFloat64(s.metrics.UploadsRejected.WithLabelValues(kindFace)))
}

func (s *BackendSuite) TestDocumentUploadRequiresUserID() {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("idCardImage", "id.jpg")
	s.Require().NoError(err)
	_, _ = part.Write([]byte("id-card"))
	s.Require().NoError(w.Close())

	resp, err := http.Post(s.server.URL+"/api/kyc/upload-id-card", w.FormDataContentType(), &body)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
	var env map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	s.Equal(false, env["success"])
	s.Equal("userId is required", env["message"])
	s.Equal("UPLOAD_ERROR", env["errorCode"])
}

func (s *BackendSuite) TestAdminRequiresToken() {
	_, err := s.client.ListSessions(context.Background(), models.ListParams{})
	s.Require().Error(err)

	var ke *kycerrors.Error
	s.Require().ErrorAs(err, &ke)
	s.Equal(kycerrors.CategoryRejected, ke.Category)
	s.Equal("UNAUTHORIZED", ke.Code)
}

func (s *BackendSuite) TestAdminListDetailDelete() {
	ctx := context.Background()

	pending, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	s.clock.Advance(time.Second)
	running, err := s.client.UploadDocument(ctx, "user-2", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, running, facePhoto))

	page, err := s.admin.ListSessions(ctx, models.ListParams{})
	s.Require().NoError(err)
	s.Equal(2, page.TotalElements)
	s.Require().Len(page.Content, 2)
	s.Equal(running.String(), page.Content[0].ID, "newest first")

	page, err = s.admin.ListSessions(ctx, models.ListParams{Status: "PENDING"})
	s.Require().NoError(err)
	s.Require().Len(page.Content, 1)
	s.Equal(pending.String(), page.Content[0].ID)

	page, err = s.admin.ListSessions(ctx, models.ListParams{Page: 1, Size: 1})
	s.Require().NoError(err)
	s.Equal(2, page.TotalPages)
	s.Require().Len(page.Content, 1)
	s.Equal(pending.String(), page.Content[0].ID)

	detail, err := s.admin.GetSession(ctx, running)
	s.Require().NoError(err)
	s.Equal("user-2", detail.UserID)
	s.Equal(models.StatusInProgress, detail.Status)
	s.Contains(detail.ClientPlatform, "Android")
	s.Require().NotNil(detail.IDCardInfo)
	s.Equal("id.jpg", detail.IDCardInfo.FileName)
	s.Require().NotNil(detail.FaceInfo)
	s.Equal("PENDING", detail.FaceInfo.VerificationStatus)
	s.Require().Len(detail.WorkflowNodes, 3)
	s.Equal(models.StatusInProgress, detail.WorkflowNodes[0].Status)

	s.Require().NoError(s.admin.DeleteSession(ctx, pending))
	_, err = s.admin.GetSession(ctx, pending)
	s.Equal(kycerrors.CategoryRejected, kycerrors.GetCategory(err))
	err = s.admin.DeleteSession(ctx, pending)
	s.Equal(kycerrors.CategoryRejected, kycerrors.GetCategory(err))
}

func (s *BackendSuite) TestAdminImage() {
	ctx := context.Background()
	id, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, id, facePhoto))

	detail, err := s.admin.GetSession(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(detail.IDCardInfo)
	s.Require().NotNil(detail.FaceInfo)
	s.True(strings.HasSuffix(detail.IDCardInfo.UploadID, "_id.jpg"))
	s.Equal("uploads/"+detail.IDCardInfo.UploadID, detail.IDCardInfo.FilePath)

	img, err := s.admin.GetImage(ctx, detail.IDCardInfo.ImageID())
	s.Require().NoError(err)
	s.Equal("image/jpeg", img.ContentType)
	s.Equal("id-card", string(img.Data))

	img, err = s.admin.GetImage(ctx, models.UploadInfo{FilePath: detail.FaceInfo.FilePath}.ImageID())
	s.Require().NoError(err)
	s.Equal("face", string(img.Data))

	_, err = s.admin.GetImage(ctx, "missing")
	var ke *kycerrors.Error
	s.Require().ErrorAs(err, &ke)
	s.Equal(kycerrors.CategoryRejected, ke.Category)
	s.Equal("NOT_FOUND", ke.Code)

	_, err = s.client.GetImage(ctx, detail.IDCardInfo.ImageID())
	s.Require().ErrorAs(err, &ke)
	s.Equal("UNAUTHORIZED", ke.Code, "image download needs the admin token")
}

func (s *BackendSuite) TestAdminListPagingBounds() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.client.UploadDocument(ctx, "user-1", idCard)
		s.Require().NoError(err)
	}

	tests := []struct {
		name   string
		query  string
		number int
		size   int
		pages  int
		count  int
	}{
		{"defaults", "", 0, 20, 1, 3},
		{"page past the end", "page=5&size=2", 5, 2, 2, 0},
		{"huge page", "page=2305843009213693952&size=4", 2305843009213693952, 4, 1, 0},
		{"huge size is capped", "page=0&size=9223372036854775807", 0, 100, 1, 3},
		{"huge page and size", "page=9223372036854775807&size=9223372036854775807", 9223372036854775807, 100, 1, 0},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/admin/kyc?"+tt.query, nil)
			s.Require().NoError(err)
			req.Header.Set("X-Admin-Token", adminToken)
			resp, err := http.DefaultClient.Do(req)
			s.Require().NoError(err)
			defer resp.Body.Close()

			s.Equal(http.StatusOK, resp.StatusCode)
			var env struct {
				Success bool                         `json:"success"`
				Data    models.Page[models.Process] `json:"data"`
			}
			s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
			s.True(env.Success)
			s.Equal(tt.number, env.Data.Number)
			s.Equal(tt.size, env.Data.Size)
			s.Equal(tt.pages, env.Data.TotalPages)
			s.Equal(3, env.Data.TotalElements)
			s.Len(env.Data.Content, tt.count)
		})
	}

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/admin/kyc?page=99999999999999999999", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Admin-Token", adminToken)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode, "out of range page is a query error")
}

func (s *BackendSuite) TestAdminStats() {
	ctx := context.Background()

	_, err := s.client.UploadDocument(ctx, "user-1", idCard)
	s.Require().NoError(err)
	passing, err := s.client.UploadDocument(ctx, "user-2", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, passing, facePhoto))
	failing, err := s.client.UploadDocument(ctx, "user-3", idCard)
	s.Require().NoError(err)
	s.Require().NoError(s.client.UploadFace(ctx, failing, models.Image{FileName: "fail-face.jpg", Data: []byte("x")}))
	running, err := s.client.UploadDocument(ctx, "user-4", idCard)
	s.Require().NoError(err)

	s.clock.Advance(31 * time.Second)
	s.Require().NoError(s.client.UploadFace(ctx, running, facePhoto))

	stats, err := s.admin.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(models.Stats{Total: 4, Pending: 1, InProgress: 1, Completed: 1, Failed: 1}, stats)
	s.InDelta(25.0, stats.PassRate(), 1e-9)
}

func (s *BackendSuite) TestHealthAndUnknownRoute() {
	s.NoError(s.client.Health(context.Background()))

	resp, err := http.Get(s.server.URL + "/api/kyc/nope")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestStoreCapacity(t *testing.T) {
	store := NewStore(1)
	if err := store.Create(session{ID: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(session{ID: "b"}); err != ErrStoreFull {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}
	if err := store.CheckCapacity(); err == nil {
		t.Fatal("expected capacity check to fail")
	}
}
