// Package mockbackend is an in-memory stand-in for the verification backend.
// It serves the same HTTP contract and simulates the three-stage workflow on
// a timer so clients can be exercised end to end.
package mockbackend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kycflow/internal/kyc/models"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/platform/middleware"
	"kycflow/internal/transport/httputil"
)

const (
	// maxUploadBytes bounds one multipart upload request.
	maxUploadBytes = 10 << 20

	// uploadDir prefixes the storage path reported for each upload.
	uploadDir = "uploads/"

	kindDocument = "document"
	kindFace     = "face"
)

// Handler serves the verification endpoints.
type Handler struct {
	store    *Store
	pipeline Pipeline
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces the time source that drives the simulated workflow.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records backend metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a Handler over store.
func New(store *Store, pipeline Pipeline, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		pipeline: pipeline,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register registers the client-facing routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/kyc/upload-id-card", h.handleUploadDocument)
	r.Post("/api/kyc/{kycId}/upload-face", h.handleUploadFace)
	r.Get("/api/kyc/{kycId}/status", h.handleStatus)
}

// RegisterAdmin registers the admin console routes. Callers mount them
// behind the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/kyc", h.handleList)
	r.Get("/kyc/{kycId}", h.handleDetail)
	r.Delete("/kyc/{kycId}", h.handleDelete)
	r.Get("/image/{uploadId}", h.handleImage)
}

type uploadResponse struct {
	KycID     string `json:"kycId"`
	SessionID string `json:"sessionId"`
	UploadID  string `json:"uploadId"`
}

type statusResponse struct {
	KycID       string         `json:"kycId"`
	SessionID   string         `json:"sessionId"`
	Status      models.Status  `json:"status"`
	Progress    int            `json:"progress"`
	CurrentNode string         `json:"currentNode,omitempty"`
	Result      *models.Result `json:"result,omitempty"`
}

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := h.now()
	defer h.observe("upload_id_card", start)
	requestID := middleware.GetRequestID(ctx)

	file, err := readUpload(w, r, "idCardImage")
	var userID string
	if err == nil {
		userID = strings.TrimSpace(formValue(r, "userId"))
		if userID == "" {
			err = httputil.BadRequest(httputil.CodeUploadError, "userId is required")
		}
	}
	if err == nil && strings.HasPrefix(file.FileName, prefixRejectUpload) {
		err = httputil.BadRequest(httputil.CodeUploadError, "identity document could not be read")
	}
	if err != nil {
		h.metrics.IncrementRejectedUploads(kindDocument)
		h.logger.WarnContext(ctx, "document upload rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := h.now()
	file.At = now
	sess := session{
		ID:             uuid.NewString(),
		UserID:         userID,
		ClientPlatform: middleware.GetClientPlatform(ctx),
		Created:        now,
		Updated:        now,
		Document:       &file,
		FailingStage:   -1,
	}
	if err := h.store.Create(sess); err != nil {
		h.metrics.IncrementRejectedUploads(kindDocument)
		h.logger.ErrorContext(ctx, "failed to create session",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, httputil.BadRequest(httputil.CodeUploadError, err.Error()))
		return
	}

	h.metrics.IncrementSessionsCreated()
	h.metrics.IncrementUploads(kindDocument)
	h.logger.InfoContext(ctx, "session created",
		"request_id", requestID,
		"session_id", sess.ID,
		"platform", sess.ClientPlatform,
	)
	httputil.WriteOK(w, uploadResponse{KycID: sess.ID, SessionID: sess.ID, UploadID: file.UploadID})
}

func (h *Handler) handleUploadFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := h.now()
	defer h.observe("upload_face", start)
	requestID := middleware.GetRequestID(ctx)
	id := chi.URLParam(r, "kycId")

	file, err := readUpload(w, r, "faceImage")
	var sess session
	if err == nil {
		now := h.now()
		file.At = now
		sess, err = h.store.Update(id, func(s *session) error {
			if !s.PipelineStart.IsZero() {
				return httputil.BadRequest(httputil.CodeUploadError, "face photo already uploaded for this session")
			}
			s.Face = &file
			s.Updated = now
			s.PipelineStart = now
			s.FailingStage = failingStage(s.Document.FileName, file.FileName)
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			err = httputil.BadRequest(httputil.CodeUploadError, "KYC process not found: "+id)
		}
	}
	if err != nil {
		h.metrics.IncrementRejectedUploads(kindFace)
		h.logger.WarnContext(ctx, "face upload rejected",
			"request_id", requestID,
			"session_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.IncrementUploads(kindFace)
	h.logger.InfoContext(ctx, "verification workflow started",
		"request_id", requestID,
		"session_id", sess.ID,
	)
	httputil.WriteOK(w, uploadResponse{KycID: sess.ID, SessionID: sess.ID, UploadID: file.UploadID})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	defer h.observe("status", start)
	h.metrics.IncrementStatusRequests()
	id := chi.URLParam(r, "kycId")

	sess, err := h.store.Get(id)
	if err != nil {
		httputil.WriteError(w, httputil.BadRequest(httputil.CodeStatusError, "KYC process not found: "+id))
		return
	}

	ev := h.evaluate(sess)
	httputil.WriteOK(w, statusResponse{
		KycID:       sess.ID,
		SessionID:   sess.ID,
		Status:      ev.Status,
		Progress:    ev.Progress,
		CurrentNode: ev.CurrentNode,
		Result:      ev.Final,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	defer h.observe("admin_list", start)

	params, err := parseListParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var matched []models.Process
	for _, sess := range h.store.All() {
		p := h.process(sess)
		if params.Status != models.StatusFilterAll && string(p.Status) != params.Status {
			continue
		}
		matched = append(matched, p)
	}

	page := models.PageOf(matched, params)
	httputil.WriteOK(w, page)
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	defer h.observe("admin_detail", start)
	id := chi.URLParam(r, "kycId")

	sess, err := h.store.Get(id)
	if err != nil {
		httputil.WriteError(w, httputil.BadRequest(httputil.CodeQueryError, "KYC process not found: "+id))
		return
	}
	httputil.WriteOK(w, h.process(sess))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := h.now()
	defer h.observe("admin_delete", start)
	id := chi.URLParam(r, "kycId")

	if err := h.store.Delete(id); err != nil {
		httputil.WriteError(w, httputil.BadRequest(httputil.CodeDeleteError, "KYC process not found: "+id))
		return
	}
	h.metrics.IncrementSessionsDeleted()
	h.logger.InfoContext(ctx, "session deleted",
		"request_id", middleware.GetRequestID(ctx),
		"session_id", id,
	)
	httputil.WriteOK(w, "KYC process deleted successfully")
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	defer h.observe("admin_image", start)
	uploadID := chi.URLParam(r, "uploadId")

	u, err := h.store.FindUpload(uploadID)
	if err != nil {
		httputil.WriteError(w, httputil.NewError(http.StatusNotFound, httputil.CodeNotFound, "image not found: "+uploadID))
		return
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(u.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(u.Data)
}

// evaluate derives the pipeline state and counts each session's terminal
// outcome once.
func (h *Handler) evaluate(sess session) evaluation {
	ev := h.pipeline.Evaluate(sess, h.now())
	if ev.Status.IsTerminal() && !sess.Reported {
		_, err := h.store.Update(sess.ID, func(s *session) error {
			if s.Reported {
				return errAlreadyReported
			}
			s.Reported = true
			return nil
		})
		if err == nil {
			h.metrics.IncrementPipelineOutcome(ev.Status.String())
		}
	}
	return ev
}

var errAlreadyReported = errors.New("outcome already reported")

// process builds the admin read model of sess.
func (h *Handler) process(sess session) models.Process {
	ev := h.evaluate(sess)
	updated := sess.Updated
	if ev.LastChange.After(updated) {
		updated = ev.LastChange
	}
	p := models.Process{
		ID:             sess.ID,
		UserID:         sess.UserID,
		Status:         ev.Status,
		ClientPlatform: sess.ClientPlatform,
		CreatedTime:    models.NewTimestamp(sess.Created),
		UpdatedTime:    models.NewTimestamp(updated),
		WorkflowNodes:  ev.Nodes,
		FinalResult:    ev.Final,
	}
	if sess.Document != nil {
		p.IDCardInfo = &models.UploadInfo{
			UploadID:           sess.Document.UploadID,
			FileName:           sess.Document.FileName,
			FilePath:           uploadDir + sess.Document.UploadID,
			UploadTime:         models.NewTimestamp(sess.Document.At),
			VerificationStatus: ev.uploadVerification(stageIDVerification),
		}
	}
	if sess.Face != nil {
		p.FaceInfo = &models.UploadInfo{
			UploadID:           sess.Face.UploadID,
			FileName:           sess.Face.FileName,
			FilePath:           uploadDir + sess.Face.UploadID,
			UploadTime:         models.NewTimestamp(sess.Face.At),
			VerificationStatus: ev.uploadVerification(stageFaceVerification),
		}
	}
	return p
}

func (h *Handler) observe(endpoint string, start time.Time) {
	h.metrics.ObserveEndpointLatency(endpoint, h.now().Sub(start).Seconds())
}

// readUpload reads one multipart file field.
func readUpload(w http.ResponseWriter, r *http.Request, field string) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return upload{}, httputil.BadRequest(httputil.CodeUploadError, "invalid multipart request: "+err.Error())
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return upload{}, httputil.BadRequest(httputil.CodeUploadError, field+" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, httputil.BadRequest(httputil.CodeUploadError, "failed to read "+field)
	}
	if len(data) == 0 {
		return upload{}, httputil.BadRequest(httputil.CodeUploadError, field+" is empty")
	}
	return upload{
		UploadID:    uuid.NewString() + "_" + header.Filename,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formValue reads a field of an already parsed multipart form.
func formValue(r *http.Request, key string) string {
	if r.MultipartForm == nil {
		return ""
	}
	if values := r.MultipartForm.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func parseListParams(r *http.Request) (models.ListParams, error) {
	q := r.URL.Query()
	var params models.ListParams
	var err error
	if raw := q.Get("page"); raw != "" {
		if params.Page, err = strconv.Atoi(raw); err != nil {
			return models.ListParams{}, httputil.BadRequest(httputil.CodeQueryError, fmt.Sprintf("invalid page %q", raw))
		}
	}
	if raw := q.Get("size"); raw != "" {
		if params.Size, err = strconv.Atoi(raw); err != nil {
			return models.ListParams{}, httputil.BadRequest(httputil.CodeQueryError, fmt.Sprintf("invalid size %q", raw))
		}
	}
	params.Status = strings.ToUpper(q.Get("status"))
	return params.Normalize(), nil
}
