package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/tracer"
)

const (
	opUploadDocument = "upload_document"
	opUploadFace     = "upload_face"

	fieldUserID    = "userId"
	fieldIDCard    = "idCardImage"
	fieldFaceImage = "faceImage"
)

// sessionPayload is the data of an upload response. The backend has used
// both sessionId and kycId for the same value.
type sessionPayload struct {
	SessionID string `json:"sessionId"`
	KycID     string `json:"kycId"`
	UploadID  string `json:"uploadId"`
}

func (p sessionPayload) id() models.SessionID {
	if p.SessionID != "" {
		return models.SessionID(p.SessionID)
	}
	return models.SessionID(p.KycID)
}

// UploadDocument sends the identity document and returns the session id the
// backend opened for it.
func (c *Client) UploadDocument(ctx context.Context, userID string, image models.Image) (_ models.SessionID, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanUploadDocument,
		tracer.Int64(tracer.AttrImageBytes, int64(len(image.Data))),
	)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	body, contentType, err := multipartBody(map[string]string{fieldUserID: userID}, fieldIDCard, image)
	if err != nil {
		return "", kycerrors.New(kycerrors.CategoryPrecondition, opUploadDocument, "failed to encode upload", err)
	}

	resp, err = c.do(ctx, request{
		op:          opUploadDocument,
		method:      http.MethodPost,
		path:        "/api/kyc/upload-id-card",
		body:        body,
		contentType: contentType,
		rejected:    kycerrors.UploadRejected,
	})
	if err != nil {
		return "", err
	}

	var payload sessionPayload
	if err = decodeData(opUploadDocument, resp, &payload); err != nil {
		return "", err
	}
	id := payload.id()
	span.SetAttributes(tracer.String(tracer.AttrSessionID, tracer.HashSessionID(id.String())))
	return id, nil
}

// UploadFace sends the face photo for an existing session.
func (c *Client) UploadFace(ctx context.Context, sessionID models.SessionID, image models.Image) (err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanUploadFace,
		tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())),
		tracer.Int64(tracer.AttrImageBytes, int64(len(image.Data))),
	)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	if sessionID.IsZero() {
		return kycerrors.Precondition(opUploadFace, models.ErrSessionAbsent.Error())
	}

	body, contentType, err := multipartBody(nil, fieldFaceImage, image)
	if err != nil {
		return kycerrors.New(kycerrors.CategoryPrecondition, opUploadFace, "failed to encode upload", err)
	}

	resp, err = c.do(ctx, request{
		op:          opUploadFace,
		method:      http.MethodPost,
		path:        "/api/kyc/" + url.PathEscape(sessionID.String()) + "/upload-face",
		body:        body,
		contentType: contentType,
		rejected:    kycerrors.UploadRejected,
	})
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody encodes form fields and one file part. The file part keeps
// the image's content type, defaulting to application/octet-stream.
func multipartBody(fields map[string]string, fileField string, image models.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", name, err)
		}
	}

	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(fileField), quoteEscaper.Replace(image.FileName)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating %s part: %w", fileField, err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("writing %s part: %w", fileField, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
