package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/tracer"
)

const opFetchStatus = "fetch_status"

type statusPayload struct {
	SessionID   string          `json:"sessionId"`
	KycID       string          `json:"kycId"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	CurrentNode string          `json:"currentNode"`
	Result      json.RawMessage `json:"result"`
}

// FetchStatus performs one status check. Failures are classified but never
// retried here.
func (c *Client) FetchStatus(ctx context.Context, sessionID models.SessionID) (_ models.Snapshot, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanStatusFetch,
		tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())),
	)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	if sessionID.IsZero() {
		return models.Snapshot{}, kycerrors.Precondition(opFetchStatus, models.ErrSessionAbsent.Error())
	}

	resp, err = c.do(ctx, request{
		op:     opFetchStatus,
		method: http.MethodGet,
		path:   "/api/kyc/" + url.PathEscape(sessionID.String()) + "/status",
	})
	if err != nil {
		return models.Snapshot{}, err
	}

	var payload statusPayload
	if err = decodeData(opFetchStatus, resp, &payload); err != nil {
		return models.Snapshot{}, err
	}

	snapshot := models.NewSnapshot(
		sessionID,
		models.ParseStatus(payload.Status),
		payload.Progress,
		payload.CurrentNode,
		decodeResult(payload.Result),
		c.now(),
	)
	span.SetAttributes(
		tracer.String(tracer.AttrStatus, snapshot.Status.String()),
		tracer.Int64(tracer.AttrProgress, int64(snapshot.Progress)),
		tracer.String(tracer.AttrCurrentNode, snapshot.CurrentNode),
	)
	if snapshot.IsTerminal() {
		span.AddEvent(tracer.EventTerminal, tracer.String(tracer.AttrStatus, snapshot.Status.String()))
	}
	return snapshot, nil
}

// decodeResult reads an object result. Anything else the backend may put in
// the field is ignored.
func decodeResult(raw json.RawMessage) *models.Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var r models.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}
	return &r
}
