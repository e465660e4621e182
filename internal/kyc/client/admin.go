package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"kycflow/internal/kyc/kycerrors"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/tracer"
)

const (
	opAdminList   = "admin_list"
	opAdminGet    = "admin_get"
	opAdminDelete = "admin_delete"
	opAdminImage  = "admin_image"
	opAdminStats  = "admin_stats"
)

// ListSessions returns one page of sessions, optionally filtered by status.
func (c *Client) ListSessions(ctx context.Context, params models.ListParams) (_ models.Page[models.Process], err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAdminList)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	params = params.Normalize()
	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("size", strconv.Itoa(params.Size))
	query.Set("status", params.Status)

	resp, err = c.do(ctx, request{
		op:     opAdminList,
		method: http.MethodGet,
		path:   "/api/admin/kyc?" + query.Encode(),
		admin:  true,
	})
	if err != nil {
		return models.Page[models.Process]{}, err
	}

	var page models.Page[models.Process]
	if err = decodeData(opAdminList, resp, &page); err != nil {
		return models.Page[models.Process]{}, err
	}
	return page, nil
}

// GetSession returns the admin detail of one session.
func (c *Client) GetSession(ctx context.Context, sessionID models.SessionID) (_ models.Process, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAdminGet,
		tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())),
	)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	if sessionID.IsZero() {
		return models.Process{}, kycerrors.Precondition(opAdminGet, models.ErrSessionAbsent.Error())
	}

	resp, err = c.do(ctx, request{
		op:     opAdminGet,
		method: http.MethodGet,
		path:   "/api/admin/kyc/" + url.PathEscape(sessionID.String()),
		admin:  true,
	})
	if err != nil {
		return models.Process{}, err
	}

	var process models.Process
	if err = decodeData(opAdminGet, resp, &process); err != nil {
		return models.Process{}, err
	}
	return process, nil
}

// DeleteSession removes a session and its uploads.
func (c *Client) DeleteSession(ctx context.Context, sessionID models.SessionID) (err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAdminDelete,
		tracer.String(tracer.AttrSessionID, tracer.HashSessionID(sessionID.String())),
	)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	if sessionID.IsZero() {
		return kycerrors.Precondition(opAdminDelete, models.ErrSessionAbsent.Error())
	}

	resp, err = c.do(ctx, request{
		op:     opAdminDelete,
		method: http.MethodDelete,
		path:   "/api/admin/kyc/" + url.PathEscape(sessionID.String()),
		admin:  true,
	})
	return err
}

// GetImage downloads a stored upload by the id reported in
// models.UploadInfo.ImageID.
func (c *Client) GetImage(ctx context.Context, uploadID string) (_ models.Image, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAdminImage)
	var resp response
	defer func() { endSpan(span, resp, err) }()

	if uploadID == "" {
		return models.Image{}, kycerrors.Precondition(opAdminImage, "upload id is required")
	}

	resp, err = c.do(ctx, request{
		op:     opAdminImage,
		method: http.MethodGet,
		path:   "/api/admin/image/" + url.PathEscape(uploadID),
		admin:  true,
		raw:    true,
	})
	if err != nil {
		return models.Image{}, err
	}
	if len(resp.body) == 0 {
		return models.Image{}, kycerrors.BadResponse(opAdminImage, "image is empty", nil)
	}
	return models.Image{
		FileName:    uploadID,
		ContentType: resp.contentType,
		Data:        resp.body,
	}, nil
}

// statsFilters are the listings Stats counts, in the order of the Stats fields.
var statsFilters = []string{
	models.StatusFilterAll,
	string(models.StatusPending),
	string(models.StatusInProgress),
	string(models.StatusCompleted),
	string(models.StatusFailed),
}

// Stats counts sessions per status. It asks for a one-element page per
// status filter in parallel and reads the totals.
func (c *Client) Stats(ctx context.Context) (_ models.Stats, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanAdminStats)
	defer func() { span.End(err) }()

	totals := make([]int, len(statsFilters))
	g, gctx := errgroup.WithContext(ctx)
	for i, status := range statsFilters {
		i, status := i, status
		g.Go(func() error {
			page, err := c.ListSessions(gctx, models.ListParams{Size: 1, Status: status})
			if err != nil {
				return err
			}
			totals[i] = page.TotalElements
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return models.Stats{}, err
	}

	stats := models.Stats{
		Total:      totals[0],
		Pending:    totals[1],
		InProgress: totals[2],
		Completed:  totals[3],
		Failed:     totals[4],
	}
	span.SetAttributes(tracer.Int64("kyc.stats.total", int64(stats.Total)))
	return stats, nil
}
