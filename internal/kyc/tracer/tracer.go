// Package tracer provides a lightweight tracing abstraction for the KYC client.
//
// Uploads and status checks open spans through the Tracer interface so the
// client can emit OpenTelemetry traces without importing OpenTelemetry in
// every package. Tests use NoopTracer.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, marking it failed when err is non-nil.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context carries the span for child operations.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanStatusFetch,
	//       tracer.String(tracer.AttrSessionID, tracer.HashSessionID(id)),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashSessionID returns a short SHA-256 prefix of a session id so traces and
// logs can be correlated without carrying the raw identifier.
func HashSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the KYC client.
const (
	SpanUploadDocument = "kyc.upload.document"
	SpanUploadFace     = "kyc.upload.face"
	SpanStatusFetch    = "kyc.status.fetch"
	SpanPollTick       = "kyc.poller.tick"
	SpanAdminList      = "kyc.admin.list"
	SpanAdminGet       = "kyc.admin.get"
	SpanAdminDelete    = "kyc.admin.delete"
	SpanAdminImage     = "kyc.admin.image"
	SpanAdminStats     = "kyc.admin.stats"
	SpanVerifyFlow     = "kyc.flow.verify"
)

// Attribute keys used by the KYC client.
const (
	AttrSessionID   = "kyc.session_id_hash"
	AttrStatus      = "kyc.status"
	AttrProgress    = "kyc.progress"
	AttrCurrentNode = "kyc.current_node"
	AttrHTTPStatus  = "http.status_code"
	AttrErrorCat    = "kyc.error_category"
	AttrImageBytes  = "kyc.image_bytes"
)

// Event names used by the KYC client.
const (
	EventTerminal = "kyc.terminal"
)
