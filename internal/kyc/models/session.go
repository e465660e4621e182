package models

import (
	"errors"
	"time"
)

// SessionID identifies one end-to-end verification attempt. It is assigned
// by the backend on the first successful document upload.
type SessionID string

func (id SessionID) IsZero() bool {
	return id == ""
}

func (id SessionID) String() string {
	return string(id)
}

// Result is the outcome attached to a session once it is terminal.
type Result struct {
	Passed     bool    `json:"passed"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Snapshot is an immutable point-in-time view of a session as reported by
// the status endpoint. Construct it with NewSnapshot so the field
// invariants hold; it is passed by value.
type Snapshot struct {
	SessionID   SessionID
	Status      Status
	Progress    int
	CurrentNode string
	result      *Result
	ObservedAt  time.Time
}

// NewSnapshot normalizes server-reported fields: progress is bounded to
// 0-100, the current node survives only while IN_PROGRESS and the result
// only once the status is terminal.
func NewSnapshot(id SessionID, status Status, progress int, currentNode string, result *Result, observedAt time.Time) Snapshot {
	if !status.IsValid() {
		status = StatusPending
	}
	s := Snapshot{
		SessionID:  id,
		Status:     status,
		Progress:   clampInt(progress, 0, 100),
		ObservedAt: observedAt,
	}
	if status == StatusInProgress {
		s.CurrentNode = currentNode
	}
	if status.IsTerminal() && result != nil {
		r := *result
		r.Confidence = clampFloat(r.Confidence, 0, 1)
		s.result = &r
	}
	return s
}

// Result returns a copy of the terminal outcome, if any.
func (s Snapshot) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// IsTerminal reports whether this snapshot ends the session lifecycle.
func (s Snapshot) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// WithProgress returns a copy carrying a different progress value.
func (s Snapshot) WithProgress(progress int) Snapshot {
	s.Progress = clampInt(progress, 0, 100)
	return s
}

// Image is one upload payload.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

var (
	ErrEmptyImage    = errors.New("image data is empty")
	ErrMissingName   = errors.New("image file name is required")
	ErrSessionAbsent = errors.New("session id is required")
)

// Validate checks the payload is uploadable.
func (i Image) Validate() error {
	if len(i.Data) == 0 {
		return ErrEmptyImage
	}
	if i.FileName == "" {
		return ErrMissingName
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
