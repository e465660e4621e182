package models

import "strings"

// Status is the server-reported lifecycle state of a verification session.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus maps a raw backend status string onto the lifecycle.
// Unrecognized values fall back to PENDING so a new backend state never
// breaks a client mid-verification.
func ParseStatus(raw string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending
	case StatusInProgress:
		return StatusInProgress
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// IsValid reports whether s is one of the four lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// UploadStep is the client-side position in the two-image upload sequence.
// It is derived from sequencer state and never sent to the server.
type UploadStep int

const (
	StepNotStarted UploadStep = iota
	StepDocumentUploaded
	StepFaceUploaded
)

func (s UploadStep) String() string {
	switch s {
	case StepNotStarted:
		return "NOT_STARTED"
	case StepDocumentUploaded:
		return "DOCUMENT_UPLOADED"
	case StepFaceUploaded:
		return "FACE_UPLOADED"
	default:
		return "UNKNOWN"
	}
}
