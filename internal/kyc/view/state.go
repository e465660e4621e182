// Package view reduces the snapshot stream of one session into the state a
// status screen renders.
package view

import (
	"fmt"
	"time"

	"kycflow/internal/kyc/models"
)

// State is what a client displays for one session. It is a value: Apply and
// Fail return a new State and never modify the receiver.
type State struct {
	SessionID   models.SessionID
	Status      models.Status
	Progress    int
	CurrentNode string
	UpdatedAt   time.Time
	Updates     int
	LastError   error

	result *models.Result
}

// New returns the state shown before the first snapshot arrives.
func New(sessionID models.SessionID) State {
	return State{SessionID: sessionID, Status: models.StatusPending}
}

// Apply folds a snapshot into the state.
//
// Displayed progress is the running maximum of everything seen, so a late
// or reordered snapshot never moves the bar backwards. Once the state is
// terminal it is frozen. Snapshots for another session are ignored.
func (s State) Apply(snapshot models.Snapshot) State {
	if s.IsTerminal() {
		return s
	}
	if !s.SessionID.IsZero() && snapshot.SessionID != s.SessionID {
		return s
	}

	next := s
	next.SessionID = snapshot.SessionID
	next.Status = snapshot.Status
	next.CurrentNode = snapshot.CurrentNode
	next.UpdatedAt = snapshot.ObservedAt
	next.Updates++
	next.LastError = nil
	if snapshot.Progress > next.Progress {
		next.Progress = snapshot.Progress
	}
	if r, ok := snapshot.Result(); ok {
		next.result = &r
	}
	return next
}

// Fail records a failed status check. The last good snapshot stays on screen.
func (s State) Fail(err error) State {
	if s.IsTerminal() || err == nil {
		return s
	}
	s.LastError = err
	return s
}

func (s State) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Result returns the final outcome once the session is terminal.
func (s State) Result() (models.Result, bool) {
	if s.result == nil {
		return models.Result{}, false
	}
	return *s.result, true
}

// Passed reports whether the session completed with a passing result.
func (s State) Passed() bool {
	r, ok := s.Result()
	return ok && s.Status == models.StatusCompleted && r.Passed
}

// ProgressText renders progress with the running stage, e.g. "40% (Face match)".
func (s State) ProgressText() string {
	if s.CurrentNode == "" {
		return fmt.Sprintf("%d%%", s.Progress)
	}
	return fmt.Sprintf("%d%% (%s)", s.Progress, models.NodeLabel(s.CurrentNode))
}

// Summary is a one-line description used by log output and the CLI.
func (s State) Summary() string {
	line := fmt.Sprintf("%s: %s %s", s.SessionID, StatusLabel(s.Status), s.ProgressText())
	if r, ok := s.Result(); ok {
		line += fmt.Sprintf(" - %s (confidence %.2f)", r.Reason, r.Confidence)
	}
	if s.LastError != nil {
		line += fmt.Sprintf(" [last check failed: %v]", s.LastError)
	}
	return line
}
