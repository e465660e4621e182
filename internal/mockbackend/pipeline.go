package mockbackend

import (
	"strings"
	"time"

	"kycflow/internal/kyc/models"
)

// Node types of the verification pipeline.
const (
	NodeTypeIDVerification   = "ID_VERIFICATION"
	NodeTypeFaceVerification = "FACE_VERIFICATION"
	NodeTypeDeepfake         = "DEEPFAKE_DETECTION"
)

// Upload verification states shown in the admin detail.
const (
	verificationPending = "PENDING"
	verificationSuccess = "SUCCESS"
	verificationFailed  = "FAILED"
)

// File name prefixes that steer the simulated pipeline.
const (
	prefixRejectUpload = "reject-"
	prefixFailStage    = "fail-"
	prefixDeepfake     = "deepfake-"
)

const (
	stageIDVerification = iota
	stageFaceVerification
	stageDeepfake
)

type stage struct {
	ID   string
	Name string
	Type string
}

var stages = []stage{
	{ID: "id_verification", Name: models.NodeIDVerification, Type: NodeTypeIDVerification},
	{ID: "face_verification", Name: models.NodeFaceVerification, Type: NodeTypeFaceVerification},
	{ID: "deepfake_detection", Name: models.NodeDeepfake, Type: NodeTypeDeepfake},
}

var (
	resultAllPassed = models.Result{Passed: true, Reason: "All verifications passed", Confidence: 0.95}
	resultFailed    = models.Result{Passed: false, Reason: "One or more verifications failed", Confidence: 0}
)

// Pipeline simulates the verification workflow. Stages run one after another,
// each taking StageDuration, starting when the face photo arrives.
type Pipeline struct {
	StageDuration time.Duration
}

// failingStage picks the stage a session will fail at from its file names.
func failingStage(documentName, faceName string) int {
	switch {
	case strings.HasPrefix(documentName, prefixFailStage):
		return stageIDVerification
	case strings.HasPrefix(faceName, prefixFailStage):
		return stageFaceVerification
	case strings.HasPrefix(faceName, prefixDeepfake):
		return stageDeepfake
	default:
		return -1
	}
}

// evaluation is the pipeline state of a session at one instant.
type evaluation struct {
	Status      models.Status
	Progress    int
	CurrentNode string
	Nodes       []models.WorkflowNode
	Final       *models.Result
	// LastChange is when the state last moved.
	LastChange time.Time
}

// Evaluate derives the pipeline state of sess at now.
func (p Pipeline) Evaluate(sess session, now time.Time) evaluation {
	if sess.PipelineStart.IsZero() {
		return evaluation{Status: models.StatusPending, LastChange: sess.Updated}
	}

	ev := evaluation{
		Status:     models.StatusInProgress,
		Nodes:      make([]models.WorkflowNode, len(stages)),
		LastChange: sess.PipelineStart,
	}
	completed := 0
	failed := false

	for i, st := range stages {
		node := models.WorkflowNode{
			NodeID:   st.ID,
			NodeName: st.Name,
			NodeType: st.Type,
			Status:   models.StatusPending,
		}
		start := sess.PipelineStart.Add(time.Duration(i) * p.StageDuration)
		end := start.Add(p.StageDuration)

		switch {
		case failed:
		case !now.Before(end):
			node.StartTime = timestampPtr(start)
			node.EndTime = timestampPtr(end)
			ev.LastChange = end
			if i == sess.FailingStage {
				node.Status = models.StatusFailed
				node.Result = &models.Result{Passed: false, Reason: st.Name + " failed", Confidence: 0}
				failed = true
			} else {
				node.Status = models.StatusCompleted
				node.Result = &models.Result{Passed: true, Reason: st.Name + " passed", Confidence: resultAllPassed.Confidence}
				completed++
			}
		case !now.Before(start):
			node.Status = models.StatusInProgress
			node.StartTime = timestampPtr(start)
			ev.CurrentNode = st.Name
			ev.LastChange = start
		}
		ev.Nodes[i] = node
	}

	ev.Progress = completed * 100 / len(stages)
	switch {
	case failed:
		ev.Status = models.StatusFailed
		ev.CurrentNode = ""
		final := resultFailed
		ev.Final = &final
	case completed == len(stages):
		ev.Status = models.StatusCompleted
		final := resultAllPassed
		ev.Final = &final
	}
	return ev
}

// uploadVerification is the verification state of the upload checked by
// stage index.
func (ev evaluation) uploadVerification(index int) string {
	if index >= len(ev.Nodes) {
		return verificationPending
	}
	switch ev.Nodes[index].Status {
	case models.StatusCompleted:
		return verificationSuccess
	case models.StatusFailed:
		return verificationFailed
	default:
		return verificationPending
	}
}

func timestampPtr(t time.Time) *models.Timestamp {
	ts := models.NewTimestamp(t)
	return &ts
}
