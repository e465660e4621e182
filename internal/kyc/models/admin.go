package models

import "strings"

// Stage names reported by the backend pipeline in currentNode.
const (
	NodeIDVerification   = "Identity Document Verification"
	NodeFaceVerification = "Face Verification and Comparison"
	NodeDeepfake         = "Deepfake Detection"
)

var nodeLabels = map[string]string{
	NodeIDVerification:   "Document check",
	NodeFaceVerification: "Face match",
	NodeDeepfake:         "Deepfake detection",
}

// NodeLabel returns a short display label for a pipeline stage.
// Unknown stages are shown as reported.
func NodeLabel(node string) string {
	if label, ok := nodeLabels[node]; ok {
		return label
	}
	return node
}

// StatusFilterAll lists sessions in every status.
const StatusFilterAll = "ALL"

// Page size bounds for admin listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListParams are the admin list query parameters.
type ListParams struct {
	Page   int
	Size   int
	Status string
}

// Normalize applies the backend defaults: page 0, size 20, status ALL.
// Sizes above MaxPageSize are capped. A status filter that is not a
// lifecycle state collapses to ALL.
func (p ListParams) Normalize() ListParams {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Status == "" || p.Status == StatusFilterAll || !Status(p.Status).IsValid() {
		p.Status = StatusFilterAll
	}
	return p
}

// PageOf cuts one page out of items. A page past the end is empty.
func PageOf[T any](items []T, params ListParams) Page[T] {
	params = params.Normalize()
	page := Page[T]{
		Content:       []T{},
		TotalElements: len(items),
		Size:          params.Size,
		Number:        params.Page,
	}
	if len(items) > 0 {
		page.TotalPages = (len(items)-1)/params.Size + 1
	}
	if params.Page < page.TotalPages {
		from := params.Page * params.Size
		to := min(from+params.Size, len(items))
		page.Content = items[from:to]
	}
	return page
}

// Page is one page of an admin listing.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Size          int `json:"size"`
	Number        int `json:"number"`
}

// UploadInfo describes one stored upload as seen by the admin console.
type UploadInfo struct {
	UploadID           string    `json:"uploadId,omitempty"`
	FileName           string    `json:"fileName"`
	FilePath           string    `json:"filePath,omitempty"`
	UploadTime         Timestamp `json:"uploadTime"`
	VerificationStatus string    `json:"verificationStatus"`
}

// WorkflowNode is one pipeline stage in the admin detail view.
type WorkflowNode struct {
	NodeID    string     `json:"nodeId"`
	NodeName  string     `json:"nodeName"`
	NodeType  string     `json:"nodeType"`
	Status    Status     `json:"status"`
	StartTime *Timestamp `json:"startTime,omitempty"`
	EndTime   *Timestamp `json:"endTime,omitempty"`
	Result    *Result    `json:"result,omitempty"`
}

// Process is the admin read model of a verification session.
type Process struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Status         Status         `json:"status"`
	ClientPlatform string         `json:"clientPlatform,omitempty"`
	CreatedTime    Timestamp      `json:"createdTime"`
	UpdatedTime    Timestamp      `json:"updatedTime"`
	IDCardInfo     *UploadInfo    `json:"idCardInfo,omitempty"`
	FaceInfo       *UploadInfo    `json:"faceInfo,omitempty"`
	WorkflowNodes  []WorkflowNode `json:"workflowNodes,omitempty"`
	FinalResult    *Result        `json:"finalResult,omitempty"`
}

// ImageID returns the id the admin image endpoint serves this upload under.
// Backends that only report a storage path serve it under the path's base
// name.
func (u UploadInfo) ImageID() string {
	if u.UploadID != "" {
		return u.UploadID
	}
	if i := strings.LastIndexAny(u.FilePath, `/\`); i >= 0 {
		return u.FilePath[i+1:]
	}
	return u.FilePath
}

// Stats counts sessions per lifecycle state.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// PassRate is the share of all sessions that completed, in percent.
func (s Stats) PassRate() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) * 100 / float64(s.Total)
}
