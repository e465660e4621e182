package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/view"
)

// printer renders flow progress as one line per visible change.
type printer struct {
	out io.Writer

	mu   sync.Mutex
	last string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) Uploaded(step models.UploadStep, sessionID models.SessionID) {
	switch step {
	case models.StepDocumentUploaded:
		p.line(fmt.Sprintf("Document uploaded, session %s", sessionID))
	case models.StepFaceUploaded:
		p.line("Face photo uploaded, verification started")
	}
}

func (p *printer) Updated(state view.State) {
	if state.LastError != nil {
		p.line(fmt.Sprintf("Status check failed, retrying: %v", state.LastError))
		return
	}
	p.line(fmt.Sprintf("%s %s", view.StatusLabel(state.Status), state.ProgressText()))
}

// line prints msg unless it repeats the previous line.
func (p *printer) line(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg == p.last {
		return
	}
	p.last = msg
	fmt.Fprintln(p.out, msg)
}

// loadImage reads an image file. The content type comes from the extension,
// falling back to sniffing the data.
func loadImage(path string) (models.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Image{}, fmt.Errorf("read image: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	img := models.Image{
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}
	if err := img.Validate(); err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
