package gcp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"google.golang.org/genai"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

const (
	maxDisplayNameLen = 128
	filePollInterval  = time.Second
)

// FileStager uploads whole documents through the Gemini Files API so the
// analyst call can reference them by URI. Files are scoped to the API key
// that uploaded them, so every call passes the caller's key.
type FileStager struct {
	baseURL string
	poll    time.Duration
}

// NewFileStager returns a stager for the Gemini API at baseURL; empty uses
// the default endpoint.
func NewFileStager(baseURL string) *FileStager {
	return &FileStager{baseURL: baseURL, poll: filePollInterval}
}

// Stage uploads doc and waits until the service reports it ready.
func (s *FileStager) Stage(ctx context.Context, apiKey string, doc *models.Transcript) (*models.StagedFile, error) {
	client, err := newClient(ctx, apiKey, s.baseURL)
	if err != nil {
		return nil, err
	}

	file, err := client.Files.Upload(ctx, bytes.NewReader(doc.Data), &genai.UploadFileConfig{
		MIMEType:    "application/pdf",
		DisplayName: DisplayName(doc.Filename),
	})
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("Files.Upload: %w", err))
	}
	slog.Debug("Document uploaded to the Files API.", "name", file.Name, "state", file.State)

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, models.ContextError(ctx.Err())
		case <-time.After(s.poll):
		}
		file, err = client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, ClassifyError(fmt.Errorf("Files.Get: %w", err))
		}
	}
	if file.State == genai.FileStateFailed {
		return nil, models.NewError(models.KindRemote, "the model service could not process the uploaded document", nil)
	}
	return &models.StagedFile{Name: file.Name, URI: file.URI}, nil
}

// Remove deletes a staged file.
func (s *FileStager) Remove(ctx context.Context, apiKey string, file *models.StagedFile) error {
	if file == nil || file.Name == "" {
		return nil
	}
	client, err := newClient(ctx, apiKey, s.baseURL)
	if err != nil {
		return err
	}
	if _, err := client.Files.Delete(ctx, file.Name, nil); err != nil {
		return ClassifyError(fmt.Errorf("Files.Delete: %w", err))
	}
	return nil
}

// DisplayName reduces an uploaded filename to a short, printable label.
func DisplayName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r > unicode.MaxASCII:
			return '_'
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, base)
	if cleaned == "" {
		cleaned = "transcript.pdf"
	}
	if len(cleaned) > maxDisplayNameLen {
		cleaned = cleaned[len(cleaned)-maxDisplayNameLen:]
	}
	return cleaned
}
