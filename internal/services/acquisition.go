package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// UploadField is the multipart field carrying the transcript.
const UploadField = "transcript"

// The PDF header may be preceded by junk; readers accept it anywhere in
// the first 1024 bytes.
const pdfHeaderWindow = 1024

var pdfMagic = []byte("%PDF-")

// ReadUpload pulls the transcript out of a multipart request.
func ReadUpload(r *http.Request, field string, maxBytes int64) (*models.Transcript, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, UploadError(err, maxBytes)
	}
	defer file.Close()

	return NewTranscript(filepath.Base(header.Filename), file, maxBytes)
}

// UploadError classifies a failure to parse or read the upload form.
func UploadError(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return models.InputError("Please upload a PDF file to begin.", err)
	case errors.Is(err, http.ErrNotMultipart):
		return models.InputError("The request did not contain a file upload.", err)
	case errors.As(err, &tooLarge):
		return models.InputError(fmt.Sprintf("The uploaded file is larger than the %d byte limit.", maxBytes), err)
	default:
		return models.InputError("The uploaded file could not be read.", err)
	}
}

// NewTranscript reads at most maxBytes from r and checks that the payload
// looks like a PDF.
func NewTranscript(filename string, r io.Reader, maxBytes int64) (*models.Transcript, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, models.InputError("The uploaded file could not be read.", err)
	}
	if len(data) == 0 {
		return nil, models.InputError("The uploaded file is empty.", nil)
	}
	if int64(len(data)) > maxBytes {
		return nil, models.InputError(fmt.Sprintf("The uploaded file is larger than the %d byte limit.", maxBytes), nil)
	}
	if !looksLikePDF(data) {
		return nil, models.InputError("The uploaded file is not a PDF.", nil)
	}

	return &models.Transcript{
		Filename:   filename,
		Data:       data,
		FileHash:   calculateHash(data),
		UploadedAt: time.Now(),
	}, nil
}

func looksLikePDF(data []byte) bool {
	head := data
	if len(head) > pdfHeaderWindow {
		head = head[:pdfHeaderWindow]
	}
	return bytes.Contains(head, pdfMagic)
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
