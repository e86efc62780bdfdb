package models

import "time"

// MaterializeMode selects how transcript pages are handed to the model.
type MaterializeMode string

const (
	// ModeImage rasterizes every page into a JPEG.
	ModeImage MaterializeMode = "image"
	// ModeNative passes every page through as a single-page PDF.
	ModeNative MaterializeMode = "native"
)

// Transcript is an uploaded earnings-call PDF held in memory for the
// duration of one analysis.
type Transcript struct {
	Filename   string
	Data       []byte
	FileHash   string
	PageCount  int
	UploadedAt time.Time
}

// Size returns the payload length in bytes.
func (t *Transcript) Size() int {
	return len(t.Data)
}

// PageImage is a single materialized page, numbered from 1.
type PageImage struct {
	PageNumber int
	MIMEType   string
	Data       []byte
	Width      int
	Height     int
}

// PageSet is the ordered result of materializing a Transcript.
// Pages[i].PageNumber == i+1 for every page.
type PageSet struct {
	Mode  MaterializeMode
	Pages []PageImage
	// StagedURI is set when the whole document has been uploaded ahead of
	// the call and should be referenced instead of sent inline. Pages is
	// then empty.
	StagedURI string
}

// Len returns the number of pages.
func (p *PageSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Pages)
}

// TotalBytes sums the payload of every page.
func (p *PageSet) TotalBytes() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, page := range p.Pages {
		n += len(page.Data)
	}
	return n
}

// StagedFile is a document uploaded to the model service for one call.
type StagedFile struct {
	// Name is the service-side resource name used to delete the file.
	Name string
	URI  string
}

// AnalysisResult is what the model returned for one transcript.
type AnalysisResult struct {
	// Text is the model output, untouched.
	Text string
	// Report is a best-effort decode of Text; nil when Text is not the
	// expected JSON object.
	Report *Report
	// Refused is set when Text reads like a model refusal.
	Refused      bool
	FinishReason string
	ModelName    string
}
