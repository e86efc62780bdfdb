package services

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"strconv"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

func init() {
	// Keep pdfcpu from writing its config dir under $HOME on first use.
	api.DisableConfigDir()
}

// MaterializerConfig controls how pages are produced.
type MaterializerConfig struct {
	Mode        models.MaterializeMode
	DPI         float64
	JPEGQuality int
	Workers     int
	MaxPages    int
}

// Materializer turns a Transcript into an ordered PageSet.
type Materializer struct {
	config MaterializerConfig
}

// NewMaterializer returns a Materializer; zero values fall back to defaults.
func NewMaterializer(cfg MaterializerConfig) *Materializer {
	if cfg.Mode == "" {
		cfg.Mode = models.ModeImage
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Materializer{config: cfg}
}

// Mode returns the configured materialization mode.
func (m *Materializer) Mode() models.MaterializeMode {
	return m.config.Mode
}

// Inspect validates the document, enforces the page limit and records the
// page count on doc without producing any pages.
func (m *Materializer) Inspect(doc *models.Transcript) (int, error) {
	pageCount, err := CountPages(doc.Data)
	if err != nil {
		return 0, models.DecodeError("The document could not be decoded as a PDF.", err)
	}
	if pageCount == 0 {
		return 0, models.DecodeError("The document has no pages.", nil)
	}
	if m.config.MaxPages > 0 && pageCount > m.config.MaxPages {
		return 0, models.InputError(fmt.Sprintf("The document has %d pages; at most %d are supported.", pageCount, m.config.MaxPages), nil)
	}
	doc.PageCount = pageCount
	return pageCount, nil
}

// Materialize inspects the document and produces exactly one PageImage per
// page. Any page failure aborts the whole run.
func (m *Materializer) Materialize(ctx context.Context, doc *models.Transcript) (*models.PageSet, error) {
	pageCount, err := m.Inspect(doc)
	if err != nil {
		return nil, err
	}

	var pages []models.PageImage
	switch m.config.Mode {
	case models.ModeNative:
		pages, err = m.splitPages(ctx, doc.Data, pageCount)
	default:
		pages, err = m.rasterize(ctx, doc.Data, pageCount)
	}
	if err != nil {
		return nil, models.ContextError(err)
	}
	if len(pages) != pageCount {
		return nil, models.DecodeError(fmt.Sprintf("Expected %d pages but materialized %d.", pageCount, len(pages)), nil)
	}

	slog.Info("PDF materialized.", "pageCount", pageCount, "mode", m.config.Mode, "fileHash", doc.FileHash)
	return &models.PageSet{Mode: m.config.Mode, Pages: pages}, nil
}

// CountPages validates data with pdfcpu in relaxed mode and returns the
// page count.
func CountPages(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), relaxedConfig())
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// rasterize renders every page to JPEG. Rendering is serialized inside
// go-fitz; encoding runs on the worker pool.
func (m *Materializer) rasterize(ctx context.Context, data []byte, pageCount int) ([]models.PageImage, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, models.DecodeError("The document could not be opened for rendering.", err)
	}
	defer doc.Close()

	if n := doc.NumPage(); n != pageCount {
		return nil, models.DecodeError(fmt.Sprintf("The document reports %d pages but %d could be rendered.", pageCount, n), nil)
	}

	pages := make([]models.PageImage, pageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.config.Workers)

	for i := 0; i < pageCount; i++ {
		index := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return models.ContextError(err)
			}
			img, err := doc.ImageDPI(index, m.config.DPI)
			if err != nil {
				return models.DecodeError(fmt.Sprintf("Page %d could not be rendered.", index+1), err)
			}
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.config.JPEGQuality}); err != nil {
				return models.DecodeError(fmt.Sprintf("Page %d could not be encoded.", index+1), err)
			}
			bounds := img.Bounds()
			pages[index] = models.PageImage{
				PageNumber: index + 1,
				MIMEType:   "image/jpeg",
				Data:       buf.Bytes(),
				Width:      bounds.Dx(),
				Height:     bounds.Dy(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// splitPages cuts the document into single-page PDFs.
func (m *Materializer) splitPages(ctx context.Context, data []byte, pageCount int) ([]models.PageImage, error) {
	pages := make([]models.PageImage, pageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.config.Workers)

	for i := 1; i <= pageCount; i++ {
		pageNumber := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return models.ContextError(err)
			}
			var buf bytes.Buffer
			if err := api.Trim(bytes.NewReader(data), &buf, []string{strconv.Itoa(pageNumber)}, relaxedConfig()); err != nil {
				return models.DecodeError(fmt.Sprintf("Page %d could not be extracted.", pageNumber), err)
			}
			pages[pageNumber-1] = models.PageImage{
				PageNumber: pageNumber,
				MIMEType:   "application/pdf",
				Data:       buf.Bytes(),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
