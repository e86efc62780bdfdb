package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// PipelineConfig holds the optional collaborators of a Pipeline.
type PipelineConfig struct {
	// Stager, when set, is used in native mode to send the whole document
	// by reference instead of inline pages. Pages are then never split.
	Stager Stager
	// AnalysisTimeout bounds the model call. Zero means no extra bound.
	AnalysisTimeout time.Duration
}

// Pipeline runs one upload through acquisition, materialization and
// analysis.
type Pipeline struct {
	materializer *Materializer
	analyzer     Analyzer
	config       PipelineConfig
}

// Outcome is the final state of a single Run.
type Outcome struct {
	AnalysisID string
	Stage      models.Stage
	History    []models.Stage
	Transcript *models.Transcript
	PageCount  int
	Result     *models.AnalysisResult
	Err        error
	Duration   time.Duration
}

// AcquireFunc produces the uploaded transcript.
type AcquireFunc func() (*models.Transcript, error)

// NewPipeline wires a materializer and an analyzer together.
func NewPipeline(materializer *Materializer, analyzer Analyzer, cfg PipelineConfig) *Pipeline {
	return &Pipeline{materializer: materializer, analyzer: analyzer, config: cfg}
}

// RunDocument runs the pipeline for a transcript that is already in memory.
func (p *Pipeline) RunDocument(ctx context.Context, apiKey string, doc *models.Transcript) *Outcome {
	return p.Run(ctx, apiKey, func() (*models.Transcript, error) { return doc, nil })
}

// Run acquires the upload and, if a credential is present, materializes
// it and makes exactly one model call. The model is never called when
// acquisition or materialization fails or when apiKey is blank.
func (p *Pipeline) Run(ctx context.Context, apiKey string, acquire AcquireFunc) *Outcome {
	start := time.Now()
	session := models.NewSession()
	out := &Outcome{AnalysisID: uuid.NewString()}
	logger := slog.With("analysisId", out.AnalysisID)

	finish := func(err error) *Outcome {
		if err != nil {
			err = models.ContextError(err)
			// The original failure is more useful to the caller than a
			// rejected move to failed, which advance has already logged.
			_ = advance(session, models.StageFailed, logger)
			out.Err = err
			logger.Error("Analysis failed.", "kind", models.KindOf(err), "error", err)
		}
		out.Stage = session.Stage()
		out.History = session.History()
		out.Duration = time.Since(start)
		return out
	}

	doc, err := acquire()
	if err != nil {
		return finish(err)
	}
	if doc == nil {
		return finish(models.InputError("Please upload a PDF file to begin.", nil))
	}
	out.Transcript = doc
	if err := advance(session, models.StageUploaded, logger); err != nil {
		return finish(err)
	}
	logger = logger.With("filename", doc.Filename, "fileHash", doc.FileHash)
	logger.Info("Transcript uploaded.", "bytes", doc.Size())

	if strings.TrimSpace(apiKey) == "" {
		return finish(models.CredentialError("no API key supplied"))
	}

	if err := advance(session, models.StageAnalyzing, logger); err != nil {
		return finish(err)
	}
	var pages *models.PageSet
	if p.config.Stager != nil && p.materializer.Mode() == models.ModeNative {
		var file *models.StagedFile
		pages, file, err = p.stage(ctx, apiKey, doc, logger)
		if err != nil {
			return finish(err)
		}
		defer p.unstage(ctx, apiKey, file, logger)
		out.PageCount = doc.PageCount
	} else {
		pages, err = p.materializer.Materialize(ctx, doc)
		if err != nil {
			return finish(err)
		}
		out.PageCount = pages.Len()
	}

	callCtx := ctx
	if p.config.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.config.AnalysisTimeout)
		defer cancel()
	}

	logger.Info("Sending transcript to the model.", "pages", out.PageCount, "payloadBytes", pages.TotalBytes(), "staged", pages.StagedURI != "")
	res, err := p.analyzer.Analyze(callCtx, apiKey, pages)
	if err != nil {
		return finish(err)
	}
	annotate(res)
	out.Result = res
	if err := advance(session, models.StageDisplayed, logger); err != nil {
		return finish(err)
	}

	if res.Refused {
		logger.Warn("Model output reads like a refusal.", "finishReason", res.FinishReason)
	}
	logger.Info("Analysis complete.", "chars", len(res.Text), "structured", res.Report != nil, "duration", time.Since(start))
	return finish(nil)
}

// stage checks the document and uploads it whole. The page split is
// skipped because the model reads the staged file directly.
func (p *Pipeline) stage(ctx context.Context, apiKey string, doc *models.Transcript, logger *slog.Logger) (*models.PageSet, *models.StagedFile, error) {
	if _, err := p.materializer.Inspect(doc); err != nil {
		return nil, nil, err
	}
	file, err := p.config.Stager.Stage(ctx, apiKey, doc)
	if err != nil {
		var classified *models.Error
		if errors.As(err, &classified) {
			return nil, nil, err
		}
		return nil, nil, models.NewError(models.KindRemote, "The document could not be staged for analysis.", err)
	}
	logger.Info("Transcript staged.", "file", file.Name, "uri", file.URI, "pages", doc.PageCount)
	return &models.PageSet{Mode: models.ModeNative, StagedURI: file.URI}, file, nil
}

func (p *Pipeline) unstage(ctx context.Context, apiKey string, file *models.StagedFile, logger *slog.Logger) {
	// The request context may already be done; cleanup still has to run.
	if err := p.config.Stager.Remove(context.WithoutCancel(ctx), apiKey, file); err != nil {
		logger.Warn("Failed to remove staged document.", "file", file.Name, "error", err)
	}
}

// advance moves session to next. An illegal transition is a bug in Run, so
// it is logged and surfaced as an internal error.
func advance(session *models.Session, next models.Stage, logger *slog.Logger) error {
	if err := session.Advance(next); err != nil {
		logger.Error("Illegal session transition.", "from", session.Stage(), "to", next, "error", err)
		return models.NewError(models.KindInternal, "The analysis reached an unexpected state.", err)
	}
	return nil
}
