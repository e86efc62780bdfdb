// Package app wires configuration, the Gemini API and the web layer into a
// single http.Handler.
package app

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/Lllllllleong/earningscallanalyst/internal/config"
	"github.com/Lllllllleong/earningscallanalyst/internal/gcp"
	"github.com/Lllllllleong/earningscallanalyst/internal/models"
	"github.com/Lllllllleong/earningscallanalyst/internal/services"
	"github.com/Lllllllleong/earningscallanalyst/internal/web"
)

// App is a fully wired analyst service.
type App struct {
	Config  *config.Config
	Handler http.Handler
	// Staging reports whether documents are uploaded whole through the
	// Files API instead of sent as inline pages.
	Staging bool
}

// New builds the analyzer, the optional document stager and the router.
func New(cfg *config.Config, version string) (*App, error) {
	analyzer, err := gcp.NewGeminiAnalyzer(gcp.GeminiConfig{
		ModelName:             cfg.ModelName,
		SafetyFiltersDisabled: cfg.SafetyFiltersDisabled,
		BaseURL:               cfg.GeminiBaseURL,
	})
	if err != nil {
		return nil, models.NewError(models.KindConfig, "MODEL_NAME must be set", err)
	}

	a := &App{Config: cfg}
	pipelineCfg := services.PipelineConfig{AnalysisTimeout: cfg.AnalysisTimeout}

	if cfg.StageDocuments {
		if cfg.MaterializeMode != models.ModeNative {
			slog.Warn("STAGE_DOCUMENTS is only used in native mode; ignoring it.", "mode", cfg.MaterializeMode)
		} else {
			pipelineCfg.Stager = gcp.NewFileStager(cfg.GeminiBaseURL)
			a.Staging = true
		}
	}

	materializer := services.NewMaterializer(services.MaterializerConfig{
		Mode:        cfg.MaterializeMode,
		DPI:         cfg.RenderDPI,
		JPEGQuality: cfg.JPEGQuality,
		Workers:     cfg.PageWorkers,
		MaxPages:    cfg.MaxPages,
	})
	pipeline := services.NewPipeline(materializer, analyzer, pipelineCfg)

	server := web.NewServer(pipeline, web.Options{
		EnvAPIKey:             cfg.APIKey,
		ModelName:             cfg.ModelName,
		SafetyFiltersDisabled: cfg.SafetyFiltersDisabled,
		MaterializeMode:       cfg.MaterializeMode,
		MaxUploadBytes:        cfg.MaxUploadBytes,
		RequestTimeout:        cfg.RequestTimeout,
		Version:               version,
	})
	a.Handler = server.Router()

	slog.Info("Analyst service initialized.",
		"model", cfg.ModelName,
		"mode", cfg.MaterializeMode,
		"staging", a.Staging,
		"customEndpoint", cfg.GeminiBaseURL != "",
		"envKeyConfigured", cfg.APIKey != "",
	)
	return a, nil
}

// SetupLogging installs a JSON slog handler as the default logger.
func SetupLogging(level slog.Level) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
