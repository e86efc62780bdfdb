package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/earningscallanalyst/internal/app"
	"github.com/Lllllllleong/earningscallanalyst/internal/config"
)

var version = "dev"

var (
	analystInstance *app.App
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "AnalyzeTranscript" is the entry point name deployed to GCP.
	functions.HTTP("AnalyzeTranscript", analyzeTranscript)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := funcframework.Start(port); err != nil {
		slog.Error("funcframework.Start failed.", "error", err)
		os.Exit(1)
	}
}

// analyzeTranscript serves the whole app; routing happens inside the chi router.
func analyzeTranscript(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load("")
		if initErr != nil {
			return
		}
		app.SetupLogging(cfg.LogLevelValue())
		analystInstance, initErr = app.New(cfg, version)
	})
	if initErr != nil {
		slog.Error("CRITICAL: analyst initialization failed.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	analystInstance.Handler.ServeHTTP(w, r)
}
