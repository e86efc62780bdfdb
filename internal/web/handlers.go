package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
	"github.com/Lllllllleong/earningscallanalyst/internal/services"
)

const (
	apiKeyField  = "api_key"
	apiKeyHeader = "X-Api-Key"
	// Larger uploads spill to temp files.
	maxFormMemory = 32 << 20
)

type pageView struct {
	EnvKeyConfigured      bool
	ModelName             string
	SafetyFiltersDisabled bool
	InputMode             string

	AnalysisID string
	Filename   string
	PageCount  int
	Result     string
	Report     *models.Report
	Refused    bool
	Error      string
}

func (s *Server) baseView() pageView {
	inputMode := "Rendered Page Images"
	if s.opts.MaterializeMode == models.ModeNative {
		inputMode = "Native PDF Upload"
	}
	return pageView{
		EnvKeyConfigured:      s.opts.EnvAPIKey != "",
		ModelName:             s.opts.ModelName,
		SafetyFiltersDisabled: s.opts.SafetyFiltersDisabled,
		InputMode:             inputMode,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.baseView())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	out := s.run(r)

	view := s.baseView()
	view.AnalysisID = out.AnalysisID
	view.PageCount = out.PageCount
	if out.Transcript != nil {
		view.Filename = out.Transcript.Filename
	}
	status := http.StatusOK
	if out.Err != nil {
		view.Error = models.UserMessage(out.Err)
		status = models.KindOf(out.Err).StatusCode()
	} else if out.Result != nil {
		view.Result = out.Result.Text
		view.Report = out.Result.Report
		view.Refused = out.Result.Refused
	}
	s.render(w, status, view)
}

func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	out := s.run(r)

	resp := models.AnalyzeResponse{
		AnalysisID: out.AnalysisID,
		State:      out.Stage,
		PageCount:  out.PageCount,
	}
	if out.Transcript != nil {
		resp.Filename = out.Transcript.Filename
	}
	status := http.StatusOK
	if out.Err != nil {
		kind := models.KindOf(out.Err)
		resp.Error = &models.ErrorPayload{Kind: kind, Message: models.UserMessage(out.Err)}
		status = kind.StatusCode()
	} else if out.Result != nil {
		resp.Result = out.Result.Text
		resp.Report = out.Result.Report
		resp.Refused = out.Result.Refused
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Model:   s.opts.ModelName,
	})
}

// run parses the form once and hands acquisition to the pipeline so that
// upload failures are reported through the same state machine.
func (s *Server) run(r *http.Request) *services.Outcome {
	parseErr := r.ParseMultipartForm(maxFormMemory)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	acquire := func() (*models.Transcript, error) {
		if parseErr != nil {
			return nil, services.UploadError(parseErr, s.opts.MaxUploadBytes)
		}
		return services.ReadUpload(r, services.UploadField, s.opts.MaxUploadBytes)
	}
	return s.runner.Run(r.Context(), s.resolveAPIKey(r), acquire)
}

// resolveAPIKey prefers a key entered by the user over the environment.
func (s *Server) resolveAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.PostFormValue(apiKeyField)); key != "" {
		return key
	}
	if key := strings.TrimSpace(r.Header.Get(apiKeyHeader)); key != "" {
		return key
	}
	return s.opts.EnvAPIKey
}

func (s *Server) render(w http.ResponseWriter, status int, view pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, view); err != nil {
		slog.Error("Failed to render page.", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
