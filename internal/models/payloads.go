package models

// These structs define the JSON payloads served by the /api endpoints.

// AnalyzeResponse is the output of POST /api/analyze.
type AnalyzeResponse struct {
	AnalysisID string        `json:"analysisId"`
	State      Stage         `json:"state"`
	Filename   string        `json:"filename,omitempty"`
	PageCount  int           `json:"pageCount"`
	Result     string        `json:"result,omitempty"`
	Report     *Report       `json:"report,omitempty"`
	Refused    bool          `json:"refused,omitempty"`
	Error      *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload is the JSON form of a classified failure.
type ErrorPayload struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// HealthResponse is the output of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model"`
}
