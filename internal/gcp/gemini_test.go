package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

type capturedRequest struct {
	path   string
	apiKey string
	body   map[string]any
}

// geminiServer answers generateContent calls with status and body and
// records the last request.
func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("x-goog-api-key")
		if captured.apiKey == "" {
			captured.apiKey = r.URL.Query().Get("key")
		}
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testPages(n int) *models.PageSet {
	pages := &models.PageSet{Mode: models.ModeImage}
	for i := 1; i <= n; i++ {
		pages.Pages = append(pages.Pages, models.PageImage{PageNumber: i, MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, byte(i)}})
	}
	return pages
}

func TestGeminiAnalyzer_Analyze(t *testing.T) {
	const reply = "  {\"sentiment\": \"Bullish\"}\n"
	srv, captured := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"  {\"sentiment\": \"Bullish\"}\n"}]},"finishReason":"STOP"}]}`)

	analyzer, err := NewGeminiAnalyzer(GeminiConfig{ModelName: "gemini-2.5-flash", SafetyFiltersDisabled: true, BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := analyzer.Analyze(context.Background(), "AIza-test-key", testPages(3))
	require.NoError(t, err)

	assert.Equal(t, reply, res.Text)
	assert.Equal(t, "STOP", res.FinishReason)
	assert.Equal(t, "gemini-2.5-flash", res.ModelName)

	assert.True(t, strings.HasSuffix(captured.path, "gemini-2.5-flash:generateContent"), captured.path)
	assert.Equal(t, "AIza-test-key", captured.apiKey)

	contents := captured.body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 4)
	assert.Equal(t, AnalystUserPrompt, parts[0].(map[string]any)["text"])
	assert.Contains(t, parts[1], "inlineData")

	genCfg := captured.body["generationConfig"].(map[string]any)
	assert.EqualValues(t, 0, genCfg["temperature"])
	assert.Equal(t, "application/json", genCfg["responseMimeType"])

	system := captured.body["systemInstruction"].(map[string]any)["parts"].([]any)
	assert.Equal(t, AnalystSystemPrompt, system[0].(map[string]any)["text"])

	safety := captured.body["safetySettings"].([]any)
	require.Len(t, safety, 4)
	for _, s := range safety {
		assert.Equal(t, "BLOCK_NONE", s.(map[string]any)["threshold"])
	}
}

func TestGeminiAnalyzer_RejectedKey(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)
	analyzer, err := NewGeminiAnalyzer(GeminiConfig{ModelName: "gemini-2.5-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), "wrong", testPages(1))
	require.Error(t, err)
	assert.Equal(t, models.KindAuth, models.KindOf(err))
	assert.Contains(t, models.UserMessage(err), "API key not valid")
}

func TestGeminiAnalyzer_QuotaExceeded(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"Resource has been exhausted.","status":"RESOURCE_EXHAUSTED"}}`)
	analyzer, err := NewGeminiAnalyzer(GeminiConfig{ModelName: "gemini-2.5-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), "key", testPages(1))
	assert.Equal(t, models.KindQuota, models.KindOf(err))
}

func TestGeminiAnalyzer_BlockedPrompt(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	analyzer, err := NewGeminiAnalyzer(GeminiConfig{ModelName: "gemini-2.5-flash", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), "key", testPages(1))
	assert.Equal(t, models.KindRemote, models.KindOf(err))
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGeminiAnalyzer_RejectsBeforeCalling(t *testing.T) {
	analyzer, err := NewGeminiAnalyzer(GeminiConfig{ModelName: "gemini-2.5-flash", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), "  ", testPages(1))
	assert.Equal(t, models.KindCredential, models.KindOf(err))

	_, err = analyzer.Analyze(context.Background(), "key", &models.PageSet{})
	assert.Equal(t, models.KindInput, models.KindOf(err))

	_, err = analyzer.Analyze(context.Background(), "key", nil)
	assert.Equal(t, models.KindInput, models.KindOf(err))
}

func TestNewGeminiAnalyzer_RequiresModel(t *testing.T) {
	_, err := NewGeminiAnalyzer(GeminiConfig{})
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	cc := ClientConfig("key", "")
	assert.Equal(t, genai.BackendGeminiAPI, cc.Backend)
	assert.Equal(t, "key", cc.APIKey)
	assert.Empty(t, cc.HTTPOptions.BaseURL)

	assert.Equal(t, "http://localhost:9000", ClientConfig("key", "http://localhost:9000").HTTPOptions.BaseURL)
}

func TestNewClient_WritesNothingToStdLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	for i := 0; i < 2; i++ {
		_, err := newClient(context.Background(), "key", "http://localhost:9000")
		require.NoError(t, err)
	}
	assert.Empty(t, buf.String())
}

func TestAnalystConfig(t *testing.T) {
	cfg := AnalystConfig(false)
	require.NotNil(t, cfg.Temperature)
	assert.Zero(t, *cfg.Temperature)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Equal(t, AnalystSystemPrompt, cfg.SystemInstruction.Parts[0].Text)
	assert.Empty(t, cfg.SafetySettings)

	for _, s := range AnalystConfig(true).SafetySettings {
		assert.Equal(t, genai.HarmBlockThresholdBlockNone, s.Threshold)
	}
}

func TestBuildContents(t *testing.T) {
	contents := BuildContents(testPages(2))
	require.Len(t, contents, 1)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	parts := contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, AnalystUserPrompt, parts[0].Text)
	assert.Equal(t, []byte{0xff, 0xd8, 1}, parts[1].InlineData.Data)
	assert.Equal(t, []byte{0xff, 0xd8, 2}, parts[2].InlineData.Data)

	staged := BuildContents(&models.PageSet{Mode: models.ModeNative, StagedURI: "https://files.example/abc"})
	require.Len(t, staged[0].Parts, 2)
	assert.Equal(t, "https://files.example/abc", staged[0].Parts[1].FileData.FileURI)
	assert.Equal(t, "application/pdf", staged[0].Parts[1].FileData.MIMEType)
}

func TestExtractText(t *testing.T) {
	text, reason := ExtractText(nil)
	assert.Empty(t, text)
	assert.Empty(t, reason)

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		FinishReason: genai.FinishReasonMaxTokens,
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "first "},
			{Text: "second"},
		}},
	}}}
	text, reason = ExtractText(resp)
	assert.Equal(t, "first second", text)
	assert.Equal(t, "MAX_TOKENS", reason)
}
