package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// --- Analyst Model Prompts ---
const AnalystSystemPrompt = `You are a Senior Equity Research Analyst reviewing a scanned earnings call transcript.
Work strictly from the pages supplied with this request. Do not use outside knowledge, market data, news or assumptions about the company.
If a figure or statement is not present in the pages, write "Not found" rather than estimating it.
Quote numbers exactly as they appear, including units and currency.`

const AnalystUserPrompt = `Perform a deep-dive analysis of the attached earnings call pages.

STEP 1: Read every page and identify the key financial metrics: Revenue, EBITDA, Net Profit and Order Book / Backlog.
STEP 2: Compare the tone of management's prepared remarks with the tone of the analysts in the Q&A.
STEP 3: Extract any guidance or outlook figures given for the next fiscal year.

Return the analysis ONLY as a valid JSON object with exactly this shape:
{
  "sentiment": "Strong Bullish / Bullish / Neutral / Bearish / Strong Bearish",
  "confidence_score": 1-100,
  "summary": "A high-level 3-sentence summary of the business trajectory.",
  "positives": ["At least 3 specific tailwinds, with data points where available"],
  "negatives": ["At least 3 specific risks or headwinds mentioned"],
  "outlook": "Management's numerical or strategic guidance for the future",
  "key_metrics": {
    "revenue": "Value if found",
    "ebitda": "Value if found",
    "net_profit": "Value if found",
    "order_book": "Value if found",
    "margin_guidance": "Percentage if found"
  }
}
Do not use markdown. Return raw JSON.`

// GeminiConfig holds the settings shared by every analyst call.
type GeminiConfig struct {
	ModelName             string
	SafetyFiltersDisabled bool
	// BaseURL overrides the Gemini API endpoint; empty uses the default.
	BaseURL string
}

// GeminiAnalyzer sends materialized pages to a Gemini model through the
// Gemini API. A client is created per call because every request carries
// its own API key.
type GeminiAnalyzer struct {
	config GeminiConfig
}

// NewGeminiAnalyzer validates cfg and returns an analyzer.
func NewGeminiAnalyzer(cfg GeminiConfig) (*GeminiAnalyzer, error) {
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("NewGeminiAnalyzer: model name cannot be empty")
	}
	return &GeminiAnalyzer{config: cfg}, nil
}

// ModelName returns the configured model identifier.
func (a *GeminiAnalyzer) ModelName() string {
	return a.config.ModelName
}

// ClientConfig builds the client settings for one API key against the
// Gemini API backend.
func ClientConfig(apiKey, baseURL string) *genai.ClientConfig {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return cc
}

func newClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, ClientConfig(apiKey, baseURL))
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("genai.NewClient: %w", err))
	}
	return client, nil
}

// Analyze issues a single GenerateContent call carrying the fixed prompt
// and every page, and returns the model's text unmodified.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, apiKey string, pages *models.PageSet) (*models.AnalysisResult, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, models.CredentialError("no API key supplied")
	}
	if pages == nil || (pages.Len() == 0 && pages.StagedURI == "") {
		return nil, models.InputError("no pages to analyze", nil)
	}

	client, err := newClient(ctx, apiKey, a.config.BaseURL)
	if err != nil {
		return nil, err
	}

	contents := BuildContents(pages)
	slog.Debug("Calling Gemini.", "model", a.config.ModelName, "parts", len(contents[0].Parts), "stagedUri", pages.StagedURI)

	resp, err := client.Models.GenerateContent(ctx, a.config.ModelName, contents, AnalystConfig(a.config.SafetyFiltersDisabled))
	if err != nil {
		return nil, ClassifyError(err)
	}

	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, models.NewError(models.KindRemote,
			fmt.Sprintf("the model refused to process this document (%s)", resp.PromptFeedback.BlockReason), nil)
	}
	text, finishReason := ExtractText(resp)
	if text == "" {
		msg := "the model returned no text"
		if finishReason != "" {
			msg = fmt.Sprintf("%s (finish reason %s)", msg, finishReason)
		}
		return nil, models.NewError(models.KindRemote, msg, nil)
	}
	return &models.AnalysisResult{
		Text:         text,
		FinishReason: finishReason,
		ModelName:    a.config.ModelName,
	}, nil
}

// AnalystConfig returns the closed-world system instruction, deterministic
// decoding and the safety policy.
func AnalystConfig(safetyFiltersDisabled bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(AnalystSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.0),
	}
	// Financial risk language ("defense", "explosive growth") trips the
	// default filters.
	if safetyFiltersDisabled {
		cfg.SafetySettings = []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
		}
	}
	return cfg
}

// BuildContents lays out the request body as a single user turn: the
// prompt first, then either the staged document or every page in order.
func BuildContents(pages *models.PageSet) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(AnalystUserPrompt)}
	if pages.StagedURI != "" {
		parts = append(parts, genai.NewPartFromURI(pages.StagedURI, "application/pdf"))
	} else {
		for _, page := range pages.Pages {
			parts = append(parts, genai.NewPartFromBytes(page.Data, page.MIMEType))
		}
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// ExtractText concatenates the text parts of the first candidate. Nothing
// is trimmed or rewritten.
func ExtractText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ""
	}
	cand := resp.Candidates[0]
	finishReason := string(cand.FinishReason)
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", finishReason
	}

	var b strings.Builder
	var textPartsFound int
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
		textPartsFound++
	}
	if textPartsFound > 1 {
		slog.Warn("Gemini response contained several text parts; they have been concatenated.", "textParts", textPartsFound)
	}
	return b.String(), finishReason
}
