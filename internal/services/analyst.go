package services

import (
	"context"
	"strings"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// Analyzer sends a materialized transcript to a model and returns its
// output. Implementations must not alter the returned text.
type Analyzer interface {
	Analyze(ctx context.Context, apiKey string, pages *models.PageSet) (*models.AnalysisResult, error)
}

// Stager makes a whole document reachable by URI for the length of one
// model call. Staged files belong to the API key that created them.
type Stager interface {
	Stage(ctx context.Context, apiKey string, doc *models.Transcript) (*models.StagedFile, error)
	Remove(ctx context.Context, apiKey string, file *models.StagedFile) error
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// IsRefusal reports whether text reads like the model declining the task.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// annotate fills the derived fields of res. Text is never modified.
func annotate(res *models.AnalysisResult) {
	if report, ok := models.ParseReport(res.Text); ok {
		res.Report = report
	}
	res.Refused = res.Report == nil && IsRefusal(res.Text)
}
