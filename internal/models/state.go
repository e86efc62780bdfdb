package models

import "fmt"

// Stage is a step of the per-request analysis lifecycle.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageUploaded  Stage = "uploaded"
	StageAnalyzing Stage = "analyzing"
	StageDisplayed Stage = "displayed"
	StageFailed    Stage = "failed"
)

var transitions = map[Stage][]Stage{
	StageIdle:      {StageUploaded, StageFailed},
	StageUploaded:  {StageAnalyzing, StageFailed},
	StageAnalyzing: {StageDisplayed, StageFailed},
}

// Terminal reports whether no further work happens in this stage.
func (s Stage) Terminal() bool {
	return s == StageDisplayed || s == StageFailed
}

// Session tracks one analysis from upload to display. It is not shared
// between requests; a new action starts a new Session.
type Session struct {
	stage   Stage
	history []Stage
}

// NewSession returns a Session in StageIdle.
func NewSession() *Session {
	return &Session{stage: StageIdle, history: []Stage{StageIdle}}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	return s.stage
}

// History returns every stage visited, oldest first.
func (s *Session) History() []Stage {
	out := make([]Stage, len(s.history))
	copy(out, s.history)
	return out
}

// Advance moves to the next stage. Resetting to StageIdle is always allowed.
func (s *Session) Advance(to Stage) error {
	if to == StageIdle {
		s.stage = StageIdle
		s.history = append(s.history, to)
		return nil
	}
	for _, next := range transitions[s.stage] {
		if next == to {
			s.stage = to
			s.history = append(s.history, to)
			return nil
		}
	}
	return fmt.Errorf("illegal stage transition %s -> %s", s.stage, to)
}
