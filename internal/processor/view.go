package processor

import (
	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/session"
)

// Stage values reported before the elicitation form exists.
const (
	StageExperienceSurvey = "experience_survey"
	StageDetecting        = "detecting"
	StageDetectionFailed  = "detection_failed"
	StageReviewReady      = "review_ready"
)

// View is the participant-facing snapshot of a session.
type View struct {
	ParticipantID  string                   `json:"prolific_id"`
	Stage          string                   `json:"stage"`
	Turns          int                      `json:"turns"`
	ExperienceDone bool                     `json:"experience_done"`
	Items          []elicitation.SurveyItem `json:"items,omitempty"`
	Missing        []elicitation.ItemID     `json:"missing,omitempty"`
	CanAdvance     bool                     `json:"can_advance"`
	CanSubmit      bool                     `json:"can_submit"`
}

// view snapshots a session. Callers hold s.Mu.
func (p *Processor) view(s *session.Session) *View {
	v := &View{
		ParticipantID:  s.ParticipantID,
		Turns:          len(s.Turns),
		ExperienceDone: s.ExperienceDone,
	}
	switch {
	case s.Form != nil:
		v.Stage = string(s.Form.State())
		v.Items = s.Form.Items()
		v.Missing = s.Form.Missing()
		v.CanAdvance = s.Form.CanAdvance()
		v.CanSubmit = s.Form.CanSubmit()
	case p.opts.RequireExperience && !s.ExperienceDone:
		v.Stage = StageExperienceSurvey
	case s.Detection == nil || !s.Detection.Ready():
		v.Stage = StageDetecting
	default:
		if _, err := s.Detection.Result(); err != nil {
			v.Stage = StageDetectionFailed
		} else {
			v.Stage = StageReviewReady
		}
	}
	return v
}

// Stats describes the running pipeline for the status endpoint.
type Stats struct {
	ActiveSessions int    `json:"active_sessions"`
	CatalogPhrases int    `json:"catalog_phrases"`
	CatalogVersion string `json:"catalog_version"`
	MaxItems       int    `json:"survey_max_items"`
}

func (p *Processor) Stats() Stats {
	return Stats{
		ActiveSessions: p.sessions.Len(),
		CatalogPhrases: p.catalog.Len(),
		CatalogVersion: p.catalog.Version(),
		MaxItems:       p.opts.MaxItems,
	}
}
