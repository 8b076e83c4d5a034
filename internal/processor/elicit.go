package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/hermes"
	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/sampler"
	"github.com/MikeSquared-Agency/confide/internal/session"
)

// ensureForm builds the survey form from a finished detection pass. Callers hold s.Mu.
func (p *Processor) ensureForm(s *session.Session) error {
	if p.opts.RequireExperience && !s.ExperienceDone {
		return ErrExperienceRequired
	}
	if s.Form != nil {
		return nil
	}
	if s.Detection == nil {
		return ErrDetectionPending
	}
	dets, err := s.Detection.Result()
	if errors.Is(err, session.ErrPending) {
		return ErrDetectionPending
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	cands := sampler.Candidates(dets, p.catalog)
	sample := sampler.Sample(cands, p.opts.MaxItems)
	s.Form = elicitation.NewForm(sample)

	p.logger.Info("survey form built",
		"participant", s.ParticipantID,
		"detected", len(cands),
		"sampled", len(sample),
	)
	return nil
}

func (p *Processor) SetSelected(participantID string, id elicitation.ItemID, selected bool) (*View, error) {
	return p.withForm(participantID, func(s *session.Session) error {
		return s.Form.SetSelected(id, selected)
	})
}

func (p *Processor) ConfirmSelection(participantID string) (*View, error) {
	return p.withForm(participantID, func(s *session.Session) error {
		if err := s.Form.ConfirmSelection(); err != nil {
			return err
		}
		p.logger.Info("selection confirmed",
			"participant", participantID,
			"selected", len(s.Form.Selected()),
			"state", s.Form.State(),
		)
		return nil
	})
}

func (p *Processor) SetReasoning(participantID string, id elicitation.ItemID, text string) (*View, error) {
	return p.withForm(participantID, func(s *session.Session) error {
		return s.Form.SetReasoning(id, text)
	})
}

func (p *Processor) Advance(participantID string) (*View, error) {
	return p.withForm(participantID, func(s *session.Session) error {
		return s.Form.Advance()
	})
}

// Submit records the final feedback and clears the participant's session. The
// local record must succeed before the form is closed, so a failed write can be retried.
func (p *Processor) Submit(ctx context.Context, participantID string) (*recorder.FeedbackRecord, error) {
	var rec recorder.FeedbackRecord
	_, err := p.withForm(participantID, func(s *session.Session) error {
		if err := s.Form.CheckSubmit(); err != nil {
			return err
		}

		rec = recorder.BuildRecord(participantID, s.UserText, s.Form, p.now())
		doc := recorder.Document{
			Collection:    recorder.CollectionFeedback,
			ParticipantID: participantID,
			Timestamp:     rec.SubmittedAt,
			Body:          rec,
		}
		if err := p.recorder.Record(ctx, doc); err != nil {
			return err
		}
		return s.Form.Submit()
	})
	if err != nil {
		return nil, err
	}

	p.sessions.Finish(participantID)

	if err := p.hermes.Publish(hermes.SubjectFeedbackRecorded, hermes.FeedbackRecorded{
		ParticipantID: participantID,
		SubmissionID:  rec.SubmissionID.String(),
		Items:         len(rec.Items),
		Selected:      len(rec.Selected),
		SubmittedAt:   rec.SubmittedAt,
	}); err != nil {
		p.logger.Error("failed to publish feedback recorded", "error", err)
	}

	p.logger.Info("feedback submitted",
		"participant", participantID,
		"submission_id", rec.SubmissionID,
		"items", len(rec.Items),
	)
	return &rec, nil
}
