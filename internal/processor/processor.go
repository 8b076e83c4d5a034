package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
	"github.com/MikeSquared-Agency/confide/internal/detector"
	"github.com/MikeSquared-Agency/confide/internal/hermes"
	"github.com/MikeSquared-Agency/confide/internal/recorder"
	"github.com/MikeSquared-Agency/confide/internal/session"
	"github.com/MikeSquared-Agency/confide/internal/survey"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

var (
	ErrInvalidParticipant = errors.New("please go back to the main page and enter your Prolific ID")
	ErrDetectionPending   = errors.New("disclosure detection still running")
	ErrDetectionFailed    = errors.New("disclosure detection failed")
	ErrExperienceRequired = errors.New("please complete survey part 1 first")
	ErrExperienceDone     = errors.New("survey part 1 already submitted")
)

// detectTimeout bounds one background detection pass. It is independent of the
// request that started the session.
const detectTimeout = 3 * time.Minute

// Participant ids end up as the last "_" segment of stored file names.
var participantPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Publisher is the slice of the hermes client the processor needs.
type Publisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	MaxItems          int
	RequireExperience bool
}

// Processor orchestrates the post-chat pipeline: normalize, detect, sample,
// elicit and record.
type Processor struct {
	catalog  *catalog.Catalog
	detector detector.Detector
	sessions *session.Manager
	recorder *recorder.Recorder
	survey   *survey.Definition
	hermes   Publisher
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) error { return nil }

func New(cat *catalog.Catalog, det detector.Detector, sessions *session.Manager, rec *recorder.Recorder, def *survey.Definition, pub Publisher, opts Options, logger *slog.Logger) *Processor {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Processor{
		catalog:  cat,
		detector: det,
		sessions: sessions,
		recorder: rec,
		survey:   def,
		hermes:   pub,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// ValidateParticipant checks a study participant identifier.
func ValidateParticipant(id string) error {
	err := validation.Validate(id,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(participantPattern),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParticipant, err)
	}
	return nil
}

// StartSession stores and normalizes the transcript and starts the one detection
// pass of the session in the background.
func (p *Processor) StartSession(ctx context.Context, participantID, rawTranscript string) (*View, error) {
	participantID = strings.TrimSpace(participantID)
	if err := ValidateParticipant(participantID); err != nil {
		return nil, err
	}

	turns := transcript.Parse(rawTranscript)
	s, err := p.sessions.Start(participantID, turns)
	if err != nil {
		return nil, err
	}

	// The chat log feeds offline analysis; losing it must not block the survey.
	doc := recorder.Document{
		Collection:    recorder.CollectionChatHistory,
		ParticipantID: participantID,
		Timestamp:     p.now(),
		Body:          recorder.ChatHistory{ParticipantID: participantID, Transcript: rawTranscript},
	}
	if err := p.recorder.Record(ctx, doc); err != nil {
		p.logger.Error("failed to store chat history", "participant", participantID, "error", err)
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	phrases := p.catalog.Phrases()
	userText := s.UserText
	s.Detection = session.Go(func() ([]detector.Detection, error) {
		ctx, cancel := context.WithTimeout(context.Background(), detectTimeout)
		defer cancel()

		start := time.Now()
		dets, err := p.detector.Detect(ctx, userText, phrases)
		if err != nil {
			p.logger.Error("detection failed", "participant", participantID, "error", err)
			return nil, err
		}
		p.logger.Info("detection complete",
			"participant", participantID,
			"present", len(dets),
			"duration", time.Since(start),
		)
		return dets, nil
	})

	p.logger.Info("session started",
		"participant", participantID,
		"turns", len(turns),
		"user_text_len", len(userText),
	)
	return p.view(s), nil
}

// HandleChatCompleted is the NATS handler for study.chat.completed.
func (p *Processor) HandleChatCompleted(subject string, data []byte) {
	var evt hermes.ChatCompleted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse chat event", "subject", subject, "error", err)
		return
	}
	if _, err := p.StartSession(context.Background(), evt.ParticipantID, evt.Transcript); err != nil {
		p.logger.Error("failed to start session", "participant", evt.ParticipantID, "error", err)
	}
}

// Session returns the current view of a participant's flow.
func (p *Processor) Session(participantID string) (*View, error) {
	s, err := p.sessions.Get(participantID)
	if err != nil {
		return nil, err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return p.view(s), nil
}

// ExperienceSurvey returns the survey part 1 definition.
func (p *Processor) ExperienceSurvey() *survey.Definition {
	return p.survey
}

// SubmitExperience validates and records survey part 1.
func (p *Processor) SubmitExperience(ctx context.Context, participantID string, answers map[string]string) (*View, error) {
	s, err := p.sessions.Get(participantID)
	if err != nil {
		return nil, err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.ExperienceDone {
		return nil, ErrExperienceDone
	}
	data, err := p.survey.Validate(answers)
	if err != nil {
		return nil, err
	}

	doc := recorder.Document{
		Collection:    recorder.CollectionExperience,
		ParticipantID: participantID,
		Timestamp:     p.now(),
		Body:          survey.Response{ParticipantID: participantID, SurveyData: data},
	}
	if err := p.recorder.Record(ctx, doc); err != nil {
		return nil, err
	}
	s.ExperienceDone = true

	if err := p.hermes.Publish(hermes.SubjectExperienceRecorded, hermes.ExperienceRecorded{
		ParticipantID: participantID,
		Answers:       len(data),
	}); err != nil {
		p.logger.Error("failed to publish experience recorded", "error", err)
	}
	return p.view(s), nil
}

// Review returns the sampled disclosures once detection has finished. The form
// is built on the first call and reused afterwards.
func (p *Processor) Review(participantID string) (*View, error) {
	return p.withForm(participantID, func(*session.Session) error { return nil })
}

// withForm runs fn against the session's form under the session lock.
func (p *Processor) withForm(participantID string, fn func(s *session.Session) error) (*View, error) {
	s, err := p.sessions.Get(participantID)
	if err != nil {
		return nil, err
	}
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if err := p.ensureForm(s); err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return p.view(s), nil
}
