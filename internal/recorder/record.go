package recorder

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
)

// Collection names shared by every sink.
const (
	CollectionFeedback    = "persona_feedback"
	CollectionExperience  = "survey_one_responses"
	CollectionChatHistory = "chat_history"
)

// ChatHistory is the stored raw transcript of one participant's chat.
type ChatHistory struct {
	ParticipantID string `json:"prolific_id"`
	Transcript    string `json:"transcript"`
}

// Reasoning groups free-text justifications by the participant's necessity judgment.
type Reasoning struct {
	Necessary   map[string]string `json:"necessary"`
	Unnecessary map[string]string `json:"unnecessary"`
}

// FeedbackRecord is the final, immutable result of one elicitation session.
type FeedbackRecord struct {
	SubmissionID                 uuid.UUID                `json:"submission_id"`
	ParticipantID                string                   `json:"prolific_id"`
	SubmittedAt                  time.Time                `json:"timestamp"`
	Transcript                   string                   `json:"transcript"`
	RevealedInfo                 []string                 `json:"revealed_info"`
	Items                        []elicitation.SurveyItem `json:"items"`
	Selected                     []string                 `json:"selected"`
	Unselected                   []string                 `json:"unselected"`
	CombinedNecessaryReasoning   string                   `json:"combined_necessary_reasoning"`
	CombinedUnnecessaryReasoning string                   `json:"combined_unnecessary_reasoning"`
	Reasoning                    Reasoning                `json:"reasoning"`
}

// BuildRecord snapshots a submitted form. Display text keys the reasoning maps,
// matching how items were shown to the participant.
func BuildRecord(participantID, userText string, form *elicitation.Form, now time.Time) FeedbackRecord {
	rec := FeedbackRecord{
		SubmissionID:  uuid.New(),
		ParticipantID: participantID,
		SubmittedAt:   now.UTC(),
		Transcript:    userText,
		Items:         form.Items(),
		RevealedInfo:  []string{},
		Selected:      []string{},
		Unselected:    []string{},
		Reasoning: Reasoning{
			Necessary:   map[string]string{},
			Unnecessary: map[string]string{},
		},
	}

	var necessary, unnecessary []string
	for _, it := range rec.Items {
		rec.RevealedInfo = append(rec.RevealedInfo, it.Display)
		reasoning := strings.TrimSpace(it.Reasoning)
		if it.Selected {
			rec.Selected = append(rec.Selected, it.Display)
			rec.Reasoning.Necessary[it.Display] = reasoning
			necessary = append(necessary, it.Display+": "+reasoning)
		} else {
			rec.Unselected = append(rec.Unselected, it.Display)
			rec.Reasoning.Unnecessary[it.Display] = reasoning
			unnecessary = append(unnecessary, it.Display+": "+reasoning)
		}
	}
	rec.CombinedNecessaryReasoning = strings.Join(necessary, "\n")
	rec.CombinedUnnecessaryReasoning = strings.Join(unnecessary, "\n")
	return rec
}
