package detector

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/confide/internal/anthropic"
	"github.com/MikeSquared-Agency/confide/internal/catalog"
)

// ErrMalformedResponse means the language model answer could not be parsed into
// per-phrase verdicts. There is no local fallback; the detection pass fails.
var ErrMalformedResponse = errors.New("malformed detection response")

// Detection is the verdict for one known phrase in one conversation.
type Detection struct {
	PhraseID catalog.PhraseID `json:"phrase_id"`
	Present  bool             `json:"present"`
	Evidence string           `json:"evidence,omitempty"`
}

// Detector finds which known phrases a participant disclosed.
// Implementations return only present detections, in the order of phrases.
type Detector interface {
	Detect(ctx context.Context, userText string, phrases []catalog.KnownPhrase) ([]Detection, error)
}

// Completer is the slice of the LLM client the detector needs.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}
