package detector

import (
	"context"
	"strings"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
)

// StaticDetector is a deterministic case-insensitive substring matcher with the
// same contract as LLMDetector. It misses paraphrases; use it for tests and dry runs.
type StaticDetector struct{}

func (StaticDetector) Detect(_ context.Context, userText string, phrases []catalog.KnownPhrase) ([]Detection, error) {
	lower := strings.ToLower(userText)

	var out []Detection
	for _, p := range phrases {
		needle := strings.ToLower(strings.TrimSpace(p.Text))
		if needle == "" {
			continue
		}
		i := strings.Index(lower, needle)
		if i < 0 {
			continue
		}
		evidence := p.Text
		if len(lower) == len(userText) {
			evidence = userText[i : i+len(needle)]
		}
		out = append(out, Detection{
			PhraseID: p.ID,
			Present:  true,
			Evidence: evidence,
		})
	}
	return out, nil
}
