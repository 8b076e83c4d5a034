package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/confide/internal/anthropic"
	"github.com/MikeSquared-Agency/confide/internal/catalog"
)

const (
	baseMaxTokens      = 256
	perPhraseMaxTokens = 80
	capMaxTokens       = 8192
)

// LLMDetector delegates semantic matching to a language model.
type LLMDetector struct {
	llm    Completer
	logger *slog.Logger
}

func NewLLM(llm Completer, logger *slog.Logger) *LLMDetector {
	return &LLMDetector{llm: llm, logger: logger}
}

// Detect asks the model for a verdict on every phrase and keeps the present ones.
func (d *LLMDetector) Detect(ctx context.Context, userText string, phrases []catalog.KnownPhrase) ([]Detection, error) {
	if len(phrases) == 0 || strings.TrimSpace(userText) == "" {
		return nil, nil
	}

	prompt := fmt.Sprintf(detectionUserPrompt, formatPhrases(phrases), userText)
	messages := []anthropic.Message{
		{Role: "user", Content: prompt},
	}

	d.logger.Info("detecting disclosures",
		"phrases", len(phrases),
		"user_text_len", len(userText),
	)

	raw, err := d.llm.Complete(ctx, systemPrompt, messages, maxTokensFor(len(phrases)))
	if err != nil {
		return nil, fmt.Errorf("llm detection: %w", err)
	}

	verdicts, err := parseVerdicts(raw)
	if err != nil {
		d.logger.Error("failed to parse detection response",
			"error", err,
			"raw", raw,
		)
		return nil, err
	}

	var out []Detection
	for key, v := range verdicts {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || n < 1 || n > len(phrases) {
			d.logger.Warn("ignoring verdict for unknown phrase index", "key", key)
			continue
		}
		if !bool(v.Present) {
			continue
		}
		out = append(out, Detection{
			PhraseID: phrases[n-1].ID,
			Present:  true,
			Evidence: strings.TrimSpace(v.Evidence),
		})
	}
	out = inPhraseOrder(out, phrases)

	d.logger.Info("detection complete", "present", len(out))
	return out, nil
}

func formatPhrases(phrases []catalog.KnownPhrase) string {
	var sb strings.Builder
	for i, p := range phrases {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, p.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func maxTokensFor(n int) int {
	return min(baseMaxTokens+perPhraseMaxTokens*n, capMaxTokens)
}

type verdict struct {
	Present  yesNo  `json:"present"`
	Evidence string `json:"evidence"`
}

// yesNo accepts "yes"/"no" strings as well as JSON booleans.
type yesNo bool

func (y *yesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = yesNo(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		*y = true
	case "no", "n", "false", "":
		*y = false
	default:
		return fmt.Errorf("present: unexpected value %q", s)
	}
	return nil
}

// parseVerdicts strips code fences and surrounding prose, then decodes the index-keyed object.
func parseVerdicts(raw string) (map[string]verdict, error) {
	body, ok := outermostObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in answer", ErrMalformedResponse)
	}
	var verdicts map[string]verdict
	if err := json.Unmarshal([]byte(body), &verdicts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return verdicts, nil
}

func outermostObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

func inPhraseOrder(dets []Detection, phrases []catalog.KnownPhrase) []Detection {
	if len(dets) < 2 {
		return dets
	}
	byID := make(map[catalog.PhraseID]Detection, len(dets))
	for _, d := range dets {
		byID[d.PhraseID] = d
	}
	ordered := make([]Detection, 0, len(dets))
	for _, p := range phrases {
		if d, ok := byID[p.ID]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered
}
