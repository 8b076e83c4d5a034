package transcript

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DelimiterMarker separates the chat log header from the turn records.
const DelimiterMarker = "------------"

// linesPerBlock is iteration, role, text, persuasion and a blank separator.
const linesPerBlock = 5

type Role string

const (
	RoleUser    Role = "user"
	RoleChatbot Role = "chatbot"
)

// Turn is a single parsed record of the chat log.
type Turn struct {
	Index      int    `json:"index"`
	Iteration  int    `json:"iteration"`
	Number     int    `json:"turn"`
	Role       Role   `json:"role"`
	Text       string `json:"text"`
	Persuasion string `json:"persuasion,omitempty"` // empty when the log says "none"
}

// HasPersuasion reports whether the chatbot tagged the turn with a strategy.
func (t Turn) HasPersuasion() bool {
	return t.Persuasion != ""
}

// ChatContent renders the turn the way the analysis sheet expects: speaker: 'text'.
func (t Turn) ChatContent() string {
	return string(t.Role) + ": '" + t.Text + "'"
}

// Parse normalizes a raw chat log into ordered turns.
// Everything up to and including the first delimiter line is discarded.
// Parsing stops quietly at a short or malformed trailing block.
func Parse(raw string) []Turn {
	lines := afterDelimiter(raw)

	var turns []Turn
	for len(lines) > 1 {
		iteration, err := strconv.Atoi(fieldValue(lines[0]))
		if err != nil {
			break
		}

		role := RoleUser
		if strings.EqualFold(fieldValue(line(lines, 1)), "assistant") {
			role = RoleChatbot
		}

		persuasion := fieldValue(line(lines, 3))
		if strings.EqualFold(persuasion, "none") {
			persuasion = ""
		}

		turns = append(turns, Turn{
			Index:      len(turns),
			Iteration:  iteration,
			Number:     iteration/2 + 1,
			Role:       role,
			Text:       fieldValue(line(lines, 2)),
			Persuasion: persuasion,
		})

		if len(lines) <= linesPerBlock {
			break
		}
		lines = lines[linesPerBlock:]
	}
	return turns
}

// UserText concatenates the participant's side of the conversation.
func UserText(turns []Turn) string {
	var parts []string
	for _, t := range turns {
		if t.Role == RoleUser {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// DecodeChatHistory unwraps a stored chat history file. The chat app saves the
// log as a JSON string, confide records it as an object with a transcript field,
// and plain text files are returned unchanged.
func DecodeChatHistory(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, `"`):
		var raw string
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return "", fmt.Errorf("decode chat history: %w", err)
		}
		return raw, nil
	case strings.HasPrefix(trimmed, "{"):
		var doc struct {
			Transcript *string `json:"transcript"`
		}
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return "", fmt.Errorf("decode chat history: %w", err)
		}
		if doc.Transcript == nil {
			return "", fmt.Errorf("decode chat history: no transcript field")
		}
		return *doc.Transcript, nil
	default:
		return string(data), nil
	}
}

func afterDelimiter(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, l := range lines {
		if strings.Contains(l, DelimiterMarker) {
			return lines[i+1:]
		}
	}
	return nil
}

func line(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

// fieldValue returns everything after the first colon, trimmed.
func fieldValue(l string) string {
	_, v, found := strings.Cut(l, ":")
	if !found {
		return strings.TrimSpace(l)
	}
	return strings.TrimSpace(v)
}
