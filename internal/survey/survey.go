package survey

import (
	"embed"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

//go:embed config/experience.yaml
var configFiles embed.FS

// Statement is one Likert item of the experience survey.
type Statement struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// Definition is the experience survey as shown to participants.
type Definition struct {
	Title        string      `yaml:"title" json:"title"`
	Instructions string      `yaml:"instructions" json:"instructions"`
	Placeholder  string      `yaml:"placeholder" json:"placeholder"`
	Options      []string    `yaml:"options" json:"options"`
	Statements   []Statement `yaml:"statements" json:"statements"`
}

// Answer is one stored response, carrying the statement text so records stand alone.
type Answer struct {
	QuestionID string `json:"question_id"`
	Statement  string `json:"statement"`
	Response   string `json:"response"`
}

// Response is the document stored for a completed experience survey.
type Response struct {
	ParticipantID string   `json:"prolific_id"`
	SurveyData    []Answer `json:"survey_data"`
}

var ErrIncomplete = errors.New("please select an option for each question before submitting")

// Load reads the embedded survey definition.
func Load() (*Definition, error) {
	data, err := configFiles.ReadFile("config/experience.yaml")
	if err != nil {
		return nil, fmt.Errorf("read survey definition: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a survey definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("unmarshal survey definition: %w", err)
	}
	err := validation.ValidateStruct(&def,
		validation.Field(&def.Options, validation.Required),
		validation.Field(&def.Statements, validation.Required),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid survey definition: %w", err)
	}
	seen := make(map[string]bool, len(def.Statements))
	for _, s := range def.Statements {
		if s.ID == "" || s.Text == "" {
			return nil, fmt.Errorf("invalid survey definition: statement %q is incomplete", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("invalid survey definition: duplicate statement %s", s.ID)
		}
		seen[s.ID] = true
	}
	return &def, nil
}

// Validate checks that every statement has a listed option and returns the answers
// in statement order. The placeholder never counts as an answer.
func (d *Definition) Validate(answers map[string]string) ([]Answer, error) {
	options := make([]any, len(d.Options))
	for i, o := range d.Options {
		options[i] = o
	}

	out := make([]Answer, 0, len(d.Statements))
	errs := validation.Errors{}
	for _, s := range d.Statements {
		resp := answers[s.ID]
		if err := validation.Validate(resp, validation.Required, validation.In(options...)); err != nil {
			errs[s.ID] = err
			continue
		}
		out = append(out, Answer{QuestionID: s.ID, Statement: s.Text, Response: resp})
	}
	for id := range answers {
		if !d.has(id) {
			errs[id] = errors.New("unknown question")
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncomplete, errs)
	}
	return out, nil
}

func (d *Definition) has(id string) bool {
	for _, s := range d.Statements {
		if s.ID == id {
			return true
		}
	}
	return false
}
