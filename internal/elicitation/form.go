package elicitation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
	"github.com/MikeSquared-Agency/confide/internal/sampler"
)

var (
	ErrSelectionFixed = errors.New("selection already confirmed")
	ErrIncomplete     = errors.New("reasoning missing for one or more items")
	ErrSubmitted      = errors.New("feedback already submitted")
	ErrUnknownItem    = errors.New("unknown survey item")
	ErrWrongState     = errors.New("action not allowed in current state")
)

// State is a step of the necessity elicitation flow.
type State string

const (
	AwaitingSelection            State = "awaiting_selection"
	SelectionFixed               State = "selection_fixed"
	AwaitingNecessaryReasoning   State = "awaiting_necessary_reasoning"
	AwaitingUnnecessaryReasoning State = "awaiting_unnecessary_reasoning"
	ReadyToSubmit                State = "ready_to_submit"
	Submitted                    State = "submitted"
)

// ItemID identifies a survey item; it is the id of the phrase it was promoted from.
type ItemID = catalog.PhraseID

// SurveyItem is a detection promoted into the survey.
type SurveyItem struct {
	ID        ItemID `json:"id"`
	Phrase    string `json:"phrase"`
	Category  string `json:"category"`
	Display   string `json:"display"`
	Evidence  string `json:"evidence,omitempty"`
	Selected  bool   `json:"selected"`
	Reasoning string `json:"reasoning"`
}

// Form drives one participant through selecting necessary disclosures and justifying both sides.
// It is not safe for concurrent use; the owning session serializes access.
type Form struct {
	state State
	items []*SurveyItem
	byID  map[ItemID]*SurveyItem
}

// NewForm builds a form from the sampled candidates, in sample order.
func NewForm(cands []sampler.Candidate) *Form {
	f := &Form{
		state: AwaitingSelection,
		byID:  make(map[ItemID]*SurveyItem, len(cands)),
	}
	for _, c := range cands {
		if _, dup := f.byID[c.Phrase.ID]; dup {
			continue
		}
		item := &SurveyItem{
			ID:       c.Phrase.ID,
			Phrase:   c.Phrase.Text,
			Category: c.Phrase.Category,
			Display:  c.Phrase.Display(),
			Evidence: c.Detection.Evidence,
		}
		f.items = append(f.items, item)
		f.byID[item.ID] = item
	}
	// Nothing to review unlocks submission immediately.
	if len(f.items) == 0 {
		f.state = ReadyToSubmit
	}
	return f
}

func (f *Form) State() State { return f.state }

// Items returns copies of the items so callers cannot bypass the state machine.
func (f *Form) Items() []SurveyItem {
	out := make([]SurveyItem, len(f.items))
	for i, it := range f.items {
		out[i] = *it
	}
	return out
}

// Selected returns the items marked necessary, in form order.
func (f *Form) Selected() []SurveyItem { return f.filter(true) }

// Unselected returns the items not marked necessary, in form order.
func (f *Form) Unselected() []SurveyItem { return f.filter(false) }

func (f *Form) filter(selected bool) []SurveyItem {
	var out []SurveyItem
	for _, it := range f.items {
		if it.Selected == selected {
			out = append(out, *it)
		}
	}
	return out
}

// SetSelected toggles an item's necessity judgment. Only allowed before confirmation.
func (f *Form) SetSelected(id ItemID, selected bool) error {
	if err := f.guard(); err != nil {
		return err
	}
	if f.state != AwaitingSelection {
		return ErrSelectionFixed
	}
	item, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	item.Selected = selected
	return nil
}

// ConfirmSelection freezes every selected flag and moves on to the first reasoning phase.
func (f *Form) ConfirmSelection() error {
	if err := f.guard(); err != nil {
		return err
	}
	if f.state != AwaitingSelection {
		return ErrSelectionFixed
	}
	f.state = SelectionFixed
	f.settle()
	return nil
}

// SetReasoning records the justification for one item. Items of the necessary phase
// stay editable until submission; items of the unnecessary phase open once that phase does.
func (f *Form) SetReasoning(id ItemID, text string) error {
	if err := f.guard(); err != nil {
		return err
	}
	item, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	switch f.state {
	case AwaitingNecessaryReasoning:
		if !item.Selected {
			return fmt.Errorf("%w: %s is answered in the next step", ErrWrongState, id)
		}
	case AwaitingUnnecessaryReasoning, ReadyToSubmit:
	default:
		return fmt.Errorf("%w: %s", ErrWrongState, f.state)
	}
	item.Reasoning = text
	f.settle()
	return nil
}

// Advance leaves the necessary-reasoning phase once every selected item is justified.
func (f *Form) Advance() error {
	if err := f.guard(); err != nil {
		return err
	}
	if f.state != AwaitingNecessaryReasoning {
		return fmt.Errorf("%w: %s", ErrWrongState, f.state)
	}
	if !f.CanAdvance() {
		return ErrIncomplete
	}
	f.state = AwaitingUnnecessaryReasoning
	f.settle()
	return nil
}

// CheckSubmit reports why Submit would fail, without changing the form.
func (f *Form) CheckSubmit() error {
	if err := f.guard(); err != nil {
		return err
	}
	if f.state != ReadyToSubmit {
		return fmt.Errorf("%w: %s", ErrWrongState, f.state)
	}
	if !f.CanSubmit() {
		return ErrIncomplete
	}
	return nil
}

// Submit closes the form. It is irreversible.
func (f *Form) Submit() error {
	if err := f.CheckSubmit(); err != nil {
		return err
	}
	f.state = Submitted
	return nil
}

// CanAdvance reports whether every selected item currently has a non-blank reasoning.
func (f *Form) CanAdvance() bool {
	return f.state == AwaitingNecessaryReasoning && complete(f.items, true)
}

// CanSubmit reports whether every item, on both sides, currently has a non-blank reasoning.
func (f *Form) CanSubmit() bool {
	return f.state == ReadyToSubmit && complete(f.items, true) && complete(f.items, false)
}

// Missing lists the items of the open phases that still lack a reasoning.
func (f *Form) Missing() []ItemID {
	var phases []bool
	switch f.state {
	case AwaitingNecessaryReasoning:
		phases = []bool{true}
	case AwaitingUnnecessaryReasoning, ReadyToSubmit:
		phases = []bool{true, false}
	default:
		return nil
	}
	var out []ItemID
	for _, it := range f.items {
		for _, sel := range phases {
			if it.Selected == sel && blank(it.Reasoning) {
				out = append(out, it.ID)
			}
		}
	}
	return out
}

func (f *Form) guard() error {
	if f.state == Submitted {
		return ErrSubmitted
	}
	return nil
}

// settle applies the automatic transitions for the current form contents.
func (f *Form) settle() {
	for {
		prev := f.state
		switch f.state {
		case SelectionFixed:
			if hasAny(f.items, true) {
				f.state = AwaitingNecessaryReasoning
			} else {
				f.state = AwaitingUnnecessaryReasoning
			}
		case AwaitingUnnecessaryReasoning:
			if !complete(f.items, true) {
				f.state = AwaitingNecessaryReasoning
			} else if complete(f.items, false) {
				f.state = ReadyToSubmit
			}
		case ReadyToSubmit:
			if !complete(f.items, true) {
				f.state = AwaitingNecessaryReasoning
			} else if !complete(f.items, false) {
				f.state = AwaitingUnnecessaryReasoning
			}
		}
		if f.state == prev {
			return
		}
	}
}

func hasAny(items []*SurveyItem, selected bool) bool {
	for _, it := range items {
		if it.Selected == selected {
			return true
		}
	}
	return false
}

func complete(items []*SurveyItem, selected bool) bool {
	for _, it := range items {
		if it.Selected == selected && blank(it.Reasoning) {
			return false
		}
	}
	return true
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
