package store

import (
	"testing"
	"time"
)

func TestToFields(t *testing.T) {
	type body struct {
		ParticipantID string    `json:"prolific_id"`
		Selected      []string  `json:"selected"`
		At            time.Time `json:"at"`
	}
	fields, err := toFields(body{ParticipantID: "P1", Selected: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if fields["prolific_id"] != "P1" {
		t.Errorf("json field names should be kept, got %v", fields)
	}
	if _, ok := fields["selected"].([]any); !ok {
		t.Errorf("selected = %T", fields["selected"])
	}

	if _, err := toFields([]string{"not", "an", "object"}); err == nil {
		t.Error("expected error for non-object body")
	}
}
