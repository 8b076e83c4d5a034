package catalog

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// PhraseID identifies a known phrase across the detection and survey flow.
type PhraseID string

// KnownPhrase is one sensitive detail the study persona might get a participant to reveal.
type KnownPhrase struct {
	ID               PhraseID `json:"id"`
	Text             string   `json:"phrase"`
	Category         string   `json:"category"`
	CategoryPriority int      `json:"category_priority"`
	SurveyDisplay    string   `json:"survey_display"`
}

// Display returns the participant-facing wording, falling back to the phrase itself.
func (p KnownPhrase) Display() string {
	if p.SurveyDisplay != "" {
		return p.SurveyDisplay
	}
	return p.Text
}

// Catalog is the read-only, priority-sorted set of known phrases.
type Catalog struct {
	phrases []KnownPhrase
	byID    map[PhraseID]int
	version string
}

var requiredColumns = []string{"phrase", "category", "category_priority", "survey_display"}

// LoadFile reads a catalog CSV from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a catalog CSV with a header row and sorts it by (category priority, category).
func Load(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("catalog missing column %q", c)
		}
	}
	idCol, hasID := cols["id"]

	h := sha256.New()
	var phrases []KnownPhrase
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		text := strings.TrimSpace(rec[cols["phrase"]])
		if text == "" {
			return nil, fmt.Errorf("row %d: empty phrase", row)
		}
		prio, err := strconv.Atoi(strings.TrimSpace(rec[cols["category_priority"]]))
		if err != nil {
			return nil, fmt.Errorf("row %d: category_priority: %w", row, err)
		}

		id := PhraseID(strconv.Itoa(row))
		if hasID && strings.TrimSpace(rec[idCol]) != "" {
			id = PhraseID(strings.TrimSpace(rec[idCol]))
		}

		phrases = append(phrases, KnownPhrase{
			ID:               id,
			Text:             text,
			Category:         strings.TrimSpace(rec[cols["category"]]),
			CategoryPriority: prio,
			SurveyDisplay:    strings.TrimSpace(rec[cols["survey_display"]]),
		})
		h.Write([]byte(strings.Join(rec, "\x1f") + "\n"))
	}

	return newCatalog(phrases, hex.EncodeToString(h.Sum(nil))[:16])
}

// New builds a catalog from in-memory phrases, applying the same ordering as Load.
func New(phrases []KnownPhrase) (*Catalog, error) {
	h := sha256.New()
	for _, p := range phrases {
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%d\x1f%s\n", p.ID, p.Text, p.Category, p.CategoryPriority, p.SurveyDisplay)
	}
	return newCatalog(append([]KnownPhrase(nil), phrases...), hex.EncodeToString(h.Sum(nil))[:16])
}

func newCatalog(phrases []KnownPhrase, version string) (*Catalog, error) {
	sort.SliceStable(phrases, func(i, j int) bool {
		if phrases[i].CategoryPriority != phrases[j].CategoryPriority {
			return phrases[i].CategoryPriority < phrases[j].CategoryPriority
		}
		return phrases[i].Category < phrases[j].Category
	})

	byID := make(map[PhraseID]int, len(phrases))
	for i, p := range phrases {
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate phrase id %q", p.ID)
		}
		byID[p.ID] = i
	}
	return &Catalog{phrases: phrases, byID: byID, version: version}, nil
}

// Phrases returns a copy of the sorted phrase list.
func (c *Catalog) Phrases() []KnownPhrase {
	return append([]KnownPhrase(nil), c.phrases...)
}

func (c *Catalog) Lookup(id PhraseID) (KnownPhrase, bool) {
	i, ok := c.byID[id]
	if !ok {
		return KnownPhrase{}, false
	}
	return c.phrases[i], true
}

func (c *Catalog) Len() int { return len(c.phrases) }

// Version is a short content hash, used to key cached detection results.
func (c *Catalog) Version() string { return c.version }
