package sampler

import (
	"sort"

	"github.com/MikeSquared-Agency/confide/internal/catalog"
	"github.com/MikeSquared-Agency/confide/internal/detector"
)

// Candidate is a present detection paired with the phrase it refers to.
type Candidate struct {
	Detection detector.Detection
	Phrase    catalog.KnownPhrase
}

// Sample picks at most limit candidates, favouring category diversity over frequency.
// Inputs within the cap (or limit <= 0) come back unchanged. Otherwise categories are
// visited in (priority, name) order and each contributes its earliest remaining
// candidate per round until limit is reached or nothing is left.
func Sample(cands []Candidate, limit int) []Candidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}

	type group struct {
		priority int
		name     string
		items    []Candidate
	}
	byName := make(map[string]*group)
	var groups []*group
	for _, c := range cands {
		g, ok := byName[c.Phrase.Category]
		if !ok {
			g = &group{priority: c.Phrase.CategoryPriority, name: c.Phrase.Category}
			byName[c.Phrase.Category] = g
			groups = append(groups, g)
		}
		if c.Phrase.CategoryPriority < g.priority {
			g.priority = c.Phrase.CategoryPriority
		}
		g.items = append(g.items, c)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].priority != groups[j].priority {
			return groups[i].priority < groups[j].priority
		}
		return groups[i].name < groups[j].name
	})

	out := make([]Candidate, 0, limit)
	for len(out) < limit {
		picked := false
		for _, g := range groups {
			if len(g.items) == 0 {
				continue
			}
			out = append(out, g.items[0])
			g.items = g.items[1:]
			picked = true
			if len(out) == limit {
				break
			}
		}
		if !picked {
			break
		}
	}
	return out
}

// Candidates joins detections with their catalog phrases, dropping absent verdicts
// and detections whose phrase is not in the catalog.
func Candidates(dets []detector.Detection, cat *catalog.Catalog) []Candidate {
	var out []Candidate
	for _, d := range dets {
		if !d.Present {
			continue
		}
		p, ok := cat.Lookup(d.PhraseID)
		if !ok {
			continue
		}
		out = append(out, Candidate{Detection: d, Phrase: p})
	}
	return out
}
