package matcher

import "github.com/jlmalone/WhatsLiberation/internal/models"

// Entry is one distinct conversation seen across a discovery pass.
type Entry struct {
	Selection models.ConversationSelection
	// Page is the number of scrolls before the entry was first seen.
	Page int
	// LastPage and Candidate describe the most recent page showing the entry.
	LastPage  int
	Candidate models.ConversationCandidate
}

// Tally merges overlapping pages of a scrolled list into distinct entries.
// A page showing name N c times after m instances were already seen maps
// its i-th N row to instance i+max(0, m-c); instances above m are new.
type Tally struct {
	seen    map[string]int
	index   map[models.ConversationSelection]int
	entries []Entry
}

func NewTally() *Tally {
	return &Tally{
		seen:  make(map[string]int),
		index: make(map[models.ConversationSelection]int),
	}
}

// Add merges one page and returns the number of new entries.
func (t *Tally) Add(page int, candidates []models.ConversationCandidate) int {
	counts := make(map[string]int)
	for _, c := range candidates {
		counts[c.DisplayName]++
	}

	prior := make(map[string]int, len(counts))
	for name := range counts {
		prior[name] = t.seen[name]
	}

	added := 0
	rowOf := make(map[string]int)
	for _, c := range candidates {
		name := c.DisplayName
		rowOf[name]++
		instance := rowOf[name] + max(0, prior[name]-counts[name])
		sel := models.ConversationSelection{Name: name, OccurrenceIndex: instance}

		if instance > prior[name] {
			t.seen[name] = instance
			t.index[sel] = len(t.entries)
			t.entries = append(t.entries, Entry{Selection: sel, Page: page, LastPage: page, Candidate: c})
			added++
			continue
		}

		i := t.index[sel]
		t.entries[i].LastPage = page
		t.entries[i].Candidate = c
	}
	return added
}

// Entries returns the distinct entries in first-seen order.
func (t *Tally) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t *Tally) Len() int { return len(t.entries) }
