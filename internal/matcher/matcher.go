package matcher

import (
	"fmt"
	"strings"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/rs/zerolog"
	"github.com/xrash/smetrics"
)

type Tier string

const (
	TierFirst     Tier = "first"
	TierExact     Tier = "exact"
	TierSubstring Tier = "substring"
	TierFuzzy     Tier = "fuzzy"
)

// Request names the conversation to resolve. An empty Name selects by
// position alone; Occurrence is 1-based and defaults to 1. Exact limits a
// named request to the exact tier.
type Request struct {
	Name       string
	Occurrence int
	Exact      bool
}

type Match struct {
	Candidate models.ConversationCandidate
	Selection models.ConversationSelection
	Tier      Tier
}

type Matcher struct {
	fuzzyThreshold int
	logger         zerolog.Logger
}

// New returns a Matcher. A fuzzyThreshold of 0 disables the fuzzy tier.
func New(fuzzyThreshold int, logger zerolog.Logger) *Matcher {
	return &Matcher{fuzzyThreshold: fuzzyThreshold, logger: logger}
}

// Resolve picks the requested conversation from one or more pages of the
// list, ordered as they were captured. The returned tap point comes from
// the last page, so the selected row must be visible there.
func (m *Matcher) Resolve(req Request, pages ...[]models.ConversationCandidate) (Match, error) {
	occurrence := req.Occurrence
	if occurrence < 1 {
		occurrence = 1
	}
	if len(pages) == 0 {
		return Match{}, m.notFound(req, "no candidates")
	}
	lastPage := len(pages) - 1

	want := Normalize(req.Name)
	for _, tier := range m.tiers(want, req.Exact) {
		tally := NewTally()
		for i, page := range pages {
			tally.Add(i, filter(page, func(name string) bool { return m.accepts(tier, want, name) }))
		}
		if tally.Len() < occurrence {
			continue
		}

		e := tally.Entries()[occurrence-1]
		if e.LastPage != lastPage {
			return Match{}, m.notFound(req, fmt.Sprintf("%s is no longer visible", e.Selection))
		}

		m.logger.Debug().
			Str("requested", req.Name).
			Str("selected", e.Selection.String()).
			Str("tier", string(tier)).
			Msg("conversation resolved")
		return Match{Candidate: e.Candidate, Selection: e.Selection, Tier: tier}, nil
	}

	return Match{}, m.notFound(req, "no tier matched enough conversations")
}

func (m *Matcher) tiers(want string, exact bool) []Tier {
	if want == "" {
		return []Tier{TierFirst}
	}
	if exact {
		return []Tier{TierExact}
	}
	tiers := []Tier{TierExact, TierSubstring}
	if m.fuzzyThreshold > 0 {
		tiers = append(tiers, TierFuzzy)
	}
	return tiers
}

func (m *Matcher) accepts(tier Tier, want, name string) bool {
	got := Normalize(name)
	switch tier {
	case TierFirst:
		return true
	case TierExact:
		return got == want
	case TierSubstring:
		return strings.Contains(got, want)
	case TierFuzzy:
		return smetrics.WagnerFischer(got, want, 1, 1, 1) <= m.fuzzyThreshold
	}
	return false
}

func (m *Matcher) notFound(req Request, why string) error {
	return &models.AppError{
		Code:    models.CodeConversationNotFound,
		Message: fmt.Sprintf("conversation %q not found: %s", req.Name, why),
		Details: map[string]any{"name": req.Name, "occurrence": req.Occurrence},
	}
}

func filter(page []models.ConversationCandidate, keep func(name string) bool) []models.ConversationCandidate {
	var out []models.ConversationCandidate
	for _, c := range page {
		if keep(c.DisplayName) {
			out = append(out, c)
		}
	}
	return out
}
