package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountEpsilon is the currency-scale tolerance for treating two amounts
// as the same payment. Amount near-equality alone is never enough to
// flag a conflict; it must be combined with a date or description match.
var amountEpsilon = decimal.RequireFromString("0.01")

// SimilarityMatcher decides whether two ledger descriptions plausibly
// describe the same real-world transaction. The default implementation
// is plain substring containment; it is an interface so a normalized or
// fuzzy matcher can be swapped in without touching the detector.
type SimilarityMatcher interface {
	IsSimilar(a, b string) bool
}

// SubstringMatcher reports similarity when one stripped description
// contains the other. Containment works across the provenance tag
// convention because tags are stripped before comparison.
type SubstringMatcher struct{}

func (SubstringMatcher) IsSimilar(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// StripProvenanceTag removes the leading bracketed source tag from a
// description, e.g. "[expense-system] إيجار يناير" -> "إيجار يناير".
// The tag is display-only and must never participate in matching.
func StripProvenanceTag(desc string) string {
	s := strings.TrimSpace(desc)
	for strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			break
		}
		s = strings.TrimSpace(s[end+1:])
	}
	return s
}

// amountsClose reports |a − b| < amountEpsilon.
func amountsClose(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(amountEpsilon)
}

func sameDay(a, b LedgerEntry) bool {
	ay, am, ad := a.Date.Date()
	by, bm, bd := b.Date.Date()
	return ay == by && am == bm && ad == bd
}

// entriesConflict applies the full detection predicate: amount
// near-equality AND (same calendar date OR description similarity).
func entriesConflict(manual, candidate LedgerEntry, matcher SimilarityMatcher) bool {
	if !amountsClose(manual.Amount, candidate.Amount) {
		return false
	}
	if sameDay(manual, candidate) {
		return true
	}
	return matcher.IsSimilar(StripProvenanceTag(manual.Description), StripProvenanceTag(candidate.Description))
}

// findConflictsIn scans manual expense entries against subsystem expense
// entries and returns one candidate per manual entry that has at least
// one probable duplicate. Detection never mutates anything; the output
// is advisory input for the resolver.
//
// Only the expense direction is checked. That is a deliberate scope
// limit of the current design, not an oversight.
func findConflictsIn(manual, system []LedgerEntry, matcher SimilarityMatcher) []ConflictCandidate {
	var candidates []ConflictCandidate
	for _, m := range manual {
		if m.Direction != Expense {
			continue
		}
		var matches []LedgerEntry
		for _, sys := range system {
			if sys.Direction != Expense || sys.ReferenceType == RefManual {
				continue
			}
			if entriesConflict(m, sys, matcher) {
				matches = append(matches, sys)
			}
		}
		if len(matches) == 0 {
			continue
		}
		candidates = append(candidates, ConflictCandidate{
			Manual:      m,
			Matches:     matches,
			Suggestions: suggestionsFor(m, matches),
		})
	}
	return candidates
}

func suggestionsFor(m LedgerEntry, matches []LedgerEntry) []string {
	return []string{
		fmt.Sprintf("keep_system: remove the manual entry %q (%s) and trust the %s record",
			m.Description, m.Amount.StringFixed(2), matches[0].ReferenceType),
		"keep_manual: keep the manual entry and suppress future auto-sync of the matching subsystem event",
		"merge: keep both entries; provenance tags in the descriptions identify each source",
	}
}
