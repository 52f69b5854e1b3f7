// Package suggest implements the co-occurrence based suggestion providers.
// The local provider combines per-pair historical counts with a noisy-OR
// model; the gemini provider is a placeholder for a remote AI backend.
package suggest

import (
	"regexp"
	"strings"

	"github.com/procedure-suggest-server/internal/domain"
)

// Base-name normalization strips the qualifiers that distinguish clinical
// variants of the same procedure, e.g. "Lumbar Puncture >= 5 years old" and
// "Lumbar Puncture < 5 years old". Two catalog entries with the same base
// name but different control names are treated as mutually exclusive
// variants and never suggested alongside each other.
//
// This is a textual heuristic, not a relationship declared in the catalog.
// Descriptions that do not follow the qualifier conventions will normalize
// imperfectly; that tradeoff is accepted.
var (
	// "< 5 years old", ">= 12 yo", "≤ 6 months"
	comparatorAgeRe = regexp.MustCompile(`(?:<=|>=|<|>|≤|≥)\s*\d+\s*(?:years?|yrs?|yo|months?|mos?|days?)(?:\s*old)?`)
	// "5 years old", "6 months", "30 days"
	bareAgeRe = regexp.MustCompile(`\b\d+\s*(?:years?|yrs?|yo|months?|mos?|days?)(?:\s*old)?\b`)
	// "(Adult)", "(Pediatric)", "(with contrast)"
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	// trailing " - Tibial", " - Left"
	dashQualifierRe = regexp.MustCompile(`\s+-\s+.*$`)
	// bare size and age-bracket words
	sizeAgeWordRe = regexp.MustCompile(`\b(?:small|medium|large|adult|pediatric|infant|neonate)\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// BaseName normalizes a procedure description to its variant key.
func BaseName(description string) string {
	s := strings.ToLower(description)
	s = comparatorAgeRe.ReplaceAllString(s, " ")
	s = bareAgeRe.ReplaceAllString(s, " ")
	s = parentheticalRe.ReplaceAllString(s, " ")
	s = dashQualifierRe.ReplaceAllString(s, " ")
	s = sizeAgeWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// VariantPredicate decides whether two procedures are mutually exclusive
// clinical variants. The engine uses DefaultVariantPredicate unless a
// custom predicate is supplied.
type VariantPredicate func(a, b domain.ProcedureDefinition) bool

// DefaultVariantPredicate applies the base-name rule: equal normalized
// descriptions with different control names.
func DefaultVariantPredicate(a, b domain.ProcedureDefinition) bool {
	if a.ControlName == b.ControlName {
		return false
	}
	return BaseName(a.Description) == BaseName(b.Description)
}
