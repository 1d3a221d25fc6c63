// Package text defines the primitive span model for transcribed manuscript
// text: immutable runs of literal text carrying their provenance (scribal
// hand, language, markup kind).
package text

import "strings"

// Kind classifies the markup a run was transcribed under.
type Kind string

// Run kind constants.
const (
	// KindPlain is unannotated text clearly visible in the manuscript.
	KindPlain Kind = "plain"
	// KindAbbr is the part of an abbreviation present both on the surface
	// and in the expansion.
	KindAbbr Kind = "abbr"
	// KindAM is an abbreviation marker: physically present but not part of
	// the expansion.
	KindAM Kind = "am"
	// KindEx is expanded text: part of the expansion but not physically
	// present.
	KindEx Kind = "ex"
	// KindDamaged is text present but partially illegible.
	KindDamaged Kind = "damaged"
	// KindGapPlaceholder stands in for a lacuna inside a run sequence.
	KindGapPlaceholder Kind = "gap-placeholder"
)

// validKinds is the set of valid run kinds.
var validKinds = map[Kind]bool{
	KindPlain:          true,
	KindAbbr:           true,
	KindAM:             true,
	KindEx:             true,
	KindDamaged:        true,
	KindGapPlaceholder: true,
}

// IsValid returns true if the kind is a known run kind.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// Run is a single literal text run. Runs are immutable once authored;
// derived readings reference runs, they never mutate them.
type Run struct {
	// ID identifies this run where downstream tables need a key
	// (abbreviation forms, language resolution). May be empty for runs
	// nothing refers to.
	ID string

	// Text is the literal content.
	Text string

	// Lang is the effective BCP47 language tag, filled in by the language
	// scope resolver. Empty until resolved.
	Lang string

	// Kind is the markup kind this run was transcribed under.
	Kind Kind

	// Hand is the scribal hand responsible, if known.
	Hand string

	// Agent is the cause of damage. Only set on damaged runs.
	Agent string

	// Cert is the transcriber's certainty in the reading of a damaged run.
	Cert string
}

// Flatten concatenates run texts in order with no separator.
func Flatten(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}
