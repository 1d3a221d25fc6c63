// Package abbrev reconstructs the surface and expanded forms of an
// abbreviated span from its interleaved markup runs. Both forms are kept
// alongside the original runs; downstream consumers choose which to
// collate against.
package abbrev

import (
	"fmt"

	"github.com/tanakhcc/critic-engine/core/errors"
	"github.com/tanakhcc/critic-engine/core/text"
)

// Rule identifiers for abbreviation diagnostics.
const (
	RuleRunKind = "abbrev/run-kind"
	RuleEmpty   = "abbrev/empty"
)

// Forms holds both reconstructed readings of one abbreviation. No
// information is discarded: the original run sequence is retained.
type Forms struct {
	// Surface is what is physically present: abbr and am runs in order.
	Surface string `json:"surface"`
	// Expanded is the transcriber's reading: abbr and ex runs in order.
	Expanded string `json:"expanded"`
	// Runs is the original run sequence.
	Runs []text.Run `json:"-"`
}

// Reconstruct derives both forms from an ordered run sequence. Only abbr,
// am, and ex runs are allowed inside an abbreviation; am runs are
// physically present but not part of the expansion, ex runs are part of
// the expansion but not physically present.
func Reconstruct(runs []text.Run) (Forms, error) {
	if len(runs) == 0 {
		return Forms{}, errors.NewStructural(RuleEmpty, "",
			"abbreviation contains no runs")
	}
	var surface, expanded []text.Run
	for _, r := range runs {
		switch r.Kind {
		case text.KindAbbr:
			surface = append(surface, r)
			expanded = append(expanded, r)
		case text.KindAM:
			surface = append(surface, r)
		case text.KindEx:
			expanded = append(expanded, r)
		default:
			return Forms{}, errors.NewStructural(RuleRunKind, "",
				fmt.Sprintf("run kind %q not allowed in an abbreviation", r.Kind))
		}
	}
	return Forms{
		Surface:  text.Flatten(surface),
		Expanded: text.Flatten(expanded),
		Runs:     runs,
	}, nil
}
