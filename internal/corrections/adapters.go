package corrections

import (
	"fmt"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/errors"
)

// FromCorrection translates a correction block into the resolver's delta
// representation, dispatching on the encoding the loader found. A block
// carrying both encodings is malformed.
func FromCorrection(c *document.Correction) (Input, error) {
	if len(c.Readings) > 0 && (len(c.Segments) > 0 || len(c.Joins) > 0) {
		return Input{}, errors.NewStructural(RuleVarSeq, c.Loc,
			"correction mixes reading-group and incremental markup")
	}
	if len(c.Readings) > 0 {
		return fromReadings(c)
	}
	return fromSubstJoin(c), nil
}

// fromSubstJoin adapts the current incremental markup: add/del spans are
// already embedded in the base sequence, and each substJoin is one edit
// group. Document order of the joins is their temporal order.
func fromSubstJoin(c *document.Correction) Input {
	groups := make([]Group, len(c.Joins))
	for i, j := range c.Joins {
		groups[i] = Group{
			OpIDs: j.Targets,
			Hand:  j.Hand,
			Seq:   i + 1,
			Loc:   j.Loc,
		}
	}
	return Input{
		PassageID: c.PassageID,
		BaseHand:  c.BaseHand,
		Segments:  c.Segments,
		Groups:    groups,
		Location:  c.Loc,
	}
}

// fromReadings adapts the legacy reading-group markup, where each reading
// is an independently authored full state with an explicit temporal index.
// Reading N is converted to the delta against reading N-1 by replacing the
// whole passage: one synthetic delete of the previous reading plus one
// synthetic add of the new one per edit group.
func fromReadings(c *document.Correction) (Input, error) {
	// varSeq indexes must be contiguous from 1: a gap means a reading the
	// history refers to is missing, so downstream resolution is undefined.
	readings := c.Readings
	for i, r := range readings {
		if r.VarSeq != i+1 {
			return Input{}, errors.NewReference(RuleVarSeq, c.PassageID,
				fmt.Sprintf("reading varSeq %d breaks the contiguous sequence, want %d",
					r.VarSeq, i+1), r.Loc)
		}
	}

	segments := make([]document.Segment, 0, len(readings))
	groups := make([]Group, 0, len(readings)-1)
	for i, r := range readings {
		seg := document.Segment{Runs: r.Runs, Loc: r.Loc}
		if i > 0 {
			seg.AddID = syntheticID("add", i+1)
		}
		if i < len(readings)-1 {
			seg.DelID = syntheticID("del", i+2)
		}
		segments = append(segments, seg)

		if i > 0 {
			groups = append(groups, Group{
				OpIDs: []string{syntheticID("del", i+1), syntheticID("add", i+1)},
				Hand:  r.Hand,
				Seq:   r.VarSeq,
				Loc:   r.Loc,
			})
		}
	}

	return Input{
		PassageID: c.PassageID,
		BaseHand:  readings[0].Hand,
		Segments:  segments,
		Groups:    groups,
		Location:  c.Loc,
	}, nil
}

// syntheticID names the replacement operations generated for legacy
// readings. The rdg- prefix keeps them apart from authored xml:ids.
func syntheticID(kind string, reading int) string {
	return fmt.Sprintf("rdg-%s-%d", kind, reading)
}
