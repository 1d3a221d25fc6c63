// Package corrections resolves layered scribal correction markup into the
// ordered sequence of historical textual states a passage passed through.
//
// The resolver itself works on one internal delta representation (Input);
// two adapters translate the concrete markup styles into it: the current
// incremental add/del/substJoin markup and the legacy app/rdg full-reading
// markup. Neither surface format leaks into the replay algorithm.
package corrections

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/errors"
	"github.com/tanakhcc/critic-engine/core/text"
)

// Rule identifiers for correction diagnostics.
const (
	RuleUnknownOp      = "correction/unknown-op"
	RuleDuplicateOp    = "correction/duplicate-op"
	RuleUnreferencedOp = "correction/unreferenced-op"
	RuleReusedOp       = "correction/reused-op"
	RuleEmptyGroup     = "correction/empty-group"
	RuleGroupOrder     = "correction/group-order"
	RuleVarSeq         = "correction/varseq"
)

// Group is one coherent edit event: the operation ids it joins, the
// responsible hand, and its temporal index. Groups arrive in document
// order, and their Seq must be strictly increasing.
type Group struct {
	OpIDs []string
	Hand  string
	Seq   int
	Loc   string
}

// Input is the resolver's markup-independent view of one corrected
// passage: the base run sequence with add/del spans embedded at their
// positions, plus the ordered edit groups.
type Input struct {
	PassageID string
	BaseHand  string
	Segments  []document.Segment
	Groups    []Group
	Location  string
}

// VersionState is one historical state of the passage: the flattened run
// sequence of all units visible at this version index, with no editorial
// markup. States share unchanged runs with their neighbors; only the
// flattened text is materialized per version.
type VersionState struct {
	// Index is the version index, 0 for the unannotated base text.
	Index int `json:"version"`
	// Hand responsible for this state, if known.
	Hand string `json:"hand,omitempty"`
	// Runs are the visible units in document order.
	Runs []text.Run `json:"-"`
	// Text is the flattened reading used for collation.
	Text string `json:"text"`
	// Hash is the BLAKE3 hash of Text, a cheap collation/diff key.
	Hash string `json:"hash"`
}

// TrailingGap is a lacuna hoisted out of the correction block: it is
// omitted from every reading and attached once at the tail, applying
// uniformly to all versions from FromVersion forward.
type TrailingGap struct {
	Gap         document.Gap `json:"gap"`
	FromVersion int          `json:"from_version"`
}

// Resolved is the version table entry for one passage.
type Resolved struct {
	PassageID   string         `json:"passage"`
	Versions    []VersionState `json:"versions"`
	TrailingGap *TrailingGap   `json:"trailing_gap,omitempty"`
}

// unit tracks one run's visibility interval over version indices:
// the unit belongs to version v iff introducedAt <= v < removedAt.
type unit struct {
	run          text.Run
	introducedAt int
	removedAt    int // open interval end; -1 when never removed
}

// Resolve replays the edit groups of one passage into its ordered version
// states. All failure modes are hard errors rejecting the containing
// document: unknown or duplicate operation ids, operations not referenced
// by exactly one group, empty groups, and non-increasing temporal order.
func Resolve(in Input) (*Resolved, error) {
	// Index the operations defined by the segments. An id defined by more
	// than one operation is fatal, citing every location involved.
	defined := make(map[string][]string) // op id -> locations
	for _, seg := range in.Segments {
		for _, id := range []string{seg.AddID, seg.DelID} {
			if id != "" {
				defined[id] = append(defined[id], seg.Loc)
			}
		}
	}
	for id, locs := range defined {
		if len(locs) > 1 {
			return nil, errors.NewReference(RuleDuplicateOp, id,
				fmt.Sprintf("operation id defined %d times", len(locs)), locs...)
		}
	}

	// Map each operation id to the group replaying it. Every id must be
	// referenced by exactly one group.
	opGroup := make(map[string]int) // op id -> 1-based version index
	lastSeq := 0
	for i, g := range in.Groups {
		if len(g.OpIDs) == 0 {
			return nil, errors.NewStructural(RuleEmptyGroup, g.Loc,
				"edit group names no operations")
		}
		if g.Seq <= lastSeq {
			return nil, errors.NewStructural(RuleGroupOrder, g.Loc,
				fmt.Sprintf("temporal order %d does not increase over %d", g.Seq, lastSeq))
		}
		lastSeq = g.Seq
		for _, id := range g.OpIDs {
			if _, ok := defined[id]; !ok {
				return nil, errors.NewReference(RuleUnknownOp, id,
					"edit group references unknown operation", g.Loc)
			}
			if prev, ok := opGroup[id]; ok {
				return nil, errors.NewReference(RuleReusedOp, id,
					fmt.Sprintf("operation already replayed by group %d", prev), g.Loc)
			}
			opGroup[id] = i + 1
		}
	}
	for id, locs := range defined {
		if _, ok := opGroup[id]; !ok {
			return nil, errors.NewReference(RuleUnreferencedOp, id,
				"operation not referenced by any edit group", locs...)
		}
	}

	// Build the visibility intervals in document order. Deletions and
	// insertions of one group share its version index, so a simultaneous
	// substitution reads naturally left-to-right once flattened.
	var units []unit
	var trailing *TrailingGap
	for _, seg := range in.Segments {
		introducedAt := 0
		if seg.AddID != "" {
			introducedAt = opGroup[seg.AddID]
		}
		if seg.Gap != nil {
			// Lacunous material is omitted from every reading; the gap is
			// attached once at the tail, applying from the version that
			// introduced it forward.
			if trailing == nil || introducedAt < trailing.FromVersion {
				g := *seg.Gap
				if trailing != nil {
					g = trailing.Gap
				}
				trailing = &TrailingGap{Gap: g, FromVersion: introducedAt}
			}
			continue
		}
		removedAt := -1
		if seg.DelID != "" {
			removedAt = opGroup[seg.DelID]
		}
		for _, r := range seg.Runs {
			if r.Hand == "" {
				if introducedAt > 0 {
					r.Hand = in.Groups[introducedAt-1].Hand
				} else {
					r.Hand = in.BaseHand
				}
			}
			units = append(units, unit{run: r, introducedAt: introducedAt, removedAt: removedAt})
		}
	}

	// Flatten one state per version index.
	versions := make([]VersionState, 0, len(in.Groups)+1)
	for v := 0; v <= len(in.Groups); v++ {
		var runs []text.Run
		for _, u := range units {
			if u.introducedAt <= v && (u.removedAt == -1 || v < u.removedAt) {
				runs = append(runs, u.run)
			}
		}
		flat := text.Flatten(runs)
		hand := in.BaseHand
		if v > 0 {
			hand = in.Groups[v-1].Hand
		}
		versions = append(versions, VersionState{
			Index: v,
			Hand:  hand,
			Runs:  runs,
			Text:  flat,
			Hash:  stateHash(flat),
		})
	}

	return &Resolved{
		PassageID:   in.PassageID,
		Versions:    versions,
		TrailingGap: trailing,
	}, nil
}

// stateHash returns the hex BLAKE3 hash of a flattened reading.
func stateHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
