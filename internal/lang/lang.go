// Package lang resolves the effective language of every leaf text node by
// nearest-ancestor inheritance of xml:lang declarations.
package lang

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/text"
	"github.com/tanakhcc/critic-engine/internal/diag"
)

// Rule identifiers for language diagnostics.
const (
	RuleTagSyntax = "lang/tag-syntax"
	RuleConflict  = "lang/conflict"
	RuleUnset     = "lang/unset"
)

// LeafLang is the resolved effective language of one leaf text node.
type LeafLang struct {
	// RunID keys the leaf where one exists; Location always identifies it.
	RunID    string `json:"run_id,omitempty"`
	Location string `json:"location"`
	Lang     string `json:"lang"`
}

// Resolver resolves effective languages for one document. Chain results
// are cached per structural unit so repeated leaves under one line never
// re-walk the ancestor path.
type Resolver struct {
	seen  map[string]bool // syntax-checked tags
	cache map[*document.StructuralUnit]string
}

// New creates a resolver.
func New() *Resolver {
	return &Resolver{
		seen:  make(map[string]bool),
		cache: make(map[*document.StructuralUnit]string),
	}
}

// Resolve walks the document and returns the effective language of every
// leaf text node. Tag syntax problems and equal-depth conflicts are
// reported on r but never fail the document.
func (lr *Resolver) Resolve(doc *document.Document, r *diag.Reporter) []LeafLang {
	var out []LeafLang
	lr.checkTag(doc.Lang, "body", r)

	var walk func(units []*document.StructuralUnit, inherited string)
	walk = func(units []*document.StructuralUnit, inherited string) {
		for _, u := range units {
			eff := inherited
			if u.Lang != "" {
				lr.checkTag(u.Lang, u.Location, r)
				eff = u.Lang
			}
			lr.cache[u] = eff
			for _, b := range u.Blocks {
				out = append(out, lr.resolveBlock(b, eff, r)...)
			}
			walk(u.Children, eff)
		}
	}
	walk(doc.Units, doc.Lang)
	return out
}

// Effective returns the cached effective language of a structural unit.
// Valid only after Resolve has walked the unit's document.
func (lr *Resolver) Effective(u *document.StructuralUnit) string {
	return lr.cache[u]
}

// resolveBlock resolves the leaves of one inline block against the
// language effective on the enclosing line.
func (lr *Resolver) resolveBlock(b document.Block, inherited string, r *diag.Reporter) []LeafLang {
	switch blk := b.(type) {
	case *document.Text:
		eff := inherited
		if blk.Lang != "" {
			lr.checkTag(blk.Lang, blk.Loc, r)
			eff = blk.Lang
		}
		return lr.runLeaves(blk.Runs, eff, blk.Loc, r)

	case *document.Abbreviation:
		// The abbreviation's effective language is that of its expansion,
		// not the surface form: a Greek πιπι standing for the divine name
		// inside Hebrew text stays part of the Hebrew stream.
		eff := inherited
		if blk.Lang != "" {
			lr.checkTag(blk.Lang, blk.Loc, r)
			eff = blk.Lang
		}
		exLang := ""
		surfLang := ""
		for _, run := range blk.Runs {
			switch run.Kind {
			case text.KindEx:
				if exLang == "" {
					exLang = run.Lang
				}
			case text.KindAbbr, text.KindAM:
				if surfLang == "" {
					surfLang = run.Lang
				}
			}
		}
		if exLang != "" && surfLang != "" && exLang != surfLang {
			// Equal depth, conflicting tags: first-encountered rule means
			// the expansion wins. Reported for editorial review.
			r.Info(RuleConflict, blk.Loc, fmt.Sprintf(
				"surface language %q conflicts with expansion language %q; using expansion",
				surfLang, exLang))
		}
		if exLang != "" {
			lr.checkTag(exLang, blk.Loc, r)
			eff = exLang
		}
		return []LeafLang{{RunID: blk.RunID, Location: blk.Loc, Lang: eff}}

	case *document.Correction:
		eff := inherited
		if blk.Lang != "" {
			lr.checkTag(blk.Lang, blk.Loc, r)
			eff = blk.Lang
		}
		var out []LeafLang
		for _, rd := range blk.Readings {
			rdLang := eff
			if rd.Lang != "" {
				lr.checkTag(rd.Lang, rd.Loc, r)
				rdLang = rd.Lang
			}
			out = append(out, lr.runLeaves(rd.Runs, rdLang, rd.Loc, r)...)
		}
		for _, seg := range blk.Segments {
			out = append(out, lr.runLeaves(seg.Runs, eff, seg.Loc, r)...)
		}
		return out
	}
	// Anchors, gaps, spaces, and breaks carry no language.
	return nil
}

// runLeaves emits one leaf per run, preferring a run's own tag over the
// inherited one.
func (lr *Resolver) runLeaves(runs []text.Run, inherited, loc string, r *diag.Reporter) []LeafLang {
	out := make([]LeafLang, 0, len(runs))
	for _, run := range runs {
		eff := inherited
		if run.Lang != "" {
			lr.checkTag(run.Lang, loc, r)
			eff = run.Lang
		}
		if eff == "" {
			r.Warn(RuleUnset, loc, "no language in scope for text run")
		}
		out = append(out, LeafLang{RunID: run.ID, Location: loc, Lang: eff})
	}
	return out
}

// checkTag validates BCP47 syntax once per distinct tag. Syntax is a
// collaborator concern, so failures are advisory only.
func (lr *Resolver) checkTag(tag, loc string, r *diag.Reporter) {
	if tag == "" || lr.seen[tag] {
		return
	}
	lr.seen[tag] = true
	if _, err := language.Parse(tag); err != nil {
		r.Warn(RuleTagSyntax, loc, fmt.Sprintf("language tag %q: %v", tag, err))
	}
}
