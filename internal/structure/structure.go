// Package structure enforces the document shape rules of the encoding
// profile: required nesting per file-layout mode, required attributes,
// lexical ordering of page names, and placeholder conventions for missing
// material. MUST violations are fatal for the document; SHOULD violations
// are advisory.
package structure

import (
	"fmt"
	"strconv"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/internal/diag"
)

// Rule identifiers for structural diagnostics.
const (
	RuleNesting       = "structure/nesting"
	RuleUnitName      = "structure/unit-name"
	RulePageOrder     = "structure/page-order"
	RuleGapExtent     = "structure/gap-extent"
	RuleGapUnit       = "structure/gap-unit"
	RuleEmptyLine     = "structure/empty-line"
	RuleUnitSequence  = "structure/unit-sequence"
	RuleMetaRequired  = "structure/meta-required"
	RuleGapForMissing = "structure/gap-for-missing"
)

// LayoutMode selects the required nesting depth.
type LayoutMode string

// Layout modes.
const (
	// LayoutManuscript is single-file-per-manuscript: page > column > line.
	LayoutManuscript LayoutMode = "manuscript"
	// LayoutPage is file-per-page: column > line only.
	LayoutPage LayoutMode = "page"
)

// Detect infers the layout mode from the kind of a document's top-level
// units. Used when the caller does not pin a mode explicitly.
func Detect(doc *document.Document) LayoutMode {
	if len(doc.Units) > 0 && doc.Units[0].Kind == document.UnitPage {
		return LayoutManuscript
	}
	return LayoutPage
}

// Validator checks one document against the shape rules.
type Validator struct {
	Mode LayoutMode
}

// New creates a validator for the given layout mode.
func New(mode LayoutMode) *Validator {
	return &Validator{Mode: mode}
}

// Validate records every violation on r. It never stops early: authors
// get the full list even when the document will be rejected.
func (v *Validator) Validate(doc *document.Document, r *diag.Reporter) {
	v.checkMeta(doc, r)

	topKind := document.UnitColumn
	if v.Mode == LayoutManuscript {
		topKind = document.UnitPage
	}

	lastPage := ""
	for _, u := range doc.Units {
		if u.Kind != topKind {
			r.Error(RuleNesting, u.Location, fmt.Sprintf(
				"top-level unit is %q, layout %q requires %q", u.Kind, v.Mode, topKind))
			continue
		}
		if u.Kind == document.UnitPage {
			if u.N == "" {
				r.Error(RuleUnitName, u.Location, "page has no name")
			} else if lastPage != "" && u.N <= lastPage {
				// Page names are collation keys; lexical order is a MUST.
				r.Error(RulePageOrder, u.Location, fmt.Sprintf(
					"page name %q does not sort after %q", u.N, lastPage))
			}
			if u.N != "" {
				lastPage = u.N
			}
		}
		v.checkUnit(u, r)
	}
}

// checkUnit validates one unit's children and blocks recursively.
func (v *Validator) checkUnit(u *document.StructuralUnit, r *diag.Reporter) {
	var wantChild document.UnitKind
	switch u.Kind {
	case document.UnitPage:
		wantChild = document.UnitColumn
	case document.UnitColumn:
		wantChild = document.UnitLine
	case document.UnitLine:
		wantChild = ""
	}

	if u.Kind == document.UnitLine {
		if len(u.Children) > 0 {
			r.Error(RuleNesting, u.Location, "line contains nested units")
		}
		v.checkBlocks(u, r)
		return
	}

	if len(u.Blocks) > 0 {
		r.Error(RuleNesting, u.Location,
			fmt.Sprintf("%s carries inline content outside a line", u.Kind))
	}
	if u.IsPlaceholder() {
		// An empty unit is the prescribed placeholder for missing material.
		return
	}

	lastN := 0
	for _, c := range u.Children {
		if c.Kind != wantChild {
			r.Error(RuleNesting, c.Location, fmt.Sprintf(
				"%s contains %q, want %q", u.Kind, c.Kind, wantChild))
			continue
		}
		// Column and line numbers are advisory but should be sequential.
		if c.N != "" {
			if n, err := strconv.Atoi(c.N); err == nil {
				if lastN != 0 && n != lastN+1 {
					r.Warn(RuleUnitSequence, c.Location, fmt.Sprintf(
						"%s number %d follows %d", c.Kind, n, lastN))
				}
				lastN = n
			}
		} else {
			r.Warn(RuleUnitName, c.Location, fmt.Sprintf("%s has no number", c.Kind))
		}
		v.checkUnit(c, r)
	}
}

// checkBlocks validates the inline blocks of one line.
func (v *Validator) checkBlocks(u *document.StructuralUnit, r *diag.Reporter) {
	if len(u.Blocks) == 0 {
		// Empty line: placeholder for a missing or illegible line. Allowed,
		// but flagged so transcribers confirm it was intentional.
		r.Warn(RuleEmptyLine, u.Location, "line has no content; placeholder assumed")
		return
	}
	for _, b := range u.Blocks {
		switch blk := b.(type) {
		case *document.Gap:
			v.checkGap(blk, r)
			if blk.Unit == string(document.UnitLine) || blk.Unit == string(document.UnitColumn) {
				// Whole missing lines or columns should be empty placeholder
				// units, not gaps inside a line.
				r.Warn(RuleGapForMissing, blk.Loc, fmt.Sprintf(
					"gap of unit %q inside a line; use an empty placeholder unit", blk.Unit))
			}
		case *document.Correction:
			for _, seg := range blk.Segments {
				if seg.Gap != nil {
					v.checkGap(seg.Gap, r)
				}
			}
		}
	}
}

// checkGap enforces the gap attribute rules: a unit from the closed set
// and either a count or an explicit unknown extent.
func (v *Validator) checkGap(g *document.Gap, r *diag.Reporter) {
	switch g.Unit {
	case "character", "line", "column":
	case "":
		r.Error(RuleGapUnit, g.Loc, "gap has no unit")
	default:
		r.Error(RuleGapUnit, g.Loc, fmt.Sprintf("gap unit %q unknown", g.Unit))
	}
	if !g.HasExtent() {
		r.Error(RuleGapExtent, g.Loc, "gap declares neither n nor extent=\"unknown\"")
	}
}

// checkMeta enforces the required header fields. Optional fields
// (institution, collection) are not checked.
func (v *Validator) checkMeta(doc *document.Document, r *diag.Reporter) {
	required := []struct {
		field string
		value string
	}{
		{"title", doc.Meta.Title},
		{"msName", doc.Meta.MsName},
		{"handDesc", doc.Meta.HandDesc},
		{"scriptDesc", doc.Meta.ScriptDesc},
	}
	for _, f := range required {
		if f.value == "" {
			r.Error(RuleMetaRequired, "teiHeader", fmt.Sprintf("missing required %s", f.field))
		}
	}
	if v.Mode == LayoutPage && doc.Meta.PageNr == "" {
		r.Error(RuleMetaRequired, "teiHeader", "missing required page number")
	}
}
