// Package document defines the parsed manuscript tree the engine validates:
// structural units (page, column, line), inline blocks (text, damage,
// abbreviations, verse anchors, lacunae, corrections), and the header
// metadata describing the transcribed witness.
//
// The engine never parses XML itself; an external loader (internal/tei is
// the reference loader) hands it this tree fully built.
package document

import "github.com/tanakhcc/critic-engine/core/text"

// UnitKind is the kind of a structural unit.
type UnitKind string

// Structural unit kinds.
const (
	UnitPage   UnitKind = "page"
	UnitColumn UnitKind = "column"
	UnitLine   UnitKind = "line"
)

// validUnitKinds is the set of valid unit kinds.
var validUnitKinds = map[UnitKind]bool{
	UnitPage:   true,
	UnitColumn: true,
	UnitLine:   true,
}

// IsValid returns true if the unit kind is known.
func (k UnitKind) IsValid() bool {
	return validUnitKinds[k]
}

// Document is one transcription file: header metadata plus the structural
// tree of its text body.
type Document struct {
	// ID identifies the document within a corpus (usually derived from the
	// file name by the loader).
	ID string

	// Meta holds the header metadata.
	Meta Meta

	// Lang is the default language of the body, if declared.
	Lang string

	// Units are the top-level structural units, in document order. In
	// single-file-per-manuscript layout these are pages; in file-per-page
	// layout they are columns.
	Units []*StructuralUnit
}

// Meta is the header metadata of a transcription (teiHeader/fileDesc).
// The engine only checks simple required/optional presence; interpretation
// is editorial.
type Meta struct {
	Title       string
	Publication string
	MsName      string
	PageNr      string
	Institution string // optional
	Collection  string // optional
	HandDesc    string
	ScriptDesc  string
}

// StructuralUnit is one node of the layout tree. A unit with no children
// and no blocks is an explicit placeholder for a physically missing or
// skipped page, column, or line.
type StructuralUnit struct {
	// Kind is page, column, or line.
	Kind UnitKind

	// N is the ordinal name of this unit ("3", "34v", ...). Required on
	// pages, advisory on columns and lines.
	N string

	// Lang is the language declared on this unit, if any.
	Lang string

	// Children are nested structural units (pages contain columns, columns
	// contain lines). Empty on lines.
	Children []*StructuralUnit

	// Blocks are the inline blocks of a line, in document order. Empty on
	// pages and columns.
	Blocks []Block

	// Location is a human-readable position for diagnostics
	// ("page 34v/column 1/line 2").
	Location string
}

// IsPlaceholder returns true if the unit stands in for missing material.
func (u *StructuralUnit) IsPlaceholder() bool {
	return len(u.Children) == 0 && len(u.Blocks) == 0
}

// Block is one inline element of a line. Exactly the concrete types in this
// package implement it.
type Block interface {
	// Location returns a human-readable position for diagnostics.
	Location() string
}

// Text is a run of plain or damaged text inside a line.
type Text struct {
	Lang string
	Runs []text.Run
	Loc  string
}

// Location implements Block.
func (t *Text) Location() string { return t.Loc }

// Abbreviation is an abbreviated span with its transcriber-supplied
// expansion, as interleaved abbr/am/ex runs. Legacy choice/abbr/expan
// markup is loaded as one abbr run followed by one ex run.
type Abbreviation struct {
	// RunID keys this abbreviation in the resolved abbreviation table.
	RunID string
	Lang  string
	Runs  []text.Run
	Loc   string
}

// Location implements Block.
func (a *Abbreviation) Location() string { return a.Loc }

// Anchor marks the beginning of a verse under one versification scheme.
// Anchor ids are corpus-wide collation keys.
type Anchor struct {
	// XMLID is the full anchor id: A_V_{scheme-shorthand}_{book}-{chapter}-{verse}.
	XMLID string
	// Scheme is the scheme long form from the type attribute.
	Scheme string
	// Subtype is the scheme shorthand from the subtype attribute, if given.
	Subtype string
	Loc     string
}

// Location implements Block.
func (a *Anchor) Location() string { return a.Loc }

// Gap is a lacuna: text physically missing or illegible, represented
// without grammatical reconstruction.
type Gap struct {
	Reason string
	Unit   string
	// N is the approximate extent in Unit. Zero when unknown.
	N int
	// ExtentUnknown is set when extent="unknown" was declared instead of n.
	ExtentUnknown bool
	Cert          string
	Loc           string
}

// Location implements Block.
func (g *Gap) Location() string { return g.Loc }

// HasExtent returns true if either a count or an explicit unknown extent
// was declared. One of the two is mandatory.
func (g *Gap) HasExtent() bool {
	return g.N > 0 || g.ExtentUnknown
}

// Space is a span of significant whitespace in the manuscript.
type Space struct {
	Quantity int
	Unit     string
	Loc      string
}

// Location implements Block.
func (s *Space) Location() string { return s.Loc }

// Correction is a passage rewritten by one or more scribal hands. Exactly
// one of the two encodings is populated: Readings (legacy app/rdg markup,
// flat full readings with an explicit temporal index) or Segments+Joins
// (current add/del/substJoin markup, incremental deltas).
type Correction struct {
	// PassageID keys this correction in the resolved version table.
	PassageID string
	Lang      string

	// BaseHand is the hand responsible for the unannotated base text, if
	// known.
	BaseHand string

	// Readings is the legacy encoding: independently authored full
	// readings ordered by varSeq.
	Readings []Reading

	// Segments is the current encoding: the base run sequence in document
	// order with add/del spans embedded at their positions.
	Segments []Segment

	// Joins groups the add/del operations of the current encoding into
	// edit events, in document (= temporal) order.
	Joins []SubstJoin

	Loc string
}

// Location implements Block.
func (c *Correction) Location() string { return c.Loc }

// Reading is one full reading of a legacy correction.
type Reading struct {
	// VarSeq is the temporal index, 1 for the earliest state.
	VarSeq int
	Hand   string
	Lang   string
	Runs   []text.Run
	Loc    string
}

// Segment is one span of a current-encoding correction. A segment may be
// plain base text, an added span, a deleted span, a span both added and
// later deleted (nested add inside del), or a lacuna.
type Segment struct {
	Runs []text.Run

	// AddID is the xml:id of the enclosing add element, if any.
	AddID string
	// DelID is the xml:id of the enclosing del element, if any.
	DelID string

	// Gap is set instead of Runs when the span is lacunous.
	Gap *Gap

	Loc string
}

// SubstJoin is a join record grouping one version's additions and
// deletions into a single coherent edit event.
type SubstJoin struct {
	// Targets are the referenced operation ids, leading '#' stripped.
	Targets []string
	Hand    string
	Loc     string
}

// Walk calls fn for every structural unit in document order, depth-first.
func (d *Document) Walk(fn func(*StructuralUnit)) {
	var rec func(us []*StructuralUnit)
	rec = func(us []*StructuralUnit) {
		for _, u := range us {
			fn(u)
			rec(u.Children)
		}
	}
	rec(d.Units)
}

// Lines returns every line unit in document order.
func (d *Document) Lines() []*StructuralUnit {
	var lines []*StructuralUnit
	d.Walk(func(u *StructuralUnit) {
		if u.Kind == UnitLine {
			lines = append(lines, u)
		}
	})
	return lines
}
