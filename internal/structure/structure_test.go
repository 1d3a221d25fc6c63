package structure

import (
	"testing"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/text"
	"github.com/tanakhcc/critic-engine/internal/diag"
)

func meta() document.Meta {
	return document.Meta{
		Title:      "Genesis",
		MsName:     "Codex L",
		PageNr:     "14v",
		HandDesc:   "one hand",
		ScriptDesc: "square script",
	}
}

func line(n string, blocks ...document.Block) *document.StructuralUnit {
	return &document.StructuralUnit{Kind: document.UnitLine, N: n, Blocks: blocks}
}

func column(n string, lines ...*document.StructuralUnit) *document.StructuralUnit {
	return &document.StructuralUnit{Kind: document.UnitColumn, N: n, Children: lines}
}

func page(name string, cols ...*document.StructuralUnit) *document.StructuralUnit {
	return &document.StructuralUnit{Kind: document.UnitPage, N: name, Children: cols}
}

func para(s string) *document.Text {
	return &document.Text{Runs: []text.Run{{Text: s, Kind: text.KindPlain}}}
}

func rules(r *diag.Reporter) map[string]int {
	out := map[string]int{}
	for _, d := range r.Diagnostics() {
		out[d.Rule]++
	}
	return out
}

func TestValidateManuscriptLayout(t *testing.T) {
	doc := &document.Document{
		ID:   "ms1",
		Meta: meta(),
		Units: []*document.StructuralUnit{
			page("001r", column("1", line("1", para("a")), line("2", para("b")))),
			page("001v", column("1", line("1", para("c")))),
		},
	}
	r := diag.New()
	New(LayoutManuscript).Validate(doc, r)
	if r.Fatal() {
		t.Fatalf("well-formed document rejected: %+v", r.Diagnostics())
	}
}

func TestValidatePageLayoutRejectsPageUnits(t *testing.T) {
	doc := &document.Document{
		ID:    "p1",
		Meta:  meta(),
		Units: []*document.StructuralUnit{page("001r", column("1", line("1", para("a"))))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if !r.Fatal() {
		t.Fatal("page unit inside file-per-page layout must be fatal")
	}
	if rules(r)[RuleNesting] == 0 {
		t.Errorf("want a %s error, got %+v", RuleNesting, r.Diagnostics())
	}
}

func TestValidatePageOrder(t *testing.T) {
	doc := &document.Document{
		ID:   "ms1",
		Meta: meta(),
		Units: []*document.StructuralUnit{
			page("002r", column("1", line("1", para("a")))),
			page("001v", column("1", line("1", para("b")))),
		},
	}
	r := diag.New()
	New(LayoutManuscript).Validate(doc, r)
	if rules(r)[RulePageOrder] != 1 {
		t.Errorf("want 1 %s error, got %+v", RulePageOrder, r.Diagnostics())
	}
	if !r.Fatal() {
		t.Error("page order violation must be fatal")
	}
}

func TestValidateGapExtent(t *testing.T) {
	tests := []struct {
		name  string
		gap   *document.Gap
		fatal bool
		rule  string
	}{
		{
			name: "counted characters",
			gap:  &document.Gap{Reason: "illegible", Unit: "character", N: 3},
		},
		{
			name: "unknown extent declared",
			gap:  &document.Gap{Reason: "lost", Unit: "character", ExtentUnknown: true},
		},
		{
			// neither n nor extent="unknown"
			name:  "extent missing entirely",
			gap:   &document.Gap{Reason: "illegible", Unit: "character"},
			fatal: true,
			rule:  RuleGapExtent,
		},
		{
			name:  "unit missing",
			gap:   &document.Gap{Reason: "illegible", N: 3},
			fatal: true,
			rule:  RuleGapUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &document.Document{
				ID:    "p1",
				Meta:  meta(),
				Units: []*document.StructuralUnit{column("1", line("1", para("a"), tt.gap))},
			}
			r := diag.New()
			New(LayoutPage).Validate(doc, r)
			if r.Fatal() != tt.fatal {
				t.Fatalf("fatal = %v, want %v: %+v", r.Fatal(), tt.fatal, r.Diagnostics())
			}
			if tt.rule != "" && rules(r)[tt.rule] == 0 {
				t.Errorf("want a %s error, got %+v", tt.rule, r.Diagnostics())
			}
		})
	}
}

func TestValidateEmptyLineIsPlaceholder(t *testing.T) {
	doc := &document.Document{
		ID:    "p1",
		Meta:  meta(),
		Units: []*document.StructuralUnit{column("1", line("1"))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if r.Fatal() {
		t.Fatalf("empty placeholder line rejected: %+v", r.Diagnostics())
	}
	if rules(r)[RuleEmptyLine] != 1 {
		t.Errorf("want 1 %s warning, got %+v", RuleEmptyLine, r.Diagnostics())
	}
}

func TestValidateWholeLineGapAdvisory(t *testing.T) {
	gap := &document.Gap{Reason: "lost", Unit: "line", N: 1}
	doc := &document.Document{
		ID:    "p1",
		Meta:  meta(),
		Units: []*document.StructuralUnit{column("1", line("1", gap))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if r.Fatal() {
		t.Fatalf("whole-line gap must not be fatal: %+v", r.Diagnostics())
	}
	if rules(r)[RuleGapForMissing] != 1 {
		t.Errorf("want 1 %s warning, got %+v", RuleGapForMissing, r.Diagnostics())
	}
}

func TestValidateNonSequentialLineNumbers(t *testing.T) {
	doc := &document.Document{
		ID:    "p1",
		Meta:  meta(),
		Units: []*document.StructuralUnit{column("1", line("1", para("a")), line("3", para("b")))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if r.Fatal() {
		t.Fatal("non-sequential line numbers must be advisory only")
	}
	if rules(r)[RuleUnitSequence] != 1 {
		t.Errorf("want 1 %s warning, got %+v", RuleUnitSequence, r.Diagnostics())
	}
}

func TestValidateMissingMeta(t *testing.T) {
	doc := &document.Document{
		ID:    "p1",
		Units: []*document.StructuralUnit{column("1", line("1", para("a")))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if !r.Fatal() {
		t.Fatal("missing header fields must be fatal")
	}
	// title, msName, handDesc, scriptDesc, page number
	if got := rules(r)[RuleMetaRequired]; got != 5 {
		t.Errorf("meta errors = %d, want 5: %+v", got, r.Diagnostics())
	}
}

func TestValidateGapInsideCorrectionSegment(t *testing.T) {
	corr := &document.Correction{
		PassageID: "c1",
		Segments: []document.Segment{
			{Runs: []text.Run{{Text: "a", Kind: text.KindPlain}}},
			{Gap: &document.Gap{Reason: "illegible", Unit: "character"}, AddID: "a1"},
		},
	}
	doc := &document.Document{
		ID:    "p1",
		Meta:  meta(),
		Units: []*document.StructuralUnit{column("1", line("1", corr))},
	}
	r := diag.New()
	New(LayoutPage).Validate(doc, r)
	if rules(r)[RuleGapExtent] != 1 {
		t.Errorf("want 1 %s error for gap inside correction, got %+v", RuleGapExtent, r.Diagnostics())
	}
}
