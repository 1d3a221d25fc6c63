package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/text"
	"github.com/tanakhcc/critic-engine/internal/structure"
)

func testMeta() document.Meta {
	return document.Meta{
		Title:      "Kings",
		MsName:     "Codex T",
		PageNr:     "3r",
		HandDesc:   "two hands",
		ScriptDesc: "uncial",
	}
}

func pageDoc(id string, blocks ...document.Block) *document.Document {
	return &document.Document{
		ID:   id,
		Meta: testMeta(),
		Lang: "grc",
		Units: []*document.StructuralUnit{
			{
				Kind: document.UnitColumn,
				N:    "1",
				Children: []*document.StructuralUnit{
					{Kind: document.UnitLine, N: "1", Blocks: blocks},
				},
			},
		},
	}
}

func substitution(passage string) *document.Correction {
	return &document.Correction{
		PassageID: passage,
		BaseHand:  "firsthand",
		Segments: []document.Segment{
			{Runs: []text.Run{{Text: "A", Kind: text.KindPlain}}},
			{Runs: []text.Run{{Text: "B", Kind: text.KindPlain}}, DelID: "d1"},
			{Runs: []text.Run{{Text: "X", Kind: text.KindPlain}}, AddID: "a1"},
			{Runs: []text.Run{{Text: "C", Kind: text.KindPlain}}},
		},
		Joins: []document.SubstJoin{
			{Targets: []string{"d1", "a1"}, Hand: "corrector"},
		},
	}
}

func TestValidateResolvesAllTables(t *testing.T) {
	abbr := &document.Abbreviation{
		RunID: "ab1",
		Runs: []text.Run{
			{Text: "d", Kind: text.KindAbbr},
			{Text: "omi", Kind: text.KindEx},
			{Text: "n", Kind: text.KindAbbr},
			{Text: "u", Kind: text.KindEx},
			{Text: "s", Kind: text.KindAbbr},
		},
	}
	anchor := &document.Anchor{XMLID: "A_V_MT_1Kgs-3-4", Scheme: "Masoretic"}

	doc := pageDoc("ms1", anchor, substitution("c1"), abbr)
	res := Validate(doc, Options{Layout: structure.LayoutPage})

	if res.Rejected {
		t.Fatalf("document rejected: %+v", res.Diagnostics)
	}
	if len(res.Versions) != 1 {
		t.Fatalf("got %d resolved passages, want 1", len(res.Versions))
	}
	var texts []string
	for _, v := range res.Versions[0].Versions {
		texts = append(texts, v.Text)
	}
	if diff := cmp.Diff([]string{"ABC", "AXC"}, texts); diff != "" {
		t.Errorf("version texts mismatch (-want +got):\n%s", diff)
	}
	forms, ok := res.Abbreviations["ab1"]
	if !ok {
		t.Fatal("abbreviation ab1 missing from table")
	}
	if forms.Expanded != "dominus" {
		t.Errorf("Expanded = %q, want dominus", forms.Expanded)
	}
	if len(res.Languages) == 0 {
		t.Error("no effective languages resolved")
	}
	if got := res.Anchors; got == nil {
		t.Error("anchor set not collected")
	}
}

func TestValidateRejectedDocumentKeepsPartialTables(t *testing.T) {
	bad := &document.Correction{
		PassageID: "broken",
		Segments: []document.Segment{
			{Runs: []text.Run{{Text: "A", Kind: text.KindPlain}}, DelID: "d1"},
		},
		Joins: []document.SubstJoin{
			{Targets: []string{"nope"}},
		},
	}
	doc := pageDoc("ms1", substitution("ok"), bad)
	res := Validate(doc, Options{Layout: structure.LayoutPage})

	if !res.Rejected {
		t.Fatal("reference error did not reject the document")
	}
	if len(res.Versions) != 1 || res.Versions[0].PassageID != "ok" {
		t.Errorf("partial resolution lost: %+v", res.Versions)
	}
	if len(res.Diagnostics) == 0 {
		t.Error("diagnostics empty for rejected document")
	}
}

func TestBatchFailIndependent(t *testing.T) {
	good := pageDoc("good", substitution("c1"))
	bad := pageDoc("bad", &document.Gap{Reason: "illegible", Unit: "character"})

	b := &Batch{Opts: Options{Layout: structure.LayoutPage}}
	results, _, err := b.Run(context.Background(), []*document.Document{good, bad})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Rejected {
		t.Errorf("good document rejected: %+v", results[0].Diagnostics)
	}
	if !results[1].Rejected {
		t.Error("bad document accepted")
	}
}

func TestBatchAnchorCollisionAcrossDocuments(t *testing.T) {
	a1 := &document.Anchor{XMLID: "A_V_MT_Gen-1-1", Scheme: "Masoretic"}
	a2 := &document.Anchor{XMLID: "A_V_MT_Gen-1-1", Scheme: "Masoretic"}
	docs := []*document.Document{pageDoc("ms1", a1), pageDoc("ms2", a2)}

	b := &Batch{Opts: Options{Layout: structure.LayoutPage, Concurrency: 2}}
	results, index, err := b.Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Reduction is in document order, so the collision lands on ms2.
	if results[0].Rejected {
		t.Errorf("first document rejected: %+v", results[0].Diagnostics)
	}
	if !results[1].Rejected {
		t.Error("colliding document accepted")
	}
	if got := index.Lookup("A_V_MT_Gen-1-1"); len(got) != 2 {
		t.Errorf("index lookup = %v, want both documents", got)
	}
}

func TestBatchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Batch{Opts: Options{Layout: structure.LayoutPage}}
	results, index, err := b.Run(ctx, []*document.Document{pageDoc("ms1")})
	if err == nil {
		t.Fatal("Run ignored cancelled context")
	}
	if results != nil || index != nil {
		t.Errorf("aborted run returned output: results=%v index=%v", results, index)
	}
}

func TestBatchEmpty(t *testing.T) {
	b := &Batch{Opts: Options{Layout: structure.LayoutPage}}
	results, index, err := b.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	if index.Len() != 0 {
		t.Errorf("index holds %d ids, want 0", index.Len())
	}
}
