package tei

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ulikunitz/xz"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/errors"
	"github.com/tanakhcc/critic-engine/core/text"
)

const header = `<teiHeader><fileDesc>
  <titleStmt><title>Kings</title></titleStmt>
  <publicationStmt><p>Unpublished transcription</p></publicationStmt>
  <sourceDesc><msDesc>
    <msIdentifier>
      <institution>National Library</institution>
      <collection>Oriental</collection>
      <idno>14v</idno>
      <msName>Codex T</msName>
    </msIdentifier>
    <physDesc>
      <handDesc><summary>two hands</summary></handDesc>
      <scriptDesc><summary>square script</summary></scriptDesc>
    </physDesc>
  </msDesc></sourceDesc>
</fileDesc></teiHeader>`

func wrap(body string) string {
	return `<TEI xmlns="http://www.tei-c.org/ns/1.0">` + header +
		`<text><body xml:lang="hbo-Hebr">` + body + `</body></text></TEI>`
}

func load(t *testing.T, body string) *document.Document {
	t.Helper()
	doc, err := Load(strings.NewReader(wrap(body)), "ms1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return doc
}

func TestLoadHeader(t *testing.T) {
	doc := load(t, `<div type="column" n="1"><div type="line" n="1"><p>text</p></div></div>`)

	want := document.Meta{
		Title:       "Kings",
		Publication: "Unpublished transcription",
		MsName:      "Codex T",
		PageNr:      "14v",
		Institution: "National Library",
		Collection:  "Oriental",
		HandDesc:    "two hands",
		ScriptDesc:  "square script",
	}
	if diff := cmp.Diff(want, doc.Meta); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
	if doc.Lang != "hbo-Hebr" {
		t.Errorf("body lang = %q", doc.Lang)
	}
}

func TestLoadPageLayout(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1">
	  <div type="line" n="1"><p>first</p></div>
	  <div type="line" n="2"><p>second</p></div>
	</div>
	<div type="column" n="2">
	  <div type="line" n="1"><p>third</p></div>
	</div>`)

	if len(doc.Units) != 2 {
		t.Fatalf("got %d columns, want 2", len(doc.Units))
	}
	col := doc.Units[0]
	if col.Kind != document.UnitColumn || col.N != "1" {
		t.Errorf("column = %+v", col)
	}
	if len(col.Children) != 2 || col.Children[0].Kind != document.UnitLine {
		t.Fatalf("lines = %+v", col.Children)
	}
	if got := col.Children[1].Location; got != "column 1/line 2" {
		t.Errorf("line location = %q", got)
	}
}

func TestLoadManuscriptLayout(t *testing.T) {
	doc := load(t, `
	<div type="page" n="001r">
	  <div type="column" n="1"><div type="line" n="1"><p>a</p></div></div>
	</div>`)

	if doc.Units[0].Kind != document.UnitPage || doc.Units[0].N != "001r" {
		t.Errorf("page = %+v", doc.Units[0])
	}
}

func TestLoadLineContent(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="3">
	  <gap reason="lost" n="2" unit="character" cert="0.8"/>
	  <anchor xml:id="A_V_MT_1Kgs-3-4" type="Masoretic"/>
	  <p>visible <damage cert="low" agent="water">damaged</damage></p>
	  <space quantity="3" unit="character"/>
	</div></div>`)

	blocks := doc.Units[0].Children[0].Blocks
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4: %+v", len(blocks), blocks)
	}

	gap, ok := blocks[0].(*document.Gap)
	if !ok || gap.Reason != "lost" || gap.N != 2 || gap.Unit != "character" || gap.Cert != "0.8" {
		t.Errorf("gap = %+v", blocks[0])
	}
	anchor, ok := blocks[1].(*document.Anchor)
	if !ok || anchor.XMLID != "A_V_MT_1Kgs-3-4" || anchor.Scheme != "Masoretic" {
		t.Errorf("anchor = %+v", blocks[1])
	}
	txt, ok := blocks[2].(*document.Text)
	if !ok || len(txt.Runs) != 2 {
		t.Fatalf("text = %+v", blocks[2])
	}
	if txt.Runs[0].Kind != text.KindPlain || txt.Runs[0].Text != "visible" {
		t.Errorf("run 0 = %+v", txt.Runs[0])
	}
	dmg := txt.Runs[1]
	if dmg.Kind != text.KindDamaged || dmg.Text != "damaged" || dmg.Agent != "water" || dmg.Cert != "low" {
		t.Errorf("damaged run = %+v", dmg)
	}
	space, ok := blocks[3].(*document.Space)
	if !ok || space.Quantity != 3 || space.Unit != "character" {
		t.Errorf("space = %+v", blocks[3])
	}
}

func TestLoadLegacyAbbreviation(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="1">
	  <p><choice><abbr xml:lang="grc">JHWH</abbr><expan xml:lang="hbo-Hebr">Jahwe</expan></choice></p>
	</div></div>`)

	ab, ok := doc.Units[0].Children[0].Blocks[0].(*document.Abbreviation)
	if !ok {
		t.Fatalf("block = %+v", doc.Units[0].Children[0].Blocks[0])
	}
	if ab.RunID != "ab1" {
		t.Errorf("run id = %q, want ab1", ab.RunID)
	}
	wantRuns := []text.Run{
		{Text: "JHWH", Lang: "grc", Kind: text.KindAbbr},
		{Text: "Jahwe", Lang: "hbo-Hebr", Kind: text.KindEx},
	}
	if diff := cmp.Diff(wantRuns, ab.Runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCurrentAbbreviation(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="1">
	  <expan xml:id="ns1"><abbr>d</abbr><ex>omi</ex><abbr>n</abbr><ex>u</ex><abbr>s</abbr><am>&#773;</am></expan>
	</div></div>`)

	ab := doc.Units[0].Children[0].Blocks[0].(*document.Abbreviation)
	if ab.RunID != "ns1" {
		t.Errorf("run id = %q, want authored ns1", ab.RunID)
	}
	var kinds []text.Kind
	for _, r := range ab.Runs {
		kinds = append(kinds, r.Kind)
	}
	want := []text.Kind{text.KindAbbr, text.KindEx, text.KindAbbr, text.KindEx, text.KindAbbr, text.KindAM}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("run kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLegacyCorrection(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="1">
	  <app><rdg varSeq="1" hand="firsthand">ABC</rdg><rdg varSeq="2" hand="corrector">AXC</rdg></app>
	</div></div>`)

	c := doc.Units[0].Children[0].Blocks[0].(*document.Correction)
	if c.PassageID != "passage1" {
		t.Errorf("passage id = %q", c.PassageID)
	}
	if len(c.Readings) != 2 {
		t.Fatalf("readings = %+v", c.Readings)
	}
	if c.Readings[0].VarSeq != 1 || c.Readings[0].Hand != "firsthand" ||
		text.Flatten(c.Readings[0].Runs) != "ABC" {
		t.Errorf("reading 1 = %+v", c.Readings[0])
	}
	if c.Readings[1].VarSeq != 2 || text.Flatten(c.Readings[1].Runs) != "AXC" {
		t.Errorf("reading 2 = %+v", c.Readings[1])
	}
}

func TestLoadCurrentCorrection(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="1">
	  <subst xml:id="c1" hand="firsthand">A<del xml:id="d1">B</del><del xml:id="d2"><add xml:id="a1">X</add></del>C<substJoin target="#d1 #a1" hand="corrector"/><substJoin target="#d2" hand="censor"/></subst>
	</div></div>`)

	c := doc.Units[0].Children[0].Blocks[0].(*document.Correction)
	if c.PassageID != "c1" || c.BaseHand != "firsthand" {
		t.Errorf("correction = %+v", c)
	}
	if len(c.Segments) != 4 {
		t.Fatalf("got %d segments, want 4: %+v", len(c.Segments), c.Segments)
	}
	// The nested del(add) collapses to one segment carrying both ids.
	nested := c.Segments[2]
	if nested.AddID != "a1" || nested.DelID != "d2" || text.Flatten(nested.Runs) != "X" {
		t.Errorf("nested segment = %+v", nested)
	}
	wantJoins := []document.SubstJoin{
		{Targets: []string{"d1", "a1"}, Hand: "corrector", Loc: "column 1/line 1"},
		{Targets: []string{"d2"}, Hand: "censor", Loc: "column 1/line 1"},
	}
	if diff := cmp.Diff(wantJoins, c.Joins); diff != "" {
		t.Errorf("joins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGapInsideAddition(t *testing.T) {
	doc := load(t, `
	<div type="column" n="1"><div type="line" n="1">
	  <subst>A<add xml:id="a1"><gap reason="illegible" unit="character" n="2"/></add><substJoin target="#a1"/></subst>
	</div></div>`)

	c := doc.Units[0].Children[0].Blocks[0].(*document.Correction)
	seg := c.Segments[1]
	if seg.Gap == nil || seg.AddID != "a1" || seg.Gap.N != 2 {
		t.Errorf("gap segment = %+v", seg)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "text outside p",
			body: `<div type="column" n="1"><div type="line" n="1">bare text</div></div>`,
		},
		{
			name: "unknown div type",
			body: `<div type="chapter" n="1"/>`,
		},
		{
			name: "varSeq not an integer",
			body: `<div type="column" n="1"><div type="line" n="1"><app><rdg varSeq="first">A</rdg></app></div></div>`,
		},
		{
			name: "operation mixes text with nested operation",
			body: `<div type="column" n="1"><div type="line" n="1"><subst><del xml:id="d1">a<add xml:id="a1">b</add></del><substJoin target="#d1 #a1"/></subst></div></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(wrap(tt.body)), "ms1")
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !errors.Is(err, errors.ErrStructural) {
				t.Errorf("error %v does not unwrap to ErrStructural", err)
			}
		})
	}
}

func TestLoadFilePlainAndXZ(t *testing.T) {
	content := wrap(`<div type="column" n="1"><div type="line" n="1"><p>text</p></div></div>`)
	dir := t.TempDir()

	plain := filepath.Join(dir, "ms1.xml")
	if err := os.WriteFile(plain, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	compressed := filepath.Join(dir, "ms2.xml.xz")
	f, err := os.Create(compressed)
	if err != nil {
		t.Fatal(err)
	}
	w, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct{ path, wantID string }{
		{plain, "ms1"},
		{compressed, "ms2"},
	} {
		doc, err := LoadFile(tc.path)
		if err != nil {
			t.Fatalf("LoadFile(%s) failed: %v", tc.path, err)
		}
		if doc.ID != tc.wantID {
			t.Errorf("document id = %q, want %q", doc.ID, tc.wantID)
		}
		if len(doc.Units) != 1 {
			t.Errorf("units = %+v", doc.Units)
		}
	}
}
