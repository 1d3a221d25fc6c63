// Package tei loads transcription files into the document tree the engine
// validates. It understands both markup generations: legacy choice/abbr and
// app/rdg, and current expan/abbr/am/ex and add/del/substJoin.
//
// The loader rejects markup it cannot represent; everything rule-shaped
// (attribute presence, ordering, reference integrity) is left to the
// engine so authors get one complete diagnostic list.
package tei

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/core/errors"
	"github.com/tanakhcc/critic-engine/core/text"
	corexml "github.com/tanakhcc/critic-engine/core/xml"
)

// Rule identifiers for load failures.
const (
	RuleRoot         = "tei/root"
	RuleDivType      = "tei/div-type"
	RuleTextOutsideP = "tei/text-outside-p"
	RuleUnexpected   = "tei/unexpected-element"
	RuleVarSeqSyntax = "tei/varseq-syntax"
	RuleOpContent    = "tei/op-content"
)

// LoadFile loads one transcription file. Files ending in .xz are
// decompressed transparently. The document id is the base file name with
// its extensions stripped.
func LoadFile(path string) (*document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".xz") {
		name = strings.TrimSuffix(name, ".xz")
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream %s: %w", path, err)
		}
		r = xr
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return Load(r, name)
}

// Load parses one transcription from r. id becomes the document id.
func Load(r io.Reader, id string) (*document.Document, error) {
	parsed, err := corexml.Parse(r)
	if err != nil {
		return nil, err
	}
	root := parsed.Root()
	if root == nil || root.Name() != "TEI" {
		return nil, errors.NewStructural(RuleRoot, id, "root element is not TEI")
	}

	doc := &document.Document{ID: id}
	if fd := root.Find("teiHeader/fileDesc"); fd != nil {
		doc.Meta = loadMeta(fd)
	}

	body := root.Find("text/body")
	if body == nil {
		return nil, errors.NewStructural(RuleRoot, id, "document has no text body")
	}
	doc.Lang = body.Attr("xml:lang")

	l := &loader{}
	for _, div := range body.Elements() {
		if div.Name() != "div" {
			return nil, errors.NewStructural(RuleUnexpected, id,
				fmt.Sprintf("body contains <%s>, want <div>", div.Name()))
		}
		u, err := l.loadUnit(div, "")
		if err != nil {
			return nil, err
		}
		doc.Units = append(doc.Units, u)
	}
	return doc, nil
}

// loadMeta pulls the header fields out of fileDesc. Presence checking is
// the structural validator's job.
func loadMeta(fd *corexml.Node) document.Meta {
	return document.Meta{
		Title:       fd.FindText("titleStmt/title"),
		Publication: fd.FindText("publicationStmt/p"),
		MsName:      fd.FindText("sourceDesc/msDesc/msIdentifier/msName"),
		PageNr:      fd.FindText("sourceDesc/msDesc/msIdentifier/idno"),
		Institution: fd.FindText("sourceDesc/msDesc/msIdentifier/institution"),
		Collection:  fd.FindText("sourceDesc/msDesc/msIdentifier/collection"),
		HandDesc:    fd.FindText("sourceDesc/msDesc/physDesc/handDesc/summary"),
		ScriptDesc:  fd.FindText("sourceDesc/msDesc/physDesc/scriptDesc/summary"),
	}
}

// loader carries the per-document counters for synthesized block ids.
type loader struct {
	abbrSeq    int
	passageSeq int
}

// loadUnit builds one structural unit from a div, recursing into nested
// divs. Lines get their inline blocks parsed.
func (l *loader) loadUnit(div *corexml.Node, parentLoc string) (*document.StructuralUnit, error) {
	kind := document.UnitKind(div.Attr("type"))
	if !kind.IsValid() {
		return nil, errors.NewStructural(RuleDivType, parentLoc,
			fmt.Sprintf("div type %q is not page, column, or line", div.Attr("type")))
	}

	u := &document.StructuralUnit{
		Kind: kind,
		N:    div.Attr("n"),
		Lang: div.Attr("xml:lang"),
	}
	u.Location = unitLoc(parentLoc, kind, u.N)

	if kind == document.UnitLine {
		blocks, err := l.loadBlocks(div, u.Location)
		if err != nil {
			return nil, err
		}
		u.Blocks = blocks
		return u, nil
	}

	for _, child := range div.Nodes() {
		if child.IsText() {
			if strings.TrimSpace(child.Text()) != "" {
				return nil, errors.NewStructural(RuleTextOutsideP, u.Location,
					"text directly inside a non-line division")
			}
			continue
		}
		if child.Name() != "div" {
			return nil, errors.NewStructural(RuleUnexpected, u.Location,
				fmt.Sprintf("%s contains <%s>, want <div>", kind, child.Name()))
		}
		nested, err := l.loadUnit(child, u.Location)
		if err != nil {
			return nil, err
		}
		u.Children = append(u.Children, nested)
	}
	return u, nil
}

func unitLoc(parent string, kind document.UnitKind, n string) string {
	name := n
	if name == "" {
		name = "?"
	}
	if parent == "" {
		return fmt.Sprintf("%s %s", kind, name)
	}
	return fmt.Sprintf("%s/%s %s", parent, kind, name)
}

// loadBlocks parses the inline content of one line div.
func (l *loader) loadBlocks(line *corexml.Node, loc string) ([]document.Block, error) {
	var blocks []document.Block
	for _, n := range line.Nodes() {
		if n.IsText() {
			if strings.TrimSpace(n.Text()) != "" {
				return nil, errors.NewStructural(RuleTextOutsideP, loc,
					"line text must be wrapped in <p>")
			}
			continue
		}
		switch n.Name() {
		case "p":
			pBlocks, err := l.loadP(n, loc)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, pBlocks...)
		case "gap":
			blocks = append(blocks, loadGap(n, loc))
		case "anchor":
			blocks = append(blocks, &document.Anchor{
				XMLID:   n.Attr("xml:id"),
				Scheme:  n.Attr("type"),
				Subtype: n.Attr("subtype"),
				Loc:     loc,
			})
		case "space":
			quantity, _ := strconv.Atoi(n.Attr("quantity"))
			blocks = append(blocks, &document.Space{
				Quantity: quantity,
				Unit:     n.Attr("unit"),
				Loc:      loc,
			})
		case "expan":
			blocks = append(blocks, l.loadExpan(n, loc))
		case "app":
			app, err := l.loadApp(n, loc)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, app)
		case "subst":
			subst, err := l.loadSubst(n, loc)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, subst)
		default:
			return nil, errors.NewStructural(RuleUnexpected, loc,
				fmt.Sprintf("unexpected <%s> in line", n.Name()))
		}
	}
	return blocks, nil
}

// loadP parses a paragraph wrapper: plain text, damage, and legacy choice
// abbreviations. Text and damage coalesce into one Text block; each choice
// becomes its own Abbreviation block.
func (l *loader) loadP(p *corexml.Node, loc string) ([]document.Block, error) {
	var blocks []document.Block
	var runs []text.Run
	flush := func() {
		if len(runs) > 0 {
			blocks = append(blocks, &document.Text{
				Lang: p.Attr("xml:lang"),
				Runs: runs,
				Loc:  loc,
			})
			runs = nil
		}
	}

	for _, n := range p.Nodes() {
		if n.IsText() {
			if s := strings.TrimSpace(n.Text()); s != "" {
				runs = append(runs, text.Run{Text: s, Kind: text.KindPlain})
			}
			continue
		}
		switch n.Name() {
		case "damage":
			runs = append(runs, text.Run{
				Text:  strings.TrimSpace(n.InnerText()),
				Lang:  n.Attr("xml:lang"),
				Kind:  text.KindDamaged,
				Agent: n.Attr("agent"),
				Cert:  n.Attr("cert"),
			})
		case "choice":
			flush()
			blocks = append(blocks, l.loadChoice(n, loc))
		case "expan":
			flush()
			blocks = append(blocks, l.loadExpan(n, loc))
		default:
			return nil, errors.NewStructural(RuleUnexpected, loc,
				fmt.Sprintf("unexpected <%s> in paragraph", n.Name()))
		}
	}
	flush()
	return blocks, nil
}

// loadChoice parses the legacy abbreviation markup: one surface form and
// one expansion, each a flat string.
func (l *loader) loadChoice(choice *corexml.Node, loc string) *document.Abbreviation {
	ab := &document.Abbreviation{
		RunID: l.abbrID(choice.Attr("xml:id")),
		Lang:  choice.Attr("xml:lang"),
		Loc:   loc,
	}
	if abbr := choice.Find("abbr"); abbr != nil {
		ab.Runs = append(ab.Runs, text.Run{
			Text: strings.TrimSpace(abbr.InnerText()),
			Lang: abbr.Attr("xml:lang"),
			Kind: text.KindAbbr,
		})
	}
	if expan := choice.Find("expan"); expan != nil {
		ab.Runs = append(ab.Runs, text.Run{
			Text: strings.TrimSpace(expan.InnerText()),
			Lang: expan.Attr("xml:lang"),
			Kind: text.KindEx,
		})
	}
	return ab
}

// loadExpan parses the current abbreviation markup: interleaved abbr, am,
// and ex children in manuscript order. Bare text inside expan counts as
// surface material shared with the expansion.
func (l *loader) loadExpan(expan *corexml.Node, loc string) *document.Abbreviation {
	ab := &document.Abbreviation{
		RunID: l.abbrID(expan.Attr("xml:id")),
		Lang:  expan.Attr("xml:lang"),
		Loc:   loc,
	}
	for _, n := range expan.Nodes() {
		if n.IsText() {
			if s := strings.TrimSpace(n.Text()); s != "" {
				ab.Runs = append(ab.Runs, text.Run{Text: s, Kind: text.KindAbbr})
			}
			continue
		}
		var kind text.Kind
		switch n.Name() {
		case "abbr":
			kind = text.KindAbbr
		case "am":
			kind = text.KindAM
		case "ex":
			kind = text.KindEx
		default:
			// Foreign elements become plain runs; the reconstructor
			// rejects them with a precise rule id.
			kind = text.KindPlain
		}
		ab.Runs = append(ab.Runs, text.Run{
			Text: strings.TrimSpace(n.InnerText()),
			Lang: n.Attr("xml:lang"),
			Kind: kind,
		})
	}
	return ab
}

func (l *loader) abbrID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	l.abbrSeq++
	return fmt.Sprintf("ab%d", l.abbrSeq)
}

// loadApp parses the legacy correction markup: full readings ordered by
// their varSeq attribute.
func (l *loader) loadApp(app *corexml.Node, loc string) (*document.Correction, error) {
	c := &document.Correction{
		PassageID: l.passageID(app.Attr("xml:id")),
		Lang:      app.Attr("xml:lang"),
		Loc:       loc,
	}
	for _, rdg := range app.Elements() {
		if rdg.Name() != "rdg" {
			return nil, errors.NewStructural(RuleUnexpected, loc,
				fmt.Sprintf("unexpected <%s> in app", rdg.Name()))
		}
		varSeq, err := strconv.Atoi(rdg.Attr("varSeq"))
		if err != nil {
			return nil, errors.NewStructural(RuleVarSeqSyntax, loc,
				fmt.Sprintf("varSeq %q is not an integer", rdg.Attr("varSeq")))
		}
		reading := document.Reading{
			VarSeq: varSeq,
			Hand:   rdg.Attr("hand"),
			Lang:   rdg.Attr("xml:lang"),
			Loc:    loc,
		}
		if s := strings.TrimSpace(rdg.InnerText()); s != "" {
			reading.Runs = []text.Run{{Text: s, Kind: text.KindPlain, Hand: reading.Hand}}
		}
		c.Readings = append(c.Readings, reading)
	}
	return c, nil
}

// loadSubst parses the current correction markup: base text with add/del
// spans embedded in document order, grouped into edit events by substJoin
// records.
func (l *loader) loadSubst(subst *corexml.Node, loc string) (*document.Correction, error) {
	c := &document.Correction{
		PassageID: l.passageID(subst.Attr("xml:id")),
		Lang:      subst.Attr("xml:lang"),
		BaseHand:  subst.Attr("hand"),
		Loc:       loc,
	}
	for _, n := range subst.Nodes() {
		if n.IsText() {
			if s := strings.TrimSpace(n.Text()); s != "" {
				c.Segments = append(c.Segments, document.Segment{
					Runs: []text.Run{{Text: s, Kind: text.KindPlain}},
					Loc:  loc,
				})
			}
			continue
		}
		switch n.Name() {
		case "add", "del":
			seg, err := loadOp(n, "", "", loc)
			if err != nil {
				return nil, err
			}
			c.Segments = append(c.Segments, seg)
		case "gap":
			g := loadGap(n, loc)
			c.Segments = append(c.Segments, document.Segment{Gap: g, Loc: loc})
		case "substJoin":
			c.Joins = append(c.Joins, document.SubstJoin{
				Targets: splitTargets(n.Attr("target")),
				Hand:    n.Attr("hand"),
				Loc:     loc,
			})
		case "p":
			if s := strings.TrimSpace(n.InnerText()); s != "" {
				c.Segments = append(c.Segments, document.Segment{
					Runs: []text.Run{{Text: s, Kind: text.KindPlain}},
					Loc:  loc,
				})
			}
		default:
			return nil, errors.NewStructural(RuleUnexpected, loc,
				fmt.Sprintf("unexpected <%s> in subst", n.Name()))
		}
	}
	return c, nil
}

// loadOp parses one add or del span into a single segment. An operation is
// one span of the base sequence, so its content is either text, one gap,
// or exactly one nested operation (text both added and later struck
// through); anything richer would split the operation's id across
// positions and is rejected.
func loadOp(op *corexml.Node, addID, delID, loc string) (document.Segment, error) {
	switch op.Name() {
	case "add":
		addID = op.Attr("xml:id")
	case "del":
		delID = op.Attr("xml:id")
	}

	var runs []text.Run
	var gap *document.Gap
	var nested *corexml.Node
	for _, n := range op.Nodes() {
		if n.IsText() {
			if s := strings.TrimSpace(n.Text()); s != "" {
				runs = append(runs, text.Run{Text: s, Kind: text.KindPlain})
			}
			continue
		}
		switch n.Name() {
		case "add", "del":
			if nested != nil {
				return document.Segment{}, errors.NewStructural(RuleOpContent, loc,
					"operation nests more than one operation")
			}
			nested = n
		case "gap":
			if gap != nil {
				return document.Segment{}, errors.NewStructural(RuleOpContent, loc,
					"operation contains more than one gap")
			}
			gap = loadGap(n, loc)
		default:
			return document.Segment{}, errors.NewStructural(RuleUnexpected, loc,
				fmt.Sprintf("unexpected <%s> in operation", n.Name()))
		}
	}

	if nested != nil {
		if len(runs) > 0 || gap != nil {
			return document.Segment{}, errors.NewStructural(RuleOpContent, loc,
				"operation mixes direct content with a nested operation")
		}
		return loadOp(nested, addID, delID, loc)
	}
	if gap != nil && len(runs) > 0 {
		return document.Segment{}, errors.NewStructural(RuleOpContent, loc,
			"operation mixes text with a gap")
	}
	return document.Segment{Runs: runs, Gap: gap, AddID: addID, DelID: delID, Loc: loc}, nil
}

func loadGap(n *corexml.Node, loc string) *document.Gap {
	count, _ := strconv.Atoi(n.Attr("n"))
	return &document.Gap{
		Reason:        n.Attr("reason"),
		Unit:          n.Attr("unit"),
		N:             count,
		ExtentUnknown: n.Attr("extent") == "unknown",
		Cert:          n.Attr("cert"),
		Loc:           loc,
	}
}

func (l *loader) passageID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	l.passageSeq++
	return fmt.Sprintf("passage%d", l.passageSeq)
}

// splitTargets splits a substJoin target list and strips the URI '#'
// prefix from each reference.
func splitTargets(s string) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		out = append(out, strings.TrimPrefix(t, "#"))
	}
	return out
}
