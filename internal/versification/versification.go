// Package versification validates verse anchors: scheme identifiers
// against an extensible registry, verse-id syntax against the OSIS book
// set, and anchor-id uniqueness across the whole corpus.
package versification

import (
	"fmt"
	"sort"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/tanakhcc/critic-engine/core/document"
	"github.com/tanakhcc/critic-engine/internal/diag"
)

// Rule identifiers for versification diagnostics.
const (
	RuleAnchorID       = "versification/anchor-id"
	RuleScheme         = "versification/scheme"
	RuleShorthand      = "versification/shorthand"
	RuleBook           = "versification/book"
	RuleCommonAccord   = "versification/common-accord"
	RuleAnchorConflict = "versification/anchor-conflict"
)

// Scheme is one chapter/verse numbering convention.
type Scheme struct {
	// Name is the long form used in the anchor's type attribute.
	Name string
	// Shorthand is the short form embedded in anchor ids.
	Shorthand string
	// EditorialOnly marks schemes whose precondition cannot be machine
	// verified. Anchors under such a scheme get an informational note.
	EditorialOnly bool
}

// Registry holds the known versification schemes. Zero value is unusable;
// construct with NewRegistry and extend with Register.
type Registry struct {
	byName      map[string]Scheme
	byShorthand map[string]Scheme
}

// NewRegistry returns a registry preloaded with the standard schemes.
// The Common scheme requires all major schemes to concur on the verse
// boundary, which only editorial review can confirm, so it is marked
// editorial-only. Canonical Septuagint numbering and the precedence of a
// manuscript's natural scheme are deliberately not fixed here; projects
// register their own entries instead.
func NewRegistry() *Registry {
	r := &Registry{
		byName:      make(map[string]Scheme),
		byShorthand: make(map[string]Scheme),
	}
	for _, s := range []Scheme{
		{Name: "Common", Shorthand: "C", EditorialOnly: true},
		{Name: "Present", Shorthand: "P"},
		{Name: "Masoretic", Shorthand: "MT"},
		{Name: "Masoretic-Aleppo", Shorthand: "MTA"},
		{Name: "Septuagint", Shorthand: "LXX"},
		{Name: "Vulgata", Shorthand: "VUL"},
		{Name: "Samaritan-Pentateuch", Shorthand: "SP"},
		{Name: "ESV", Shorthand: "ESV"},
	} {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scheme.
func (r *Registry) Register(s Scheme) {
	r.byName[s.Name] = s
	r.byShorthand[s.Shorthand] = s
}

// ByName looks a scheme up by its long form.
func (r *Registry) ByName(name string) (Scheme, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// ByShorthand looks a scheme up by its short form.
func (r *Registry) ByShorthand(short string) (Scheme, bool) {
	s, ok := r.byShorthand[short]
	return s, ok
}

// Schemes returns all registered schemes, sorted by name.
func (r *Registry) Schemes() []Scheme {
	out := make([]Scheme, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// VerseID is a parsed book-chapter-verse identifier.
type VerseID struct {
	Book    string
	Chapter int
	Verse   int
}

// String renders the id in its hyphenated form.
func (v VerseID) String() string {
	return fmt.Sprintf("%s-%d-%d", v.Book, v.Chapter, v.Verse)
}

// AnchorID is a fully parsed anchor identifier.
type AnchorID struct {
	Shorthand string
	Verse     VerseID
}

// Grammar for anchor ids: A_V_{shorthand}_{book}-{chapter}-{verse}.
// Book names may carry a numeric prefix (1Kgs, 2Sam).
//
//nolint:govet // participle grammar tags are not standard struct tags
type anchorGrammar struct {
	Shorthand string        `parser:"'A' '_' 'V' '_' @Ident '_'"`
	Verse     *verseGrammar `parser:"@@"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type verseGrammar struct {
	BookPrefix string `parser:"@Int?"`
	BookName   string `parser:"@Ident"`
	Chapter    int    `parser:"'-' @Int"`
	Verse      int    `parser:"'-' @Int"`
}

var idLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9]*`},
	{Name: "Punct", Pattern: `[_\-]`},
})

var (
	anchorParser = participle.MustBuild[anchorGrammar](participle.Lexer(idLexer))
	verseParser  = participle.MustBuild[verseGrammar](participle.Lexer(idLexer))
)

// ParseVerseID parses a book-chapter-verse identifier such as "1Kgs-3-4".
func ParseVerseID(s string) (VerseID, error) {
	p, err := verseParser.ParseString("", s)
	if err != nil {
		return VerseID{}, fmt.Errorf("invalid verse id %q: %w", s, err)
	}
	return VerseID{
		Book:    p.BookPrefix + p.BookName,
		Chapter: p.Chapter,
		Verse:   p.Verse,
	}, nil
}

// ParseAnchorID parses a full anchor id such as "A_V_MT_1Kgs-3-4".
func ParseAnchorID(s string) (AnchorID, error) {
	p, err := anchorParser.ParseString("", s)
	if err != nil {
		return AnchorID{}, fmt.Errorf("invalid anchor id %q: %w", s, err)
	}
	return AnchorID{
		Shorthand: p.Shorthand,
		Verse: VerseID{
			Book:    p.Verse.BookPrefix + p.Verse.BookName,
			Chapter: p.Verse.Chapter,
			Verse:   p.Verse.Verse,
		},
	}, nil
}

// osisBooks is the OSIS book-abbreviation set.
var osisBooks = map[string]bool{
	"Gen": true, "Exod": true, "Lev": true, "Num": true, "Deut": true,
	"Josh": true, "Judg": true, "Ruth": true, "1Sam": true, "2Sam": true,
	"1Kgs": true, "2Kgs": true, "1Chr": true, "2Chr": true, "Ezra": true,
	"Neh": true, "Esth": true, "Job": true, "Ps": true, "Prov": true,
	"Eccl": true, "Song": true, "Isa": true, "Jer": true, "Lam": true,
	"Ezek": true, "Dan": true, "Hos": true, "Joel": true, "Amos": true,
	"Obad": true, "Jonah": true, "Mic": true, "Nah": true, "Hab": true,
	"Zeph": true, "Hag": true, "Zech": true, "Mal": true,
	"Matt": true, "Mark": true, "Luke": true, "John": true, "Acts": true,
	"Rom": true, "1Cor": true, "2Cor": true, "Gal": true, "Eph": true,
	"Phil": true, "Col": true, "1Thess": true, "2Thess": true,
	"1Tim": true, "2Tim": true, "Titus": true, "Phlm": true, "Heb": true,
	"Jas": true, "1Pet": true, "2Pet": true, "1John": true, "2John": true,
	"3John": true, "Jude": true, "Rev": true,
}

// IsOSISBook reports whether abbr is a known OSIS book abbreviation.
func IsOSISBook(abbr string) bool {
	return osisBooks[abbr]
}

// Validator checks anchors against a registry.
type Validator struct {
	reg *Registry
}

// NewValidator creates an anchor validator.
func NewValidator(reg *Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate checks one anchor and records it in the document's anchor set.
// Malformed ids, unknown schemes, and shorthand disagreement are fatal;
// a book outside the OSIS set is advisory, since manuscripts of
// extra-canonical works carry project-local abbreviations.
func (v *Validator) Validate(a *document.Anchor, set *DocAnchors, r *diag.Reporter) {
	parsed, err := ParseAnchorID(a.XMLID)
	if err != nil {
		r.Error(RuleAnchorID, a.Loc, err.Error())
		return
	}

	scheme, known := v.reg.ByShorthand(parsed.Shorthand)
	if !known {
		r.Error(RuleScheme, a.Loc, fmt.Sprintf(
			"anchor %q uses unknown scheme shorthand %q", a.XMLID, parsed.Shorthand))
	}

	// Two attribute conventions are in use: the current markup declares
	// type="Verse" and carries the scheme in subtype, the older markup
	// carries the scheme long form in type directly. Either way the
	// declared scheme must name what the id's shorthand means.
	declared := a.Scheme
	if a.Scheme == "Verse" {
		declared = a.Subtype
	}
	switch {
	case declared == "":
	case known && declared != scheme.Name && declared != scheme.Shorthand:
		r.Error(RuleShorthand, a.Loc, fmt.Sprintf(
			"anchor %q declares scheme %q but its id shorthand %q means %q",
			a.XMLID, declared, parsed.Shorthand, scheme.Name))
	case !known:
		if _, byName := v.reg.ByName(declared); !byName {
			if _, byShort := v.reg.ByShorthand(declared); !byShort {
				r.Error(RuleScheme, a.Loc, fmt.Sprintf(
					"anchor %q declares unknown scheme %q", a.XMLID, declared))
			}
		}
	}

	if !IsOSISBook(parsed.Verse.Book) {
		r.Warn(RuleBook, a.Loc, fmt.Sprintf(
			"book %q is not an OSIS abbreviation", parsed.Verse.Book))
	}

	if known && scheme.EditorialOnly {
		r.Info(RuleCommonAccord, a.Loc, fmt.Sprintf(
			"scheme %q requires editorial confirmation that all major schemes concur at %s",
			scheme.Name, parsed.Verse))
	}

	set.Add(a.XMLID, a.Loc)
}
