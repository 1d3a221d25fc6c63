package document

// BreakKind is the kind of a layout break in the streamed view.
type BreakKind string

// Break kinds.
const (
	BreakLine   BreakKind = "line"
	BreakColumn BreakKind = "column"
	BreakPage   BreakKind = "page"
)

// Break separates structural units in the streamed view.
type Break struct {
	Kind BreakKind
	// N is the ordinal name of the unit the break opens.
	N   string
	Loc string
}

// Location implements Block.
func (b *Break) Location() string { return b.Loc }

// Stream flattens the structural tree into a single block sequence with
// explicit breaks, the form transcription editors work on. The first unit
// of each kind also emits its opening break so the stream round-trips.
func (d *Document) Stream() []Block {
	var blocks []Block
	var rec func(us []*StructuralUnit)
	rec = func(us []*StructuralUnit) {
		for _, u := range us {
			var kind BreakKind
			switch u.Kind {
			case UnitPage:
				kind = BreakPage
			case UnitColumn:
				kind = BreakColumn
			case UnitLine:
				kind = BreakLine
			}
			blocks = append(blocks, &Break{Kind: kind, N: u.N, Loc: u.Location})
			blocks = append(blocks, u.Blocks...)
			rec(u.Children)
		}
	}
	rec(d.Units)
	return blocks
}

// Unstream rebuilds a structural tree from a streamed block sequence.
// Blocks before the first line break are dropped the same way the editor
// drops them; the inverse of Stream on well-formed input.
func Unstream(blocks []Block) []*StructuralUnit {
	var top []*StructuralUnit
	var page, column, line *StructuralUnit

	attach := func(u *StructuralUnit) {
		switch u.Kind {
		case UnitPage:
			top = append(top, u)
		case UnitColumn:
			if page != nil {
				page.Children = append(page.Children, u)
			} else {
				top = append(top, u)
			}
		case UnitLine:
			if column != nil {
				column.Children = append(column.Children, u)
			} else if page != nil {
				page.Children = append(page.Children, u)
			} else {
				top = append(top, u)
			}
		}
	}

	for _, b := range blocks {
		if br, ok := b.(*Break); ok {
			u := &StructuralUnit{N: br.N, Location: br.Loc}
			switch br.Kind {
			case BreakPage:
				u.Kind = UnitPage
				page, column, line = u, nil, nil
			case BreakColumn:
				u.Kind = UnitColumn
				column, line = u, nil
			case BreakLine:
				u.Kind = UnitLine
				line = u
			}
			attach(u)
			continue
		}
		if line != nil {
			line.Blocks = append(line.Blocks, b)
		}
	}
	return top
}
