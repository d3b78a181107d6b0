package blocks

// Section is a read-only projection over a block sequence: a run of blocks
// anchored by an optional leading heading2. The first section is the unnamed
// "Body" section when no heading precedes it.
type Section struct {
	Heading *Block // nil for the leading Body section
	Items   []int  // indices of non-heading member blocks
	Start   int
	End     int
}

// Title returns the section's display title, falling back to "Body".
func (s Section) Title() string {
	if s.Heading != nil {
		if h, ok := s.Heading.Body.(Heading2); ok && h.Text != "" {
			return h.Text
		}
	}
	return "Body"
}

// Sections partitions a sequence at heading2 boundaries. Recomputed whenever
// the sequence changes; never persisted.
func Sections(seq []Block) []Section {
	var out []Section
	cur := Section{Start: 0, End: -1}
	for i := range seq {
		if seq[i].Kind() == KindHeading2 {
			if cur.Heading != nil || len(cur.Items) > 0 {
				out = append(out, cur)
			}
			cur = Section{Heading: &seq[i], Start: i, End: i}
			continue
		}
		cur.Items = append(cur.Items, i)
		cur.End = i
	}
	out = append(out, cur)
	return out
}
