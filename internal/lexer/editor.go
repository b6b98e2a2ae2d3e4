package lexer

import (
	"sort"
	"strings"
)

// Edit replaces the byte range [Start, End) of the original text with Text.
// A zero-width range inserts.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Editor collects non-overlapping edits against one text and applies them
// together.
type Editor struct {
	text  string
	edits []Edit
}

// NewEditor returns an Editor for text.
func NewEditor(text string) *Editor {
	return &Editor{text: text}
}

// Replace schedules the replacement of [start, end) with text.
func (e *Editor) Replace(start, end int, text string) {
	e.edits = append(e.edits, Edit{Start: start, End: end, Text: text})
}

// Insert schedules an insertion of text at offset at.
func (e *Editor) Insert(at int, text string) {
	e.Replace(at, at, text)
}

// Len returns the number of scheduled edits.
func (e *Editor) Len() int {
	return len(e.edits)
}

// Apply returns the edited text. Edits are applied in offset order, and at
// equal offsets insertions come before replacements; an edit overlapping an
// earlier one is dropped. With no edits the original string is returned
// unchanged.
func (e *Editor) Apply() string {
	if len(e.edits) == 0 {
		return e.text
	}
	edits := make([]Edit, len(e.edits))
	copy(edits, e.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		return edits[i].End == edits[i].Start && edits[j].End != edits[j].Start
	})

	var b strings.Builder
	b.Grow(len(e.text))
	pos := 0
	for _, ed := range edits {
		if ed.Start < pos || ed.End < ed.Start || ed.End > len(e.text) {
			continue
		}
		b.WriteString(e.text[pos:ed.Start])
		b.WriteString(ed.Text)
		pos = ed.End
	}
	b.WriteString(e.text[pos:])
	return b.String()
}
