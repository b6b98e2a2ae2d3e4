package lexer

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies the lexical class of a segment.
type Kind uint8

const (
	// Code is anything that is not a literal or comment.
	Code Kind = iota
	// LineComment is a // comment or a leading hashbang line.
	LineComment
	// BlockComment is a /* */ comment.
	BlockComment
	// String is a single- or double-quoted string literal, quotes included.
	String
	// Template is the literal text of a template, backticks included,
	// excluding any ${ ... } substitution.
	Template
	// Regex is a regular expression literal including its slashes.
	Regex
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case LineComment:
		return "line-comment"
	case BlockComment:
		return "block-comment"
	case String:
		return "string"
	case Template:
		return "template"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Segment is a half-open byte range [Start, End) of a single kind.
type Segment struct {
	Kind  Kind
	Start int
	End   int
}

// Source is scanned source text.
type Source struct {
	// Text is the scanned text.
	Text string

	segs []Segment
}

// regexPrecedingKeywords are words after which a slash starts a regular
// expression rather than a division.
var regexPrecedingKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// Scan splits text into lexical segments.
func Scan(text string) *Source {
	s := &scanner{src: text}
	s.run()
	return &Source{Text: text, segs: s.segs}
}

type scanner struct {
	src  string
	pos  int
	segs []Segment

	// braces tracks, for each open '{' in code, whether it opened a
	// template substitution (true) or a plain block (false).
	braces []bool

	// lastSignificant is the last non-space code byte, used to tell a
	// regular expression from a division.
	lastSignificant byte
	lastWord        string
}

func (s *scanner) emit(kind Kind, start, end int) {
	if end <= start {
		return
	}
	if n := len(s.segs); n > 0 && s.segs[n-1].Kind == kind && s.segs[n-1].End == start && kind == Code {
		s.segs[n-1].End = end
		return
	}
	s.segs = append(s.segs, Segment{Kind: kind, Start: start, End: end})
}

func (s *scanner) run() {
	if strings.HasPrefix(s.src, "#!") {
		end := strings.IndexByte(s.src, '\n')
		if end == -1 {
			end = len(s.src)
		}
		s.emit(LineComment, 0, end)
		s.pos = end
	}
	s.scanCode()
}

// scanCode consumes code until the end of input, entering literal states
// as they appear. Reaching a '}' that closes a template substitution
// resumes template scanning.
func (s *scanner) scanCode() {
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.emit(Code, start, s.pos)
			s.scanLineComment()
			start = s.pos
		case c == '/' && s.peek(1) == '*':
			s.emit(Code, start, s.pos)
			s.scanBlockComment()
			start = s.pos
		case c == '/' && s.slashStartsRegex():
			s.emit(Code, start, s.pos)
			s.scanRegex()
			start = s.pos
		case c == '\'' || c == '"':
			s.emit(Code, start, s.pos)
			s.scanString(c)
			start = s.pos
		case c == '`':
			s.emit(Code, start, s.pos)
			s.scanTemplate()
			start = s.pos
		case c == '{':
			s.braces = append(s.braces, false)
			s.advanceCode(c)
		case c == '}':
			if n := len(s.braces); n > 0 {
				inTemplate := s.braces[n-1]
				s.braces = s.braces[:n-1]
				if inTemplate {
					// Closing brace of a ${ } substitution belongs to the
					// template text that follows.
					s.emit(Code, start, s.pos)
					s.continueTemplate(s.pos)
					start = s.pos
					continue
				}
			}
			s.advanceCode(c)
		case isIdentStart(c):
			wordStart := s.pos
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			s.lastWord = s.src[wordStart:s.pos]
			s.lastSignificant = s.src[s.pos-1]
		default:
			s.advanceCode(c)
		}
	}
	s.emit(Code, start, s.pos)
}

func (s *scanner) advanceCode(c byte) {
	if !isSpace(c) {
		s.lastSignificant = c
		s.lastWord = ""
	}
	s.pos++
}

func (s *scanner) peek(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *scanner) slashStartsRegex() bool {
	if s.lastWord != "" {
		return regexPrecedingKeywords[s.lastWord]
	}
	switch s.lastSignificant {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';', '+', '-', '*', '%', '<', '>', '~', '^':
		return true
	}
	return false
}

func (s *scanner) scanLineComment() {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
	s.emit(LineComment, start, s.pos)
}

func (s *scanner) scanBlockComment() {
	start := s.pos
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end == -1 {
		s.pos = len(s.src)
	} else {
		s.pos += 2 + end + 2
	}
	s.emit(BlockComment, start, s.pos)
}

// scanString consumes a quoted string. An unescaped newline terminates an
// unterminated literal so stray quotes (e.g. in JSX text) stay local.
func (s *scanner) scanString(quote byte) {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == '\n' {
			break
		}
		s.pos++
		if c == quote {
			break
		}
	}
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	s.emit(String, start, s.pos)
	s.lastSignificant = quote
	s.lastWord = ""
}

func (s *scanner) scanTemplate() {
	start := s.pos
	s.pos++
	s.templateBody(start)
}

func (s *scanner) continueTemplate(start int) {
	s.pos++ // the closing '}' of the substitution
	s.templateBody(start)
}

// templateBody consumes template text until the closing backtick or the
// start of a substitution, which hands control back to code scanning.
func (s *scanner) templateBody(start int) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == '`' {
			s.pos++
			break
		}
		if c == '$' && s.peek(1) == '{' {
			s.pos += 2
			s.emit(Template, start, s.pos)
			s.braces = append(s.braces, true)
			s.lastSignificant = '{'
			s.lastWord = ""
			return
		}
		s.pos++
	}
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	s.emit(Template, start, s.pos)
	s.lastSignificant = '`'
	s.lastWord = ""
}

func (s *scanner) scanRegex() {
	start := s.pos
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		if c == '\n' {
			break
		}
		s.pos++
		if c == '[' {
			inClass = true
		} else if c == ']' {
			inClass = false
		} else if c == '/' && !inClass {
			break
		}
	}
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	if s.pos > len(s.src) {
		s.pos = len(s.src)
	}
	s.emit(Regex, start, s.pos)
	// A regex literal is an operand: a following slash divides.
	s.lastSignificant = ')'
	s.lastWord = ""
}

// Segments returns the scanned segments in source order.
func (src *Source) Segments() []Segment {
	return src.segs
}

// segmentAt returns the index of the segment containing offset i, or -1.
func (src *Source) segmentAt(i int) int {
	idx := sort.Search(len(src.segs), func(n int) bool { return src.segs[n].End > i })
	if idx < len(src.segs) && src.segs[idx].Start <= i {
		return idx
	}
	return -1
}

// KindAt returns the kind of the segment containing offset i. Offsets
// outside the text report Code.
func (src *Source) KindAt(i int) Kind {
	if idx := src.segmentAt(i); idx >= 0 {
		return src.segs[idx].Kind
	}
	return Code
}

// IsCode reports whether offset i lies in code.
func (src *Source) IsCode(i int) bool {
	return src.KindAt(i) == Code
}

// IndexCode returns the first offset >= from where substr starts in code,
// or -1.
func (src *Source) IndexCode(substr string, from int) int {
	for from <= len(src.Text) {
		idx := strings.Index(src.Text[from:], substr)
		if idx == -1 {
			return -1
		}
		at := from + idx
		if src.IsCode(at) {
			return at
		}
		from = at + 1
	}
	return -1
}

// FindAllCode returns the matches of re whose start lies in code.
func (src *Source) FindAllCode(re *regexp.Regexp) [][]int {
	var out [][]int
	for _, m := range re.FindAllStringSubmatchIndex(src.Text, -1) {
		if src.IsCode(m[0]) {
			out = append(out, m)
		}
	}
	return out
}

// MatchBrace returns the offset of the '}' closing the '{' at open, counting
// only braces in code. It returns -1 when the input is unbalanced.
func (src *Source) MatchBrace(open int) int {
	return src.MatchBracket(open)
}

// closers maps each opening bracket to its closing counterpart.
var closers = map[byte]byte{'{': '}', '(': ')', '[': ']'}

// MatchBracket returns the offset of the bracket closing the '{', '(' or '['
// at open, counting only brackets of the same kind in code. It returns -1
// when open is not an opening bracket or the input is unbalanced.
func (src *Source) MatchBracket(open int) int {
	if open < 0 || open >= len(src.Text) {
		return -1
	}
	opener := src.Text[open]
	closer, ok := closers[opener]
	if !ok {
		return -1
	}
	depth := 0
	for i := open; i < len(src.Text); i++ {
		idx := src.segmentAt(i)
		if idx >= 0 && src.segs[idx].Kind != Code {
			i = src.segs[idx].End - 1
			continue
		}
		switch src.Text[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ContainsWord reports whether word occurs as a whole identifier in code
// within [start, end).
func (src *Source) ContainsWord(start, end int, word string) bool {
	return src.IndexWord(word, start, end) != -1
}

// IndexWord returns the first offset in [start, end) where word occurs as a
// whole identifier in code, or -1. Property accesses (a preceding '.') do not
// count as occurrences.
func (src *Source) IndexWord(word string, start, end int) int {
	if end > len(src.Text) {
		end = len(src.Text)
	}
	for start < end {
		idx := strings.Index(src.Text[start:end], word)
		if idx == -1 {
			return -1
		}
		at := start + idx
		after := at + len(word)
		before := byte(0)
		if at > 0 {
			before = src.Text[at-1]
		}
		if src.IsCode(at) && !isIdentPart(before) && before != '.' &&
			(after >= len(src.Text) || !isIdentPart(src.Text[after])) {
			return at
		}
		start = at + 1
	}
	return -1
}

// StringLiteralAt returns the unquoted value of the string literal starting
// at offset i and the offset just past it.
func (src *Source) StringLiteralAt(i int) (value string, end int, ok bool) {
	idx := src.segmentAt(i)
	if idx < 0 || src.segs[idx].Kind != String || src.segs[idx].Start != i {
		return "", 0, false
	}
	seg := src.segs[idx]
	raw := src.Text[seg.Start:seg.End]
	if len(raw) < 2 || raw[len(raw)-1] != raw[0] {
		return "", 0, false
	}
	return Unquote(raw[1 : len(raw)-1]), seg.End, true
}

// SkipSpace returns the first offset >= i that is not whitespace or a
// comment.
func (src *Source) SkipSpace(i int) int {
	for i < len(src.Text) {
		if isSpace(src.Text[i]) {
			i++
			continue
		}
		if idx := src.segmentAt(i); idx >= 0 {
			k := src.segs[idx].Kind
			if k == LineComment || k == BlockComment {
				i = src.segs[idx].End
				continue
			}
		}
		break
	}
	return i
}

// StatementEnd returns the offset just past the ';' that ends the statement
// beginning at or before from, ignoring semicolons nested in brackets or
// literals. Without a terminating semicolon it returns the end of the line
// where bracket depth returns to zero, or the end of text.
func (src *Source) StatementEnd(from int) int {
	depth := 0
	for i := from; i < len(src.Text); i++ {
		idx := src.segmentAt(i)
		if idx >= 0 && src.segs[idx].Kind != Code {
			i = src.segs[idx].End - 1
			continue
		}
		switch src.Text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ';':
			if depth <= 0 {
				return i + 1
			}
		case '\n':
			if depth <= 0 && i > from {
				return i
			}
		}
	}
	return len(src.Text)
}

// Unquote resolves the common escapes of a JavaScript string literal body.
func Unquote(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\n':
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// IsIdentifier reports whether name is a plain ASCII JavaScript identifier.
func IsIdentifier(name string) bool {
	if name == "" || !isIdentStart(name[0]) || name[0] >= 0x80 {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) || name[i] >= 0x80 {
			return false
		}
	}
	return true
}
