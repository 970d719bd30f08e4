// Package ron reads Rusty Object Notation documents.
//
// A RON document is parsed into a yaml.Node tree so callers decode it into Go
// structs with the same `yaml` struct tags used everywhere else:
//
//	(name: "Web", query: (regex: "^https?://", priority: High))
//
// Structs (named or anonymous) become mappings, lists and tuples become
// sequences, Some(x) unwraps to x, None and () become null, bare enum variants
// become strings and variants with a payload become a single-key mapping
// (Name("firefox") decodes into a struct with a `Name` field).
package ron

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// SyntaxError reports malformed RON input with a 1-based position.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ron: line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Parse converts a RON document into a yaml.Node value tree.
func Parse(data []byte) (*yaml.Node, error) {
	p := &parser{src: string(data)}
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	node, err := p.value()
	if err != nil {
		return nil, err
	}
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected trailing %q", p.peek())
	}
	return node, nil
}

// Unmarshal parses a RON document and decodes it into v.
func Unmarshal(data []byte, v any) error {
	node, err := Parse(data)
	if err != nil {
		return err
	}
	if err := node.Decode(v); err != nil {
		return fmt.Errorf("ron: decode: %w", err)
	}
	return nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for _, r := range p.src[:min(p.pos, len(p.src))] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// skipSpace consumes whitespace and comments. Block comments nest.
func (p *parser) skipSpace() error {
	for !p.eof() {
		switch c := p.peek(); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "//"):
			end := strings.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				p.pos = len(p.src)
			} else {
				p.pos += end + 1
			}
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			start := p.pos
			depth := 0
			for {
				switch {
				case p.eof():
					p.pos = start
					return p.errorf("unterminated block comment")
				case strings.HasPrefix(p.src[p.pos:], "/*"):
					depth++
					p.pos += 2
				case strings.HasPrefix(p.src[p.pos:], "*/"):
					depth--
					p.pos += 2
				default:
					p.pos++
				}
				if depth == 0 {
					break
				}
			}
		default:
			return nil
		}
	}
	return nil
}

// skipAttributes drops leading #![...] extension attributes.
func (p *parser) skipAttributes() error {
	for {
		if err := p.skipSpace(); err != nil {
			return err
		}
		if !strings.HasPrefix(p.src[p.pos:], "#![") {
			return nil
		}
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return p.errorf("unterminated attribute")
		}
		p.pos += end + 1
	}
}

func (p *parser) expect(c byte) error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	if p.peek() != c {
		if p.eof() {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.peek())
	}
	p.pos++
	return nil
}

func (p *parser) value() (*yaml.Node, error) {
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '"':
		s, err := p.quoted('"')
		if err != nil {
			return nil, err
		}
		return scalar("!!str", s), nil
	case c == '\'':
		s, err := p.quoted('\'')
		if err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(s) != 1 {
			return nil, p.errorf("char literal must hold exactly one character")
		}
		return scalar("!!str", s), nil
	case c == 'r' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == '"' || p.src[p.pos+1] == '#'):
		s, err := p.raw()
		if err != nil {
			return nil, err
		}
		return scalar("!!str", s), nil
	case c == '[':
		return p.list()
	case c == '{':
		return p.dict()
	case c == '(':
		return p.paren("")
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.identValue()
	}
	return nil, p.errorf("unexpected %q", c)
}

func (p *parser) identValue() (*yaml.Node, error) {
	name := p.ident()
	switch name {
	case "true", "false":
		return scalar("!!bool", name), nil
	case "None":
		return null(), nil
	case "inf", "NaN":
		return scalar("!!float", "."+strings.ToLower(name)), nil
	}

	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.peek() != '(' {
		// Unit enum variant.
		return scalar("!!str", name), nil
	}
	if name == "Some" {
		p.pos++
		inner, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if p.peek() == ',' {
			p.pos++
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.paren(name)
}

// paren parses a parenthesised body: a struct when the first element is
// `ident:`, a tuple otherwise. A named tuple is an enum variant and is wrapped
// in a single-key mapping; the name of a struct is dropped.
func (p *parser) paren(name string) (*yaml.Node, error) {
	p.pos++ // '('
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.peek() == ')' {
		p.pos++
		if name == "" {
			return null(), nil
		}
		return mapping(), nil
	}

	if p.atField() {
		return p.fields(')')
	}

	var items []*yaml.Node
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		more, err := p.separator(')')
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	if name == "" {
		return sequence(items...), nil
	}
	payload := sequence(items...)
	if len(items) == 1 {
		payload = items[0]
	}
	m := mapping()
	m.Content = append(m.Content, scalar("!!str", name), payload)
	return m, nil
}

// atField reports whether the input continues with `ident :`.
func (p *parser) atField() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if !isIdentStart(p.peek()) {
		return false
	}
	p.ident()
	if p.skipSpace() != nil {
		return false
	}
	return p.peek() == ':'
}

func (p *parser) fields(closer byte) (*yaml.Node, error) {
	m := mapping()
	seen := make(map[string]bool)
	for {
		if err := p.skipSpace(); err != nil {
			return nil, err
		}
		if !isIdentStart(p.peek()) {
			return nil, p.errorf("expected field name")
		}
		key := p.ident()
		if seen[key] {
			return nil, p.errorf("duplicate field %q", key)
		}
		seen[key] = true
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m.Content = append(m.Content, scalar("!!str", key), v)
		more, err := p.separator(closer)
		if err != nil {
			return nil, err
		}
		if !more {
			return m, nil
		}
	}
}

// separator consumes `,` or the closer. It returns false once the closer is
// consumed, including after a trailing comma.
func (p *parser) separator(closer byte) (bool, error) {
	if err := p.skipSpace(); err != nil {
		return false, err
	}
	switch p.peek() {
	case ',':
		p.pos++
		if err := p.skipSpace(); err != nil {
			return false, err
		}
		if p.peek() == closer {
			p.pos++
			return false, nil
		}
		return true, nil
	case closer:
		p.pos++
		return false, nil
	}
	if p.eof() {
		return false, p.errorf("expected ',' or %q, got end of input", closer)
	}
	return false, p.errorf("expected ',' or %q, got %q", closer, p.peek())
}

func (p *parser) list() (*yaml.Node, error) {
	p.pos++ // '['
	seq := sequence()
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.peek() == ']' {
		p.pos++
		return seq, nil
	}
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, v)
		more, err := p.separator(']')
		if err != nil {
			return nil, err
		}
		if !more {
			return seq, nil
		}
	}
}

func (p *parser) dict() (*yaml.Node, error) {
	p.pos++ // '{'
	m := mapping()
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.peek() == '}' {
		p.pos++
		return m, nil
	}
	for {
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m.Content = append(m.Content, k, v)
		more, err := p.separator('}')
		if err != nil {
			return nil, err
		}
		if !more {
			return m, nil
		}
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentPart(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) number() (*yaml.Node, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	if rest := p.src[p.pos:]; strings.HasPrefix(rest, "inf") || strings.HasPrefix(rest, "NaN") {
		p.pos += 3
		sign := ""
		if p.src[start] == '-' {
			sign = "-"
		}
		return scalar("!!float", sign+"."+strings.ToLower(rest[:3])), nil
	}

	base := 10
	if rest := p.src[p.pos:]; len(rest) > 1 && rest[0] == '0' {
		switch rest[1] {
		case 'x':
			base = 16
		case 'o':
			base = 8
		case 'b':
			base = 2
		}
		if base != 10 {
			p.pos += 2
		}
	}

	digitsStart := p.pos
	float := false
scan:
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '_' || isDigit(c) || (base == 16 && isHex(c)):
		case base == 10 && (c == '.' || c == 'e' || c == 'E'):
			float = true
		case base == 10 && float && (c == '-' || c == '+'):
			prev := p.src[p.pos-1]
			if prev != 'e' && prev != 'E' {
				return nil, p.errorf("malformed number")
			}
		default:
			break scan
		}
		p.pos++
	}
	digits := strings.ReplaceAll(p.src[digitsStart:p.pos], "_", "")
	if digits == "" || digits == "." {
		return nil, p.errorf("malformed number")
	}
	negative := p.src[start] == '-'

	if float {
		text := digits
		if negative {
			text = "-" + text
		}
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return nil, p.errorf("malformed float %q", p.src[start:p.pos])
		}
		return scalar("!!float", text), nil
	}

	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return nil, p.errorf("malformed integer %q", p.src[start:p.pos])
	}
	text := strconv.FormatUint(n, 10)
	if negative {
		text = "-" + text
	}
	return scalar("!!int", text), nil
}

// quoted reads a string or char literal delimited by q, processing escapes.
func (p *parser) quoted(q byte) (string, error) {
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated literal")
		}
		c := p.peek()
		switch c {
		case q:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if err := p.escape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.peek()
	p.pos++
	switch c {
	case '\\', '"', '\'', '/':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '0':
		b.WriteByte(0)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'x':
		if p.pos+2 > len(p.src) {
			return p.errorf("short \\x escape")
		}
		n, err := strconv.ParseUint(p.src[p.pos:p.pos+2], 16, 8)
		if err != nil {
			return p.errorf("bad \\x escape")
		}
		b.WriteByte(byte(n))
		p.pos += 2
	case 'u':
		var hex string
		if p.peek() == '{' {
			end := strings.IndexByte(p.src[p.pos:], '}')
			if end < 0 {
				return p.errorf("unterminated \\u{} escape")
			}
			hex = p.src[p.pos+1 : p.pos+end]
			p.pos += end + 1
		} else {
			if p.pos+4 > len(p.src) {
				return p.errorf("short \\u escape")
			}
			hex = p.src[p.pos : p.pos+4]
			p.pos += 4
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return p.errorf("bad unicode escape %q", hex)
		}
		b.WriteRune(rune(n))
	case '\n':
		// Line continuation: drop the newline and leading indentation.
		for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
			p.pos++
		}
	default:
		return p.errorf("unknown escape \\%c", c)
	}
	return nil
}

// raw reads r"..." or r#"..."# (any number of hashes).
func (p *parser) raw() (string, error) {
	p.pos++ // 'r'
	hashes := 0
	for p.peek() == '#' {
		hashes++
		p.pos++
	}
	if p.peek() != '"' {
		return "", p.errorf("malformed raw string")
	}
	p.pos++
	terminator := "\"" + strings.Repeat("#", hashes)
	end := strings.Index(p.src[p.pos:], terminator)
	if end < 0 {
		return "", p.errorf("unterminated raw string")
	}
	s := p.src[p.pos : p.pos+end]
	p.pos += end + len(terminator)
	return s, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func null() *yaml.Node { return scalar("!!null", "null") }

func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"} }

func sequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHex(c byte) bool        { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
