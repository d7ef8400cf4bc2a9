package syntax

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Lexer scans contract source into tokens, synthesizing NEWLINE, INDENT and
// DEDENT from the line structure.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	indents     []int
	depth       int // bracket nesting, newlines are ignored inside
	atLineStart bool

	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{
		src:         src,
		line:        1,
		indents:     []int{0},
		atLineStart: true,
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.src[l.cur]
}

func (l *Lexer) peekN(n int) byte {
	if l.cur+n >= len(l.src) {
		return 0
	}
	return l.src[l.cur+n]
}

func (l *Lexer) advance() byte {
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) mark() {
	l.start = l.cur
	l.tokStartLine = l.line
	l.tokStartCol = l.col
}

func (l *Lexer) emit(tt TokenType, value string) {
	lex := l.src[l.start:l.cur]
	if tt != STRING {
		value = lex
	}
	l.tokens = append(l.tokens, Token{
		Type:   tt,
		Lexeme: lex,
		Value:  value,
		Line:   l.tokStartLine,
		Col:    l.tokStartCol + 1,
	})
}

func (l *Lexer) synth(tt TokenType) {
	l.tokens = append(l.tokens, Token{Type: tt, Line: l.line, Col: l.col + 1})
}

func (l *Lexer) errAt(line, col int, format string, args ...any) error {
	return &Error{Line: line, Col: col + 1, Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) err(format string, args ...any) error {
	return l.errAt(l.tokStartLine, l.tokStartCol, format, args...)
}

func (l *Lexer) lastType() TokenType {
	if len(l.tokens) == 0 {
		return NEWLINE
	}
	return l.tokens[len(l.tokens)-1].Type
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

// Scan tokenizes the whole source.
func (l *Lexer) Scan() ([]Token, error) {
	for {
		if l.atLineStart && l.depth == 0 {
			done, err := l.scanIndentation()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}
		if l.isAtEnd() {
			break
		}
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}
	if l.depth > 0 {
		return nil, l.errAt(l.line, l.col, "unexpected EOF, unclosed bracket")
	}
	if t := l.lastType(); t != NEWLINE && t != DEDENT && len(l.tokens) > 0 {
		l.synth(NEWLINE)
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.synth(DEDENT)
	}
	l.synth(EOF)
	return l.tokens, nil
}

// scanIndentation measures the indentation of the next logical line and
// emits INDENT or DEDENT tokens. Blank and comment lines are skipped. It
// reports true when the end of input was reached.
func (l *Lexer) scanIndentation() (bool, error) {
	for {
		width := 0
	measure:
		for !l.isAtEnd() {
			switch l.peek() {
			case ' ':
				width++
			case '\t':
				width = (width/8 + 1) * 8
			case '\f':
				width = 0
			default:
				break measure
			}
			l.advance()
		}
		if l.isAtEnd() {
			return true, nil
		}
		switch l.peek() {
		case '#':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
			continue
		case '\r', '\n':
			l.advance()
			continue
		case '\\':
			if l.peekN(1) == '\n' {
				return false, l.errAt(l.line, l.col, "unexpected line continuation")
			}
		}
		l.atLineStart = false
		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			l.synth(INDENT)
		case width < top:
			for width < l.indents[len(l.indents)-1] {
				l.indents = l.indents[:len(l.indents)-1]
				l.synth(DEDENT)
			}
			if width != l.indents[len(l.indents)-1] {
				return false, l.errAt(l.line, l.col, "unindent does not match any outer indentation level")
			}
		}
		return false, nil
	}
}

func (l *Lexer) scanToken() error {
	ch := l.peek()
	switch {
	case ch == ' ' || ch == '\t' || ch == '\f' || ch == '\r':
		l.advance()
		return nil
	case ch == '#':
		for !l.isAtEnd() && l.peek() != '\n' {
			l.advance()
		}
		return nil
	case ch == '\\':
		if l.peekN(1) == '\n' {
			l.advance()
			l.advance()
			return nil
		}
		if l.peekN(1) == '\r' && l.peekN(2) == '\n' {
			l.advance()
			l.advance()
			l.advance()
			return nil
		}
		l.mark()
		return l.err("unexpected character after line continuation")
	case ch == '\n':
		l.mark()
		l.advance()
		if l.depth == 0 {
			l.tokens = append(l.tokens, Token{Type: NEWLINE, Lexeme: "\n", Line: l.tokStartLine, Col: l.tokStartCol + 1})
			l.atLineStart = true
		}
		return nil
	}

	l.mark()
	switch {
	case isAlpha(ch):
		return l.scanName()
	case isDigit(ch) || (ch == '.' && isDigit(l.peekN(1))):
		return l.scanNumber()
	case ch == '"' || ch == '\'':
		return l.scanString(false)
	case ch >= utf8.RuneSelf:
		r, _ := utf8.DecodeRuneInString(l.src[l.cur:])
		return l.err("invalid character %q in identifier", r)
	}
	for _, op := range operators {
		if strings.HasPrefix(l.src[l.cur:], op) {
			for range op {
				l.advance()
			}
			switch op {
			case "(", "[", "{":
				l.depth++
			case ")", "]", "}":
				if l.depth == 0 {
					return l.err("unmatched '%s'", op)
				}
				l.depth--
			}
			l.emit(OP, "")
			return nil
		}
	}
	return l.err("invalid character '%c'", ch)
}

func (l *Lexer) scanName() error {
	for !l.isAtEnd() && isAlphaNum(l.peek()) {
		l.advance()
	}
	if l.peek() >= utf8.RuneSelf {
		return l.err("non-ASCII identifiers are not supported")
	}
	name := l.src[l.start:l.cur]
	if q := l.peek(); q == '"' || q == '\'' {
		switch strings.ToLower(name) {
		case "r":
			return l.scanString(true)
		case "u":
			return l.scanString(false)
		case "f", "rf", "fr":
			return l.err("f-strings are not supported")
		case "b", "rb", "br":
			return l.err("bytes literals are not supported")
		}
	}
	if keywords[name] {
		l.emit(KEYWORD, "")
	} else {
		l.emit(NAME, "")
	}
	return nil
}

func (l *Lexer) digits(valid func(byte) bool) bool {
	saw := false
	for !l.isAtEnd() {
		b := l.peek()
		if b == '_' && saw && valid(l.peekN(1)) {
			l.advance()
			continue
		}
		if !valid(b) {
			break
		}
		l.advance()
		saw = true
	}
	return saw
}

func (l *Lexer) scanNumber() error {
	if l.peek() == '0' {
		var valid func(byte) bool
		switch l.peekN(1) {
		case 'x', 'X':
			valid = func(b byte) bool {
				return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
			}
		case 'o', 'O':
			valid = func(b byte) bool { return b >= '0' && b <= '7' }
		case 'b', 'B':
			valid = func(b byte) bool { return b == '0' || b == '1' }
		}
		if valid != nil {
			l.advance()
			l.advance()
			if !l.digits(valid) {
				return l.err("invalid number literal")
			}
			return l.finishNumber(INT)
		}
	}
	tt := INT
	l.digits(isDigit)
	if l.peek() == '.' {
		tt = FLOAT
		l.advance()
		l.digits(isDigit)
	}
	if b := l.peek(); b == 'e' || b == 'E' {
		next := l.peekN(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekN(2))) {
			tt = FLOAT
			l.advance()
			if next == '+' || next == '-' {
				l.advance()
			}
			l.digits(isDigit)
		}
	}
	if tt == INT {
		text := l.src[l.start:l.cur]
		if len(text) > 1 && text[0] == '0' && strings.Trim(text, "0_") != "" {
			return l.err("leading zeros in decimal integer literals are not permitted")
		}
	}
	return l.finishNumber(tt)
}

func (l *Lexer) finishNumber(tt TokenType) error {
	if b := l.peek(); b == 'j' || b == 'J' {
		return l.err("complex literals are not supported")
	}
	if isAlpha(l.peek()) {
		return l.err("invalid number literal")
	}
	l.emit(tt, "")
	return nil
}

func (l *Lexer) scanString(raw bool) error {
	quote := l.peek()
	triple := l.peekN(1) == quote && l.peekN(2) == quote
	l.advance()
	if triple {
		l.advance()
		l.advance()
	}
	var out strings.Builder
	for {
		if l.isAtEnd() {
			return l.err("unterminated string literal")
		}
		ch := l.peek()
		if ch == quote {
			if !triple {
				l.advance()
				break
			}
			if l.peekN(1) == quote && l.peekN(2) == quote {
				l.advance()
				l.advance()
				l.advance()
				break
			}
		}
		if ch == '\n' && !triple {
			return l.err("unterminated string literal")
		}
		if ch == '\\' {
			l.advance()
			if l.isAtEnd() {
				return l.err("unterminated string literal")
			}
			if raw {
				out.WriteByte('\\')
				out.WriteByte(l.advance())
				continue
			}
			if err := l.scanEscape(&out); err != nil {
				return err
			}
			continue
		}
		out.WriteByte(l.advance())
	}
	if !utf8.ValidString(out.String()) {
		return l.err("invalid UTF-8 in string literal")
	}
	l.emit(STRING, out.String())
	return nil
}

func (l *Lexer) scanEscape(out *strings.Builder) error {
	esc := l.advance()
	switch esc {
	case '\n':
	case '\\', '\'', '"':
		out.WriteByte(esc)
	case 'a':
		out.WriteByte('\a')
	case 'b':
		out.WriteByte('\b')
	case 'f':
		out.WriteByte('\f')
	case 'n':
		out.WriteByte('\n')
	case 'r':
		out.WriteByte('\r')
	case 't':
		out.WriteByte('\t')
	case 'v':
		out.WriteByte('\v')
	case 'x', 'u', 'U':
		n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[esc]
		if l.cur+n > len(l.src) {
			return l.err("truncated \\%c escape", esc)
		}
		v, err := strconv.ParseUint(l.src[l.cur:l.cur+n], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return l.err("invalid \\%c escape", esc)
		}
		for i := 0; i < n; i++ {
			l.advance()
		}
		out.WriteRune(rune(v))
	default:
		if esc >= '0' && esc <= '7' {
			v := int(esc - '0')
			for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
				v = v*8 + int(l.advance()-'0')
			}
			out.WriteRune(rune(v))
			return nil
		}
		out.WriteByte('\\')
		out.WriteByte(esc)
	}
	return nil
}
