// Package syntax scans and parses contract source into an AST. The accepted
// grammar is the Python statement and expression grammar; the restriction
// checker decides afterwards which constructs a contract may use.
package syntax

import "fmt"

// TokenType represents the kind of token.
type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	INDENT
	DEDENT

	NAME
	KEYWORD
	INT
	FLOAT
	STRING
	OP
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	NEWLINE: "NEWLINE",
	INDENT:  "INDENT",
	DEDENT:  "DEDENT",
	NAME:    "NAME",
	KEYWORD: "KEYWORD",
	INT:     "INT",
	FLOAT:   "FLOAT",
	STRING:  "STRING",
	OP:      "OP",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexical token. For STRING tokens Value holds the decoded text;
// for everything else it equals Lexeme.
type Token struct {
	Type   TokenType
	Lexeme string
	Value  string
	Line   int
	Col    int
}

// Is reports whether the token is the operator or keyword s.
func (t Token) Is(s string) bool {
	return (t.Type == OP || t.Type == KEYWORD) && t.Lexeme == s
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// IsKeyword reports whether name is a reserved word of the language.
func IsKeyword(name string) bool {
	return keywords[name]
}

// operators ordered longest first
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

// Error is a lexical or grammatical error.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}
