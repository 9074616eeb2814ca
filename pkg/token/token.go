package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Ident
	Number
	FloatNumber
	Char
	String

	// Keywords
	Int
	Float
	CharKeyword
	Void
	If
	Else
	While
	Do
	For
	Switch
	Case
	Default
	Break
	Continue
	Return

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	Semi
	Comma
	Colon

	// Operators
	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	Plus
	Minus
	Star
	Slash
	Rem
	EqEq
	Neq
	Lt
	Gt
	Gte
	Lte
	AndAnd
	OrOr
	Not
	And
	Inc
	Dec
)

var KeywordMap = map[string]Type{
	"int":      Int,
	"float":    Float,
	"char":     CharKeyword,
	"void":     Void,
	"if":       If,
	"else":     Else,
	"while":    While,
	"do":       Do,
	"for":      For,
	"switch":   Switch,
	"case":     Case,
	"default":  Default,
	"break":    Break,
	"continue": Continue,
	"return":   Return,
}

var symbolStrings = map[Type]string{
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	Semi: ";", Comma: ",", Colon: ":",
	Eq: "=", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Gte: ">=", Lte: "<=",
	AndAnd: "&&", OrOr: "||", Not: "!", And: "&", Inc: "++", Dec: "--",
}

var classNames = map[Type]string{
	EOF:         "end of input",
	Ident:       "identifier",
	Number:      "integer literal",
	FloatNumber: "float literal",
	Char:        "char literal",
	String:      "string literal",
}

// Reverse mapping from Type to the keyword or symbol spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range symbolStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) IsKeyword() bool { return t >= Int && t <= Return }

// IsTypeName reports whether t starts a declaration.
func (t Type) IsTypeName() bool {
	return t == Int || t == Float || t == CharKeyword || t == Void
}

func (t Type) IsOperator() bool { return t >= Eq && t <= Dec }

// Class groups token types into the coarse categories used in dumps.
func (t Type) Class() string {
	switch {
	case t.IsKeyword():
		return "keyword"
	case t.IsOperator():
		return "operator"
	case t >= LParen && t <= Colon:
		return "punctuation"
	}
	if name, ok := classNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	if name, ok := classNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type Token struct {
	Type   Type
	Value  string
	Line   int
	Column int
	Len    int
}

// Lexeme returns the source spelling of the token where it is fixed,
// and the literal text otherwise.
func (t Token) Lexeme() string {
	if t.Value != "" || t.Type == String {
		return t.Value
	}
	if s, ok := TypeStrings[t.Type]; ok {
		return s
	}
	return ""
}

// Describe renders the token for diagnostics, e.g. `'while'` or `identifier 'x'`.
func (t Token) Describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case Ident, Number, FloatNumber:
		return fmt.Sprintf("%s '%s'", classNames[t.Type], t.Value)
	case Char:
		return fmt.Sprintf("char literal '%s'", t.Value)
	case String:
		return fmt.Sprintf("string literal %q", t.Value)
	}
	return fmt.Sprintf("'%s'", t.Lexeme())
}
