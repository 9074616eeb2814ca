package lexer

import (
	"strings"

	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/util"
)

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int
	cfg    *config.Config
}

func NewLexer(source []rune, cfg *config.Config) *Lexer {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Lexer{source: source, line: 1, column: 1, cfg: cfg}
}

// Tokenize scans the whole source. The returned slice always ends with an
// EOF token unless an error is returned.
func Tokenize(source string, cfg *config.Config) ([]token.Token, error) {
	l := NewLexer([]rune(source), cfg)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if isAlpha(ch) {
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if isDigit(ch) || (ch == '.' && isDigit(l.peekNext())) {
		return l.numberLiteral(startPos, startCol, startLine), nil
	}

	l.advance()
	switch ch {
	case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
	case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
	case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
	case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
	case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
	case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
	case ':': return l.makeToken(token.Colon, "", startPos, startCol, startLine), nil
	case '%': return l.makeToken(token.Rem, "", startPos, startCol, startLine), nil
	case '=': return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine), nil
	case '!': return l.matchThen('=', token.Neq, token.Not, startPos, startCol, startLine), nil
	case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
	case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
	case '&': return l.matchThen('&', token.AndAnd, token.And, startPos, startCol, startLine), nil
	case '+':
		return l.plusOrMinus('+', token.Inc, token.PlusEq, token.Plus, startPos, startCol, startLine), nil
	case '-':
		return l.plusOrMinus('-', token.Dec, token.MinusEq, token.Minus, startPos, startCol, startLine), nil
	case '*':
		return l.withCompoundAssign(token.StarEq, token.Star, startPos, startCol, startLine), nil
	case '/':
		return l.withCompoundAssign(token.SlashEq, token.Slash, startPos, startCol, startLine), nil
	case '|':
		if l.match('|') {
			return l.makeToken(token.OrOr, "", startPos, startCol, startLine), nil
		}
	case '"':
		return l.stringLiteral(startPos, startCol, startLine)
	case '\'':
		return l.charLiteral(startPos, startCol, startLine)
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return token.Token{}, util.Errorf(util.Lexical, tok, "illegal character '%c'", ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.advance()
		case '/':
			switch {
			case l.peekNext() == '*':
				if err := l.blockComment(); err != nil {
					return err
				}
			case l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatCComments):
				l.lineComment()
			default:
				return nil
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) blockComment() error {
	startTok := l.makeToken(token.EOF, "", l.pos, l.column, l.line)
	startTok.Len = 2
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return util.Errorf(util.Lexical, startTok, "unterminated block comment")
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isAlpha(l.peek()) || isDigit(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() != '.' {
		return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
	}
	l.advance()
	for isDigit(l.peek()) {
		l.advance()
	}
	return l.makeToken(token.FloatNumber, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

func (l *Lexer) withCompoundAssign(assignType, plainType token.Type, sPos, sCol, sLine int) token.Token {
	if l.cfg.IsFeatureEnabled(config.FeatCompoundAssign) && l.match('=') {
		return l.makeToken(assignType, "", sPos, sCol, sLine)
	}
	return l.makeToken(plainType, "", sPos, sCol, sLine)
}

func (l *Lexer) plusOrMinus(ch rune, stepType, assignType, plainType token.Type, sPos, sCol, sLine int) token.Token {
	if l.cfg.IsFeatureEnabled(config.FeatIncDec) && l.match(ch) {
		return l.makeToken(stepType, "", sPos, sCol, sLine)
	}
	return l.withCompoundAssign(assignType, plainType, sPos, sCol, sLine)
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb strings.Builder
	for {
		if l.isAtEnd() || l.peek() == '\n' {
			tok := l.makeToken(token.String, "", startPos, startCol, startLine)
			return token.Token{}, util.Errorf(util.Lexical, tok, "unterminated string literal")
		}
		ch := l.advance()
		if ch == '"' {
			break
		}
		if ch == '\\' {
			escCol, escLine := l.column-1, l.line
			val, ok := l.escape()
			if !ok {
				tok := token.Token{Line: escLine, Column: escCol, Len: 2}
				return token.Token{}, util.Errorf(util.Lexical, tok, "unknown escape sequence '\\%c' in string literal", l.source[l.pos-1])
			}
			sb.WriteRune(val)
			continue
		}
		sb.WriteRune(ch)
	}
	return l.makeToken(token.String, sb.String(), startPos, startCol, startLine), nil
}

func (l *Lexer) charLiteral(startPos, startCol, startLine int) (token.Token, error) {
	bad := func(msg string) (token.Token, error) {
		tok := l.makeToken(token.Char, "", startPos, startCol, startLine)
		return token.Token{}, util.Errorf(util.Lexical, tok, "%s", msg)
	}
	if l.isAtEnd() || l.peek() == '\n' || l.peek() == '\'' {
		return bad("empty or unterminated character literal")
	}
	val := l.advance()
	if val == '\\' {
		var ok bool
		if val, ok = l.escape(); !ok {
			return bad("unknown escape sequence in character literal")
		}
	}
	if !l.match('\'') {
		for !l.isAtEnd() && l.peek() != '\'' && l.peek() != '\n' {
			l.advance()
		}
		l.match('\'')
		return bad("character literal must contain exactly one character")
	}
	if val > 0x7f {
		return bad("character literal is outside the ASCII range")
	}
	return l.makeToken(token.Char, string(val), startPos, startCol, startLine), nil
}

// escape consumes the character after a backslash.
func (l *Lexer) escape() (rune, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	switch l.advance() {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case '\'':
		return '\'', true
	}
	return 0, false
}

func isAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
