package parser

import (
	"strconv"

	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	cfg      *config.Config
}

// bailout carries the first syntax error up to Parse.
type bailout struct{ err *util.Error }

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		eof := token.Token{Type: token.EOF, Line: 1, Column: 1}
		if len(tokens) > 0 {
			eof.Line = tokens[len(tokens)-1].Line
		}
		tokens = append(tokens, eof)
	}
	return &Parser{tokens: tokens, current: tokens[0], cfg: cfg}
}

// Parse builds the Program node. It stops at the first syntax error.
func (p *Parser) Parse() (root *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			root, err = nil, b.err
		}
	}()

	tok := p.current
	var funcs []*ast.Node
	for !p.check(token.EOF) {
		funcs = append(funcs, p.parseFuncDecl())
	}
	return ast.NewProgram(tok, funcs, p.current), nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.errorAt(p.current, "%s, found %s", message, p.current.Describe())
	return token.Token{}
}

func (p *Parser) errorAt(tok token.Token, format string, args ...interface{}) {
	panic(bailout{util.Errorf(util.Syntax, tok, format, args...)})
}

func typeFromToken(t token.Type) *ast.CType {
	switch t {
	case token.Int:
		return ast.TypeInt
	case token.Float:
		return ast.TypeFloat
	case token.CharKeyword:
		return ast.TypeChar
	case token.Void:
		return ast.TypeVoid
	}
	return ast.TypeInvalid
}

// Declarations

func (p *Parser) parseFuncDecl() *ast.Node {
	if !p.current.Type.IsTypeName() {
		p.errorAt(p.current, "expected a function definition, found %s", p.current.Describe())
	}
	typeTok := p.current
	p.advance()
	nameTok := p.expect(token.Ident, "expected function name after '"+typeTok.Lexeme()+"'")
	p.expect(token.LParen, "expected '(' after function name '"+nameTok.Value+"'")

	var params []*ast.Node
	if p.check(token.Void) && p.peek().Type == token.RParen {
		p.advance()
	} else if !p.check(token.RParen) {
		for {
			params = append(params, p.parseParam())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after parameter list")

	if !p.check(token.LBrace) {
		p.errorAt(p.current, "expected '{' to start the body of '%s', found %s", nameTok.Value, p.current.Describe())
	}
	body := p.parseBlock()
	return ast.NewFuncDecl(nameTok, nameTok.Value, typeFromToken(typeTok.Type), params, body)
}

func (p *Parser) parseParam() *ast.Node {
	if !p.current.Type.IsTypeName() {
		p.errorAt(p.current, "expected parameter type, found %s", p.current.Describe())
	}
	typeTok := p.current
	p.advance()
	if typeTok.Type == token.Void {
		p.errorAt(typeTok, "parameter cannot have type 'void'")
	}
	nameTok := p.expect(token.Ident, "expected parameter name")
	return ast.NewVarDecl(nameTok, nameTok.Value, typeFromToken(typeTok.Type), nil)
}

// parseDeclaration parses `type name [= expr] {, name [= expr]} ;`.
func (p *Parser) parseDeclaration() *ast.Node {
	typeTok := p.current
	p.advance()
	declType := typeFromToken(typeTok.Type)

	var decls []*ast.Node
	for {
		nameTok := p.expect(token.Ident, "expected variable name in declaration")
		var init *ast.Node
		if p.match(token.Eq) {
			init = p.parseAssignmentExpr()
		}
		decls = append(decls, ast.NewVarDecl(nameTok, nameTok.Value, declType, init))
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Semi, "expected ';' after declaration")

	if len(decls) == 1 {
		return decls[0]
	}
	return ast.NewMultiVarDecl(typeTok, decls)
}

// Statements

func (p *Parser) parseBlock() *ast.Node {
	tok := p.expect(token.LBrace, "expected '{'")
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "expected '}' to close block")
	return ast.NewBlock(tok, stmts)
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current

	if tok.Type.IsTypeName() {
		return p.parseDeclaration()
	}

	switch {
	case p.check(token.LBrace):
		return p.parseBlock()
	case p.match(token.If):
		return p.parseIf(tok)
	case p.match(token.While):
		p.expect(token.LParen, "expected '(' after 'while'")
		cond := p.parseExpr()
		p.expect(token.RParen, "expected ')' after while condition")
		return ast.NewWhile(tok, cond, p.parseStmt())
	case p.match(token.Do):
		body := p.parseStmt()
		p.expect(token.While, "expected 'while' after do-while body")
		p.expect(token.LParen, "expected '(' after 'while'")
		cond := p.parseExpr()
		p.expect(token.RParen, "expected ')' after do-while condition")
		p.expect(token.Semi, "expected ';' after do-while statement")
		return ast.NewDoWhile(tok, body, cond)
	case p.match(token.For):
		return p.parseFor(tok)
	case p.match(token.Switch):
		return p.parseSwitch(tok)
	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "expected ';' after return statement")
		return ast.NewReturn(tok, expr)
	case p.match(token.Break):
		p.expect(token.Semi, "expected ';' after 'break'")
		return ast.NewBreak(tok)
	case p.match(token.Continue):
		if !p.cfg.IsFeatureEnabled(config.FeatContinue) {
			p.errorAt(tok, "'continue' is not enabled in this standard (use -Fcontinue)")
		}
		p.expect(token.Semi, "expected ';' after 'continue'")
		return ast.NewContinue(tok)
	case p.check(token.Case), p.check(token.Default):
		p.errorAt(tok, "'%s' label outside of a switch statement", tok.Lexeme())
	case p.match(token.Semi):
		return ast.NewBlock(tok, nil)
	}

	expr := p.parseExpr()
	p.expect(token.Semi, "expected ';' after expression")
	return ast.NewExprStmt(tok, expr)
}

func (p *Parser) parseIf(tok token.Token) *ast.Node {
	p.expect(token.LParen, "expected '(' after 'if'")
	cond := p.parseExpr()
	p.expect(token.RParen, "expected ')' after if condition")
	thenBody := p.parseStmt()
	var elseBody *ast.Node
	// The innermost parseIf consumes the else, binding it to the nearest if.
	if p.match(token.Else) {
		elseBody = p.parseStmt()
	}
	return ast.NewIf(tok, cond, thenBody, elseBody)
}

func (p *Parser) parseFor(tok token.Token) *ast.Node {
	p.expect(token.LParen, "expected '(' after 'for'")

	var init *ast.Node
	switch {
	case p.current.Type.IsTypeName():
		if !p.cfg.IsFeatureEnabled(config.FeatForDecl) {
			p.errorAt(p.current, "declaration in 'for' initializer is not enabled in this standard (use -Ffor-decl)")
		}
		init = p.parseDeclaration()
	case p.match(token.Semi):
	default:
		initTok := p.current
		init = ast.NewExprStmt(initTok, p.parseExpr())
		p.expect(token.Semi, "expected ';' after for initializer")
	}

	var cond, step *ast.Node
	if !p.check(token.Semi) {
		cond = p.parseExpr()
	}
	p.expect(token.Semi, "expected ';' after for condition")
	if !p.check(token.RParen) {
		step = p.parseExpr()
	}
	p.expect(token.RParen, "expected ')' after for clauses")

	return ast.NewFor(tok, init, cond, step, p.parseStmt())
}

func (p *Parser) parseSwitch(tok token.Token) *ast.Node {
	p.expect(token.LParen, "expected '(' after 'switch'")
	expr := p.parseExpr()
	p.expect(token.RParen, "expected ')' after switch expression")
	p.expect(token.LBrace, "expected '{' to start switch body")

	var cases []*ast.Node
	var defaultTok *token.Token
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		caseTok := p.current
		var value *ast.Node
		switch {
		case p.match(token.Case):
			value = p.parseExpr()
			p.expect(token.Colon, "expected ':' after case value")
		case p.match(token.Default):
			if defaultTok != nil {
				p.errorAt(caseTok, "multiple 'default' labels in one switch (first on line %d)", defaultTok.Line)
			}
			defaultTok = &caseTok
			p.expect(token.Colon, "expected ':' after 'default'")
		default:
			p.errorAt(caseTok, "expected 'case' or 'default' in switch body, found %s", caseTok.Describe())
		}

		var body []*ast.Node
		for !p.check(token.Case) && !p.check(token.Default) && !p.check(token.RBrace) && !p.check(token.EOF) {
			body = append(body, p.parseStmt())
		}
		if caseTok.Type == token.Default {
			cases = append(cases, ast.NewDefault(caseTok, body))
		} else {
			cases = append(cases, ast.NewCase(caseTok, value, body))
		}
	}
	p.expect(token.RBrace, "expected '}' to close switch body")
	return ast.NewSwitch(tok, expr, cases)
}

// Expression Parsing

func (p *Parser) parseExpr() *ast.Node { return p.parseAssignmentExpr() }

func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash, token.Rem:
		return 6
	case token.Plus, token.Minus:
		return 5
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 4
	case token.EqEq, token.Neq:
		return 3
	case token.AndAnd:
		return 2
	case token.OrOr:
		return 1
	default:
		return -1
	}
}

func isAssignmentOp(op token.Type) bool {
	return op >= token.Eq && op <= token.SlashEq
}

func (p *Parser) parseAssignmentExpr() *ast.Node {
	left := p.parseBinaryExpr(1)
	if !isAssignmentOp(p.current.Type) {
		return left
	}
	opTok := p.current
	if left.Type != ast.Ident {
		p.errorAt(opTok, "invalid target for assignment '%s'", opTok.Lexeme())
	}
	p.advance()
	right := p.parseAssignmentExpr()
	return ast.NewAssign(opTok, opTok.Type, left, right)
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			break
		}
		opTok := p.current
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
	return left
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Not), p.match(token.Minus), p.match(token.Plus):
		return ast.NewUnaryOp(tok, tok.Type, p.parseUnaryExpr())
	case p.match(token.Inc), p.match(token.Dec):
		operand := p.parseUnaryExpr()
		if operand.Type != ast.Ident {
			p.errorAt(tok, "prefix '%s' requires a variable operand", tok.Lexeme())
		}
		return ast.NewUnaryOp(tok, tok.Type, operand)
	case p.match(token.And):
		if !p.check(token.Ident) {
			p.errorAt(p.current, "expected variable name after '&', found %s", p.current.Describe())
		}
		operand := p.parsePostfixExpr()
		if operand.Type != ast.Ident {
			p.errorAt(tok, "'&' requires a variable operand")
		}
		return ast.NewAddressOf(tok, operand)
	}
	return p.parsePostfixExpr()
}

func (p *Parser) parsePostfixExpr() *ast.Node {
	expr := p.parsePrimaryExpr()
	for p.check(token.Inc) || p.check(token.Dec) {
		opTok := p.current
		if expr.Type != ast.Ident {
			p.errorAt(opTok, "postfix '%s' requires a variable operand", opTok.Lexeme())
		}
		p.advance()
		expr = ast.NewPostfixOp(opTok, opTok.Type, expr)
	}
	return expr
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil || val > 0xFFFFFFFF {
			p.errorAt(tok, "integer literal '%s' is out of range", tok.Value)
		}
		return ast.NewNumber(tok, int64(int32(uint32(val))))
	case p.match(token.FloatNumber):
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.errorAt(tok, "malformed float literal '%s'", tok.Value)
		}
		return ast.NewFloatNumber(tok, val)
	case p.match(token.Char):
		return ast.NewChar(tok, tok.Value[0])
	case p.match(token.String):
		return ast.NewString(tok, tok.Value)
	case p.match(token.Ident):
		if p.match(token.LParen) {
			return p.parseCallArgs(tok)
		}
		return ast.NewIdent(tok, tok.Value)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "expected ')' after expression")
		return expr
	}
	p.errorAt(tok, "expected an expression, found %s", tok.Describe())
	return nil
}

func (p *Parser) parseCallArgs(nameTok token.Token) *ast.Node {
	var args []*ast.Node
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseAssignmentExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after arguments to '"+nameTok.Value+"'")
	return ast.NewFuncCall(nameTok, nameTok.Value, args)
}
