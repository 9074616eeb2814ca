package typeChecker

import (
	"fmt"
	"strings"

	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/util"
)

// Function names that would collide with symbols in the generated assembly.
var reservedNames = map[string]bool{"_start": true, "exit": true}

func isReserved(name string) bool {
	return reservedNames[name] || strings.HasPrefix(name, "fmt_")
}

type TypeChecker struct {
	symbols     *SymbolTable
	cfg         *config.Config
	errs        util.ErrorList
	warnings    []util.Warning
	currentFunc *ast.FuncDeclNode
	frameSize   int
	loopDepth   int
	switchDepth int
	// Names already reported as undefined in the current function. Later
	// uses are consequences of the first one and are not reported again.
	undefined map[string]bool
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &TypeChecker{symbols: NewSymbolTable(), cfg: cfg}
}

func (tc *TypeChecker) errorAt(tok token.Token, format string, args ...interface{}) {
	tc.errs.Add(util.Errorf(util.Semantic, tok, format, args...))
}

func (tc *TypeChecker) warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !tc.cfg.IsWarningEnabled(wt) {
		return
	}
	tc.warnings = append(tc.warnings, util.Warning{
		Flag: tc.cfg.WarningName(wt), Msg: fmt.Sprintf(format, args...),
		Line: tok.Line, Column: tok.Column, Len: tok.Len,
	})
}

// Warnings returns the warnings collected by Check, in source order.
func (tc *TypeChecker) Warnings() []util.Warning { return tc.warnings }

// Check resolves every name in root, annotates expressions with their
// types, assigns frame offsets and reports all independent errors.
func (tc *TypeChecker) Check(root *ast.Node) error {
	if root == nil || root.Type != ast.Program {
		panic("typeChecker: Check expects a Program node")
	}
	tc.declareBuiltins()
	tc.collectGlobals(root)
	for _, fn := range root.Data.(ast.ProgramNode).Funcs {
		tc.checkFunc(fn)
	}
	tc.errs.Sort()
	return tc.errs.Err()
}

func (tc *TypeChecker) declareBuiltins() {
	for _, name := range []string{"printf", "scanf"} {
		tc.symbols.Declare(&ast.Symbol{
			Name: name, Type: ast.TypeInt, Kind: ast.SymFunc, Variadic: true, Builtin: true,
		})
	}
}

func (tc *TypeChecker) collectGlobals(root *ast.Node) {
	prog := root.Data.(ast.ProgramNode)
	hasMain := false
	for _, fn := range prog.Funcs {
		d := fn.Data.(ast.FuncDeclNode)
		var params []*ast.CType
		for _, p := range d.Params {
			params = append(params, p.Data.(ast.VarDeclNode).Type)
		}
		if isReserved(d.Name) {
			tc.errorAt(fn.Tok, "function name '%s' is reserved", d.Name)
			continue
		}
		sym := &ast.Symbol{Name: d.Name, Type: d.ReturnType, Kind: ast.SymFunc, Params: params, Decl: fn}
		if existing, ok := tc.symbols.Declare(sym); !ok {
			if existing.Builtin {
				tc.errorAt(fn.Tok, "cannot redefine built-in function '%s'", d.Name)
			} else {
				tc.errorAt(fn.Tok, "redefinition of function '%s' (previously defined on line %d)", d.Name, existing.Decl.Line())
			}
			continue
		}
		fn.Sym = sym

		if d.Name == "main" {
			hasMain = true
			if len(d.Params) > 0 {
				tc.errorAt(fn.Tok, "'main' must not take parameters")
			}
			if d.ReturnType != ast.TypeInt && d.ReturnType != ast.TypeVoid {
				tc.errorAt(fn.Tok, "'main' must return 'int', not '%s'", d.ReturnType)
			}
		}
	}
	if !hasMain {
		tc.errorAt(prog.End, "program has no 'main' function")
	}
}

func (tc *TypeChecker) checkFunc(fn *ast.Node) {
	d := fn.Data.(ast.FuncDeclNode)
	tc.currentFunc = &d
	tc.frameSize = 0
	tc.undefined = make(map[string]bool)

	tc.symbols.EnterScope()
	n := len(d.Params)
	for i, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		// Arguments are pushed first to last, so the last one sits just above the return address.
		sym := &ast.Symbol{
			Name: pd.Name, Type: pd.Type, Kind: ast.SymParam,
			Offset: 2*tc.cfg.WordSize + tc.cfg.SlotSize*(n-1-i), Decl: p,
		}
		if _, ok := tc.symbols.Declare(sym); !ok {
			tc.errorAt(p.Tok, "duplicate parameter '%s' in function '%s'", pd.Name, d.Name)
			continue
		}
		p.Sym = sym
	}

	for _, stmt := range d.Body.Data.(ast.BlockNode).Stmts {
		tc.checkStmt(stmt)
	}
	tc.symbols.ExitScope()

	d.FrameSize = util.AlignUp(tc.frameSize, tc.cfg.StackAlignment)
	fn.Data = d

	if d.ReturnType != ast.TypeVoid && d.Name != "main" && !alwaysReturns(d.Body) {
		tc.warn(config.WarnMissingReturn, fn.Tok, "control may reach the end of non-void function '%s'", d.Name)
	}
}

func (tc *TypeChecker) declareLocal(node *ast.Node) {
	d := node.Data.(ast.VarDeclNode)
	sym := &ast.Symbol{Name: d.Name, Type: d.Type, Kind: ast.SymVar, Decl: node}
	if existing, ok := tc.symbols.Declare(sym); !ok {
		tc.errorAt(node.Tok, "redeclaration of '%s' (previously declared on line %d)", d.Name, existing.Decl.Line())
		return
	}
	tc.frameSize += tc.cfg.SlotSize
	sym.Offset = -tc.frameSize
	node.Sym = sym
}

// Statements

func (tc *TypeChecker) checkStmt(node *ast.Node) {
	switch node.Type {
	case ast.VarDecl:
		tc.checkVarDecl(node)
	case ast.MultiVarDecl:
		for _, decl := range node.Data.(ast.MultiVarDeclNode).Decls {
			tc.checkVarDecl(decl)
		}
	case ast.Block:
		tc.symbols.EnterScope()
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			tc.checkStmt(stmt)
		}
		tc.symbols.ExitScope()
	case ast.If:
		d := node.Data.(ast.IfNode)
		tc.checkCondition(d.Cond, "if")
		tc.checkScoped(d.ThenBody)
		if d.ElseBody != nil {
			tc.checkScoped(d.ElseBody)
		}
	case ast.While:
		d := node.Data.(ast.WhileNode)
		tc.checkCondition(d.Cond, "while")
		tc.loopDepth++
		tc.checkScoped(d.Body)
		tc.loopDepth--
	case ast.DoWhile:
		d := node.Data.(ast.DoWhileNode)
		tc.loopDepth++
		tc.checkScoped(d.Body)
		tc.loopDepth--
		tc.checkCondition(d.Cond, "do-while")
	case ast.For:
		d := node.Data.(ast.ForNode)
		tc.symbols.EnterScope()
		if d.Init != nil {
			tc.checkStmt(d.Init)
		}
		if d.Cond != nil {
			tc.checkCondition(d.Cond, "for")
		}
		if d.Step != nil {
			tc.checkExpr(d.Step)
		}
		tc.loopDepth++
		tc.checkScoped(d.Body)
		tc.loopDepth--
		tc.symbols.ExitScope()
	case ast.Switch:
		tc.checkSwitch(node)
	case ast.Break:
		if tc.loopDepth == 0 && tc.switchDepth == 0 {
			tc.errorAt(node.Tok, "'break' statement not within a loop or switch")
		}
	case ast.Continue:
		if tc.loopDepth == 0 {
			tc.errorAt(node.Tok, "'continue' statement not within a loop")
		}
	case ast.Return:
		tc.checkReturn(node)
	case ast.ExprStmt:
		expr := node.Data.(ast.ExprStmtNode).Expr
		tc.checkExpr(expr)
		if !hasSideEffect(expr) {
			tc.warn(config.WarnUnusedValue, expr.Tok, "expression result unused")
		}
	default:
		panic(fmt.Sprintf("typeChecker: unexpected statement node %d", node.Type))
	}
}

// checkScoped checks a loop or branch body in a scope of its own.
func (tc *TypeChecker) checkScoped(node *ast.Node) {
	if node.Type == ast.Block {
		tc.checkStmt(node)
		return
	}
	tc.symbols.EnterScope()
	tc.checkStmt(node)
	tc.symbols.ExitScope()
}

func (tc *TypeChecker) checkCondition(expr *ast.Node, what string) {
	t := tc.checkExpr(expr)
	if t.IsValid() && !t.IsNumeric() {
		tc.errorAt(expr.Tok, "%s condition must be a numeric value, found '%s'", what, t)
	}
}

func (tc *TypeChecker) checkVarDecl(node *ast.Node) {
	d := node.Data.(ast.VarDeclNode)
	var initType *ast.CType
	if d.Init != nil {
		initType = tc.checkExpr(d.Init)
	}
	if d.Type == ast.TypeVoid {
		tc.errorAt(node.Tok, "variable '%s' declared void", d.Name)
	} else if d.Init != nil {
		tc.checkAssignable(d.Type, initType, d.Init.Tok, fmt.Sprintf("initialization of '%s'", d.Name))
	}
	tc.declareLocal(node)
}

func (tc *TypeChecker) checkSwitch(node *ast.Node) {
	d := node.Data.(ast.SwitchNode)
	t := tc.checkExpr(d.Expr)
	if t.IsValid() && !t.IsInteger() {
		tc.errorAt(d.Expr.Tok, "switch expression must have integer type, found '%s'", t)
	}

	tc.switchDepth++
	tc.symbols.EnterScope()
	seen := make(map[int64]int)
	for _, c := range d.Cases {
		cd := c.Data.(ast.CaseNode)
		if !cd.IsDefault {
			if v, ok := ast.EvalConst(cd.Value); !ok {
				tc.errorAt(cd.Value.Tok, "case label must be an integer constant")
			} else if line, dup := seen[v]; dup {
				tc.errorAt(c.Tok, "duplicate case value %d (previously used on line %d)", v, line)
			} else {
				seen[v] = c.Line()
				cd.Const = v
				c.Data = cd
			}
		}
		for _, stmt := range cd.Body {
			tc.checkStmt(stmt)
		}
	}
	tc.symbols.ExitScope()
	tc.switchDepth--
}

func (tc *TypeChecker) checkReturn(node *ast.Node) {
	fn := tc.currentFunc
	expr := node.Data.(ast.ReturnNode).Expr
	if expr == nil {
		if fn.ReturnType != ast.TypeVoid {
			tc.warn(config.WarnMissingReturn, node.Tok, "non-void function '%s' should return a value", fn.Name)
		}
		return
	}
	t := tc.checkExpr(expr)
	if fn.ReturnType == ast.TypeVoid {
		tc.errorAt(node.Tok, "void function '%s' should not return a value", fn.Name)
		return
	}
	tc.checkAssignable(fn.ReturnType, t, expr.Tok, fmt.Sprintf("return from '%s'", fn.Name))
}

// checkAssignable reports src values that cannot be stored in a dst slot.
// Numeric conversions, including narrowing ones, are allowed.
func (tc *TypeChecker) checkAssignable(dst, src *ast.CType, at token.Token, context string) {
	if !src.IsValid() || !dst.IsValid() {
		return
	}
	switch {
	case src == ast.TypeVoid:
		tc.errorAt(at, "void value not ignored as it ought to be in %s", context)
	case !src.IsNumeric():
		tc.errorAt(at, "cannot convert '%s' to '%s' in %s", src, dst, context)
	case dst.Kind < src.Kind:
		tc.warn(config.WarnNarrowing, at, "implicit conversion from '%s' to '%s' in %s may lose precision", src, dst, context)
	}
}

// Expressions

func (tc *TypeChecker) checkExpr(node *ast.Node) *ast.CType {
	t := tc.exprType(node)
	node.Typ = t
	return t
}

func (tc *TypeChecker) exprType(node *ast.Node) *ast.CType {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return ast.TypeInt
	case ast.FloatNumberNode:
		return ast.TypeFloat
	case ast.CharNode:
		return ast.TypeChar
	case ast.StringNode:
		return ast.TypeString
	case ast.IdentNode:
		return tc.resolveVar(node)
	case ast.AssignNode:
		return tc.checkAssign(node, d)
	case ast.BinaryOpNode:
		return tc.checkBinary(node, d)
	case ast.UnaryOpNode:
		t := tc.checkExpr(d.Expr)
		if !tc.requireNumeric(t, node.Tok) {
			return ast.TypeInvalid
		}
		switch d.Op {
		case token.Not:
			return ast.TypeInt
		case token.Minus, token.Plus:
			return ast.Wider(t, ast.TypeInt)
		}
		return t
	case ast.PostfixOpNode:
		t := tc.checkExpr(d.Expr)
		if !tc.requireNumeric(t, node.Tok) {
			return ast.TypeInvalid
		}
		return t
	case ast.FuncCallNode:
		return tc.checkCall(node, d)
	case ast.AddressOfNode:
		tc.resolveVar(d.LValue)
		tc.errorAt(node.Tok, "'&' is only allowed in scanf arguments")
		return ast.TypeInvalid
	}
	panic(fmt.Sprintf("typeChecker: unexpected expression node %d", node.Type))
}

func (tc *TypeChecker) resolveVar(node *ast.Node) *ast.CType {
	name := node.Data.(ast.IdentNode).Name
	sym := tc.symbols.Lookup(name)
	switch {
	case sym == nil:
		if !tc.undefined[name] {
			tc.undefined[name] = true
			tc.errorAt(node.Tok, "undefined variable '%s'", name)
		}
		node.Typ = ast.TypeInvalid
	case sym.Kind == ast.SymFunc:
		tc.errorAt(node.Tok, "'%s' is a function, not a variable", name)
		node.Typ = ast.TypeInvalid
	default:
		node.Sym = sym
		node.Typ = sym.Type
	}
	return node.Typ
}

func (tc *TypeChecker) requireNumeric(t *ast.CType, opTok token.Token) bool {
	switch {
	case !t.IsValid():
		return false
	case t == ast.TypeVoid:
		tc.errorAt(opTok, "void value not ignored as it ought to be")
		return false
	case !t.IsNumeric():
		tc.errorAt(opTok, "invalid operand of type '%s' to '%s'", t, opTok.Lexeme())
		return false
	}
	return true
}

func (tc *TypeChecker) checkAssign(node *ast.Node, d ast.AssignNode) *ast.CType {
	lhs := tc.resolveVar(d.Lhs)
	rhs := tc.checkExpr(d.Rhs)
	if !lhs.IsValid() {
		return ast.TypeInvalid
	}
	name := d.Lhs.Data.(ast.IdentNode).Name
	if d.Op != token.Eq {
		if !tc.requireNumeric(rhs, node.Tok) {
			return lhs
		}
		if d.Op == token.SlashEq {
			tc.checkDivisor(d.Rhs)
		}
		rhs = ast.Wider(lhs, rhs)
	}
	tc.checkAssignable(lhs, rhs, d.Rhs.Tok, fmt.Sprintf("assignment to '%s'", name))
	return lhs
}

func (tc *TypeChecker) checkBinary(node *ast.Node, d ast.BinaryOpNode) *ast.CType {
	l := tc.checkExpr(d.Left)
	r := tc.checkExpr(d.Right)
	okL := tc.requireNumeric(l, node.Tok)
	okR := tc.requireNumeric(r, node.Tok)
	if !okL || !okR {
		return ast.TypeInvalid
	}

	switch d.Op {
	case token.Rem:
		if !l.IsInteger() || !r.IsInteger() {
			tc.errorAt(node.Tok, "invalid operands to '%%': '%s' and '%s' (integer operands required)", l, r)
			return ast.TypeInvalid
		}
		tc.checkDivisor(d.Right)
		return ast.Wider(l, r)
	case token.Slash:
		tc.checkDivisor(d.Right)
		return ast.Wider(l, r)
	case token.Plus, token.Minus, token.Star:
		return ast.Wider(l, r)
	}
	return ast.TypeInt
}

func (tc *TypeChecker) checkDivisor(node *ast.Node) {
	if v, ok := ast.EvalConst(node); ok && v == 0 {
		tc.warn(config.WarnExtra, node.Tok, "division by zero")
	}
}

func (tc *TypeChecker) checkCall(node *ast.Node, d ast.FuncCallNode) *ast.CType {
	sym := tc.symbols.Lookup(d.Name)
	switch {
	case sym == nil:
		tc.errorAt(node.Tok, "undefined function '%s'", d.Name)
		tc.checkArgsLoosely(d.Args)
		return ast.TypeInvalid
	case sym.Kind != ast.SymFunc:
		tc.errorAt(node.Tok, "called object '%s' is a %s, not a function", d.Name, sym.Kind)
		tc.checkArgsLoosely(d.Args)
		return ast.TypeInvalid
	}
	node.Sym = sym

	if sym.Builtin {
		tc.checkFormatCall(node, d)
		return sym.Type
	}

	if len(d.Args) != len(sym.Params) {
		tc.errorAt(node.Tok, "function '%s' expects %d argument(s), got %d", d.Name, len(sym.Params), len(d.Args))
	}
	for i, arg := range d.Args {
		if arg.Type == ast.AddressOf {
			tc.checkExpr(arg)
			continue
		}
		t := tc.checkExpr(arg)
		if i < len(sym.Params) {
			tc.checkAssignable(sym.Params[i], t, arg.Tok, fmt.Sprintf("argument %d of '%s'", i+1, d.Name))
		}
	}
	return sym.Type
}

// checkArgsLoosely resolves the names used in arguments of a call that
// cannot be checked against a signature.
func (tc *TypeChecker) checkArgsLoosely(args []*ast.Node) {
	for _, arg := range args {
		if arg.Type == ast.AddressOf {
			arg.Typ = tc.resolveVar(arg.Data.(ast.AddressOfNode).LValue)
			continue
		}
		tc.checkExpr(arg)
	}
}

func (tc *TypeChecker) checkFormatCall(node *ast.Node, d ast.FuncCallNode) {
	isScanf := d.Name == "scanf"
	if len(d.Args) == 0 {
		tc.errorAt(node.Tok, "'%s' requires a format string argument", d.Name)
		return
	}
	fmtArg := d.Args[0]
	if fmtArg.Type != ast.String {
		tc.checkArgsLoosely(d.Args)
		tc.errorAt(fmtArg.Tok, "first argument of '%s' must be a string literal", d.Name)
		return
	}
	fmtArg.Typ = ast.TypeString

	verbs := ast.PrintfVerbs
	if isScanf {
		verbs = ast.ScanfVerbs
	}
	groups, err := ast.ParseFormat(fmtArg.Data.(ast.StringNode).Value, verbs)
	if err != nil {
		tc.checkArgsLoosely(d.Args[1:])
		tc.errorAt(fmtArg.Tok, "invalid '%s' format: %v", d.Name, err)
		return
	}
	rest := d.Args[1:]
	if want := ast.Conversions(groups); want != len(rest) {
		tc.checkArgsLoosely(rest)
		tc.errorAt(node.Tok, "'%s' format expects %d argument(s), got %d", d.Name, want, len(rest))
		return
	}

	k := 0
	for _, g := range groups {
		if g.Verb == 0 {
			continue
		}
		arg := rest[k]
		k++
		if isScanf {
			tc.checkScanfArg(arg, g, k)
		} else {
			tc.checkPrintfArg(arg, g, k)
		}
	}
}

func (tc *TypeChecker) checkScanfArg(arg *ast.Node, g ast.FormatGroup, pos int) {
	if arg.Type != ast.AddressOf {
		tc.checkExpr(arg)
		tc.errorAt(arg.Tok, "argument %d of 'scanf' must be the address of a variable (&name)", pos)
		return
	}
	t := tc.resolveVar(arg.Data.(ast.AddressOfNode).LValue)
	arg.Typ = t
	if !t.IsValid() {
		return
	}
	want := ast.TypeInt
	switch g.Verb {
	case 'f':
		want = ast.TypeFloat
	case 'c':
		want = ast.TypeChar
	}
	if t != want {
		tc.errorAt(arg.Tok, "'scanf' conversion '%s' expects a '%s' variable, got '%s'", g.Spec, want, t)
	}
}

func (tc *TypeChecker) checkPrintfArg(arg *ast.Node, g ast.FormatGroup, pos int) {
	t := tc.checkExpr(arg)
	if !t.IsValid() {
		return
	}
	var ok bool
	var want string
	switch g.Verb {
	case 'd', 'i', 'c':
		ok, want = t.IsInteger(), "an integer"
	case 'f':
		ok, want = t.IsFloat(), "a 'float'"
	case 's':
		ok, want = t == ast.TypeString, "a string literal"
	}
	if !ok {
		tc.errorAt(arg.Tok, "'printf' conversion '%s' expects %s for argument %d, got '%s'", g.Spec, want, pos, t)
	}
}

func hasSideEffect(expr *ast.Node) bool {
	switch expr.Type {
	case ast.Assign, ast.FuncCall, ast.PostfixOp:
		return true
	case ast.UnaryOp:
		op := expr.Data.(ast.UnaryOpNode).Op
		return op == token.Inc || op == token.Dec
	}
	return false
}

// alwaysReturns reports whether control cannot fall off the end of stmt.
func alwaysReturns(stmt *ast.Node) bool {
	if stmt == nil {
		return false
	}
	switch d := stmt.Data.(type) {
	case ast.ReturnNode:
		return true
	case ast.BlockNode:
		for _, s := range d.Stmts {
			if alwaysReturns(s) {
				return true
			}
		}
	case ast.IfNode:
		return d.ElseBody != nil && alwaysReturns(d.ThenBody) && alwaysReturns(d.ElseBody)
	case ast.DoWhileNode:
		return alwaysReturns(d.Body) || (isConstTrue(d.Cond) && !containsBreak(d.Body))
	case ast.WhileNode:
		return isConstTrue(d.Cond) && !containsBreak(d.Body)
	case ast.ForNode:
		return (d.Cond == nil || isConstTrue(d.Cond)) && !containsBreak(d.Body)
	}
	return false
}

func isConstTrue(expr *ast.Node) bool {
	v, ok := ast.EvalConst(expr)
	return ok && v != 0
}

// containsBreak reports a break that would leave the loop whose body is stmt.
func containsBreak(stmt *ast.Node) bool {
	if stmt == nil {
		return false
	}
	switch d := stmt.Data.(type) {
	case ast.BreakNode:
		return true
	case ast.BlockNode:
		for _, s := range d.Stmts {
			if containsBreak(s) {
				return true
			}
		}
	case ast.IfNode:
		return containsBreak(d.ThenBody) || containsBreak(d.ElseBody)
	}
	return false
}
