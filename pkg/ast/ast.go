// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/minicc/minicc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	FloatNumber
	Char
	String
	Ident
	Assign
	BinaryOp
	UnaryOp
	PostfixOp
	FuncCall
	AddressOf

	// Statements
	Program
	FuncDecl
	VarDecl
	MultiVarDecl
	Block
	If
	While
	DoWhile
	For
	Switch
	Case
	Break
	Continue
	Return
	ExprStmt
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
	Typ  *CType  // Set by the type checker on expressions
	Sym  *Symbol // Set by the type checker on identifiers, calls and declarations
}

// Line is the 1-based source line the node starts on.
func (n *Node) Line() int { return n.Tok.Line }

func (n *Node) IsExpr() bool { return n.Type <= AddressOf }

// CTypeKind defines the kind of a CType
type CTypeKind int

const (
	TYPE_INVALID CTypeKind = iota
	TYPE_VOID
	TYPE_CHAR
	TYPE_INT
	TYPE_FLOAT
	TYPE_STRING
)

// CType is one of the scalar types of the language. Values are shared, so
// types compare by pointer.
type CType struct {
	Kind CTypeKind
	Name string
	Size int
}

// Pre-defined types
var (
	TypeInvalid = &CType{Kind: TYPE_INVALID, Name: "<invalid>"}
	TypeVoid    = &CType{Kind: TYPE_VOID, Name: "void"}
	TypeChar    = &CType{Kind: TYPE_CHAR, Name: "char", Size: 1}
	TypeInt     = &CType{Kind: TYPE_INT, Name: "int", Size: 4}
	TypeFloat   = &CType{Kind: TYPE_FLOAT, Name: "float", Size: 4}
	TypeString  = &CType{Kind: TYPE_STRING, Name: "string", Size: 4}
)

func (t *CType) String() string { return t.Name }

func (t *CType) IsNumeric() bool {
	return t.Kind == TYPE_CHAR || t.Kind == TYPE_INT || t.Kind == TYPE_FLOAT
}

func (t *CType) IsInteger() bool { return t.Kind == TYPE_CHAR || t.Kind == TYPE_INT }

func (t *CType) IsFloat() bool { return t.Kind == TYPE_FLOAT }

func (t *CType) IsValid() bool { return t != nil && t.Kind != TYPE_INVALID }

// Wider returns the arithmetic result type of a and b: float > int > char.
func Wider(a, b *CType) *CType {
	if a.Kind > b.Kind {
		return a
	}
	return b
}

// SymbolKind distinguishes the entities a name can denote.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymParam
	SymFunc
)

func (k SymbolKind) String() string {
	switch k {
	case SymVar:
		return "variable"
	case SymParam:
		return "parameter"
	}
	return "function"
}

// Symbol is the resolved meaning of a name. Offset is the signed byte
// offset from the frame base for variables and parameters.
type Symbol struct {
	Name     string
	Type     *CType
	Kind     SymbolKind
	Depth    int
	Offset   int
	Params   []*CType
	Variadic bool
	Builtin  bool
	Decl     *Node
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type FloatNumberNode struct{ Value float64 }
type CharNode struct{ Value byte }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type AssignNode struct{ Op token.Type; Lhs, Rhs *Node }
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type UnaryOpNode struct{ Op token.Type; Expr *Node }
type PostfixOpNode struct{ Op token.Type; Expr *Node }
type FuncCallNode struct{ Name string; Args []*Node }
type AddressOfNode struct{ LValue *Node }
type ProgramNode struct{ Funcs []*Node; End token.Token }
type FuncDeclNode struct {
	Name       string
	ReturnType *CType
	Params     []*Node
	Body       *Node
	FrameSize  int // Bytes of local storage, set by the type checker
}
type VarDeclNode struct {
	Name string
	Type *CType
	Init *Node
}
type MultiVarDeclNode struct{ Decls []*Node }
type BlockNode struct{ Stmts []*Node }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type DoWhileNode struct{ Body, Cond *Node }
type ForNode struct{ Init, Cond, Step, Body *Node }
type SwitchNode struct{ Expr *Node; Cases []*Node }
type CaseNode struct {
	Value     *Node // nil for default
	Body      []*Node
	Const     int64 // Value of the label, set by the type checker
	IsDefault bool
}
type BreakNode struct{}
type ContinueNode struct{}
type ReturnNode struct{ Expr *Node }
type ExprStmtNode struct{ Expr *Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewFloatNumber(tok token.Token, value float64) *Node {
	return newNode(tok, FloatNumber, FloatNumberNode{Value: value})
}
func NewChar(tok token.Token, value byte) *Node {
	return newNode(tok, Char, CharNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewAssign(tok token.Token, op token.Type, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Op: op, Lhs: lhs, Rhs: rhs})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func NewPostfixOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, PostfixOp, PostfixOpNode{Op: op, Expr: expr})
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}
func NewAddressOf(tok token.Token, lvalue *Node) *Node {
	return newNode(tok, AddressOf, AddressOfNode{LValue: lvalue})
}
func NewProgram(tok token.Token, funcs []*Node, end token.Token) *Node {
	return newNode(tok, Program, ProgramNode{Funcs: funcs, End: end})
}
func NewFuncDecl(tok token.Token, name string, returnType *CType, params []*Node, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{Name: name, ReturnType: returnType, Params: params, Body: body})
}
func NewVarDecl(tok token.Token, name string, varType *CType, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: varType, Init: init})
}
func NewMultiVarDecl(tok token.Token, decls []*Node) *Node {
	return newNode(tok, MultiVarDecl, MultiVarDeclNode{Decls: decls})
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody})
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewDoWhile(tok token.Token, body, cond *Node) *Node {
	return newNode(tok, DoWhile, DoWhileNode{Body: body, Cond: cond})
}
func NewFor(tok token.Token, init, cond, step, body *Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Step: step, Body: body})
}
func NewSwitch(tok token.Token, expr *Node, cases []*Node) *Node {
	return newNode(tok, Switch, SwitchNode{Expr: expr, Cases: cases})
}
func NewCase(tok token.Token, value *Node, body []*Node) *Node {
	return newNode(tok, Case, CaseNode{Value: value, Body: body})
}
func NewDefault(tok token.Token, body []*Node) *Node {
	return newNode(tok, Case, CaseNode{Body: body, IsDefault: true})
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr})
}
func NewExprStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr})
}

// EvalConst evaluates an integer constant expression built from literals
// and arithmetic, comparison and logical operators.
func EvalConst(node *Node) (int64, bool) {
	if node == nil {
		return 0, false
	}
	switch d := node.Data.(type) {
	case NumberNode:
		return d.Value, true
	case CharNode:
		return int64(int8(d.Value)), true
	case UnaryOpNode:
		val, ok := EvalConst(d.Expr)
		if !ok {
			return 0, false
		}
		switch d.Op {
		case token.Minus: return int64(int32(-val)), true
		case token.Plus: return val, true
		case token.Not: return boolToInt(val == 0), true
		}
	case BinaryOpNode:
		l, ok := EvalConst(d.Left)
		if !ok {
			return 0, false
		}
		r, ok := EvalConst(d.Right)
		if !ok {
			return 0, false
		}
		switch d.Op {
		case token.Plus: return int64(int32(l + r)), true
		case token.Minus: return int64(int32(l - r)), true
		case token.Star: return int64(int32(l * r)), true
		case token.Slash:
			if r == 0 {
				return 0, false
			}
			return int64(int32(l / r)), true
		case token.Rem:
			if r == 0 {
				return 0, false
			}
			return int64(int32(l % r)), true
		case token.EqEq: return boolToInt(l == r), true
		case token.Neq: return boolToInt(l != r), true
		case token.Lt: return boolToInt(l < r), true
		case token.Gt: return boolToInt(l > r), true
		case token.Lte: return boolToInt(l <= r), true
		case token.Gte: return boolToInt(l >= r), true
		case token.AndAnd: return boolToInt(l != 0 && r != 0), true
		case token.OrOr: return boolToInt(l != 0 || r != 0), true
		}
	}
	return 0, false
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
