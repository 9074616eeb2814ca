package ast

import (
	"strconv"
	"strings"

	"github.com/minicc/minicc/pkg/token"
)

// ToSExpr renders node as a one-line S-expression, e.g.
// (binary "+" (int 1) (binary "*" (int 2) (int 3))). Absent optional
// children print as "_".
func ToSExpr(node *Node) string {
	var sb strings.Builder
	writeSExpr(&sb, node)
	return sb.String()
}

func writeSExpr(sb *strings.Builder, node *Node) {
	if node == nil {
		sb.WriteString("_")
		return
	}
	list := func(head string, children ...*Node) {
		sb.WriteString("(" + head)
		for _, c := range children {
			sb.WriteByte(' ')
			writeSExpr(sb, c)
		}
		sb.WriteByte(')')
	}
	op := func(t token.Type) string { return strconv.Quote(t.String()) }

	switch d := node.Data.(type) {
	case NumberNode:
		sb.WriteString("(int " + strconv.FormatInt(d.Value, 10) + ")")
	case FloatNumberNode:
		sb.WriteString("(float " + strconv.FormatFloat(d.Value, 'g', -1, 64) + ")")
	case CharNode:
		sb.WriteString("(char " + strconv.QuoteRune(rune(d.Value)) + ")")
	case StringNode:
		sb.WriteString("(string " + strconv.Quote(d.Value) + ")")
	case IdentNode:
		sb.WriteString("(ident " + strconv.Quote(d.Name) + ")")
	case AssignNode:
		list("assign "+op(d.Op), d.Lhs, d.Rhs)
	case BinaryOpNode:
		list("binary "+op(d.Op), d.Left, d.Right)
	case UnaryOpNode:
		list("unary "+op(d.Op), d.Expr)
	case PostfixOpNode:
		list("postfix "+op(d.Op), d.Expr)
	case FuncCallNode:
		list("call "+strconv.Quote(d.Name), d.Args...)
	case AddressOfNode:
		list("addr", d.LValue)
	case ProgramNode:
		list("program", d.Funcs...)
	case FuncDeclNode:
		sb.WriteString("(func " + strconv.Quote(d.Name) + " " + d.ReturnType.Name + " ")
		list("params", d.Params...)
		sb.WriteByte(' ')
		writeSExpr(sb, d.Body)
		sb.WriteByte(')')
	case VarDeclNode:
		head := "var " + strconv.Quote(d.Name) + " " + d.Type.Name
		if d.Init == nil {
			list(head)
		} else {
			list(head, d.Init)
		}
	case MultiVarDeclNode:
		list("decls", d.Decls...)
	case BlockNode:
		list("block", d.Stmts...)
	case IfNode:
		if d.ElseBody == nil {
			list("if", d.Cond, d.ThenBody)
		} else {
			list("if", d.Cond, d.ThenBody, d.ElseBody)
		}
	case WhileNode:
		list("while", d.Cond, d.Body)
	case DoWhileNode:
		list("do", d.Body, d.Cond)
	case ForNode:
		list("for", d.Init, d.Cond, d.Step, d.Body)
	case SwitchNode:
		list("switch", append([]*Node{d.Expr}, d.Cases...)...)
	case CaseNode:
		if d.IsDefault {
			list("default", d.Body...)
		} else {
			list("case", append([]*Node{d.Value}, d.Body...)...)
		}
	case BreakNode:
		sb.WriteString("(break)")
	case ContinueNode:
		sb.WriteString("(continue)")
	case ReturnNode:
		if d.Expr == nil {
			list("return")
		} else {
			list("return", d.Expr)
		}
	case ExprStmtNode:
		list("expr", d.Expr)
	default:
		sb.WriteString("(?)")
	}
}
