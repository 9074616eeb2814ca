package codegen

import (
	"fmt"
	"math"

	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/ir"
	"github.com/minicc/minicc/pkg/token"
)

// Data labels for format strings that need no interning.
var builtinFormats = map[string]string{
	"%d": "fmt_d", "%d\n": "fmt_d_nl",
	"%f": "fmt_f", "%f\n": "fmt_f_nl",
	"%c": "fmt_c", "%c\n": "fmt_c_nl",
	"%s": "fmt_s", "%s\n": "fmt_s_nl",
}

var compoundOps = map[token.Type]token.Type{
	token.PlusEq: token.Plus, token.MinusEq: token.Minus,
	token.StarEq: token.Star, token.SlashEq: token.Slash,
}

const (
	floatOne     = 0x3f800000
	floatSignBit = 0x80000000
	floatAbsMask = 0x7fffffff
)

func imm(v int64) *ir.Const { return &ir.Const{Value: v} }

func slot(sym *ast.Symbol) *ir.Mem {
	if sym == nil {
		panic("internal error: unresolved symbol reached codegen")
	}
	return &ir.Mem{Base: ir.EBP, Offset: sym.Offset}
}

func (ctx *Context) load(sym *ast.Symbol) {
	if sym.Type == ast.TypeChar {
		ctx.emit(ir.OpMovsbl, slot(sym), ir.EAX)
		return
	}
	ctx.emit(ir.OpMov, slot(sym), ir.EAX)
}

func (ctx *Context) store(sym *ast.Symbol) {
	if sym.Type == ast.TypeChar {
		ctx.emit(ir.OpMovb, ir.AL, slot(sym))
		return
	}
	ctx.emit(ir.OpMov, ir.EAX, slot(sym))
}

// convert changes the value in %eax from one numeric type to another.
// Floats travel in %eax as their bit pattern.
func (ctx *Context) convert(from, to *ast.CType) {
	switch {
	case from == to || !from.IsNumeric() || !to.IsNumeric():
	case to.IsFloat():
		ctx.emit(ir.OpCvtsi2ss, ir.EAX, ir.XMM0)
		ctx.emit(ir.OpMovd, ir.XMM0, ir.EAX)
	case from.IsFloat():
		ctx.emit(ir.OpMovd, ir.EAX, ir.XMM0)
		ctx.emit(ir.OpCvttss2si, ir.XMM0, ir.EAX)
		if to == ast.TypeChar {
			ctx.emit(ir.OpMovsbl, ir.AL, ir.EAX)
		}
	case to == ast.TypeChar:
		ctx.emit(ir.OpMovsbl, ir.AL, ir.EAX)
	}
}

func (ctx *Context) stringLabel(text string) string {
	if label, ok := ctx.prog.Strings[text]; ok {
		return label
	}
	label := fmt.Sprintf(".LC%d", ctx.stringCount)
	ctx.stringCount++
	return ctx.prog.AddData(label, text)
}

func (ctx *Context) formatLabel(text string) string {
	if name, ok := builtinFormats[text]; ok {
		return ctx.prog.AddData(name, text)
	}
	return ctx.stringLabel(text)
}

// Expressions leave their value in %eax.

func (ctx *Context) genExpr(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		ctx.emit(ir.OpMov, imm(d.Value), ir.EAX)
	case ast.FloatNumberNode:
		ctx.emit(ir.OpMov, &ir.FloatConst{Bits: math.Float32bits(float32(d.Value))}, ir.EAX)
	case ast.CharNode:
		ctx.emit(ir.OpMov, imm(int64(int8(d.Value))), ir.EAX)
	case ast.StringNode:
		ctx.emit(ir.OpMov, &ir.Global{Name: ctx.stringLabel(d.Value)}, ir.EAX)
	case ast.IdentNode:
		ctx.load(node.Sym)
	case ast.AssignNode:
		ctx.genAssign(d)
	case ast.BinaryOpNode:
		ctx.genBinary(d)
	case ast.UnaryOpNode:
		ctx.genUnary(d)
	case ast.PostfixOpNode:
		sym := d.Expr.Sym
		ctx.load(sym)
		ctx.emit(ir.OpPush, ir.EAX)
		ctx.genStep(d.Op, sym.Type)
		ctx.store(sym)
		ctx.emit(ir.OpPop, ir.EAX)
	case ast.FuncCallNode:
		ctx.genCall(node, d)
	default:
		panic(fmt.Sprintf("internal error: unexpected expression node %d on line %d", node.Type, node.Line()))
	}
}

func (ctx *Context) genAssign(d ast.AssignNode) {
	sym := d.Lhs.Sym
	if d.Op == token.Eq {
		ctx.genExpr(d.Rhs)
		ctx.convert(d.Rhs.Typ, sym.Type)
		ctx.store(sym)
		return
	}

	opType := ast.Wider(sym.Type, d.Rhs.Typ)
	ctx.load(sym)
	ctx.convert(sym.Type, opType)
	ctx.emit(ir.OpPush, ir.EAX)
	ctx.genExpr(d.Rhs)
	ctx.convert(d.Rhs.Typ, opType)
	ctx.emit(ir.OpMov, ir.EAX, ir.ECX)
	ctx.emit(ir.OpPop, ir.EAX)
	ctx.genArith(compoundOps[d.Op], opType)
	ctx.convert(opType, sym.Type)
	ctx.store(sym)
}

// genOperands leaves left in %eax and right in %ecx, both as opType.
func (ctx *Context) genOperands(left, right *ast.Node, opType *ast.CType) {
	ctx.genExpr(left)
	ctx.convert(left.Typ, opType)
	ctx.emit(ir.OpPush, ir.EAX)
	ctx.genExpr(right)
	ctx.convert(right.Typ, opType)
	ctx.emit(ir.OpMov, ir.EAX, ir.ECX)
	ctx.emit(ir.OpPop, ir.EAX)
}

func (ctx *Context) genBinary(d ast.BinaryOpNode) {
	if d.Op == token.AndAnd || d.Op == token.OrOr {
		if ctx.cfg.IsFeatureEnabled(config.FeatShortCircuit) {
			ctx.genShortCircuit(d)
			return
		}
		ctx.genExpr(d.Left)
		ctx.toBool(d.Left.Typ)
		ctx.emit(ir.OpPush, ir.EAX)
		ctx.genExpr(d.Right)
		ctx.toBool(d.Right.Typ)
		ctx.emit(ir.OpMov, ir.EAX, ir.ECX)
		ctx.emit(ir.OpPop, ir.EAX)
		if d.Op == token.AndAnd {
			ctx.emit(ir.OpAnd, ir.ECX, ir.EAX)
		} else {
			ctx.emit(ir.OpOr, ir.ECX, ir.EAX)
		}
		return
	}

	opType := ast.Wider(d.Left.Typ, d.Right.Typ)
	ctx.genOperands(d.Left, d.Right, opType)
	if cond, ok := compareCond(d.Op, opType.IsFloat()); ok {
		if opType.IsFloat() {
			ctx.emit(ir.OpMovd, ir.EAX, ir.XMM0)
			ctx.emit(ir.OpMovd, ir.ECX, ir.XMM1)
			ctx.emit(ir.OpUcomiss, ir.XMM1, ir.XMM0)
		} else {
			ctx.emit(ir.OpCmp, ir.ECX, ir.EAX)
		}
		ctx.emitCond(ir.OpSet, cond, ir.AL)
		ctx.emit(ir.OpMovzbl, ir.AL, ir.EAX)
		return
	}
	ctx.genArith(d.Op, opType)
}

func compareCond(op token.Type, isFloat bool) (ir.Cond, bool) {
	switch op {
	case token.EqEq:
		return ir.CondE, true
	case token.Neq:
		return ir.CondNE, true
	case token.Lt:
		if isFloat {
			return ir.CondB, true
		}
		return ir.CondL, true
	case token.Lte:
		if isFloat {
			return ir.CondBE, true
		}
		return ir.CondLE, true
	case token.Gt:
		if isFloat {
			return ir.CondA, true
		}
		return ir.CondG, true
	case token.Gte:
		if isFloat {
			return ir.CondAE, true
		}
		return ir.CondGE, true
	}
	return ir.CondNone, false
}

// genArith combines %eax and %ecx into %eax.
func (ctx *Context) genArith(op token.Type, t *ast.CType) {
	if t.IsFloat() {
		var fop ir.Op
		switch op {
		case token.Plus:
			fop = ir.OpAddss
		case token.Minus:
			fop = ir.OpSubss
		case token.Star:
			fop = ir.OpMulss
		case token.Slash:
			fop = ir.OpDivss
		default:
			panic(fmt.Sprintf("internal error: operator '%s' on float operands", op))
		}
		ctx.emit(ir.OpMovd, ir.EAX, ir.XMM0)
		ctx.emit(ir.OpMovd, ir.ECX, ir.XMM1)
		ctx.emit(fop, ir.XMM1, ir.XMM0)
		ctx.emit(ir.OpMovd, ir.XMM0, ir.EAX)
		return
	}

	switch op {
	case token.Plus:
		ctx.emit(ir.OpAdd, ir.ECX, ir.EAX)
	case token.Minus:
		ctx.emit(ir.OpSub, ir.ECX, ir.EAX)
	case token.Star:
		ctx.emit(ir.OpImul, ir.ECX, ir.EAX)
	case token.Slash:
		ctx.emit(ir.OpCdq)
		ctx.emit(ir.OpIdiv, ir.ECX)
	case token.Rem:
		ctx.emit(ir.OpCdq)
		ctx.emit(ir.OpIdiv, ir.ECX)
		ctx.emit(ir.OpMov, ir.EDX, ir.EAX)
	default:
		panic(fmt.Sprintf("internal error: unexpected arithmetic operator '%s'", op))
	}
}

// testTruth sets ZF when the value in %eax is false. Both zeros of a
// float are false.
func (ctx *Context) testTruth(t *ast.CType) {
	if t.IsFloat() {
		ctx.emit(ir.OpTest, &ir.FloatConst{Bits: floatAbsMask}, ir.EAX)
		return
	}
	ctx.emit(ir.OpTest, ir.EAX, ir.EAX)
}

func (ctx *Context) toBool(t *ast.CType) {
	ctx.testTruth(t)
	ctx.emitCond(ir.OpSet, ir.CondNE, ir.AL)
	ctx.emit(ir.OpMovzbl, ir.AL, ir.EAX)
}

func (ctx *Context) genJumpIfFalse(cond *ast.Node, target *ir.Label) {
	ctx.genExpr(cond)
	ctx.testTruth(cond.Typ)
	ctx.emitCond(ir.OpJcc, ir.CondE, target)
}

func (ctx *Context) genJumpIfTrue(cond *ast.Node, target *ir.Label) {
	ctx.genExpr(cond)
	ctx.testTruth(cond.Typ)
	ctx.emitCond(ir.OpJcc, ir.CondNE, target)
}

func (ctx *Context) genShortCircuit(d ast.BinaryOpNode) {
	shortLabel, endLabel := ctx.newLabel(), ctx.newLabel()
	jump, full, short := ctx.genJumpIfFalse, int64(1), int64(0)
	if d.Op == token.OrOr {
		jump, full, short = ctx.genJumpIfTrue, 0, 1
	}

	jump(d.Left, shortLabel)
	jump(d.Right, shortLabel)
	ctx.emit(ir.OpMov, imm(full), ir.EAX)
	ctx.jump(endLabel)
	ctx.startBlock(shortLabel)
	ctx.emit(ir.OpMov, imm(short), ir.EAX)
	ctx.startBlock(endLabel)
}

func (ctx *Context) genUnary(d ast.UnaryOpNode) {
	switch d.Op {
	case token.Inc, token.Dec:
		sym := d.Expr.Sym
		ctx.load(sym)
		ctx.genStep(d.Op, sym.Type)
		ctx.store(sym)
		if sym.Type == ast.TypeChar {
			ctx.emit(ir.OpMovsbl, ir.AL, ir.EAX)
		}
	case token.Minus:
		ctx.genExpr(d.Expr)
		if d.Expr.Typ.IsFloat() {
			ctx.emit(ir.OpXor, &ir.FloatConst{Bits: floatSignBit}, ir.EAX)
		} else {
			ctx.emit(ir.OpNeg, ir.EAX)
		}
	case token.Plus:
		ctx.genExpr(d.Expr)
	case token.Not:
		ctx.genExpr(d.Expr)
		ctx.testTruth(d.Expr.Typ)
		ctx.emitCond(ir.OpSet, ir.CondE, ir.AL)
		ctx.emit(ir.OpMovzbl, ir.AL, ir.EAX)
	default:
		panic(fmt.Sprintf("internal error: unexpected unary operator '%s'", d.Op))
	}
}

// genStep adds or subtracts one from %eax.
func (ctx *Context) genStep(op token.Type, t *ast.CType) {
	if t.IsFloat() {
		ctx.emit(ir.OpMovd, ir.EAX, ir.XMM0)
		ctx.emit(ir.OpMov, &ir.FloatConst{Bits: floatOne}, ir.ECX)
		ctx.emit(ir.OpMovd, ir.ECX, ir.XMM1)
		if op == token.Inc {
			ctx.emit(ir.OpAddss, ir.XMM1, ir.XMM0)
		} else {
			ctx.emit(ir.OpSubss, ir.XMM1, ir.XMM0)
		}
		ctx.emit(ir.OpMovd, ir.XMM0, ir.EAX)
		return
	}
	if op == token.Inc {
		ctx.emit(ir.OpAdd, imm(1), ir.EAX)
	} else {
		ctx.emit(ir.OpSub, imm(1), ir.EAX)
	}
}

// genCall pushes arguments first to last and pops them after the call.
func (ctx *Context) genCall(node *ast.Node, d ast.FuncCallNode) {
	sym := node.Sym
	if sym == nil {
		panic(fmt.Sprintf("internal error: unresolved call to '%s'", d.Name))
	}
	if sym.Builtin {
		ctx.genFormatCall(d)
		return
	}
	for i, arg := range d.Args {
		ctx.genExpr(arg)
		ctx.convert(arg.Typ, sym.Params[i])
		ctx.emit(ir.OpPush, ir.EAX)
	}
	ctx.emit(ir.OpCall, &ir.Label{Name: ctx.funcLabel(d.Name)})
	if n := len(d.Args); n > 0 {
		ctx.emit(ir.OpAdd, imm(int64(n*ctx.cfg.WordSize)), ir.ESP)
	}
}

// genFormatCall splits the format into groups and emits one libc call per
// group, so each call sees at most one conversion.
func (ctx *Context) genFormatCall(d ast.FuncCallNode) {
	ctx.prog.UsesLibc = true
	isScanf := d.Name == "scanf"
	verbs := ast.PrintfVerbs
	if isScanf {
		verbs = ast.ScanfVerbs
	}
	groups, err := ast.ParseFormat(d.Args[0].Data.(ast.StringNode).Value, verbs)
	if err != nil {
		panic(fmt.Sprintf("internal error: unchecked format reached codegen: %v", err))
	}

	args := d.Args[1:]
	k := 0
	for _, g := range groups {
		size := ctx.cfg.WordSize
		if g.Verb != 0 {
			arg := args[k]
			k++
			if isScanf {
				ctx.emit(ir.OpLea, slot(arg.Data.(ast.AddressOfNode).LValue.Sym), ir.EAX)
				ctx.emit(ir.OpPush, ir.EAX)
				size += ctx.cfg.WordSize
			} else {
				size += ctx.pushPrintfArg(arg, g.Verb)
			}
		}
		ctx.emit(ir.OpPush, &ir.Global{Name: ctx.formatLabel(g.Text)})
		ctx.emit(ir.OpCall, &ir.Label{Name: d.Name})
		ctx.emit(ir.OpAdd, imm(int64(size)), ir.ESP)
	}
}

// pushPrintfArg pushes one variadic argument and returns its size. Floats
// are promoted to double.
func (ctx *Context) pushPrintfArg(arg *ast.Node, verb byte) int {
	ctx.genExpr(arg)
	if verb == 'f' {
		ctx.convert(arg.Typ, ast.TypeFloat)
		ctx.emit(ir.OpMovd, ir.EAX, ir.XMM0)
		ctx.emit(ir.OpCvtss2sd, ir.XMM0, ir.XMM0)
		ctx.emit(ir.OpSub, imm(8), ir.ESP)
		ctx.emit(ir.OpMovsd, ir.XMM0, &ir.Mem{Base: ir.ESP})
		return 8
	}
	ctx.emit(ir.OpPush, ir.EAX)
	return ctx.cfg.WordSize
}
