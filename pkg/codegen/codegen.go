package codegen

import (
	"fmt"

	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/ir"
)

type Context struct {
	prog          *ir.Program
	cfg           *config.Config
	labelCount    int
	stringCount   int
	currentFunc   *ir.Func
	currentBlock  *ir.BasicBlock
	funcDecl      *ast.FuncDeclNode
	returnLabel   *ir.Label
	breakLabel    *ir.Label
	continueLabel *ir.Label
	entryExit     *ir.BasicBlock
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{prog: ir.NewProgram(), cfg: cfg}
}

// Generate lowers an analyzed program to AT&T assembly text.
func Generate(root *ast.Node, cfg *config.Config) (string, error) {
	ctx := NewContext(cfg)
	prog := ctx.GenerateIR(root)
	buf, err := NewATTBackend().Generate(prog, ctx.cfg)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// GenerateIR walks the analyzed AST once, in source order. The AST must
// have passed the type checker; anything it would have rejected panics.
func (ctx *Context) GenerateIR(root *ast.Node) *ir.Program {
	if root == nil || root.Type != ast.Program {
		panic("internal error: codegen expects a Program node")
	}
	ctx.prog.Globals = append(ctx.prog.Globals, ctx.funcLabel("main"))
	for _, fn := range root.Data.(ast.ProgramNode).Funcs {
		ctx.genFunc(fn)
	}
	if ctx.entryExit != nil {
		ctx.currentBlock = ctx.entryExit
		ctx.genProcessExit()
	}
	return ctx.prog
}

func (ctx *Context) newLabel() *ir.Label {
	l := &ir.Label{Name: fmt.Sprintf(".L%d", ctx.labelCount)}
	ctx.labelCount++
	return l
}

func (ctx *Context) startBlock(label *ir.Label) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

func (ctx *Context) emit(op ir.Op, args ...ir.Value) {
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, &ir.Instruction{Op: op, Args: args})
}

func (ctx *Context) emitCond(op ir.Op, cond ir.Cond, args ...ir.Value) {
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, &ir.Instruction{Op: op, Cond: cond, Args: args})
}

// terminated reports whether the current block already ends in a jump or return.
func (ctx *Context) terminated() bool {
	instrs := ctx.currentBlock.Instructions
	return len(instrs) > 0 && instrs[len(instrs)-1].IsTerminator()
}

func (ctx *Context) jump(target *ir.Label) {
	if !ctx.terminated() {
		ctx.emit(ir.OpJmp, target)
	}
}

// funcLabel maps a function name to its assembly symbol.
func (ctx *Context) funcLabel(name string) string {
	if name == "main" {
		return ctx.cfg.Entry
	}
	return name
}

func (ctx *Context) isEntryFunc() bool {
	return ctx.funcDecl.Name == "main" && ctx.cfg.Entry == config.EntryStart
}

func (ctx *Context) genFunc(node *ast.Node) {
	d := node.Data.(ast.FuncDeclNode)
	name := ctx.funcLabel(d.Name)
	fn := &ir.Func{Name: name, FrameSize: d.FrameSize}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)
	ctx.currentFunc, ctx.funcDecl = fn, &d
	ctx.breakLabel, ctx.continueLabel = nil, nil

	ctx.startBlock(&ir.Label{Name: name})
	ctx.emit(ir.OpPush, ir.EBP)
	ctx.emit(ir.OpMov, ir.ESP, ir.EBP)
	if d.FrameSize > 0 {
		ctx.emit(ir.OpSub, imm(int64(d.FrameSize)), ir.ESP)
	}

	ctx.returnLabel = ctx.newLabel()
	for _, stmt := range d.Body.Data.(ast.BlockNode).Stmts {
		ctx.genStmt(stmt)
	}
	if !ctx.terminated() {
		ctx.emit(ir.OpMov, imm(0), ir.EAX)
	}

	ctx.startBlock(ctx.returnLabel)
	if ctx.isEntryFunc() {
		// The exit sequence depends on whether any function touched libc.
		ctx.entryExit = ctx.currentBlock
		return
	}
	ctx.emit(ir.OpMov, ir.EBP, ir.ESP)
	ctx.emit(ir.OpPop, ir.EBP)
	ctx.emit(ir.OpRet)
}

// genProcessExit ends _start with the status in %eax. exit() flushes the
// stdio buffers, so it is used whenever printf or scanf ran.
func (ctx *Context) genProcessExit() {
	if ctx.prog.UsesLibc {
		ctx.emit(ir.OpPush, ir.EAX)
		ctx.emit(ir.OpCall, &ir.Label{Name: "exit"})
		return
	}
	ctx.emit(ir.OpMov, ir.EAX, ir.EBX)
	ctx.emit(ir.OpMov, imm(1), ir.EAX)
	ctx.emit(ir.OpInt, imm(0x80))
}

// Statements

func (ctx *Context) genStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.VarDeclNode:
		if d.Init != nil {
			ctx.genExpr(d.Init)
			ctx.convert(d.Init.Typ, d.Type)
			ctx.store(node.Sym)
		}
	case ast.MultiVarDeclNode:
		for _, decl := range d.Decls {
			ctx.genStmt(decl)
		}
	case ast.BlockNode:
		for _, stmt := range d.Stmts {
			ctx.genStmt(stmt)
		}
	case ast.ExprStmtNode:
		ctx.genExpr(d.Expr)
	case ast.IfNode:
		ctx.genIf(d)
	case ast.WhileNode:
		ctx.genWhile(d)
	case ast.DoWhileNode:
		ctx.genDoWhile(d)
	case ast.ForNode:
		ctx.genFor(d)
	case ast.SwitchNode:
		ctx.genSwitch(d)
	case ast.BreakNode:
		if ctx.breakLabel == nil {
			panic(fmt.Sprintf("internal error: 'break' outside loop or switch on line %d", node.Line()))
		}
		ctx.jump(ctx.breakLabel)
	case ast.ContinueNode:
		if ctx.continueLabel == nil {
			panic(fmt.Sprintf("internal error: 'continue' outside loop on line %d", node.Line()))
		}
		ctx.jump(ctx.continueLabel)
	case ast.ReturnNode:
		if d.Expr != nil {
			ctx.genExpr(d.Expr)
			ctx.convert(d.Expr.Typ, ctx.funcDecl.ReturnType)
		} else if ctx.funcDecl.ReturnType == ast.TypeVoid && ctx.isEntryFunc() {
			ctx.emit(ir.OpMov, imm(0), ir.EAX)
		}
		ctx.jump(ctx.returnLabel)
	default:
		panic(fmt.Sprintf("internal error: unexpected statement node %d on line %d", node.Type, node.Line()))
	}
}

func (ctx *Context) genIf(d ast.IfNode) {
	endLabel := ctx.newLabel()
	elseLabel := endLabel
	if d.ElseBody != nil {
		elseLabel = ctx.newLabel()
	}

	ctx.genJumpIfFalse(d.Cond, elseLabel)
	ctx.genStmt(d.ThenBody)
	if d.ElseBody != nil {
		ctx.jump(endLabel)
		ctx.startBlock(elseLabel)
		ctx.genStmt(d.ElseBody)
	}
	ctx.startBlock(endLabel)
}

// withLoop runs body with break and continue bound to the given labels.
func (ctx *Context) withLoop(breakLabel, continueLabel *ir.Label, body func()) {
	oldBreak, oldContinue := ctx.breakLabel, ctx.continueLabel
	ctx.breakLabel, ctx.continueLabel = breakLabel, continueLabel
	body()
	ctx.breakLabel, ctx.continueLabel = oldBreak, oldContinue
}

func (ctx *Context) genWhile(d ast.WhileNode) {
	topLabel, endLabel := ctx.newLabel(), ctx.newLabel()

	ctx.jump(topLabel)
	ctx.startBlock(topLabel)
	ctx.genJumpIfFalse(d.Cond, endLabel)
	ctx.withLoop(endLabel, topLabel, func() { ctx.genStmt(d.Body) })
	ctx.jump(topLabel)
	ctx.startBlock(endLabel)
}

func (ctx *Context) genDoWhile(d ast.DoWhileNode) {
	topLabel, endLabel := ctx.newLabel(), ctx.newLabel()
	condLabel := topLabel
	if containsContinue(d.Body) {
		condLabel = ctx.newLabel()
	}

	ctx.jump(topLabel)
	ctx.startBlock(topLabel)
	ctx.withLoop(endLabel, condLabel, func() { ctx.genStmt(d.Body) })
	if condLabel != topLabel {
		ctx.jump(condLabel)
		ctx.startBlock(condLabel)
	}
	ctx.genJumpIfTrue(d.Cond, topLabel)
	ctx.jump(endLabel)
	ctx.startBlock(endLabel)
}

// genFor lowers the loop as the equivalent while loop with the step at
// the end of each iteration.
func (ctx *Context) genFor(d ast.ForNode) {
	if d.Init != nil {
		ctx.genStmt(d.Init)
	}
	topLabel, endLabel := ctx.newLabel(), ctx.newLabel()
	stepLabel := topLabel
	if d.Step != nil && containsContinue(d.Body) {
		stepLabel = ctx.newLabel()
	}

	ctx.jump(topLabel)
	ctx.startBlock(topLabel)
	if d.Cond != nil {
		ctx.genJumpIfFalse(d.Cond, endLabel)
	}
	ctx.withLoop(endLabel, stepLabel, func() { ctx.genStmt(d.Body) })
	if stepLabel != topLabel {
		ctx.jump(stepLabel)
		ctx.startBlock(stepLabel)
	}
	if d.Step != nil {
		ctx.genExpr(d.Step)
	}
	ctx.jump(topLabel)
	ctx.startBlock(endLabel)
}

// genSwitch compares the discriminant against each label in order and
// falls back to default, or past the switch when there is none.
func (ctx *Context) genSwitch(d ast.SwitchNode) {
	endLabel := ctx.newLabel()
	caseLabels := make([]*ir.Label, len(d.Cases))
	fallback := endLabel

	ctx.genExpr(d.Expr)
	for i, c := range d.Cases {
		caseLabels[i] = ctx.newLabel()
		cd := c.Data.(ast.CaseNode)
		if cd.IsDefault {
			fallback = caseLabels[i]
			continue
		}
		ctx.emit(ir.OpCmp, imm(cd.Const), ir.EAX)
		ctx.emitCond(ir.OpJcc, ir.CondE, caseLabels[i])
	}
	ctx.jump(fallback)

	ctx.withLoop(endLabel, ctx.continueLabel, func() {
		for i, c := range d.Cases {
			ctx.startBlock(caseLabels[i])
			for _, stmt := range c.Data.(ast.CaseNode).Body {
				ctx.genStmt(stmt)
			}
		}
	})
	ctx.startBlock(endLabel)
}

// containsContinue reports a continue that targets the loop whose body is stmt.
func containsContinue(stmt *ast.Node) bool {
	if stmt == nil {
		return false
	}
	switch d := stmt.Data.(type) {
	case ast.ContinueNode:
		return true
	case ast.BlockNode:
		for _, s := range d.Stmts {
			if containsContinue(s) {
				return true
			}
		}
	case ast.IfNode:
		return containsContinue(d.ThenBody) || containsContinue(d.ElseBody)
	case ast.SwitchNode:
		for _, c := range d.Cases {
			for _, s := range c.Data.(ast.CaseNode).Body {
				if containsContinue(s) {
					return true
				}
			}
		}
	}
	return false
}
