package ir

import "fmt"

type Op int

const (
	OpMov Op = iota
	OpMovb
	OpMovsbl
	OpMovzbl
	OpMovd
	OpMovsd
	OpLea
	OpPush
	OpPop
	OpAdd
	OpSub
	OpImul
	OpCdq
	OpIdiv
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpTest
	OpCmp
	OpSet
	OpJmp
	OpJcc
	OpCall
	OpRet
	OpInt
	OpAddss
	OpSubss
	OpMulss
	OpDivss
	OpUcomiss
	OpCvtsi2ss
	OpCvttss2si
	OpCvtss2sd
)

var mnemonics = [...]string{
	OpMov: "movl", OpMovb: "movb", OpMovsbl: "movsbl", OpMovzbl: "movzbl",
	OpMovd: "movd", OpMovsd: "movsd", OpLea: "leal", OpPush: "pushl", OpPop: "popl",
	OpAdd: "addl", OpSub: "subl", OpImul: "imull", OpCdq: "cdq", OpIdiv: "idivl",
	OpNeg: "negl", OpAnd: "andl", OpOr: "orl", OpXor: "xorl", OpTest: "testl", OpCmp: "cmpl",
	OpSet: "set", OpJmp: "jmp", OpJcc: "j", OpCall: "call", OpRet: "ret", OpInt: "int",
	OpAddss: "addss", OpSubss: "subss", OpMulss: "mulss", OpDivss: "divss",
	OpUcomiss: "ucomiss", OpCvtsi2ss: "cvtsi2ss", OpCvttss2si: "cvttss2si", OpCvtss2sd: "cvtss2sd",
}

func (op Op) Valid() bool { return op >= 0 && int(op) < len(mnemonics) }

// Cond is the condition code suffix of setcc and jcc.
type Cond int

const (
	CondNone Cond = iota
	CondE
	CondNE
	CondL
	CondLE
	CondG
	CondGE
	CondA  // unsigned and float >
	CondAE // unsigned and float >=
	CondB  // unsigned and float <
	CondBE // unsigned and float <=
)

var condSuffixes = [...]string{
	CondNone: "", CondE: "e", CondNE: "ne", CondL: "l", CondLE: "le", CondG: "g", CondGE: "ge",
	CondA: "a", CondAE: "ae", CondB: "b", CondBE: "be",
}

func (c Cond) String() string { return condSuffixes[c] }

type Value interface {
	isValue()
	String() string
}

type Reg int

const (
	EAX Reg = iota
	EBX
	ECX
	EDX
	ESP
	EBP
	AL
	XMM0
	XMM1
)

var regNames = [...]string{
	EAX: "%eax", EBX: "%ebx", ECX: "%ecx", EDX: "%edx", ESP: "%esp", EBP: "%ebp",
	AL: "%al", XMM0: "%xmm0", XMM1: "%xmm1",
}

// Const is an integer immediate.
type Const struct{ Value int64 }

// FloatConst is a single-precision immediate, written as its bit pattern.
type FloatConst struct{ Bits uint32 }

// Mem is a base-relative memory operand.
type Mem struct {
	Base   Reg
	Offset int
}

// Global is the address of a data label used as an immediate.
type Global struct{ Name string }

// Label is a jump or call target.
type Label struct{ Name string }

func (Reg) isValue()         {}
func (*Const) isValue()      {}
func (*FloatConst) isValue() {}
func (*Mem) isValue()        {}
func (*Global) isValue()     {}
func (*Label) isValue()      {}

func (r Reg) String() string         { return regNames[r] }
func (c *Const) String() string      { return fmt.Sprintf("$%d", c.Value) }
func (f *FloatConst) String() string { return fmt.Sprintf("$0x%08x", f.Bits) }
func (g *Global) String() string     { return "$" + g.Name }
func (l *Label) String() string      { return l.Name }

func (m *Mem) String() string {
	if m.Offset == 0 {
		return fmt.Sprintf("(%s)", m.Base)
	}
	return fmt.Sprintf("%d(%s)", m.Offset, m.Base)
}

// Instruction operands are kept in AT&T order, source first.
type Instruction struct {
	Op   Op
	Cond Cond
	Args []Value
}

func (in *Instruction) Mnemonic() string {
	switch in.Op {
	case OpSet, OpJcc:
		return mnemonics[in.Op] + in.Cond.String()
	}
	return mnemonics[in.Op]
}

// IsTerminator reports whether control never falls through in.
func (in *Instruction) IsTerminator() bool {
	return in.Op == OpJmp || in.Op == OpRet
}

type BasicBlock struct {
	Label        *Label
	Instructions []*Instruction
}

type Func struct {
	Name      string
	FrameSize int
	Blocks    []*BasicBlock
}

// Data is a NUL-terminated byte string in the data section.
type Data struct {
	Name  string
	Value string
}

type Program struct {
	Data     []*Data
	Strings  map[string]string // literal text -> data label
	Funcs    []*Func
	Globals  []string
	UsesLibc bool
}

func NewProgram() *Program {
	return &Program{Strings: make(map[string]string)}
}

// AddData interns value under label, keeping first-use order. If value is
// already present its existing label is returned.
func (p *Program) AddData(label, value string) string {
	if existing, ok := p.Strings[value]; ok {
		return existing
	}
	p.Strings[value] = label
	p.Data = append(p.Data, &Data{Name: label, Value: value})
	return label
}
