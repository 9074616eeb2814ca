package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/ir"
)

// attBackend prints the program as GNU as input in AT&T syntax.
type attBackend struct {
	out *bytes.Buffer
}

func NewATTBackend() Backend { return &attBackend{} }

func (b *attBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if cfg.TargetArch != "i386" {
		return nil, fmt.Errorf("unsupported target architecture '%s'", cfg.TargetArch)
	}
	b.out = new(bytes.Buffer)

	b.out.WriteString(".section .data\n")
	for _, d := range prog.Data {
		fmt.Fprintf(b.out, "%s:\n\t.asciz \"%s\"\n", d.Name, escapeASCII(d.Value))
	}

	b.out.WriteString("\n.section .text\n")
	for _, g := range prog.Globals {
		fmt.Fprintf(b.out, ".global %s\n", g)
	}
	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return nil, err
		}
	}
	return b.out, nil
}

func (b *attBackend) genFunc(fn *ir.Func) error {
	b.out.WriteString("\n")
	for _, block := range fn.Blocks {
		fmt.Fprintf(b.out, "%s:\n", block.Label.Name)
		for _, in := range block.Instructions {
			if !in.Op.Valid() {
				return fmt.Errorf("internal error: unknown opcode %d in function '%s'", in.Op, fn.Name)
			}
			b.genInstruction(in)
		}
	}
	return nil
}

func (b *attBackend) genInstruction(in *ir.Instruction) {
	b.out.WriteString("\t")
	b.out.WriteString(in.Mnemonic())
	for i, arg := range in.Args {
		if i == 0 {
			b.out.WriteString(" ")
		} else {
			b.out.WriteString(", ")
		}
		b.out.WriteString(arg.String())
	}
	b.out.WriteString("\n")
}

// escapeASCII renders s for a GNU as string directive.
func escapeASCII(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}
