// Package compiler wires the stages together: tokenize, parse, analyze,
// generate. Each stage runs only if the previous one succeeded.
package compiler

import (
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/codegen"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/ir"
	"github.com/minicc/minicc/pkg/lexer"
	"github.com/minicc/minicc/pkg/parser"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/typeChecker"
	"github.com/minicc/minicc/pkg/util"
)

// Stage names the pipeline step a run reached.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageCheck
	StageGenerate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageLex:
		return "tokenize"
	case StageParse:
		return "parse"
	case StageCheck:
		return "type check"
	case StageGenerate:
		return "generate"
	}
	return "done"
}

// Result holds whatever the pipeline produced before it stopped.
type Result struct {
	Stage       Stage
	Tokens      []token.Token
	AST         *ast.Node
	Warnings    []util.Warning
	IR          *ir.Program
	Asm         string
	Fingerprint uint64
}

// Hooks receive progress notifications. Nil fields are skipped.
type Hooks struct {
	StageStarted func(Stage)
}

func (h *Hooks) started(s Stage) {
	if h != nil && h.StageStarted != nil {
		h.StageStarted(s)
	}
}

// Compile runs the whole pipeline over src. On failure the returned Result
// is still non-nil and err carries the diagnostics of the failing stage.
func Compile(src string, cfg *config.Config) (*Result, error) {
	return CompileWithHooks(src, cfg, nil)
}

func CompileWithHooks(src string, cfg *config.Config, hooks *Hooks) (*Result, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	res := &Result{}

	res.Stage = StageLex
	hooks.started(StageLex)
	toks, err := lexer.Tokenize(src, cfg)
	if err != nil {
		return res, err
	}
	res.Tokens = toks

	res.Stage = StageParse
	hooks.started(StageParse)
	root, err := parser.NewParser(toks, cfg).Parse()
	if err != nil {
		return res, err
	}
	res.AST = root

	res.Stage = StageCheck
	hooks.started(StageCheck)
	tc := typeChecker.NewTypeChecker(cfg)
	err = tc.Check(root)
	res.Warnings = tc.Warnings()
	if err != nil {
		return res, err
	}

	res.Stage = StageGenerate
	hooks.started(StageGenerate)
	res.IR = codegen.NewContext(cfg).GenerateIR(root)
	buf, err := codegen.NewATTBackend().Generate(res.IR, cfg)
	if err != nil {
		return res, err
	}
	res.Asm = buf.String()
	res.Fingerprint = Fingerprint(res.Asm)
	res.Stage = StageDone
	return res, nil
}

// Fingerprint identifies generated assembly, for caching and deduplication.
func Fingerprint(asm string) uint64 { return xxhash.Sum64String(asm) }

// WriteAsm writes asm to path, removing the file again if any step fails.
func WriteAsm(path, asm string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create output file '%s': %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close output file '%s': %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err = f.WriteString(asm); err != nil {
		return fmt.Errorf("could not write output file '%s': %w", path, err)
	}
	return nil
}

// IsDiagnostic reports whether err describes a problem in the program
// rather than in the environment.
func IsDiagnostic(err error) bool {
	var list util.ErrorList
	var single *util.Error
	return errors.As(err, &list) || errors.As(err, &single)
}
