package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goforj/godump"
	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/cli"
	"github.com/minicc/minicc/pkg/compiler"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/util"
)

func main() {
	app := cli.NewApp("minicc")
	app.Synopsis = "[options] <input.c>"
	app.Description = "A compiler for a small subset of C. Emits 32-bit x86 assembly in AT&T syntax, one translation unit at a time."
	app.Version = "0.1.0"
	app.Repository = "<https://github.com/minicc/minicc>"

	var (
		outFile    string
		std        string
		entry      string
		linkerArgs []string
		link       bool
		dumpTokens bool
		dumpAST    bool
		dumpIR     bool
		printHash  bool
		verbose    bool
		pedantic   bool
		wall       bool
		wnoall     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>. Defaults to <input>.s, or a.out with --link.", "file")
	fs.String(&std, "std", "", "ext", "Specify language level (c-subset, ext).", "std")
	fs.String(&entry, "entry", "e", config.EntryStart, "Emit main under this symbol (_start, main).", "symbol")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.Bool(&link, "link", "", false, "Assemble and link with 'cc -m32' instead of writing assembly.")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Print the token stream and exit.")
	fs.Bool(&dumpAST, "dump-ast", "d", false, "Print the syntax tree as an S-expression and exit.")
	fs.Bool(&dumpIR, "dump-ir", "", false, "Dump the instruction IR and exit.")
	fs.Bool(&printHash, "hash", "", false, "Print the fingerprint of the generated assembly.")
	fs.Bool(&verbose, "verbose", "v", false, "Print each compilation stage.")
	fs.Bool(&pedantic, "pedantic", "", false, "Issue all warnings demanded by the strict standard.")
	fs.Bool(&wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&wnoall, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			fmt.Fprintln(os.Stderr, "minicc: error: expected exactly one input file")
			return cli.ErrUsage
		}
		inputFile := inputFiles[0]

		// Pedantic flag affects everything else
		if pedantic {
			cfg.SetWarning(config.WarnPedantic, true)
		}
		if err := cfg.ApplyStd(std); err != nil {
			return fail(err)
		}
		if err := cfg.SetEntry(entry); err != nil {
			return fail(err)
		}
		switch {
		case wall:
			cfg.ApplyFlags("-Wall")
		case wnoall:
			cfg.ApplyFlags("-Wno-all")
		}
		// Individual flags override the standard and -Wall
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		content, err := os.ReadFile(inputFile)
		if err != nil {
			return fail(fmt.Errorf("could not read file '%s': %w", inputFile, err))
		}
		src := util.SourceFile{Name: inputFile, Content: []rune(string(content))}
		reporter := util.NewReporter(os.Stderr, src)
		infof := func(format string, args ...interface{}) {
			if verbose {
				fmt.Fprintf(os.Stderr, "minicc: info: "+format+"\n", args...)
			}
		}
		infof("read '%s' (%s)", inputFile, humanize.Bytes(uint64(len(content))))

		start := time.Now()
		hooks := &compiler.Hooks{StageStarted: func(s compiler.Stage) {
			switch s {
			case compiler.StageLex:
				infof("Tokenizing...")
			case compiler.StageParse:
				infof("Parsing...")
			case compiler.StageCheck:
				infof("Type checking...")
			case compiler.StageGenerate:
				infof("Generating assembly...")
			}
		}}
		res, err := compiler.CompileWithHooks(string(content), cfg, hooks)
		for _, w := range res.Warnings {
			reporter.Warning(w)
		}

		// Dumps only need the stages before them to succeed
		if dumpTokens && res.Tokens != nil {
			printTokens(res.Tokens)
			return nil
		}
		if dumpAST && res.AST != nil {
			fmt.Println(ast.ToSExpr(res.AST))
			return nil
		}
		if err != nil {
			reporter.Error(err)
			return err
		}
		if dumpIR {
			godump.Dump(res.IR)
			return nil
		}
		infof("generated %s of assembly in %s", humanize.Bytes(uint64(len(res.Asm))), time.Since(start).Round(time.Microsecond))
		if printHash {
			fmt.Printf("%016x\n", res.Fingerprint)
		}

		if link {
			if outFile == "" {
				outFile = "a.out"
			}
			infof("Linking to create '%s'...", outFile)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := res.Link(ctx, cfg, outFile, linkerArgs); err != nil {
				return fail(fmt.Errorf("assembler/linker failed: %w", err))
			}
			infof("Done!")
			return nil
		}

		if outFile == "" {
			outFile = strings.TrimSuffix(inputFile, filepath.Ext(inputFile)) + ".s"
		}
		if outFile == "-" {
			fmt.Print(res.Asm)
			return nil
		}
		if err := compiler.WriteAsm(outFile, res.Asm); err != nil {
			return fail(err)
		}
		infof("wrote '%s'", outFile)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func fail(err error) error {
	fmt.Fprintf(os.Stderr, "minicc: error: %v\n", err)
	return err
}

func printTokens(toks []token.Token) {
	for _, tok := range toks {
		fmt.Printf("%d:%d\t%-12s %s\n", tok.Line, tok.Column, tok.Type, tok.Lexeme())
	}
}
