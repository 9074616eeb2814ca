package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/minicc/minicc/pkg/config"
)

// LinkArgs returns the cc arguments that turn generated assembly into a
// 32-bit executable for cfg's entry point.
func LinkArgs(cfg *config.Config, asmFile, outFile string) []string {
	args := []string{"-m32", "-no-pie"}
	if cfg.Entry == config.EntryStart {
		args = append(args, "-nostartfiles")
	}
	return append(args, "-o", outFile, asmFile)
}

// AssembleAndLink writes asm to a temporary file and links it with cc.
func AssembleAndLink(ctx context.Context, cfg *config.Config, outFile, asm string, linkerArgs []string) error {
	asmFile, err := writeTempAsm(asm)
	if err != nil {
		return err
	}
	defer os.Remove(asmFile)

	ccArgs := append(LinkArgs(cfg, asmFile, outFile), linkerArgs...)
	return runTool(ctx, "cc", ccArgs...)
}

// LinkFreestanding assembles and links asm with as and ld alone. It only
// works for programs that start at _start and never call into libc, but it
// needs no 32-bit C runtime.
func LinkFreestanding(ctx context.Context, outFile, asm string) error {
	asmFile, err := writeTempAsm(asm)
	if err != nil {
		return err
	}
	defer os.Remove(asmFile)

	objFile := strings.TrimSuffix(asmFile, ".s") + ".o"
	defer os.Remove(objFile)
	if err := runTool(ctx, "as", "--32", "-o", objFile, asmFile); err != nil {
		return err
	}
	return runTool(ctx, "ld", "-m", "elf_i386", "-e", config.EntryStart, "-o", outFile, objFile)
}

// Freestanding reports whether the compiled program can be linked without
// libc: it enters at _start and makes no printf or scanf calls.
func (r *Result) Freestanding(cfg *config.Config) bool {
	return r.IR != nil && !r.IR.UsesLibc && cfg.Entry == config.EntryStart
}

// Link turns a successful compilation into an executable. When cc cannot
// link and the program is freestanding, as and ld are tried instead.
func (r *Result) Link(ctx context.Context, cfg *config.Config, outFile string, linkerArgs []string) error {
	if r.Stage != StageDone {
		return fmt.Errorf("nothing to link: compilation stopped at %s", r.Stage)
	}
	err := AssembleAndLink(ctx, cfg, outFile, r.Asm, linkerArgs)
	if err == nil || len(linkerArgs) > 0 || !r.Freestanding(cfg) {
		return err
	}
	if ferr := LinkFreestanding(ctx, outFile, r.Asm); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

func writeTempAsm(asm string) (string, error) {
	asmFile, err := os.CreateTemp("", "minicc-*.s")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for assembly: %w", err)
	}
	if _, err := asmFile.WriteString(asm); err != nil {
		asmFile.Close()
		os.Remove(asmFile.Name())
		return "", fmt.Errorf("failed to write assembly to temp file: %w", err)
	}
	if err := asmFile.Close(); err != nil {
		os.Remove(asmFile.Name())
		return "", fmt.Errorf("failed to close temp file for assembly: %w", err)
	}
	return asmFile.Name(), nil
}

func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s command failed: %w\nOutput:\n%s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Execution says which compiled programs this machine can link and run.
type Execution int

const (
	ExecNone         Execution = iota
	ExecFreestanding           // as and ld only; programs that use libc cannot be linked
	ExecFull                   // cc -m32 with a 32-bit C runtime
)

func (e Execution) String() string {
	switch e {
	case ExecFreestanding:
		return "freestanding"
	case ExecFull:
		return "full"
	}
	return "none"
}

// Allows reports whether a program can be linked under e.
func (e Execution) Allows(res *Result, cfg *config.Config) bool {
	switch e {
	case ExecFull:
		return true
	case ExecFreestanding:
		return res.Freestanding(cfg)
	}
	return false
}

// ProbeExecution links and runs a trivial program in dir, first with cc and
// then with as and ld, and returns the strongest mode that worked.
func ProbeExecution(ctx context.Context, dir string) Execution {
	const probe = "int main() { printf(\"%d\", 7); return 7; }"
	exe := filepath.Join(dir, "probe")
	if res, err := Compile(probe, nil); err == nil && res.Link(ctx, config.NewConfig(), exe, nil) == nil && probeRuns(ctx, exe, "7") {
		return ExecFull
	}
	res, err := Compile("int main() { return 7; }", nil)
	if err == nil && LinkFreestanding(ctx, exe, res.Asm) == nil && probeRuns(ctx, exe, "") {
		return ExecFreestanding
	}
	return ExecNone
}

func probeRuns(ctx context.Context, exe, stdout string) bool {
	run, err := Run(ctx, exe, "")
	return err == nil && run.ExitCode == 7 && run.Stdout == stdout
}

// RunResult is the observable behaviour of one program execution.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes a linked program with stdin as its input. A non-zero exit
// status is a result, not an error.
func Run(ctx context.Context, exe, stdin string) (RunResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		res.ExitCode = exitErr.ExitCode()
	default:
		if ctx.Err() != nil {
			return res, fmt.Errorf("program did not finish: %w", ctx.Err())
		}
		return res, err
	}
	return res, nil
}
