package testcase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/compiler"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/util"
)

// Runner checks test cases against the compiler. Cases that need a linked
// program are skipped when Exec cannot link them.
type Runner struct {
	WorkDir string
	Exec    compiler.Execution
	Timeout time.Duration
	Config  func() *config.Config
}

// Outcome is the verdict for one test case.
type Outcome struct {
	Name        string
	Line        int
	Failures    []string
	Skipped     string
	Fingerprint uint64
	Duration    time.Duration
}

func (o *Outcome) Passed() bool { return len(o.Failures) == 0 && o.Skipped == "" }

func (o *Outcome) failf(a Assertion, format string, args ...interface{}) {
	o.Failures = append(o.Failures, fmt.Sprintf("line %d: %s: %s", a.Line, a.Type, fmt.Sprintf(format, args...)))
}

// Run compiles tc and evaluates every assertion it carries.
func (r *Runner) Run(ctx context.Context, tc TestCase) *Outcome {
	start := time.Now()
	out := &Outcome{Name: tc.Name, Line: tc.Line}
	defer func() { out.Duration = time.Since(start) }()

	cfg := config.NewConfig()
	if r.Config != nil {
		cfg = r.Config()
	}
	res, err := compiler.Compile(tc.Input, cfg)
	if err != nil && !compiler.IsDiagnostic(err) {
		out.Failures = append(out.Failures, fmt.Sprintf("compiler failed: %v", err))
		return out
	}
	out.Fingerprint = res.Fingerprint

	var run *compiler.RunResult
	for _, a := range tc.Assertions {
		switch a.Type {
		case AssertionCompileError:
			got := diagnosticLines(err)
			if diff := cmp.Diff(splitLines(a.Content), got); diff != "" {
				out.failf(a, "diagnostics mismatch (-want +got):\n%s", diff)
			}
			continue
		case AssertionWarning:
			if diff := cmp.Diff(splitLines(a.Content), warningLines(res.Warnings)); diff != "" {
				out.failf(a, "warnings mismatch (-want +got):\n%s", diff)
			}
			continue
		}

		if err != nil {
			out.failf(a, "program did not compile: %v", err)
			continue
		}

		switch a.Type {
		case AssertionAST:
			got := strings.Join(strings.Fields(ast.ToSExpr(res.AST)), " ")
			want := strings.Join(strings.Fields(a.Content), " ")
			if got != want {
				out.failf(a, "tree mismatch (-want +got):\n%s", cmp.Diff(want, got))
			}
		case AssertionAsmContains:
			if !containsRun(res.Asm, splitLines(a.Content)) {
				out.failf(a, "assembly does not contain:\n%s\n--- assembly ---\n%s", a.Content, res.Asm)
			}
		case AssertionExitCode, AssertionStdout:
			if !r.Exec.Allows(res, cfg) {
				if out.Skipped == "" {
					out.Skipped = fmt.Sprintf("program cannot be linked (execution: %s)", r.Exec)
				}
				continue
			}
			if run == nil {
				result, rerr := r.execute(ctx, res, tc.Stdin, cfg)
				if rerr != nil {
					out.failf(a, "%v", rerr)
					return out
				}
				run = &result
			}
			if a.Type == AssertionExitCode {
				want, _ := strconv.Atoi(strings.TrimSpace(a.Content))
				if run.ExitCode != want {
					out.failf(a, "exit code %d, want %d", run.ExitCode, want)
				}
			} else if diff := cmp.Diff(a.Content, strings.TrimRight(run.Stdout, "\n")); diff != "" {
				out.failf(a, "stdout mismatch (-want +got):\n%s", diff)
			}
		}
	}
	if len(out.Failures) > 0 {
		out.Skipped = ""
	}
	return out
}

func (r *Runner) execute(ctx context.Context, res *compiler.Result, stdin string, cfg *config.Config) (compiler.RunResult, error) {
	dir, err := os.MkdirTemp(r.WorkDir, "case-*")
	if err != nil {
		return compiler.RunResult{}, fmt.Errorf("could not create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	exe := filepath.Join(dir, "prog")
	if err := res.Link(ctx, cfg, exe, nil); err != nil {
		return compiler.RunResult{}, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return compiler.Run(ctx, exe, stdin)
}

// diagnosticLines renders err the way compile-error fences spell it.
func diagnosticLines(err error) []string {
	var lines []string
	for _, d := range util.Diagnostics(err) {
		lines = append(lines, d.Error())
	}
	return lines
}

func warningLines(ws []util.Warning) []string {
	var lines []string
	for _, w := range ws {
		lines = append(lines, fmt.Sprintf("line %d: [-W%s] %s", w.Line, w.Flag, w.Msg))
	}
	return lines
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// containsRun reports whether want appears as consecutive lines of asm,
// ignoring leading and trailing whitespace on each line.
func containsRun(asm string, want []string) bool {
	if len(want) == 0 {
		return true
	}
	var got []string
	for _, l := range strings.Split(asm, "\n") {
		got = append(got, strings.TrimSpace(l))
	}
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j, w := range want {
			if got[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
