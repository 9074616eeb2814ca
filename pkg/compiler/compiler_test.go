package compiler

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/util"
	"github.com/nalgeon/be"
)

func TestCompileStopsAtFailingStage(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stage Stage
		kind  util.Kind
	}{
		{"lexical", "int main() { return 1 @ 2; }", StageLex, util.Lexical},
		{"syntax", "int main() { return 1 }", StageParse, util.Syntax},
		{"semantic", "int main() { return y; }", StageCheck, util.Semantic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compile(tt.src, nil)
			be.True(t, err != nil)
			be.True(t, IsDiagnostic(err))
			be.Equal(t, res.Stage, tt.stage)
			be.Equal(t, res.Asm, "")

			diags := util.Diagnostics(err)
			be.Equal(t, len(diags), 1)
			be.Equal(t, diags[0].Kind, tt.kind)
			be.Equal(t, diags[0].Line, 1)
		})
	}
}

func TestCompilePartialResults(t *testing.T) {
	res, err := Compile("int main() { return 1 }", nil)
	be.True(t, err != nil)
	be.True(t, len(res.Tokens) > 0)
	be.True(t, res.AST == nil)

	res, err = Compile("int main() { int x; x; return y; }", nil)
	be.True(t, err != nil)
	be.True(t, res.AST != nil)
	be.Equal(t, len(res.Warnings), 1)
	be.Equal(t, res.Warnings[0].Flag, "unused-value")
}

func TestCompileSuccess(t *testing.T) {
	var stages []Stage
	hooks := &Hooks{StageStarted: func(s Stage) { stages = append(stages, s) }}

	res, err := CompileWithHooks("int main() { printf(\"%d\\n\", 6 * 7); return 0; }", config.NewConfig(), hooks)
	be.Err(t, err, nil)
	be.Equal(t, res.Stage, StageDone)
	be.True(t, strings.Contains(res.Asm, "call printf"))
	be.Equal(t, res.Fingerprint, Fingerprint(res.Asm))

	want := []Stage{StageLex, StageParse, StageCheck, StageGenerate}
	if diff := cmp.Diff(want, stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := "int sq(int n) { return n * n; }\nint main() { int i; for (i = 0; i < 3; i++) printf(\"%d \", sq(i)); return 0; }"
	a, err := Compile(src, nil)
	be.Err(t, err, nil)
	b, err := Compile(src, nil)
	be.Err(t, err, nil)
	be.Equal(t, a.Asm, b.Asm)
	be.Equal(t, a.Fingerprint, b.Fingerprint)

	c, err := Compile(strings.Replace(src, "n * n", "n + n", 1), nil)
	be.Err(t, err, nil)
	be.True(t, c.Fingerprint != a.Fingerprint)
}

func TestStageString(t *testing.T) {
	be.Equal(t, StageLex.String(), "tokenize")
	be.Equal(t, StageCheck.String(), "type check")
	be.Equal(t, StageDone.String(), "done")
}

func TestWriteAsm(t *testing.T) {
	dir := t.TempDir()

	out := filepath.Join(dir, "ok.s")
	res, err := Compile("int main() { return 3; }", nil)
	be.Err(t, err, nil)
	be.Err(t, WriteAsm(out, res.Asm), nil)
	data, err := os.ReadFile(out)
	be.Err(t, err, nil)
	be.Equal(t, string(data), res.Asm)

	missing := filepath.Join(dir, "missing", "out.s")
	err = WriteAsm(missing, res.Asm)
	be.Err(t, err, "could not create output file")
	be.Equal(t, IsDiagnostic(err), false)
	_, statErr := os.Stat(missing)
	be.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestLinkArgs(t *testing.T) {
	cfg := config.NewConfig()
	got := LinkArgs(cfg, "prog.s", "prog")
	want := []string{"-m32", "-no-pie", "-nostartfiles", "-o", "prog", "prog.s"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("link args mismatch (-want +got):\n%s", diff)
	}

	be.Err(t, cfg.SetEntry(config.EntryMain), nil)
	got = LinkArgs(cfg, "prog.s", "prog")
	want = []string{"-m32", "-no-pie", "-o", "prog", "prog.s"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("link args mismatch (-want +got):\n%s", diff)
	}
}

func TestFreestanding(t *testing.T) {
	cfg := config.NewConfig()
	plain, err := Compile("int main() { return 5; }", cfg)
	be.Err(t, err, nil)
	be.True(t, plain.Freestanding(cfg))
	be.True(t, ExecFreestanding.Allows(plain, cfg))
	be.Equal(t, ExecNone.Allows(plain, cfg), false)

	printing, err := Compile("int main() { printf(\"%d\", 5); return 0; }", cfg)
	be.Err(t, err, nil)
	be.Equal(t, printing.Freestanding(cfg), false)
	be.Equal(t, ExecFreestanding.Allows(printing, cfg), false)
	be.True(t, ExecFull.Allows(printing, cfg))

	be.Err(t, cfg.SetEntry(config.EntryMain), nil)
	be.Equal(t, plain.Freestanding(cfg), false)
}

func TestExecutionString(t *testing.T) {
	be.Equal(t, ExecNone.String(), "none")
	be.Equal(t, ExecFreestanding.String(), "freestanding")
	be.Equal(t, ExecFull.String(), "full")
}

func TestLinkNeedsCompiledProgram(t *testing.T) {
	res, err := Compile("int main() { return y; }", nil)
	be.True(t, err != nil)
	err = res.Link(context.Background(), config.NewConfig(), filepath.Join(t.TempDir(), "prog"), nil)
	be.Err(t, err, "nothing to link: compilation stopped at type check")
}

func TestLinkFreestanding(t *testing.T) {
	for _, tool := range []string{"as", "ld"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found", tool)
		}
	}
	tests := []struct {
		name string
		src  string
		exit int
	}{
		{"if else", "int main(){int x; x = 10; if (x > 5) x = x + 1; else x = x - 1; return x;}", 11},
		{"call", "int add(int a,int b){return a+b;} int main(){return add(2,3);}", 5},
		{"char wraps", "int main() { char c = 127; c++; return c == -128; }", 1},
		{"float compare", "int main() { float f = 2.5; return f > 2.0 && f < 3.0; }", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := Compile(tt.src, nil)
			be.Err(t, err, nil)

			exe := filepath.Join(t.TempDir(), "prog")
			if err := LinkFreestanding(ctx, exe, res.Asm); err != nil {
				t.Skipf("32-bit assembler or linker unavailable: %v", err)
			}
			run, err := Run(ctx, exe, "")
			be.Err(t, err, nil)
			be.Equal(t, run.ExitCode, tt.exit)
		})
	}
}
