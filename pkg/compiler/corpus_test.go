package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minicc/minicc/pkg/compiler"
	"github.com/minicc/minicc/pkg/testcase"
	"github.com/nalgeon/be"
)

// execution reports how far this machine can link and run 32-bit programs.
func execution(t *testing.T) compiler.Execution {
	t.Helper()
	if testing.Short() {
		return compiler.ExecNone
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	exec := compiler.ProbeExecution(ctx, t.TempDir())
	if exec != compiler.ExecFull {
		t.Logf("execution mode %s: programs that cannot be linked are skipped", exec)
	}
	return exec
}

func TestCorpus(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "testdata", "*.md"))
	be.Err(t, err, nil)
	be.True(t, len(files) > 0)

	runner := &testcase.Runner{
		WorkDir: t.TempDir(),
		Exec:    execution(t),
		Timeout: 10 * time.Second,
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		be.Err(t, err, nil)
		cases, err := testcase.Extract(data)
		if err != nil {
			t.Fatalf("%s: %v", file, err)
		}

		t.Run(filepath.Base(file), func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.Name, func(t *testing.T) {
					out := runner.Run(context.Background(), tc)
					for _, f := range out.Failures {
						t.Errorf("%s:%d: %s", file, tc.Line, f)
					}
					if out.Skipped != "" {
						t.Skip(out.Skipped)
					}
				})
			}
		})
	}
}
