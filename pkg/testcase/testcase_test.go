package testcase

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
)

const doc = "# Arithmetic\n" +
	"\n" +
	"Some prose.\n" +
	"\n" +
	"## Test: addition\n" +
	"\n" +
	"```c\n" +
	"int main() { return 1 + 2; }\n" +
	"```\n" +
	"\n" +
	"```exit-code\n" +
	"3\n" +
	"```\n" +
	"\n" +
	"```asm-contains\n" +
	"addl %ecx, %eax\n" +
	"```\n" +
	"\n" +
	"## Test: echo\n" +
	"\n" +
	"```c\n" +
	"int main() { int n; scanf(\"%d\", &n); printf(\"%d\\n\", n); return 0; }\n" +
	"```\n" +
	"\n" +
	"```stdin\n" +
	"41\n" +
	"```\n" +
	"\n" +
	"```stdout\n" +
	"41\n" +
	"```\n"

func TestExtract(t *testing.T) {
	cases, err := Extract([]byte(doc))
	be.Err(t, err, nil)

	want := []TestCase{
		{
			Name:  "addition",
			Line:  5,
			Input: "int main() { return 1 + 2; }\n",
			Assertions: []Assertion{
				{Type: AssertionExitCode, Content: "3", Line: 12},
				{Type: AssertionAsmContains, Content: "addl %ecx, %eax", Line: 16},
			},
		},
		{
			Name:       "echo",
			Line:       19,
			Input:      "int main() { int n; scanf(\"%d\", &n); printf(\"%d\\n\", n); return 0; }\n",
			Stdin:      "41\n",
			Assertions: []Assertion{{Type: AssertionStdout, Content: "41", Line: 30}},
		},
	}
	if diff := cmp.Diff(want, cases); diff != "" {
		t.Errorf("test cases mismatch (-want +got):\n%s", diff)
	}

	be.True(t, cases[0].NeedsExecution())
	code, ok, err := cases[0].ExitCode()
	be.Err(t, err, nil)
	be.True(t, ok)
	be.Equal(t, code, 3)

	_, ok, err = cases[1].ExitCode()
	be.Err(t, err, nil)
	be.Equal(t, ok, false)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"fence outside test", "```c\nint main() {}\n```\n", "fence found outside of a test case"},
		{"unknown fence", "## Test: x\n\n```c\nint main() {}\n```\n\n```wasm\n```\n", "unknown fence language 'wasm'"},
		{"no input", "## Test: x\n\n```stdout\nhi\n```\n", "test 'x' has no input fence"},
		{"no assertions", "## Test: x\n\n```c\nint main() {}\n```\n", "test 'x' has no assertion fences"},
		{"two inputs", "## Test: x\n\n```c\nint a;\n```\n\n```c\nint b;\n```\n", "multiple input fences"},
		{"bad exit code", "## Test: x\n\n```c\nint main() {}\n```\n\n```exit-code\nzero\n```\n", "invalid exit code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.doc))
			be.Err(t, err, tt.want)
		})
	}
}

func TestPlainCodeBlocksIgnored(t *testing.T) {
	cases, err := Extract([]byte("```\nnot a test\n```\n\n## Test: x\n\n```c\nint main() { return 0; }\n```\n\n```exit-code\n0\n```\n"))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 1)
	be.Equal(t, cases[0].Name, "x")
}
