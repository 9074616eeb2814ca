package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
)

func TestParse(t *testing.T) {
	var out, std string
	var verbose bool
	var linkerArgs []string

	fs := NewFlagSet("minicc")
	fs.String(&out, "output", "o", "a.s", "Place the output into <file>.", "file")
	fs.String(&std, "std", "", "ext", "Language level.", "std")
	fs.Bool(&verbose, "verbose", "v", false, "Print stages.")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")

	err := fs.Parse([]string{"-oprog.s", "--std=c-subset", "-v", "in.c", "-L", "-static", "--linker-arg=-s", "--", "-notaflag"})
	be.Err(t, err, nil)
	be.Equal(t, out, "prog.s")
	be.Equal(t, std, "c-subset")
	be.True(t, verbose)
	if diff := cmp.Diff([]string{"-static", "-s"}, linkerArgs); diff != "" {
		t.Errorf("linker args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in.c", "-notaflag"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown long", []string{"--nope"}, "unknown flag: --nope"},
		{"unknown short", []string{"-x"}, "unknown shorthand flag: -x"},
		{"missing value", []string{"-o"}, "flag needs an argument: -o"},
		{"bad bool", []string{"--verbose=maybe"}, "invalid boolean value 'maybe'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out string
			var verbose bool
			fs := NewFlagSet("minicc")
			fs.String(&out, "output", "o", "a.s", "", "file")
			fs.Bool(&verbose, "verbose", "v", false, "")
			be.Err(t, fs.Parse(tt.args), tt.want)
		})
	}
}

func TestFlagGroups(t *testing.T) {
	on, off := new(bool), new(bool)
	fs := NewFlagSet("minicc")
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning flag", "Available Warnings:",
		[]FlagGroupEntry{{Name: "narrowing", Prefix: "W", Usage: "Warn on narrowing.", Enabled: on, Disabled: off}})

	be.Err(t, fs.Parse([]string{"-Wnarrowing", "-Wno-narrowing"}), nil)
	be.True(t, *on)
	be.True(t, *off)
}

func TestAppRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	var got []string

	app := NewApp("minicc")
	app.Synopsis = "[options] <input.c>"
	app.Description = "Compile a C subset to x86 assembly."
	app.Version = "test"
	app.Stdout, app.Stderr = &stdout, &stderr
	app.Action = func(args []string) error {
		got = args
		return nil
	}

	be.Err(t, app.Run([]string{"prog.c"}), nil)
	be.Equal(t, got, []string{"prog.c"})

	stdout.Reset()
	app = NewApp("minicc")
	app.Version = "test"
	app.Stdout = &stdout
	be.Err(t, app.Run([]string{"--version"}), nil)
	be.Equal(t, stdout.String(), "minicc test\n")
}

func TestAppUsageError(t *testing.T) {
	var stderr bytes.Buffer
	app := NewApp("minicc")
	app.Synopsis = "[options] <input.c>"
	app.Stderr = &stderr

	err := app.Run([]string{"--bogus"})
	be.Err(t, err, ErrUsage)
	be.True(t, strings.Contains(stderr.String(), "unknown flag: --bogus"))
	be.True(t, strings.Contains(stderr.String(), "Usage: minicc [options] <input.c>"))
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four", 9)
	be.Equal(t, lines, []string{"one two", "three", "four"})
}
