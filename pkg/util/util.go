package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/minicc/minicc/pkg/token"
)

// Kind classifies a user-facing diagnostic by the stage that produced it.
type Kind int

const (
	Lexical Kind = iota
	Syntax
	Semantic
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	}
	return "unknown"
}

// Error is a single diagnostic with a 1-based source position.
type Error struct {
	Kind   Kind
	Msg    string
	Line   int
	Column int
	Len    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s error: %s", e.Line, e.Kind, e.Msg)
}

// Errorf builds an Error positioned at tok.
func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind, Msg: fmt.Sprintf(format, args...),
		Line: tok.Line, Column: tok.Column, Len: tok.Len,
	}
}

// ErrorList accumulates independent diagnostics from one stage.
type ErrorList []*Error

func (l *ErrorList) Add(e *Error) { *l = append(*l, e) }

func (l ErrorList) Len() int { return len(l) }

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0], len(l)-1)
}

// Sort orders the list by position, keeping insertion order for ties.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Line != l[j].Line {
			return l[i].Line < l[j].Line
		}
		return l[i].Column < l[j].Column
	})
}

// Err returns nil for an empty list and the list itself otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Diagnostics flattens err into the Error values it carries.
func Diagnostics(err error) []*Error {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	var single *Error
	if errors.As(err, &single) {
		return []*Error{single}
	}
	return nil
}

// Warning is a non-fatal diagnostic, tagged with the -W flag that controls it.
type Warning struct {
	Flag   string
	Msg    string
	Line   int
	Column int
	Len    int
}

// SourceFile tracks the name and content of the file being compiled.
type SourceFile struct {
	Name    string
	Content []rune
}

// Reporter renders diagnostics with the offending source line and a caret.
type Reporter struct {
	w     io.Writer
	src   SourceFile
	color bool
}

func NewReporter(w io.Writer, src SourceFile) *Reporter {
	r := &Reporter{w: w, src: src}
	if f, ok := w.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Error prints every diagnostic carried by err. Errors that are not
// diagnostics are printed on a single line.
func (r *Reporter) Error(err error) {
	diags := Diagnostics(err)
	if diags == nil {
		fmt.Fprintf(r.w, "%s: %s %v\n", r.src.Name, r.paint("31", "error:"), err)
		return
	}
	for _, d := range diags {
		fmt.Fprintf(r.w, "%s:%d:%d: %s %s\n", r.src.Name, d.Line, d.Column,
			r.paint("31", d.Kind.String()+" error:"), d.Msg)
		r.printErrorLine(d.Line, d.Column, d.Len)
	}
}

func (r *Reporter) Warning(w Warning) {
	fmt.Fprintf(r.w, "%s:%d:%d: %s %s [-W%s]\n", r.src.Name, w.Line, w.Column,
		r.paint("33", "warning:"), w.Msg, w.Flag)
	r.printErrorLine(w.Line, w.Column, w.Len)
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(lineNum, col, length int) {
	content := r.src.Content
	if len(content) == 0 || lineNum <= 0 {
		return
	}

	lineStart := 0
	for i, ch := range content {
		if lineNum <= 1 {
			break
		}
		if ch == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	line := strings.ReplaceAll(string(content[lineStart:lineEnd]), "\t", " ")
	fmt.Fprintf(r.w, "  %s\n", line)
	if col < 1 {
		col = 1
	}
	caret := "^"
	if length > 1 {
		caret += strings.Repeat("~", length-1)
	}
	fmt.Fprintf(r.w, "  %s%s\n", strings.Repeat(" ", col-1), r.paint("32", caret))
}

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
