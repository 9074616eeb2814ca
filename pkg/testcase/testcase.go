// Package testcase extracts compiler test cases from Markdown documents.
//
// A test starts at a heading "Test: <name>" and collects the fenced code
// blocks that follow it: exactly one ```c input fence, an optional
// ```stdin fence, and one or more assertion fences.
package testcase

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const InputFence = "c"
const StdinFence = "stdin"

type AssertionType string

const (
	AssertionAST          AssertionType = "ast"           // S-expression of the program
	AssertionAsmContains  AssertionType = "asm-contains"  // each line must appear in the assembly
	AssertionCompileError AssertionType = "compile-error" // one "line N: kind error: message" per line
	AssertionWarning      AssertionType = "warning"       // one "line N: [-Wflag] message" per line
	AssertionExitCode     AssertionType = "exit-code"
	AssertionStdout       AssertionType = "stdout"
)

var assertionTypes = map[string]AssertionType{
	string(AssertionAST):          AssertionAST,
	string(AssertionAsmContains):  AssertionAsmContains,
	string(AssertionCompileError): AssertionCompileError,
	string(AssertionWarning):      AssertionWarning,
	string(AssertionExitCode):     AssertionExitCode,
	string(AssertionStdout):       AssertionStdout,
}

type Assertion struct {
	Type    AssertionType
	Content string
	Line    int
}

type TestCase struct {
	Name       string
	Line       int
	Input      string
	Stdin      string
	Assertions []Assertion
}

// NeedsExecution reports whether the case has to be linked and run.
func (tc *TestCase) NeedsExecution() bool {
	for _, a := range tc.Assertions {
		if a.Type == AssertionExitCode || a.Type == AssertionStdout {
			return true
		}
	}
	return false
}

// ExitCode returns the expected exit status, if the case asserts one.
func (tc *TestCase) ExitCode() (int, bool, error) {
	for _, a := range tc.Assertions {
		if a.Type != AssertionExitCode {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(a.Content))
		if err != nil {
			return 0, false, fmt.Errorf("line %d: invalid exit code %q in test '%s'", a.Line, a.Content, tc.Name)
		}
		return code, true, nil
	}
	return 0, false, nil
}

// Extract parses a Markdown document and returns its test cases in order.
func Extract(markdown []byte) ([]TestCase, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []TestCase
	var current *TestCase

	finish := func() error {
		if current == nil {
			return nil
		}
		if err := validate(current); err != nil {
			return err
		}
		cases = append(cases, *current)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := nodeText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &TestCase{Name: strings.TrimPrefix(heading, "Test: "), Line: lineOf(n, markdown)}

		case *ast.FencedCodeBlock:
			lang := string(n.Language(markdown))
			content := blockContent(n, markdown)
			line := lineOf(n, markdown)

			if current == nil {
				if lang != "" {
					return ast.WalkStop, fmt.Errorf("line %d: '%s' fence found outside of a test case", line, lang)
				}
				return ast.WalkContinue, nil
			}

			switch lang {
			case InputFence:
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences in test '%s'", line, current.Name)
				}
				current.Input = content
			case StdinFence:
				if current.Stdin != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple stdin fences in test '%s'", line, current.Name)
				}
				current.Stdin = content
			default:
				typ, ok := assertionTypes[lang]
				if !ok {
					return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, current.Name)
				}
				current.Assertions = append(current.Assertions, Assertion{
					Type: typ, Content: strings.TrimRight(content, "\n"), Line: line,
				})
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return cases, nil
}

func validate(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("line %d: test '%s' has no input fence", tc.Line, tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("line %d: test '%s' has no assertion fences", tc.Line, tc.Name)
	}
	if _, _, err := tc.ExitCode(); err != nil {
		return err
	}
	return nil
}

func nodeText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line of the node's first content line.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	return bytes.Count(source[:node.Lines().At(0).Start], []byte("\n")) + 1
}
