package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/token"
	"github.com/minicc/minicc/pkg/util"
	"github.com/nalgeon/be"
)

type tok struct {
	Type  token.Type
	Value string
	Line  int
}

func lex(t *testing.T, src string) []tok {
	t.Helper()
	toks, err := Tokenize(src, nil)
	be.Err(t, err, nil)
	var out []tok
	for _, tk := range toks {
		out = append(out, tok{tk.Type, tk.Value, tk.Line})
	}
	return out
}

func lexError(t *testing.T, src string, cfg *config.Config) *util.Error {
	t.Helper()
	_, err := Tokenize(src, cfg)
	diags := util.Diagnostics(err)
	be.Equal(t, len(diags), 1)
	be.Equal(t, diags[0].Kind, util.Lexical)
	return diags[0]
}

func TestDeclaration(t *testing.T) {
	got := lex(t, "int x = 42;")
	want := []tok{
		{token.Int, "", 1},
		{token.Ident, "x", 1},
		{token.Eq, "", 1},
		{token.Number, "42", 1},
		{token.Semi, "", 1},
		{token.EOF, "", 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywords(t *testing.T) {
	src := "int float char void if else while do for switch case default break continue return"
	got := lex(t, src)
	want := []token.Type{
		token.Int, token.Float, token.CharKeyword, token.Void, token.If, token.Else,
		token.While, token.Do, token.For, token.Switch, token.Case, token.Default,
		token.Break, token.Continue, token.Return, token.EOF,
	}
	be.Equal(t, len(got), len(want))
	for i := range want {
		be.Equal(t, got[i].Type, want[i])
		if want[i] != token.EOF {
			be.True(t, got[i].Type.IsKeyword())
		}
	}
}

func TestKeywordPrefixIsIdentifier(t *testing.T) {
	got := lex(t, "integer iffy _x1")
	be.Equal(t, got[0], tok{token.Ident, "integer", 1})
	be.Equal(t, got[1], tok{token.Ident, "iffy", 1})
	be.Equal(t, got[2], tok{token.Ident, "_x1", 1})
}

func TestOperatorsMaximalMunch(t *testing.T) {
	got := lex(t, "== = != ! <= < >= > && || += -= *= /= ++ -- + - * / % &")
	want := []token.Type{
		token.EqEq, token.Eq, token.Neq, token.Not, token.Lte, token.Lt, token.Gte, token.Gt,
		token.AndAnd, token.OrOr, token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq,
		token.Inc, token.Dec, token.Plus, token.Minus, token.Star, token.Slash, token.Rem,
		token.And, token.EOF,
	}
	var types []token.Type
	for _, tk := range got {
		types = append(types, tk.Type)
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("operator mismatch (-want +got):\n%s", diff)
	}
}

func tokenTypes(t *testing.T, src string, cfg *config.Config) []token.Type {
	t.Helper()
	toks, err := Tokenize(src, cfg)
	be.Err(t, err, nil)
	var types []token.Type
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	return types
}

func TestSubsetOperators(t *testing.T) {
	cfg := config.NewConfig()
	be.Err(t, cfg.ApplyStd("c-subset"), nil)
	want := []token.Type{
		token.Ident, token.PlusEq, token.Number, token.Semi,
		token.Ident, token.Plus, token.Plus, token.Semi, token.EOF,
	}
	be.Equal(t, tokenTypes(t, "x += 1; y++;", cfg), want)
}

func TestCompoundOperatorsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	be.Err(t, cfg.ApplyFlags("-Fno-compound-assign"), nil)
	want := []token.Type{
		token.Ident, token.Plus, token.Eq, token.Number, token.Semi,
		token.Ident, token.Inc, token.Semi, token.EOF,
	}
	be.Equal(t, tokenTypes(t, "x += 1; y++;", cfg), want)
}

func TestNumbers(t *testing.T) {
	got := lex(t, "0 123 3.14 .5 2.")
	want := []tok{
		{token.Number, "0", 1},
		{token.Number, "123", 1},
		{token.FloatNumber, "3.14", 1},
		{token.FloatNumber, ".5", 1},
		{token.FloatNumber, "2.", 1},
		{token.EOF, "", 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("numbers mismatch (-want +got):\n%s", diff)
	}
}

func TestCharLiterals(t *testing.T) {
	got := lex(t, `'a' '\n' '\'' '\\' '\0'`)
	be.Equal(t, got[0], tok{token.Char, "a", 1})
	be.Equal(t, got[1], tok{token.Char, "\n", 1})
	be.Equal(t, got[2], tok{token.Char, "'", 1})
	be.Equal(t, got[3], tok{token.Char, `\`, 1})
	be.Equal(t, got[4], tok{token.Char, "\x00", 1})
}

func TestStringEscapes(t *testing.T) {
	got := lex(t, `"a\tb\n\"q\"\\"`)
	be.Equal(t, got[0], tok{token.String, "a\tb\n\"q\"\\", 1})

	empty := lex(t, `""`)
	be.Equal(t, empty[0], tok{token.String, "", 1})
}

func TestCommentsAndLines(t *testing.T) {
	src := "int a; // trailing\n/* multi\nline\ncomment */ float b;\n\nchar c;"
	got := lex(t, src)
	want := []tok{
		{token.Int, "", 1}, {token.Ident, "a", 1}, {token.Semi, "", 1},
		{token.Float, "", 4}, {token.Ident, "b", 4}, {token.Semi, "", 4},
		{token.CharKeyword, "", 6}, {token.Ident, "c", 6}, {token.Semi, "", 6},
		{token.EOF, "", 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestColumns(t *testing.T) {
	toks, err := Tokenize("int  main()", nil)
	be.Err(t, err, nil)
	want := []token.Token{
		{Type: token.Int, Line: 1, Column: 1, Len: 3},
		{Type: token.Ident, Value: "main", Line: 1, Column: 6, Len: 4},
		{Type: token.LParen, Line: 1, Column: 10, Len: 1},
		{Type: token.RParen, Line: 1, Column: 11, Len: 1},
		{Type: token.EOF, Line: 1, Column: 12, Len: 0},
	}
	if diff := cmp.Diff(want, toks, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestIllegalCharacter(t *testing.T) {
	err := lexError(t, "int x;\nint y = 3 @ 4;", nil)
	be.Equal(t, err.Line, 2)
	be.Equal(t, err.Column, 11)
	be.Equal(t, err.Msg, "illegal character '@'")
}

func TestSinglePipeIsIllegal(t *testing.T) {
	err := lexError(t, "a | b", nil)
	be.Equal(t, err.Msg, "illegal character '|'")
}

func TestLexicalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unterminated string", "int x;\n\"abc", 2, "unterminated string literal"},
		{"string across newline", "\"ab\ncd\"", 1, "unterminated string literal"},
		{"bad string escape", `"\q"`, 1, `unknown escape sequence '\q' in string literal`},
		{"unterminated comment", "int x;\n\n/* never closed", 3, "unterminated block comment"},
		{"empty char", "''", 1, "empty or unterminated character literal"},
		{"multi char", "'ab'", 1, "character literal must contain exactly one character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := lexError(t, tt.src, nil)
			be.Equal(t, err.Line, tt.line)
			be.Equal(t, err.Msg, tt.msg)
		})
	}
}

func TestLineCommentsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatCComments, false)
	toks, err := Tokenize("a // b", cfg)
	be.Err(t, err, nil)
	be.Equal(t, toks[1].Type, token.Slash)
	be.Equal(t, toks[2].Type, token.Slash)
}

func TestDeterministic(t *testing.T) {
	src := "int main() { float f = 1.5; printf(\"%f\\n\", f); return 0; }"
	a, err := Tokenize(src, nil)
	be.Err(t, err, nil)
	b, err := Tokenize(src, nil)
	be.Err(t, err, nil)
	be.Equal(t, a, b)
}
