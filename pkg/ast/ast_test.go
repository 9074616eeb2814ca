package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minicc/minicc/pkg/token"
	"github.com/nalgeon/be"
)

func TestWider(t *testing.T) {
	be.Equal(t, Wider(TypeChar, TypeInt), TypeInt)
	be.Equal(t, Wider(TypeInt, TypeChar), TypeInt)
	be.Equal(t, Wider(TypeInt, TypeFloat), TypeFloat)
	be.Equal(t, Wider(TypeFloat, TypeChar), TypeFloat)
	be.Equal(t, Wider(TypeChar, TypeChar), TypeChar)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		format string
		want   []FormatGroup
	}{
		{"%d", []FormatGroup{{Text: "%d", Verb: 'd', Spec: "%d"}}},
		{"hello\n", []FormatGroup{{Text: "hello\n"}}},
		{"", []FormatGroup{{Text: ""}}},
		{"x=%d, y=%4.2f\n", []FormatGroup{
			{Text: "x=%d", Verb: 'd', Spec: "%d"},
			{Text: ", y=%4.2f\n", Verb: 'f', Spec: "%4.2f"},
		}},
		{"100%% %-3c", []FormatGroup{{Text: "100%% %-3c", Verb: 'c', Spec: "%-3c"}}},
		{"%s%s", []FormatGroup{
			{Text: "%s", Verb: 's', Spec: "%s"},
			{Text: "%s", Verb: 's', Spec: "%s"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := ParseFormat(tt.format, "dicfs")
			be.Err(t, err, nil)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("groups mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFormatErrors(t *testing.T) {
	_, err := ParseFormat("%x", "dicfs")
	be.Err(t, err, "unsupported conversion '%x'")
	_, err = ParseFormat("%s", "dicf")
	be.Err(t, err, "unsupported conversion '%s'")
	_, err = ParseFormat("value: %", "dicfs")
	be.Err(t, err, "incomplete conversion")
}

func TestConversions(t *testing.T) {
	groups, err := ParseFormat("%d and %d and 100%%", "d")
	be.Err(t, err, nil)
	be.Equal(t, Conversions(groups), 2)
}

func TestEvalConst(t *testing.T) {
	tok := token.Token{}
	expr := NewBinaryOp(tok, token.Star,
		NewUnaryOp(tok, token.Minus, NewNumber(tok, 3)),
		NewBinaryOp(tok, token.Plus, NewChar(tok, 'A'), NewNumber(tok, 1)))
	v, ok := EvalConst(expr)
	be.True(t, ok)
	be.Equal(t, v, int64(-198))

	_, ok = EvalConst(NewBinaryOp(tok, token.Slash, NewNumber(tok, 1), NewNumber(tok, 0)))
	be.Equal(t, ok, false)

	_, ok = EvalConst(NewIdent(tok, "x"))
	be.Equal(t, ok, false)
}

func TestToSExprStatements(t *testing.T) {
	tok := token.Token{}
	x := NewIdent(tok, "x")
	body := NewBlock(tok, []*Node{
		NewVarDecl(tok, "x", TypeInt, NewNumber(tok, 0)),
		NewWhile(tok, NewBinaryOp(tok, token.Lt, x, NewNumber(tok, 3)),
			NewExprStmt(tok, NewPostfixOp(tok, token.Inc, NewIdent(tok, "x")))),
		NewReturn(tok, NewIdent(tok, "x")),
	})
	want := `(block (var "x" int (int 0)) (while (binary "<" (ident "x") (int 3)) (expr (postfix "++" (ident "x")))) (return (ident "x")))`
	be.Equal(t, ToSExpr(body), want)
}
