package typeChecker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minicc/minicc/pkg/ast"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/lexer"
	"github.com/minicc/minicc/pkg/parser"
	"github.com/minicc/minicc/pkg/util"
	"github.com/nalgeon/be"
)

func check(t *testing.T, src string, cfg *config.Config) (*ast.Node, *TypeChecker, error) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	toks, err := lexer.Tokenize(src, cfg)
	be.Err(t, err, nil)
	root, err := parser.NewParser(toks, cfg).Parse()
	be.Err(t, err, nil)
	tc := NewTypeChecker(cfg)
	return root, tc, tc.Check(root)
}

type diag struct {
	Line int
	Msg  string
}

func semanticErrors(t *testing.T, src string) []diag {
	t.Helper()
	_, _, err := check(t, src, nil)
	var got []diag
	for _, e := range util.Diagnostics(err) {
		be.Equal(t, e.Kind, util.Semantic)
		got = append(got, diag{e.Line, e.Msg})
	}
	return got
}

func expectErrors(t *testing.T, src string, want ...diag) {
	t.Helper()
	if diff := cmp.Diff(want, semanticErrors(t, src)); diff != "" {
		t.Errorf("semantic errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidProgram(t *testing.T) {
	src := `
int add(int a, int b) { return a + b; }
int main() {
    int x = 3, y;
    float f = 2.5;
    char c = 'a';
    y = add(x, 4);
    printf("%d %f %c %s\n", y, f, c, "ok");
    scanf("%d", &x);
    return 0;
}
`
	_, tc, err := check(t, src, nil)
	be.Err(t, err, nil)
	be.Equal(t, len(tc.Warnings()), 0)
}

func TestUseBeforeDeclaration(t *testing.T) {
	expectErrors(t, "int main() {\n x = 1;\n int x;\n return 0;\n}",
		diag{2, "undefined variable 'x'"})
}

func TestRedeclarationInSameBlock(t *testing.T) {
	expectErrors(t, "int main() {\n int x;\n float x;\n return 0;\n}",
		diag{3, "redeclaration of 'x' (previously declared on line 2)"})
}

func TestParameterRedeclaredInBody(t *testing.T) {
	expectErrors(t, "int f(int a) {\n int a;\n return a;\n}\nint main() { return f(1); }",
		diag{2, "redeclaration of 'a' (previously declared on line 1)"})
}

func TestShadowingBindsInnermost(t *testing.T) {
	src := `
int main() {
    int x = 1;
    {
        float x = 2.0;
        x = x + 1.0;
    }
    return x;
}
`
	root, _, err := check(t, src, nil)
	be.Err(t, err, nil)

	body := root.Data.(ast.ProgramNode).Funcs[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode)
	outer := body.Stmts[0]
	inner := body.Stmts[1].Data.(ast.BlockNode).Stmts[0]
	assign := body.Stmts[1].Data.(ast.BlockNode).Stmts[1].Data.(ast.ExprStmtNode).Expr.Data.(ast.AssignNode)
	ret := body.Stmts[2].Data.(ast.ReturnNode).Expr

	be.Equal(t, assign.Lhs.Sym, inner.Sym)
	be.Equal(t, assign.Lhs.Typ, ast.TypeFloat)
	be.Equal(t, ret.Sym, outer.Sym)
	be.Equal(t, ret.Typ, ast.TypeInt)
	be.True(t, inner.Sym.Depth > outer.Sym.Depth)
}

func TestScopeEndsWithBlock(t *testing.T) {
	expectErrors(t, "int main() {\n if (1) { int y = 2; }\n return y;\n}",
		diag{3, "undefined variable 'y'"})
	expectErrors(t, "int main() {\n for (int i = 0; i < 3; i++) ;\n return i;\n}",
		diag{3, "undefined variable 'i'"})
}

func TestErrorsInSeparateFunctions(t *testing.T) {
	src := "int f() {\n return a;\n}\nint main() {\n b = 2;\n return 0;\n}"
	expectErrors(t, src,
		diag{2, "undefined variable 'a'"},
		diag{5, "undefined variable 'b'"})
}

func TestUndefinedReportedOncePerFunction(t *testing.T) {
	expectErrors(t, "int main() {\n z = 1;\n z = z + 1;\n return 0;\n}",
		diag{2, "undefined variable 'z'"})
}

func TestFrameLayout(t *testing.T) {
	src := `
int f(int a, char b, float c) {
    int x;
    { int y; }
    float z;
    return a;
}
int main() { return f(1, 'b', 2.0); }
`
	root, _, err := check(t, src, nil)
	be.Err(t, err, nil)

	fn := root.Data.(ast.ProgramNode).Funcs[0].Data.(ast.FuncDeclNode)
	be.Equal(t, fn.FrameSize, 12)
	be.Equal(t, fn.Params[0].Sym.Offset, 16)
	be.Equal(t, fn.Params[1].Sym.Offset, 12)
	be.Equal(t, fn.Params[2].Sym.Offset, 8)

	stmts := fn.Body.Data.(ast.BlockNode).Stmts
	be.Equal(t, stmts[0].Sym.Offset, -4)
	be.Equal(t, stmts[1].Data.(ast.BlockNode).Stmts[0].Sym.Offset, -8)
	be.Equal(t, stmts[2].Sym.Offset, -12)
}

func TestExpressionTypes(t *testing.T) {
	src := `
int main() {
    char c = 'a';
    int i = 1;
    float f = 1.0;
    c + c;
    c + i;
    i * f;
    i < f;
    -c;
    !f;
    return 0;
}
`
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnusedValue, false)
	root, _, err := check(t, src, cfg)
	be.Err(t, err, nil)

	stmts := root.Data.(ast.ProgramNode).Funcs[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
	var got []string
	for _, s := range stmts[3:9] {
		got = append(got, s.Data.(ast.ExprStmtNode).Expr.Typ.String())
	}
	be.Equal(t, got, []string{"char", "int", "float", "int", "int", "int"})
}

func TestOperandErrors(t *testing.T) {
	expectErrors(t, "int main() {\n float f = 1.5;\n int r = f % 2;\n return 0;\n}",
		diag{3, "invalid operands to '%': 'float' and 'int' (integer operands required)"})
	expectErrors(t, "int main() {\n int x = \"hi\" + 1;\n return 0;\n}",
		diag{2, "invalid operand of type 'string' to '+'"})
	expectErrors(t, "void g() {}\nint main() {\n int x = g();\n return 0;\n}",
		diag{3, "void value not ignored as it ought to be in initialization of 'x'"})
	expectErrors(t, "int main() {\n int x;\n x = \"hi\";\n return 0;\n}",
		diag{3, "cannot convert 'string' to 'int' in assignment to 'x'"})
}

func TestNoCascadeFromInvalidOperand(t *testing.T) {
	expectErrors(t, "int main() {\n int x = (u + 1) * 2 - 3;\n return 0;\n}",
		diag{2, "undefined variable 'u'"})
}

func TestCalls(t *testing.T) {
	expectErrors(t, "int f(int a) { return a; }\nint main() {\n return f(1, 2);\n}",
		diag{3, "function 'f' expects 1 argument(s), got 2"})
	expectErrors(t, "int main() {\n return g(1);\n}",
		diag{2, "undefined function 'g'"})
	expectErrors(t, "int main() {\n int h = 0;\n return h(1);\n}",
		diag{3, "called object 'h' is a variable, not a function"})
	expectErrors(t, "int f() { return 1; }\nint main() {\n return f;\n}",
		diag{3, "'f' is a function, not a variable"})
}

func TestFunctionDefinitions(t *testing.T) {
	expectErrors(t, "int f() { return 1; }\nint f() { return 2; }\nint main() { return 0; }",
		diag{2, "redefinition of function 'f' (previously defined on line 1)"})
	expectErrors(t, "int printf() { return 0; }\nint main() { return 0; }",
		diag{1, "cannot redefine built-in function 'printf'"})
	expectErrors(t, "int exit() { return 0; }\nint main() { return 0; }",
		diag{1, "function name 'exit' is reserved"})
	expectErrors(t, "int main(int argc) { return 0; }",
		diag{1, "'main' must not take parameters"})
	expectErrors(t, "float main() { return 0.0; }",
		diag{1, "'main' must return 'int', not 'float'"})
}

func TestMissingMain(t *testing.T) {
	expectErrors(t, "int f() {\n return 0;\n}\n",
		diag{4, "program has no 'main' function"})
}

func TestReturns(t *testing.T) {
	expectErrors(t, "void f() {\n return 1;\n}\nint main() { return 0; }",
		diag{2, "void function 'f' should not return a value"})

	_, tc, err := check(t, "int f(int a) {\n if (a) return 1;\n}\nint main() { return f(0); }", nil)
	be.Err(t, err, nil)
	be.Equal(t, tc.Warnings(), []util.Warning{{
		Flag: "missing-return", Msg: "control may reach the end of non-void function 'f'",
		Line: 1, Column: 5, Len: 1,
	}})

	_, tc, err = check(t, "int f(int a) {\n if (a) return 1; else return 2;\n}\nint main() { while (1) { } }", nil)
	be.Err(t, err, nil)
	be.Equal(t, len(tc.Warnings()), 0)
}

func TestBreakContinuePlacement(t *testing.T) {
	expectErrors(t, "int main() {\n break;\n return 0;\n}",
		diag{2, "'break' statement not within a loop or switch"})
	expectErrors(t, "int main() {\n switch (1) { case 1: continue; }\n return 0;\n}",
		diag{2, "'continue' statement not within a loop"})

	_, _, err := check(t, "int main() { int i; for (i = 0; i < 3; i++) { switch (i) { case 1: continue; default: break; } } return 0; }", nil)
	be.Err(t, err, nil)
}

func TestSwitchLabels(t *testing.T) {
	root, _, err := check(t, "int main() { int x = 2; switch (x) { case 'A': break; case -1 + 4: break; default: break; } return 0; }", nil)
	be.Err(t, err, nil)
	body := root.Data.(ast.ProgramNode).Funcs[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode)
	cases := body.Stmts[1].Data.(ast.SwitchNode).Cases
	be.Equal(t, cases[0].Data.(ast.CaseNode).Const, int64(65))
	be.Equal(t, cases[1].Data.(ast.CaseNode).Const, int64(3))

	expectErrors(t, "int main() {\n int x = 1;\n switch (x) {\n case 1: break;\n case 1: break;\n }\n return 0;\n}",
		diag{5, "duplicate case value 1 (previously used on line 4)"})
	expectErrors(t, "int main() {\n int x = 1;\n switch (x) {\n case x: break;\n }\n return 0;\n}",
		diag{4, "case label must be an integer constant"})
	expectErrors(t, "int main() {\n float f = 1.0;\n switch (f) { default: break; }\n return 0;\n}",
		diag{3, "switch expression must have integer type, found 'float'"})
}

func TestFormatChecks(t *testing.T) {
	tests := []struct {
		name string
		call string
		msg  string
	}{
		{"missing argument", `printf("%d %d\n", i);`, "'printf' format expects 2 argument(s), got 1"},
		{"extra argument", `printf("hi\n", i);`, "'printf' format expects 0 argument(s), got 1"},
		{"float for %d", `printf("%d", f);`, "'printf' conversion '%d' expects an integer for argument 1, got 'float'"},
		{"int for %f", `printf("%f", i);`, "'printf' conversion '%f' expects a 'float' for argument 1, got 'int'"},
		{"variable for %s", `printf("%s", i);`, "'printf' conversion '%s' expects a string literal for argument 1, got 'int'"},
		{"non-literal format", `printf(i);`, "first argument of 'printf' must be a string literal"},
		{"bad verb", `printf("%x", i);`, "invalid 'printf' format: unsupported conversion '%x'"},
		{"scanf string", `scanf("%s", &i);`, "invalid 'scanf' format: unsupported conversion '%s'"},
		{"scanf without &", `scanf("%d", i);`, "argument 1 of 'scanf' must be the address of a variable (&name)"},
		{"second value argument", `printf("%d %f", i, i);`, "'printf' conversion '%f' expects a 'float' for argument 2, got 'int'"},
		{"scanf second without &", `scanf("%d %d", &i, i);`, "argument 2 of 'scanf' must be the address of a variable (&name)"},
		{"scanf type", `scanf("%f", &i);`, "'scanf' conversion '%f' expects a 'float' variable, got 'int'"},
		{"address outside scanf", `printf("%d", &i);`, "'&' is only allowed in scanf arguments"},
		{"no format", `printf();`, "'printf' requires a format string argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "int main() {\n int i = 0;\n float f = 0.0;\n " + tt.call + "\n return 0;\n}"
			expectErrors(t, src, diag{4, tt.msg})
		})
	}
}

func TestWarnings(t *testing.T) {
	src := "int main() {\n int x = 1;\n x + 1;\n char c = x;\n x = x / 0;\n return 0;\n}"

	_, tc, err := check(t, src, nil)
	be.Err(t, err, nil)
	var flags []string
	for _, w := range tc.Warnings() {
		flags = append(flags, w.Flag)
	}
	be.Equal(t, flags, []string{"unused-value", "extra"})

	cfg := config.NewConfig()
	be.Err(t, cfg.ApplyFlags("-Wall"), nil)
	_, tc, err = check(t, src, cfg)
	be.Err(t, err, nil)
	flags = nil
	for _, w := range tc.Warnings() {
		flags = append(flags, w.Flag)
	}
	be.Equal(t, flags, []string{"unused-value", "narrowing", "extra"})
}

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	_, ok := st.Declare(&ast.Symbol{Name: "f", Kind: ast.SymFunc})
	be.True(t, ok)

	st.EnterScope()
	x := &ast.Symbol{Name: "x", Type: ast.TypeInt}
	_, ok = st.Declare(x)
	be.True(t, ok)
	be.Equal(t, x.Depth, 1)

	existing, ok := st.Declare(&ast.Symbol{Name: "x", Type: ast.TypeFloat})
	be.Equal(t, ok, false)
	be.Equal(t, existing, x)

	st.EnterScope()
	inner := &ast.Symbol{Name: "x", Type: ast.TypeChar}
	_, ok = st.Declare(inner)
	be.True(t, ok)
	be.Equal(t, inner.Depth, 2)
	be.Equal(t, st.Lookup("x"), inner)
	be.Equal(t, st.Lookup("f").Kind, ast.SymFunc)
	st.ExitScope()
	be.Equal(t, st.Lookup("x"), x)
	st.ExitScope()
	st.ExitScope()

	be.Equal(t, st.Lookup("x"), (*ast.Symbol)(nil))
	g := &ast.Symbol{Name: "g", Kind: ast.SymFunc}
	_, ok = st.Declare(g)
	be.True(t, ok)
	be.Equal(t, g.Depth, 0)
}
