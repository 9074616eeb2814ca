package typeChecker

import "github.com/minicc/minicc/pkg/ast"

// Scope maps names to symbols for one lexical region.
type Scope struct {
	Symbols map[string]*ast.Symbol
	Parent  *Scope
	Depth   int
}

func newScope(parent *Scope) *Scope {
	s := &Scope{Symbols: make(map[string]*ast.Symbol), Parent: parent}
	if parent != nil {
		s.Depth = parent.Depth + 1
	}
	return s
}

// SymbolTable owns the chain of active scopes for one analysis run. The
// global scope holds function signatures and lives for the whole run.
type SymbolTable struct {
	current *Scope
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{current: newScope(nil)}
}

func (st *SymbolTable) EnterScope() { st.current = newScope(st.current) }

func (st *SymbolTable) ExitScope() {
	if st.current.Parent != nil {
		st.current = st.current.Parent
	}
}

// Declare adds sym to the current scope. If the name is already bound in
// this scope the existing symbol is returned and sym is not added.
func (st *SymbolTable) Declare(sym *ast.Symbol) (*ast.Symbol, bool) {
	if existing, ok := st.current.Symbols[sym.Name]; ok {
		return existing, false
	}
	sym.Depth = st.current.Depth
	st.current.Symbols[sym.Name] = sym
	return sym, true
}

// Lookup resolves name through the scope chain, innermost first.
func (st *SymbolTable) Lookup(name string) *ast.Symbol {
	for s := st.current; s != nil; s = s.Parent {
		if sym, ok := s.Symbols[name]; ok {
			return sym
		}
	}
	return nil
}
