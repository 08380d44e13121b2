package checker

import "github.com/arrowlang/citron/ast"

// scope is one lexical level of variable/parameter/function bindings.
// Grounded on the teacher's types.Scope, retargeted to resolve
// *ast.Entity instead of a Rust-flavored *types.Symbol.
type scope struct {
	parent  *scope
	symbols map[string]*ast.Entity
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, symbols: make(map[string]*ast.Entity)}
}

func (s *scope) define(name string, ent *ast.Entity) {
	s.symbols[name] = ent
}

func (s *scope) lookup(name string) (*ast.Entity, bool) {
	if ent, ok := s.symbols[name]; ok {
		return ent, true
	}

	if s.parent != nil {
		return s.parent.lookup(name)
	}

	return nil, false
}

// env is the scope-chain environment the checker pushes and pops as it
// walks function bodies. Functions and file-scope globals live in the
// root scope; blocks, for-loop headers, and function bodies each push
// their own child.
type env struct {
	current *scope
}

func newEnv() *env {
	return &env{current: newScope(nil)}
}

func (e *env) define(name string, ent *ast.Entity) {
	e.current.define(name, ent)
}

func (e *env) lookup(name string) (*ast.Entity, bool) {
	return e.current.lookup(name)
}

func (e *env) pushScope() {
	e.current = newScope(e.current)
}

func (e *env) popScope() {
	if e.current.parent != nil {
		e.current = e.current.parent
	}
}
