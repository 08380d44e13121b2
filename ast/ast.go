// Package ast defines the typed syntax tree that the semantic analyzer
// (package checker) produces and the IR lowering pass (package mir)
// consumes. Expression nodes carry a resolved types.Type and the
// shouldEvaluatedToAddress flag; identifiers resolve to an *Entity
// carrying storage class and loadability. Nothing in this package
// performs type resolution itself — see checker.
package ast

import (
	"fmt"
	"strings"

	"github.com/arrowlang/citron/types"
)

// Node is the base interface for all AST nodes.
type Node interface {
	String() string
}

// ===== Entities =====

// StorageClass distinguishes file-scope/static storage from ordinary
// automatic locals and parameters.
type StorageClass int

const (
	StorageLocal StorageClass = iota
	StorageStatic
	StorageParam
)

func (s StorageClass) String() string {
	switch s {
	case StorageStatic:
		return "static"
	case StorageParam:
		return "param"
	default:
		return "local"
	}
}

// Entity is what an Ident resolves to: a defined variable or parameter.
type Entity struct {
	Name       string
	Storage    StorageClass
	Type       types.Type
	CannotLoad bool // true for array-/struct-typed lvalues: addressable, not loadable in one op
	Size       int64
	Align      int64
}

// ===== Type expressions (as written in source, pre-resolution) =====

// TypeExpr is a type as spelled in source, before checker resolves it
// against the type table.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedTypeExpr is a primitive name (int, char, void, ...) or a struct tag.
type NamedTypeExpr struct {
	Name string
}

func (n *NamedTypeExpr) typeExprNode() {}
func (n *NamedTypeExpr) String() string { return n.Name }

// PointerTypeExpr is `T*`.
type PointerTypeExpr struct {
	Elem TypeExpr
}

func (p *PointerTypeExpr) typeExprNode() {}
func (p *PointerTypeExpr) String() string { return p.Elem.String() + "*" }

// ArrayTypeExpr is `T[N]` (Len nil for a parameter's decayed array type).
type ArrayTypeExpr struct {
	Elem TypeExpr
	Len  Expr
}

func (a *ArrayTypeExpr) typeExprNode() {}
func (a *ArrayTypeExpr) String() string {
	if a.Len == nil {
		return a.Elem.String() + "[]"
	}

	return fmt.Sprintf("%s[%s]", a.Elem.String(), a.Len.String())
}

// ===== Expressions =====

// Expr is a (post-check) expression node: typed, with an explicit
// addressability demand set by semantic analysis.
type Expr interface {
	Node
	exprNode()
	Type() types.Type
	SetType(types.Type)
	ShouldEvalAddr() bool
	SetShouldEvalAddr(bool)
	Pos() Position
}

// ExprBase carries the fields every Expr needs; concrete expression
// nodes embed it rather than reimplementing the accessors.
type ExprBase struct {
	Typ      types.Type
	WantAddr bool
	Position Position
}

func (b *ExprBase) Type() types.Type         { return b.Typ }
func (b *ExprBase) SetType(t types.Type)     { b.Typ = t }
func (b *ExprBase) ShouldEvalAddr() bool     { return b.WantAddr }
func (b *ExprBase) SetShouldEvalAddr(v bool) { b.WantAddr = v }
func (b *ExprBase) Pos() Position            { return b.Position }

// Ident is a variable or parameter reference. Entity is nil until
// checker resolves it.
type Ident struct {
	ExprBase
	Name   string
	Entity *Entity
}

func (i *Ident) exprNode()      {}
func (i *Ident) String() string { return i.Name }

// IntLit is an integer constant.
type IntLit struct {
	ExprBase
	Value int64
}

func (n *IntLit) exprNode()      {}
func (n *IntLit) String() string { return fmt.Sprintf("%d", n.Value) }

// StringLit is a string literal; checker assigns it a constant-pool entry.
type StringLit struct {
	ExprBase
	Value      string
	PoolOffset int // index into the constant pool, assigned by checker
}

func (s *StringLit) exprNode()      {}
func (s *StringLit) String() string { return fmt.Sprintf("%q", s.Value) }

// BinaryExpr is a binary arithmetic/logical/comparison operator.
type BinaryExpr struct {
	ExprBase
	Op    string // +, -, *, /, %, &, |, ^, <<, >>, ==, !=, <, <=, >, >=, &&, ||
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}

// UnaryExpr is a prefix unary operator: &, *, +, -, !, ~.
type UnaryExpr struct {
	ExprBase
	Op string
	X  Expr
}

func (u *UnaryExpr) exprNode() {}
func (u *UnaryExpr) String() string {
	return fmt.Sprintf("%s%s", u.Op, u.X.String())
}

// IncDecExpr is ++x, --x, x++, x--.
type IncDecExpr struct {
	ExprBase
	Op     string // "++" or "--"
	Prefix bool
	X      Expr
}

func (i *IncDecExpr) exprNode() {}
func (i *IncDecExpr) String() string {
	if i.Prefix {
		return i.Op + i.X.String()
	}

	return i.X.String() + i.Op
}

// CondExpr is the ternary c ? a : b.
type CondExpr struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

func (c *CondExpr) exprNode() {}
func (c *CondExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Cond.String(), c.Then.String(), c.Else.String())
}

// AssignExpr is l = r or a compound op-assign (l op= r).
type AssignExpr struct {
	ExprBase
	Op  string // "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>="
	Lhs Expr
	Rhs Expr
}

func (a *AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Lhs.String(), a.Op, a.Rhs.String())
}

// CallExpr is a function call.
type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []Expr
}

func (c *CallExpr) exprNode() {}
func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}

	return fmt.Sprintf("%s(%s)", c.Callee.String(), strings.Join(args, ", "))
}

// IndexExpr is array/pointer indexing a[i]. ElementSize/Length/
// IsMultiDimension are filled in by checker from the array's declared
// type; Array may itself be another IndexExpr for a[i][j]...
type IndexExpr struct {
	ExprBase
	Array            Expr
	Index            Expr
	ElementSize      int64
	Length           int64 // bound along this dimension, 0 if unknown
	IsMultiDimension bool
}

func (i *IndexExpr) exprNode() {}
func (i *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", i.Array.String(), i.Index.String())
}

// MemberExpr is `.` or `->` field access; Offset is the byte offset of
// Field within the struct, filled in by checker.
type MemberExpr struct {
	ExprBase
	Base   Expr
	Field  string
	Arrow  bool
	Offset int64
}

func (m *MemberExpr) exprNode() {}
func (m *MemberExpr) String() string {
	op := "."
	if m.Arrow {
		op = "->"
	}

	return fmt.Sprintf("%s%s%s", m.Base.String(), op, m.Field)
}

// CastExpr is an explicit (T)e cast. IsEffectiveCast is set by checker:
// false when the cast is a structural no-op.
type CastExpr struct {
	ExprBase
	Target          types.Type
	X               Expr
	IsEffectiveCast bool
}

func (c *CastExpr) exprNode() {}
func (c *CastExpr) String() string {
	return fmt.Sprintf("(%s)%s", c.Target.String(), c.X.String())
}

// SizeofExpr is sizeof(T) or sizeof(expr); checker resolves AllocSize.
type SizeofExpr struct {
	ExprBase
	OperandType TypeExpr // non-nil for sizeof(T)
	Operand     Expr     // non-nil for sizeof(expr)
	AllocSize   int64
}

func (s *SizeofExpr) exprNode() {}
func (s *SizeofExpr) String() string {
	if s.OperandType != nil {
		return fmt.Sprintf("sizeof(%s)", s.OperandType.String())
	}

	return fmt.Sprintf("sizeof(%s)", s.Operand.String())
}

// ===== Statements =====

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
	Pos() Position
}

// StmtBase carries a source position.
type StmtBase struct {
	Position Position
}

func (b *StmtBase) Pos() Position { return b.Position }

// VarDecl is a variable declaration, either file-scope (IsPrivate true
// for `static`/private module globals) or a local inside a Block.
type VarDecl struct {
	StmtBase
	Name      string
	TypeExpr  TypeExpr
	Init      Expr
	IsPrivate bool
	Entity    *Entity
}

func (v *VarDecl) stmtNode() {}
func (v *VarDecl) declNode() {}
func (v *VarDecl) String() string {
	if v.Init != nil {
		return fmt.Sprintf("%s %s = %s;", v.TypeExpr.String(), v.Name, v.Init.String())
	}

	return fmt.Sprintf("%s %s;", v.TypeExpr.String(), v.Name)
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	StmtBase
	X Expr
}

func (e *ExprStmt) stmtNode()      {}
func (e *ExprStmt) String() string { return e.X.String() + ";" }

// Block is `{ stmts... }`.
type Block struct {
	StmtBase
	Stmts []Stmt
}

func (b *Block) stmtNode() {}
func (b *Block) String() string {
	stmts := make([]string, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = s.String()
	}

	return "{ " + strings.Join(stmts, " ") + " }"
}

// IfStmt is if (cond) then [else elseBranch]. Else is nil, *Block, or
// another *IfStmt (the `else if` chain).
type IfStmt struct {
	StmtBase
	Cond Expr
	Then *Block
	Else Stmt
}

func (i *IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	s := fmt.Sprintf("if (%s) %s", i.Cond.String(), i.Then.String())
	if i.Else != nil {
		s += " else " + i.Else.String()
	}

	return s
}

// WhileStmt is while (cond) body.
type WhileStmt struct {
	StmtBase
	Cond Expr
	Body *Block
}

func (w *WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("while (%s) %s", w.Cond.String(), w.Body.String())
}

// DoWhileStmt is do body while (cond);
type DoWhileStmt struct {
	StmtBase
	Body *Block
	Cond Expr
}

func (d *DoWhileStmt) stmtNode() {}
func (d *DoWhileStmt) String() string {
	return fmt.Sprintf("do %s while (%s);", d.Body.String(), d.Cond.String())
}

// ForStmt is for (init; cond; post) body. Any of Init/Cond/Post may be nil.
type ForStmt struct {
	StmtBase
	Init Stmt
	Cond Expr
	Post Stmt
	Body *Block
}

func (f *ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("for (...) %s", f.Body.String())
}

// CaseClause is one `case N:` or `default:` arm of a SwitchStmt. Value
// is nil for the default arm.
type CaseClause struct {
	Value    Expr
	Body     []Stmt
	Position Position
}

// SwitchStmt is switch (cond) { case ...: ... default: ... }.
type SwitchStmt struct {
	StmtBase
	Cond    Expr
	Cases   []*CaseClause
	Default *CaseClause // nil if no default arm
}

func (s *SwitchStmt) stmtNode() {}
func (s *SwitchStmt) String() string {
	return fmt.Sprintf("switch (%s) { ... }", s.Cond.String())
}

// BreakStmt is break;
type BreakStmt struct{ StmtBase }

func (b *BreakStmt) stmtNode()      {}
func (b *BreakStmt) String() string { return "break;" }

// ContinueStmt is continue;
type ContinueStmt struct{ StmtBase }

func (c *ContinueStmt) stmtNode()      {}
func (c *ContinueStmt) String() string { return "continue;" }

// LabelStmt is `name: stmt`.
type LabelStmt struct {
	StmtBase
	Name string
	Stmt Stmt // may be nil for a bare trailing label
}

func (l *LabelStmt) stmtNode() {}
func (l *LabelStmt) String() string {
	if l.Stmt != nil {
		return fmt.Sprintf("%s: %s", l.Name, l.Stmt.String())
	}

	return l.Name + ":"
}

// GotoStmt is goto name;
type GotoStmt struct {
	StmtBase
	Name string
}

func (g *GotoStmt) stmtNode()      {}
func (g *GotoStmt) String() string { return "goto " + g.Name + ";" }

// ReturnStmt is return [value];
type ReturnStmt struct {
	StmtBase
	Value Expr // nil for bare return
}

func (r *ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	if r.Value != nil {
		return "return " + r.Value.String() + ";"
	}

	return "return;"
}

// ===== Declarations =====

// Decl is a top-level (file-scope) declaration.
type Decl interface {
	Node
	declNode()
}

// Param is one function parameter.
type Param struct {
	Name     string
	TypeExpr TypeExpr
	Entity   *Entity
}

// FuncDecl is a function definition or forward declaration. IsExtern
// is true for the semicolon-terminated form (`int f(void);`): Body is
// still a non-nil empty *Block in that case so callers that only walk
// statements don't need a nil check, but IsExtern is what actually
// distinguishes "no body was written" from "the body is empty".
type FuncDecl struct {
	Name       string
	Params     []*Param
	ReturnType TypeExpr // nil for void
	Body       *Block
	IsExtern   bool
	Position   Position
}

func (f *FuncDecl) declNode() {}
func (f *FuncDecl) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %s", p.TypeExpr.String(), p.Name)
	}

	ret := "void"
	if f.ReturnType != nil {
		ret = f.ReturnType.String()
	}

	return fmt.Sprintf("%s %s(%s) %s", ret, f.Name, strings.Join(params, ", "), f.Body.String())
}

// FieldDecl is one member of a StructDecl.
type FieldDecl struct {
	Name     string
	TypeExpr TypeExpr
	Offset   int64 // filled in by checker
}

// StructDecl is a struct type definition.
type StructDecl struct {
	Name   string
	Fields []*FieldDecl
}

func (s *StructDecl) declNode() {}
func (s *StructDecl) String() string {
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = fmt.Sprintf("%s %s;", f.TypeExpr.String(), f.Name)
	}

	return fmt.Sprintf("struct %s { %s }", s.Name, strings.Join(fields, " "))
}

// File is a translation unit: top-level declarations in source order.
type File struct {
	Decls []Decl
}

func (f *File) String() string {
	items := make([]string, len(f.Decls))
	for i, d := range f.Decls {
		items[i] = d.String()
	}

	return strings.Join(items, "\n")
}

// Funcs returns the file's function definitions in source order.
func (f *File) Funcs() []*FuncDecl {
	var out []*FuncDecl

	for _, d := range f.Decls {
		if fn, ok := d.(*FuncDecl); ok {
			out = append(out, fn)
		}
	}

	return out
}

// Globals returns the file's file-scope variable declarations in source order.
func (f *File) Globals() []*VarDecl {
	var out []*VarDecl

	for _, d := range f.Decls {
		if v, ok := d.(*VarDecl); ok {
			out = append(out, v)
		}
	}

	return out
}

// Structs returns the file's struct definitions in source order.
func (f *File) Structs() []*StructDecl {
	var out []*StructDecl

	for _, d := range f.Decls {
		if s, ok := d.(*StructDecl); ok {
			out = append(out, s)
		}
	}

	return out
}
