// Package checker is the semantic analyzer: it walks a parsed
// ast.File and resolves everything package mir's input contract
// requires — every Ident's Entity (with storage class and
// loadability), every expression's Type, struct field byte offsets,
// array element size/length/rank, cast effectiveness, sizeof results,
// and string-literal pool offsets. Nothing downstream re-derives any
// of this; mir treats it as a contract from this stage.
//
// Grounded on the teacher's checker.go (scope push/pop around function
// bodies, env.Define/resolveType shape) and semantic/analyzer.go
// (scope-chain define/resolve), with every yarlang-specific concern —
// move tracking, borrow state, generics, enums, Rust-style ref/slice/
// tuple types — dropped, since citron's C semantics has no analog for
// any of them.
package checker

import (
	"fmt"
	"strings"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/types"
)

// Checker performs semantic analysis over one or more files; struct
// definitions, globals and function signatures accumulate across
// CheckFile calls.
type Checker struct {
	tab     *types.Table
	env     *env
	sink    *diag.Sink
	funcs   map[string]*types.FuncType
	strings []string // literal values in source order; index is PoolOffset
}

// New creates a Checker that reports into sink.
func New(sink *diag.Sink) *Checker {
	return &Checker{
		tab:   types.NewTable(),
		env:   newEnv(),
		sink:  sink,
		funcs: make(map[string]*types.FuncType),
	}
}

// Table returns the type table populated while checking, for reuse by
// the lowering pass (SignedInt/PtrDiffType/PointerTo/struct layouts).
func (c *Checker) Table() *types.Table { return c.tab }

// Funcs returns the resolved signature of every function declared in
// the files checked so far, keyed by name, for the lowering pass to consult
// when it needs a function's return type.
func (c *Checker) Funcs() map[string]*types.FuncType {
	out := make(map[string]*types.FuncType, len(c.funcs))
	for k, v := range c.funcs {
		out[k] = v
	}

	return out
}

// StringPool returns the string literals collected during checking, in
// ast.StringLit.PoolOffset order.
func (c *Checker) StringPool() []string {
	out := make([]string, len(c.strings))
	copy(out, c.strings)

	return out
}

// CheckFile resolves every declaration in file, reporting errors into
// the sink it was constructed with. It returns a combined error when
// any error-severity diagnostic was recorded, collecting every error
// across the whole file before failing.
func (c *Checker) CheckFile(file *ast.File) error {
	for _, s := range file.Structs() {
		c.defineStruct(s)
	}

	for _, g := range file.Globals() {
		c.checkGlobal(g)
	}

	for _, fn := range file.Funcs() {
		c.declareFunc(fn)
	}

	for _, fn := range file.Funcs() {
		c.checkFuncDecl(fn)
	}

	if c.sink.HasErrors() {
		msgs := make([]string, 0, len(c.sink.Errors()))
		for _, d := range c.sink.Errors() {
			msgs = append(msgs, d.String())
		}

		return fmt.Errorf("checker: %d error(s):\n%s", len(msgs), strings.Join(msgs, "\n"))
	}

	return nil
}

func (c *Checker) defineStruct(s *ast.StructDecl) {
	fieldNames := make([]string, len(s.Fields))
	fieldTypes := make([]types.Type, len(s.Fields))

	for i, f := range s.Fields {
		fieldNames[i] = f.Name
		fieldTypes[i] = c.resolveTypeExpr(f.TypeExpr)
	}

	st := c.tab.DefineStruct(s.Name, fieldNames, fieldTypes)

	for _, f := range s.Fields {
		field, _ := st.Field(f.Name)
		f.Offset = field.Offset
	}
}

func (c *Checker) checkGlobal(g *ast.VarDecl) {
	typ := c.resolveTypeExpr(g.TypeExpr)

	ent := &ast.Entity{
		Name:       g.Name,
		Storage:    ast.StorageStatic,
		Type:       typ,
		CannotLoad: !types.IsLoadable(typ),
		Size:       typ.Size(),
		Align:      typ.Align(),
	}

	g.Entity = ent
	c.env.define(g.Name, ent)

	if g.Init != nil {
		c.checkExpr(g.Init)
	}
}

func (c *Checker) declareFunc(fn *ast.FuncDecl) {
	params := make([]types.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = c.resolveTypeExpr(p.TypeExpr)
	}

	ret := types.Type(types.VoidType)
	if fn.ReturnType != nil {
		ret = c.resolveTypeExpr(fn.ReturnType)
	}

	ft := &types.FuncType{Params: params, Return: ret}
	c.funcs[fn.Name] = ft

	// A bare function name decays to its address like an array does:
	// not loadable, addressable only. Treating it as an ordinary
	// static entity lets call-callee resolution reuse the same Ident
	// path as any other variable reference.
	c.env.define(fn.Name, &ast.Entity{
		Name:       fn.Name,
		Storage:    ast.StorageStatic,
		Type:       ft,
		CannotLoad: true,
		Size:       8,
		Align:      8,
	})
}

func (c *Checker) checkFuncDecl(fn *ast.FuncDecl) {
	ft := c.funcs[fn.Name]

	c.env.pushScope()
	defer c.env.popScope()

	for i, p := range fn.Params {
		typ := ft.Params[i]
		ent := &ast.Entity{
			Name:       p.Name,
			Storage:    ast.StorageParam,
			Type:       typ,
			CannotLoad: !types.IsLoadable(typ),
			Size:       typ.Size(),
			Align:      typ.Align(),
		}
		p.Entity = ent
		c.env.define(p.Name, ent)
	}

	c.checkBlock(fn.Body)
}

func (c *Checker) checkBlock(b *ast.Block) {
	c.env.pushScope()
	defer c.env.popScope()

	for _, s := range b.Stmts {
		c.checkStmt(s)
	}
}

func (c *Checker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		c.checkLocalVarDecl(s)
	case *ast.ExprStmt:
		c.checkExpr(s.X)
	case *ast.Block:
		c.checkBlock(s)
	case *ast.IfStmt:
		c.checkExpr(s.Cond)
		c.checkBlock(s.Then)

		if s.Else != nil {
			c.checkStmt(s.Else)
		}
	case *ast.WhileStmt:
		c.checkExpr(s.Cond)
		c.checkBlock(s.Body)
	case *ast.DoWhileStmt:
		c.checkBlock(s.Body)
		c.checkExpr(s.Cond)
	case *ast.ForStmt:
		c.env.pushScope()
		defer c.env.popScope()

		if s.Init != nil {
			c.checkStmt(s.Init)
		}

		if s.Cond != nil {
			c.checkExpr(s.Cond)
		}

		if s.Post != nil {
			c.checkStmt(s.Post)
		}

		c.checkBlock(s.Body)
	case *ast.SwitchStmt:
		c.checkExpr(s.Cond)

		for _, cc := range s.Cases {
			c.checkCaseClause(cc)
		}

		if s.Default != nil {
			c.checkCaseClause(s.Default)
		}
	case *ast.BreakStmt, *ast.ContinueStmt:
		// Placement validation ("break outside loop/switch") is the
		// statement lowerer's job (package mir), which already tracks
		// the break/continue stacks it needs to emit the jump.
	case *ast.LabelStmt:
		if s.Stmt != nil {
			c.checkStmt(s.Stmt)
		}
	case *ast.GotoStmt:
		// Label linkage is validated post-lowering by package mir.
	case *ast.ReturnStmt:
		if s.Value != nil {
			c.checkExpr(s.Value)
		}
	default:
		c.sink.Error(stmt.Pos(), "checker: unhandled statement %T", stmt)
	}
}

func (c *Checker) checkCaseClause(cc *ast.CaseClause) {
	if cc.Value != nil {
		c.checkExpr(cc.Value)
	}

	for _, s := range cc.Body {
		c.checkStmt(s)
	}
}

func (c *Checker) checkLocalVarDecl(v *ast.VarDecl) {
	typ := c.resolveTypeExpr(v.TypeExpr)

	storage := ast.StorageLocal
	if v.IsPrivate {
		storage = ast.StorageStatic
	}

	ent := &ast.Entity{
		Name:       v.Name,
		Storage:    storage,
		Type:       typ,
		CannotLoad: !types.IsLoadable(typ),
		Size:       typ.Size(),
		Align:      typ.Align(),
	}

	v.Entity = ent
	c.env.define(v.Name, ent)

	if v.Init != nil {
		c.checkExpr(v.Init)
	}
}

// checkExpr resolves expr's Type (and any node-specific metadata) and
// returns the resolved type for use by the caller's own resolution.
func (c *Checker) checkExpr(expr ast.Expr) types.Type {
	switch e := expr.(type) {
	case *ast.IntLit:
		e.SetType(types.IntType)
	case *ast.StringLit:
		e.PoolOffset = len(c.strings)
		c.strings = append(c.strings, e.Value)
		e.SetType(c.tab.PointerTo(types.CharType))
	case *ast.Ident:
		c.checkIdent(e)
	case *ast.BinaryExpr:
		c.checkBinaryExpr(e)
	case *ast.UnaryExpr:
		c.checkUnaryExpr(e)
	case *ast.IncDecExpr:
		xt := c.checkExpr(e.X)
		e.X.SetShouldEvalAddr(true)
		e.SetType(xt)
	case *ast.CondExpr:
		c.checkExpr(e.Cond)
		c.checkExpr(e.Else)
		tt := c.checkExpr(e.Then)
		e.SetType(tt)
	case *ast.AssignExpr:
		c.checkAssignExpr(e)
	case *ast.CallExpr:
		c.checkCallExpr(e)
	case *ast.IndexExpr:
		c.checkIndexExpr(e)
	case *ast.MemberExpr:
		c.checkMemberExpr(e)
	case *ast.CastExpr:
		c.checkCastExpr(e)
	case *ast.SizeofExpr:
		c.checkSizeofExpr(e)
	default:
		c.sink.Error(expr.Pos(), "checker: unhandled expression %T", expr)
		expr.SetType(types.IntType)
	}

	return expr.Type()
}

func (c *Checker) checkIdent(e *ast.Ident) {
	ent, ok := c.env.lookup(e.Name)
	if !ok {
		c.sink.Error(e.Pos(), "undefined: %s", e.Name)
		e.SetType(types.IntType)

		return
	}

	e.Entity = ent
	e.SetType(ent.Type)
}

func (c *Checker) checkBinaryExpr(e *ast.BinaryExpr) {
	lt := c.checkExpr(e.Left)
	rt := c.checkExpr(e.Right)

	switch e.Op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		e.SetType(types.IntType)
	case "+", "-":
		switch {
		case isDereferable(lt):
			e.SetType(lt)
		case e.Op == "+" && isDereferable(rt):
			e.SetType(rt)
		default:
			e.SetType(lt)
		}
	default:
		e.SetType(lt)
	}
}

func isDereferable(t types.Type) bool {
	switch t.(type) {
	case *types.PointerType, *types.ArrayType:
		return true
	default:
		return false
	}
}

func (c *Checker) checkUnaryExpr(e *ast.UnaryExpr) {
	switch e.Op {
	case "&":
		e.X.SetShouldEvalAddr(true)
		xt := c.checkExpr(e.X)
		e.SetType(c.tab.PointerTo(xt))
	case "*":
		xt := c.checkExpr(e.X)

		switch base := xt.(type) {
		case *types.PointerType:
			e.SetType(base.Elem)
		case *types.ArrayType:
			e.SetType(base.Elem)
		default:
			c.sink.Error(e.Pos(), "cannot dereference non-pointer type %s", xt.String())
			e.SetType(types.IntType)
		}
	case "!":
		c.checkExpr(e.X)
		e.SetType(types.IntType)
	default: // "+", "-", "~"
		xt := c.checkExpr(e.X)
		e.SetType(xt)
	}
}

func (c *Checker) checkAssignExpr(e *ast.AssignExpr) {
	c.checkExpr(e.Rhs)
	e.Lhs.SetShouldEvalAddr(true)
	lt := c.checkExpr(e.Lhs)
	e.SetType(lt)
}

func (c *Checker) checkCallExpr(e *ast.CallExpr) {
	ct := c.checkExpr(e.Callee)

	for _, a := range e.Args {
		c.checkExpr(a)
	}

	ft, ok := ct.(*types.FuncType)
	if !ok {
		c.sink.Error(e.Pos(), "call of non-function")
		e.SetType(types.IntType)

		return
	}

	if len(e.Args) != len(ft.Params) {
		c.sink.Error(e.Pos(), "call expects %d argument(s), got %d", len(ft.Params), len(e.Args))
	}

	e.SetType(ft.Return)
}

func (c *Checker) checkIndexExpr(e *ast.IndexExpr) {
	at := c.checkExpr(e.Array)
	c.checkExpr(e.Index)

	var (
		elem   types.Type
		length int64
	)

	switch base := at.(type) {
	case *types.ArrayType:
		elem, length = base.Elem, base.Len
	case *types.PointerType:
		elem = base.Elem
	default:
		c.sink.Error(e.Pos(), "cannot index non-array/pointer type %s", at.String())
		elem = types.IntType
	}

	e.ElementSize = elem.Size()
	e.Length = length
	_, e.IsMultiDimension = elem.(*types.ArrayType)
	e.SetType(elem)
}

func (c *Checker) checkMemberExpr(e *ast.MemberExpr) {
	bt := c.checkExpr(e.Base)

	var st *types.StructType

	if e.Arrow {
		if pt, ok := bt.(*types.PointerType); ok {
			st, _ = pt.Elem.(*types.StructType)
		}
	} else {
		st, _ = bt.(*types.StructType)
	}

	if st == nil {
		c.sink.Error(e.Pos(), "member access on non-struct type %s", bt.String())
		e.SetType(types.IntType)

		return
	}

	field, ok := st.Field(e.Field)
	if !ok {
		c.sink.Error(e.Pos(), "struct %s has no field %q", st.Name, e.Field)
		e.SetType(types.IntType)

		return
	}

	e.Offset = field.Offset
	e.SetType(field.Type)
}

func (c *Checker) checkCastExpr(e *ast.CastExpr) {
	xt := c.checkExpr(e.X)
	e.IsEffectiveCast = !types.Equal(e.Target, xt)
	e.SetType(e.Target)
}

func (c *Checker) checkSizeofExpr(e *ast.SizeofExpr) {
	var t types.Type

	if e.OperandType != nil {
		t = c.resolveTypeExpr(e.OperandType)
	} else {
		t = c.checkExpr(e.Operand)
	}

	e.AllocSize = t.Size()
	e.SetType(c.tab.PtrDiffType())
}

func (c *Checker) resolveTypeExpr(te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case nil:
		return types.VoidType
	case *ast.NamedTypeExpr:
		switch t.Name {
		case "int":
			return types.IntType
		case "char":
			return types.CharType
		case "void":
			return types.VoidType
		default:
			if st, ok := c.tab.LookupStruct(t.Name); ok {
				return st
			}

			c.sink.Error(ast.Position{}, "undefined type %q", t.Name)

			return types.IntType
		}
	case *ast.PointerTypeExpr:
		return c.tab.PointerTo(c.resolveTypeExpr(t.Elem))
	case *ast.ArrayTypeExpr:
		if t.Len == nil {
			return c.tab.PointerTo(c.resolveTypeExpr(t.Elem))
		}

		lit, ok := t.Len.(*ast.IntLit)
		if !ok {
			c.sink.Error(t.Len.Pos(), "array length must be a constant integer")

			return c.tab.PointerTo(c.resolveTypeExpr(t.Elem))
		}

		return &types.ArrayType{Elem: c.resolveTypeExpr(t.Elem), Len: lit.Value}
	default:
		return types.IntType
	}
}
