// Package codegen is the downstream consumer of a lowered mir.Module:
// it walks each function's flat statement list in order and emits LLVM
// IR text via tinygo.org/x/go-llvm. It performs no optimization and
// does not participate in lowering — it trusts mir.Validate's
// invariants (every expression pure, every Assign target a Var or a
// Mem, every jump target defined exactly once) rather than re-checking
// them.
//
// Grounded on the teacher's codegen.CodeGen: the module/builder/context
// setup, the runtime-function-table pattern (here a type cache keyed
// on types.Type instead of a single boxed-Value struct), the
// variable-storage map, and the blockHasTerminator helper are all kept
// in the teacher's shape. What changes is the source of truth: the
// teacher walked ast.Stmt/ast.Expr directly against a dynamic runtime;
// this walks mir.Stmt/mir.Expr against citron's static int/char/
// pointer/array/struct type model, so every arithmetic and comparison
// op lowers straight to the matching LLVM instruction instead of a
// yar_* runtime call.
package codegen

import (
	"fmt"
	"os"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/mir"
	"github.com/arrowlang/citron/types"
	"tinygo.org/x/go-llvm"
)

// Gen lowers a mir.Module into an LLVM module. Zero value is not
// usable; construct with New.
type Gen struct {
	module  llvm.Module
	builder llvm.Builder
	context llvm.Context

	typeCache map[types.Type]llvm.Type

	globals map[*ast.Entity]llvm.Value
	locals  map[*ast.Entity]llvm.Value
	strPool []llvm.Value

	blocks map[mir.Label]llvm.BasicBlock
	fn     llvm.Value
}

// New creates a Gen targeting a fresh LLVM module named moduleName.
func New(moduleName string) *Gen {
	ctx := llvm.GlobalContext()

	return &Gen{
		module:    ctx.NewModule(moduleName),
		builder:   ctx.NewBuilder(),
		context:   ctx,
		typeCache: make(map[types.Type]llvm.Type),
		globals:   make(map[*ast.Entity]llvm.Value),
	}
}

// Generate emits every global and function in mod into the module.
func (g *Gen) Generate(mod *mir.Module) error {
	g.strPool = make([]llvm.Value, len(mod.Strings))

	for i, s := range mod.Strings {
		g.strPool[i] = g.builder.CreateGlobalStringPtr(s, fmt.Sprintf("str.%d", i))
	}

	for _, gl := range mod.Globals {
		g.declareGlobal(gl)
	}

	// Pre-declare every function signature so mutually recursive and
	// forward calls resolve regardless of definition order.
	for _, fn := range mod.Functions {
		g.declareFunction(fn)
	}

	for _, fn := range mod.Functions {
		if fn.Extern {
			continue
		}

		if err := g.genFunction(fn); err != nil {
			return err
		}
	}

	return nil
}

// EmitIR renders the generated module as LLVM assembly text.
func (g *Gen) EmitIR() string {
	return g.module.String()
}

// WriteToFile writes the module as LLVM bitcode to filename.
func (g *Gen) WriteToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	return llvm.WriteBitcodeToFile(g.module, file)
}

// ===== types =====

func (g *Gen) llvmType(t types.Type) llvm.Type {
	if t == nil || t == types.VoidType {
		return g.context.VoidType()
	}

	if cached, ok := g.typeCache[t]; ok {
		return cached
	}

	var lt llvm.Type

	switch ty := t.(type) {
	case *types.PrimitiveType:
		if ty.Kind == types.Void {
			lt = g.context.VoidType()
		} else {
			lt = g.context.IntType(int(ty.Bits))
		}
	case *types.PointerType:
		lt = llvm.PointerType(g.llvmType(ty.Elem), 0)
	case *types.ArrayType:
		lt = llvm.ArrayType(g.llvmType(ty.Elem), int(ty.Len))
	case *types.StructType:
		lt = g.llvmStructType(ty)
	case *types.FuncType:
		lt = llvm.PointerType(g.llvmFuncType(ty), 0)
	default:
		lt = g.context.Int32Type()
	}

	g.typeCache[t] = lt

	return lt
}

// llvmStructType builds a packed struct with explicit padding bytes so
// its layout matches the byte offsets types.Table.DefineStruct already
// computed — member access lowers to raw pointer-plus-byte-offset
// arithmetic (see genPointerArith), not a typed GEP into field index,
// so the padding has to be real struct members, not an LLVM default.
func (g *Gen) llvmStructType(st *types.StructType) llvm.Type {
	var fields []llvm.Type

	var cursor int64

	for _, f := range st.Fields {
		if pad := f.Offset - cursor; pad > 0 {
			fields = append(fields, llvm.ArrayType(g.context.Int8Type(), int(pad)))
		}

		fields = append(fields, g.llvmType(f.Type))
		cursor = f.Offset + f.Type.Size()
	}

	if pad := st.Size() - cursor; pad > 0 {
		fields = append(fields, llvm.ArrayType(g.context.Int8Type(), int(pad)))
	}

	return g.context.StructType(fields, true)
}

func (g *Gen) llvmFuncType(ft *types.FuncType) llvm.Type {
	params := make([]llvm.Type, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = g.llvmType(p)
	}

	return llvm.FunctionType(g.llvmType(ft.Return), params, false)
}

// ===== globals and functions =====

func (g *Gen) declareGlobal(gl *mir.Global) {
	g.globals[gl.Entity] = g.emitGlobalStorage(gl.Entity.Name, gl.Entity.Type, gl.Init)
}

func (g *Gen) emitGlobalStorage(name string, typ types.Type, init mir.Expr) llvm.Value {
	lt := g.llvmType(typ)
	gv := llvm.AddGlobal(g.module, lt, name)

	if c, ok := g.constExpr(init); ok {
		gv.SetInitializer(c)
	} else {
		gv.SetInitializer(llvm.ConstNull(lt))
	}

	return gv
}

// constExpr folds the handful of expression shapes that can legally
// appear as a global initializer (checker/lower guarantee a global's
// initializer lowers to a pure constant) into an LLVM constant.
func (g *Gen) constExpr(e mir.Expr) (llvm.Value, bool) {
	if e == nil {
		return llvm.Value{}, false
	}

	switch v := e.(type) {
	case *mir.IntValue:
		return llvm.ConstInt(g.llvmType(v.Type()), uint64(v.N), true), true
	default:
		return llvm.Value{}, false
	}
}

func (g *Gen) declareFunction(fn *mir.Function) {
	paramTypes := make([]llvm.Type, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = g.llvmType(p.Type)
	}

	fnType := llvm.FunctionType(g.llvmType(fn.Return), paramTypes, false)
	llvm.AddFunction(g.module, fn.Name, fnType)
}

func (g *Gen) genFunction(fn *mir.Function) error {
	llvmFn := g.module.NamedFunction(fn.Name)

	oldLocals, oldBlocks, oldFn := g.locals, g.blocks, g.fn
	g.locals = make(map[*ast.Entity]llvm.Value)
	g.blocks = make(map[mir.Label]llvm.BasicBlock)
	g.fn = llvmFn

	defer func() {
		g.locals, g.blocks, g.fn = oldLocals, oldBlocks, oldFn
	}()

	entry := g.context.AddBasicBlock(llvmFn, "entry")
	g.builder.SetInsertPointAtEnd(entry)

	for _, lbl := range collectLabels(fn.Body) {
		g.blocks[lbl] = g.context.AddBasicBlock(llvmFn, lbl.String())
	}

	for i, p := range fn.Params {
		param := llvmFn.Param(i)
		param.SetName(p.Name)

		ptr := g.builder.CreateAlloca(g.llvmType(p.Type), p.Name)
		g.builder.CreateStore(param, ptr)
		g.locals[p] = ptr
	}

	for _, sl := range fn.StaticLocals {
		g.globals[sl.Entity] = g.emitGlobalStorage(fn.Name+"."+sl.Entity.Name, sl.Entity.Type, sl.Init)
	}

	for _, s := range fn.Body {
		if err := g.genStmt(s); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}

	return nil
}

func collectLabels(body []mir.Stmt) []mir.Label {
	var out []mir.Label

	for _, s := range body {
		if l, ok := s.(*mir.LabelStmt); ok {
			out = append(out, l.Label)
		}
	}

	return out
}

// ===== statements =====

func (g *Gen) genStmt(s mir.Stmt) error {
	switch st := s.(type) {
	case *mir.LabelStmt:
		block := g.blocks[st.Label]
		g.closeBlockInto(block)
		g.builder.SetInsertPointAtEnd(block)

		return nil

	case *mir.Assign:
		val, err := g.genExpr(st.Rhs)
		if err != nil {
			return err
		}

		ptr, err := g.genLvalue(st.Lhs)
		if err != nil {
			return err
		}

		g.builder.CreateStore(val, ptr)

		return nil

	case *mir.ExprStmt:
		_, err := g.genExpr(st.X)
		return err

	case *mir.Jump:
		g.builder.CreateBr(g.blocks[st.Target])
		return nil

	case *mir.BranchIf:
		cond, err := g.genExpr(st.Cond)
		if err != nil {
			return err
		}

		g.builder.CreateCondBr(g.truthy(cond, st.Cond.Type()), g.blocks[st.Then], g.blocks[st.Else])

		return nil

	case *mir.Switch:
		cond, err := g.genExpr(st.Cond)
		if err != nil {
			return err
		}

		sw := g.builder.CreateSwitch(cond, g.blocks[st.Default], len(st.Cases))
		for _, c := range st.Cases {
			sw.AddCase(llvm.ConstInt(cond.Type(), uint64(c.Value), true), g.blocks[c.Label])
		}

		return nil

	case *mir.Return:
		if st.Value == nil {
			g.builder.CreateRetVoid()
			return nil
		}

		val, err := g.genExpr(st.Value)
		if err != nil {
			return err
		}

		g.builder.CreateRet(val)

		return nil

	default:
		return fmt.Errorf("unsupported statement %T", s)
	}
}

// closeBlockInto emits a fallthrough branch into target if the current
// block hasn't already terminated. A switch whose case arms don't all
// end in a jump (source-level fall-through, see spec §4 scenario 7)
// relies on exactly this: the next LabelStmt's block becomes the
// natural continuation.
func (g *Gen) closeBlockInto(target llvm.BasicBlock) {
	cur := g.builder.GetInsertBlock()
	if cur.IsNil() {
		return
	}

	if !g.blockHasTerminator(cur) {
		g.builder.CreateBr(target)
	}
}

func (g *Gen) blockHasTerminator(block llvm.BasicBlock) bool {
	last := block.LastInstruction()
	if last.IsNil() {
		return false
	}

	return !last.IsAReturnInst().IsNil() ||
		!last.IsABranchInst().IsNil() ||
		!last.IsASwitchInst().IsNil() ||
		!last.IsAUnreachableInst().IsNil()
}

func (g *Gen) truthy(val llvm.Value, t types.Type) llvm.Value {
	lt := g.llvmType(t)
	if _, ok := t.(*types.PointerType); ok {
		return g.builder.CreateICmp(llvm.IntNE, val, llvm.ConstNull(lt), "")
	}

	return g.builder.CreateICmp(llvm.IntNE, val, llvm.ConstInt(lt, 0, true), "")
}

func (g *Gen) genLvalue(e mir.Expr) (llvm.Value, error) {
	switch v := e.(type) {
	case *mir.Var:
		return g.entityPtr(v.Entity)
	case *mir.Mem:
		return g.genExpr(v.Addr)
	default:
		return llvm.Value{}, fmt.Errorf("invalid assignment target %T", e)
	}
}

func (g *Gen) entityPtr(ent *ast.Entity) (llvm.Value, error) {
	if p, ok := g.locals[ent]; ok {
		return p, nil
	}

	if p, ok := g.globals[ent]; ok {
		return p, nil
	}

	// Automatic locals and lowering temporaries get their stack slot on
	// first use, placed in the entry block.
	if ent.Storage == ast.StorageLocal && !g.fn.IsNil() {
		cur := g.builder.GetInsertBlock()
		entry := g.fn.EntryBasicBlock()
		if first := entry.FirstInstruction(); first.IsNil() {
			g.builder.SetInsertPointAtEnd(entry)
		} else {
			g.builder.SetInsertPointBefore(first)
		}

		ptr := g.builder.CreateAlloca(g.llvmType(ent.Type), ent.Name)
		g.builder.SetInsertPointAtEnd(cur)
		g.locals[ent] = ptr

		return ptr, nil
	}

	return llvm.Value{}, fmt.Errorf("unresolved entity %q", ent.Name)
}

// ===== expressions =====

func (g *Gen) genExpr(e mir.Expr) (llvm.Value, error) {
	switch v := e.(type) {
	case *mir.IntValue:
		return llvm.ConstInt(g.llvmType(v.Type()), uint64(v.N), true), nil

	case *mir.StringValue:
		if v.Entry < 0 || v.Entry >= len(g.strPool) {
			return llvm.Value{}, fmt.Errorf("string pool entry %d out of range", v.Entry)
		}

		return g.strPool[v.Entry], nil

	case *mir.Var:
		ptr, err := g.entityPtr(v.Entity)
		if err != nil {
			return llvm.Value{}, err
		}

		return g.builder.CreateLoad(g.llvmType(v.Entity.Type), ptr, v.Entity.Name), nil

	case *mir.Addr:
		return g.genAddr(v)

	case *mir.Mem:
		addr, err := g.genExpr(v.Addr)
		if err != nil {
			return llvm.Value{}, err
		}

		return g.builder.CreateLoad(g.llvmType(v.Type()), addr, ""), nil

	case *mir.Bin:
		return g.genBin(v)

	case *mir.Uni:
		return g.genUni(v)

	case *mir.Call:
		return g.genCall(v)

	default:
		return llvm.Value{}, fmt.Errorf("unsupported expression %T", e)
	}
}

// genAddr resolves the address of a.Inner. A bare Var is a decayed
// array/struct/function identifier: its own storage pointer is the
// answer. Anything else (a Bin computing a member or index address) is
// already a pointer value; Addr here just names that fact, so lowering
// its inner expression a second time is correct, not a double address.
func (g *Gen) genAddr(a *mir.Addr) (llvm.Value, error) {
	if v, ok := a.Inner.(*mir.Var); ok {
		return g.entityPtr(v.Entity)
	}

	return g.genExpr(a.Inner)
}

func (g *Gen) genBin(b *mir.Bin) (llvm.Value, error) {
	left, err := g.genExpr(b.Left)
	if err != nil {
		return llvm.Value{}, err
	}

	right, err := g.genExpr(b.Right)
	if err != nil {
		return llvm.Value{}, err
	}

	// An array- or struct-typed left operand is the decayed address of
	// an index or "." member base, so it takes the same byte-offset path.
	switch b.Left.Type().(type) {
	case *types.PointerType, *types.ArrayType, *types.StructType:
		if b.Op == mir.ADD || b.Op == mir.SUB {
			return g.genPointerArith(b.Op, left, right), nil
		}
	}

	switch b.Op {
	case mir.ADD:
		return g.builder.CreateAdd(left, right, ""), nil
	case mir.SUB:
		return g.builder.CreateSub(left, right, ""), nil
	case mir.MUL:
		return g.builder.CreateMul(left, right, ""), nil
	case mir.DIV:
		return g.builder.CreateSDiv(left, right, ""), nil
	case mir.MOD:
		return g.builder.CreateSRem(left, right, ""), nil
	case mir.AND:
		return g.builder.CreateAnd(left, right, ""), nil
	case mir.OR:
		return g.builder.CreateOr(left, right, ""), nil
	case mir.XOR:
		return g.builder.CreateXor(left, right, ""), nil
	case mir.LSHIFT:
		return g.builder.CreateShl(left, right, ""), nil
	case mir.RSHIFT:
		return g.builder.CreateLShr(left, right, ""), nil
	case mir.ARSHIFT:
		return g.builder.CreateAShr(left, right, ""), nil
	case mir.EQ, mir.NEQ, mir.LT, mir.LTEQ, mir.GT, mir.GTEQ:
		return g.genCompare(b.Op, left, right, b.Type()), nil
	default:
		return llvm.Value{}, fmt.Errorf("unsupported binary op %s", b.Op)
	}
}

// genPointerArith implements pointer +/- int as byte-offset GEP. The
// lowering pass already scaled the integer operand by the pointee's
// element size (see Lowerer.scalePointerOperand), so codegen treats
// the offset as raw bytes rather than element counts.
func (g *Gen) genPointerArith(op mir.Op, ptr, offset llvm.Value) llvm.Value {
	if op == mir.SUB {
		offset = g.builder.CreateNeg(offset, "")
	}

	return g.builder.CreateGEP(g.context.Int8Type(), ptr, []llvm.Value{offset}, "")
}

func (g *Gen) genCompare(op mir.Op, left, right llvm.Value, resultType types.Type) llvm.Value {
	var pred llvm.IntPredicate

	switch op {
	case mir.EQ:
		pred = llvm.IntEQ
	case mir.NEQ:
		pred = llvm.IntNE
	case mir.LT:
		pred = llvm.IntSLT
	case mir.LTEQ:
		pred = llvm.IntSLE
	case mir.GT:
		pred = llvm.IntSGT
	default: // GTEQ
		pred = llvm.IntSGE
	}

	cmp := g.builder.CreateICmp(pred, left, right, "")

	return g.builder.CreateZExt(cmp, g.llvmType(resultType), "")
}

func (g *Gen) genUni(u *mir.Uni) (llvm.Value, error) {
	x, err := g.genExpr(u.X)
	if err != nil {
		return llvm.Value{}, err
	}

	switch u.Op {
	case mir.UMINUS:
		return g.builder.CreateNeg(x, ""), nil
	case mir.NOT:
		isZero := g.builder.CreateICmp(llvm.IntEQ, x, llvm.ConstInt(x.Type(), 0, true), "")
		return g.builder.CreateZExt(isZero, g.llvmType(u.Type()), ""), nil
	case mir.BIT_NOT:
		return g.builder.CreateNot(x, ""), nil
	case mir.CAST, mir.S_CAST, mir.U_CAST:
		return g.genCast(u.Op, x, u.X.Type(), u.Type())
	default:
		return llvm.Value{}, fmt.Errorf("unsupported unary op %s", u.Op)
	}
}

// genCast handles the one cast form the lowering pass emits (CAST —
// citron has no unsigned integer kind to distinguish S_CAST/U_CAST by,
// see mir.Op's doc comment), plus pointer<->integer conversions that
// fall out of the same node shape.
func (g *Gen) genCast(op mir.Op, x llvm.Value, from, to types.Type) (llvm.Value, error) {
	toType := g.llvmType(to)

	_, fromPtr := from.(*types.PointerType)
	_, toPtr := to.(*types.PointerType)

	switch {
	case fromPtr && toPtr:
		return g.builder.CreateBitCast(x, toType, ""), nil
	case fromPtr && !toPtr:
		return g.builder.CreatePtrToInt(x, toType, ""), nil
	case !fromPtr && toPtr:
		return g.builder.CreateIntToPtr(x, toType, ""), nil
	}

	fromBits := from.Size() * 8
	toBits := to.Size() * 8

	switch {
	case toBits == fromBits:
		return x, nil
	case toBits < fromBits:
		return g.builder.CreateTrunc(x, toType, ""), nil
	case op == mir.U_CAST:
		return g.builder.CreateZExt(x, toType, ""), nil
	default:
		return g.builder.CreateSExt(x, toType, ""), nil
	}
}

func (g *Gen) genCall(c *mir.Call) (llvm.Value, error) {
	callee := c.Callee
	if a, ok := callee.(*mir.Addr); ok {
		callee = a.Inner
	}

	v, ok := callee.(*mir.Var)
	if !ok {
		return llvm.Value{}, fmt.Errorf("indirect calls are not yet supported")
	}

	fn := g.module.NamedFunction(v.Entity.Name)
	if fn.IsNil() {
		return llvm.Value{}, fmt.Errorf("undefined function %q", v.Entity.Name)
	}

	ft, ok := v.Entity.Type.(*types.FuncType)
	if !ok {
		return llvm.Value{}, fmt.Errorf("callee %q is not a function", v.Entity.Name)
	}

	args := make([]llvm.Value, len(c.Args))

	for i, a := range c.Args {
		val, err := g.genExpr(a)
		if err != nil {
			return llvm.Value{}, err
		}

		args[i] = val
	}

	return g.builder.CreateCall(g.llvmFuncType(ft), fn, args, ""), nil
}
