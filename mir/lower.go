package mir

import (
	"strings"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/types"
)

// jumpEntry tracks one user-defined label's linkage state within the
// function currently being lowered.
type jumpEntry struct {
	label       Label
	defined     bool
	refCount    int
	defPos      ast.Position
	firstRefPos ast.Position
}

// Lowerer drives the lowering pass. One Lowerer lowers a whole file;
// the fields below reset between functions (see resetFunctionState) —
// label/temp numbering and break/continue/jump-map state are scoped to
// a single function, since labels only need to be unique within it.
//
// Grounded on the teacher's mir/lower.go Lowerer (newTemp/newBB/emit
// driver shape, lowerIfStmt/lowerWhileStmt/lowerForStmt dispatch),
// adapted from basic-block emission to flat statement-list emission.
type Lowerer struct {
	tab  *types.Table
	sink *diag.Sink

	stmts        []Stmt
	staticLocals []*Global
	tmpCount     int
	labelCount   int
	nestLevel    int
	beforeStmt   int
	breaks       []Label
	continues    []Label
	jumps        map[string]*jumpEntry
}

// NewLowerer constructs a Lowerer over tab (the checker's type table,
// reused for SignedInt/PtrDiffType/PointerTo), reporting diagnostics
// into sink.
func NewLowerer(tab *types.Table, sink *diag.Sink) *Lowerer {
	return &Lowerer{tab: tab, sink: sink}
}

// Lower runs the IR-lowering pass over file, using tab/funcSigs/
// strings produced by a prior checker.Checker.CheckFile pass.
func Lower(file *ast.File, tab *types.Table, funcSigs map[string]*types.FuncType, strings []string, sink *diag.Sink) *Module {
	return NewLowerer(tab, sink).LowerFile(file, funcSigs, strings)
}

// LowerFile lowers every global and function in file.
func (l *Lowerer) LowerFile(file *ast.File, funcSigs map[string]*types.FuncType, strings []string) *Module {
	mod := &Module{Strings: strings}

	for _, g := range file.Globals() {
		mod.Globals = append(mod.Globals, l.lowerGlobalVar(g))
	}

	for _, fn := range file.Funcs() {
		sig, ok := funcSigs[fn.Name]
		if !ok {
			l.sink.Error(fn.Position, "internal error: no resolved signature for function %q", fn.Name)
			continue
		}

		mod.Functions = append(mod.Functions, l.lowerFunction(fn, sig))
	}

	return mod
}

func (l *Lowerer) resetFunctionState() {
	l.stmts = nil
	l.staticLocals = nil
	l.tmpCount = 0
	l.labelCount = 0
	l.nestLevel = 0
	l.beforeStmt = 0
	l.breaks = nil
	l.continues = nil
	l.jumps = make(map[string]*jumpEntry)
}

// lowerGlobalVar folds a file-scope initializer into a pure IR
// expression. A global initializer must never need a statement to
// compute — if lowering one emits anything, that is a bug in an
// earlier pass (checker should have rejected a non-constant
// initializer), not something this pass can repair.
func (l *Lowerer) lowerGlobalVar(g *ast.VarDecl) *Global {
	l.resetFunctionState()

	var init Expr
	if g.Init != nil {
		init = l.lowerExpr(g.Init)
	}

	if len(l.stmts) != 0 {
		l.sink.Error(g.Pos(), "internal error: initializer for global %q is not a pure expression", g.Name)
	}

	return &Global{Entity: g.Entity, Init: init}
}

func (l *Lowerer) lowerFunction(fn *ast.FuncDecl, sig *types.FuncType) *Function {
	l.resetFunctionState()

	params := make([]*ast.Entity, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Entity
	}

	if fn.IsExtern {
		return &Function{Name: fn.Name, Params: params, Return: sig.Return, Extern: true}
	}

	l.lowerBlock(fn.Body)

	if sig.Return == types.VoidType && !l.endsInTerminator() {
		l.emit(&Return{stmtBase{fn.Position}, nil})
	}

	l.auditJumps(fn.Position)

	return &Function{
		Name:         fn.Name,
		Params:       params,
		Return:       sig.Return,
		Body:         l.stmts,
		StaticLocals: l.staticLocals,
	}
}

func (l *Lowerer) endsInTerminator() bool {
	if len(l.stmts) == 0 {
		return false
	}

	switch l.stmts[len(l.stmts)-1].(type) {
	case *Return, *Jump:
		return true
	default:
		return false
	}
}

// ===== emission plumbing =====

func (l *Lowerer) emit(s Stmt) { l.stmts = append(l.stmts, s) }

func (l *Lowerer) emitLabel(lbl Label, pos ast.Position) { l.emit(&LabelStmt{stmtBase{pos}, lbl}) }

func (l *Lowerer) newLabel() Label {
	l.labelCount++
	return Label(l.labelCount)
}

// newTemp allocates a fresh compiler temporary of type t. Its lifetime
// is the enclosing function; a single per-function counter is enough
// to guarantee uniqueness, since temporaries are never user-visible
// and never need block-scoped shadowing.
func (l *Lowerer) newTemp(t types.Type) *ast.Entity {
	l.tmpCount++

	return &ast.Entity{
		Name:       "%t" + itoa(l.tmpCount),
		Storage:    ast.StorageLocal,
		Type:       t,
		CannotLoad: !types.IsLoadable(t),
		Size:       t.Size(),
		Align:      t.Align(),
	}
}

func (l *Lowerer) newTempVar(t types.Type) *Var {
	return &Var{exprBase{t}, l.newTemp(t)}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}

func (l *Lowerer) pushBreak(lbl Label)    { l.breaks = append(l.breaks, lbl) }
func (l *Lowerer) popBreak()              { l.breaks = l.breaks[:len(l.breaks)-1] }
func (l *Lowerer) pushContinue(lbl Label) { l.continues = append(l.continues, lbl) }
func (l *Lowerer) popContinue()           { l.continues = l.continues[:len(l.continues)-1] }

// assignBeforeStmt inserts an Assign at the cursor marking where the
// current top-level statement began emitting, and advances the
// cursor so a second hoisted assignment lands immediately after the
// first rather than before it.
func (l *Lowerer) assignBeforeStmt(pos ast.Position, lhs, rhs Expr) {
	stmt := &Assign{stmtBase{pos}, lhs, rhs}

	l.stmts = append(l.stmts[:l.beforeStmt:l.beforeStmt], append([]Stmt{stmt}, l.stmts[l.beforeStmt:]...)...)
	l.beforeStmt++
}

// ===== label/goto linkage =====

func (l *Lowerer) defineLabel(name string, pos ast.Position) Label {
	e, ok := l.jumps[name]
	if !ok {
		e = &jumpEntry{label: l.newLabel()}
		l.jumps[name] = e
	}

	if e.defined {
		l.sink.Error(pos, "label %q defined more than once", name)
		return e.label
	}

	e.defined = true
	e.defPos = pos

	return e.label
}

func (l *Lowerer) referLabel(name string, pos ast.Position) Label {
	e, ok := l.jumps[name]
	if !ok {
		e = &jumpEntry{label: l.newLabel()}
		l.jumps[name] = e
	}

	if e.refCount == 0 {
		e.firstRefPos = pos
	}

	e.refCount++

	return e.label
}

// auditJumps runs once per function, after its whole body has been
// lowered: every goto target must eventually have been defined, and
// every label definition that nothing ever jumped to is dead code
// worth a warning.
func (l *Lowerer) auditJumps(fallbackPos ast.Position) {
	for name, e := range l.jumps {
		if !e.defined {
			pos := e.firstRefPos
			if pos == (ast.Position{}) {
				pos = fallbackPos
			}

			l.sink.Error(pos, "undefined label %q", name)
		} else if e.refCount == 0 {
			l.sink.Warn(e.defPos, "unreferenced label %q", name)
		}
	}
}

// ===== address/deref algebra =====

// addressOf implements the four address-of rules: &*p cancels to p's
// own address expression; an array-typed operand decays to an Addr of
// the same array type; a non-loadable entity (another array, or a
// struct passed by value) is address-only already, so wrapping just
// names that fact; everything else gets a plain Addr of a pointer to
// its type.
func (l *Lowerer) addressOf(e Expr) Expr {
	if m, ok := e.(*Mem); ok {
		return m.Addr
	}

	if at, ok := e.Type().(*types.ArrayType); ok {
		return &Addr{exprBase{at}, e}
	}

	if v, ok := e.(*Var); ok && v.Entity.CannotLoad {
		return &Addr{exprBase{v.Entity.Type}, e}
	}

	return &Addr{exprBase{l.tab.PointerTo(e.Type())}, e}
}

// deref builds Mem(pointee type, e) for any pointer- or array-typed e.
func (l *Lowerer) deref(e Expr) Expr {
	var elem types.Type

	switch t := e.Type().(type) {
	case *types.PointerType:
		elem = t.Elem
	case *types.ArrayType:
		elem = t.Elem
	default:
		elem = e.Type()
	}

	return &Mem{exprBase{elem}, e}
}

// lvalueAddr forces e to lower to its own address rather than its
// value, the same way the checker's ShouldEvalAddr marking does for an
// assignment target or the operand of unary &. Used wherever a
// sub-expression needs to contribute a base address rather than a
// loaded value — indexing an array-typed base, or taking the address
// of the struct a "." member access reads through.
func (l *Lowerer) lvalueAddr(e ast.Expr) Expr {
	e.SetShouldEvalAddr(true)
	return l.lowerExpr(e)
}

// transformLHS lowers e (the checker marks every assignment/inc-dec
// target ShouldEvalAddr) into the canonical storable-location shape:
// a bare identifier comes back as Addr(Var) and is unwrapped to the
// Var itself; a member/index/deref target comes back as the computed
// address expression and is wrapped in Mem to name the location it
// points to.
func (l *Lowerer) transformLHS(e ast.Expr) Expr {
	lowered := l.lowerExpr(e)

	switch v := lowered.(type) {
	case *Addr:
		return v.Inner
	case *Mem:
		return v
	default:
		return &Mem{exprBase{e.Type()}, lowered}
	}
}

// cloneExpr deep-copies an IR expression tree. Used wherever the same
// sub-expression must appear twice in emitted IR (op-assign and
// postfix increment both read and write through the same location);
// lowering never lets two statements share one Expr node.
func cloneExpr(e Expr) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case *IntValue:
		c := *v
		return &c
	case *StringValue:
		c := *v
		return &c
	case *Var:
		c := *v
		return &c
	case *Bin:
		c := *v
		c.Left = cloneExpr(v.Left)
		c.Right = cloneExpr(v.Right)
		return &c
	case *Uni:
		c := *v
		c.X = cloneExpr(v.X)
		return &c
	case *Mem:
		c := *v
		c.Addr = cloneExpr(v.Addr)
		return &c
	case *Addr:
		c := *v
		c.Inner = cloneExpr(v.Inner)
		return &c
	case *Call:
		c := *v
		c.Callee = cloneExpr(v.Callee)
		c.Args = make([]Expr, len(v.Args))
		for i, a := range v.Args {
			c.Args[i] = cloneExpr(a)
		}
		return &c
	default:
		return e
	}
}

func pointeeSize(t types.Type) (int64, bool) {
	switch pt := t.(type) {
	case *types.PointerType:
		return pt.Elem.Size(), true
	case *types.ArrayType:
		return pt.Elem.Size(), true
	default:
		return 0, false
	}
}

func (l *Lowerer) scalePointerOperand(intOperand Expr, size int64) Expr {
	pd := l.tab.PtrDiffType()
	return &Bin{exprBase{pd}, MUL, intOperand, &IntValue{exprBase{pd}, size}}
}

func isConstantAddress(e ast.Expr) bool {
	_, ok := e.(*ast.Ident)
	return ok
}

var binOpTable = map[string]Op{
	"+": ADD, "-": SUB, "*": MUL, "/": DIV, "%": MOD,
	"&": AND, "|": OR, "^": XOR, "<<": LSHIFT, ">>": ARSHIFT,
	"==": EQ, "!=": NEQ, "<": LT, "<=": LTEQ, ">": GT, ">=": GTEQ,
}

func binOp(op string) Op { return binOpTable[op] }

// ===== statement lowering =====

func (l *Lowerer) lowerBlock(b *ast.Block) {
	for _, s := range b.Stmts {
		l.beforeStmt = len(l.stmts)
		l.lowerStmt(s)
	}
}

func (l *Lowerer) lowerStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		l.lowerVarDeclStmt(s)
	case *ast.ExprStmt:
		e := l.lowerExpr(s.X)
		if e != nil {
			l.emit(&ExprStmt{stmtBase{s.Pos()}, e})
		}
	case *ast.Block:
		l.lowerBlock(s)
	case *ast.IfStmt:
		l.lowerIf(s)
	case *ast.WhileStmt:
		l.lowerWhile(s)
	case *ast.DoWhileStmt:
		l.lowerDoWhile(s)
	case *ast.ForStmt:
		l.lowerFor(s)
	case *ast.SwitchStmt:
		l.lowerSwitch(s)
	case *ast.BreakStmt:
		if len(l.breaks) == 0 {
			l.sink.Error(s.Pos(), "break outside loop or switch")
			return
		}
		l.emit(&Jump{stmtBase{s.Pos()}, l.breaks[len(l.breaks)-1]})
	case *ast.ContinueStmt:
		if len(l.continues) == 0 {
			l.sink.Error(s.Pos(), "continue outside loop")
			return
		}
		l.emit(&Jump{stmtBase{s.Pos()}, l.continues[len(l.continues)-1]})
	case *ast.LabelStmt:
		lbl := l.defineLabel(s.Name, s.Pos())
		l.emitLabel(lbl, s.Pos())
		if s.Stmt != nil {
			l.lowerStmt(s.Stmt)
		}
	case *ast.GotoStmt:
		lbl := l.referLabel(s.Name, s.Pos())
		l.emit(&Jump{stmtBase{s.Pos()}, lbl})
	case *ast.ReturnStmt:
		var v Expr
		if s.Value != nil {
			v = l.lowerExpr(s.Value)
		}
		l.emit(&Return{stmtBase{s.Pos()}, v})
	default:
		l.sink.Error(stmt.Pos(), "internal error: unhandled statement %T", stmt)
	}
}

func (l *Lowerer) lowerVarDeclStmt(s *ast.VarDecl) {
	if s.IsPrivate {
		var init Expr
		if s.Init != nil {
			init = l.lowerExpr(s.Init)
		}

		l.staticLocals = append(l.staticLocals, &Global{Entity: s.Entity, Init: init})

		return
	}

	if s.Init == nil {
		return
	}

	init := l.lowerExpr(s.Init)

	l.emit(&Assign{stmtBase{s.Pos()}, &Var{exprBase{s.Entity.Type}, s.Entity}, init})
}

func (l *Lowerer) lowerIf(s *ast.IfStmt) {
	hasElse := s.Else != nil

	thenLabel := l.newLabel()

	var elseLabel Label
	if hasElse {
		elseLabel = l.newLabel()
	}

	endLabel := l.newLabel()
	if !hasElse {
		elseLabel = endLabel
	}

	cond := l.lowerExpr(s.Cond)
	l.emit(&BranchIf{stmtBase{s.Pos()}, cond, thenLabel, elseLabel})

	l.emitLabel(thenLabel, s.Pos())
	l.lowerBlock(s.Then)
	l.emit(&Jump{stmtBase{s.Pos()}, endLabel})

	if hasElse {
		l.emitLabel(elseLabel, s.Pos())
		l.lowerStmt(s.Else)
		l.emit(&Jump{stmtBase{s.Pos()}, endLabel})
	}

	l.emitLabel(endLabel, s.Pos())
}

func (l *Lowerer) lowerWhile(s *ast.WhileStmt) {
	begin := l.newLabel()
	body := l.newLabel()
	end := l.newLabel()

	l.emitLabel(begin, s.Pos())
	cond := l.lowerExpr(s.Cond)
	l.emit(&BranchIf{stmtBase{s.Pos()}, cond, body, end})

	l.emitLabel(body, s.Pos())
	l.pushBreak(end)
	l.pushContinue(begin)
	l.lowerBlock(s.Body)
	l.popContinue()
	l.popBreak()

	l.emit(&Jump{stmtBase{s.Pos()}, begin})
	l.emitLabel(end, s.Pos())
}

func (l *Lowerer) lowerDoWhile(s *ast.DoWhileStmt) {
	begin := l.newLabel()
	cont := l.newLabel()
	end := l.newLabel()

	l.pushBreak(end)
	l.pushContinue(cont)
	l.emitLabel(begin, s.Pos())
	l.lowerBlock(s.Body)
	l.popContinue()
	l.popBreak()

	l.emitLabel(cont, s.Pos())
	cond := l.lowerExpr(s.Cond)
	l.emit(&BranchIf{stmtBase{s.Pos()}, cond, begin, end})
	l.emitLabel(end, s.Pos())
}

func (l *Lowerer) lowerFor(s *ast.ForStmt) {
	if s.Init != nil {
		l.lowerStmt(s.Init)
	}

	begin := l.newLabel()
	body := l.newLabel()
	cont := l.newLabel()
	end := l.newLabel()

	l.emitLabel(begin, s.Pos())
	if s.Cond != nil {
		cond := l.lowerExpr(s.Cond)
		l.emit(&BranchIf{stmtBase{s.Pos()}, cond, body, end})
	} else {
		l.emit(&Jump{stmtBase{s.Pos()}, body})
	}

	l.emitLabel(body, s.Pos())
	l.pushBreak(end)
	l.pushContinue(cont)
	l.lowerBlock(s.Body)
	l.popContinue()
	l.popBreak()

	l.emitLabel(cont, s.Pos())
	if s.Post != nil {
		l.lowerStmt(s.Post)
	}

	l.emit(&Jump{stmtBase{s.Pos()}, begin})
	l.emitLabel(end, s.Pos())
}

func (l *Lowerer) lowerSwitch(s *ast.SwitchStmt) {
	cond := l.lowerExpr(s.Cond)

	caseLabels := make([]Label, len(s.Cases))
	var cases []SwitchCase

	for i, cc := range s.Cases {
		lbl := l.newLabel()
		caseLabels[i] = lbl

		iv, ok := cc.Value.(*ast.IntLit)
		if !ok {
			l.sink.Error(cc.Position, "case value must be a compile-time integer constant")
			continue
		}

		cases = append(cases, SwitchCase{Value: iv.Value, Label: lbl})
	}

	var defaultCaseLabel Label
	if s.Default != nil {
		defaultCaseLabel = l.newLabel()
	}

	end := l.newLabel()

	defaultLabel := end
	if s.Default != nil {
		defaultLabel = defaultCaseLabel
	}

	l.emit(&Switch{stmtBase{s.Pos()}, cond, cases, defaultLabel, end})

	l.pushBreak(end)

	for i, cc := range s.Cases {
		l.emitLabel(caseLabels[i], cc.Position)
		for _, st := range cc.Body {
			l.lowerStmt(st)
		}
	}

	if s.Default != nil {
		l.emitLabel(defaultCaseLabel, s.Default.Position)
		for _, st := range s.Default.Body {
			l.lowerStmt(st)
		}
	}

	l.popBreak()
	l.emitLabel(end, s.Pos())
}

// ===== expression lowering =====

func (l *Lowerer) lowerExpr(e ast.Expr) Expr {
	l.nestLevel++
	defer func() { l.nestLevel-- }()

	switch node := e.(type) {
	case *ast.IntLit:
		return &IntValue{exprBase{node.Type()}, node.Value}
	case *ast.StringLit:
		return &StringValue{exprBase{node.Type()}, node.PoolOffset}
	case *ast.Ident:
		return l.lowerIdent(node)
	case *ast.BinaryExpr:
		return l.lowerBinary(node)
	case *ast.UnaryExpr:
		return l.lowerUnary(node)
	case *ast.IncDecExpr:
		return l.lowerIncDec(node)
	case *ast.CondExpr:
		return l.lowerCond(node)
	case *ast.AssignExpr:
		return l.lowerAssign(node)
	case *ast.CallExpr:
		return l.lowerCall(node)
	case *ast.IndexExpr:
		return l.lowerIndex(node)
	case *ast.MemberExpr:
		return l.lowerMember(node)
	case *ast.CastExpr:
		return l.lowerCast(node)
	case *ast.SizeofExpr:
		return &IntValue{exprBase{node.Type()}, node.AllocSize}
	default:
		l.sink.Error(e.Pos(), "internal error: unhandled expression %T", e)
		return &IntValue{exprBase{types.IntType}, 0}
	}
}

// lowerIdent decays a non-loadable entity (an array or a function,
// neither of which has a value distinct from its own address) to its
// address unconditionally; a loadable scalar only decays when the
// checker marked this particular reference ShouldEvalAddr (an
// assignment target, an inc-dec operand, or the operand of unary &).
func (l *Lowerer) lowerIdent(node *ast.Ident) Expr {
	v := &Var{exprBase{node.Entity.Type}, node.Entity}
	if node.Entity.CannotLoad || node.ShouldEvalAddr() {
		return l.addressOf(v)
	}

	return v
}

func (l *Lowerer) lowerBinary(node *ast.BinaryExpr) Expr {
	switch node.Op {
	case "&&":
		return l.lowerLogicalAnd(node)
	case "||":
		return l.lowerLogicalOr(node)
	}

	left := l.lowerExpr(node.Left)
	right := l.lowerExpr(node.Right)

	if node.Op == "+" || node.Op == "-" {
		if size, ok := pointeeSize(left.Type()); ok {
			right = l.scalePointerOperand(right, size)
		} else if node.Op == "+" {
			if size, ok := pointeeSize(right.Type()); ok {
				left = l.scalePointerOperand(left, size)
			}
		}
	}

	return &Bin{exprBase{node.Type()}, binOp(node.Op), left, right}
}

// lowerLogicalAnd implements short-circuit && via a shared temporary:
// t = lower(a); branch t -> L1, L2; L1: t = lower(b); L2: (value is t).
func (l *Lowerer) lowerLogicalAnd(node *ast.BinaryExpr) Expr {
	tv := l.newTempVar(types.IntType)

	left := l.lowerExpr(node.Left)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), left})

	rightLabel := l.newLabel()
	endLabel := l.newLabel()
	l.emit(&BranchIf{stmtBase{node.Pos()}, cloneExpr(tv), rightLabel, endLabel})

	l.emitLabel(rightLabel, node.Pos())
	right := l.lowerExpr(node.Right)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), right})

	l.emitLabel(endLabel, node.Pos())

	return tv
}

func (l *Lowerer) lowerLogicalOr(node *ast.BinaryExpr) Expr {
	tv := l.newTempVar(types.IntType)

	left := l.lowerExpr(node.Left)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), left})

	rightLabel := l.newLabel()
	endLabel := l.newLabel()
	l.emit(&BranchIf{stmtBase{node.Pos()}, cloneExpr(tv), endLabel, rightLabel})

	l.emitLabel(rightLabel, node.Pos())
	right := l.lowerExpr(node.Right)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), right})

	l.emitLabel(endLabel, node.Pos())

	return tv
}

func (l *Lowerer) lowerCond(node *ast.CondExpr) Expr {
	tv := l.newTempVar(node.Type())

	thenLabel := l.newLabel()
	elseLabel := l.newLabel()
	endLabel := l.newLabel()

	cond := l.lowerExpr(node.Cond)
	l.emit(&BranchIf{stmtBase{node.Pos()}, cond, thenLabel, elseLabel})

	l.emitLabel(thenLabel, node.Pos())
	thenVal := l.lowerExpr(node.Then)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), thenVal})
	l.emit(&Jump{stmtBase{node.Pos()}, endLabel})

	l.emitLabel(elseLabel, node.Pos())
	elseVal := l.lowerExpr(node.Else)
	l.emit(&Assign{stmtBase{node.Pos()}, cloneExpr(tv), elseVal})
	l.emit(&Jump{stmtBase{node.Pos()}, endLabel})

	l.emitLabel(endLabel, node.Pos())

	return tv
}

func (l *Lowerer) lowerAssign(node *ast.AssignExpr) Expr {
	stmtCtx := l.nestLevel <= 1

	if node.Op == "=" {
		return l.lowerPlainAssign(node, stmtCtx)
	}

	return l.lowerOpAssign(node, stmtCtx)
}

func (l *Lowerer) lowerPlainAssign(node *ast.AssignExpr, stmtCtx bool) Expr {
	rhs := l.lowerExpr(node.Rhs)
	lhs := l.transformLHS(node.Lhs)

	if stmtCtx {
		l.emit(&Assign{stmtBase{node.Pos()}, lhs, rhs})
		return nil
	}

	tv := l.newTempVar(node.Type())
	l.assignBeforeStmt(node.Pos(), cloneExpr(tv), rhs)
	l.assignBeforeStmt(node.Pos(), lhs, cloneExpr(tv))

	return tv
}

func (l *Lowerer) lowerOpAssign(node *ast.AssignExpr, stmtCtx bool) Expr {
	rhs := l.lowerExpr(node.Rhs)
	op := binOp(strings.TrimSuffix(node.Op, "="))

	if size, ok := pointeeSize(node.Lhs.Type()); ok {
		rhs = l.scalePointerOperand(rhs, size)
	}

	if isConstantAddress(node.Lhs) {
		lhs := l.transformLHS(node.Lhs)
		result := &Bin{exprBase{node.Type()}, op, cloneExpr(lhs), rhs}

		if stmtCtx {
			l.emit(&Assign{stmtBase{node.Pos()}, lhs, result})
			return nil
		}

		l.assignBeforeStmt(node.Pos(), cloneExpr(lhs), result)

		return lhs
	}

	addrExpr := l.lowerExpr(node.Lhs) // node.Lhs.ShouldEvalAddr() was set by checker
	aEnt := l.newTemp(addrExpr.Type())
	newA := func() *Var { return &Var{exprBase{addrExpr.Type()}, aEnt} }

	result := &Bin{exprBase{node.Type()}, op, l.deref(newA()), rhs}

	if stmtCtx {
		l.emit(&Assign{stmtBase{node.Pos()}, newA(), addrExpr})
		l.emit(&Assign{stmtBase{node.Pos()}, l.deref(newA()), result})

		return nil
	}

	l.assignBeforeStmt(node.Pos(), newA(), addrExpr)
	l.assignBeforeStmt(node.Pos(), l.deref(newA()), result)

	return l.deref(newA())
}

func (l *Lowerer) lowerIncDec(node *ast.IncDecExpr) Expr {
	stmtCtx := l.nestLevel <= 1

	opSym := "+="
	if node.Op == "--" {
		opSym = "-="
	}

	synthetic := &ast.AssignExpr{
		ExprBase: ast.ExprBase{Typ: node.X.Type()},
		Op:       opSym,
		Lhs:      node.X,
		Rhs:      intLiteral(1, node.X.Type()),
	}

	if node.Prefix || stmtCtx {
		return l.lowerOpAssign(synthetic, stmtCtx)
	}

	return l.lowerPostfixIncDec(node, opSym)
}

func intLiteral(v int64, t types.Type) *ast.IntLit {
	lit := &ast.IntLit{Value: v}
	lit.SetType(t)

	return lit
}

func (l *Lowerer) lowerPostfixIncDec(node *ast.IncDecExpr, opSym string) Expr {
	op := binOp(strings.TrimSuffix(opSym, "="))

	one := Expr(&IntValue{exprBase{node.X.Type()}, 1})
	if size, ok := pointeeSize(node.X.Type()); ok {
		one = l.scalePointerOperand(one, size)
	}

	vv := l.newTempVar(node.X.Type())

	if isConstantAddress(node.X) {
		lhs := l.transformLHS(node.X)
		l.assignBeforeStmt(node.Pos(), cloneExpr(vv), cloneExpr(lhs))

		result := &Bin{exprBase{node.X.Type()}, op, cloneExpr(lhs), one}
		l.assignBeforeStmt(node.Pos(), lhs, result)

		return vv
	}

	node.X.SetShouldEvalAddr(true)
	addrExpr := l.lowerExpr(node.X)
	aEnt := l.newTemp(addrExpr.Type())
	newA := func() *Var { return &Var{exprBase{addrExpr.Type()}, aEnt} }

	l.assignBeforeStmt(node.Pos(), newA(), addrExpr)
	l.assignBeforeStmt(node.Pos(), cloneExpr(vv), l.deref(newA()))

	result := &Bin{exprBase{node.X.Type()}, op, l.deref(newA()), one}
	l.assignBeforeStmt(node.Pos(), l.deref(newA()), result)

	return vv
}

// lowerCall lowers arguments right-to-left, preserving the source's
// right-to-left evaluation order, then the callee, emitting the args
// back into their natural positional slots.
func (l *Lowerer) lowerCall(node *ast.CallExpr) Expr {
	args := make([]Expr, len(node.Args))
	for i := len(node.Args) - 1; i >= 0; i-- {
		args[i] = l.lowerExpr(node.Args[i])
	}

	callee := l.lowerExpr(node.Callee)

	return &Call{exprBase{node.Type()}, callee, args}
}

// collectIndexChain walks down a nested a[i1][i2]...[iN] IndexExpr
// chain to the non-IndexExpr root, returning it along with the chain
// of IndexExpr nodes ordered i1..iN (outermost-syntactically-last,
// innermost-dimension-first).
func collectIndexChain(e *ast.IndexExpr) (ast.Expr, []*ast.IndexExpr) {
	chain := []*ast.IndexExpr{e}
	cur := e

	for {
		inner, ok := cur.Array.(*ast.IndexExpr)
		if !ok {
			break
		}

		chain = append(chain, inner)
		cur = inner
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return cur.Array, chain
}

func (l *Lowerer) indexBaseAddr(base ast.Expr) Expr {
	if _, isArray := base.Type().(*types.ArrayType); isArray {
		return l.lvalueAddr(base)
	}

	// Pointer-typed base: its own value already is the address to
	// index from.
	return l.lowerExpr(base)
}

// lowerIndexAddr computes the address of a[i1]...[iN] by Horner's
// scheme: linear = ((i1*d2+i2)*d3+i3)...*dN+iN, then
// base + elementSize*linear.
func (l *Lowerer) lowerIndexAddr(e *ast.IndexExpr) Expr {
	base, chain := collectIndexChain(e)
	baseAddr := l.indexBaseAddr(base)

	var linear Expr
	for i, ix := range chain {
		idx := l.lowerExpr(ix.Index)

		if i == 0 {
			linear = idx
			continue
		}

		linear = &Bin{exprBase{l.tab.SignedInt()}, MUL, linear, &IntValue{exprBase{l.tab.SignedInt()}, ix.Length}}
		linear = &Bin{exprBase{l.tab.SignedInt()}, ADD, linear, idx}
	}

	offset := &Bin{exprBase{l.tab.PtrDiffType()}, MUL, linear, &IntValue{exprBase{l.tab.PtrDiffType()}, e.ElementSize}}

	return &Bin{exprBase{l.tab.PointerTo(e.Type())}, ADD, baseAddr, offset}
}

func (l *Lowerer) lowerIndex(node *ast.IndexExpr) Expr {
	addr := l.lowerIndexAddr(node)

	if node.ShouldEvalAddr() {
		return addr
	}

	return l.deref(addr)
}

func (l *Lowerer) lowerMember(node *ast.MemberExpr) Expr {
	var baseAddr Expr
	if node.Arrow {
		baseAddr = l.lowerExpr(node.Base)
	} else {
		baseAddr = l.lvalueAddr(node.Base)
	}

	offset := &IntValue{exprBase{l.tab.PtrDiffType()}, node.Offset}
	addr := &Bin{exprBase{l.tab.PointerTo(node.Type())}, ADD, baseAddr, offset}

	if node.ShouldEvalAddr() {
		return addr
	}

	return l.deref(addr)
}

// lowerUnary handles "&" by simply lowering its operand: the checker
// marks every operand of unary & ShouldEvalAddr, and each expression
// kind's own lowering (lowerIdent/lowerMember/lowerIndex/the "*" case
// just below) already knows how to produce its own address in that
// context — so by the time control reaches here the value is already
// the address. This is also why &*p cancels for free: the "*" case
// below answers its own ShouldEvalAddr by returning the pointer
// unwrapped instead of building a Mem around it.
func (l *Lowerer) lowerUnary(node *ast.UnaryExpr) Expr {
	switch node.Op {
	case "&":
		return l.lowerExpr(node.X)
	case "*":
		x := l.lowerExpr(node.X)
		if node.ShouldEvalAddr() {
			return x
		}

		return l.deref(x)
	case "+":
		return l.lowerExpr(node.X)
	case "-":
		return &Uni{exprBase{node.Type()}, UMINUS, l.lowerExpr(node.X)}
	case "!":
		return &Uni{exprBase{node.Type()}, NOT, l.lowerExpr(node.X)}
	case "~":
		return &Uni{exprBase{node.Type()}, BIT_NOT, l.lowerExpr(node.X)}
	default:
		l.sink.Error(node.Pos(), "internal error: unhandled unary operator %q", node.Op)
		return l.lowerExpr(node.X)
	}
}

func (l *Lowerer) lowerCast(node *ast.CastExpr) Expr {
	x := l.lowerExpr(node.X)

	if !node.IsEffectiveCast {
		return x
	}

	return &Uni{exprBase{node.Target}, CAST, x}
}
