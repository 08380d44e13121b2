// Package mir is the IR-lowering pass: it turns a checked ast.File into
// a flat, label-addressed intermediate representation where every
// structured control-flow construct (if/while/do-while/for/switch) has
// been replaced by labeled jumps, every side effect that source syntax
// allowed mid-expression has been hoisted into its own statement, and
// every address/pointer computation (array indexing, member access,
// pointer arithmetic) has been made explicit via Addr/Mem nodes.
//
// Grounded on the teacher's mir package (mir.go's sealed Instruction/
// Type interfaces via unexported marker methods, mir/lower.go's
// Lowerer driver shape), generalized from a basic-block-oriented CFG
// (BasicBlock/Br/CondBr) to the flat LabelStmt/Jump/BranchIf statement
// list this pass's target language calls for — the one place this
// transform changes the teacher's actual data structure, not just its
// domain, since the spec's control-flow shape is fundamentally
// label-based rather than block-based.
package mir

import (
	"fmt"
	"strings"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/types"
)

// Label is an integer-backed jump target identity. It carries no
// source-level name; user labels and compiler-generated branch targets
// are allocated from the same counter.
type Label int

func (l Label) String() string { return fmt.Sprintf("L%d", int(l)) }

// Op is the closed set of IR operators. Names match the source
// operators they lower from, except for the three cast variants: CAST
// is used for every effective cast citron's type system produces
// (there being no unsigned integer kind to distinguish S_CAST/U_CAST
// by), kept in the enum for closed-set fidelity with languages that do
// have one.
type Op int

const (
	ADD Op = iota
	SUB
	MUL
	DIV
	MOD
	AND
	OR
	XOR
	LSHIFT
	RSHIFT
	ARSHIFT
	EQ
	NEQ
	LT
	LTEQ
	GT
	GTEQ
	BIT_NOT
	NOT
	UMINUS
	CAST
	S_CAST
	U_CAST
)

var opNames = map[Op]string{
	ADD: "ADD", SUB: "SUB", MUL: "MUL", DIV: "DIV", MOD: "MOD",
	AND: "AND", OR: "OR", XOR: "XOR", LSHIFT: "LSHIFT", RSHIFT: "RSHIFT", ARSHIFT: "ARSHIFT",
	EQ: "EQ", NEQ: "NEQ", LT: "LT", LTEQ: "LTEQ", GT: "GT", GTEQ: "GTEQ",
	BIT_NOT: "BIT_NOT", NOT: "NOT", UMINUS: "UMINUS", CAST: "CAST", S_CAST: "S_CAST", U_CAST: "U_CAST",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}

	return fmt.Sprintf("Op(%d)", int(o))
}

// Expr is a pure IR expression: it never has a side effect, and it
// never appears as a statement in its own right — any expression whose
// source form had a side effect was split into an Assign/ExprStmt plus
// a pure reference by the lowering pass.
type Expr interface {
	fmt.Stringer
	Type() types.Type
	isExpr()
}

type exprBase struct{ Typ types.Type }

func (e exprBase) Type() types.Type { return e.Typ }
func (e exprBase) isExpr()          {}

// IntValue is a constant integer (also used for lowered sizeof results
// and scale-factor constants synthesized during pointer-arithmetic
// expansion).
type IntValue struct {
	exprBase
	N int64
}

func (v *IntValue) String() string { return fmt.Sprintf("%d", v.N) }

// StringValue references an entry in the module's string constant pool
// by index (the same index ast.StringLit.PoolOffset assigned).
type StringValue struct {
	exprBase
	Entry int
}

func (v *StringValue) String() string { return fmt.Sprintf("str#%d", v.Entry) }

// Var is a reference to a variable, parameter, or (address-only)
// function entity.
type Var struct {
	exprBase
	Entity *ast.Entity
}

func (v *Var) String() string { return v.Entity.Name }

// Bin is a binary operation over two pure operands.
type Bin struct {
	exprBase
	Op    Op
	Left  Expr
	Right Expr
}

func (b *Bin) String() string { return fmt.Sprintf("%s(%s, %s)", b.Op, b.Left, b.Right) }

// Uni is a unary operation over one pure operand (negation, logical/
// bitwise not, and effective casts).
type Uni struct {
	exprBase
	Op Op
	X  Expr
}

func (u *Uni) String() string { return fmt.Sprintf("%s(%s)", u.Op, u.X) }

// Mem loads the value stored at Addr. Addr is any pure expression
// whose value is a memory address — not necessarily an *Addr node;
// array-index and member-access lowering build the address via
// ordinary pointer arithmetic (Bin) and wrap the result in Mem
// directly.
type Mem struct {
	exprBase
	Addr Expr
}

func (m *Mem) String() string { return fmt.Sprintf("Mem(%s)", m.Addr) }

// Addr takes the address of Inner. Produced only by the addressOf
// algebra (unary &, lvalue-context identifier/member references that
// decay to an address) — never wraps a Mem (that case cancels to the
// Mem's own Addr instead; see Lowerer.addressOf).
type Addr struct {
	exprBase
	Inner Expr
}

func (a *Addr) String() string { return fmt.Sprintf("Addr(%s)", a.Inner) }

// Call is a function call. Args preserve the call's natural positional
// order even though the lowering pass evaluates them right-to-left.
type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}

	return fmt.Sprintf("Call(%s, [%s])", c.Callee, strings.Join(args, ", "))
}

// Stmt is one instruction in a function's flat, label-addressed body.
type Stmt interface {
	fmt.Stringer
	Pos() ast.Position
	isStmt()
}

type stmtBase struct{ Position ast.Position }

func (s stmtBase) Pos() ast.Position { return s.Position }
func (s stmtBase) isStmt()           {}

// Assign stores Rhs into the location Lhs names. Lhs is always a Var
// referring to a loadable entity or a Mem — never an Addr, a constant,
// or any other expression shape.
type Assign struct {
	stmtBase
	Lhs Expr
	Rhs Expr
}

func (a *Assign) String() string { return fmt.Sprintf("%s = %s", a.Lhs, a.Rhs) }

// ExprStmt evaluates X for its side effects (almost always a Call) and
// discards the result.
type ExprStmt struct {
	stmtBase
	X Expr
}

func (e *ExprStmt) String() string { return e.X.String() }

// LabelStmt marks a jump target. Every Label that appears as a Jump/
// BranchIf/Switch target must be defined by exactly one LabelStmt in
// the same function.
type LabelStmt struct {
	stmtBase
	Label Label
}

func (l *LabelStmt) String() string { return l.Label.String() + ":" }

// Jump is an unconditional branch.
type Jump struct {
	stmtBase
	Target Label
}

func (j *Jump) String() string { return "jump " + j.Target.String() }

// BranchIf jumps to Then when Cond is non-zero, Else otherwise.
type BranchIf struct {
	stmtBase
	Cond Expr
	Then Label
	Else Label
}

func (b *BranchIf) String() string {
	return fmt.Sprintf("branch %s -> %s, %s", b.Cond, b.Then, b.Else)
}

// SwitchCase is one constant-value arm of a Switch.
type SwitchCase struct {
	Value int64
	Label Label
}

// Switch dispatches on Cond's value to the matching case label, or
// Default if none match. End is the label immediately following the
// whole switch (every case body falls through to the next case's
// label unless it ends in its own Jump/Return — citron does not
// synthesize an implicit break between cases).
type Switch struct {
	stmtBase
	Cond    Expr
	Cases   []SwitchCase
	Default Label
	End     Label
}

func (s *Switch) String() string {
	parts := make([]string, len(s.Cases))
	for i, c := range s.Cases {
		parts[i] = fmt.Sprintf("%d:%s", c.Value, c.Label)
	}

	return fmt.Sprintf("switch %s {%s default:%s}", s.Cond, strings.Join(parts, ", "), s.Default)
}

// Return exits the function, yielding Value (nil for a void return).
type Return struct {
	stmtBase
	Value Expr
}

func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}

	return "return " + r.Value.String()
}

// Global is a module-scope (or function-static) variable, carrying its
// pre-folded initializer as a pure IR expression rather than an
// emitted statement.
type Global struct {
	Entity *ast.Entity
	Init   Expr // nil if uninitialized
}

// Function is one lowered function body: a flat statement list plus
// the function-static locals declared inside it. Extern is true for a
// forward declaration (`int f(void);`) — Body is empty and codegen
// must emit a declaration rather than a definition.
type Function struct {
	Name         string
	Params       []*ast.Entity
	Return       types.Type
	Body         []Stmt
	StaticLocals []*Global
	Extern       bool
}

// Module is a whole translation unit after lowering.
type Module struct {
	Globals   []*Global
	Functions []*Function
	Strings   []string // the checker's string constant pool, PoolOffset-indexed
}
