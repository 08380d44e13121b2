package mir

import "fmt"

// Validate checks the universal invariants every lowered function must
// satisfy, independent of which source construct produced it: every
// label is defined exactly once, every jump target is defined, Assign
// never targets anything but a loadable Var or a Mem, and Addr/Mem
// never wrap each other directly (that cancellation always happens
// during lowering itself — see Lowerer.addressOf).
//
// Grounded on the teacher's mir/lower_test.go verification helpers,
// generalized into a standalone post-lowering pass usable from tests
// and from callers that want to sanity-check hand-built IR.
func Validate(fn *Function) []error {
	var errs []error

	defined := map[Label]int{}
	referenced := map[Label]bool{}

	for _, s := range fn.Body {
		switch st := s.(type) {
		case *LabelStmt:
			defined[st.Label]++
		case *Jump:
			referenced[st.Target] = true
		case *BranchIf:
			referenced[st.Then] = true
			referenced[st.Else] = true
		case *Switch:
			for _, c := range st.Cases {
				referenced[c.Label] = true
			}
			referenced[st.Default] = true
			referenced[st.End] = true
		}
	}

	for lbl, n := range defined {
		if n > 1 {
			errs = append(errs, fmt.Errorf("function %s: label %s defined %d times", fn.Name, lbl, n))
		}
	}

	for lbl := range referenced {
		if defined[lbl] == 0 {
			errs = append(errs, fmt.Errorf("function %s: jump target %s is never defined", fn.Name, lbl))
		}
	}

	for _, s := range fn.Body {
		if a, ok := s.(*Assign); ok {
			if err := validateAssignTarget(fn.Name, a); err != nil {
				errs = append(errs, err)
			}
		}

		errs = append(errs, validateExprTree(fn.Name, stmtExpr(s))...)
	}

	return errs
}

func validateAssignTarget(fnName string, a *Assign) error {
	switch lhs := a.Lhs.(type) {
	case *Mem:
		return nil
	case *Var:
		if lhs.Entity.CannotLoad {
			return fmt.Errorf("function %s: assignment target %s is not loadable", fnName, lhs)
		}
		return nil
	default:
		return fmt.Errorf("function %s: assignment target %s is neither a Var nor a Mem", fnName, a.Lhs)
	}
}

// stmtExpr collects every top-level Expr a statement directly carries,
// so validateExprTree can walk each for the Addr/Mem layering
// invariant (Assign's two sides, ExprStmt's value, a branch's
// condition or a return's value).
func stmtExpr(s Stmt) []Expr {
	switch st := s.(type) {
	case *Assign:
		return []Expr{st.Lhs, st.Rhs}
	case *ExprStmt:
		return []Expr{st.X}
	case *BranchIf:
		return []Expr{st.Cond}
	case *Switch:
		return []Expr{st.Cond}
	case *Return:
		if st.Value == nil {
			return nil
		}
		return []Expr{st.Value}
	default:
		return nil
	}
}

func validateExprTree(fnName string, roots []Expr) []error {
	var errs []error

	var walk func(e Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case nil:
			return
		case *Mem:
			if _, ok := v.Addr.(*Addr); ok {
				errs = append(errs, fmt.Errorf("function %s: Mem directly wraps an Addr in %s", fnName, v))
			}
			walk(v.Addr)
		case *Addr:
			if _, ok := v.Inner.(*Mem); ok {
				errs = append(errs, fmt.Errorf("function %s: Addr directly wraps a Mem in %s", fnName, v))
			}
			walk(v.Inner)
		case *Bin:
			walk(v.Left)
			walk(v.Right)
		case *Uni:
			walk(v.X)
		case *Call:
			walk(v.Callee)
			for _, a := range v.Args {
				walk(a)
			}
		}
	}

	for _, e := range roots {
		walk(e)
	}

	return errs
}
