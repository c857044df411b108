package compiler

import (
	"github.com/likenty/tvmc/tvm"
)

// ExpressionCompiler lowers decorated expressions through the stack
// emitter.
type ExpressionCompiler struct {
	pusher *StackPusher
}

// NewExpressionCompiler builds an expression compiler over pusher.
func NewExpressionCompiler(pusher *StackPusher) *ExpressionCompiler {
	return &ExpressionCompiler{pusher: pusher}
}

// CompileNewExpr lowers expr leaving its value on the stack.
func (e *ExpressionCompiler) CompileNewExpr(expr Expression) {
	e.AcceptExpr(expr, true)
}

// AcceptExpr lowers expr; without isResultNeeded the produced values
// are dropped again.
func (e *ExpressionCompiler) AcceptExpr(expr Expression, isResultNeeded bool) {
	p := e.pusher
	saved := p.StackSize()
	retQty := e.compile(expr)
	if !isResultNeeded {
		p.Drop(retQty)
		p.EnsureSize(saved, "expression statement")
	}
}

// compile lowers expr and returns how many values it left.
func (e *ExpressionCompiler) compile(expr Expression) int {
	p := e.pusher
	switch ex := expr.(type) {
	case *IntLiteral:
		p.PushInt(ex.Value)
		return 1

	case *BoolLiteral:
		if ex.Value {
			p.Push(1, "TRUE")
		} else {
			p.Push(1, "FALSE")
		}
		return 1

	case *StringLiteral:
		p.PushString(ex.Value, false)
		return 1

	case *NullLiteral:
		p.PushNull()
		return 1

	case *Identifier:
		if p.GetStack().IsParam(ex.Decl) {
			p.PushS(p.GetStack().Offset(ex.Decl))
		} else {
			p.GetGlobVar(ex.Decl)
		}
		return 1

	case *UnaryOp:
		e.CompileNewExpr(ex.X)
		switch ex.Op {
		case "-":
			p.Push(0, "NEGATE")
		case "!":
			p.Push(0, "NOT")
		case "~":
			p.Push(0, "BITNOT")
		default:
			panic(castError(ex, "unsupported unary operator %q", ex.Op))
		}
		return 1

	case *BinaryOp:
		return e.compileBinary(ex)

	case *Assignment:
		e.CompileNewExpr(ex.RHS)
		if len(ex.Op) == 2 && ex.Op[1] == '=' && ex.Op != "==" {
			// compound form: load, apply, store
			e.CompileNewExpr(ex.LHS)
			p.Exchange(1)
			e.applyArith(ex, string(ex.Op[0]))
		}
		p.HardConvert(ex.LHS.ResultType(), ex.RHS.ResultType())
		decl := ex.LHS.Decl
		if p.GetStack().IsParam(decl) {
			ok := p.TryAssignParam(decl)
			assert(ok, "lost stack binding for %q", decl.Name)
		} else {
			p.SetGlobVar(decl)
		}
		return 0

	case *TernaryExpr:
		e.CompileNewExpr(ex.Cond)
		p.FixStack(-1)

		p.StartContinuation()
		e.CompileNewExpr(ex.True)
		p.FixStack(-1)
		p.EndContinuation()

		p.StartContinuation()
		e.CompileNewExpr(ex.False)
		p.FixStack(-1)
		p.EndContinuation()

		p.PushConditional(1)
		return 1

	case *LocalCall:
		for _, arg := range ex.Args {
			e.CompileNewExpr(arg)
		}
		name := p.Ctx().FunctionInternalName(ex.Callee)
		p.PushCallOrCallRef(name, ex.Callee, nil)
		return len(ex.Callee.RetParams)
	}
	panic(castError(expr, "unsupported expression"))
}

func (e *ExpressionCompiler) compileBinary(ex *BinaryOp) int {
	p := e.pusher
	switch ex.Op {
	case "&&", "||":
		e.CompileNewExpr(ex.L)
		p.PushS(0)
		p.StartContinuation()
		p.Drop(1)
		e.CompileNewExpr(ex.R)
		p.FixStack(-1)
		kind := tvm.LogAnd
		if ex.Op == "||" {
			kind = tvm.LogOr
		}
		p.EndLogCircuit(ex.R.Pure(), kind)
		return 1
	}

	e.CompileNewExpr(ex.L)
	e.CompileNewExpr(ex.R)
	e.applyArith(ex, ex.Op)
	return 1
}

// applyArith pops two operands and applies op.
func (e *ExpressionCompiler) applyArith(at Positioned, op string) {
	p := e.pusher
	cmds := map[string]string{
		"+":  "ADD",
		"-":  "SUB",
		"*":  "MUL",
		"/":  "DIV",
		"%":  "MOD",
		"&":  "AND",
		"|":  "OR",
		"^":  "XOR",
		"<<": "LSHIFT",
		">>": "RSHIFT",
		"==": "EQUAL",
		"!=": "NEQ",
		"<":  "LESS",
		"<=": "LEQ",
		">":  "GREATER",
		">=": "GEQ",
	}
	cmd, ok := cmds[op]
	if !ok {
		panic(castError(at, "unsupported binary operator %q", op))
	}
	p.Push(-2+1, cmd)
}
