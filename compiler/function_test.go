package compiler

import (
	"fmt"
	"strings"
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likenty/tvmc/tvm"
)

// buildContract wires functions into a minimal contract tree.
func buildContract(vars []*VariableDeclaration, fns ...*FunctionDefinition) *ContractDefinition {
	c := &ContractDefinition{Name: "C", StateVariables: vars, Functions: fns}
	for _, f := range fns {
		f.Contract = c
	}
	return c
}

func lowerMacro(t *testing.T, contract *ContractDefinition, f *FunctionDefinition) (*tvm.Function, string) {
	t.Helper()
	ctx := testContext(t, contract)
	ctx.SetCurrentFunction(f)
	p := NewStackPusher(ctx)
	fn := GenerateMacro(p, f, "")
	var sb strings.Builder
	tvm.NewPrinter(&sb).Print(fn)
	return fn, sb.String()
}

// Scenario: f(uint a) { return a + 1; } — a single tail return in a
// jmp position needs no return flag.
func TestLowerSimpleTailReturn(t *testing.T) {
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "f",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{a},
		RetParams:  []*VariableDeclaration{{Name: "", Type: Uint(256)}},
	}
	f.Body = &Block{Statements: []Statement{
		&ReturnStatement{
			Expr:     &BinaryOp{Op: "+", L: Ref(a), R: Num(1), T: Uint(256)},
			Function: f,
		},
	}}
	contract := buildContract(nil, f)

	fn, out := lowerMacro(t, contract, f)
	tassert.Equal(t, 1, fn.Take())
	tassert.Equal(t, 1, fn.Ret())
	tassert.Contains(t, out, "PUSHINT 1\nADD\n")
	tassert.NotContains(t, out, "decl return flag")
	tassert.NotContains(t, out, "IFRET")
}

// Scenario: g(uint a) { if (a > 0) { return; } a = 1; } — a single
// branch that returns while the join continues needs the flag check.
func TestLowerIfReturnWithJoin(t *testing.T) {
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	g := &FunctionDefinition{
		Name:       "g",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{a},
	}
	g.Body = &Block{Statements: []Statement{
		&IfStatement{
			Cond: &BinaryOp{Op: ">", L: Ref(a), R: Num(0), T: Bool},
			True: &Block{Statements: []Statement{
				&ReturnStatement{Function: g},
			}},
		},
		&ExpressionStatement{Expr: &Assignment{Op: "=", LHS: Ref(a), RHS: Num(1)}},
	}}
	contract := buildContract(nil, g)

	_, out := lowerMacro(t, contract, g)
	tassert.Contains(t, out, "FALSE ; decl return flag")
	tassert.Contains(t, out, fmt.Sprintf("EQINT %d\nIFRET", ReturnFlag))
	tassert.Contains(t, out, "IF\n")
}

// Scenario: both branches always return, so the lowering uses the
// jmp form and skips the post-join flag check.
func TestLowerIfElseBothReturnUsesJmp(t *testing.T) {
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	g := &FunctionDefinition{
		Name:       "g2",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{a},
		RetParams:  []*VariableDeclaration{{Name: "", Type: Uint(256)}},
	}
	g.Body = &Block{Statements: []Statement{
		&IfStatement{
			Cond:  &BinaryOp{Op: ">", L: Ref(a), R: Num(0), T: Bool},
			True:  &Block{Statements: []Statement{&ReturnStatement{Expr: Num(1), Function: g}}},
			False: &Block{Statements: []Statement{&ReturnStatement{Expr: Num(2), Function: g}}},
		},
	}}
	contract := buildContract(nil, g)

	_, out := lowerMacro(t, contract, g)
	tassert.Contains(t, out, "CONDSEL\nJMPX")
	tassert.NotContains(t, out, "decl return flag")
}

// Scenario: emit E(42) — a single uint256 parameter is pushed and an
// external-out message carries the event's function id.
func TestLowerEmitEvent(t *testing.T) {
	event := &EventDefinition{
		Name:   "E",
		Params: []*VariableDeclaration{{Name: "v", Type: Uint(256)}},
	}
	h := &FunctionDefinition{
		Name:       "h",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
	}
	h.Body = &Block{Statements: []Statement{
		&EmitStatement{Event: event, Args: []Expression{Num(42)}},
	}}
	contract := buildContract(nil, h)
	contract.Events = []*EventDefinition{event}

	_, out := lowerMacro(t, contract, h)
	tassert.Contains(t, out, "PUSHINT 42")
	tassert.Contains(t, out, fmt.Sprintf("PUSHINT %d", CalculateEventID(event)))
	tassert.Contains(t, out, "STUR 32")
	tassert.Contains(t, out, "SENDRAWMSG")
	// external-out header tag
	tassert.Contains(t, out, "ENDC")
}

// Scenario: for-each over mapping(uint => uint) — the iteration state
// is [dict, privKey, pubKey, value] and the loop expression advances
// with the next-key primitive parameterised by the key width.
func TestLowerForEachMapping(t *testing.T) {
	m := &VariableDeclaration{
		Name: "m",
		Type: &MappingType{Key: Uint(256), Value: Uint(256)},
	}
	k := &VariableDeclaration{Name: "k", Type: Uint(256)}
	v := &VariableDeclaration{Name: "v", Type: Uint(256)}
	acc := &VariableDeclaration{Name: "acc", Type: Uint(256)}

	loop := &FunctionDefinition{
		Name:       "sum",
		Visibility: VisibilityPublic,
		Mutability: MutabilityView,
	}
	loop.Body = &Block{Statements: []Statement{
		&VarDeclStatement{Decls: []*VariableDeclaration{acc}},
		&ForEachStatement{
			Range: Ref(m),
			Decl:  &VarDeclStatement{Decls: []*VariableDeclaration{k, v}},
			Body: &Block{Statements: []Statement{
				&ExpressionStatement{Expr: &Assignment{Op: "+=", LHS: Ref(acc), RHS: Ref(v)}},
			}},
		},
	}}
	contract := buildContract([]*VariableDeclaration{m}, loop)

	_, out := lowerMacro(t, contract, loop)
	tassert.Contains(t, out, "DICTUMIN")
	tassert.Contains(t, out, "DICTUGETNEXT")
	// nbits = key width for the next-key primitive
	tassert.Contains(t, out, "PUSHINT 256")
	tassert.Contains(t, out, "WHILE")
	tassert.Contains(t, out, "ISNULL")
}

func TestLowerForEachBytes(t *testing.T) {
	bytesT := &ArrayType{Base: Uint(8), ByteArray: true}
	data := &VariableDeclaration{Name: "data", Type: bytesT}
	b := &VariableDeclaration{Name: "b", Type: Uint(8)}

	loop := &FunctionDefinition{
		Name:       "scan",
		Visibility: VisibilityPublic,
		Mutability: MutabilityView,
		Params:     []*VariableDeclaration{data},
	}
	loop.Body = &Block{Statements: []Statement{
		&ForEachStatement{
			Range: Ref(data),
			Decl:  &VarDeclStatement{Decls: []*VariableDeclaration{b}},
			Body:  &Block{},
		},
	}}
	contract := buildContract(nil, loop)

	_, out := lowerMacro(t, contract, loop)
	tassert.Contains(t, out, "CTOS")
	tassert.Contains(t, out, "SEMPTY")
	tassert.Contains(t, out, "LDUQ 8")
	tassert.Contains(t, out, "LDU 8")
}

func TestLowerForEachArray(t *testing.T) {
	arrT := &ArrayType{Base: Uint(64)}
	arr := &VariableDeclaration{Name: "arr", Type: arrT}
	x := &VariableDeclaration{Name: "x", Type: Uint(64)}

	loop := &FunctionDefinition{
		Name:       "walk",
		Visibility: VisibilityPublic,
		Mutability: MutabilityView,
		Params:     []*VariableDeclaration{arr},
	}
	loop.Body = &Block{Statements: []Statement{
		&ForEachStatement{
			Range: Ref(arr),
			Decl:  &VarDeclStatement{Decls: []*VariableDeclaration{x}},
			Body:  &Block{},
		},
	}}
	contract := buildContract(nil, loop)

	_, out := lowerMacro(t, contract, loop)
	// {length, dict} pair is unpacked, the index starts at zero and
	// is advanced with INC
	tassert.Contains(t, out, "INDEX 1")
	tassert.Contains(t, out, "PUSHINT 0")
	tassert.Contains(t, out, "INC")
	tassert.Contains(t, out, "ISNULL")
}

func TestLowerWhileLoop(t *testing.T) {
	i := &VariableDeclaration{Name: "i", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "spin",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{i},
	}
	f.Body = &Block{Statements: []Statement{
		&WhileStatement{
			Kind: LoopWhile,
			Cond: &BinaryOp{Op: ">", L: Ref(i), R: Num(0), T: Bool},
			Body: &Block{Statements: []Statement{
				&ExpressionStatement{Expr: &Assignment{Op: "-=", LHS: Ref(i), RHS: Num(1)}},
			}},
		},
	}}
	contract := buildContract(nil, f)

	_, out := lowerMacro(t, contract, f)
	tassert.Contains(t, out, "WHILE")
	tassert.Contains(t, out, "GREATER")
}

func TestLowerRepeatRejectsBreak(t *testing.T) {
	n := &VariableDeclaration{Name: "n", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "r",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{n},
	}
	f.Body = &Block{Statements: []Statement{
		&WhileStatement{
			Kind: LoopRepeat,
			Cond: Ref(n),
			Body: &Block{Statements: []Statement{&BreakStatement{}}},
		},
	}}
	contract := buildContract(nil, f)
	ctx := testContext(t, contract)
	ctx.SetCurrentFunction(f)
	p := NewStackPusher(ctx)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ce, ok := r.(*CompileError)
		require.True(t, ok)
		tassert.Contains(t, ce.Msg, "not supported")
	}()
	GenerateMacro(p, f, "")
}

func TestLowerBreakAndContinueFlags(t *testing.T) {
	i := &VariableDeclaration{Name: "i", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "loopy",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{i},
	}
	f.Body = &Block{Statements: []Statement{
		&WhileStatement{
			Kind: LoopWhile,
			Cond: &BinaryOp{Op: ">", L: Ref(i), R: Num(0), T: Bool},
			Body: &Block{Statements: []Statement{
				&IfStatement{
					Cond: &BinaryOp{Op: "==", L: Ref(i), R: Num(5), T: Bool},
					True: &Block{Statements: []Statement{&BreakStatement{}}},
				},
				&IfStatement{
					Cond: &BinaryOp{Op: "==", L: Ref(i), R: Num(7), T: Bool},
					True: &Block{Statements: []Statement{&ContinueStatement{}}},
				},
			}},
		},
	}}
	contract := buildContract(nil, f)

	_, out := lowerMacro(t, contract, f)
	tassert.Contains(t, out, "FALSE ; decl return flag")
	tassert.Contains(t, out, fmt.Sprintf("PUSHINT %d", BreakFlag))
	tassert.Contains(t, out, fmt.Sprintf("PUSHINT %d", ContinueFlag))
	// the condition checks for a pending break/return first
	tassert.Contains(t, out, "LESSINT 2")
}

func TestLowerModifierChain(t *testing.T) {
	guard := &ModifierDefinition{
		Name: "guard",
		Body: &Block{Statements: []Statement{
			&ExpressionStatement{Expr: &Assignment{
				Op: "=",
				LHS: Ref(&VariableDeclaration{Name: "flag", Type: Uint(1)}),
				RHS: Num(1),
			}},
			&PlaceholderStatement{},
		}},
	}
	// rebind the modifier body's state variable
	flag := &VariableDeclaration{Name: "flag", Type: Uint(1)}
	guard.Body.Statements[0] = &ExpressionStatement{Expr: &Assignment{Op: "=", LHS: Ref(flag), RHS: Num(1)}}

	f := &FunctionDefinition{
		Name:       "guarded",
		Visibility: VisibilityPublic,
		Mutability: MutabilityNonPayable,
		Modifiers:  []*ModifierInvocation{{Def: guard}},
	}
	f.Body = &Block{Statements: []Statement{
		&ExpressionStatement{Expr: &Assignment{Op: "=", LHS: Ref(flag), RHS: Num(2)}},
	}}
	contract := buildContract([]*VariableDeclaration{flag}, f)

	_, out := lowerMacro(t, contract, f)
	first := strings.Index(out, "PUSHINT 1")
	second := strings.Index(out, "PUSHINT 2")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	tassert.Less(t, first, second, "modifier body wraps the function body")
}

func TestLowerTernary(t *testing.T) {
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "pick",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{a},
		RetParams:  []*VariableDeclaration{{Name: "", Type: Uint(256)}},
	}
	f.Body = &Block{Statements: []Statement{
		&ReturnStatement{
			Expr: &TernaryExpr{
				Cond:  &BinaryOp{Op: ">", L: Ref(a), R: Num(0), T: Bool},
				True:  Num(1),
				False: Num(2),
				T:     Uint(256),
			},
			Function: f,
		},
	}}
	contract := buildContract(nil, f)

	_, out := lowerMacro(t, contract, f)
	tassert.Contains(t, out, "IFELSE")
}

func TestLowerVarDeclTupleDiscard(t *testing.T) {
	callee := &FunctionDefinition{
		Name:       "pair",
		Visibility: VisibilityPrivate,
		Mutability: MutabilityPure,
		RetParams: []*VariableDeclaration{
			{Name: "", Type: Uint(256)},
			{Name: "", Type: Uint(256)},
		},
	}
	callee.Body = &Block{Statements: []Statement{
		&ReturnStatement{Function: callee},
	}}

	x := &VariableDeclaration{Name: "x", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "use",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
	}
	f.Body = &Block{Statements: []Statement{
		&VarDeclStatement{
			Decls: []*VariableDeclaration{x, nil},
			Value: &LocalCall{Callee: callee},
		},
	}}
	contract := buildContract(nil, f, callee)

	_, out := lowerMacro(t, contract, f)
	tassert.Contains(t, out, "CALL $pair_internal_macro$")
	tassert.Contains(t, out, "DROP")
}

func TestStackBalanceAcrossLowerings(t *testing.T) {
	// for every lowered macro the emitter must come back to the
	// declared depth; GenerateMacro panics internally otherwise, so
	// lowering a mixed function successfully is the property itself
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	b := &VariableDeclaration{Name: "b", Type: Uint(256)}
	f := &FunctionDefinition{
		Name:       "mix",
		Visibility: VisibilityPublic,
		Mutability: MutabilityPure,
		Params:     []*VariableDeclaration{a, b},
		RetParams:  []*VariableDeclaration{{Name: "", Type: Uint(256)}},
	}
	tmp := &VariableDeclaration{Name: "tmp", Type: Uint(256)}
	f.Body = &Block{Statements: []Statement{
		&VarDeclStatement{
			Decls: []*VariableDeclaration{tmp},
			Value: &BinaryOp{Op: "*", L: Ref(a), R: Ref(b), T: Uint(256)},
		},
		&IfStatement{
			Cond: &BinaryOp{Op: ">", L: Ref(tmp), R: Num(10), T: Bool},
			True: &Block{Statements: []Statement{
				&ReturnStatement{Expr: Ref(tmp), Function: f},
			}},
		},
		&ReturnStatement{
			Expr:     &BinaryOp{Op: "+", L: Ref(tmp), R: Num(1), T: Uint(256)},
			Function: f,
		},
	}}
	contract := buildContract(nil, f)

	fn, _ := lowerMacro(t, contract, f)
	tassert.Equal(t, 2, fn.Take())
	tassert.Equal(t, 1, fn.Ret())
}
