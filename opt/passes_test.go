package opt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likenty/tvmc/tvm"
)

func block(nodes ...tvm.Node) *tvm.CodeBlock {
	return tvm.NewCodeBlock(tvm.BlockInline, nodes)
}

func printBlock(t *testing.T, b *tvm.CodeBlock) string {
	t.Helper()
	var sb strings.Builder
	tvm.NewPrinter(&sb).Print(b)
	return sb.String()
}

func TestLocSquasherAdjacent(t *testing.T) {
	b := block(
		&tvm.Loc{File: "a.sol", Line: 1},
		&tvm.Loc{File: "a.sol", Line: 2},
		&tvm.Loc{File: "a.sol", Line: 3},
		tvm.Gen("ADD"),
	)
	LocSquasher{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 2)
	loc, ok := insts[0].(*tvm.Loc)
	require.True(t, ok)
	assert.Equal(t, 3, loc.Line)
}

func TestLocSquasherDeduplicates(t *testing.T) {
	b := block(
		&tvm.Loc{File: "a.sol", Line: 7},
		tvm.Gen("ADD"),
		&tvm.Loc{File: "a.sol", Line: 7},
		tvm.Gen("SUB"),
		&tvm.Loc{File: "a.sol", Line: 9},
		tvm.Gen("MUL"),
	)
	LocSquasher{}.Run(b)
	locs := 0
	for _, n := range b.Instructions() {
		if tvm.IsLoc(n) {
			locs++
		}
	}
	assert.Equal(t, 2, locs)
	assert.Len(t, b.Instructions(), 5)
}

func TestDeleterAfterRet(t *testing.T) {
	ret := &tvm.ReturnOrBreakOrCont{TakeQty: 0, Body: block(tvm.MakeRET())}
	b := block(
		tvm.Gen("ADD"),
		ret,
		tvm.Gen("SUB"),
		&tvm.Loc{File: "a.sol", Line: 3},
		tvm.Gen("MUL"),
	)
	DeleterAfterRet{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 3)
	assert.Same(t, ret, insts[1])
	assert.True(t, tvm.IsLoc(insts[2]))
}

func TestDeleterCallXInlinesSingleSubProgram(t *testing.T) {
	inner := block(tvm.Gen("INC"), tvm.Gen("DEC"))
	sub := tvm.NewSubProgram(0, 0, tvm.CALLX, inner)
	f := tvm.NewFunction(0, 0, "m", tvm.Macro, block(&tvm.Loc{File: "a", Line: 1}, sub))
	c := &tvm.Contract{Functions: []*tvm.Function{f}}

	DeleterCallX{}.Run(c)

	insts := f.Block.Instructions()
	require.Len(t, insts, 3)
	assert.True(t, tvm.IsLoc(insts[0]))
	assert.Equal(t, "INC", insts[1].(*tvm.GenOp).Opcode)
	assert.Equal(t, "DEC", insts[2].(*tvm.GenOp).Opcode)
}

func TestDeleterCallXKeepsMultiInstructionBody(t *testing.T) {
	sub := tvm.NewSubProgram(0, 0, tvm.CALLX, block(tvm.Gen("INC")))
	body := block(tvm.Gen("ACCEPT"), sub)
	f := tvm.NewFunction(0, 0, "m", tvm.Macro, body)
	DeleterCallX{}.Run(&tvm.Contract{Functions: []*tvm.Function{f}})
	assert.Len(t, f.Block.Instructions(), 2)
}

// The canonical expansion: DUP; PUSHCONT { DROP; <pure> } IF  =>  <pure'>; AND
func TestLogCircuitExpanderAnd(t *testing.T) {
	circuit := &tvm.LogCircuit{
		CanExpand: true,
		Kind:      tvm.LogAnd,
		Body:      block(tvm.MakeDROP(1), tvm.Gen("PUSHINT 5")),
	}
	b := block(tvm.Gen("PUSHINT 1"), tvm.MakePUSH(0), circuit)
	LogCircuitExpander{}.Run(b)

	out := printBlock(t, b)
	assert.Equal(t, "PUSHINT 1\nPUSHINT 5\nAND\n", out)
}

func TestLogCircuitExpanderKeepsImpureBody(t *testing.T) {
	circuit := &tvm.LogCircuit{
		CanExpand: true,
		Kind:      tvm.LogOr,
		Body:      block(tvm.MakeDROP(1), tvm.Gen("CTOS")),
	}
	b := block(tvm.Gen("TRUE"), tvm.MakePUSH(0), circuit)
	LogCircuitExpander{}.Run(b)

	insts := b.Instructions()
	require.Len(t, insts, 3)
	_, stillCircuit := insts[2].(*tvm.LogCircuit)
	assert.True(t, stillCircuit)
}

func TestLogCircuitExpanderStackEffect(t *testing.T) {
	// the body reads under the dropped operand; with the operand now
	// kept on the stack the index is renumbered upward
	circuit := &tvm.LogCircuit{
		CanExpand: true,
		Kind:      tvm.LogAnd,
		Body:      block(tvm.MakeDROP(1), tvm.MakePUSH(0)),
	}
	b := block(tvm.Gen("PUSHINT 3"), tvm.MakePUSH(0), circuit)
	LogCircuitExpander{}.Run(b)

	out := printBlock(t, b)
	assert.Equal(t, "PUSHINT 3\nOVER\nAND\n", out)
}

func TestSimulatorProvesDeadSlot(t *testing.T) {
	// window: [x y] with y tracked (segment 1 at the bottom of the
	// window); code drops both -> segment dead
	sim := NewSimulator([]tvm.Node{tvm.MakeDROP(2)}, 2, 1)
	assert.True(t, sim.Success())
	require.Len(t, sim.Commands(), 1)
	n, ok := tvm.IsDrop(sim.Commands()[0])
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestSimulatorFailsOnRead(t *testing.T) {
	// PUSH S1 reads the tracked slot
	sim := NewSimulator([]tvm.Node{tvm.MakePUSH(1), tvm.MakeDROP(3)}, 2, 1)
	assert.False(t, sim.Success())
}

func TestSimulatorRewritesDeeperIndices(t *testing.T) {
	// window of 2 over a deeper stack: PUSH S4 reaches below the
	// segment and must shift when the segment dies
	sim := NewSimulator([]tvm.Node{tvm.MakePUSH(4), tvm.MakeDROP(4)}, 2, 1)
	require.True(t, sim.Success())
	cmds := sim.Commands()
	require.Len(t, cmds, 2)
	push := cmds[0].(*tvm.StackOp)
	assert.Equal(t, 3, push.I)
}

func TestSimulatorWasSet(t *testing.T) {
	// after PUSHINT 0 the tracked slot is s2; POP S2 overwrites it
	// without reading it
	sim := NewSimulator([]tvm.Node{tvm.Gen("PUSHINT 0"), tvm.MakePOP(2)}, 2, 1)
	assert.True(t, sim.WasSet())
}

func TestSimulatorStopsAtReturn(t *testing.T) {
	sim := NewSimulator([]tvm.Node{tvm.MakeDROP(1), tvm.MakeRET()}, 2, 1)
	// only the scratch value above the segment is dropped; RET ends
	// the block with the segment unread
	assert.True(t, sim.Success())
}

func TestSimulatorConservativeOnControlFlow(t *testing.T) {
	ifNode := &tvm.IfElse{Kind: tvm.IF, TrueBody: tvm.NewCodeBlock(tvm.PUSHCONT, nil)}
	sim := NewSimulator([]tvm.Node{ifNode}, 2, 1)
	assert.False(t, sim.Success())
}

func TestStackOptimizerDropsDeadPush(t *testing.T) {
	// PUSHINT 7 is never observed: the next op drops it
	body := block(
		tvm.Gen("PUSHINT 7"),
		tvm.MakeDROP(1),
		tvm.Gen("ACCEPT"),
	)
	f := tvm.NewFunction(0, 0, "m", tvm.Macro, body)
	(&StackOptimizer{}).Run(&tvm.Contract{Functions: []*tvm.Function{f}})

	out := printBlock(t, f.Block)
	assert.Equal(t, "ACCEPT\n", out)
}

func TestStackOptimizerKeepsLiveValues(t *testing.T) {
	body := block(
		tvm.Gen("PUSHINT 7"),
		tvm.Gen("INC"),
		tvm.Gen("ACCEPT"),
	)
	f := tvm.NewFunction(0, 1, "m", tvm.Macro, body)
	before := printBlock(t, f.Block)
	(&StackOptimizer{}).Run(&tvm.Contract{Functions: []*tvm.Function{f}})
	assert.Equal(t, before, printBlock(t, f.Block))
}

func TestPeepholeDropFusion(t *testing.T) {
	b := block(tvm.MakeDROP(2), tvm.MakeDROP(3))
	PeepholeOptimizer{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 1)
	n, _ := tvm.IsDrop(insts[0])
	assert.Equal(t, 5, n)
}

func TestPeepholePushDrop(t *testing.T) {
	b := block(tvm.Gen("PUSHINT 1"), tvm.MakeDROP(1))
	PeepholeOptimizer{}.Run(b)
	assert.Empty(t, b.Instructions())

	b = block(tvm.MakePUSH(3), tvm.MakeDROP(2))
	PeepholeOptimizer{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 1)
	n, _ := tvm.IsDrop(insts[0])
	assert.Equal(t, 1, n)
}

func TestPeepholeSwapCancellation(t *testing.T) {
	b := block(tvm.MakeBLKSWAP(1, 1), tvm.MakeXCHS(1))
	PeepholeOptimizer{}.Run(b)
	assert.Empty(t, b.Instructions())

	b = block(tvm.MakeXCHS(1), tvm.Gen("ADD"))
	PeepholeOptimizer{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 1)
	assert.Equal(t, "ADD", insts[0].(*tvm.GenOp).Opcode)
}

func TestPeepholeNotFlipsConditions(t *testing.T) {
	b := block(tvm.Gen("NOT"), &tvm.IfElse{Kind: tvm.IFJMP, TrueBody: tvm.NewCodeBlock(tvm.PUSHCONT, nil)})
	PeepholeOptimizer{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 1)
	assert.Equal(t, tvm.IFNOTJMP, insts[0].(*tvm.IfElse).Kind)

	b = block(tvm.Gen("NOT"), tvm.MakeIFRET())
	PeepholeOptimizer{}.Run(b)
	insts = b.Instructions()
	require.Len(t, insts, 1)
	assert.Equal(t, tvm.IFNOTRET, insts[0].(*tvm.Return).Kind)

	b = block(tvm.Gen("NOT"), tvm.Gen("NOT"))
	PeepholeOptimizer{}.Run(b)
	assert.Empty(t, b.Instructions())
}

func TestPeepholeConstantConditions(t *testing.T) {
	taken := tvm.NewCodeBlock(tvm.PUSHCONT, []tvm.Node{tvm.Gen("ACCEPT")})
	b := block(tvm.Gen("TRUE"), &tvm.IfElse{Kind: tvm.IF, TrueBody: taken})
	PeepholeOptimizer{}.Run(b)
	insts := b.Instructions()
	require.Len(t, insts, 1)
	assert.Equal(t, "ACCEPT", insts[0].(*tvm.GenOp).Opcode)

	b = block(tvm.Gen("FALSE"), &tvm.IfElse{Kind: tvm.IF, TrueBody: taken})
	PeepholeOptimizer{}.Run(b)
	assert.Empty(t, b.Instructions())

	b = block(tvm.Gen("TRUE"), tvm.MakeIFRET())
	PeepholeOptimizer{}.Run(b)
	insts = b.Instructions()
	require.Len(t, insts, 1)
	assert.Equal(t, tvm.RET, insts[0].(*tvm.Return).Kind)
}

func TestPeepholeUnpacksOpaque(t *testing.T) {
	opaque := tvm.NewOpaque(block(tvm.Gen("PUSHINT 5")), 0, 1, true)
	b := block(opaque, tvm.MakeDROP(1))

	PeepholeOptimizer{}.Run(b)
	assert.Len(t, b.Instructions(), 2, "opaque stays sealed without unpack")

	PeepholeOptimizer{WithUnpackOpaque: true}.Run(b)
	assert.Empty(t, b.Instructions())
}
