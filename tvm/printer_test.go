package tvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func printNode(t *testing.T, n Node) string {
	t.Helper()
	var sb strings.Builder
	NewPrinter(&sb).Print(n)
	return sb.String()
}

func TestPrinterStackOps(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"drop1", MakeDROP(1), "DROP\n"},
		{"drop2", MakeDROP(2), "DROP2\n"},
		{"blkdrop", MakeDROP(7), "BLKDROP 7\n"},
		{"dropx", MakeDROP(20), "PUSHINT 20\nDROPX\n"},

		{"dup", MakePUSH(0), "DUP\n"},
		{"over", MakePUSH(1), "OVER\n"},
		{"push", MakePUSH(5), "PUSH S5\n"},

		{"swap", MakeXCHS(1), "SWAP\n"},
		{"xchg s3", MakeXCHS(3), "XCHG S3\n"},
		{"xchg si sj", MakeXCHSS(2, 4), "XCHG S2, S4\n"},

		{"nip", MakePOP(1), "NIP\n"},
		{"pop", MakePOP(3), "POP S3\n"},

		{"blkswap swap", MakeBLKSWAP(1, 1), "SWAP\n"},
		{"rot", MakeROT(), "ROT\n"},
		{"rotrev", MakeROTREV(), "ROTREV\n"},
		{"swap2", MakeBLKSWAP(2, 2), "SWAP2\n"},
		{"roll", MakeBLKSWAP(1, 5), "ROLL 5\n"},
		{"rollrev", MakeBLKSWAP(5, 1), "ROLLREV 5\n"},
		{"blkswap", MakeBLKSWAP(3, 4), "BLKSWAP 3, 4\n"},
		{"blkswx", MakeBLKSWAP(17, 4), "PUSHINT 17\nPUSHINT 4\nBLKSWX\n"},

		{"reverse swap", MakeREVERSE(2, 0), "SWAP\n"},
		{"reverse xchg", MakeREVERSE(3, 0), "XCHG S2\n"},
		{"reverse", MakeREVERSE(5, 1), "REVERSE 5, 1\n"},
		{"revx", MakeREVERSE(18, 0), "PUSHINT 18\nPUSHINT 0\nREVX\n"},

		{"dup2", MakeBLKPUSH(2, 1), "DUP2\n"},
		{"over2", MakeBLKPUSH(2, 3), "OVER2\n"},
		{"blkpush", MakeBLKPUSH(3, 2), "BLKPUSH 3, 2\n"},
		{"blkpush split", MakeBLKPUSH(32, 0), "BLKPUSH 15, 0\nBLKPUSH 15, 0\nBLKPUSH 2, 0\n"},

		{"push2", MakePUSH2(4, 2), "PUSH2 S4, S2\n"},
		{"push2 dup2", MakePUSH2(1, 0), "DUP2\n"},
		{"push3", MakePUSH3(2, 1, 0), "PUSH3 S2, S1, S0\n"},

		{"blkdrop2", MakeBLKDROP2(3, 2), "BLKDROP2 3, 2\n"},
		{"blkdrop2 big", MakeBLKDROP2(16, 2), "PUSHINT 16\nPUSHINT 2\nBLKSWX\nPUSHINT 16\nDROPX\n"},

		{"tuck", MakeTUCK(), "TUCK\n"},
		{"puxc", MakePUXC(1, 2), "PUXC S1, S2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, printNode(t, tt.node))
		})
	}
}

func TestPrinterGenOps(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		{"BITNOT", "NOT\n"},
		{"TUPLE 1", "SINGLE\n"},
		{"TUPLE 2", "PAIR\n"},
		{"TUPLE 3", "TRIPLE\n"},
		{"TUPLE 4", "TUPLE 4\n"},
		{"UNTUPLE 1", "UNSINGLE\n"},
		{"UNTUPLE 2", "UNPAIR\n"},
		{"UNTUPLE 3", "UNTRIPLE\n"},
		{"INDEX_EXCEP 7", "INDEX 7\n"},
		{"INDEX_NOEXCEP 15", "INDEX 15\n"},
		{"INDEX_EXCEP 20", "PUSHINT 20\nINDEXVAR\n"},
		{"ADD", "ADD\n"},
		{"PUSHINT 42", "PUSHINT 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.want, printNode(t, Gen(tt.cmd)))
		})
	}
}

func TestPrinterGlob(t *testing.T) {
	assert.Equal(t, "GETGLOB 5\n", printNode(t, &Glob{Op: GetGlob, Index: 5}))
	assert.Equal(t, "SETGLOB 31\n", printNode(t, &Glob{Op: SetGlob, Index: 31}))
	assert.Equal(t, "PUSHINT 32\nGETGLOBVAR\n", printNode(t, &Glob{Op: GetGlob, Index: 32}))
	assert.Equal(t, "PUSHINT 100\nSETGLOBVAR\n", printNode(t, &Glob{Op: SetGlob, Index: 100}))
	assert.Equal(t, "PUSHROOT\n", printNode(t, &Glob{Op: PushRoot}))
	assert.Equal(t, "POPROOT\n", printNode(t, &Glob{Op: PopRoot}))
	assert.Equal(t, "PUSH C7\n", printNode(t, &Glob{Op: PushC7}))
	assert.Equal(t, "POP C3\n", printNode(t, &Glob{Op: PopC3}))
}

func TestPrinterCellTree(t *testing.T) {
	inner := &PushCellOrSlice{Kind: CELL, Blob: ".blob x22"}
	outer := &PushCellOrSlice{Kind: PUSHREFSLICE, Blob: ".blob x11", Child: inner}
	want := "PUSHREFSLICE {\n\t.blob x11\n\t.cell {\n\t\t.blob x22\n\t}\n}\n"
	assert.Equal(t, want, printNode(t, outer))
}

func TestPrinterControlFlow(t *testing.T) {
	body := NewCodeBlock(PUSHCONT, []Node{Gen("ADD")})

	ifjmp := &IfElse{Kind: IFJMP, TrueBody: body}
	assert.Equal(t, "PUSHCONT {\n\tADD\n}\nIFJMP\n", printNode(t, ifjmp))

	ifref := &IfElse{Kind: IFREF, TrueBody: NewCodeBlock(PUSHCONT, []Node{Gen("ADD")})}
	assert.Equal(t, "IFREF {\n\tADD\n}\n", printNode(t, ifref))

	ifElseJmp := &IfElse{
		Kind:      IFELSEWITHJMP,
		TrueBody:  NewCodeBlock(PUSHCONT, []Node{Gen("INC")}),
		FalseBody: NewCodeBlock(PUSHCONT, []Node{Gen("DEC")}),
	}
	assert.Equal(t, "PUSHCONT {\n\tINC\n}\nPUSHCONT {\n\tDEC\n}\nCONDSEL\nJMPX\n", printNode(t, ifElseJmp))

	while := &While{
		Cond: NewCodeBlock(PUSHCONT, []Node{Gen("LESSINT 5")}),
		Body: NewCodeBlock(PUSHCONT, []Node{Gen("INC")}),
	}
	assert.Equal(t, "PUSHCONT {\n\tLESSINT 5\n}\nPUSHCONT {\n\tINC\n}\nWHILE\n", printNode(t, while))

	repeat := &Repeat{Body: NewCodeBlock(PUSHCONT, []Node{Gen("INC")})}
	assert.Equal(t, "PUSHCONT {\n\tINC\n}\nREPEAT\n", printNode(t, repeat))

	until := &Until{Body: NewCodeBlock(PUSHCONT, []Node{Gen("INC")})}
	assert.Equal(t, "PUSHCONT {\n\tINC\n}\nUNTIL\n", printNode(t, until))
}

func TestPrinterSubProgram(t *testing.T) {
	block := NewCodeBlock(BlockInline, []Node{Gen("INC")})
	callx := NewSubProgram(0, 0, CALLX, block)
	assert.Equal(t, "PUSHCONT {\n\tINC\n}\nCALLX\n", printNode(t, callx))

	callref := NewSubProgram(0, 0, CALLREF, NewCodeBlock(BlockInline, []Node{Gen("DEC")}))
	assert.Equal(t, "CALLREF {\n\tDEC\n}\n", printNode(t, callref))
}

func TestPrinterLogCircuit(t *testing.T) {
	body := NewCodeBlock(BlockInline, []Node{MakeDROP(1), Gen("EQINT 0")})
	and := &LogCircuit{CanExpand: true, Kind: LogAnd, Body: body}
	assert.Equal(t, "PUSHCONT {\n\tDROP\n\tEQINT 0\n}\nIF\n", printNode(t, and))

	or := &LogCircuit{Kind: LogOr, Body: NewCodeBlock(BlockInline, []Node{MakeDROP(1), Gen("TRUE")})}
	assert.Equal(t, "PUSHCONT {\n\tDROP\n\tTRUE\n}\nIFNOT\n", printNode(t, or))
}

func TestPrinterFunctionHeaders(t *testing.T) {
	block := NewCodeBlock(BlockInline, []Node{MakeRET()})

	private := NewFunction(0, 0, "foo", PrivateFunction, block)
	assert.Equal(t, ".globl\tfoo\n.type\tfoo, @function\nRET\n\n", printNode(t, private))

	macro := NewFunction(0, 0, "bar", Macro, NewCodeBlock(BlockInline, []Node{MakeRET()}))
	assert.Equal(t, ".macro bar\nRET\n\n", printNode(t, macro))

	mainInternal := NewFunction(0, 0, "main_internal", MainInternal, NewCodeBlock(BlockInline, nil))
	assert.Equal(t, ".internal-alias :main_internal, 0\n.internal :main_internal\n\n", printNode(t, mainInternal))

	mainExternal := NewFunction(0, 0, "main_external", MainExternal, NewCodeBlock(BlockInline, nil))
	assert.Equal(t, ".internal-alias :main_external, -1\n.internal :main_external\n\n", printNode(t, mainExternal))

	tick := NewFunction(0, 0, "onTickTock", OnTickTock, NewCodeBlock(BlockInline, nil))
	assert.Equal(t, ".internal-alias :onTickTock, -2\n.internal :onTickTock\n\n", printNode(t, tick))

	upgrade := NewFunction(0, 0, "onCodeUpgrade", OnCodeUpgrade, NewCodeBlock(BlockInline, nil))
	assert.Equal(t, ".internal-alias :onCodeUpgrade, 2\n.internal :onCodeUpgrade\n\n", printNode(t, upgrade))
}

func TestPrinterContract(t *testing.T) {
	c := &Contract{
		Pragmas: []string{".version sol 0.57.0"},
		Functions: []*Function{
			NewFunction(0, 0, "m", Macro, NewCodeBlock(BlockInline, []Node{Gen("ACCEPT")})),
		},
	}
	out := printNode(t, c)
	require.True(t, strings.HasPrefix(out, ".version sol 0.57.0\n\n"))
	assert.Contains(t, out, ".macro m\nACCEPT\n")
}

func TestPrinterLoc(t *testing.T) {
	assert.Equal(t, ".loc a.sol, 42\n", printNode(t, &Loc{File: "a.sol", Line: 42}))
	assert.Equal(t, ".loc a.sol, 0\n", printNode(t, &Loc{File: "a.sol", Line: 0}))
}

func TestPrinterReturnFamily(t *testing.T) {
	assert.Equal(t, "RET\n", printNode(t, MakeRET()))
	assert.Equal(t, "IFRET\n", printNode(t, MakeIFRET()))
	assert.Equal(t, "IFNOTRET\n", printNode(t, MakeIFNOTRET()))
	assert.Equal(t, "THROWIFNOT 60\n", printNode(t, MakeTHROW("THROWIFNOT 60")))
	assert.Equal(t, "FALSE ; decl return flag\n", printNode(t, &DeclRetFlag{}))
}
