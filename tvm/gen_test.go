package tvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenEffects(t *testing.T) {
	tests := []struct {
		cmd  string
		take int
		ret  int
		pure bool
	}{
		{"ADD", 2, 1, false},
		{"NOT", 1, 1, true},
		{"PUSHINT 5", 0, 1, true},
		{"NEWC", 0, 1, true},
		{"STU 256", 2, 1, false},
		{"LDU 64", 1, 2, false},
		{"PLDU 256", 1, 1, false},
		{"TUPLE 5", 5, 1, false},
		{"UNTUPLE 3", 1, 3, false},
		{"LSHIFT 8", 1, 1, false},
		{"LSHIFT", 2, 1, false},
		{"EQINT 0", 1, 1, true},
		{"SEMPTY", 1, 1, true},
		{"CHKSIGNU", 3, 1, false},
		{"SENDRAWMSG", 2, 0, false},
		{"LDREFRTOS", 1, 2, false},
		{"MULDIVMOD", 3, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			g := Gen(tt.cmd)
			assert.Equal(t, tt.take, g.Take(), "take")
			assert.Equal(t, tt.ret, g.Ret(), "ret")
			assert.Equal(t, tt.pure, g.IsPure(), "pure")
		})
	}
}

func TestGenComment(t *testing.T) {
	g := Gen("LDU 256      ; pubkey c4")
	assert.Equal(t, "LDU", g.Opcode)
	assert.Equal(t, "256", g.Arg)
	assert.Equal(t, "pubkey c4", g.Comment)
	assert.Equal(t, "LDU 256", g.FullOpcode())
}

func TestGenUnknownPanics(t *testing.T) {
	assert.Panics(t, func() { Gen("NO_SUCH_OPCODE") })
	assert.Panics(t, func() { Gen("") })
}

func TestAsymEffects(t *testing.T) {
	tests := []struct {
		cmd    string
		take   int
		retMin int
		retMax int
	}{
		{"NULLSWAPIFNOT", 1, 1, 2},
		{"CONFIGPARAM", 1, 1, 2},
		{"LDUQ 32", 1, 2, 3},
		{"DICTUGET", 3, 1, 2},
		{"DICTIGETREF", 3, 1, 2},
		{"DICTMIN", 2, 1, 3},
		{"DICTUMAXREF", 2, 1, 3},
		{"DICTUREMMIN", 2, 2, 3},
		{"DICTUGETNEXT", 3, 1, 3},
		{"DICTIGETPREVEQ", 3, 1, 3},
		{"DICTSETGET", 4, 2, 3},
		{"DICTUREPLACEGETB", 4, 2, 3},
		{"DICTUADD", 4, 1, 2},
		{"CDATASIZEQ", 2, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			a := Asym(tt.cmd)
			assert.Equal(t, tt.take, a.Take())
			assert.Equal(t, tt.retMin, a.RetMin())
			assert.Equal(t, tt.retMax, a.RetMax())
		})
	}
	assert.Panics(t, func() { Asym("DICTWHATEVER") })
}

func TestMakeTHROW(t *testing.T) {
	th := MakeTHROW("THROWIF 51")
	assert.Equal(t, "THROWIF", th.Gen.Opcode)
	assert.Equal(t, 1, th.Gen.Take())
	assert.Equal(t, 0, th.Gen.Ret())
	assert.Equal(t, "THROWIF 51", th.FullOpcode())

	assert.Panics(t, func() { MakeTHROW("ADD") })
}

func TestMatchers(t *testing.T) {
	assert.True(t, IsSWAP(MakeBLKSWAP(1, 1)))
	assert.True(t, IsSWAP(MakeXCHS(1)))
	assert.True(t, IsSWAP(MakeREVERSE(2, 0)))
	assert.False(t, IsSWAP(MakeXCHS(2)))

	n, ok := IsDrop(MakeDROP(3))
	require.True(t, ok)
	assert.Equal(t, 3, n)

	i, ok := IsPOP(MakePOP(2))
	require.True(t, ok)
	assert.Equal(t, 2, i)

	down, top, ok := IsBLKSWAP(MakeBLKSWAP(2, 3))
	require.True(t, ok)
	assert.Equal(t, 2, down)
	assert.Equal(t, 3, top)

	j, ok := IsXCHGS0(MakeXCHS(4))
	require.True(t, ok)
	assert.Equal(t, 4, j)

	assert.True(t, IsXCHG(MakeXCHSS(1, 3), 1, 3))
	assert.False(t, IsXCHG(MakeXCHSS(1, 3), 0, 3))

	assert.True(t, IsPureGen01OrGetGlob(Gen("PUSHINT 7")))
	assert.True(t, IsPureGen01OrGetGlob(&Glob{Op: GetGlob, Index: 2}))
	assert.True(t, IsPureGen01OrGetGlob(MakePUSHREF("")))
	assert.False(t, IsPureGen01OrGetGlob(Gen("ADD")))
	assert.False(t, IsPureGen01OrGetGlob(&Glob{Op: SetGlob, Index: 2}))
}

func TestCellEquality(t *testing.T) {
	a := &PushCellOrSlice{Kind: PUSHREF, Blob: "x11", Child: &PushCellOrSlice{Kind: CELL, Blob: "x22"}}
	b := &PushCellOrSlice{Kind: PUSHREF, Blob: "x11", Child: &PushCellOrSlice{Kind: CELL, Blob: "x22"}}
	c := &PushCellOrSlice{Kind: PUSHREF, Blob: "x11"}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, c.Equal(a))
}

func TestCodeBlockUpd(t *testing.T) {
	b := NewCodeBlock(BlockInline, []Node{Gen("ADD")})
	require.Len(t, b.Instructions(), 1)
	b.Upd([]Node{Gen("SUB"), Gen("INC")})
	assert.Len(t, b.Instructions(), 2)

	assert.Panics(t, func() { NewCodeBlock(BlockInline, []Node{nil}) })
}
