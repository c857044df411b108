package compiler

import (
	"strings"
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likenty/tvmc/tvm"
)

func TestFunctionIDStability(t *testing.T) {
	a := CalculateFunctionID("transfer", []Type{Uint(128), &AddressType{}}, nil, RemoteCallInternal)
	b := CalculateFunctionID("transfer", []Type{Uint(128), &AddressType{}}, nil, RemoteCallInternal)
	tassert.Equal(t, a, b)

	c := CalculateFunctionID("transfer", []Type{Uint(64), &AddressType{}}, nil, RemoteCallInternal)
	tassert.NotEqual(t, a, c)

	// the answer id differs only in the high bit
	ans := CalculateFunctionID("transfer", []Type{Uint(128), &AddressType{}}, nil, FunctionReturnExternal)
	tassert.Equal(t, a|0x80000000, ans)
	tassert.Zero(t, a&0x80000000)
}

func TestFunctionSignatureSpelling(t *testing.T) {
	sig := functionSignature("f", []Type{Uint(256), Bool}, []Type{&AddressType{}})
	tassert.Equal(t, "f(uint256,bool)(address)v2", sig)

	bytesT := &ArrayType{Base: Uint(8), ByteArray: true}
	sig = functionSignature("g", []Type{bytesT, &MappingType{Key: Uint(32), Value: &CellType{}}}, nil)
	tassert.Equal(t, "g(bytes,map(uint32,cell))()v2", sig)
}

func TestEncodePositionOverflow(t *testing.T) {
	pos := NewEncodePosition(0)
	// three 256-bit words fit one cell (768 of 1023 bits); a 512-bit
	// value no longer fits in the remaining 255 bits
	for i := 0; i < 3; i++ {
		tassert.True(t, pos.Fits(Uint(256)), "word %d", i)
	}
	tassert.False(t, pos.Fits(Uint(512)))
}

func TestEncodePositionHonoursHeaderOffset(t *testing.T) {
	pos := NewEncodePosition(1000)
	tassert.False(t, pos.Fits(Uint(256)))
	// after overflowing a fresh cell is assumed
	tassert.True(t, pos.Fits(Uint(256)))
}

func TestEncodeParametersOpensRefBranches(t *testing.T) {
	p := NewStackPusher(testContext(t, nil))
	types := []Type{Uint(256), Uint(256), Uint(256), Uint(256), Uint(256)}
	p.FixStack(len(types))
	p.Push(1, "NEWC")
	NewChainDataEncoder(p).EncodeParameters(types, NewEncodePosition(0))
	require.Equal(t, 1, p.StackSize())

	out := printPusher(t, p)
	// five words exceed one cell: a second builder is opened and
	// folded back as a reference
	tassert.Contains(t, out, "STBREFR")
	tassert.Equal(t, 2, strings.Count(out, "NEWC"))
}

func TestDecodeDataFollowsCellChain(t *testing.T) {
	p := NewStackPusher(testContext(t, nil))
	p.FixStack(1) // slice
	types := []Type{Uint(256), Uint(256), Uint(256), Uint(256), Uint(256)}
	NewChainDataDecoder(p).DecodeData(types, 0)
	tassert.Equal(t, len(types), p.StackSize())

	out := printPusher(t, p)
	tassert.Contains(t, out, "LDREF")
	tassert.Contains(t, out, "CTOS")
	tassert.Equal(t, 5, strings.Count(out, "LDU 256"))
}

func TestCreateMsgBodyInlineVsRef(t *testing.T) {
	params := []*VariableDeclaration{{Name: "x", Type: Uint(64)}}

	// small body and small header: inline, flag bit 0
	p := NewStackPusher(testContext(t, nil))
	p.FixStack(1) // the value
	p.Push(1, "NEWC")
	NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(params, 0xABC, nil, 10)
	out := printPusher(t, p)
	tassert.Contains(t, out, "STSLICECONST 0")
	tassert.NotContains(t, out, "STBREFR")

	// huge accumulated header: the body moves into a reference cell
	p = NewStackPusher(testContext(t, nil))
	p.FixStack(1)
	p.Push(1, "NEWC")
	NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(params, 0xABC, nil, 1000)
	out = printPusher(t, p)
	tassert.Contains(t, out, "STSLICECONST xc_")
	tassert.Contains(t, out, "STBREFR")
}

func TestStoreAndLoadRoundTripShapes(t *testing.T) {
	// the decoder emits the mirrored loads of what the encoder
	// stores, per type
	tests := []struct {
		typ       Type
		storeWant string
		loadWant  string
	}{
		{Uint(64), "STU 64", "LDU 64"},
		{Int(32), "STI 32", "LDI 32"},
		{Bool, "STU 1", "LDU 1"},
		{&AddressType{}, "STSLICE", "LDMSGADDR"},
		{&CellType{}, "STREF", "LDREF"},
		{&MappingType{Key: Uint(32), Value: Uint(32)}, "STDICT", "LDDICT"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			p := NewStackPusher(testContext(t, nil))
			p.FixStack(1)
			p.Push(1, "NEWC")
			p.Store(tt.typ, false)
			tassert.Contains(t, printPusher(t, p), tt.storeWant)

			p = NewStackPusher(testContext(t, nil))
			p.FixStack(1)
			p.Load(tt.typ, false)
			tassert.Contains(t, printPusher(t, p), tt.loadWant)
		})
	}
}

func TestPushDefaultValueShapes(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Uint(64), "PUSHINT 0"},
		{Bool, "PUSHINT 0"},
		{&AddressType{}, "PUSHSLICE x8000000000000000000000000000000000000000000000000000000000000000001_"},
		{&MappingType{Key: Uint(32), Value: Uint(32)}, "NEWDICT"},
		{&OptionalType{Value: Uint(8)}, "NULL"},
		{&SliceType{}, "PUSHSLICE x8_"},
		{&BuilderType{}, "NEWC"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			p := NewStackPusher(testContext(t, nil))
			p.PushDefaultValue(tt.typ, false)
			tassert.Equal(t, 1, p.StackSize())
			tassert.Contains(t, printPusher(t, p), tt.want)
		})
	}
}

func TestDefaultStructIsTuple(t *testing.T) {
	st := &StructType{Name: "P", Members: []StructMember{
		{Name: "x", Type: Uint(32)},
		{Name: "y", Type: Uint(32)},
	}}
	p := NewStackPusher(testContext(t, nil))
	p.PushDefaultValue(st, false)
	tassert.Equal(t, 1, p.StackSize())
	tassert.Contains(t, printPusher(t, p), "PAIR")
}

func TestGetDictShapes(t *testing.T) {
	p := NewStackPusher(testContext(t, nil))
	p.FixStack(2) // key dict
	p.GetDict(Uint(32), Uint(64), FetchFromMapping)
	tassert.Equal(t, 1, p.StackSize())
	out := printPusher(t, p)
	tassert.Contains(t, out, "PUSHINT 32\n")
	tassert.Contains(t, out, "DICTUGET\n")
	tassert.Contains(t, out, "NULLSWAPIFNOT\n")

	p = NewStackPusher(testContext(t, nil))
	p.FixStack(2)
	p.GetDict(Int(16), Uint(64), GetFromMapping)
	out = printPusher(t, p)
	tassert.Contains(t, out, "DICTIGET\n")
	tassert.Contains(t, out, "IFELSE\n")
}

func TestDictIterationPrimitives(t *testing.T) {
	p := NewStackPusher(testContext(t, nil))
	p.FixStack(1) // dict
	p.DictMinMax(Uint(256), Uint(64), true)
	tassert.Equal(t, 3, p.StackSize())
	out := printPusher(t, p)
	tassert.Contains(t, out, "PUSHINT 256\n")
	tassert.Contains(t, out, "DICTUMIN\n")

	p = NewStackPusher(testContext(t, nil))
	p.FixStack(3) // key dict nbits
	p.DictPrevNext(Uint(256), Uint(64), true)
	tassert.Equal(t, 3, p.StackSize())
	tassert.Contains(t, printPusher(t, p), "DICTUGETNEXT\n")
}

func TestHardConvertChecksFit(t *testing.T) {
	p := NewStackPusher(testContext(t, nil))
	p.FixStack(1)
	p.HardConvert(Uint(8), Uint(256)) // narrowing
	tassert.Contains(t, printPusher(t, p), "UFITS 8")

	p = NewStackPusher(testContext(t, nil))
	p.FixStack(1)
	p.HardConvert(Uint(256), Uint(8)) // widening needs no check
	tassert.Empty(t, p.GetBlock().Instructions())
}

func TestLogCircuitNode(t *testing.T) {
	// && produces DUP + circuit with a leading DROP
	p := NewStackPusher(testContext(t, nil))
	ec := NewExpressionCompiler(p)
	x := &VariableDeclaration{Name: "x", Type: Bool}
	p.FixStack(1)
	p.GetStack().Add(x, false)
	ec.CompileNewExpr(&BinaryOp{Op: "&&", L: Ref(x), R: &BoolLiteral{Value: true}, T: Bool})
	tassert.Equal(t, 2, p.StackSize())

	insts := p.GetBlock().Instructions()
	require.NotEmpty(t, insts)
	lc, ok := insts[len(insts)-1].(*tvm.LogCircuit)
	require.True(t, ok)
	tassert.Equal(t, tvm.LogAnd, lc.Kind)
	tassert.True(t, lc.CanExpand)
	n, isDrop := tvm.IsDrop(lc.Body.Instructions()[0])
	tassert.True(t, isDrop)
	tassert.Equal(t, 1, n)
}
