package compiler

// The fixed table of implicit language-provided identifiers. Magic
// identifiers carry negative, stable numeric ids so they can never
// collide with user declarations.

// MagicVariableDeclaration binds a built-in name to its id and type.
type MagicVariableDeclaration struct {
	ID   int
	Name string
	Type Type
}

// FunctionKind tags the built-in function a magic id resolves to.
type FunctionKind int

const (
	KindAddMod FunctionKind = iota
	KindAssert
	KindBitSize
	KindBlockHash
	KindECRecover
	KindFormat
	KindGasLeft
	KindGasToValue
	KindKeccak256
	KindLog0
	KindLog1
	KindLog2
	KindLog3
	KindLog4
	KindLogTVM
	KindMetaType
	KindMulMod
	KindRequire
	KindRevert
	KindRipemd160
	KindSelfdestruct
	KindSHA256
	KindStoi
	KindUBitSize
	KindValueToGas
)

// MagicFunctionType is the signature of a built-in function.
type MagicFunctionType struct {
	ParamTypes  []Type
	ReturnTypes []Type
	Kind        FunctionKind
	TakesArbitraryArgs bool
	Mutability  StateMutability
}

func (*MagicFunctionType) Category() Category { return CatFunction }
func (*MagicFunctionType) String() string     { return "builtin function" }

// magicVariableID maps a built-in name to its stable id. The source
// this table descends from assigned the same id to format and rnd;
// that was a bug, and the two now hold distinct ids.
func magicVariableID(name string) int {
	ids := map[string]int{
		"abi":          -1,
		"addmod":       -2,
		"assert":       -3,
		"block":        -4,
		"blockhash":    -5,
		"ecrecover":    -6,
		"gasleft":      -7,
		"keccak256":    -8,
		"log0":         -10,
		"log1":         -11,
		"log2":         -12,
		"log3":         -13,
		"log4":         -14,
		"msg":          -15,
		"mulmod":       -16,
		"now":          -17,
		"require":      -18,
		"revert":       -19,
		"ripemd160":    -20,
		"selfdestruct": -21,
		"sha256":       -22,
		"sha3":         -23,
		"suicide":      -24,
		"super":        -25,
		"tx":           -26,
		"type":         -27,
		"this":         -28,
		"gasToValue":   -60,
		"valueToGas":   -61,
		"bitSize":      -62,
		"uBitSize":     -63,
		"tvm":          -101,
		"logtvm":       -102,
		"math":         -103,
		"format":       -104,
		"rnd":          -105,
		"stoi":         -106,
	}
	id, ok := ids[name]
	assert(ok, "unknown magic variable %q", name)
	return id
}

// Globals is the table of implicit identifiers. The current contract
// is an explicit parameter of the lookups; the table itself holds
// only the per-contract caches for `this` and `super`.
type Globals struct {
	magic []*MagicVariableDeclaration

	thisPointer  map[*ContractDefinition]*MagicVariableDeclaration
	superPointer map[*ContractDefinition]*MagicVariableDeclaration
}

// NewGlobals constructs the table.
func NewGlobals() *Globals {
	magicVarDecl := func(name string, t Type) *MagicVariableDeclaration {
		return &MagicVariableDeclaration{ID: magicVariableID(name), Name: name, Type: t}
	}
	fn := func(params, results []Type, kind FunctionKind, varArgs bool, mut StateMutability) *MagicFunctionType {
		return &MagicFunctionType{
			ParamTypes:  params,
			ReturnTypes: results,
			Kind:        kind,
			TakesArbitraryArgs: varArgs,
			Mutability:  mut,
		}
	}
	bytes32 := &FixedBytesType{N: 32}
	str := &ArrayType{Base: Uint(8), ByteArray: true, IsString: true}
	bytesT := &ArrayType{Base: Uint(8), ByteArray: true}

	return &Globals{
		magic: []*MagicVariableDeclaration{
			magicVarDecl("abi", &MagicType{Kind: MagicABI}),
			magicVarDecl("addmod", fn([]Type{Uint(256), Uint(256), Uint(256)}, []Type{Uint(256)}, KindAddMod, false, MutabilityPure)),
			magicVarDecl("assert", fn([]Type{Bool}, nil, KindAssert, false, MutabilityPure)),
			magicVarDecl("block", &MagicType{Kind: MagicBlock}),
			magicVarDecl("blockhash", fn([]Type{Uint(256)}, []Type{bytes32}, KindBlockHash, false, MutabilityView)),
			magicVarDecl("ecrecover", fn([]Type{bytes32, Uint(8), bytes32, bytes32}, []Type{&AddressType{}}, KindECRecover, false, MutabilityPure)),
			magicVarDecl("format", fn(nil, []Type{str}, KindFormat, true, MutabilityPure)),
			magicVarDecl("gasleft", fn(nil, []Type{Uint(256)}, KindGasLeft, false, MutabilityView)),
			magicVarDecl("keccak256", fn([]Type{bytesT}, []Type{bytes32}, KindKeccak256, false, MutabilityPure)),
			magicVarDecl("log0", fn([]Type{bytes32}, nil, KindLog0, false, MutabilityNonPayable)),
			magicVarDecl("log1", fn([]Type{bytes32, bytes32}, nil, KindLog1, false, MutabilityNonPayable)),
			magicVarDecl("log2", fn([]Type{bytes32, bytes32, bytes32}, nil, KindLog2, false, MutabilityNonPayable)),
			magicVarDecl("log3", fn([]Type{bytes32, bytes32, bytes32, bytes32}, nil, KindLog3, false, MutabilityNonPayable)),
			magicVarDecl("log4", fn([]Type{bytes32, bytes32, bytes32, bytes32, bytes32}, nil, KindLog4, false, MutabilityNonPayable)),
			magicVarDecl("logtvm", fn([]Type{str}, nil, KindLogTVM, false, MutabilityPure)),
			magicVarDecl("math", &MagicType{Kind: MagicMath}),
			magicVarDecl("rnd", &MagicType{Kind: MagicRnd}),
			magicVarDecl("msg", &MagicType{Kind: MagicMessage}),
			magicVarDecl("mulmod", fn([]Type{Uint(256), Uint(256), Uint(256)}, []Type{Uint(256)}, KindMulMod, false, MutabilityPure)),
			magicVarDecl("now", Uint(32)),
			magicVarDecl("require", fn(nil, nil, KindRequire, true, MutabilityPure)),
			magicVarDecl("revert", fn(nil, nil, KindRevert, true, MutabilityPure)),
			magicVarDecl("ripemd160", fn([]Type{bytesT}, []Type{&FixedBytesType{N: 20}}, KindRipemd160, false, MutabilityPure)),
			magicVarDecl("selfdestruct", fn([]Type{&AddressType{}}, nil, KindSelfdestruct, false, MutabilityNonPayable)),
			magicVarDecl("sha256", fn([]Type{&SliceType{}}, []Type{Uint(256)}, KindSHA256, false, MutabilityPure)),
			magicVarDecl("sha256", fn([]Type{bytesT}, []Type{Uint(256)}, KindSHA256, false, MutabilityPure)),
			magicVarDecl("sha3", fn([]Type{bytesT}, []Type{bytes32}, KindKeccak256, false, MutabilityPure)),
			magicVarDecl("stoi", fn([]Type{str}, []Type{Uint(256), Bool}, KindStoi, false, MutabilityPure)),
			magicVarDecl("suicide", fn([]Type{&AddressType{}}, nil, KindSelfdestruct, false, MutabilityNonPayable)),
			magicVarDecl("tvm", &MagicType{Kind: MagicTVM}),
			magicVarDecl("tx", &MagicType{Kind: MagicTransaction}),
			magicVarDecl("type", fn([]Type{&AddressType{}}, nil, KindMetaType, false, MutabilityPure)),
			magicVarDecl("valueToGas", fn([]Type{Uint(128), Int(8)}, []Type{Uint(128)}, KindValueToGas, false, MutabilityPure)),
			magicVarDecl("gasToValue", fn([]Type{Uint(128), Int(8)}, []Type{Uint(128)}, KindGasToValue, false, MutabilityPure)),
			magicVarDecl("bitSize", fn([]Type{Int(257)}, []Type{Uint(16)}, KindBitSize, false, MutabilityPure)),
			magicVarDecl("uBitSize", fn([]Type{Uint(256)}, []Type{Uint(16)}, KindUBitSize, false, MutabilityPure)),
		},
		thisPointer:  make(map[*ContractDefinition]*MagicVariableDeclaration),
		superPointer: make(map[*ContractDefinition]*MagicVariableDeclaration),
	}
}

// Declarations lists the table's entries.
func (g *Globals) Declarations() []*MagicVariableDeclaration {
	return g.magic
}

// Lookup finds a magic identifier by name, or nil.
func (g *Globals) Lookup(name string) *MagicVariableDeclaration {
	for _, m := range g.magic {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// CurrentThis materializes `this` for contract, cached per contract
// pointer for the lifetime of the compilation.
func (g *Globals) CurrentThis(contract *ContractDefinition) *MagicVariableDeclaration {
	if d, ok := g.thisPointer[contract]; ok {
		return d
	}
	d := &MagicVariableDeclaration{
		ID:   magicVariableID("this"),
		Name: "this",
		Type: &ContractType{Contract: contract},
	}
	g.thisPointer[contract] = d
	return d
}

// CurrentSuper materializes `super` for contract, cached per contract
// pointer for the lifetime of the compilation.
func (g *Globals) CurrentSuper(contract *ContractDefinition) *MagicVariableDeclaration {
	if d, ok := g.superPointer[contract]; ok {
		return d
	}
	d := &MagicVariableDeclaration{
		ID:   magicVariableID("super"),
		Name: "super",
		Type: &ContractType{Contract: contract, Super: true},
	}
	g.superPointer[contract] = d
	return d
}
