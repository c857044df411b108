package compiler

import (
	"fmt"
	"strings"
)

// Category discriminates the resolved types handed over by the front
// end.
type Category int

const (
	CatInteger Category = iota
	CatBool
	CatAddress
	CatContract
	CatEnum
	CatFixedBytes
	CatFixedPoint
	CatVarInteger
	CatArray
	CatMapping
	CatStruct
	CatOptional
	CatTuple
	CatCell
	CatSlice
	CatBuilder
	CatVector
	CatFunction
	CatNull
	CatStringLiteral
	CatMagic
)

// Type is a resolved front-end type.
type Type interface {
	Category() Category
	String() string
}

// IntegerType is intN / uintN.
type IntegerType struct {
	Bits   int
	Signed bool
}

func (*IntegerType) Category() Category { return CatInteger }
func (t *IntegerType) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Bits)
	}
	return fmt.Sprintf("uint%d", t.Bits)
}

// Uint returns the unsigned integer type of the given width.
func Uint(bits int) *IntegerType { return &IntegerType{Bits: bits} }

// Int returns the signed integer type of the given width.
func Int(bits int) *IntegerType { return &IntegerType{Bits: bits, Signed: true} }

// BoolType is a single-bit flag.
type BoolType struct{}

func (*BoolType) Category() Category { return CatBool }
func (*BoolType) String() string     { return "bool" }

// Bool is the shared bool type.
var Bool = &BoolType{}

// AddressType is MsgAddressInt.
type AddressType struct{}

func (*AddressType) Category() Category { return CatAddress }
func (*AddressType) String() string     { return "address" }

// EnumType is a small unsigned integer with named members.
type EnumType struct {
	Name string
	Bits int
}

func (*EnumType) Category() Category { return CatEnum }
func (t *EnumType) String() string   { return "enum " + t.Name }

// FixedBytesType is bytesN.
type FixedBytesType struct {
	N int
}

func (*FixedBytesType) Category() Category { return CatFixedBytes }
func (t *FixedBytesType) String() string   { return fmt.Sprintf("bytes%d", t.N) }

// FixedPointType is fixedMxN / ufixedMxN.
type FixedPointType struct {
	Bits             int
	FractionalDigits int
	Signed           bool
}

func (*FixedPointType) Category() Category { return CatFixedPoint }
func (t *FixedPointType) String() string {
	prefix := "ufixed"
	if t.Signed {
		prefix = "fixed"
	}
	return fmt.Sprintf("%s%dx%d", prefix, t.Bits, t.FractionalDigits)
}

// VarIntegerType is varuintN.
type VarIntegerType struct {
	N int
}

func (*VarIntegerType) Category() Category { return CatVarInteger }
func (t *VarIntegerType) String() string   { return fmt.Sprintf("varuint%d", t.N) }

// ArrayType is T[]; ByteArray marks bytes and string, stored as a
// cell chain rather than a dictionary.
type ArrayType struct {
	Base      Type
	ByteArray bool
	IsString  bool
}

func (*ArrayType) Category() Category { return CatArray }
func (t *ArrayType) String() string {
	if t.IsString {
		return "string"
	}
	if t.ByteArray {
		return "bytes"
	}
	return t.Base.String() + "[]"
}

// MappingType is mapping(K => V).
type MappingType struct {
	Key   Type
	Value Type
}

func (*MappingType) Category() Category { return CatMapping }
func (t *MappingType) String() string {
	return fmt.Sprintf("mapping(%s => %s)", t.Key, t.Value)
}

// StructMember is one field of a struct type.
type StructMember struct {
	Name string
	Type Type
}

// StructType is a named product type, held as a tuple on the stack.
type StructType struct {
	Name    string
	Members []StructMember
}

func (*StructType) Category() Category { return CatStruct }
func (t *StructType) String() string   { return "struct " + t.Name }

// OptionalType is optional(T).
type OptionalType struct {
	Value Type
}

func (*OptionalType) Category() Category { return CatOptional }
func (t *OptionalType) String() string   { return fmt.Sprintf("optional(%s)", t.Value) }

// TupleType is an anonymous product of components.
type TupleType struct {
	Components []Type
}

func (*TupleType) Category() Category { return CatTuple }
func (t *TupleType) String() string {
	parts := make([]string, len(t.Components))
	for i, c := range t.Components {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// CellType, SliceType, BuilderType and VectorType are the VM-level
// cell-tree types surfaced in the language.
type CellType struct{}

func (*CellType) Category() Category { return CatCell }
func (*CellType) String() string     { return "cell" }

type SliceType struct{}

func (*SliceType) Category() Category { return CatSlice }
func (*SliceType) String() string     { return "slice" }

type BuilderType struct{}

func (*BuilderType) Category() Category { return CatBuilder }
func (*BuilderType) String() string     { return "builder" }

type VectorType struct {
	Value Type
}

func (*VectorType) Category() Category { return CatVector }
func (t *VectorType) String() string   { return fmt.Sprintf("vector(%s)", t.Value) }

// FunctionValueType is a function stored as its 32-bit id.
type FunctionValueType struct{}

func (*FunctionValueType) Category() Category { return CatFunction }
func (*FunctionValueType) String() string     { return "function" }

// NullType is the type of the null literal.
type NullType struct{}

func (*NullType) Category() Category { return CatNull }
func (*NullType) String() string     { return "null" }

// StringLiteralType carries a compile-time string constant.
type StringLiteralType struct {
	Value string
}

func (*StringLiteralType) Category() Category { return CatStringLiteral }
func (*StringLiteralType) String() string     { return "string literal" }

// MagicKind tags the built-in namespace objects.
type MagicKind int

const (
	MagicBlock MagicKind = iota
	MagicMessage
	MagicTransaction
	MagicABI
	MagicTVM
	MagicMath
	MagicRnd
)

// MagicType is the type of a built-in namespace identifier.
type MagicType struct {
	Kind MagicKind
}

func (*MagicType) Category() Category { return CatMagic }
func (t *MagicType) String() string   { return "magic" }

// ContractType is the type of `this` and `super`.
type ContractType struct {
	Contract *ContractDefinition
	Super    bool
}

func (*ContractType) Category() Category { return CatContract }
func (t *ContractType) String() string {
	if t.Super {
		return "super " + t.Contract.Name
	}
	return "contract " + t.Contract.Name
}

// TypeInfo summarizes a numeric type for the marshalling layer.
type TypeInfo struct {
	IsNumeric bool
	IsSigned  bool
	NumBits   int
}

// NewTypeInfo extracts numeric metadata from t.
func NewTypeInfo(t Type) TypeInfo {
	switch ty := t.(type) {
	case *IntegerType:
		return TypeInfo{IsNumeric: true, IsSigned: ty.Signed, NumBits: ty.Bits}
	case *BoolType:
		return TypeInfo{IsNumeric: true, NumBits: 1}
	case *EnumType:
		return TypeInfo{IsNumeric: true, NumBits: ty.Bits}
	case *FixedBytesType:
		return TypeInfo{IsNumeric: true, NumBits: 8 * ty.N}
	case *FixedPointType:
		return TypeInfo{IsNumeric: true, IsSigned: ty.Signed, NumBits: ty.Bits}
	}
	return TypeInfo{}
}

// IsByteArrayOrString reports bytes/string types.
func IsByteArrayOrString(t Type) bool {
	arr, ok := t.(*ArrayType)
	return ok && arr.ByteArray
}

// LengthOfDictKey is the bit width used for t as a dictionary key.
func LengthOfDictKey(t Type) int {
	switch ty := t.(type) {
	case *IntegerType:
		return ty.Bits
	case *AddressType:
		return MaxAddressBitLength
	case *EnumType:
		return ty.Bits
	case *FixedBytesType:
		return 8 * ty.N
	case *ArrayType:
		if ty.ByteArray {
			return 256 // hashed
		}
	case *CellType:
		return 256 // hashed
	case *StructType:
		sum := 0
		for _, m := range ty.Members {
			sum += LengthOfDictKey(m.Type)
		}
		return sum
	}
	panic(fmt.Sprintf("internal: unsupported dict key type %s", t))
}

// KeyTypeOfArray is the index type of a dynamic array.
func KeyTypeOfArray() Type { return Uint(32) }

// KeyTypeOfC4 is the key type of the deployment data dictionary.
func KeyTypeOfC4() Type { return Uint(64) }

// MaxBitLengthOfDictValue bounds the serialized width of t as a
// dictionary value.
func MaxBitLengthOfDictValue(t Type) int {
	switch ty := t.(type) {
	case *EnumType, *IntegerType, *BoolType, *FixedBytesType, *FixedPointType:
		return NewTypeInfo(t).NumBits
	case *AddressType, *ContractType:
		return MaxAddressBitLength
	case *ArrayType:
		if ty.ByteArray {
			return 0
		}
		return 32 + 1
	case *MappingType, *OptionalType:
		return 1
	case *VarIntegerType:
		return integerLog2(ty.N) + 8*ty.N
	case *CellType:
		return 0
	case *StructType:
		sum := 0
		for _, m := range ty.Members {
			sum += MaxBitLengthOfDictValue(m.Type)
		}
		return sum
	case *FunctionValueType:
		return 32
	}
	panic(fmt.Sprintf("internal: unsupported dict value type %s", t))
}

// MaxBitLength bounds the serialized width of t for the ABI layout
// decision "inline if the running offset plus the max bit-length fits
// in one cell".
func MaxBitLength(t Type) int {
	switch ty := t.(type) {
	case *IntegerType, *BoolType, *EnumType, *FixedBytesType, *FixedPointType:
		return NewTypeInfo(t).NumBits
	case *AddressType, *ContractType:
		return MaxAddressBitLength
	case *VarIntegerType:
		return integerLog2(ty.N) + 8*ty.N
	case *ArrayType:
		if ty.ByteArray {
			return 0 // stored as a reference
		}
		return 32 + 1
	case *MappingType:
		return 1
	case *OptionalType:
		return 1 + MaxBitLength(ty.Value)
	case *FunctionValueType:
		return 32
	case *CellType, *SliceType:
		return 0
	case *StructType:
		sum := 0
		for _, m := range ty.Members {
			sum += MaxBitLength(m.Type)
		}
		return sum
	case *TupleType:
		sum := 0
		for _, c := range ty.Components {
			sum += MaxBitLength(c)
		}
		return sum
	}
	panic(fmt.Sprintf("internal: no bit bound for type %s", t))
}

// MaxRefLength bounds the references consumed by one value.
func MaxRefLength(t Type) int {
	switch ty := t.(type) {
	case *CellType, *SliceType:
		return 1
	case *ArrayType:
		if ty.ByteArray {
			return 1
		}
		return 1
	case *MappingType:
		return 1
	case *OptionalType:
		return 1 + MaxRefLength(ty.Value)
	case *StructType:
		sum := 0
		for _, m := range ty.Members {
			sum += MaxRefLength(m.Type)
		}
		return sum
	}
	return 0
}

// OptValueAsTuple reports whether an optional's value must be boxed
// in a single-element tuple to distinguish it from null.
func OptValueAsTuple(t Type) bool {
	switch t.Category() {
	case CatOptional, CatMapping:
		return true
	}
	return false
}

// IsSmallOptional reports whether the optional's value fits inline in
// the holding cell.
func IsSmallOptional(t *OptionalType) bool {
	return MaxBitLength(t.Value) <= CellBitLength-1
}

func integerLog2(n int) int {
	r := 0
	for 1<<r < n {
		r++
	}
	return r
}

// StoreIntegralOrAddress returns the builder mnemonic storing t.
func StoreIntegralOrAddress(t Type, reverse bool) string {
	ti := NewTypeInfo(t)
	assert(ti.IsNumeric, "store of non-numeric type %s", t)
	cmd := "STU"
	if ti.IsSigned {
		cmd = "STI"
	}
	if reverse {
		cmd += "R"
	}
	return fmt.Sprintf("%s %d", cmd, ti.NumBits)
}
