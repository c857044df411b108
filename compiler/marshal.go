package compiler

import (
	"fmt"
	"math/big"

	"github.com/likenty/tvmc/tvm"
)

// Marshalling between stack values and cell builders/slices. The
// conventions follow the storage layer: loads work on a slice cursor,
// stores fold values into a builder.

// FastLoad reads one value of the given type from the slice on top of
// the stack. The result order depends on the type: true means the
// value ended up under the slice ("value slice"), false means
// "slice value".
func (p *StackPusher) FastLoad(t Type) bool {
	switch ty := t.(type) {
	case *OptionalType:
		p.StartOpaque()
		saved := p.StackSize()

		loadValue := func(reverseOrder bool) {
			if IsSmallOptional(ty) {
				p.Load(ty.Value, reverseOrder)
			} else {
				p.Push(-1+2, "LDREFRTOS")
				inner := ty.Value
				switch it := inner.(type) {
				case *StructType:
					p.convertSliceToTuple(it.Members)
				case *TupleType:
					p.convertSliceToTuple(tupleMembers(it))
				default:
					panic("internal: large optional over scalar")
				}
				if !reverseOrder {
					p.Exchange(1)
				}
			}
		}

		p.Push(1, "LDI 1") // hasValue slice
		p.Exchange(1)      // slice hasValue
		p.FixStack(-1)

		p.StartContinuation()
		if OptValueAsTuple(ty.Value) {
			loadValue(true)
			p.Tuple(1)
			p.Exchange(1)
		} else {
			loadValue(false)
		}
		p.EndContinuation()
		p.FixStack(-1)
		if !p.HasLock() {
			p.EnsureSize(saved, "fastLoad optional")
		}

		p.StartContinuation()
		p.PushNull()
		p.Exchange(1)
		p.EndContinuation()
		p.FixStack(-1)

		p.IfElse(false)
		p.FixStack(1)
		p.EndOpaque(1, 2, false)
		return true

	case *TupleType:
		for _, c := range ty.Components {
			p.Load(c, false)
		}
		p.BlockSwap(len(ty.Components), 1)
		p.Tuple(len(ty.Components))
		return false

	case *CellType:
		p.Push(-1+2, "LDREF")
		return true

	case *StructType:
		for _, m := range ty.Members {
			p.Load(m.Type, false)
		}
		p.BlockSwap(len(ty.Members), 1)
		p.Tuple(len(ty.Members))
		p.Exchange(1)
		return true

	case *AddressType, *ContractType:
		p.Push(-1+2, "LDMSGADDR")
		return true

	case *EnumType, *IntegerType, *BoolType, *FixedPointType, *FixedBytesType:
		ti := NewTypeInfo(t)
		assert(ti.IsNumeric, "expected numeric type")
		cmd := "LDU"
		if ti.IsSigned {
			cmd = "LDI"
		}
		p.Push(-1+2, fmt.Sprintf("%s %d", cmd, ti.NumBits))
		return true

	case *FunctionValueType:
		p.Push(-1+2, "LDU 32")
		return true

	case *ArrayType:
		if ty.ByteArray {
			p.Push(-1+2, "LDREF")
			return true
		}
		p.Push(-1+2, "LDU 32")
		p.Push(-1+2, "LDDICT")
		p.RotRev()
		p.Push(-2+1, "PAIR")
		return false

	case *MappingType:
		p.Push(-1+2, "LDDICT")
		return true
	}
	panic(fmt.Sprintf("internal: load of unsupported type %s", t))
}

// Load reads one value; reverseOrder selects "slice value" (true)
// or "value slice" (false) on exit.
func (p *StackPusher) Load(t Type, reverseOrder bool) {
	directOrder := p.FastLoad(t)
	if directOrder == reverseOrder {
		p.Exchange(1)
	}
}

// Preload reads one value, discarding the rest of the slice.
func (p *StackPusher) Preload(t Type) {
	saved := p.StackSize()
	switch ty := t.(type) {
	case *OptionalType:
		p.Load(t, false)
		p.Drop(1)
	case *AddressType, *ContractType:
		p.Push(-1+2, "LDMSGADDR")
		p.Drop(1)
	case *CellType:
		p.Push(0, "PLDREF")
	case *StructType:
		p.convertSliceToTuple(ty.Members)
	case *IntegerType, *EnumType, *BoolType, *FixedPointType, *FixedBytesType:
		ti := NewTypeInfo(t)
		assert(ti.IsNumeric, "expected numeric type")
		cmd := "PLDU"
		if ti.IsSigned {
			cmd = "PLDI"
		}
		p.Push(-1+1, fmt.Sprintf("%s %d", cmd, ti.NumBits))
	case *FunctionValueType:
		p.Push(-1+1, "PLDU 32")
	case *ArrayType:
		if ty.ByteArray {
			p.Push(0, "PLDREF")
		} else {
			p.Push(-1+2, "LDU 32")
			p.Push(-1+1, "PLDDICT")
			p.Push(-2+1, "PAIR")
		}
	case *MappingType:
		p.Push(-1+1, "PLDDICT")
	case *VarIntegerType:
		p.Push(-1+2, "LDVARUINT32")
		p.Drop(1)
	case *TupleType:
		p.convertSliceToTuple(tupleMembers(ty))
	default:
		panic(fmt.Sprintf("internal: decode is not supported for %s", t))
	}
	p.EnsureSize(saved, "preload")
}

// Store folds the value into the builder. With reverse false the
// stack is "value builder", with reverse true "builder value".
func (p *StackPusher) Store(t Type, reverse bool) {
	saved := p.StackSize()
	switch ty := t.(type) {
	case *OptionalType:
		p.StartOpaque()
		if !reverse {
			p.Exchange(1) // builder value
		}
		p.PushS(0)
		p.Push(-1+1, "ISNULL")
		p.FixStack(-1)

		p.StartContinuation()
		p.Drop(1)
		p.StZeroes(1)
		p.EndContinuation()
		p.FixStack(1)

		p.StartContinuation()
		switch ty.Value.Category() {
		case CatOptional, CatMapping:
			p.Untuple(1)
		}
		if IsSmallOptional(ty) {
			p.Exchange(1)
			p.StOnes(1)
			p.Store(ty.Value, false)
		} else {
			switch it := ty.Value.(type) {
			case *TupleType:
				p.tupleToBuilder(tupleMembers(it))
			case *StructType:
				p.tupleToBuilder(it.Members)
			default:
				panic("internal: large optional over scalar")
			}
			p.Push(-2+1, "STBREFR")
			p.StOnes(1)
		}
		p.EndContinuation()
		p.FixStack(1)

		p.IfElse(false)
		p.EndOpaque(2, 1, false)

	case *CellType:
		if reverse {
			p.Push(-1, "STREFR")
		} else {
			p.Push(-1, "STREF")
		}

	case *StructType:
		if !reverse {
			p.Exchange(1)
		}
		// builder tuple
		p.Untuple(len(ty.Members))
		p.Reverse(len(ty.Members)+1, 0)
		for _, m := range ty.Members {
			p.Store(m.Type, false)
		}

	case *AddressType, *ContractType, *SliceType:
		if reverse {
			p.Push(-1, "STSLICER")
		} else {
			p.Push(-1, "STSLICE")
		}

	case *IntegerType, *EnumType, *BoolType, *FixedBytesType, *FixedPointType:
		p.Push(-1, StoreIntegralOrAddress(t, reverse))

	case *FunctionValueType:
		if reverse {
			p.Push(-1, "STUR 32")
		} else {
			p.Push(-1, "STU 32")
		}

	case *MappingType:
		if reverse {
			p.Exchange(1) // builder dict
		}
		// dict builder
		p.Push(-1, "STDICT")

	case *ArrayType:
		if ty.ByteArray {
			if reverse {
				p.Push(-1, "STREFR")
			} else {
				p.Push(-1, "STREF")
			}
		} else {
			if !reverse {
				p.Exchange(1) // builder arr
			}
			p.Push(-1+2, "UNPAIR") // builder size dict
			p.Exchange(2)          // dict size builder
			p.Push(-1, "STU 32")   // dict builder'
			p.Push(-1, "STDICT")   // builder''
		}

	case *BuilderType:
		if reverse {
			p.Push(-1, "STBR")
		} else {
			p.Push(-1, "STB")
		}

	case *TupleType:
		if !reverse {
			p.Exchange(1) // builder value
		}
		p.tupleToBuilder(tupleMembers(ty))
		p.Push(-2+1, "STBR")

	case *VarIntegerType:
		if !reverse {
			p.Exchange(1) // builder value
		}
		p.Push(-1, "STVARUINT32")

	default:
		panic(fmt.Sprintf("internal: encode is not supported for %s", t))
	}
	p.EnsureSize(saved-1, "store")
}

// convertSliceToTuple reads every member from the slice on top of the
// stack and packs them, dropping the cursor.
func (p *StackPusher) convertSliceToTuple(members []StructMember) {
	for _, m := range members {
		p.Load(m.Type, false)
	}
	p.Drop(1)
	p.Tuple(len(members))
}

// tupleToBuilder unpacks the tuple on top of the stack into a fresh
// builder holding all members.
func (p *StackPusher) tupleToBuilder(members []StructMember) {
	n := len(members)
	p.Untuple(n)
	if n >= 2 {
		p.Reverse(n, 0)
	}
	p.Push(1, "NEWC")
	for _, m := range members {
		p.Store(m.Type, false)
	}
}

func tupleMembers(t *TupleType) []StructMember {
	members := make([]StructMember, len(t.Components))
	for i, c := range t.Components {
		members[i] = StructMember{Name: fmt.Sprintf("value%d", i), Type: c}
	}
	return members
}

// PushZeroAddress pushes addr_std with a zero account id.
func (p *StackPusher) PushZeroAddress() {
	p.Push(1, "PUSHSLICE x8000000000000000000000000000000000000000000000000000000000000000001_")
}

// StZeroes appends qty zero bits to the builder on top of the stack.
func (p *StackPusher) StZeroes(qty int) {
	if qty <= 0 {
		return
	}
	if qty == 1 {
		p.Push(0, "STSLICECONST 0")
		return
	}
	p.PushSmallInt(qty)
	p.Push(-1, "STZEROES")
}

// StOnes appends qty one bits to the builder on top of the stack.
func (p *StackPusher) StOnes(qty int) {
	if qty <= 0 {
		return
	}
	if qty == 1 {
		p.Push(0, "STSLICECONST 1")
		return
	}
	p.PushSmallInt(qty)
	p.Push(-1, "STONES")
}

// CheckOptionalValue throws when the optional on top is null.
func (p *StackPusher) CheckOptionalValue() {
	p.Push(-1+1, "ISNULL")
	p.Throw(fmt.Sprintf("THROWIF %d", ExceptionGetOptional))
}

// PushDefaultValue materializes the zero value of t, optionally as a
// builder already holding it.
func (p *StackPusher) PushDefaultValue(t Type, isResultBuilder bool) {
	p.StartOpaque()
	switch ty := t.(type) {
	case *AddressType, *ContractType:
		p.PushZeroAddress()
		if isResultBuilder {
			p.Push(1, "NEWC")
			p.Push(-1, "STSLICE")
		}

	case *BoolType, *FixedBytesType, *IntegerType, *EnumType, *VarIntegerType:
		p.Push(1, "PUSHINT 0")
		if isResultBuilder {
			p.Push(1, "NEWC")
			p.Push(-1, StoreIntegralOrAddress(t, false))
		}

	case *ArrayType:
		if ty.ByteArray {
			if isResultBuilder {
				p.Push(1, "NEWC")
			} else {
				p.PushCellOrSlice(tvm.MakePUSHREF(""))
			}
			break
		}
		if !isResultBuilder {
			p.PushSmallInt(0)
			p.Push(1, "NEWDICT")
			p.Push(-2+1, "PAIR")
		} else {
			p.Push(1, "NEWC")
			p.PushSmallInt(33)
			p.Push(-1, "STZEROES")
		}

	case *CellType:
		if isResultBuilder {
			p.Push(1, "NEWC")
		} else {
			p.PushCellOrSlice(tvm.MakePUSHREF(""))
		}

	case *MappingType:
		if isResultBuilder {
			p.Push(1, "NEWC")
			p.StZeroes(1)
		} else {
			p.Push(1, "NEWDICT")
		}

	case *StructType:
		if isResultBuilder {
			p.Push(1, "NEWC")
			for _, m := range ty.Members {
				p.PushDefaultValue(m.Type, false)
				p.Store(m.Type, true)
			}
		} else {
			for _, m := range ty.Members {
				p.PushDefaultValue(m.Type, false)
			}
			p.Tuple(len(ty.Members))
		}

	case *SliceType:
		if isResultBuilder {
			p.Push(1, "NEWC")
		} else {
			p.Push(1, "PUSHSLICE x8_")
		}

	case *BuilderType:
		p.Push(1, "NEWC")

	case *FunctionValueType:
		assert(!isResultBuilder, "function default as builder")
		p.PushSmallInt(DefaultValueForFunctionType)

	case *OptionalType:
		p.Push(1, "NULL")

	case *FixedPointType:
		p.PushSmallInt(0)

	case *VectorType:
		p.Tuple(0)

	default:
		panic(fmt.Sprintf("internal: no default value for %s", t))
	}
	p.EndOpaque(0, 1, true)
}

// HardConvert coerces the value on top of the stack from rightType to
// leftType, materializing range checks for narrowing conversions.
func (p *StackPusher) HardConvert(leftType, rightType Type) {
	// opt(T) = T boxes the value
	if l, ok := leftType.(*OptionalType); ok && leftType.String() != rightType.String() {
		p.HardConvert(l.Value, rightType)
		if OptValueAsTuple(l.Value) {
			p.Tuple(1)
		}
		return
	}

	impl := implicitlyConvertible(leftType, rightType)

	switch r := rightType.(type) {
	case *FixedPointType:
		switch l := leftType.(type) {
		case *FixedPointType:
			powerDiff := l.FractionalDigits - r.FractionalDigits
			if powerDiff != 0 {
				if powerDiff > 0 {
					p.PushInt(pow10(powerDiff))
					p.Push(-2+1, "MUL")
				} else {
					p.PushInt(pow10(-powerDiff))
					p.Push(-2+1, "DIV")
				}
			}
			if !impl {
				p.CheckFit(leftType)
			}
		case *IntegerType:
			if r.FractionalDigits > 0 {
				p.PushInt(pow10(r.FractionalDigits))
				p.Push(-2+1, "DIV")
			}
			if !impl {
				p.CheckFit(leftType)
			}
		default:
			panic(fmt.Sprintf("internal: conversion %s <- %s", leftType, rightType))
		}

	case *IntegerType:
		switch l := leftType.(type) {
		case *FixedPointType:
			if l.FractionalDigits > 0 {
				p.PushInt(pow10(l.FractionalDigits))
				p.Push(-2+1, "MUL")
			}
			if !impl {
				p.CheckFit(leftType)
			}
		case *IntegerType:
			if !impl {
				p.CheckFit(leftType)
			}
		case *FixedBytesType:
			// compatible bit patterns
		default:
			// remaining conversions need no code
		}

	case *FixedBytesType:
		switch l := leftType.(type) {
		case *FixedBytesType:
			diff := 8 * (l.N - r.N)
			if diff > 0 {
				p.Push(0, fmt.Sprintf("LSHIFT %d", diff))
			} else if diff < 0 {
				p.Push(0, fmt.Sprintf("RSHIFT %d", -diff))
			}
		}

	case *ArrayType:
		if !r.ByteArray {
			return
		}
		if l, ok := leftType.(*FixedBytesType); ok {
			p.Push(0, "CTOS")
			p.Push(0, fmt.Sprintf("PLDU %d", 8*l.N))
		}

	case *StringLiteralType:
		switch l := leftType.(type) {
		case *FixedBytesType:
			value := new(big.Int)
			for _, c := range []byte(r.Value) {
				value.Mul(value, big.NewInt(256))
				value.Add(value, big.NewInt(int64(c)))
			}
			for i := len(r.Value); i < l.N; i++ {
				value.Mul(value, big.NewInt(256))
			}
			p.Drop(1)
			p.PushInt(value)
		}
	}
}

// CheckFit materializes a range check for t.
func (p *StackPusher) CheckFit(t Type) {
	switch ty := t.(type) {
	case *IntegerType:
		if ty.Signed {
			p.Push(0, fmt.Sprintf("FITS %d", ty.Bits))
		} else {
			p.Push(0, fmt.Sprintf("UFITS %d", ty.Bits))
		}
	case *FixedPointType:
		if ty.Signed {
			p.Push(0, fmt.Sprintf("FITS %d", ty.Bits))
		} else {
			p.Push(0, fmt.Sprintf("UFITS %d", ty.Bits))
		}
	default:
		panic(fmt.Sprintf("internal: no fit check for %s", t))
	}
}

func implicitlyConvertible(left, right Type) bool {
	l, lok := left.(*IntegerType)
	r, rok := right.(*IntegerType)
	if lok && rok {
		if l.Signed == r.Signed {
			return l.Bits >= r.Bits
		}
		if l.Signed && !r.Signed {
			return l.Bits > r.Bits
		}
		return false
	}
	return left.String() == right.String()
}

func pow10(power int) *big.Int {
	r := big.NewInt(1)
	ten := big.NewInt(10)
	for i := 0; i < power; i++ {
		r.Mul(r, ten)
	}
	return r
}
