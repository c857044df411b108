package compiler

// Dictionary operations. The hashmap primitives have asymmetric
// return arities, so every sequence is wrapped in an opaque block
// with a declared effect.

// DataType describes how a dictionary value travels on the stack.
type DataType int

const (
	DataBuilder DataType = iota
	DataCell
	DataSlice
)

// GetDictOperation selects the failure behaviour of a lookup.
type GetDictOperation int

const (
	// GetFromMapping yields the stored value or the type's default.
	GetFromMapping GetDictOperation = iota
	// FetchFromMapping yields the stored value or null.
	FetchFromMapping
	// ExistInMapping yields only the success flag.
	ExistInMapping
)

// SetDictOperation selects the store primitive.
type SetDictOperation int

const (
	SetDict SetDictOperation = iota
	AddDict
	ReplaceDict
)

// dictKeyPrefix selects the signed/unsigned/slice key families.
func dictKeyPrefix(key Type) string {
	if it, ok := key.(*IntegerType); ok {
		if it.Signed {
			return "I"
		}
		return "U"
	}
	if _, ok := key.(*EnumType); ok {
		return "U"
	}
	return ""
}

// DoesFitInOneCellAndHaveNoStruct reports that a (key, value) entry
// fits a single cell.
func DoesFitInOneCellAndHaveNoStruct(key, value Type) bool {
	return MaxHashMapInfoAboutKey+LengthOfDictKey(key)+MaxBitLengthOfDictValue(value) < CellBitLength
}

// DoesDictStoreValueInRef reports that the value lives in a child
// cell rather than inline in the fork cell.
func DoesDictStoreValueInRef(key, value Type) bool {
	switch v := value.(type) {
	case *CellType:
		return true
	case *SliceType:
		return false
	case *ArrayType:
		if v.ByteArray {
			return true
		}
		return !DoesFitInOneCellAndHaveNoStruct(key, value)
	default:
		return !DoesFitInOneCellAndHaveNoStruct(key, value)
	}
}

// PrepareKeyForDictOperations normalizes a key value on the stack for
// the hashmap primitives.
func (p *StackPusher) PrepareKeyForDictOperations(key Type, doIgnoreBytes bool) {
	if IsByteArrayOrString(key) || key.Category() == CatCell {
		if !doIgnoreBytes {
			p.Push(-1+1, "HASHCU")
		}
		return
	}
	if st, ok := key.(*StructType); ok {
		p.tupleToBuilder(st.Members)
		p.Push(0, "ENDC")
		p.Push(0, "CTOS")
	}
}

// decodeType mirrors the recovery modes after a hashmap primitive.
type decodeType int

const (
	decodeValue decodeType = iota
	decodeValueOrPushDefault
	decodeValueOrPushNull
	pushNullOrDecodeValue
)

// recoverValueAfterDictOperation normalizes the lookup result.
// Emitted in opaque mode only.
func (p *StackPusher) recoverValueAfterDictOperation(
	key, value Type,
	haveKey bool,
	didUseOpcodeWithRef bool,
	dt decodeType,
	saveOrigKeyAndNoTuple bool,
) {
	assert(p.HasLock(), "dict recovery outside opaque mode")
	isValueStruct := value.Category() == CatStruct
	pushRefCont := isValueStruct && !didUseOpcodeWithRef && !DoesDictStoreValueInRef(key, value)

	preloadValue := func() {
		if haveKey {
			// stack: value key
			if saveOrigKeyAndNoTuple {
				p.PushS(0) // value key key
			}
			if st, ok := key.(*StructType); ok {
				p.convertSliceToTuple(st.Members)
			}
			if saveOrigKeyAndNoTuple {
				p.Rot()
			} else {
				p.Exchange(1)
			}
		}
		// stack: [key...] value
		genericPreload := func() {
			pushCallRef := false
			if didUseOpcodeWithRef {
				p.Push(0, "CTOS")
				pushCallRef = true
			} else if DoesDictStoreValueInRef(key, value) {
				p.Push(0, "PLDREF")
				p.Push(0, "CTOS")
				pushCallRef = true
			}
			pushCallRef = pushCallRef && isValueStruct
			if pushCallRef {
				p.StartContinuation()
			}
			p.Preload(value)
			if pushCallRef {
				p.CallRef(1, 1)
			}
		}
		switch v := value.(type) {
		case *AddressType, *ContractType, *SliceType:
			if didUseOpcodeWithRef {
				p.Push(0, "CTOS")
			} else if DoesDictStoreValueInRef(key, value) {
				p.Push(0, "PLDREF")
				p.Push(0, "CTOS")
			}
		case *CellType:
			if !didUseOpcodeWithRef {
				p.Push(0, "PLDREF")
			}
		case *ArrayType:
			if v.ByteArray {
				if !didUseOpcodeWithRef {
					p.Push(0, "PLDREF")
				}
			} else {
				genericPreload()
			}
		default:
			genericPreload()
		}
	}

	checkOnMappingOrOptional := func() {
		if OptValueAsTuple(value) {
			p.Tuple(1)
		}
	}

	switch dt {
	case decodeValue:
		if pushRefCont {
			p.StartContinuation()
		}
		preloadValue()
		if pushRefCont {
			p.CallRef(1, 1)
		}

	case decodeValueOrPushDefault:
		p.StartContinuation()
		preloadValue()
		if pushRefCont {
			p.EndContinuationFromRef()
		} else {
			p.EndContinuation()
		}

		hasEmptyPushCont := p.TryPollEmptyPushCont()
		p.StartContinuation()
		p.PushDefaultValue(value, false)
		if pushRefCont {
			p.EndContinuationFromRef()
		} else {
			p.EndContinuation()
		}

		if hasEmptyPushCont {
			p.IfNot()
		} else {
			p.IfElse(false)
		}

	case decodeValueOrPushNull:
		if !saveOrigKeyAndNoTuple {
			p.PushAsym("NULLSWAPIFNOT")
		}

		p.StartContinuation()
		preloadValue()
		if haveKey {
			if !saveOrigKeyAndNoTuple {
				p.Tuple(2)
			}
		} else {
			checkOnMappingOrOptional()
		}
		if isValueStruct {
			p.EndContinuationFromRef()
		} else {
			p.EndContinuation()
		}

		if saveOrigKeyAndNoTuple {
			p.StartContinuation()
			p.Push(1, "NULL")
			p.Push(1, "NULL")
			p.Push(1, "NULL")
			p.FixStack(-3)
			p.EndContinuation()
			p.IfElse(false)
		} else {
			p.If()
		}

	case pushNullOrDecodeValue:
		p.PushAsym("NULLSWAPIF")
		p.StartContinuation()
		preloadValue()
		checkOnMappingOrOptional()
		p.EndContinuation()
		p.IfNot()
	}
}

// GetDict looks up the key on the stack in the dictionary above it.
// Stack: key dict → result.
func (p *StackPusher) GetDict(key, value Type, op GetDictOperation) {
	keyLen := LengthOfDictKey(key)
	useRef := DoesDictStoreValueInRef(key, value)

	cmd := "DICT" + dictKeyPrefix(key) + "GET"
	if useRef {
		cmd += "REF"
	}

	p.PushSmallInt(keyLen)
	p.StartOpaque()
	switch op {
	case ExistInMapping:
		p.PushAsym(cmd)
		p.StartContinuation()
		p.Drop(1)
		p.Push(1, "TRUE")
		p.FixStack(-1)
		p.EndContinuation()
		p.StartContinuation()
		p.Push(1, "FALSE")
		p.FixStack(-1)
		p.EndContinuation()
		p.IfElse(false)
	case GetFromMapping:
		p.PushAsym(cmd)
		p.recoverValueAfterDictOperation(key, value, false, useRef, decodeValueOrPushDefault, false)
	case FetchFromMapping:
		p.PushAsym(cmd)
		p.recoverValueAfterDictOperation(key, value, false, useRef, decodeValueOrPushNull, false)
	}
	p.EndOpaque(3, 1, false)
}

// DictMinMax pops a dictionary and leaves the extreme entry as
// (privateKey, publicKey, value), or three nulls when empty.
func (p *StackPusher) DictMinMax(key, value Type, isMin bool) {
	keyLen := LengthOfDictKey(key)
	useRef := DoesDictStoreValueInRef(key, value)

	op := "MAX"
	if isMin {
		op = "MIN"
	}
	cmd := "DICT" + dictKeyPrefix(key) + op
	if useRef {
		cmd += "REF"
	}

	p.PushSmallInt(keyLen)
	p.StartOpaque()
	p.PushAsym(cmd)
	p.recoverValueAfterDictOperation(key, value, true, useRef, decodeValueOrPushNull, true)
	p.EndOpaque(2, 3, false)
}

// DictPrevNext advances the iteration key. Stack: key dict nbits →
// (privateKey, publicKey, value) or three nulls.
func (p *StackPusher) DictPrevNext(key, value Type, next bool) {
	op := "GETPREV"
	if next {
		op = "GETNEXT"
	}
	cmd := "DICT" + dictKeyPrefix(key) + op

	p.StartOpaque()
	p.PushAsym(cmd)
	p.recoverValueAfterDictOperation(key, value, true, false, decodeValueOrPushNull, true)
	p.EndOpaque(3, 3, false)
}

// PrepareValueForDictOperations normalizes the value on top of the
// stack into the representation the store primitive expects.
func (p *StackPusher) PrepareValueForDictOperations(key, value Type, isValueBuilder bool) DataType {
	switch v := value.(type) {
	case *SliceType:
		if isValueBuilder {
			return DataBuilder
		}
		return DataSlice

	case *AddressType, *ContractType:
		if !DoesFitInOneCellAndHaveNoStruct(key, value) {
			assert(!isValueBuilder, "address builder in ref")
			p.Push(1, "NEWC")
			p.Push(-1, "STSLICE")
			p.Push(0, "ENDC")
			return DataCell
		}
		if isValueBuilder {
			return DataBuilder
		}
		return DataSlice

	case *ArrayType:
		if v.ByteArray {
			if isValueBuilder {
				p.Push(-1+1, "ENDC")
			}
			return DataCell
		}
		if !isValueBuilder {
			p.Push(1, "NEWC")
			p.Store(value, false)
		}
		if !DoesFitInOneCellAndHaveNoStruct(key, value) {
			p.Push(1, "NEWC")
			p.Push(-1, "STBREF")
		}
		return DataBuilder

	case *StructType:
		if !isValueBuilder {
			p.tupleToBuilder(v.Members)
		}
		if !DoesFitInOneCellAndHaveNoStruct(key, value) {
			p.Push(0, "ENDC")
			return DataCell
		}
		return DataBuilder

	case *CellType:
		if isValueBuilder {
			p.Push(0, "ENDC")
		}
		return DataCell

	default:
		if !isValueBuilder {
			p.Push(1, "NEWC")
			p.Store(value, false)
		}
		if !DoesFitInOneCellAndHaveNoStruct(key, value) {
			p.Push(1, "NEWC")
			p.Push(-1, "STBREF")
		}
		return DataBuilder
	}
}

// SetDictValue stores into the dictionary. Stack: value key dict →
// dict'.
func (p *StackPusher) SetDictValue(key, value Type, data DataType, op SetDictOperation) {
	keyLen := LengthOfDictKey(key)

	var opName string
	switch op {
	case SetDict:
		opName = "SET"
	case AddDict:
		opName = "ADD"
	case ReplaceDict:
		opName = "REPLACE"
	}
	cmd := "DICT" + dictKeyPrefix(key) + opName
	switch data {
	case DataBuilder:
		cmd += "B"
	case DataCell:
		cmd += "REF"
	case DataSlice:
	}

	p.PushSmallInt(keyLen)
	switch op {
	case SetDict:
		p.Push(-4+1, cmd)
	case AddDict, ReplaceDict:
		p.StartOpaque()
		p.PushAsym(cmd)
		p.Drop(1)
		p.EndOpaque(4, 1, false)
	}
}
