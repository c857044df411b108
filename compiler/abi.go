package compiler

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// ABI encoding and decoding of value sequences over cell trees. The
// layout is prefix-then-refs: a value is written inline while the
// running offset plus its maximal bit length fits in a single cell,
// otherwise a new reference branch is opened.

// ReasonOfOutboundMessage tags why a function id is being computed.
type ReasonOfOutboundMessage int

const (
	RemoteCallInternal ReasonOfOutboundMessage = iota
	FunctionReturnExternal
	EmitEventExternal
)

// EncodePosition tracks the running bit and reference offsets of the
// prefix-then-refs layout.
type EncodePosition struct {
	restBits int
	restRefs int
}

// NewEncodePosition starts a layout after bitOffset bits of header.
func NewEncodePosition(bitOffset int) *EncodePosition {
	return &EncodePosition{restBits: CellBitLength - bitOffset, restRefs: 3}
}

// Fits consumes space for t, reporting false when a fresh cell must
// be opened first.
func (e *EncodePosition) Fits(t Type) bool {
	bits := MaxBitLength(t)
	refs := MaxRefLength(t)
	if bits <= e.restBits && refs <= e.restRefs {
		e.restBits -= bits
		e.restRefs -= refs
		return true
	}
	e.restBits = CellBitLength - bits
	e.restRefs = 3 - refs
	return false
}

// ChainDataEncoder writes typed values into builders.
type ChainDataEncoder struct {
	pusher *StackPusher
}

// NewChainDataEncoder builds an encoder over pusher.
func NewChainDataEncoder(pusher *StackPusher) *ChainDataEncoder {
	return &ChainDataEncoder{pusher: pusher}
}

// EncodeParameters folds values into the builder on top of the
// stack. The values sit under the builder, first value nearest to
// it. Overflowing values open reference branches that are folded
// back with STBREFR.
func (e *ChainDataEncoder) EncodeParameters(types []Type, position *EncodePosition) {
	p := e.pusher
	builderQty := 1
	for _, t := range types {
		if !position.Fits(t) {
			p.Push(1, "NEWC")
			builderQty++
		}
		p.Store(t, false)
	}
	for i := 0; i < builderQty-1; i++ {
		p.Push(-1, "STBREFR")
	}
}

// CreateMsgBodyAndAppendToBuilder appends the message body to the
// builder on top of the stack: a body-location bit, the 32-bit
// function id and the encoded parameters. pushFunctionID pushes a
// runtime id; when nil the constant id is used.
func (e *ChainDataEncoder) CreateMsgBodyAndAppendToBuilder(
	params []*VariableDeclaration,
	functionID uint32,
	pushFunctionID func(),
	builderSize int,
) {
	p := e.pusher
	types := make([]Type, len(params))
	maxBits := 32
	for i, v := range params {
		types[i] = v.Type
		maxBits += MaxBitLength(v.Type)
	}

	inline := builderSize+1+maxBits <= CellBitLength
	if inline {
		p.AppendToBuilder("0")
		position := NewEncodePosition(builderSize + 1 + 32)
		e.storeFunctionID(functionID, pushFunctionID)
		e.EncodeParameters(types, position)
		return
	}

	// body overflows into a reference cell
	p.AppendToBuilder("1")
	p.Push(1, "NEWC")
	position := NewEncodePosition(32)
	e.storeFunctionID(functionID, pushFunctionID)
	e.EncodeParameters(types, position)
	p.Push(-1, "STBREFR")
}

func (e *ChainDataEncoder) storeFunctionID(functionID uint32, pushFunctionID func()) {
	p := e.pusher
	if pushFunctionID != nil {
		pushFunctionID()
	} else {
		p.Push(1, fmt.Sprintf("PUSHINT %d", functionID))
	}
	p.Push(-1, "STUR 32")
}

// CalculateFunctionID computes the 32-bit stable hash of a public
// function signature.
func CalculateFunctionID(name string, inputs, outputs []Type, reason ReasonOfOutboundMessage) uint32 {
	sig := functionSignature(name, inputs, outputs)
	sum := sha256.Sum256([]byte(sig))
	id := binary.BigEndian.Uint32(sum[:4]) & 0x7FFFFFFF
	if reason == FunctionReturnExternal {
		id |= 0x80000000
	}
	return id
}

// CalculateFunctionIDForFunction derives the id from a function
// definition.
func CalculateFunctionIDForFunction(f *FunctionDefinition, reason ReasonOfOutboundMessage) uint32 {
	inputs := make([]Type, len(f.Params))
	for i, p := range f.Params {
		inputs[i] = p.Type
	}
	outputs := make([]Type, len(f.RetParams))
	for i, p := range f.RetParams {
		outputs[i] = p.Type
	}
	return CalculateFunctionID(FunctionExternalName(f), inputs, outputs, reason)
}

// CalculateEventID derives the id of an event message.
func CalculateEventID(event *EventDefinition) uint32 {
	inputs := make([]Type, len(event.Params))
	for i, p := range event.Params {
		inputs[i] = p.Type
	}
	return CalculateFunctionID(event.Name, inputs, nil, EmitEventExternal)
}

// CalculateConstructorFunctionID is the id of the implicit
// constructor.
func CalculateConstructorFunctionID() uint32 {
	return CalculateFunctionID("constructor", nil, nil, RemoteCallInternal)
}

func functionSignature(name string, inputs, outputs []Type) string {
	ins := make([]string, len(inputs))
	for i, t := range inputs {
		ins[i] = abiTypeName(t)
	}
	outs := make([]string, len(outputs))
	for i, t := range outputs {
		outs[i] = abiTypeName(t)
	}
	return name + "(" + strings.Join(ins, ",") + ")(" + strings.Join(outs, ",") + ")v2"
}

func abiTypeName(t Type) string {
	switch ty := t.(type) {
	case *IntegerType, *BoolType, *AddressType, *FixedBytesType, *FixedPointType, *VarIntegerType:
		return t.String()
	case *ArrayType:
		if ty.IsString {
			return "string"
		}
		if ty.ByteArray {
			return "bytes"
		}
		return abiTypeName(ty.Base) + "[]"
	case *MappingType:
		return fmt.Sprintf("map(%s,%s)", abiTypeName(ty.Key), abiTypeName(ty.Value))
	case *CellType:
		return "cell"
	case *StructType:
		parts := make([]string, len(ty.Members))
		for i, m := range ty.Members {
			parts[i] = abiTypeName(m.Type)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case *OptionalType:
		return fmt.Sprintf("optional(%s)", abiTypeName(ty.Value))
	case *FunctionValueType:
		return "uint32"
	case *EnumType:
		return fmt.Sprintf("uint%d", ty.Bits)
	}
	return t.String()
}

// DecodePosition tracks decoding progress through the cell chain.
type DecodePosition struct {
	restBits int
	restRefs int
}

// NewDecodePosition starts after bitOffset bits of already consumed
// header.
func NewDecodePosition(bitOffset int) *DecodePosition {
	return &DecodePosition{restBits: CellBitLength - bitOffset, restRefs: 3}
}

// NeedsNextCell consumes space for t, reporting true when decoding
// must first follow the reference chain into the next cell.
func (d *DecodePosition) NeedsNextCell(t Type) bool {
	bits := MaxBitLength(t)
	refs := MaxRefLength(t)
	if bits <= d.restBits && refs <= d.restRefs {
		d.restBits -= bits
		d.restRefs -= refs
		return false
	}
	d.restBits = CellBitLength - bits
	d.restRefs = 3 - refs
	return true
}

// ChainDataDecoder reads typed values from slices.
type ChainDataDecoder struct {
	pusher *StackPusher
}

// NewChainDataDecoder builds a decoder over pusher.
func NewChainDataDecoder(pusher *StackPusher) *ChainDataDecoder {
	return &ChainDataDecoder{pusher: pusher}
}

// loadNextCell follows the tail reference of the current slice.
func (d *ChainDataDecoder) loadNextCell() {
	p := d.pusher
	p.Push(-1+2, "LDREF")
	p.Push(-1, "ENDS")
	p.Push(0, "CTOS")
}

// DecodeData reads the value sequence from the slice on top of the
// stack, leaving the values in order with the slice consumed.
func (d *ChainDataDecoder) DecodeData(types []Type, bitOffset int) {
	p := d.pusher
	position := NewDecodePosition(bitOffset)
	for _, t := range types {
		if position.NeedsNextCell(t) {
			d.loadNextCell()
		}
		p.Load(t, false)
	}
	p.Push(-1, "ENDS")
}

// DecodePublicFunctionParameters reads call arguments from the
// message body slice. For responsible calls the callback id has
// already been consumed.
func (d *ChainDataDecoder) DecodePublicFunctionParameters(types []Type, isResponsible bool) {
	offset := 32 // function id
	if isResponsible {
		offset += 32
	}
	d.DecodeData(types, offset)
}
