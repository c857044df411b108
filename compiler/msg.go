package compiler

import (
	"math/big"
)

// Outbound message assembly. The header is produced by folding over
// the fixed field schedule in wire order: constant fields append a
// bit literal, runtime fields consume one stack value.

// MsgType selects the header family.
type MsgType int

const (
	MsgInternal MsgType = iota
	MsgExternalOut
	MsgExternalIn
)

// AppendToBuilder folds a constant bit string into the builder on top
// of the stack.
func (p *StackPusher) AppendToBuilder(bitString string) {
	if bitString == "" {
		return
	}
	zeroes := 0
	for _, c := range bitString {
		if c == '0' {
			zeroes++
		}
	}
	if zeroes == len(bitString) {
		p.StZeroes(len(bitString))
		return
	}
	hexStr := binaryStringToSlice(bitString)
	if len(hexStr)*4 <= 8*7+1 {
		p.Push(0, "STSLICECONST x"+hexStr)
	} else {
		p.Push(1, "PUSHSLICE x"+hexStr)
		p.Push(-1, "STSLICER")
	}
}

// intMsgInfo builds the internal message header. Returns the maximal
// bit size the header can occupy.
func (p *StackPusher) intMsgInfo(isParamOnStack map[int]bool, constParams map[int]string, isDestBuilder bool) int {
	// field widths, in wire order after the leading zero tag:
	// ihr_disabled, bounce, bounced, src(2), dest, value, currency,
	// ihr_fee, fwd_fee, created_lt, created_at
	zeroes := []int{1, 1, 1, 2, 2, 4, 1, 4, 4, 64, 32}
	bitString := "0"
	maxBitStringSize := 0
	p.Push(1, "NEWC")
	for param := 0; param < len(zeroes); param++ {
		assert(!(constParams[param] != "" && isParamOnStack[param]),
			"message field %d is both constant and dynamic", param)

		switch {
		case constParams[param] != "":
			bitString += constParams[param]
			maxBitStringSize += len(constParams[param])
		case !isParamOnStack[param]:
			for i := 0; i < zeroes[param]; i++ {
				bitString += "0"
			}
			maxBitStringSize += zeroes[param]
			assert(param != IntMsgDest, "destination must be supplied")
		default:
			p.AppendToBuilder(bitString)
			bitString = ""
			switch param {
			case IntMsgBounce:
				p.Push(-1, "STI 1")
				maxBitStringSize++
			case IntMsgDest:
				if isDestBuilder {
					p.Push(-1, "STB")
				} else {
					p.Push(-1, "STSLICE")
				}
				maxBitStringSize += MaxAddressBitLength
			case IntMsgTons:
				p.Exchange(1)
				p.Push(-1, "STGRAMS")
				maxBitStringSize += MaxTonBitLength
			case IntMsgCurrency:
				p.Push(-1, "STDICT")
				maxBitStringSize++
			default:
				panic("internal: unexpected runtime message field")
			}
		}
	}
	p.AppendToBuilder(bitString)
	return maxBitStringSize
}

// extMsgInfo builds the external message header; isOut selects the
// external-out layout.
func (p *StackPusher) extMsgInfo(isParamOnStack map[int]bool, isOut bool) int {
	zeroes := []int{2, 2}
	if isOut {
		zeroes = append(zeroes, 64, 32)
	} else {
		zeroes = append(zeroes, 4)
	}
	bitString := "10"
	if isOut {
		bitString = "11"
	}
	maxBitStringSize := 0
	p.Push(1, "NEWC")
	for param := 0; param < len(zeroes); param++ {
		if !isParamOnStack[param] {
			for i := 0; i < zeroes[param]; i++ {
				bitString += "0"
			}
			continue
		}
		maxBitStringSize += len(bitString)
		p.AppendToBuilder(bitString)
		bitString = ""
		switch param {
		case ExtMsgDest:
			p.Push(-1, "STSLICE")
			maxBitStringSize += MaxAddressBitLength
		case ExtMsgSrc:
			p.Push(-1, "STB")
			maxBitStringSize += ExtInboundSrcLength
		default:
			panic("internal: unexpected runtime message field")
		}
	}
	maxBitStringSize += len(bitString)
	p.AppendToBuilder(bitString)
	return maxBitStringSize
}

// PrepareMsg assembles an outbound message cell. Runtime header
// fields are taken from the stack; appendBody receives the
// accumulated bit length so it can decide between an inline body and
// a reference cell.
func (p *StackPusher) PrepareMsg(
	isParamOnStack map[int]bool,
	constParams map[int]string,
	appendBody func(builderSize int),
	appendStateInit func(),
	messageType MsgType,
	isDestBuilder bool,
) {
	var msgInfoSize int
	switch messageType {
	case MsgInternal:
		msgInfoSize = p.intMsgInfo(isParamOnStack, constParams, isDestBuilder)
	case MsgExternalOut:
		msgInfoSize = p.extMsgInfo(isParamOnStack, true)
	case MsgExternalIn:
		msgInfoSize = p.extMsgInfo(isParamOnStack, false)
	}
	// stack: builder

	if appendStateInit != nil {
		p.AppendToBuilder("1")
		appendStateInit()
		msgInfoSize++
	} else {
		p.AppendToBuilder("0") // no StateInit
	}

	msgInfoSize++

	if appendBody != nil {
		appendBody(msgInfoSize)
	} else {
		p.AppendToBuilder("0") // no body
	}

	p.Push(0, "ENDC")
}

// SendMsg assembles and sends an outbound message.
func (p *StackPusher) SendMsg(
	isParamOnStack map[int]bool,
	constParams map[int]string,
	appendBody func(builderSize int),
	appendStateInit func(),
	pushSendrawmsgFlag func(),
	messageType MsgType,
) {
	p.PrepareMsg(isParamOnStack, constParams, appendBody, appendStateInit, messageType, false)
	if pushSendrawmsgFlag != nil {
		pushSendrawmsgFlag()
	} else {
		p.PushInt(big.NewInt(SendRawMsgDefaultFlag))
	}
	p.SendRawMsg()
}
