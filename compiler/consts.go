// Package compiler lowers a decorated contract-language syntax tree
// into Target-VM assembly. It hosts the stack-tracking emitter, the
// function and entry-point lowering passes, the ABI coders and the
// table of implicit global identifiers.
package compiler

// C7 register layout: well-known slots of the ephemeral tuple that
// holds decoded state during a transaction.
const (
	C7TvmPubkey       = 2
	C7ReplayProtTime  = 3
	C7ReturnParams    = 4
	C7SenderAddress   = 5
	C7MsgPubkey       = 6
	C7AwaitAnswerId   = 7
	C7ConstructorFlag = 8

	// C7FirstIndexForVariables is the base slot above which state
	// variables live.
	C7FirstIndexForVariables = 9
)

// ReturnParams tuple layout for responsible calls.
const (
	RetParamBounce             = 1
	RetParamValue              = 2
	RetParamCurrencies         = 3
	RetParamFlag               = 4
	RetParamCallbackFunctionId = 5
)

// C4PersistenceMembersStartIndex is the first dictionary key used for
// static variables in the deployment data cell.
const C4PersistenceMembersStartIndex = 1

// Runtime exception codes thrown by generated code.
const (
	ExceptionBadSignature             = 40
	ExceptionConstructorCalledTwice   = 51
	ExceptionReplayProtection         = 52
	ExceptionAddressUnpack            = 53
	ExceptionPopFromEmptyArray        = 54
	ExceptionNoPubkeyInC4             = 55
	ExceptionMessageIsExpired         = 57
	ExceptionMsgHasNoSignButHasPubkey = 58
	ExceptionCallBeforeCtorCall       = 59
	ExceptionNoFallback               = 60
	ExceptionGetOptional              = 63
	ExceptionByExtMsgOnly             = 71
	ExceptionByIntMsgOnly             = 72
	ExceptionWrongAwaitAddress        = 77
)

// Control-flow flags pushed by return, break and continue when a
// tail-jmp form is not possible; zero means fall-through.
const (
	ContinueFlag = 1
	BreakFlag    = 2
	ReturnFlag   = 3
)

// Cell geometry of the Target VM.
const (
	CellBitLength         = 1023
	MaxPushSliceBitLength = 248
	MaxHashMapInfoAboutKey = 12
)

// Internal message header field positions (see the wire format in the
// external interface contract).
const (
	IntMsgIhrDisabled = 0
	IntMsgBounce      = 1
	IntMsgBounced     = 2
	IntMsgSrc         = 3
	IntMsgDest        = 4
	IntMsgTons        = 5
	IntMsgCurrency    = 6
	IntMsgIhrFee      = 7
	IntMsgFwdFee      = 8
	IntMsgCreatedLt   = 9
	IntMsgCreatedAt   = 10
)

// External message header field positions.
const (
	ExtMsgSrc       = 0
	ExtMsgDest      = 1
	ExtMsgCreatedLt = 2
	ExtMsgCreatedAt = 3
)

// SendRawMsgDefaultFlag is the default mode of an outbound message.
const SendRawMsgDefaultFlag = 0

// DefaultMsgValue is the value attached to a responsible answer when
// the callee did not override it.
const DefaultMsgValue = 10_000_000

// DefaultValueForFunctionType marks an unassigned function value.
const DefaultValueForFunctionType = 0

// MaxAddressBitLength is the upper bound of a serialized MsgAddressInt.
const MaxAddressBitLength = 591

// MaxTonBitLength bounds a serialized Grams amount.
const MaxTonBitLength = 4 + 15*8

// ExtInboundSrcLength bounds a serialized external source address.
const ExtInboundSrcLength = 2
