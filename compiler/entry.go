package compiler

import (
	"fmt"

	"github.com/likenty/tvmc/tvm"
)

// Entry lowering: the well-known functions the dispatcher and the
// linker-like downstream recognize.

// GenerateC7ToC4 serializes the decoded state back into the
// persistent storage cell.
// Layout: pubkey(256) [timestamp(64)] ctorFlag(1) [awaitFlag(1)]
// state variables.
func GenerateC7ToC4(p *StackPusher) *tvm.Function {
	memberTypes := p.Ctx().NotConstantStateVariableTypes()
	stateVarQty := len(memberTypes)
	if p.Ctx().TooMuchStateVariables() {
		saved := p.StackSize()
		p.PushC7()
		p.Push(1, "FALSE")
		p.SetIndexQ(stateVarQty + C7FirstIndexForVariables)
		p.Untuple(stateVarQty + C7FirstIndexForVariables + 1)
		p.Drop(1)
		p.Reverse(stateVarQty+C7FirstIndexForVariables, 0)
		p.Drop(C7FirstIndexForVariables)
		p.EnsureSize(saved+stateVarQty, "pooled state unpack")
	} else {
		for i := stateVarQty - 1; i >= 0; i-- {
			p.GetGlob(C7FirstIndexForVariables + i)
		}
	}
	if p.Ctx().StoreTimestampInC4() {
		p.GetGlob(C7ReplayProtTime)
	}
	p.GetGlob(C7TvmPubkey)
	p.Push(1, "NEWC")
	p.Push(-2+1, "STU 256")
	if p.Ctx().StoreTimestampInC4() {
		p.Push(-2+1, "STU 64")
	}
	p.Push(-1+1, "STONE") // constructor flag
	if p.Ctx().Usage().HasAwaitCall() {
		p.Push(-1+1, "STZERO")
	}
	if len(memberTypes) > 0 {
		encoder := NewChainDataEncoder(p)
		position := NewEncodePosition(p.Ctx().OffsetC4())
		encoder.EncodeParameters(memberTypes, position)
	}

	p.Push(-1+1, "ENDC")
	p.PopRoot()
	return tvm.NewFunction(0, 0, "c7_to_c4", tvm.Macro, p.GetBlock())
}

// GenerateC7ToC4ForAwait is the storage writer used when suspending
// on an await call: the continuation is captured into the storage
// cell next to the ordinary state.
func GenerateC7ToC4ForAwait(p *StackPusher) *tvm.Function {
	memberTypes := p.Ctx().NotConstantStateVariableTypes()
	if p.Ctx().StoreTimestampInC4() {
		p.GetGlob(C7ReplayProtTime)
	}
	p.GetGlob(C7TvmPubkey)
	p.Push(1, "NEWC")
	p.Push(-2+1, "STU 256")
	if p.Ctx().StoreTimestampInC4() {
		p.Push(-2+1, "STU 64")
	}
	p.Push(-1+1, "STONE") // constructor flag
	p.Push(-1+1, "STONE")
	p.Exchange(1)
	p.PushHardCode([]string{
		"NEWC",
		"STSLICE",
		"PUSH c0",
		"PUSH c3",
		"PUSHCONT {",
		"	; -- c0 c3 cc",
		"	SETCONT c3",
		"	SETCONT c0",
		"	BLKSWAP 2, 1",
		"	DEPTH",
		"	ADDCONST -7 ; 5 system args + 2 bldrs",
		"	PUSHINT 2",
		"	BLKSWX",
		fmt.Sprintf("	GETGLOB %d", C7MsgPubkey),
		fmt.Sprintf("	GETGLOB %d", C7SenderAddress),
		fmt.Sprintf("	GETGLOB %d", C7AwaitAnswerId),
		"	BLKSWAP 1, 3",
		"	DEPTH",
		"	ADDCONST -8 ; 5 system args + 2 bldrs + cont",
		"	PUSHINT -1",
		"	SETCONTVARARGS",
		"	SWAP",
		"	STCONT",
		"	ENDC ; -- suspended-code-cell",
		"	STREFR",
	}, 0, 0, false)
	if len(memberTypes) > 0 {
		for i := len(memberTypes) - 1; i >= 0; i-- {
			p.GetGlob(C7FirstIndexForVariables + i)
		}
		p.BlockSwap(1, len(memberTypes))
		encoder := NewChainDataEncoder(p)
		position := NewEncodePosition(p.Ctx().OffsetC4())
		encoder.EncodeParameters(memberTypes, position)
	}
	p.PushHardCode([]string{
		"	ENDC",
		"	POPROOT",
		"	THROW 0",
		"}",
		"CALLCC",
	}, 0, 0, false)
	return tvm.NewFunction(0, 0, "c7_to_c4_for_await", tvm.Macro, p.GetBlock())
}

// GenerateC4ToC7 deserializes persistent storage into the C7 slots.
func GenerateC4ToC7(p *StackPusher) *tvm.Function {
	p.PushC4()
	p.Push(-1+1, "CTOS")
	p.Push(-1+2, "LDU 256")
	if p.Ctx().StoreTimestampInC4() {
		p.Push(1, "LDU 64")
	}
	p.Push(1, "LDU 1") // ctor flag
	p.DropUnder(1, 1)
	if p.Ctx().Usage().HasAwaitCall() {
		p.Push(-1+2, "LDI 1")
		p.DropUnder(1, 1)
	}
	stateVars := p.Ctx().NotConstantStateVariables()
	if len(stateVars) > 0 {
		stateVarTypes := p.Ctx().NotConstantStateVariableTypes()
		ss := p.StackSize()
		decoder := NewChainDataDecoder(p)
		decoder.DecodeData(stateVarTypes, p.Ctx().OffsetC4())

		varQty := len(stateVarTypes)
		if p.Ctx().TooMuchStateVariables() {
			for i := 0; i < C7FirstIndexForVariables; i++ {
				p.GetGlob(i)
			}
			p.BlockSwap(varQty, C7FirstIndexForVariables)
			p.Tuple(varQty + C7FirstIndexForVariables)
			p.PopC7()
		} else {
			for i := varQty - 1; i >= 0; i-- {
				p.SetGlob(C7FirstIndexForVariables + i)
			}
		}
		p.EnsureSize(ss-1, "storage decode")
	} else {
		p.Push(-1, "ENDS")
	}

	if p.Ctx().StoreTimestampInC4() {
		p.SetGlob(C7ReplayProtTime)
	}
	p.SetGlob(C7TvmPubkey)

	return tvm.NewFunction(0, 0, "c4_to_c7", tvm.Macro, p.GetBlock())
}

// GenerateC4ToC7WithInitMemory is the first-transaction variant: when
// the storage cell still carries deployment data it is decoded from
// the data dictionary and defaults are materialized.
func GenerateC4ToC7WithInitMemory(p *StackPusher) *tvm.Function {
	fc := NewContractLevelCompiler(p, p.Ctx().Contract())

	p.PushC4()
	p.Push(-1+1, "CTOS")
	p.Push(-1+1, "SBITS")
	p.Push(-1+1, "GTINT 1")

	p.StartContinuation()
	p.PushCall(0, 0, "c4_to_c7")
	p.EndContinuationFromRef()

	p.StartContinuation()
	p.PushSmallInt(0)
	p.PushC4()
	p.Push(0, "CTOS")
	p.Push(0, "PLDDICT")

	varQty := 0
	tooMuchStateVars := p.Ctx().TooMuchStateVariables()
	if tooMuchStateVars {
		for i := 0; i < C7FirstIndexForVariables; i++ {
			p.GetGlob(i)
			varQty++
		}
	}
	staticKey := map[*VariableDeclaration]int{}
	for _, sv := range p.Ctx().StaticVariables() {
		staticKey[sv.Var] = sv.Key
	}
	for _, v := range p.Ctx().NotConstantStateVariables() {
		if v.Static {
			p.PushSmallInt(staticKey[v])
			off := 1
			if tooMuchStateVars {
				off += varQty
			}
			p.PushS(off)
			p.GetDict(KeyTypeOfC4(), v.Type, GetFromMapping)
		} else {
			p.PushDefaultValue(v.Type, false)
		}
		varQty++
		if !tooMuchStateVars {
			p.SetGlobVar(v)
		}
	}
	if tooMuchStateVars {
		p.Tuple(varQty)
		p.PopC7()
	}

	p.PushSmallInt(64)
	p.StartOpaque()
	p.PushAsym("DICTUGET")
	p.Throw(fmt.Sprintf("THROWIFNOT %d", ExceptionNoPubkeyInC4))
	p.EndOpaque(3, 1, false)

	p.Push(0, "PLDU 256")
	p.SetGlob(C7TvmPubkey)
	p.Push(1, "PUSHINT 0 ; timestamp")
	p.SetGlob(C7ReplayProtTime)

	for _, v := range p.Ctx().NotConstantStateVariables() {
		if v.Value != nil {
			fc.acceptExpr(v.Value, true)
			p.SetGlobVar(v)
		}
	}
	p.EndContinuation()
	p.IfElse(false)

	return tvm.NewFunction(0, 0, "c4_to_c7_with_init_storage", tvm.Macro, p.GetBlock())
}

// GenerateReplayProtection checks and advances the replay timestamp.
func GenerateReplayProtection(p *StackPusher) *tvm.Function {
	// stack: timestamp
	p.FixStack(1)
	p.GetGlob(C7ReplayProtTime)
	p.PushS(1)
	p.Push(-2+1, "LESS")
	p.Throw(fmt.Sprintf("THROWIFNOT %d", ExceptionReplayProtection))
	p.SetGlob(C7ReplayProtTime)
	return tvm.NewFunction(1, 0, "replay_protection_macro", tvm.Macro, p.GetBlock())
}

// GenerateMacro lowers a function body as a macro.
func GenerateMacro(p *StackPusher, function *FunctionDefinition, forceName string) *tvm.Function {
	name := function.Name
	if forceName != "" {
		name = forceName
	}
	fc := NewFunctionCompiler(p, 0, function, true, 0)
	fc.pushLocation(function, false)
	fc.VisitFunctionWithModifiers()
	fc.pushLocation(function, true)
	take := len(function.Params)
	ret := len(function.RetParams)
	return tvm.NewFunction(take, ret, name, tvm.Macro, p.GetBlock())
}

// GenerateOnCodeUpgrade lowers the code-upgrade hook.
func GenerateOnCodeUpgrade(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	fc := NewFunctionCompiler(p, 0, function, true, 0)
	fc.VisitFunctionWithModifiers()

	p.PushMacroCallInCallRef(0, 0, "c7_to_c4")
	p.Push(0, "COMMIT")
	p.Throw("THROW 0")
	take := len(function.Params)
	return tvm.NewFunction(take, 0, "onCodeUpgrade", tvm.OnCodeUpgrade, p.GetBlock())
}

// GenerateOnTickTock lowers the tick-tock handler.
func GenerateOnTickTock(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	p.StartOpaque()
	p.PushSmallInt(-2)
	p.EndOpaque(0, 0, false) // hidden: may be observed as the transaction kind

	assert(len(function.Params) == 1, "onTickTock takes one parameter")
	variable := function.Params[0]
	p.PushS(2)
	p.GetStack().Add(variable, false)

	isPure := function.Mutability == MutabilityPure
	if !isPure {
		p.PushMacroCallInCallRef(0, 0, "c4_to_c7")
	}

	fc := NewFunctionCompiler(p, 0, function, false, 0)
	fc.setGlobSenderAddressIfNeed()
	fc.VisitFunctionWithModifiers()

	if !isPure {
		p.PushMacroCallInCallRef(0, 0, "c7_to_c4")
	}
	return tvm.NewFunction(0, 0, "onTickTock", tvm.OnTickTock, p.GetBlock())
}

// decodeFunctionParams reads call arguments and binds them.
func (f *FunctionCompiler) decodeFunctionParams(isResponsible bool) {
	p := f.pusher
	types := make([]Type, len(f.function.Params))
	for i, v := range f.function.Params {
		types[i] = v.Type
	}
	NewChainDataDecoder(p).DecodePublicFunctionParameters(types, isResponsible)
	p.GetStack().Change(-len(f.function.Params))
	for _, v := range f.function.Params {
		p.GetStack().Add(v, true)
	}
}

// GeneratePublicFunction lowers the externally callable wrapper of a
// public function.
func GeneratePublicFunction(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	// stack: transaction data, function result, [send message]
	fc := NewFunctionCompiler(p, 0, function, false, 0)
	p.FixStack(1) // slice with args
	p.FixStack(1) // function id
	p.Drop(1)
	p.CheckCtorCalled()
	fc.pushC4ToC7IfNeed()

	fc.pushLocation(function, false)
	isResponsible := function.IsResponsible
	if isResponsible {
		saved := p.StackSize()
		p.Push(1, "LDU 32") // callbackId slice
		p.GetGlob(C7ReturnParams)
		p.BlockSwap(1, 2)
		p.SetIndexQ(RetParamCallbackFunctionId)
		p.SetGlob(C7ReturnParams)
		p.EnsureSize(saved, "responsible prologue")
	}
	fc.decodeFunctionParams(isResponsible)
	fc.pushLocation(function, true)

	paramQty := len(function.Params)
	retQty := len(function.RetParams)
	p.PushMacroCallInCallRef(paramQty, retQty, p.Ctx().FunctionInternalName(function)+"_macro")

	p.EnsureSize(retQty, "public function result")
	fc.emitOnPublicFunctionReturn()

	p.EnsureSize(0, "public function epilogue")

	fc.pushC7ToC4IfNeed()
	p.Throw("THROW 0")

	return tvm.NewFunction(2, 0, function.Name, tvm.Macro, p.GetBlock())
}

// GenerateFunctionWithModifiers lowers a function in place.
func GenerateFunctionWithModifiers(p *StackPusher, function *FunctionDefinition, pushArgs bool) {
	ss := p.StackSize()
	if !pushArgs {
		ss -= len(function.Params)
	}
	fc := NewFunctionCompiler(p, 0, function, pushArgs, ss)
	fc.VisitFunctionWithModifiers()
}

// GenerateGetter lowers the implicit getter of a public state
// variable.
func GenerateGetter(p *StackPusher, vd *VariableDeclaration) *tvm.Function {
	p.FixStack(2) // functionId msgBody
	p.Drop(1)
	p.Push(-1, "ENDS")
	p.PushMacroCallInCallRef(0, 0, "c4_to_c7")
	p.GetGlobVar(vd)

	// answer external calls only
	p.PushS(1)
	p.StartContinuation()
	p.FixStack(-1)

	appendBody := func(builderSize int) {
		NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(
			[]*VariableDeclaration{vd},
			CalculateFunctionID(vd.Name, nil, []Type{vd.Type}, FunctionReturnExternal),
			nil,
			builderSize,
		)
	}
	p.SendMsg(nil, nil, appendBody, nil, nil, MsgExternalOut)

	p.EndContinuation()
	p.If()

	p.Throw("THROW 0")

	return tvm.NewFunction(2, 1, vd.Name, tvm.MacroGetter, p.GetBlock())
}

// GeneratePublicFunctionSelector emits the balanced 4-way dispatch
// tree over the sorted selector entries.
func GeneratePublicFunctionSelector(p *StackPusher, contract *ContractDefinition) *tvm.Function {
	functions := p.Ctx().PublicFunctions()
	fc := NewContractLevelCompiler(p, contract)
	fc.buildPublicFunctionSelector(functions, 0, len(functions))
	return tvm.NewFunction(1, 1, "public_function_selector", tvm.Macro, p.GetBlock())
}

// GeneratePrivateFunction lowers the non-inlined linkage shim.
func GeneratePrivateFunction(p *StackPusher, name string) *tvm.Function {
	macroName := name + "_macro"
	p.PushCall(0, 0, macroName)
	return tvm.NewFunction(0, 0, name, tvm.PrivateFunction, p.GetBlock())
}

// GenerateReceive lowers the receive handler.
func GenerateReceive(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	return generateReceiveOrFallbackOrOnBounce(p, function, "receive_macro", 0)
}

// GenerateFallback lowers the fallback handler.
func GenerateFallback(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	return generateReceiveOrFallbackOrOnBounce(p, function, "fallback_macro", 0)
}

// GenerateOnBounce lowers the bounce handler.
func GenerateOnBounce(p *StackPusher, function *FunctionDefinition) *tvm.Function {
	return generateReceiveOrFallbackOrOnBounce(p, function, "on_bounce_macro", 1)
}

func generateReceiveOrFallbackOrOnBounce(p *StackPusher, function *FunctionDefinition, name string, take int) *tvm.Function {
	fc := NewFunctionCompiler(p, 0, function, true, 0)
	p.CheckCtorCalled()
	fc.pushC4ToC7IfNeed()
	fc.VisitFunctionWithModifiers()
	fc.pushC7ToC4IfNeed()
	return tvm.NewFunction(take, 0, name, tvm.Macro, p.GetBlock())
}

// emitOnPublicFunctionReturn answers the caller: external calls get
// an external-out message, responsible internal calls an internal
// answer assembled from ReturnParams.
func (f *FunctionCompiler) emitOnPublicFunctionReturn() {
	p := f.pusher
	stackSize := p.StackSize()

	params := f.function.RetParams
	if len(params) == 0 {
		return
	}

	p.StartOpaque()

	ret := f.function.RetParams

	p.PushS(p.StackSize())
	p.FixStack(-1)
	isResponsible := p.Ctx().CurrentFunction().IsResponsible

	// answer an external call
	p.StartContinuation()
	{
		appendBody := func(builderSize int) {
			NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(
				ret,
				CalculateFunctionIDForFunction(f.function, FunctionReturnExternal),
				nil,
				builderSize,
			)
		}

		// the sender's external address from the message cell
		p.PushS(p.StackSize() + 2)
		p.Push(0, "CTOS")
		p.Push(1, "LDU 2")
		p.Push(1, "LDMSGADDR")
		p.Drop(1)
		p.PopS(1)

		p.SendMsg(
			map[int]bool{ExtMsgDest: true},
			nil,
			appendBody,
			nil,
			nil,
			MsgExternalOut,
		)
		p.FixStack(len(params))
	}
	p.EndContinuation()

	p.StartContinuation()
	if !isResponsible {
		p.Drop(len(params))
	} else {
		pushFunction := func() {
			p.GetGlob(C7ReturnParams)
			p.IndexNoexcep(RetParamCallbackFunctionId)
		}
		appendBody := func(builderSize int) {
			NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(
				ret,
				0,
				pushFunction,
				builderSize,
			)
		}
		pushSendrawmsgFlag := func() {
			p.GetGlob(C7ReturnParams)
			p.IndexNoexcep(RetParamFlag)
		}

		p.GetGlob(C7ReturnParams)
		for i := 0; i < 3; i++ {
			if i == 2 {
				p.GetGlob(C7SenderAddress) // dest
				p.BlockSwap(1, 3)
			} else {
				p.PushS(i)
			}
			p.IndexNoexcep(3 - i)
		}
		// stack: currencies tons dest bounce
		p.SendMsg(
			map[int]bool{
				IntMsgBounce:   true,
				IntMsgDest:     true,
				IntMsgTons:     true,
				IntMsgCurrency: true,
			},
			nil,
			appendBody,
			nil,
			pushSendrawmsgFlag,
			MsgInternal,
		)
	}
	p.EndContinuation()

	p.IfElse(false)

	p.EndOpaque(len(ret), 0, false)

	p.EnsureSize(stackSize-len(params), "public return")
}

// GenerateMainExternal builds the external message entry for the
// configured ABI version.
func GenerateMainExternal(p *StackPusher, contract *ContractDefinition) *tvm.Function {
	fc := NewContractLevelCompiler(p, contract)
	switch p.Ctx().Pragma().AbiVer {
	case AbiV1:
		return fc.generateMainExternalForAbiV1()
	case AbiV2_1:
		return fc.generateMainExternalForAbiV2()
	}
	panic("internal: unknown ABI version")
}

func (f *FunctionCompiler) setGlobSenderAddressIfNeed() {
	p := f.pusher
	if p.Ctx().Usage().HasMsgSender() {
		p.Push(1, "PUSHSLICE x8000000000000000000000000000000000000000000000000000000000000000001_")
		p.SetGlob(C7SenderAddress)
	}
}

func (f *FunctionCompiler) setCtorFlag() {
	p := f.pusher
	p.PushC4()
	p.Push(0, "CTOS")
	p.Push(0, "SBITS")
	p.Push(0, "NEQINT 1")
	p.SetGlob(C7ConstructorFlag)
}

func (f *FunctionCompiler) generateMainExternalForAbiV1() *tvm.Function {
	p := f.pusher
	// contract_balance msg_balance msg_cell origin_msg_body_slice
	f.setCtorFlag()
	f.setGlobSenderAddressIfNeed()

	p.PushS(1)
	p.Push(1, "LDREFRTOS ; msgBodySlice signSlice")
	p.PushS(0)
	p.Push(0, "SDEMPTY   ; isSignSliceEmpty")
	p.StartContinuation()
	p.Drop(1)
	p.EndContinuation()
	p.StartContinuation()
	p.PushS(0)
	p.PushSmallInt(512)
	p.Push(-2+1, "SDSKIPFIRST")
	p.Push(0, "PLDU 256")
	p.PushS(2)
	p.Push(0, "HASHSU")
	p.PushS2(2, 1)
	p.Push(-3+1, "CHKSIGNU")
	p.Throw(fmt.Sprintf("THROWIFNOT %d ; bad signature", ExceptionBadSignature))
	p.SetGlob(C7MsgPubkey)
	p.Drop(1)
	p.EndContinuation()
	p.IfElse(false)

	p.PushMacroCallInCallRef(0, 0, "c4_to_c7_with_init_storage")

	p.Push(1, "LDU 32 ; functionId msgSlice")
	p.Push(1, "LDU 64 ; functionId timestamp msgSlice")
	p.Exchange(1)
	p.PushCall(1, 0, "replay_protection_macro")
	p.Exchange(1) // msgSlice functionId

	f.callPublicFunctionOrFallback()

	return tvm.NewFunction(0, 0, "main_external", tvm.MainExternal, p.GetBlock())
}

func (f *FunctionCompiler) generateMainExternalForAbiV2() *tvm.Function {
	p := f.pusher
	// contract_balance msg_balance(=0) msg_cell msg_body_slice
	// transaction_id(=-1)
	f.setCtorFlag()
	f.setGlobSenderAddressIfNeed()

	p.PushS(1)

	p.PushMacroCallInCallRef(0, 0, "c4_to_c7_with_init_storage")

	f.checkSignatureAndReadPublicKey()
	if p.Ctx().AfterSignatureCheck() != nil {
		// msg_cell msg_body_slice -1 rest_msg_body_slice
		p.PushS(3)
		block := p.Ctx().InlinedFunction("afterSignatureCheck")
		p.PushInlineFunction(block, 2, 1)
	} else {
		f.defaultReplayProtection()
		if p.Ctx().Pragma().HaveExpire {
			f.expire()
		}
	}

	p.Push(1, "LDU 32 ; funcId body")
	p.Exchange(1)

	f.callPublicFunctionOrFallback()
	return tvm.NewFunction(0, 0, "main_external", tvm.MainExternal, p.GetBlock())
}

func (f *FunctionCompiler) pushMsgPubkey() {
	p := f.pusher
	// signatureSlice msgSlice hashMsgSlice

	if p.Ctx().Pragma().HavePubkey {
		p.Exchange(1)
		p.Push(1, "LDU 1 ; havePubkey")
		p.Exchange(1)

		p.StartContinuation()
		p.Push(1, "LDU 256 ; pubkey")
		p.Exchange(3)
		p.Exchange(1)
		p.EndContinuation()

		p.StartContinuation()
		p.Exchange(2)
		p.GetGlob(C7TvmPubkey)
		p.EndContinuation()

		p.IfElse(false)
	} else {
		p.Rot()
		p.GetGlob(C7TvmPubkey)
	}

	if p.Ctx().Usage().HasMsgPubkey() {
		p.PushS(0)
		p.SetGlob(C7MsgPubkey)
	}

	// msgSlice hashMsgSlice signatureSlice pubkey
}

func (f *FunctionCompiler) checkSignatureAndReadPublicKey() {
	p := f.pusher
	// msgSlice

	p.Push(-1+2, "LDU 1 ; haveSign")
	p.Exchange(1)

	p.StartContinuation()
	p.PushSmallInt(512)
	p.Push(-2+2, "LDSLICEX ; signatureSlice msgSlice")
	p.PushS(0)
	p.Push(-1+1, "HASHSU")
	f.pushMsgPubkey()
	p.Push(-3+1, "CHKSIGNU")
	p.Throw(fmt.Sprintf("THROWIFNOT %d ; bad signature", ExceptionBadSignature))
	p.EndContinuation()

	if p.Ctx().Pragma().HavePubkey {
		// an unsigned external message must not carry a public key
		p.StartContinuation()
		p.Push(1, "LDU 1 ; havePubkey")
		p.Exchange(1)
		p.Throw(fmt.Sprintf("THROWIF %d", ExceptionMsgHasNoSignButHasPubkey))
		p.EndContinuation()
		p.IfElse(false)
	} else {
		p.If()
	}
}

func (f *FunctionCompiler) defaultReplayProtection() {
	p := f.pusher
	// msgSlice
	p.Push(1, "LDU 64 ; timestamp")
	p.Exchange(1)
	p.PushCall(1, 0, "replay_protection_macro")
}

func (f *FunctionCompiler) expire() {
	p := f.pusher
	p.Push(1, "LDU 32  ; expireAt")
	p.Exchange(1)
	p.Push(1, "NOW")
	p.Push(-1, "GREATER")
	p.Throw(fmt.Sprintf("THROWIFNOT %d ; expired", ExceptionMessageIsExpired))
}

func (f *FunctionCompiler) callPublicFunctionOrFallback() {
	p := f.pusher
	p.PushMacroCallInCallRef(0, 0, "public_function_selector")

	if p.Ctx().IsFallbackGenerated() {
		p.Drop(2)
		p.StartContinuation()
		p.PushCall(0, 0, "fallback_macro")
		p.CallRef(0, 0)
	} else {
		p.Throw(fmt.Sprintf("THROW %d", ExceptionNoFallback))
	}
}

// GenerateMainInternal builds the internal message entry.
func GenerateMainInternal(p *StackPusher, contract *ContractDefinition) *tvm.Function {
	// stack: contract_balance msg_balance msg_cell msg_body_slice
	fc := NewContractLevelCompiler(p, contract)
	fc.setCtorFlag()

	p.PushS(2)
	p.Push(-1+1, "CTOS")
	// stack: int_msg_info

	usage := p.Ctx().Usage()
	if usage.HasMsgSender() || usage.HasResponsibleFunction() || usage.HasAwaitCall() {
		p.Push(-1+2, "LDU 4      ; bounced tail")
		p.Push(-1+2, "LDMSGADDR  ; bounced src tail")
		p.Drop(1)
		if usage.HasAwaitCall() {
			p.PushMacroCallInCallRef(0, 0, "check_resume")
		}
		p.SetGlob(C7SenderAddress)
		p.Push(0, "MODPOW2 1")
	} else {
		p.Push(-1+1, "PLDU 4")
		p.Push(-1+1, "MODPOW2 1")
	}
	// stack: isBounced

	if usage.HasResponsibleFunction() {
		p.GetGlob(C7ReturnParams)
		p.Push(1, "TRUE") // bounce
		p.SetIndexQ(RetParamBounce)
		p.PushSmallInt(DefaultMsgValue)
		p.SetIndexQ(RetParamValue)
		p.PushNull()
		p.SetIndexQ(RetParamCurrencies)
		p.PushSmallInt(SendRawMsgDefaultFlag)
		p.SetIndexQ(RetParamFlag)
		p.SetGlob(C7ReturnParams)
	}

	// bounced messages
	onBounce := contract.OnBounceFunction()
	if onBounce != nil && onBounce.Body != nil && len(onBounce.Body.Statements) > 0 {
		p.StartContinuation()
		p.PushS(1)
		p.Push(-1+2, "LDSLICE 32")
		p.DropUnder(1, 1)
		p.PushCall(0, 0, "on_bounce_macro")
		p.IfJmpRef()
	} else {
		p.IfRet()
	}

	fc.pushReceiveOrFallback()

	p.Exchange(1)
	fc.callPublicFunctionOrFallback()

	return tvm.NewFunction(0, 0, "main_internal", tvm.MainInternal, p.GetBlock())
}

// GenerateCheckResume restores a continuation suspended by an await
// call, verifying the answering address.
func GenerateCheckResume(p *StackPusher) *tvm.Function {
	offset := 256 + 1
	if p.Ctx().StoreTimestampInC4() {
		offset += 64
	}
	code := []string{
		"PUSHROOT",
		"CTOS",
		fmt.Sprintf("PUSHINT %d", offset),
		"LDSLICEX  ; beg_slice end_slice",
		"LDI 1",
		"SWAP",
		"PUSHCONT {",
		"	LDREFRTOS   ; beg_slice end_slice ref_slice",
		"	XCHG S2     ; ref_slice end beg",
		"	NEWC",
		"	STSLICE",
		"	STZERO",
		"	STSLICE",
		"	ENDC",
		"	POPROOT",
		"	LDMSGADDR",
		"	ROTREV",
		"	SDEQ",
		fmt.Sprintf("	THROWIFNOT %d", ExceptionWrongAwaitAddress),
		"	LDCONT",
		"	DROP",
		"	NIP",
		"	CALLREF {",
		"		CALL $c4_to_c7$",
		"	}",
		"	CALLX",
		"}",
		"PUSHCONT {",
		"	DROP2",
		"}",
		"IFELSE",
	}
	p.PushHardCode(code, 0, 0, false)
	return tvm.NewFunction(0, 0, "check_resume", tvm.Macro, p.GetBlock())
}

func (f *FunctionCompiler) pushC4ToC7IfNeed() {
	p := f.pusher
	if f.function.Mutability != MutabilityPure {
		p.WasC4ToC7Called()
		p.FixStack(-1)
		p.StartContinuation()
		p.PushCall(0, 0, "c4_to_c7")
		p.IfRef()
	}
}

func (f *FunctionCompiler) pushC7ToC4IfNeed() {
	p := f.pusher
	if f.function.Mutability == MutabilityNonPayable {
		p.PushMacroCallInCallRef(0, 0, "c7_to_c4")
	} else {
		// external messages still persist replay protection values
		p.PushS(0)
		p.StartContinuation()
		p.PushCall(0, 0, "c7_to_c4")
		p.IfRef()
	}
}

func (f *FunctionCompiler) pushReceiveOrFallback() {
	p := f.pusher
	// stack: body

	callFallback := func() {
		if f.contract.FallbackFunction() != nil {
			p.StartContinuation()
			p.Drop(1)
			p.PushMacroCallInCallRef(0, 0, "fallback_macro")
			p.Throw("THROW 0")
			p.EndContinuation()
			p.IfNot()
		} else {
			p.Throw(fmt.Sprintf("THROWIFNOT %d ; funcId body'", ExceptionNoFallback))
		}
	}

	receive := f.contract.ReceiveFunction()
	if receive != nil && receive.Body != nil && len(receive.Body.Statements) > 0 {
		p.PushS(1)
		p.Push(0, "SEMPTY     ; isEmpty")
		p.PushS(0)
		p.StartContinuation()
		{
			p.Drop(1)
			p.PushS(1) // body

			p.StartOpaque()
			p.PushAsym("LDUQ 32  ; [funcId] body' ok")
			callFallback()
			p.EndOpaque(1, 2, false)
			// funcId body'

			p.PushS(1)
			p.Push(0, "EQINT 0 ; isZero")
			p.PushS(0)
			p.StartContinuation()
			p.DropUnder(2, 1)
			p.EndContinuation()
			p.If()
		}
		p.EndContinuation()
		p.IfNot()
		p.StartContinuation()
		p.PushCall(0, 0, "receive_macro")
		p.IfJmpRef()
	} else {
		p.PushS(1)
		p.Push(0, "SEMPTY     ; isEmpty")
		p.CheckIfCtorCalled(true)
		p.PushS(1)

		p.StartOpaque()
		p.PushAsym("LDUQ 32  ; [funcId] body' ok")
		callFallback()
		p.EndOpaque(1, 2, false)

		// stack: funcId body'
		p.PushS(1)
		p.CheckIfCtorCalled(false)
	}
}

// buildPublicFunctionSelector emits the dispatch tree: leaves compare
// for equality and jump; internal nodes compare against the block's
// upper id.
func (f *FunctionCompiler) buildPublicFunctionSelector(functions []PublicFunction, left, right int) {
	p := f.pusher
	qty := right - left
	blockSize := 1
	for 4*blockSize < qty {
		blockSize *= 4
	}
	assert(4*blockSize >= qty, "bad selector block size")

	pushOne := func(functionID uint32, name string) {
		p.PushS(0)
		p.PushSmallInt(int(functionID))
		p.Push(-2+1, "EQUAL")
		p.FixStack(-1)
		p.StartContinuation()
		p.PushCall(0, 0, name)
		p.IfJmpRef()
	}

	// stack: functionID
	if qty <= 4 {
		for i := left; i < right; i++ {
			pushOne(functions[i].ID, functions[i].Name)
		}
	} else {
		for i := left; i < right; i += blockSize {
			j := i + blockSize
			if j > right {
				j = right
			}
			entry := functions[j-1]
			if j-i == 1 {
				pushOne(entry.ID, entry.Name)
			} else {
				p.PushS(0)
				p.PushSmallInt(int(entry.ID))
				p.Push(-2+1, "LEQ")
				p.StartContinuation()
				f.buildPublicFunctionSelector(functions, i, j)
				p.IfJmpRef()
			}
		}
	}
}

// ConstructorCompiler lowers the chained constructor of the contract
// and its linearized bases.
type ConstructorCompiler struct {
	pusher *StackPusher
}

// NewConstructorCompiler builds a constructor compiler over pusher.
func NewConstructorCompiler(pusher *StackPusher) *ConstructorCompiler {
	return &ConstructorCompiler{pusher: pusher}
}

// GenerateConstructors lowers the combined constructor entry.
func (c *ConstructorCompiler) GenerateConstructors() *tvm.Function {
	p := c.pusher
	ctx := p.Ctx()

	var functionID uint32
	if ctor := ctx.Contract().Constructor(); ctor != nil {
		functionID = CalculateFunctionIDForFunction(ctor, RemoteCallInternal)
	} else {
		functionID = CalculateConstructorFunctionID()
	}
	ctx.AddPublicFunction(functionID, "constructor")

	p.FixStack(1) // encoded constructor params
	p.FixStack(1) // function id
	p.Drop(1)

	c.c4ToC7WithMemoryInitAndConstructorProtection()

	chain := ctx.Contract().Chain()
	constructor := chain[0].Constructor()
	take := 0
	if constructor == nil {
		p.Push(-1, "ENDS")
	} else {
		take = len(constructor.Params)
		types := make([]Type, take)
		for i, v := range constructor.Params {
			types[i] = v.Type
		}
		NewChainDataDecoder(p).DecodePublicFunctionParameters(types, false)
		p.GetStack().Change(-take)
		for _, v := range constructor.Params {
			p.GetStack().Add(v, true)
		}
	}
	p.EnsureSize(take, "constructor arguments")

	haveConstructor := false
	for i := len(chain) - 1; i >= 0; i-- {
		ctor := chain[i].Constructor()
		if ctor == nil {
			continue
		}
		haveConstructor = true
		ctx.SetCurrentFunction(ctor)

		take2 := len(ctor.Params)
		sub := p.Fork()
		sub.TakeLast(take2)
		GenerateFunctionWithModifiers(sub, ctor, false)
		p.FixStack(-take2)
		p.Add(sub)
	}

	if !haveConstructor {
		p.Push(0, "ACCEPT")
	}

	p.PushMacroCallInCallRef(0, 0, "c7_to_c4")
	p.Throw("THROW 0")

	// takes the parameter slice and the function id
	return tvm.NewFunction(2, 0, "constructor", tvm.Macro, p.GetBlock())
}

func (c *ConstructorCompiler) c4ToC7WithMemoryInitAndConstructorProtection() {
	p := c.pusher
	p.WasC4ToC7Called()
	p.FixStack(-1)

	p.StartContinuation()
	p.PushCall(0, 0, "c4_to_c7_with_init_storage")
	p.IfRef()

	p.GetGlob(C7ConstructorFlag)
	p.Throw(fmt.Sprintf("THROWIF %d", ExceptionConstructorCalledTwice))
}
