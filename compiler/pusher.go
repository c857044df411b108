package compiler

import (
	"fmt"
	"math/big"

	"github.com/likenty/tvmc/tvm"
)

// pusherBlock is one open instruction sequence; the top of the block
// stack is the current emission target.
type pusherBlock struct {
	opcodes []tvm.Node
}

// StackPusher is the append-only IR builder. It tracks a symbolic
// stack depth with variable bindings while generating instructions.
// While lockStack is non-zero the effects of pushed ops are recorded
// in the tree but do not update the model; that mode is used while
// emitting opaque sub-sequences whose external effect is declared.
type StackPusher struct {
	ctx       *Context
	stack     Stack
	blocks    []*pusherBlock
	lockStack int
}

// NewStackPusher builds a pusher with an empty stack model.
func NewStackPusher(ctx *Context) *StackPusher {
	p := &StackPusher{ctx: ctx}
	p.blocks = append(p.blocks, &pusherBlock{})
	return p
}

// Ctx returns the compilation context.
func (p *StackPusher) Ctx() *Context { return p.ctx }

// GetStack exposes the symbolic stack model.
func (p *StackPusher) GetStack() *Stack { return &p.stack }

// StackSize returns the model's depth.
func (p *StackPusher) StackSize() int { return p.stack.Size() }

// HasLock reports opaque emission mode.
func (p *StackPusher) HasLock() bool { return p.lockStack > 0 }

func (p *StackPusher) top() *pusherBlock {
	return p.blocks[len(p.blocks)-1]
}

func (p *StackPusher) append(node tvm.Node) {
	p.top().opcodes = append(p.top().opcodes, node)
}

func (p *StackPusher) change(delta int) {
	assert(p.lockStack >= 0, "negative lock counter")
	if p.lockStack == 0 {
		p.stack.Change(delta)
	}
}

func (p *StackPusher) changeEffect(take, ret int) {
	p.change(-take + ret)
}

// EnsureSize asserts the model depth outside opaque mode.
func (p *StackPusher) EnsureSize(saved int, location string) {
	if p.lockStack == 0 {
		p.stack.EnsureSize(saved, location)
	}
}

// Fork returns a pusher sharing the context with a copy of the stack
// model and a fresh open block.
func (p *StackPusher) Fork() *StackPusher {
	f := &StackPusher{ctx: p.ctx}
	f.stack.size = p.stack.size
	f.stack.slots = append([]*VariableDeclaration(nil), p.stack.slots...)
	f.blocks = append(f.blocks, &pusherBlock{})
	return f
}

// Add appends another pusher's finished instructions to the current
// block; the callee accounts for the stack.
func (p *StackPusher) Add(other *StackPusher) {
	assert(len(other.blocks) == 1, "unclosed blocks in added pusher")
	p.top().opcodes = append(p.top().opcodes, other.blocks[0].opcodes...)
}

// TakeLast truncates the model to its topmost n values.
func (p *StackPusher) TakeLast(n int) {
	p.stack.TakeLast(n)
}

// GetBlock closes the pusher into a plain code block.
func (p *StackPusher) GetBlock() *tvm.CodeBlock {
	assert(len(p.blocks) == 1, "unbalanced block stack: %d", len(p.blocks))
	return tvm.NewCodeBlock(tvm.BlockInline, p.blocks[0].opcodes)
}

// PushLoc records a source position.
func (p *StackPusher) PushLoc(file string, line int) {
	p.append(&tvm.Loc{File: file, Line: line})
}

// Push parses cmd, asserts that its declared effect equals delta,
// appends it and updates the model. An empty cmd only fixes the
// model by delta.
func (p *StackPusher) Push(delta int, cmd string) {
	if cmd == "" {
		p.change(delta)
		return
	}
	op := tvm.Gen(cmd)
	assert(delta == -op.Take()+op.Ret(),
		"declared delta %d does not match %q (%d, %d)", delta, cmd, op.Take(), op.Ret())
	p.changeEffect(op.Take(), op.Ret())
	p.append(op)
}

// FixStack adjusts the model without emitting code.
func (p *StackPusher) FixStack(delta int) { p.change(delta) }

// PushAsym emits an asymmetric op; only allowed in opaque mode since
// the model cannot follow a runtime-dependent arity.
func (p *StackPusher) PushAsym(cmd string) {
	assert(p.lockStack >= 1, "asymmetric op %q outside opaque mode", cmd)
	p.append(tvm.Asym(cmd))
}

func (p *StackPusher) pushStackOp(op *tvm.StackOp) {
	p.append(op)
}

// PushHardCode emits a literal assembly block with declared effect.
func (p *StackPusher) PushHardCode(code []string, take, ret int, pure bool) {
	h := tvm.NewHardCode(code, take, ret, pure)
	p.append(h)
	p.changeEffect(take, ret)
}

// PushCellOrSlice emits a static data push.
func (p *StackPusher) PushCellOrSlice(cell *tvm.PushCellOrSlice) {
	p.append(cell)
	p.change(1)
}

// PushInt materializes an integer literal.
func (p *StackPusher) PushInt(v *big.Int) {
	p.Push(1, "PUSHINT "+v.String())
}

// PushSmallInt materializes a machine-int literal.
func (p *StackPusher) PushSmallInt(v int) {
	p.Push(1, fmt.Sprintf("PUSHINT %d", v))
}

// PushNull pushes the null value.
func (p *StackPusher) PushNull() {
	p.Push(1, "NULL")
}

// PushString materializes a string constant. Long strings are split
// into a chain of reference cells; one character never straddles two
// cells.
func (p *StackPusher) PushString(s string, toSlice bool) {
	hexStr := stringToHex(s)
	if 4*len(hexStr) <= MaxPushSliceBitLength && toSlice {
		p.Push(1, "PUSHSLICE x"+hexStr)
		return
	}

	saved := p.StackSize()
	// one character is 8 bits; a cell carries a whole number of them
	symbolQty := ((CellBitLength / 8) * 8) / 4
	kind := tvm.PUSHREF
	if toSlice {
		kind = tvm.PUSHREFSLICE
	}

	type chunk struct {
		kind tvm.CellKind
		blob string
	}
	var data []chunk
	start := 0
	for {
		end := start + symbolQty
		if end > len(hexStr) {
			end = len(hexStr)
		}
		data = append(data, chunk{kind, ".blob x" + hexStr[start:end]})
		start += symbolQty
		kind = tvm.CELL
		if start >= len(hexStr) {
			break
		}
	}

	var cell *tvm.PushCellOrSlice
	for i := len(data) - 1; i >= 0; i-- {
		cell = &tvm.PushCellOrSlice{Kind: data[i].kind, Blob: data[i].blob, Child: cell}
	}
	assert(cell != nil, "empty string chain")
	p.append(cell)
	p.change(1)
	p.EnsureSize(saved+1, "pushString")
}

// PushLog dumps the value on top of the stack to the debug log.
func (p *StackPusher) PushLog() {
	p.Push(0, "CTOS")
	p.Push(0, "STRDUMP")
	p.Drop(1)
}

// StartContinuation opens a new emission target.
func (p *StackPusher) StartContinuation() {
	p.blocks = append(p.blocks, &pusherBlock{})
}

func (p *StackPusher) endCont(kind tvm.BlockKind) {
	assert(len(p.blocks) >= 2, "no open continuation")
	block := p.top()
	p.blocks = p.blocks[:len(p.blocks)-1]
	b := tvm.NewCodeBlock(kind, block.opcodes)
	p.append(b)
}

// EndContinuation closes the open block into a PUSHCONT literal.
func (p *StackPusher) EndContinuation() { p.endCont(tvm.PUSHCONT) }

// EndContinuationFromRef closes the open block into a reference-cell
// continuation.
func (p *StackPusher) EndContinuationFromRef() { p.endCont(tvm.PUSHREFCONT) }

// EndRetOrBreakOrCont closes the open block into the exit protocol
// wrapper.
func (p *StackPusher) EndRetOrBreakOrCont(take int) {
	assert(len(p.blocks) >= 2, "no open continuation")
	block := p.top()
	p.blocks = p.blocks[:len(p.blocks)-1]
	b := tvm.NewCodeBlock(tvm.BlockInline, block.opcodes)
	p.append(&tvm.ReturnOrBreakOrCont{TakeQty: take, Body: b})
}

// EndLogCircuit closes the open block into a short-circuit node.
func (p *StackPusher) EndLogCircuit(canExpand bool, kind tvm.LogKind) {
	assert(len(p.blocks) >= 2, "no open continuation")
	block := p.top()
	p.blocks = p.blocks[:len(p.blocks)-1]
	b := tvm.NewCodeBlock(tvm.BlockInline, block.opcodes)
	p.append(&tvm.LogCircuit{CanExpand: canExpand, Kind: kind, Body: b})
}

// StartOpaque opens a block whose contents are hidden behind a
// declared effect; the model is locked meanwhile.
func (p *StackPusher) StartOpaque() {
	p.lockStack++
	p.blocks = append(p.blocks, &pusherBlock{})
}

// EndOpaque closes the opaque block, declaring its visible effect.
func (p *StackPusher) EndOpaque(take, ret int, pure bool) {
	p.lockStack--
	assert(len(p.blocks) >= 2, "no open opaque block")
	block := p.top()
	p.blocks = p.blocks[:len(p.blocks)-1]
	b := tvm.NewCodeBlock(tvm.BlockInline, block.opcodes)
	p.append(tvm.NewOpaque(b, take, ret, pure))
	p.changeEffect(take, ret)
}

// DeclRetFlag pushes the synthetic control-flow flag slot.
func (p *StackPusher) DeclRetFlag() {
	p.append(&tvm.DeclRetFlag{})
	p.change(1)
}

func (p *StackPusher) callRefOrCallX(take, ret int, kind tvm.SubKind) {
	assert(len(p.blocks) >= 2, "no open continuation")
	block := p.top()
	p.blocks = p.blocks[:len(p.blocks)-1]
	b := tvm.NewCodeBlock(tvm.BlockInline, block.opcodes)
	p.append(tvm.NewSubProgram(take, ret, kind, b))
}

// CallRef wraps the most recently opened block as CALLREF.
func (p *StackPusher) CallRef(take, ret int) {
	p.callRefOrCallX(take, ret, tvm.CALLREF)
}

// CallX wraps the most recently opened block as CALLX.
func (p *StackPusher) CallX(take, ret int) {
	p.callRefOrCallX(take, ret, tvm.CALLX)
}

func (p *StackPusher) popBlockOperand() *tvm.CodeBlock {
	ops := p.top().opcodes
	assert(len(ops) >= 1, "missing block operand")
	block, ok := ops[len(ops)-1].(*tvm.CodeBlock)
	assert(ok, "operand is not a code block")
	p.top().opcodes = ops[:len(ops)-1]
	return block
}

// IfElse consumes the two trailing child blocks; withJmp communicates
// tail position.
func (p *StackPusher) IfElse(withJmp bool) {
	falseBlock := p.popBlockOperand()
	trueBlock := p.popBlockOperand()
	kind := tvm.IFELSE
	if withJmp {
		kind = tvm.IFELSEWITHJMP
	}
	p.append(&tvm.IfElse{Kind: kind, TrueBody: trueBlock, FalseBody: falseBlock})
}

// PushConditional consumes two trailing blocks into the
// expression-shaped conditional yielding ret values.
func (p *StackPusher) PushConditional(ret int) {
	falseBlock := p.popBlockOperand()
	trueBlock := p.popBlockOperand()
	p.append(&tvm.Condition{TrueBody: trueBlock, FalseBody: falseBlock, RetQty: ret})
	p.change(ret)
}

func (p *StackPusher) ifOrIfNot(kind tvm.IfKind) {
	trueBlock := p.popBlockOperand()
	p.append(&tvm.IfElse{Kind: kind, TrueBody: trueBlock})
}

// If consumes the trailing block into an IF.
func (p *StackPusher) If() { p.ifOrIfNot(tvm.IF) }

// IfNot consumes the trailing block into an IFNOT.
func (p *StackPusher) IfNot() { p.ifOrIfNot(tvm.IFNOT) }

// IfJmp consumes the trailing block into an IFJMP.
func (p *StackPusher) IfJmp() { p.ifOrIfNot(tvm.IFJMP) }

// IfNotJmp consumes the trailing block into an IFNOTJMP.
func (p *StackPusher) IfNotJmp() { p.ifOrIfNot(tvm.IFNOTJMP) }

// IfRef closes the open continuation and consumes it as IFREF.
func (p *StackPusher) IfRef() {
	p.EndContinuation()
	p.ifOrIfNot(tvm.IFREF)
}

// IfNotRef closes the open continuation and consumes it as IFNOTREF.
func (p *StackPusher) IfNotRef() {
	p.EndContinuation()
	p.ifOrIfNot(tvm.IFNOTREF)
}

// IfJmpRef closes the open continuation and consumes it as IFJMPREF.
func (p *StackPusher) IfJmpRef() {
	p.EndContinuation()
	p.ifOrIfNot(tvm.IFJMPREF)
}

// IfNotJmpRef closes the open continuation and consumes it as
// IFNOTJMPREF.
func (p *StackPusher) IfNotJmpRef() {
	p.EndContinuation()
	p.ifOrIfNot(tvm.IFNOTJMPREF)
}

// Repeat consumes the trailing block into a counted loop.
func (p *StackPusher) Repeat() {
	body := p.popBlockOperand()
	p.append(&tvm.Repeat{Body: body})
}

// Until consumes the trailing block into an until loop.
func (p *StackPusher) Until() {
	body := p.popBlockOperand()
	p.append(&tvm.Until{Body: body})
}

// While consumes the two trailing blocks (condition, body).
func (p *StackPusher) While() {
	body := p.popBlockOperand()
	cond := p.popBlockOperand()
	p.append(&tvm.While{Cond: cond, Body: body})
}

// Ret emits an unconditional return.
func (p *StackPusher) Ret() {
	p.append(tvm.MakeRET())
}

// IfRet emits a conditional return consuming the flag.
func (p *StackPusher) IfRet() {
	p.append(tvm.MakeIFRET())
	p.change(-1)
}

// IfNotRet emits an inverted conditional return.
func (p *StackPusher) IfNotRet() {
	p.append(tvm.MakeIFNOTRET())
	p.change(-1)
}

// Throw emits an exception op; its post-state is unreachable.
func (p *StackPusher) Throw(cmd string) {
	op := tvm.MakeTHROW(cmd)
	p.append(op)
	p.changeEffect(op.Gen.Take(), op.Gen.Ret())
}

// Drop removes the cnt topmost values.
func (p *StackPusher) Drop(cnt int) {
	assert(cnt >= 0, "negative drop")
	if cnt >= 1 {
		p.change(-cnt)
		p.pushStackOp(tvm.MakeDROP(cnt))
	}
}

// DropUnder drops droppedCount values situated under the top
// leftCount values.
func (p *StackPusher) DropUnder(droppedCount, leftCount int) {
	assert(droppedCount >= 0 && leftCount >= 0, "negative dropUnder")
	switch {
	case droppedCount == 0:
	case leftCount == 0:
		p.Drop(droppedCount)
	case droppedCount == 1 && leftCount == 1:
		p.PopS(1)
	default:
		p.pushStackOp(tvm.MakeBLKDROP2(droppedCount, leftCount))
		p.change(-droppedCount)
	}
}

// BlockSwap exchanges the down-block with the up-block above it.
func (p *StackPusher) BlockSwap(down, up int) {
	assert(down >= 0 && up >= 0, "negative blockSwap")
	if down == 0 || up == 0 {
		return
	}
	p.pushStackOp(tvm.MakeBLKSWAP(down, up))
}

// Reverse reverses i values at depth j.
func (p *StackPusher) Reverse(i, j int) {
	p.pushStackOp(tvm.MakeREVERSE(i, j))
}

// Exchange swaps s0 and si.
func (p *StackPusher) Exchange(i int) {
	p.pushStackOp(tvm.MakeXCHS(i))
}

// Rot rotates the three topmost values upward.
func (p *StackPusher) Rot() { p.pushStackOp(tvm.MakeROT()) }

// RotRev rotates the three topmost values downward.
func (p *StackPusher) RotRev() { p.pushStackOp(tvm.MakeROTREV()) }

// PushS pushes a copy of si.
func (p *StackPusher) PushS(i int) {
	assert(i >= 0, "negative stack index")
	p.pushStackOp(tvm.MakePUSH(i))
	p.change(1)
}

// PushS2 pushes copies of si and sj.
func (p *StackPusher) PushS2(i, j int) {
	assert(i >= 0 && j >= 0, "negative stack index")
	p.pushStackOp(tvm.MakePUSH2(i, j))
	p.change(2)
}

// Dup2 duplicates the two topmost values.
func (p *StackPusher) Dup2() {
	p.pushStackOp(tvm.MakePUSH2(1, 0))
	p.change(2)
}

// PopS stores s0 into si.
func (p *StackPusher) PopS(i int) {
	assert(i >= 1, "pop index must be positive")
	p.pushStackOp(tvm.MakePOP(i))
	p.change(-1)
}

// Tuple packs qty values; beyond the compact cap the variable form is
// used internally.
func (p *StackPusher) Tuple(qty int) {
	assert(qty >= 0, "negative tuple arity")
	if qty <= 15 {
		p.Push(-qty+1, fmt.Sprintf("TUPLE %d", qty))
		return
	}
	assert(qty <= 255, "tuple arity out of range")
	p.PushSmallInt(qty)
	op := tvm.NewGenOp("TUPLEVAR", "", qty+1, 1, false)
	p.append(op)
	p.changeEffect(qty+1, 1)
}

// Untuple unpacks a tuple of n values.
func (p *StackPusher) Untuple(n int) {
	assert(n >= 0, "negative untuple arity")
	if n <= 15 {
		p.Push(-1+n, fmt.Sprintf("UNTUPLE %d", n))
		return
	}
	assert(n <= 255, "untuple arity out of range")
	p.PushSmallInt(n)
	op := tvm.NewGenOp("UNTUPLEVAR", "", 2, n, false)
	p.append(op)
	p.changeEffect(2, n)
}

// IndexWithExcep reads tuple slot index, throwing when absent.
func (p *StackPusher) IndexWithExcep(index int) {
	assert(0 <= index && index <= 254, "index out of range")
	p.Push(-1+1, fmt.Sprintf("INDEX_EXCEP %d", index))
}

// IndexNoexcep reads tuple slot index.
func (p *StackPusher) IndexNoexcep(index int) {
	assert(0 <= index && index <= 254, "index out of range")
	p.Push(-1+1, fmt.Sprintf("INDEX_NOEXCEP %d", index))
}

// SetIndex writes tuple slot index.
func (p *StackPusher) SetIndex(index int) {
	assert(index >= 0, "negative index")
	if index <= 15 {
		p.Push(-2+1, fmt.Sprintf("SETINDEX %d", index))
		return
	}
	assert(index <= 254, "index out of range")
	p.PushSmallInt(index)
	p.Push(-3+1, "SETINDEXVAR")
}

// SetIndexQ writes tuple slot index, growing the tuple when needed.
func (p *StackPusher) SetIndexQ(index int) {
	assert(index >= 0, "negative index")
	if index <= 15 {
		p.Push(-2+1, fmt.Sprintf("SETINDEXQ %d", index))
		return
	}
	assert(index <= 254, "index out of range")
	p.PushSmallInt(index)
	p.Push(-3+1, "SETINDEXVARQ")
}

// GetGlob reads global slot index.
func (p *StackPusher) GetGlob(index int) {
	assert(index >= 0, "negative global index")
	p.change(1)
	p.append(&tvm.Glob{Op: tvm.GetGlob, Index: index})
}

// GetGlobVar reads the global slot of a state variable.
func (p *StackPusher) GetGlobVar(v *VariableDeclaration) {
	p.GetGlob(p.ctx.StateVarIndex(v))
}

// SetGlob writes global slot index.
func (p *StackPusher) SetGlob(index int) {
	p.append(tvm.MakeSetGlob(index))
	p.change(-1)
}

// SetGlobVar writes the global slot of a state variable.
func (p *StackPusher) SetGlobVar(v *VariableDeclaration) {
	idx := p.ctx.StateVarIndex(v)
	assert(idx >= 0, "bad state variable index")
	p.SetGlob(idx)
}

// PushC4 pushes the persistent storage cell.
func (p *StackPusher) PushC4() {
	p.change(1)
	p.append(&tvm.Glob{Op: tvm.PushRoot})
}

// PopRoot stores the top cell as persistent storage.
func (p *StackPusher) PopRoot() {
	p.change(-1)
	p.append(&tvm.Glob{Op: tvm.PopRoot})
}

// PushC3 pushes the code register.
func (p *StackPusher) PushC3() {
	p.change(1)
	p.append(&tvm.Glob{Op: tvm.PushC3})
}

// PopC3 sets the code register.
func (p *StackPusher) PopC3() {
	p.change(-1)
	p.append(&tvm.Glob{Op: tvm.PopC3})
}

// PushC7 pushes the ephemeral state tuple.
func (p *StackPusher) PushC7() {
	p.change(1)
	p.append(&tvm.Glob{Op: tvm.PushC7})
}

// PopC7 replaces the ephemeral state tuple.
func (p *StackPusher) PopC7() {
	p.change(-1)
	p.append(&tvm.Glob{Op: tvm.PopC7})
}

// Execute runs the continuation on top of the stack.
func (p *StackPusher) Execute(take, ret int) {
	op := tvm.NewGenOp("EXECUTE", "", take, ret, false)
	p.changeEffect(take, ret)
	p.append(op)
}

// PushCall emits a call to a named procedure.
func (p *StackPusher) PushCall(take, ret int, functionName string) {
	p.changeEffect(take, ret)
	p.append(tvm.NewGenOp("CALL", "$"+functionName+"$", take, ret, false))
}

// PushMacroCallInCallRef loads a macro call into a reference-cell
// continuation.
func (p *StackPusher) PushMacroCallInCallRef(take, ret int, functionName string) {
	p.StartContinuation()
	p.PushCall(take, ret, functionName)
	p.CallRef(take, ret)
}

// PushCallOrCallRef picks macro inlining for acyclic calls and plain
// CALL linkage when the call graph has a loop through the callee.
func (p *StackPusher) PushCallOrCallRef(functionName string, callee *FunctionDefinition, deltaStack *[2]int) {
	var take, ret int
	if deltaStack != nil {
		take, ret = deltaStack[0], deltaStack[1]
	} else {
		take = len(callee.Params)
		ret = len(callee.RetParams)
	}

	if len(functionName) > 6 && functionName[len(functionName)-6:] == "_macro" || functionName == ":onCodeUpgrade" {
		p.PushMacroCallInCallRef(take, ret, functionName)
		return
	}

	hasLoop := p.ctx.AddAndDoesHaveLoop(p.ctx.CurrentFunction(), callee)
	if hasLoop {
		p.PushCall(take, ret, functionName)
	} else {
		p.PushMacroCallInCallRef(take, ret, functionName+"_macro")
	}
}

// PushInlineFunction splices a lowered body into the current block.
func (p *StackPusher) PushInlineFunction(block *tvm.CodeBlock, take, ret int) {
	assert(block.Kind == tvm.BlockInline, "inline body must be a plain block")
	for _, op := range block.Instructions() {
		p.append(op)
	}
	p.changeEffect(take, ret)
}

// PollLastRetOpcode removes the trailing RET from the last exit
// wrapper, splicing the wrapper's body in place. Used when a
// function's only return sits in tail position.
func (p *StackPusher) PollLastRetOpcode() {
	opcodes := p.top().opcodes
	offset := 0
	for offset < len(opcodes) && tvm.IsLoc(opcodes[len(opcodes)-1-offset]) {
		offset++
	}
	begPos := len(opcodes) - 1 - offset
	assert(begPos >= 0, "no exit wrapper to poll")
	wrapper, ok := opcodes[begPos].(*tvm.ReturnOrBreakOrCont)
	assert(ok, "last opcode is not an exit wrapper")

	insts := wrapper.Body.Instructions()
	assert(len(insts) > 0, "empty exit wrapper")
	ret, ok := insts[len(insts)-1].(*tvm.Return)
	assert(ok && ret.Kind == tvm.RET, "exit wrapper does not end with RET")
	insts = insts[:len(insts)-1]

	var out []tvm.Node
	out = append(out, opcodes[:begPos]...)
	out = append(out, insts...)
	out = append(out, opcodes[begPos+1:]...)
	p.top().opcodes = out
}

// TryPollEmptyPushCont removes a just-closed empty continuation and
// reports whether it did.
func (p *StackPusher) TryPollEmptyPushCont() bool {
	opcodes := p.top().opcodes
	assert(len(opcodes) >= 2, "not enough opcodes")
	block, ok := opcodes[len(opcodes)-1].(*tvm.CodeBlock)
	assert(ok, "trailing opcode is not a block")
	if len(block.Instructions()) == 0 {
		p.top().opcodes = opcodes[:len(opcodes)-1]
		return true
	}
	return false
}

// PushParameters binds function parameters to stack slots.
func (p *StackPusher) PushParameters(params []*VariableDeclaration) {
	for _, v := range params {
		p.stack.Add(v, true)
	}
}

// TryAssignParam pops the top value into decl's slot when decl is
// stack-bound.
func (p *StackPusher) TryAssignParam(decl *VariableDeclaration) bool {
	if !p.stack.IsParam(decl) {
		return false
	}
	idx := p.stack.Offset(decl)
	assert(idx >= 0, "negative offset")
	if idx != 0 {
		p.PopS(idx)
	}
	return true
}

// WasC4ToC7Called leaves true when storage has not been decoded yet.
func (p *StackPusher) WasC4ToC7Called() {
	p.GetGlob(C7TvmPubkey)
	p.Push(-1+1, "ISNULL")
}

// CheckCtorCalled throws unless the constructor flag is set.
func (p *StackPusher) CheckCtorCalled() {
	p.GetGlob(C7ConstructorFlag)
	p.Throw(fmt.Sprintf("THROWIFNOT %d", ExceptionCallBeforeCtorCall))
}

// CheckIfCtorCalled guards a continuation by the constructor flag.
func (p *StackPusher) CheckIfCtorCalled(ifFlag bool) {
	p.StartContinuation()
	p.CheckCtorCalled()
	if ifFlag {
		p.IfJmpRef()
	} else {
		p.IfNotJmpRef()
	}
}

// ResetAllStateVars materializes default values for every state
// variable.
func (p *StackPusher) ResetAllStateVars() {
	for _, v := range p.ctx.NotConstantStateVariables() {
		p.PushDefaultValue(v.Type, false)
		p.SetGlobVar(v)
	}
}

// ByteLengthOfCell computes the serialized byte length of the cell on
// top of the stack.
func (p *StackPusher) ByteLengthOfCell() {
	p.PushInt(big.NewInt(0xFFFFFFFF))
	p.Push(-2+3, "CDATASIZE")
	p.Drop(1)
	p.DropUnder(1, 1)
	p.Push(-1+1, "RSHIFT 3")
}

// SendRawMsg emits the message-send primitive.
func (p *StackPusher) SendRawMsg() {
	p.Push(-2, "SENDRAWMSG")
}
