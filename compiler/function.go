package compiler

import (
	"fmt"

	"github.com/likenty/tvmc/tvm"
)

// ControlFlowInfo is one frame of the lowering control-flow stack.
type ControlFlowInfo struct {
	StackSize int
	IsLoop    bool
	UseJmp    bool
}

// ContInfo summarizes how a statement may leave its enclosing
// control flow.
type ContInfo struct {
	CanReturn   bool
	CanBreak    bool
	CanContinue bool

	AlwaysReturns  bool
	AlwaysBreak    bool
	AlwaysContinue bool
}

// MayDoThat reports any non-local exit.
func (c ContInfo) MayDoThat() bool {
	return c.CanReturn || c.CanBreak || c.CanContinue
}

// DoThatAlways reports a guaranteed non-local exit on every path.
func (c ContInfo) DoThatAlways() bool {
	return c.AlwaysReturns || c.AlwaysBreak || c.AlwaysContinue
}

// getInfo scans statement for the exit protocol it needs.
func getInfo(statement Statement) ContInfo {
	var info ContInfo
	scanLoopExits(statement, true, &info)
	info.AlwaysReturns = doesAlways(statement, func(s Statement) bool {
		_, ok := s.(*ReturnStatement)
		return ok
	})
	info.AlwaysBreak = doesAlways(statement, func(s Statement) bool {
		_, ok := s.(*BreakStatement)
		return ok
	})
	info.AlwaysContinue = doesAlways(statement, func(s Statement) bool {
		_, ok := s.(*ContinueStatement)
		return ok
	})
	return info
}

// scanLoopExits marks returns anywhere and break/continue outside
// nested loops.
func scanLoopExits(s Statement, topLoopLevel bool, info *ContInfo) {
	switch st := s.(type) {
	case *ReturnStatement:
		info.CanReturn = true
	case *BreakStatement:
		if topLoopLevel {
			info.CanBreak = true
		}
	case *ContinueStatement:
		if topLoopLevel {
			info.CanContinue = true
		}
	case *Block:
		for _, sub := range st.Statements {
			scanLoopExits(sub, topLoopLevel, info)
		}
	case *IfStatement:
		scanLoopExits(st.True, topLoopLevel, info)
		if st.False != nil {
			scanLoopExits(st.False, topLoopLevel, info)
		}
	case *WhileStatement:
		scanLoopExits(st.Body, false, info)
	case *ForStatement:
		scanLoopExits(st.Body, false, info)
	case *ForEachStatement:
		scanLoopExits(st.Body, false, info)
	}
}

// doesAlways reports that every path through s reaches a statement
// matched by pred.
func doesAlways(s Statement, pred func(Statement) bool) bool {
	if pred(s) {
		return true
	}
	switch st := s.(type) {
	case *Block:
		for _, sub := range st.Statements {
			if doesAlways(sub, pred) {
				return true
			}
		}
	case *IfStatement:
		if st.False == nil {
			return false
		}
		return doesAlways(st.True, pred) && doesAlways(st.False, pred)
	}
	return false
}

// LocationReturn classifies where returns occur in a body.
type LocationReturn int

const (
	ReturnNowhere LocationReturn = iota
	ReturnLast
	ReturnAnywhere
)

// locateReturns reports whether the body returns only in tail
// position, so no wrapping continuation is needed when inlining.
func locateReturns(body *Block) LocationReturn {
	var count func(Statement) int
	count = func(s Statement) int {
		switch st := s.(type) {
		case *ReturnStatement:
			return 1
		case *Block:
			n := 0
			for _, sub := range st.Statements {
				n += count(sub)
			}
			return n
		case *IfStatement:
			n := count(st.True)
			if st.False != nil {
				n += count(st.False)
			}
			return n
		case *WhileStatement:
			return count(st.Body)
		case *ForStatement:
			return count(st.Body)
		case *ForEachStatement:
			return count(st.Body)
		}
		return 0
	}

	total := count(body)
	if total == 0 {
		return ReturnNowhere
	}
	if total == 1 && len(body.Statements) > 0 {
		if _, ok := body.Statements[len(body.Statements)-1].(*ReturnStatement); ok {
			return ReturnLast
		}
	}
	return ReturnAnywhere
}

// withPrelocatedRetValues reports that named return values occupy
// stack slots below the body's locals.
func withPrelocatedRetValues(f *FunctionDefinition) bool {
	for _, r := range f.RetParams {
		if r.Name != "" {
			return true
		}
	}
	return false
}

// FunctionCompiler lowers one function (or one modifier of the
// chain) into the emitter.
type FunctionCompiler struct {
	pusher          *StackPusher
	startStackSize  int
	currentModifier int
	function        *FunctionDefinition
	contract        *ContractDefinition
	pushArgs        bool

	controlFlowInfo []ControlFlowInfo
}

// NewContractLevelCompiler builds a compiler without a current
// function, for entry lowering.
func NewContractLevelCompiler(pusher *StackPusher, contract *ContractDefinition) *FunctionCompiler {
	return &FunctionCompiler{pusher: pusher, contract: contract}
}

// NewFunctionCompiler builds a compiler for the given modifier level
// of f.
func NewFunctionCompiler(pusher *StackPusher, modifier int, f *FunctionDefinition, pushArgs bool, startStackSize int) *FunctionCompiler {
	contract := f.Contract
	return &FunctionCompiler{
		pusher:          pusher,
		startStackSize:  startStackSize,
		currentModifier: modifier,
		function:        f,
		contract:        contract,
		pushArgs:        pushArgs,
	}
}

func (f *FunctionCompiler) acceptExpr(expr Expression, isResultNeeded bool) {
	assert(expr != nil, "nil expression")
	NewExpressionCompiler(f.pusher).AcceptExpr(expr, isResultNeeded)
}

// pushLocation emits a source marker; reset marks the end of the
// range with line 0.
func (f *FunctionCompiler) pushLocation(node Positioned, reset bool) {
	loc := node.Pos()
	line := loc.Line
	if reset {
		line = 0
	}
	f.pusher.PushLoc(loc.File, line)
}

// endContinuation2 closes the open continuation, dropping (or only
// accounting for) the values the block grew.
func (f *FunctionCompiler) endContinuation2(doDrop bool) {
	delta := f.pusher.StackSize() - f.controlFlowInfo[len(f.controlFlowInfo)-1].StackSize
	if doDrop {
		f.pusher.Drop(delta)
	} else {
		f.pusher.FixStack(-delta)
	}
	f.pusher.EndContinuation()
}

// allJmp reports that every enclosing frame transfers control by
// jump, so a bare RET reaches the caller directly.
func (f *FunctionCompiler) allJmp() bool {
	for _, info := range f.controlFlowInfo {
		if !info.UseJmp {
			return false
		}
	}
	return true
}

// functionModifiers lists the modifier invocations of the function.
func (f *FunctionCompiler) functionModifiers() []*ModifierInvocation {
	return f.function.Modifiers
}

// VisitFunctionWithModifiers lowers the modifier chain around the
// function body.
//
// Stack layout while lowering:
//
//	[ params | named returns | modifier-0 locals | … | body locals ]
func (f *FunctionCompiler) VisitFunctionWithModifiers() {
	p := f.pusher
	argQty := len(f.function.Params)
	retQty := len(f.function.RetParams)
	nameRetQty := 0
	if withPrelocatedRetValues(f.function) {
		nameRetQty = retQty
	}

	if f.currentModifier == 0 {
		if f.pushArgs {
			assert(f.startStackSize == 0, "arguments pushed over a dirty stack")
			p.PushParameters(f.function.Params)
		} else {
			assert(f.startStackSize >= 0, "negative start stack")
		}

		assert(!(f.function.ExternalMsg && f.function.InternalMsg), "conflicting msg qualifiers")
		if f.function.ExternalMsg || f.function.InternalMsg {
			p.PushHardCode([]string{
				"DEPTH",
				"ADDCONST -5",
				"PICK",
			}, 0, 1, true)
		}
		if f.function.ExternalMsg {
			p.Push(-1+1, "EQINT -1")
			p.Throw(fmt.Sprintf("THROWIFNOT %d", ExceptionByExtMsgOnly))
		} else if f.function.InternalMsg {
			p.Throw(fmt.Sprintf("THROWIF %d", ExceptionByIntMsgOnly))
		}
	}

	if f.currentModifier == len(f.functionModifiers()) {
		modSize := p.StackSize() - argQty
		p.BlockSwap(argQty, modSize)

		body := p.Fork()
		body.FixStack(-modSize)

		bodyCompiler := NewFunctionCompiler(body, f.currentModifier, f.function, f.pushArgs, 0)
		bodyCompiler.visitModifierOrFunctionBlock(f.function.Body, argQty, retQty, nameRetQty)
		p.Add(body)
		p.FixStack(-argQty + retQty)

		p.BlockSwap(modSize, retQty)
	} else {
		ss := p.StackSize()
		invocation := f.functionModifiers()[f.currentModifier]
		def := invocation.Def
		modParamQty := len(invocation.Args)
		for i := 0; i < modParamQty; i++ {
			NewExpressionCompiler(p).CompileNewExpr(invocation.Args[i])
			p.GetStack().Add(def.Params[i], false)
		}
		modCompiler := NewFunctionCompiler(p, f.currentModifier, f.function, f.pushArgs, ss)
		modCompiler.controlFlowInfo = f.controlFlowInfo
		modCompiler.visitModifierOrFunctionBlock(def.Body, modParamQty, 0, 0)
		p.EnsureSize(ss, "modifier chain")
	}
}

func (f *FunctionCompiler) visitModifierOrFunctionBlock(body *Block, argQty, retQty, nameRetQty int) {
	p := f.pusher
	locationReturn := locateReturns(body)

	doPushContinuation := locationReturn == ReturnAnywhere
	if doPushContinuation {
		p.StartContinuation()
	}
	if f.currentModifier == len(f.function.Modifiers) && withPrelocatedRetValues(f.function) {
		f.pushDefaultParameters(f.function.RetParams)
	}
	f.acceptBody(body, &[2]int{argQty, nameRetQty})
	if locationReturn == ReturnLast {
		p.PollLastRetOpcode()
	}
	if doPushContinuation {
		f.pushLocation(f.function, false)
		p.CallX(argQty, retQty)
		f.pushLocation(f.function, true)
	}
}

func (f *FunctionCompiler) pushDefaultParameters(returnParams []*VariableDeclaration) {
	for _, ret := range returnParams {
		f.pusher.PushDefaultValue(ret.Type, false)
		f.pusher.GetStack().Add(ret, false)
	}
}

// acceptBody lowers a block; functionBlock carries (argQty,
// nameRetQty) when the block is a function or modifier body, which
// changes how leftovers are dropped.
func (f *FunctionCompiler) acceptBody(block *Block, functionBlock *[2]int) {
	p := f.pusher
	startStackSize := p.StackSize()

	for _, s := range block.Statements {
		f.pushLocation(s, false)
		f.visitStatement(s)
	}

	lastIsRet := false
	if len(block.Statements) > 0 {
		_, lastIsRet = block.Statements[len(block.Statements)-1].(*ReturnStatement)
	}

	if functionBlock != nil {
		argQty, nameRetQty := functionBlock[0], functionBlock[1]
		funTrash := p.StackSize() - f.startStackSize - argQty - nameRetQty
		assert(funTrash >= 0, "negative local count")
		if !lastIsRet {
			p.Drop(funTrash)
			p.DropUnder(argQty, nameRetQty)
		} else {
			p.FixStack(-funTrash - argQty)
		}
	} else {
		delta := p.StackSize() - startStackSize
		assert(delta >= 0, "block shrank the stack")
		if !lastIsRet {
			p.Drop(delta)
		} else {
			p.FixStack(-delta)
		}
	}

	f.pushLocation(block, true)
}

func (f *FunctionCompiler) visitStatement(s Statement) {
	switch st := s.(type) {
	case *Block:
		f.acceptBody(st, nil)
	case *IfStatement:
		f.visitIf(st)
	case *WhileStatement:
		f.visitWhile(st)
	case *ForStatement:
		f.visitFor(st)
	case *ForEachStatement:
		f.visitForEach(st)
	case *ReturnStatement:
		f.visitReturn(st)
	case *BreakStatement:
		f.breakOrContinue(BreakFlag)
	case *ContinueStatement:
		f.breakOrContinue(ContinueFlag)
	case *EmitStatement:
		f.visitEmit(st)
	case *ExpressionStatement:
		if !st.Expr.Pure() {
			f.pushLocation(st, false)
			saved := f.pusher.StackSize()
			f.acceptExpr(st.Expr, false)
			f.pusher.EnsureSize(saved, "expression statement")
			f.pushLocation(st, true)
		}
	case *VarDeclStatement:
		f.visitVarDecl(st)
	case *PlaceholderStatement:
		next := NewFunctionCompiler(f.pusher, f.currentModifier+1, f.function, f.pushArgs, f.pusher.StackSize())
		next.controlFlowInfo = f.controlFlowInfo
		next.VisitFunctionWithModifiers()
	default:
		panic(castError(s, "unsupported statement"))
	}
}

func (f *FunctionCompiler) visitVarDecl(st *VarDeclStatement) {
	p := f.pusher
	saved := p.StackSize()
	bad := 0
	n := len(st.Decls)

	if st.Value != nil {
		f.acceptExpr(st.Value, true)
		if n == 1 {
			if st.Decls[0] != nil {
				p.HardConvert(st.Decls[0].Type, st.Value.ResultType())
			} else {
				bad++
				p.Drop(1)
			}
		} else {
			// multi-value producers leave their results unpacked
			tuple, ok := st.Value.ResultType().(*TupleType)
			assert(ok, "multi-declaration over a non-tuple value")
			hasName := make([]bool, n)
			for i := n - 1; i >= 0; i-- {
				if st.Decls[i] != nil {
					p.HardConvert(st.Decls[i].Type, tuple.Components[i])
					hasName[i] = true
				} else {
					bad++
				}
				p.BlockSwap(n-1, 1)
			}
			// drop discarded components, keeping the named ones
			top := 0
			for i := n - 1; i >= 0; i-- {
				if !hasName[i] {
					p.DropUnder(1, top)
				} else {
					top++
				}
			}
		}
	} else {
		for _, d := range st.Decls {
			assert(d != nil, "default declaration without a name")
			p.PushDefaultValue(d.Type, false)
		}
	}

	p.FixStack(-n + bad)
	for _, d := range st.Decls {
		if d != nil {
			p.GetStack().Add(d, true)
		}
	}
	p.EnsureSize(saved+n-bad, "variable declaration")
}

func (f *FunctionCompiler) visitIf(st *IfStatement) {
	p := f.pusher
	saved := p.StackSize()

	ci := getInfo(st)
	var canUseJmp bool
	if st.False != nil {
		canUseJmp = getInfo(st.True).DoThatAlways() && getInfo(st.False).DoThatAlways()
	} else {
		canUseJmp = getInfo(st.True).DoThatAlways()
	}

	if canUseJmp {
		f.controlFlowInfo = append(f.controlFlowInfo, ControlFlowInfo{
			StackSize: p.StackSize(),
			UseJmp:    true,
		})
	} else {
		info := f.pushControlFlowFlagAndReturnControlFlowInfo(ci, false)
		f.controlFlowInfo = append(f.controlFlowInfo, info)
	}

	// condition
	f.acceptExpr(st.Cond, true)
	p.FixStack(-1)

	// then
	p.StartContinuation()
	f.visitStatement(st.True)
	f.endContinuation2(!canUseJmp)

	if st.False != nil {
		p.StartContinuation()
		f.visitStatement(st.False)
		f.endContinuation2(!canUseJmp)
		p.IfElse(canUseJmp)
	} else {
		if canUseJmp {
			p.IfJmp()
		} else {
			p.If()
		}
		f.pushLocation(st, true)
	}

	f.controlFlowInfo = f.controlFlowInfo[:len(f.controlFlowInfo)-1]

	if !canUseJmp && ci.MayDoThat() {
		p.StartOpaque()
		if ci.CanReturn {
			if f.allJmp() {
				p.Push(0, fmt.Sprintf("EQINT %d", ReturnFlag))
				p.IfRet()
			} else {
				p.PushS(0)
				p.IfRet()
				p.Drop(1)
			}
		} else {
			p.PushS(0)
			p.IfRet() // break or continue unwinds further out
			p.Drop(1)
		}
		p.EndOpaque(1, 0, false)
	}
	p.EnsureSize(saved, "if")
}

func (f *FunctionCompiler) pushControlFlowFlagAndReturnControlFlowInfo(ci ContInfo, isLoop bool) ControlFlowInfo {
	info := ControlFlowInfo{IsLoop: isLoop, StackSize: -1}
	if ci.MayDoThat() {
		f.pusher.DeclRetFlag()
	}
	info.StackSize = f.pusher.StackSize()
	return info
}

func (f *FunctionCompiler) pushControlFlowFlag(body Statement) (ContInfo, ControlFlowInfo) {
	ci := getInfo(body)
	info := f.pushControlFlowFlagAndReturnControlFlowInfo(ci, true)
	f.controlFlowInfo = append(f.controlFlowInfo, info)
	return ci, info
}

// afterLoopCheck propagates a pending return flag past the loop and
// drops loop-local values.
func (f *FunctionCompiler) afterLoopCheck(ci ContInfo, loopVarQty int) {
	p := f.pusher
	if ci.CanReturn {
		p.StartOpaque()
		if f.allJmp() {
			p.Push(0, fmt.Sprintf("EQINT %d", ReturnFlag))
			p.IfRet()
		} else {
			p.PushS(0)
			if ci.CanBreak || ci.CanContinue {
				p.Push(0, fmt.Sprintf("EQINT %d", ReturnFlag))
			}
			p.IfRet()
			p.Drop(1)
		}
		p.EndOpaque(1, 0, false)
	} else if ci.CanBreak || ci.CanContinue {
		p.Drop(1)
	}
	p.Drop(loopVarQty)
}

// visitForOrWhileCondition emits the loop condition continuation,
// short-circuiting on a pending break/return flag.
func (f *FunctionCompiler) visitForOrWhileCondition(ci ContInfo, info ControlFlowInfo, pushCondition func()) {
	p := f.pusher
	saved := p.StackSize()
	p.StartContinuation()
	if ci.CanBreak || ci.CanReturn {
		p.PushS(p.StackSize() - info.StackSize)
		p.Push(0, "LESSINT 2")
		p.FixStack(-1)

		if pushCondition != nil {
			p.PushS(0)
			p.StartContinuation()
			p.Drop(1)
			pushCondition()
			p.EndLogCircuit(!ci.CanReturn, tvm.LogAnd)
			p.FixStack(-1)
		}
	} else {
		if pushCondition != nil {
			pushCondition()
			p.FixStack(-1)
		} else {
			p.Push(1, "TRUE")
			p.FixStack(-1)
		}
	}
	p.EndContinuation()
	p.EnsureSize(saved, "loop condition")
}

// visitBodyOfForLoop wraps the loop body in a CALLX when the exit
// protocol must observe flags, then appends the loop expression.
func (f *FunctionCompiler) visitBodyOfForLoop(
	ci ContInfo,
	pushStartBody func(),
	body Statement,
	loopExpression func(),
) {
	p := f.pusher
	p.StartContinuation()
	if pushStartBody != nil {
		pushStartBody()
	}
	if ci.MayDoThat() {
		ss := p.StackSize()
		p.StartContinuation()
		f.visitStatement(body)
		p.Drop(p.StackSize() - ss)
		p.CallX(0, 0)
		if ci.CanReturn || ci.CanBreak {
			p.StartOpaque()
			p.PushS(0)
			if ci.CanContinue {
				p.Push(0, fmt.Sprintf("GTINT %d", ContinueFlag))
			}
			p.IfRet()
			p.EndOpaque(1, 1, false)
		}
	} else {
		ss := p.StackSize()
		f.visitStatement(body)
		p.Drop(p.StackSize() - ss)
	}
	if loopExpression != nil {
		loopExpression()
	}
	p.EndContinuation()
	p.While()
	f.controlFlowInfo = f.controlFlowInfo[:len(f.controlFlowInfo)-1]
}

func (f *FunctionCompiler) visitWhile(st *WhileStatement) {
	p := f.pusher
	savedForWhile := p.StackSize()

	if st.Kind == LoopDoWhile {
		f.doWhile(st)
		return
	}

	ci, info := f.pushControlFlowFlag(st.Body)
	saved := p.StackSize()

	// condition
	if st.Kind == LoopRepeat {
		if ci.MayDoThat() {
			panic(castError(st, "using 'break', 'continue' or 'return' is not supported yet"))
		}
		f.acceptExpr(st.Cond, true)
		p.FixStack(-1)
	} else {
		f.visitForOrWhileCondition(ci, info, func() {
			f.acceptExpr(st.Cond, true)
		})
	}
	p.EnsureSize(saved, "while condition")

	// body
	p.StartContinuation()
	f.visitStatement(st.Body)
	p.Drop(p.StackSize() - saved)
	p.EndContinuation()

	if st.Kind == LoopRepeat {
		p.Repeat()
	} else {
		p.While()
	}

	f.controlFlowInfo = f.controlFlowInfo[:len(f.controlFlowInfo)-1]

	f.afterLoopCheck(ci, 0)
	p.EnsureSize(savedForWhile, "while")
}

func (f *FunctionCompiler) doWhile(st *WhileStatement) {
	p := f.pusher
	saved := p.StackSize()

	ci, _ := f.pushControlFlowFlag(st.Body)

	// body
	p.StartContinuation()
	ss := p.StackSize()
	if ci.MayDoThat() {
		p.StartContinuation()
		f.visitStatement(st.Body)
		p.Drop(p.StackSize() - ss)
		p.CallX(0, 0)
	} else {
		f.visitStatement(st.Body)
		p.Drop(p.StackSize() - ss)
	}
	// condition: loop until "done or condition false"
	if ci.CanBreak || ci.CanReturn {
		p.PushS(0)
		if ci.CanContinue {
			p.Push(-1+1, fmt.Sprintf("GTINT %d", ContinueFlag))
		}
		p.PushS(0)
		p.FixStack(-2)

		p.StartContinuation()
		p.FixStack(1)
		p.Drop(1)
		f.acceptExpr(st.Cond, true)
		p.Push(0, "NOT")
		p.EndLogCircuit(!ci.CanReturn, tvm.LogOr)
	} else {
		f.acceptExpr(st.Cond, true)
		p.Push(0, "NOT")
	}
	p.FixStack(-1)
	p.EndContinuation()

	p.Until()

	f.controlFlowInfo = f.controlFlowInfo[:len(f.controlFlowInfo)-1]

	f.afterLoopCheck(ci, 0)
	p.EnsureSize(saved, "do-while")
}

func (f *FunctionCompiler) visitFor(st *ForStatement) {
	p := f.pusher
	saved := p.StackSize()

	// init
	loopVarQty := 0
	if st.Init != nil {
		before := p.StackSize()
		f.visitStatement(st.Init)
		loopVarQty = p.StackSize() - before
	}

	ci, info := f.pushControlFlowFlag(st.Body)

	// condition
	var pushCondition func()
	if st.Cond != nil {
		pushCondition = func() {
			f.acceptExpr(st.Cond, true)
		}
	}
	f.visitForOrWhileCondition(ci, info, pushCondition)

	// body and loop expression
	var loopExpression func()
	if st.Post != nil {
		loopExpression = func() {
			f.visitStatement(st.Post)
		}
	}
	f.visitBodyOfForLoop(ci, nil, st.Body, loopExpression)

	f.afterLoopCheck(ci, loopVarQty)
	p.EnsureSize(saved, "for")
}

func (f *FunctionCompiler) visitForEach(st *ForEachStatement) {
	p := f.pusher
	saved := p.StackSize()
	NewExpressionCompiler(p).AcceptExpr(st.Range, true)

	rangeType := st.Range.ResultType()
	arrayType, isArray := rangeType.(*ArrayType)
	mappingType, isMapping := rangeType.(*MappingType)

	var loopVarQty int
	switch {
	case isArray && arrayType.ByteArray:
		// bytes: [cell value]
		assert(len(st.Decl.Decls) == 1, "byte iteration binds one variable")
		p.Push(0, "CTOS")
		p.PushNull()
		loopVarQty = 2
		p.GetStack().Add(st.Decl.Decls[0], false)

	case isArray:
		// array: [dict index value]
		assert(len(st.Decl.Decls) == 1, "array iteration binds one variable")
		p.IndexNoexcep(1) // {length, dict} -> dict
		p.PushSmallInt(0)
		p.PushNull()
		loopVarQty = 3
		p.GetStack().Add(st.Decl.Decls[0], false)

	case isMapping:
		// mapping: [dict privKey pubKey value]
		p.PushS(0)
		p.DictMinMax(mappingType.Key, mappingType.Value, true)
		p.FixStack(-2)
		iterKey := st.Decl.Decls[0]
		iterVal := st.Decl.Decls[1]
		if iterKey == nil {
			p.FixStack(1)
		} else {
			p.GetStack().Add(iterKey, true)
		}
		if iterVal == nil {
			p.FixStack(1)
		} else {
			p.GetStack().Add(iterVal, true)
		}
		loopVarQty = 4

	default:
		panic(castError(st, "cannot iterate over %s", rangeType))
	}
	p.EnsureSize(saved+loopVarQty, "for-each init")

	ci, info := f.pushControlFlowFlag(st.Body)

	// condition: test end of data
	pushCondition := func() {
		switch {
		case isArray && arrayType.ByteArray:
			p.PushS(p.StackSize() - saved - 1)
			p.Push(-1+1, "SEMPTY")
			p.Push(-1+1, "NOT")
		case isArray:
			p.PushS(p.StackSize() - saved - 2) // index
			p.PushS(p.StackSize() - saved - 1) // dict
			p.GetDict(KeyTypeOfArray(), arrayType.Base, FetchFromMapping)
			p.PushS(0)
			p.PopS(p.StackSize() - saved - 3)
			p.Push(-1+1, "ISNULL")
			p.Push(-1+1, "NOT")
		case isMapping:
			p.PushS(p.StackSize() - saved - 2)
			p.Push(-1+1, "ISNULL")
			p.Push(-1+1, "NOT")
		}
	}
	f.visitForOrWhileCondition(ci, info, pushCondition)

	// body prologue: bytes iteration reads the next byte, following
	// the cell chain when the current slice is exhausted
	var pushStartBody func()
	if isArray && arrayType.ByteArray {
		pushStartBody = func() {
			ss := p.StackSize()
			p.PushS(p.StackSize() - saved - 1)

			p.StartOpaque()
			p.PushAsym("LDUQ 8")
			p.FixStack(1)
			p.StartContinuation()
			p.Push(-1+1, "PLDREF")
			p.Push(-1+1, "CTOS")
			p.Push(-1+2, "LDU 8")
			p.FixStack(-2)
			p.EndContinuation()
			p.IfNot()
			p.EndOpaque(1, 2, false)

			assert(ss+2 == p.StackSize(), "byte fetch misbalanced")
			p.PopS(p.StackSize() - saved - 1)
			p.PopS(p.StackSize() - saved - 2)
			assert(ss == p.StackSize(), "byte fetch leaked")
		}
	}

	// loop expression: advance the iterator
	loopExpression := func() {
		switch {
		case isArray && arrayType.ByteArray:
			// the prologue advanced the cursor
		case isArray:
			p.PushS(p.StackSize() - saved - 2)
			p.Push(0, "INC")
			p.PopS(p.StackSize() - saved - 2)
		case isMapping:
			sss := p.StackSize()
			p.PushS(p.StackSize() - saved - 2) // private key
			p.PushS(p.StackSize() - saved - 1) // dict
			p.PushSmallInt(LengthOfDictKey(mappingType.Key))
			p.DictPrevNext(mappingType.Key, mappingType.Value, true)
			p.PopS(p.StackSize() - saved - 4)
			p.PopS(p.StackSize() - saved - 3)
			p.PopS(p.StackSize() - saved - 2)
			assert(sss == p.StackSize(), "dict advance misbalanced")
		}
	}
	f.visitBodyOfForLoop(ci, pushStartBody, st.Body, loopExpression)

	f.afterLoopCheck(ci, loopVarQty)
	p.EnsureSize(saved, "for-each")
}

func (f *FunctionCompiler) visitReturn(st *ReturnStatement) {
	p := f.pusher
	if len(st.Names) > 0 {
		p.GetGlob(C7ReturnParams)
		nameToIndex := map[string]int{
			"bounce":     RetParamBounce,
			"value":      RetParamValue,
			"currencies": RetParamCurrencies,
			"flag":       RetParamFlag,
		}
		for i, name := range st.Names {
			f.acceptExpr(st.Options[i], true)
			idx, ok := nameToIndex[name]
			assert(ok, "unknown message option %q", name)
			p.SetIndexQ(idx)
		}
		p.SetGlob(C7ReturnParams)
	}

	if st.Expr != nil {
		f.acceptExpr(st.Expr, true)
	}

	retCount := 0
	if st.Function != nil {
		retCount = len(st.Function.RetParams)
	} else {
		retCount = len(f.function.RetParams)
	}

	p.StartContinuation()
	trashSlots := p.StackSize() - f.startStackSize
	revertDelta := trashSlots - retCount
	p.DropUnder(trashSlots-retCount, retCount)
	if !f.allJmp() {
		p.PushSmallInt(ReturnFlag)
		revertDelta--
		p.FixStack(revertDelta)
	} else {
		p.FixStack(revertDelta)
	}
	p.Ret()
	p.EndRetOrBreakOrCont(retCount)
}

func (f *FunctionCompiler) breakOrContinue(code int) {
	assert(code == BreakFlag || code == ContinueFlag, "bad flag %d", code)
	p := f.pusher

	var controlFlowInfo ControlFlowInfo
	found := false
	for i := len(f.controlFlowInfo) - 1; i >= 0; i-- {
		if f.controlFlowInfo[i].IsLoop {
			controlFlowInfo = f.controlFlowInfo[i]
			found = true
			break
		}
	}
	assert(found, "break/continue outside a loop")

	sizeDelta := p.StackSize() - controlFlowInfo.StackSize
	p.StartContinuation()
	p.Drop(sizeDelta + 1)
	p.PushSmallInt(code)
	p.Ret()
	p.FixStack(sizeDelta)
	p.EndRetOrBreakOrCont(0)
}

func (f *FunctionCompiler) visitEmit(st *EmitStatement) {
	p := f.pusher
	for i := len(st.Args) - 1; i >= 0; i-- {
		NewExpressionCompiler(p).CompileNewExpr(st.Args[i])
	}

	appendBody := func(builderSize int) {
		NewChainDataEncoder(p).CreateMsgBodyAndAppendToBuilder(
			st.Event.Params,
			CalculateEventID(st.Event),
			nil,
			builderSize,
		)
	}

	isParamOnStack := map[int]bool{}
	if st.Dest != nil {
		isParamOnStack[ExtMsgDest] = true
		f.acceptExpr(st.Dest, true)
	}

	p.SendMsg(isParamOnStack, nil, appendBody, nil, nil, MsgExternalOut)
}
