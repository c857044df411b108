package compiler

import (
	"sort"

	"go.uber.org/zap"

	"github.com/likenty/tvmc/tvm"
)

// Context carries the per-compilation state shared by all lowerings
// of one contract. It is created afresh for every contract; only one
// lowering is in flight at any time.
type Context struct {
	contract *ContractDefinition
	pragma   PragmaHelper
	usage    ContractUsage
	log      *zap.Logger

	stateVarIndex map[*VariableDeclaration]int
	currentFn     *FunctionDefinition

	publicFunctions []PublicFunction
	inlined         map[string]*tvm.CodeBlock

	// call graph used to decide macro-vs-call linkage: cycles must go
	// through CALL to avoid unbounded inlining
	graph map[*FunctionDefinition]map[*FunctionDefinition]bool

	baseFunctions map[*FunctionDefinition]bool

	onBounceGenerated bool
	receiveGenerated  bool
	fallbackGenerated bool
}

// PublicFunction is one selector entry.
type PublicFunction struct {
	ID   uint32
	Name string
}

// NewContext builds the compilation context for contract.
func NewContext(contract *ContractDefinition, pragma PragmaHelper, usage ContractUsage, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	ctx := &Context{
		contract:      contract,
		pragma:        pragma,
		usage:         usage,
		log:           log,
		stateVarIndex: make(map[*VariableDeclaration]int),
		inlined:       make(map[string]*tvm.CodeBlock),
		graph:         make(map[*FunctionDefinition]map[*FunctionDefinition]bool),
		baseFunctions: make(map[*FunctionDefinition]bool),
	}
	for i, v := range ctx.NotConstantStateVariables() {
		ctx.stateVarIndex[v] = C7FirstIndexForVariables + i
	}
	for i, c := range contract.Chain() {
		if i == 0 {
			continue
		}
		for _, f := range c.Functions {
			ctx.baseFunctions[f] = true
		}
	}
	return ctx
}

// Contract returns the contract being lowered.
func (c *Context) Contract() *ContractDefinition { return c.contract }

// Pragma returns the pragma helper.
func (c *Context) Pragma() PragmaHelper { return c.pragma }

// Usage returns the usage scan.
func (c *Context) Usage() ContractUsage { return c.usage }

// Log returns the compilation logger.
func (c *Context) Log() *zap.Logger { return c.log }

// SetCurrentFunction records the function being lowered.
func (c *Context) SetCurrentFunction(f *FunctionDefinition) { c.currentFn = f }

// CurrentFunction returns the function being lowered.
func (c *Context) CurrentFunction() *FunctionDefinition { return c.currentFn }

// NotConstantStateVariables lists the state variables that live in
// persistent storage, base contracts first.
func (c *Context) NotConstantStateVariables() []*VariableDeclaration {
	var vars []*VariableDeclaration
	chain := c.contract.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, v := range chain[i].StateVariables {
			if !v.Constant {
				vars = append(vars, v)
			}
		}
	}
	return vars
}

// NotConstantStateVariableTypes lists the storage types in order.
func (c *Context) NotConstantStateVariableTypes() []Type {
	var types []Type
	for _, v := range c.NotConstantStateVariables() {
		types = append(types, v.Type)
	}
	return types
}

// TooMuchStateVariables reports that the state variables do not fit
// individual C7 slots and must be pooled into a single tuple.
func (c *Context) TooMuchStateVariables() bool {
	return len(c.NotConstantStateVariables()) >= C7FirstIndexForVariables + 6
}

// StateVarIndex returns the C7 slot of a state variable.
func (c *Context) StateVarIndex(v *VariableDeclaration) int {
	idx, ok := c.stateVarIndex[v]
	assert(ok, "state variable %q has no slot", v.Name)
	return idx
}

// StaticVariables lists static state variables with their deployment
// dictionary keys.
func (c *Context) StaticVariables() []struct {
	Var *VariableDeclaration
	Key int
} {
	shift := 0
	var res []struct {
		Var *VariableDeclaration
		Key int
	}
	for _, v := range c.NotConstantStateVariables() {
		if v.Static {
			res = append(res, struct {
				Var *VariableDeclaration
				Key int
			}{v, C4PersistenceMembersStartIndex + shift})
			shift++
		}
	}
	return res
}

// HasTimeInAbiHeader reports whether the external header carries a
// timestamp for the configured ABI version.
func (c *Context) HasTimeInAbiHeader() bool {
	switch c.pragma.AbiVer {
	case AbiV1:
		return true
	case AbiV2_1:
		return c.pragma.HaveTime || c.AfterSignatureCheck() == nil
	}
	panic("internal: unknown ABI version")
}

// AfterSignatureCheck returns the user-defined replay hook, or nil.
func (c *Context) AfterSignatureCheck() *FunctionDefinition {
	for _, f := range c.contract.Functions {
		if f.Name == "afterSignatureCheck" {
			return f
		}
	}
	return nil
}

// StoreTimestampInC4 reports whether the replay timestamp persists.
func (c *Context) StoreTimestampInC4() bool {
	return c.HasTimeInAbiHeader() && c.AfterSignatureCheck() == nil
}

// OffsetC4 is the bit offset of the first state variable in the
// persistent storage cell.
func (c *Context) OffsetC4() int {
	offset := 256 + 1 // pubkey and constructor flag
	if c.StoreTimestampInC4() {
		offset += 64
	}
	if c.usage.HasAwaitCall() {
		offset++
	}
	return offset
}

// FunctionInternalName returns the linker-visible name of a function.
func (c *Context) FunctionInternalName(f *FunctionDefinition) string {
	if f.Name == "onCodeUpgrade" {
		return ":onCodeUpgrade"
	}
	if f.IsFallback {
		return "fallback"
	}
	if c.baseFunctions[f] {
		return f.Contract.Name + "_" + f.Name
	}
	return f.Name + "_internal"
}

// FunctionExternalName returns a public function's ABI name.
func FunctionExternalName(f *FunctionDefinition) string {
	assert(f.Visibility >= VisibilityPublic, "expected public function: %s", f.Name)
	if f.IsConstructor {
		return "constructor"
	}
	if f.IsFallback {
		return "fallback"
	}
	return f.Name
}

// AddPublicFunction records a selector entry.
func (c *Context) AddPublicFunction(id uint32, name string) {
	c.publicFunctions = append(c.publicFunctions, PublicFunction{ID: id, Name: name})
}

// PublicFunctions returns the selector entries sorted by id.
func (c *Context) PublicFunctions() []PublicFunction {
	sort.Slice(c.publicFunctions, func(i, j int) bool {
		return c.publicFunctions[i].ID < c.publicFunctions[j].ID
	})
	return c.publicFunctions
}

// AddInlineFunction registers the lowered body of an inline function.
func (c *Context) AddInlineFunction(name string, body *tvm.CodeBlock) {
	_, dup := c.inlined[name]
	assert(!dup, "inline function %q lowered twice", name)
	c.inlined[name] = body
}

// InlinedFunction returns a previously lowered inline body.
func (c *Context) InlinedFunction(name string) *tvm.CodeBlock {
	body, ok := c.inlined[name]
	assert(ok, "inline function %q not lowered", name)
	return body
}

// AddAndDoesHaveLoop adds the edge from → to in the call graph and
// reports whether it closes a cycle; a cyclic edge is removed again
// and the call site falls back to CALL linkage.
func (c *Context) AddAndDoesHaveLoop(from, to *FunctionDefinition) bool {
	if c.graph[from] == nil {
		c.graph[from] = make(map[*FunctionDefinition]bool)
	}
	c.graph[from][to] = true
	if c.graph[to] == nil {
		c.graph[to] = make(map[*FunctionDefinition]bool)
	}

	color := make(map[*FunctionDefinition]int) // 0 white, 1 grey, 2 black
	var dfs func(v *FunctionDefinition) bool
	dfs = func(v *FunctionDefinition) bool {
		switch color[v] {
		case 2:
			return false
		case 1:
			return true
		}
		color[v] = 1
		for next := range c.graph[v] {
			if dfs(next) {
				return true
			}
		}
		color[v] = 2
		return false
	}
	for v := range c.graph {
		for k := range color {
			delete(color, k)
		}
		if dfs(v) {
			delete(c.graph[from], to)
			return true
		}
	}
	return false
}

// IsFallbackGenerated reports a lowered fallback handler.
func (c *Context) IsFallbackGenerated() bool { return c.fallbackGenerated }

// SetFallbackGenerated marks the fallback handler as lowered.
func (c *Context) SetFallbackGenerated() { c.fallbackGenerated = true }

// IsReceiveGenerated reports a lowered receive handler.
func (c *Context) IsReceiveGenerated() bool { return c.receiveGenerated }

// SetReceiveGenerated marks the receive handler as lowered.
func (c *Context) SetReceiveGenerated() { c.receiveGenerated = true }

// IsOnBounceGenerated reports a lowered bounce handler.
func (c *Context) IsOnBounceGenerated() bool { return c.onBounceGenerated }

// SetOnBounceGenerated marks the bounce handler as lowered.
func (c *Context) SetOnBounceGenerated() { c.onBounceGenerated = true }

// IgnoreIntegerOverflow reports the pragma.
func (c *Context) IgnoreIntegerOverflow() bool {
	return c.pragma.HaveIgnoreIntOverflow
}
