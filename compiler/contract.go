package compiler

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/likenty/tvmc/opt"
	"github.com/likenty/tvmc/tvm"
)

// VersionNumber is the language version announced in the assembly
// prologue.
const VersionNumber = "0.57.0"

// CompileContract lowers contract into printable assembly text.
func CompileContract(contract *ContractDefinition, pragma PragmaHelper, usage ContractUsage, log *zap.Logger) (string, error) {
	code, err := GenerateContractCode(contract, pragma, usage, log)
	if err != nil {
		return "", errors.Wrap(err, "lowering "+contract.Name)
	}
	var sb strings.Builder
	tvm.NewPrinter(&sb).Print(code)
	return sb.String(), nil
}

// GenerateContractCode lowers contract into the optimized
// instruction tree.
func GenerateContractCode(contract *ContractDefinition, pragma PragmaHelper, usage ContractUsage, log *zap.Logger) (code *tvm.Contract, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	ctx := NewContext(contract, pragma, usage, log)
	ctx.Log().Debug("lowering contract",
		zap.String("contract", contract.Name),
		zap.Int("stateVariables", len(ctx.NotConstantStateVariables())))

	var pragmas []string
	var functions []*tvm.Function

	pragmas = append(pragmas, ".version sol "+VersionNumber)

	fillInlineFunctions(ctx, contract)

	// the combined constructor inlines the whole base chain
	{
		p := NewStackPusher(ctx)
		functions = append(functions, NewConstructorCompiler(p).GenerateConstructors())
	}

	for _, c := range contract.Chain() {
		for _, function := range c.Functions {
			if function.IsConstructor || function.Body == nil || function.IsInline {
				continue
			}

			ctx.SetCurrentFunction(function)

			switch {
			case function.IsOnBounce:
				if !ctx.IsOnBounceGenerated() {
					ctx.SetOnBounceGenerated()
					p := NewStackPusher(ctx)
					functions = append(functions, GenerateOnBounce(p, function))
				}
			case function.IsReceive:
				if !ctx.IsReceiveGenerated() {
					ctx.SetReceiveGenerated()
					p := NewStackPusher(ctx)
					functions = append(functions, GenerateReceive(p, function))
				}
			case function.IsFallback:
				if !ctx.IsFallbackGenerated() {
					ctx.SetFallbackGenerated()
					p := NewStackPusher(ctx)
					functions = append(functions, GenerateFallback(p, function))
				}
			case function.IsOnTickTock:
				p := NewStackPusher(ctx)
				functions = append(functions, GenerateOnTickTock(p, function))
			case function.Name == "onCodeUpgrade":
				p := NewStackPusher(ctx)
				functions = append(functions, GenerateOnCodeUpgrade(p, function))
			default:
				if function.Visibility >= VisibilityPublic {
					isBaseMethod := function != lastOverride(contract, function.Name)
					if !isBaseMethod {
						p := NewStackPusher(ctx)
						functions = append(functions, GeneratePublicFunction(p, function))

						id := CalculateFunctionIDForFunction(function, RemoteCallInternal)
						ctx.AddPublicFunction(id, function.Name)
					}
				}
				functionName := ctx.FunctionInternalName(function)
				if function.Visibility <= VisibilityPublic {
					p := NewStackPusher(ctx)
					functions = append(functions, GeneratePrivateFunction(p, functionName))
				}
				{
					p := NewStackPusher(ctx)
					functions = append(functions, GenerateMacro(p, function, functionName+"_macro"))
				}
			}
		}
	}

	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateC7ToC4(p))
	}
	if ctx.Usage().HasAwaitCall() {
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateC7ToC4ForAwait(p))
	}
	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateC4ToC7(p))
	}
	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateC4ToC7WithInitMemory(p))
	}
	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateReplayProtection(p))
	}
	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateMainInternal(p, contract))
	}
	if ctx.Usage().HasAwaitCall() {
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateCheckResume(p))
	}
	{
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateMainExternal(p, contract))
	}

	for _, vd := range ctx.NotConstantStateVariables() {
		if !vd.Public {
			continue
		}
		p := NewStackPusher(ctx)
		functions = append(functions, GenerateGetter(p, vd))

		id := CalculateFunctionID(vd.Name, nil, []Type{vd.Type}, RemoteCallInternal)
		ctx.AddPublicFunction(id, vd.Name)
	}

	{
		p := NewStackPusher(ctx)
		functions = append(functions, GeneratePublicFunctionSelector(p, contract))
	}

	if ctx.Usage().HasTvmCode() {
		pragmas = append(pragmas, ".pragma selector-save-my-code")
	}

	c := &tvm.Contract{Pragmas: pragmas, Functions: functions}

	opt.DeleterAfterRet{}.Run(c)
	opt.LocSquasher{}.Run(c)
	optimizeCode(c)

	ctx.Log().Debug("contract lowered",
		zap.String("contract", contract.Name),
		zap.Int("functions", len(c.Functions)))
	return c, nil
}

// optimizeCode runs the rewriting passes in their fixed order.
func optimizeCode(c *tvm.Contract) {
	opt.DeleterCallX{}.Run(c)
	opt.LogCircuitExpander{}.Run(c)
	(&opt.StackOptimizer{}).Run(c)
	opt.PeepholeOptimizer{WithUnpackOpaque: false}.Run(c)
	opt.PeepholeOptimizer{WithUnpackOpaque: true}.Run(c)
	opt.LocSquasher{}.Run(c)
}

// fillInlineFunctions lowers inline-qualified functions ahead of
// their call sites.
func fillInlineFunctions(ctx *Context, contract *ContractDefinition) {
	inline := map[string]*FunctionDefinition{}
	chain := contract.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, function := range chain[i].Functions {
			if function.IsInline {
				inline[function.Name] = function
			}
		}
	}
	for _, function := range inline {
		ctx.SetCurrentFunction(function)
		p := NewStackPusher(ctx)
		GenerateFunctionWithModifiers(p, function, true)
		ctx.AddInlineFunction(function.Name, p.GetBlock())
	}
}

// lastOverride returns the most derived definition of name.
func lastOverride(contract *ContractDefinition, name string) *FunctionDefinition {
	for _, c := range contract.Chain() {
		for _, f := range c.Functions {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}
