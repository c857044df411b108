// Package opt implements the rewriting passes that run over the
// instruction tree after lowering. Passes are conservative: whenever
// safety cannot be proven the input is left unchanged, and no pass
// changes the observable stack effect of a function.
package opt

import "github.com/likenty/tvmc/tvm"

// eachBlock calls f for every CodeBlock reachable from node,
// children before parents.
func eachBlock(node tvm.Node, f func(*tvm.CodeBlock)) {
	switch n := node.(type) {
	case *tvm.Contract:
		for _, fn := range n.Functions {
			eachBlock(fn, f)
		}
	case *tvm.Function:
		eachBlock(n.Block, f)
	case *tvm.CodeBlock:
		for _, in := range n.Instructions() {
			eachBlock(in, f)
		}
		f(n)
	case *tvm.Opaque:
		eachBlock(n.Block, f)
	case *tvm.SubProgram:
		eachBlock(n.Block, f)
	case *tvm.Condition:
		eachBlock(n.TrueBody, f)
		eachBlock(n.FalseBody, f)
	case *tvm.LogCircuit:
		eachBlock(n.Body, f)
	case *tvm.IfElse:
		eachBlock(n.TrueBody, f)
		if n.FalseBody != nil {
			eachBlock(n.FalseBody, f)
		}
	case *tvm.Repeat:
		eachBlock(n.Body, f)
	case *tvm.Until:
		eachBlock(n.Body, f)
	case *tvm.While:
		eachBlock(n.Cond, f)
		eachBlock(n.Body, f)
	case *tvm.ReturnOrBreakOrCont:
		eachBlock(n.Body, f)
	}
}
