package opt

import "github.com/likenty/tvmc/tvm"

// DeleterAfterRet discards everything after the first
// return/break/continue of a block, keeping location markers so the
// source mapping survives.
type DeleterAfterRet struct{}

// Run rewrites every block under node.
func (DeleterAfterRet) Run(node tvm.Node) {
	eachBlock(node, func(block *tvm.CodeBlock) {
		foundRet := false
		var res []tvm.Node
		for _, op := range block.Instructions() {
			if _, isRet := op.(*tvm.ReturnOrBreakOrCont); isRet && !foundRet {
				foundRet = true
				res = append(res, op)
			} else if !foundRet || tvm.IsLoc(op) {
				res = append(res, op)
			}
		}
		block.Upd(res)
	})
}

// DeleterCallX inlines a function body that consists of a single
// CALLX sub-program, replacing the body with the sub-program's
// contents.
type DeleterCallX struct{}

// Run rewrites every function of the contract.
func (DeleterCallX) Run(c *tvm.Contract) {
	for _, f := range c.Functions {
		deleteCallX(f)
	}
}

func deleteCallX(f *tvm.Function) {
	block := f.Block
	insts := block.Instructions()
	if tvm.QtyWithoutLoc(insts) != 1 {
		return
	}
	var res []tvm.Node
	for _, op := range insts {
		switch n := op.(type) {
		case *tvm.Loc:
			res = append(res, op)
		case *tvm.SubProgram:
			if n.Kind != tvm.CALLX {
				return
			}
			res = append(res, n.Block.Instructions()...)
		default:
			return
		}
	}
	block.Upd(res)
}
