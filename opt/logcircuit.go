package opt

import "github.com/likenty/tvmc/tvm"

// LogCircuitExpander replaces a short-circuit AND/OR whose body is
// pure with the direct boolean operation, fusing chained circuits of
// the same kind.
type LogCircuitExpander struct{}

// Run rewrites every block under node.
func (LogCircuitExpander) Run(node tvm.Node) {
	eachBlock(node, expandLogCircuits)
}

func expandLogCircuits(block *tvm.CodeBlock) {
	var out []tvm.Node
	for _, op := range block.Instructions() {
		lc, isCircuit := op.(*tvm.LogCircuit)
		if isCircuit && lc.CanExpand && len(out) > 0 {
			if newInst, ok := expandOne(lc); ok {
				out = out[:len(out)-1] // the DUP that fed the circuit
				out = append(out, newInst...)
				continue
			}
		}
		out = append(out, op)
	}
	block.Upd(out)
}

// expandOne turns the circuit body into straight-line code, or
// reports that the body is impure and must stay as a continuation.
func expandOne(lc *tvm.LogCircuit) ([]tvm.Node, bool) {
	insts := lc.Body.Instructions()
	if len(insts) == 0 {
		return nil, false
	}
	if n, ok := tvm.IsDrop(insts[0]); !ok || n != 1 {
		return nil, false
	}

	stackSize := 1
	var newInst []tvm.Node
	for _, op := range insts[1:] {
		var ok bool
		newInst, stackSize, ok = pureOperation(op, newInst, stackSize)
		if !ok {
			return nil, false
		}
	}
	if stackSize != 2 {
		return nil, false
	}

	hasTail := false
	var tail tvm.Node
	if len(newInst) >= 2 {
		if inner, isInner := newInst[len(newInst)-1].(*tvm.LogCircuit); isInner {
			if inner.Kind != lc.Kind {
				return nil, false
			}
			hasTail = true
			tail = newInst[len(newInst)-1]
			newInst = newInst[:len(newInst)-2] // DUP and inner circuit
		}
	}

	if lc.Kind == tvm.LogAnd {
		newInst = append(newInst, tvm.Gen("AND"))
	} else {
		newInst = append(newInst, tvm.Gen("OR"))
	}
	if hasTail {
		newInst = append(newInst, tvm.MakePUSH(0), tail)
	}
	return newInst, true
}

func pureOperation(op tvm.Node, newInst []tvm.Node, stackSize int) ([]tvm.Node, int, bool) {
	if gen, ok := op.(tvm.GenNode); ok && gen.IsPure() {
		return append(newInst, op), stackSize - gen.Take() + gen.Ret(), true
	}

	if _, ok := op.(*tvm.LogCircuit); ok {
		return append(newInst, op), stackSize - 2 + 1, true
	}

	if s, ok := op.(*tvm.StackOp); ok && s.Op == tvm.PUSH {
		index := s.I
		// indices at or above the dropped operand shift by one
		if index+1 < stackSize {
			newInst = append(newInst, tvm.MakePUSH(index))
		} else {
			newInst = append(newInst, tvm.MakePUSH(index+1))
		}
		return newInst, stackSize + 1, true
	}

	return newInst, stackSize, false
}
