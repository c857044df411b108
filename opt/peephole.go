package opt

import "github.com/likenty/tvmc/tvm"

// PeepholeOptimizer applies a library of local rewrites to block
// contents. When WithUnpackOpaque is set it first splices opaque
// wrappers into the surrounding code so the rewrites can see through
// them.
type PeepholeOptimizer struct {
	WithUnpackOpaque bool
}

// Run rewrites every block under node until no rule applies.
func (p PeepholeOptimizer) Run(node tvm.Node) {
	eachBlock(node, func(b *tvm.CodeBlock) {
		insts := b.Instructions()
		if p.WithUnpackOpaque {
			insts = unpackOpaque(insts)
		}
		for {
			out, changed := rewriteOnce(insts)
			insts = out
			if !changed {
				break
			}
		}
		b.Upd(insts)
	})
}

func unpackOpaque(insts []tvm.Node) []tvm.Node {
	var out []tvm.Node
	for _, op := range insts {
		if o, ok := op.(*tvm.Opaque); ok && o.Block.Kind == tvm.BlockInline {
			out = append(out, unpackOpaque(o.Block.Instructions())...)
			continue
		}
		out = append(out, op)
	}
	return out
}

// rewriteOnce scans for the first applicable window rewrite.
func rewriteOnce(insts []tvm.Node) ([]tvm.Node, bool) {
	for i := 0; i+1 < len(insts); i++ {
		a, b := insts[i], insts[i+1]
		if repl, ok := rewritePair(a, b); ok {
			out := append(insts[:i:i], repl...)
			out = append(out, insts[i+2:]...)
			return out, true
		}
	}
	return insts, false
}

func rewritePair(a, b tvm.Node) ([]tvm.Node, bool) {
	// DROP n; DROP m => DROP n+m
	if n, ok := tvm.IsDrop(a); ok {
		if m, ok := tvm.IsDrop(b); ok {
			return []tvm.Node{tvm.MakeDROP(n + m)}, true
		}
	}

	// a pure producer followed by a drop never materializes
	if tvm.IsPureGen01OrGetGlob(a) || isPushS(a) {
		if n, ok := tvm.IsDrop(b); ok {
			if n == 1 {
				return nil, true
			}
			return []tvm.Node{tvm.MakeDROP(n - 1)}, true
		}
	}

	// SWAP; SWAP and XCHG Si, Sj twice cancel
	if tvm.IsSWAP(a) && tvm.IsSWAP(b) {
		return nil, true
	}
	if sa, ok := a.(*tvm.StackOp); ok {
		if sb, ok := b.(*tvm.StackOp); ok {
			if sa.Op == tvm.XCHG && sb.Op == tvm.XCHG && sa.I == sb.I && sa.J == sb.J {
				return nil, true
			}
		}
	}

	// double bitwise negation cancels
	if isGen(a, "NOT") && isGen(b, "NOT") {
		return nil, true
	}

	// NOT feeding a conditional flips the condition
	if isGen(a, "NOT") {
		if flipped, ok := flipCondition(b); ok {
			return []tvm.Node{flipped}, true
		}
	}

	// SWAP before a commutative operation is dead
	if tvm.IsSWAP(a) && isCommutative(b) {
		return []tvm.Node{b}, true
	}

	// constant conditions choose their branch statically
	if isGen(a, "TRUE") || isGen(a, "FALSE") {
		truth := isGen(a, "TRUE")
		if repl, ok := resolveConstCondition(truth, b); ok {
			return repl, true
		}
	}

	return nil, false
}

func isPushS(node tvm.Node) bool {
	s, ok := node.(*tvm.StackOp)
	return ok && s.Op == tvm.PUSH
}

func isGen(node tvm.Node, opcode string) bool {
	g, ok := node.(*tvm.GenOp)
	return ok && g.Opcode == opcode && g.Arg == ""
}

func isCommutative(node tvm.Node) bool {
	g, ok := node.(*tvm.GenOp)
	if !ok {
		return false
	}
	switch g.Opcode {
	case "ADD", "MUL", "AND", "OR", "XOR", "EQUAL", "NEQ", "MIN", "MAX":
		return true
	}
	return false
}

func flipCondition(node tvm.Node) (tvm.Node, bool) {
	switch n := node.(type) {
	case *tvm.Return:
		switch n.Kind {
		case tvm.IFRET:
			return tvm.MakeIFNOTRET(), true
		case tvm.IFNOTRET:
			return tvm.MakeIFRET(), true
		}
	case *tvm.IfElse:
		switch n.Kind {
		case tvm.IF:
			return &tvm.IfElse{Kind: tvm.IFNOT, TrueBody: n.TrueBody}, true
		case tvm.IFNOT:
			return &tvm.IfElse{Kind: tvm.IF, TrueBody: n.TrueBody}, true
		case tvm.IFJMP:
			return &tvm.IfElse{Kind: tvm.IFNOTJMP, TrueBody: n.TrueBody}, true
		case tvm.IFNOTJMP:
			return &tvm.IfElse{Kind: tvm.IFJMP, TrueBody: n.TrueBody}, true
		case tvm.IFREF:
			return &tvm.IfElse{Kind: tvm.IFNOTREF, TrueBody: n.TrueBody}, true
		case tvm.IFNOTREF:
			return &tvm.IfElse{Kind: tvm.IFREF, TrueBody: n.TrueBody}, true
		case tvm.IFJMPREF:
			return &tvm.IfElse{Kind: tvm.IFNOTJMPREF, TrueBody: n.TrueBody}, true
		case tvm.IFNOTJMPREF:
			return &tvm.IfElse{Kind: tvm.IFJMPREF, TrueBody: n.TrueBody}, true
		case tvm.IFELSE:
			return &tvm.IfElse{Kind: tvm.IFELSE, TrueBody: n.FalseBody, FalseBody: n.TrueBody}, true
		}
	}
	return nil, false
}

func resolveConstCondition(truth bool, node tvm.Node) ([]tvm.Node, bool) {
	switch n := node.(type) {
	case *tvm.Return:
		switch n.Kind {
		case tvm.IFRET:
			if truth {
				return []tvm.Node{tvm.MakeRET()}, true
			}
			return nil, true
		case tvm.IFNOTRET:
			if truth {
				return nil, true
			}
			return []tvm.Node{tvm.MakeRET()}, true
		}
	case *tvm.IfElse:
		taken := truth
		switch n.Kind {
		case tvm.IF:
		case tvm.IFNOT:
			taken = !taken
		default:
			return nil, false
		}
		if !taken {
			return nil, true
		}
		if n.TrueBody.Kind == tvm.PUSHCONT {
			return n.TrueBody.Instructions(), true
		}
	}
	return nil, false
}
