package opt

import "github.com/likenty/tvmc/tvm"

// LocSquasher collapses runs of location markers so that at most one
// marker per (file, line) survives adjacent to any other node.
type LocSquasher struct{}

// Run rewrites every block under node.
func (LocSquasher) Run(node tvm.Node) {
	eachBlock(node, squashLocs)
}

func squashLocs(block *tvm.CodeBlock) {
	// first drop the earlier of two adjacent markers
	a := block.Instructions()
	var b []tvm.Node
	if len(a) > 0 {
		b = append(b, a[0])
		for i := 1; i < len(a); i++ {
			if len(b) > 0 && tvm.IsLoc(b[len(b)-1]) && tvm.IsLoc(a[i]) {
				b = b[:len(b)-1]
			}
			b = append(b, a[i])
		}
	}

	// then drop a marker that repeats the position of the previous
	// marker in the block
	var res []tvm.Node
	var last *tvm.Loc
	for _, node := range b {
		if loc, ok := node.(*tvm.Loc); ok {
			if last == nil || last.File != loc.File || last.Line != loc.Line {
				res = append(res, node)
			}
			last = loc
		} else {
			res = append(res, node)
		}
	}

	block.Upd(res)
}
