package tvm

// Constructors for the stack-manipulation family, mirroring the short
// helper layer the rest of the back-end builds nodes through.

// MakeDROP drops the cnt topmost values.
func MakeDROP(cnt int) *StackOp {
	return &StackOp{Op: DROP, I: cnt, J: -1, K: -1}
}

// MakePOP stores s0 into si.
func MakePOP(i int) *StackOp {
	return &StackOp{Op: POP, I: i, J: -1, K: -1}
}

// MakeBLKPUSH duplicates qty values starting at index.
func MakeBLKPUSH(qty, index int) *StackOp {
	return &StackOp{Op: BLKPUSH, I: qty, J: index, K: -1}
}

// MakePUSH pushes a copy of si.
func MakePUSH(i int) *StackOp {
	return &StackOp{Op: PUSH, I: i, J: -1, K: -1}
}

// MakePUSH2 pushes copies of si and sj.
func MakePUSH2(i, j int) *StackOp {
	return &StackOp{Op: PUSH2, I: i, J: j, K: -1}
}

// MakePUSH3 pushes copies of si, sj and sk.
func MakePUSH3(i, j, k int) *StackOp {
	return &StackOp{Op: PUSH3, I: i, J: j, K: k}
}

// MakeRET returns from the current continuation.
func MakeRET() *Return { return &Return{Kind: RET} }

// MakeIFRET returns if the top value is true.
func MakeIFRET() *Return { return &Return{Kind: IFRET} }

// MakeIFNOTRET returns if the top value is false.
func MakeIFNOTRET() *Return { return &Return{Kind: IFNOTRET} }

// MakeXCHS exchanges s0 and si.
func MakeXCHS(i int) *StackOp {
	return &StackOp{Op: XCHG, I: 0, J: i, K: -1}
}

// MakeXCHSS exchanges si and sj.
func MakeXCHSS(i, j int) *StackOp {
	return &StackOp{Op: XCHG, I: i, J: j, K: -1}
}

// MakeSetGlob stores the top value into global slot i.
func MakeSetGlob(i int) *Glob {
	return &Glob{Op: SetGlob, Index: i}
}

// MakeBLKDROP2 drops droppedCount values below the top leftCount.
func MakeBLKDROP2(droppedCount, leftCount int) *StackOp {
	return &StackOp{Op: BLKDROP2, I: droppedCount, J: leftCount, K: -1}
}

// MakePUSHREF pushes a reference cell literal.
func MakePUSHREF(data string) *PushCellOrSlice {
	return &PushCellOrSlice{Kind: PUSHREF, Blob: data}
}

// MakeREVERSE reverses i values starting at depth j.
func MakeREVERSE(i, j int) *StackOp {
	return &StackOp{Op: REVERSE, I: i, J: j, K: -1}
}

// MakeROT rotates the three topmost values upward.
func MakeROT() *StackOp {
	return &StackOp{Op: BLKSWAP, I: 1, J: 2, K: -1}
}

// MakeROTREV rotates the three topmost values downward.
func MakeROTREV() *StackOp {
	return &StackOp{Op: BLKSWAP, I: 2, J: 1, K: -1}
}

// MakeBLKSWAP exchanges the block of down values with the block of
// top values above it.
func MakeBLKSWAP(down, top int) *StackOp {
	return &StackOp{Op: BLKSWAP, I: down, J: top, K: -1}
}

// MakeTUCK inserts a copy of s0 under s1.
func MakeTUCK() *StackOp {
	return &StackOp{Op: TUCK, I: -1, J: -1, K: -1}
}

// MakePUXC pushes si then exchanges with sj.
func MakePUXC(i, j int) *StackOp {
	return &StackOp{Op: PUXC, I: i, J: j, K: -1}
}

// Matchers used by the optimizer passes.

// IsLoc reports whether node is a source location marker.
func IsLoc(node Node) bool {
	_, ok := node.(*Loc)
	return ok
}

// QtyWithoutLoc counts the nodes that are not location markers.
func QtyWithoutLoc(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		if !IsLoc(node) {
			n++
		}
	}
	return n
}

// IsSWAP reports whether node exchanges the two topmost values.
func IsSWAP(node Node) bool {
	if down, top, ok := IsBLKSWAP(node); ok {
		return down == 1 && top == 1
	}
	if i, ok := IsXCHGS0(node); ok {
		return i == 1
	}
	if i, j, ok := IsREVERSE(node); ok {
		return i == 2 && j == 0
	}
	return false
}

// IsBLKSWAP decomposes a block swap into its (down, top) sizes.
func IsBLKSWAP(node Node) (down, top int, ok bool) {
	s, isStack := node.(*StackOp)
	if !isStack || s.Op != BLKSWAP {
		return 0, 0, false
	}
	return s.I, s.J, true
}

// IsDrop returns the count dropped by a DROP node.
func IsDrop(node Node) (int, bool) {
	s, ok := node.(*StackOp)
	if !ok || s.Op != DROP {
		return 0, false
	}
	return s.I, true
}

// IsPOP returns the index of a POP node.
func IsPOP(node Node) (int, bool) {
	s, ok := node.(*StackOp)
	if !ok || s.Op != POP {
		return 0, false
	}
	return s.I, true
}

// IsXCHG reports whether node exchanges exactly si and sj.
func IsXCHG(node Node, i, j int) bool {
	s, ok := node.(*StackOp)
	return ok && s.Op == XCHG && s.I == i && s.J == j
}

// IsXCHGS0 returns j for an XCHG s0, sj node.
func IsXCHGS0(node Node) (int, bool) {
	s, ok := node.(*StackOp)
	if !ok || s.Op != XCHG || s.I != 0 {
		return 0, false
	}
	return s.J, true
}

// IsREVERSE decomposes a REVERSE node into its (count, depth) pair.
func IsREVERSE(node Node) (i, j int, ok bool) {
	s, isStack := node.(*StackOp)
	if !isStack || s.Op != REVERSE {
		return 0, 0, false
	}
	return s.I, s.J, true
}

// IsPureGen01OrGetGlob reports whether node pushes exactly one value,
// consumes none, and is pure. Such nodes can be freely deleted or
// rematerialized by the stack optimizer.
func IsPureGen01OrGetGlob(node Node) bool {
	switch n := node.(type) {
	case *GenOp:
		return n.IsPure() && n.Take() == 0 && n.Ret() == 1
	case *Glob:
		return n.Op == GetGlob
	case *PushCellOrSlice:
		return true
	}
	return false
}

// StackEffect returns the static (take, ret) of a node when it has
// one. Asymmetric and control-flow nodes report ok == false.
func StackEffect(node Node) (take, ret int, ok bool) {
	switch n := node.(type) {
	case *GenOp:
		return n.Take(), n.Ret(), true
	case *Glob:
		return n.Take(), n.Ret(), true
	case *Opaque:
		return n.Take(), n.Ret(), true
	case *HardCode:
		return n.Take(), n.Ret(), true
	case *SubProgram:
		return n.Take(), n.Ret(), true
	case *PushCellOrSlice:
		return 0, 1, true
	case *DeclRetFlag:
		return 0, 1, true
	case *Throw:
		return n.Gen.Take(), n.Gen.Ret(), true
	}
	return 0, 0, false
}
