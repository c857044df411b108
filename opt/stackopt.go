package opt

import "github.com/likenty/tvmc/tvm"

// iterStackOptQty bounds the fixpoint iteration of the stack
// optimizer per function.
const iterStackOptQty = 3

// StackOptimizer removes dead stack slots: values that are provably
// never read before being dropped are deleted together with the
// shuffles that kept them alive. Every rewrite is gated on the
// Simulator; anything unprovable is left alone.
type StackOptimizer struct {
	stackSize []int
}

// Run optimizes every private function, macro and system entry whose
// body owns its whole stack window.
func (s *StackOptimizer) Run(c *tvm.Contract) {
	for _, f := range c.Functions {
		switch f.Kind {
		case tvm.PrivateFunction, tvm.Macro, tvm.OnCodeUpgrade, tvm.OnTickTock:
			if f.Name == "c7_to_c4_for_await" {
				continue
			}
			for iter := 0; iter < iterStackOptQty; iter++ {
				opt := &StackOptimizer{}
				opt.initStack(f.Take())
				opt.visitBlock(f.Block)
			}
		case tvm.MacroGetter, tvm.MainInternal, tvm.MainExternal:
			// entry windows carry caller data below the visible stack
		}
	}
}

func (s *StackOptimizer) visitBlock(b *tvm.CodeBlock) {
	insts := b.Instructions()
	for i := 0; i < len(insts); {
		if s.successfullyUpdate(i, &insts) {
			continue
		}
		s.apply(insts[i])
		i++
	}
	b.Upd(insts)
}

// apply updates the symbolic depth for one node, recursing into
// nested control flow with fresh scopes.
func (s *StackOptimizer) apply(node tvm.Node) {
	switch n := node.(type) {
	case *tvm.Loc:

	case *tvm.DeclRetFlag:
		s.delta(+1)

	case *tvm.Return:
		if n.Kind != tvm.RET {
			s.delta(-1)
		}

	case *tvm.ReturnOrBreakOrCont:
		s.delta(-s.scopeSize())

	case *tvm.Throw:
		s.delta(-n.Gen.Take())

	case *tvm.AsymGen:
		// leaves the depth to the enclosing opaque declaration

	case *tvm.StackOp:
		switch n.Op {
		case tvm.DROP, tvm.BLKDROP2:
			s.delta(-n.I)
		case tvm.POP:
			s.delta(-1)
		case tvm.BLKPUSH:
			s.delta(n.I)
		case tvm.PUSH:
			s.delta(1)
		case tvm.PUSH2:
			s.delta(2)
		case tvm.PUSH3:
			s.delta(3)
		case tvm.TUCK, tvm.PUXC:
			s.delta(1)
		}

	case *tvm.SubProgram:
		saved := s.size()
		s.delta(-n.Take())
		s.startScope()
		s.delta(n.Take())
		s.visitBlock(n.Block)
		s.endScope()
		s.delta(n.Ret())
		s.setSize(saved - n.Take() + n.Ret())

	case *tvm.Condition:
		saved := s.size()
		s.delta(-1)
		for _, body := range []*tvm.CodeBlock{n.TrueBody, n.FalseBody} {
			s.startScope()
			s.visitBlock(body)
			s.endScope()
		}
		s.setSize(saved - 1 + n.RetQty)

	case *tvm.LogCircuit:
		saved := s.size()
		s.delta(-2)
		s.startScope()
		s.delta(1)
		s.visitBlock(n.Body)
		s.endScope()
		s.setSize(saved - 1)

	case *tvm.IfElse:
		s.delta(-1)
		saved := s.size()
		for _, body := range []*tvm.CodeBlock{n.TrueBody, n.FalseBody} {
			if body != nil {
				s.startScope()
				s.visitBlock(body)
				s.endScope()
				s.setSize(saved)
			}
		}

	case *tvm.Repeat:
		saved := s.size()
		s.delta(-1)
		s.startScope()
		s.visitBlock(n.Body)
		s.endScope()
		s.setSize(saved - 1)

	case *tvm.Until:
		saved := s.size()
		s.startScope()
		s.visitBlock(n.Body)
		s.endScope()
		s.setSize(saved)

	case *tvm.While:
		saved := s.size()
		s.startScope()
		s.visitBlock(n.Cond)
		s.endScope()
		s.setSize(saved)
		s.startScope()
		s.visitBlock(n.Body)
		s.endScope()
		s.setSize(saved)

	case tvm.GenNode:
		s.delta(-n.Take() + n.Ret())
	}
}

// successfullyUpdate tries to rewrite the instruction tail starting
// at index, returning true when the slice was replaced.
func (s *StackOptimizer) successfullyUpdate(index int, insts *[]tvm.Node) bool {
	in := *insts
	op := in[index]
	if tvm.IsLoc(op) {
		return false
	}

	var commands []tvm.Node
	ok := false

	if i, isPop := tvm.IsPOP(op); isPop {
		sim := NewSimulator(in[index+1:], i, 1)
		if sim.WasSet() || sim.Success() {
			ok = true
			commands = append(commands, tvm.MakeDROP(1))
			commands = append(commands, in[index+1:]...)
		}
	}

	if !ok {
		if span, isShuffle := shuffleSpan(op); isShuffle {
			// try to drop the reordering entirely
			sim := NewSimulator(in[index+1:], span, span)
			if sim.Success() {
				ok = true
				commands = append(commands, in[index+1:]...)
			}
			if !ok && tvm.IsSWAP(op) {
				sim := NewSimulator(in[index+1:], 2, 1)
				if sim.Success() {
					ok = true
					commands = append(commands, tvm.MakeDROP(1))
					commands = append(commands, sim.Commands()...)
				}
			}
		}
	}

	if !ok {
		if st, isStack := op.(*tvm.StackOp); isStack && st.Op == tvm.PUSH {
			si := st.I
			if si <= s.scopeSize() && si > 0 {
				sim := NewSimulator(in[index+1:], si+1, si)
				if sim.Success() {
					ok = true
					commands = append(commands, tvm.MakeDROP(si), tvm.MakePUSH(0))
					commands = append(commands, sim.Commands()...)
				}
			}
			if !ok {
				sim := NewSimulator(in[index+1:], si+2, 1)
				if sim.Success() {
					ok = true
					if si >= 1 {
						commands = append(commands, tvm.MakeBLKSWAP(1, si))
					}
					commands = append(commands, sim.Commands()...)
				}
			}
		}
	}

	if !ok && tvm.IsPureGen01OrGetGlob(op) {
		sim := NewSimulator(in[index+1:], 1, 1)
		if sim.Success() {
			ok = true
			commands = append(commands, sim.Commands()...)
		}
	}

	if _, isDrop := tvm.IsDrop(op); !ok && !isDrop {
		prevIsFlag := false
		if index > 0 {
			_, prevIsFlag = in[index-1].(*tvm.DeclRetFlag)
		}
		if s.scopeSize() >= 1 && !prevIsFlag {
			sim := NewSimulator(in[index:], 1, 1)
			if sim.Success() {
				ok = true
				commands = append(commands, tvm.MakeDROP(1))
				commands = append(commands, sim.Commands()...)
			}
		}
	}

	if n, isDrop := tvm.IsDrop(op); !ok && isDrop {
		if index+1 < len(in) && s.scopeSize() >= n+1 {
			sim := NewSimulator(in[index+1:], 1, 1)
			if sim.Success() {
				ok = true
				commands = append(commands, tvm.MakeDROP(n+1))
				commands = append(commands, sim.Commands()...)
			}
		}
	}

	if !ok {
		return false
	}

	*insts = append(in[:index:index], commands...)
	return true
}

// shuffleSpan returns the window size a pure reordering touches.
func shuffleSpan(op tvm.Node) (int, bool) {
	if i, n, ok := tvm.IsREVERSE(op); ok {
		return i + n, true
	}
	if down, up, ok := tvm.IsBLKSWAP(op); ok {
		return down + up, true
	}
	if i, ok := tvm.IsXCHGS0(op); ok {
		return i + 1, true
	}
	return 0, false
}

func (s *StackOptimizer) initStack(size int) {
	s.stackSize = []int{size}
}

func (s *StackOptimizer) delta(d int) {
	s.stackSize[len(s.stackSize)-1] += d
	if s.stackSize[len(s.stackSize)-1] < 0 {
		s.stackSize[len(s.stackSize)-1] = 0
	}
}

func (s *StackOptimizer) size() int {
	return s.stackSize[len(s.stackSize)-1]
}

func (s *StackOptimizer) setSize(n int) {
	if n < 0 {
		n = 0
	}
	s.stackSize[len(s.stackSize)-1] = n
}

// scopeSize is the number of values the current scope owns.
func (s *StackOptimizer) scopeSize() int {
	n := len(s.stackSize)
	if n == 1 {
		return s.stackSize[0]
	}
	return s.stackSize[n-1] - s.stackSize[n-2]
}

func (s *StackOptimizer) startScope() {
	s.stackSize = append(s.stackSize, s.size())
}

func (s *StackOptimizer) endScope() {
	s.stackSize = s.stackSize[:len(s.stackSize)-1]
}
