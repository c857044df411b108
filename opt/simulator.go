package opt

import "github.com/likenty/tvmc/tvm"

// Simulator walks a code slice under the assumption that a specific
// stack segment is dead, proving either that the slice never observes
// the segment (so it can be removed and indices rewritten) or that
// the proof fails. It is purely analytical and never mutates input.
//
// Positions are counted from the top of the stack. The tracked
// segment occupies positions [stackSize-segment, stackSize-1]; values
// below it keep their identity, values above are live scratch.
type Simulator struct {
	segment   int
	stackSize int

	wasSet          bool
	unableToConvert bool
	isDropped       bool
	sawTerminator   bool

	commands []tvm.Node
}

// NewSimulator runs the simulation over insts with the given starting
// window size and tracked segment length.
func NewSimulator(insts []tvm.Node, startSize, segment int) *Simulator {
	s := &Simulator{segment: segment, stackSize: startSize}
	s.run(insts)
	return s
}

// Success reports that the segment is provably dead: nothing read it
// and control left the block or the segment was dropped wholesale.
func (s *Simulator) Success() bool {
	return !s.unableToConvert && !s.wasSet && (s.isDropped || s.sawTerminator)
}

// WasSet reports that the tracked slot was overwritten before any
// read, which makes the original write to it redundant.
func (s *Simulator) WasSet() bool { return s.wasSet }

// Commands returns the rewritten slice, valid only when Success.
func (s *Simulator) Commands() []tvm.Node { return s.commands }

// rest is the number of live values above the tracked segment.
func (s *Simulator) rest() int { return s.stackSize - s.segment }

func (s *Simulator) fail() { s.unableToConvert = true }

func (s *Simulator) run(insts []tvm.Node) {
	for idx, node := range insts {
		if s.unableToConvert || s.wasSet || s.isDropped || s.sawTerminator {
			return
		}
		switch n := node.(type) {
		case *tvm.Loc:
			s.keep(node)

		case *tvm.DeclRetFlag:
			s.stackSize++
			s.keep(node)

		case *tvm.AsymGen:
			// return arity depends on runtime
			s.fail()

		case *tvm.Throw:
			if n.Gen.Take() > s.rest() {
				s.fail()
				return
			}
			s.stackSize -= n.Gen.Take()
			s.keep(node)
			if n.Gen.Opcode == "THROW" || n.Gen.Opcode == "THROWANY" {
				s.sawTerminator = true
			}

		case *tvm.Return:
			switch n.Kind {
			case tvm.RET:
				s.keep(node)
				s.sawTerminator = true
			case tvm.IFRET, tvm.IFNOTRET:
				if s.rest() < 1 {
					s.fail()
					return
				}
				s.stackSize--
				s.keep(node)
			}

		case *tvm.StackOp:
			s.stackOp(n, insts[idx+1:])
			if s.isDropped {
				return
			}

		case tvm.GenNode:
			// fixed-arity generators, including opaque blocks and
			// sub-programs whose reads are bounded by their take
			if n.Take() > s.rest() {
				s.fail()
				return
			}
			s.stackSize += n.Ret() - n.Take()
			s.keep(node)

		default:
			// control flow is left to the enclosing pass
			s.fail()
			return
		}
	}
}

func (s *Simulator) keep(node tvm.Node) {
	s.commands = append(s.commands, node)
}

// shift rewrites a stack index for the world where the segment has
// been removed. ok is false when the index lands inside the segment.
func (s *Simulator) shift(i int) (int, bool) {
	if i < s.rest() {
		return i, true
	}
	if i >= s.stackSize {
		return i - s.segment, true
	}
	return 0, false
}

func (s *Simulator) stackOp(n *tvm.StackOp, rest []tvm.Node) {
	switch n.Op {
	case tvm.PUSH:
		i, ok := s.shift(n.I)
		if !ok {
			s.fail()
			return
		}
		s.stackSize++
		s.keep(tvm.MakePUSH(i))

	case tvm.PUSH2:
		i, ok1 := s.shift(n.I)
		j, ok2 := s.shift(n.J)
		if !ok1 || !ok2 {
			s.fail()
			return
		}
		s.stackSize += 2
		s.keep(tvm.MakePUSH2(i, j))

	case tvm.PUSH3:
		i, ok1 := s.shift(n.I)
		j, ok2 := s.shift(n.J)
		k, ok3 := s.shift(n.K)
		if !ok1 || !ok2 || !ok3 {
			s.fail()
			return
		}
		s.stackSize += 3
		s.keep(tvm.MakePUSH3(i, j, k))

	case tvm.BLKPUSH:
		// touches positions [J-I+1, J]
		if n.J < s.rest() && n.J-n.I+1 >= 0 {
			s.stackSize += n.I
			s.keep(n)
			return
		}
		if n.J-n.I+1 >= s.stackSize {
			s.stackSize += n.I
			s.keep(tvm.MakeBLKPUSH(n.I, n.J-s.segment))
			return
		}
		s.fail()

	case tvm.DROP:
		cnt := n.I
		if cnt <= s.rest() {
			s.stackSize -= cnt
			s.keep(n)
			return
		}
		if cnt >= s.stackSize {
			// the segment goes down with the rest of the window
			if cnt > s.segment {
				s.keep(tvm.MakeDROP(cnt - s.segment))
			}
			s.isDropped = true
			s.commands = append(s.commands, rest...)
			return
		}
		s.fail()

	case tvm.BLKDROP2:
		dropped, left := n.I, n.J
		if left+dropped <= s.rest() {
			s.stackSize -= dropped
			s.keep(n)
			return
		}
		if left <= s.rest() && left+dropped >= s.stackSize {
			if dropped > s.segment {
				s.keep(tvm.MakeBLKDROP2(dropped-s.segment, left))
			}
			s.isDropped = true
			s.commands = append(s.commands, rest...)
			return
		}
		s.fail()

	case tvm.POP:
		if n.I < s.rest() {
			s.stackSize--
			s.keep(n)
			return
		}
		if n.I >= s.stackSize {
			s.stackSize--
			s.keep(tvm.MakePOP(n.I - s.segment))
			return
		}
		if s.segment == 1 && n.I == s.stackSize-1 {
			// the tracked slot is overwritten before any read
			s.wasSet = true
			return
		}
		s.fail()

	case tvm.XCHG:
		i, ok1 := s.shift(n.I)
		j, ok2 := s.shift(n.J)
		if !ok1 || !ok2 {
			s.fail()
			return
		}
		s.keep(tvm.MakeXCHSS(i, j))

	case tvm.BLKSWAP:
		if n.I+n.J <= s.rest() {
			s.keep(n)
			return
		}
		s.fail()

	case tvm.REVERSE:
		if n.I+n.J <= s.rest() {
			s.keep(n)
			return
		}
		s.fail()

	case tvm.TUCK:
		if s.rest() < 2 {
			s.fail()
			return
		}
		s.stackSize++
		s.keep(n)

	case tvm.PUXC:
		if n.I >= s.rest() || n.J+1 >= s.rest() {
			s.fail()
			return
		}
		s.stackSize++
		s.keep(n)

	default:
		s.fail()
	}
}
