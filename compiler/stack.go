package compiler

// Stack is the emitter's symbolic stack: a depth plus an ordered
// mapping from absolute slot index to the declaration bound there, if
// any. The emitter owns it exclusively; lowering code consults and
// mutates it through the narrow operations below.
type Stack struct {
	size  int
	slots []*VariableDeclaration // indexed by absolute position, bottom first
}

// Size returns the current depth.
func (s *Stack) Size() int { return s.size }

// Change adjusts the depth by diff.
func (s *Stack) Change(diff int) {
	if diff != 0 {
		s.size += diff
		assert(s.size >= 0, "stack underflow")
	}
}

// ChangeEffect applies a (take, ret) effect.
func (s *Stack) ChangeEffect(take, ret int) {
	assert(take >= 0 && ret >= 0, "negative stack effect")
	s.Change(-take + ret)
}

// IsParam reports whether decl is bound to a live slot.
func (s *Stack) IsParam(decl *VariableDeclaration) bool {
	return s.position(decl) != -1
}

// Add binds decl to the top slot, growing the stack when doAllocation
// is set (the value was already accounted for otherwise).
func (s *Stack) Add(decl *VariableDeclaration, doAllocation bool) {
	assert(decl != nil, "nil declaration")
	if doAllocation {
		s.size++
	}
	for len(s.slots) < s.size {
		s.slots = append(s.slots, nil)
	}
	s.slots[s.size-1] = decl
}

// Offset returns decl's distance from the top of the stack.
func (s *Stack) Offset(decl *VariableDeclaration) int {
	pos := s.position(decl)
	assert(pos != -1, "declaration %q is not on the stack", decl.Name)
	return s.size - 1 - pos
}

func (s *Stack) position(decl *VariableDeclaration) int {
	for i := s.size - 1; i >= 0; i-- {
		if i < len(s.slots) && s.slots[i] == decl {
			return i
		}
	}
	return -1
}

// EnsureSize asserts the depth recorded at a save point.
func (s *Stack) EnsureSize(saved int, location string) {
	assert(saved == s.size, "stack size mismatch at %s: expected %d, got %d",
		location, saved, s.size)
}

// TakeLast truncates the model to its topmost n slots.
func (s *Stack) TakeLast(n int) {
	assert(s.size >= n, "cannot take %d of %d", n, s.size)
	for len(s.slots) < s.size {
		s.slots = append(s.slots, nil)
	}
	s.slots = append([]*VariableDeclaration(nil), s.slots[s.size-n:s.size]...)
	s.size = n
}
