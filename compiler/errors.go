package compiler

import "fmt"

// SourceLocation is a file/line position in the contract source.
type SourceLocation struct {
	File string
	Line int
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// CompileError is a user-facing translation error: the back end
// rejects a construct it cannot lower. It carries the offending AST
// node's location.
type CompileError struct {
	Loc SourceLocation
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

// castError builds a CompileError for node.
func castError(node Positioned, format string, args ...interface{}) *CompileError {
	return &CompileError{Loc: node.Pos(), Msg: fmt.Sprintf(format, args...)}
}

// Positioned is anything that knows its source location.
type Positioned interface {
	Pos() SourceLocation
}

// assert reports an internal invariant violation: a bug in the back
// end, not in user code. Compilation aborts.
func assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("internal: " + fmt.Sprintf(format, args...))
	}
}
