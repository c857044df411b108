package compiler

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackBindings(t *testing.T) {
	var s Stack
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	b := &VariableDeclaration{Name: "b", Type: Uint(256)}

	s.Add(a, true)
	s.Add(b, true)
	require.Equal(t, 2, s.Size())

	tassert.Equal(t, 1, s.Offset(a))
	tassert.Equal(t, 0, s.Offset(b))
	tassert.True(t, s.IsParam(a))

	s.Change(1) // anonymous temporary
	tassert.Equal(t, 2, s.Offset(a))
	tassert.Equal(t, 1, s.Offset(b))

	s.Change(-1)
	tassert.Equal(t, 1, s.Offset(a))
}

func TestStackRebindShadowing(t *testing.T) {
	var s Stack
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	s.Add(a, true)
	s.Change(2)
	// rebinding to the top slot shadows the older position
	s.Add(a, false)
	tassert.Equal(t, 0, s.Offset(a))
}

func TestStackTakeLast(t *testing.T) {
	var s Stack
	a := &VariableDeclaration{Name: "a", Type: Uint(256)}
	b := &VariableDeclaration{Name: "b", Type: Uint(256)}
	s.Add(a, true)
	s.Add(b, true)
	s.TakeLast(1)
	tassert.Equal(t, 1, s.Size())
	tassert.False(t, s.IsParam(a))
	tassert.True(t, s.IsParam(b))
}

func TestStackUnderflowPanics(t *testing.T) {
	var s Stack
	tassert.Panics(t, func() { s.Change(-1) })
}

func TestEnsureSizePanicsOnMismatch(t *testing.T) {
	var s Stack
	s.Change(2)
	tassert.Panics(t, func() { s.EnsureSize(3, "here") })
	s.EnsureSize(2, "here")
}
