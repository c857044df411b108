package compiler

import (
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicIDsAreNegativeAndUnique(t *testing.T) {
	g := NewGlobals()
	seen := map[int]string{}
	for _, decl := range g.Declarations() {
		tassert.Negative(t, decl.ID, "id of %s", decl.Name)
		if prev, dup := seen[decl.ID]; dup {
			// the sha256 overloads share one identifier by design
			if !(decl.Name == "sha256" && prev == "sha256") {
				t.Errorf("id %d shared by %s and %s", decl.ID, decl.Name, prev)
			}
		}
		seen[decl.ID] = decl.Name
	}
}

func TestFormatAndRndAreDistinct(t *testing.T) {
	g := NewGlobals()
	format := g.Lookup("format")
	rnd := g.Lookup("rnd")
	require.NotNil(t, format)
	require.NotNil(t, rnd)
	tassert.NotEqual(t, format.ID, rnd.ID)
}

func TestLookupSignatures(t *testing.T) {
	g := NewGlobals()

	addmod := g.Lookup("addmod")
	require.NotNil(t, addmod)
	ft, ok := addmod.Type.(*MagicFunctionType)
	require.True(t, ok)
	tassert.Len(t, ft.ParamTypes, 3)
	tassert.Len(t, ft.ReturnTypes, 1)
	tassert.Equal(t, KindAddMod, ft.Kind)
	tassert.Equal(t, MutabilityPure, ft.Mutability)

	msg := g.Lookup("msg")
	require.NotNil(t, msg)
	mt, ok := msg.Type.(*MagicType)
	require.True(t, ok)
	tassert.Equal(t, MagicMessage, mt.Kind)

	now := g.Lookup("now")
	require.NotNil(t, now)
	it, ok := now.Type.(*IntegerType)
	require.True(t, ok)
	tassert.Equal(t, 32, it.Bits)

	tassert.Nil(t, g.Lookup("no_such_magic"))
}

func TestThisAndSuperCachedPerContract(t *testing.T) {
	g := NewGlobals()
	a := &ContractDefinition{Name: "A"}
	b := &ContractDefinition{Name: "B"}

	thisA := g.CurrentThis(a)
	tassert.Same(t, thisA, g.CurrentThis(a))
	tassert.NotSame(t, thisA, g.CurrentThis(b))

	ct, ok := thisA.Type.(*ContractType)
	require.True(t, ok)
	tassert.Same(t, a, ct.Contract)
	tassert.False(t, ct.Super)

	superA := g.CurrentSuper(a)
	tassert.Same(t, superA, g.CurrentSuper(a))
	st, ok := superA.Type.(*ContractType)
	require.True(t, ok)
	tassert.True(t, st.Super)
}
