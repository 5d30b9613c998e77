package scene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLookup resolves names from a fixed map and counts calls.
type stubLookup struct {
	items map[string]Item
	calls int
	err   error
}

func (s *stubLookup) Lookup(_ context.Context, name string, t ItemType) (Item, error) {
	s.calls++
	if s.err != nil {
		return Item{}, s.err
	}
	it, ok := s.items[Canonical(name)]
	if !ok || (t != TypeAny && it.Type != t) {
		return Item{Name: name, Type: t}, nil
	}
	return it, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cell() *stubLookup {
	return &stubLookup{items: map[string]Item{
		"Home":       {ID: 1, Name: "Home", Type: TypeTarget},
		"Aprox1":     {ID: 2, Name: "Aprox1", Type: TypeTarget},
		"Block1":     {ID: 3, Name: "Block1", Type: TypeObject},
		"Frame Pick": {ID: 4, Name: "Frame Pick", Type: TypeFrame},
		"UR3e":       {ID: 5, Name: "UR3e", Type: TypeRobot},
	}}
}

func TestResolve_AllPresent(t *testing.T) {
	lk := cell()
	res, err := Resolve(context.Background(), lk, []Spec{
		{Name: "UR3e", Type: TypeRobot, Lookup: LookupRequired},
		{Name: "Home", Type: TypeTarget, Lookup: LookupRequired},
		{Name: "Frame Pick", Type: TypeFrame, Lookup: LookupOptional},
	}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Registry.Len())
	assert.Empty(t, res.Missing)

	it, ok := res.Registry.Get("Home")
	require.True(t, ok)
	assert.Equal(t, uint64(1), it.ID)
}

func TestResolve_MissingRequired_StopsImmediately(t *testing.T) {
	lk := cell()
	_, err := Resolve(context.Background(), lk, []Spec{
		{Name: "Home", Type: TypeTarget, Lookup: LookupRequired},
		{Name: "Nowhere", Type: TypeTarget, Lookup: LookupRequired},
		{Name: "Aprox1", Type: TypeTarget, Lookup: LookupRequired},
	}, quietLogger())

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Nowhere", rerr.Name)
	assert.Equal(t, TypeTarget, rerr.Type)
	// Aborted at the missing entry: Aprox1 was never looked up.
	assert.Equal(t, 2, lk.calls)
}

func TestResolve_MissingOptional_Continues(t *testing.T) {
	lk := cell()
	res, err := Resolve(context.Background(), lk, []Spec{
		{Name: "Frame Ghost", Type: TypeFrame, Lookup: LookupOptional},
		{Name: "Home", Type: TypeTarget, Lookup: LookupRequired},
	}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Frame Ghost"}, res.Missing)
	assert.True(t, res.Registry.Has("Home"))
	assert.False(t, res.Registry.Has("Frame Ghost"))
}

func TestResolve_TypeMismatchIsMissing(t *testing.T) {
	lk := cell()
	// "Home" exists as a target, not a frame.
	_, err := Resolve(context.Background(), lk, []Spec{
		{Name: "Home", Type: TypeFrame, Lookup: LookupRequired},
	}, quietLogger())

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, TypeFrame, rerr.Type)
}

func TestResolve_LinkError_Propagates(t *testing.T) {
	lk := &stubLookup{err: errors.New("link down")}
	_, err := Resolve(context.Background(), lk, []Spec{
		{Name: "Home", Type: TypeTarget, Lookup: LookupRequired},
	}, quietLogger())
	require.Error(t, err)
	var rerr *ResolveError
	assert.False(t, errors.As(err, &rerr), "link failure is not a missing-item error")
}

func TestRegistry_CanonicalNames(t *testing.T) {
	// "é" composed (U+00E9) vs decomposed (e + U+0301) must hit the same
	// registry slot.
	composed := "Piéce"
	decomposed := "Piéce"

	lk := &stubLookup{items: map[string]Item{
		Canonical(composed): {ID: 9, Name: composed, Type: TypeObject},
	}}
	res, err := Resolve(context.Background(), lk, []Spec{
		{Name: decomposed, Type: TypeObject, Lookup: LookupRequired},
	}, quietLogger())
	require.NoError(t, err)
	assert.True(t, res.Registry.Has(composed))
	assert.True(t, res.Registry.Has(decomposed))
}

func TestParseItemType(t *testing.T) {
	for _, name := range []string{"any", "robot", "frame", "target", "tool", "object"} {
		typ, err := ParseItemType(name)
		require.NoError(t, err)
		assert.Equal(t, name, typ.String())
	}
	_, err := ParseItemType("banana")
	assert.Error(t, err)
}

func TestParseLookupKind(t *testing.T) {
	k, err := ParseLookupKind("optional")
	require.NoError(t, err)
	assert.Equal(t, LookupOptional, k)

	k, err = ParseLookupKind("required")
	require.NoError(t, err)
	assert.Equal(t, LookupRequired, k)

	_, err = ParseLookupKind("maybe")
	assert.Error(t, err)
}
