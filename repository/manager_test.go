package repository

import (
	"testing"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterContract = `
count = Variable(default_value=0)

@export
def increment(step: int):
    count.set(count.get() + step)
    return count.get()
`

func setup(t *testing.T) (*Manager, *state.Driver, *memory.Store) {
	t.Helper()
	limits := api.DefaultConfig().Limits
	store := memory.New()
	return NewManager(compiler.NewMaker(limits)), state.NewDriver(store, limits, nil), store
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"currency", "con_token", "a1", "x"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "_private", "Token", "1abc", "dex-v2", "trailing_", "a.b"} {
		assert.False(t, ValidName(name), name)
	}
}

func TestRegisterAndResolve(t *testing.T) {
	m, d, store := setup(t)
	c, err := m.maker.CompileContract("counter", []byte(counterContract))
	require.NoError(t, err)

	err = m.Register(d, c, Metadata{Owner: "alice", Developer: "bob", Submitted: 1700000000})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len(), "registration is buffered")

	exists, err := m.Exists(d, "counter")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, d.Commit())
	raw, found, err := store.Get("counter.__owner__")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `"alice"`, string(raw))

	// a fresh manager compiles from stored code
	fresh := NewManager(compiler.NewMaker(api.DefaultConfig().Limits))
	entry, err := fresh.Resolve(d, "counter")
	require.NoError(t, err)
	assert.Equal(t, "counter", entry.Contract.Name)
	assert.Equal(t, c.Hash, entry.Contract.Hash)
	assert.True(t, entry.Contract.IsExported("increment"))
	assert.Equal(t, Metadata{Owner: "alice", Developer: "bob", Submitted: 1700000000}, entry.Metadata)

	again, err := fresh.Resolve(d, "counter")
	require.NoError(t, err)
	assert.Same(t, entry.Contract, again.Contract)

	err = m.Register(d, c, Metadata{})
	assert.True(t, core.IsKind(err, core.KindResolution))
}

func TestResolveErrors(t *testing.T) {
	m, d, _ := setup(t)

	_, err := m.Resolve(d, "missing")
	assert.True(t, core.IsKind(err, core.KindResolution))

	_, err = m.Resolve(d, "_hidden")
	assert.True(t, core.IsKind(err, core.KindResolution))

	exists, err := m.Exists(d, "Bad-Name")
	require.NoError(t, err)
	assert.False(t, exists)

	// code that was never accepted does not resolve
	key, err := d.Keys().SlotKey("broken", state.CodeKey)
	require.NoError(t, err)
	d.SetRaw(key, []byte(`"import os"`))
	_, err = m.Resolve(d, "broken")
	assert.True(t, core.IsKind(err, core.KindResolution))
}

func TestSameCodeUnderTwoNames(t *testing.T) {
	m, d, _ := setup(t)
	first, err := m.maker.CompileContract("first", []byte(counterContract))
	require.NoError(t, err)
	require.NoError(t, m.Register(d, first, Metadata{}))
	second, err := m.maker.CompileContract("second", []byte(counterContract))
	require.NoError(t, err)
	require.NoError(t, m.Register(d, second, Metadata{}))

	a, err := m.Resolve(d, "first")
	require.NoError(t, err)
	b, err := m.Resolve(d, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", a.Contract.Name)
	assert.Equal(t, "second", b.Contract.Name)
	assert.Empty(t, a.Metadata.Owner)
}
