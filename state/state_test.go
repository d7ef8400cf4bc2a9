package state

import (
	"strings"
	"testing"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/storage/memory"
	"github.com/govm-net/sandbox/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type countingMeter struct {
	read, write int
	limit       int
}

func (m *countingMeter) ChargeRead(n int) error {
	m.read += n
	return m.check()
}

func (m *countingMeter) ChargeWrite(n int) error {
	m.write += n
	return m.check()
}

func (m *countingMeter) check() error {
	if m.limit > 0 && m.read+m.write >= m.limit {
		return &core.Error{Kind: core.KindStampsExhausted, Message: "out of stamps"}
	}
	return nil
}

func newTestDriver(meter Meter) (*Driver, *memory.Store) {
	store := memory.New()
	return NewDriver(store, api.DefaultConfig().Limits, meter), store
}

func TestHashDefault(t *testing.T) {
	d, _ := newTestDriver(nil)
	balances, err := NewHash(d, "currency", "balances", Options{Default: types.NewInt(0)})
	require.NoError(t, err)

	v, err := balances.Get(types.Str("alice"))
	require.NoError(t, err)
	assert.Equal(t, types.NewInt(0), v)

	plain, err := NewHash(d, "currency", "allowances", Options{})
	require.NoError(t, err)
	v, err = plain.Get(types.Tuple{types.Str("alice"), types.Str("bob")})
	require.NoError(t, err)
	assert.Equal(t, types.None, v)
}

func TestDefaultIsCopied(t *testing.T) {
	d, _ := newTestDriver(nil)
	h, err := NewHash(d, "c", "lists", Options{Default: types.NewList()})
	require.NoError(t, err)

	first, err := h.Get(types.Str("a"))
	require.NoError(t, err)
	first.(*types.List).Items = append(first.(*types.List).Items, types.NewInt(1))

	second, err := h.Get(types.Str("a"))
	require.NoError(t, err)
	assert.Empty(t, second.(*types.List).Items)
}

func TestHashKeys(t *testing.T) {
	d, _ := newTestDriver(nil)
	h, err := NewHash(d, "currency", "allowances", Options{})
	require.NoError(t, err)

	key, err := h.Key(types.Tuple{types.Str("alice"), types.NewInt(7), types.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, "currency.allowances:alice:7:True", key)

	_, err = h.Key(types.Str("a:b"))
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	for _, d := range []string{"1.5", "2"} {
		_, err = h.Key(types.MustDecimal(d))
		assert.True(t, core.IsKind(err, core.KindType), d)
	}
	_, err = h.Key(types.Tuple{types.Str("alice"), types.MustDecimal("0.1")})
	assert.True(t, core.IsKind(err, core.KindType))

	_, err = h.Key(types.NewList())
	assert.True(t, core.IsKind(err, core.KindType))

	_, err = h.Key(types.Tuple{})
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
}

func TestKeyLimitsProperty(t *testing.T) {
	limits := api.DefaultConfig().Limits
	kg := NewKeyGenerator(limits)
	rapid.Check(t, func(t *rapid.T) {
		dims := rapid.IntRange(1, 20).Draw(t, "dims").(int)
		width := rapid.IntRange(1, 120).Draw(t, "width").(int)
		parts := make(types.Tuple, dims)
		for i := range parts {
			parts[i] = types.Str(strings.Repeat("k", width))
		}

		key, err := kg.HashKey("con", "map", parts)
		length := len("con.map") + dims*(width+1)
		switch {
		case dims > limits.MaxHashDimensions:
			if !core.IsKind(err, core.KindResourceLimit) {
				t.Fatalf("%d dimensions accepted", dims)
			}
		case length > limits.MaxKeySize:
			if !core.IsKind(err, core.KindResourceLimit) {
				t.Fatalf("key of %d bytes accepted", length)
			}
		default:
			if err != nil {
				t.Fatalf("valid key rejected: %v", err)
			}
			if len(key) != length {
				t.Fatalf("key length %d, want %d", len(key), length)
			}
		}
	})
}

func TestUnsetReadsNeverFailProperty(t *testing.T) {
	d, _ := newTestDriver(nil)
	h, err := NewHash(d, "c", "h", Options{Default: types.Str("none")})
	require.NoError(t, err)
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.StringMatching(`[a-z0-9]{1,32}`).Draw(t, "key").(string)
		v, err := h.Get(types.Str(k))
		if err != nil || v != types.Str("none") {
			t.Fatalf("read of unset %q returned %v, %v", k, v, err)
		}
	})
}

func TestVariable(t *testing.T) {
	meter := &countingMeter{}
	d, store := newTestDriver(meter)
	owner, err := NewVariable(d, "token", "owner", Options{Type: "str"})
	require.NoError(t, err)

	v, err := owner.Get()
	require.NoError(t, err)
	assert.Equal(t, types.None, v)
	assert.Equal(t, len("token.owner"), meter.read)

	require.NoError(t, owner.Set(types.Str("alice")))
	assert.Equal(t, len("token.owner")+len(`"alice"`), meter.write)

	err = owner.Set(types.NewInt(1))
	assert.True(t, core.IsKind(err, core.KindType))

	v, err = owner.Get()
	require.NoError(t, err)
	assert.Equal(t, types.Str("alice"), v)
	assert.Equal(t, 0, store.Len(), "writes stay buffered")

	require.NoError(t, d.Commit())
	raw, found, err := store.Get("token.owner")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `"alice"`, string(raw))
	assert.False(t, d.Dirty())
}

func TestForeignViewsAreReadOnly(t *testing.T) {
	d, _ := newTestDriver(nil)
	balances, err := NewHash(d, "currency", "balances", Options{Default: types.NewInt(0)})
	require.NoError(t, err)
	require.NoError(t, balances.Set(types.Str("alice"), types.NewInt(50)))
	require.NoError(t, d.Commit())

	foreign, err := NewForeignHash(d, "currency", "balances", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ForeignHash", foreign.TypeName())

	v, err := foreign.Get(types.Str("alice"))
	require.NoError(t, err)
	assert.Equal(t, types.NewInt(50), v)

	err = foreign.Set(types.Str("alice"), types.NewInt(1000))
	assert.True(t, core.IsKind(err, core.KindReference))
	assert.Empty(t, d.Mutations())

	fv, err := NewForeignVariable(d, "currency", "supply")
	require.NoError(t, err)
	err = fv.Set(types.NewInt(1))
	assert.True(t, core.IsKind(err, core.KindReference))
}

func TestWritesStayWithTheExecutingContract(t *testing.T) {
	d, _ := newTestDriver(nil)
	executing := "currency"
	d.SetWriter(func() string { return executing })

	balances, err := NewHash(d, "currency", "balances", Options{Default: types.NewInt(0)})
	require.NoError(t, err)
	supply, err := NewVariable(d, "currency", "supply", Options{})
	require.NoError(t, err)
	require.NoError(t, balances.Set(types.Str("alice"), types.NewInt(50)))
	require.NoError(t, supply.Set(types.NewInt(50)))

	executing = "exchange"
	err = balances.Set(types.Str("mallory"), types.NewInt(1000))
	assert.True(t, core.IsKind(err, core.KindReference))
	assert.Contains(t, err.Error(), "contract 'exchange' cannot write Hash 'currency.balances'")
	err = supply.Set(types.NewInt(0))
	assert.True(t, core.IsKind(err, core.KindReference))
	assert.Len(t, d.Mutations(), 2)

	v, err := balances.Get(types.Str("alice"))
	require.NoError(t, err)
	assert.Equal(t, types.NewInt(50), v)
}

func TestRollbackAndMutations(t *testing.T) {
	d, store := newTestDriver(nil)
	h, err := NewHash(d, "c", "h", Options{})
	require.NoError(t, err)

	require.NoError(t, h.Set(types.Str("a"), types.NewInt(1)))
	require.NoError(t, h.Set(types.Str("b"), types.MustDecimal("2.5")))
	require.NoError(t, h.Set(types.Str("a"), types.None))

	assert.Equal(t, []Mutation{
		{Key: "c.h:a", Value: "1"},
		{Key: "c.h:b", Value: `{"__fixed__":"2.5"}`},
		{Key: "c.h:a", Deleted: true},
	}, d.Mutations())

	v, err := h.Get(types.Str("a"))
	require.NoError(t, err)
	assert.Equal(t, types.None, v)

	d.Rollback()
	assert.Empty(t, d.Mutations())
	require.NoError(t, d.Commit())
	assert.Equal(t, 0, store.Len())
}

func TestMeteredReadFailure(t *testing.T) {
	meter := &countingMeter{limit: 5}
	d, _ := newTestDriver(meter)
	h, err := NewHash(d, "currency", "balances", Options{})
	require.NoError(t, err)

	_, err = h.Get(types.Str("alice"))
	assert.True(t, core.IsKind(err, core.KindStampsExhausted))
	assert.Equal(t, len("currency.balances:alice"), meter.read)
}
