package events

import (
	"strings"
	"testing"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema("currency", "Transfer", []Param{
		{Name: "sender", Types: []string{"str"}, Indexed: true},
		{Name: "receiver", Types: []string{"str"}, Indexed: true},
		{Name: "amount", Types: []string{"int", "float"}},
	}, api.DefaultConfig().Limits)
	require.NoError(t, err)
	return s
}

func dictOf(t *testing.T, kv ...types.Value) *types.Dict {
	t.Helper()
	d := types.NewDict()
	for i := 0; i < len(kv); i += 2 {
		require.NoError(t, d.Set(kv[i], kv[i+1]))
	}
	return d
}

func TestSchemaIndexedLimit(t *testing.T) {
	params := []Param{
		{Name: "a", Types: []string{"str"}, Indexed: true},
		{Name: "b", Types: []string{"str"}, Indexed: true},
		{Name: "c", Types: []string{"str"}, Indexed: true},
		{Name: "d", Types: []string{"str"}, Indexed: true},
	}
	_, err := NewSchema("c", "Wide", params, api.DefaultConfig().Limits)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	_, err = NewSchema("c", "Wide", params[:3], api.DefaultConfig().Limits)
	assert.NoError(t, err)

	_, err = NewSchema("c", "Bad", []Param{{Name: "a", Types: []string{"list"}}}, api.DefaultConfig().Limits)
	assert.True(t, core.IsKind(err, core.KindType))

	_, err = NewSchema("c", "", nil, api.DefaultConfig().Limits)
	assert.True(t, core.IsKind(err, core.KindValue))
}

func TestValidate(t *testing.T) {
	s := transferSchema(t)

	err := s.Validate(dictOf(t,
		types.Str("sender"), types.Str("alice"),
		types.Str("receiver"), types.Str("bob"),
		types.Str("amount"), types.MustDecimal("1.5"),
	))
	assert.NoError(t, err)

	err = s.Validate(dictOf(t,
		types.Str("sender"), types.Str("alice"),
		types.Str("amount"), types.NewInt(1),
	))
	assert.True(t, core.IsKind(err, core.KindValue))

	err = s.Validate(dictOf(t,
		types.Str("sender"), types.Str("alice"),
		types.Str("receiver"), types.NewInt(2),
		types.Str("amount"), types.NewInt(1),
	))
	assert.True(t, core.IsKind(err, core.KindType))

	err = s.Validate(dictOf(t,
		types.Str("sender"), types.Str("alice"),
		types.Str("receiver"), types.Str("bob"),
		types.Str("amount"), types.NewInt(1),
		types.Str("memo"), types.Str("hi"),
	))
	assert.True(t, core.IsKind(err, core.KindValue))

	err = s.Validate(dictOf(t,
		types.Str("sender"), types.Str(strings.Repeat("a", 1025)),
		types.Str("receiver"), types.Str("bob"),
		types.Str("amount"), types.NewInt(1),
	))
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
}

func TestAnyIsStringifiedBeforeSizeCheck(t *testing.T) {
	s, err := NewSchema("c", "Blob", []Param{{Name: "payload", Types: []string{"Any"}}}, api.DefaultConfig().Limits)
	require.NoError(t, err)

	items := make([]types.Value, 400)
	for i := range items {
		items[i] = types.NewInt(1)
	}
	err = s.Validate(dictOf(t, types.Str("payload"), types.NewList(items...)))
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	err = s.Validate(dictOf(t, types.Str("payload"), types.NewList(items[:10]...)))
	assert.NoError(t, err)
}

func TestEmit(t *testing.T) {
	s := transferSchema(t)
	var log Log
	ctx := core.Context{Caller: "alice", Signer: "alice", This: "currency"}
	block := core.Block{Now: 1700000000, Num: 42, Hash: "abc"}

	data := dictOf(t,
		types.Str("sender"), types.Str("alice"),
		types.Str("receiver"), types.Str("bob"),
		types.Str("amount"), types.NewInt(5),
	)
	require.NoError(t, log.Emit(s, data, ctx, block))
	require.NoError(t, log.Emit(s, data, ctx, block))

	err := log.Emit(s, types.NewDict(), ctx, block)
	assert.Error(t, err)

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, Event{
		Contract:  "currency",
		Event:     "Transfer",
		Caller:    "alice",
		Signer:    "alice",
		Indexed:   map[string]string{"sender": `"alice"`, "receiver": `"bob"`},
		Data:      map[string]string{"amount": "5"},
		Index:     0,
		Timestamp: 1700000000,
		BlockNum:  42,
	}, events[0])
	assert.Equal(t, 1, events[1].Index)

	log.Reset()
	assert.Empty(t, log.Events())
}
