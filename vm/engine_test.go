package vm

import (
	"context"
	"embed"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/events"
	"github.com/govm-net/sandbox/log"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

//go:embed testdata/*.py
var testContracts embed.FS

func readContract(t require.TestingT, name string) []byte {
	code, err := testContracts.ReadFile("testdata/" + name + ".py")
	require.NoError(t, err)
	return code
}

func newTestEngine(t require.TestingT, opts ...Option) *Engine {
	e, err := NewEngine(api.DefaultConfig(), opts...)
	require.NoError(t, err)
	return e
}

func testEnv(caller string) core.Environment {
	return core.Environment{
		Caller:    caller,
		Signer:    caller,
		Now:       1700000000,
		BlockNum:  42,
		BlockHash: "9f86d081884c7d65",
		Stamps:    1_000_000,
	}
}

func deploy(t require.TestingT, e *Engine, name, owner string, args map[string]types.Value) {
	res := e.Deploy(context.Background(), Deployment{
		Name:            name,
		Code:            readContract(t, name),
		Owner:           owner,
		ConstructorArgs: args,
		Env:             testEnv("sys"),
	})
	require.NoError(t, res.Err)
}

func invoke(e *Engine, contract, function, caller string, kwargs map[string]types.Value) *Result {
	return e.Invoke(context.Background(), Invocation{
		Contract: contract,
		Function: function,
		Kwargs:   kwargs,
		Env:      testEnv(caller),
	})
}

func TestNewEngineInvalidConfig(t *testing.T) {
	conf := api.DefaultConfig()
	conf.Limits.MaxCallDepth = 0
	_, err := NewEngine(conf)
	assert.Error(t, err)

	conf = api.DefaultConfig()
	conf.Storage.Backend = "nope"
	_, err = NewEngine(conf)
	assert.Error(t, err)
}

func TestNewEngineAppliesLogConfig(t *testing.T) {
	defer log.InitConfig(api.DefaultConfig().Log)

	conf := api.DefaultConfig()
	conf.Log = log.Config{Level: "warn", Format: "json", Output: "discard"}
	e, err := NewEngine(conf)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
	_, isJSON := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestDeployAndTransfer(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", map[string]types.Value{"vk": types.Str("alice"), "amount": types.NewInt(1000)})

	res := invoke(e, "currency", "transfer", "alice", map[string]types.Value{
		"amount": types.NewInt(100),
		"to":     types.Str("bob"),
	})
	require.NoError(t, res.Err)
	assert.Equal(t, types.None, res.Value)
	assert.Positive(t, res.StampsUsed)
	assert.NotEmpty(t, res.Mutations)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, "currency", ev.Contract)
	assert.Equal(t, "Transfer", ev.Event)
	assert.Equal(t, "alice", ev.Caller)
	assert.Equal(t, map[string]string{"sender": `"alice"`, "receiver": `"bob"`}, ev.Indexed)
	assert.Contains(t, ev.Data, "amount")
	assert.Equal(t, uint64(42), ev.BlockNum)

	res = invoke(e, "currency", "balance_of", "carol", map[string]types.Value{"account": types.Str("bob")})
	require.NoError(t, res.Err)
	assert.True(t, types.Equal(types.NewInt(100), res.Value))

	v, err := e.Get("currency", "balances", types.Str("alice"))
	require.NoError(t, err)
	assert.True(t, types.Equal(types.NewInt(900), v), types.Repr(v))

	v, err = e.Get("currency", "supply")
	require.NoError(t, err)
	assert.Equal(t, "1000", types.Repr(v))
}

func TestHashDefaultValue(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)

	res := invoke(e, "currency", "balance_of", "alice", map[string]types.Value{"account": types.Str("nobody")})
	require.NoError(t, res.Err)
	assert.Equal(t, "0", types.Repr(res.Value))
	assert.Empty(t, res.Mutations)

	res = invoke(e, "currency", "balance_of", "alice", map[string]types.Value{"account": types.Str("sys")})
	require.NoError(t, res.Err)
	assert.Equal(t, "1000000", types.Repr(res.Value))
}

func TestFailedTransferRollsBack(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", map[string]types.Value{"vk": types.Str("alice"), "amount": types.NewInt(50)})

	res := invoke(e, "currency", "transfer", "alice", map[string]types.Value{
		"amount": types.NewInt(100),
		"to":     types.Str("bob"),
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindAssertion, core.KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), "Not enough coins to send!")
	assert.Empty(t, res.Mutations)
	assert.Empty(t, res.Events)
	assert.Positive(t, res.StampsUsed)

	res = invoke(e, "currency", "transfer", "alice", map[string]types.Value{
		"amount": types.NewInt(-5),
		"to":     types.Str("bob"),
	})
	assert.Equal(t, core.KindAssertion, core.KindOf(res.Err))
	var located *core.Error
	require.True(t, errors.As(res.Err, &located))
	assert.Equal(t, "currency", located.Contract)
	assert.Equal(t, 31, located.Line)

	v, err := e.Get("currency", "balances", types.Str("alice"))
	require.NoError(t, err)
	assert.Equal(t, "50", types.Repr(v))
	v, err = e.Get("currency", "balances", types.Str("bob"))
	require.NoError(t, err)
	assert.Equal(t, types.None, v)
}

func TestDebugLogging(t *testing.T) {
	defer log.InitConfig(api.DefaultConfig().Log)
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))

	conf := api.DefaultConfig()
	conf.Log = log.Config{Level: "debug", Output: "discard"}
	e, err := NewEngine(conf)
	require.NoError(t, err)
	defer e.Close()
	hook := logtest.NewGlobal()

	deploy(t, e, "currency", "", map[string]types.Value{"vk": types.Str("alice"), "amount": types.NewInt(50)})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Contains(t, entry.Message, "deploy committed")
	assert.Equal(t, []string{"currency"}, entry.Data["loaded"])

	hook.Reset()
	res := invoke(e, "currency", "transfer", "alice", map[string]types.Value{
		"amount": types.NewInt(10),
		"to":     types.Str("bob:carol"),
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "invoke discarding 1 buffered writes")
}

func TestForeignStateIsReadOnly(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)
	deploy(t, e, "reader", "", nil)

	res := invoke(e, "reader", "read", "alice", map[string]types.Value{"account": types.Str("sys")})
	require.NoError(t, res.Err)
	assert.Equal(t, "[1000000, 1000000]", types.Repr(res.Value))

	res = invoke(e, "reader", "read", "alice", map[string]types.Value{"account": types.Str("ghost")})
	require.NoError(t, res.Err)
	assert.Equal(t, "[0, 1000000]", types.Repr(res.Value))

	res = invoke(e, "reader", "steal", "alice", map[string]types.Value{"account": types.Str("sys")})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindReference, core.KindOf(res.Err))
	assert.Empty(t, res.Mutations)

	v, err := e.Get("currency", "balances", types.Str("sys"))
	require.NoError(t, err)
	assert.Equal(t, "1000000", types.Repr(v))
}

func TestReturnedHandlesStayWithTheirContract(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "victim", "", nil)
	deploy(t, e, "thief", "", nil)

	res := invoke(e, "victim", "deposit", "alice", map[string]types.Value{"amount": types.NewInt(5)})
	require.NoError(t, res.Err)

	res = invoke(e, "thief", "peek", "mallory", map[string]types.Value{"account": types.Str("alice")})
	require.NoError(t, res.Err)
	assert.Equal(t, "5", types.Repr(res.Value))

	res = invoke(e, "thief", "take", "mallory", nil)
	require.Error(t, res.Err)
	assert.Equal(t, core.KindReference, core.KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), "contract 'thief' cannot write Hash 'victim.balances'")
	assert.Empty(t, res.Mutations)

	v, err := e.Get("victim", "balances", types.Str("mallory"))
	require.NoError(t, err)
	assert.Equal(t, types.None, v)
}

func TestCallDepthLimit(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "ping", "", nil)
	deploy(t, e, "pong", "", nil)

	res := invoke(e, "ping", "rally", "alice", map[string]types.Value{"n": types.NewInt(10)})
	require.NoError(t, res.Err)
	assert.Equal(t, "10", types.Repr(res.Value))

	res = e.Invoke(context.Background(), Invocation{
		Contract: "ping",
		Function: "bounce",
		Env: core.Environment{
			Caller: "alice",
			Signer: "alice",
			Stamps: 500_000_000,
		},
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
	assert.Empty(t, res.Mutations)
	assert.Less(t, res.StampsUsed, int64(500_000_000))

	for _, name := range []string{"ping", "pong"} {
		v, err := e.Get(name, "hits")
		require.NoError(t, err)
		assert.Equal(t, types.None, v, name)
	}
}

func TestCallDepthBoundary(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "deep", "", nil)
	deploy(t, e, "ping", "", nil)
	deploy(t, e, "pong", "", nil)

	call := func(contract, function string, n int64) *Result {
		env := testEnv("alice")
		env.Stamps = 50_000_000
		return e.Invoke(context.Background(), Invocation{
			Contract: contract,
			Function: function,
			Kwargs:   map[string]types.Value{"n": types.NewInt(n)},
			Env:      env,
		})
	}

	// dive(n) occupies n+2 frames, rally(n) n+1
	res := call("deep", "dive", 1022)
	require.NoError(t, res.Err)
	assert.Equal(t, "1022", types.Repr(res.Value))
	v, err := e.Get("deep", "levels")
	require.NoError(t, err)
	assert.Equal(t, "1023", types.Repr(v))

	res = call("deep", "dive", 1023)
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
	assert.Empty(t, res.Mutations)
	v, err = e.Get("deep", "levels")
	require.NoError(t, err)
	assert.Equal(t, "1023", types.Repr(v), "writes of the aborted dive are discarded")

	res = call("ping", "rally", 1023)
	require.NoError(t, res.Err)
	assert.Equal(t, "1023", types.Repr(res.Value))

	res = call("ping", "rally", 1024)
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
}

func TestMultipleConstructorsRejected(t *testing.T) {
	m := newRecordingMetrics()
	e := newTestEngine(t, WithMetrics(m))
	defer e.Close()

	res := e.Deploy(context.Background(), Deployment{
		Name: "twice",
		Code: readContract(t, "two_constructors"),
		Env:  testEnv("sys"),
	})
	var rejection *compiler.Rejection
	require.True(t, errors.As(res.Err, &rejection))
	assert.True(t, rejection.Has(compiler.RuleMultipleConstructors))
	assert.Empty(t, res.Mutations)
	assert.Equal(t, 1, m.rejections[string(compiler.RuleMultipleConstructors)])
	assert.Equal(t, 1, m.deployments["rejected"])

	violations := e.Lint(readContract(t, "two_constructors"))
	require.Len(t, violations, 1)
	assert.Equal(t, compiler.RuleMultipleConstructors, violations[0].Rule)

	res = invoke(e, "twice", "get_owner", "alice", nil)
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))
}

func TestTooManyIndexedParams(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	res := e.Deploy(context.Background(), Deployment{
		Name: "loud_event",
		Code: readContract(t, "loud_event"),
		Env:  testEnv("sys"),
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
	assert.Empty(t, res.Mutations)

	res = invoke(e, "loud_event", "shout", "alice", nil)
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))
}

func TestDeployErrors(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)

	res := e.Deploy(context.Background(), Deployment{Name: "currency", Code: readContract(t, "currency"), Env: testEnv("sys")})
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))

	res = e.Deploy(context.Background(), Deployment{Name: "Currency", Code: readContract(t, "currency"), Env: testEnv("sys")})
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))

	res = e.Deploy(context.Background(), Deployment{
		Name:            "owned",
		Code:            readContract(t, "owned"),
		ConstructorArgs: map[string]types.Value{"x": types.NewInt(1)},
		Env:             testEnv("sys"),
	})
	assert.Equal(t, core.KindType, core.KindOf(res.Err))

	res = e.Deploy(context.Background(), Deployment{
		Name:            "token",
		Code:            readContract(t, "currency"),
		ConstructorArgs: map[string]types.Value{"amount": types.Str("lots")},
		Env:             testEnv("sys"),
	})
	assert.Equal(t, core.KindType, core.KindOf(res.Err))
	assert.Empty(t, res.Mutations)
}

func TestInvokeErrors(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)

	tests := []struct {
		name     string
		function string
		kwargs   map[string]types.Value
		kind     core.ErrorKind
	}{
		{"private function", "require_positive", map[string]types.Value{"amount": types.NewInt(1)}, core.KindResolution},
		{"unknown function", "mint", nil, core.KindResolution},
		{"constructor", "seed", nil, core.KindAuthorization},
		{"wrong type", "transfer", map[string]types.Value{"amount": types.Str("x"), "to": types.Str("bob")}, core.KindType},
		{"missing argument", "transfer", map[string]types.Value{"amount": types.NewInt(1)}, core.KindType},
		{"unexpected argument", "balance_of", map[string]types.Value{"account": types.Str("a"), "extra": types.NewInt(1)}, core.KindType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := invoke(e, "currency", tt.function, "sys", tt.kwargs)
			require.Error(t, res.Err)
			assert.Equal(t, tt.kind, core.KindOf(res.Err), res.Err.Error())
			assert.Empty(t, res.Mutations)
		})
	}

	res := invoke(e, "missing", "anything", "sys", nil)
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))
}

func TestOwnerRestriction(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)
	deploy(t, e, "owned", "proxy", nil)
	deploy(t, e, "proxy", "", nil)

	res := invoke(e, "owned", "increment", "alice", nil)
	require.Error(t, res.Err)
	assert.Equal(t, core.KindAuthorization, core.KindOf(res.Err))

	res = invoke(e, "proxy", "poke", "alice", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, "[1, ['proxy', 'alice', 'owned', 'proxy', ('proxy', 'poke')]]", types.Repr(res.Value))

	res = invoke(e, "proxy", "owner_of_target", "alice", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, types.Str("proxy"), res.Value)

	res = invoke(e, "proxy", "reseed", "alice", nil)
	assert.Equal(t, core.KindAuthorization, core.KindOf(res.Err))

	v, err := e.Get("owned", "counter")
	require.NoError(t, err)
	assert.Equal(t, "1", types.Repr(v))
}

func TestEnforceInterface(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "currency", "", nil)
	deploy(t, e, "interface", "", nil)

	name := map[string]types.Value{"name": types.Str("currency")}
	for function, want := range map[string]types.Value{
		"conforms":      types.Bool(true),
		"mintable":      types.Bool(false),
		"hides_helpers": types.Bool(true),
	} {
		res := invoke(e, "interface", function, "alice", name)
		require.NoError(t, res.Err, function)
		assert.Equal(t, want, res.Value, function)
	}

	res := invoke(e, "interface", "bad_entry", "alice", name)
	assert.Equal(t, core.KindType, core.KindOf(res.Err))

	res = invoke(e, "interface", "require_mintable", "alice", name)
	assert.Equal(t, core.KindAssertion, core.KindOf(res.Err))
	assert.Contains(t, res.Err.Error(), "not a mintable token")

	res = invoke(e, "interface", "missing", "alice", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, types.Bool(false), res.Value)

	res = invoke(e, "interface", "conforms", "alice", map[string]types.Value{"name": types.Str("nothing_here")})
	assert.Equal(t, core.KindResolution, core.KindOf(res.Err))
}

func TestRandomIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "lottery", "", nil)

	entrants := map[string]types.Value{"entrants": types.NewList(types.Str("ann"), types.Str("ben"), types.Str("cat"))}
	first := invoke(e, "lottery", "draw", "alice", entrants)
	require.NoError(t, first.Err)
	second := invoke(e, "lottery", "draw", "alice", entrants)
	require.NoError(t, second.Err)
	assert.Equal(t, types.Repr(first.Value), types.Repr(second.Value))

	other := e.Invoke(context.Background(), Invocation{
		Contract: "lottery",
		Function: "draw",
		Kwargs:   entrants,
		Env:      core.Environment{Caller: "alice", Signer: "alice", BlockNum: 43, BlockHash: "60303ae22b998861", Stamps: 1_000_000},
	})
	require.NoError(t, other.Err)
	assert.NotEqual(t, types.Repr(first.Value), types.Repr(other.Value))

	salted := func(salt string) types.Value {
		res := invoke(e, "lottery", "salted", "alice", map[string]types.Value{"salt": types.Str(salt)})
		require.NoError(t, res.Err)
		return res.Value
	}
	assert.Equal(t, types.Repr(salted("x")), types.Repr(salted("x")))

	items := make([]types.Value, 10)
	for i := range items {
		items[i] = types.NewInt(int64(i))
	}
	res := invoke(e, "lottery", "shuffled", "alice", map[string]types.Value{"items": types.NewList(items...)})
	require.NoError(t, res.Err)
	shuffled := res.Value.(*types.List).Items
	require.Len(t, shuffled, 10)
	got := make([]int, len(shuffled))
	for i, v := range shuffled {
		n, _ := v.(types.Int).Int64()
		got[i] = int(n)
	}
	sort.Ints(got)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	// the caller's list is copied into the invocation
	assert.Equal(t, types.NewInt(0), items[0])
}

func TestArithmeticAndBuiltins(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "calc", "", nil)

	tests := []struct {
		function string
		kwargs   map[string]types.Value
		want     string
	}{
		{"third", nil, "0.333333333333333333333333333333"},
		{"exact", nil, "True"},
		{"integers", map[string]types.Value{"a": types.NewInt(7), "b": types.NewInt(2)}, "(3, 1, 49, (3, 1), -4)"},
		{"scaled", map[string]types.Value{"x": types.MustDecimal("1.2345")}, "123.45"},
		{"text", map[string]types.Value{"words": types.NewList(types.Str("a"), types.Str("bb"), types.Str("cc"))},
			"['BB CC', ['BB', 'CC'], '3', '0xff', 43]"},
		{"collections", nil, "[[('a', 1), ('b', 2), ('c', 3)], {'a': 1, 'b': 4, 'c': 9}, 4, 7, 2, 10, [(1, 'a'), (2, 'b')]]"},
		{"loop", map[string]types.Value{"n": types.NewInt(5)}, "5"},
		{"divide", map[string]types.Value{"a": types.NewInt(1), "b": types.NewInt(2)}, "0.5"},
		{"check_types", map[string]types.Value{"x": types.Bool(true)}, "[True, False, True]"},
		{"check_types", map[string]types.Value{"x": types.MustDecimal("2.5")}, "[False, True, False]"},
	}
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			res := invoke(e, "calc", tt.function, "alice", tt.kwargs)
			require.NoError(t, res.Err)
			assert.Equal(t, tt.want, types.Repr(res.Value))
		})
	}

	res := invoke(e, "calc", "overflow", "alice", nil)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))

	res = invoke(e, "calc", "divide", "alice", map[string]types.Value{"a": types.NewInt(1), "b": types.NewInt(0)})
	assert.Equal(t, core.KindArithmetic, core.KindOf(res.Err))
}

func TestStampsExhausted(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "calc", "", nil)

	env := testEnv("alice")
	env.Stamps = 1000
	res := e.Invoke(context.Background(), Invocation{
		Contract: "calc",
		Function: "loop",
		Kwargs:   map[string]types.Value{"n": types.NewInt(1_000_000)},
		Env:      env,
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindStampsExhausted, core.KindOf(res.Err))
	assert.Equal(t, int64(1000), res.StampsUsed)
}

func TestBuiltinsAreMetered(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	deploy(t, e, "calc", "", nil)

	env := testEnv("alice")
	env.Stamps = 100_000
	res := e.Invoke(context.Background(), Invocation{
		Contract: "calc",
		Function: "summed",
		Kwargs:   map[string]types.Value{"n": types.NewInt(30_000_000)},
		Env:      env,
	})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindStampsExhausted, core.KindOf(res.Err))
	assert.Equal(t, int64(100_000), res.StampsUsed)

	res = invoke(e, "calc", "summed", "alice", map[string]types.Value{"n": types.NewInt(100)})
	require.NoError(t, res.Err)
	assert.Equal(t, "4950", types.Repr(res.Value))

	res = invoke(e, "calc", "grow", "alice", map[string]types.Value{"n": types.NewInt(30)})
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))

	res = invoke(e, "calc", "wide", "alice", nil)
	require.Error(t, res.Err)
	assert.Equal(t, core.KindResourceLimit, core.KindOf(res.Err))
}

func TestPersistentBackend(t *testing.T) {
	conf := api.DefaultConfig()
	conf.Storage = api.Storage{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "state.db")}

	e, err := NewEngine(conf)
	require.NoError(t, err)
	deploy(t, e, "currency", "", map[string]types.Value{"vk": types.Str("alice"), "amount": types.NewInt(10)})
	res := invoke(e, "currency", "transfer", "alice", map[string]types.Value{"amount": types.NewInt(4), "to": types.Str("bob")})
	require.NoError(t, res.Err)
	require.NoError(t, e.Close())

	e, err = NewEngine(conf)
	require.NoError(t, err)
	defer e.Close()
	res = invoke(e, "currency", "balance_of", "alice", map[string]types.Value{"account": types.Str("bob")})
	require.NoError(t, res.Err)
	assert.True(t, types.Equal(types.NewInt(4), res.Value))
}

func TestMetricsReporting(t *testing.T) {
	m := newRecordingMetrics()
	e := newTestEngine(t, WithMetrics(m))
	defer e.Close()
	deploy(t, e, "currency", "", nil)

	invoke(e, "currency", "balance_of", "alice", map[string]types.Value{"account": types.Str("sys")})
	invoke(e, "currency", "transfer", "alice", map[string]types.Value{"amount": types.NewInt(1), "to": types.Str("bob")})

	assert.Equal(t, map[string]int{"ok": 1}, m.deployments)
	assert.Equal(t, map[string]int{"ok": 1, "assertion": 1}, m.invocations)
	assert.Positive(t, m.stamps)
}

// outcome is the observable result of an invocation, compared across
// engines.
type outcome struct {
	Value     string
	Err       string
	Events    []events.Event
	Mutations []state.Mutation
	Stamps    int64
}

func observe(res *Result) outcome {
	o := outcome{Events: res.Events, Mutations: res.Mutations, Stamps: res.StampsUsed}
	if res.Value != nil {
		o.Value = types.Repr(res.Value)
	}
	if res.Err != nil {
		o.Err = res.Err.Error()
	}
	return o
}

func TestDeterministicReplay(t *testing.T) {
	accounts := []string{"alice", "bob", "carol"}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n").(int)
		type call struct {
			from, to string
			amount   int
		}
		calls := make([]call, n)
		for i := range calls {
			calls[i] = call{
				from:   rapid.SampledFrom(accounts).Draw(t, "from").(string),
				to:     rapid.SampledFrom(accounts).Draw(t, "to").(string),
				amount: rapid.IntRange(-10, 600).Draw(t, "amount").(int),
			}
		}

		run := func() []outcome {
			e := newTestEngine(t)
			defer e.Close()
			deploy(t, e, "currency", "", map[string]types.Value{"vk": types.Str("alice"), "amount": types.NewInt(1000)})
			var out []outcome
			for _, c := range calls {
				res := invoke(e, "currency", "transfer", c.from, map[string]types.Value{
					"amount": types.NewInt(int64(c.amount)),
					"to":     types.Str(c.to),
				})
				out = append(out, observe(res))
			}
			for _, a := range accounts {
				out = append(out, observe(invoke(e, "currency", "balance_of", a, map[string]types.Value{"account": types.Str(a)})))
			}
			return out
		}
		if diff := cmp.Diff(run(), run()); diff != "" {
			t.Fatalf("replay diverged (-first +second):\n%s", diff)
		}
	})
}

// recordingMetrics counts what the engine reports.
type recordingMetrics struct {
	invocations map[string]int
	deployments map[string]int
	rejections  map[string]int
	stamps      int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		invocations: make(map[string]int),
		deployments: make(map[string]int),
		rejections:  make(map[string]int),
	}
}

func (m *recordingMetrics) IncInvocation(result string) { m.invocations[result]++ }
func (m *recordingMetrics) IncDeployment(result string) { m.deployments[result]++ }
func (m *recordingMetrics) AddStamps(used int64)        { m.stamps += used }
func (m *recordingMetrics) IncRejection(rule string)    { m.rejections[rule]++ }
