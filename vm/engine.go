// Package vm executes contracts: it deploys accepted source, runs exported
// functions in a fresh metered runtime and commits or discards their state
// writes as a whole.
package vm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/events"
	"github.com/govm-net/sandbox/log"
	"github.com/govm-net/sandbox/metrics"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/repository"
	"github.com/govm-net/sandbox/security"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/storage"
	"github.com/govm-net/sandbox/types"

	_ "github.com/govm-net/sandbox/storage/memory"
	_ "github.com/govm-net/sandbox/storage/sqlite"
	_ "github.com/govm-net/sandbox/storage/tmdb"
)

// Sandbox is the surface the surrounding ledger drives.
type Sandbox interface {
	Deploy(ctx context.Context, d Deployment) *Result
	Invoke(ctx context.Context, inv Invocation) *Result
	Lint(code []byte) []compiler.Violation
	Close() error
}

var _ Sandbox = (*Engine)(nil)

// Deployment submits a new contract.
type Deployment struct {
	Name string
	Code []byte
	// Owner restricts every caller of the contract, empty when public
	Owner           string
	ConstructorArgs map[string]types.Value
	Env             core.Environment
}

// Invocation calls one exported function with keyword arguments.
type Invocation struct {
	Contract string
	Function string
	Kwargs   map[string]types.Value
	Env      core.Environment
}

// Result reports one deployment or invocation. Err is set when the call
// aborted; Events and Mutations are then empty.
type Result struct {
	Value      types.Value
	Err        error
	Events     []events.Event
	StampsUsed int64
	Mutations  []state.Mutation
}

// Engine is responsible for contract deployment and execution. Top-level
// calls are serialized.
type Engine struct {
	mu       sync.Mutex
	config   api.Config
	maker    *compiler.Maker
	registry *repository.Manager
	backend  storage.Backend
	metrics  metrics.SandboxMetrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithBackend uses backend instead of opening the configured one.
func WithBackend(backend storage.Backend) Option {
	return func(e *Engine) {
		e.backend = backend
	}
}

// WithMetrics reports to m instead of unregistered counters.
func WithMetrics(m metrics.SandboxMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a new contract engine
func NewEngine(config api.Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.InitConfig(config.Log)
	maker := compiler.NewMaker(config.Limits)
	e := &Engine{
		config:   config,
		maker:    maker,
		registry: repository.NewManager(maker),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		backend, err := storage.Open(config.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open state backend: %w", err)
		}
		e.backend = backend
	}
	if e.metrics == nil {
		e.metrics = metrics.InitMetrics(nil)
	}
	return e, nil
}

// validateConfig validates the configuration
func validateConfig(config api.Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Limits.MaxIntBits <= 0 {
		return fmt.Errorf("invalid max int bits: %d", config.Limits.MaxIntBits)
	}
	return nil
}

// Lint reports every violation of code without deploying it.
func (e *Engine) Lint(code []byte) []compiler.Violation {
	return e.maker.Lint(code)
}

func (e *Engine) newRuntime(ctx context.Context, env core.Environment) *runtime {
	meter := security.NewMeter(security.NewStampLedger(env.Stamps), e.config.Costs)
	rt := &runtime{
		ctx:      ctx,
		limits:   e.config.Limits,
		registry: e.registry,
		driver:   state.NewDriver(e.backend, e.config.Limits, meter),
		meter:    meter,
		tracer:   security.NewCallTracer(e.config.Limits.MaxCallDepth),
		events:   &events.Log{},
		env:      env,
		block:    env.Block(),
	}
	rt.init()
	return rt
}

// Deploy validates and registers a contract, running its constructor with
// the deployment's arguments. Nothing is stored unless every step succeeds.
func (e *Engine) Deploy(ctx context.Context, d Deployment) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = log.WithLogField(ctx, "contract", d.Name)
	rt := e.newRuntime(ctx, d.Env)
	value, err := e.deploy(rt, d)
	res := e.finish(rt, "deploy", value, err)
	e.metrics.IncDeployment(resultLabel(res.Err))
	return res
}

func (e *Engine) deploy(rt *runtime, d Deployment) (types.Value, error) {
	if !repository.ValidName(d.Name) {
		return nil, core.NewError(core.KindResolution, msgs.MsgInvalidContractName, d.Name)
	}
	c, err := e.maker.CompileContract(d.Name, d.Code)
	if err != nil {
		var rejection *compiler.Rejection
		if errors.As(err, &rejection) {
			for _, v := range rejection.Violations {
				e.metrics.IncRejection(string(v.Rule))
			}
		}
		return nil, err
	}
	exists, err := e.registry.Exists(rt.driver, d.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, core.NewError(core.KindResolution, msgs.MsgContractExists, d.Name)
	}

	entry := ""
	if c.Constructor != nil {
		entry = c.Constructor.Name
	}
	top := d.Env.TopContext(d.Name, entry, d.Owner)
	top.SubmissionName = d.Name
	rt.push(top)
	defer rt.pop()

	inst := &instance{contract: c, owner: d.Owner}
	if err := rt.initialize(inst); err != nil {
		return nil, err
	}
	kw := kwargsFrom(d.ConstructorArgs)
	if c.Constructor != nil {
		f, ok := inst.globals[c.Constructor.Symbol].(*function)
		if !ok {
			return nil, core.NewError(core.KindInternal, msgs.MsgUndefinedName, c.Constructor.Symbol)
		}
		if _, err := rt.callFunction(f, nil, kw, true); err != nil {
			return nil, err
		}
	} else if kw.len() > 0 {
		return nil, core.NewError(core.KindType, msgs.MsgUnexpectedArgument, d.Name, kw.names[0])
	}

	meta := repository.Metadata{
		Owner:     d.Owner,
		Developer: top.Caller,
		Submitted: d.Env.Now,
	}
	if err := e.registry.Register(rt.driver, c, meta); err != nil {
		return nil, err
	}
	return types.None, nil
}

// Invoke calls an exported function of a deployed contract.
func (e *Engine) Invoke(ctx context.Context, inv Invocation) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = log.WithLogField(ctx, "contract", inv.Contract)
	ctx = log.WithLogField(ctx, "function", inv.Function)
	rt := e.newRuntime(ctx, inv.Env)
	value, err := e.invoke(rt, inv)
	res := e.finish(rt, "invoke", value, err)
	e.metrics.IncInvocation(resultLabel(res.Err))
	return res
}

func (e *Engine) invoke(rt *runtime, inv Invocation) (types.Value, error) {
	rt.push(inv.Env.TopContext(inv.Contract, inv.Function, ""))
	defer rt.pop()

	inst, err := rt.load(inv.Contract)
	if err != nil {
		return nil, err
	}
	top := inv.Env.TopContext(inv.Contract, inv.Function, inst.owner)
	return rt.enter(inst, inv.Function, nil, kwargsFrom(inv.Kwargs), top)
}

// finish commits the writes of a successful call or discards everything a
// failed one did. Stamps are reported either way.
func (e *Engine) finish(rt *runtime, op string, value types.Value, err error) *Result {
	logger := log.L(rt.ctx)
	if err == nil {
		mutations := rt.driver.Mutations()
		if err = rt.driver.Commit(); err == nil {
			res := &Result{
				Value:      value,
				Events:     rt.events.Events(),
				StampsUsed: rt.meter.Ledger().Used(),
				Mutations:  mutations,
			}
			e.metrics.AddStamps(res.StampsUsed)
			if log.IsDebugEnabled() {
				logger.WithField("loaded", rt.loaded()).Debugf("%s committed %d writes and %d events using %d stamps", op, len(res.Mutations), len(res.Events), res.StampsUsed)
			}
			return res
		}
	}
	if rt.driver.Dirty() {
		logger.Debugf("%s discarding %d buffered writes", op, len(rt.driver.Mutations()))
	}
	rt.driver.Rollback()
	rt.events.Reset()
	res := &Result{
		Err:        err,
		StampsUsed: rt.meter.Ledger().Used(),
	}
	e.metrics.AddStamps(res.StampsUsed)
	logger.Infof("%s aborted using %d stamps: %s", op, res.StampsUsed, err)
	return res
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var rejection *compiler.Rejection
	if errors.As(err, &rejection) {
		return "rejected"
	}
	return string(core.KindOf(err))
}

// Get reads a committed state slot without charging stamps. Hash entries
// are addressed with their key components.
func (e *Engine) Get(contract, name string, keys ...types.Value) (types.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := state.NewDriver(e.backend, e.config.Limits, nil)
	var key string
	var err error
	switch len(keys) {
	case 0:
		key, err = d.Keys().SlotKey(contract, name)
	case 1:
		key, err = d.Keys().HashKey(contract, name, keys[0])
	default:
		key, err = d.Keys().HashKey(contract, name, types.Tuple(keys))
	}
	if err != nil {
		return nil, err
	}
	v, _, err := d.Get(key)
	return v, err
}

// loaded lists the contracts whose module body ran.
func (rt *runtime) loaded() []string {
	names := make([]string, 0, len(rt.instances))
	for name := range rt.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the engine
func (e *Engine) Close() error {
	if err := e.backend.Close(); err != nil {
		return fmt.Errorf("failed to close state backend: %w", err)
	}
	return nil
}
