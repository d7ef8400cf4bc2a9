package vm

import (
	"context"
	"math/big"
	"sort"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/events"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/repository"
	"github.com/govm-net/sandbox/security"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

// runtime holds everything one top-level invocation touches. It is
// discarded when the invocation ends.
type runtime struct {
	ctx      context.Context
	limits   api.Limits
	registry repository.Registry
	driver   *state.Driver
	meter    *security.Meter
	tracer   *security.CallTracer
	events   *events.Log
	env      core.Environment
	block    core.Block

	contexts  []core.Context
	instances map[string]*instance
	prebound  map[string]types.Value
	random    *randomSource
}

// instance is a contract whose module body ran in this invocation.
type instance struct {
	contract *compiler.Contract
	owner    string
	globals  map[string]types.Value
}

func (inst *instance) name() string {
	return inst.contract.Name
}

func (rt *runtime) init() {
	rt.instances = make(map[string]*instance)
	rt.prebound = map[string]types.Value{
		"ctx":        &ctxObject{rt: rt},
		"importlib":  &importlibObject{},
		"random":     &randomObject{},
		"Any":        &typeMarker{name: "Any"},
		"decimal":    &builtin{name: "decimal", fn: builtinDecimal, typeName: "float"},
		"now":        types.NewInt(rt.block.Now),
		"block_num":  types.IntFromBig(new(big.Int).SetUint64(rt.block.Num)),
		"block_hash": types.Str(rt.block.Hash),
	}
	for _, name := range api.ORMConstructors {
		rt.prebound[name] = ormConstructor(name)
	}
	rt.driver.SetWriter(func() string {
		return rt.current().This
	})
}

// current returns the context of the executing frame.
func (rt *runtime) current() core.Context {
	if len(rt.contexts) == 0 {
		return rt.env.TopContext("", "", "")
	}
	return rt.contexts[len(rt.contexts)-1]
}

func (rt *runtime) push(c core.Context) {
	rt.contexts = append(rt.contexts, c)
}

func (rt *runtime) pop() {
	rt.contexts = rt.contexts[:len(rt.contexts)-1]
}

// load returns the instance of a registered contract, running its module
// body the first time it is used in this invocation.
func (rt *runtime) load(name string) (*instance, error) {
	if inst, ok := rt.instances[name]; ok {
		return inst, nil
	}
	entry, err := rt.registry.Resolve(rt.driver, name)
	if err != nil {
		return nil, err
	}
	inst := &instance{contract: entry.Contract, owner: entry.Metadata.Owner}
	if err := rt.initialize(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// initialize binds the module scope of inst: functions, state declarations
// and module level constants.
func (rt *runtime) initialize(inst *instance) error {
	inst.globals = make(map[string]types.Value)
	rt.instances[inst.name()] = inst
	fr := &frame{rt: rt, inst: inst}
	for _, stmt := range inst.contract.Module.Body {
		if err := fr.execModule(stmt); err != nil {
			delete(rt.instances, inst.name())
			return core.Locate(err, inst.name(), stmt.Position().Line)
		}
	}
	return nil
}

// callExported enters inst through one of its exported functions. Types
// of annotated parameters are checked at this boundary.
func (rt *runtime) callExported(inst *instance, name string, args []types.Value, kw *kwargs) (types.Value, error) {
	return rt.enter(inst, name, args, kw, rt.current().Enter(inst.name(), inst.owner))
}

func (rt *runtime) enter(inst *instance, name string, args []types.Value, kw *kwargs, next core.Context) (types.Value, error) {
	fn, ok := inst.contract.Function(name)
	if !ok || fn.Kind == compiler.Private {
		return nil, core.NewError(core.KindResolution, msgs.MsgFunctionNotExported, name, inst.name())
	}
	if fn.Kind == compiler.Constructor {
		return nil, core.NewError(core.KindAuthorization, msgs.MsgConstructorNotCallable, inst.name())
	}
	if inst.owner != "" && next.Caller != inst.owner {
		return nil, core.NewError(core.KindAuthorization, msgs.MsgNotOwner, next.Caller, inst.name())
	}
	f, ok := inst.globals[fn.Symbol].(*function)
	if !ok {
		return nil, core.NewError(core.KindInternal, msgs.MsgUndefinedName, fn.Symbol)
	}
	rt.push(next)
	defer rt.pop()
	return rt.callFunction(f, args, kw, true)
}

// callFunction runs f in a fresh local scope. Every call is charged and
// counts toward the call depth.
func (rt *runtime) callFunction(f *function, args []types.Value, kw *kwargs, boundary bool) (types.Value, error) {
	if err := rt.meter.ChargeCall(); err != nil {
		return nil, err
	}
	caller := rt.current().Caller
	if frame, ok := rt.tracer.Current(); ok {
		caller = frame.Contract
	}
	if err := rt.tracer.BeginCall(caller, f.inst.name(), f.fn.Name); err != nil {
		return nil, err
	}
	defer rt.tracer.EndCall()

	locals, err := bindArguments(f, args, kw)
	if err != nil {
		return nil, err
	}
	if boundary {
		if err := checkArguments(f, locals); err != nil {
			return nil, err
		}
	}
	fr := &frame{rt: rt, inst: f.inst, locals: newScope(locals, nil)}
	flow, value, err := fr.execBlock(f.fn.Def.Body)
	if err != nil {
		return nil, err
	}
	if flow == flowReturn && value != nil {
		return value, nil
	}
	return types.None, nil
}

func bindArguments(f *function, args []types.Value, kw *kwargs) (map[string]types.Value, error) {
	params := f.fn.Params
	name := f.fn.Name
	if len(args) > len(params) {
		return nil, core.NewError(core.KindType, msgs.MsgArgumentCount, name, len(params), len(args))
	}
	locals := make(map[string]types.Value, len(params))
	for i, v := range args {
		locals[params[i].Name] = v
	}
	if kw != nil {
		known := make(map[string]bool, len(params))
		for _, p := range params {
			known[p.Name] = true
		}
		for _, k := range kw.names {
			if !known[k] {
				return nil, core.NewError(core.KindType, msgs.MsgUnexpectedArgument, name, k)
			}
			if _, dup := locals[k]; dup {
				return nil, core.NewError(core.KindType, msgs.MsgDuplicateArgument, name, k)
			}
			locals[k] = kw.values[k]
		}
	}
	for i, p := range params {
		if _, ok := locals[p.Name]; ok {
			continue
		}
		if f.defaults[i] == nil {
			return nil, core.NewError(core.KindType, msgs.MsgMissingArgument, name, p.Name)
		}
		locals[p.Name] = f.defaults[i]
	}
	return locals, nil
}

// checkArguments validates annotated parameters. Integers passed for a
// float parameter become decimals.
func checkArguments(f *function, locals map[string]types.Value) error {
	for _, p := range f.fn.Params {
		if p.Type == "" || p.Type == "Any" {
			continue
		}
		v := locals[p.Name]
		if argumentMatches(p.Type, v) {
			if i, ok := v.(types.Int); ok && p.Type == "float" {
				locals[p.Name] = types.DecimalFromInt(i)
			}
			continue
		}
		return core.NewError(core.KindType, msgs.MsgArgumentType, p.Name, f.fn.Name, p.Type, v.TypeName())
	}
	return nil
}

func argumentMatches(declared string, v types.Value) bool {
	switch v.(type) {
	case types.Bool:
		return declared == "bool"
	case types.Int:
		return declared == "int" || declared == "float"
	case types.Decimal:
		return declared == "float"
	}
	return declared == v.TypeName()
}

// kwargsFrom converts caller supplied arguments. Names are sorted so error
// reporting does not depend on map order.
func kwargsFrom(in map[string]types.Value) *kwargs {
	kw := newKwargs()
	names := make([]string, 0, len(in))
	for k := range in {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		kw.set(k, types.Copy(in[k]))
	}
	return kw
}
