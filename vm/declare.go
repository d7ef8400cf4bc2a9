package vm

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/events"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

// declarationKeywords lists the keyword arguments each declaration takes,
// in positional order.
var declarationKeywords = map[string][]string{
	"Variable":        {"default_value", "t"},
	"Hash":            {"default_value", "t"},
	"ForeignVariable": {"foreign_contract", "foreign_name"},
	"ForeignHash":     {"foreign_contract", "foreign_name", "default_value"},
	"LogEvent":        {"event", "params"},
}

func isORMConstructor(name string) bool {
	for _, n := range api.ORMConstructors {
		if n == name {
			return true
		}
	}
	return false
}

// ormConstructor is the value bound to a declaration name. Calling it
// anywhere but a module level assignment fails.
func ormConstructor(name string) *builtin {
	return &builtin{
		name: name,
		fn: func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
			return nil, core.NewError(core.KindValue, msgs.MsgORMOutsideModule, name)
		},
		typeName: name,
	}
}

// declare evaluates a module level declaration and binds it to the
// instance and the assigned name.
func (fr *frame) declare(kind, target string, call *syntax.Call) (types.Value, error) {
	keywords := declarationKeywords[kind]
	// only LogEvent takes positional arguments
	if kind != "LogEvent" && len(call.Args) > 0 {
		return nil, core.NewError(core.KindType, msgs.MsgArgumentCount, kind, 0, len(call.Args))
	}
	if len(call.Args) > len(keywords) {
		return nil, core.NewError(core.KindType, msgs.MsgArgumentCount, kind, len(keywords), len(call.Args))
	}
	args := make(map[string]types.Value, len(keywords))
	for i, e := range call.Args {
		v, err := fr.eval(e)
		if err != nil {
			return nil, err
		}
		args[keywords[i]] = v
	}
	for _, k := range call.Keywords {
		known := false
		for _, name := range keywords {
			known = known || name == k.Name
		}
		if !known {
			return nil, core.NewError(core.KindType, msgs.MsgUnexpectedArgument, kind, k.Name)
		}
		if _, dup := args[k.Name]; dup {
			return nil, core.NewError(core.KindType, msgs.MsgDuplicateArgument, kind, k.Name)
		}
		v, err := fr.eval(k.Value)
		if err != nil {
			return nil, err
		}
		args[k.Name] = v
	}

	rt := fr.rt
	contract := fr.inst.name()
	switch kind {
	case "Variable", "Hash":
		opts, err := declarationOptions(kind, args)
		if err != nil {
			return nil, err
		}
		if kind == "Variable" {
			return state.NewVariable(rt.driver, contract, target, opts)
		}
		return state.NewHash(rt.driver, contract, target, opts)
	case "ForeignVariable", "ForeignHash":
		fc, err := requiredStr(kind, "foreign_contract", args)
		if err != nil {
			return nil, err
		}
		fn, err := requiredStr(kind, "foreign_name", args)
		if err != nil {
			return nil, err
		}
		if kind == "ForeignVariable" {
			return state.NewForeignVariable(rt.driver, fc, fn)
		}
		opts := state.Options{Default: args["default_value"]}
		return state.NewForeignHash(rt.driver, fc, fn, opts)
	case "LogEvent":
		return fr.declareEvent(args)
	}
	return nil, core.NewError(core.KindInternal, msgs.MsgORMDeclaration, kind)
}

func declarationOptions(kind string, args map[string]types.Value) (state.Options, error) {
	opts := state.Options{Default: args["default_value"]}
	if t, ok := args["t"]; ok {
		if _, none := t.(types.NoneType); !none {
			name, ok := typeNameOf(t)
			if !ok {
				return opts, core.NewError(core.KindType, msgs.MsgArgumentType, "t", kind, "type", t.TypeName())
			}
			opts.Type = name
		}
	}
	if opts.Default != nil && opts.Type != "" {
		if _, none := opts.Default.(types.NoneType); !none {
			if !argumentMatches(opts.Type, opts.Default) && opts.Type != "Any" {
				return opts, core.NewError(core.KindType, msgs.MsgStateType, opts.Default.TypeName(), opts.Type, "default_value")
			}
		}
	}
	return opts, nil
}

func requiredStr(kind, name string, args map[string]types.Value) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", core.NewError(core.KindType, msgs.MsgMissingArgument, kind, name)
	}
	return argStr(kind, name, v)
}

// declareEvent builds an event schema. params maps each parameter name to
// a dict with a type (or tuple of types) under "type" and an optional
// "idx" flag.
func (fr *frame) declareEvent(args map[string]types.Value) (types.Value, error) {
	event, err := requiredStr("LogEvent", "event", args)
	if err != nil {
		return nil, err
	}
	raw, ok := args["params"]
	if !ok {
		return nil, core.NewError(core.KindType, msgs.MsgMissingArgument, "LogEvent", "params")
	}
	declared, ok := raw.(*types.Dict)
	if !ok {
		return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "params", "LogEvent", "dict", raw.TypeName())
	}
	var params []events.Param
	for _, item := range declared.Items() {
		pair := item.(types.Tuple)
		name, ok := pair[0].(types.Str)
		if !ok {
			return nil, core.NewError(core.KindType, msgs.MsgEventParamType, event, types.Repr(pair[0]))
		}
		p, err := eventParam(event, string(name), pair[1])
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return events.NewSchema(fr.inst.name(), event, params, fr.rt.limits)
}

func eventParam(event, name string, decl types.Value) (events.Param, error) {
	p := events.Param{Name: name}
	d, ok := decl.(*types.Dict)
	if !ok {
		return p, core.NewError(core.KindType, msgs.MsgEventParamType, event, name)
	}
	t, found, err := d.Get(types.Str("type"))
	if err != nil {
		return p, err
	}
	if !found {
		return p, core.NewError(core.KindType, msgs.MsgEventParamType, event, name)
	}
	candidates := []types.Value{t}
	if tuple, ok := t.(types.Tuple); ok {
		candidates = tuple
	}
	for _, c := range candidates {
		tn, ok := typeNameOf(c)
		if !ok {
			return p, core.NewError(core.KindType, msgs.MsgEventParamType, event, name)
		}
		p.Types = append(p.Types, tn)
	}
	idx, found, err := d.Get(types.Str("idx"))
	if err != nil {
		return p, err
	}
	if found {
		p.Indexed = types.Truthy(idx)
	}
	return p, nil
}
