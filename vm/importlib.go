package vm

import (
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/repository"
	"github.com/govm-net/sandbox/types"
)

// importlibObject is the pre-bound importlib. It is the only way a
// contract reaches another contract.
type importlibObject struct{}

func (*importlibObject) TypeName() string { return "importlib" }

var importlibMethods = map[string]methodFunc{
	"import_module": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("import_module", args, kw, 1, 1); err != nil {
			return nil, err
		}
		name, err := argStr("import_module", "name", args[0])
		if err != nil {
			return nil, err
		}
		if !repository.ValidName(name) {
			return nil, core.NewError(core.KindResolution, msgs.MsgInvalidContractName, name)
		}
		inst, err := rt.load(name)
		if err != nil {
			return nil, err
		}
		return &module{inst: inst}, nil
	},
	"exists": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("exists", args, kw, 1, 1); err != nil {
			return nil, err
		}
		name, err := argStr("exists", "name", args[0])
		if err != nil {
			return nil, err
		}
		if _, loaded := rt.instances[name]; loaded {
			return types.Bool(true), nil
		}
		ok, err := rt.registry.Exists(rt.driver, name)
		if err != nil {
			return nil, err
		}
		return types.Bool(ok), nil
	},
	"owner_of": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("owner_of", args, kw, 1, 1); err != nil {
			return nil, err
		}
		if m, ok := args[0].(*module); ok {
			return optionalStr(m.inst.owner), nil
		}
		name, err := argStr("owner_of", "module", args[0])
		if err != nil {
			return nil, err
		}
		entry, err := rt.registry.Resolve(rt.driver, name)
		if err != nil {
			return nil, err
		}
		return optionalStr(entry.Metadata.Owner), nil
	},
	"Func": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("Func", args, kw, 1, 2, "args"); err != nil {
			return nil, err
		}
		name, err := argStr("Func", "name", args[0])
		if err != nil {
			return nil, err
		}
		var params types.Value = types.Tuple{}
		if len(args) == 2 {
			params = args[1]
		} else if v, ok := kw.get("args"); ok {
			params = v
		}
		items, err := materialize(rt, params)
		if err != nil {
			return nil, err
		}
		f := &interfaceFunc{name: name, args: make([]string, len(items))}
		for i, item := range items {
			if f.args[i], err = argStr("Func", "args", item); err != nil {
				return nil, err
			}
		}
		return f, nil
	},
	"Var": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("Var", args, kw, 1, 2, "t"); err != nil {
			return nil, err
		}
		name, err := argStr("Var", "name", args[0])
		if err != nil {
			return nil, err
		}
		var t types.Value
		if len(args) == 2 {
			t = args[1]
		} else if v, ok := kw.get("t"); ok {
			t = v
		} else {
			return nil, core.NewError(core.KindType, msgs.MsgMissingArgument, "Var", "t")
		}
		kind, ok := typeNameOf(t)
		if !ok || !isORMConstructor(kind) {
			return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "t", "Var", "a state type", t.TypeName())
		}
		return &interfaceVar{name: name, kind: kind}, nil
	},
	"enforce_interface": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("enforce_interface", args, kw, 2, 2); err != nil {
			return nil, err
		}
		m, ok := args[0].(*module)
		if !ok {
			return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "module", "enforce_interface", "module", args[0].TypeName())
		}
		entries, err := materialize(rt, args[1])
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			matched, err := satisfies(m.inst, entry)
			if err != nil {
				return nil, err
			}
			if !matched {
				return types.Bool(false), nil
			}
		}
		return types.Bool(true), nil
	},
}

// satisfies checks one interface entry. A function matches when it is
// exported with the same parameter names in order; a variable matches a
// state declaration of the same name and kind.
func satisfies(inst *instance, entry types.Value) (bool, error) {
	switch e := entry.(type) {
	case *interfaceFunc:
		fn, ok := inst.contract.Function(e.name)
		if !ok || !inst.contract.IsExported(e.name) || len(fn.Params) != len(e.args) {
			return false, nil
		}
		for i, p := range fn.Params {
			if p.Name != e.args[i] {
				return false, nil
			}
		}
		return true, nil
	case *interfaceVar:
		decl, ok := inst.contract.Declaration(e.name)
		return ok && decl.Kind == e.kind, nil
	}
	return false, core.NewError(core.KindType, msgs.MsgInvalidInterface, entry.TypeName())
}
