package vm

import (
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/types"
)

// callable is implemented by every value a contract can call.
type callable interface {
	types.Value
	call(rt *runtime, args []types.Value, kwargs *kwargs) (types.Value, error)
}

// kwargs keeps keyword arguments in call order.
type kwargs struct {
	names  []string
	values map[string]types.Value
}

func newKwargs() *kwargs {
	return &kwargs{values: make(map[string]types.Value)}
}

func (k *kwargs) set(name string, v types.Value) bool {
	if _, dup := k.values[name]; dup {
		return false
	}
	k.names = append(k.names, name)
	k.values[name] = v
	return true
}

func (k *kwargs) get(name string) (types.Value, bool) {
	if k == nil {
		return nil, false
	}
	v, ok := k.values[name]
	return v, ok
}

func (k *kwargs) len() int {
	if k == nil {
		return 0
	}
	return len(k.names)
}

// function is a contract function bound to the instance that defines it.
type function struct {
	inst     *instance
	fn       *compiler.Function
	defaults []types.Value
}

func (*function) TypeName() string { return "function" }

func (f *function) call(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	return rt.callFunction(f, args, kw, false)
}

// builtin is a native function. Builtins that double as type names carry
// the name isinstance and annotations compare against.
type builtin struct {
	name string
	fn   func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error)
	// typeName is set for builtins usable as a type
	typeName string
}

func (*builtin) TypeName() string { return "builtin_function_or_method" }

func (b *builtin) call(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	return b.fn(rt, args, kw)
}

// typeMarker is a pre-bound name usable only as a type, such as Any.
type typeMarker struct {
	name string
}

func (*typeMarker) TypeName() string { return "type" }

// method is a builtin bound to its receiver.
type method struct {
	name string
	recv types.Value
	fn   func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error)
}

func (*method) TypeName() string { return "builtin_function_or_method" }

func (m *method) call(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	return m.fn(rt, m.recv, args, kw)
}

// module is a contract loaded through importlib. Only exported functions
// are reachable through it.
type module struct {
	inst *instance
}

func (*module) TypeName() string { return "module" }

// exportedFunc is an exported function reached through a module value.
// Calling it enters the target contract.
type exportedFunc struct {
	inst *instance
	name string
}

func (*exportedFunc) TypeName() string { return "function" }

func (e *exportedFunc) call(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	return rt.callExported(e.inst, e.name, args, kw)
}

// interfaceFunc is importlib.Func(name, args=(...)).
type interfaceFunc struct {
	name string
	args []string
}

func (*interfaceFunc) TypeName() string { return "Func" }

// interfaceVar is importlib.Var(name, t=Hash).
type interfaceVar struct {
	name string
	kind string
}

func (*interfaceVar) TypeName() string { return "Var" }

// typeNameOf returns the type a builtin or marker stands for.
func typeNameOf(v types.Value) (string, bool) {
	switch t := v.(type) {
	case *builtin:
		if t.typeName != "" {
			return t.typeName, true
		}
	case *typeMarker:
		return t.name, true
	}
	return "", false
}
