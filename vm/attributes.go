package vm

import (
	"sort"
	"strings"
	"unicode"

	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

// methodTables is filled by init; the tables call back into the
// interpreter.
var methodTables map[string]map[string]methodFunc

func init() {
	methodTables = map[string]map[string]methodFunc{
		"Variable":  variableMethods,
		"str":       strMethods,
		"list":      listMethods,
		"dict":      dictMethods,
		"importlib": importlibMethods,
		"random":    randomMethods,
	}
}

type methodFunc func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error)

// ctxObject is the pre-bound ctx. It reads the context of the executing
// frame.
type ctxObject struct {
	rt *runtime
}

func (*ctxObject) TypeName() string { return "Context" }

func optionalStr(s string) types.Value {
	if s == "" {
		return types.None
	}
	return types.Str(s)
}

func (c *ctxObject) attr(name string) (types.Value, bool) {
	cur := c.rt.current()
	switch name {
	case "caller":
		return types.Str(cur.Caller), true
	case "signer":
		return types.Str(cur.Signer), true
	case "this":
		return types.Str(cur.This), true
	case "entry":
		return types.Tuple{types.Str(cur.EntryContract), types.Str(cur.EntryFunction)}, true
	case "submission_name":
		return optionalStr(cur.SubmissionName), true
	case "owner":
		return optionalStr(cur.Owner), true
	}
	return nil, false
}

func getAttr(rt *runtime, obj types.Value, name string) (types.Value, error) {
	var table map[string]methodFunc
	switch x := obj.(type) {
	case *ctxObject:
		if v, ok := x.attr(name); ok {
			return v, nil
		}
	case *module:
		fn, ok := x.inst.contract.Function(name)
		switch {
		case ok && fn.Kind == compiler.Exported:
			return &exportedFunc{inst: x.inst, name: name}, nil
		case ok && fn.Kind == compiler.Constructor:
			return nil, core.NewError(core.KindAuthorization, msgs.MsgConstructorNotCallable, x.inst.name())
		}
		return nil, core.NewError(core.KindAttribute, msgs.MsgModuleAttribute, x.inst.name(), name)
	case *state.Variable:
		table = methodTables["Variable"]
	case types.Str, *types.List, *types.Dict, *importlibObject, *randomObject:
		table = methodTables[obj.TypeName()]
	}
	if fn, ok := table[name]; ok {
		return &method{name: name, recv: obj, fn: fn}, nil
	}
	return nil, core.NewError(core.KindAttribute, msgs.MsgNoAttribute, obj.TypeName(), name)
}

// arity checks the positional count of a method call and rejects keywords
// the method does not take.
func arity(name string, args []types.Value, kw *kwargs, min, max int, keywords ...string) error {
	if len(args) < min || len(args) > max {
		return core.NewError(core.KindType, msgs.MsgArgumentCount, name, max, len(args))
	}
	if kw != nil {
		for _, k := range kw.names {
			allowed := false
			for _, a := range keywords {
				allowed = allowed || a == k
			}
			if !allowed {
				return core.NewError(core.KindType, msgs.MsgUnexpectedArgument, name, k)
			}
		}
	}
	return nil
}

func argStr(fn, param string, v types.Value) (string, error) {
	s, ok := v.(types.Str)
	if !ok {
		return "", core.NewError(core.KindType, msgs.MsgArgumentType, param, fn, "str", v.TypeName())
	}
	return string(s), nil
}

var variableMethods = map[string]methodFunc{
	"get": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("get", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return recv.(*state.Variable).Get()
	},
	"set": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("set", args, kw, 1, 1); err != nil {
			return nil, err
		}
		return types.None, recv.(*state.Variable).Set(args[0])
	},
}

func stripChars(args []types.Value) (string, bool, error) {
	if len(args) == 0 {
		return "", false, nil
	}
	if _, none := args[0].(types.NoneType); none {
		return "", false, nil
	}
	s, err := argStr("strip", "chars", args[0])
	return s, true, err
}

func stripMethod(name string, left, right bool) methodFunc {
	return func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity(name, args, kw, 0, 1); err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		chars, custom, err := stripChars(args)
		if err != nil {
			return nil, err
		}
		cut := func(r rune) bool {
			if custom {
				return strings.ContainsRune(chars, r)
			}
			return unicode.IsSpace(r)
		}
		if left {
			s = strings.TrimLeftFunc(s, cut)
		}
		if right {
			s = strings.TrimRightFunc(s, cut)
		}
		return types.Str(s), nil
	}
}

func strPredicate(name string, test func(rune) bool) methodFunc {
	return func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity(name, args, kw, 0, 0); err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		if s == "" {
			return types.Bool(false), nil
		}
		for _, r := range s {
			if !test(r) {
				return types.Bool(false), nil
			}
		}
		return types.Bool(true), nil
	}
}

func affixMethod(name string, test func(s, affix string) bool) methodFunc {
	return func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity(name, args, kw, 1, 1); err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		var candidates []types.Value
		if t, ok := args[0].(types.Tuple); ok {
			candidates = t
		} else {
			candidates = []types.Value{args[0]}
		}
		for _, c := range candidates {
			affix, err := argStr(name, "prefix", c)
			if err != nil {
				return nil, err
			}
			if test(s, affix) {
				return types.Bool(true), nil
			}
		}
		return types.Bool(false), nil
	}
}

var strMethods = map[string]methodFunc{
	"upper": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("upper", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.Str(strings.ToUpper(string(recv.(types.Str)))), nil
	},
	"lower": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("lower", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.Str(strings.ToLower(string(recv.(types.Str)))), nil
	},
	"strip":      stripMethod("strip", true, true),
	"lstrip":     stripMethod("lstrip", true, false),
	"rstrip":     stripMethod("rstrip", false, true),
	"isdigit":    strPredicate("isdigit", func(r rune) bool { return r >= '0' && r <= '9' }),
	"isalpha":    strPredicate("isalpha", unicode.IsLetter),
	"isalnum":    strPredicate("isalnum", func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }),
	"startswith": affixMethod("startswith", strings.HasPrefix),
	"endswith":   affixMethod("endswith", strings.HasSuffix),
	"split": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("split", args, kw, 0, 1); err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		var parts []string
		if len(args) == 0 {
			parts = strings.Fields(s)
		} else {
			sep, err := argStr("split", "sep", args[0])
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "split", "empty separator")
			}
			parts = strings.Split(s, sep)
		}
		out := make([]types.Value, len(parts))
		for i, p := range parts {
			out[i] = types.Str(p)
		}
		return types.NewList(out...), nil
	},
	"join": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("join", args, kw, 1, 1); err != nil {
			return nil, err
		}
		items, err := materialize(rt, args[0])
		if err != nil {
			return nil, err
		}
		sep := string(recv.(types.Str))
		parts := make([]string, len(items))
		size := 0
		for i, item := range items {
			if parts[i], err = argStr("join", "iterable", item); err != nil {
				return nil, err
			}
			size += len(parts[i]) + len(sep)
			if size > types.MaxSequenceLength {
				return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, size, types.MaxSequenceLength)
			}
		}
		return types.Str(strings.Join(parts, string(recv.(types.Str)))), nil
	},
	"replace": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("replace", args, kw, 2, 2); err != nil {
			return nil, err
		}
		old, err := argStr("replace", "old", args[0])
		if err != nil {
			return nil, err
		}
		repl, err := argStr("replace", "new", args[1])
		if err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		if n := strings.Count(s, old); n > 0 && len(s)+n*len(repl) > types.MaxSequenceLength {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(s)+n*len(repl), types.MaxSequenceLength)
		}
		return types.Str(strings.ReplaceAll(s, old, repl)), nil
	},
	"find": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("find", args, kw, 1, 1); err != nil {
			return nil, err
		}
		sub, err := argStr("find", "sub", args[0])
		if err != nil {
			return nil, err
		}
		s := string(recv.(types.Str))
		i := strings.Index(s, sub)
		if i < 0 {
			return types.NewInt(-1), nil
		}
		return types.NewInt(int64(len([]rune(s[:i])))), nil
	},
	"count": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("count", args, kw, 1, 1); err != nil {
			return nil, err
		}
		sub, err := argStr("count", "sub", args[0])
		if err != nil {
			return nil, err
		}
		return types.NewInt(int64(strings.Count(string(recv.(types.Str)), sub))), nil
	},
}

var listMethods = map[string]methodFunc{
	"append": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("append", args, kw, 1, 1); err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		if len(l.Items) >= types.MaxSequenceLength {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(l.Items)+1, types.MaxSequenceLength)
		}
		l.Items = append(l.Items, args[0])
		return types.None, nil
	},
	"extend": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("extend", args, kw, 1, 1); err != nil {
			return nil, err
		}
		items, err := materialize(rt, args[0])
		if err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		if len(l.Items)+len(items) > types.MaxSequenceLength {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(l.Items)+len(items), types.MaxSequenceLength)
		}
		l.Items = append(l.Items, items...)
		return types.None, nil
	},
	"insert": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("insert", args, kw, 2, 2); err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		n, err := toIndex("list", args[0])
		if err != nil {
			return nil, err
		}
		size := int64(len(l.Items))
		if n < 0 {
			n += size
		}
		n = max(0, min(n, size))
		l.Items = append(l.Items, nil)
		copy(l.Items[n+1:], l.Items[n:])
		l.Items[n] = args[1]
		return types.None, nil
	},
	"pop": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("pop", args, kw, 0, 1); err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		var index types.Value = types.NewInt(-1)
		if len(args) == 1 {
			index = args[0]
		}
		i, err := position("pop", index, len(l.Items))
		if err != nil {
			return nil, err
		}
		v := l.Items[i]
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
		return v, nil
	},
	"remove": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("remove", args, kw, 1, 1); err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		for i, item := range l.Items {
			if types.Equal(item, args[0]) {
				l.Items = append(l.Items[:i], l.Items[i+1:]...)
				return types.None, nil
			}
		}
		return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "remove", "x not in list")
	},
	"index": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("index", args, kw, 1, 1); err != nil {
			return nil, err
		}
		for i, item := range recv.(*types.List).Items {
			if types.Equal(item, args[0]) {
				return types.NewInt(int64(i)), nil
			}
		}
		return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "index", "x not in list")
	},
	"count": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("count", args, kw, 1, 1); err != nil {
			return nil, err
		}
		n := 0
		for _, item := range recv.(*types.List).Items {
			if types.Equal(item, args[0]) {
				n++
			}
		}
		return types.NewInt(int64(n)), nil
	},
	"reverse": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("reverse", args, kw, 0, 0); err != nil {
			return nil, err
		}
		items := recv.(*types.List).Items
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return types.None, nil
	},
	"sort": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("sort", args, kw, 0, 0, "key", "reverse"); err != nil {
			return nil, err
		}
		l := recv.(*types.List)
		sorted, err := sortValues(rt, l.Items, kw)
		if err != nil {
			return nil, err
		}
		l.Items = sorted
		return types.None, nil
	},
	"clear": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("clear", args, kw, 0, 0); err != nil {
			return nil, err
		}
		recv.(*types.List).Items = []types.Value{}
		return types.None, nil
	},
	"copy": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("copy", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.NewList(append([]types.Value(nil), recv.(*types.List).Items...)...), nil
	},
}

var dictMethods = map[string]methodFunc{
	"get": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("get", args, kw, 1, 2); err != nil {
			return nil, err
		}
		v, found, err := recv.(*types.Dict).Get(args[0])
		if err != nil {
			return nil, err
		}
		if found {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return types.None, nil
	},
	"keys": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("keys", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.NewList(recv.(*types.Dict).Keys()...), nil
	},
	"values": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("values", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.NewList(recv.(*types.Dict).Values()...), nil
	},
	"items": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("items", args, kw, 0, 0); err != nil {
			return nil, err
		}
		return types.NewList(recv.(*types.Dict).Items()...), nil
	},
	"pop": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("pop", args, kw, 1, 2); err != nil {
			return nil, err
		}
		v, found, err := recv.(*types.Dict).Delete(args[0])
		if err != nil {
			return nil, err
		}
		if found {
			return v, nil
		}
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, core.NewError(core.KindKey, msgs.MsgKeyNotFound, types.Repr(args[0]))
	},
	"setdefault": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("setdefault", args, kw, 1, 2); err != nil {
			return nil, err
		}
		d := recv.(*types.Dict)
		v, found, err := d.Get(args[0])
		if err != nil || found {
			return v, err
		}
		var def types.Value = types.None
		if len(args) == 2 {
			def = args[1]
		}
		return def, d.Set(args[0], def)
	},
	"update": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("update", args, nil, 0, 1); err != nil {
			return nil, err
		}
		d := recv.(*types.Dict)
		if len(args) == 1 {
			if err := mergeInto(rt, d, args[0]); err != nil {
				return nil, err
			}
		}
		if kw != nil {
			for _, k := range kw.names {
				if err := d.Set(types.Str(k), kw.values[k]); err != nil {
					return nil, err
				}
			}
		}
		return types.None, nil
	},
	"clear": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("clear", args, kw, 0, 0); err != nil {
			return nil, err
		}
		recv.(*types.Dict).Clear()
		return types.None, nil
	},
	"copy": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("copy", args, kw, 0, 0); err != nil {
			return nil, err
		}
		out := types.NewDict()
		if err := mergeInto(rt, out, recv); err != nil {
			return nil, err
		}
		return out, nil
	},
}

// mergeInto copies a mapping or an iterable of pairs into d.
func mergeInto(rt *runtime, d *types.Dict, src types.Value) error {
	if m, ok := src.(*types.Dict); ok {
		for _, item := range m.Items() {
			pair := item.(types.Tuple)
			if err := d.Set(pair[0], pair[1]); err != nil {
				return err
			}
		}
		return nil
	}
	items, err := materialize(rt, src)
	if err != nil {
		return err
	}
	for _, item := range items {
		pair, err := materialize(rt, item)
		if err != nil {
			return err
		}
		if len(pair) != 2 {
			return core.NewError(core.KindValue, msgs.MsgUnpackCount, 2, len(pair))
		}
		if err := d.Set(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// sortValues sorts a copy of items with optional key and reverse
// arguments. The sort is stable.
func sortValues(rt *runtime, items []types.Value, kw *kwargs) ([]types.Value, error) {
	keys := append([]types.Value(nil), items...)
	if fn, ok := kw.get("key"); ok {
		if _, none := fn.(types.NoneType); !none {
			for i, item := range items {
				k, err := callValue(rt, fn, []types.Value{item}, nil)
				if err != nil {
					return nil, err
				}
				keys[i] = k
			}
		}
	}
	reverse := false
	if r, ok := kw.get("reverse"); ok {
		reverse = types.Truthy(r)
	}
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	var failure error
	sort.SliceStable(order, func(a, b int) bool {
		x, y := keys[order[a]], keys[order[b]]
		if reverse {
			x, y = y, x
		}
		c, err := types.Compare("<", x, y)
		if err != nil && failure == nil {
			failure = err
		}
		return c < 0
	})
	if failure != nil {
		return nil, failure
	}
	out := make([]types.Value, len(items))
	for i, p := range order {
		out[i] = items[p]
	}
	return out, nil
}
