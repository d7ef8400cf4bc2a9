package vm

import (
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

type builtinFunc func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error)

var builtins = map[string]types.Value{
	"True":  types.Bool(true),
	"False": types.Bool(false),
	"None":  types.None,

	"abs":        &builtin{name: "abs", fn: builtinAbs},
	"all":        &builtin{name: "all", fn: builtinAll},
	"any":        &builtin{name: "any", fn: builtinAny},
	"bin":        &builtin{name: "bin", fn: radix("bin", 2, "0b")},
	"bool":       &builtin{name: "bool", fn: builtinBool, typeName: "bool"},
	"chr":        &builtin{name: "chr", fn: builtinChr},
	"dict":       &builtin{name: "dict", fn: builtinDict, typeName: "dict"},
	"divmod":     &builtin{name: "divmod", fn: builtinDivmod},
	"enumerate":  &builtin{name: "enumerate", fn: builtinEnumerate},
	"filter":     &builtin{name: "filter", fn: builtinFilter},
	"float":      &builtin{name: "float", fn: builtinDecimal, typeName: "float"},
	"hex":        &builtin{name: "hex", fn: radix("hex", 16, "0x")},
	"int":        &builtin{name: "int", fn: builtinInt, typeName: "int"},
	"isinstance": &builtin{name: "isinstance", fn: builtinIsinstance},
	"issubclass": &builtin{name: "issubclass", fn: builtinIssubclass},
	"len":        &builtin{name: "len", fn: builtinLen},
	"list":       &builtin{name: "list", fn: builtinList, typeName: "list"},
	"map":        &builtin{name: "map", fn: builtinMap},
	"max":        &builtin{name: "max", fn: extreme("max", 1)},
	"min":        &builtin{name: "min", fn: extreme("min", -1)},
	"oct":        &builtin{name: "oct", fn: radix("oct", 8, "0o")},
	"ord":        &builtin{name: "ord", fn: builtinOrd},
	"pow":        &builtin{name: "pow", fn: builtinPow},
	"range":      &builtin{name: "range", fn: builtinRange},
	"reversed":   &builtin{name: "reversed", fn: builtinReversed},
	"round":      &builtin{name: "round", fn: builtinRound},
	"sorted":     &builtin{name: "sorted", fn: builtinSorted},
	"str":        &builtin{name: "str", fn: builtinStr, typeName: "str"},
	"sum":        &builtin{name: "sum", fn: builtinSum},
	"tuple":      &builtin{name: "tuple", fn: builtinTuple, typeName: "tuple"},
	"zip":        &builtin{name: "zip", fn: builtinZip},
}

func argInt(fn, param string, v types.Value) (types.Int, error) {
	switch x := v.(type) {
	case types.Int:
		return x, nil
	case types.Bool:
		if x {
			return types.NewInt(1), nil
		}
		return types.NewInt(0), nil
	}
	return types.Int{}, core.NewError(core.KindType, msgs.MsgArgumentType, param, fn, "int", v.TypeName())
}

func builtinAbs(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("abs", args, kw, 1, 1); err != nil {
		return nil, err
	}
	if d, ok := args[0].(types.Decimal); ok {
		return d.Abs(), nil
	}
	i, err := argInt("abs", "x", args[0])
	if err != nil {
		return nil, err
	}
	return types.IntFromBig(new(big.Int).Abs(i.Big())), nil
}

func truthScan(name string, want bool) builtinFunc {
	return func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity(name, args, kw, 1, 1); err != nil {
			return nil, err
		}
		found := false
		err := forEach(rt, args[0], func(item types.Value) (bool, error) {
			if types.Truthy(item) == want {
				found = true
				return false, nil
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		// all() looks for a falsy item, any() for a truthy one
		return types.Bool(found == want), nil
	}
}

var (
	builtinAll = truthScan("all", false)
	builtinAny = truthScan("any", true)
)

func radix(name string, base int, prefix string) builtinFunc {
	return func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity(name, args, kw, 1, 1); err != nil {
			return nil, err
		}
		i, err := argInt(name, "x", args[0])
		if err != nil {
			return nil, err
		}
		b := i.Big()
		if b.Sign() < 0 {
			return types.Str("-" + prefix + new(big.Int).Neg(b).Text(base)), nil
		}
		return types.Str(prefix + b.Text(base)), nil
	}
}

func builtinBool(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("bool", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.Bool(false), nil
	}
	return types.Bool(types.Truthy(args[0])), nil
}

func builtinChr(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("chr", args, kw, 1, 1); err != nil {
		return nil, err
	}
	i, err := argInt("chr", "i", args[0])
	if err != nil {
		return nil, err
	}
	n, ok := i.Int64()
	if !ok || n < 0 || n > utf8.MaxRune {
		return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "chr", "arg not in range(0x110000)")
	}
	return types.Str(string(rune(n))), nil
}

func builtinDict(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("dict", args, nil, 0, 1); err != nil {
		return nil, err
	}
	d := types.NewDict()
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
	return d, nil
}

func builtinDivmod(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("divmod", args, kw, 2, 2); err != nil {
		return nil, err
	}
	q, err := types.BinaryOp("//", args[0], args[1], rt.limits.MaxIntBits)
	if err != nil {
		return nil, err
	}
	r, err := types.BinaryOp("%", args[0], args[1], rt.limits.MaxIntBits)
	if err != nil {
		return nil, err
	}
	return types.Tuple{q, r}, nil
}

func builtinEnumerate(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("enumerate", args, kw, 1, 2, "start"); err != nil {
		return nil, err
	}
	var start types.Value = types.NewInt(0)
	if len(args) == 2 {
		start = args[1]
	} else if s, ok := kw.get("start"); ok {
		start = s
	}
	n, err := argInt("enumerate", "start", start)
	if err != nil {
		return nil, err
	}
	items, err := materialize(rt, args[0])
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, len(items))
	for i, item := range items {
		index := new(big.Int).Add(n.Big(), big.NewInt(int64(i)))
		out[i] = types.Tuple{types.IntFromBig(index), item}
	}
	return types.NewList(out...), nil
}

func builtinFilter(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("filter", args, kw, 2, 2); err != nil {
		return nil, err
	}
	items, err := materialize(rt, args[1])
	if err != nil {
		return nil, err
	}
	_, identity := args[0].(types.NoneType)
	out := []types.Value{}
	for _, item := range items {
		keep := item
		if !identity {
			if keep, err = callValue(rt, args[0], []types.Value{item}, nil); err != nil {
				return nil, err
			}
		}
		if types.Truthy(keep) {
			out = append(out, item)
		}
	}
	return types.NewList(out...), nil
}

// builtinDecimal backs float() and decimal(). Both produce exact decimals.
func builtinDecimal(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("decimal", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.MustDecimal("0"), nil
	}
	switch x := args[0].(type) {
	case types.Decimal:
		return x, nil
	case types.Str:
		return types.NewDecimal(string(x))
	}
	if d, ok := types.ToDecimal(args[0]); ok {
		return d, nil
	}
	return nil, core.NewError(core.KindArithmetic, msgs.MsgValueConversion, args[0].TypeName(), "decimal")
}

func builtinInt(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("int", args, kw, 0, 2, "base"); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.NewInt(0), nil
	}
	base := int64(10)
	baseGiven := false
	var b types.Value
	if len(args) == 2 {
		b, baseGiven = args[1], true
	} else if v, ok := kw.get("base"); ok {
		b, baseGiven = v, true
	}
	if baseGiven {
		n, err := argInt("int", "base", b)
		if err != nil {
			return nil, err
		}
		base, _ = n.Int64()
		if base != 0 && (base < 2 || base > 36) {
			return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "int", "base must be >= 2 and <= 36, or 0")
		}
	}
	switch x := args[0].(type) {
	case types.Str:
		return parseIntText(string(x), int(base))
	case types.Int:
		if !baseGiven {
			return x, nil
		}
	case types.Bool:
		if !baseGiven {
			return argInt("int", "x", x)
		}
	case types.Decimal:
		if !baseGiven {
			return x.Trunc(), nil
		}
	}
	if baseGiven {
		return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, "int", "can't convert non-string with explicit base")
	}
	return nil, core.NewError(core.KindArithmetic, msgs.MsgValueConversion, args[0].TypeName(), "int")
}

func parseIntText(s string, base int) (types.Value, error) {
	text := strings.TrimSpace(s)
	digits := strings.ReplaceAll(text, "_", "")
	if digits == "" || strings.HasPrefix(text, "_") || strings.HasSuffix(text, "_") || strings.Contains(text, "__") {
		return nil, core.NewError(core.KindArithmetic, msgs.MsgInvalidLiteral, "int", s)
	}
	if base == 10 {
		unsigned := strings.TrimLeft(digits, "+-")
		if len(unsigned) > 1 && unsigned[0] == '0' && strings.Trim(unsigned, "0") != "" {
			return nil, core.NewError(core.KindArithmetic, msgs.MsgInvalidLiteral, "int", s)
		}
	}
	v, ok := new(big.Int).SetString(strings.ToLower(digits), base)
	if !ok {
		return nil, core.NewError(core.KindArithmetic, msgs.MsgInvalidLiteral, "int", s)
	}
	return types.IntFromBig(v), nil
}

// isInstance matches v against a type name. Booleans are integers and
// decimals answer to float.
func isInstance(v types.Value, name string) bool {
	switch v.(type) {
	case types.Bool:
		return name == "bool" || name == "int" || name == "Any"
	case types.Decimal:
		return name == "float" || name == "Any"
	case *state.Variable:
		return name == "Variable" || name == v.TypeName() || name == "Any"
	case *state.Hash:
		return name == "Hash" || name == v.TypeName() || name == "Any"
	}
	return name == "Any" || v.TypeName() == name
}

// typeNames resolves the second argument of isinstance and issubclass.
func typeNames(fn string, v types.Value) ([]string, error) {
	candidates := []types.Value{v}
	if t, ok := v.(types.Tuple); ok {
		candidates = t
	}
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		name, ok := typeNameOf(c)
		if !ok {
			return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, fn, "arg 2 must be a type or tuple of types")
		}
		names = append(names, name)
	}
	return names, nil
}

func builtinIsinstance(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("isinstance", args, kw, 2, 2); err != nil {
		return nil, err
	}
	names, err := typeNames("isinstance", args[1])
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if isInstance(args[0], name) {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func builtinIssubclass(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("issubclass", args, kw, 2, 2); err != nil {
		return nil, err
	}
	sub, ok := typeNameOf(args[0])
	if !ok {
		return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, "issubclass", "arg 1 must be a type")
	}
	names, err := typeNames("issubclass", args[1])
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if sub == name || name == "Any" || (sub == "bool" && name == "int") {
			return types.Bool(true), nil
		}
	}
	return types.Bool(false), nil
}

func builtinLen(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("len", args, kw, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case types.Str:
		return types.NewInt(int64(utf8.RuneCountInString(string(x)))), nil
	case types.Tuple:
		return types.NewInt(int64(len(x))), nil
	case *types.List:
		return types.NewInt(int64(len(x.Items))), nil
	case *types.Dict:
		return types.NewInt(int64(x.Len())), nil
	case types.Range:
		return types.NewInt(x.Len()), nil
	case *state.Hash:
		return nil, core.NewError(core.KindType, msgs.MsgRangeOnHash, x.TypeName())
	}
	return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "obj", "len", "sized", args[0].TypeName())
}

func builtinList(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("list", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.NewList(), nil
	}
	items, err := materialize(rt, args[0])
	if err != nil {
		return nil, err
	}
	return types.NewList(items...), nil
}

func builtinTuple(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("tuple", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.Tuple{}, nil
	}
	if t, ok := args[0].(types.Tuple); ok {
		return t, nil
	}
	items, err := materialize(rt, args[0])
	if err != nil {
		return nil, err
	}
	return types.Tuple(items), nil
}

// zipped materializes every iterable and truncates to the shortest.
func zipped(rt *runtime, iterables []types.Value) ([][]types.Value, int, error) {
	columns := make([][]types.Value, len(iterables))
	shortest := -1
	for i, it := range iterables {
		items, err := materialize(rt, it)
		if err != nil {
			return nil, 0, err
		}
		columns[i] = items
		if shortest < 0 || len(items) < shortest {
			shortest = len(items)
		}
	}
	if shortest < 0 {
		shortest = 0
	}
	return columns, shortest, nil
}

func builtinMap(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if len(args) < 2 {
		return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, "map", "must have at least two arguments")
	}
	if err := arity("map", args, kw, 2, len(args)); err != nil {
		return nil, err
	}
	columns, n, err := zipped(rt, args[1:])
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		row := make([]types.Value, len(columns))
		for c := range columns {
			row[c] = columns[c][i]
		}
		if out[i], err = callValue(rt, args[0], row, nil); err != nil {
			return nil, err
		}
	}
	return types.NewList(out...), nil
}

func builtinZip(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("zip", args, kw, 0, len(args)); err != nil {
		return nil, err
	}
	columns, n, err := zipped(rt, args)
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		row := make(types.Tuple, len(columns))
		for c := range columns {
			row[c] = columns[c][i]
		}
		out[i] = row
	}
	return types.NewList(out...), nil
}

// extreme implements max (sign 1) and min (sign -1). The first of equal
// candidates wins.
func extreme(name string, sign int) builtinFunc {
	return func(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
		if len(args) == 0 {
			return nil, core.NewError(core.KindType, msgs.MsgArgumentCount, name, 1, 0)
		}
		if err := arity(name, args, kw, 1, len(args), "key", "default"); err != nil {
			return nil, err
		}
		candidates := args
		if len(args) == 1 {
			items, err := materialize(rt, args[0])
			if err != nil {
				return nil, err
			}
			candidates = items
		}
		if len(candidates) == 0 {
			if def, ok := kw.get("default"); ok {
				return def, nil
			}
			return nil, core.NewError(core.KindValue, msgs.MsgEmptySequence, name)
		}
		key, hasKey := kw.get("key")
		if hasKey {
			_, none := key.(types.NoneType)
			hasKey = !none
		}
		keyOf := func(v types.Value) (types.Value, error) {
			if !hasKey {
				return v, nil
			}
			return callValue(rt, key, []types.Value{v}, nil)
		}
		best := candidates[0]
		bestKey, err := keyOf(best)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates[1:] {
			k, err := keyOf(c)
			if err != nil {
				return nil, err
			}
			order, err := types.Compare(">", k, bestKey)
			if err != nil {
				return nil, err
			}
			if order*sign > 0 {
				best, bestKey = c, k
			}
		}
		return best, nil
	}
}

func builtinOrd(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("ord", args, kw, 1, 1); err != nil {
		return nil, err
	}
	s, err := argStr("ord", "c", args[0])
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(s) != 1 {
		return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, "ord", "expected a character")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return types.NewInt(int64(r)), nil
}

func builtinPow(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("pow", args, kw, 2, 3); err != nil {
		return nil, err
	}
	if len(args) == 2 {
		return types.BinaryOp("**", args[0], args[1], rt.limits.MaxIntBits)
	}
	if _, none := args[2].(types.NoneType); none {
		return types.BinaryOp("**", args[0], args[1], rt.limits.MaxIntBits)
	}
	base, err := argInt("pow", "base", args[0])
	if err != nil {
		return nil, err
	}
	exp, err := argInt("pow", "exp", args[1])
	if err != nil {
		return nil, err
	}
	mod, err := argInt("pow", "mod", args[2])
	if err != nil {
		return nil, err
	}
	if mod.Big().Sign() == 0 {
		return nil, core.NewError(core.KindArithmetic, msgs.MsgDivisionByZero)
	}
	if exp.Big().Sign() < 0 {
		return nil, core.NewError(core.KindArithmetic, msgs.MsgExponent, exp.String())
	}
	m := new(big.Int).Abs(mod.Big())
	r := new(big.Int).Exp(base.Big(), exp.Big(), m)
	// the result takes the sign of the modulus
	if mod.Big().Sign() < 0 && r.Sign() != 0 {
		r.Add(r, mod.Big())
	}
	return types.IntFromBig(r), nil
}

func builtinRange(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("range", args, kw, 1, 3); err != nil {
		return nil, err
	}
	bounds := make([]int64, len(args))
	for i, a := range args {
		n, err := argInt("range", "arg", a)
		if err != nil {
			return nil, err
		}
		v, ok := n.Int64()
		if !ok {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, 64)
		}
		bounds[i] = v
	}
	r := types.Range{Step: 1}
	switch len(bounds) {
	case 1:
		r.Stop = bounds[0]
	case 2:
		r.Start, r.Stop = bounds[0], bounds[1]
	case 3:
		r.Start, r.Stop, r.Step = bounds[0], bounds[1], bounds[2]
	}
	if r.Step == 0 {
		return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "range", "arg 3 must not be zero")
	}
	return r, nil
}

func builtinReversed(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("reversed", args, kw, 1, 1); err != nil {
		return nil, err
	}
	if _, ok := args[0].(*types.Dict); ok {
		return nil, core.NewError(core.KindType, msgs.MsgNotIterable, "dict")
	}
	items, err := materialize(rt, args[0])
	if err != nil {
		return nil, err
	}
	out := make([]types.Value, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return types.NewList(out...), nil
}

func builtinRound(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("round", args, kw, 1, 2, "ndigits"); err != nil {
		return nil, err
	}
	var ndigits types.Value = types.None
	if len(args) == 2 {
		ndigits = args[1]
	} else if v, ok := kw.get("ndigits"); ok {
		ndigits = v
	}
	_, whole := ndigits.(types.NoneType)
	places := int64(0)
	if !whole {
		n, err := argInt("round", "ndigits", ndigits)
		if err != nil {
			return nil, err
		}
		p, ok := n.Int64()
		if !ok || p > 1<<16 || p < -(1<<16) {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, 64)
		}
		places = p
	}
	switch x := args[0].(type) {
	case types.Decimal:
		rounded := x.Round(int32(places))
		if whole {
			return rounded.Trunc(), nil
		}
		return rounded, nil
	case types.Int, types.Bool:
		i, _ := argInt("round", "number", x)
		if places >= 0 {
			return i, nil
		}
		return types.DecimalFromInt(i).Round(int32(places)).Trunc(), nil
	}
	return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "number", "round", "number", args[0].TypeName())
}

func builtinSorted(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("sorted", args, kw, 1, 1, "key", "reverse"); err != nil {
		return nil, err
	}
	items, err := materialize(rt, args[0])
	if err != nil {
		return nil, err
	}
	out, err := sortValues(rt, items, kw)
	if err != nil {
		return nil, err
	}
	return types.NewList(out...), nil
}

func builtinStr(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("str", args, kw, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return types.Str(""), nil
	}
	return types.Str(types.ToStr(args[0])), nil
}

func builtinSum(rt *runtime, args []types.Value, kw *kwargs) (types.Value, error) {
	if err := arity("sum", args, kw, 1, 2, "start"); err != nil {
		return nil, err
	}
	var total types.Value = types.NewInt(0)
	if len(args) == 2 {
		total = args[1]
	} else if s, ok := kw.get("start"); ok {
		total = s
	}
	if _, ok := total.(types.Str); ok {
		return nil, core.NewError(core.KindType, msgs.MsgBuiltinValue, "sum", "can't sum strings, use ''.join(seq)")
	}
	err := forEach(rt, args[0], func(item types.Value) (bool, error) {
		v, err := types.BinaryOp("+", total, item, rt.limits.MaxIntBits)
		if err != nil {
			return false, err
		}
		total = v
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}
