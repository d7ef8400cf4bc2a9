package vm

import (
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

// forEach iterates v, stopping when fn returns false or an error. Every
// item is charged as one statement. Lists are iterated over a snapshot.
func forEach(rt *runtime, v types.Value, fn func(types.Value) (bool, error)) error {
	visit := func(item types.Value) (bool, error) {
		if err := rt.meter.ChargeStatement(); err != nil {
			return false, err
		}
		return fn(item)
	}
	each := func(items []types.Value) error {
		for _, item := range items {
			more, err := visit(item)
			if err != nil || !more {
				return err
			}
		}
		return nil
	}
	switch x := v.(type) {
	case types.Range:
		n := x.Len()
		for i := int64(0); i < n; i++ {
			more, err := visit(x.At(i))
			if err != nil || !more {
				return err
			}
		}
		return nil
	case types.Str:
		for _, r := range string(x) {
			more, err := visit(types.Str(string(r)))
			if err != nil || !more {
				return err
			}
		}
		return nil
	case types.Tuple:
		return each(x)
	case *types.List:
		return each(append([]types.Value(nil), x.Items...))
	case *types.Dict:
		return each(x.Keys())
	case *state.Hash:
		return core.NewError(core.KindType, msgs.MsgRangeOnHash, x.TypeName())
	}
	return core.NewError(core.KindType, msgs.MsgNotIterable, v.TypeName())
}

// materialize collects the items of an iterable, bounded by the maximum
// sequence length and charged per item.
func materialize(rt *runtime, v types.Value) ([]types.Value, error) {
	switch x := v.(type) {
	case types.Tuple:
		return x, rt.meter.ChargeItems(len(x))
	case *types.List:
		if err := rt.meter.ChargeItems(len(x.Items)); err != nil {
			return nil, err
		}
		return append([]types.Value(nil), x.Items...), nil
	case types.Range:
		if n := x.Len(); n > types.MaxSequenceLength {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, n, types.MaxSequenceLength)
		}
	}
	var out []types.Value
	err := forEach(rt, v, func(item types.Value) (bool, error) {
		if len(out) >= types.MaxSequenceLength {
			return false, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(out)+1, types.MaxSequenceLength)
		}
		out = append(out, item)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toIndex(container string, index types.Value) (int64, error) {
	var i types.Int
	switch x := index.(type) {
	case types.Int:
		i = x
	case types.Bool:
		if x {
			i = types.NewInt(1)
		} else {
			i = types.NewInt(0)
		}
	default:
		return 0, core.NewError(core.KindType, msgs.MsgNotIndexable, container, index.TypeName())
	}
	n, ok := i.Int64()
	if !ok {
		return 0, core.NewError(core.KindIndex, msgs.MsgIndexOutOfRange, container)
	}
	return n, nil
}

// position resolves a possibly negative index into [0, length).
func position(container string, index types.Value, length int) (int, error) {
	n, err := toIndex(container, index)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n += int64(length)
	}
	if n < 0 || n >= int64(length) {
		return 0, core.NewError(core.KindIndex, msgs.MsgIndexOutOfRange, container)
	}
	return int(n), nil
}

func getItem(obj, index types.Value) (types.Value, error) {
	switch x := obj.(type) {
	case *state.Hash:
		return x.Get(index)
	case *types.Dict:
		v, found, err := x.Get(index)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, core.NewError(core.KindKey, msgs.MsgKeyNotFound, types.Repr(index))
		}
		return v, nil
	case *types.List:
		i, err := position("list", index, len(x.Items))
		if err != nil {
			return nil, err
		}
		return x.Items[i], nil
	case types.Tuple:
		i, err := position("tuple", index, len(x))
		if err != nil {
			return nil, err
		}
		return x[i], nil
	case types.Str:
		runes := []rune(string(x))
		i, err := position("string", index, len(runes))
		if err != nil {
			return nil, err
		}
		return types.Str(string(runes[i])), nil
	case types.Range:
		n := x.Len()
		if n > int64(int(^uint(0)>>1)) {
			return nil, core.NewError(core.KindIndex, msgs.MsgIndexOutOfRange, "range")
		}
		i, err := position("range", index, int(n))
		if err != nil {
			return nil, err
		}
		return x.At(int64(i)), nil
	}
	return nil, core.NewError(core.KindType, msgs.MsgNotSubscriptable, obj.TypeName())
}

func setItem(obj, index, v types.Value) error {
	switch x := obj.(type) {
	case *state.Hash:
		return x.Set(index, v)
	case *types.Dict:
		return x.Set(index, v)
	case *types.List:
		i, err := position("list", index, len(x.Items))
		if err != nil {
			return err
		}
		x.Items[i] = v
		return nil
	}
	return core.NewError(core.KindType, msgs.MsgNotSubscriptable, obj.TypeName())
}

// sliceBounds computes the selected positions following the usual
// clamping rules.
func sliceBounds(length int, lower, upper, step types.Value) ([]int, error) {
	st := int64(1)
	if _, none := step.(types.NoneType); !none {
		n, err := toIndex("slice", step)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, "slice", "step cannot be zero")
		}
		st = n
	}
	l := int64(length)
	resolve := func(v types.Value, def int64) (int64, error) {
		if _, none := v.(types.NoneType); none {
			return def, nil
		}
		n, err := toIndex("slice", v)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			n += l
		}
		lo, hi := int64(0), l
		if st < 0 {
			lo, hi = -1, l-1
		}
		if n < lo {
			n = lo
		}
		if n > hi {
			n = hi
		}
		return n, nil
	}
	var start, stop int64
	var err error
	if st > 0 {
		if start, err = resolve(lower, 0); err != nil {
			return nil, err
		}
		if stop, err = resolve(upper, l); err != nil {
			return nil, err
		}
	} else {
		if start, err = resolve(lower, l-1); err != nil {
			return nil, err
		}
		if stop, err = resolve(upper, -1); err != nil {
			return nil, err
		}
	}
	var out []int
	for i := start; (st > 0 && i < stop) || (st < 0 && i > stop); i += st {
		out = append(out, int(i))
	}
	return out, nil
}

func sliceValue(obj, lower, upper, step types.Value) (types.Value, error) {
	switch x := obj.(type) {
	case *types.List:
		idx, err := sliceBounds(len(x.Items), lower, upper, step)
		if err != nil {
			return nil, err
		}
		out := make([]types.Value, len(idx))
		for i, p := range idx {
			out[i] = x.Items[p]
		}
		return types.NewList(out...), nil
	case types.Tuple:
		idx, err := sliceBounds(len(x), lower, upper, step)
		if err != nil {
			return nil, err
		}
		out := make(types.Tuple, len(idx))
		for i, p := range idx {
			out[i] = x[p]
		}
		return out, nil
	case types.Str:
		runes := []rune(string(x))
		idx, err := sliceBounds(len(runes), lower, upper, step)
		if err != nil {
			return nil, err
		}
		out := make([]rune, len(idx))
		for i, p := range idx {
			out[i] = runes[p]
		}
		return types.Str(string(out)), nil
	case *state.Hash:
		return nil, core.NewError(core.KindType, msgs.MsgRangeOnHash, x.TypeName())
	}
	return nil, core.NewError(core.KindType, msgs.MsgNotSubscriptable, obj.TypeName())
}
