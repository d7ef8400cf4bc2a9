// Package types contains the value model shared by the runtime, the state
// layer and event emission. Contract values are immutable except List and
// Dict, which are always handled by pointer.
package types

import (
	"math/big"
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// Value is any value a contract can hold.
type Value interface {
	TypeName() string
}

// NoneType is the type of None.
type NoneType struct{}

func (NoneType) TypeName() string { return "NoneType" }

// None is the absent marker.
var None Value = NoneType{}

// Bool is a contract boolean.
type Bool bool

func (Bool) TypeName() string { return "bool" }

// Str is a contract string.
type Str string

func (Str) TypeName() string { return "str" }

// Int is an arbitrary precision integer. The wrapped big.Int is never
// mutated after construction.
type Int struct {
	v *big.Int
}

func (Int) TypeName() string { return "int" }

// NewInt returns an Int holding i.
func NewInt(i int64) Int {
	return Int{v: big.NewInt(i)}
}

// IntFromBig takes ownership of b.
func IntFromBig(b *big.Int) Int {
	return Int{v: b}
}

// ParseInt parses a literal in base 10, or with a 0x, 0o or 0b prefix.
// Underscores between digits are accepted.
func ParseInt(text string) (Int, bool) {
	b, ok := new(big.Int).SetString(strings.ToLower(text), 0)
	if !ok {
		return Int{}, false
	}
	return Int{v: b}, true
}

// Big returns the wrapped integer. Callers must not modify it.
func (i Int) Big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return i.v
}

// Int64 returns the value if it fits in an int64.
func (i Int) Int64() (int64, bool) {
	b := i.Big()
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

func (i Int) String() string {
	return i.Big().String()
}

// Tuple is an immutable sequence.
type Tuple []Value

func (Tuple) TypeName() string { return "tuple" }

// List is a mutable sequence.
type List struct {
	Items []Value
}

func (*List) TypeName() string { return "list" }

// NewList wraps items in a List.
func NewList(items ...Value) *List {
	if items == nil {
		items = []Value{}
	}
	return &List{Items: items}
}

// Range is the lazy sequence produced by range().
type Range struct {
	Start, Stop, Step int64
}

func (Range) TypeName() string { return "range" }

// Len returns the number of elements of r.
func (r Range) Len() int64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	case r.Step < 0 && r.Start > r.Stop:
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// At returns element i of r.
func (r Range) At(i int64) Int {
	return NewInt(r.Start + i*r.Step)
}

// Truthy implements the truth value of v.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case NoneType:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x.Big().Sign() != 0
	case Decimal:
		return !x.IsZero()
	case Str:
		return len(x) > 0
	case Tuple:
		return len(x) > 0
	case *List:
		return len(x.Items) > 0
	case *Dict:
		return x.Len() > 0
	case Range:
		return x.Len() > 0
	}
	return true
}

// Equal compares a and b by value. Numbers compare across int, bool and
// decimal.
func Equal(a, b Value) bool {
	if na, ok := numeric(a); ok {
		if nb, ok := numeric(b); ok {
			return na.Cmp(nb) == 0
		}
		return false
	}
	switch x := a.(type) {
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSeq(x, y)
	case *List:
		y, ok := b.(*List)
		return ok && equalSeq(x.Items, y.Items)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			other, found, err := y.Get(k)
			if err != nil || !found || !Equal(x.vals[i], other) {
				return false
			}
		}
		return true
	case Range:
		y, ok := b.(Range)
		return ok && x == y
	}
	return a == b
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// numeric widens bools and ints to Decimal for comparisons.
func numeric(v Value) (Decimal, bool) {
	switch x := v.(type) {
	case Bool:
		if x {
			return DecimalFromInt(NewInt(1)), true
		}
		return DecimalFromInt(NewInt(0)), true
	case Int:
		return DecimalFromInt(x), true
	case Decimal:
		return x, true
	}
	return Decimal{}, false
}

// Compare orders a and b, failing with a type error for unordered types.
func Compare(op string, a, b Value) (int, error) {
	if na, ok := numeric(a); ok {
		if nb, ok := numeric(b); ok {
			return na.Cmp(nb), nil
		}
	}
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return compareSeq(op, x, y)
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareSeq(op, x.Items, y.Items)
		}
	}
	return 0, core.NewError(core.KindType, msgs.MsgNotComparable, op, a.TypeName(), b.TypeName())
}

func compareSeq(op string, a, b []Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return Compare(op, a[i], b[i])
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

// Copy returns a deep copy of the mutable parts of v.
func Copy(v Value) Value {
	switch x := v.(type) {
	case *List:
		items := make([]Value, len(x.Items))
		for i, item := range x.Items {
			items[i] = Copy(item)
		}
		return &List{Items: items}
	case *Dict:
		d := NewDict()
		for i, k := range x.keys {
			_ = d.Set(k, Copy(x.vals[i]))
		}
		return d
	case Tuple:
		items := make(Tuple, len(x))
		for i, item := range x {
			items[i] = Copy(item)
		}
		return items
	}
	return v
}
