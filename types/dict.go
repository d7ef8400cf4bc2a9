package types

import (
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// Dict is an insertion ordered mapping.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

func (*Dict) TypeName() string { return "dict" }

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

// HashKey returns the identity of v as a mapping key. Numbers that compare
// equal share a key.
func HashKey(v Value) (string, error) {
	switch x := v.(type) {
	case NoneType:
		return "n", nil
	case Bool:
		if x {
			return "i:1", nil
		}
		return "i:0", nil
	case Int:
		return "i:" + x.String(), nil
	case Decimal:
		if x.IsInteger() {
			return "i:" + x.Trunc().String(), nil
		}
		return "d:" + x.Text(), nil
	case Str:
		return "s:" + string(x), nil
	case Tuple:
		var b strings.Builder
		b.WriteString("t:(")
		for i, item := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			k, err := HashKey(item)
			if err != nil {
				return "", err
			}
			b.WriteString(k)
		}
		b.WriteByte(')')
		return b.String(), nil
	}
	return "", core.NewError(core.KindType, msgs.MsgUnhashable, v.TypeName())
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.keys)
}

// Get returns the value stored under k.
func (d *Dict) Get(k Value) (Value, bool, error) {
	h, err := HashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

// Set stores v under k, keeping the position of an existing key.
func (d *Dict) Set(k, v Value) error {
	h, err := HashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[h]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

// Delete removes k and returns its value.
func (d *Dict) Delete(k Value) (Value, bool, error) {
	h, err := HashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return nil, false, nil
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, h)
	for j := i; j < len(d.keys); j++ {
		kh, _ := HashKey(d.keys[j])
		d.index[kh] = j
	}
	return v, true, nil
}

// Clear removes every entry.
func (d *Dict) Clear() {
	d.keys = nil
	d.vals = nil
	d.index = make(map[string]int)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	return append([]Value(nil), d.keys...)
}

// Values returns the values in insertion order.
func (d *Dict) Values() []Value {
	return append([]Value(nil), d.vals...)
}

// Items returns (key, value) tuples in insertion order.
func (d *Dict) Items() []Value {
	items := make([]Value, len(d.keys))
	for i := range d.keys {
		items[i] = Tuple{d.keys[i], d.vals[i]}
	}
	return items
}
