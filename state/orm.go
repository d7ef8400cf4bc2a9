package state

import (
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/types"
)

// Options are the keyword arguments of an ORM declaration.
type Options struct {
	// Default is returned for unset keys, None when absent
	Default types.Value
	// Type is the declared value type name, empty when unchecked
	Type string
}

func (o Options) defaultValue() types.Value {
	if o.Default == nil {
		return types.None
	}
	return types.Copy(o.Default)
}

// typeMatches checks value against a declared type name.
func typeMatches(declared string, value types.Value) bool {
	switch value.(type) {
	case types.NoneType:
		return true
	case types.Bool:
		return declared == "bool"
	case types.Int:
		return declared == "int" || declared == "float" || declared == "decimal"
	case types.Decimal:
		return declared == "float" || declared == "decimal"
	}
	return declared == value.TypeName() || declared == "Any"
}

func checkType(opts Options, name string, value types.Value) error {
	if opts.Type == "" || typeMatches(opts.Type, value) {
		return nil
	}
	return core.NewError(core.KindType, msgs.MsgStateType, value.TypeName(), opts.Type, name)
}

// Variable is a single slot of contract state. A foreign Variable is a read
// only view of another contract's slot.
type Variable struct {
	driver   *Driver
	contract string
	name     string
	key      string
	opts     Options
	foreign  bool
}

// NewVariable binds the slot name of contract.
func NewVariable(d *Driver, contract, name string, opts Options) (*Variable, error) {
	key, err := d.keys.SlotKey(contract, name)
	if err != nil {
		return nil, err
	}
	return &Variable{driver: d, contract: contract, name: name, key: key, opts: opts}, nil
}

// NewForeignVariable binds a read only view of foreignName in
// foreignContract.
func NewForeignVariable(d *Driver, foreignContract, foreignName string) (*Variable, error) {
	v, err := NewVariable(d, foreignContract, foreignName, Options{})
	if err != nil {
		return nil, err
	}
	v.foreign = true
	return v, nil
}

func (v *Variable) TypeName() string {
	if v.foreign {
		return "ForeignVariable"
	}
	return "Variable"
}

// Key returns the state key of the slot.
func (v *Variable) Key() string {
	return v.key
}

// Get reads the slot, returning the default when it was never set.
func (v *Variable) Get() (types.Value, error) {
	value, found, err := v.driver.Get(v.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return v.opts.defaultValue(), nil
	}
	return value, nil
}

// Set writes the slot.
func (v *Variable) Set(value types.Value) error {
	if v.foreign {
		return core.NewError(core.KindReference, msgs.MsgForeignWrite, "Variable", v.contract, v.name)
	}
	if err := v.driver.checkWriter("Variable", v.contract, v.name); err != nil {
		return err
	}
	if err := checkType(v.opts, v.name, value); err != nil {
		return err
	}
	return v.driver.Set(v.key, value)
}

// Hash is a multi-dimensional mapping of contract state. Only point
// lookups are supported.
type Hash struct {
	driver   *Driver
	contract string
	name     string
	opts     Options
	foreign  bool
}

// NewHash binds the mapping name of contract.
func NewHash(d *Driver, contract, name string, opts Options) (*Hash, error) {
	if _, err := d.keys.SlotKey(contract, name); err != nil {
		return nil, err
	}
	return &Hash{driver: d, contract: contract, name: name, opts: opts}, nil
}

// NewForeignHash binds a read only view of foreignName in foreignContract.
func NewForeignHash(d *Driver, foreignContract, foreignName string, opts Options) (*Hash, error) {
	h, err := NewHash(d, foreignContract, foreignName, opts)
	if err != nil {
		return nil, err
	}
	h.foreign = true
	return h, nil
}

func (h *Hash) TypeName() string {
	if h.foreign {
		return "ForeignHash"
	}
	return "Hash"
}

// Key composes the state key of index.
func (h *Hash) Key(index types.Value) (string, error) {
	return h.driver.keys.HashKey(h.contract, h.name, index)
}

// Get reads one entry. Unset entries yield the default, never an error.
func (h *Hash) Get(index types.Value) (types.Value, error) {
	key, err := h.Key(index)
	if err != nil {
		return nil, err
	}
	value, found, err := h.driver.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return h.opts.defaultValue(), nil
	}
	return value, nil
}

// Set writes one entry.
func (h *Hash) Set(index, value types.Value) error {
	if h.foreign {
		return core.NewError(core.KindReference, msgs.MsgForeignWrite, "Hash", h.contract, h.name)
	}
	if err := h.driver.checkWriter("Hash", h.contract, h.name); err != nil {
		return err
	}
	if err := checkType(h.opts, h.name, value); err != nil {
		return err
	}
	key, err := h.Key(index)
	if err != nil {
		return err
	}
	return h.driver.Set(key, value)
}
