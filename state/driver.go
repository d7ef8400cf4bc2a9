package state

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/storage"
	"github.com/govm-net/sandbox/types"
	"github.com/pkg/errors"
)

// Meter charges stamps for state access.
type Meter interface {
	ChargeRead(bytes int) error
	ChargeWrite(bytes int) error
}

// Mutation is one state write of an invocation, in execution order.
type Mutation struct {
	Key string `json:"key"`
	// Value is the encoded value, empty when the key was deleted
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type pending struct {
	value   []byte
	deleted bool
}

// Driver is the only component that touches the backend. Writes are
// buffered until Commit; reads see the buffer first.
type Driver struct {
	backend storage.Backend
	keys    *KeyGenerator
	meter   Meter
	writer  func() string

	writes    map[string]pending
	order     []string
	mutations []Mutation
}

// NewDriver creates a driver over backend. meter may be nil for unmetered
// access.
func NewDriver(backend storage.Backend, limits api.Limits, meter Meter) *Driver {
	return &Driver{
		backend: backend,
		keys:    NewKeyGenerator(limits),
		meter:   meter,
		writes:  make(map[string]pending),
	}
}

// Keys returns the key generator of the driver.
func (d *Driver) Keys() *KeyGenerator {
	return d.keys
}

// SetWriter installs the lookup of the contract currently executing.
// Variables and hashes then refuse writes from any other contract.
func (d *Driver) SetWriter(writer func() string) {
	d.writer = writer
}

func (d *Driver) checkWriter(kind, contract, name string) error {
	if d.writer == nil {
		return nil
	}
	if w := d.writer(); w != contract {
		return core.NewError(core.KindReference, msgs.MsgStateNotOwned, w, kind, contract, name)
	}
	return nil
}

// GetRaw returns the encoded value of key without charging stamps.
func (d *Driver) GetRaw(key string) ([]byte, bool, error) {
	if w, ok := d.writes[key]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	value, found, err := d.backend.Get(key)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read %s", key)
	}
	return value, found, nil
}

// Get reads and decodes key, charging for the key and the value read.
func (d *Driver) Get(key string) (types.Value, bool, error) {
	raw, found, err := d.GetRaw(key)
	if err != nil {
		return nil, false, err
	}
	if d.meter != nil {
		if err := d.meter.ChargeRead(len(key) + len(raw)); err != nil {
			return nil, false, err
		}
	}
	if !found {
		return types.None, false, nil
	}
	v, err := types.Decode(raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to decode %s", key)
	}
	return v, true, nil
}

// Set encodes and buffers value under key. Storing None deletes the key.
func (d *Driver) Set(key string, value types.Value) error {
	if _, isNone := value.(types.NoneType); isNone {
		if d.meter != nil {
			if err := d.meter.ChargeWrite(len(key)); err != nil {
				return err
			}
		}
		d.buffer(key, pending{deleted: true})
		return nil
	}
	raw, err := types.Encode(value)
	if err != nil {
		return err
	}
	if d.meter != nil {
		if err := d.meter.ChargeWrite(len(key) + len(raw)); err != nil {
			return err
		}
	}
	d.buffer(key, pending{value: raw})
	return nil
}

// SetRaw buffers an already encoded value without charging stamps.
func (d *Driver) SetRaw(key string, raw []byte) {
	d.buffer(key, pending{value: raw})
}

func (d *Driver) buffer(key string, w pending) {
	if _, seen := d.writes[key]; !seen {
		d.order = append(d.order, key)
	}
	d.writes[key] = w
	d.mutations = append(d.mutations, Mutation{Key: key, Value: string(w.value), Deleted: w.deleted})
}

// Mutations returns the buffered writes in execution order.
func (d *Driver) Mutations() []Mutation {
	out := make([]Mutation, len(d.mutations))
	copy(out, d.mutations)
	return out
}

// Dirty reports whether any write is buffered.
func (d *Driver) Dirty() bool {
	return len(d.order) > 0
}

// Commit applies the buffered writes atomically and clears the buffer.
func (d *Driver) Commit() error {
	if len(d.order) == 0 {
		return nil
	}
	writes := make([]storage.Write, 0, len(d.order))
	for _, key := range d.order {
		w := d.writes[key]
		writes = append(writes, storage.Write{Key: key, Value: w.value, Delete: w.deleted})
	}
	if err := d.backend.Commit(writes); err != nil {
		return errors.Wrap(err, "failed to commit state")
	}
	d.Rollback()
	return nil
}

// Rollback discards every buffered write.
func (d *Driver) Rollback() {
	d.writes = make(map[string]pending)
	d.order = nil
	d.mutations = nil
}
