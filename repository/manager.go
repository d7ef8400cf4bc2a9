// Package repository is the contract registry: it stores contract code and
// metadata in state and resolves names to compiled contracts.
package repository

import (
	"regexp"
	"strings"
	"sync"

	"github.com/govm-net/sandbox/abi"
	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
	"github.com/pkg/errors"
)

var nameRegexp = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name can identify a contract.
func ValidName(name string) bool {
	return nameRegexp.MatchString(name) && !strings.HasSuffix(name, "_")
}

// Metadata is stored next to the code of every contract.
type Metadata struct {
	// Owner restricts callers of the contract, empty when unrestricted
	Owner     string
	Developer string
	Submitted int64
}

// Entry is a resolved contract.
type Entry struct {
	Contract *compiler.Contract
	Metadata Metadata
}

// Registry maps contract names to compiled contracts.
type Registry interface {
	Register(d *state.Driver, c *compiler.Contract, meta Metadata) error
	Resolve(d *state.Driver, name string) (*Entry, error)
	Exists(d *state.Driver, name string) (bool, error)
}

// Manager implements Registry on top of the state driver. Compiled
// contracts are cached by code hash.
type Manager struct {
	maker *compiler.Maker

	mu    sync.RWMutex
	cache map[string]*compiler.Contract
}

var _ Registry = (*Manager)(nil)

// NewManager creates a registry compiling code with maker.
func NewManager(maker *compiler.Maker) *Manager {
	return &Manager{
		maker: maker,
		cache: make(map[string]*compiler.Contract),
	}
}

func checkName(name string) error {
	if !ValidName(name) {
		return core.NewError(core.KindResolution, msgs.MsgInvalidContractName, name)
	}
	return nil
}

func (m *Manager) slot(d *state.Driver, name, field string) (string, error) {
	return d.Keys().SlotKey(name, field)
}

func (m *Manager) put(d *state.Driver, name, field string, value types.Value) error {
	key, err := m.slot(d, name, field)
	if err != nil {
		return err
	}
	raw, err := types.Encode(value)
	if err != nil {
		return err
	}
	d.SetRaw(key, raw)
	return nil
}

func (m *Manager) get(d *state.Driver, name, field string) (types.Value, bool, error) {
	key, err := m.slot(d, name, field)
	if err != nil {
		return nil, false, err
	}
	raw, found, err := d.GetRaw(key)
	if err != nil || !found {
		return types.None, false, err
	}
	v, err := types.Decode(raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to decode %s", key)
	}
	return v, true, nil
}

// Register buffers the code, the ABI and the metadata of c in d. The
// contract becomes visible when d commits.
func (m *Manager) Register(d *state.Driver, c *compiler.Contract, meta Metadata) error {
	if err := checkName(c.Name); err != nil {
		return err
	}
	exists, err := m.Exists(d, c.Name)
	if err != nil {
		return err
	}
	if exists {
		return core.NewError(core.KindResolution, msgs.MsgContractExists, c.Name)
	}

	iface, err := abi.Extract(c).Marshal()
	if err != nil {
		return err
	}
	var owner types.Value = types.None
	if meta.Owner != "" {
		owner = types.Str(meta.Owner)
	}
	fields := []struct {
		name  string
		value types.Value
	}{
		{state.CodeKey, types.Str(c.Source)},
		{state.OwnerKey, owner},
		{state.DeveloperKey, types.Str(meta.Developer)},
		{state.SubmittedKey, types.NewInt(meta.Submitted)},
		{state.ABIKey, types.Str(iface)},
	}
	for _, f := range fields {
		if err := m.put(d, c.Name, f.name, f.value); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.cache[c.Hash] = c
	m.mu.Unlock()
	return nil
}

// Exists reports whether code is stored under name.
func (m *Manager) Exists(d *state.Driver, name string) (bool, error) {
	if !ValidName(name) {
		return false, nil
	}
	_, found, err := m.get(d, name, state.CodeKey)
	return found, err
}

// Resolve loads the contract registered as name.
func (m *Manager) Resolve(d *state.Driver, name string) (*Entry, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	code, found, err := m.get(d, name, state.CodeKey)
	if err != nil {
		return nil, err
	}
	source, ok := code.(types.Str)
	if !found || !ok {
		return nil, core.NewError(core.KindResolution, msgs.MsgContractNotFound, name)
	}
	c, err := m.compile(name, []byte(source))
	if err != nil {
		return nil, err
	}

	entry := &Entry{Contract: c}
	if v, _, err := m.get(d, name, state.OwnerKey); err != nil {
		return nil, err
	} else if s, ok := v.(types.Str); ok {
		entry.Metadata.Owner = string(s)
	}
	if v, _, err := m.get(d, name, state.DeveloperKey); err != nil {
		return nil, err
	} else if s, ok := v.(types.Str); ok {
		entry.Metadata.Developer = string(s)
	}
	if v, _, err := m.get(d, name, state.SubmittedKey); err != nil {
		return nil, err
	} else if i, ok := v.(types.Int); ok {
		entry.Metadata.Submitted, _ = i.Int64()
	}
	return entry, nil
}

// compile returns the cached contract for code or compiles it. Stored code
// was accepted at deployment; a rejection here means it was never valid.
func (m *Manager) compile(name string, code []byte) (*compiler.Contract, error) {
	hash := compiler.CodeHash(code)
	m.mu.RLock()
	cached, ok := m.cache[hash]
	m.mu.RUnlock()
	if ok {
		if cached.Name == name {
			return cached, nil
		}
		renamed := *cached
		renamed.Name = name
		return &renamed, nil
	}

	c, err := m.maker.CompileContract(name, code)
	if err != nil {
		return nil, core.NewError(core.KindResolution, msgs.MsgContractNotFound, name)
	}
	m.mu.Lock()
	m.cache[hash] = c
	m.mu.Unlock()
	return c, nil
}
