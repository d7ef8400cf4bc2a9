// Package state implements the ORM layer over the key-value backend:
// key composition and validation, the buffered state driver and the
// Variable and Hash views bound into contract scope.
package state

import (
	"strings"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/types"
)

const (
	// Delimiter separates the contract name from the slot name
	Delimiter = "."
	// IndexSeparator separates the dimensions of a Hash key
	IndexSeparator = ":"
)

// Metadata slots written for every deployed contract.
const (
	CodeKey      = "__code__"
	OwnerKey     = "__owner__"
	DeveloperKey = "__developer__"
	SubmittedKey = "__submitted__"
	ABIKey       = "__abi__"
)

// KeyGenerator composes and validates state keys.
type KeyGenerator struct {
	maxDimensions int
	maxKeySize    int
}

// NewKeyGenerator creates a key generator enforcing limits.
func NewKeyGenerator(limits api.Limits) *KeyGenerator {
	return &KeyGenerator{
		maxDimensions: limits.MaxHashDimensions,
		maxKeySize:    limits.MaxKeySize,
	}
}

// SlotKey generates the key of a Variable or of contract metadata.
// Format: contract + '.' + name
func (kg *KeyGenerator) SlotKey(contract, name string) (string, error) {
	return kg.checkSize(contract + Delimiter + name)
}

// HashKey generates the key of one Hash entry. A tuple index is spread over
// the dimensions of the key.
// Format: contract + '.' + name + ':' + k1 + ':' + ... + kn
func (kg *KeyGenerator) HashKey(contract, name string, index types.Value) (string, error) {
	parts := []types.Value{index}
	if t, ok := index.(types.Tuple); ok {
		parts = t
	}
	if len(parts) == 0 || len(parts) > kg.maxDimensions {
		return "", core.NewError(core.KindResourceLimit, msgs.MsgHashDimensions, len(parts), kg.maxDimensions)
	}

	var b strings.Builder
	b.WriteString(contract)
	b.WriteString(Delimiter)
	b.WriteString(name)
	for _, part := range parts {
		text, err := keyComponent(part)
		if err != nil {
			return "", err
		}
		b.WriteString(IndexSeparator)
		b.WriteString(text)
	}
	return kg.checkSize(b.String())
}

func (kg *KeyGenerator) checkSize(key string) (string, error) {
	if len(key) > kg.maxKeySize {
		return "", core.NewError(core.KindResourceLimit, msgs.MsgKeyTooLarge, len(key), kg.maxKeySize)
	}
	return key, nil
}

// keyComponent renders one dimension of a Hash key. Decimals are not
// keys: their text form is not unique and may contain the separator.
func keyComponent(v types.Value) (string, error) {
	var text string
	switch x := v.(type) {
	case types.Str:
		text = string(x)
	case types.Int, types.Bool:
		text = types.ToStr(x)
	default:
		return "", core.NewError(core.KindType, msgs.MsgKeyType, v.TypeName())
	}
	if strings.Contains(text, Delimiter) || strings.Contains(text, IndexSeparator) {
		return "", core.NewError(core.KindResourceLimit, msgs.MsgKeySeparator, text)
	}
	return text, nil
}

// ContractOf extracts the contract name from any state key.
func ContractOf(key string) string {
	if i := strings.Index(key, Delimiter); i >= 0 {
		return key[:i]
	}
	return key
}
