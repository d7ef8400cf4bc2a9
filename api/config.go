package api

import (
	"fmt"
	"os"

	"github.com/govm-net/sandbox/log"
	"sigs.k8s.io/yaml"
)

// Limits are the hard resource limits enforced on contracts.
type Limits struct {
	// MaxCodeSize is the maximum size of contract source in bytes
	MaxCodeSize int `json:"maxCodeSize"`

	// MaxCallDepth is the maximum depth of nested function calls
	MaxCallDepth int `json:"maxCallDepth"`

	// MaxHashDimensions is the maximum number of key components of a Hash
	MaxHashDimensions int `json:"maxHashDimensions"`

	// MaxKeySize is the maximum byte length of a composed state key
	MaxKeySize int `json:"maxKeySize"`

	// MaxIndexedParams is the maximum number of indexed event parameters
	MaxIndexedParams int `json:"maxIndexedParams"`

	// MaxEventValueSize is the maximum serialized size of one event value
	MaxEventValueSize int `json:"maxEventValueSize"`

	// MaxIntBits bounds integer results of exponentiation and repetition
	MaxIntBits int `json:"maxIntBits"`
}

// Costs is the stamp price list.
type Costs struct {
	ReadPerByte  int64 `json:"readPerByte"`
	WritePerByte int64 `json:"writePerByte"`
	Statement    int64 `json:"statement"`
	Call         int64 `json:"call"`
}

// Storage selects the state backend.
type Storage struct {
	// Backend is one of the registered storage types: memory, sqlite, tmdb
	Backend string `json:"backend"`
	// Path is the database file or directory for persistent backends
	Path string `json:"path,omitempty"`
}

// Config defines configuration for contract validation and execution
type Config struct {
	Limits  Limits     `json:"limits"`
	Costs   Costs      `json:"costs"`
	Storage Storage    `json:"storage"`
	Log     log.Config `json:"log"`
}

// DefaultConfig returns a default configuration for contracts
func DefaultConfig() Config {
	return Config{
		Limits: Limits{
			MaxCodeSize:       64 * 1024,
			MaxCallDepth:      1024,
			MaxHashDimensions: 16,
			MaxKeySize:        1024,
			MaxIndexedParams:  3,
			MaxEventValueSize: 1024,
			MaxIntBits:        4096,
		},
		Costs: Costs{
			ReadPerByte:  1,
			WritePerByte: 25,
			Statement:    1,
			Call:         10,
		},
		Storage: Storage{
			Backend: "memory",
		},
		Log: log.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// Validate checks the configuration for values the runtime cannot honor.
func (c Config) Validate() error {
	if c.Limits.MaxCodeSize <= 0 {
		return fmt.Errorf("invalid max code size: %d", c.Limits.MaxCodeSize)
	}
	if c.Limits.MaxCallDepth <= 0 {
		return fmt.Errorf("invalid max call depth: %d", c.Limits.MaxCallDepth)
	}
	if c.Limits.MaxHashDimensions <= 0 {
		return fmt.Errorf("invalid max hash dimensions: %d", c.Limits.MaxHashDimensions)
	}
	if c.Limits.MaxKeySize <= 0 {
		return fmt.Errorf("invalid max key size: %d", c.Limits.MaxKeySize)
	}
	if c.Costs.ReadPerByte < 0 || c.Costs.WritePerByte < 0 || c.Costs.Statement < 0 || c.Costs.Call < 0 {
		return fmt.Errorf("stamp costs cannot be negative")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is empty")
	}
	return nil
}
