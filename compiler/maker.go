// Package compiler validates contract source and builds the compiled
// contract object: the restriction checker, the symbol and decorator
// validator and the function table.
package compiler

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
)

// Maker handles the compilation and validation of smart contracts.
type Maker struct {
	limits api.Limits
}

// NewMaker creates a new contract maker with the given limits.
func NewMaker(limits api.Limits) *Maker {
	return &Maker{
		limits: limits,
	}
}

// Lint runs both checking passes and returns every violation, sorted by
// position. An empty result means the contract is accepted.
func (m *Maker) Lint(code []byte) []Violation {
	_, _, violations := m.analyze(code)
	return violations
}

// analyze runs the restriction checker and, when the source parses, the
// validator. Both passes always run so the union is reported.
func (m *Maker) analyze(code []byte) (*syntax.Module, *validator, []Violation) {
	l := &linter{limits: m.limits}
	mod := l.check(code)
	if mod == nil {
		return nil, nil, l.violations
	}
	v := &validator{}
	v.check(mod)

	violations := append(l.violations, v.violations...)
	sortViolations(violations)
	return mod, v, violations
}

// ValidateContract checks if the smart contract code adheres to the
// restrictions and rules defined for the VM.
func (m *Maker) ValidateContract(code []byte) error {
	if violations := m.Lint(code); len(violations) > 0 {
		return &Rejection{Violations: violations}
	}
	return nil
}

// CompileContract validates code and builds the contract registered as
// name.
func (m *Maker) CompileContract(name string, code []byte) (*Contract, error) {
	mod, _, violations := m.analyze(code)
	if len(violations) > 0 {
		return nil, &Rejection{Violations: violations}
	}
	return build(name, code, mod), nil
}
