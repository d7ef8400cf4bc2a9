// Package security provides the metering of contract execution: the stamp
// ledger, the per-operation price list and the call depth tracer.
package security

import (
	"sync"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// StampLedger is the stamp budget of one invocation. It only decreases.
type StampLedger struct {
	mu     sync.RWMutex
	budget int64
	used   int64
}

// NewStampLedger seeds a ledger with budget.
func NewStampLedger(budget int64) *StampLedger {
	if budget < 0 {
		budget = 0
	}
	return &StampLedger{budget: budget}
}

// Budget returns the initial budget.
func (l *StampLedger) Budget() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.budget
}

// Used returns the stamps consumed so far.
func (l *StampLedger) Used() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used
}

// Remaining returns the stamps left.
func (l *StampLedger) Remaining() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.budget - l.used
}

// Consume deducts amount. A charge that reaches or exceeds what remains
// exhausts the ledger and fails with a stamps-exhausted error.
func (l *StampLedger) Consume(amount int64) error {
	if amount <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.budget - l.used
	if amount >= remaining {
		l.used = l.budget
		return core.NewError(core.KindStampsExhausted, msgs.MsgStampsExhausted, amount, remaining, l.budget)
	}
	l.used += amount
	return nil
}

// Meter prices operations and charges them to a ledger.
type Meter struct {
	ledger *StampLedger
	costs  api.Costs
}

// NewMeter creates a meter charging ledger with costs.
func NewMeter(ledger *StampLedger, costs api.Costs) *Meter {
	return &Meter{ledger: ledger, costs: costs}
}

// Ledger returns the ledger charged by the meter.
func (m *Meter) Ledger() *StampLedger {
	return m.ledger
}

// ChargeRead charges a state read of the given size.
func (m *Meter) ChargeRead(bytes int) error {
	return m.ledger.Consume(int64(bytes) * m.costs.ReadPerByte)
}

// ChargeWrite charges a state write of the given size.
func (m *Meter) ChargeWrite(bytes int) error {
	return m.ledger.Consume(int64(bytes) * m.costs.WritePerByte)
}

// ChargeStatement charges one executed statement or loop iteration.
func (m *Meter) ChargeStatement() error {
	return m.ledger.Consume(m.costs.Statement)
}

// ChargeItems charges n iterations of a builtin that walks a sequence.
func (m *Meter) ChargeItems(n int) error {
	return m.ledger.Consume(int64(n) * m.costs.Statement)
}

// ChargeCall charges one function call.
func (m *Meter) ChargeCall() error {
	return m.ledger.Consume(m.costs.Call)
}
