package core

import (
	"fmt"
	"testing"

	"github.com/govm-net/sandbox/msgs"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := NewError(KindArithmetic, msgs.MsgDivisionByZero)
	assert.Equal(t, "arithmetic: division by zero", err.Error())
	assert.Equal(t, KindArithmetic, KindOf(err))

	wrapped := fmt.Errorf("while running: %w", err)
	assert.True(t, IsKind(wrapped, KindArithmetic))
	assert.False(t, IsKind(wrapped, KindAssertion))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("disk on fire")))
}

func TestLocate(t *testing.T) {
	err := NewError(KindAssertion, msgs.MsgAssertionFailed, "not enough")
	Locate(err, "currency", 12)
	Locate(err, "other", 40)
	assert.Equal(t, "assertion: not enough (currency:12)", err.Error())
}

func TestContextEnter(t *testing.T) {
	env := Environment{Signer: "alice", Now: 10, BlockNum: 3, BlockHash: "ab"}
	top := env.TopContext("dex", "swap", "")
	assert.Equal(t, "alice", top.Caller)
	assert.Equal(t, "dex", top.This)

	inner := top.Enter("currency", "dex")
	assert.Equal(t, "dex", inner.Caller)
	assert.Equal(t, "alice", inner.Signer)
	assert.Equal(t, "currency", inner.This)
	assert.Equal(t, "dex", inner.EntryContract)
	assert.Equal(t, "swap", inner.EntryFunction)
	assert.Equal(t, "dex", inner.Owner)

	assert.Equal(t, Block{Now: 10, Num: 3, Hash: "ab"}, env.Block())
}
