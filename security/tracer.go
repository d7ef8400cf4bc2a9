package security

import (
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// CallFrame is one entry of the call stack.
type CallFrame struct {
	Caller   string
	Contract string
	Function string
}

// CallTracer tracks the call chain of an invocation and bounds its depth.
// Internal and cross-contract calls both count.
type CallTracer struct {
	maxDepth  int
	callStack []CallFrame
}

// NewCallTracer creates a tracer allowing maxDepth nested calls.
func NewCallTracer(maxDepth int) *CallTracer {
	return &CallTracer{
		maxDepth:  maxDepth,
		callStack: make([]CallFrame, 0, 8),
	}
}

// BeginCall pushes a frame, failing with a resource-limit error when the
// depth would exceed the maximum.
func (t *CallTracer) BeginCall(caller, contract, function string) error {
	if len(t.callStack) >= t.maxDepth {
		return core.NewError(core.KindResourceLimit, msgs.MsgCallDepth, t.maxDepth)
	}
	t.callStack = append(t.callStack, CallFrame{
		Caller:   caller,
		Contract: contract,
		Function: function,
	})
	return nil
}

// EndCall pops the current frame.
func (t *CallTracer) EndCall() {
	if len(t.callStack) > 0 {
		t.callStack = t.callStack[:len(t.callStack)-1]
	}
}

// Depth returns the number of active frames.
func (t *CallTracer) Depth() int {
	return len(t.callStack)
}

// Current returns the innermost frame.
func (t *CallTracer) Current() (CallFrame, bool) {
	if len(t.callStack) == 0 {
		return CallFrame{}, false
	}
	return t.callStack[len(t.callStack)-1], true
}
