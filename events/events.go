// Package events validates structured log events against their declared
// schema and keeps the ordered record of one invocation.
package events

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/types"
)

// ValueTypes are the type names a parameter can declare.
var ValueTypes = map[string]bool{
	"str": true, "int": true, "float": true, "bool": true, "Any": true,
}

// Param declares one event parameter.
type Param struct {
	Name string
	// Types accepted for the value; a tuple declaration lists several
	Types   []string
	Indexed bool
}

// Schema is a validated LogEvent declaration.
type Schema struct {
	Contract string
	Event    string
	Params   []Param

	maxValueSize int
}

// NewSchema validates a declaration. More indexed parameters than the limit
// rejects the schema.
func NewSchema(contract, event string, params []Param, limits api.Limits) (*Schema, error) {
	if event == "" {
		return nil, core.NewError(core.KindValue, msgs.MsgEventName)
	}
	indexed := 0
	for _, p := range params {
		if len(p.Types) == 0 {
			return nil, core.NewError(core.KindType, msgs.MsgEventParamType, event, p.Name)
		}
		for _, t := range p.Types {
			if !ValueTypes[t] {
				return nil, core.NewError(core.KindType, msgs.MsgEventParamType, event, p.Name)
			}
		}
		if p.Indexed {
			indexed++
		}
	}
	if indexed > limits.MaxIndexedParams {
		return nil, core.NewError(core.KindResourceLimit, msgs.MsgTooManyIndexed, event, indexed, limits.MaxIndexedParams)
	}
	return &Schema{
		Contract:     contract,
		Event:        event,
		Params:       params,
		maxValueSize: limits.MaxEventValueSize,
	}, nil
}

func (*Schema) TypeName() string { return "LogEvent" }

func typeMatches(declared string, v types.Value) bool {
	switch v.(type) {
	case types.Str:
		return declared == "str"
	case types.Bool:
		return declared == "bool"
	case types.Int:
		return declared == "int" || declared == "float"
	case types.Decimal:
		return declared == "float"
	}
	return false
}

func accepts(p Param, v types.Value) bool {
	for _, t := range p.Types {
		if t == "Any" || typeMatches(t, v) {
			return true
		}
	}
	return false
}

func declaredText(p Param) string {
	if len(p.Types) == 1 {
		return p.Types[0]
	}
	return types.Repr(toTuple(p.Types))
}

func toTuple(names []string) types.Tuple {
	out := make(types.Tuple, len(names))
	for i, n := range names {
		out[i] = types.Str(n)
	}
	return out
}

// Validate checks one emission: every declared parameter present, no
// others, each value of a declared type and within the size limit once
// stringified.
func (s *Schema) Validate(data *types.Dict) error {
	declared := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		declared[p.Name] = true
		v, found, err := data.Get(types.Str(p.Name))
		if err != nil {
			return err
		}
		if !found {
			return core.NewError(core.KindValue, msgs.MsgEventMissingParam, s.Event, p.Name)
		}
		if !accepts(p, v) {
			return core.NewError(core.KindType, msgs.MsgEventValueType, s.Event, p.Name, declaredText(p), v.TypeName())
		}
		if size := len(types.ToStr(v)); size > s.maxValueSize {
			return core.NewError(core.KindResourceLimit, msgs.MsgEventValueSize, s.Event, p.Name, size, s.maxValueSize)
		}
	}
	for _, k := range data.Keys() {
		name, ok := k.(types.Str)
		if !ok || !declared[string(name)] {
			return core.NewError(core.KindValue, msgs.MsgEventUnexpectedParam, s.Event, types.ToStr(k))
		}
	}
	return nil
}

// Event is one emitted record.
type Event struct {
	Contract  string            `json:"contract"`
	Event     string            `json:"event"`
	Caller    string            `json:"caller"`
	Signer    string            `json:"signer"`
	Indexed   map[string]string `json:"indexed"`
	Data      map[string]string `json:"data"`
	Index     int               `json:"index"`
	Timestamp int64             `json:"timestamp"`
	BlockNum  uint64            `json:"blockNum"`
}

// Log is the append-only event record of one invocation.
type Log struct {
	events []Event
}

// Emit validates data against s and appends the record.
func (l *Log) Emit(s *Schema, data *types.Dict, ctx core.Context, block core.Block) error {
	if err := s.Validate(data); err != nil {
		return err
	}
	ev := Event{
		Contract:  s.Contract,
		Event:     s.Event,
		Caller:    ctx.Caller,
		Signer:    ctx.Signer,
		Indexed:   make(map[string]string),
		Data:      make(map[string]string),
		Index:     len(l.events),
		Timestamp: block.Now,
		BlockNum:  block.Num,
	}
	for _, p := range s.Params {
		v, _, _ := data.Get(types.Str(p.Name))
		encoded, err := types.Encode(v)
		if err != nil {
			return err
		}
		if p.Indexed {
			ev.Indexed[p.Name] = string(encoded)
		} else {
			ev.Data[p.Name] = string(encoded)
		}
	}
	l.events = append(l.events, ev)
	return nil
}

// Events returns the records in emission order.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Reset discards every record.
func (l *Log) Reset() {
	l.events = nil
}
