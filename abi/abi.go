// Package abi describes the public interface of a compiled contract: its
// exported functions, state declarations and event schemas.
package abi

import (
	"encoding/json"
	"fmt"

	"github.com/govm-net/sandbox/compiler"
	"github.com/govm-net/sandbox/compiler/syntax"
)

// ABI represents the public interface of a contract
type ABI struct {
	Contract  string     `json:"contract,omitempty"`
	Functions []Function `json:"functions,omitempty"`
	State     []Variable `json:"state,omitempty"`
	Events    []Event    `json:"events,omitempty"`
}

// Function represents an exported function or the constructor
type Function struct {
	Name        string      `json:"name"`
	Inputs      []Parameter `json:"inputs,omitempty"`
	Constructor bool        `json:"constructor,omitempty"`
}

// Parameter represents a function parameter or event field
type Parameter struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	HasDefault bool   `json:"hasDefault,omitempty"`
	Indexed    bool   `json:"indexed,omitempty"`
}

// Variable is a module level state declaration
type Variable struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Event represents a LogEvent declaration
type Event struct {
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Extract builds the ABI of a compiled contract.
func Extract(c *compiler.Contract) *ABI {
	abi := &ABI{Contract: c.Name}
	if c.Constructor != nil {
		abi.Functions = append(abi.Functions, function(c.Constructor, true))
	}
	for _, name := range c.Exported {
		fn, _ := c.Function(name)
		abi.Functions = append(abi.Functions, function(fn, false))
	}
	for _, decl := range c.State {
		if decl.Kind == "LogEvent" {
			continue
		}
		abi.State = append(abi.State, Variable{Name: decl.Name, Kind: decl.Kind})
	}
	for _, stmt := range c.Module.Body {
		if ev, ok := extractEvent(stmt); ok {
			abi.Events = append(abi.Events, ev)
		}
	}
	return abi
}

// Marshal encodes the ABI as JSON.
func (a *ABI) Marshal() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal abi: %w", err)
	}
	return data, nil
}

// Unmarshal decodes an ABI produced by Marshal.
func Unmarshal(data []byte) (*ABI, error) {
	var a ABI
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal abi: %w", err)
	}
	return &a, nil
}

// Function returns the exported function called name.
func (a *ABI) Function(name string) (Function, bool) {
	for _, fn := range a.Functions {
		if fn.Name == name && !fn.Constructor {
			return fn, true
		}
	}
	return Function{}, false
}

func function(fn *compiler.Function, constructor bool) Function {
	out := Function{Name: fn.Name, Constructor: constructor}
	for _, p := range fn.Params {
		out.Inputs = append(out.Inputs, Parameter{
			Name:       p.Name,
			Type:       p.Type,
			HasDefault: p.Default != nil,
		})
	}
	return out
}

// extractEvent reads a declaration of the form
// Name = LogEvent(event='Name', params={'p': {'type': str, 'idx': True}}).
func extractEvent(stmt syntax.Stmt) (Event, bool) {
	assign, ok := stmt.(*syntax.Assign)
	if !ok {
		return Event{}, false
	}
	call, ok := assign.Value.(*syntax.Call)
	if !ok {
		return Event{}, false
	}
	if name, ok := call.Func.(*syntax.Name); !ok || name.Id != "LogEvent" {
		return Event{}, false
	}

	var ev Event
	var params *syntax.DictExpr
	for i, arg := range call.Args {
		switch i {
		case 0:
			ev.Name = stringLit(arg)
		case 1:
			params, _ = arg.(*syntax.DictExpr)
		}
	}
	for _, kw := range call.Keywords {
		switch kw.Name {
		case "event":
			ev.Name = stringLit(kw.Value)
		case "params":
			params, _ = kw.Value.(*syntax.DictExpr)
		}
	}
	if params == nil {
		return ev, true
	}
	for i, key := range params.Keys {
		p := Parameter{Name: stringLit(key)}
		if desc, ok := params.Values[i].(*syntax.DictExpr); ok {
			for j, field := range desc.Keys {
				switch stringLit(field) {
				case "type":
					p.Type = typeText(desc.Values[j])
				case "idx":
					c, ok := desc.Values[j].(*syntax.NameConst)
					p.Indexed = ok && c.Value == "True"
				}
			}
		}
		ev.Parameters = append(ev.Parameters, p)
	}
	return ev, true
}

func stringLit(e syntax.Expr) string {
	if lit, ok := e.(*syntax.BasicLit); ok && lit.Kind == syntax.STRING {
		return lit.Value
	}
	return ""
}

func typeText(e syntax.Expr) string {
	switch t := e.(type) {
	case *syntax.Name:
		return t.Id
	case *syntax.TupleExpr:
		out := "("
		for i, elt := range t.Elts {
			if i > 0 {
				out += ", "
			}
			out += typeText(elt)
		}
		return out + ")"
	}
	return ""
}
