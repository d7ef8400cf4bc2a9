package compiler

import (
	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
)

func nameSet(names ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, list := range names {
		for _, n := range list {
			out[n] = true
		}
	}
	return out
}

var (
	builtinNames       = nameSet(api.AllowedBuiltins)
	preboundNames      = nameSet(api.PreboundNames)
	ormConstructors    = nameSet(api.ORMConstructors)
	introspectionNames = nameSet(api.IntrospectionNames)
	argumentTypes      = nameSet(api.ArgumentTypes)
)

// targetNames adds the names stored to by an assignment target.
func targetNames(e syntax.Expr, out map[string]bool) {
	switch t := e.(type) {
	case *syntax.Name:
		out[t.Id] = true
	case *syntax.TupleExpr:
		for _, elt := range t.Elts {
			targetNames(elt, out)
		}
	case *syntax.ListExpr:
		for _, elt := range t.Elts {
			targetNames(elt, out)
		}
	case *syntax.Starred:
		targetNames(t.Value, out)
	}
}

// boundNames collects every name bound inside node: assignment and loop
// targets, comprehension variables, walrus targets and nested definitions.
// Parameters of the node itself are included when it is a function.
func boundNames(node syntax.Node, out map[string]bool) {
	if fn, ok := node.(*syntax.FuncDef); ok {
		for _, p := range fn.Params {
			if p.Name != "" {
				out[p.Name] = true
			}
		}
	}
	syntax.Inspect(node, func(n syntax.Node) bool {
		switch s := n.(type) {
		case *syntax.Assign:
			for _, t := range s.Targets {
				targetNames(t, out)
			}
		case *syntax.AugAssign:
			targetNames(s.Target, out)
		case *syntax.AnnAssign:
			targetNames(s.Target, out)
		case *syntax.For:
			targetNames(s.Target, out)
		case *syntax.With:
			for _, t := range s.Targets {
				targetNames(t, out)
			}
		case *syntax.NamedExpr:
			targetNames(s.Target, out)
		case *syntax.Comprehension:
			for _, g := range s.Generators {
				targetNames(g.Target, out)
			}
		case *syntax.ExceptHandler:
			if s.Name != "" {
				out[s.Name] = true
			}
		case *syntax.Lambda:
			for _, p := range s.Params {
				out[p.Name] = true
			}
		case *syntax.FuncDef:
			if s != node {
				out[s.Name] = true
				for _, p := range s.Params {
					out[p.Name] = true
				}
			}
		case *syntax.ClassDef:
			out[s.Name] = true
		case *syntax.Import:
			for _, name := range s.Names {
				out[name] = true
			}
		}
		return true
	})
}

// moduleNames returns the names defined at module level.
func moduleNames(mod *syntax.Module) map[string]bool {
	out := make(map[string]bool)
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *syntax.FuncDef:
			out[s.Name] = true
		case *syntax.ClassDef:
			out[s.Name] = true
		default:
			boundNames(s, out)
		}
	}
	return out
}

// ormCall returns the constructor name when e is a call to an ORM
// constructor.
func ormCall(e syntax.Expr) (*syntax.Call, string, bool) {
	call, ok := e.(*syntax.Call)
	if !ok {
		return nil, "", false
	}
	name, ok := call.Func.(*syntax.Name)
	if !ok || !ormConstructors[name.Id] {
		return nil, "", false
	}
	return call, name.Id, true
}

// stateDeclaration reports the declared name when stmt is a module level
// ORM declaration with a single name target.
func stateDeclaration(stmt syntax.Stmt) (string, string, bool) {
	assign, ok := stmt.(*syntax.Assign)
	if !ok || len(assign.Targets) != 1 {
		return "", "", false
	}
	target, ok := assign.Targets[0].(*syntax.Name)
	if !ok {
		return "", "", false
	}
	_, kind, ok := ormCall(assign.Value)
	if !ok {
		return "", "", false
	}
	return target.Id, kind, true
}
