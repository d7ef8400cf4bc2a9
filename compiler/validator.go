package compiler

import (
	"strings"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/govm-net/sandbox/msgs"
)

// validator enforces decorator cardinality and naming rules on a parsed
// module and builds the function table.
type validator struct {
	violations []Violation

	functions   map[string]*syntax.FuncDef
	constructor *syntax.FuncDef
	exported    int
	state       map[string]bool
}

func (v *validator) report(rule Rule, at syntax.Pos, key msgs.MessageKey, args ...any) {
	v.violations = append(v.violations, newViolation(rule, at, key, args...))
}

func decoratorName(e syntax.Expr) string {
	switch d := e.(type) {
	case *syntax.Name:
		return d.Id
	case *syntax.Attribute:
		return decoratorName(d.Value) + "." + d.Attr
	case *syntax.Call:
		return decoratorName(d.Func) + "(...)"
	}
	return "expression"
}

func (v *validator) check(mod *syntax.Module) {
	v.functions = make(map[string]*syntax.FuncDef)
	v.state = make(map[string]bool)
	for _, stmt := range mod.Body {
		if name, _, ok := stateDeclaration(stmt); ok {
			v.state[name] = true
		}
	}

	for _, stmt := range mod.Body {
		fn, ok := stmt.(*syntax.FuncDef)
		if !ok {
			continue
		}
		v.checkFunction(fn)
	}
	if v.exported == 0 {
		v.report(RuleNoExportedFunctions, syntax.Pos{Line: 1, Col: 1}, msgs.MsgNoExportedFunctions)
	}

	for _, stmt := range mod.Body {
		syntax.Inspect(stmt, v.checkNames)
	}
}

func (v *validator) checkFunction(fn *syntax.FuncDef) {
	if _, dup := v.functions[fn.Name]; dup {
		v.report(RuleDuplicateFunction, fn.Pos, msgs.MsgDuplicateFunction, fn.Name)
	} else {
		v.functions[fn.Name] = fn
	}

	if len(fn.Decorators) > 1 {
		v.report(RuleMultipleDecorators, fn.Pos, msgs.MsgMultipleDecorators, fn.Name)
	}
	exported := false
	for _, d := range fn.Decorators {
		switch name := decoratorName(d); name {
		case api.DecoratorExport:
			exported = true
		case api.DecoratorConstruct:
			if v.constructor != nil {
				v.report(RuleMultipleConstructors, d.Position(), msgs.MsgMultipleConstructors, v.constructor.Name, fn.Name)
			} else {
				v.constructor = fn
			}
		default:
			v.report(RuleInvalidDecorator, d.Position(), msgs.MsgInvalidDecorator, name)
		}
	}
	if exported {
		v.exported++
	}

	if fn.Returns != nil {
		v.report(RuleReturnAnnotation, fn.Returns.Position(), msgs.MsgReturnAnnotation, fn.Name)
	}
	for _, p := range fn.Params {
		if p.Annotation == nil {
			if exported && p.Name != "" {
				v.report(RuleMissingAnnotation, p.Pos, msgs.MsgMissingAnnotation, p.Name, fn.Name)
			}
		} else if name, ok := p.Annotation.(*syntax.Name); !ok || !argumentTypes[name.Id] {
			v.report(RuleInvalidAnnotation, p.Annotation.Position(), msgs.MsgInvalidAnnotation, annotationText(p.Annotation))
		}
		if v.state[p.Name] {
			v.report(RuleORMNameCollision, p.Pos, msgs.MsgORMNameCollision, p.Name, fn.Name)
		}
	}
}

func annotationText(e syntax.Expr) string {
	switch a := e.(type) {
	case *syntax.Name:
		return a.Id
	case *syntax.BasicLit:
		return a.Value
	case *syntax.NameConst:
		return a.Value
	case *syntax.Attribute:
		return annotationText(a.Value) + "." + a.Attr
	case *syntax.Subscript:
		return annotationText(a.Value) + "[...]"
	}
	return "expression"
}

func badUnderscore(name string) bool {
	return name != "" && (strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_"))
}

func (v *validator) underscore(name string, at syntax.Pos) {
	if badUnderscore(name) {
		v.report(RuleUnderscoreName, at, msgs.MsgUnderscoreName, name)
	}
}

func (v *validator) reserved(name string, at syntax.Pos) {
	if preboundNames[name] {
		v.report(RuleReservedName, at, msgs.MsgReservedName, name)
	}
}

func (v *validator) storeTargets(e syntax.Expr) {
	names := make(map[string]bool)
	targetNames(e, names)
	syntax.Inspect(e, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Name); ok && names[id.Id] {
			v.reserved(id.Id, id.Pos)
		}
		return true
	})
}

func (v *validator) checkNames(node syntax.Node) bool {
	switch n := node.(type) {
	case *syntax.FuncDef:
		v.underscore(n.Name, n.Pos)
		v.reserved(n.Name, n.Pos)
	case *syntax.Param:
		v.underscore(n.Name, n.Pos)
		v.reserved(n.Name, n.Pos)
	case *syntax.Name:
		v.underscore(n.Id, n.Pos)
		if v.constructor != nil && n.Id == v.constructor.Name {
			v.report(RuleConstructorCall, n.Pos, msgs.MsgConstructorCall, n.Id)
		}
	case *syntax.Attribute:
		v.underscore(n.Attr, n.Pos)
	case *syntax.Keyword:
		v.underscore(n.Name, n.Pos)
	case *syntax.Assign:
		for _, t := range n.Targets {
			v.storeTargets(t)
		}
	case *syntax.AugAssign:
		v.storeTargets(n.Target)
	case *syntax.For:
		v.storeTargets(n.Target)
	case *syntax.Comprehension:
		for _, g := range n.Generators {
			v.storeTargets(g.Target)
		}
	}
	return true
}
