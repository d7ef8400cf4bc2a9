package compiler

import (
	"errors"
	"strings"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/govm-net/sandbox/msgs"
)

// linter is the restriction checker: it rejects every construct outside the
// deterministic subset before anything runs.
type linter struct {
	limits     api.Limits
	violations []Violation
	// ORM calls that are legal module level declarations
	declarations map[*syntax.Call]bool
}

func (l *linter) report(rule Rule, at syntax.Pos, key msgs.MessageKey, args ...any) {
	l.violations = append(l.violations, newViolation(rule, at, key, args...))
}

// check parses src and reports restriction violations. The module is nil
// when the source could not be parsed.
func (l *linter) check(src []byte) *syntax.Module {
	if len(src) > l.limits.MaxCodeSize {
		l.report(RuleCodeSize, syntax.Pos{Line: 1, Col: 1}, msgs.MsgCodeSize, len(src), l.limits.MaxCodeSize)
		return nil
	}
	mod, err := syntax.Parse(string(src))
	if err != nil {
		var serr *syntax.Error
		at := syntax.Pos{Line: 1, Col: 1}
		if errors.As(err, &serr) {
			at = syntax.Pos{Line: serr.Line, Col: serr.Col}
			err = errors.New(serr.Msg)
		}
		l.report(RuleSyntaxError, at, msgs.MsgSyntaxError, err.Error())
		return nil
	}

	l.declarations = make(map[*syntax.Call]bool)
	module := moduleNames(mod)
	for _, stmt := range mod.Body {
		l.checkModuleStatement(stmt)
	}
	for _, stmt := range mod.Body {
		scope := module
		if _, ok := stmt.(*syntax.FuncDef); !ok {
			scope = extend(module, stmt)
		}
		syntax.Walk(&restrictionVisitor{l: l, scope: scope}, stmt)
	}
	return mod
}

func extend(base map[string]bool, node syntax.Node) map[string]bool {
	out := make(map[string]bool, len(base))
	for k := range base {
		out[k] = true
	}
	boundNames(node, out)
	return out
}

func (l *linter) checkModuleStatement(stmt syntax.Stmt) {
	switch s := stmt.(type) {
	case *syntax.FuncDef, *syntax.AnnAssign:
		// annotated assignments are reported as disallowed syntax
	case *syntax.Assign:
		call, kind, ok := ormCall(s.Value)
		if !ok {
			return
		}
		l.declarations[call] = true
		if _, named := s.Targets[0].(*syntax.Name); len(s.Targets) != 1 || !named {
			l.report(RuleORMMultipleTargets, s.Pos, msgs.MsgORMMultipleTargets, kind)
		}
		for _, kw := range call.Keywords {
			if kw.Name == "contract" || kw.Name == "name" {
				l.report(RuleORMReservedKwarg, kw.Pos, msgs.MsgORMReservedKwarg, kind, kw.Name)
			}
		}
	case *syntax.ExprStmt:
		if lit, ok := s.Value.(*syntax.BasicLit); ok && lit.Kind == syntax.STRING {
			return
		}
		l.report(RuleModuleStatement, s.Pos, msgs.MsgModuleStatement)
	default:
		l.report(RuleModuleStatement, stmt.Position(), msgs.MsgModuleStatement)
	}
}

// restrictionVisitor walks one module level statement. scope holds the
// names visible besides builtins and pre-bound names.
type restrictionVisitor struct {
	l      *linter
	scope  map[string]bool
	inFunc bool
}

func (v *restrictionVisitor) Visit(node syntax.Node) syntax.Visitor {
	if node == nil {
		return nil
	}
	l := v.l
	switch n := node.(type) {
	case *syntax.FuncDef:
		if v.inFunc {
			l.report(RuleNestedFunction, n.Pos, msgs.MsgNestedFunction, n.Name)
		}
		if n.Async {
			l.report(RuleAsync, n.Pos, msgs.MsgAsync)
		}
		// decorators are checked by the validator
		for _, p := range n.Params {
			syntax.Walk(v, p)
		}
		if n.Returns != nil {
			syntax.Walk(v, n.Returns)
		}
		inner := &restrictionVisitor{l: l, scope: extend(v.scope, n), inFunc: true}
		for _, stmt := range n.Body {
			syntax.Walk(inner, stmt)
		}
		return nil
	case *syntax.Param:
		if n.Star != 0 {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "variadic parameters")
		}
	case *syntax.ClassDef:
		l.report(RuleClassDefinition, n.Pos, msgs.MsgClassDefinition)
	case *syntax.Lambda:
		l.report(RuleLambda, n.Pos, msgs.MsgLambda)
		return &restrictionVisitor{l: l, scope: extend(v.scope, n), inFunc: v.inFunc}
	case *syntax.Await:
		l.report(RuleAsync, n.Pos, msgs.MsgAsync)
	case *syntax.For:
		if n.Async {
			l.report(RuleAsync, n.Pos, msgs.MsgAsync)
		}
	case *syntax.With:
		if n.Async {
			l.report(RuleAsync, n.Pos, msgs.MsgAsync)
		}
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "with statement")
	case *syntax.Comprehension:
		for _, g := range n.Generators {
			if g.Async {
				l.report(RuleAsync, n.Pos, msgs.MsgAsync)
			}
		}
		if n.Kind == "set" {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "set comprehension")
		}
	case *syntax.Try:
		l.report(RuleExceptionHandling, n.Pos, msgs.MsgExceptionHandling, "try")
	case *syntax.Raise:
		l.report(RuleExceptionHandling, n.Pos, msgs.MsgExceptionHandling, "raise")
	case *syntax.Import:
		l.report(RuleImport, n.Pos, msgs.MsgImport)
	case *syntax.Global:
		what := "global statement"
		if n.Nonlocal {
			what = "nonlocal statement"
		}
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, what)
	case *syntax.Delete:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "del statement")
	case *syntax.Yield:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "yield")
	case *syntax.SetExpr:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "set display")
	case *syntax.Starred:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "starred expression")
	case *syntax.Keyword:
		if n.Name == "" {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "keyword unpacking")
		}
	case *syntax.DictExpr:
		for i, k := range n.Keys {
			if k == nil {
				l.report(RuleDisallowedSyntax, n.Values[i].Position(), msgs.MsgDisallowedSyntax, "dict unpacking")
			}
		}
	case *syntax.AnnAssign:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "annotated assignment")
	case *syntax.NamedExpr:
		l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "assignment expression")
	case *syntax.NameConst:
		if n.Value == "..." {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "ellipsis")
		}
	case *syntax.BinOp:
		if n.Op == "@" {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "matrix multiplication")
		}
	case *syntax.AugAssign:
		if n.Op == "@" {
			l.report(RuleDisallowedSyntax, n.Pos, msgs.MsgDisallowedSyntax, "matrix multiplication")
		}
	case *syntax.Call:
		if _, kind, ok := ormCall(n); ok && !l.declarations[n] {
			l.report(RuleORMDeclaration, n.Pos, msgs.MsgORMDeclaration, kind)
		}
	case *syntax.Attribute:
		if strings.HasPrefix(n.Attr, "__") {
			l.report(RuleIntrospection, n.Pos, msgs.MsgIntrospection, n.Attr)
		}
	case *syntax.Name:
		v.checkName(n)
	}
	return v
}

func (v *restrictionVisitor) checkName(n *syntax.Name) {
	switch {
	case introspectionNames[n.Id]:
		v.l.report(RuleIntrospection, n.Pos, msgs.MsgIntrospection, n.Id)
	case builtinNames[n.Id], preboundNames[n.Id], v.scope[n.Id]:
	default:
		v.l.report(RuleDisallowedName, n.Pos, msgs.MsgDisallowedName, n.Id)
	}
}
