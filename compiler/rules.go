package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/govm-net/sandbox/msgs"
)

// Rule is the machine-readable identifier of a restriction.
type Rule string

// Restriction checker rules.
const (
	RuleSyntaxError        Rule = "syntax-error"
	RuleCodeSize           Rule = "code-size"
	RuleClassDefinition    Rule = "class-definition"
	RuleLambda             Rule = "lambda"
	RuleAsync              Rule = "async"
	RuleExceptionHandling  Rule = "exception-handling"
	RuleIntrospection      Rule = "introspection"
	RuleDisallowedName     Rule = "disallowed-name"
	RuleImport             Rule = "import"
	RuleNestedFunction     Rule = "nested-function"
	RuleDisallowedSyntax   Rule = "disallowed-syntax"
	RuleModuleStatement    Rule = "module-statement"
	RuleORMDeclaration     Rule = "orm-declaration"
	RuleORMMultipleTargets Rule = "orm-multiple-targets"
	RuleORMReservedKwarg   Rule = "orm-reserved-kwarg"
)

// Symbol and decorator validator rules.
const (
	RuleMultipleDecorators   Rule = "multiple-decorators"
	RuleInvalidDecorator     Rule = "invalid-decorator"
	RuleMultipleConstructors Rule = "multiple-constructors"
	RuleNoExportedFunctions  Rule = "no-exported-functions"
	RuleMissingAnnotation    Rule = "missing-annotation"
	RuleInvalidAnnotation    Rule = "invalid-annotation"
	RuleReturnAnnotation     Rule = "return-annotation"
	RuleUnderscoreName       Rule = "underscore-name"
	RuleReservedName         Rule = "reserved-name"
	RuleORMNameCollision     Rule = "orm-name-collision"
	RuleDuplicateFunction    Rule = "duplicate-function"
	RuleConstructorCall      Rule = "constructor-call"
)

// Violation is one broken rule at a source position.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%d:%d [%s] %s", v.Line, v.Col, v.Rule, v.Message)
}

func newViolation(rule Rule, at syntax.Pos, key msgs.MessageKey, args ...any) Violation {
	return Violation{
		Rule:    rule,
		Line:    at.Line,
		Col:     at.Col,
		Message: msgs.Expand(key, args...),
	}
}

// Rejection is returned when a contract breaks one or more rules. It lists
// every violation found, ordered by position.
type Rejection struct {
	Violations []Violation
}

func (r *Rejection) Error() string {
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.String()
	}
	return msgs.Expand(msgs.MsgContractRejected, len(r.Violations), strings.Join(parts, "; "))
}

// Has reports whether any violation carries rule.
func (r *Rejection) Has(rule Rule) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Rules returns the distinct rules violated, in position order.
func (r *Rejection) Rules() []Rule {
	seen := make(map[Rule]bool)
	var out []Rule
	for _, v := range r.Violations {
		if !seen[v.Rule] {
			seen[v.Rule] = true
			out = append(out, v.Rule)
		}
	}
	return out
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Line != vs[j].Line {
			return vs[i].Line < vs[j].Line
		}
		return vs[i].Col < vs[j].Col
	})
}
