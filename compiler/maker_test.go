package compiler

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

//go:embed testdata/*.py
var testContracts embed.FS

func readContract(t *testing.T, name string) []byte {
	t.Helper()
	code, err := testContracts.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return code
}

func newTestMaker() *Maker {
	return NewMaker(api.DefaultConfig().Limits)
}

func rulesOf(violations []Violation) map[Rule]int {
	out := make(map[Rule]int)
	for _, v := range violations {
		out[v.Rule]++
	}
	return out
}

func TestValidateContract(t *testing.T) {
	maker := newTestMaker()

	err := maker.ValidateContract(readContract(t, "currency.py"))
	assert.NoError(t, err)

	err = maker.ValidateContract(readContract(t, "two_constructors.py"))
	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, []Rule{RuleMultipleConstructors}, rejection.Rules())
	require.Len(t, rejection.Violations, 1)
	assert.Equal(t, 7, rejection.Violations[0].Line)
	assert.Contains(t, rejection.Violations[0].Message, "seed_again")
	assert.Contains(t, err.Error(), "multiple-constructors")

	err = maker.ValidateContract(readContract(t, "no_exports.py"))
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, []Rule{RuleNoExportedFunctions}, rejection.Rules())
}

func TestLintForbiddenConstructs(t *testing.T) {
	violations := newTestMaker().Lint(readContract(t, "forbidden.py"))
	rules := rulesOf(violations)

	assert.Equal(t, 2, rules[RuleImport])
	assert.Equal(t, 1, rules[RuleClassDefinition])
	assert.Equal(t, 1, rules[RuleLambda])
	assert.Equal(t, 1, rules[RuleExceptionHandling])
	assert.Equal(t, 1, rules[RuleNestedFunction])
	assert.Equal(t, 1, rules[RuleDisallowedName])
	assert.Equal(t, 1, rules[RuleORMDeclaration])
	assert.Equal(t, 2, rules[RuleDisallowedSyntax])
	// print, eval and __class__
	assert.Equal(t, 3, rules[RuleIntrospection])
	// import, from-import, class and the print call
	assert.Equal(t, 4, rules[RuleModuleStatement])
	assert.Equal(t, 1, rules[RuleUnderscoreName])

	for i := 1; i < len(violations); i++ {
		prev, cur := violations[i-1], violations[i]
		assert.True(t, prev.Line < cur.Line || (prev.Line == cur.Line && prev.Col <= cur.Col), "violations are sorted")
	}
	assert.Equal(t, 1, violations[0].Line)
	assert.Equal(t, 1, violations[0].Col)
}

func TestLintNamesAndDecorators(t *testing.T) {
	violations := newTestMaker().Lint(readContract(t, "bad_names.py"))
	rules := rulesOf(violations)

	assert.Equal(t, 1, rules[RuleORMReservedKwarg])
	assert.Equal(t, 2, rules[RuleORMDeclaration])
	assert.Equal(t, 1, rules[RuleMultipleDecorators])
	assert.Equal(t, 1, rules[RuleInvalidDecorator])
	assert.Equal(t, 1, rules[RuleDuplicateFunction])
	assert.Equal(t, 1, rules[RuleReturnAnnotation])
	assert.Equal(t, 1, rules[RuleMissingAnnotation])
	assert.Equal(t, 1, rules[RuleInvalidAnnotation])
	assert.Equal(t, 1, rules[RuleORMNameCollision])
	assert.Equal(t, 1, rules[RuleUnderscoreName])
	// the ctx parameter and the now assignment
	assert.Equal(t, 2, rules[RuleReservedName])
	assert.Equal(t, 1, rules[RuleConstructorCall])
	// set is not a builtin of the sandbox
	assert.Equal(t, 1, rules[RuleDisallowedName])
	assert.Zero(t, rules[RuleMultipleConstructors])
	assert.Zero(t, rules[RuleNoExportedFunctions])
}

func TestLintSyntaxError(t *testing.T) {
	violations := newTestMaker().Lint([]byte("@export\ndef broken(:\n    pass\n"))
	require.Len(t, violations, 1)
	assert.Equal(t, RuleSyntaxError, violations[0].Rule)
	assert.Equal(t, 2, violations[0].Line)

	violations = newTestMaker().Lint([]byte("x = f'{y}'\n"))
	require.Len(t, violations, 1)
	assert.Equal(t, RuleSyntaxError, violations[0].Rule)
}

func TestLintCodeSize(t *testing.T) {
	limits := api.DefaultConfig().Limits
	limits.MaxCodeSize = 64
	maker := NewMaker(limits)

	code := []byte("@export\ndef f():\n    return " + strings.Repeat("1 + ", 20) + "1\n")
	violations := maker.Lint(code)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleCodeSize, violations[0].Rule)
}

func TestLintScoping(t *testing.T) {
	code := []byte(`
@export
def total(items: list):
    result = 0
    for i, item in enumerate(items):
        result += item * i
    squares = [n * n for n in range(3)]
    pairs = {k: v for k, v in zip(squares, items)}
    return result + len(pairs)

@export
def leak():
    return result
`)
	violations := newTestMaker().Lint(code)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleDisallowedName, violations[0].Rule)
	assert.Equal(t, 13, violations[0].Line)
}

func TestLintModuleLevel(t *testing.T) {
	code := []byte(`
counter = Variable()
counter += 1
limit = 10

for i in range(3):
    pass

@export
def get():
    return counter.get() + limit
`)
	rules := rulesOf(newTestMaker().Lint(code))
	assert.Equal(t, map[Rule]int{RuleModuleStatement: 2}, rules)
}

func TestCompileContract(t *testing.T) {
	maker := newTestMaker()
	c, err := maker.CompileContract("currency", readContract(t, "currency.py"))
	require.NoError(t, err)

	assert.Equal(t, "currency", c.Name)
	assert.Equal(t, CodeHash(readContract(t, "currency.py")), c.Hash)
	assert.Equal(t, []string{"transfer", "balance_of", "quote"}, c.Exported)
	assert.True(t, c.IsExported("transfer"))
	assert.False(t, c.IsExported("fee"))
	assert.False(t, c.IsExported("seed"))

	require.NotNil(t, c.Constructor)
	assert.Equal(t, "seed", c.Constructor.Name)
	assert.Equal(t, Constructor, c.Constructor.Kind)
	require.Len(t, c.Constructor.Params, 2)
	assert.Equal(t, "vk", c.Constructor.Params[0].Name)
	assert.Equal(t, "str", c.Constructor.Params[0].Type)
	assert.NotNil(t, c.Constructor.Params[0].Default)

	assert.Equal(t, []StateDecl{
		{Name: "balances", Kind: "Hash", Line: 3},
		{Name: "supply", Kind: "Variable", Line: 4},
		{Name: "Transfer", Kind: "LogEvent", Line: 5},
	}, c.State)
	decl, ok := c.Declaration("supply")
	require.True(t, ok)
	assert.Equal(t, "Variable", decl.Kind)

	fee, ok := c.Function("fee")
	require.True(t, ok)
	assert.Equal(t, Private, fee.Kind)
	assert.Equal(t, "__fee", fee.Symbol)
	assert.Equal(t, "__fee", fee.Def.Name)
	assert.Equal(t, "private", fee.Kind.String())
}

func TestCompileRenamesPrivateReferences(t *testing.T) {
	c, err := newTestMaker().CompileContract("currency", readContract(t, "currency.py"))
	require.NoError(t, err)

	called := func(fn *Function) []string {
		var names []string
		for _, stmt := range fn.Def.Body {
			syntax.Inspect(stmt, func(n syntax.Node) bool {
				if id, ok := n.(*syntax.Name); ok && strings.HasSuffix(id.Id, "fee") {
					names = append(names, id.Id)
				}
				return true
			})
		}
		return names
	}
	transfer, _ := c.Function("transfer")
	assert.Equal(t, []string{"__fee"}, called(transfer))

	// a local named like the private function shadows it
	quote, _ := c.Function("quote")
	assert.Equal(t, []string{"fee", "fee"}, called(quote))
}

func TestCompileRejects(t *testing.T) {
	c, err := newTestMaker().CompileContract("owned", readContract(t, "two_constructors.py"))
	assert.Nil(t, c)
	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.True(t, rejection.Has(RuleMultipleConstructors))
	assert.False(t, rejection.Has(RuleSyntaxError))
}

func TestMultipleConstructorsProperty(t *testing.T) {
	maker := newTestMaker()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 6).Draw(t, "constructors").(int)
		exports := rapid.IntRange(1, 3).Draw(t, "exports").(int)

		var b strings.Builder
		b.WriteString("x = Variable()\n")
		for i := 0; i < exports; i++ {
			fmt.Fprintf(&b, "\n@export\ndef get%d():\n    return x.get()\n", i)
		}
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "\n@construct\ndef make%d():\n    x.set(%d)\n", i, i)
		}

		err := maker.ValidateContract([]byte(b.String()))
		var rejection *Rejection
		if !errors.As(err, &rejection) {
			t.Fatalf("expected rejection, got %v", err)
		}
		if got := rulesOf(rejection.Violations); len(got) != 1 || got[RuleMultipleConstructors] != n-1 {
			t.Fatalf("unexpected violations %v", rejection.Violations)
		}
	})
}
