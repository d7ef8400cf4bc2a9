package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOK(t *testing.T, src string) *Module {
	t.Helper()
	mod, err := Parse(src)
	require.NoError(t, err)
	return mod
}

func TestParseContract(t *testing.T) {
	mod := parseOK(t, `
balances = Hash(default_value=0)

@construct
def seed(amount: int = 100):
    balances[ctx.caller] = amount

@export
def transfer(amount: int, to: str):
    sender = ctx.caller
    assert balances[sender] >= amount, 'Not enough coins!'
    balances[sender] -= amount
    balances[to] += amount
`)
	require.Len(t, mod.Body, 3)

	assign := mod.Body[0].(*Assign)
	call := assign.Value.(*Call)
	assert.Equal(t, "Hash", call.Func.(*Name).Id)
	require.Len(t, call.Keywords, 1)
	assert.Equal(t, "default_value", call.Keywords[0].Name)

	seed := mod.Body[1].(*FuncDef)
	assert.Equal(t, "seed", seed.Name)
	assert.Equal(t, "construct", seed.Decorators[0].(*Name).Id)
	assert.Equal(t, "int", seed.Params[0].Annotation.(*Name).Id)
	assert.Equal(t, "100", seed.Params[0].Default.(*BasicLit).Value)

	transfer := mod.Body[2].(*FuncDef)
	require.Len(t, transfer.Body, 4)
	assertStmt := transfer.Body[1].(*Assert)
	assert.Equal(t, "Not enough coins!", assertStmt.Msg.(*BasicLit).Value)
	cmp := assertStmt.Test.(*Compare)
	assert.Equal(t, []string{">="}, cmp.Ops)
	aug := transfer.Body[2].(*AugAssign)
	assert.Equal(t, "-", aug.Op)
	assert.IsType(t, &Subscript{}, aug.Target)
	assert.Equal(t, 11, transfer.Body[1].Position().Line)
}

func TestParseExpressions(t *testing.T) {
	mod := parseOK(t, `
x = a if b else c
y = not a and b or c
z = [i * 2 for i in range(10) if i % 2 == 0]
w = {k: v for k, v in d.items()}
v = -2 ** 2
u = x[1:2, ::3]
s = {1, 2}
e = {}
t = 1,
a, *rest = items
q = a not in b is not c
`)
	require.Len(t, mod.Body, 11)
	assert.IsType(t, &IfExp{}, mod.Body[0].(*Assign).Value)

	or := mod.Body[1].(*Assign).Value.(*BoolOp)
	assert.Equal(t, "or", or.Op)
	and := or.Values[0].(*BoolOp)
	assert.Equal(t, "and", and.Op)
	assert.Equal(t, "not", and.Values[0].(*UnaryOp).Op)

	comp := mod.Body[2].(*Assign).Value.(*Comprehension)
	assert.Equal(t, "list", comp.Kind)
	require.Len(t, comp.Generators, 1)
	assert.Len(t, comp.Generators[0].Ifs, 1)

	dict := mod.Body[3].(*Assign).Value.(*Comprehension)
	assert.Equal(t, "dict", dict.Kind)
	assert.IsType(t, &TupleExpr{}, dict.Generators[0].Target)

	neg := mod.Body[4].(*Assign).Value.(*UnaryOp)
	assert.Equal(t, "**", neg.Operand.(*BinOp).Op)

	sub := mod.Body[5].(*Assign).Value.(*Subscript)
	idx := sub.Index.(*TupleExpr)
	assert.IsType(t, &Slice{}, idx.Elts[0])
	assert.Nil(t, idx.Elts[1].(*Slice).Lower)

	assert.IsType(t, &SetExpr{}, mod.Body[6].(*Assign).Value)
	assert.IsType(t, &DictExpr{}, mod.Body[7].(*Assign).Value)
	assert.Len(t, mod.Body[8].(*Assign).Value.(*TupleExpr).Elts, 1)

	unpack := mod.Body[9].(*Assign).Targets[0].(*TupleExpr)
	assert.IsType(t, &Starred{}, unpack.Elts[1])

	chain := mod.Body[10].(*Assign).Value.(*Compare)
	assert.Equal(t, []string{"not in", "is not"}, chain.Ops)
}

func TestParseForbiddenConstructsStillParse(t *testing.T) {
	mod := parseOK(t, `
import os
from a.b import c as d
class A(B):
    pass
try:
    x = 1
except Exception as e:
    raise
finally:
    pass
f = lambda x: x + 1
async def g():
    await h()
with open('f') as fh:
    pass
global q
del q
`)
	kinds := make([]string, 0, len(mod.Body))
	for _, s := range mod.Body {
		switch s.(type) {
		case *Import:
			kinds = append(kinds, "import")
		case *ClassDef:
			kinds = append(kinds, "class")
		case *Try:
			kinds = append(kinds, "try")
		case *Assign:
			kinds = append(kinds, "assign")
		case *FuncDef:
			kinds = append(kinds, "def")
		case *With:
			kinds = append(kinds, "with")
		case *Global:
			kinds = append(kinds, "global")
		case *Delete:
			kinds = append(kinds, "del")
		}
	}
	assert.Equal(t, []string{"import", "import", "class", "try", "assign", "def", "with", "global", "del"}, kinds)
	assert.True(t, mod.Body[5].(*FuncDef).Async)
	assert.Equal(t, "a.b", mod.Body[1].(*Import).From)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"def f(:\n    pass\n",
		"x = = 1\n",
		"if x\n    pass\n",
		"def f():\nreturn 1\n",
		"1 = x\n",
		"f() = 3\n",
		"try:\n    pass\n",
		"x = (1 for\n",
	} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestInspectVisitsNames(t *testing.T) {
	mod := parseOK(t, "def f(a):\n    return [b for c in a]\n")
	var names []string
	for _, s := range mod.Body {
		Inspect(s, func(n Node) bool {
			if id, ok := n.(*Name); ok {
				names = append(names, id.Id)
			}
			return true
		})
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}
