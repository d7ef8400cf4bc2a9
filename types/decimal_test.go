package types

import (
	"testing"

	"github.com/govm-net/sandbox/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecimalArithmetic(t *testing.T) {
	a := MustDecimal("0.1")
	b := MustDecimal("0.2")
	assert.Equal(t, 0, a.Add(b).Cmp(MustDecimal("0.3")))
	assert.Equal(t, "0.3", a.Add(b).Text())
	assert.Equal(t, "0.02", a.Mul(b).Text())

	q, err := MustDecimal("1").Div(MustDecimal("3"))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333333333333333", q.Text())

	q, err = MustDecimal("2").Div(MustDecimal("3"))
	require.NoError(t, err)
	assert.Equal(t, "0.666666666666666666666666666667", q.Text())

	_, err = a.Div(MustDecimal("0"))
	assert.True(t, core.IsKind(err, core.KindArithmetic))
}

func TestDecimalFloorDivision(t *testing.T) {
	cases := []struct {
		a, b, q, r string
	}{
		{"7", "2", "3", "1"},
		{"-7", "2", "-4", "1"},
		{"7", "-2", "-4", "-1"},
		{"-7", "-2", "3", "-1"},
		{"7.5", "2", "3", "1.5"},
	}
	for _, c := range cases {
		q, r, err := MustDecimal(c.a).DivMod(MustDecimal(c.b))
		require.NoError(t, err)
		assert.Equal(t, c.q, q.Text(), "%s // %s", c.a, c.b)
		assert.Equal(t, c.r, r.Text(), "%s %% %s", c.a, c.b)
	}
}

func TestDecimalParse(t *testing.T) {
	for _, bad := range []string{"", "abc", "inf", "NaN", "1.2.3"} {
		_, err := NewDecimal(bad)
		assert.True(t, core.IsKind(err, core.KindArithmetic), bad)
	}
	d, err := NewDecimal("1_000.5")
	require.NoError(t, err)
	assert.Equal(t, "1000.5", d.Text())
	assert.Equal(t, "5.0", MustDecimal("5").String())
}

func TestDecimalPow(t *testing.T) {
	p, err := MustDecimal("1.5").Pow(NewInt(2), 4096)
	require.NoError(t, err)
	assert.Equal(t, "2.25", p.Text())

	p, err = MustDecimal("2").Pow(NewInt(-2), 4096)
	require.NoError(t, err)
	assert.Equal(t, "0.25", p.Text())

	_, err = MustDecimal("2").Pow(NewInt(100000), 4096)
	assert.True(t, core.IsKind(err, core.KindArithmetic))
}

func TestDecimalAdditionIsExact(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(-1e12, 1e12).Draw(t, "a").(int64)
		b := rapid.Int64Range(-1e12, 1e12).Draw(t, "b").(int64)
		scale := MustDecimal("0.000001")
		x := DecimalFromInt(NewInt(a)).Mul(scale)
		y := DecimalFromInt(NewInt(b)).Mul(scale)
		sum := x.Add(y)
		if sum.Sub(y).Cmp(x) != 0 {
			t.Fatalf("(%s + %s) - %s != %s", x, y, y, x)
		}
	})
}

func TestFloorDivisionIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(-1e9, 1e9).Draw(t, "a").(int64)
		b := rapid.Int64Range(-1e6, 1e6).Draw(t, "b").(int64)
		if b == 0 {
			b = 1
		}
		x, y := DecimalFromInt(NewInt(a)), DecimalFromInt(NewInt(b))
		q, r, err := x.DivMod(y)
		if err != nil {
			t.Fatal(err)
		}
		if q.Mul(y).Add(r).Cmp(x) != 0 {
			t.Fatalf("%d != %s*%d + %s", a, q, b, r)
		}
		if !r.IsZero() && r.Sign() != y.Sign() {
			t.Fatalf("remainder %s has wrong sign for divisor %d", r, b)
		}
	})
}

func TestDecimalWidthLimit(t *testing.T) {
	for _, wide := range []string{"1e100000", "1e-100000"} {
		_, err := NewDecimal(wide)
		assert.True(t, core.IsKind(err, core.KindResourceLimit), wide)
	}

	big := MustDecimal("1e1200")
	tiny := MustDecimal("1e-1200")
	_, err := BinaryOp("+", big, tiny, 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
	_, err = BinaryOp("*", big, big, 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
	_, err = big.Div(tiny)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
	_, err = MustDecimal("10").Pow(NewInt(2000), 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	v, err := BinaryOp("+", big, NewInt(1), 4096)
	require.NoError(t, err)
	assert.Equal(t, 1, v.(Decimal).Cmp(big))

	assert.Equal(t, "1.5", MustDecimal("1.5").Round(1<<15).Text())
	assert.True(t, MustDecimal("123.5").Round(-5000).IsZero())
}
