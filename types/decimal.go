package types

import (
	"math/big"
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by true
// division. Addition, subtraction and multiplication are exact.
const DivisionPrecision = 30

// MaxDecimalDigits bounds the digits a decimal may span, from its most
// significant digit down to its last fractional digit. It holds every int of
// the default MaxIntBits with DivisionPrecision fractional digits.
const MaxDecimalDigits = 1300

// Decimal is the deterministic fixed-point number used wherever a contract
// would otherwise see a binary float.
type Decimal struct {
	d decimal.Decimal
}

func (Decimal) TypeName() string { return "decimal" }

// NewDecimal parses s. Only plain decimal notation is accepted, optionally
// with a sign and an exponent.
func NewDecimal(s string) (Decimal, error) {
	text := strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	lower := strings.ToLower(text)
	if lower == "" || strings.Contains(lower, "inf") || strings.Contains(lower, "nan") {
		return Decimal{}, core.NewError(core.KindArithmetic, msgs.MsgInvalidDecimal, s)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Decimal{}, core.NewError(core.KindArithmetic, msgs.MsgInvalidDecimal, s)
	}
	return checkDecimal(Decimal{d: d})
}

// digits estimates the span of a from its coefficient size and exponent
// without rendering it.
func (a Decimal) digits() int64 {
	exp := int64(a.d.Exponent())
	n := int64(a.d.Coefficient().BitLen())*30103/100000 + 1
	if exp >= 0 {
		return n + exp
	}
	if -exp > n {
		return -exp
	}
	return n
}

// checkDecimal rejects values wider than MaxDecimalDigits.
func checkDecimal(a Decimal) (Decimal, error) {
	if a.digits() > MaxDecimalDigits {
		return Decimal{}, core.NewError(core.KindResourceLimit, msgs.MsgDecimalTooLarge, MaxDecimalDigits)
	}
	return a, nil
}

// MustDecimal is NewDecimal for constants known to be valid.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt converts i exactly.
func DecimalFromInt(i Int) Decimal {
	return Decimal{d: decimal.NewFromBigInt(i.Big(), 0)}
}

// ToDecimal widens numeric values.
func ToDecimal(v Value) (Decimal, bool) {
	return numeric(v)
}

func (a Decimal) Add(b Decimal) Decimal { return Decimal{d: a.d.Add(b.d)} }
func (a Decimal) Sub(b Decimal) Decimal { return Decimal{d: a.d.Sub(b.d)} }
func (a Decimal) Mul(b Decimal) Decimal { return Decimal{d: a.d.Mul(b.d)} }
func (a Decimal) Neg() Decimal          { return Decimal{d: a.d.Neg()} }
func (a Decimal) Abs() Decimal          { return Decimal{d: a.d.Abs()} }
func (a Decimal) Cmp(b Decimal) int     { return a.d.Cmp(b.d) }
func (a Decimal) Sign() int             { return a.d.Sign() }
func (a Decimal) IsZero() bool          { return a.d.IsZero() }

// Div is true division rounded half-even to DivisionPrecision digits.
func (a Decimal) Div(b Decimal) (Decimal, error) {
	if b.IsZero() {
		return Decimal{}, core.NewError(core.KindArithmetic, msgs.MsgDivisionByZero)
	}
	q, r := a.d.QuoRem(b.d, DivisionPrecision)
	if r.IsZero() {
		return checkDecimal(Decimal{d: q})
	}
	unit := decimal.New(1, -DivisionPrecision)
	half := r.Abs().Mul(decimal.NewFromInt(2)).Cmp(b.d.Abs().Mul(unit))
	if half > 0 || half == 0 && q.Shift(DivisionPrecision).BigInt().Bit(0) == 1 {
		if a.d.Sign()*b.d.Sign() < 0 {
			q = q.Sub(unit)
		} else {
			q = q.Add(unit)
		}
	}
	return checkDecimal(Decimal{d: q})
}

// DivMod returns the floored quotient and the remainder carrying the sign
// of the divisor.
func (a Decimal) DivMod(b Decimal) (Decimal, Decimal, error) {
	if b.IsZero() {
		return Decimal{}, Decimal{}, core.NewError(core.KindArithmetic, msgs.MsgDivisionByZero)
	}
	q, r := a.d.QuoRem(b.d, 0)
	if !r.IsZero() && r.Sign() != b.d.Sign() {
		q = q.Sub(decimal.NewFromInt(1))
		r = r.Add(b.d)
	}
	quo, err := checkDecimal(Decimal{d: q})
	if err != nil {
		return Decimal{}, Decimal{}, err
	}
	return quo, Decimal{d: r}, nil
}

// FloorDiv is a // b.
func (a Decimal) FloorDiv(b Decimal) (Decimal, error) {
	q, _, err := a.DivMod(b)
	return q, err
}

// Mod is a % b.
func (a Decimal) Mod(b Decimal) (Decimal, error) {
	_, r, err := a.DivMod(b)
	return r, err
}

// Pow raises a to an integral exponent. Negative exponents divide.
func (a Decimal) Pow(n Int, maxBits int) (Decimal, error) {
	e, ok := n.Int64()
	if !ok || e > int64(maxBits) || e < -int64(maxBits) {
		return Decimal{}, core.NewError(core.KindArithmetic, msgs.MsgExponent, n.String())
	}
	neg := e < 0
	if neg {
		e = -e
	}
	result := Decimal{d: decimal.NewFromInt(1)}
	base := a
	var err error
	for e > 0 {
		if e&1 == 1 {
			if result, err = checkDecimal(result.Mul(base)); err != nil {
				return Decimal{}, err
			}
		}
		e >>= 1
		if e > 0 {
			if base, err = checkDecimal(base.Mul(base)); err != nil {
				return Decimal{}, err
			}
		}
	}
	if neg {
		return Decimal{d: decimal.NewFromInt(1)}.Div(result)
	}
	return result, nil
}

// Round rounds half-even to places fractional digits.
func (a Decimal) Round(places int32) Decimal {
	if int64(places) >= -int64(a.d.Exponent()) {
		return a
	}
	if places < -MaxDecimalDigits {
		return Decimal{d: decimal.Zero}
	}
	return Decimal{d: a.d.RoundBank(places)}
}

// IsInteger reports whether a has no fractional part.
func (a Decimal) IsInteger() bool {
	return a.d.Equal(a.d.Truncate(0))
}

// Trunc returns the integer part of a, truncated toward zero.
func (a Decimal) Trunc() Int {
	return IntFromBig(a.d.BigInt())
}

// Floor returns the largest integer not greater than a.
func (a Decimal) Floor() Int {
	return IntFromBig(a.d.Floor().BigInt())
}

func (a Decimal) String() string {
	s := a.d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Text is the canonical digits used for storage and hashing.
func (a Decimal) Text() string {
	return a.d.String()
}

// intBits reports whether i fits in maxBits.
func intBits(i *big.Int, maxBits int) bool {
	return i.BitLen() <= maxBits
}
