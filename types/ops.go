package types

import (
	"math/big"
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
)

// MaxSequenceLength bounds the result of sequence repetition and
// concatenation, in items for tuples and lists and in bytes for strings.
const MaxSequenceLength = 1 << 20

// asInt treats bools as integers.
func asInt(v Value) (Int, bool) {
	switch x := v.(type) {
	case Int:
		return x, true
	case Bool:
		if x {
			return NewInt(1), true
		}
		return NewInt(0), true
	}
	return Int{}, false
}

func unsupported(op string, a, b Value) error {
	return core.NewError(core.KindType, msgs.MsgUnsupportedOperand, op, a.TypeName(), b.TypeName())
}

func checkBits(i *big.Int, maxBits int) (Value, error) {
	if !intBits(i, maxBits) {
		return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, maxBits)
	}
	return IntFromBig(i), nil
}

// BinaryOp applies an arithmetic or bitwise operator.
func BinaryOp(op string, a, b Value, maxBits int) (Value, error) {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return intOp(op, x, y, maxBits)
		}
	}
	if x, ok := numeric(a); ok {
		if y, ok := numeric(b); ok {
			if op == "**" {
				if e, ok := asInt(b); ok {
					return x.Pow(e, maxBits)
				}
				if y.IsInteger() {
					return x.Pow(y.Trunc(), maxBits)
				}
				return nil, core.NewError(core.KindArithmetic, msgs.MsgExponent, y.String())
			}
			return decimalOp(op, x, y)
		}
	}
	switch op {
	case "+":
		return concat(a, b)
	case "*":
		if n, ok := asInt(b); ok {
			return repeat(a, n, op, b)
		}
		if n, ok := asInt(a); ok {
			return repeat(b, n, op, a)
		}
	case "|":
		if x, ok := a.(*Dict); ok {
			if y, ok := b.(*Dict); ok {
				out := Copy(x).(*Dict)
				for i, k := range y.keys {
					if err := out.Set(k, y.vals[i]); err != nil {
						return nil, err
					}
				}
				return out, nil
			}
		}
	}
	return nil, unsupported(op, a, b)
}

func intOp(op string, x, y Int, maxBits int) (Value, error) {
	a, b := x.Big(), y.Big()
	switch op {
	case "+":
		return checkBits(new(big.Int).Add(a, b), maxBits)
	case "-":
		return checkBits(new(big.Int).Sub(a, b), maxBits)
	case "*":
		if a.BitLen()+b.BitLen() > maxBits+1 {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, maxBits)
		}
		return checkBits(new(big.Int).Mul(a, b), maxBits)
	case "/":
		return DecimalFromInt(x).Div(DecimalFromInt(y))
	case "//", "%":
		if b.Sign() == 0 {
			return nil, core.NewError(core.KindArithmetic, msgs.MsgDivisionByZero)
		}
		q, m := new(big.Int), new(big.Int)
		q.DivMod(a, b, m)
		// big.Int.DivMod is Euclidean; floor division follows the divisor sign.
		if m.Sign() != 0 && b.Sign() < 0 {
			m.Add(m, b)
			q.Sub(q, big.NewInt(1))
		}
		if op == "//" {
			return IntFromBig(q), nil
		}
		return IntFromBig(m), nil
	case "**":
		if b.Sign() < 0 {
			return DecimalFromInt(x).Pow(y, maxBits)
		}
		if a.BitLen() > 1 && (!b.IsInt64() || int64(a.BitLen()-1)*b.Int64() > int64(maxBits)) {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, maxBits)
		}
		return checkBits(new(big.Int).Exp(a, b, nil), maxBits)
	case "&":
		return IntFromBig(new(big.Int).And(a, b)), nil
	case "|":
		return IntFromBig(new(big.Int).Or(a, b)), nil
	case "^":
		return IntFromBig(new(big.Int).Xor(a, b)), nil
	case "<<", ">>":
		n, ok := y.Int64()
		if !ok || n < 0 {
			return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, op, "negative shift count")
		}
		if op == ">>" {
			return IntFromBig(new(big.Int).Rsh(a, uint(min(n, int64(a.BitLen()+1))))), nil
		}
		if int64(a.BitLen())+n > int64(maxBits) {
			return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, maxBits)
		}
		return IntFromBig(new(big.Int).Lsh(a, uint(n))), nil
	}
	return nil, unsupported(op, x, y)
}

func decimalOp(op string, x, y Decimal) (Value, error) {
	switch op {
	case "+":
		return checkDecimal(x.Add(y))
	case "-":
		return checkDecimal(x.Sub(y))
	case "*":
		return checkDecimal(x.Mul(y))
	case "/":
		return x.Div(y)
	case "//":
		return x.FloorDiv(y)
	case "%":
		return x.Mod(y)
	}
	return nil, unsupported(op, x, y)
}

func concatLength(n int) error {
	if n > MaxSequenceLength {
		return core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, n, MaxSequenceLength)
	}
	return nil
}

func concat(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			if err := concatLength(len(x) + len(y)); err != nil {
				return nil, err
			}
			return x + y, nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			if err := concatLength(len(x) + len(y)); err != nil {
				return nil, err
			}
			out := make(Tuple, 0, len(x)+len(y))
			return append(append(out, x...), y...), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			if err := concatLength(len(x.Items) + len(y.Items)); err != nil {
				return nil, err
			}
			out := make([]Value, 0, len(x.Items)+len(y.Items))
			return NewList(append(append(out, x.Items...), y.Items...)...), nil
		}
	}
	return nil, unsupported("+", a, b)
}

func repeat(seq Value, count Int, op string, other Value) (Value, error) {
	n, ok := count.Int64()
	if !ok {
		return nil, core.NewError(core.KindValue, msgs.MsgNegativeRepeat, count.String())
	}
	if n < 0 {
		n = 0
	}
	length := func(l int) error {
		if int64(l)*n > MaxSequenceLength {
			return core.NewError(core.KindValue, msgs.MsgNegativeRepeat, count.String())
		}
		return nil
	}
	switch x := seq.(type) {
	case Str:
		if err := length(len(x)); err != nil {
			return nil, err
		}
		return Str(strings.Repeat(string(x), int(n))), nil
	case Tuple:
		if err := length(len(x)); err != nil {
			return nil, err
		}
		out := make(Tuple, 0, len(x)*int(n))
		for i := int64(0); i < n; i++ {
			out = append(out, x...)
		}
		return out, nil
	case *List:
		if err := length(len(x.Items)); err != nil {
			return nil, err
		}
		out := make([]Value, 0, len(x.Items)*int(n))
		for i := int64(0); i < n; i++ {
			out = append(out, x.Items...)
		}
		return NewList(out...), nil
	}
	return nil, unsupported(op, seq, other)
}

// UnaryOp applies -, + or ~.
func UnaryOp(op string, v Value) (Value, error) {
	if i, ok := asInt(v); ok {
		switch op {
		case "-":
			return IntFromBig(new(big.Int).Neg(i.Big())), nil
		case "+":
			return i, nil
		case "~":
			return IntFromBig(new(big.Int).Not(i.Big())), nil
		}
	}
	if d, ok := v.(Decimal); ok {
		switch op {
		case "-":
			return d.Neg(), nil
		case "+":
			return d, nil
		}
	}
	return nil, core.NewError(core.KindType, msgs.MsgUnsupportedUnary, op, v.TypeName())
}

// Contains implements the `in` operator.
func Contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, core.NewError(core.KindType, msgs.MsgUnsupportedOperand, "in", item.TypeName(), "str")
		}
		return strings.Contains(string(c), string(s)), nil
	case Tuple:
		return containsSeq(c, item), nil
	case *List:
		return containsSeq(c.Items, item), nil
	case *Dict:
		_, found, err := c.Get(item)
		return found, err
	case Range:
		i, ok := asInt(item)
		if !ok {
			return false, nil
		}
		n, ok := i.Int64()
		if !ok {
			return false, nil
		}
		if c.Step > 0 {
			return n >= c.Start && n < c.Stop && (n-c.Start)%c.Step == 0, nil
		}
		return n <= c.Start && n > c.Stop && (c.Start-n)%(-c.Step) == 0, nil
	}
	return false, core.NewError(core.KindType, msgs.MsgNotIterable, container.TypeName())
}

func containsSeq(items []Value, item Value) bool {
	for _, v := range items {
		if Equal(v, item) {
			return true
		}
	}
	return false
}
