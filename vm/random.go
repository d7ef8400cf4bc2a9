package vm

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/types"
	"golang.org/x/crypto/sha3"
)

// randomDigits is the precision of random.random().
const randomDigits = 18

// randomObject is the pre-bound random.
type randomObject struct{}

func (*randomObject) TypeName() string { return "random" }

// randomSource is a counter mode generator over sha3-256. The same block,
// signer and entry contract always produce the same sequence.
type randomSource struct {
	seed    [32]byte
	counter uint64
	buf     []byte
}

func newRandomSource(block core.Block, signer, contract, salt string) *randomSource {
	h := sha3.New256()
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], block.Num)
	for _, part := range [][]byte{[]byte(block.Hash), num[:], []byte(signer), []byte(contract), []byte(salt)} {
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(part)))
		h.Write(size[:])
		h.Write(part)
	}
	r := &randomSource{}
	copy(r.seed[:], h.Sum(nil))
	return r
}

func (r *randomSource) read(n int) []byte {
	for len(r.buf) < n {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], r.counter)
		r.counter++
		block := sha3.Sum256(append(r.seed[:], ctr[:]...))
		r.buf = append(r.buf, block[:]...)
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out
}

// below returns a uniform integer in [0, n) by rejection sampling.
func (r *randomSource) below(n *big.Int) *big.Int {
	bits := n.BitLen()
	size := (bits + 7) / 8
	mask := byte(0xff >> uint(size*8-bits))
	for {
		b := append([]byte(nil), r.read(size)...)
		b[0] &= mask
		v := new(big.Int).SetBytes(b)
		if v.Cmp(n) < 0 {
			return v
		}
	}
}

// source returns the generator of the invocation, seeding it on first use.
func (rt *runtime) source() *randomSource {
	if rt.random == nil {
		cur := rt.current()
		rt.random = newRandomSource(rt.block, cur.Signer, cur.EntryContract, "")
	}
	return rt.random
}

// randomBetween draws from [lo, hi).
func randomBetween(rt *runtime, fn string, lo, hi *big.Int) (types.Value, error) {
	span := new(big.Int).Sub(hi, lo)
	if span.Sign() <= 0 {
		return nil, core.NewError(core.KindValue, msgs.MsgBuiltinValue, fn, "empty range")
	}
	if span.BitLen() > 256 {
		return nil, core.NewError(core.KindResourceLimit, msgs.MsgIntTooLarge, 256)
	}
	return types.IntFromBig(new(big.Int).Add(lo, rt.source().below(span))), nil
}

var randomMethods = map[string]methodFunc{
	"seed": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("seed", args, kw, 0, 1); err != nil {
			return nil, err
		}
		salt := ""
		if len(args) == 1 {
			salt = types.Repr(args[0])
		}
		cur := rt.current()
		rt.random = newRandomSource(rt.block, cur.Signer, cur.EntryContract, salt)
		return types.None, nil
	},
	"randint": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("randint", args, kw, 2, 2); err != nil {
			return nil, err
		}
		a, err := argInt("randint", "a", args[0])
		if err != nil {
			return nil, err
		}
		b, err := argInt("randint", "b", args[1])
		if err != nil {
			return nil, err
		}
		return randomBetween(rt, "randint", a.Big(), new(big.Int).Add(b.Big(), big.NewInt(1)))
	},
	"randrange": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("randrange", args, kw, 1, 2); err != nil {
			return nil, err
		}
		a, err := argInt("randrange", "start", args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			return randomBetween(rt, "randrange", new(big.Int), a.Big())
		}
		b, err := argInt("randrange", "stop", args[1])
		if err != nil {
			return nil, err
		}
		return randomBetween(rt, "randrange", a.Big(), b.Big())
	},
	"random": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("random", args, kw, 0, 0); err != nil {
			return nil, err
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(randomDigits), nil)
		n := rt.source().below(scale)
		digits := n.String()
		return types.NewDecimal("0." + strings.Repeat("0", randomDigits-len(digits)) + digits)
	},
	"choice": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("choice", args, kw, 1, 1); err != nil {
			return nil, err
		}
		items, err := materialize(rt, args[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, core.NewError(core.KindIndex, msgs.MsgEmptySequence, "choice")
		}
		i := rt.source().below(big.NewInt(int64(len(items))))
		return items[i.Int64()], nil
	},
	"shuffle": func(rt *runtime, recv types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
		if err := arity("shuffle", args, kw, 1, 1); err != nil {
			return nil, err
		}
		l, ok := args[0].(*types.List)
		if !ok {
			return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "x", "shuffle", "list", args[0].TypeName())
		}
		src := rt.source()
		for i := len(l.Items) - 1; i > 0; i-- {
			j := src.below(big.NewInt(int64(i + 1))).Int64()
			l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
		}
		return types.None, nil
	},
}
