package vm

import (
	"github.com/govm-net/sandbox/compiler/syntax"
	"github.com/govm-net/sandbox/core"
	"github.com/govm-net/sandbox/events"
	"github.com/govm-net/sandbox/msgs"
	"github.com/govm-net/sandbox/state"
	"github.com/govm-net/sandbox/types"
)

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// scope is a table of local names. Comprehensions get a child scope so
// their variables do not leak.
type scope struct {
	vars   map[string]types.Value
	parent *scope
}

func newScope(vars map[string]types.Value, parent *scope) *scope {
	if vars == nil {
		vars = make(map[string]types.Value)
	}
	return &scope{vars: vars, parent: parent}
}

// frame executes code of one contract. locals is nil at module level.
type frame struct {
	rt     *runtime
	inst   *instance
	locals *scope
}

func (fr *frame) lookup(name string) (types.Value, error) {
	for s := fr.locals; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, nil
		}
	}
	if v, ok := fr.inst.globals[name]; ok {
		return v, nil
	}
	if v, ok := fr.rt.prebound[name]; ok {
		return v, nil
	}
	if v, ok := builtins[name]; ok {
		return v, nil
	}
	return nil, core.NewError(core.KindName, msgs.MsgUndefinedName, name)
}

func (fr *frame) store(name string, v types.Value) {
	if fr.locals == nil {
		fr.inst.globals[name] = v
		return
	}
	fr.locals.vars[name] = v
}

// execModule runs one module level statement.
func (fr *frame) execModule(stmt syntax.Stmt) error {
	if err := fr.rt.meter.ChargeStatement(); err != nil {
		return err
	}
	switch s := stmt.(type) {
	case *syntax.FuncDef:
		return fr.define(s)
	case *syntax.Assign:
		if call, ok := s.Value.(*syntax.Call); ok {
			if ctor, ok := call.Func.(*syntax.Name); ok && isORMConstructor(ctor.Id) {
				target := s.Targets[0].(*syntax.Name)
				v, err := fr.declare(ctor.Id, target.Id, call)
				if err != nil {
					return err
				}
				fr.inst.globals[target.Id] = v
				return nil
			}
		}
		v, err := fr.eval(s.Value)
		if err != nil {
			return err
		}
		for _, t := range s.Targets {
			if err := fr.assign(t, v); err != nil {
				return err
			}
		}
		return nil
	case *syntax.ExprStmt:
		// docstring
		return nil
	}
	return core.NewError(core.KindInternal, msgs.MsgModuleStatement)
}

// define binds a function of the contract under its symbol. Defaults are
// evaluated once, when the module is loaded.
func (fr *frame) define(def *syntax.FuncDef) error {
	name := def.Name
	fn, ok := fr.inst.contract.Function(name)
	if !ok {
		for _, candidate := range fr.inst.contract.Functions {
			if candidate.Symbol == name {
				fn, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return core.NewError(core.KindInternal, msgs.MsgUndefinedName, name)
	}
	f := &function{inst: fr.inst, fn: fn, defaults: make([]types.Value, len(fn.Params))}
	for i, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		v, err := fr.eval(p.Default)
		if err != nil {
			return err
		}
		f.defaults[i] = v
	}
	fr.inst.globals[fn.Symbol] = f
	return nil
}

func (fr *frame) execBlock(stmts []syntax.Stmt) (flow, types.Value, error) {
	for _, stmt := range stmts {
		fl, v, err := fr.exec(stmt)
		if err != nil {
			return flowNext, nil, core.Locate(err, fr.inst.name(), stmt.Position().Line)
		}
		if fl != flowNext {
			return fl, v, nil
		}
	}
	return flowNext, nil, nil
}

func (fr *frame) exec(stmt syntax.Stmt) (flow, types.Value, error) {
	if err := fr.rt.meter.ChargeStatement(); err != nil {
		return flowNext, nil, err
	}
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		_, err := fr.eval(s.Value)
		return flowNext, nil, err

	case *syntax.Assign:
		v, err := fr.eval(s.Value)
		if err != nil {
			return flowNext, nil, err
		}
		for _, t := range s.Targets {
			if err := fr.assign(t, v); err != nil {
				return flowNext, nil, err
			}
		}
		return flowNext, nil, nil

	case *syntax.AugAssign:
		return flowNext, nil, fr.augAssign(s)

	case *syntax.Return:
		if s.Value == nil {
			return flowReturn, types.None, nil
		}
		v, err := fr.eval(s.Value)
		if err != nil {
			return flowNext, nil, err
		}
		return flowReturn, v, nil

	case *syntax.If:
		test, err := fr.eval(s.Test)
		if err != nil {
			return flowNext, nil, err
		}
		if types.Truthy(test) {
			return fr.execBlock(s.Body)
		}
		return fr.execBlock(s.Else)

	case *syntax.While:
		for {
			test, err := fr.eval(s.Test)
			if err != nil {
				return flowNext, nil, err
			}
			if !types.Truthy(test) {
				return fr.execBlock(s.Else)
			}
			fl, v, err := fr.execBlock(s.Body)
			if err != nil || fl == flowReturn {
				return fl, v, err
			}
			if fl == flowBreak {
				return flowNext, nil, nil
			}
			if err := fr.rt.meter.ChargeStatement(); err != nil {
				return flowNext, nil, err
			}
		}

	case *syntax.For:
		return fr.execFor(s)

	case *syntax.Break:
		return flowBreak, nil, nil
	case *syntax.Continue:
		return flowContinue, nil, nil
	case *syntax.Pass:
		return flowNext, nil, nil

	case *syntax.Assert:
		test, err := fr.eval(s.Test)
		if err != nil {
			return flowNext, nil, err
		}
		if types.Truthy(test) {
			return flowNext, nil, nil
		}
		if s.Msg == nil {
			return flowNext, nil, core.NewError(core.KindAssertion, msgs.MsgAssertionNoMessage)
		}
		msg, err := fr.eval(s.Msg)
		if err != nil {
			return flowNext, nil, err
		}
		return flowNext, nil, core.NewError(core.KindAssertion, msgs.MsgAssertionFailed, types.ToStr(msg))
	}
	return flowNext, nil, core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, "statement")
}

func (fr *frame) execFor(s *syntax.For) (flow, types.Value, error) {
	iter, err := fr.eval(s.Iter)
	if err != nil {
		return flowNext, nil, err
	}
	var (
		result    flow
		resultVal types.Value
		broke     bool
	)
	err = forEach(fr.rt, iter, func(item types.Value) (bool, error) {
		if err := fr.assign(s.Target, item); err != nil {
			return false, err
		}
		fl, v, err := fr.execBlock(s.Body)
		if err != nil {
			return false, err
		}
		switch fl {
		case flowReturn:
			result, resultVal = fl, v
			return false, nil
		case flowBreak:
			broke = true
			return false, nil
		}
		return true, nil
	})
	if err != nil || result == flowReturn {
		return result, resultVal, err
	}
	if broke {
		return flowNext, nil, nil
	}
	return fr.execBlock(s.Else)
}

func (fr *frame) assign(target syntax.Expr, v types.Value) error {
	switch t := target.(type) {
	case *syntax.Name:
		fr.store(t.Id, v)
		return nil
	case *syntax.TupleExpr:
		return fr.unpack(t.Elts, v)
	case *syntax.ListExpr:
		return fr.unpack(t.Elts, v)
	case *syntax.Subscript:
		obj, err := fr.eval(t.Value)
		if err != nil {
			return err
		}
		index, err := fr.eval(t.Index)
		if err != nil {
			return err
		}
		return setItem(obj, index, v)
	case *syntax.Attribute:
		obj, err := fr.eval(t.Value)
		if err != nil {
			return err
		}
		return core.NewError(core.KindAttribute, msgs.MsgNoAttribute, obj.TypeName(), t.Attr)
	}
	return core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, "assignment target")
}

func (fr *frame) unpack(targets []syntax.Expr, v types.Value) error {
	items, err := materialize(fr.rt, v)
	if err != nil {
		return err
	}
	if len(items) != len(targets) {
		return core.NewError(core.KindValue, msgs.MsgUnpackCount, len(targets), len(items))
	}
	for i, t := range targets {
		if err := fr.assign(t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (fr *frame) augAssign(s *syntax.AugAssign) error {
	rhs, err := fr.eval(s.Value)
	if err != nil {
		return err
	}
	apply := func(cur types.Value) (types.Value, error) {
		if l, ok := cur.(*types.List); ok && s.Op == "+" {
			items, err := materialize(fr.rt, rhs)
			if err != nil {
				return nil, err
			}
			if len(l.Items)+len(items) > types.MaxSequenceLength {
				return nil, core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(l.Items)+len(items), types.MaxSequenceLength)
			}
			l.Items = append(l.Items, items...)
			return l, nil
		}
		return types.BinaryOp(s.Op, cur, rhs, fr.rt.limits.MaxIntBits)
	}
	switch t := s.Target.(type) {
	case *syntax.Name:
		cur, err := fr.lookup(t.Id)
		if err != nil {
			return err
		}
		v, err := apply(cur)
		if err != nil {
			return err
		}
		fr.store(t.Id, v)
		return nil
	case *syntax.Subscript:
		obj, err := fr.eval(t.Value)
		if err != nil {
			return err
		}
		index, err := fr.eval(t.Index)
		if err != nil {
			return err
		}
		cur, err := getItem(obj, index)
		if err != nil {
			return err
		}
		v, err := apply(cur)
		if err != nil {
			return err
		}
		return setItem(obj, index, v)
	case *syntax.Attribute:
		obj, err := fr.eval(t.Value)
		if err != nil {
			return err
		}
		return core.NewError(core.KindAttribute, msgs.MsgNoAttribute, obj.TypeName(), t.Attr)
	}
	return core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, "assignment target")
}

func (fr *frame) eval(e syntax.Expr) (types.Value, error) {
	switch x := e.(type) {
	case *syntax.Name:
		return fr.lookup(x.Id)

	case *syntax.BasicLit:
		return literal(x)

	case *syntax.NameConst:
		switch x.Value {
		case "True":
			return types.Bool(true), nil
		case "False":
			return types.Bool(false), nil
		case "None":
			return types.None, nil
		}

	case *syntax.BinOp:
		l, err := fr.eval(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := fr.eval(x.Right)
		if err != nil {
			return nil, err
		}
		return types.BinaryOp(x.Op, l, r, fr.rt.limits.MaxIntBits)

	case *syntax.UnaryOp:
		v, err := fr.eval(x.Operand)
		if err != nil {
			return nil, err
		}
		if x.Op == "not" {
			return types.Bool(!types.Truthy(v)), nil
		}
		return types.UnaryOp(x.Op, v)

	case *syntax.BoolOp:
		var v types.Value
		for _, operand := range x.Values {
			var err error
			if v, err = fr.eval(operand); err != nil {
				return nil, err
			}
			if truth := types.Truthy(v); (x.Op == "and" && !truth) || (x.Op == "or" && truth) {
				return v, nil
			}
		}
		return v, nil

	case *syntax.Compare:
		return fr.compare(x)

	case *syntax.IfExp:
		test, err := fr.eval(x.Test)
		if err != nil {
			return nil, err
		}
		if types.Truthy(test) {
			return fr.eval(x.Body)
		}
		return fr.eval(x.Else)

	case *syntax.Call:
		return fr.call(x)

	case *syntax.Attribute:
		obj, err := fr.eval(x.Value)
		if err != nil {
			return nil, err
		}
		return getAttr(fr.rt, obj, x.Attr)

	case *syntax.Subscript:
		obj, err := fr.eval(x.Value)
		if err != nil {
			return nil, err
		}
		if sl, ok := x.Index.(*syntax.Slice); ok {
			return fr.slice(obj, sl)
		}
		index, err := fr.eval(x.Index)
		if err != nil {
			return nil, err
		}
		return getItem(obj, index)

	case *syntax.ListExpr:
		items, err := fr.evalAll(x.Elts)
		if err != nil {
			return nil, err
		}
		return types.NewList(items...), nil

	case *syntax.TupleExpr:
		items, err := fr.evalAll(x.Elts)
		if err != nil {
			return nil, err
		}
		return types.Tuple(items), nil

	case *syntax.DictExpr:
		d := types.NewDict()
		for i, k := range x.Keys {
			key, err := fr.eval(k)
			if err != nil {
				return nil, err
			}
			v, err := fr.eval(x.Values[i])
			if err != nil {
				return nil, err
			}
			if err := d.Set(key, v); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *syntax.Comprehension:
		return fr.comprehension(x)
	}
	return nil, core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, "expression")
}

func (fr *frame) evalAll(exprs []syntax.Expr) ([]types.Value, error) {
	out := make([]types.Value, len(exprs))
	for i, e := range exprs {
		v, err := fr.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func literal(x *syntax.BasicLit) (types.Value, error) {
	switch x.Kind {
	case syntax.STRING:
		return types.Str(x.Value), nil
	case syntax.INT:
		i, ok := types.ParseInt(x.Value)
		if !ok {
			return nil, core.NewError(core.KindArithmetic, msgs.MsgInvalidLiteral, "int", x.Value)
		}
		return i, nil
	case syntax.FLOAT:
		return types.NewDecimal(x.Value)
	}
	return nil, core.NewError(core.KindInternal, msgs.MsgInvalidLiteral, x.Kind.String(), x.Value)
}

func (fr *frame) compare(x *syntax.Compare) (types.Value, error) {
	left, err := fr.eval(x.Left)
	if err != nil {
		return nil, err
	}
	for i, op := range x.Ops {
		right, err := fr.eval(x.Comparators[i])
		if err != nil {
			return nil, err
		}
		ok, err := compareOp(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return types.Bool(false), nil
		}
		left = right
	}
	return types.Bool(true), nil
}

func compareOp(op string, a, b types.Value) (bool, error) {
	switch op {
	case "==":
		return types.Equal(a, b), nil
	case "!=":
		return !types.Equal(a, b), nil
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in", "not in":
		switch c := b.(type) {
		case *state.Hash:
			return false, core.NewError(core.KindType, msgs.MsgMembershipOnHash, c.TypeName())
		case *state.Variable:
			return false, core.NewError(core.KindType, msgs.MsgMembershipOnHash, c.TypeName())
		}
		found, err := types.Contains(b, a)
		if err != nil {
			return false, err
		}
		return found == (op == "in"), nil
	}
	c, err := types.Compare(op, a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, op)
}

// identical implements `is`. Immutable values compare by value and type.
func identical(a, b types.Value) bool {
	switch x := a.(type) {
	case *types.List, *types.Dict:
		return a == b
	case types.Int, types.Decimal, types.Str, types.Bool, types.NoneType, types.Tuple:
		return a.TypeName() == b.TypeName() && types.Equal(a, b)
	default:
		return x == b
	}
}

func (fr *frame) call(x *syntax.Call) (types.Value, error) {
	fn, err := fr.eval(x.Func)
	if err != nil {
		return nil, err
	}
	args, err := fr.evalAll(x.Args)
	if err != nil {
		return nil, err
	}
	var kw *kwargs
	if len(x.Keywords) > 0 {
		kw = newKwargs()
		for _, k := range x.Keywords {
			v, err := fr.eval(k.Value)
			if err != nil {
				return nil, err
			}
			if !kw.set(k.Name, v) {
				return nil, core.NewError(core.KindType, msgs.MsgDuplicateArgument, callableName(fn), k.Name)
			}
		}
	}
	return callValue(fr.rt, fn, args, kw)
}

func callValue(rt *runtime, fn types.Value, args []types.Value, kw *kwargs) (types.Value, error) {
	switch f := fn.(type) {
	case callable:
		return f.call(rt, args, kw)
	case *events.Schema:
		return emit(rt, f, args, kw)
	}
	return nil, core.NewError(core.KindType, msgs.MsgNotCallable, fn.TypeName())
}

func callableName(fn types.Value) string {
	switch f := fn.(type) {
	case *function:
		return f.fn.Name
	case *builtin:
		return f.name
	case *method:
		return f.name
	case *exportedFunc:
		return f.name
	}
	return fn.TypeName()
}

// emit records an event. The payload is a single dict or keyword
// arguments.
func emit(rt *runtime, s *events.Schema, args []types.Value, kw *kwargs) (types.Value, error) {
	var data *types.Dict
	switch {
	case len(args) == 1 && kw.len() == 0:
		d, ok := args[0].(*types.Dict)
		if !ok {
			return nil, core.NewError(core.KindType, msgs.MsgArgumentType, "data", s.Event, "dict", args[0].TypeName())
		}
		data = d
	case len(args) == 0:
		data = types.NewDict()
		if kw != nil {
			for _, name := range kw.names {
				if err := data.Set(types.Str(name), kw.values[name]); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, core.NewError(core.KindType, msgs.MsgArgumentCount, s.Event, 1, len(args))
	}
	if err := rt.events.Emit(s, data, rt.current(), rt.block); err != nil {
		return nil, err
	}
	return types.None, nil
}

func (fr *frame) slice(obj types.Value, sl *syntax.Slice) (types.Value, error) {
	bound := func(e syntax.Expr) (types.Value, error) {
		if e == nil {
			return types.None, nil
		}
		return fr.eval(e)
	}
	lower, err := bound(sl.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := bound(sl.Upper)
	if err != nil {
		return nil, err
	}
	step, err := bound(sl.Step)
	if err != nil {
		return nil, err
	}
	return sliceValue(obj, lower, upper, step)
}

func (fr *frame) comprehension(x *syntax.Comprehension) (types.Value, error) {
	inner := &frame{rt: fr.rt, inst: fr.inst, locals: newScope(nil, fr.locals)}
	var (
		items []types.Value
		dict  *types.Dict
	)
	if x.Kind == "dict" {
		dict = types.NewDict()
	} else if x.Kind == "set" {
		return nil, core.NewError(core.KindInternal, msgs.MsgDisallowedSyntax, "set comprehension")
	}
	var loop func(level int) error
	loop = func(level int) error {
		if level == len(x.Generators) {
			if dict != nil {
				k, err := inner.eval(x.Key)
				if err != nil {
					return err
				}
				v, err := inner.eval(x.Elt)
				if err != nil {
					return err
				}
				return dict.Set(k, v)
			}
			v, err := inner.eval(x.Elt)
			if err != nil {
				return err
			}
			if len(items) >= types.MaxSequenceLength {
				return core.NewError(core.KindResourceLimit, msgs.MsgSequenceTooLong, len(items)+1, types.MaxSequenceLength)
			}
			items = append(items, v)
			return nil
		}
		g := x.Generators[level]
		// the outermost iterable is evaluated in the enclosing scope
		evaluator := inner
		if level == 0 {
			evaluator = fr
		}
		iter, err := evaluator.eval(g.Iter)
		if err != nil {
			return err
		}
		return forEach(fr.rt, iter, func(item types.Value) (bool, error) {
			if err := inner.assign(g.Target, item); err != nil {
				return false, err
			}
			for _, cond := range g.Ifs {
				ok, err := inner.eval(cond)
				if err != nil {
					return false, err
				}
				if !types.Truthy(ok) {
					return true, nil
				}
			}
			return true, loop(level+1)
		})
	}
	if err := loop(0); err != nil {
		return nil, err
	}
	if dict != nil {
		return dict, nil
	}
	return types.NewList(items...), nil
}
