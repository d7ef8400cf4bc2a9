package syntax

// Inspect traverses the AST in depth-first order, like go/ast.Inspect: f is
// called for each node, children are visited if it returns true, and f(nil)
// is called after the children of a node.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	walkChildren(node, f)
	f(nil)
}

// A Visitor's Visit method is invoked for each node encountered by Walk. If
// the result visitor w is not nil, Walk visits each of the children of node
// with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses the AST in depth-first order, like go/ast.Walk.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	walkChildren(node, func(child Node) bool {
		Walk(v, child)
		return false
	})
	v.Visit(nil)
}

func inspectExpr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectExprs(list []Expr, f func(Node) bool) {
	for _, e := range list {
		inspectExpr(e, f)
	}
}

func inspectStmts(list []Stmt, f func(Node) bool) {
	for _, s := range list {
		Inspect(s, f)
	}
}

func inspectParams(list []*Param, f func(Node) bool) {
	for _, p := range list {
		Inspect(p, f)
	}
}

func walkChildren(node Node, f func(Node) bool) {
	switch n := node.(type) {
	case *Param:
		inspectExpr(n.Annotation, f)
		inspectExpr(n.Default, f)
	case *FuncDef:
		inspectExprs(n.Decorators, f)
		inspectParams(n.Params, f)
		inspectExpr(n.Returns, f)
		inspectStmts(n.Body, f)
	case *ClassDef:
		inspectExprs(n.Decorators, f)
		inspectExprs(n.Bases, f)
		inspectStmts(n.Body, f)
	case *Return:
		inspectExpr(n.Value, f)
	case *Assign:
		inspectExprs(n.Targets, f)
		inspectExpr(n.Value, f)
	case *AugAssign:
		inspectExpr(n.Target, f)
		inspectExpr(n.Value, f)
	case *AnnAssign:
		inspectExpr(n.Target, f)
		inspectExpr(n.Annotation, f)
		inspectExpr(n.Value, f)
	case *If:
		inspectExpr(n.Test, f)
		inspectStmts(n.Body, f)
		inspectStmts(n.Else, f)
	case *For:
		inspectExpr(n.Target, f)
		inspectExpr(n.Iter, f)
		inspectStmts(n.Body, f)
		inspectStmts(n.Else, f)
	case *While:
		inspectExpr(n.Test, f)
		inspectStmts(n.Body, f)
		inspectStmts(n.Else, f)
	case *ExprStmt:
		inspectExpr(n.Value, f)
	case *Assert:
		inspectExpr(n.Test, f)
		inspectExpr(n.Msg, f)
	case *Try:
		inspectStmts(n.Body, f)
		for _, h := range n.Handlers {
			Inspect(h, f)
		}
		inspectStmts(n.Else, f)
		inspectStmts(n.Finally, f)
	case *ExceptHandler:
		inspectExpr(n.Type, f)
		inspectStmts(n.Body, f)
	case *Raise:
		inspectExpr(n.Exc, f)
		inspectExpr(n.Cause, f)
	case *With:
		inspectExprs(n.Items, f)
		inspectExprs(n.Targets, f)
		inspectStmts(n.Body, f)
	case *Delete:
		inspectExprs(n.Targets, f)
	case *BinOp:
		inspectExpr(n.Left, f)
		inspectExpr(n.Right, f)
	case *UnaryOp:
		inspectExpr(n.Operand, f)
	case *BoolOp:
		inspectExprs(n.Values, f)
	case *Compare:
		inspectExpr(n.Left, f)
		inspectExprs(n.Comparators, f)
	case *Call:
		inspectExpr(n.Func, f)
		inspectExprs(n.Args, f)
		for _, k := range n.Keywords {
			Inspect(k, f)
		}
	case *Keyword:
		inspectExpr(n.Value, f)
	case *Attribute:
		inspectExpr(n.Value, f)
	case *Subscript:
		inspectExpr(n.Value, f)
		inspectExpr(n.Index, f)
	case *Slice:
		inspectExpr(n.Lower, f)
		inspectExpr(n.Upper, f)
		inspectExpr(n.Step, f)
	case *ListExpr:
		inspectExprs(n.Elts, f)
	case *TupleExpr:
		inspectExprs(n.Elts, f)
	case *SetExpr:
		inspectExprs(n.Elts, f)
	case *DictExpr:
		for i := range n.Values {
			inspectExpr(n.Keys[i], f)
			inspectExpr(n.Values[i], f)
		}
	case *IfExp:
		inspectExpr(n.Test, f)
		inspectExpr(n.Body, f)
		inspectExpr(n.Else, f)
	case *Comprehension:
		for _, g := range n.Generators {
			inspectExpr(g.Target, f)
			inspectExpr(g.Iter, f)
			inspectExprs(g.Ifs, f)
		}
		inspectExpr(n.Key, f)
		inspectExpr(n.Elt, f)
	case *Lambda:
		inspectParams(n.Params, f)
		inspectExpr(n.Body, f)
	case *Await:
		inspectExpr(n.Value, f)
	case *Yield:
		inspectExpr(n.Value, f)
	case *Starred:
		inspectExpr(n.Value, f)
	case *NamedExpr:
		inspectExpr(n.Target, f)
		inspectExpr(n.Value, f)
	}
}
