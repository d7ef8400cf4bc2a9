package syntax

import (
	"fmt"
)

// Parse scans and parses src into a Module.
func Parse(src string) (*Module, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.module()
}

type parser struct {
	toks []Token
	i    int
}

// ---- token helpers ----

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	t := p.peek()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *parser) at(s string) bool { return p.peek().Is(s) }

func (p *parser) atType(tt TokenType) bool { return p.peek().Type == tt }

func (p *parser) match(s string) bool {
	if p.at(s) {
		p.i++
		return true
	}
	return false
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return &Error{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected() error {
	t := p.peek()
	switch t.Type {
	case EOF:
		return p.errorf(t, "unexpected end of input")
	case NEWLINE:
		return p.errorf(t, "unexpected end of line")
	case INDENT:
		return p.errorf(t, "unexpected indent")
	case DEDENT:
		return p.errorf(t, "unexpected dedent")
	}
	return p.errorf(t, "invalid syntax near '%s'", t.Lexeme)
}

func (p *parser) need(s string) (Token, error) {
	if p.at(s) {
		return p.next(), nil
	}
	t := p.peek()
	if t.Type == EOF || t.Type == NEWLINE {
		return t, p.errorf(t, "expected '%s'", s)
	}
	return t, p.errorf(t, "expected '%s', found '%s'", s, t.Lexeme)
}

func (p *parser) needName() (Token, error) {
	if p.atType(NAME) {
		return p.next(), nil
	}
	t := p.peek()
	return t, p.errorf(t, "expected a name, found '%s'", t.Lexeme)
}

func (p *parser) needType(tt TokenType) error {
	if p.atType(tt) {
		p.i++
		return nil
	}
	return p.unexpected()
}

func pos(t Token) Pos { return Pos{Line: t.Line, Col: t.Col} }

// ---- statements ----

func (p *parser) module() (*Module, error) {
	mod := &Module{}
	for !p.atType(EOF) {
		if p.atType(NEWLINE) {
			p.i++
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		mod.Body = append(mod.Body, stmts...)
	}
	return mod, nil
}

func (p *parser) statement() ([]Stmt, error) {
	t := p.peek()
	if t.Type == INDENT {
		return nil, p.unexpected()
	}
	switch {
	case t.Is("@"):
		s, err := p.decorated()
		return []Stmt{s}, err
	case t.Is("def"):
		s, err := p.funcDef(nil, false)
		return []Stmt{s}, err
	case t.Is("class"):
		s, err := p.classDef(nil)
		return []Stmt{s}, err
	case t.Is("if"):
		s, err := p.ifStmt()
		return []Stmt{s}, err
	case t.Is("while"):
		s, err := p.whileStmt()
		return []Stmt{s}, err
	case t.Is("for"):
		s, err := p.forStmt(false)
		return []Stmt{s}, err
	case t.Is("try"):
		s, err := p.tryStmt()
		return []Stmt{s}, err
	case t.Is("with"):
		s, err := p.withStmt(false)
		return []Stmt{s}, err
	case t.Is("async"):
		p.next()
		var s Stmt
		var err error
		switch {
		case p.at("def"):
			s, err = p.funcDef(nil, true)
		case p.at("for"):
			s, err = p.forStmt(true)
		case p.at("with"):
			s, err = p.withStmt(true)
		default:
			return nil, p.unexpected()
		}
		return []Stmt{s}, err
	}
	return p.simpleStatements()
}

// simpleStatements parses `small (';' small)* NEWLINE`.
func (p *parser) simpleStatements() ([]Stmt, error) {
	var out []Stmt
	for {
		s, err := p.smallStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !p.match(";") {
			break
		}
		if p.atType(NEWLINE) || p.atType(EOF) {
			break
		}
	}
	if p.atType(EOF) {
		return out, nil
	}
	if err := p.needType(NEWLINE); err != nil {
		return nil, err
	}
	return out, nil
}

// block parses ':' followed by an indented suite or a same-line suite.
func (p *parser) block() ([]Stmt, error) {
	if _, err := p.need(":"); err != nil {
		return nil, err
	}
	if !p.atType(NEWLINE) {
		return p.simpleStatements()
	}
	p.i++
	if !p.atType(INDENT) {
		return nil, p.errorf(p.peek(), "expected an indented block")
	}
	p.i++
	var body []Stmt
	for !p.atType(DEDENT) && !p.atType(EOF) {
		if p.atType(NEWLINE) {
			p.i++
			continue
		}
		stmts, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if p.atType(DEDENT) {
		p.i++
	}
	return body, nil
}

func (p *parser) decorated() (Stmt, error) {
	var decorators []Expr
	for p.at("@") {
		p.next()
		d, err := p.namedExprTest()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if err := p.needType(NEWLINE); err != nil {
			return nil, err
		}
	}
	switch {
	case p.at("def"):
		return p.funcDef(decorators, false)
	case p.at("class"):
		return p.classDef(decorators)
	case p.at("async"):
		p.next()
		if p.at("def") {
			return p.funcDef(decorators, true)
		}
	}
	return nil, p.unexpected()
}

func (p *parser) funcDef(decorators []Expr, async bool) (Stmt, error) {
	kw := p.next()
	name, err := p.needName()
	if err != nil {
		return nil, err
	}
	if _, err := p.need("("); err != nil {
		return nil, err
	}
	params, err := p.params(")", true)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(")"); err != nil {
		return nil, err
	}
	var returns Expr
	if p.match("->") {
		if returns, err = p.test(); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &FuncDef{
		Pos:        pos(kw),
		Name:       name.Lexeme,
		Params:     params,
		Returns:    returns,
		Decorators: decorators,
		Body:       body,
		Async:      async,
	}, nil
}

// params parses a parameter list up to the closing token. Annotations are
// only accepted for def, not lambda.
func (p *parser) params(closing string, annotations bool) ([]*Param, error) {
	var out []*Param
	for !p.at(closing) {
		t := p.peek()
		param := &Param{Pos: pos(t)}
		switch {
		case p.match("**"):
			param.Star = 2
		case p.match("*"):
			param.Star = 1
		case p.match("/"):
			if !p.match(",") && !p.at(closing) {
				return nil, p.unexpected()
			}
			continue
		}
		if param.Star == 1 && (p.at(",") || p.at(closing)) {
			out = append(out, param)
			if !p.match(",") {
				break
			}
			continue
		}
		name, err := p.needName()
		if err != nil {
			return nil, err
		}
		param.Name = name.Lexeme
		if annotations && p.match(":") {
			if param.Annotation, err = p.test(); err != nil {
				return nil, err
			}
		}
		if param.Star == 0 && p.match("=") {
			if param.Default, err = p.test(); err != nil {
				return nil, err
			}
		}
		out = append(out, param)
		if !p.match(",") {
			break
		}
	}
	return out, nil
}

func (p *parser) classDef(decorators []Expr) (Stmt, error) {
	kw := p.next()
	name, err := p.needName()
	if err != nil {
		return nil, err
	}
	var bases []Expr
	if p.match("(") {
		args, kwargs, err := p.arguments(")")
		if err != nil {
			return nil, err
		}
		bases = args
		for _, k := range kwargs {
			bases = append(bases, k.Value)
		}
		if _, err := p.need(")"); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ClassDef{Pos: pos(kw), Name: name.Lexeme, Bases: bases, Decorators: decorators, Body: body}, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	kw := p.next()
	test, err := p.namedExprTest()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &If{Pos: pos(kw), Test: test, Body: body}
	switch {
	case p.at("elif"):
		elif, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		stmt.Else = []Stmt{elif}
	case p.match("else"):
		if stmt.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) whileStmt() (Stmt, error) {
	kw := p.next()
	test, err := p.namedExprTest()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &While{Pos: pos(kw), Test: test, Body: body}
	if p.match("else") {
		if stmt.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) forStmt(async bool) (Stmt, error) {
	kw := p.next()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if _, err := p.need("in"); err != nil {
		return nil, err
	}
	iter, err := p.testList(false)
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &For{Pos: pos(kw), Target: target, Iter: iter, Body: body, Async: async}
	if p.match("else") {
		if stmt.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) tryStmt() (Stmt, error) {
	kw := p.next()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &Try{Pos: pos(kw), Body: body}
	for p.at("except") {
		t := p.next()
		p.match("*")
		h := &ExceptHandler{Pos: pos(t)}
		if !p.at(":") {
			if h.Type, err = p.test(); err != nil {
				return nil, err
			}
			if p.match("as") {
				name, err := p.needName()
				if err != nil {
					return nil, err
				}
				h.Name = name.Lexeme
			}
		}
		if h.Body, err = p.block(); err != nil {
			return nil, err
		}
		stmt.Handlers = append(stmt.Handlers, h)
	}
	if p.match("else") {
		if stmt.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.match("finally") {
		if stmt.Finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if len(stmt.Handlers) == 0 && stmt.Finally == nil {
		return nil, p.errorf(kw, "try statement needs an except or finally clause")
	}
	return stmt, nil
}

func (p *parser) withStmt(async bool) (Stmt, error) {
	kw := p.next()
	stmt := &With{Pos: pos(kw), Async: async}
	for {
		item, err := p.test()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if p.match("as") {
			target, err := p.expr()
			if err != nil {
				return nil, err
			}
			stmt.Targets = append(stmt.Targets, target)
		}
		if !p.match(",") {
			break
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *parser) smallStatement() (Stmt, error) {
	t := p.peek()
	switch {
	case t.Is("pass"):
		p.next()
		return &Pass{Pos: pos(t)}, nil
	case t.Is("break"):
		p.next()
		return &Break{Pos: pos(t)}, nil
	case t.Is("continue"):
		p.next()
		return &Continue{Pos: pos(t)}, nil
	case t.Is("return"):
		p.next()
		stmt := &Return{Pos: pos(t)}
		if !p.endOfSimple() {
			v, err := p.testList(true)
			if err != nil {
				return nil, err
			}
			stmt.Value = v
		}
		return stmt, nil
	case t.Is("raise"):
		p.next()
		stmt := &Raise{Pos: pos(t)}
		if !p.endOfSimple() {
			var err error
			if stmt.Exc, err = p.test(); err != nil {
				return nil, err
			}
			if p.match("from") {
				if stmt.Cause, err = p.test(); err != nil {
					return nil, err
				}
			}
		}
		return stmt, nil
	case t.Is("global"), t.Is("nonlocal"):
		p.next()
		stmt := &Global{Pos: pos(t), Nonlocal: t.Lexeme == "nonlocal"}
		for {
			name, err := p.needName()
			if err != nil {
				return nil, err
			}
			stmt.Names = append(stmt.Names, name.Lexeme)
			if !p.match(",") {
				break
			}
		}
		return stmt, nil
	case t.Is("del"):
		p.next()
		targets, err := p.exprList()
		if err != nil {
			return nil, err
		}
		return &Delete{Pos: pos(t), Targets: targets}, nil
	case t.Is("assert"):
		p.next()
		stmt := &Assert{Pos: pos(t)}
		var err error
		if stmt.Test, err = p.test(); err != nil {
			return nil, err
		}
		if p.match(",") {
			if stmt.Msg, err = p.test(); err != nil {
				return nil, err
			}
		}
		return stmt, nil
	case t.Is("import"):
		p.next()
		stmt := &Import{Pos: pos(t)}
		for {
			name, err := p.dottedName()
			if err != nil {
				return nil, err
			}
			if p.match("as") {
				if _, err := p.needName(); err != nil {
					return nil, err
				}
			}
			stmt.Names = append(stmt.Names, name)
			if !p.match(",") {
				break
			}
		}
		return stmt, nil
	case t.Is("from"):
		return p.fromImport()
	}
	return p.exprStatement()
}

func (p *parser) endOfSimple() bool {
	return p.atType(NEWLINE) || p.atType(EOF) || p.at(";")
}

func (p *parser) dottedName() (string, error) {
	name, err := p.needName()
	if err != nil {
		return "", err
	}
	out := name.Lexeme
	for p.match(".") {
		part, err := p.needName()
		if err != nil {
			return "", err
		}
		out += "." + part.Lexeme
	}
	return out, nil
}

func (p *parser) fromImport() (Stmt, error) {
	kw := p.next()
	from := ""
	for p.at(".") || p.at("...") {
		from += p.next().Lexeme
	}
	if !p.at("import") {
		name, err := p.dottedName()
		if err != nil {
			return nil, err
		}
		from += name
	}
	if _, err := p.need("import"); err != nil {
		return nil, err
	}
	stmt := &Import{Pos: pos(kw), From: from}
	if p.match("*") {
		stmt.Names = []string{"*"}
		return stmt, nil
	}
	paren := p.match("(")
	for {
		name, err := p.needName()
		if err != nil {
			return nil, err
		}
		if p.match("as") {
			if _, err := p.needName(); err != nil {
				return nil, err
			}
		}
		stmt.Names = append(stmt.Names, name.Lexeme)
		if !p.match(",") || (paren && p.at(")")) {
			break
		}
	}
	if paren {
		if _, err := p.need(")"); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%",
	"**=": "**", ">>=": ">>", "<<=": "<<", "&=": "&", "|=": "|", "^=": "^",
	"@=": "@",
}

func (p *parser) exprStatement() (Stmt, error) {
	start := p.peek()
	first, err := p.testListStar()
	if err != nil {
		return nil, err
	}
	switch {
	case p.at(":"):
		p.next()
		ann, err := p.test()
		if err != nil {
			return nil, err
		}
		stmt := &AnnAssign{Pos: pos(start), Target: first, Annotation: ann}
		if p.match("=") {
			if stmt.Value, err = p.assignValue(); err != nil {
				return nil, err
			}
		}
		return stmt, nil
	case p.atType(OP) && augOps[p.peek().Lexeme] != "":
		op := augOps[p.next().Lexeme]
		value, err := p.assignValue()
		if err != nil {
			return nil, err
		}
		if err := checkTarget(first, false); err != nil {
			return nil, err
		}
		return &AugAssign{Pos: pos(start), Target: first, Op: op, Value: value}, nil
	case p.at("="):
		targets := []Expr{first}
		var value Expr
		for p.match("=") {
			if value, err = p.assignValue(); err != nil {
				return nil, err
			}
			if p.at("=") {
				targets = append(targets, value)
			}
		}
		for _, target := range targets {
			if err := checkTarget(target, true); err != nil {
				return nil, err
			}
		}
		return &Assign{Pos: pos(start), Targets: targets, Value: value}, nil
	}
	return &ExprStmt{Pos: pos(start), Value: first}, nil
}

func (p *parser) assignValue() (Expr, error) {
	if p.at("yield") {
		return p.yieldExpr()
	}
	return p.testListStar()
}

// checkTarget rejects assignment to expressions that cannot be stored to.
func checkTarget(e Expr, allowSeq bool) error {
	switch t := e.(type) {
	case *Name, *Attribute, *Subscript:
		return nil
	case *Starred:
		if allowSeq {
			return checkTarget(t.Value, false)
		}
	case *TupleExpr:
		if allowSeq {
			for _, elt := range t.Elts {
				if err := checkTarget(elt, true); err != nil {
					return err
				}
			}
			return nil
		}
	case *ListExpr:
		if allowSeq {
			for _, elt := range t.Elts {
				if err := checkTarget(elt, true); err != nil {
					return err
				}
			}
			return nil
		}
	}
	p := e.Position()
	return &Error{Line: p.Line, Col: p.Col, Msg: "cannot assign to expression"}
}

// ---- expressions ----

// testList parses `test (',' test)* [',']`, producing a tuple when a comma
// is present.
func (p *parser) testList(allowStar bool) (Expr, error) {
	start := p.peek()
	first, err := p.testOrStar(allowStar)
	if err != nil {
		return nil, err
	}
	if !p.at(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.match(",") {
		if p.endOfExprList() {
			break
		}
		e, err := p.testOrStar(allowStar)
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &TupleExpr{Pos: pos(start), Elts: elts}, nil
}

func (p *parser) testListStar() (Expr, error) {
	return p.testList(true)
}

func (p *parser) endOfExprList() bool {
	t := p.peek()
	if t.Type == NEWLINE || t.Type == EOF {
		return true
	}
	for _, s := range []string{"=", ")", "]", "}", ":", ";", "in"} {
		if t.Is(s) {
			return true
		}
	}
	return t.Type == OP && augOps[t.Lexeme] != ""
}

func (p *parser) testOrStar(allowStar bool) (Expr, error) {
	if allowStar && p.at("*") {
		t := p.next()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Starred{Pos: pos(t), Value: v}, nil
	}
	return p.test()
}

// targetList parses the target of a for loop or comprehension.
func (p *parser) targetList() (Expr, error) {
	start := p.peek()
	elts, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if len(elts) == 1 && !p.toks[p.i-1].Is(",") {
		if err := checkTarget(elts[0], true); err != nil {
			return nil, err
		}
		return elts[0], nil
	}
	target := &TupleExpr{Pos: pos(start), Elts: elts}
	return target, checkTarget(target, true)
}

// exprList parses `(expr|star_expr) (',' ...)* [',']`.
func (p *parser) exprList() ([]Expr, error) {
	var out []Expr
	for {
		e, err := p.starOrExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.match(",") || p.endOfExprList() {
			break
		}
	}
	return out, nil
}

func (p *parser) starOrExpr() (Expr, error) {
	if p.at("*") {
		t := p.next()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Starred{Pos: pos(t), Value: v}, nil
	}
	return p.expr()
}

func (p *parser) namedExprTest() (Expr, error) {
	start := p.peek()
	e, err := p.test()
	if err != nil {
		return nil, err
	}
	if p.match(":=") {
		if _, ok := e.(*Name); !ok {
			return nil, p.errorf(start, "cannot use assignment expression with this target")
		}
		v, err := p.test()
		if err != nil {
			return nil, err
		}
		return &NamedExpr{Pos: pos(start), Target: e, Value: v}, nil
	}
	return e, nil
}

func (p *parser) test() (Expr, error) {
	if p.at("lambda") {
		return p.lambda(true)
	}
	start := p.peek()
	body, err := p.orTest()
	if err != nil {
		return nil, err
	}
	if p.match("if") {
		test, err := p.orTest()
		if err != nil {
			return nil, err
		}
		if _, err := p.need("else"); err != nil {
			return nil, err
		}
		orElse, err := p.test()
		if err != nil {
			return nil, err
		}
		return &IfExp{Pos: pos(start), Test: test, Body: body, Else: orElse}, nil
	}
	return body, nil
}

// testNoCond is the condition form used inside comprehension filters.
func (p *parser) testNoCond() (Expr, error) {
	if p.at("lambda") {
		return p.lambda(false)
	}
	return p.orTest()
}

func (p *parser) lambda(cond bool) (Expr, error) {
	kw := p.next()
	params, err := p.params(":", false)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(":"); err != nil {
		return nil, err
	}
	var body Expr
	if cond {
		body, err = p.test()
	} else {
		body, err = p.testNoCond()
	}
	if err != nil {
		return nil, err
	}
	return &Lambda{Pos: pos(kw), Params: params, Body: body}, nil
}

func (p *parser) orTest() (Expr, error) {
	return p.boolOp("or", p.andTest)
}

func (p *parser) andTest() (Expr, error) {
	return p.boolOp("and", p.notTest)
}

func (p *parser) boolOp(op string, operand func() (Expr, error)) (Expr, error) {
	start := p.peek()
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.at(op) {
		return first, nil
	}
	values := []Expr{first}
	for p.match(op) {
		v, err := operand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &BoolOp{Pos: pos(start), Op: op, Values: values}, nil
}

func (p *parser) notTest() (Expr, error) {
	if p.at("not") {
		t := p.next()
		v, err := p.notTest()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Pos: pos(t), Op: "not", Operand: v}, nil
	}
	return p.comparison()
}

func (p *parser) compOp() (string, bool) {
	t := p.peek()
	switch {
	case t.Is("<"), t.Is(">"), t.Is("=="), t.Is(">="), t.Is("<="), t.Is("!="), t.Is("in"):
		p.next()
		return t.Lexeme, true
	case t.Is("not") && p.peekAt(1).Is("in"):
		p.next()
		p.next()
		return "not in", true
	case t.Is("is"):
		p.next()
		if p.match("not") {
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *parser) comparison() (Expr, error) {
	start := p.peek()
	left, err := p.expr()
	if err != nil {
		return nil, err
	}
	cmp := &Compare{Pos: pos(start), Left: left}
	for {
		op, ok := p.compOp()
		if !ok {
			break
		}
		right, err := p.expr()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, right)
	}
	if len(cmp.Ops) == 0 {
		return left, nil
	}
	return cmp, nil
}

// binary operator precedence levels, lowest first
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

func (p *parser) expr() (Expr, error) {
	return p.binary(0)
}

func (p *parser) binary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.factor()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		matched := false
		for _, op := range binaryLevels[level] {
			if t.Is(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.next()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinOp{Pos: left.Position(), Left: left, Op: t.Lexeme, Right: right}
	}
}

func (p *parser) factor() (Expr, error) {
	t := p.peek()
	if t.Is("-") || t.Is("+") || t.Is("~") {
		p.next()
		v, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Pos: pos(t), Op: t.Lexeme, Operand: v}, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.awaitPrimary()
	if err != nil {
		return nil, err
	}
	if p.match("**") {
		exp, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &BinOp{Pos: base.Position(), Left: base, Op: "**", Right: exp}, nil
	}
	return base, nil
}

func (p *parser) awaitPrimary() (Expr, error) {
	if p.at("await") {
		t := p.next()
		v, err := p.primary()
		if err != nil {
			return nil, err
		}
		return &Await{Pos: pos(t), Value: v}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	e, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.Is("("):
			p.next()
			args, kwargs, err := p.arguments(")")
			if err != nil {
				return nil, err
			}
			if _, err := p.need(")"); err != nil {
				return nil, err
			}
			e = &Call{Pos: e.Position(), Func: e, Args: args, Keywords: kwargs}
		case t.Is("["):
			p.next()
			idx, err := p.subscripts()
			if err != nil {
				return nil, err
			}
			if _, err := p.need("]"); err != nil {
				return nil, err
			}
			e = &Subscript{Pos: e.Position(), Value: e, Index: idx}
		case t.Is("."):
			p.next()
			name, err := p.needName()
			if err != nil {
				return nil, err
			}
			e = &Attribute{Pos: e.Position(), Value: e, Attr: name.Lexeme}
		default:
			return e, nil
		}
	}
}

// arguments parses a call argument list up to the closing token.
func (p *parser) arguments(closing string) ([]Expr, []*Keyword, error) {
	var args []Expr
	var kwargs []*Keyword
	for !p.at(closing) {
		t := p.peek()
		switch {
		case p.match("**"):
			v, err := p.test()
			if err != nil {
				return nil, nil, err
			}
			kwargs = append(kwargs, &Keyword{Pos: pos(t), Value: v})
		case p.match("*"):
			v, err := p.test()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, &Starred{Pos: pos(t), Value: v})
		case t.Type == NAME && p.peekAt(1).Is("="):
			p.next()
			p.next()
			v, err := p.test()
			if err != nil {
				return nil, nil, err
			}
			kwargs = append(kwargs, &Keyword{Pos: pos(t), Name: t.Lexeme, Value: v})
		default:
			v, err := p.namedExprTest()
			if err != nil {
				return nil, nil, err
			}
			if p.at("for") || p.at("async") {
				gen, err := p.comprehension("generator", nil, v, t)
				if err != nil {
					return nil, nil, err
				}
				v = gen
			}
			if len(kwargs) > 0 {
				return nil, nil, p.errorf(t, "positional argument follows keyword argument")
			}
			args = append(args, v)
		}
		if !p.match(",") {
			break
		}
	}
	return args, kwargs, nil
}

func (p *parser) subscripts() (Expr, error) {
	start := p.peek()
	first, err := p.subscript()
	if err != nil {
		return nil, err
	}
	if !p.at(",") {
		return first, nil
	}
	elts := []Expr{first}
	for p.match(",") {
		if p.at("]") {
			break
		}
		e, err := p.subscript()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &TupleExpr{Pos: pos(start), Elts: elts}, nil
}

func (p *parser) subscript() (Expr, error) {
	start := p.peek()
	var lower Expr
	var err error
	if !p.at(":") {
		if lower, err = p.namedExprTest(); err != nil {
			return nil, err
		}
		if !p.at(":") {
			return lower, nil
		}
	}
	p.next()
	s := &Slice{Pos: pos(start), Lower: lower}
	if !p.at("]") && !p.at(",") && !p.at(":") {
		if s.Upper, err = p.test(); err != nil {
			return nil, err
		}
	}
	if p.match(":") {
		if !p.at("]") && !p.at(",") {
			if s.Step, err = p.test(); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (p *parser) yieldExpr() (Expr, error) {
	kw := p.next()
	y := &Yield{Pos: pos(kw)}
	if p.match("from") {
		y.From = true
		v, err := p.test()
		if err != nil {
			return nil, err
		}
		y.Value = v
		return y, nil
	}
	if !p.endOfExprList() {
		v, err := p.testList(true)
		if err != nil {
			return nil, err
		}
		y.Value = v
	}
	return y, nil
}

func (p *parser) atom() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case NAME:
		p.next()
		return &Name{Pos: pos(t), Id: t.Lexeme}, nil
	case INT, FLOAT:
		p.next()
		return &BasicLit{Pos: pos(t), Kind: t.Type, Value: t.Lexeme}, nil
	case STRING:
		p.next()
		value := t.Value
		for p.atType(STRING) {
			value += p.next().Value
		}
		return &BasicLit{Pos: pos(t), Kind: STRING, Value: value}, nil
	case KEYWORD:
		switch t.Lexeme {
		case "True", "False", "None":
			p.next()
			return &NameConst{Pos: pos(t), Value: t.Lexeme}, nil
		}
	case OP:
		switch t.Lexeme {
		case "...":
			p.next()
			return &NameConst{Pos: pos(t), Value: "..."}, nil
		case "(":
			return p.parenAtom()
		case "[":
			return p.listAtom()
		case "{":
			return p.dictOrSetAtom()
		}
	}
	return nil, p.unexpected()
}

func (p *parser) parenAtom() (Expr, error) {
	open := p.next()
	if p.match(")") {
		return &TupleExpr{Pos: pos(open)}, nil
	}
	if p.at("yield") {
		y, err := p.yieldExpr()
		if err != nil {
			return nil, err
		}
		_, err = p.need(")")
		return y, err
	}
	first, err := p.testOrStarNamed()
	if err != nil {
		return nil, err
	}
	if p.at("for") || p.at("async") {
		gen, err := p.comprehension("generator", nil, first, open)
		if err != nil {
			return nil, err
		}
		_, err = p.need(")")
		return gen, err
	}
	if p.match(")") {
		if _, ok := first.(*Starred); ok {
			return nil, p.errorf(open, "cannot use starred expression here")
		}
		return first, nil
	}
	elts := []Expr{first}
	for p.match(",") {
		if p.at(")") {
			break
		}
		e, err := p.testOrStarNamed()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.need(")"); err != nil {
		return nil, err
	}
	return &TupleExpr{Pos: pos(open), Elts: elts}, nil
}

func (p *parser) testOrStarNamed() (Expr, error) {
	if p.at("*") {
		return p.testOrStar(true)
	}
	return p.namedExprTest()
}

func (p *parser) listAtom() (Expr, error) {
	open := p.next()
	if p.match("]") {
		return &ListExpr{Pos: pos(open)}, nil
	}
	first, err := p.testOrStarNamed()
	if err != nil {
		return nil, err
	}
	if p.at("for") || p.at("async") {
		comp, err := p.comprehension("list", nil, first, open)
		if err != nil {
			return nil, err
		}
		_, err = p.need("]")
		return comp, err
	}
	elts := []Expr{first}
	for p.match(",") {
		if p.at("]") {
			break
		}
		e, err := p.testOrStarNamed()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.need("]"); err != nil {
		return nil, err
	}
	return &ListExpr{Pos: pos(open), Elts: elts}, nil
}

func (p *parser) dictOrSetAtom() (Expr, error) {
	open := p.next()
	if p.match("}") {
		return &DictExpr{Pos: pos(open)}, nil
	}
	// set display or set comprehension
	if p.at("*") || !p.isDictEntry() {
		first, err := p.testOrStarNamed()
		if err != nil {
			return nil, err
		}
		if p.at("for") || p.at("async") {
			comp, err := p.comprehension("set", nil, first, open)
			if err != nil {
				return nil, err
			}
			_, err = p.need("}")
			return comp, err
		}
		elts := []Expr{first}
		for p.match(",") {
			if p.at("}") {
				break
			}
			e, err := p.testOrStarNamed()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if _, err := p.need("}"); err != nil {
			return nil, err
		}
		return &SetExpr{Pos: pos(open), Elts: elts}, nil
	}
	d := &DictExpr{Pos: pos(open)}
	for !p.at("}") {
		if p.match("**") {
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, v)
		} else {
			k, err := p.test()
			if err != nil {
				return nil, err
			}
			if _, err := p.need(":"); err != nil {
				return nil, err
			}
			v, err := p.test()
			if err != nil {
				return nil, err
			}
			if len(d.Keys) == 0 && (p.at("for") || p.at("async")) {
				comp, err := p.comprehension("dict", k, v, open)
				if err != nil {
					return nil, err
				}
				_, err = p.need("}")
				return comp, err
			}
			d.Keys = append(d.Keys, k)
			d.Values = append(d.Values, v)
		}
		if !p.match(",") {
			break
		}
	}
	if _, err := p.need("}"); err != nil {
		return nil, err
	}
	return d, nil
}

// isDictEntry looks ahead for a ':' at bracket depth zero before the next
// ',' or '}' to tell a dict display from a set display.
func (p *parser) isDictEntry() bool {
	if p.at("**") {
		return true
	}
	depth := 0
	for i := p.i; i < len(p.toks); i++ {
		t := p.toks[i]
		switch {
		case t.Is("("), t.Is("["), t.Is("{"):
			depth++
		case t.Is(")"), t.Is("]"), t.Is("}"):
			if depth == 0 {
				return false
			}
			depth--
		case depth == 0 && t.Is(","):
			return false
		case depth == 0 && t.Is(":"):
			return true
		case depth == 0 && t.Is("lambda"):
			return false
		case t.Type == EOF:
			return false
		}
	}
	return false
}

func (p *parser) comprehension(kind string, key, elt Expr, open Token) (Expr, error) {
	comp := &Comprehension{Pos: pos(open), Kind: kind, Key: key, Elt: elt}
	for p.at("for") || p.at("async") {
		gen := &Generator{Async: p.match("async")}
		if _, err := p.need("for"); err != nil {
			return nil, err
		}
		target, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if _, err := p.need("in"); err != nil {
			return nil, err
		}
		iter, err := p.orTest()
		if err != nil {
			return nil, err
		}
		gen.Target, gen.Iter = target, iter
		for p.match("if") {
			cond, err := p.testNoCond()
			if err != nil {
				return nil, err
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		comp.Generators = append(comp.Generators, gen)
	}
	return comp, nil
}
