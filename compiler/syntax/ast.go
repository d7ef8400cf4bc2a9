package syntax

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Position returns p; embedding Pos makes every node a Node.
func (p Pos) Position() Pos { return p }

// Node is any AST node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Module is a parsed source file.
type Module struct {
	Body []Stmt
}

// ---- statements ----

// Param is one formal parameter. Star is 1 for *args and 2 for **kwargs; a
// bare '*' separator has Star 1 and an empty Name.
type Param struct {
	Pos
	Name       string
	Annotation Expr
	Default    Expr
	Star       int
}

type (
	FuncDef struct {
		Pos
		Name       string
		Params     []*Param
		Returns    Expr
		Decorators []Expr
		Body       []Stmt
		Async      bool
	}

	ClassDef struct {
		Pos
		Name       string
		Bases      []Expr
		Decorators []Expr
		Body       []Stmt
	}

	Return struct {
		Pos
		Value Expr
	}

	// Assign is `t1 = t2 = value`.
	Assign struct {
		Pos
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		Pos
		Target Expr
		Op     string // without the trailing '='
		Value  Expr
	}

	AnnAssign struct {
		Pos
		Target     Expr
		Annotation Expr
		Value      Expr
	}

	// If carries elif chains as a nested If in Else.
	If struct {
		Pos
		Test Expr
		Body []Stmt
		Else []Stmt
	}

	For struct {
		Pos
		Target Expr
		Iter   Expr
		Body   []Stmt
		Else   []Stmt
		Async  bool
	}

	While struct {
		Pos
		Test Expr
		Body []Stmt
		Else []Stmt
	}

	Break    struct{ Pos }
	Continue struct{ Pos }
	Pass     struct{ Pos }

	ExprStmt struct {
		Pos
		Value Expr
	}

	Assert struct {
		Pos
		Test Expr
		Msg  Expr
	}

	// Import covers both `import a.b` and `from a import b`.
	Import struct {
		Pos
		From  string
		Names []string
	}

	Try struct {
		Pos
		Body     []Stmt
		Handlers []*ExceptHandler
		Else     []Stmt
		Finally  []Stmt
	}

	ExceptHandler struct {
		Pos
		Type Expr
		Name string
		Body []Stmt
	}

	Raise struct {
		Pos
		Exc   Expr
		Cause Expr
	}

	With struct {
		Pos
		Items   []Expr
		Targets []Expr
		Body    []Stmt
		Async   bool
	}

	// Global is also used for nonlocal.
	Global struct {
		Pos
		Names    []string
		Nonlocal bool
	}

	Delete struct {
		Pos
		Targets []Expr
	}
)

func (*FuncDef) stmtNode()   {}
func (*ClassDef) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*Assign) stmtNode()    {}
func (*AugAssign) stmtNode() {}
func (*AnnAssign) stmtNode() {}
func (*If) stmtNode()        {}
func (*For) stmtNode()       {}
func (*While) stmtNode()     {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Pass) stmtNode()      {}
func (*ExprStmt) stmtNode()  {}
func (*Assert) stmtNode()    {}
func (*Import) stmtNode()    {}
func (*Try) stmtNode()       {}
func (*Raise) stmtNode()     {}
func (*With) stmtNode()      {}
func (*Global) stmtNode()    {}
func (*Delete) stmtNode()    {}

// ---- expressions ----

type (
	Name struct {
		Pos
		Id string
	}

	// BasicLit is a number or string literal. Value is the literal text for
	// numbers and the decoded contents for strings.
	BasicLit struct {
		Pos
		Kind  TokenType
		Value string
	}

	// NameConst is True, False, None or the ellipsis.
	NameConst struct {
		Pos
		Value string
	}

	BinOp struct {
		Pos
		Left  Expr
		Op    string
		Right Expr
	}

	UnaryOp struct {
		Pos
		Op      string // "-", "+", "~" or "not"
		Operand Expr
	}

	BoolOp struct {
		Pos
		Op     string // "and" or "or"
		Values []Expr
	}

	// Compare is a comparison chain. Ops include "in", "not in", "is" and
	// "is not".
	Compare struct {
		Pos
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	Keyword struct {
		Pos
		Name  string // empty for **kwargs
		Value Expr
	}

	Call struct {
		Pos
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	Attribute struct {
		Pos
		Value Expr
		Attr  string
	}

	Subscript struct {
		Pos
		Value Expr
		Index Expr
	}

	Slice struct {
		Pos
		Lower Expr
		Upper Expr
		Step  Expr
	}

	ListExpr struct {
		Pos
		Elts []Expr
	}

	TupleExpr struct {
		Pos
		Elts []Expr
	}

	// DictExpr has a nil key for a `**mapping` entry.
	DictExpr struct {
		Pos
		Keys   []Expr
		Values []Expr
	}

	SetExpr struct {
		Pos
		Elts []Expr
	}

	IfExp struct {
		Pos
		Test Expr
		Body Expr
		Else Expr
	}

	Generator struct {
		Target Expr
		Iter   Expr
		Ifs    []Expr
		Async  bool
	}

	// Comprehension covers list, set, dict and generator forms. Dict
	// comprehensions use Key and Elt as the value.
	Comprehension struct {
		Pos
		Kind       string // "list", "set", "dict", "generator"
		Key        Expr
		Elt        Expr
		Generators []*Generator
	}

	Lambda struct {
		Pos
		Params []*Param
		Body   Expr
	}

	Await struct {
		Pos
		Value Expr
	}

	Yield struct {
		Pos
		Value Expr
		From  bool
	}

	Starred struct {
		Pos
		Value Expr
	}

	// NamedExpr is `target := value`.
	NamedExpr struct {
		Pos
		Target Expr
		Value  Expr
	}
)

func (*Name) exprNode()          {}
func (*BasicLit) exprNode()      {}
func (*NameConst) exprNode()     {}
func (*BinOp) exprNode()         {}
func (*UnaryOp) exprNode()       {}
func (*BoolOp) exprNode()        {}
func (*Compare) exprNode()       {}
func (*Call) exprNode()          {}
func (*Attribute) exprNode()     {}
func (*Subscript) exprNode()     {}
func (*Slice) exprNode()         {}
func (*ListExpr) exprNode()      {}
func (*TupleExpr) exprNode()     {}
func (*DictExpr) exprNode()      {}
func (*SetExpr) exprNode()       {}
func (*IfExp) exprNode()         {}
func (*Comprehension) exprNode() {}
func (*Lambda) exprNode()        {}
func (*Await) exprNode()         {}
func (*Yield) exprNode()         {}
func (*Starred) exprNode()       {}
func (*NamedExpr) exprNode()     {}
