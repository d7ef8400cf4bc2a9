package compiler

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/compiler/syntax"
)

// FuncKind tags an entry of the function table.
type FuncKind int

const (
	Private FuncKind = iota
	Exported
	Constructor
)

func (k FuncKind) String() string {
	switch k {
	case Exported:
		return "exported"
	case Constructor:
		return "constructor"
	}
	return "private"
}

// Param is a formal parameter of a contract function.
type Param struct {
	Name string
	// Type is the annotation, empty when absent
	Type    string
	Default syntax.Expr
}

// Function is one entry of the function table.
type Function struct {
	// Name is the name as written in the source
	Name string
	// Symbol is the name the function is bound to in the contract scope;
	// private functions carry the private prefix.
	Symbol string
	Kind   FuncKind
	Params []Param
	Def    *syntax.FuncDef
}

// StateDecl is a module level ORM or LogEvent declaration.
type StateDecl struct {
	Name string
	Kind string
	Line int
}

// Contract is an accepted, compiled contract. It is immutable once built.
type Contract struct {
	Name        string
	Source      string
	Hash        string
	Module      *syntax.Module
	Functions   map[string]*Function
	Exported    []string
	Constructor *Function
	State       []StateDecl
}

// Function looks up an entry of the function table by source name.
func (c *Contract) Function(name string) (*Function, bool) {
	fn, ok := c.Functions[name]
	return fn, ok
}

// IsExported reports whether name is callable from outside the contract.
func (c *Contract) IsExported(name string) bool {
	fn, ok := c.Functions[name]
	return ok && fn.Kind == Exported
}

// Declaration returns the state declaration bound to name.
func (c *Contract) Declaration(name string) (StateDecl, bool) {
	for _, d := range c.State {
		if d.Name == name {
			return d, true
		}
	}
	return StateDecl{}, false
}

// CodeHash is the cache key of compiled source.
func CodeHash(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// build assembles the function table of a validated module and applies the
// private rename.
func build(name string, code []byte, mod *syntax.Module) *Contract {
	c := &Contract{
		Name:      name,
		Source:    string(code),
		Hash:      CodeHash(code),
		Module:    mod,
		Functions: make(map[string]*Function),
	}
	private := make(map[string]bool)
	for _, stmt := range mod.Body {
		if n, kind, ok := stateDeclaration(stmt); ok {
			c.State = append(c.State, StateDecl{Name: n, Kind: kind, Line: stmt.Position().Line})
		}
		def, ok := stmt.(*syntax.FuncDef)
		if !ok {
			continue
		}
		fn := &Function{Name: def.Name, Symbol: def.Name, Kind: Private, Def: def}
		for _, d := range def.Decorators {
			switch decoratorName(d) {
			case api.DecoratorExport:
				fn.Kind = Exported
			case api.DecoratorConstruct:
				fn.Kind = Constructor
				c.Constructor = fn
			}
		}
		for _, p := range def.Params {
			param := Param{Name: p.Name, Default: p.Default}
			if id, ok := p.Annotation.(*syntax.Name); ok {
				param.Type = id.Id
			}
			fn.Params = append(fn.Params, param)
		}
		switch fn.Kind {
		case Exported:
			c.Exported = append(c.Exported, fn.Name)
		case Private:
			fn.Symbol = api.PrivatePrefix + fn.Name
			private[fn.Name] = true
		}
		c.Functions[fn.Name] = fn
	}
	renamePrivate(mod, private)
	return c
}

// renamePrivate binds private functions under their prefixed symbol and
// rewrites every reference that is not shadowed by a local.
func renamePrivate(mod *syntax.Module, private map[string]bool) {
	if len(private) == 0 {
		return
	}
	rewrite := func(node syntax.Node, locals map[string]bool) {
		syntax.Inspect(node, func(n syntax.Node) bool {
			if id, ok := n.(*syntax.Name); ok && private[id.Id] && !locals[id.Id] {
				id.Id = api.PrivatePrefix + id.Id
			}
			return true
		})
	}
	for _, stmt := range mod.Body {
		def, ok := stmt.(*syntax.FuncDef)
		if !ok {
			rewrite(stmt, nil)
			continue
		}
		locals := make(map[string]bool)
		boundNames(def, locals)
		for _, p := range def.Params {
			if p.Default != nil {
				rewrite(p.Default, nil)
			}
		}
		for _, body := range def.Body {
			rewrite(body, locals)
		}
		if private[def.Name] {
			def.Name = api.PrivatePrefix + def.Name
		}
	}
}
