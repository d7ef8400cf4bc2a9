package api

// Builtins reachable from contract code. Anything else a contract names must
// be pre-bound, declared at module level or local to a function.
var AllowedBuiltins = []string{
	"True", "False", "None",
	"abs", "all", "any", "bin", "bool", "chr", "dict", "divmod",
	"enumerate", "filter", "float", "hex", "int", "isinstance",
	"issubclass", "len", "list", "map", "max", "min", "oct", "ord",
	"pow", "range", "reversed", "round", "sorted", "str", "sum", "tuple",
	"zip",
}

// Names injected into every contract scope instead of imports.
var PreboundNames = []string{
	"Variable", "Hash", "ForeignVariable", "ForeignHash", "LogEvent",
	"ctx", "importlib", "Any", "decimal", "random",
	"now", "block_num", "block_hash",
}

// ORM constructors: calls to these are declarations, bound to the contract
// and the assigned name.
var ORMConstructors = []string{
	"Variable", "Hash", "ForeignVariable", "ForeignHash", "LogEvent",
}

// Metaprogramming and I/O builtins that are never reachable.
var IntrospectionNames = []string{
	"eval", "exec", "getattr", "setattr", "delattr", "hasattr", "type",
	"dir", "vars", "id", "globals", "locals", "compile", "open", "input",
	"print", "__import__", "super", "object", "memoryview", "breakpoint",
	"help", "exit", "quit", "callable", "classmethod", "staticmethod",
	"property", "__builtins__",
}

// Decorators understood by the validator.
const (
	DecoratorExport    = "export"
	DecoratorConstruct = "construct"
)

// Valid annotations for function parameters.
var ArgumentTypes = []string{
	"int", "str", "float", "bool", "dict", "list", "tuple", "Any",
}

// PrivatePrefix is prepended to the name of undecorated functions.
const PrivatePrefix = "__"
