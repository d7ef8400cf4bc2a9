// Package msgs holds the message catalog for every rejection and runtime
// error the sandbox reports. Keys are stable identifiers; the English text is
// registered in the golang.org/x/text catalog at init.
package msgs

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MessageKey identifies a catalog entry.
type MessageKey string

var sbe = func(key, translation string) MessageKey {
	if err := message.SetString(language.AmericanEnglish, key, translation); err != nil {
		panic(err)
	}
	return MessageKey(key)
}

// Expand renders the message for key with args.
func Expand(key MessageKey, args ...any) string {
	return message.NewPrinter(language.AmericanEnglish).Sprintf(string(key), args...)
}

var (
	// Compile-time rejections SB01xxxx
	MsgSyntaxError          = sbe("SB010000", "syntax error: %s")
	MsgCodeSize             = sbe("SB010001", "contract source is %d bytes, maximum is %d")
	MsgClassDefinition      = sbe("SB010002", "class definitions are not allowed")
	MsgLambda               = sbe("SB010003", "lambda expressions are not allowed")
	MsgAsync                = sbe("SB010004", "async constructs are not allowed")
	MsgExceptionHandling    = sbe("SB010005", "exception handling (%s) is not allowed, use assert")
	MsgIntrospection        = sbe("SB010006", "introspection builtin '%s' is not allowed")
	MsgDisallowedName       = sbe("SB010007", "name '%s' is not available in the sandbox")
	MsgImport               = sbe("SB010008", "import statements are not allowed, use importlib.import_module")
	MsgNestedFunction       = sbe("SB010009", "nested function '%s' is not allowed")
	MsgDisallowedSyntax     = sbe("SB010010", "%s is not allowed")
	MsgModuleStatement      = sbe("SB010011", "only function definitions and assignments are allowed at module level")
	MsgORMDeclaration       = sbe("SB010012", "%s must be declared by a module level assignment")
	MsgORMMultipleTargets   = sbe("SB010013", "%s declaration must have exactly one target name")
	MsgORMReservedKwarg     = sbe("SB010014", "%s declaration cannot pass reserved keyword '%s'")
	MsgMultipleDecorators   = sbe("SB010015", "function '%s' has more than one decorator")
	MsgInvalidDecorator     = sbe("SB010016", "decorator '%s' is not valid, use @export or @construct")
	MsgMultipleConstructors = sbe("SB010017", "constructor already declared as '%s', found second constructor '%s'")
	MsgNoExportedFunctions  = sbe("SB010018", "contract must export at least one function")
	MsgMissingAnnotation    = sbe("SB010019", "parameter '%s' of exported function '%s' needs a type annotation")
	MsgInvalidAnnotation    = sbe("SB010020", "annotation '%s' is not a valid argument type")
	MsgReturnAnnotation     = sbe("SB010021", "function '%s' cannot declare a return annotation")
	MsgUnderscoreName       = sbe("SB010022", "identifier '%s' cannot start or end with an underscore")
	MsgReservedName         = sbe("SB010023", "'%s' is a reserved name")
	MsgORMNameCollision     = sbe("SB010024", "parameter '%s' of '%s' collides with a state declaration")
	MsgDuplicateFunction    = sbe("SB010025", "function '%s' is defined more than once")
	MsgConstructorCall      = sbe("SB010026", "constructor '%s' cannot be referenced from contract code")
	MsgContractRejected     = sbe("SB010027", "contract rejected with %d violation(s): %s")

	// Runtime errors SB02xxxx
	MsgAssertionFailed        = sbe("SB020000", "%s")
	MsgAssertionNoMessage     = sbe("SB020001", "assertion failed")
	MsgForeignWrite           = sbe("SB020002", "cannot write to foreign %s '%s.%s'")
	MsgKeyTooLarge            = sbe("SB020003", "key is %d bytes, maximum is %d")
	MsgHashDimensions         = sbe("SB020004", "hash key has %d dimensions, maximum is %d")
	MsgKeySeparator           = sbe("SB020005", "key component '%s' contains a reserved separator")
	MsgKeyType                = sbe("SB020006", "value of type %s cannot be used as a key")
	MsgCallDepth              = sbe("SB020007", "call depth exceeds %d")
	MsgStampsExhausted        = sbe("SB020008", "stamps exhausted: needed %d, %d remaining of %d")
	MsgDivisionByZero         = sbe("SB020009", "division by zero")
	MsgInvalidDecimal         = sbe("SB020010", "invalid decimal literal '%s'")
	MsgIntTooLarge            = sbe("SB020011", "integer result exceeds %d bits")
	MsgContractNotFound       = sbe("SB020012", "contract '%s' not found")
	MsgInvalidContractName    = sbe("SB020013", "invalid contract name '%s'")
	MsgFunctionNotExported    = sbe("SB020014", "function '%s' is not exported by '%s'")
	MsgContractExists         = sbe("SB020015", "contract '%s' already exists")
	MsgNotOwner               = sbe("SB020016", "caller '%s' is not the owner of '%s'")
	MsgUnsupportedOperand     = sbe("SB020017", "unsupported operand types for %s: %s and %s")
	MsgUnsupportedUnary       = sbe("SB020018", "bad operand type for unary %s: %s")
	MsgNotCallable            = sbe("SB020019", "%s object is not callable")
	MsgNotSubscriptable       = sbe("SB020020", "%s object is not subscriptable")
	MsgNotIterable            = sbe("SB020021", "%s object is not iterable")
	MsgNoAttribute            = sbe("SB020022", "%s object has no attribute '%s'")
	MsgUndefinedName          = sbe("SB020023", "name '%s' is not defined")
	MsgIndexOutOfRange        = sbe("SB020024", "%s index out of range")
	MsgKeyNotFound            = sbe("SB020025", "key %s not found")
	MsgUnhashable             = sbe("SB020026", "unhashable type: %s")
	MsgArgumentCount          = sbe("SB020027", "%s() takes %d positional arguments but %d were given")
	MsgMissingArgument        = sbe("SB020028", "%s() missing argument '%s'")
	MsgUnexpectedArgument     = sbe("SB020029", "%s() got an unexpected keyword argument '%s'")
	MsgDuplicateArgument      = sbe("SB020030", "%s() got multiple values for argument '%s'")
	MsgArgumentType           = sbe("SB020031", "argument '%s' of %s() must be %s, got %s")
	MsgMembershipOnHash       = sbe("SB020032", "membership test is not supported on %s, compare the read value with None")
	MsgRangeOnHash            = sbe("SB020033", "slices and range reads are not supported on %s")
	MsgORMOutsideModule       = sbe("SB020034", "%s can only be declared at module level")
	MsgStateType              = sbe("SB020035", "value of type %s does not match declared type %s of '%s'")
	MsgTooManyIndexed         = sbe("SB020036", "event '%s' declares %d indexed parameters, maximum is %d")
	MsgEventParamType         = sbe("SB020037", "event '%s' parameter '%s' has invalid type declaration")
	MsgEventMissingParam      = sbe("SB020038", "event '%s' is missing parameter '%s'")
	MsgEventUnexpectedParam   = sbe("SB020039", "event '%s' got unexpected parameter '%s'")
	MsgEventValueType         = sbe("SB020040", "event '%s' parameter '%s' must be %s, got %s")
	MsgEventValueSize         = sbe("SB020041", "event '%s' parameter '%s' is %d bytes, maximum is %d")
	MsgEventName              = sbe("SB020042", "event name must be a non-empty string")
	MsgInvalidLiteral         = sbe("SB020043", "invalid %s literal '%s'")
	MsgValueConversion        = sbe("SB020044", "cannot convert %s to %s")
	MsgUnsupportedValue       = sbe("SB020045", "%s values cannot be stored")
	MsgStorageFailure         = sbe("SB020046", "state backend failure: %s")
	MsgInvalidInterface       = sbe("SB020047", "interface entries must be importlib.Func or importlib.Var, got %s")
	MsgEmptySequence          = sbe("SB020048", "%s() arg is an empty sequence")
	MsgNegativeRepeat         = sbe("SB020049", "repeat count %s is out of range")
	MsgNotComparable          = sbe("SB020050", "'%s' not supported between instances of %s and %s")
	MsgUnpackCount            = sbe("SB020051", "expected %d values to unpack, got %d")
	MsgConstructorNotCallable = sbe("SB020052", "constructor of '%s' can only run at deployment")
	MsgExponent               = sbe("SB020053", "exponent %s is not supported")
	MsgBuiltinValue           = sbe("SB020054", "%s() %s")
	MsgModuleAttribute        = sbe("SB020055", "module '%s' has no exported function '%s'")
	MsgSequenceTooLong        = sbe("SB020056", "sequence of %d items exceeds the maximum of %d")
	MsgNotIndexable           = sbe("SB020057", "%s indices must be integers, not %s")
	MsgDecimalTooLarge        = sbe("SB020058", "decimal result spans more than %d digits")
	MsgStateNotOwned          = sbe("SB020059", "contract '%s' cannot write %s '%s.%s'")
)
