package core

// Block holds the block level facts supplied by the execution environment.
// They stay constant for one invocation.
type Block struct {
	Now  int64
	Num  uint64
	Hash string
}

// Context is the identity bundle a running contract sees as `ctx`.
type Context struct {
	// Caller is the immediate invoker: the transaction sender at the top
	// level, the calling contract's name for cross-contract calls.
	Caller string
	// Signer is the transaction originator, constant across the call chain.
	Signer string
	// This is the contract currently executing.
	This string
	// EntryContract and EntryFunction name the top-level exported function.
	EntryContract string
	EntryFunction string
	// SubmissionName is the name of the contract being deployed, if any.
	SubmissionName string
	// Owner is the owner of This, empty when unrestricted.
	Owner string
}

// Enter returns the context seen by target when the current contract calls
// into it.
func (c Context) Enter(target, owner string) Context {
	next := c
	next.Caller = c.This
	next.This = target
	next.Owner = owner
	return next
}

// Environment is what the surrounding ledger supplies for one top-level
// invocation.
type Environment struct {
	Caller    string
	Signer    string
	Now       int64
	BlockNum  uint64
	BlockHash string
	Stamps    int64
}

// Block returns the block facts of the environment.
func (e Environment) Block() Block {
	return Block{Now: e.Now, Num: e.BlockNum, Hash: e.BlockHash}
}

// TopContext builds the context of the first call of an invocation.
func (e Environment) TopContext(contract, function, owner string) Context {
	caller := e.Caller
	if caller == "" {
		caller = e.Signer
	}
	return Context{
		Caller:        caller,
		Signer:        e.Signer,
		This:          contract,
		EntryContract: contract,
		EntryFunction: function,
		Owner:         owner,
	}
}
