package wtxo

import "github.com/chainwallet/utxocore/er"

// Err is this package's error family. Every mutator returns a plain
// success/fail boolean-equivalent (nil or non-nil er.R) to its caller
// after fully cleaning up on failure; the codes below let a caller (or
// a test) branch on the specific fault without string matching.
var Err er.ErrorType = er.NewErrorType("wtxo.Err")

var (
	// ErrNotFound: outpoint missing from the store when required.
	ErrNotFound = Err.Code("ErrNotFound")

	// ErrIllegalTransition: the requested state change is not in the
	// legal set (§3.2). Logged with (outpoint, expected, actual) and
	// never propagated as a panic -- it reflects programmer error in
	// a caller, not a corrupt database.
	ErrIllegalTransition = Err.Code("ErrIllegalTransition")

	// ErrKV: the persistent store rejected an insert/delete/commit.
	ErrKV = Err.Code("ErrKV")

	// ErrSerialization: an output record could not be encoded/decoded.
	ErrSerialization = Err.Code("ErrSerialization")

	// ErrInvariant: an invariant from §3.4 was violated at runtime
	// (e.g. an output found in more than one state index).
	ErrInvariant = Err.Code("ErrInvariant")

	// ErrDuplicateOutpoint: an insert raced against an existing
	// outpoint; the caller of create_state should use change_state
	// instead.
	ErrDuplicateOutpoint = Err.Code("ErrDuplicateOutpoint")
)
