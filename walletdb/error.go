package walletdb

import "github.com/chainwallet/utxocore/er"

// Err is the error family for every fault this package can report.
var Err er.ErrorType = er.NewErrorType("walletdb.Err")

var (
	// ErrBucketNotFound is returned when trying to access a bucket that
	// has not been created yet.
	ErrBucketNotFound = Err.Code("ErrBucketNotFound")

	// ErrTxClosed is returned when attempting to commit or rollback a
	// transaction that has already had one of those operations performed.
	ErrTxClosed = Err.Code("ErrTxClosed")

	// ErrDatabase wraps a failure surfaced by the underlying storage
	// engine (bbolt) that isn't one of the above.
	ErrDatabase = Err.Code("ErrDatabase")
)
