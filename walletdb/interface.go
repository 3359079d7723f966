// Package walletdb defines a narrow, bucket-oriented key/value interface
// grounded on pktwallet's walletdb package: a DB exposes read-only and
// read-write transactions, transactions expose nested buckets, and
// buckets expose Get/Put/Delete/ForEach plus cursor-based range scans.
// The only implementation shipped here is bbolt-backed (bdb), the same
// backend pktwallet's own "bdb" driver wraps.
package walletdb

import "github.com/chainwallet/utxocore/er"

// ReadBucket is the read-only view of a bucket.
type ReadBucket interface {
	Get(key []byte) []byte
	NestedReadBucket(key []byte) ReadBucket
	ForEach(fn func(k, v []byte) er.R) er.R
	ReadCursor() ReadCursor
}

// ReadWriteBucket adds mutation and nested-bucket creation to ReadBucket.
type ReadWriteBucket interface {
	ReadBucket

	Put(key, value []byte) er.R
	Delete(key []byte) er.R
	CreateBucketIfNotExists(key []byte) (ReadWriteBucket, er.R)
	NestedReadWriteBucket(key []byte) ReadWriteBucket
	DeleteNestedBucket(key []byte) er.R
}

// ReadCursor walks a bucket's entries in byte-lexicographic key order.
type ReadCursor interface {
	First() (k, v []byte)
	Seek(seek []byte) (k, v []byte)
	Next() (k, v []byte)
}

// ReadTx is a read-only transaction.
type ReadTx interface {
	ReadBucket(key []byte) ReadBucket
	Rollback() er.R
}

// ReadWriteTx is a transaction that may create buckets and mutate values.
// Commit and Rollback are each valid exactly once; calling either twice
// returns ErrTxClosed.
type ReadWriteTx interface {
	ReadWriteBucket(key []byte) ReadWriteBucket
	CreateTopLevelBucket(key []byte) (ReadWriteBucket, er.R)
	DeleteTopLevelBucket(key []byte) er.R
	Commit() er.R
	Rollback() er.R
}

// DB is a handle to an open key/value store.
type DB interface {
	BeginReadTx() (ReadTx, er.R)
	BeginReadWriteTx() (ReadWriteTx, er.R)

	// View runs fn inside a read-only transaction, always rolling it
	// back afterward.
	View(fn func(tx ReadTx) er.R) er.R

	// Update runs fn inside a read-write transaction. If fn (or the
	// commit itself) fails, the transaction is rolled back and every
	// edit staged within it is discarded as though it never happened.
	Update(fn func(tx ReadWriteTx) er.R) er.R

	Close() er.R
}
