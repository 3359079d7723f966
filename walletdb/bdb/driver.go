// Package bdb is the bbolt-backed walletdb driver, adapted from
// pktwallet's walletdb/bdb package: a thin adapter layer between the
// walletdb bucket interface and go.etcd.io/bbolt's own bucket API.
package bdb

import (
	"go.etcd.io/bbolt"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// Open opens (creating if necessary) a bbolt-backed walletdb at path.
func Open(path string) (walletdb.DB, er.R) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return &boltDB{db: db}, nil
}

type boltDB struct {
	db *bbolt.DB
}

func (b *boltDB) BeginReadTx() (walletdb.ReadTx, er.R) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return &boltTx{tx: tx}, nil
}

func (b *boltDB) BeginReadWriteTx() (walletdb.ReadWriteTx, er.R) {
	tx, err := b.db.Begin(true)
	if err != nil {
		return nil, walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return &boltTx{tx: tx, writable: true}, nil
}

func (b *boltDB) View(fn func(tx walletdb.ReadTx) er.R) er.R {
	tx, rerr := b.BeginReadTx()
	if rerr != nil {
		return rerr
	}
	defer tx.Rollback()
	return fn(tx)
}

func (b *boltDB) Update(fn func(tx walletdb.ReadWriteTx) er.R) er.R {
	tx, rerr := b.BeginReadWriteTx()
	if rerr != nil {
		return rerr
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *boltDB) Close() er.R {
	if err := b.db.Close(); err != nil {
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

type boltTx struct {
	tx       *bbolt.Tx
	writable bool
}

func (t *boltTx) ReadBucket(key []byte) walletdb.ReadBucket {
	bkt := t.tx.Bucket(key)
	if bkt == nil {
		return nil
	}
	return &boltBucket{bkt: bkt}
}

func (t *boltTx) ReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	bkt := t.tx.Bucket(key)
	if bkt == nil {
		return nil
	}
	return &boltBucket{bkt: bkt}
}

func (t *boltTx) CreateTopLevelBucket(key []byte) (walletdb.ReadWriteBucket, er.R) {
	bkt, err := t.tx.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return &boltBucket{bkt: bkt}, nil
}

func (t *boltTx) DeleteTopLevelBucket(key []byte) er.R {
	if err := t.tx.DeleteBucket(key); err != nil && err != bbolt.ErrBucketNotFound {
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (t *boltTx) Commit() er.R {
	if err := t.tx.Commit(); err != nil {
		if err == bbolt.ErrTxClosed {
			return walletdb.ErrTxClosed.Default()
		}
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (t *boltTx) Rollback() er.R {
	if err := t.tx.Rollback(); err != nil {
		if err == bbolt.ErrTxClosed {
			return walletdb.ErrTxClosed.Default()
		}
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

type boltBucket struct {
	bkt *bbolt.Bucket
}

func (b *boltBucket) Get(key []byte) []byte {
	return b.bkt.Get(key)
}

func (b *boltBucket) NestedReadBucket(key []byte) walletdb.ReadBucket {
	nested := b.bkt.Bucket(key)
	if nested == nil {
		return nil
	}
	return &boltBucket{bkt: nested}
}

func (b *boltBucket) NestedReadWriteBucket(key []byte) walletdb.ReadWriteBucket {
	nested := b.bkt.Bucket(key)
	if nested == nil {
		return nil
	}
	return &boltBucket{bkt: nested}
}

func (b *boltBucket) CreateBucketIfNotExists(key []byte) (walletdb.ReadWriteBucket, er.R) {
	nested, err := b.bkt.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return &boltBucket{bkt: nested}, nil
}

func (b *boltBucket) DeleteNestedBucket(key []byte) er.R {
	if err := b.bkt.DeleteBucket(key); err != nil && err != bbolt.ErrBucketNotFound {
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (b *boltBucket) Put(key, value []byte) er.R {
	if err := b.bkt.Put(key, value); err != nil {
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (b *boltBucket) Delete(key []byte) er.R {
	if err := b.bkt.Delete(key); err != nil {
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (b *boltBucket) ForEach(fn func(k, v []byte) er.R) er.R {
	err := b.bkt.ForEach(func(k, v []byte) error {
		if rerr := fn(k, v); rerr != nil {
			return rerr
		}
		return nil
	})
	if err != nil {
		if rerr, ok := err.(er.R); ok {
			return rerr
		}
		return walletdb.ErrDatabase.New(err.Error(), nil)
	}
	return nil
}

func (b *boltBucket) ReadCursor() walletdb.ReadCursor {
	return &boltCursor{c: b.bkt.Cursor()}
}

type boltCursor struct {
	c *bbolt.Cursor
}

func (c *boltCursor) First() (k, v []byte)           { return c.c.First() }
func (c *boltCursor) Seek(seek []byte) (k, v []byte) { return c.c.Seek(seek) }
func (c *boltCursor) Next() (k, v []byte)            { return c.c.Next() }
