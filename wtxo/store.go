package wtxo

import (
	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
	"github.com/chainwallet/utxocore/walletlog"
)

var log walletlog.Logger = walletlog.Disabled

// UseLogger wires a logger into this package, mirroring
// pktwallet/wallet's per-package UseLogger/DisableLog pair.
func UseLogger(l walletlog.Logger) {
	log = l
}

// DisableLog turns off all output from this package. This is the
// default until a caller supplies a real backend with UseLogger.
func DisableLog() { log = walletlog.Disabled }

// OutputStore is the single source of truth for output records (§4.1).
// It exclusively owns every Output value; every other component in
// this module holds outpoints and looks records up through the store.
// Index Set never owns a record, only the outpoint that names one.
type OutputStore struct {
	cache     map[Outpoint]*Output
	populated bool
}

// NewOutputStore constructs an empty, unpopulated store. Call Populate
// before relying on Get/Exists to reflect what's on disk.
func NewOutputStore() *OutputStore {
	return &OutputStore{cache: make(map[Outpoint]*Output)}
}

// Populated reports whether the in-memory cache has been loaded at
// least once since construction or the last Clear.
func (s *OutputStore) Populated() bool { return s.populated }

// Populate scans the "outputs" table in forward (byte-lexicographic)
// key order and loads every record into the in-memory cache. Safe to
// call again after Clear; a no-op if already populated.
func (s *OutputStore) Populate(tx walletdb.ReadTx) er.R {
	if s.populated {
		return nil
	}
	root, err := rootReadBucket(tx)
	if err != nil {
		return err
	}
	outputs := root.NestedReadBucket(bucketOutputs)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("outputs", nil)
	}
	if err := outputs.ForEach(func(k, v []byte) er.R {
		op, derr := DecodeOutpoint(k)
		if derr != nil {
			return derr
		}
		out, derr := DecodeOutput(op, v)
		if derr != nil {
			return derr
		}
		s.cache[op] = out
		return nil
	}); err != nil {
		return err
	}
	s.populated = true
	return nil
}

// Clear discards the in-memory cache. Idempotent; must only be called
// when the cache might have diverged from the KV store (every mutator
// failure path does this per §4.7). Reads do not reload the cache by
// themselves; Core.mutate calls Populate right after clearing it.
func (s *OutputStore) Clear() {
	s.cache = make(map[Outpoint]*Output)
	s.populated = false
}

// Get returns the cached record for outpoint, or ErrNotFound.
func (s *OutputStore) Get(outpoint Outpoint) (*Output, er.R) {
	out, ok := s.cache[outpoint]
	if !ok {
		return nil, ErrNotFound.New(outpoint.String(), nil)
	}
	return out, nil
}

// Exists reports whether outpoint is present in the store.
func (s *OutputStore) Exists(outpoint Outpoint) bool {
	_, ok := s.cache[outpoint]
	return ok
}

// GetMut returns the live cached record for in-place mutation by the
// caller. The caller must call WriteBack before the enclosing KV
// transaction commits, or the persisted copy will not reflect the
// edit (mirroring wtxmgr's get-then-put discipline, generalized from
// per-field setters to a single mutable borrow scoped to one mutator
// call per §9's "temporary mutation borrows a unique reference").
func (s *OutputStore) GetMut(outpoint Outpoint) (*Output, er.R) {
	out, ok := s.cache[outpoint]
	if !ok {
		return nil, ErrNotFound.New(outpoint.String(), nil)
	}
	return out, nil
}

// WriteBack persists the current in-memory contents of outpoint's
// record into tx.
func (s *OutputStore) WriteBack(tx walletdb.ReadWriteTx, outpoint Outpoint) er.R {
	out, ok := s.cache[outpoint]
	if !ok {
		return ErrNotFound.New(outpoint.String(), nil)
	}
	return s.persist(tx, out)
}

// Insert adds a brand-new record. It fails with ErrDuplicateOutpoint if
// the outpoint already exists -- callers that mean to transition an
// existing record's state should use ChangeState instead (wtxo's state
// machine, not this method; CreateState inserts and fails the same way).
func (s *OutputStore) Insert(tx walletdb.ReadWriteTx, out *Output) er.R {
	if _, ok := s.cache[out.Outpoint]; ok {
		return ErrDuplicateOutpoint.New(out.Outpoint.String(), nil)
	}
	if err := s.persist(tx, out); err != nil {
		return err
	}
	s.cache[out.Outpoint] = out
	return nil
}

// Remove deletes a record outright. Used only for pruning; ordinary
// lifecycle changes go through state transitions instead, which keep
// the orphaned history around.
func (s *OutputStore) Remove(tx walletdb.ReadWriteTx, outpoint Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	outputs := root.NestedReadWriteBucket(bucketOutputs)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("outputs", nil)
	}
	if err := outputs.Delete(EncodeOutpoint(outpoint)); err != nil {
		return err
	}
	delete(s.cache, outpoint)
	return nil
}

func (s *OutputStore) persist(tx walletdb.ReadWriteTx, out *Output) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	outputs := root.NestedReadWriteBucket(bucketOutputs)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("outputs", nil)
	}
	blob, err := EncodeOutput(out)
	if err != nil {
		return err
	}
	return outputs.Put(EncodeOutpoint(out.Outpoint), blob)
}
