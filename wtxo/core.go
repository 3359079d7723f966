package wtxo

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

var keyWalletTip = []byte("tip")

// Options bundles everything Core is constructed with. Per §9's design
// note against global mutable state, the core holds no package-level
// singletons: every collaborator is an explicit reference supplied here.
type Options struct {
	DB        walletdb.DB
	Params    *chaincfg.Params
	Keys      KeyRegistry
	Proposals ProposalRegistry
	Events    EventSink
}

// Core is the single process-wide guarded entry point described in §5:
// one readers-writer lock per core, shared mode for aggregate queries,
// exclusive mode for every §4.4-§4.6 mutator.
type Core struct {
	mu sync.RWMutex

	db        walletdb.DB
	store     *OutputStore
	index     *IndexSet
	params    *chaincfg.Params
	keys      KeyRegistry
	proposals ProposalRegistry
	events    EventSink

	tip BlockPosition

	pendingStateChanges []pendingStateChange
}

// pendingStateChange buffers one StateChanged publication until the
// enclosing mutator's KV transaction has actually committed (§6.4: the
// core publishes these "after every commit", the same rule publishNyms
// already follows for BalanceChanged).
type pendingStateChange struct {
	outpoint           Outpoint
	oldState, newState State
	position           BlockPosition
}

// queueStateChange defers a StateChanged publication; mutate flushes the
// queue on a successful commit and discards it on failure, so an event
// is never observed for a mutation that rolled back.
func (c *Core) queueStateChange(outpoint Outpoint, oldState, newState State, position BlockPosition) {
	c.pendingStateChanges = append(c.pendingStateChanges, pendingStateChange{outpoint, oldState, newState, position})
}

// New constructs a Core, creating the KV tables if this is a fresh
// store and populating the Output Store and Index Set from whatever is
// already on disk (§4.1, §4.2 "lazily populates... on startup").
// Population happens once here, under construction, never again on the
// steady-state read path (§5).
func New(opts Options) (*Core, er.R) {
	if opts.Events == nil {
		opts.Events = NopEventSink{}
	}
	c := &Core{
		db:        opts.DB,
		store:     NewOutputStore(),
		index:     NewIndexSet(),
		params:    opts.Params,
		keys:      opts.Keys,
		proposals: opts.Proposals,
		events:    opts.Events,
		tip:       UnminedPosition,
	}

	err := opts.DB.Update(func(tx walletdb.ReadWriteTx) er.R {
		if err := createBuckets(tx); err != nil {
			return err
		}
		if err := c.store.Populate(tx); err != nil {
			return err
		}
		if err := c.index.Populate(tx); err != nil {
			return err
		}
		return c.loadTip(tx)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Core) maturationInterval() uint16 {
	if c.params == nil {
		return 0
	}
	return c.params.CoinbaseMaturity
}

// mutate runs fn inside a write transaction under the exclusive lock.
// On any failure the in-memory store and index are discarded and
// rebuilt from the KV store (§4.7), which the failed Update already
// rolled back -- so a caller's next read sees the state from before the
// failed call, not a stale or partial in-memory view.
func (c *Core) mutate(fn func(tx walletdb.ReadWriteTx) er.R) er.R {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingStateChanges = nil
	if err := c.db.Update(fn); err != nil {
		c.store.Clear()
		c.index.Clear()
		c.pendingStateChanges = nil
		if rerr := c.db.View(func(tx walletdb.ReadTx) er.R {
			if err := c.store.Populate(tx); err != nil {
				return err
			}
			if err := c.index.Populate(tx); err != nil {
				return err
			}
			return c.loadTip(tx)
		}); rerr != nil {
			log.Errorf("wtxo: failed to repopulate caches after aborted mutation: %v", rerr)
		}
		return err
	}
	events := c.pendingStateChanges
	c.pendingStateChanges = nil
	for _, e := range events {
		c.events.StateChanged(e.outpoint, e.oldState, e.newState, e.position)
	}
	return nil
}

// Tip returns the wallet's current persisted tip position.
func (c *Core) Tip() BlockPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

func (c *Core) loadTip(tx walletdb.ReadTx) er.R {
	root, err := rootReadBucket(tx)
	if err != nil {
		return err
	}
	cfg := root.NestedReadBucket(bucketOutputConfig)
	if cfg == nil {
		return walletdb.ErrBucketNotFound.New("output_config", nil)
	}
	blob := cfg.Get(keyWalletTip)
	if blob == nil {
		c.tip = UnminedPosition
		return nil
	}
	pos, derr := decodeBlockPositionKey(blob)
	if derr != nil {
		return derr
	}
	c.tip = pos
	return nil
}

func (c *Core) storeTip(tx walletdb.ReadWriteTx, pos BlockPosition) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	cfg := root.NestedReadWriteBucket(bucketOutputConfig)
	if cfg == nil {
		return walletdb.ErrBucketNotFound.New("output_config", nil)
	}
	if err := cfg.Put(keyWalletTip, EncodeBlockPosition(pos)); err != nil {
		return err
	}
	c.tip = pos
	return nil
}

// publishNyms emits the per-nym and wallet-level balance events §6.4
// requires after a successful commit.
func (c *Core) publishNyms(touched map[string]struct{}) {
	for n := range touched {
		c.events.BalanceChanged(NymID(n))
	}
	c.events.BalanceChanged(nil)
}
