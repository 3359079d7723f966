package wtxo

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb/bdb"
)

// fakeKeyRegistry is a minimal KeyRegistry stand-in: every key reference
// is owned by a nym derived from its subaccount, and counterparties are
// whatever the test wires in by KeyRef.
type fakeKeyRegistry struct {
	nyms           map[KeyRef]NymID
	counterparties map[KeyRef][2]*ContactID
	unconfirmed    []KeyRef
	processed      [][]Outpoint
}

func newFakeKeyRegistry() *fakeKeyRegistry {
	return &fakeKeyRegistry{
		nyms:           make(map[KeyRef]NymID),
		counterparties: make(map[KeyRef][2]*ContactID),
	}
}

func (f *fakeKeyRegistry) OwnerNym(k KeyRef) (NymID, er.R) {
	if nym, ok := f.nyms[k]; ok {
		return nym, nil
	}
	return NymID(fmt.Sprintf("nym-%d", k.SubaccountID)), nil
}

func (f *fakeKeyRegistry) Counterparty(k KeyRef) (*ContactID, *ContactID, er.R) {
	if cp, ok := f.counterparties[k]; ok {
		return cp[0], cp[1], nil
	}
	return nil, nil, nil
}

func (f *fakeKeyRegistry) ProcessTransaction(outpoints []Outpoint) er.R {
	f.processed = append(f.processed, outpoints)
	return nil
}

func (f *fakeKeyRegistry) UnconfirmLastUse(k KeyRef) er.R {
	f.unconfirmed = append(f.unconfirmed, k)
	return nil
}

// fakeProposalRegistry records every finish/cancel call it receives.
type fakeProposalRegistry struct {
	finished  []ProposalID
	cancelled []ProposalID
}

func (f *fakeProposalRegistry) MarkFinished(id ProposalID) er.R {
	f.finished = append(f.finished, id)
	return nil
}

func (f *fakeProposalRegistry) MarkCancelled(id ProposalID) er.R {
	f.cancelled = append(f.cancelled, id)
	return nil
}

// recordingEventSink captures every event published during a test so
// assertions can check exactly what fired, in order.
type recordingEventSink struct {
	balances []NymID
	states   []stateChangeEvent
}

type stateChangeEvent struct {
	Outpoint           Outpoint
	OldState, NewState State
	Position           BlockPosition
}

func (r *recordingEventSink) BalanceChanged(nym NymID) {
	r.balances = append(r.balances, nym)
}

func (r *recordingEventSink) StateChanged(outpoint Outpoint, oldState, newState State, position BlockPosition) {
	r.states = append(r.states, stateChangeEvent{outpoint, oldState, newState, position})
}

// newTestCore opens a fresh bdb-backed Core in a temporary directory,
// wired to fake collaborators the caller may inspect afterward.
func newTestCore(t *testing.T, maturity uint16) (*Core, *fakeKeyRegistry, *fakeProposalRegistry, *recordingEventSink) {
	t.Helper()

	db, err := bdb.Open(t.TempDir() + "/wtxo.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	keys := newFakeKeyRegistry()
	proposals := &fakeProposalRegistry{}
	events := &recordingEventSink{}

	core, cerr := New(Options{
		DB:        db,
		Params:    &chaincfg.Params{CoinbaseMaturity: maturity},
		Keys:      keys,
		Proposals: proposals,
		Events:    events,
	})
	if cerr != nil {
		t.Fatalf("New: %v", cerr)
	}
	return core, keys, proposals, events
}

// hashN builds a deterministic, distinct chainhash.Hash for test fixtures.
func hashN(n byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = n
	return h
}

// buildTx assembles a MsgTx from (prevout) inputs and output values; every
// output is locked to the same one-byte OP_RETURN script.
func buildTx(prevOuts []wire.OutPoint, outputs []int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	for _, po := range prevOuts {
		po := po
		tx.AddTxIn(wire.NewTxIn(&po, nil, nil))
	}
	for _, v := range outputs {
		tx.AddTxOut(wire.NewTxOut(v, []byte{0x6a}))
	}
	return tx
}
