package wtxo

import "github.com/chainwallet/utxocore/er"

// KeyRegistry is the external collaborator that owns key derivation and
// key-to-nym ownership. Transaction Ingest consults it once per key
// reference attached to an output (§4.4 steps 3-4); the Reorg
// Controller notifies it when a confirmed key use is rolled back
// (§4.6). It is invoked only from mutators, only under the exclusive
// lock (§5) -- never concurrently with itself.
type KeyRegistry interface {
	// OwnerNym returns the nym id that owns k, or an empty NymID if k
	// is not recognized (the caller then proceeds without I3
	// membership for that key).
	OwnerNym(k KeyRef) (NymID, er.R)

	// Counterparty resolves the contact ids for a key in the Outgoing
	// subchain: the recipient we paid (payee) and, if known, the nym
	// we paid from (payer). Either may be nil.
	Counterparty(k KeyRef) (payer, payee *ContactID, err er.R)

	// ProcessTransaction lets the registry learn about newly used keys
	// after a transaction has been fully ingested (§4.4 step 5).
	ProcessTransaction(outpoints []Outpoint) er.R

	// UnconfirmLastUse notifies the registry that k's most recent
	// confirmed use has been rolled back by a reorg (§4.6
	// start_reorg).
	UnconfirmLastUse(k KeyRef) er.R
}

// ProposalRegistry is the external store of record for spend proposals
// themselves (their policy, broadcast status, and lifecycle). The
// Proposal Adapter only ever marks proposals finished or cancelled
// through it; it never reads proposal content back.
type ProposalRegistry interface {
	MarkFinished(id ProposalID) er.R
	MarkCancelled(id ProposalID) er.R
}

// EventSink receives the observable events §6.4 requires the core to
// publish after every commit. Implementations must not block for long:
// StateChanged is invoked while the exclusive lock is still held;
// BalanceChanged is invoked after the mutator has released it.
type EventSink interface {
	// BalanceChanged is published once per affected nym, plus once
	// more with a nil nym for the wallet-level balance.
	BalanceChanged(nym NymID)

	// StateChanged is published once per outpoint whose state or
	// position changed during the triggering call.
	StateChanged(outpoint Outpoint, oldState, newState State, position BlockPosition)
}

// NopEventSink discards every event; useful where a caller has not
// wired a real subscriber yet.
type NopEventSink struct{}

func (NopEventSink) BalanceChanged(NymID)                               {}
func (NopEventSink) StateChanged(Outpoint, State, State, BlockPosition) {}
