package wtxo

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// OwnedOutput tells the ingest pipeline which of a transaction's
// outputs belong to this wallet and which wallet key(s) each one is
// locked to. A key whose Subchain is SubchainOutgoing marks an output
// that is NOT ours -- ownership has inverted to the recipient -- but
// whose counterparty we can still resolve (§4.4 step 4).
type OwnedOutput struct {
	Index uint32
	Keys  []KeyRef
}

// ingestParams carries the three entry points' shared configuration
// into the one pipeline they all run (§4.4).
type ingestParams struct {
	subaccountID uint32
	subchain     Subchain
	position     BlockPosition
	inputState   State
	outputState  State
	proposal     ProposalID // non-nil only for add_outgoing
	isGeneration bool
}

// AddConfirmed ingests a transaction seen in a block: inputs move to
// ConfirmedSpend, owned outputs to ConfirmedNew. isGeneration marks a
// coinbase transaction, triggering the Immature rewrite and Generation
// tag/index (§3.2, §3.3); it is never true for add_mempool/add_outgoing
// since neither can observe a coinbase before it is mined.
func (c *Core) AddConfirmed(subaccountID uint32, subchain Subchain, position BlockPosition, owned []OwnedOutput, tx *wire.MsgTx, isGeneration bool) er.R {
	var touched map[string]struct{}
	err := c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		var ierr er.R
		touched, ierr = c.ingest(kvtx, ingestParams{
			subaccountID: subaccountID,
			subchain:     subchain,
			position:     position,
			inputState:   StateConfirmedSpend,
			outputState:  StateConfirmedNew,
			isGeneration: isGeneration,
		}, owned, tx)
		return ierr
	})
	if err == nil {
		c.publishNyms(touched)
	}
	return err
}

// AddMempool ingests a transaction seen only in the mempool: inputs
// move to UnconfirmedSpend, owned outputs to UnconfirmedNew, position
// is the unmined sentinel.
func (c *Core) AddMempool(subaccountID uint32, subchain Subchain, owned []OwnedOutput, tx *wire.MsgTx) er.R {
	var touched map[string]struct{}
	err := c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		var ierr er.R
		touched, ierr = c.ingest(kvtx, ingestParams{
			subaccountID: subaccountID,
			subchain:     subchain,
			position:     UnminedPosition,
			inputState:   StateUnconfirmedSpend,
			outputState:  StateUnconfirmedNew,
		}, owned, tx)
		return ierr
	})
	if err == nil {
		c.publishNyms(touched)
	}
	return err
}

// AddOutgoing ingests a locally-authored transaction that spends
// outputs a proposal already reserved (already in UnconfirmedSpend);
// its new outputs land in UnconfirmedNew under the unmined sentinel.
func (c *Core) AddOutgoing(proposalID ProposalID, owned []OwnedOutput, tx *wire.MsgTx) er.R {
	var touched map[string]struct{}
	err := c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		var ierr er.R
		touched, ierr = c.ingest(kvtx, ingestParams{
			position:    UnminedPosition,
			inputState:  StateUnconfirmedSpend,
			outputState: StateUnconfirmedNew,
			proposal:    proposalID,
		}, owned, tx)
		return ierr
	})
	if err == nil {
		c.publishNyms(touched)
	}
	return err
}

// ingest runs the six-step pipeline common to every entry point (§4.4).
// Inputs are always processed before outputs so that a chained
// self-spend within a single call observes the correct prior state. It
// returns the set of nym ids whose balance may have changed, for the
// caller to publish once the whole mutation has committed.
func (c *Core) ingest(kvtx walletdb.ReadWriteTx, p ingestParams, owned []OwnedOutput, tx *wire.MsgTx) (map[string]struct{}, er.R) {
	txHash := tx.TxHash()
	touched := make(map[string]struct{})

	nymOfOutpoint := func(o Outpoint) {
		out, gerr := c.store.Get(o)
		if gerr != nil {
			return
		}
		for _, k := range out.Keys {
			if len(k.Nym) > 0 {
				touched[string(k.Nym)] = struct{}{}
			}
		}
	}

	// Step 1: proposal reconciliation for each consumed input.
	seen := make(map[string]bool)
	for _, in := range tx.TxIn {
		prev := toOutpoint(in.PreviousOutPoint)
		proposalID, ok := c.index.OutputProposal(prev)
		if !ok {
			continue
		}
		key := string(proposalID)
		if seen[key] {
			continue
		}
		seen[key] = true

		for _, created := range c.index.ProposalCreatedOutpoints(proposalID) {
			if created.Hash != txHash {
				old, gerr := c.store.Get(created)
				if gerr != nil {
					return nil, gerr
				}
				oldState := old.State
				if err := ChangeState(kvtx, c.store, c.index, created, StateOrphanedNew, p.position); err != nil {
					return nil, err
				}
				nymOfOutpoint(created)
				c.queueStateChange(created, oldState, StateOrphanedNew, p.position)
			}
		}
		for _, o := range c.index.ProposalSpentOutpoints(proposalID) {
			if err := c.index.RemoveProposalOutpoint(kvtx, proposalID, o); err != nil {
				return nil, err
			}
		}
		for _, o := range c.index.ProposalCreatedOutpoints(proposalID) {
			if err := c.index.RemoveProposalOutpoint(kvtx, proposalID, o); err != nil {
				return nil, err
			}
		}
		if c.proposals != nil {
			if err := c.proposals.MarkFinished(proposalID); err != nil {
				return nil, err
			}
		}
	}

	// Step 2: input handling.
	for _, in := range tx.TxIn {
		prev := toOutpoint(in.PreviousOutPoint)
		if !c.store.Exists(prev) {
			log.Debugf("ingest: prevout %s not ours, skipping", prev)
			continue
		}
		out, err := c.store.Get(prev)
		if err != nil {
			return nil, err
		}
		if out.State == p.inputState {
			continue // already ingested; §8 idempotence law
		}
		oldState := out.State
		if err := ChangeState(kvtx, c.store, c.index, prev, p.inputState, p.position); err != nil {
			return nil, err
		}
		nymOfOutpoint(prev)
		c.queueStateChange(prev, oldState, p.inputState, p.position)
	}

	// Step 3 & 4: output handling, including the outgoing-subchain
	// special case.
	for _, oo := range owned {
		if int(oo.Index) >= len(tx.TxOut) {
			return nil, ErrSerialization.New("owned output index out of range", nil)
		}
		txOut := tx.TxOut[oo.Index]
		outpoint := Outpoint{Hash: txHash, Index: oo.Index}

		isOutgoing, ownKeys, err := c.classifyKeys(oo.Keys)
		if err != nil {
			return nil, err
		}

		ownerships := make([]KeyOwnership, 0, len(oo.Keys))
		nymOf := make(map[KeyRef]NymID, len(ownKeys))
		for _, k := range ownKeys {
			nym, nerr := c.keys.OwnerNym(k)
			if nerr != nil {
				return nil, nerr
			}
			nymOf[k] = nym
			ownerships = append(ownerships, KeyOwnership{KeyRef: k, Nym: nym})
		}
		for _, k := range oo.Keys {
			if k.Subchain == SubchainOutgoing {
				ownerships = append(ownerships, KeyOwnership{KeyRef: k})
			}
		}

		if c.store.Exists(outpoint) {
			existing, gerr := c.store.Get(outpoint)
			if gerr != nil {
				return nil, gerr
			}
			if existing.State != p.outputState {
				oldState := existing.State
				if err := ChangeState(kvtx, c.store, c.index, outpoint, p.outputState, p.position); err != nil {
					return nil, err
				}
				c.queueStateChange(outpoint, oldState, p.outputState, p.position)
			}
		} else {
			tags := NewTagSet(TagNormal)
			out := &Output{
				Outpoint: outpoint,
				Amount:   NewAmount(txOut.Value),
				Script:   txOut.PkScript,
				Pattern:  classifyScript(txOut.PkScript),
				Keys:     ownerships,
				State:    p.outputState,
				Position: p.position,
				Tags:     tags,
			}
			if isOutgoing {
				payer, payee, cerr := c.resolveCounterparty(oo.Keys)
				if cerr != nil {
					return nil, cerr
				}
				out.Payer, out.Payee = payer, payee
			}
			tipHeight := c.tip.Height
			if p.position.Height > tipHeight {
				tipHeight = p.position.Height
			}
			if err := CreateState(kvtx, c.store, c.index, out, p.isGeneration, tipHeight, c.maturationInterval()); err != nil {
				return nil, err
			}
			c.queueStateChange(outpoint, StateError, out.State, out.Position)
		}

		if isOutgoing {
			continue // not ours: no I1/I2/I3/I6 membership under our own ownership
		}

		if err := c.index.AddAccount(kvtx, p.subaccountID, outpoint); err != nil {
			return nil, err
		}
		if err := c.index.AddSubchain(kvtx, SubchainID{SubaccountID: p.subaccountID, Subchain: p.subchain}, outpoint); err != nil {
			return nil, err
		}
		for _, k := range ownKeys {
			if err := c.index.AddKey(kvtx, k, outpoint); err != nil {
				return nil, err
			}
			if nym := nymOf[k]; len(nym) > 0 {
				if err := c.index.AddNym(kvtx, nym, outpoint); err != nil {
					return nil, err
				}
				touched[string(nym)] = struct{}{}
			}
		}

		if len(p.proposal) > 0 {
			if err := c.index.AddProposalCreated(kvtx, p.proposal, outpoint); err != nil {
				return nil, err
			}
		}
	}

	// Step 5: process-transaction hook.
	if c.keys != nil {
		ops := make([]Outpoint, 0, len(owned))
		for _, oo := range owned {
			ops = append(ops, Outpoint{Hash: txHash, Index: oo.Index})
		}
		if err := c.keys.ProcessTransaction(ops); err != nil {
			return nil, err
		}
	}

	return touched, nil
}

// classifyKeys separates a key list into the Outgoing-subchain key (at
// most one is expected) and the rest, which this wallet actually owns.
func (c *Core) classifyKeys(keys []KeyRef) (isOutgoing bool, ownKeys []KeyRef, err er.R) {
	for _, k := range keys {
		if k.Subchain == SubchainOutgoing {
			isOutgoing = true
			continue
		}
		ownKeys = append(ownKeys, k)
	}
	return isOutgoing, ownKeys, nil
}

func (c *Core) resolveCounterparty(keys []KeyRef) (*ContactID, *ContactID, er.R) {
	for _, k := range keys {
		if k.Subchain == SubchainOutgoing {
			return c.keys.Counterparty(k)
		}
	}
	return nil, nil, nil
}

func toOutpoint(o wire.OutPoint) Outpoint {
	return Outpoint{Hash: o.Hash, Index: o.Index}
}
