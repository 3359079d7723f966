package wtxo

import (
	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// ChangeState moves an already-stored outpoint from its current state
// to newState, enforcing the legal-transition table (§3.2) and the
// position-retention rule (§4.3): transitioning into an unconfirmed
// state keeps whatever confirmed position is already stored (invariant
// 4); transitioning into a confirmed state replaces it with
// newPosition.
func ChangeState(tx walletdb.ReadWriteTx, store *OutputStore, ix *IndexSet, outpoint Outpoint, newState State, newPosition BlockPosition) er.R {
	out, err := store.GetMut(outpoint)
	if err != nil {
		return err
	}
	if !IsLegalTransition(out.State, newState) {
		log.Warnf("illegal transition for %s: %s -> %s", outpoint, out.State, newState)
		return ErrIllegalTransition.New(out.State.String()+" -> "+newState.String(), nil)
	}

	oldPosition := out.Position
	if !isUnconfirmed(newState) {
		out.Position = newPosition
	}
	out.State = newState

	if err := store.WriteBack(tx, outpoint); err != nil {
		return err
	}
	if err := ix.TransitionState(tx, outpoint, newState); err != nil {
		return err
	}
	if !out.Position.Equal(oldPosition) {
		if err := ix.MovePosition(tx, outpoint, oldPosition, out.Position); err != nil {
			return err
		}
	}
	return nil
}

// ReorgState performs the privileged state move §3.5 grants the Reorg
// Controller alone: moving a confirmed output directly back to its
// unconfirmed counterpart (generation outputs are not handled here --
// Core.FinalizeReorg orphans them) without going through the
// ordinary legal-transition gate that Transaction Ingest and the
// Proposal Adapter are held to. The position-retention rule of §4.3
// still applies.
func ReorgState(tx walletdb.ReadWriteTx, store *OutputStore, ix *IndexSet, outpoint Outpoint, newState State, newPosition BlockPosition) er.R {
	out, err := store.GetMut(outpoint)
	if err != nil {
		return err
	}

	oldPosition := out.Position
	if !isUnconfirmed(newState) {
		out.Position = newPosition
	}
	out.State = newState

	if err := store.WriteBack(tx, outpoint); err != nil {
		return err
	}
	if err := ix.TransitionState(tx, outpoint, newState); err != nil {
		return err
	}
	if !out.Position.Equal(oldPosition) {
		if err := ix.MovePosition(tx, outpoint, oldPosition, out.Position); err != nil {
			return err
		}
	}
	return nil
}

// CreateState inserts a brand-new output record and places it into its
// initial state and position/state/generation indices. out.State and
// out.Position must already hold the requested target values; when
// isGeneration is true and the target is ConfirmedNew, CreateState
// transparently rewrites the target to Immature unless the output is
// already maturationInterval confirmations deep relative to
// chainTipHeight (§4.3).
func CreateState(tx walletdb.ReadWriteTx, store *OutputStore, ix *IndexSet, out *Output, isGeneration bool, chainTipHeight int64, maturationInterval uint16) er.R {
	target := out.State
	if isGeneration && target == StateConfirmedNew {
		confs := chainTipHeight - out.Position.Height
		if confs < int64(maturationInterval) {
			target = StateImmature
		}
	}
	if !IsLegalTransition(StateError, target) {
		return ErrIllegalTransition.New("create -> "+target.String(), nil)
	}
	out.State = target

	if isGeneration {
		out.Tags.Add(TagGeneration)
	}

	if err := store.Insert(tx, out); err != nil {
		return err
	}
	if err := ix.TransitionState(tx, out.Outpoint, target); err != nil {
		return err
	}
	if err := ix.AddPosition(tx, out.Position, out.Outpoint); err != nil {
		return err
	}
	if isGeneration {
		if err := ix.AddGeneration(tx, out.Position.Height, out.Outpoint); err != nil {
			return err
		}
	}
	return nil
}
