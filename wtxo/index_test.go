package wtxo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// TestIndexSetPopulateRoundTrip rebuilds a fresh IndexSet from whatever
// another one wrote to the KV store and checks every axis agrees,
// covering property P8 (KV <-> memory parity).
func TestIndexSetPopulateRoundTrip(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)

	op1 := Outpoint{Hash: hashN(1), Index: 0}
	op2 := Outpoint{Hash: hashN(2), Index: 1}
	keyA := KeyRef{SubaccountID: 1, Subchain: SubchainExternal, Index: 0}
	pos := BlockPosition{Height: 10, Hash: hashN(3)}
	subchainID := SubchainID{SubaccountID: 1, Subchain: SubchainExternal}

	err := core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		if err := core.index.AddAccount(tx, 1, op1); err != nil {
			return err
		}
		if err := core.index.AddKey(tx, keyA, op1); err != nil {
			return err
		}
		if err := core.index.AddNym(tx, NymID("nym-1"), op1); err != nil {
			return err
		}
		if err := core.index.AddPosition(tx, pos, op1); err != nil {
			return err
		}
		if err := core.index.TransitionState(tx, op1, StateConfirmedNew); err != nil {
			return err
		}
		if err := core.index.AddSubchain(tx, subchainID, op1); err != nil {
			return err
		}
		if err := core.index.AddProposalSpent(tx, ProposalID("p1"), op1); err != nil {
			return err
		}
		if err := core.index.AddProposalCreated(tx, ProposalID("p1"), op2); err != nil {
			return err
		}
		return core.index.AddGeneration(tx, pos.Height, op1)
	})
	require.Nil(t, err)

	rebuilt := NewIndexSet()
	verr := core.db.View(func(tx walletdb.ReadTx) er.R {
		return rebuilt.Populate(tx)
	})
	require.Nil(t, verr)

	require.Equal(t, core.index.OutpointsBySubaccount(1), rebuilt.OutpointsBySubaccount(1))
	require.Equal(t, core.index.OutpointsByKey(keyA), rebuilt.OutpointsByKey(keyA))
	require.Equal(t, core.index.OutpointsByNym(NymID("nym-1")), rebuilt.OutpointsByNym(NymID("nym-1")))
	require.Equal(t, core.index.OutpointsByPosition(pos), rebuilt.OutpointsByPosition(pos))
	require.Equal(t, core.index.OutpointsByState(StateConfirmedNew), rebuilt.OutpointsByState(StateConfirmedNew))
	require.Equal(t, core.index.OutpointsBySubchain(subchainID), rebuilt.OutpointsBySubchain(subchainID))
	require.Equal(t, core.index.ProposalSpentOutpoints(ProposalID("p1")), rebuilt.ProposalSpentOutpoints(ProposalID("p1")))
	require.Equal(t, core.index.ProposalCreatedOutpoints(ProposalID("p1")), rebuilt.ProposalCreatedOutpoints(ProposalID("p1")))
	require.Equal(t, core.index.OutpointsByHeight(pos.Height), rebuilt.OutpointsByHeight(pos.Height))

	gotProposal, ok := rebuilt.OutputProposal(op1)
	require.True(t, ok)
	require.Equal(t, ProposalID("p1"), gotProposal)
}

// TestMovePositionMaintainsUniqueness is property P3: an outpoint never
// appears under two different block positions at once.
func TestMovePositionMaintainsUniqueness(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)
	op := Outpoint{Hash: hashN(4), Index: 0}
	oldPos := BlockPosition{Height: 1, Hash: hashN(1)}
	newPos := BlockPosition{Height: 2, Hash: hashN(2)}

	err := core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		if err := core.index.AddPosition(tx, oldPos, op); err != nil {
			return err
		}
		return core.index.MovePosition(tx, op, oldPos, newPos)
	})
	require.Nil(t, err)

	require.Empty(t, core.index.OutpointsByPosition(oldPos))
	require.Equal(t, []Outpoint{op}, core.index.OutpointsByPosition(newPos))
}

func TestRemoveProposalOutpointClearsBothDirections(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)
	op := Outpoint{Hash: hashN(5), Index: 0}
	prop := ProposalID("p9")

	err := core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		if err := core.index.AddProposalSpent(tx, prop, op); err != nil {
			return err
		}
		return core.index.RemoveProposalOutpoint(tx, prop, op)
	})
	require.Nil(t, err)

	require.Empty(t, core.index.ProposalSpentOutpoints(prop))
	_, ok := core.index.OutputProposal(op)
	require.False(t, ok)
}

// TestIndexClosureForOwnedKeys is property P2: every stored output
// belonging to an owning key is reachable through I2 (by key), I1 (by
// subaccount), and I3 (by nym) all at once.
func TestIndexClosureForOwnedKeys(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)

	funding := fundConfirmed(t, core, 20, 5, 50_000)
	out, err := core.store.Get(funding)
	require.Nil(t, err)
	require.NotEmpty(t, out.Keys)

	for _, k := range out.Keys {
		require.Contains(t, core.index.OutpointsByKey(k.KeyRef), funding)
		require.Contains(t, core.index.OutpointsBySubaccount(k.KeyRef.SubaccountID), funding)
		require.Contains(t, core.index.OutpointsByNym(k.Nym), funding)
	}
}

// TestGenerationIndexMembersAreImmatureOrConfirmed is property P4: every
// outpoint tracked in I8 at a given height is either still Immature or
// has matured to ConfirmedNew, and its stored position height matches
// the index key it's filed under.
func TestGenerationIndexMembersAreImmatureOrConfirmed(t *testing.T) {
	core, _, _, _ := newTestCore(t, 2)

	tx := buildTx(nil, []int64{5_000_000_000})
	pos := BlockPosition{Height: 100, Hash: hashN(21)}
	owned := []OwnedOutput{{Index: 0, Keys: []KeyRef{keyA(0)}}}
	err := core.AddConfirmed(1, SubchainExternal, pos, owned, tx, true)
	require.Nil(t, err)

	op := Outpoint{Hash: tx.TxHash(), Index: 0}
	require.Contains(t, core.index.OutpointsByHeight(100), op)
	out, gerr := core.store.Get(op)
	require.Nil(t, gerr)
	require.Equal(t, StateImmature, out.State)
	require.Equal(t, int64(100), out.Position.Height)

	err = core.AdvanceTo(BlockPosition{Height: 102, Hash: hashN(22)})
	require.Nil(t, err)

	out, gerr = core.store.Get(op)
	require.Nil(t, gerr)
	require.Equal(t, StateConfirmedNew, out.State)
	require.Equal(t, int64(100), out.Position.Height)
	require.Contains(t, core.index.OutpointsByHeight(100), op)
}

// TestProposalSymmetry is property P5: an outpoint has a forward
// output_proposal entry exactly when it appears in that proposal's
// spent or created set.
func TestProposalSymmetry(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)
	spentOp := Outpoint{Hash: hashN(30), Index: 0}
	createdOp := Outpoint{Hash: hashN(31), Index: 0}
	prop := ProposalID("p-sym")

	err := core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		if err := core.index.AddProposalSpent(tx, prop, spentOp); err != nil {
			return err
		}
		return core.index.AddProposalCreated(tx, prop, createdOp)
	})
	require.Nil(t, err)

	for _, op := range []Outpoint{spentOp, createdOp} {
		got, ok := core.index.OutputProposal(op)
		require.True(t, ok)
		require.Equal(t, prop, got)
	}
	require.Contains(t, core.index.ProposalSpentOutpoints(prop), spentOp)
	require.Contains(t, core.index.ProposalCreatedOutpoints(prop), createdOp)

	err = core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		return core.index.RemoveProposalOutpoint(tx, prop, spentOp)
	})
	require.Nil(t, err)

	_, ok := core.index.OutputProposal(spentOp)
	require.False(t, ok)
	require.NotContains(t, core.index.ProposalSpentOutpoints(prop), spentOp)

	_, ok = core.index.OutputProposal(createdOp)
	require.True(t, ok)
}
