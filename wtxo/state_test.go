package wtxo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

func TestIsLegalTransitionTable(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateError, StateUnconfirmedNew, true},
		{StateError, StateConfirmedNew, true},
		{StateError, StateImmature, true},
		{StateError, StateConfirmedSpend, false},
		{StateUnconfirmedNew, StateConfirmedNew, true},
		{StateUnconfirmedNew, StateUnconfirmedSpend, true},
		{StateUnconfirmedNew, StateOrphanedNew, true},
		{StateConfirmedNew, StateUnconfirmedSpend, true},
		{StateConfirmedNew, StateConfirmedSpend, true},
		{StateConfirmedNew, StateUnconfirmedNew, false},
		{StateUnconfirmedSpend, StateConfirmedNew, true}, // cancellation
		{StateUnconfirmedSpend, StateConfirmedSpend, true},
		{StateConfirmedSpend, StateOrphanedSpend, true},
		{StateConfirmedSpend, StateConfirmedNew, false},
		{StateOrphanedNew, StateUnconfirmedNew, true},
		{StateOrphanedNew, StateConfirmedNew, true},
		{StateOrphanedSpend, StateUnconfirmedSpend, true},
		{StateOrphanedSpend, StateConfirmedSpend, true},
		{StateImmature, StateConfirmedNew, true},
		{StateImmature, StateOrphanedNew, true},
		{StateImmature, StateUnconfirmedNew, false},
	}
	for _, c := range cases {
		got := IsLegalTransition(c.from, c.to)
		require.Equalf(t, c.want, got, "%s -> %s", c.from, c.to)
	}
}

func TestStateStringNamesAreDistinct(t *testing.T) {
	seen := make(map[string]State)
	for _, s := range allStates {
		name := s.String()
		require.NotEqual(t, "Error", name)
		if prior, ok := seen[name]; ok {
			t.Fatalf("states %v and %v share the name %q", prior, s, name)
		}
		seen[name] = s
	}
}

// TestChangeStatePurgesEveryOtherStateBucket is property P1: an outpoint
// belongs to exactly one of the seven state indices at any time.
func TestChangeStatePurgesEveryOtherStateBucket(t *testing.T) {
	core, _, _, _ := newTestCore(t, 0)

	op := Outpoint{Hash: hashN(1), Index: 0}
	err := core.mutate(func(tx walletdb.ReadWriteTx) er.R {
		out := &Output{
			Outpoint: op,
			Amount:   NewAmount(1000),
			Position: BlockPosition{Height: 10, Hash: hashN(2)},
			State:    StateConfirmedNew,
			Tags:     NewTagSet(TagNormal),
		}
		if err := CreateState(tx, core.store, core.index, out, false, 10, 0); err != nil {
			return err
		}
		return ChangeState(tx, core.store, core.index, op, StateConfirmedSpend, out.Position)
	})
	require.Nil(t, err)

	present := 0
	for _, s := range allStates {
		members := core.index.OutpointsByState(s)
		found := false
		for _, o := range members {
			if o == op {
				found = true
			}
		}
		if found {
			present++
			require.Equal(t, StateConfirmedSpend, s)
		}
	}
	require.Equal(t, 1, present)
}
