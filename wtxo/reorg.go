package wtxo

import (
	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// StartReorg transitions every outpoint belonging to subchainID that is
// mined at position back to its unconfirmed counterpart --
// ConfirmedNew/OrphanedNew to UnconfirmedNew, ConfirmedSpend/
// OrphanedSpend to UnconfirmedSpend -- and tells the key registry to
// unconfirm the last use of every key reference involved (§4.6).
func (c *Core) StartReorg(subchainID SubchainID, position BlockPosition) er.R {
	return c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		return c.startReorg(kvtx, subchainID, position)
	})
}

func (c *Core) startReorg(kvtx walletdb.ReadWriteTx, subchainID SubchainID, position BlockPosition) er.R {
	atPosition := make(map[Outpoint]struct{})
	for _, o := range c.index.OutpointsByPosition(position) {
		atPosition[o] = struct{}{}
	}

	for _, o := range c.index.OutpointsBySubchain(subchainID) {
		if _, ok := atPosition[o]; !ok {
			continue
		}
		out, err := c.store.Get(o)
		if err != nil {
			return err
		}

		var target State
		switch out.State {
		case StateConfirmedNew, StateOrphanedNew:
			target = StateUnconfirmedNew
		case StateConfirmedSpend, StateOrphanedSpend:
			target = StateUnconfirmedSpend
		default:
			continue
		}

		oldState := out.State
		oldPosition := out.Position
		if err := ReorgState(kvtx, c.store, c.index, o, target, position); err != nil {
			return err
		}
		c.queueStateChange(o, oldState, target, oldPosition)

		if c.keys != nil {
			for _, k := range out.Keys {
				if err := c.keys.UnconfirmLastUse(k.KeyRef); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// FinalizeReorg walks I8 backward and orphans every generation outpoint
// at a height at or above newTip, removing its I8 entry, then persists
// the new wallet tip (§4.6).
func (c *Core) FinalizeReorg(newTip BlockPosition) er.R {
	return c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		for _, h := range c.index.Heights() {
			if h < newTip.Height {
				break // Heights() is sorted descending; nothing further qualifies
			}
			for _, o := range c.index.OutpointsByHeight(h) {
				out, err := c.store.Get(o)
				if err != nil {
					return err
				}
				oldState := out.State
				if err := ChangeState(kvtx, c.store, c.index, o, StateOrphanedNew, out.Position); err != nil {
					return err
				}
				c.queueStateChange(o, oldState, StateOrphanedNew, out.Position)
				if err := c.index.RemoveGeneration(kvtx, h, o); err != nil {
					return err
				}
			}
		}
		return c.storeTip(kvtx, newTip)
	})
}

// AdvanceTo matures every Immature generation outpoint at or below
// newTip.Height - maturationInterval to ConfirmedNew, then persists the
// new wallet tip -- the non-reorg path for catching up to a new block
// (§4.6).
func (c *Core) AdvanceTo(newTip BlockPosition) er.R {
	return c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		threshold := newTip.Height - int64(c.maturationInterval())
		for _, h := range c.index.Heights() {
			if h > threshold {
				continue
			}
			for _, o := range c.index.OutpointsByHeight(h) {
				out, err := c.store.Get(o)
				if err != nil {
					return err
				}
				if out.State != StateImmature {
					continue
				}
				if err := ChangeState(kvtx, c.store, c.index, o, StateConfirmedNew, out.Position); err != nil {
					return err
				}
				c.queueStateChange(o, StateImmature, StateConfirmedNew, out.Position)
			}
		}
		return c.storeTip(kvtx, newTip)
	})
}
