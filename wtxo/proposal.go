package wtxo

import (
	"sort"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// ProposalPolicy relaxes reserve_utxo's candidate set when a nym's
// confirmed balance alone cannot fund a proposal (§3.1, §4.5).
type ProposalPolicy struct {
	AllowUnconfirmedIncoming bool
	AllowUnconfirmedChange   bool
}

// ReserveUTXO runs the deterministic candidate-selection algorithm of
// §4.5: scan the nym's ConfirmedNew outputs grouped by block position,
// pick the first unreserved one, and transition it to UnconfirmedSpend
// under proposalID. Falls back to UnconfirmedNew candidates (optionally
// filtered to Change-tagged outputs) when policy permits and the
// confirmed scan found nothing. Returns (Outpoint{}, nil, false, nil)
// if no candidate exists.
//
// The scan-and-accumulate shape (sorted candidates, first acceptable
// one wins, skip already-claimed) is the same one a coin-selection loop
// uses to walk a UTXO set deterministically; here it stops at the first
// hit rather than accumulating toward a target amount, since one
// reservation call picks exactly one output.
func (c *Core) ReserveUTXO(nym NymID, proposalID ProposalID, policy ProposalPolicy) (Outpoint, *Output, bool, er.R) {
	var (
		chosen Outpoint
		out    *Output
		found  bool
	)
	err := c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		var rerr er.R
		chosen, out, found, rerr = c.reserveUTXO(kvtx, nym, proposalID, policy)
		return rerr
	})
	if err != nil {
		return Outpoint{}, nil, false, err
	}
	if found {
		c.publishNyms(map[string]struct{}{string(nym): {}})
	}
	return chosen, out, found, nil
}

func (c *Core) reserveUTXO(kvtx walletdb.ReadWriteTx, nym NymID, proposalID ProposalID, policy ProposalPolicy) (Outpoint, *Output, bool, er.R) {
	if chosen, out, ok, err := c.tryReserve(kvtx, nym, proposalID, StateConfirmedNew, false); err != nil || ok {
		return chosen, out, ok, err
	}

	if policy.AllowUnconfirmedChange || policy.AllowUnconfirmedIncoming {
		requireChange := policy.AllowUnconfirmedChange && !policy.AllowUnconfirmedIncoming
		if chosen, out, ok, err := c.tryReserve(kvtx, nym, proposalID, StateUnconfirmedNew, requireChange); err != nil || ok {
			return chosen, out, ok, err
		}
	}

	return Outpoint{}, nil, false, nil
}

// tryReserve scans candidates = I5[fromState] ∩ I3[nym], sorted by
// block position then outpoint for a deterministic order (Go
// deliberately randomizes map iteration, unlike the fixed-hasher
// container this algorithm is grounded on, so a stable sort stands in
// for "set-iteration order, deterministic for a given hasher").
func (c *Core) tryReserve(kvtx walletdb.ReadWriteTx, nym NymID, proposalID ProposalID, fromState State, changeOnly bool) (Outpoint, *Output, bool, er.R) {
	byState := make(map[Outpoint]struct{})
	for _, o := range c.index.OutpointsByState(fromState) {
		byState[o] = struct{}{}
	}

	candidates := make([]Outpoint, 0)
	for _, o := range c.index.OutpointsByNym(nym) {
		if _, ok := byState[o]; ok {
			candidates = append(candidates, o)
		}
	}
	sortByPositionThenOutpoint(c.store, candidates)

	for _, cand := range candidates {
		if _, reserved := c.index.OutputProposal(cand); reserved {
			continue
		}
		out, err := c.store.Get(cand)
		if err != nil {
			return Outpoint{}, nil, false, err
		}
		if changeOnly && !out.Tags.Has(TagChange) {
			continue
		}

		if err := ChangeState(kvtx, c.store, c.index, cand, StateUnconfirmedSpend, out.Position); err != nil {
			return Outpoint{}, nil, false, err
		}
		if err := c.index.AddProposalSpent(kvtx, proposalID, cand); err != nil {
			return Outpoint{}, nil, false, err
		}
		c.queueStateChange(cand, fromState, StateUnconfirmedSpend, out.Position)
		return cand, out.Clone(), true, nil
	}
	return Outpoint{}, nil, false, nil
}

func sortByPositionThenOutpoint(store *OutputStore, outpoints []Outpoint) {
	heights := make(map[Outpoint]int64, len(outpoints))
	for _, o := range outpoints {
		if out, err := store.Get(o); err == nil {
			heights[o] = out.Position.Height
		}
	}
	sort.Slice(outpoints, func(i, j int) bool {
		if heights[outpoints[i]] != heights[outpoints[j]] {
			return heights[outpoints[i]] < heights[outpoints[j]]
		}
		return outpoints[i].Compare(outpoints[j]) < 0
	})
}

// CancelProposal reverses a reservation: spent outpoints return to
// ConfirmedNew, created outpoints become orphaned, and both proposal
// indices are cleared (§4.5).
func (c *Core) CancelProposal(proposalID ProposalID) er.R {
	return c.mutate(func(kvtx walletdb.ReadWriteTx) er.R {
		spent := c.index.ProposalSpentOutpoints(proposalID)
		created := c.index.ProposalCreatedOutpoints(proposalID)

		for _, o := range spent {
			out, err := c.store.Get(o)
			if err != nil {
				return err
			}
			if err := ChangeState(kvtx, c.store, c.index, o, StateConfirmedNew, out.Position); err != nil {
				return err
			}
			c.queueStateChange(o, StateUnconfirmedSpend, StateConfirmedNew, out.Position)
			if err := c.index.RemoveProposalOutpoint(kvtx, proposalID, o); err != nil {
				return err
			}
		}
		for _, o := range created {
			out, err := c.store.Get(o)
			if err != nil {
				return err
			}
			if err := ChangeState(kvtx, c.store, c.index, o, StateOrphanedNew, out.Position); err != nil {
				return err
			}
			c.queueStateChange(o, StateUnconfirmedNew, StateOrphanedNew, out.Position)
			if err := c.index.RemoveProposalOutpoint(kvtx, proposalID, o); err != nil {
				return err
			}
		}

		if c.proposals != nil {
			if err := c.proposals.MarkCancelled(proposalID); err != nil {
				return err
			}
		}
		return nil
	})
}
