package wtxo

// BalanceSet is a three-way split of an aggregate balance: confirmed
// (ConfirmedNew, i.e. spendable), unconfirmed (UnconfirmedNew), and
// immature (Immature) -- the three states that contribute a positive
// balance to an owner (§3.4 invariant 7, supplemented per
// original_source/'s per-nym/per-subaccount breakdown).
type BalanceSet struct {
	Confirmed   Amount
	Unconfirmed Amount
	Immature    Amount
}

func (b *BalanceSet) add(state State, amt Amount) {
	switch state {
	case StateConfirmedNew:
		b.Confirmed = b.Confirmed.Add(amt)
	case StateUnconfirmedNew:
		b.Unconfirmed = b.Unconfirmed.Add(amt)
	case StateImmature:
		b.Immature = b.Immature.Add(amt)
	}
}

// BalanceByNym sums every outpoint owned by nym into a BalanceSet,
// served from in-memory indices (I3) without touching the KV store
// (§5). Held under a shared lock.
func (c *Core) BalanceByNym(nym NymID) BalanceSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bal BalanceSet
	for _, o := range c.index.OutpointsByNym(nym) {
		out, err := c.store.Get(o)
		if err != nil {
			continue
		}
		bal.add(out.State, out.Amount)
	}
	return bal
}

// BalanceBySubaccount sums every outpoint belonging to id (I1).
func (c *Core) BalanceBySubaccount(id uint32) BalanceSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bal BalanceSet
	for _, o := range c.index.OutpointsBySubaccount(id) {
		out, err := c.store.Get(o)
		if err != nil {
			continue
		}
		bal.add(out.State, out.Amount)
	}
	return bal
}

// BalanceByChain sums the entire store -- the wallet-level balance
// published alongside every per-nym event (§6.4).
func (c *Core) BalanceByChain() BalanceSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bal BalanceSet
	for _, s := range []State{StateConfirmedNew, StateUnconfirmedNew, StateImmature} {
		for _, o := range c.index.OutpointsByState(s) {
			out, err := c.store.Get(o)
			if err != nil {
				continue
			}
			bal.add(out.State, out.Amount)
		}
	}
	return bal
}

// OutputsByAxis is a generic index -> outputs accessor: given a set of
// outpoints from any of the eight axes, resolve and clone each into a
// caller-safe Output. OutputsBySubaccount, for instance, passes the I1
// members for a subaccount as the outpoints argument.
func (c *Core) OutputsByAxis(outpoints []Outpoint) []*Output {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Output, 0, len(outpoints))
	for _, o := range outpoints {
		if rec, err := c.store.Get(o); err == nil {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// OutputsBySubaccount resolves I1[id] to full Output records.
func (c *Core) OutputsBySubaccount(id uint32) []*Output {
	c.mu.RLock()
	outpoints := c.index.OutpointsBySubaccount(id)
	c.mu.RUnlock()
	return c.OutputsByAxis(outpoints)
}

// OutputsByNym resolves I3[nym] to full Output records.
func (c *Core) OutputsByNym(nym NymID) []*Output {
	c.mu.RLock()
	outpoints := c.index.OutpointsByNym(nym)
	c.mu.RUnlock()
	return c.OutputsByAxis(outpoints)
}

// OutputsByState resolves I5[state] to full Output records.
func (c *Core) OutputsByState(state State) []*Output {
	c.mu.RLock()
	outpoints := c.index.OutpointsByState(state)
	c.mu.RUnlock()
	return c.OutputsByAxis(outpoints)
}

// Tags returns the tag set of a single output, or nil if it's not in
// the store.
func (c *Core) Tags(outpoint Outpoint) TagSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out, err := c.store.Get(outpoint)
	if err != nil {
		return nil
	}
	return out.Tags
}
