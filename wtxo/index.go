package wtxo

import (
	"sort"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// IndexSet holds the eight outpoint-set-valued indices described in
// spec.md §4.2 (I1-I8), in memory, mirrored to the KV tables of §6.1.
// It never owns an Output record, only references to its Outpoint.
// Every mutation goes through one of the methods below so that the
// "purge from all seven non-target state buckets, insert into one"
// discipline (invariant 2) lives in exactly one place instead of being
// repeated at every call site, per the design note in spec.md §9.
type IndexSet struct {
	bySubaccount map[uint32]map[Outpoint]struct{}    // I1
	byKey        map[KeyRef]map[Outpoint]struct{}    // I2
	byNym        map[string]map[Outpoint]struct{}    // I3
	byPosition   map[BlockPosition]map[Outpoint]struct{} // I4
	byState      map[State]map[Outpoint]struct{}     // I5
	bySubchain   map[SubchainID]map[Outpoint]struct{} // I6

	proposalSpent   map[string]map[Outpoint]struct{} // I7: proposal -> spent outpoints
	proposalCreated map[string]map[Outpoint]struct{} // I7: proposal -> created outpoints
	outputProposal  map[Outpoint]string              // I7 inverse: outpoint -> proposal

	byHeight map[int64]map[Outpoint]struct{} // I8
}

// NewIndexSet constructs an empty index set.
func NewIndexSet() *IndexSet {
	return &IndexSet{
		bySubaccount:    make(map[uint32]map[Outpoint]struct{}),
		byKey:           make(map[KeyRef]map[Outpoint]struct{}),
		byNym:           make(map[string]map[Outpoint]struct{}),
		byPosition:      make(map[BlockPosition]map[Outpoint]struct{}),
		byState:         make(map[State]map[Outpoint]struct{}),
		bySubchain:      make(map[SubchainID]map[Outpoint]struct{}),
		proposalSpent:   make(map[string]map[Outpoint]struct{}),
		proposalCreated: make(map[string]map[Outpoint]struct{}),
		outputProposal:  make(map[Outpoint]string),
		byHeight:        make(map[int64]map[Outpoint]struct{}),
	}
}

// Clear discards every in-memory index bucket (§4.7: called alongside
// OutputStore.Clear whenever a mutator aborts).
func (ix *IndexSet) Clear() { *ix = *NewIndexSet() }

// --- generic get-or-insert-empty-set accessor, replacing the "eight
// parallel UnallocatedMap<Key, UnallocatedSet<Outpoint>> members with
// ad-hoc synchronization" the design notes call out. ---

func memberSet[K comparable](m map[K]map[Outpoint]struct{}, key K) map[Outpoint]struct{} {
	s, ok := m[key]
	if !ok {
		s = make(map[Outpoint]struct{})
		m[key] = s
	}
	return s
}

func addMember[K comparable](m map[K]map[Outpoint]struct{}, key K, o Outpoint) {
	memberSet(m, key)[o] = struct{}{}
}

func removeMember[K comparable](m map[K]map[Outpoint]struct{}, key K, o Outpoint) {
	s, ok := m[key]
	if !ok {
		return
	}
	delete(s, o)
	if len(s) == 0 {
		delete(m, key)
	}
}

func sortedMembers[K comparable](m map[K]map[Outpoint]struct{}, key K) []Outpoint {
	s := m[key]
	out := make([]Outpoint, 0, len(s))
	for o := range s {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// --- I1: subaccount ---

func (ix *IndexSet) AddAccount(tx walletdb.ReadWriteTx, id uint32, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketAccounts, encodeU32(id), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.bySubaccount, id, o)
	return nil
}

func (ix *IndexSet) RemoveAccount(tx walletdb.ReadWriteTx, id uint32, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketAccounts, encodeU32(id), EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.bySubaccount, id, o)
	return nil
}

// OutpointsBySubaccount returns I1's members for id in deterministic
// (outpoint-sorted) order.
func (ix *IndexSet) OutpointsBySubaccount(id uint32) []Outpoint {
	return sortedMembers(ix.bySubaccount, id)
}

// --- I2: key reference ---

func (ix *IndexSet) AddKey(tx walletdb.ReadWriteTx, k KeyRef, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketKeys, encodeKeyRef(k), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.byKey, k, o)
	return nil
}

func (ix *IndexSet) RemoveKey(tx walletdb.ReadWriteTx, k KeyRef, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketKeys, encodeKeyRef(k), EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.byKey, k, o)
	return nil
}

func (ix *IndexSet) OutpointsByKey(k KeyRef) []Outpoint {
	return sortedMembers(ix.byKey, k)
}

// --- I3: nym ---

func (ix *IndexSet) AddNym(tx walletdb.ReadWriteTx, nym NymID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketNyms, nym, EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.byNym, string(nym), o)
	return nil
}

func (ix *IndexSet) RemoveNym(tx walletdb.ReadWriteTx, nym NymID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketNyms, nym, EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.byNym, string(nym), o)
	return nil
}

func (ix *IndexSet) OutpointsByNym(nym NymID) []Outpoint {
	return sortedMembers(ix.byNym, string(nym))
}

// --- I4: block position ---

func (ix *IndexSet) AddPosition(tx walletdb.ReadWriteTx, pos BlockPosition, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketPositions, EncodeBlockPosition(pos), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.byPosition, pos, o)
	return nil
}

func (ix *IndexSet) RemovePosition(tx walletdb.ReadWriteTx, pos BlockPosition, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketPositions, EncodeBlockPosition(pos), EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.byPosition, pos, o)
	return nil
}

// MovePosition removes o from oldPos's bucket (if different) and adds
// it to newPos's. Property P3 (position uniqueness) relies on every
// position change going through here rather than a bare AddPosition.
func (ix *IndexSet) MovePosition(tx walletdb.ReadWriteTx, o Outpoint, oldPos, newPos BlockPosition) er.R {
	if oldPos.Equal(newPos) {
		return nil
	}
	if err := ix.RemovePosition(tx, oldPos, o); err != nil {
		return err
	}
	return ix.AddPosition(tx, newPos, o)
}

func (ix *IndexSet) OutpointsByPosition(pos BlockPosition) []Outpoint {
	return sortedMembers(ix.byPosition, pos)
}

// --- I5: state ---

// TransitionState purges o from every state bucket other than
// target, defensively, before inserting it into target -- this is the
// literal "delete from all seven, insert into one" idiom invariant 2
// declares normative, made internal to IndexSet per the design note.
func (ix *IndexSet) TransitionState(tx walletdb.ReadWriteTx, o Outpoint, target State) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	for _, s := range allStates {
		if s == target {
			continue
		}
		if err := multiDelete(root, bucketStates, encodeU32(uint32(s)), EncodeOutpoint(o)); err != nil {
			return err
		}
		removeMember(ix.byState, s, o)
	}
	if err := multiPut(root, bucketStates, encodeU32(uint32(target)), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.byState, target, o)
	return nil
}

// RemoveFromAllStates purges o from every state bucket, used when an
// outpoint is deleted outright (OutputStore.Remove).
func (ix *IndexSet) RemoveFromAllStates(tx walletdb.ReadWriteTx, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	for _, s := range allStates {
		if err := multiDelete(root, bucketStates, encodeU32(uint32(s)), EncodeOutpoint(o)); err != nil {
			return err
		}
		removeMember(ix.byState, s, o)
	}
	return nil
}

func (ix *IndexSet) OutpointsByState(s State) []Outpoint {
	return sortedMembers(ix.byState, s)
}

// --- I6: subchain ---

func (ix *IndexSet) AddSubchain(tx walletdb.ReadWriteTx, id SubchainID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketSubchains, encodeSubchainID(id), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.bySubchain, id, o)
	return nil
}

func (ix *IndexSet) RemoveSubchain(tx walletdb.ReadWriteTx, id SubchainID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketSubchains, encodeSubchainID(id), EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.bySubchain, id, o)
	return nil
}

func (ix *IndexSet) OutpointsBySubchain(id SubchainID) []Outpoint {
	return sortedMembers(ix.bySubchain, id)
}

// --- I7: proposal <-> outpoint, both directions ---

func (ix *IndexSet) AddProposalSpent(tx walletdb.ReadWriteTx, p ProposalID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketProposalSpent, p, EncodeOutpoint(o)); err != nil {
		return err
	}
	outputs := root.NestedReadWriteBucket(bucketOutputProposal)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("output_proposal", nil)
	}
	if err := outputs.Put(EncodeOutpoint(o), p); err != nil {
		return err
	}
	addMember(ix.proposalSpent, string(p), o)
	ix.outputProposal[o] = string(p)
	return nil
}

func (ix *IndexSet) AddProposalCreated(tx walletdb.ReadWriteTx, p ProposalID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketProposalCreated, p, EncodeOutpoint(o)); err != nil {
		return err
	}
	outputs := root.NestedReadWriteBucket(bucketOutputProposal)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("output_proposal", nil)
	}
	if err := outputs.Put(EncodeOutpoint(o), p); err != nil {
		return err
	}
	addMember(ix.proposalCreated, string(p), o)
	ix.outputProposal[o] = string(p)
	return nil
}

// RemoveProposalOutpoint deletes both directions of I7 for (p, o),
// leaving neither the spent-side, created-side, nor inverse entry
// behind (invariant 5: the two directions are kept bijective).
func (ix *IndexSet) RemoveProposalOutpoint(tx walletdb.ReadWriteTx, p ProposalID, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketProposalSpent, p, EncodeOutpoint(o)); err != nil {
		return err
	}
	if err := multiDelete(root, bucketProposalCreated, p, EncodeOutpoint(o)); err != nil {
		return err
	}
	outputs := root.NestedReadWriteBucket(bucketOutputProposal)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("output_proposal", nil)
	}
	if err := outputs.Delete(EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.proposalSpent, string(p), o)
	removeMember(ix.proposalCreated, string(p), o)
	delete(ix.outputProposal, o)
	return nil
}

func (ix *IndexSet) ProposalSpentOutpoints(p ProposalID) []Outpoint {
	return sortedMembers(ix.proposalSpent, string(p))
}

func (ix *IndexSet) ProposalCreatedOutpoints(p ProposalID) []Outpoint {
	return sortedMembers(ix.proposalCreated, string(p))
}

// OutputProposal returns the proposal o is reserved or created under,
// if any.
func (ix *IndexSet) OutputProposal(o Outpoint) (ProposalID, bool) {
	p, ok := ix.outputProposal[o]
	if !ok {
		return nil, false
	}
	return ProposalID(p), true
}

// --- I8: generation height ---

func (ix *IndexSet) AddGeneration(tx walletdb.ReadWriteTx, height int64, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiPut(root, bucketGeneration, encodeHeight(height), EncodeOutpoint(o)); err != nil {
		return err
	}
	addMember(ix.byHeight, height, o)
	return nil
}

func (ix *IndexSet) RemoveGeneration(tx walletdb.ReadWriteTx, height int64, o Outpoint) er.R {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	if err := multiDelete(root, bucketGeneration, encodeHeight(height), EncodeOutpoint(o)); err != nil {
		return err
	}
	removeMember(ix.byHeight, height, o)
	return nil
}

func (ix *IndexSet) OutpointsByHeight(height int64) []Outpoint {
	return sortedMembers(ix.byHeight, height)
}

// Heights returns every height currently present in I8, descending --
// the order finalize_reorg walks them in.
func (ix *IndexSet) Heights() []int64 {
	out := make([]int64, 0, len(ix.byHeight))
	for h := range ix.byHeight {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Populate rebuilds every in-memory index from the KV tables of §6.1.
// It is the Index Set's half of startup population; OutputStore has its
// own Populate for the "outputs" table. Safe to call repeatedly -- each
// call replaces rather than appends.
func (ix *IndexSet) Populate(tx walletdb.ReadTx) er.R {
	ix.Clear()
	root, err := rootReadBucket(tx)
	if err != nil {
		return err
	}

	if err := populateU32Axis(root, bucketAccounts, ix.bySubaccount); err != nil {
		return err
	}
	if err := populateKeyAxis(root, bucketKeys, ix.byKey); err != nil {
		return err
	}
	if err := populateNymAxis(root, bucketNyms, ix.byNym); err != nil {
		return err
	}
	if err := populatePositionAxis(root, bucketPositions, ix.byPosition); err != nil {
		return err
	}
	if err := populateStateAxis(root, bucketStates, ix.byState); err != nil {
		return err
	}
	if err := populateSubchainAxis(root, bucketSubchains, ix.bySubchain); err != nil {
		return err
	}
	if err := populateProposalAxis(root, bucketProposalSpent, ix.proposalSpent); err != nil {
		return err
	}
	if err := populateProposalAxis(root, bucketProposalCreated, ix.proposalCreated); err != nil {
		return err
	}
	if err := populateHeightAxis(root, bucketGeneration, ix.byHeight); err != nil {
		return err
	}

	outputs := root.NestedReadBucket(bucketOutputProposal)
	if outputs == nil {
		return walletdb.ErrBucketNotFound.New("output_proposal", nil)
	}
	return outputs.ForEach(func(k, v []byte) er.R {
		o, derr := DecodeOutpoint(k)
		if derr != nil {
			return derr
		}
		ix.outputProposal[o] = string(v)
		return nil
	})
}

// forEachMember walks every (keyBytes, memberOutpoint) pair of a
// bucket-of-buckets table, decoding the member as an outpoint.
func forEachMember(root walletdb.ReadBucket, name []byte, fn func(keyBytes []byte, o Outpoint) er.R) er.R {
	outer := root.NestedReadBucket(name)
	if outer == nil {
		return walletdb.ErrBucketNotFound.New(string(name), nil)
	}
	return outer.ForEach(func(keyBytes, _ []byte) er.R {
		inner := outer.NestedReadBucket(keyBytes)
		if inner == nil {
			return nil
		}
		return inner.ForEach(func(member, _ []byte) er.R {
			o, derr := DecodeOutpoint(member)
			if derr != nil {
				return derr
			}
			return fn(keyBytes, o)
		})
	})
}

func populateU32Axis(root walletdb.ReadBucket, name []byte, m map[uint32]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, binary32(keyBytes), o)
		return nil
	})
}

func populateKeyAxis(root walletdb.ReadBucket, name []byte, m map[KeyRef]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, decodeKeyRef(keyBytes), o)
		return nil
	})
}

func populateNymAxis(root walletdb.ReadBucket, name []byte, m map[string]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, string(keyBytes), o)
		return nil
	})
}

func populatePositionAxis(root walletdb.ReadBucket, name []byte, m map[BlockPosition]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		pos, derr := decodeBlockPositionKey(keyBytes)
		if derr != nil {
			return derr
		}
		addMember(m, pos, o)
		return nil
	})
}

func populateStateAxis(root walletdb.ReadBucket, name []byte, m map[State]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, State(binary32(keyBytes)), o)
		return nil
	})
}

func populateSubchainAxis(root walletdb.ReadBucket, name []byte, m map[SubchainID]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, decodeSubchainIDKey(keyBytes), o)
		return nil
	})
}

func populateProposalAxis(root walletdb.ReadBucket, name []byte, m map[string]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, string(keyBytes), o)
		return nil
	})
}

func populateHeightAxis(root walletdb.ReadBucket, name []byte, m map[int64]map[Outpoint]struct{}) er.R {
	return forEachMember(root, name, func(keyBytes []byte, o Outpoint) er.R {
		addMember(m, decodeHeightKey(keyBytes), o)
		return nil
	})
}
