// Package wtxo is the transactional UTXO database at the heart of this
// module: it tracks every output a wallet owns across confirmed, mempool,
// and locally-authored-proposal state, reconciling the three while
// tolerating reorgs. It is grounded on pktwallet/wtxmgr's credit/debit
// bucket discipline, generalized from "confirmed vs unconfirmed" to the
// full seven-state machine and eight-axis index set this module's
// callers (a key registry, a proposal engine, a contact book) require.
package wtxo

import (
	"bytes"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint is the canonical identity of an output: a transaction hash
// plus its output index. Outpoints are plain value identities -- no
// component owns one exclusively, they are passed and compared by value.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Compare gives Outpoint a total order: lexicographic on (hash, index).
func (o Outpoint) Compare(other Outpoint) int {
	if c := bytes.Compare(o.Hash[:], other.Hash[:]); c != 0 {
		return c
	}
	switch {
	case o.Index < other.Index:
		return -1
	case o.Index > other.Index:
		return 1
	default:
		return 0
	}
}

func (o Outpoint) String() string {
	return o.Hash.String() + ":" + itoa(o.Index)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// BlockPosition identifies a block by height and hash. The sentinel
// UnminedPosition (height -1) represents "not yet in any block".
type BlockPosition struct {
	Height int64
	Hash   chainhash.Hash
}

// UnminedPosition is the sentinel block position for an output that has
// not (yet, or any longer) been confirmed in a block.
var UnminedPosition = BlockPosition{Height: -1}

// IsUnmined reports whether p is the unmined sentinel.
func (p BlockPosition) IsUnmined() bool { return p.Height < 0 }

// Equal reports whether two positions identify the same block (or are
// both the unmined sentinel).
func (p BlockPosition) Equal(other BlockPosition) bool {
	if p.IsUnmined() || other.IsUnmined() {
		return p.IsUnmined() == other.IsUnmined()
	}
	return p.Height == other.Height && p.Hash == other.Hash
}

// Subchain is the path variant within a subaccount that a key reference
// belongs to.
type Subchain uint32

const (
	SubchainExternal Subchain = iota // receive
	SubchainInternal                 // change
	SubchainOutgoing                 // authored-by-us payment to a remote owner
	SubchainIncoming                 // expected inbound via payment-code notification
	SubchainNotification
)

// KeyRef addresses a single wallet key without requiring the key
// material itself.
type KeyRef struct {
	SubaccountID uint32
	Subchain     Subchain
	Index        uint32
}

// KeyOwnership pairs a KeyRef with the nym that owns it, as cached on
// the output record at ingest time (§6.2: the persisted encoding keeps
// a nym id alongside each key reference so the nym index (I3) can be
// rebuilt from a store scan without re-querying the external key
// registry for every key on every output).
type KeyOwnership struct {
	KeyRef
	Nym NymID
}

// SubchainID identifies I6's bucket: a subaccount paired with one of its
// subchains.
type SubchainID struct {
	SubaccountID uint32
	Subchain     Subchain
}

// ScriptPattern is the recognized shape of a locking script.
type ScriptPattern uint32

const (
	PatternUnknown ScriptPattern = iota
	PatternPayToPubKey
	PatternPayToPubKeyHash
	PatternPayToScriptHash
	PatternPayToMultisig
	PatternNullData
)

// Tag is one bit of descriptive metadata attached to an output; an
// output may carry more than one.
type Tag uint32

const (
	TagNormal Tag = iota
	TagGeneration
	TagNotification
	TagChange
)

// TagSet is a small set of Tags.
type TagSet map[Tag]struct{}

// NewTagSet builds a TagSet from the given tags.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether t is a member of the set.
func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

// Add inserts t into the set.
func (s TagSet) Add(t Tag) { s[t] = struct{}{} }

// Amount is an arbitrary-precision signed quantity of money. Unlike the
// fixed-width int64 amount types used throughout the pktwallet/dcrlnd
// lineage, this module's outputs may belong to chains whose native unit
// does not fit in 64 bits, so Amount wraps math/big.Int.
type Amount struct {
	v *big.Int
}

// NewAmount constructs an Amount from an int64.
func NewAmount(v int64) Amount { return Amount{v: big.NewInt(v)} }

// NewAmountFromBigInt constructs an Amount from an existing big.Int,
// copying it so the caller retains ownership of the original.
func NewAmountFromBigInt(v *big.Int) Amount {
	return Amount{v: new(big.Int).Set(v)}
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.bigInt(), b.bigInt())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{v: new(big.Int).Sub(a.bigInt(), b.bigInt())}
}

// Cmp compares a and b the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int { return a.bigInt().Cmp(b.bigInt()) }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.bigInt().Sign() == 0 }

func (a Amount) bigInt() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// BigInt returns a's value as a *big.Int the caller may not mutate.
func (a Amount) BigInt() *big.Int { return a.bigInt() }

func (a Amount) String() string { return a.bigInt().String() }

// ContactID identifies a counterparty (payer or payee) resolved through
// an external contact book. The core treats it as an opaque blob.
type ContactID []byte

// NymID identifies the wallet-side owner ("nym" in the upstream
// terminology this spec descends from) of a key.
type NymID []byte

// ProposalID identifies an authored-but-not-yet-broadcast spend.
type ProposalID []byte

// Output is the full state of one UTXO.
type Output struct {
	Outpoint Outpoint

	Amount   Amount
	Script   []byte
	Pattern  ScriptPattern

	Keys         []KeyOwnership
	PatternFPs   []uint64
	ScriptHashFP *uint64

	Position BlockPosition
	State    State
	Tags     TagSet

	Payer *ContactID
	Payee *ContactID
}

// Clone returns a deep-enough copy of o suitable for handing to a caller
// that must not observe later in-place mutation of the stored record.
func (o *Output) Clone() *Output {
	cp := *o
	cp.Script = append([]byte(nil), o.Script...)
	cp.Keys = make([]KeyOwnership, len(o.Keys))
	for i, k := range o.Keys {
		cp.Keys[i] = KeyOwnership{KeyRef: k.KeyRef, Nym: append(NymID(nil), k.Nym...)}
	}
	cp.PatternFPs = append([]uint64(nil), o.PatternFPs...)
	if o.ScriptHashFP != nil {
		v := *o.ScriptHashFP
		cp.ScriptHashFP = &v
	}
	cp.Tags = make(TagSet, len(o.Tags))
	for t := range o.Tags {
		cp.Tags[t] = struct{}{}
	}
	if o.Payer != nil {
		v := append(ContactID(nil), *o.Payer...)
		cp.Payer = &v
	}
	if o.Payee != nil {
		v := append(ContactID(nil), *o.Payee...)
		cp.Payee = &v
	}
	return &cp
}
