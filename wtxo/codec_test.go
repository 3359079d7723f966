package wtxo

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOutpointRoundTrip(t *testing.T) {
	op := Outpoint{Hash: hashN(7), Index: 3}
	blob := EncodeOutpoint(op)
	require.Len(t, blob, 36)

	got, err := DecodeOutpoint(blob)
	require.Nil(t, err)
	require.Equal(t, op, got)
}

func TestDecodeOutpointRejectsTruncated(t *testing.T) {
	_, err := DecodeOutpoint([]byte{0x01, 0x02})
	require.NotNil(t, err)
	require.True(t, ErrSerialization.Is(err))
}

func TestEncodeDecodeBlockPositionRoundTrip(t *testing.T) {
	pos := BlockPosition{Height: 123456, Hash: hashN(9)}
	blob := EncodeBlockPosition(pos)

	got, err := decodeBlockPositionKey(blob)
	require.Nil(t, err)
	require.True(t, got.Equal(pos))
	require.Equal(t, pos.Height, got.Height)
}

func TestBlockPositionOrderingIsHeightAscending(t *testing.T) {
	low := EncodeBlockPosition(BlockPosition{Height: 1, Hash: hashN(1)})
	high := EncodeBlockPosition(BlockPosition{Height: 2, Hash: hashN(1)})
	require.Less(t, string(low), string(high))
}

func TestEncodeDecodeOutputRoundTrip(t *testing.T) {
	negFee := new(big.Int).Neg(big.NewInt(42))
	payer := ContactID([]byte("alice"))
	payee := ContactID([]byte("bob"))

	out := &Output{
		Outpoint: Outpoint{Hash: hashN(3), Index: 1},
		Amount:   NewAmountFromBigInt(negFee),
		Script:   []byte{0x76, 0xa9, 0x14},
		Pattern:  PatternPayToPubKeyHash,
		Keys: []KeyOwnership{
			{KeyRef: KeyRef{SubaccountID: 1, Subchain: SubchainExternal, Index: 4}, Nym: NymID("nym-1")},
		},
		PatternFPs: []uint64{1, 2, 3},
		Position:   BlockPosition{Height: 500, Hash: hashN(5)},
		State:      StateConfirmedNew,
		Tags:       NewTagSet(TagNormal, TagChange),
		Payer:      &payer,
		Payee:      &payee,
	}

	blob, err := EncodeOutput(out)
	require.Nil(t, err)

	got, derr := DecodeOutput(out.Outpoint, blob)
	require.Nil(t, derr)

	require.Equal(t, out.Outpoint, got.Outpoint)
	require.Equal(t, 0, out.Amount.Cmp(got.Amount))
	require.Equal(t, out.Script, got.Script)
	require.Equal(t, out.Keys, got.Keys)
	require.Equal(t, out.PatternFPs, got.PatternFPs)
	require.Equal(t, out.Position, got.Position)
	require.Equal(t, out.State, got.State)
	require.Equal(t, out.Tags, got.Tags)
	require.Equal(t, *out.Payer, *got.Payer)
	require.Equal(t, *out.Payee, *got.Payee)
}

func TestEncodeDecodeOutputWithoutOptionalFields(t *testing.T) {
	out := &Output{
		Outpoint: Outpoint{Hash: hashN(1), Index: 0},
		Amount:   NewAmount(1000),
		Script:   nil,
		Keys:     nil,
		Position: UnminedPosition,
		State:    StateUnconfirmedNew,
		Tags:     NewTagSet(TagNormal),
	}
	blob, err := EncodeOutput(out)
	require.Nil(t, err)

	got, derr := DecodeOutput(out.Outpoint, blob)
	require.Nil(t, derr)
	require.Nil(t, got.Payer)
	require.Nil(t, got.Payee)
	require.Equal(t, 0, out.Amount.Cmp(got.Amount))
	require.True(t, got.Position.IsUnmined())
}

func TestDecodeOutputRejectsWrongVersion(t *testing.T) {
	out := &Output{
		Outpoint: Outpoint{Hash: hashN(1), Index: 0},
		Amount:   NewAmount(1),
		Position: UnminedPosition,
		State:    StateUnconfirmedNew,
		Tags:     NewTagSet(),
	}
	blob, err := EncodeOutput(out)
	require.Nil(t, err)

	// Corrupt the leading version field.
	corrupt := append([]byte(nil), blob...)
	corrupt[0] = 0xff

	_, derr := DecodeOutput(out.Outpoint, corrupt)
	require.NotNil(t, derr)
	require.True(t, ErrSerialization.Is(derr))
}

func TestOutpointCompareTotalOrder(t *testing.T) {
	a := Outpoint{Hash: hashN(1), Index: 0}
	b := Outpoint{Hash: hashN(1), Index: 1}
	c := Outpoint{Hash: hashN(2), Index: 0}

	require.Negative(t, a.Compare(b))
	require.Positive(t, b.Compare(a))
	require.Zero(t, a.Compare(a))
	require.Negative(t, b.Compare(c))
}
