package wtxo

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwallet/utxocore/er"
)

// recordVersion is bumped whenever the encoded layout changes in a way
// that is not purely additive.
const recordVersion uint32 = 1

// EncodeOutput serializes o to the length-prefixed structured format
// described in spec.md §6.2. The recognized script pattern is not
// itself persisted -- it is cheap to re-derive from the script on
// decode, so storing it would only be a redundant cache.
func EncodeOutput(o *Output) ([]byte, er.R) {
	var buf bytes.Buffer

	putU32(&buf, recordVersion)
	putU32(&buf, o.Outpoint.Index)

	amtBytes := o.Amount.BigInt().Bytes()
	neg := o.Amount.BigInt().Sign() < 0
	putU32(&buf, uint32(len(amtBytes)))
	buf.WriteByte(boolByte(neg))
	buf.Write(amtBytes)

	putBytes(&buf, o.Script)

	putU32(&buf, uint32(len(o.Keys)))
	for _, k := range o.Keys {
		putBytes(&buf, k.Nym)
		putU32(&buf, k.SubaccountID)
		putU32(&buf, uint32(k.Subchain))
		putU32(&buf, k.Index)
	}

	putU32(&buf, uint32(len(o.PatternFPs)))
	for _, fp := range o.PatternFPs {
		putU64(&buf, fp)
	}

	if o.ScriptHashFP != nil {
		buf.WriteByte(1)
		putU64(&buf, *o.ScriptHashFP)
	} else {
		buf.WriteByte(0)
	}

	putI64(&buf, o.Position.Height)
	buf.Write(o.Position.Hash[:])

	putU32(&buf, uint32(o.State))

	tags := make([]Tag, 0, len(o.Tags))
	for t := range o.Tags {
		tags = append(tags, t)
	}
	putU32(&buf, uint32(len(tags)))
	for _, t := range tags {
		putU32(&buf, uint32(t))
	}

	if o.Payer != nil {
		putU32(&buf, 1)
		putBytes(&buf, *o.Payer)
	} else {
		putU32(&buf, 0)
	}
	if o.Payee != nil {
		putU32(&buf, 1)
		putBytes(&buf, *o.Payee)
	} else {
		putU32(&buf, 0)
	}

	return buf.Bytes(), nil
}

// DecodeOutput is the inverse of EncodeOutput. outpoint is supplied by
// the caller (it is also the storage key and is not re-derived from the
// blob alone, since the blob only carries the output index).
func DecodeOutput(outpoint Outpoint, blob []byte) (*Output, er.R) {
	r := bytes.NewReader(blob)

	version, err := getU32(r)
	if err != nil {
		return nil, err
	}
	if version != recordVersion {
		return nil, ErrSerialization.New("unsupported output record version", nil)
	}

	index, err := getU32(r)
	if err != nil {
		return nil, err
	}

	amtLen, err := getU32(r)
	if err != nil {
		return nil, err
	}
	negByte, rerr := getByte(r)
	if rerr != nil {
		return nil, rerr
	}
	amtBytes := make([]byte, amtLen)
	if _, e := r.Read(amtBytes); e != nil && amtLen > 0 {
		return nil, ErrSerialization.New("truncated amount", nil)
	}
	amt := new(big.Int).SetBytes(amtBytes)
	if negByte != 0 {
		amt.Neg(amt)
	}

	script, err := getBytes(r)
	if err != nil {
		return nil, err
	}

	numKeys, err := getU32(r)
	if err != nil {
		return nil, err
	}
	keys := make([]KeyOwnership, 0, numKeys)
	for i := uint32(0); i < numKeys; i++ {
		nym, e := getBytes(r)
		if e != nil {
			return nil, e
		}
		sub, e := getU32(r)
		if e != nil {
			return nil, e
		}
		subchain, e := getU32(r)
		if e != nil {
			return nil, e
		}
		idx, e := getU32(r)
		if e != nil {
			return nil, e
		}
		keys = append(keys, KeyOwnership{
			KeyRef: KeyRef{SubaccountID: sub, Subchain: Subchain(subchain), Index: idx},
			Nym:    NymID(nym),
		})
	}

	numFPs, err := getU32(r)
	if err != nil {
		return nil, err
	}
	fps := make([]uint64, 0, numFPs)
	for i := uint32(0); i < numFPs; i++ {
		fp, e := getU64(r)
		if e != nil {
			return nil, e
		}
		fps = append(fps, fp)
	}

	hasScriptHash, rerr := getByte(r)
	if rerr != nil {
		return nil, rerr
	}
	var scriptHashFP *uint64
	if hasScriptHash != 0 {
		fp, e := getU64(r)
		if e != nil {
			return nil, e
		}
		scriptHashFP = &fp
	}

	height, err := getI64(r)
	if err != nil {
		return nil, err
	}
	var blockHash chainhash.Hash
	if _, e := r.Read(blockHash[:]); e != nil {
		return nil, ErrSerialization.New("truncated block hash", nil)
	}

	stateVal, err := getU32(r)
	if err != nil {
		return nil, err
	}

	numTags, err := getU32(r)
	if err != nil {
		return nil, err
	}
	tags := make(TagSet, numTags)
	for i := uint32(0); i < numTags; i++ {
		t, e := getU32(r)
		if e != nil {
			return nil, e
		}
		tags[Tag(t)] = struct{}{}
	}

	var payer, payee *ContactID
	hasPayer, err := getU32(r)
	if err != nil {
		return nil, err
	}
	if hasPayer != 0 {
		b, e := getBytes(r)
		if e != nil {
			return nil, e
		}
		c := ContactID(b)
		payer = &c
	}
	hasPayee, err := getU32(r)
	if err != nil {
		return nil, err
	}
	if hasPayee != 0 {
		b, e := getBytes(r)
		if e != nil {
			return nil, e
		}
		c := ContactID(b)
		payee = &c
	}

	out := &Output{
		Outpoint:     Outpoint{Hash: outpoint.Hash, Index: index},
		Amount:       NewAmountFromBigInt(amt),
		Script:       script,
		Pattern:      classifyScript(script),
		Keys:         keys,
		PatternFPs:   fps,
		ScriptHashFP: scriptHashFP,
		Position:     BlockPosition{Height: height, Hash: blockHash},
		State:        State(stateVal),
		Tags:         tags,
		Payer:        payer,
		Payee:        payee,
	}
	return out, nil
}

// EncodeOutpoint renders an outpoint as the canonical 36-byte storage
// key used by every table in §6.1: 32-byte txid followed by the
// little-endian output index.
func EncodeOutpoint(o Outpoint) []byte {
	buf := make([]byte, 36)
	copy(buf, o.Hash[:])
	binary.LittleEndian.PutUint32(buf[32:], o.Index)
	return buf
}

// DecodeOutpoint is the inverse of EncodeOutpoint.
func DecodeOutpoint(b []byte) (Outpoint, er.R) {
	if len(b) != 36 {
		return Outpoint{}, ErrSerialization.New("outpoint key must be 36 bytes", nil)
	}
	var o Outpoint
	copy(o.Hash[:], b[:32])
	o.Index = binary.LittleEndian.Uint32(b[32:])
	return o, nil
}

// EncodeBlockPosition renders a block position as the fixed-width
// storage key used by the "positions" table (I4): big-endian height
// (so positions sort in ascending block order) followed by the hash.
func EncodeBlockPosition(p BlockPosition) []byte {
	buf := make([]byte, 8+chainhash.HashSize)
	binary.BigEndian.PutUint64(buf, uint64(p.Height))
	copy(buf[8:], p.Hash[:])
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putI64(buf *bytes.Buffer, v int64) {
	putU64(buf, uint64(v))
}

func putBytes(buf *bytes.Buffer, v []byte) {
	putU32(buf, uint32(len(v)))
	buf.Write(v)
}

func getU32(r *bytes.Reader) (uint32, er.R) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrSerialization.New("truncated record", nil)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func getU64(r *bytes.Reader) (uint64, er.R) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrSerialization.New("truncated record", nil)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func getI64(r *bytes.Reader) (int64, er.R) {
	v, err := getU64(r)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func getByte(r *bytes.Reader) (byte, er.R) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrSerialization.New("truncated record", nil)
	}
	return b, nil
}

func getBytes(r *bytes.Reader) ([]byte, er.R) {
	n, err := getU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, e := io.ReadFull(r, b); e != nil {
		return nil, ErrSerialization.New("truncated record", nil)
	}
	return b, nil
}
