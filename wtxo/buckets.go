package wtxo

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainwallet/utxocore/er"
	"github.com/chainwallet/utxocore/walletdb"
)

// Bucket names: a single top-level root bucket, and inside it one bucket
// per table in spec.md §6.1. Multi-value
// tables are modeled as a bucket-of-buckets: the outer bucket is keyed
// on the index's key type, and each nested bucket holds member
// outpoints as its own keys (with the one-byte marker value present), which is bbolt's
// equivalent of "distinct records rather than encoded lists" -- each
// nested bucket is itself a sorted range the caller can scan.
var (
	bucketRoot            = []byte("wtxo")
	bucketOutputs         = []byte("outputs")
	bucketAccounts        = []byte("accounts")         // I1
	bucketKeys            = []byte("keys")             // I2
	bucketNyms            = []byte("nyms")             // I3
	bucketPositions       = []byte("positions")        // I4
	bucketStates          = []byte("states")           // I5
	bucketSubchains       = []byte("subchains")        // I6
	bucketProposalCreated = []byte("proposal_created") // part of I7
	bucketProposalSpent   = []byte("proposal_spent")   // part of I7
	bucketOutputProposal  = []byte("output_proposal")  // inverse of I7
	bucketGeneration      = []byte("generation")       // I8
	bucketOutputConfig    = []byte("output_config")
)

var present = []byte{1}

// topLevelBuckets lists every bucket that must exist before the store
// can be used; createBuckets is idempotent.
var topLevelBuckets = [][]byte{
	bucketOutputs, bucketAccounts, bucketKeys, bucketNyms, bucketPositions,
	bucketStates, bucketSubchains, bucketProposalCreated, bucketProposalSpent,
	bucketOutputProposal, bucketGeneration, bucketOutputConfig,
}

func createBuckets(tx walletdb.ReadWriteTx) er.R {
	root, err := tx.CreateTopLevelBucket(bucketRoot)
	if err != nil {
		return err
	}
	for _, name := range topLevelBuckets {
		if _, err := root.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

func rootBucket(tx walletdb.ReadWriteTx) (walletdb.ReadWriteBucket, er.R) {
	root := tx.ReadWriteBucket(bucketRoot)
	if root == nil {
		return nil, walletdb.ErrBucketNotFound.New("wtxo root bucket not created", nil)
	}
	return root, nil
}

func rootReadBucket(tx walletdb.ReadTx) (walletdb.ReadBucket, er.R) {
	root := tx.ReadBucket(bucketRoot)
	if root == nil {
		return nil, walletdb.ErrBucketNotFound.New("wtxo root bucket not created", nil)
	}
	return root, nil
}

// multiPut adds member to the nested bucket "name/keyBytes".
func multiPut(root walletdb.ReadWriteBucket, name, keyBytes, member []byte) er.R {
	outer := root.NestedReadWriteBucket(name)
	if outer == nil {
		return walletdb.ErrBucketNotFound.New(string(name), nil)
	}
	inner, err := outer.CreateBucketIfNotExists(keyBytes)
	if err != nil {
		return err
	}
	return inner.Put(member, present)
}

// multiDelete removes member from the nested bucket "name/keyBytes", if
// present, tolerating an absent outer or inner bucket.
func multiDelete(root walletdb.ReadWriteBucket, name, keyBytes, member []byte) er.R {
	outer := root.NestedReadWriteBucket(name)
	if outer == nil {
		return nil
	}
	inner := outer.NestedReadWriteBucket(keyBytes)
	if inner == nil {
		return nil
	}
	return inner.Delete(member)
}

func encodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func encodeHeight(h int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(h))
	return b
}

func encodeSubchainID(id SubchainID) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, id.SubaccountID)
	binary.LittleEndian.PutUint32(b[4:], uint32(id.Subchain))
	return b
}

func encodeKeyRef(k KeyRef) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b, k.SubaccountID)
	binary.LittleEndian.PutUint32(b[4:], uint32(k.Subchain))
	binary.LittleEndian.PutUint32(b[8:], k.Index)
	return b
}

func binary32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func decodeKeyRef(b []byte) KeyRef {
	return KeyRef{
		SubaccountID: binary.LittleEndian.Uint32(b),
		Subchain:     Subchain(binary.LittleEndian.Uint32(b[4:])),
		Index:        binary.LittleEndian.Uint32(b[8:]),
	}
}

func decodeSubchainIDKey(b []byte) SubchainID {
	return SubchainID{
		SubaccountID: binary.LittleEndian.Uint32(b),
		Subchain:     Subchain(binary.LittleEndian.Uint32(b[4:])),
	}
}

func decodeHeightKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func decodeBlockPositionKey(b []byte) (BlockPosition, er.R) {
	if len(b) != 8+chainhash.HashSize {
		return BlockPosition{}, ErrSerialization.New("truncated position key", nil)
	}
	height := int64(binary.BigEndian.Uint64(b[:8]))
	var hash chainhash.Hash
	copy(hash[:], b[8:])
	return BlockPosition{Height: height, Hash: hash}, nil
}
