package codec

import (
	"fmt"

	"github.com/dogebridge/dogebridge/internal/config"
)

// BlockHeaderLen is the fixed wire size of a block header, before any
// auxpow payload.
const BlockHeaderLen = 80

// versionAuxPowFlag marks merged-mining blocks: a proof payload (coinbase
// tx + merkle branches + parent header) follows the header.
const versionAuxPowFlag = 0x100

// BlockHeader is the 80-byte block header.
type BlockHeader struct {
	Version    int32
	PrevBlock  Hash
	MerkleRoot Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// HasAuxPow reports whether the version field's merged-mining bit is set.
func (h BlockHeader) HasAuxPow() bool {
	return uint32(h.Version)&versionAuxPowFlag != 0
}

// EncodeBlockHeader serializes the fixed 80-byte header.
func EncodeBlockHeader(h BlockHeader) []byte {
	buf := make([]byte, 0, BlockHeaderLen)
	buf = appendU32LE(buf, uint32(h.Version))
	buf = append(buf, h.PrevBlock[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = appendU32LE(buf, h.Timestamp)
	buf = appendU32LE(buf, h.Bits)
	buf = appendU32LE(buf, h.Nonce)
	return buf
}

// BlockHash returns dsha256 of the 80-byte header encoding.
func BlockHash(h BlockHeader) Hash {
	return DoubleSha256(EncodeBlockHeader(h))
}

func decodeBlockHeader(r *reader) (BlockHeader, error) {
	var h BlockHeader
	version, err := r.readU32LE()
	if err != nil {
		return h, err
	}
	prevBlock, err := r.readHash()
	if err != nil {
		return h, err
	}
	merkleRoot, err := r.readHash()
	if err != nil {
		return h, err
	}
	timestamp, err := r.readU32LE()
	if err != nil {
		return h, err
	}
	bits, err := r.readU32LE()
	if err != nil {
		return h, err
	}
	nonce, err := r.readU32LE()
	if err != nil {
		return h, err
	}
	h = BlockHeader{
		Version:    int32(version),
		PrevBlock:  prevBlock,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Bits:       bits,
		Nonce:      nonce,
	}
	return h, nil
}

// AuxPow carries the merged-mining proof attached when the header's
// version has the merged-mining bit set. Its fields are retained only for
// diagnostic block responses; the proof itself is never validated here —
// the full node is trusted for consensus validity.
type AuxPow struct {
	CoinbaseTx            *Transaction
	ParentBlockHash       Hash
	CoinbaseBranch        []Hash
	CoinbaseBranchMask    uint32
	BlockchainBranch      []Hash
	BlockchainBranchMask  uint32
	ParentBlockHeader     BlockHeader
}

func decodeAuxPow(r *reader) (*AuxPow, error) {
	coinbaseTx, err := decodeTransaction(r)
	if err != nil {
		return nil, fmt.Errorf("auxpow coinbase tx: %w", err)
	}
	parentBlockHash, err := r.readHash()
	if err != nil {
		return nil, err
	}

	coinbaseBranch, err := decodeMerkleBranch(r)
	if err != nil {
		return nil, fmt.Errorf("auxpow coinbase branch: %w", err)
	}
	coinbaseBranchMask, err := r.readU32LE()
	if err != nil {
		return nil, err
	}

	blockchainBranch, err := decodeMerkleBranch(r)
	if err != nil {
		return nil, fmt.Errorf("auxpow blockchain branch: %w", err)
	}
	blockchainBranchMask, err := r.readU32LE()
	if err != nil {
		return nil, err
	}

	parentHeader, err := decodeBlockHeader(r)
	if err != nil {
		return nil, fmt.Errorf("auxpow parent header: %w", err)
	}

	return &AuxPow{
		CoinbaseTx:           coinbaseTx,
		ParentBlockHash:      parentBlockHash,
		CoinbaseBranch:       coinbaseBranch,
		CoinbaseBranchMask:   coinbaseBranchMask,
		BlockchainBranch:     blockchainBranch,
		BlockchainBranchMask: blockchainBranchMask,
		ParentBlockHeader:    parentHeader,
	}, nil
}

func decodeMerkleBranch(r *reader) ([]Hash, error) {
	n, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	if n > maxVectorLen {
		return nil, fmt.Errorf("%w: merkle branch length %d exceeds bound", config.ErrMalformed, n)
	}
	branch := make([]Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		h, err := r.readHash()
		if err != nil {
			return nil, err
		}
		branch = append(branch, h)
	}
	return branch, nil
}

// Block is a full block: header, optional merged-mining proof, transactions.
type Block struct {
	Header       BlockHeader
	AuxPow       *AuxPow
	Transactions []*Transaction
}

// DecodeBlock parses a full block and returns the number of bytes consumed.
func DecodeBlock(b []byte) (*Block, int, error) {
	r := newReader(b)

	header, err := decodeBlockHeader(r)
	if err != nil {
		return nil, 0, err
	}

	var aux *AuxPow
	if header.HasAuxPow() {
		aux, err = decodeAuxPow(r)
		if err != nil {
			return nil, 0, err
		}
	}

	txCount, err := r.readVarInt()
	if err != nil {
		return nil, 0, err
	}
	if txCount == 0 {
		return nil, 0, fmt.Errorf("%w: block has zero transactions", config.ErrMalformed)
	}
	if txCount > maxVectorLen {
		return nil, 0, fmt.Errorf("%w: tx count %d exceeds bound", config.ErrMalformed, txCount)
	}

	txs := make([]*Transaction, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeTransaction(r)
		if err != nil {
			return nil, 0, fmt.Errorf("tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	return &Block{Header: header, AuxPow: aux, Transactions: txs}, r.pos, nil
}

// DecodeBlockHex decodes a hex-encoded block and rejects trailing bytes.
func DecodeBlockHex(hexStr string) (*Block, error) {
	b, err := decodeHexStrict(hexStr)
	if err != nil {
		return nil, err
	}
	block, n, err := DecodeBlock(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes after block", config.ErrMalformed, len(b)-n)
	}
	return block, nil
}

// EncodeBlock serializes a full block, including its auxpow payload if
// present. Used by tests to exercise the decode/encode round trip; the
// indexer itself only ever decodes blocks received from the full node.
func EncodeBlock(blk *Block) []byte {
	buf := make([]byte, 0, 1024)
	buf = append(buf, EncodeBlockHeader(blk.Header)...)
	if blk.Header.HasAuxPow() {
		buf = append(buf, encodeAuxPow(blk.AuxPow)...)
	}
	buf = appendVarInt(buf, uint64(len(blk.Transactions)))
	for _, tx := range blk.Transactions {
		buf = append(buf, EncodeTransaction(tx)...)
	}
	return buf
}

func encodeAuxPow(a *AuxPow) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, EncodeTransaction(a.CoinbaseTx)...)
	buf = append(buf, a.ParentBlockHash[:]...)
	buf = appendVarInt(buf, uint64(len(a.CoinbaseBranch)))
	for _, h := range a.CoinbaseBranch {
		buf = append(buf, h[:]...)
	}
	buf = appendU32LE(buf, a.CoinbaseBranchMask)
	buf = appendVarInt(buf, uint64(len(a.BlockchainBranch)))
	for _, h := range a.BlockchainBranch {
		buf = append(buf, h[:]...)
	}
	buf = appendU32LE(buf, a.BlockchainBranchMask)
	buf = append(buf, EncodeBlockHeader(a.ParentBlockHeader)...)
	return buf
}

// TxIds returns the txid of every transaction in the block, in order.
func (blk *Block) TxIds() []Hash {
	ids := make([]Hash, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		ids[i] = TxHash(tx)
	}
	return ids
}
