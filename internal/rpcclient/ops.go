package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
)

// GetBestBlockHash returns the tip block hash as a reversed-hex string.
func (c *Client) GetBestBlockHash(ctx context.Context, idempotencyKey string) (string, error) {
	raw, err := c.Call(ctx, idempotencyKey, "getbestblockhash")
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("%w: decode getbestblockhash result: %s", config.ErrMalformed, err)
	}
	return hash, nil
}

// GetBlockHash returns the block hash at height, as a reversed-hex string.
func (c *Client) GetBlockHash(ctx context.Context, idempotencyKey string, height uint32) (string, error) {
	raw, err := c.Call(ctx, idempotencyKey, "getblockhash", height)
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("%w: decode getblockhash result: %s", config.ErrMalformed, err)
	}
	return hash, nil
}

// GetBlock fetches and decodes the block identified by hash (verbosity=0:
// a hex-encoded serialized block).
func (c *Client) GetBlock(ctx context.Context, idempotencyKey, hash string) (*codec.Block, error) {
	raw, err := c.Call(ctx, idempotencyKey, "getblock", hash, 0)
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, fmt.Errorf("%w: decode getblock result: %s", config.ErrMalformed, err)
	}
	block, err := codec.DecodeBlockHex(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrMalformed, err)
	}
	return block, nil
}

// GetRawTransaction fetches and decodes a transaction by txid (verbosity=0).
func (c *Client) GetRawTransaction(ctx context.Context, idempotencyKey, txid string) (*codec.Transaction, error) {
	raw, err := c.Call(ctx, idempotencyKey, "getrawtransaction", txid, 0)
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, fmt.Errorf("%w: decode getrawtransaction result: %s", config.ErrMalformed, err)
	}
	tx, err := codec.DecodeTransactionHex(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrMalformed, err)
	}
	return tx, nil
}

// SendRawTransaction broadcasts a hex-encoded transaction, returning its txid.
func (c *Client) SendRawTransaction(ctx context.Context, idempotencyKey, txHex string) (string, error) {
	raw, err := c.Call(ctx, idempotencyKey, "sendrawtransaction", txHex)
	if err != nil {
		return "", err
	}
	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", fmt.Errorf("%w: decode sendrawtransaction result: %s", config.ErrMalformed, err)
	}
	return txid, nil
}

// WaitForNewBlock blocks (up to timeoutMs on the node side, bounded by ctx
// on this side) until a new block arrives, returning its height and hash.
func (c *Client) WaitForNewBlock(ctx context.Context, idempotencyKey string, timeoutMs int64) (uint32, string, error) {
	raw, err := c.Call(ctx, idempotencyKey, "waitfornewblock", timeoutMs)
	if err != nil {
		return 0, "", err
	}
	var result struct {
		Height uint32 `json:"height"`
		Hash   string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, "", fmt.Errorf("%w: decode waitfornewblock result: %s", config.ErrMalformed, err)
	}
	return result.Height, result.Hash, nil
}
