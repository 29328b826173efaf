package config

import "time"

// Amounts are in satoshis (1 DOGE = 1e8 subunits, same subdivision as BTC).
const (
	Dust              int64 = 1_000_000
	MinBurnAmount           = 10 * Dust
	CurrentTxVersion  int32 = 1
	MaxSelectionUTXOs       = 1000
)

// Scheduler timers and retry ring.
const (
	FetchDelay        = 20 * time.Second
	LastErrorsRingLen = 7
)

// Burn batching.
const (
	MaxBurnBatch               = 100
	BurnBatchDenominator       = 200
	CollectedUTXOGCAfterBlocks = 100
	FinalityPollInterval       = 60 * time.Second
	CollectAndClearInterval    = 600 * time.Second
)

// Query clamping.
const (
	MinQueryTake = 10
	MaxQueryTake = 10_000
)

// Tx size estimation — legacy compressed-P2PKH scriptSig, no witness vector.
const (
	CompressedP2PKHScriptSigBytes = 107
	TxOverheadBytes               = 10 // version(4) + locktime(4) + in/out count varints (approx)
	TxInOverheadBytes             = 40 // outpoint(36) + sequence(4); scriptSig length counted separately
	TxOutBytes                    = 8 + 1 + 25
)

// RPC client timeouts.
const (
	RPCConnectTimeout = 10 * time.Second
	RPCTotalTimeout   = 30 * time.Second
)

// ProxyTokenValidity bounds how long a signed proxy token is accepted by the full node.
const ProxyTokenValidity = 60 * time.Minute

// Server
const (
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 60 * time.Second
	APITimeout         = 30 * time.Second
)

// Logging. Pattern placeholders are (date, level), e.g. "dogebridge-ci-2026-07-30-info.log".
const (
	LogMaxAgeDays        = 30
	CILogFilePattern     = "dogebridge-ci-%s-%s.log"
	MinterLogFilePattern = "dogebridge-mi-%s-%s.log"
)

// Database
const (
	DBWALMode     = true
	DBBusyTimeout = 5000 // milliseconds
)

// NetworkParams carries the base58check version bytes that distinguish
// P2PKH from P2SH addresses on a given network.
type NetworkParams struct {
	P2PKHVersion byte
	P2SHVersion  byte
}

// Mainnet and Testnet are Dogecoin's address version bytes.
var (
	Mainnet = NetworkParams{P2PKHVersion: 0x1e, P2SHVersion: 0x16}
	Testnet = NetworkParams{P2PKHVersion: 0x71, P2SHVersion: 0xc4}
)

// NetworkParamsFor resolves the configured network name ("mainnet" or
// "testnet", see Config.Validate) to its address version bytes.
func NetworkParamsFor(network string) NetworkParams {
	if network == "mainnet" {
		return Mainnet
	}
	return Testnet
}

// Error codes surfaced to API callers, mirroring the sentinel errors in errors.go.
const (
	ErrorCodeTransport             = "ERROR_TRANSPORT"
	ErrorCodeRPC                   = "ERROR_RPC"
	ErrorCodeReorg                 = "ERROR_REORG"
	ErrorCodeMalformed             = "ERROR_MALFORMED"
	ErrorCodeBadHeight             = "ERROR_BAD_HEIGHT"
	ErrorCodeBadHash               = "ERROR_BAD_HASH"
	ErrorCodeVoutOutOfRange        = "ERROR_VOUT_OUT_OF_RANGE"
	ErrorCodeMissingProcessedBlock = "ERROR_MISSING_PROCESSED_BLOCK"
	ErrorCodeBelowDust             = "ERROR_BELOW_DUST"
	ErrorCodeInsufficient          = "ERROR_INSUFFICIENT"
	ErrorCodeBadAddress            = "ERROR_BAD_ADDRESS"
	ErrorCodeKMS                   = "ERROR_KMS"
	ErrorCodeLedger                = "ERROR_LEDGER"
	ErrorCodeUnauthorized          = "ERROR_UNAUTHORIZED"
	ErrorCodeInvalidConfig         = "ERROR_INVALID_CONFIG"
)
