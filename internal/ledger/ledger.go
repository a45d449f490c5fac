// Package ledger is the engine's only source of truth: narrow interfaces
// over the Algorand node (algod) and the indexer, plus the record types the
// services consume. There is no private database behind these — every answer
// is recovered from the chain at call time.
package ledger

import (
	"context"
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// ErrNotFound reports an account or asset the queried service does not know.
// An unfunded escrow address, for example, does not exist yet as far as algod
// is concerned.
var ErrNotFound = errors.New("ledger: not found")

// Holding is an account's position in one asset.
type Holding struct {
	AssetID uint64
	Amount  uint64
	Frozen  bool
}

// AccountInfo is the subset of account state the engine needs.
type AccountInfo struct {
	Address  string
	Amount   uint64 // microAlgos
	Holdings []Holding
}

// Holding returns the account's holding of assetID, if any.
func (a AccountInfo) Holding(assetID uint64) (Holding, bool) {
	for _, h := range a.Holdings {
		if h.AssetID == assetID {
			return h, true
		}
	}
	return Holding{}, false
}

// AssetInfo is the subset of asset parameters the engine needs.
type AssetInfo struct {
	ID            uint64
	Creator       string
	Name          string
	UnitName      string
	Total         uint64
	Decimals      uint32
	FreezeAddress string
	Deleted       bool
}

// TxnRecord is a flattened view of an indexed transaction. Fields not
// applicable to the transaction's type are zero.
type TxnRecord struct {
	ID     string
	Sender string
	Note   []byte

	// Asset-config transactions.
	CreatedAssetID uint64
	AssetName      string
	AssetUnitName  string
	AssetTotal     uint64

	// Payment transactions.
	PaymentReceiver string
	PaymentAmount   uint64

	RoundTime uint64
}

// TxnQuery describes one indexer transaction search. Zero fields are omitted
// from the query.
type TxnQuery struct {
	NotePrefix  []byte
	TxType      string
	MinRound    uint64
	AssetID     uint64
	Address     string
	AddressRole string
	Limit       uint64
	NextToken   string
}

// TxnPage is one page of search results with the opaque continuation token
// for the next page, empty when exhausted.
type TxnPage struct {
	Transactions []TxnRecord
	NextToken    string
}

// PendingInfo is the confirmation state of a submitted transaction.
type PendingInfo struct {
	AssetID        uint64
	ConfirmedRound uint64
	PoolError      string
}

// Node is the algod surface: live account state, asset parameters, the TEAL
// compiler, and the write path.
type Node interface {
	Account(ctx context.Context, address string) (AccountInfo, error)
	Asset(ctx context.Context, assetID uint64) (AssetInfo, error)
	LastRound(ctx context.Context) (uint64, error)
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	Compile(ctx context.Context, source []byte) (program []byte, address string, err error)
	SendRawTransaction(ctx context.Context, stx []byte) (txid string, err error)
	PendingTransaction(ctx context.Context, txid string) (PendingInfo, error)
	WaitForConfirmation(ctx context.Context, txid string, waitRounds uint64) (PendingInfo, error)
}

// Search is the indexer surface: historical discovery queries. Indexer data
// lags the node by a few rounds, so anything needing real-time accuracy
// (stock checks, holdings checks before admission) goes through Node instead.
type Search interface {
	SearchTransactions(ctx context.Context, q TxnQuery) (TxnPage, error)
	AccountCreatedAssets(ctx context.Context, address string) ([]AssetInfo, error)
	AccountHoldings(ctx context.Context, address string) ([]Holding, error)
}
