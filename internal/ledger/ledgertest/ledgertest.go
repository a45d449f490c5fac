// Package ledgertest provides in-memory fakes of the ledger interfaces for
// service tests. The node fake hands out a trivial always-approving program
// from Compile; addresses are derived from a hash of the source so equal
// parameters keep deriving equal addresses.
package ledgertest

import (
	"context"
	"crypto/sha512"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/kirinyoku/algotix/internal/ledger"
)

// approveProgram is the canonical "int 1" TEAL program.
var approveProgram = []byte{0x01, 0x20, 0x01, 0x01, 0x22}

type FakeNode struct {
	mu sync.Mutex

	Accounts map[string]ledger.AccountInfo
	Assets   map[uint64]ledger.AssetInfo
	Round    uint64

	// SendErr fails every submission when set.
	SendErr error
	// NextAssetID is reported for the next confirmed transaction, for
	// asset-creation flows.
	NextAssetID uint64

	sent [][]byte
}

func NewFakeNode() *FakeNode {
	return &FakeNode{
		Accounts: make(map[string]ledger.AccountInfo),
		Assets:   make(map[uint64]ledger.AssetInfo),
		Round:    5_000_000,
	}
}

// SetAccount installs or replaces an account.
func (f *FakeNode) SetAccount(acc ledger.AccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[acc.Address] = acc
}

// Sent returns the raw blobs submitted so far.
func (f *FakeNode) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *FakeNode) SendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *FakeNode) Account(_ context.Context, address string) (ledger.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.Accounts[address]
	if !ok {
		return ledger.AccountInfo{}, ledger.ErrNotFound
	}
	return acc, nil
}

func (f *FakeNode) Asset(_ context.Context, assetID uint64) (ledger.AssetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	asset, ok := f.Assets[assetID]
	if !ok {
		return ledger.AssetInfo{}, ledger.ErrNotFound
	}
	return asset, nil
}

func (f *FakeNode) LastRound(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Round, nil
}

func (f *FakeNode) SuggestedParams(_ context.Context) (types.SuggestedParams, error) {
	gh := make([]byte, 32)
	gh[0] = 7
	return types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		GenesisID:       "fake-v1",
		GenesisHash:     gh,
	}, nil
}

func (f *FakeNode) Compile(_ context.Context, source []byte) ([]byte, string, error) {
	sum := sha512.Sum512_256(source)
	return approveProgram, types.Address(sum).String(), nil
}

func (f *FakeNode) SendRawTransaction(_ context.Context, stx []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.sent = append(f.sent, stx)
	return fmt.Sprintf("FAKETX%d", len(f.sent)), nil
}

func (f *FakeNode) PendingTransaction(_ context.Context, txid string) (ledger.PendingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ledger.PendingInfo{AssetID: f.NextAssetID, ConfirmedRound: f.Round}, nil
}

func (f *FakeNode) WaitForConfirmation(_ context.Context, txid string, _ uint64) (ledger.PendingInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ledger.PendingInfo{AssetID: f.NextAssetID, ConfirmedRound: f.Round}, nil
}

// FakeSearch answers transaction searches through the SearchFn hook and
// account lookups from maps.
type FakeSearch struct {
	SearchFn      func(q ledger.TxnQuery) (ledger.TxnPage, error)
	CreatedAssets map[string][]ledger.AssetInfo
	Holdings      map[string][]ledger.Holding
}

func NewFakeSearch() *FakeSearch {
	return &FakeSearch{
		CreatedAssets: make(map[string][]ledger.AssetInfo),
		Holdings:      make(map[string][]ledger.Holding),
	}
}

func (f *FakeSearch) SearchTransactions(_ context.Context, q ledger.TxnQuery) (ledger.TxnPage, error) {
	if f.SearchFn == nil {
		return ledger.TxnPage{}, nil
	}
	return f.SearchFn(q)
}

func (f *FakeSearch) AccountCreatedAssets(_ context.Context, address string) ([]ledger.AssetInfo, error) {
	return f.CreatedAssets[address], nil
}

func (f *FakeSearch) AccountHoldings(_ context.Context, address string) ([]ledger.Holding, error) {
	return f.Holdings[address], nil
}
