package purchase_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/ledger/ledgertest"
	"github.com/kirinyoku/algotix/internal/service/event"
	"github.com/kirinyoku/algotix/internal/service/query"
	"github.com/kirinyoku/algotix/internal/service/setup"
)

// Full sale lifecycle: mint a 100-ticket event, activate its vending machine,
// buy one ticket, then reconcile from the ledger and observe 99 available and
// 1 sold. The fake node does not execute transactions, so ledger effects are
// applied to it by hand between steps, exactly as a confirmed round would.
func TestSaleLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	sellerSession, seller := newSession(t)
	node := ledgertest.NewFakeNode()
	node.NextAssetID = 500

	setupSvc := setup.New(node, sellerSession, setup.Config{}, logger)
	eventSvc := event.New(node, sellerSession, setupSvc, event.Config{}, logger)

	// Mint: the creator ends up holding the full supply.
	ev, err := eventSvc.Create(ctx, event.Draft{
		Name:       "Jazz Night",
		PriceMicro: 2_500_000,
		Supply:     100,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(500), ev.AssetID)

	node.SetAccount(ledger.AccountInfo{
		Address:  seller,
		Amount:   10_000_000,
		Holdings: []ledger.Holding{{AssetID: ev.AssetID, Amount: 100}},
	})

	// Activate: fund, opt in, stock.
	report, err := setupSvc.Activate(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, setup.StockTransferred, report.Stock)

	node.SetAccount(ledger.AccountInfo{
		Address:  report.EscrowAddress,
		Amount:   1_000_000,
		Holdings: []ledger.Holding{{AssetID: ev.AssetID, Amount: 100}},
	})

	// Buy one ticket.
	buyerSession, buyer := newSession(t)
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: 10_000_000})

	buySvc := newService(node, buyerSession)
	receipt, err := buySvc.Buy(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, buyer, receipt.Buyer)

	node.SetAccount(ledger.AccountInfo{
		Address:  report.EscrowAddress,
		Amount:   1_000_000,
		Holdings: []ledger.Holding{{AssetID: ev.AssetID, Amount: 99}},
	})
	node.SetAccount(ledger.AccountInfo{
		Address:  buyer,
		Amount:   7_000_000,
		Holdings: []ledger.Holding{{AssetID: ev.AssetID, Amount: 1}},
	})

	// Reconcile from the ledger: one sold, ninety-nine left.
	querySvc := query.New(node, ledgertest.NewFakeSearch(), query.Config{}, logger)
	hydrated := querySvc.Hydrate(ctx, []domain.Event{ev})

	require.Len(t, hydrated, 1)
	got := hydrated[0]
	assert.True(t, got.Active)
	assert.Equal(t, uint64(99), got.Available)
	assert.Equal(t, uint64(1), got.Sold)

	// A second purchase by the same buyer is refused before submission.
	_, err = buySvc.Buy(ctx, ev)
	assert.Error(t, err)
}
