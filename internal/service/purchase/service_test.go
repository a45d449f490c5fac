package purchase_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/escrow"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/ledger/ledgertest"
	"github.com/kirinyoku/algotix/internal/service/purchase"
	"github.com/kirinyoku/algotix/internal/wallet"
)

const assetID = 10

func newSession(t *testing.T) (*wallet.Session, string) {
	t.Helper()

	acct := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	require.NoError(t, err)

	signer, err := wallet.NewLocalSigner(phrase)
	require.NoError(t, err)

	session := wallet.NewSession(0)
	session.Connect(signer)
	return session, signer.Address()
}

func newService(node *ledgertest.FakeNode, session *wallet.Session) *purchase.Service {
	return purchase.New(node, session, purchase.Config{}, slog.Default())
}

func testEvent(t *testing.T) domain.Event {
	t.Helper()
	return domain.Event{
		AssetID:    assetID,
		Name:       "Concert",
		Total:      100,
		Creator:    crypto.GenerateAccount().Address.String(),
		PriceMicro: 1_000_000,
	}
}

func escrowAddr(t *testing.T, node *ledgertest.FakeNode, ev domain.Event) string {
	t.Helper()
	prog, err := escrow.Build(context.Background(), node, escrow.Params{
		AssetID:   ev.AssetID,
		UnitPrice: ev.PriceMicro,
		Seller:    ev.Creator,
	})
	require.NoError(t, err)
	return prog.Address
}

func stockEscrow(t *testing.T, node *ledgertest.FakeNode, ev domain.Event, amount uint64) {
	t.Helper()
	node.SetAccount(ledger.AccountInfo{
		Address:  escrowAddr(t, node, ev),
		Amount:   1_000_000,
		Holdings: []ledger.Holding{{AssetID: ev.AssetID, Amount: amount}},
	})
}

func TestBuySubmitsAtomicGroup(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	stockEscrow(t, node, ev, 100)
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: 10_000_000})

	receipt, err := newService(node, session).Buy(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, buyer, receipt.Buyer)
	assert.Equal(t, uint64(assetID), receipt.AssetID)
	assert.NotEmpty(t, receipt.TxID)
	assert.Equal(t, 1, node.SendCount(), "the whole group goes in one submission")
}

func TestBuySoldOutRefusedBeforeSigning(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	stockEscrow(t, node, ev, 0)
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: 10_000_000})

	_, err := newService(node, session).Buy(context.Background(), ev)

	assert.ErrorIs(t, err, purchase.ErrSoldOut)
	assert.Zero(t, node.SendCount(), "nothing may be submitted for a sold-out event")
}

func TestBuyInactiveEvent(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	// Escrow account does not exist at all.
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: 10_000_000})

	_, err := newService(node, session).Buy(context.Background(), ev)
	assert.ErrorIs(t, err, purchase.ErrNotActive)

	// Escrow funded but never opted in.
	node.SetAccount(ledger.AccountInfo{Address: escrowAddr(t, node, ev), Amount: 1_000_000})

	_, err = newService(node, session).Buy(context.Background(), ev)
	assert.ErrorIs(t, err, purchase.ErrNotActive)
	assert.Zero(t, node.SendCount())
}

func TestBuyRejectsDoublePurchase(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	stockEscrow(t, node, ev, 99)
	node.SetAccount(ledger.AccountInfo{
		Address:  buyer,
		Amount:   10_000_000,
		Holdings: []ledger.Holding{{AssetID: assetID, Amount: 1}},
	})

	_, err := newService(node, session).Buy(context.Background(), ev)

	assert.ErrorIs(t, err, purchase.ErrAlreadyHolding)
	assert.Zero(t, node.SendCount())
}

func TestBuyInsufficientFunds(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	stockEscrow(t, node, ev, 100)
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: ev.PriceMicro})

	_, err := newService(node, session).Buy(context.Background(), ev)

	assert.ErrorIs(t, err, purchase.ErrInsufficientFunds,
		"price alone is not enough, fees and min balance must be covered")
	assert.Zero(t, node.SendCount())
}

func TestBuyRequiresSigner(t *testing.T) {
	node := ledgertest.NewFakeNode()
	session := wallet.NewSession(0)

	_, err := newService(node, session).Buy(context.Background(), testEvent(t))
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestPlaceOrder(t *testing.T) {
	session, buyer := newSession(t)
	node := ledgertest.NewFakeNode()
	ev := testEvent(t)

	receipt, err := newService(node, session).PlaceOrder(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, buyer, receipt.Buyer)
	assert.Equal(t, 1, node.SendCount())
}

func TestFulfill(t *testing.T) {
	session, seller := newSession(t)
	node := ledgertest.NewFakeNode()

	ev := testEvent(t)
	ev.Creator = seller

	buyer := crypto.GenerateAccount().Address.String()
	node.SetAccount(ledger.AccountInfo{
		Address:  buyer,
		Holdings: []ledger.Holding{{AssetID: assetID, Amount: 0}},
	})

	receipt, err := newService(node, session).Fulfill(context.Background(), ev, buyer)
	require.NoError(t, err)

	assert.Equal(t, buyer, receipt.Buyer)
	assert.Equal(t, 1, node.SendCount())
}

func TestFulfillRejectsNonCreator(t *testing.T) {
	session, _ := newSession(t)
	node := ledgertest.NewFakeNode()

	ev := testEvent(t) // creator is a different account

	_, err := newService(node, session).Fulfill(context.Background(), ev, "BUYER")
	assert.ErrorIs(t, err, purchase.ErrNotCreator)
	assert.Zero(t, node.SendCount())
}

func TestFulfillRequiresOptIn(t *testing.T) {
	session, seller := newSession(t)
	node := ledgertest.NewFakeNode()

	ev := testEvent(t)
	ev.Creator = seller

	buyer := crypto.GenerateAccount().Address.String()
	// Buyer account exists but has no holding of the asset.
	node.SetAccount(ledger.AccountInfo{Address: buyer, Amount: 1_000_000})

	_, err := newService(node, session).Fulfill(context.Background(), ev, buyer)
	assert.ErrorIs(t, err, purchase.ErrNotOptedIn)
	assert.Zero(t, node.SendCount())
}

func TestFulfillRefusesServedOrder(t *testing.T) {
	session, seller := newSession(t)
	node := ledgertest.NewFakeNode()

	ev := testEvent(t)
	ev.Creator = seller

	buyer := crypto.GenerateAccount().Address.String()
	node.SetAccount(ledger.AccountInfo{
		Address:  buyer,
		Holdings: []ledger.Holding{{AssetID: assetID, Amount: 1}},
	})

	_, err := newService(node, session).Fulfill(context.Background(), ev, buyer)
	assert.ErrorIs(t, err, purchase.ErrOrderNotPending)
	assert.Zero(t, node.SendCount(), "a served buyer is never shipped a second ticket")
}
