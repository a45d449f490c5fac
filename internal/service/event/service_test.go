package event_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/ledger/ledgertest"
	"github.com/kirinyoku/algotix/internal/service/event"
	"github.com/kirinyoku/algotix/internal/service/setup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

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

func newService(node *ledgertest.FakeNode, session *wallet.Session) *event.Service {
	setupSvc := setup.New(node, session, setup.Config{}, slog.Default())
	return event.New(node, session, setupSvc, event.Config{}, slog.Default())
}

func validDraft() event.Draft {
	return event.Draft{
		Name:        "Summer Festival",
		Description: "Three stages",
		Date:        "2026-09-12",
		Time:        "18:00",
		Venue:       "City Park",
		PriceMicro:  1_500_000,
		Supply:      500,
	}
}

func TestCreateMintsAsset(t *testing.T) {
	session, creator := newSession(t)
	node := ledgertest.NewFakeNode()
	node.NextAssetID = 4242

	ev, err := newService(node, session).Create(context.Background(), validDraft())
	require.NoError(t, err)

	assert.Equal(t, uint64(4242), ev.AssetID)
	assert.Equal(t, "Summer Festival", ev.Name)
	assert.Equal(t, event.UnitName, ev.UnitName)
	assert.Equal(t, uint64(500), ev.Total)
	assert.Equal(t, creator, ev.Creator)
	assert.Equal(t, uint64(1_500_000), ev.PriceMicro)
	assert.Equal(t, 1, node.SendCount())
}

func TestCreateValidation(t *testing.T) {
	session, _ := newSession(t)
	node := ledgertest.NewFakeNode()
	svc := newService(node, session)

	t.Run("missing name", func(t *testing.T) {
		d := validDraft()
		d.Name = ""

		_, err := svc.Create(context.Background(), d)

		var draftErr *event.InvalidDraftError
		assert.ErrorAs(t, err, &draftErr)
	})

	t.Run("zero supply", func(t *testing.T) {
		d := validDraft()
		d.Supply = 0

		_, err := svc.Create(context.Background(), d)

		var draftErr *event.InvalidDraftError
		assert.ErrorAs(t, err, &draftErr)
	})

	assert.Zero(t, node.SendCount(), "invalid drafts never reach the ledger")
}

func TestCreateRequiresSigner(t *testing.T) {
	node := ledgertest.NewFakeNode()
	session := wallet.NewSession(0)

	_, err := newService(node, session).Create(context.Background(), validDraft())
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestCreateAndActivate(t *testing.T) {
	session, creator := newSession(t)
	node := ledgertest.NewFakeNode()
	node.NextAssetID = 4242

	// The creator starts holding the full freshly minted supply.
	node.SetAccount(ledger.AccountInfo{
		Address:  creator,
		Amount:   10_000_000,
		Holdings: []ledger.Holding{{AssetID: 4242, Amount: 500}},
	})

	ev, report, err := newService(node, session).CreateAndActivate(context.Background(), validDraft())
	require.NoError(t, err)

	assert.Equal(t, uint64(4242), ev.AssetID)
	require.NotNil(t, report)
	assert.Equal(t, setup.StepDone, report.Funded)
	assert.Equal(t, setup.StepDone, report.OptedIn)
	assert.Equal(t, setup.StockTransferred, report.Stock)
	assert.Equal(t, 4, node.SendCount(), "mint plus the three activation steps")
}
