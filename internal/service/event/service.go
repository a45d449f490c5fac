// Package event mints ticket assets. An event is created atomically by one
// asset-creation operation whose note carries all metadata; the asset id is
// read back from the ledger after confirmation.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/transaction"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/note"
	"github.com/kirinyoku/algotix/internal/service/setup"
	"github.com/kirinyoku/algotix/internal/txgroup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

// UnitName is the fixed unit name of every ticket asset.
const UnitName = "TKT"

type Config struct {
	// CreateWaitRounds bounds the wait on the creation transaction. Minting
	// gets a generous budget; nothing can proceed without the asset id.
	CreateWaitRounds uint64
}

// Draft is the organizer's input for a new event.
type Draft struct {
	Name        string
	Description string
	Date        string
	Time        string
	Venue       string
	PriceMicro  uint64
	Supply      uint64
}

func (d Draft) validate() error {
	if d.Name == "" {
		return invalid("name is required")
	}
	if d.Supply == 0 {
		return invalid("supply must be at least 1")
	}
	return nil
}

type Service struct {
	node    ledger.Node
	session *wallet.Session
	setup   *setup.Service
	cfg     Config
	logger  *slog.Logger
}

func New(node ledger.Node, session *wallet.Session, setupSvc *setup.Service, cfg Config, logger *slog.Logger) *Service {
	if cfg.CreateWaitRounds == 0 {
		cfg.CreateWaitRounds = 60
	}

	return &Service{
		node:    node,
		session: session,
		setup:   setupSvc,
		cfg:     cfg,
		logger:  logger,
	}
}

// Create mints the ticket asset for a draft and returns the created event.
// The creator keeps all asset roles, in particular the freeze role used at
// check-in. decimals is 0: one unit, one ticket.
//
// Returns:
//   - domain.Event: the minted event, with AssetID assigned by the ledger.
//   - error: *event.InvalidDraftError for unusable input; wallet and ledger
//     errors otherwise.
func (s *Service) Create(ctx context.Context, d Draft) (domain.Event, error) {
	const op = "service.event.Create"

	if err := d.validate(); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	creator, err := s.session.Address()
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	payload, err := note.EncodeEvent(note.Event{
		Description: d.Description,
		Date:        d.Date,
		Time:        d.Time,
		Venue:       d.Venue,
		Price:       d.PriceMicro,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	txn, err := transaction.MakeAssetCreateTxn(
		creator, payload, sp,
		d.Supply, 0, false,
		creator, creator, creator, creator,
		UnitName, d.Name, "", "",
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	g := txgroup.New()
	g.AddUser(txn)
	if err := g.Seal(); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := g.Sign(ctx, s.session)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	txid, err := s.node.SendRawTransaction(ctx, raw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.node.WaitForConfirmation(ctx, txid, s.cfg.CreateWaitRounds); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	pending, err := s.node.PendingTransaction(ctx, txid)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	ev := domain.Event{
		AssetID:     pending.AssetID,
		Name:        d.Name,
		UnitName:    UnitName,
		Total:       d.Supply,
		Creator:     creator,
		Description: d.Description,
		PriceMicro:  d.PriceMicro,
		Date:        d.Date,
		Time:        d.Time,
		Venue:       d.Venue,
	}

	s.logger.Info("event minted", "asset_id", ev.AssetID, "name", ev.Name, "supply", ev.Total)

	return ev, nil
}

// CreateAndActivate mints the asset and immediately runs the vending-machine
// activation. If activation is interrupted the event still exists; re-running
// activation later picks up from the observed ledger state.
func (s *Service) CreateAndActivate(ctx context.Context, d Draft) (domain.Event, *setup.Report, error) {
	const op = "service.event.CreateAndActivate"

	ev, err := s.Create(ctx, d)
	if err != nil {
		return domain.Event{}, nil, err
	}

	report, err := s.setup.Activate(ctx, ev)
	if err != nil {
		return ev, nil, fmt.Errorf("%s: activation interrupted, re-run activate for asset %d: %w",
			op, ev.AssetID, err)
	}

	return ev, report, nil
}
