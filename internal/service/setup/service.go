// Package setup brings an event's vending machine from whatever state the
// ledger shows to fully active, running only the missing steps. It keeps no
// progress flags of its own, so it is safe to re-invoke after a crash or a
// half-finished earlier run.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/transaction"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/escrow"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/txgroup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

type Config struct {
	// FundingThreshold is the escrow balance above which funding is skipped.
	FundingThreshold uint64
	// FundingAmount covers the escrow's minimum balance plus future fees.
	FundingAmount uint64
	// WaitRounds bounds each confirmation wait.
	WaitRounds uint64
}

type StepResult string

const (
	StepDone    StepResult = "done"
	StepSkipped StepResult = "skipped"
)

type StockResult string

const (
	StockTransferred    StockResult = "stocked"
	StockAlreadyStocked StockResult = "already_stocked"
	StockNothingToStock StockResult = "nothing_to_stock"
)

// Report describes what one Activate run actually did.
type Report struct {
	EscrowAddress string      `json:"escrow_address"`
	Funded        StepResult  `json:"funded"`
	OptedIn       StepResult  `json:"opted_in"`
	Stock         StockResult `json:"stock"`
}

type Service struct {
	node    ledger.Node
	session *wallet.Session
	cfg     Config
	logger  *slog.Logger
}

func New(node ledger.Node, session *wallet.Session, cfg Config, logger *slog.Logger) *Service {
	if cfg.FundingThreshold == 0 {
		cfg.FundingThreshold = 100_000
	}
	if cfg.FundingAmount == 0 {
		cfg.FundingAmount = 1_000_000
	}
	if cfg.WaitRounds == 0 {
		cfg.WaitRounds = 10
	}

	return &Service{
		node:    node,
		session: session,
		cfg:     cfg,
		logger:  logger,
	}
}

type escrowState struct {
	funded      bool
	optedIn     bool
	escrowStock uint64
}

// Activate drives the escrow through funding, opt-in and stocking. Every
// completion check reads live ledger state at call time; the steps are
// deliberately sequential, each waiting for confirmation before the next is
// evaluated.
//
// Returns:
//   - *Report: which steps ran, were skipped, and the stocking outcome.
//   - error: setup.ErrNotCreator if the connected account is not the event
//     creator; otherwise the first failing step's error, after which Activate
//     may simply be called again.
func (s *Service) Activate(ctx context.Context, ev domain.Event) (*Report, error) {
	const op = "service.setup.Activate"

	seller, err := s.session.Address()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if seller != ev.Creator {
		return nil, fmt.Errorf("%s: %w", op, ErrNotCreator)
	}

	prog, err := escrow.Build(ctx, s.node, escrow.Params{
		AssetID:   ev.AssetID,
		UnitPrice: ev.PriceMicro,
		Seller:    ev.Creator,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &Report{EscrowAddress: prog.Address}

	state, err := s.observe(ctx, prog.Address, ev.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Step 1: funding. Sequential, not grouped: the opt-in below needs the
	// minimum balance to already be observable.
	if state.funded {
		report.Funded = StepSkipped
	} else {
		if err := s.fund(ctx, seller, prog.Address); err != nil {
			return nil, fmt.Errorf("%s: fund: %w", op, err)
		}
		report.Funded = StepDone
	}

	// Step 2: escrow opt-in, self-signed with the program proof.
	if state.optedIn {
		report.OptedIn = StepSkipped
	} else {
		if err := s.optIn(ctx, prog, ev.AssetID); err != nil {
			return nil, fmt.Errorf("%s: opt-in: %w", op, err)
		}
		report.OptedIn = StepDone
	}

	// Step 3: stock with the seller's full remaining balance.
	sellerAcc, err := s.node.Account(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holding, _ := sellerAcc.Holding(ev.AssetID)
	switch {
	case holding.Amount > 0:
		if err := s.stock(ctx, seller, prog.Address, ev.AssetID, holding.Amount); err != nil {
			return nil, fmt.Errorf("%s: stock: %w", op, err)
		}
		report.Stock = StockTransferred
	case state.escrowStock > 0:
		report.Stock = StockAlreadyStocked
	default:
		report.Stock = StockNothingToStock
	}

	s.logger.Info("vending machine activation finished",
		"asset_id", ev.AssetID,
		"escrow", prog.Address,
		"funded", report.Funded,
		"opted_in", report.OptedIn,
		"stock", report.Stock,
	)

	return report, nil
}

func (s *Service) observe(ctx context.Context, escrowAddr string, assetID uint64) (escrowState, error) {
	acc, err := s.node.Account(ctx, escrowAddr)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Escrow account does not exist yet: fully unfunded.
			return escrowState{}, nil
		}
		return escrowState{}, err
	}

	state := escrowState{funded: acc.Amount > s.cfg.FundingThreshold}
	if h, ok := acc.Holding(assetID); ok {
		state.optedIn = true
		state.escrowStock = h.Amount
	}

	return state, nil
}

func (s *Service) fund(ctx context.Context, seller, escrowAddr string) error {
	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return err
	}

	txn, err := transaction.MakePaymentTxn(seller, escrowAddr, s.cfg.FundingAmount, nil, "", sp)
	if err != nil {
		return err
	}

	g := txgroup.New()
	g.AddUser(txn)

	return s.submit(ctx, g)
}

func (s *Service) optIn(ctx context.Context, prog *escrow.Program, assetID uint64) error {
	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return err
	}

	txn, err := transaction.MakeAssetTransferTxn(prog.Address, prog.Address, 0, nil, sp, "", assetID)
	if err != nil {
		return err
	}

	g := txgroup.New()
	g.AddEscrow(txn, prog)

	return s.submit(ctx, g)
}

func (s *Service) stock(ctx context.Context, seller, escrowAddr string, assetID, amount uint64) error {
	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return err
	}

	txn, err := transaction.MakeAssetTransferTxn(seller, escrowAddr, amount, nil, sp, "", assetID)
	if err != nil {
		return err
	}

	g := txgroup.New()
	g.AddUser(txn)

	return s.submit(ctx, g)
}

func (s *Service) submit(ctx context.Context, g *txgroup.Group) error {
	if err := g.Seal(); err != nil {
		return err
	}

	raw, err := g.Sign(ctx, s.session)
	if err != nil {
		return err
	}

	txid, err := s.node.SendRawTransaction(ctx, raw)
	if err != nil {
		return err
	}

	if _, err := s.node.WaitForConfirmation(ctx, txid, s.cfg.WaitRounds); err != nil {
		return err
	}

	return nil
}
