// Package purchase implements the sale paths: the atomic instant buy against
// the vending machine, and the manual order flow where a buyer pays first and
// the organizer ships the ticket later.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/transaction"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/escrow"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/note"
	"github.com/kirinyoku/algotix/internal/txgroup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

type Config struct {
	// WaitRounds bounds each confirmation wait.
	WaitRounds uint64
}

type Service struct {
	node    ledger.Node
	session *wallet.Session
	cfg     Config
	logger  *slog.Logger
}

func New(node ledger.Node, session *wallet.Session, cfg Config, logger *slog.Logger) *Service {
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

// Receipt describes a completed purchase or fulfillment.
type Receipt struct {
	TxID           string `json:"txid"`
	AssetID        uint64 `json:"asset_id"`
	Buyer          string `json:"buyer"`
	ConfirmedRound uint64 `json:"confirmed_round"`
}

// Buy performs the instant purchase as one atomic group: the buyer opts in,
// pays the creator, and the vending machine ships exactly one ticket. Stock
// and activation are checked against the node before the signer is ever
// asked for anything, so a hopeless purchase never prompts the user.
//
// Returns:
//   - *Receipt: payment transaction id and the confirming round.
//   - error: ErrNotActive, ErrSoldOut, ErrAlreadyHolding or
//     ErrInsufficientFunds before signing; wallet.ErrSignTimeout if the
//     signer does not answer; a ledger rejection mapped through sentinels
//     after submission.
func (s *Service) Buy(ctx context.Context, ev domain.Event) (*Receipt, error) {
	const op = "service.purchase.Buy"

	buyer, err := s.session.Address()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prog, err := escrow.Build(ctx, s.node, escrow.Params{
		AssetID:   ev.AssetID,
		UnitPrice: ev.PriceMicro,
		Seller:    ev.Creator,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.preflight(ctx, prog.Address, buyer, ev); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	optIn, err := transaction.MakeAssetTransferTxn(buyer, buyer, 0, nil, sp, "", ev.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pay, err := transaction.MakePaymentTxn(
		buyer, ev.Creator, ev.PriceMicro, note.EncodePurchase(ev.AssetID), "", sp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ship, err := transaction.MakeAssetTransferTxn(prog.Address, buyer, 1, nil, sp, "", ev.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The program verifies it sits at position 2 of a 3-member group; the
	// order below is load-bearing.
	g := txgroup.New()
	g.AddUser(optIn)
	g.AddUser(pay)
	g.AddEscrow(ship, prog)

	txid, round, err := s.submit(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapRejection(err))
	}

	s.logger.Info("ticket purchased",
		"asset_id", ev.AssetID, "buyer", buyer, "txid", txid, "round", round)

	return &Receipt{TxID: txid, AssetID: ev.AssetID, Buyer: buyer, ConfirmedRound: round}, nil
}

// preflight rejects purchases the ledger would refuse anyway, reading live
// node state so the answer is current as of this round.
func (s *Service) preflight(ctx context.Context, escrowAddr, buyer string, ev domain.Event) error {
	escrowAcc, err := s.node.Account(ctx, escrowAddr)
	if err != nil {
		if isNotFound(err) {
			return ErrNotActive
		}
		return err
	}

	stock, optedIn := escrowAcc.Holding(ev.AssetID)
	if !optedIn {
		return ErrNotActive
	}
	if stock.Amount == 0 {
		return ErrSoldOut
	}

	buyerAcc, err := s.node.Account(ctx, buyer)
	if err != nil && !isNotFound(err) {
		return err
	}

	if h, ok := buyerAcc.Holding(ev.AssetID); ok && h.Amount > 0 {
		return ErrAlreadyHolding
	}

	// Price plus two flat transaction fees plus the minimum-balance bump the
	// new holding requires.
	const (
		minTxnFee      = 1_000
		minBalanceBump = 100_000
	)
	need := ev.PriceMicro + 2*minTxnFee + minBalanceBump
	if buyerAcc.Amount < need {
		return ErrInsufficientFunds
	}

	return nil
}

// PlaceOrder records purchase intent on the ledger: a plain payment to the
// creator carrying the tagged note. The ticket arrives later, when the
// organizer fulfills the order.
func (s *Service) PlaceOrder(ctx context.Context, ev domain.Event) (*Receipt, error) {
	const op = "service.purchase.PlaceOrder"

	buyer, err := s.session.Address()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pay, err := transaction.MakePaymentTxn(
		buyer, ev.Creator, ev.PriceMicro, note.EncodePurchase(ev.AssetID), "", sp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g := txgroup.New()
	g.AddUser(pay)

	txid, round, err := s.submit(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapRejection(err))
	}

	s.logger.Info("order placed",
		"asset_id", ev.AssetID, "buyer", buyer, "txid", txid, "round", round)

	return &Receipt{TxID: txid, AssetID: ev.AssetID, Buyer: buyer, ConfirmedRound: round}, nil
}

// OptIn lets a buyer accept the ticket asset ahead of fulfillment: a zero
// self-transfer of the asset.
func (s *Service) OptIn(ctx context.Context, assetID uint64) (*Receipt, error) {
	const op = "service.purchase.OptIn"

	buyer, err := s.session.Address()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	txn, err := transaction.MakeAssetTransferTxn(buyer, buyer, 0, nil, sp, "", assetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g := txgroup.New()
	g.AddUser(txn)

	txid, round, err := s.submit(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapRejection(err))
	}

	return &Receipt{TxID: txid, AssetID: assetID, Buyer: buyer, ConfirmedRound: round}, nil
}

// Fulfill ships one ticket from the organizer's own balance to a buyer whose
// paid order is still pending. The pending state is re-checked against the
// node immediately before signing; a buyer who already holds the ticket is
// never shipped a second one.
func (s *Service) Fulfill(ctx context.Context, ev domain.Event, buyer string) (*Receipt, error) {
	const op = "service.purchase.Fulfill"

	seller, err := s.session.Address()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if seller != ev.Creator {
		return nil, fmt.Errorf("%s: %w", op, ErrNotCreator)
	}

	buyerAcc, err := s.node.Account(ctx, buyer)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	h, optedIn := buyerAcc.Holding(ev.AssetID)
	if !optedIn {
		return nil, fmt.Errorf("%s: %w", op, ErrNotOptedIn)
	}
	if h.Amount > 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotPending)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ship, err := transaction.MakeAssetTransferTxn(seller, buyer, 1, nil, sp, "", ev.AssetID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g := txgroup.New()
	g.AddUser(ship)

	txid, round, err := s.submit(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapRejection(err))
	}

	s.logger.Info("order fulfilled",
		"asset_id", ev.AssetID, "buyer", buyer, "txid", txid, "round", round)

	return &Receipt{TxID: txid, AssetID: ev.AssetID, Buyer: buyer, ConfirmedRound: round}, nil
}

func (s *Service) submit(ctx context.Context, g *txgroup.Group) (string, uint64, error) {
	if err := g.Seal(); err != nil {
		return "", 0, err
	}

	raw, err := g.Sign(ctx, s.session)
	if err != nil {
		return "", 0, err
	}

	txid, err := s.node.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", 0, err
	}

	info, err := s.node.WaitForConfirmation(ctx, txid, s.cfg.WaitRounds)
	if err != nil {
		return "", 0, err
	}

	return txid, info.ConfirmedRound, nil
}

// mapRejection folds well-known node rejection texts onto the package
// sentinels so callers can react without string matching of their own.
func mapRejection(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "overspend"):
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, err)
	case strings.Contains(msg, "missing from") || strings.Contains(msg, "not opted in"):
		return fmt.Errorf("%w: %s", ErrNotOptedIn, err)
	case strings.Contains(msg, "underflow on subtracting"):
		return fmt.Errorf("%w: %s", ErrSoldOut, err)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
