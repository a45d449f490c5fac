// Package checkin verifies ticket proofs at the venue door and records
// admission on the ledger by freezing the holding. The frozen flag is the
// redemption marker: a frozen ticket has been through the door.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/transaction"

	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/note"
	"github.com/kirinyoku/algotix/internal/txgroup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

// State of one verification.
type State string

const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateValid    State = "valid"
	StateUsed     State = "used"
	StateInvalid  State = "invalid"
)

// Result is the outcome of verifying one proof. Holder and FreezeAuthority
// are set whenever the proof parsed, even for used or invalid tickets, so the
// door operator sees who presented what.
type Result struct {
	State           State  `json:"state"`
	Holder          string `json:"holder,omitempty"`
	AssetID         uint64 `json:"asset_id,omitempty"`
	FreezeAuthority string `json:"freeze_authority,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type Config struct {
	// AdmitWaitRounds bounds the freeze confirmation wait. Admission is a
	// person standing at a door, so this stays short.
	AdmitWaitRounds uint64
}

type Service struct {
	node    ledger.Node
	session *wallet.Session
	cfg     Config
	logger  *slog.Logger
}

func New(node ledger.Node, session *wallet.Session, cfg Config, logger *slog.Logger) *Service {
	if cfg.AdmitWaitRounds == 0 {
		cfg.AdmitWaitRounds = 4
	}

	return &Service{
		node:    node,
		session: session,
		cfg:     cfg,
		logger:  logger,
	}
}

// Verify classifies a scanned proof against live node state. A positive
// unfrozen balance is valid, a frozen one is used, everything else is
// invalid. It never writes to the ledger.
func (s *Service) Verify(ctx context.Context, rawProof []byte) (Result, error) {
	const op = "service.checkin.Verify"

	proof, err := note.DecodeProof(rawProof)
	if err != nil {
		return Result{State: StateInvalid, Reason: "malformed ticket proof"}, nil
	}

	asset, err := s.node.Asset(ctx, proof.AssetID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Result{
				State:   StateInvalid,
				Holder:  proof.Address,
				AssetID: proof.AssetID,
				Reason:  "unknown ticket asset",
			}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	res := Result{
		Holder:          proof.Address,
		AssetID:         proof.AssetID,
		FreezeAuthority: asset.FreezeAddress,
	}

	acc, err := s.node.Account(ctx, proof.Address)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			res.State, res.Reason = StateInvalid, "holder account not found"
			return res, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	holding, ok := acc.Holding(proof.AssetID)
	switch {
	case !ok || holding.Amount == 0:
		res.State, res.Reason = StateInvalid, "ticket not held by this account"
	case holding.Frozen:
		res.State, res.Reason = StateUsed, "ticket already redeemed"
	default:
		res.State = StateValid
	}

	return res, nil
}

// Admit verifies the proof once more and, if valid, freezes the holding so
// the ticket cannot be presented again. The connected account must be the
// asset's freeze authority; this is re-checked against the node right before
// signing, never trusted from an earlier Verify.
//
// Returns:
//   - Result: the post-admission state, StateUsed on success.
//   - error: ErrNotAdmittable when the ticket did not verify as valid,
//     ErrNotFreezeAuthority when the connected account cannot freeze it,
//     otherwise the signing or submission failure.
func (s *Service) Admit(ctx context.Context, rawProof []byte) (Result, error) {
	const op = "service.checkin.Admit"

	res, err := s.Verify(ctx, rawProof)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if res.State != StateValid {
		return res, fmt.Errorf("%s: %w", op, ErrNotAdmittable)
	}

	operator, err := s.session.Address()
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if operator != res.FreezeAuthority {
		return res, fmt.Errorf("%s: %w", op, ErrNotFreezeAuthority)
	}

	sp, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	freeze, err := transaction.MakeAssetFreezeTxn(operator, nil, sp, res.AssetID, res.Holder, true)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	g := txgroup.New()
	g.AddUser(freeze)

	if err := g.Seal(); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := g.Sign(ctx, s.session)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	txid, err := s.node.SendRawTransaction(ctx, raw)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.node.WaitForConfirmation(ctx, txid, s.cfg.AdmitWaitRounds); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("ticket admitted",
		"asset_id", res.AssetID, "holder", res.Holder, "txid", txid)

	res.State, res.Reason = StateUsed, "admitted"
	return res, nil
}

// Machine wraps the service with the door scanner's current state, so a UI
// polling it sees checking while a verification is in flight.
type Machine struct {
	svc *Service

	mu   sync.Mutex
	last Result
}

func NewMachine(svc *Service) *Machine {
	return &Machine{svc: svc, last: Result{State: StateIdle}}
}

func (m *Machine) Current() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = Result{State: StateIdle}
}

func (m *Machine) Verify(ctx context.Context, rawProof []byte) (Result, error) {
	m.set(Result{State: StateChecking})

	res, err := m.svc.Verify(ctx, rawProof)
	if err != nil {
		m.set(Result{State: StateIdle})
		return Result{}, err
	}

	m.set(res)
	return res, nil
}

func (m *Machine) Admit(ctx context.Context, rawProof []byte) (Result, error) {
	m.set(Result{State: StateChecking})

	res, err := m.svc.Admit(ctx, rawProof)
	m.set(res)
	return res, err
}

func (m *Machine) set(r Result) {
	m.mu.Lock()
	m.last = r
	m.mu.Unlock()
}
