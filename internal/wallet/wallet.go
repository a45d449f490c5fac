// Package wallet models the interactive signing surface as process-wide
// session state with an explicit lifecycle, so callers never depend on a
// package-level singleton and tests can plug in a fake signer.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Status of the signing session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

var (
	// ErrNotConnected is returned when an operation needs a signer but the
	// session has none.
	ErrNotConnected = errors.New("wallet: no signer connected")

	// ErrSignTimeout is returned when the signing surface does not answer
	// within the session's timeout. Interactive signing may require action on
	// another device; the operation is treated as failed, never retried
	// automatically.
	ErrSignTimeout = errors.New("wallet: signing timed out")
)

// Signer is the strict signing contract. SignGroup must return a slice
// positionally aligned with txns: a signed blob at every index listed in
// indices, nil everywhere else. No other shape is accepted.
type Signer interface {
	Address() string
	SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error)
}

// DefaultSignTimeout bounds one interactive signing round trip.
const DefaultSignTimeout = 90 * time.Second

// Session holds the current signer and applies the signing timeout uniformly.
type Session struct {
	mu      sync.RWMutex
	signer  Signer
	timeout time.Duration
}

func NewSession(timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultSignTimeout
	}
	return &Session{timeout: timeout}
}

// Connect installs a signer, replacing any previous one.
func (s *Session) Connect(signer Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = signer
}

// Disconnect drops the current signer.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = nil
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// Address returns the connected account's address.
func (s *Session) Address() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return "", ErrNotConnected
	}
	return s.signer.Address(), nil
}

// SignGroup forwards to the connected signer under the session timeout. A
// deadline hit maps to ErrSignTimeout.
func (s *Session) SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	s.mu.RLock()
	signer := s.signer
	timeout := s.timeout
	s.mu.RUnlock()

	if signer == nil {
		return nil, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	blobs, err := signer.SignGroup(ctx, txns, indices)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrSignTimeout
		}
		return nil, err
	}

	return blobs, nil
}

// LocalSigner signs with an in-process private key, for server-side tooling
// that acts as the organizer. It honors the positional contract.
type LocalSigner struct {
	account crypto.Account
}

// NewLocalSigner derives the key pair from a 25-word mnemonic.
func NewLocalSigner(phrase string) (*LocalSigner, error) {
	const op = "wallet.NewLocalSigner"

	sk, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &LocalSigner{account: account}, nil
}

func (l *LocalSigner) Address() string {
	return l.account.Address.String()
}

func (l *LocalSigner) SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	const op = "wallet.LocalSigner.SignGroup"

	blobs := make([][]byte, len(txns))
	for _, i := range indices {
		if i < 0 || i >= len(txns) {
			return nil, fmt.Errorf("%s: index %d out of range", op, i)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, stx, err := crypto.SignTransaction(l.account.PrivateKey, txns[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		blobs[i] = stx
	}

	return blobs, nil
}
