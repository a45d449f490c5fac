// Package txgroup assembles ordered sets of ledger operations into atomic
// groups. The group id is assigned before any signing, because signatures
// cover it; after signing, blobs are re-associated with their operations
// strictly by position.
package txgroup

import (
	"context"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/kirinyoku/algotix/internal/escrow"
)

// Signer is the interactive signing surface. The returned slice is
// positionally aligned with the submitted transactions: a blob at each
// requested index, nil elsewhere.
type Signer interface {
	SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error)
}

// SignatureCountError reports a signing surface that returned the wrong
// number of user signatures. This is fatal for the operation; the builder
// never guesses which blob belongs where.
type SignatureCountError struct {
	Expected int
	Got      int
}

func (e *SignatureCountError) Error() string {
	return fmt.Sprintf("txgroup: expected %d user signatures, got %d", e.Expected, e.Got)
}

// Group is an ordered list of operations, each signed either interactively
// by the user or locally by an escrow program.
type Group struct {
	txns    []types.Transaction
	escrows []*escrow.Program // nil entry = user-signed operation
	sealed  bool
}

func New() *Group {
	return &Group{}
}

// AddUser appends an operation the user's wallet must sign.
func (g *Group) AddUser(txn types.Transaction) {
	g.txns = append(g.txns, txn)
	g.escrows = append(g.escrows, nil)
}

// AddEscrow appends an operation signed with the escrow program proof.
func (g *Group) AddEscrow(txn types.Transaction, prog *escrow.Program) {
	g.txns = append(g.txns, txn)
	g.escrows = append(g.escrows, prog)
}

func (g *Group) Len() int { return len(g.txns) }

// UserIndices lists the positions the user must sign, in group order.
func (g *Group) UserIndices() []int {
	var idx []int
	for i, prog := range g.escrows {
		if prog == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Seal binds all members with the shared group id. Must run before signing;
// a single operation needs no group id.
func (g *Group) Seal() error {
	const op = "txgroup.Seal"

	if g.sealed {
		return errors.New(op + ": already sealed")
	}
	if len(g.txns) == 0 {
		return errors.New(op + ": empty group")
	}

	if len(g.txns) > 1 {
		grouped, err := transaction.AssignGroupID(g.txns, "")
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		g.txns = grouped
	}

	g.sealed = true
	return nil
}

// Sign collects the user signatures, signs the escrow operations with their
// program proofs, and assembles the raw submission blob in original group
// order. The user-signature count must match expectations exactly.
func (g *Group) Sign(ctx context.Context, signer Signer) ([]byte, error) {
	const op = "txgroup.Sign"

	if !g.sealed {
		return nil, errors.New(op + ": group not sealed")
	}

	userIdx := g.UserIndices()

	var userBlobs [][]byte
	if len(userIdx) > 0 {
		var err error
		userBlobs, err = signer.SignGroup(ctx, g.txns, userIdx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(userBlobs) != len(g.txns) {
			return nil, fmt.Errorf("%s: %w", op, &SignatureCountError{
				Expected: len(g.txns),
				Got:      len(userBlobs),
			})
		}

		got := 0
		for _, i := range userIdx {
			if len(userBlobs[i]) > 0 {
				got++
			}
		}
		if got != len(userIdx) {
			return nil, fmt.Errorf("%s: %w", op, &SignatureCountError{
				Expected: len(userIdx),
				Got:      got,
			})
		}
	}

	var raw []byte
	for i, txn := range g.txns {
		if prog := g.escrows[i]; prog != nil {
			stx, err := prog.SignTransaction(txn)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			raw = append(raw, stx...)
			continue
		}
		raw = append(raw, userBlobs[i]...)
	}

	return raw, nil
}
