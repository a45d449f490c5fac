// Package escrow builds the per-event "vending machine": a stateless TEAL
// program whose logic, and therefore whose account address, is a pure
// function of (ticket asset id, unit price, seller address). Anyone holding
// those three public parameters derives the same address; no stored mapping
// is authoritative.
package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// TealVersion is the program's pragma version. It is part of the address
// derivation: changing it changes every future escrow address, so it stays
// fixed.
const TealVersion = 6

// The vending machine accepts exactly two shapes of traffic:
//
//   - a lone self-transfer of the target asset (its own opt-in);
//   - the sale group of 3, with itself at index 2: operation 1 must pay the
//     seller at least the unit price, and its own operation must move exactly
//     1 unit of the target asset out.
//
// Everything else is rejected.
const sourceTemplate = `#pragma version %d

txn TypeEnum
int axfer
==
txn AssetReceiver
txn Sender
==
&&
bnz handle_optin

global GroupSize
int 3
==
txn GroupIndex
int 2
==
&&
bnz handle_sale

err

handle_optin:
txn XferAsset
int %d
==
return

handle_sale:
gtxn 1 TypeEnum
int pay
==
gtxn 1 Receiver
addr %s
==
&&
gtxn 1 Amount
int %d
>=
&&
txn TypeEnum
int axfer
==
&&
txn XferAsset
int %d
==
&&
txn AssetAmount
int 1
==
&&
return
`

// Params fully determine one vending machine.
type Params struct {
	AssetID   uint64
	UnitPrice uint64 // microAlgos
	Seller    string
}

func (p Params) validate() error {
	if p.AssetID == 0 {
		return errors.New("escrow: asset id must be positive")
	}
	if _, err := types.DecodeAddress(p.Seller); err != nil {
		return fmt.Errorf("escrow: invalid seller address: %w", err)
	}
	return nil
}

// Source renders the deterministic TEAL source for the given parameters.
func Source(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf(sourceTemplate,
		TealVersion, p.AssetID, p.Seller, p.UnitPrice, p.AssetID), nil
}

// Compiler compiles TEAL source into program bytes and the derived address.
// The node's own compiler service satisfies this.
type Compiler interface {
	Compile(ctx context.Context, source []byte) (program []byte, address string, err error)
}

// Program is a compiled vending machine bound to its parameters.
type Program struct {
	Params  Params
	Bytes   []byte
	Address string
}

// Build renders and compiles the program for p. Calling Build twice with the
// same parameters yields the same address.
func Build(ctx context.Context, c Compiler, p Params) (*Program, error) {
	src, err := Source(p)
	if err != nil {
		return nil, err
	}

	prog, addr, err := c.Compile(ctx, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("escrow: compile: %w", err)
	}

	return &Program{Params: p, Bytes: prog, Address: addr}, nil
}

// SignTransaction signs an operation issued from the escrow account with the
// program itself. No user interaction is involved; the program bytes are the
// proof of authority.
func (p *Program) SignTransaction(txn types.Transaction) ([]byte, error) {
	lsig, err := crypto.MakeLogicSigAccountEscrowChecked(p.Bytes, nil)
	if err != nil {
		return nil, fmt.Errorf("escrow: logicsig: %w", err)
	}

	_, stx, err := crypto.SignLogicSigAccountTransaction(lsig, txn)
	if err != nil {
		return nil, fmt.Errorf("escrow: sign: %w", err)
	}

	return stx, nil
}
