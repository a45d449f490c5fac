package wallet_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/wallet"
)

type stubSigner struct {
	address string
	blobs   [][]byte
	err     error
}

func (s *stubSigner) Address() string { return s.address }

func (s *stubSigner) SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	return s.blobs, s.err
}

// blockingSigner waits out the context, like a wallet prompt nobody answers.
type blockingSigner struct{}

func (blockingSigner) Address() string { return "BLOCKED" }

func (blockingSigner) SignGroup(ctx context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSessionLifecycle(t *testing.T) {
	s := wallet.NewSession(0)
	assert.Equal(t, wallet.StatusDisconnected, s.Status())

	_, err := s.Address()
	assert.ErrorIs(t, err, wallet.ErrNotConnected)

	signer := &stubSigner{address: "AAA"}
	s.Connect(signer)
	assert.Equal(t, wallet.StatusConnected, s.Status())

	addr, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, "AAA", addr)

	s.Disconnect()
	assert.Equal(t, wallet.StatusDisconnected, s.Status())
}

func TestSessionSignGroupNotConnected(t *testing.T) {
	s := wallet.NewSession(0)

	_, err := s.SignGroup(context.Background(), nil, nil)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestSessionSignGroupTimeout(t *testing.T) {
	s := wallet.NewSession(20 * time.Millisecond)
	s.Connect(blockingSigner{})

	start := time.Now()
	_, err := s.SignGroup(context.Background(), nil, nil)

	assert.ErrorIs(t, err, wallet.ErrSignTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSessionSignGroupForwardsBlobs(t *testing.T) {
	want := [][]byte{nil, []byte("sig")}
	s := wallet.NewSession(0)
	s.Connect(&stubSigner{blobs: want})

	got, err := s.SignGroup(context.Background(), make([]types.Transaction, 2), []int{1})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func testAccountMnemonic(t *testing.T) (crypto.Account, string) {
	t.Helper()
	acct := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	require.NoError(t, err)
	return acct, phrase
}

func TestNewLocalSigner(t *testing.T) {
	acct, phrase := testAccountMnemonic(t)

	signer, err := wallet.NewLocalSigner(phrase)
	require.NoError(t, err)
	assert.Equal(t, acct.Address.String(), signer.Address())
}

func TestNewLocalSignerBadMnemonic(t *testing.T) {
	_, err := wallet.NewLocalSigner("definitely not twenty five words")
	assert.Error(t, err)
}

func TestLocalSignerPositionalContract(t *testing.T) {
	acct, phrase := testAccountMnemonic(t)
	signer, err := wallet.NewLocalSigner(phrase)
	require.NoError(t, err)

	sp := types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     bytes.Repeat([]byte{7}, 32),
	}

	other := crypto.GenerateAccount().Address.String()
	mkPay := func(amount uint64) types.Transaction {
		txn, err := transaction.MakePaymentTxn(acct.Address.String(), other, amount, nil, "", sp)
		require.NoError(t, err)
		return txn
	}

	txns := []types.Transaction{mkPay(1), mkPay(2), mkPay(3)}

	blobs, err := signer.SignGroup(context.Background(), txns, []int{0, 2})
	require.NoError(t, err)
	require.Len(t, blobs, 3, "blob slice must align with the submitted transactions")

	assert.NotEmpty(t, blobs[0])
	assert.Nil(t, blobs[1], "unrequested position must stay nil")
	assert.NotEmpty(t, blobs[2])
}

func TestLocalSignerIndexOutOfRange(t *testing.T) {
	_, phrase := testAccountMnemonic(t)
	signer, err := wallet.NewLocalSigner(phrase)
	require.NoError(t, err)

	_, err = signer.SignGroup(context.Background(), make([]types.Transaction, 1), []int{5})
	assert.Error(t, err)
}
