package txgroup_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/algotix/internal/txgroup"
)

func testParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     bytes.Repeat([]byte{7}, 32),
	}
}

func paymentTxn(t *testing.T, from, to string, amount uint64) types.Transaction {
	t.Helper()
	txn, err := transaction.MakePaymentTxn(from, to, amount, nil, "", testParams())
	require.NoError(t, err)
	return txn
}

// markerSigner records what it was asked to sign and returns recognizable
// blobs at exactly the requested positions.
type markerSigner struct {
	indices []int
	txns    []types.Transaction
}

func (m *markerSigner) SignGroup(_ context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	m.txns = txns
	m.indices = indices

	blobs := make([][]byte, len(txns))
	for _, i := range indices {
		blobs[i] = []byte{'U', byte(i)}
	}
	return blobs, nil
}

// sparseSigner omits one requested signature.
type sparseSigner struct{}

func (sparseSigner) SignGroup(_ context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	blobs := make([][]byte, len(txns))
	if len(indices) > 0 {
		blobs[indices[0]] = []byte{'U'}
	}
	return blobs, nil
}

// shortSigner returns a slice not aligned with the group.
type shortSigner struct{}

func (shortSigner) SignGroup(_ context.Context, txns []types.Transaction, indices []int) ([][]byte, error) {
	return [][]byte{{'U'}}, nil
}

func addresses(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		out[i] = crypto.GenerateAccount().Address.String()
	}
	return out
}

func TestSealAssignsSharedGroupID(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	g.AddUser(paymentTxn(t, addr[1], addr[0], 200))
	require.Equal(t, 2, g.Len())

	require.NoError(t, g.Seal())

	signer := &markerSigner{}
	_, err := g.Sign(context.Background(), signer)
	require.NoError(t, err)

	require.Len(t, signer.txns, 2)
	assert.NotEqual(t, types.Digest{}, signer.txns[0].Group)
	assert.Equal(t, signer.txns[0].Group, signer.txns[1].Group)
}

func TestSealSingleTxnGetsNoGroupID(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	require.NoError(t, g.Seal())

	signer := &markerSigner{}
	_, err := g.Sign(context.Background(), signer)
	require.NoError(t, err)

	require.Len(t, signer.txns, 1)
	assert.Equal(t, types.Digest{}, signer.txns[0].Group)
}

func TestSealTwiceFails(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	require.NoError(t, g.Seal())
	assert.Error(t, g.Seal())
}

func TestSealEmptyGroupFails(t *testing.T) {
	assert.Error(t, txgroup.New().Seal())
}

func TestSignRequiresSeal(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))

	_, err := g.Sign(context.Background(), &markerSigner{})
	assert.Error(t, err)
}

func TestSignAssemblesInGroupOrder(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	g.AddUser(paymentTxn(t, addr[1], addr[0], 200))
	require.NoError(t, g.Seal())

	raw, err := g.Sign(context.Background(), &markerSigner{})
	require.NoError(t, err)

	assert.Equal(t, []byte{'U', 0, 'U', 1}, raw)
}

func TestSignMissingSignatureIsFatal(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	g.AddUser(paymentTxn(t, addr[1], addr[0], 200))
	require.NoError(t, g.Seal())

	_, err := g.Sign(context.Background(), sparseSigner{})

	var countErr *txgroup.SignatureCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Expected)
	assert.Equal(t, 1, countErr.Got)
}

func TestSignMisalignedSliceIsFatal(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	g.AddUser(paymentTxn(t, addr[1], addr[0], 200))
	require.NoError(t, g.Seal())

	_, err := g.Sign(context.Background(), shortSigner{})

	var countErr *txgroup.SignatureCountError
	assert.ErrorAs(t, err, &countErr)
}

func TestUserIndices(t *testing.T) {
	addr := addresses(t, 2)

	g := txgroup.New()
	g.AddUser(paymentTxn(t, addr[0], addr[1], 100))
	g.AddUser(paymentTxn(t, addr[1], addr[0], 200))

	assert.Equal(t, []int{0, 1}, g.UserIndices())
}
