package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// AlgodNode adapts an algod client to the Node interface.
type AlgodNode struct {
	client *algod.Client
}

func NewAlgodNode(client *algod.Client) *AlgodNode {
	return &AlgodNode{client: client}
}

var _ Node = (*AlgodNode)(nil)

func (n *AlgodNode) Account(ctx context.Context, address string) (AccountInfo, error) {
	const op = "ledger.Account"

	acc, err := n.client.AccountInformation(address).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return AccountInfo{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	return accountFromModel(acc), nil
}

func (n *AlgodNode) Asset(ctx context.Context, assetID uint64) (AssetInfo, error) {
	const op = "ledger.Asset"

	asset, err := n.client.GetAssetByID(assetID).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return AssetInfo{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return AssetInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	return assetFromModel(asset), nil
}

func (n *AlgodNode) LastRound(ctx context.Context) (uint64, error) {
	const op = "ledger.LastRound"

	status, err := n.client.Status().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return status.LastRound, nil
}

func (n *AlgodNode) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	const op = "ledger.SuggestedParams"

	sp, err := n.client.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, fmt.Errorf("%s: %w", op, err)
	}

	return sp, nil
}

func (n *AlgodNode) Compile(ctx context.Context, source []byte) ([]byte, string, error) {
	const op = "ledger.Compile"

	resp, err := n.client.TealCompile(source).Do(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	program, err := base64.StdEncoding.DecodeString(resp.Result)
	if err != nil {
		return nil, "", fmt.Errorf("%s: decode program: %w", op, err)
	}

	return program, resp.Hash, nil
}

func (n *AlgodNode) SendRawTransaction(ctx context.Context, stx []byte) (string, error) {
	const op = "ledger.SendRawTransaction"

	txid, err := n.client.SendRawTransaction(stx).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return txid, nil
}

func (n *AlgodNode) PendingTransaction(ctx context.Context, txid string) (PendingInfo, error) {
	const op = "ledger.PendingTransaction"

	info, _, err := n.client.PendingTransactionInformation(txid).Do(ctx)
	if err != nil {
		return PendingInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	return pendingFromModel(info), nil
}

func (n *AlgodNode) WaitForConfirmation(ctx context.Context, txid string, waitRounds uint64) (PendingInfo, error) {
	const op = "ledger.WaitForConfirmation"

	info, err := transaction.WaitForConfirmation(n.client, txid, waitRounds, ctx)
	if err != nil {
		return PendingInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	return pendingFromModel(info), nil
}

func accountFromModel(acc models.Account) AccountInfo {
	info := AccountInfo{
		Address:  acc.Address,
		Amount:   acc.Amount,
		Holdings: make([]Holding, 0, len(acc.Assets)),
	}
	for _, h := range acc.Assets {
		info.Holdings = append(info.Holdings, Holding{
			AssetID: h.AssetId,
			Amount:  h.Amount,
			Frozen:  h.IsFrozen,
		})
	}
	return info
}

func assetFromModel(a models.Asset) AssetInfo {
	return AssetInfo{
		ID:            a.Index,
		Creator:       a.Params.Creator,
		Name:          a.Params.Name,
		UnitName:      a.Params.UnitName,
		Total:         a.Params.Total,
		Decimals:      uint32(a.Params.Decimals),
		FreezeAddress: a.Params.Freeze,
		Deleted:       a.Deleted,
	}
}

func pendingFromModel(info models.PendingTransactionInfoResponse) PendingInfo {
	return PendingInfo{
		AssetID:        info.AssetIndex,
		ConfirmedRound: info.ConfirmedRound,
		PoolError:      info.PoolError,
	}
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no accounts found")
}
