package ledger

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
)

// IndexerSearch adapts an indexer client to the Search interface.
type IndexerSearch struct {
	client *indexer.Client
}

func NewIndexerSearch(client *indexer.Client) *IndexerSearch {
	return &IndexerSearch{client: client}
}

var _ Search = (*IndexerSearch)(nil)

func (s *IndexerSearch) SearchTransactions(ctx context.Context, q TxnQuery) (TxnPage, error) {
	const op = "ledger.SearchTransactions"

	query := s.client.SearchForTransactions()
	if len(q.NotePrefix) > 0 {
		query = query.NotePrefix(q.NotePrefix)
	}
	if q.TxType != "" {
		query = query.TxType(q.TxType)
	}
	if q.MinRound > 0 {
		query = query.MinRound(q.MinRound)
	}
	if q.AssetID > 0 {
		query = query.AssetID(q.AssetID)
	}
	if q.Address != "" {
		query = query.AddressString(q.Address)
	}
	if q.AddressRole != "" {
		query = query.AddressRole(q.AddressRole)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.NextToken != "" {
		query = query.NextToken(q.NextToken)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return TxnPage{}, fmt.Errorf("%s: %w", op, err)
	}

	page := TxnPage{
		Transactions: make([]TxnRecord, 0, len(resp.Transactions)),
		NextToken:    resp.NextToken,
	}
	for _, t := range resp.Transactions {
		page.Transactions = append(page.Transactions, txnFromModel(t))
	}

	return page, nil
}

func (s *IndexerSearch) AccountCreatedAssets(ctx context.Context, address string) ([]AssetInfo, error) {
	const op = "ledger.AccountCreatedAssets"

	resp, err := s.client.LookupAccountCreatedAssets(address).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	assets := make([]AssetInfo, 0, len(resp.Assets))
	for _, a := range resp.Assets {
		assets = append(assets, assetFromModel(a))
	}

	return assets, nil
}

func (s *IndexerSearch) AccountHoldings(ctx context.Context, address string) ([]Holding, error) {
	const op = "ledger.AccountHoldings"

	resp, err := s.client.LookupAccountAssets(address).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holdings := make([]Holding, 0, len(resp.Assets))
	for _, h := range resp.Assets {
		holdings = append(holdings, Holding{
			AssetID: h.AssetId,
			Amount:  h.Amount,
			Frozen:  h.IsFrozen,
		})
	}

	return holdings, nil
}

func txnFromModel(t models.Transaction) TxnRecord {
	return TxnRecord{
		ID:              t.Id,
		Sender:          t.Sender,
		Note:            t.Note,
		CreatedAssetID:  t.CreatedAssetIndex,
		AssetName:       t.AssetConfigTransaction.Params.Name,
		AssetUnitName:   t.AssetConfigTransaction.Params.UnitName,
		AssetTotal:      t.AssetConfigTransaction.Params.Total,
		PaymentReceiver: t.PaymentTransaction.Receiver,
		PaymentAmount:   t.PaymentTransaction.Amount,
		RoundTime:       t.RoundTime,
	}
}
