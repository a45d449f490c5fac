// Package algorand constructs the algod and indexer clients.
package algorand

import (
	"context"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
)

type Config struct {
	AlgodURL     string
	AlgodToken   string
	IndexerURL   string
	IndexerToken string
}

// NewAlgod builds an algod client and verifies connectivity with a short
// status probe.
func NewAlgod(ctx context.Context, cfg Config) (*algod.Client, error) {
	const op = "algorand.NewAlgod"

	client, err := algod.MakeClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Status().Do(ctxPing); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}

// NewIndexer builds an indexer client. No probe: public indexers routinely
// rate-limit health traffic, and every read path tolerates indexer errors.
func NewIndexer(cfg Config) (*indexer.Client, error) {
	const op = "algorand.NewIndexer"

	client, err := indexer.MakeClient(cfg.IndexerURL, cfg.IndexerToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}
