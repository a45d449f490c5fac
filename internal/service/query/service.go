// Package query is the reconciliation engine: it rebuilds the logical view
// of events, sale counts, tickets and pending orders purely from the ledger.
// There is no cached source of truth — every call re-derives its answer from
// the indexer and the node.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/escrow"
	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/note"
)

type Config struct {
	// SearchWindow bounds global discovery to the most recent rounds. Public
	// indexers time out on unbounded note-prefix scans.
	SearchWindow uint64
	// PageLimit is the indexer page size for discovery queries.
	PageLimit uint64
	// HydrateWorkers bounds the hydration fan-out.
	HydrateWorkers int
	// OrderScanLimit bounds the pending-order payment scan.
	OrderScanLimit uint64
}

type Service struct {
	node   ledger.Node
	search ledger.Search
	cfg    Config
	logger *slog.Logger
}

func New(node ledger.Node, search ledger.Search, cfg Config, logger *slog.Logger) *Service {
	if cfg.SearchWindow == 0 {
		cfg.SearchWindow = 100_000
	}
	if cfg.PageLimit == 0 {
		cfg.PageLimit = 1000
	}
	if cfg.HydrateWorkers <= 0 {
		cfg.HydrateWorkers = 8
	}
	if cfg.OrderScanLimit == 0 {
		cfg.OrderScanLimit = 100
	}

	return &Service{
		node:   node,
		search: search,
		cfg:    cfg,
		logger: logger,
	}
}

// GlobalEvents discovers recently created events by scanning the ledger for
// asset-creation transactions carrying the event-note prefix, bounded to the
// recent round window. The returned token fetches the next page; it is opaque
// and empty when the scan is exhausted.
func (s *Service) GlobalEvents(ctx context.Context, nextToken string) ([]domain.Event, string, error) {
	const op = "service.query.GlobalEvents"

	last, err := s.node.LastRound(ctx)
	if err != nil {
		return nil, "", wrap(op, err)
	}

	var minRound uint64
	if last > s.cfg.SearchWindow {
		minRound = last - s.cfg.SearchWindow
	}

	page, err := s.search.SearchTransactions(ctx, ledger.TxnQuery{
		NotePrefix: []byte(note.EventPrefix),
		TxType:     "acfg",
		MinRound:   minRound,
		Limit:      s.cfg.PageLimit,
		NextToken:  nextToken,
	})
	if err != nil {
		return nil, "", wrap(op, err)
	}

	var events []domain.Event
	for _, t := range page.Transactions {
		if ev, ok := s.eventFromTxn(t); ok {
			events = append(events, ev)
		}
	}

	return events, page.NextToken, nil
}

// AccountEvents lists the events created by one account. This path is not
// window-bounded, so an organizer always sees their own events even when
// global discovery no longer reaches them.
func (s *Service) AccountEvents(ctx context.Context, creator string) ([]domain.Event, error) {
	const op = "service.query.AccountEvents"

	assets, err := s.search.AccountCreatedAssets(ctx, creator)
	if err != nil {
		return nil, wrap(op, err)
	}

	var events []domain.Event
	for _, a := range assets {
		if a.Deleted {
			continue
		}

		// The creation transaction is the only place the note lives.
		page, err := s.search.SearchTransactions(ctx, ledger.TxnQuery{
			AssetID: a.ID,
			TxType:  "acfg",
			Limit:   10,
		})
		if err != nil {
			return nil, wrap(op, err)
		}

		for _, t := range page.Transactions {
			if t.CreatedAssetID != a.ID {
				continue
			}
			if ev, ok := s.eventFromTxn(t); ok {
				events = append(events, ev)
			}
			break
		}
	}

	return events, nil
}

// Refresh runs global and account discovery concurrently and merges the
// results: deduplicated by asset id (account results win) and sorted
// newest-first. creator may be empty for an anonymous view.
func (s *Service) Refresh(ctx context.Context, creator string) ([]domain.Event, string, error) {
	const op = "service.query.Refresh"

	var (
		mine      []domain.Event
		global    []domain.Event
		nextToken string
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		evts, next, err := s.GlobalEvents(gCtx, "")
		if err != nil {
			return err
		}
		global, nextToken = evts, next
		return nil
	})

	if creator != "" {
		g.Go(func() error {
			evts, err := s.AccountEvents(gCtx, creator)
			if err != nil {
				return err
			}
			mine = evts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, "", wrap(op, err)
	}

	return Merge(mine, global), nextToken, nil
}

// Merge deduplicates event lists by asset id, earlier lists taking
// precedence, and sorts newest-first by id.
func Merge(lists ...[]domain.Event) []domain.Event {
	seen := make(map[uint64]struct{})
	var merged []domain.Event

	for _, list := range lists {
		for _, ev := range list {
			if _, ok := seen[ev.AssetID]; ok {
				continue
			}
			seen[ev.AssetID] = struct{}{}
			merged = append(merged, ev)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].AssetID > merged[j].AssetID
	})

	return merged
}

// Hydrate fills in live sale state for every not-yet-hydrated event: it
// derives the escrow address, reads its current holding and computes
// sold = total - available. An escrow that cannot be found or queried counts
// as fully sold — the failure mode is "no stock", never "unlimited stock".
//
// Hydration fans out over a bounded worker pool; results merge into the
// output last-writer-wins keyed by asset id.
func (s *Service) Hydrate(ctx context.Context, events []domain.Event) []domain.Event {
	byID := make(map[uint64]domain.Event, len(events))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.HydrateWorkers)

	for _, ev := range events {
		byID[ev.AssetID] = ev
		if ev.Hydrated {
			continue
		}

		g.Go(func() error {
			hydrated := s.hydrateOne(gCtx, ev)

			mu.Lock()
			byID[hydrated.AssetID] = hydrated
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; failures degrade per event

	out := make([]domain.Event, 0, len(byID))
	for _, ev := range byID {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssetID > out[j].AssetID
	})

	return out
}

func (s *Service) hydrateOne(ctx context.Context, ev domain.Event) domain.Event {
	ev.Hydrated = true

	prog, err := escrow.Build(ctx, s.node, escrow.Params{
		AssetID:   ev.AssetID,
		UnitPrice: ev.PriceMicro,
		Seller:    ev.Creator,
	})
	if err != nil {
		s.logger.Warn("hydration failed, treating as sold out",
			"asset_id", ev.AssetID, "error", err)
		ev.Available, ev.Sold, ev.Active = 0, ev.Total, false
		return ev
	}

	acc, err := s.node.Account(ctx, prog.Address)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			s.logger.Warn("hydration failed, treating as sold out",
				"asset_id", ev.AssetID, "escrow", prog.Address, "error", err)
		}
		ev.Available, ev.Sold, ev.Active = 0, ev.Total, false
		return ev
	}

	holding, optedIn := acc.Holding(ev.AssetID)
	ev.Active = optedIn
	ev.Available = holding.Amount
	if ev.Available > ev.Total {
		ev.Available = ev.Total
	}
	ev.Sold = ev.Total - ev.Available

	return ev
}

// Stats aggregates hydrated organizer events.
func Stats(events []domain.Event) domain.Stats {
	st := domain.Stats{TotalEvents: len(events)}
	for _, ev := range events {
		st.TotalTicketsSold += ev.Sold
		st.TotalRevenueMicro += ev.Revenue()
	}
	return st
}

// PendingOrders scans payments to the organizer carrying the purchase-intent
// note and keeps those whose payer does not yet hold the corresponding
// ticket. Holdings are checked against the node, not the indexer, so a just-
// fulfilled order drops out immediately.
func (s *Service) PendingOrders(ctx context.Context, organizer string) ([]domain.Order, error) {
	const op = "service.query.PendingOrders"

	events, err := s.AccountEvents(ctx, organizer)
	if err != nil {
		return nil, wrap(op, err)
	}

	byID := make(map[uint64]domain.Event, len(events))
	for _, ev := range events {
		byID[ev.AssetID] = ev
	}

	page, err := s.search.SearchTransactions(ctx, ledger.TxnQuery{
		NotePrefix:  []byte(note.PurchasePrefix),
		TxType:      "pay",
		Address:     organizer,
		AddressRole: "receiver",
		Limit:       s.cfg.OrderScanLimit,
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	var orders []domain.Order
	for _, t := range page.Transactions {
		assetID, err := note.DecodePurchase(t.Note)
		if err != nil {
			var mal *note.MalformedError
			if errors.As(err, &mal) {
				s.logger.Warn("skipping malformed purchase note", "txid", t.ID, "error", err)
			}
			continue
		}

		ev, ok := byID[assetID]
		if !ok {
			continue
		}

		if s.holdsAsset(ctx, t.Sender, assetID) {
			continue // fulfilled, drop from the pending set
		}

		orders = append(orders, domain.Order{
			PaymentID:   t.ID,
			Buyer:       t.Sender,
			AssetID:     assetID,
			EventName:   ev.Name,
			AmountMicro: t.PaymentAmount,
			RoundTime:   t.RoundTime,
		})
	}

	return orders, nil
}

func (s *Service) holdsAsset(ctx context.Context, address string, assetID uint64) bool {
	acc, err := s.node.Account(ctx, address)
	if err != nil {
		// Unknown or unreadable account cannot be shown to hold the ticket.
		return false
	}
	h, ok := acc.Holding(assetID)
	return ok && h.Amount > 0
}

// AccountTickets lists the tickets an attendee holds: positive balances in
// assets created by someone else, with the frozen flag marking redemption.
func (s *Service) AccountTickets(ctx context.Context, address string) ([]domain.Ticket, error) {
	const op = "service.query.AccountTickets"

	holdings, err := s.search.AccountHoldings(ctx, address)
	if err != nil {
		return nil, wrap(op, err)
	}

	var tickets []domain.Ticket
	for _, h := range holdings {
		if h.Amount == 0 {
			continue
		}

		asset, err := s.node.Asset(ctx, h.AssetID)
		if err != nil {
			s.logger.Warn("skipping unresolvable holding", "asset_id", h.AssetID, "error", err)
			continue
		}
		if asset.Creator == address {
			continue // organizer's own stock, not a ticket they bought
		}

		tickets = append(tickets, domain.Ticket{
			AssetID:  h.AssetID,
			Name:     asset.Name,
			UnitName: asset.UnitName,
			Amount:   h.Amount,
			Frozen:   h.Frozen,
		})
	}

	return tickets, nil
}

// Event looks up a single event by asset id via the creation transaction.
func (s *Service) Event(ctx context.Context, assetID uint64) (domain.Event, error) {
	const op = "service.query.Event"

	page, err := s.search.SearchTransactions(ctx, ledger.TxnQuery{
		AssetID: assetID,
		TxType:  "acfg",
		Limit:   10,
	})
	if err != nil {
		return domain.Event{}, wrap(op, err)
	}

	for _, t := range page.Transactions {
		if t.CreatedAssetID != assetID {
			continue
		}
		if ev, ok := s.eventFromTxn(t); ok {
			return ev, nil
		}
	}

	return domain.Event{}, wrap(op, ErrEventNotFound)
}

// eventFromTxn recovers an event from an asset-creation transaction. Foreign
// notes are skipped silently; malformed notes are skipped loudly.
func (s *Service) eventFromTxn(t ledger.TxnRecord) (domain.Event, bool) {
	if t.CreatedAssetID == 0 || len(t.Note) == 0 {
		return domain.Event{}, false
	}

	n, err := note.DecodeEvent(t.Note)
	if err != nil {
		var mal *note.MalformedError
		if errors.As(err, &mal) {
			s.logger.Warn("skipping malformed event note", "txid", t.ID, "error", err)
		}
		return domain.Event{}, false
	}

	return domain.Event{
		AssetID:     t.CreatedAssetID,
		Name:        t.AssetName,
		UnitName:    t.AssetUnitName,
		Total:       t.AssetTotal,
		Creator:     t.Sender,
		Description: n.Description,
		PriceMicro:  n.Price,
		Date:        n.Date,
		Time:        n.Time,
		Venue:       n.Venue,
	}, true
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
