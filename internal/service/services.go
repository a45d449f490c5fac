package service

import (
	"log/slog"

	"github.com/kirinyoku/algotix/internal/ledger"
	"github.com/kirinyoku/algotix/internal/service/checkin"
	"github.com/kirinyoku/algotix/internal/service/event"
	"github.com/kirinyoku/algotix/internal/service/purchase"
	"github.com/kirinyoku/algotix/internal/service/query"
	"github.com/kirinyoku/algotix/internal/service/setup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

type Services struct {
	Event    *event.Service
	Setup    *setup.Service
	Query    *query.Service
	Purchase *purchase.Service
	Checkin  *checkin.Service
}

type Config struct {
	Event    event.Config
	Setup    setup.Config
	Query    query.Config
	Purchase purchase.Config
	Checkin  checkin.Config
}

func NewServices(
	node ledger.Node,
	search ledger.Search,
	session *wallet.Session,
	cfg Config,
	logger *slog.Logger,
) *Services {
	setupSvc := setup.New(node, session, cfg.Setup, logger)

	return &Services{
		Event:    event.New(node, session, setupSvc, cfg.Event, logger),
		Setup:    setupSvc,
		Query:    query.New(node, search, cfg.Query, logger),
		Purchase: purchase.New(node, session, cfg.Purchase, logger),
		Checkin:  checkin.New(node, session, cfg.Checkin, logger),
	}
}
