package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/algotix/internal/domain"
	"github.com/kirinyoku/algotix/internal/note"
	redisx "github.com/kirinyoku/algotix/internal/redis"
	redisrepo "github.com/kirinyoku/algotix/internal/repository/redis"
	"github.com/kirinyoku/algotix/internal/service"
	"github.com/kirinyoku/algotix/internal/service/checkin"
	"github.com/kirinyoku/algotix/internal/service/event"
	"github.com/kirinyoku/algotix/internal/service/purchase"
	"github.com/kirinyoku/algotix/internal/service/query"
	"github.com/kirinyoku/algotix/internal/service/setup"
	"github.com/kirinyoku/algotix/internal/wallet"
)

func NewRouter(
	svcs *service.Services,
	session *wallet.Session,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.FixedWindowLimiter,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/wallet", handleWallet(session))

	// Public API
	r.GET("/events", handleListEvents(svcs))
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/accounts/:address/tickets", handleListTickets(svcs))
	r.GET("/accounts/:address/tickets/:id/proof", handleTicketProof(svcs))

	r.POST("/events/:id/purchase", rateLimited(limiter, handleBuyTicket(svcs, idem)))
	r.POST("/events/:id/orders", rateLimited(limiter, handlePlaceOrder(svcs)))
	r.POST("/assets/:id/optin", handleOptIn(svcs))

	// Organizer API
	org := r.Group("/organizer")
	{
		org.POST("/events", rateLimited(limiter, handleCreateEvent(svcs, idem)))
		org.POST("/events/:id/activate", handleActivateEvent(svcs))
		org.GET("/events", handleOrganizerEvents(svcs))
		org.GET("/orders", handlePendingOrders(svcs))
		org.POST("/orders/fulfill", handleFulfillOrder(svcs))
	}

	// Door API
	door := r.Group("/tickets")
	{
		door.POST("/verify", handleVerifyTicket(svcs))
		door.POST("/admit", handleAdmitTicket(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Signing session status
// @Success  200  {object}  WalletResponse
// @Router   /wallet [get]
func handleWallet(session *wallet.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := WalletResponse{Status: string(session.Status())}
		if addr, err := session.Address(); err == nil {
			resp.Address = addr
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  List recent events
// @Param    next     query  string  false  "continuation token"
// @Param    address  query  string  false  "merge this creator's events"
// @Success  200  {object}  EventsResponse
// @Router   /events [get]
func handleListEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if creator := c.Query("address"); creator != "" || c.Query("next") == "" {
			merged, next, err := svcs.Query.Refresh(ctx, creator)
			if err != nil {
				respondErr(c, err)
				return
			}
			merged = svcs.Query.Hydrate(ctx, merged)
			c.JSON(http.StatusOK, EventsResponse{Events: merged, Next: next})
			return
		}

		evs, next, err := svcs.Query.GlobalEvents(ctx, c.Query("next"))
		if err != nil {
			respondErr(c, err)
			return
		}
		evs = svcs.Query.Hydrate(ctx, evs)
		c.JSON(http.StatusOK, EventsResponse{Events: evs, Next: next})
	}
}

// @Summary  Get one event with live sale state
// @Param    id  path  int  true  "Asset ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		ev, err := svcs.Query.Event(ctx, assetID)
		if err != nil {
			respondErr(c, err)
			return
		}

		hydrated := svcs.Query.Hydrate(ctx, []domain.Event{ev})
		c.JSON(http.StatusOK, hydrated[0])
	}
}

// @Summary  List an account's tickets
// @Param    address  path  string  true  "Account address"
// @Success  200  {array}  domain.Ticket
// @Router   /accounts/{address}/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := svcs.Query.AccountTickets(c.Request.Context(), c.Param("address"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// @Summary  Issue the QR redemption proof for a held ticket
// @Param    address  path  string  true  "Account address"
// @Param    id       path  int     true  "Asset ID"
// @Success  200  {object}  note.Proof
// @Failure  404  {object}  ErrorResponse
// @Router   /accounts/{address}/tickets/{id}/proof [get]
func handleTicketProof(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}
		address := c.Param("address")

		tickets, err := svcs.Query.AccountTickets(c.Request.Context(), address)
		if err != nil {
			respondErr(c, err)
			return
		}

		for _, tk := range tickets {
			if tk.AssetID != assetID {
				continue
			}
			raw, err := note.EncodeProof(note.Proof{Address: address, AssetID: assetID})
			if err != nil {
				respondErr(c, err)
				return
			}
			c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
			return
		}

		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not held by this account"})
	}
}

// @Summary  Instant buy (idempotent)
// @Param    id  path  int  true  "Asset ID"
// @Success  201  {object}  purchase.Receipt
// @Failure  409  {object}  ErrorResponse  "sold out / not active / duplicate"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /events/{id}/purchase [post]
func handleBuyTicket(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		ev, err := svcs.Query.Event(ctx, assetID)
		if err != nil {
			respondErr(c, err)
			return
		}

		withIdempotency(c, idem, idemBuyKey(c, assetID), func() (any, error) {
			return svcs.Purchase.Buy(ctx, ev)
		})
	}
}

// @Summary  Place a manual order
// @Param    id  path  int  true  "Asset ID"
// @Success  201  {object}  purchase.Receipt
// @Router   /events/{id}/orders [post]
func handlePlaceOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		ev, err := svcs.Query.Event(ctx, assetID)
		if err != nil {
			respondErr(c, err)
			return
		}

		receipt, err := svcs.Purchase.PlaceOrder(ctx, ev)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	}
}

// @Summary  Opt in to a ticket asset
// @Param    id  path  int  true  "Asset ID"
// @Success  201  {object}  purchase.Receipt
// @Router   /assets/{id}/optin [post]
func handleOptIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}

		receipt, err := svcs.Purchase.OptIn(c.Request.Context(), assetID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	}
}

// @Summary  Create event (idempotent)
// @Param    req  body  CreateEventRequest  true  "payload"
// @Success  201  {object}  domain.Event
// @Failure  400  {object}  ErrorResponse
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /organizer/events [post]
func handleCreateEvent(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		draft := event.Draft{
			Name:        req.Name,
			Description: req.Description,
			Date:        req.Date,
			Time:        req.Time,
			Venue:       req.Venue,
			PriceMicro:  req.PriceMicro,
			Supply:      req.Supply,
		}

		ctx := c.Request.Context()
		withIdempotency(c, idem, idemCreateKey(c), func() (any, error) {
			if req.Activate {
				ev, report, err := svcs.Event.CreateAndActivate(ctx, draft)
				if err != nil {
					return nil, err
				}
				return gin.H{"event": ev, "activation": report}, nil
			}
			return svcs.Event.Create(ctx, draft)
		})
	}
}

// @Summary  Activate the vending machine for an event
// @Param    id  path  int  true  "Asset ID"
// @Success  200  {object}  setup.Report
// @Failure  403  {object}  ErrorResponse
// @Router   /organizer/events/{id}/activate [post]
func handleActivateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := parseUint64Param(c, "id")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		ev, err := svcs.Query.Event(ctx, assetID)
		if err != nil {
			respondErr(c, err)
			return
		}

		report, err := svcs.Setup.Activate(ctx, ev)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary  Organizer's events with dashboard stats
// @Param    address  query  string  true  "Creator address"
// @Success  200  {object}  OrganizerEventsResponse
// @Router   /organizer/events [get]
func handleOrganizerEvents(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		creator := c.Query("address")
		if creator == "" {
			badRequest(c, "address is required")
			return
		}

		ctx := c.Request.Context()
		events, err := svcs.Query.AccountEvents(ctx, creator)
		if err != nil {
			respondErr(c, err)
			return
		}

		events = svcs.Query.Hydrate(ctx, events)
		c.JSON(http.StatusOK, OrganizerEventsResponse{
			Events: events,
			Stats:  query.Stats(events),
		})
	}
}

// @Summary  Pending manual orders
// @Param    address  query  string  true  "Organizer address"
// @Success  200  {array}  domain.Order
// @Router   /organizer/orders [get]
func handlePendingOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizer := c.Query("address")
		if organizer == "" {
			badRequest(c, "address is required")
			return
		}

		orders, err := svcs.Query.PendingOrders(c.Request.Context(), organizer)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// @Summary  Fulfill a pending order
// @Param    req  body  FulfillOrderRequest  true  "payload"
// @Success  201  {object}  purchase.Receipt
// @Failure  403  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "not pending / not opted in"
// @Router   /organizer/orders/fulfill [post]
func handleFulfillOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FulfillOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx := c.Request.Context()
		ev, err := svcs.Query.Event(ctx, req.AssetID)
		if err != nil {
			respondErr(c, err)
			return
		}

		receipt, err := svcs.Purchase.Fulfill(ctx, ev, req.Buyer)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	}
}

// @Summary  Verify a scanned ticket proof
// @Param    req  body  VerifyTicketRequest  true  "payload"
// @Success  200  {object}  checkin.Result
// @Router   /tickets/verify [post]
func handleVerifyTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := svcs.Checkin.Verify(c.Request.Context(), []byte(req.Proof))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Admit a ticket (freezes the holding)
// @Param    req  body  VerifyTicketRequest  true  "payload"
// @Success  200  {object}  checkin.Result
// @Failure  403  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "already used / invalid"
// @Router   /tickets/admit [post]
func handleAdmitTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		res, err := svcs.Checkin.Admit(c.Request.Context(), []byte(req.Proof))
		if err != nil {
			if errors.Is(err, checkin.ErrNotAdmittable) {
				c.JSON(http.StatusConflict, res)
				return
			}
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// --- Helpers ---

// withIdempotency replays a stored result for a repeated Idempotency-Key,
// refuses concurrent duplicates, and stores the fresh result otherwise. With
// no key (or no store) the operation just runs.
func withIdempotency(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey string, fn func() (any, error)) {
	ctx := c.Request.Context()
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	if idem == nil || idemKey == "" {
		storageKey = ""
	}

	if storageKey != "" {
		if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
			c.Header("Idempotency-Key", idemKey)
			c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
			return
		}

		locked, err := idem.AcquireLock(ctx, storageKey, 2*time.Minute)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !locked {
			if payload, ok, _ := idem.GetResult(ctx, storageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}
			c.Header("Retry-After", "2")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}
	}

	result, err := fn()
	if err != nil {
		if storageKey != "" {
			_ = idem.Release(ctx, storageKey)
		}
		respondErr(c, err)
		return
	}

	if storageKey != "" {
		b, _ := json.Marshal(result)
		_ = idem.SaveResult(ctx, storageKey, string(b))
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, result)
}

func idemCreateKey(c *gin.Context) string {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		return ""
	}
	return redisx.KeyIdemCreate(c.ClientIP(), key)
}

func idemBuyKey(c *gin.Context, assetID uint64) string {
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		return ""
	}
	return redisx.KeyIdemPurchase(c.ClientIP(), assetID, key)
}

func rateLimited(limiter *redisrepo.FixedWindowLimiter, next gin.HandlerFunc) gin.HandlerFunc {
	if limiter == nil {
		return next
	}

	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			// Limiter outage must not take the API down with it.
			next(c)
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(retryAfter/time.Second)+1, 10))
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
			return
		}
		next(c)
	}
}

func parseUint64Param(c *gin.Context, name string) (uint64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var draftErr *event.InvalidDraftError

	switch {
	// wallet
	case errors.Is(err, wallet.ErrNotConnected):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no signing account connected"})
		return
	case errors.Is(err, wallet.ErrSignTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "signing timed out"})
		return
	// event service
	case errors.As(err, &draftErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: draftErr.Reason})
		return
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	// setup service
	case errors.Is(err, setup.ErrNotCreator):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the event creator"})
		return
	// purchase service
	case errors.Is(err, purchase.ErrNotCreator):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the event creator"})
		return
	case errors.Is(err, purchase.ErrSoldOut):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "sold out"})
		return
	case errors.Is(err, purchase.ErrNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event not active"})
		return
	case errors.Is(err, purchase.ErrAlreadyHolding):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "account already holds this ticket"})
		return
	case errors.Is(err, purchase.ErrInsufficientFunds):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "insufficient funds"})
		return
	case errors.Is(err, purchase.ErrOrderNotPending):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "order is not pending"})
		return
	case errors.Is(err, purchase.ErrNotOptedIn):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "buyer has not opted in"})
		return
	// checkin service
	case errors.Is(err, checkin.ErrNotFreezeAuthority):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not the freeze authority"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
