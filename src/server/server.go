package server

import (
	"context"
	"fmt"
	"time"

	"marketfeed/src/book"
	"marketfeed/src/interfaces"
	"marketfeed/src/logger"
	"marketfeed/src/metrics"
	"marketfeed/src/models"
	"marketfeed/src/snapshot"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FeedServer
// -----------------------------------------------------------------------------

// FeedServer is the serving process: the gin HTTP surface, the websocket hub
// and the subscription bookkeeping around it. It owns no market state itself;
// the snapshot store and matching engine are injected at startup.
type FeedServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	engine  *gin.Engine
	book    *book.Engine
	store   *snapshot.Store
	db      interfaces.IDatabase
	metrics *metrics.Metrics

	registry *Registry
	limiter  *RateLimiter

	// Refresh triggers one ingestion cycle; wired by the entrypoint.
	Refresh func(ctx context.Context) error

	// WebSocket hub
	clients    map[*Client]struct{}
	events     chan envelope
	register   chan *Client
	unregister chan *Client

	// done closes when the hub loop exits; pump goroutines select on it so
	// they never block on a hub that stopped consuming.
	done chan struct{}
}

// envelope routes one frame to the clients interested in a symbol.
type envelope struct {
	symbol string
	msg    *models.MServerMessage
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFeedServer(
	cfg *models.MConfig,
	log *logger.Logger,
	bookEngine *book.Engine,
	store *snapshot.Store,
	db interfaces.IDatabase,
	m *metrics.Metrics,
	hooks UpstreamHooks,
) *FeedServer {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FeedServer{
		Config:   cfg,
		Logger:   log,
		engine:   gin.New(),
		book:     bookEngine,
		store:    store,
		db:       db,
		metrics:  m,
		registry: NewRegistry(cfg.RateLimit.MaxSymbolsPerClient, hooks),
		limiter:  NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()),
		clients:  make(map[*Client]struct{}),
		// Buffered queue so publishers rarely feel the hub; ordering per
		// symbol is preserved by the single hub loop.
		events:     make(chan envelope, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FeedServer) setupRoutes() {
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/refresh", s.getRefresh)
	s.engine.GET("/prices", s.getPrices)
	s.engine.GET("/symbols", s.getSymbols)
	s.engine.GET("/candles/:symbol", s.getCandles)
	s.engine.GET("/history/:symbol", s.getHistory)
	s.engine.GET("/orderbook/:symbol", s.getOrderbook)
	s.engine.POST("/orders", s.postOrder)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub loop and serves HTTP until the listener fails. ctx
// cancellation stops the hub.
func (s *FeedServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("starting server", logger.NewField("addr", addr))

	go s.run(ctx)

	return s.engine.Run(addr)
}

// run is the hub loop; every client set mutation and every fanout decision
// happens here, on one goroutine.
func (s *FeedServer) run(ctx context.Context) {
	snapshotTicker := time.NewTicker(time.Duration(s.Config.Snapshot.BroadcastIntervalS) * time.Second)
	defer snapshotTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			for client := range s.clients {
				s.dropClient(client)
			}
			close(s.done)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.metrics.WSClients.Set(float64(len(s.clients)))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.dropClient(client)
			}

		case ev := <-s.events:
			if ev.msg == nil {
				continue
			}
			for client := range s.clients {
				if !s.registry.IsSubscribed(client.id, ev.symbol) {
					continue
				}
				if !client.enqueue(ev.msg) {
					s.metrics.DroppedMessages.Inc()
				}
			}

		case <-snapshotTicker.C:
			if s.store.Empty() {
				continue
			}
			s.publish(GlobalFeed, models.NewSnapshotMessage(s.store.Snapshot()))
		}
	}
}

// dropClient assumes it runs on the hub loop.
func (s *FeedServer) dropClient(client *Client) {
	delete(s.clients, client)
	client.closeSend()
	s.registry.Disconnect(client.id)
	s.limiter.Forget(client.id)
	s.metrics.WSClients.Set(float64(len(s.clients)))
}
