package feed

import (
	"context"
	"errors"
	"time"

	"marketfeed/src/breaker"
	"marketfeed/src/candles"
	"marketfeed/src/interfaces"
	"marketfeed/src/logger"
	"marketfeed/src/metrics"
	"marketfeed/src/models"
	"marketfeed/src/retry"
	"marketfeed/src/snapshot"
	"marketfeed/src/utils"
)

// closedMarketPause is how long the poll loop sleeps when every tracked
// market is closed and MarketHoursOnly is on.
const closedMarketPause = 60 * time.Minute

// -----------------------------------------------------------------------------

// Ingestor drives the poll/validate/aggregate pipeline: each cycle fetches
// quotes through the breaker and retry policy, validates them, updates the
// snapshot store and candle aggregator, and publishes the results.
type Ingestor struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Source    interfaces.IQuoteSource
	Validator *Validator
	Candles   *candles.Aggregator
	Store     *snapshot.Store
	Publisher interfaces.IPublisher
	Metrics   *metrics.Metrics
	Scheduler *utils.MarketScheduler

	breaker   *breaker.Breaker
	retryOpts retry.Options
}

// -----------------------------------------------------------------------------

func NewIngestor(
	cfg *models.MConfig,
	log *logger.Logger,
	source interfaces.IQuoteSource,
	agg *candles.Aggregator,
	store *snapshot.Store,
	pub interfaces.IPublisher,
	m *metrics.Metrics,
) *Ingestor {
	ing := &Ingestor{
		Config:    cfg,
		Logger:    log.Named("ingestor"),
		Source:    source,
		Validator: NewValidator(cfg.Validation),
		Candles:   agg,
		Store:     store,
		Publisher: pub,
		Metrics:   m,
		Scheduler: utils.NewMarketScheduler(source.Symbols(), log.Named("scheduler")),
	}

	brOpts := breaker.DefaultOptions()
	if cfg.Breaker.FailureThreshold > 0 {
		brOpts.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.ResetTimeoutMs > 0 {
		brOpts.ResetTimeout = cfg.Breaker.ResetTimeout()
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		brOpts.SuccessThreshold = cfg.Breaker.SuccessThreshold
	}
	brOpts.OnStateChange = func(from, to breaker.State) {
		ing.Logger.Warn("breaker state changed",
			logger.NewField("from", string(from)),
			logger.NewField("to", string(to)))
		ing.Metrics.BreakerState.Set(breakerStateValue(to))
	}
	ing.breaker = breaker.New(brOpts)

	ing.retryOpts = retry.DefaultOptions()
	if cfg.Retry.MaxAttempts > 0 {
		ing.retryOpts.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelayMs > 0 {
		ing.retryOpts.InitialDelay = cfg.Retry.InitialDelay()
	}
	if cfg.Retry.MaxDelayMs > 0 {
		ing.retryOpts.MaxDelay = cfg.Retry.MaxDelay()
	}
	if cfg.Retry.BackoffMultiplier > 0 {
		ing.retryOpts.BackoffMultiplier = cfg.Retry.BackoffMultiplier
	}
	if cfg.Retry.JitterFactor > 0 {
		ing.retryOpts.JitterFactor = cfg.Retry.JitterFactor
	}
	ing.retryOpts.OnRetry = func(err error, attempt int, delay time.Duration) {
		ing.Logger.Warn("fetch attempt failed, retrying",
			logger.NewField("attempt", attempt),
			logger.NewField("delay", delay.String()),
			logger.NewField("error", err.Error()))
	}

	return ing
}

// -----------------------------------------------------------------------------

func breakerStateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateHalfOpen:
		return 1
	case breaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// -----------------------------------------------------------------------------

// Run polls the source until the context is cancelled. When MarketHoursOnly
// is set and every tracked market is closed, the loop pauses instead of
// burning requests.
func (ing *Ingestor) Run(ctx context.Context) {
	interval := time.Duration(ing.Config.DataSource.UpdateIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ing.Logger.Info("ingestion started",
		logger.NewField("source", ing.Source.Name()),
		logger.NewField("interval", interval.String()),
		logger.NewField("symbols", len(ing.Source.Symbols())))

	for {
		select {
		case <-ctx.Done():
			ing.Logger.Info("ingestion stopped")
			return
		case <-ticker.C:
			if ing.Config.DataSource.MarketHoursOnly {
				ing.Scheduler.UpdateSymbols(ing.Source.Symbols())
				if !ing.Scheduler.AnyMarketOpen() {
					ing.Logger.Info("all markets closed, pausing")
					select {
					case <-time.After(closedMarketPause):
					case <-ctx.Done():
						return
					}
					continue
				}
			}

			if err := ing.RunCycle(ctx); err != nil {
				if errors.Is(err, breaker.ErrCircuitOpen) {
					ing.Logger.Debug("cycle skipped, breaker open")
				} else {
					ing.Logger.Error(err, logger.NewField("op", "ingestion_cycle"))
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// RunCycle performs a single fetch/validate/aggregate pass. It is also the
// backing for the manual refresh endpoint. The last good snapshot stays
// served when a cycle fails.
func (ing *Ingestor) RunCycle(ctx context.Context) error {
	var ticks []models.MTick

	err := ing.breaker.Execute(func() error {
		return retry.Do(ctx, func(ctx context.Context) error {
			fetched, err := ing.Source.Fetch(ctx)
			if err != nil {
				return err
			}
			ticks = fetched
			return nil
		}, ing.retryOpts)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, breaker.ErrCircuitOpen) {
			result = "breaker_open"
		}
		ing.Metrics.FetchCycles.WithLabelValues(result).Inc()
		return err
	}

	ing.Metrics.FetchCycles.WithLabelValues("ok").Inc()
	ing.process(ticks)
	return nil
}

// -----------------------------------------------------------------------------

func (ing *Ingestor) process(ticks []models.MTick) {
	accepted := 0
	for _, tick := range ticks {
		ing.Metrics.TicksReceived.Inc()

		if err := ing.Validator.Validate(tick); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				ing.Metrics.TicksRejected.WithLabelValues(string(verr.Reason)).Inc()
				ing.Logger.Debug("tick rejected",
					logger.NewField("symbol", tick.Symbol),
					logger.NewField("reason", string(verr.Reason)))
			}
			continue
		}

		accepted++
		ing.Metrics.TicksAccepted.Inc()
		ing.Store.Update(tick)
		ing.Publisher.PublishTick(tick)

		// Closed candles fan out through the aggregator's OnClose hook.
		ing.Candles.Ingest(tick)
	}

	if len(ticks) > 0 {
		ing.Logger.Debug("cycle processed",
			logger.NewField("received", len(ticks)),
			logger.NewField("accepted", accepted))
	}
}
