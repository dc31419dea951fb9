// Command gridbot runs the autonomous grid-making agent end to end.
//
// Boot sequence:
//  1. config.Load()            – read .env / environment, validate
//  2. identity.LoadIdentityKey – decode the base58 identity key
//  3. wire tracker, adapter, indicator engine, risk gate, grid config
//  4. start the Prometheus /metrics and /healthz server
//  5. run the supervisor's tick loop until SIGINT/SIGTERM
//  6. graceful HTTP shutdown
//
// Every collaborator is constructed here and passed down explicitly; there
// is no package-level singleton.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perpgrid/gridbot/internal/config"
	"github.com/perpgrid/gridbot/internal/exchange"
	"github.com/perpgrid/gridbot/internal/feed"
	"github.com/perpgrid/gridbot/internal/grid"
	"github.com/perpgrid/gridbot/internal/identity"
	"github.com/perpgrid/gridbot/internal/indicator"
	"github.com/perpgrid/gridbot/internal/risk"
	"github.com/perpgrid/gridbot/internal/supervisor"
	"github.com/perpgrid/gridbot/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[BOOT] config: %v", err)
	}

	id, err := identity.LoadIdentityKey(cfg.IdentityKey)
	if err != nil {
		log.Fatalf("[BOOT] identity: %v", err)
	}

	trk := tracker.New(1000)

	exCfg := exchange.DefaultConfig(cfg.APIURL, cfg.MarketID)
	exCfg.SessionTTL = cfg.SessionTTL()
	adapter := exchange.New(exCfg, id, trk, nil)

	ohlcv := feed.NewHTTPFeed(cfg.APIURL)
	engine := indicator.NewEngine(ohlcv, cfg.IndicatorSymbol, cfg.IndicatorTimeframe)

	gate := risk.New(risk.Config{
		RSIMin:            cfg.RSIMin,
		RSIMax:            cfg.RSIMax,
		ADXTrendThreshold: cfg.ADXTrendThreshold,
		ADXStrongTrend:    cfg.ADXStrongTrend,
		CooldownMinutes:   cfg.CooldownMinutes,
	})

	gridCfg := grid.Config{
		TotalOrders:    cfg.TotalOrders,
		WindowFraction: cfg.WindowPercent,
		SafeGap:        cfg.SafeGap,
		Spacing:        cfg.GridSpacing,
		OrderSize:      cfg.OrderSize,
		MaxMultiplier:  cfg.MaxMultiplier,
		PriceTick:      0.01,
	}

	sup := &supervisor.Supervisor{
		Adapter:       adapter,
		Engine:        engine,
		Gate:          gate,
		Tracker:       trk,
		GridConfig:    gridCfg,
		CycleInterval: cfg.CycleInterval(),
		Backoff:       cfg.Backoff(),
		FlattenOnExit: cfg.FlattenOnExit,
	}

	log.Printf("[BOOT] gridbot starting: symbol=%s market_id=%d total_orders=%d window=%.2f%%",
		cfg.Symbol, cfg.MarketID, cfg.TotalOrders, cfg.WindowPercent*100)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("[BOOT] serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[BOOT] http server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := sup.Run(ctx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Fatalf("[BOOT] supervisor exited with unrecoverable error: %v", runErr)
	}
}
