package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wfm-pricer/internal/cache"
	"wfm-pricer/internal/config"
	"wfm-pricer/internal/logger"
	"wfm-pricer/internal/model"
	"wfm-pricer/internal/notify"
	"wfm-pricer/internal/orders"
	"wfm-pricer/internal/pricer"
	"wfm-pricer/internal/store"
	"wfm-pricer/internal/wfm"
)

var version = "dev"

func main() {
	dataDir := flag.String("data-dir", "data", "directory for the database and catalog cache")
	configFile := flag.String("config", "", "optional YAML file overriding stored settings")
	forceRefresh := flag.Bool("force-refresh", false, "invalidate the catalog cache before the first cycle")
	flag.Parse()

	logger.Banner(version)

	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		logger.Error("Main", fmt.Sprintf("resolve data dir: %v", err))
		os.Exit(1)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		logger.Error("Main", fmt.Sprintf("create data dir: %v", err))
		os.Exit(1)
	}

	db, err := store.Open(absDataDir)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("open database: %v", err))
		os.Exit(1)
	}
	defer db.Close()

	settings := db.LoadSettings()
	if *configFile != "" {
		if err := config.LoadYAMLOverride(settings, *configFile); err != nil {
			logger.Error("Config", fmt.Sprintf("load override %s: %v", *configFile, err))
			os.Exit(1)
		}
	}
	if settings.DataDir == "" {
		settings.DataDir = absDataDir
	}
	if err := db.SaveSettings(settings); err != nil {
		logger.Warn("Config", fmt.Sprintf("persist settings: %v", err))
	}

	marketClient := wfm.New(settings)
	catalogCache := cache.New(marketClient, filepath.Join(absDataDir, "cache"))
	mirror := orders.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *forceRefresh {
		catalogCache.Invalidate()
	}

	logger.Section("Catalog load")
	if _, err := catalogCache.Load(ctx); err != nil {
		logger.Error("Cache", fmt.Sprintf("initial catalog load: %v", err))
		os.Exit(1)
	}
	logger.Success("Cache", "catalog ready")

	if settings.MetricsAddr != "" {
		startMetricsServer(settings.MetricsAddr)
	}

	emitter := notifierFor(settings)

	itemPricer := pricer.New(marketClient, catalogCache, db, emitter, settings)

	if *forceRefresh {
		if err := itemPricer.ForceRefresh(ctx); err != nil {
			logger.Warn("Pricer", fmt.Sprintf("force refresh: %v", err))
		}
	}

	if myOrders, err := marketClient.GetMyOrders(ctx); err == nil {
		mirror.Replace(myOrders)
		logger.Stats("buy_orders_loaded", len(mirror.AllOfSide(model.SideBuy)))
		logger.Stats("sell_orders_loaded", len(mirror.AllOfSide(model.SideSell)))
	}

	logger.Info("Main", fmt.Sprintf("starting pricing loop: mode=%s interval=%ds", settings.OrderMode, settings.CycleInterval))
	itemPricer.Run(ctx)

	logger.Info("Main", "stopped")
}

// notifierFor builds the default log-backed event sink. A GUI embedding
// this binary would instead construct a notify.ChannelEmitter and read its
// Events() channel.
func notifierFor(settings *config.Settings) notify.Emitter {
	return notify.NewLogEmitter()
}

// startMetricsServer serves the Prometheus registry in the background.
// A bind failure is logged, not fatal: metrics are observability, not a
// dependency of the pricing loop.
func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("Metrics", fmt.Sprintf("server stopped: %v", err))
		}
	}()
	logger.Server(addr)
}
