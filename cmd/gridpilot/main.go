package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jameshartig/gridpilot/pkg/clients"
	"github.com/jameshartig/gridpilot/pkg/collector"
	"github.com/jameshartig/gridpilot/pkg/config"
	"github.com/jameshartig/gridpilot/pkg/engine"
	"github.com/jameshartig/gridpilot/pkg/httpapi"
	"github.com/jameshartig/gridpilot/pkg/learner"
	"github.com/jameshartig/gridpilot/pkg/planner"
	"github.com/jameshartig/gridpilot/pkg/storage"
	"github.com/jameshartig/gridpilot/pkg/supervisor"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// Configured() calls only declare flags and register the lflag.Do
	// callback that fills in their result; neither cfgPtr nor store's
	// underlying implementation is valid to use until lflag.Configure()
	// below has actually parsed the flags.
	cfgPtr := config.Configured()
	store := storage.Configured()

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	cfg := *cfgPtr

	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}()

	retailer := clients.NewRetailer(cfg.RetailerAPIURL, cfg.RetailerAPIToken, cfg.RetailerSiteID)
	weather := clients.NewWeather(cfg.WeatherAPIURL, cfg.Latitude, cfg.Longitude, cfg.SolarEffectiveAreaM2, cfg.SolarEfficiency)
	wholesale := clients.NewWholesale(cfg.WholesaleAPIURL, cfg.NEMRegion)
	battery := collector.NewConfigBattery(cfg)

	coll := collector.New(retailer, weather, wholesale, battery, cfg)
	learn := learner.New(cfg.BaseLoadPercentile, cfg.SolarPeakPercentile)
	plan := planner.New(cfg)
	super := supervisor.New(cfg)

	eng := engine.New(coll, retailer, store, plan, super, learn, cfg)
	api := httpapi.Configured(store, eng, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return eng.Run(groupCtx)
	})
	group.Go(func() error {
		return api.Run(groupCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("gridpilot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("gridpilot exited cleanly")
}
