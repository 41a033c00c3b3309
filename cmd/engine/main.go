// Binary engine runs the signal-to-trade pipeline: scoring, admission,
// per-trade supervision, and the adaptive feedback loop.
package main

import (
	"context"
	"errors"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"quantbot-go/internal/config"
	"quantbot-go/internal/engine"
	"quantbot-go/internal/feedback"
	"quantbot-go/internal/gateway"
	"quantbot-go/internal/metrics"
	"quantbot-go/internal/notify"
	"quantbot-go/internal/predictor"
	"quantbot-go/internal/store"
	"quantbot-go/internal/util"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(envOr("CONFIG_PATH", "internal/config/config.yaml"))
	if err != nil {
		boot := util.NewLogger("info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	registry, err := config.NewRegistry(envOr("STRATEGIES_PATH", "internal/config/strategies.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load strategies")
	}
	enabled, err := config.LoadAdmissionState(envOr("ADMISSION_STATE_PATH", "internal/config/admission_state.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load admission state")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var st store.Store
	var journal *store.Journal
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPostgres(cfg.Store.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		st = pg
	default:
		if cfg.Store.JournalPath != "" {
			journal, err = store.OpenJournal(cfg.Store.JournalPath)
			if err != nil {
				log.Fatal().Err(err).Msg("open journal")
			}
		}
		mem := store.NewMemory(journal)
		if cfg.Store.JournalPath != "" {
			if err := mem.Restore(cfg.Store.JournalPath, log); err != nil {
				log.Fatal().Err(err).Msg("restore journal")
			}
		}
		st = mem
	}

	var gw gateway.Gateway
	switch cfg.Gateway.Provider {
	case "stub":
		gw = gateway.NewStub()
	default:
		var opts []gateway.BinanceOption
		if cfg.Gateway.BaseURL != "" {
			opts = append(opts, gateway.WithBaseURL(cfg.Gateway.BaseURL))
		}
		opts = append(opts, gateway.WithLiveOrders(cfg.Gateway.LiveOrders))
		gw = gateway.NewBinance(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"), log, opts...)
	}

	sinks := notify.Fanout{notify.NewLogSink(log)}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notify.WebhookURL, log))
	}

	model := predictor.NewLogit()
	eng := engine.New(log, cfg, registry, gw, st, model, sinks, enabled)

	if cfg.Gateway.StreamEnabled && cfg.Gateway.Provider != "stub" {
		stream := gateway.NewPriceStream(cfg.Gateway.Pairs, log)
		go func() {
			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("price stream stopped")
			}
		}()
		eng.SetPriceCache(stream)
	}

	loop := feedback.New(log, cfg.Feedback, st, registry, model)
	runner := feedback.NewRunner(log, loop)
	if err := runner.Start(ctx, cfg.Feedback.Schedule); err != nil {
		log.Fatal().Err(err).Msg("schedule feedback loop")
	}

	log.Info().
		Str("env", cfg.App.Env).
		Strs("pairs", cfg.Gateway.Pairs).
		Int("strategies", len(registry.All())).
		Msg("engine started")
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("engine stopped")
	}

	runner.Stop()
	if journal != nil {
		_ = journal.Close()
	}
	log.Info().Msg("shutdown complete")
}
