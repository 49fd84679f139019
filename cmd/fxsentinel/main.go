package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"FxSentinel/internal/analysis"
	"FxSentinel/internal/clock"
	"FxSentinel/internal/collector"
	"FxSentinel/internal/config"
	"FxSentinel/internal/logger"
	"FxSentinel/internal/metrics"
	"FxSentinel/internal/model"
	"FxSentinel/internal/notifier"
	"FxSentinel/internal/quota"
	"FxSentinel/internal/recorder"
	"FxSentinel/internal/scheduler"
	"FxSentinel/internal/store"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	once := flag.Bool("once", false, "run a single acquisition and analysis, then exit")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal(err, "load config")
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)
	if err != nil {
		fatal(err, "init logger")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("config", *cfgPath).Msg("FxSentinel starting")

	instruments, _ := cfg.InstrumentList()
	reference := cfg.Reference()
	clk := clock.Real{}

	// Quota gate, restored from the ledger so restarts keep the daily budget
	gate := quota.NewGate(clk, cfg.Quota.MaxPerMinute, cfg.Quota.MaxPerDay)
	if cfg.Quota.LedgerFile != "" {
		ledger, err := quota.LoadLedger(cfg.Quota.LedgerFile)
		if err != nil {
			log.Warn().Err(err).Msg("load quota ledger, starting empty")
		} else {
			gate.Restore(ledger.Calls)
		}
	}

	var mr *metrics.Recorder
	if cfg.Metrics.Enabled {
		mr = metrics.New()
	}

	var transport collector.Transport
	switch cfg.DataSource.Provider {
	case "mock":
		all := append([]model.Instrument{reference}, instruments...)
		transport = collector.NewMockTransport(clk, collector.DefaultMockRates(all))
	case "yahoo":
		transport = collector.NewYahoo(cfg.DataSource.BaseURL, cfg.DataSource.CryptoMarket, cfg.DataSource.Timeout)
	default:
		transport = collector.NewAlphaVantage(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.DataSource.CryptoMarket, cfg.DataSource.Timeout)
	}
	log.Info().Str("provider", transport.Name()).Msg("data source")

	st := store.New(cfg.Store.MaxPoints)
	col := collector.NewCollector(transport, gate, st, collector.Options{
		Mode:        cfg.Fetch.Mode,
		MaxRetries:  cfg.Fetch.MaxRetries,
		BackoffBase: cfg.Fetch.BackoffBase,
		BackoffMax:  cfg.Fetch.BackoffMax,
		Clock:       clk,
		Logger:      log,
		Metrics:     mr,
	})
	engine := analysis.NewEngine(st, cfg.AnalysisConfig(), log)

	sinks := []scheduler.ReportSink{scheduler.LogSink{Log: logger.Component(log, "report")}}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	var history scheduler.HistorySource
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec, history = sr, sr
		}
	}
	defer rec.Close()
	sinks = append(sinks, rec)

	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		sinks = append(sinks, tn)
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, scheduler.Options{
		Collector:   col,
		Engine:      engine,
		Gate:        gate,
		Clock:       clk,
		Instruments: instruments,
		Reference:   reference,
		LedgerFile:  cfg.Quota.LedgerFile,
		Sinks:       sinks,
		History:     history,
		Metrics:     mr,
		Logger:      log,
	})

	if *once {
		if _, err := sched.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("run failed")
			rec.Close()
			os.Exit(1)
		}
		return
	}

	if mr != nil {
		srv := serveMetrics(cfg.Metrics.Addr, cfg.Metrics.Path, mr, log)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		log.Fatal().Err(err).Msg("register cron task")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing now")
		go func() {
			if _, err := sched.RunOnce(ctx); err != nil && !errors.Is(err, scheduler.ErrRunInProgress) {
				log.Error().Err(err).Msg("startup run failed")
			}
		}()
	}

	log.Info().Str("cron", cfg.Schedule.Cron).Msg("FxSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
}

func serveMetrics(addr, path string, mr *metrics.Recorder, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, mr.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", addr).Str("path", path).Msg("metrics endpoint started")
	return srv
}

func fatal(err error, msg string) {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	l.Fatal().Err(err).Msg(msg)
}
