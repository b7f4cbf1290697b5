package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/pariwager/config"
	"github.com/alejandrodnm/pariwager/internal/adapters/market"
	"github.com/alejandrodnm/pariwager/internal/adapters/notify"
	"github.com/alejandrodnm/pariwager/internal/adapters/pubsub"
	"github.com/alejandrodnm/pariwager/internal/adapters/storage"
	"github.com/alejandrodnm/pariwager/internal/application/betting"
	"github.com/alejandrodnm/pariwager/internal/application/livesync"
	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/alejandrodnm/pariwager/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	eventID := flag.String("event", "", "event ID (required); a comma-separated list prints several boards")
	watch := flag.Bool("watch", false, "follow live odds until Ctrl+C")
	bet := flag.String("bet", "", "place a bet: KEY:AMOUNT (e.g. YES:25 or an outcome ID)")
	preview := flag.String("preview", "", "preview a bet without placing it: KEY:AMOUNT")
	gossipText := flag.String("gossip", "", "post a message to the event gossip thread")
	replyTo := flag.Int64("reply-to", 0, "gossip message ID to reply to")
	thread := flag.Bool("thread", false, "print the event gossip thread")
	activity := flag.Bool("activity", false, "print the public bet feed of the event")
	history := flag.Bool("history", false, "print the bets placed from this client and the last pool moves")
	settle := flag.Bool("settle", false, "print payouts of my bets once the event is resolved")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	events := splitEvents(*eventID)
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "missing -event")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Debug("pariwager starting",
		"config", *configPath,
		"api", cfg.API.BaseURL,
		"events", events,
		"interval", cfg.SyncInterval(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := market.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.APITimeout())

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole()
	sinks := notify.Multi{console}
	if cfg.Redis.Addr != "" {
		rdb, err := pubsub.Connect(ctx, cfg.Redis.Addr)
		if err != nil {
			slog.Warn("redis unavailable, signals only on console", "addr", cfg.Redis.Addr, "err", err)
		} else {
			defer rdb.Close()
			sinks = append(sinks, pubsub.NewRedisPublisher(rdb))
		}
	}

	calc := domain.NewCalculator(cfg.Betting.LiquidityFloor)
	live := livesync.New(syncConfig(cfg), client, calc, sinks, livesync.WithStore(store))
	for _, id := range events {
		if err := live.Warm(ctx, id); err != nil {
			slog.Warn("warm start failed", "event", id, "err", err)
		}
	}

	opts := []betting.Option{betting.WithJournal(store)}
	if cfg.Betting.CheckBalance {
		opts = append(opts, betting.WithBalance(client))
	}
	executor := betting.New(client, live, calc, opts...)

	app := &app{
		cfg:      cfg,
		eventID:  events[0],
		events:   events,
		client:   client,
		sync:     live,
		executor: executor,
		journal:  store,
		pools:    store,
		calc:     calc,
		console:  console,
		sinks:    sinks,
	}

	switch {
	case *bet != "":
		err = app.placeBet(ctx, *bet)
	case *preview != "":
		err = app.previewBet(ctx, *preview)
	case *gossipText != "" || *thread:
		err = app.gossip(ctx, *gossipText, *replyTo)
	case *activity:
		err = app.activity(ctx)
	case *history:
		err = app.history(ctx)
	case *settle:
		err = app.settle(ctx)
	case *watch:
		err = app.watch(ctx)
	default:
		err = app.board(ctx)
	}
	if err != nil {
		slog.Error("command failed", "event", events[0], "err", err)
		os.Exit(1)
	}
}

// app agrupa las dependencias compartidas por los modos del CLI.
type app struct {
	cfg      *config.Config
	eventID  string
	events   []string
	client   *market.Client
	sync     *livesync.Sync
	executor *betting.Executor
	journal  ports.BetJournal
	pools    ports.PoolHistory
	calc     *domain.Calculator
	console  *notify.Console
	sinks    notify.Multi
}

func splitEvents(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func syncConfig(cfg *config.Config) livesync.Config {
	return livesync.Config{
		Interval:          cfg.SyncInterval(),
		CoalesceWindow:    cfg.CoalesceWindow(),
		FetchTimeout:      cfg.FetchTimeout(),
		DeltaLifetime:     cfg.DeltaLifetime(),
		SwingThreshold:    cfg.Sync.SwingThreshold,
		ClosingSoonWindow: cfg.ClosingSoonWindow(),
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
