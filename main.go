package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discord-invite-tracker/internal/approval"
	"discord-invite-tracker/internal/bot"
	"discord-invite-tracker/internal/cache"
	"discord-invite-tracker/internal/commands"
	"discord-invite-tracker/internal/config"
	"discord-invite-tracker/internal/database"
	"discord-invite-tracker/internal/metrics"
	"discord-invite-tracker/internal/platform"
	"discord-invite-tracker/internal/redis"
	"discord-invite-tracker/internal/tracker"
	"discord-invite-tracker/internal/utils"
	"discord-invite-tracker/internal/vouch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const promptJanitorInterval = time.Minute

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}

func main() {
	configFlag := flag.String("config", "", "path to a JSON or YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath(*configFlag))
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing Database: %v", err)
	}
	defer db.Close()
	log.Printf("✓ Database ready (%s)", db.Driver())

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.New(ctx, cfg.Redis, logger)
		if err != nil {
			log.Fatalf("Error initializing Redis: %v", err)
		}
		defer rdb.Close()
	} else {
		log.Println("Redis not configured, using in-memory cache and cooldowns")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	c, err := cache.New(rdb, cache.Config{}, logger)
	if err != nil {
		log.Fatalf("Error initializing cache: %v", err)
	}
	defer c.Close()
	cooldowns, err := cache.NewCooldowns("vouch:cooldown", rdb)
	if err != nil {
		log.Fatalf("Error initializing cooldowns: %v", err)
	}
	defer cooldowns.Close()
	leaderboard := cache.NewLeaderboard(c, db, cache.LeaderboardSize)

	session, err := bot.NewSession(cfg.Token, m)
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}
	timeout := cfg.Platform.Timeout.Std()
	discord := platform.NewDiscord(session, timeout, logger)

	engine := tracker.NewEngine(discord, db, logger, m)
	workflow := approval.New(approval.Config{
		GuildID:         cfg.GuildID,
		OwnerID:         cfg.OwnerID,
		InviteChannelID: cfg.InviteChannelID,
		PromptTTL:       cfg.Approval.PromptTTL.Std(),
	}, discord, db, engine, logger, m)
	go workflow.RunJanitor(ctx, promptJanitorInterval)
	ledger := vouch.NewLedger(db, logger, m)

	footer := utils.Footer{Text: cfg.FooterText, IconURL: cfg.FooterIconURL}
	handler := commands.NewHandler(commands.Config{
		GuildID:       cfg.GuildID,
		Footer:        footer,
		VouchCooldown: cfg.Vouch.Cooldown.Std(),
		Timeout:       timeout,
	}, commands.Deps{
		Workflow:    workflow,
		Joins:       db,
		Members:     discord,
		Leaderboard: leaderboard,
		Ledger:      ledger,
		Cooldowns:   cooldowns,
		Metrics:     m,
		Logger:      logger,
	})

	b := bot.New(session, bot.Config{
		GuildID: cfg.GuildID,
		Footer:  footer,
		Timeout: timeout,
	}, bot.Deps{
		Client:      discord,
		Engine:      engine,
		Workflow:    workflow,
		Handler:     handler,
		Leaderboard: leaderboard,
		Metrics:     m,
		Logger:      logger,
	})

	if cfg.Metrics.Addr != "" {
		health := func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx)
			}
			return nil
		}
		go metrics.Serve(ctx, cfg.Metrics.Addr, metrics.NewRouter(reg, health), logger)
	}

	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Error starting bot: %v", err)
	}
}
