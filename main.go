package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rezamoosavidweb/bot-trade/internal/api"
	"github.com/rezamoosavidweb/bot-trade/internal/capital"
	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/internal/classify"
	"github.com/rezamoosavidweb/bot-trade/internal/dispatch"
	"github.com/rezamoosavidweb/bot-trade/internal/execution"
	"github.com/rezamoosavidweb/bot-trade/internal/notify"
	"github.com/rezamoosavidweb/bot-trade/internal/sizing"
	"github.com/rezamoosavidweb/bot-trade/internal/telegram"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
	"github.com/rezamoosavidweb/bot-trade/pkg/config"
	"github.com/rezamoosavidweb/bot-trade/pkg/db"
	"github.com/rezamoosavidweb/bot-trade/pkg/instrument"
)

const version = "1.0.0"

func main() {
	log.Printf("bot-trade %s starting", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	params, err := config.LoadTradingParams(cfg.TradingParamsPath)
	if err != nil {
		log.Fatalf("trading params: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	journal := database.Journal()

	// Exchange client and instrument cache
	client := bybit.NewClient(bybit.Config{
		APIKey:     cfg.BybitAPIKey,
		APISecret:  cfg.BybitAPISecret,
		Demo:       cfg.BybitDemo,
		RecvWindow: int64(cfg.BybitRecvWindow),
	})
	instruments := instrument.NewCache(client, 6*time.Hour)
	go instruments.RunRefresh(ctx, time.Hour) // warms on start, misses fall back to sync fetch

	// Queue first so the Telegram bot can feed it.
	queue := dispatch.NewQueue(256)

	// Notifications: operator channel plus the process log.
	var notifier notify.Notifier = &notify.LogNotifier{}
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramSourceChatID, cfg.TelegramTargetChatID, queue)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		notifier = notify.Multi{bot, &notify.LogNotifier{}}
	} else {
		log.Println("TELEGRAM_BOT_TOKEN empty: ingress disabled, notifications log-only")
	}

	// Pipeline wiring
	books := capital.NewTracker()
	store := cascade.NewStore()
	engine := cascade.NewEngine(store, client, notifier, books, closeJournal{journal}, cascade.Params{
		DwellTime:        params.Dwell(),
		FeeBuffer:        params.FeeBuffer(),
		TriggerTolerance: params.TriggerTolerance(),
	})
	calculator := sizing.NewCalculator(instruments, sizing.Params{
		MaxLossBudget: params.MaxLossUSDT,
		MarginBudget:  params.FixedMarginUSDT,
		MaxLeverage:   params.MaxLeverage,
	})
	manager := execution.NewManager(client, instruments, engine, books, orderJournal{journal}, notifier)
	worker := dispatch.NewWorker(store, engine, calculator, manager, notifier)

	reconcile(ctx, client, engine, books, cfg.SettleCoin)

	// Single consumer for every mutating operation.
	go queue.Drain(ctx, worker)

	// Private order stream feeds the same queue.
	stream := bybit.NewOrderStream(bybit.Config{
		APIKey:     cfg.BybitAPIKey,
		APISecret:  cfg.BybitAPISecret,
		Demo:       cfg.BybitDemo,
		RecvWindow: int64(cfg.BybitRecvWindow),
	}, func(updates []bybit.OrderUpdate) {
		for _, u := range updates {
			queue.EnqueueEvent(classify.Classify(u))
		}
	})
	go stream.Start(ctx)

	if bot != nil {
		go bot.Run(ctx)
	}

	// Ops API
	server := api.NewServer(store, journal, books, client, api.SystemMeta{
		Demo:       cfg.BybitDemo,
		SettleCoin: cfg.SettleCoin,
		Version:    version,
	}, cfg.JWTSecret)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

// reconcile seeds the store from live exchange positions so a restart does
// not orphan in-flight trades. Escalation state is unknowable from a position
// snapshot and conservatively resets to none.
func reconcile(ctx context.Context, client *bybit.Client, engine *cascade.Engine, books *capital.Tracker, settleCoin string) {
	positions, err := client.GetPositionsBySettleCoin(ctx, settleCoin)
	if err != nil {
		log.Printf("startup reconciliation failed, store starts empty: %v", err)
		return
	}
	tracked := 0
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		log.Printf("reconciled live position %s %s size %v, escalation reset to none", p.Symbol, p.Side, p.Size)
		engine.Register(&cascade.Position{
			Symbol:   p.Symbol,
			Side:     sideOf(p.Side),
			Entry:    p.EntryPrice,
			Qty:      p.Size,
			OpenedAt: time.Now(), // true open time is lost across restarts
		})
		books.OnPositionOpened(p.Symbol, 0)
		tracked++
	}
	if tracked > 0 {
		log.Printf("startup reconciliation tracked %d position(s)", tracked)
	}
}
