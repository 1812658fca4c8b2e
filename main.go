package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/workflow"
)

const defaultMonthlyJobInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		// env vars may come from the environment directly
	}
	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()

	if os.Getenv("AUTO_MIGRATE") == "true" {
		if err := models.MigrateTable(db); err != nil {
			logger.Fatal("migration failed: " + err.Error())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.PubSubPublishing() {
		dispatcher := workflow.NewOutboxDispatcher(db, logger)
		go dispatcher.Run(ctx)
		if err := RunAggregationWorker(); err != nil {
			logger.Fatal("aggregation worker failed to start: " + err.Error())
		}
	}
	if config.OutboxDirectProcessing() {
		processor := NewOutboxDirectProcessor(db, logger)
		go processor.Run(ctx)
	}

	interval := defaultMonthlyJobInterval
	if v := os.Getenv("MONTHLY_JOB_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			interval = parsed
		}
	}
	go workflow.RunMonthlyAggregateLoop(ctx, db, logger, interval)

	logger.Info("ledger backend worker started")
	<-ctx.Done()
	logger.Info("ledger backend worker shutting down")
}
