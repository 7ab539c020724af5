package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/queue"
	"github.com/grapat/backend/internal/storage"
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/leaselock"
	"github.com/grapat/backend/pkg/logger"
	"github.com/grapat/backend/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		JSON:   util.GetEnv("LOG_FORMAT") == "json",
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// Init s3 client
	bucket, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Info("Exports are written to disk only", "reason", err)
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	exporter := export.NewExporter(export.NewExporterParams{
		Source:   db.NewExportSource(pgConn),
		Sink:     storage.NewExportSink(bucket),
		Parallel: util.GetEnvInt("EXPORT_PARALLEL", 1),
		Locker:   leaselock.New(pgConn),
	})

	// Init rabbitmq
	conn, err := queue.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ExportQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// One export at a time per worker.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.ExportQueue,
		"export_queue_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ExportQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ExportQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ExportQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.ExportQueue)

			if _, err := queue.ProcessExportMessage(ctx, exporter, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.ExportQueue, "err", err)
				queue.HandleProcessingError(ctx, ch, msg, queue.ExportQueue, err)
				continue
			}
			if err := msg.Ack(false); err != nil {
				logger.Error("Failed to ack message", "err", err)
			}

			d := time.Since(startTime)
			logger.Info(
				"Processing time",
				"duration", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60),
			)
		}
	}
}
