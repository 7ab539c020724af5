package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/queue"
	mid "github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/internal/storage"
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/leaselock"
	"github.com/grapat/backend/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New builds the echo instance serving app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("256M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL, util.GetEnvString("MIGRATIONS_PATH", "migrations")); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	app := &mid.App{
		DBConn:   conn,
		Locks:    leaselock.New(conn),
		Username: util.GetEnvString("GRAPAT_USER", "default"),
	}

	que, err := queue.Init(ctx)
	switch {
	case errors.Is(err, queue.ErrNotConfigured):
		logger.Info("No message queue configured, exports run inline")
	case err != nil:
		logger.Fatal("Failed to connect to message queue", "err", err)
	default:
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.ExportQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = ch
	}

	bucket, err := storage.NewS3Client(ctx)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info("No object storage configured, uploads are not archived")
	case err != nil:
		logger.Fatal("Failed to create S3 client", "err", err)
	default:
		app.Bucket = bucket
	}

	exporter := export.NewExporter(export.NewExporterParams{
		Source:   db.NewExportSource(conn),
		Sink:     storage.NewExportSink(app.Bucket),
		Parallel: util.GetEnvInt("EXPORT_PARALLEL", 1),
		Locker:   app.Locks,
	})
	app.Exporter = exporter

	e := New(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}

	if util.GetEnvBool("EXPORT_ON_SHUTDOWN", false) {
		exportCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := exporter.ExportAll(exportCtx); err != nil {
			logger.Error("Shutdown export failed", "err", err)
		}
	}
}
