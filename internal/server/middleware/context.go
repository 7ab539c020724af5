package middleware

import (
	"context"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/queue"
	"github.com/grapat/backend/internal/storage"
	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/leaselock"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Exporter is the export surface the routes use.
type Exporter interface {
	ExportDocument(ctx context.Context, documentID string) ([]byte, error)
	ExportAll(ctx context.Context) (export.Report, error)
}

type App struct {
	DBConn DB
	// Queue is nil when no broker is configured; exports then run inline.
	Queue queue.Channel
	// Bucket is nil when object storage is not configured.
	Bucket   *storage.Bucket
	Exporter Exporter
	Locks    *leaselock.Client
	// Username is the annotator all snapshots are stored under.
	Username string
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}

// GetApp returns the App of a request handled behind AppContextMiddleware.
func GetApp(c echo.Context) *App {
	return c.(*AppContext).App
}
