package routes

import (
	"errors"
	"net/http"

	"github.com/grapat/backend/internal/queue"
	"github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/export"
	"github.com/grapat/backend/pkg/leaselock"
	"github.com/grapat/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetExportHandler exports one document as arggraph XML.
func GetExportHandler(c echo.Context) error {
	type getExportParams struct {
		FileID string `query:"fileId" validate:"required"`
	}

	params := new(getExportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	out, err := app.Exporter.ExportDocument(ctx, params.FileID)
	if err != nil {
		if arggraph.IsMappingError(err) || errors.Is(err, arggraph.ErrMalformedText) || errors.Is(err, arggraph.ErrInvalidSnapshot) {
			logger.Warn("[Export] Document cannot be exported", "document", params.FileID, "err", err)
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
		logger.Error("[Export] Export failed", "document", params.FileID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if out == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No annotation found"})
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, out)
}

// PostExportHandler starts a batch export. With a broker it is queued for
// the worker, otherwise it runs within the request.
func PostExportHandler(c echo.Context) error {
	type postExportResponse struct {
		Message string         `json:"message"`
		JobID   string         `json:"job_id,omitempty"`
		Report  *export.Report `json:"report,omitempty"`
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	if app.Queue != nil {
		jobID, err := queue.EnqueueExport(ctx, app.Queue, app.Username, "export requested via API")
		if err != nil {
			logger.Error("[Export] Failed to queue export", "err", err)
			return c.JSON(http.StatusInternalServerError, postExportResponse{Message: "Internal server error"})
		}
		return c.JSON(http.StatusAccepted, postExportResponse{Message: "Export queued", JobID: jobID})
	}

	report, err := app.Exporter.ExportAll(ctx)
	if errors.Is(err, leaselock.ErrBusy) {
		return c.JSON(http.StatusConflict, postExportResponse{Message: "An export is already running"})
	}
	if err != nil {
		logger.Error("[Export] Batch export failed", "err", err)
		return c.JSON(http.StatusInternalServerError, postExportResponse{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, postExportResponse{Message: "Export finished", Report: &report})
}

// GetExportStatusHandler reports whether a batch export holds the lock.
func GetExportStatusHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	if app.Locks == nil {
		return c.JSON(http.StatusOK, leaselock.Status{Key: export.BatchLockKey})
	}

	status, err := app.Locks.Status(c.Request().Context(), export.BatchLockKey)
	if err != nil {
		logger.Error("[Export] Failed to read lock status", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, status)
}
