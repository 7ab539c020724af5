package routes

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/logger"
	"github.com/grapat/backend/pkg/segment"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type fileResponse struct {
	Message   string          `json:"message"`
	Documents []documentEntry `json:"documents,omitempty"`
}

type documentEntry struct {
	ID        string `json:"id"`
	Segments  int    `json:"segments"`
	ObjectKey string `json:"object_key,omitempty"`
}

func uploadPrefix(documentID string) string {
	return "uploads/" + documentID
}

func insertSegments(ctx context.Context, q *db.Queries, documentID string, segments []string) error {
	for _, s := range segments {
		err := q.InsertSegment(ctx, db.InsertSegmentParams{
			ID:        documentID,
			Semantics: segment.Semantics,
			EntityID:  documentID,
			Segment:   util.SanitizePostgresText(s),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UploadFilesHandler ingests the multipart "files" field. Plain text files
// become one segment per line; .rs3 files keep their RST segments.
func UploadFilesHandler(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "Invalid request body"})
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "No files uploaded"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	type upload struct {
		name     string
		contents []byte
		doc      segment.Document
	}
	var docs []upload
	for _, file := range uploads {
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, fileResponse{Message: "Failed to read " + file.Filename})
		}
		contents, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return c.JSON(http.StatusBadRequest, fileResponse{Message: "Failed to read " + file.Filename})
		}

		doc, err := segment.Convert(file.Filename, contents)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fileResponse{Message: err.Error()})
		}
		docs = append(docs, upload{name: file.Filename, contents: contents, doc: doc})
	}

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("[Files] Failed to begin transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	defer tx.Rollback(ctx)
	qtx := db.New(app.DBConn).WithTx(tx)

	res := fileResponse{Message: "Files uploaded"}
	for _, u := range docs {
		if err := insertSegments(ctx, qtx, u.doc.ID, u.doc.Segments); err != nil {
			logger.Error("[Files] Failed to store segments", "document", u.doc.ID, "err", err)
			return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
		}
		res.Documents = append(res.Documents, documentEntry{ID: u.doc.ID, Segments: len(u.doc.Segments)})
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("[Files] Failed to commit transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}

	if app.Bucket != nil {
		for i, u := range docs {
			key, err := gonanoid.New()
			if err != nil {
				logger.Error("[Files] Failed to generate object key", "err", err)
				continue
			}
			objectKey, err := app.Bucket.PutFile(ctx, uploadPrefix(u.doc.ID), u.name, key, u.contents)
			if err != nil {
				logger.Warn("[Files] Failed to archive upload", "document", u.doc.ID, "err", err)
				continue
			}
			res.Documents[i].ObjectKey = objectKey
		}
	}

	logger.Info("[Files] Ingested documents", "count", len(docs))
	return c.JSON(http.StatusOK, res)
}

// ReplaceFileHandler replaces the segments of a document and drops its
// annotations.
func ReplaceFileHandler(c echo.Context) error {
	type replaceFileBody struct {
		TextID   string `form:"textId" validate:"required"`
		Segments string `form:"segments" validate:"required"`
	}

	data := new(replaceFileBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "Invalid request body"})
	}
	var segments []string
	if err := json.Unmarshal([]byte(data.Segments), &segments); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "segments must be a JSON array of strings"})
	}
	if err := segment.CheckSegments(segments); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: err.Error()})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("[Files] Failed to begin transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	defer tx.Rollback(ctx)
	qtx := db.New(app.DBConn).WithTx(tx)

	if err := qtx.DeleteResultsForBundle(ctx, data.TextID); err != nil {
		logger.Error("[Files] Failed to delete annotations", "document", data.TextID, "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	if err := qtx.DeleteBundle(ctx, data.TextID); err != nil {
		logger.Error("[Files] Failed to delete segments", "document", data.TextID, "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	if err := insertSegments(ctx, qtx, data.TextID, segments); err != nil {
		logger.Error("[Files] Failed to store segments", "document", data.TextID, "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Error("[Files] Failed to commit transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, fileResponse{
		Message:   "File updated",
		Documents: []documentEntry{{ID: data.TextID, Segments: len(segments)}},
	})
}

// DeleteFileHandler removes a document, its annotations and its archived
// uploads.
func DeleteFileHandler(c echo.Context) error {
	type deleteFileBody struct {
		TextID string `form:"textId" query:"textId" validate:"required"`
	}

	data := new(deleteFileBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, fileResponse{Message: "Invalid request body"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	tx, err := app.DBConn.Begin(ctx)
	if err != nil {
		logger.Error("[Files] Failed to begin transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	defer tx.Rollback(ctx)
	qtx := db.New(app.DBConn).WithTx(tx)

	if err := qtx.DeleteResultsForBundle(ctx, data.TextID); err != nil {
		logger.Error("[Files] Failed to delete annotations", "document", data.TextID, "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	if err := qtx.DeleteBundle(ctx, data.TextID); err != nil {
		logger.Error("[Files] Failed to delete segments", "document", data.TextID, "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Error("[Files] Failed to commit transaction", "err", err)
		return c.JSON(http.StatusInternalServerError, fileResponse{Message: "Internal server error"})
	}

	if app.Bucket != nil {
		if err := app.Bucket.DeleteFolder(ctx, uploadPrefix(data.TextID)+"/"); err != nil {
			logger.Warn("[Files] Failed to delete archived uploads", "document", data.TextID, "err", err)
		}
	}

	return c.JSON(http.StatusOK, fileResponse{Message: "File deleted"})
}

// GetUploadsHandler lists the archived uploads of a document, or returns one
// of them when key is given.
func GetUploadsHandler(c echo.Context) error {
	type getUploadsParams struct {
		TextID string `query:"textId" validate:"required"`
		Key    string `query:"key"`
	}

	params := new(getUploadsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := middleware.GetApp(c)
	if app.Bucket == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Uploads are not archived"})
	}
	ctx := c.Request().Context()
	prefix := uploadPrefix(params.TextID) + "/"

	if params.Key == "" {
		keys, err := app.Bucket.ListFilesWithPrefix(ctx, prefix)
		if err != nil {
			logger.Error("[Files] Failed to list uploads", "document", params.TextID, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		if keys == nil {
			keys = []string{}
		}
		return c.JSON(http.StatusOK, map[string][]string{"keys": keys})
	}

	if !strings.HasPrefix(params.Key, prefix) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Upload not found"})
	}
	data, err := app.Bucket.GetFile(ctx, params.Key)
	if err != nil {
		logger.Warn("[Files] Failed to read upload", "key", params.Key, "err", err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Upload not found"})
	}

	contentType := mime.TypeByExtension(path.Ext(params.Key))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, data)
}
