package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/internal/util"
	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type graphResponse struct {
	Graph  json.RawMessage `json:"graph"`
	Layout json.RawMessage `json:"layout"`
}

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

// GetGraphHandler returns the latest graph and layout the configured user
// saved for a sentence. Both are null when nothing was saved yet.
func GetGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		BundleID   string `query:"bundle_id" validate:"required"`
		SentenceID string `query:"sentence_id" validate:"required"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	row, err := db.New(app.DBConn).GetLatestResult(ctx, db.GetLatestResultParams{
		Username:         app.Username,
		AnnotationBundle: params.BundleID,
		Sentence:         params.SentenceID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusOK, graphResponse{Graph: rawOrNull(""), Layout: rawOrNull("")})
	}
	if err != nil {
		logger.Error("[Grapat] Failed to load graph", "bundle_id", params.BundleID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, graphResponse{Graph: rawOrNull(row.Graph), Layout: rawOrNull(row.Layout)})
}

// SaveGraphHandler stores a new snapshot. An empty graph is ignored.
func SaveGraphHandler(c echo.Context) error {
	type saveGraphBody struct {
		AnnotationBundle string `form:"annotation_bundle" validate:"required"`
		Sentence         string `form:"sentence" validate:"required"`
		Graph            string `form:"graph"`
		Layout           string `form:"layout"`
	}

	data := new(saveGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if data.Graph == "" {
		return c.JSON(http.StatusOK, map[string]string{})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if _, err := arggraph.ParseGraph([]byte(data.Graph)); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if data.Layout != "" && !json.Valid([]byte(data.Layout)) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "layout is not valid JSON"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	err := db.New(app.DBConn).InsertResult(ctx, db.InsertResultParams{
		Username:         app.Username,
		AnnotationBundle: data.AnnotationBundle,
		Sentence:         data.Sentence,
		Graph:            util.SanitizePostgresText(data.Graph),
		Layout:           util.SanitizePostgresText(data.Layout),
	})
	if err != nil {
		logger.Error("[Grapat] Failed to save graph", "bundle_id", data.AnnotationBundle, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	logger.Debug("[Grapat] Saved graph", "bundle_id", data.AnnotationBundle, "sentence", data.Sentence)
	return c.JSON(http.StatusOK, map[string]string{})
}
