package routes

import (
	"net/http"

	"github.com/grapat/backend/internal/db"
	"github.com/grapat/backend/internal/server/middleware"
	"github.com/grapat/backend/pkg/logger"
	"github.com/grapat/backend/pkg/segment"

	"github.com/labstack/echo/v4"
)

// GetResourcesHandler lists the ingested documents as [index, [id]] pairs,
// the shape the annotation UI expects.
func GetResourcesHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	ids, err := db.New(app.DBConn).ListBundleIDs(ctx)
	if err != nil {
		logger.Error("[Resources] Failed to list documents", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	res := make([][2]any, 0, len(ids))
	for i, id := range ids {
		res = append(res, [2]any{i, []string{id}})
	}
	return c.JSON(http.StatusOK, res)
}

// GetResourceHandler returns a document as annotation bundle XML.
func GetResourceHandler(c echo.Context) error {
	type getResourceParams struct {
		Name string `param:"fname" validate:"required"`
	}

	params := new(getResourceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := middleware.GetApp(c)
	ctx := c.Request().Context()

	rows, err := db.New(app.DBConn).GetBundleSegments(ctx, params.Name)
	if err != nil {
		logger.Error("[Resources] Failed to load document", "document", params.Name, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Document not found"})
	}

	segments := make([]string, 0, len(rows))
	for _, r := range rows {
		segments = append(segments, r.Segment)
	}

	data, err := segment.BundleXML(params.Name, rows[0].EntityID, segments)
	if err != nil {
		logger.Error("[Resources] Failed to render document", "document", params.Name, "err", err)
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, data)
}

// GetUsersHandler returns the configured annotator.
func GetUsersHandler(c echo.Context) error {
	type user struct {
		Username string `json:"username"`
	}
	return c.JSON(http.StatusOK, []user{{Username: middleware.GetApp(c).Username}})
}
