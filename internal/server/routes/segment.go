package routes

import (
	"net/http"

	"github.com/grapat/backend/pkg/arggraph"
	"github.com/grapat/backend/pkg/segment"

	"github.com/invopop/jsonschema"
	"github.com/labstack/echo/v4"
)

// SegmentTextHandler splits free text into one sentence per line.
func SegmentTextHandler(c echo.Context) error {
	type segmentBody struct {
		Text string `form:"text" json:"text"`
	}

	data := new(segmentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	return c.JSON(http.StatusOK, map[string]string{"text": segment.SegmentParagraphs(data.Text)})
}

var graphSchema = func() *jsonschema.Schema {
	r := &jsonschema.Reflector{AllowAdditionalProperties: true, DoNotReference: true}
	s := r.Reflect(&arggraph.GraphJSON{})
	s.Title = "Annotation graph snapshot"
	return s
}()

// GetSchemaHandler returns the JSON schema of stored graph snapshots.
func GetSchemaHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, graphSchema)
}
