package server

import (
	"github.com/grapat/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Document routes
	apiRoutes.GET("/resources", routes.GetResourcesHandler)
	apiRoutes.GET("/resources/:fname", routes.GetResourceHandler)
	apiRoutes.GET("/users", routes.GetUsersHandler)

	// Annotation routes
	apiRoutes.GET("/grapat", routes.GetGraphHandler)
	apiRoutes.POST("/grapat", routes.SaveGraphHandler)
	apiRoutes.GET("/grapat/schema", routes.GetSchemaHandler)

	// File routes
	apiRoutes.GET("/grapat/file", routes.GetUploadsHandler)
	apiRoutes.POST("/grapat/file", routes.UploadFilesHandler)
	apiRoutes.PUT("/grapat/file", routes.ReplaceFileHandler)
	apiRoutes.DELETE("/grapat/file", routes.DeleteFileHandler)

	// Export routes
	apiRoutes.GET("/grapat/export", routes.GetExportHandler)
	apiRoutes.POST("/grapat/export", routes.PostExportHandler)
	apiRoutes.GET("/grapat/export/status", routes.GetExportStatusHandler)

	// Segmentation routes
	apiRoutes.POST("/edu/segment", routes.SegmentTextHandler)
}
