package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-icewatch/db"
	"go-icewatch/handlers"
)

// SetupRouter builds the operator status API. disabledFn reports
// collectors shut off by permanent failures.
func SetupRouter(store *db.Store, disabledFn func() []string) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		handlers.Healthz(c, disabledFn())
	})

	api := r.Group("/api/monitor")
	{
		api.GET("/clusters", func(c *gin.Context) {
			handlers.ActiveClusters(c, store)
		})
		api.GET("/reports", func(c *gin.Context) {
			handlers.RecentReports(c, store)
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
