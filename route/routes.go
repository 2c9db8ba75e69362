package route

import (
	"time"

	"coffeewifi/controller"
	"coffeewifi/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the Record Store API engine.
func NewRouter(ctl *controller.CafeController, guard *utils.APIKeyGuard, allowedOrigins []string, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", utils.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	CafeRoutes(router, ctl, guard)
	return router
}

func CafeRoutes(router *gin.Engine, ctl *controller.CafeController, guard *utils.APIKeyGuard) {
	router.GET("/healthz", ctl.Health)
	router.GET("/random", ctl.GetRandomCafe)
	router.GET("/all", ctl.GetAllCafes)
	router.GET("/search", ctl.SearchCafe)
	router.GET("/export", ctl.ExportCafes)
	router.POST("/add", ctl.AddCafe)
	router.PATCH("/update-price/:id", ctl.UpdatePrice)

	protected := router.Group("/")
	protected.Use(guard.RequireAPIKey())
	{
		protected.DELETE("/report-closed/:id", ctl.ReportClosed)
		protected.POST("/add/excel", ctl.ImportCafes)
	}
}
