package app

import (
	"levelup_backend/docs"
	"levelup_backend/internal/config"
	"levelup_backend/internal/middleware"
	"levelup_backend/internal/model"
	"levelup_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ProfileSync(repos.profile))
	{
		authGroup.GET("/processes/:id/questions", c.exam.GetQuestions)
		authGroup.POST("/processes/:id/exam", c.exam.SubmitExam)
		authGroup.GET("/leaderboard", c.leaderboard.GetLeaderboard)
		authGroup.GET("/progress", c.progress.GetMyProgress)

		// 管理员接口
		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.Admin))
		{
			admin.POST("/reconcile", c.admin.ReconcileAll)
			admin.POST("/reconcile/:userId", c.admin.ReconcileUser)
		}
	}
}
