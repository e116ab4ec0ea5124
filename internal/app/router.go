package app

import (
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/middleware"
	"cyberlearn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 学习和排行榜：可选认证，匿名请求由服务层返回登录提示
	api := router.Group("/api")
	api.Use(middleware.OptionalAuthMiddleware(&cfg.JWT))
	{
		a.registerLearningRoutes(api, c)
		a.registerLeaderboardRoutes(api, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}
}

func (a *App) registerLearningRoutes(api *gin.RouterGroup, c *controllers) {
	modules := api.Group("/modules")
	{
		modules.GET("", c.learning.ListModules)
		modules.GET("/:moduleId", c.learning.GetModule)
		modules.GET("/:moduleId/progress", c.learning.GetProgress)

		lesson := modules.Group("/:moduleId/lessons/:lesson")
		{
			lesson.POST("/complete", c.learning.CompleteLesson)
			lesson.PUT("/video-progress", c.learning.UpdateVideoProgress)
			lesson.GET("/video-progress", c.learning.GetVideoProgress)

			quiz := lesson.Group("/quiz")
			{
				quiz.GET("", c.learning.GetQuiz)
				quiz.POST("/select", c.learning.SelectAnswer)
				quiz.POST("/next", c.learning.NextQuestion)
				quiz.POST("/previous", c.learning.PreviousQuestion)
				quiz.POST("/submit", c.learning.SubmitQuiz)
				quiz.POST("/retry", c.learning.RetryQuiz)
				quiz.POST("/continue", c.learning.ContinueQuiz)
				quiz.GET("/attempts", c.learning.ListAttempts)
			}
		}
	}
}

func (a *App) registerLeaderboardRoutes(api *gin.RouterGroup, c *controllers) {
	leaderboard := api.Group("/leaderboard")
	{
		leaderboard.GET("", c.leaderboard.GetLeaderboard)
		leaderboard.GET("/me", c.leaderboard.GetMyRank)
	}
}
