package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/miroku/internal/handler"
	"github.com/user/miroku/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== 认证 ====================
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}

	requireAuth := middleware.RequireAuth(h.Config.AppSecret)

	// ==================== 外部目录代理 ====================
	catalog := r.Group("/catalog")
	catalog.Use(requireAuth)
	{
		catalog.GET("/search", h.CatalogSearch)
		catalog.GET("/movie/:id", h.CatalogMovie)
	}

	// ==================== API（需要登录）====================
	api := r.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/me", h.Me)

		// 电影
		api.GET("/movies", h.ListMovies)
		api.POST("/movies", h.CreateMovie)
		api.POST("/movies/import", h.ImportMovie)
		api.GET("/movies/:id", h.GetMovie)
		api.PUT("/movies/:id/overrides", h.UpdateOverrides)
		api.DELETE("/movies/:id", h.DeleteMovie)

		// 演职员
		api.GET("/movies/:id/credits", h.ListCredits)
		api.POST("/movies/:id/credits", h.AddCredit)
		api.DELETE("/movies/:id/credits", h.ClearCredits)
		api.PUT("/credits/:id", h.RelinkCredit)
		api.DELETE("/credits/:id", h.DeleteCredit)

		// 刷新
		api.GET("/movies/:id/refresh", h.RefreshDiff)
		api.POST("/movies/:id/refresh", h.RefreshApply)
		api.POST("/refresh/all", h.RefreshAll)

		// 观影记录
		api.GET("/logs", h.ListWatchLogs)
		api.GET("/movies/:id/logs", h.ListMovieLogs)
		api.POST("/movies/:id/logs", h.AddWatchLog)
		api.PUT("/logs/:id", h.UpdateWatchLog)
		api.DELETE("/logs/:id", h.DeleteWatchLog)

		// 标签
		api.GET("/tags", h.ListTags)
		api.POST("/tags", h.CreateTag)
		api.PUT("/tags/:id", h.RenameTag)
		api.DELETE("/tags/:id", h.DeleteTag)
		api.POST("/movies/:id/tags/:tagId", h.AttachTag)
		api.DELETE("/movies/:id/tags/:tagId", h.DetachTag)

		// 人物
		api.GET("/persons", h.ListPersons)
		api.POST("/persons", h.CreatePerson)
		api.GET("/persons/duplicates", h.DuplicatePersons)
		api.POST("/persons/cleanup", h.DeleteUnusedPersons)
		api.GET("/persons/:id", h.GetPerson)
		api.PUT("/persons/:id", h.RenamePerson)
		api.GET("/persons/:id/candidates", h.MergeCandidates)
		api.POST("/persons/:id/merge", h.MergePerson)
		api.POST("/persons/:id/unmerge", h.UnmergePerson)

		// 统计
		api.GET("/stats", h.GetStats)
	}
}
