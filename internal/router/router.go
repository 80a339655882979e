package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/flixdeck/internal/handler"
	"github.com/user/flixdeck/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 认证 ====================
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}

	// ==================== API（需要登录）====================
	api := r.Group("/api")
	api.Use(middleware.RequireAuth(h.Config.AppSecret))
	{
		api.GET("/me", h.Me)

		// 首页分类
		api.GET("/catalog", h.Catalog)
		api.POST("/catalog/retry", h.RetryCatalog)
		api.GET("/catalog/events", h.CatalogEvents)

		// 推荐
		api.GET("/featured", h.Featured)
		api.POST("/featured", h.SetFeatured)

		// 详情
		api.GET("/details/:kind/:id", h.Details)
		api.POST("/details/open", h.OpenDetails)
		api.DELETE("/details/open", h.CloseDetails)

		// 搜索
		api.GET("/search", h.Search)

		// 片单
		api.GET("/watchlist", h.Watchlist)
		api.POST("/watchlist/toggle", h.ToggleWatchlist)
		api.GET("/watchlist/:kind/:id", h.WatchlistStatus)
		api.DELETE("/watchlist/:kind/:id", h.RemoveFromWatchlist)
	}
}
