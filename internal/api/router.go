package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter 配置HTTP路由; gin 的运行模式由调用方设置
func NewRouter(h *Handler, debug bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())
	if debug {
		r.Use(gin.Logger())
	}

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.POST("/chat", h.Chat)
	r.GET("/affinities", h.AllAffinities)
	r.GET("/ws/status", h.StatusStream)

	npcs := r.Group("/npcs")
	{
		npcs.GET("", h.ListNPCs)
		npcs.GET("/status", h.Status)
		npcs.POST("/status/refresh", h.RefreshStatus)
		npcs.GET("/status/refresh", h.RefreshStatus)
		npcs.GET("/:name", h.GetNPC)
		npcs.GET("/:name/memories", h.Memories)
		npcs.DELETE("/:name/memories", h.ClearMemories)
		npcs.GET("/:name/affinity", h.GetAffinity)
		npcs.PUT("/:name/affinity", h.SetAffinity)
	}

	return r
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
