package handler

import (
	"net/http"

	"accountstate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()

	// 注册中间件，RequestID 需在日志和恢复之前
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/create", h.CreateAccount)
			account.GET("/balance", h.GetBalance)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.POST("/freeze", h.Freeze)
			account.POST("/unfreeze", h.Unfreeze)
			account.POST("/close", h.Close)
			account.GET("/history", h.History)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
