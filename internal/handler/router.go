package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ledgerpay/internal/service"
)

// SetupRouter 配置路由
func SetupRouter(ledgerService *service.LedgerService, accountService *service.AccountService, logger zerolog.Logger) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	h := NewHandler(ledgerService, accountService)

	// API 路由组
	api := r.Group("/api/v1")
	{
		api.POST("/transfer", h.Transfer)
		api.POST("/deposit", h.Deposit)
		api.POST("/hold", h.Hold)
		api.POST("/hold/capture", h.CaptureHold)
		api.GET("/transaction", h.GetTransaction)

		account := api.Group("/account")
		{
			account.POST("/create", h.CreateAccount)
			account.GET("/balance", h.GetBalance)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
