package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/daytrail-backend-go/internal/handler"
	"github.com/jengzang/daytrail-backend-go/internal/metrics"
	"github.com/jengzang/daytrail-backend-go/internal/middleware"
)

// Handlers 路由使用的处理器
type Handlers struct {
	Events       *handler.EventHandler
	Pipeline     *handler.PipelineHandler
	TimeSlots    *handler.TimeSlotHandler
	SmartGuesses *handler.SmartGuessHandler
}

// Options 路由中间件配置
type Options struct {
	JWTSecret   string
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	RateLimiter *middleware.RateLimiter // nil disables rate limiting
}

// SetupRouter 设置路由
func SetupRouter(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(opts.Logger, opts.Metrics))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Daytrail Backend API is running",
		})
	})

	// 监控指标
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// API 路由组
	api := r.Group("/api/v1")
	if opts.RateLimiter != nil {
		api.Use(middleware.RateLimit(opts.RateLimiter))
	}
	api.Use(middleware.Auth(opts.JWTSecret))
	{
		// 事件接入
		api.POST("/events", h.Events.Ingest)

		// 流水线
		api.POST("/pipeline/run", h.Pipeline.Run)

		// 时间段与每日活动
		timeslots := api.Group("/timeslots")
		{
			timeslots.GET("", h.TimeSlots.GetTimeSlots)
			timeslots.GET("/:id", h.TimeSlots.GetTimeSlot)
			timeslots.PUT("/:id/category", h.TimeSlots.UpdateCategory)
		}
		api.GET("/activities", h.TimeSlots.GetActivities)

		// 智能猜测
		smartguesses := api.Group("/smartguesses")
		{
			smartguesses.GET("", h.SmartGuesses.GetSmartGuesses)
			smartguesses.POST("", h.SmartGuesses.AddSmartGuess)
			smartguesses.POST("/purge", h.SmartGuesses.Purge)
			smartguesses.POST("/:id/strike", h.SmartGuesses.Strike)
		}
	}

	return r
}
