package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// NewServer 创建服务器
func NewServer(h *Handler, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		engine: engine,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	s.setupRoutes(h)
	return s
}

// Handler 返回路由，测试用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(h *Handler) {
	api := s.engine.Group("/api")
	{
		// 纯计算接口，请求里带日K
		api.POST("/gate", h.PostGate)
		api.POST("/entry", h.PostEntry)
		api.POST("/exit", h.PostExit)
		api.POST("/evaluate", h.PostEvaluate)

		// 策略参数
		api.GET("/strategies", h.GetStrategies)
		api.GET("/strategies/:name", h.GetStrategy)

		// 走配置的数据源
		api.GET("/scan/:code", h.GetScan)
		api.GET("/monitor", h.GetMonitor)

		// 服务状态
		api.GET("/status", h.GetStatus)
	}

	// 健康检查
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("api listening",
		zap.String("addr", "http://localhost"+s.server.Addr),
		zap.Strings("routes", []string{
			"POST /api/gate", "POST /api/entry", "POST /api/exit", "POST /api/evaluate",
			"GET /api/strategies", "GET /api/scan/:code", "GET /api/monitor", "GET /api/status",
		}),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// loggerMiddleware 访问日志
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("api",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// corsMiddleware CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
