// Package server exposes the bookkeeper over HTTP.
package server

import (
	"net/http"
	"slices"

	"github.com/Aidin1998/accountmanager/common/apiutil"
	"github.com/Aidin1998/accountmanager/internal/bookkeeper"
	"github.com/Aidin1998/accountmanager/internal/config"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	logger        *zap.Logger
	bookkeeperSvc bookkeeper.BookkeeperService
	cfg           config.ServerConfig
	serviceName   string
}

// NewServer creates a new HTTP server
func NewServer(logger *zap.Logger, bookkeeperSvc bookkeeper.BookkeeperService, cfg config.ServerConfig, serviceName string) *Server {
	if serviceName == "" {
		serviceName = "accountmanager"
	}
	return &Server{
		logger:        logger.Named("http"),
		bookkeeperSvc: bookkeeperSvc,
		cfg:           cfg,
		serviceName:   serviceName,
	}
}

// Router creates a new HTTP router
func (s *Server) Router() *gin.Engine {
	apiutil.RegisterBindingTagNames()

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(apiutil.RequestID())
	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware(s.serviceName))
	router.Use(cors.New(s.corsConfig()))
	router.Use(apiutil.MetricsMiddleware())
	router.Use(apiutil.RFC7807ErrorMiddleware(s.logger))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/customer", s.handleCreateCustomer)

	accounts := router.Group("/account")
	{
		accounts.POST("", s.handleCreateAccount)
		accounts.GET("/:id", s.handleGetAccount)
		accounts.PUT("/:id/deposit", s.handleDeposit)
		accounts.PUT("/:id/withdraw", s.handleWithdraw)
	}

	router.PUT("/transfer/:from/:to", s.handleTransfer)

	router.NoRoute(func(c *gin.Context) {
		apiutil.RFC7807ErrorResponse(c, notFoundProblem(c.Request.URL.Path))
	})
	router.NoMethod(func(c *gin.Context) {
		apiutil.RFC7807ErrorResponse(c, methodNotAllowedProblem(c.Request.URL.Path))
	})

	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", apiutil.RequestIDHeader},
		ExposeHeaders: []string{"Location", apiutil.RequestIDHeader},
	}
	if len(s.cfg.CORSOrigins) == 0 || slices.Contains(s.cfg.CORSOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
	}
	return cfg
}
