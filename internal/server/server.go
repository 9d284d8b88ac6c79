package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"chatwatch/internal/handler"
	"chatwatch/internal/middleware"
	"chatwatch/internal/repository"
	"chatwatch/internal/service"
)

type Server struct {
	router   *gin.Engine
	db       *sqlx.DB
	producer handler.Enqueuer
	log      *logrus.Logger
	zlog     *zap.Logger
}

func NewServer(db *sqlx.DB, producer handler.Enqueuer, log *logrus.Logger, zlog *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router:   router,
		db:       db,
		producer: producer,
		log:      log,
		zlog:     zlog,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	authRepo := repository.NewAuthRepository(s.db, s.zlog)
	authService := service.NewAuthService(authRepo, s.zlog)
	authHandler := handler.NewAuthHandler(authService, s.log)

	ruleRepo := repository.NewRuleRepository(s.db, s.zlog)
	ruleService := service.NewRuleService(ruleRepo, s.zlog)
	ruleHandler := handler.NewRuleHandler(ruleService, s.log)

	alertRepo := repository.NewAlertRepository(s.db, s.zlog)
	alertHandler := handler.NewAlertHandler(alertRepo, s.zlog)

	ingestHandler := handler.NewIngestHandler(s.producer, s.zlog)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Message ingestion from device collectors
	s.router.POST("/api/ingest", ingestHandler.IngestMessage)

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.zlog))
	{
		authRequired.GET("/rules", ruleHandler.ListRules)
		authRequired.POST("/rules", ruleHandler.CreateRule)
		authRequired.PUT("/rules/:id", ruleHandler.UpdateRule)
		authRequired.DELETE("/rules/:id", ruleHandler.DeactivateRule)

		authRequired.GET("/patterns", ruleHandler.ListPatterns)
		authRequired.POST("/patterns", ruleHandler.CreatePattern)
		authRequired.DELETE("/patterns/:id", ruleHandler.DeactivatePattern)

		authRequired.GET("/alerts", alertHandler.ListAlerts)
		authRequired.GET("/alerts/:id", alertHandler.GetAlertByID)
		authRequired.PUT("/alerts/:id/status", alertHandler.UpdateAlertStatus)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
