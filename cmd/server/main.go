package main

import (
	"log"
	"time"

	"bank-reconciliation-backend/internal/config"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/routes"
	"bank-reconciliation-backend/internal/services/matching"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("loading configuration failed: ", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("initializing logger failed: ", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("connecting to database failed", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.Invoice{},
		&models.BankTransaction{},
		&models.ImportBatch{},
		&models.MatchAuditLog{},
	); err != nil {
		logger.Fatal("running migrations failed", zap.Error(err))
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, matching.Config{
		SuggestThreshold:    cfg.SuggestThreshold,
		AutoAcceptThreshold: cfg.AutoAcceptThreshold,
		AmbiguityMargin:     cfg.AmbiguityMargin,
		AmountTolerance:     cfg.AmountTolerance,
		MaxCandidates:       cfg.MaxCandidates,
		SuggestionCount:     cfg.SuggestionCount,
	}, logger)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
