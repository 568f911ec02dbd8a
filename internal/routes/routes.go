package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	handler "bank-reconciliation-backend/internal/handlers"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/importing"
	"bank-reconciliation-backend/internal/services/invoicing"
	"bank-reconciliation-backend/internal/services/matching"
	"bank-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg matching.Config, log *zap.Logger) {
	transactionRepo := repository.NewBankTransactionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	scorer := matching.NewScorer(cfg)
	invoiceService := invoicing.NewService(invoiceRepo, log)
	importer := importing.NewImporter(transactionRepo, invoiceService, scorer, log)
	reconService := reconciliation.NewService(transactionRepo, invoiceService, scorer, log)

	h := handler.NewTransactionHandler(importer, reconService, invoiceService, log)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	tx := api.Group("/transactions")
	tx.POST("/upload", h.Upload)
	tx.POST("/auto-match", h.AutoMatch)
	tx.GET("", h.List)
	tx.GET("/:id", h.Get)
	tx.POST("/:id/match", h.Match)
	tx.POST("/:id/ignore", h.Ignore)
	tx.POST("/:id/reactivate", h.Reactivate)
	tx.POST("/:id/reverse", h.Reverse)
	tx.DELETE("/:id", h.Delete)

	invoices := api.Group("/invoices")
	invoices.POST("", h.CreateInvoice)
	invoices.POST("/upload", h.UploadInvoices)
	invoices.GET("/open", h.ListOpenInvoices)
}
