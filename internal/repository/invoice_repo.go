package repository

import (
	"errors"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// payableStatuses are the invoice statuses that can still receive a payment.
var payableStatuses = []models.InvoiceStatus{
	models.FactuurVerstuurd,
	models.FactuurOpen,
	models.FactuurGedeeltelijkBetaald,
	models.FactuurVervallen,
}

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Get(id uuid.UUID) (*models.Invoice, error) {
	return r.GetTx(r.db, id, "")
}

// GetTx fetches within the given transaction scope. A non-empty invType must
// match the stored type; a mismatch is reported as not found.
func (r *InvoiceRepository) GetTx(tx *gorm.DB, id uuid.UUID, invType models.InvoiceType) (*models.Invoice, error) {
	query := tx.Where("id = ?", id)
	if invType != "" {
		query = query.Where("type = ?", invType)
	}

	var inv models.Invoice
	if err := query.First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListOpen returns payable invoices of the given type and currency with a
// positive open balance, oldest due date first.
func (r *InvoiceRepository) ListOpen(valuta string, invType models.InvoiceType) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("type = ? AND valuta = ?", invType, valuta).
		Where("status IN ?", payableStatuses).
		Where("totaal > betaald_bedrag").
		Order("verval_datum ASC").
		Find(&invoices).Error
	return invoices, err
}

// Create inserts an invoice, silently ignoring duplicates on factuurnummer.
func (r *InvoiceRepository) Create(inv *models.Invoice) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(inv).Error
}

// UpdateBalanceTx persists a recomputed balance and status. Only the invoicing
// service calls this; nothing else writes invoice balances.
func (r *InvoiceRepository) UpdateBalanceTx(tx *gorm.DB, inv *models.Invoice) error {
	return tx.Model(&models.Invoice{}).
		Where("id = ?", inv.ID).
		Updates(map[string]interface{}{
			"betaald_bedrag": inv.BetaaldBedrag,
			"status":         inv.Status,
		}).Error
}
