package repository

import (
	"errors"
	"strings"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

// DB exposes the underlying handle for transaction scoping.
func (r *BankTransactionRepository) DB() *gorm.DB {
	return r.db
}

// InsertIfNew inserts the transaction unless one with the same import
// fingerprint already exists. Returns false when the row was a duplicate.
// The single conflict-guarded statement keeps repeated statement uploads
// idempotent without a separate existence check.
func (r *BankTransactionRepository) InsertIfNew(trx *models.BankTransaction) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "import_fingerprint"}},
		DoNothing: true,
	}).Create(trx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BankTransactionRepository) Get(id uuid.UUID) (*models.BankTransaction, error) {
	return r.GetTx(r.db, id)
}

// GetTx fetches within the given transaction scope.
func (r *BankTransactionRepository) GetTx(tx *gorm.DB, id uuid.UUID) (*models.BankTransaction, error) {
	var trx models.BankTransaction
	if err := tx.First(&trx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	return &trx, nil
}

func (r *BankTransactionRepository) SaveTx(tx *gorm.DB, trx *models.BankTransaction) error {
	return tx.Save(trx).Error
}

func (r *BankTransactionRepository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Delete(&models.BankTransaction{}, "id = ?", id).Error
}

// ListPending returns all transactions still eligible for matching, oldest
// transaction date first so the earliest one claims a contested invoice.
func (r *BankTransactionRepository) ListPending() ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.
		Where("status IN ?", []models.TransactionStatus{models.StatusNietGematcht, models.StatusSuggestie}).
		Order("datum ASC").
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

// List returns a cursor-paginated page with optional status and free-text
// filters.
func (r *BankTransactionRepository) List(status models.TransactionStatus, search, cursor string, limit int) ([]models.BankTransaction, string, bool, error) {
	var txs []models.BankTransaction
	query := r.db.
		Order("id ASC").
		Limit(limit + 1)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(omschrijving) LIKE ? OR LOWER(referentie) LIKE ? OR LOWER(naam_tegenpartij) LIKE ?",
			like, like, like,
		)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

// StatusStats aggregates transaction counts per lifecycle status.
type StatusStats struct {
	Total        int64 `json:"total"`
	NietGematcht int64 `json:"niet_gematcht"`
	Suggestie    int64 `json:"suggestie"`
	Gematcht     int64 `json:"gematcht"`
	Genegeerd    int64 `json:"genegeerd"`
}

func (r *BankTransactionRepository) Stats() (StatusStats, error) {
	var stats StatusStats
	var rows []struct {
		Status models.TransactionStatus
		Count  int64
	}

	err := r.db.Model(&models.BankTransaction{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusNietGematcht:
			stats.NietGematcht = row.Count
		case models.StatusSuggestie:
			stats.Suggestie = row.Count
		case models.StatusGematcht:
			stats.Gematcht = row.Count
		case models.StatusGenegeerd:
			stats.Genegeerd = row.Count
		}
	}
	return stats, nil
}
