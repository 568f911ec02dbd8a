package models

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchVerwerkend BatchStatus = "verwerkend"
	BatchVoltooid   BatchStatus = "voltooid"
	BatchMislukt    BatchStatus = "mislukt"
)

// ImportBatch records one statement upload and its outcome counters.
type ImportBatch struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Filename          string      `json:"filename"`
	BankFormat        string      `json:"bank_format"`
	Total             int         `json:"total"`
	Imported          int         `json:"imported"`
	DuplicatesSkipped int         `json:"duplicates_skipped"`
	RowsSkipped       int         `json:"rows_skipped"`
	MetSuggesties     int         `json:"met_suggesties"`
	Status            BatchStatus `json:"status"`
	StartedAt         time.Time   `json:"started_at"`
	CompletedAt       *time.Time  `json:"completed_at"`
	CreatedAt         time.Time   `json:"created_at"`
}
