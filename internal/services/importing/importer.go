package importing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/invoicing"
	"bank-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportResult summarizes one statement upload.
type ImportResult struct {
	BatchID           uuid.UUID `json:"batch_id"`
	Total             int       `json:"total"`
	Imported          int       `json:"imported"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	RowsSkipped       int       `json:"rows_skipped"`
	MetSuggesties     int       `json:"met_suggesties"`
}

// Importer turns uploaded bank statement files into transaction rows with
// initial match suggestions.
type Importer struct {
	transactions *repository.BankTransactionRepository
	invoices     *invoicing.Service
	scorer       *matching.Scorer
	log          *zap.Logger
}

func NewImporter(transactions *repository.BankTransactionRepository, invoices *invoicing.Service, scorer *matching.Scorer, log *zap.Logger) *Importer {
	return &Importer{transactions: transactions, invoices: invoices, scorer: scorer, log: log}
}

// Import parses the file with the named format adapter and inserts every new
// row. Malformed rows are counted and skipped, duplicates (same fingerprint as
// an earlier import) are counted and skipped, and each inserted transaction is
// scored against the open invoices immediately. A file the adapter cannot make
// sense of at all fails the import without persisting anything.
func (i *Importer) Import(file io.Reader, filename, format string) (*ImportResult, error) {
	adapter, err := AdapterFor(format)
	if err != nil {
		return nil, err
	}

	batch := &models.ImportBatch{
		ID:         uuid.New(),
		Filename:   filename,
		BankFormat: adapter.Name(),
		Status:     models.BatchVerwerkend,
		StartedAt:  time.Now(),
		CreatedAt:  time.Now(),
	}
	res := &ImportResult{BatchID: batch.ID}

	// The batch row is only written once the adapter has produced a row, so a
	// structurally unparseable file leaves no trace.
	batchCreated := false

	err = adapter.Parse(file, func(line int, row *ParsedRow, parseErr error) error {
		res.Total++
		if !batchCreated {
			if err := i.transactions.DB().Create(batch).Error; err != nil {
				return err
			}
			batchCreated = true
		}

		if parseErr != nil {
			res.RowsSkipped++
			i.log.Warn("statement row skipped",
				zap.String("filename", filename),
				zap.Int("line", line),
				zap.Error(parseErr),
			)
			return nil
		}

		trx := &models.BankTransaction{
			ID:                uuid.New(),
			ImportBatchID:     batch.ID,
			Datum:             row.Datum,
			Omschrijving:      row.Omschrijving,
			Referentie:        row.Referentie,
			Tegenrekening:     row.Tegenrekening,
			NaamTegenpartij:   row.NaamTegenpartij,
			Bedrag:            row.Bedrag,
			Valuta:            row.Valuta,
			Status:            models.StatusNietGematcht,
			MatchSuggesties:   models.SuggestiesJSON(nil),
			ImportFingerprint: Fingerprint(row),
			CreatedAt:         time.Now(),
		}

		inserted, err := i.transactions.InsertIfNew(trx)
		if err != nil {
			return err
		}
		if !inserted {
			res.DuplicatesSkipped++
			return nil
		}
		res.Imported++

		if i.scoreNew(trx) {
			res.MetSuggesties++
		}
		return nil
	})
	if err != nil {
		if batchCreated {
			i.finishBatch(batch, res, models.BatchMislukt)
		}
		return nil, err
	}

	if batchCreated {
		if err := i.finishBatch(batch, res, models.BatchVoltooid); err != nil {
			return nil, err
		}
	}

	i.log.Info("statement import finished",
		zap.String("filename", filename),
		zap.String("format", adapter.Name()),
		zap.Int("total", res.Total),
		zap.Int("imported", res.Imported),
		zap.Int("duplicates_skipped", res.DuplicatesSkipped),
		zap.Int("rows_skipped", res.RowsSkipped),
		zap.Int("met_suggesties", res.MetSuggesties),
	)
	return res, nil
}

// scoreNew ranks the fresh transaction against the open invoices and persists
// the outcome: suggestie with the best candidates when the top score clears
// the threshold, niet_gematcht with an empty list otherwise. Reports whether a
// suggestion was stored.
func (i *Importer) scoreNew(trx *models.BankTransaction) bool {
	open, err := i.invoices.ListOpenInvoices(trx.Valuta, trx.Type())
	if err != nil {
		i.log.Error("loading open invoices for scoring failed", zap.Error(err))
		return false
	}

	cfg := i.scorer.Config()
	candidates := i.scorer.Score(trx, open)
	if len(candidates) > 0 && candidates[0].Score >= cfg.SuggestThreshold {
		if len(candidates) > cfg.SuggestionCount {
			candidates = candidates[:cfg.SuggestionCount]
		}
		trx.Status = models.StatusSuggestie
		trx.MatchSuggesties = models.SuggestiesJSON(candidates)
	} else {
		trx.Status = models.StatusNietGematcht
		trx.MatchSuggesties = models.SuggestiesJSON(nil)
	}

	if err := i.transactions.SaveTx(i.transactions.DB(), trx); err != nil {
		i.log.Error("persisting match suggestions failed",
			zap.String("transaction_id", trx.ID.String()),
			zap.Error(err),
		)
		return false
	}
	return trx.Status == models.StatusSuggestie
}

func (i *Importer) finishBatch(batch *models.ImportBatch, res *ImportResult, status models.BatchStatus) error {
	now := time.Now()
	batch.Total = res.Total
	batch.Imported = res.Imported
	batch.DuplicatesSkipped = res.DuplicatesSkipped
	batch.RowsSkipped = res.RowsSkipped
	batch.MetSuggesties = res.MetSuggesties
	batch.Status = status
	batch.CompletedAt = &now
	return i.transactions.DB().Save(batch).Error
}

// Fingerprint derives the dedup key for a statement row from its identifying
// fields. Two uploads of the same row always hash identically, so re-imports
// are no-ops.
func Fingerprint(row *ParsedRow) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		row.Datum.Format("2006-01-02"),
		row.Bedrag.String(),
		row.Referentie,
		row.Omschrijving,
	)
	return hex.EncodeToString(h.Sum(nil))
}
