package reconciliation

import (
	"sync"
	"time"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/invoicing"
	"bank-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service drives the match lifecycle of bank transactions. All mutations run
// under one mutex and inside a database transaction, so two confirmations can
// never settle the same invoice balance twice.
type Service struct {
	transactions *repository.BankTransactionRepository
	invoices     *invoicing.Service
	scorer       *matching.Scorer
	log          *zap.Logger

	mu sync.Mutex
}

func NewService(transactions *repository.BankTransactionRepository, invoices *invoicing.Service, scorer *matching.Scorer, log *zap.Logger) *Service {
	return &Service{
		transactions: transactions,
		invoices:     invoices,
		scorer:       scorer,
		log:          log,
	}
}

func (s *Service) Get(id uuid.UUID) (*models.BankTransaction, error) {
	return s.transactions.Get(id)
}

// List returns a cursor-paginated page of transactions with the per-status
// counts alongside.
func (s *Service) List(status models.TransactionStatus, search, cursor string, limit int) ([]models.BankTransaction, string, bool, repository.StatusStats, error) {
	txs, nextCursor, hasMore, err := s.transactions.List(status, search, cursor, limit)
	if err != nil {
		return nil, "", false, repository.StatusStats{}, err
	}
	stats, err := s.transactions.Stats()
	if err != nil {
		return nil, "", false, stats, err
	}
	return txs, nextCursor, hasMore, stats, nil
}

// Match confirms a match between a transaction and an invoice. The payment is
// capped at the invoice's open balance, so an overpayment leaves the remainder
// unreconciled instead of flipping the balance negative.
func (s *Service) Match(id, factuurID uuid.UUID, performedBy, reason string) (*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trx *models.BankTransaction
	err := s.transactions.DB().Transaction(func(tx *gorm.DB) error {
		var err error
		trx, err = s.matchTx(tx, id, factuurID, performedBy, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction matched",
		zap.String("transaction_id", trx.ID.String()),
		zap.String("factuur_id", factuurID.String()),
		zap.String("bedrag", trx.MatchedBedrag.String()),
		zap.String("performed_by", performedBy),
	)
	return trx, nil
}

// matchTx applies the match inside the given database transaction. The caller
// holds s.mu.
func (s *Service) matchTx(tx *gorm.DB, id, factuurID uuid.UUID, performedBy, reason string) (*models.BankTransaction, error) {
	trx, err := s.transactions.GetTx(tx, id)
	if err != nil {
		return nil, err
	}
	switch trx.Status {
	case models.StatusGematcht:
		return nil, apperrors.ErrAlreadyMatched
	case models.StatusGenegeerd:
		return nil, apperrors.ErrInvalidTransition
	}

	inv, err := s.invoices.GetInvoiceTx(tx, factuurID, models.InvoiceTypeFor(trx.Type()))
	if err != nil {
		return nil, err
	}
	if inv.Valuta != trx.Valuta {
		return nil, apperrors.ErrCurrencyMismatch
	}

	amount := trx.Bedrag.Abs()
	if open := inv.Openstaand(); amount.GreaterThan(open) {
		amount = open
	}

	if err := s.invoices.RegisterPayment(tx, inv.ID, inv.Type, amount, trx.Datum, trx.Referentie); err != nil {
		return nil, err
	}

	trx.Status = models.StatusGematcht
	trx.MatchedFactuurID = &inv.ID
	trx.MatchedFactuurType = inv.Type
	trx.MatchedBedrag = amount
	trx.MatchSuggesties = models.SuggestiesJSON(nil)
	if err := s.transactions.SaveTx(tx, trx); err != nil {
		return nil, err
	}

	return trx, s.audit(tx, trx.ID, models.AuditActionMatch, nil, &inv.ID, performedBy, reason)
}

// Ignore parks a transaction so it no longer shows up as reconciliation work.
func (s *Service) Ignore(id uuid.UUID, performedBy, reason string) (*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trx *models.BankTransaction
	err := s.transactions.DB().Transaction(func(tx *gorm.DB) error {
		var err error
		trx, err = s.transactions.GetTx(tx, id)
		if err != nil {
			return err
		}
		if !trx.CanMatch() {
			return apperrors.ErrInvalidTransition
		}

		trx.Status = models.StatusGenegeerd
		trx.MatchSuggesties = models.SuggestiesJSON(nil)
		if err := s.transactions.SaveTx(tx, trx); err != nil {
			return err
		}
		return s.audit(tx, trx.ID, models.AuditActionIgnore, nil, nil, performedBy, reason)
	})
	if err != nil {
		return nil, err
	}
	return trx, nil
}

// Reactivate brings an ignored transaction back into the matching flow and
// rescores it against the current open invoices.
func (s *Service) Reactivate(id uuid.UUID, performedBy, reason string) (*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trx *models.BankTransaction
	err := s.transactions.DB().Transaction(func(tx *gorm.DB) error {
		var err error
		trx, err = s.transactions.GetTx(tx, id)
		if err != nil {
			return err
		}
		if trx.Status != models.StatusGenegeerd {
			return apperrors.ErrInvalidTransition
		}

		trx.Status = models.StatusNietGematcht
		if err := s.transactions.SaveTx(tx, trx); err != nil {
			return err
		}
		return s.audit(tx, trx.ID, models.AuditActionReactivate, nil, nil, performedBy, reason)
	})
	if err != nil {
		return nil, err
	}

	// Rescoring happens outside the write transaction; a failure here leaves
	// the transaction reactivated without suggestions, which the next
	// auto-match run repairs.
	if _, err := s.rescore(trx); err != nil {
		s.log.Warn("rescore after reactivate failed", zap.String("transaction_id", id.String()), zap.Error(err))
	}
	return trx, nil
}

// Reverse undoes a confirmed match: the registered payment is retracted from
// the invoice and the transaction returns to the unmatched pool.
func (s *Service) Reverse(id uuid.UUID, performedBy, reason string) (*models.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var trx *models.BankTransaction
	err := s.transactions.DB().Transaction(func(tx *gorm.DB) error {
		var err error
		trx, err = s.transactions.GetTx(tx, id)
		if err != nil {
			return err
		}
		if trx.Status != models.StatusGematcht || trx.MatchedFactuurID == nil {
			return apperrors.ErrInvalidTransition
		}

		previous := *trx.MatchedFactuurID
		if err := s.invoices.RetractPayment(tx, previous, trx.MatchedFactuurType, trx.MatchedBedrag, trx.Referentie); err != nil {
			return err
		}

		trx.Status = models.StatusNietGematcht
		trx.MatchedFactuurID = nil
		trx.MatchedFactuurType = ""
		trx.MatchedBedrag = decimal.Zero
		if err := s.transactions.SaveTx(tx, trx); err != nil {
			return err
		}
		return s.audit(tx, trx.ID, models.AuditActionReverse, &previous, nil, performedBy, reason)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.rescore(trx); err != nil {
		s.log.Warn("rescore after reverse failed", zap.String("transaction_id", id.String()), zap.Error(err))
	}
	return trx, nil
}

// Delete removes a transaction that was imported in error. A matched
// transaction must be reversed first, otherwise the invoice balance would keep
// a payment whose source row is gone.
func (s *Service) Delete(id uuid.UUID, performedBy, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transactions.DB().Transaction(func(tx *gorm.DB) error {
		trx, err := s.transactions.GetTx(tx, id)
		if err != nil {
			return err
		}
		if trx.Status == models.StatusGematcht {
			return apperrors.ErrCannotDeleteMatched
		}
		if err := s.transactions.DeleteTx(tx, id); err != nil {
			return err
		}
		return s.audit(tx, id, models.AuditActionDelete, nil, nil, performedBy, reason)
	})
}

// AutoMatchResult summarizes one unattended matching run.
type AutoMatchResult struct {
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
	Skipped   int `json:"skipped"`
}

// AutoMatch walks every pending transaction oldest-first and confirms the top
// candidate when it clears the auto-accept threshold with a clear lead over
// the runner-up. Everything else keeps refreshed suggestions for manual
// review. Runs are serialized; two concurrent calls execute back to back.
func (s *Service) AutoMatch() (*AutoMatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.transactions.ListPending()
	if err != nil {
		return nil, err
	}

	cfg := s.scorer.Config()
	res := &AutoMatchResult{}
	for i := range pending {
		trx := &pending[i]
		res.Evaluated++

		candidates, err := s.rescore(trx)
		if err != nil {
			s.log.Error("auto-match scoring failed", zap.String("transaction_id", trx.ID.String()), zap.Error(err))
			res.Skipped++
			continue
		}

		if len(candidates) == 0 || candidates[0].Score < cfg.AutoAcceptThreshold || s.scorer.Ambiguous(candidates) {
			res.Skipped++
			continue
		}

		err = s.transactions.DB().Transaction(func(tx *gorm.DB) error {
			_, err := s.matchTx(tx, trx.ID, candidates[0].FactuurID, models.PerformedByAuto, "")
			return err
		})
		if err != nil {
			// The invoice may have been settled between scoring and the
			// write; the transaction simply stays in the pool.
			s.log.Warn("auto-match apply failed",
				zap.String("transaction_id", trx.ID.String()),
				zap.String("factuur_id", candidates[0].FactuurID.String()),
				zap.Error(err),
			)
			res.Skipped++
			continue
		}
		res.Matched++
	}

	s.log.Info("auto-match run finished",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("matched", res.Matched),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// rescore recomputes and persists the suggestions of a matchable transaction,
// returning the full ranked candidate list.
func (s *Service) rescore(trx *models.BankTransaction) ([]models.MatchCandidate, error) {
	open, err := s.invoices.ListOpenInvoices(trx.Valuta, trx.Type())
	if err != nil {
		return nil, err
	}

	cfg := s.scorer.Config()
	candidates := s.scorer.Score(trx, open)

	if len(candidates) > 0 && candidates[0].Score >= cfg.SuggestThreshold {
		stored := candidates
		if len(stored) > cfg.SuggestionCount {
			stored = stored[:cfg.SuggestionCount]
		}
		trx.Status = models.StatusSuggestie
		trx.MatchSuggesties = models.SuggestiesJSON(stored)
	} else {
		trx.Status = models.StatusNietGematcht
		trx.MatchSuggesties = models.SuggestiesJSON(nil)
	}

	if err := s.transactions.SaveTx(s.transactions.DB(), trx); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *Service) audit(tx *gorm.DB, trxID uuid.UUID, action string, previous, next *uuid.UUID, performedBy, reason string) error {
	return tx.Create(&models.MatchAuditLog{
		ID:              uuid.New(),
		TransactionID:   trxID,
		Action:          action,
		PreviousFactuur: previous,
		NewFactuur:      next,
		PerformedBy:     performedBy,
		Reason:          reason,
		CreatedAt:       time.Now(),
	}).Error
}
