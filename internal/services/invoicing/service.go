package invoicing

import (
	"fmt"
	"time"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the only writer of invoice balances. The reconciliation engine
// requests payment mutations here instead of touching invoice rows, so two
// subsystems never race on the same financial field.
type Service struct {
	invoices *repository.InvoiceRepository
	log      *zap.Logger
}

func NewService(invoices *repository.InvoiceRepository, log *zap.Logger) *Service {
	return &Service{invoices: invoices, log: log}
}

func (s *Service) GetInvoice(id uuid.UUID) (*models.Invoice, error) {
	return s.invoices.Get(id)
}

// GetInvoiceTx reads an invoice inside the caller's database transaction, so
// the balance seen for capping is the balance the payment commits against.
func (s *Service) GetInvoiceTx(tx *gorm.DB, id uuid.UUID, invType models.InvoiceType) (*models.Invoice, error) {
	return s.invoices.GetTx(tx, id, invType)
}

// ListOpenInvoices returns invoices a transaction of the given direction and
// currency could settle.
func (s *Service) ListOpenInvoices(valuta string, direction models.TransactionType) ([]models.Invoice, error) {
	return s.invoices.ListOpen(valuta, models.InvoiceTypeFor(direction))
}

// CreateInvoice inserts an invoice; duplicate invoice numbers are ignored.
func (s *Service) CreateInvoice(invType models.InvoiceType, factuurnummer, tegenpartij string, totaal decimal.Decimal, valuta string, status models.InvoiceStatus, vervalDatum time.Time) (*models.Invoice, error) {
	if valuta == "" {
		valuta = "EUR"
	}
	inv := &models.Invoice{
		ID:              uuid.New(),
		Type:            invType,
		Factuurnummer:   factuurnummer,
		TegenpartijNaam: tegenpartij,
		Totaal:          totaal,
		BetaaldBedrag:   decimal.Zero,
		Valuta:          valuta,
		Status:          status,
		VervalDatum:     vervalDatum,
		CreatedAt:       time.Now(),
	}
	if err := s.invoices.Create(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// RegisterPayment applies a payment to the invoice inside the caller's
// database transaction. The invoice status is recomputed here: betaald when
// fully covered, gedeeltelijk_betaald otherwise.
func (s *Service) RegisterPayment(tx *gorm.DB, id uuid.UUID, invType models.InvoiceType, amount decimal.Decimal, date time.Time, reference string) error {
	inv, err := s.invoices.GetTx(tx, id, invType)
	if err != nil {
		return err
	}

	open := inv.Openstaand()
	if !inv.AcceptsPayment() {
		return apperrors.ErrInvoiceAlreadySettled
	}
	if amount.GreaterThan(open) {
		return fmt.Errorf("payment of %s exceeds open balance %s on invoice %s", amount, open, inv.Factuurnummer)
	}

	inv.BetaaldBedrag = inv.BetaaldBedrag.Add(amount)
	if inv.BetaaldBedrag.GreaterThanOrEqual(inv.Totaal) {
		inv.Status = models.FactuurBetaald
	} else {
		inv.Status = models.FactuurGedeeltelijkBetaald
	}

	if err := s.invoices.UpdateBalanceTx(tx, inv); err != nil {
		return err
	}

	s.log.Info("payment registered",
		zap.String("factuurnummer", inv.Factuurnummer),
		zap.String("bedrag", amount.String()),
		zap.String("referentie", reference),
		zap.Time("datum", date),
		zap.String("status", string(inv.Status)),
	)
	return nil
}

// RetractPayment undoes a previously registered payment of the same amount.
func (s *Service) RetractPayment(tx *gorm.DB, id uuid.UUID, invType models.InvoiceType, amount decimal.Decimal, reference string) error {
	inv, err := s.invoices.GetTx(tx, id, invType)
	if err != nil {
		return err
	}

	inv.BetaaldBedrag = inv.BetaaldBedrag.Sub(amount)
	if inv.BetaaldBedrag.IsNegative() {
		// A retraction larger than what was registered indicates a bookkeeping
		// inconsistency; clamp and report rather than go negative.
		s.log.Warn("payment retraction exceeds registered amount",
			zap.String("factuurnummer", inv.Factuurnummer),
			zap.String("bedrag", amount.String()),
			zap.String("referentie", reference),
		)
		inv.BetaaldBedrag = decimal.Zero
	}

	if inv.BetaaldBedrag.IsZero() {
		inv.Status = models.FactuurOpen
	} else if inv.BetaaldBedrag.LessThan(inv.Totaal) {
		inv.Status = models.FactuurGedeeltelijkBetaald
	}

	if err := s.invoices.UpdateBalanceTx(tx, inv); err != nil {
		return err
	}

	s.log.Info("payment retracted",
		zap.String("factuurnummer", inv.Factuurnummer),
		zap.String("bedrag", amount.String()),
		zap.String("referentie", reference),
	)
	return nil
}
