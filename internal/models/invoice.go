package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes sales invoices (money owed to us) from purchase
// invoices (money we owe).
type InvoiceType string

const (
	Verkoopfactuur InvoiceType = "verkoopfactuur"
	Inkoopfactuur  InvoiceType = "inkoopfactuur"
)

// InvoiceTypeFor maps a transaction direction to the invoice type it can settle.
func InvoiceTypeFor(t TransactionType) InvoiceType {
	if t == TypeCredit {
		return Verkoopfactuur
	}
	return Inkoopfactuur
}

type InvoiceStatus string

const (
	FactuurConcept             InvoiceStatus = "concept"
	FactuurVerstuurd           InvoiceStatus = "verstuurd"
	FactuurOpen                InvoiceStatus = "open"
	FactuurGedeeltelijkBetaald InvoiceStatus = "gedeeltelijk_betaald"
	FactuurBetaald             InvoiceStatus = "betaald"
	FactuurVervallen           InvoiceStatus = "vervallen"
)

// Invoice is owned by the invoicing subsystem. The reconciliation engine reads
// balances and requests payment mutations through services/invoicing; it never
// writes BetaaldBedrag or Status directly.
type Invoice struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Type            InvoiceType     `gorm:"index;size:20" json:"type"`
	Factuurnummer   string          `gorm:"uniqueIndex" json:"factuurnummer"`
	TegenpartijNaam string          `gorm:"index" json:"tegenpartij_naam"`
	Totaal          decimal.Decimal `gorm:"type:decimal(18,2)" json:"totaal"`
	BetaaldBedrag   decimal.Decimal `gorm:"type:decimal(18,2)" json:"betaald_bedrag"`
	Valuta          string          `gorm:"size:3" json:"valuta"`
	Status          InvoiceStatus   `gorm:"index" json:"status"`
	VervalDatum     time.Time       `json:"verval_datum"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Openstaand is the remaining open balance.
func (i *Invoice) Openstaand() decimal.Decimal {
	return i.Totaal.Sub(i.BetaaldBedrag)
}

// AcceptsPayment reports whether the invoice can still receive a payment.
// Drafts cannot be paid; overdue (vervallen) invoices still can.
func (i *Invoice) AcceptsPayment() bool {
	switch i.Status {
	case FactuurVerstuurd, FactuurOpen, FactuurGedeeltelijkBetaald, FactuurVervallen:
		return i.Openstaand().IsPositive()
	default:
		return false
	}
}
