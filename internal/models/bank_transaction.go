package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionStatus is the match lifecycle state of an imported bank transaction.
type TransactionStatus string

const (
	StatusNietGematcht TransactionStatus = "niet_gematcht"
	StatusSuggestie    TransactionStatus = "suggestie"
	StatusGematcht     TransactionStatus = "gematcht"
	StatusGenegeerd    TransactionStatus = "genegeerd"
)

// TransactionType is derived from the sign of the amount: credit is money
// coming in (settles sales invoices), debit is money going out (settles
// purchase invoices).
type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// BankTransaction is one row from an imported bank statement. Bedrag and
// Valuta are immutable after import; only the lifecycle fields (Status,
// MatchSuggesties, Matched*) mutate.
type BankTransaction struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ImportBatchID      uuid.UUID         `gorm:"index" json:"import_batch_id"`
	Datum              time.Time         `gorm:"index" json:"datum"`
	Omschrijving       string            `json:"omschrijving"`
	Referentie         string            `json:"referentie"`
	Tegenrekening      string            `json:"tegenrekening"`
	NaamTegenpartij    string            `json:"naam_tegenpartij"`
	Bedrag             decimal.Decimal   `gorm:"type:decimal(18,2)" json:"bedrag"`
	Valuta             string            `gorm:"size:3" json:"valuta"`
	Status             TransactionStatus `gorm:"index" json:"status"`
	MatchSuggesties    datatypes.JSON    `json:"match_suggesties"`
	MatchedFactuurID   *uuid.UUID        `json:"matched_factuur_id"`
	MatchedFactuurType InvoiceType       `json:"matched_factuur_type,omitempty"`
	MatchedBedrag      decimal.Decimal   `gorm:"type:decimal(18,2)" json:"matched_bedrag"`
	ImportFingerprint  string            `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Type derives the direction from the sign of Bedrag.
func (t *BankTransaction) Type() TransactionType {
	if t.Bedrag.IsPositive() {
		return TypeCredit
	}
	return TypeDebit
}

// CanMatch reports whether the state machine allows applying a match.
func (t *BankTransaction) CanMatch() bool {
	return t.Status == StatusNietGematcht || t.Status == StatusSuggestie
}
