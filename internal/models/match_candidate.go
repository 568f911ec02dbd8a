package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MatchCandidate is a point-in-time snapshot of an invoice proposed as a match
// for one transaction. It is never persisted on its own; the owning
// transaction carries the ranked list in its MatchSuggesties column. Snapshot
// fields can go stale, which is why candidates are always rescored before an
// auto-match decision.
type MatchCandidate struct {
	FactuurID        uuid.UUID       `json:"factuur_id"`
	FactuurType      InvoiceType     `json:"factuur_type"`
	Factuurnummer    string          `json:"factuurnummer"`
	TegenpartijNaam  string          `json:"tegenpartij_naam"`
	OpenstaandBedrag decimal.Decimal `json:"openstaand_bedrag"`
	VervalDatum      time.Time       `json:"verval_datum"`
	Score            int             `json:"score"`
}

// SuggestiesJSON serializes a candidate list for the MatchSuggesties column.
// An empty list serializes as an empty JSON array, not null.
func SuggestiesJSON(candidates []MatchCandidate) datatypes.JSON {
	if candidates == nil {
		candidates = []MatchCandidate{}
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// Suggesties decodes the persisted candidate list. Returns nil when the
// transaction has no suggestions.
func (t *BankTransaction) Suggesties() []MatchCandidate {
	if len(t.MatchSuggesties) == 0 {
		return nil
	}
	var out []MatchCandidate
	if err := json.Unmarshal(t.MatchSuggesties, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
