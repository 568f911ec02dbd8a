package matching

import (
	"testing"
	"time"

	"bank-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInvoice(num, naam, totaal string, due time.Time) models.Invoice {
	return models.Invoice{
		ID:              uuid.New(),
		Type:            models.Verkoopfactuur,
		Factuurnummer:   num,
		TegenpartijNaam: naam,
		Totaal:          decimal.RequireFromString(totaal),
		BetaaldBedrag:   decimal.Zero,
		Valuta:          "EUR",
		Status:          models.FactuurOpen,
		VervalDatum:     due,
	}
}

func creditTrx(bedrag, referentie, omschrijving, naam string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              uuid.New(),
		Datum:           time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Omschrijving:    omschrijving,
		Referentie:      referentie,
		NaamTegenpartij: naam,
		Bedrag:          decimal.RequireFromString(bedrag),
		Valuta:          "EUR",
		Status:          models.StatusNietGematcht,
	}
}

var due = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func TestScoreExactAmountWithReference(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-2024-031", "", "1500.00", due)
	trx := creditTrx("1500.00", "INV-2024-031", "betaling factuur", "")

	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Score)
	assert.Equal(t, inv.ID, got[0].FactuurID)
}

func TestScoreReferenceFoundInDescription(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-77", "", "250.00", due)
	// Spacing and casing in the description must not hide the invoice number.
	trx := creditTrx("250.00", "", "Betaling inv - 77 maart", "")

	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Score)
}

func TestScoreAmountOnlyWithoutCounterpartyData(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-1", "", "100.00", due)
	trx := creditTrx("100.00", "kenmerk 999", "overboeking", "")

	// With no name on either side, amount and reference are the only signals
	// and the weighting renormalizes over those two.
	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 63, got[0].Score)
}

func TestScoreAmountOnlyWithNonMatchingCounterparty(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-1", "Jansen Bouw", "100.00", due)
	trx := creditTrx("100.00", "", "overboeking", "Pietersen Catering")

	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].Score)
}

func TestScoreAmountToleranceDecay(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-1", "", "100.00", due)

	// 1% off is halfway through the 2% tolerance band.
	got := s.Score(creditTrx("101.00", "", "x", ""), []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 31, got[0].Score)

	// Beyond the tolerance the amount signal is zero and, with nothing else to
	// go on, the invoice is not a candidate at all.
	got = s.Score(creditTrx("103.00", "", "x", ""), []models.Invoice{inv})
	assert.Empty(t, got)
}

func TestScoreSkipsIncompatibleInvoices(t *testing.T) {
	s := NewScorer(DefaultConfig())

	wrongType := openInvoice("INV-1", "", "100.00", due)
	wrongType.Type = models.Inkoopfactuur

	wrongCurrency := openInvoice("INV-2", "", "100.00", due)
	wrongCurrency.Valuta = "USD"

	settled := openInvoice("INV-3", "", "100.00", due)
	settled.BetaaldBedrag = settled.Totaal
	settled.Status = models.FactuurBetaald

	trx := creditTrx("100.00", "INV-1 INV-2 INV-3", "", "")
	got := s.Score(trx, []models.Invoice{wrongType, wrongCurrency, settled})
	assert.Empty(t, got)
}

func TestScoreDebitMatchesPurchaseInvoices(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("LEV-55", "", "80.00", due)
	inv.Type = models.Inkoopfactuur

	trx := creditTrx("-80.00", "LEV-55", "", "")
	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Score)
}

func TestScorePartiallyPaidUsesOpenBalance(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-9", "", "1000.00", due)
	inv.BetaaldBedrag = decimal.RequireFromString("600.00")
	inv.Status = models.FactuurGedeeltelijkBetaald

	// The transaction covers the remainder, not the original total.
	trx := creditTrx("400.00", "INV-9", "", "")
	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Score)
	assert.True(t, got[0].OpenstaandBedrag.Equal(decimal.RequireFromString("400.00")))
}

func TestCounterpartyTokenOverlap(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-4", "Bakkerij De Molen B.V.", "100.00", due)
	trx := creditTrx("100.00", "", "", "BAKKERIJ MOLEN AMSTERDAM")

	// Two shared significant tokens count as a counterparty hit even though
	// neither name contains the other.
	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 70, got[0].Score)
}

func TestCounterpartyDiacriticsNormalized(t *testing.T) {
	s := NewScorer(DefaultConfig())
	inv := openInvoice("INV-5", "Café Zeezicht", "100.00", due)
	trx := creditTrx("100.00", "", "", "cafe zeezicht amsterdam")

	got := s.Score(trx, []models.Invoice{inv})
	require.Len(t, got, 1)
	assert.Equal(t, 70, got[0].Score)
}

func TestScoreTieBrokenByDueDate(t *testing.T) {
	s := NewScorer(DefaultConfig())
	later := openInvoice("INV-B", "", "100.00", due.AddDate(0, 1, 0))
	earlier := openInvoice("INV-A", "", "100.00", due)

	trx := creditTrx("100.00", "", "", "")
	got := s.Score(trx, []models.Invoice{later, earlier})
	require.Len(t, got, 2)
	assert.Equal(t, "INV-A", got[0].Factuurnummer)
	assert.Equal(t, "INV-B", got[1].Factuurnummer)
}

func TestScoreCapsCandidateList(t *testing.T) {
	s := NewScorer(DefaultConfig())
	var invoices []models.Invoice
	for i := 0; i < 8; i++ {
		invoices = append(invoices, openInvoice(uuid.NewString(), "", "100.00", due.AddDate(0, 0, i)))
	}

	got := s.Score(creditTrx("100.00", "", "", ""), invoices)
	assert.Len(t, got, 5)
}

func TestAmbiguous(t *testing.T) {
	s := NewScorer(DefaultConfig())

	assert.False(t, s.Ambiguous(nil))
	assert.False(t, s.Ambiguous([]models.MatchCandidate{{Score: 90}}))
	assert.True(t, s.Ambiguous([]models.MatchCandidate{{Score: 90}, {Score: 85}}))
	assert.True(t, s.Ambiguous([]models.MatchCandidate{{Score: 90}, {Score: 80}}))
	assert.False(t, s.Ambiguous([]models.MatchCandidate{{Score: 90}, {Score: 79}}))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "cafe zeezicht", NormalizeName("  Café  Zeezicht!  "))
	assert.Equal(t, "jansen bouw b v", NormalizeName("Jansen-Bouw B.V."))
	assert.Equal(t, "", NormalizeName("  "))
}
