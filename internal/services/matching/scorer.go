package matching

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"bank-reconciliation-backend/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Signal weights. Amount dominates so that an amount-exact, reference-bearing
// transaction clears the auto-accept threshold on its own, while a
// same-amount-only match stays a suggestion.
const (
	weightAmount       = 0.5
	weightReference    = 0.3
	weightCounterparty = 0.2
)

// Config holds the thresholds and limits of the matching pipeline.
type Config struct {
	// SuggestThreshold is the minimum best-candidate score for a transaction
	// to be surfaced as a suggestion.
	SuggestThreshold int
	// AutoAcceptThreshold is the minimum top score for an unattended match.
	AutoAcceptThreshold int
	// AmbiguityMargin is the minimum lead the top candidate must have over the
	// runner-up before an unattended match is allowed.
	AmbiguityMargin int
	// AmountTolerance is the relative amount difference (0.02 = 2%) beyond
	// which the amount signal drops to zero.
	AmountTolerance float64
	// MaxCandidates caps the ranked list returned by Score.
	MaxCandidates int
	// SuggestionCount caps the candidate list persisted on a transaction.
	SuggestionCount int
}

func DefaultConfig() Config {
	return Config{
		SuggestThreshold:    50,
		AutoAcceptThreshold: 85,
		AmbiguityMargin:     10,
		AmountTolerance:     0.02,
		MaxCandidates:       5,
		SuggestionCount:     3,
	}
}

// Scorer ranks open invoices as match candidates for a bank transaction.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config {
	return s.cfg
}

// Score produces candidates for trx out of the given invoices, descending by
// score and capped at MaxCandidates. Only direction- and currency-compatible
// invoices with an open balance are considered; zero-score candidates are
// dropped. Ties are broken by earliest due date, so older debts are settled
// first.
func (s *Scorer) Score(trx *models.BankTransaction, invoices []models.Invoice) []models.MatchCandidate {
	wanted := models.InvoiceTypeFor(trx.Type())
	bedrag := trx.Bedrag.Abs()
	txName := NormalizeName(trx.NaamTegenpartij)

	var candidates []models.MatchCandidate
	for i := range invoices {
		inv := &invoices[i]
		if inv.Type != wanted || inv.Valuta != trx.Valuta {
			continue
		}
		open := inv.Openstaand()
		if !open.IsPositive() {
			continue
		}

		weighted := weightAmount * s.amountScore(bedrag, open)
		total := weightAmount

		weighted += weightReference * referenceScore(inv.Factuurnummer, trx.Referentie, trx.Omschrijving)
		total += weightReference

		// The counterparty signal only participates when both sides carry a
		// name; bank exports frequently omit it.
		if invName := NormalizeName(inv.TegenpartijNaam); txName != "" && invName != "" {
			weighted += weightCounterparty * counterpartyScore(txName, invName)
			total += weightCounterparty
		}

		score := int(math.Round(weighted / total))
		if score <= 0 {
			continue
		}

		candidates = append(candidates, models.MatchCandidate{
			FactuurID:        inv.ID,
			FactuurType:      inv.Type,
			Factuurnummer:    inv.Factuurnummer,
			TegenpartijNaam:  inv.TegenpartijNaam,
			OpenstaandBedrag: open,
			VervalDatum:      inv.VervalDatum,
			Score:            score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VervalDatum.Before(candidates[j].VervalDatum)
	})

	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}
	return candidates
}

// Ambiguous reports whether the runner-up is too close to the top candidate
// for an unattended match: two near-equally-likely invoices must be left to a
// human.
func (s *Scorer) Ambiguous(candidates []models.MatchCandidate) bool {
	if len(candidates) < 2 {
		return false
	}
	return candidates[0].Score-candidates[1].Score <= s.cfg.AmbiguityMargin
}

// amountScore is 100 on an exact match, decaying linearly to 0 at the relative
// tolerance.
func (s *Scorer) amountScore(bedrag, open decimal.Decimal) float64 {
	if bedrag.Equal(open) {
		return 100
	}
	rel, _ := bedrag.Sub(open).Abs().Div(open).Float64()
	if rel >= s.cfg.AmountTolerance {
		return 0
	}
	return 100 * (1 - rel/s.cfg.AmountTolerance)
}

// referenceScore is 100 when the invoice number appears in the payment
// reference or description, compared case-insensitively with whitespace
// stripped.
func referenceScore(factuurnummer, referentie, omschrijving string) float64 {
	num := squash(factuurnummer)
	if num == "" {
		return 0
	}
	if strings.Contains(squash(referentie), num) || strings.Contains(squash(omschrijving), num) {
		return 100
	}
	return 0
}

// counterpartyScore is 100 when one normalized name contains the other, or
// when they share at least two significant tokens.
func counterpartyScore(txName, invName string) float64 {
	if strings.Contains(invName, txName) || strings.Contains(txName, invName) {
		return 100
	}
	if sharedTokens(txName, invName) >= 2 {
		return 100
	}
	return 0
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, strips diacritics and collapses everything that is
// not a letter or digit into single spaces.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// squash lowercases and removes all whitespace.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Legal-form suffixes and connector words that carry no identity.
var stopTokens = map[string]struct{}{
	"van": {}, "der": {}, "den": {}, "het": {}, "een": {},
	"the": {}, "and": {}, "ltd": {}, "inc": {}, "vof": {}, "gmbh": {},
}

func significantTokens(name string) []string {
	var out []string
	for _, tok := range strings.Fields(name) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := stopTokens[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func sharedTokens(a, b string) int {
	seen := make(map[string]struct{})
	for _, tok := range significantTokens(b) {
		seen[tok] = struct{}{}
	}
	n := 0
	for _, tok := range significantTokens(a) {
		if _, ok := seen[tok]; ok {
			n++
			delete(seen, tok)
		}
	}
	return n
}
