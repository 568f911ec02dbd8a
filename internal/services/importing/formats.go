package importing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bank-reconciliation-backend/internal/apperrors"

	"github.com/shopspring/decimal"
)

// ParsedRow is one bank statement row, normalized out of a bank-specific
// column layout.
type ParsedRow struct {
	Datum           time.Time
	Omschrijving    string
	Referentie      string
	Tegenrekening   string
	NaamTegenpartij string
	Bedrag          decimal.Decimal
	Valuta          string
}

// RowHandler receives statement rows in file order. parseErr is set for a
// malformed row (row is nil then); returning an error aborts the import.
type RowHandler func(line int, row *ParsedRow, parseErr error) error

// FormatAdapter translates one bank's export layout into ParsedRows. A
// structurally broken file is reported as an error wrapping
// apperrors.ErrUnparseableFile before any row is emitted.
type FormatAdapter interface {
	Name() string
	Parse(r io.Reader, handle RowHandler) error
}

var adapters = map[string]FormatAdapter{}

// Register adds a format adapter under its name.
func Register(a FormatAdapter) {
	adapters[a.Name()] = a
}

// AdapterFor looks up a registered adapter by name (case-insensitive).
func AdapterFor(name string) (FormatAdapter, error) {
	if a, ok := adapters[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownBankFormat, name)
}

func init() {
	Register(&GenericCSV{})
	Register(&INGCSV{})
}

// GenericCSV reads a header-mapped CSV export with Dutch column names. It
// requires datum, omschrijving and bedrag columns; referentie, tegenrekening,
// naam_tegenpartij and valuta are optional.
type GenericCSV struct{}

func (g *GenericCSV) Name() string { return "generiek" }

func (g *GenericCSV) Parse(r io.Reader, handle RowHandler) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: cannot read header: %v", apperrors.ErrUnparseableFile, err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"datum", "omschrijving", "bedrag"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("%w: missing column %q", apperrors.ErrUnparseableFile, required)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				if herr := handle(line, nil, err); herr != nil {
					return herr
				}
				continue
			}
			return fmt.Errorf("%w: %v", apperrors.ErrUnparseableFile, err)
		}
		if strings.Join(record, "") == "" {
			continue
		}

		row, perr := g.parseRecord(record, cols)
		if herr := handle(line, row, perr); herr != nil {
			return herr
		}
	}
}

func (g *GenericCSV) parseRecord(record []string, cols map[string]int) (*ParsedRow, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	datum, err := parseDatum(field("datum"))
	if err != nil {
		return nil, err
	}
	bedrag, err := parseBedrag(field("bedrag"))
	if err != nil {
		return nil, err
	}

	valuta := strings.ToUpper(field("valuta"))
	if valuta == "" {
		valuta = "EUR"
	}

	return &ParsedRow{
		Datum:           datum,
		Omschrijving:    field("omschrijving"),
		Referentie:      field("referentie"),
		Tegenrekening:   field("tegenrekening"),
		NaamTegenpartij: field("naam_tegenpartij"),
		Bedrag:          bedrag,
		Valuta:          valuta,
	}, nil
}

// INGCSV reads the classic ING export: Datum, Naam / Omschrijving, Rekening,
// Tegenrekening, Code, Af Bij, Bedrag (EUR), Mutatiesoort, Mededelingen.
type INGCSV struct{}

func (f *INGCSV) Name() string { return "ing" }

func (f *INGCSV) Parse(r io.Reader, handle RowHandler) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: cannot read header: %v", apperrors.ErrUnparseableFile, err)
	}
	if len(header) < 9 || !strings.EqualFold(strings.TrimSpace(header[0]), "Datum") {
		return fmt.Errorf("%w: not an ING export", apperrors.ErrUnparseableFile)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				if herr := handle(line, nil, err); herr != nil {
					return herr
				}
				continue
			}
			return fmt.Errorf("%w: %v", apperrors.ErrUnparseableFile, err)
		}
		if strings.Join(record, "") == "" {
			continue
		}

		row, perr := f.parseRecord(record)
		if herr := handle(line, row, perr); herr != nil {
			return herr
		}
	}
}

func (f *INGCSV) parseRecord(record []string) (*ParsedRow, error) {
	if len(record) < 9 {
		return nil, fmt.Errorf("expected 9 fields, got %d", len(record))
	}

	datum, err := time.Parse("20060102", strings.TrimSpace(record[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid datum: %w", err)
	}
	bedrag, err := parseBedrag(record[6])
	if err != nil {
		return nil, err
	}

	// Af is money out, Bij is money in; the amount column is unsigned.
	switch strings.ToLower(strings.TrimSpace(record[5])) {
	case "af":
		bedrag = bedrag.Neg()
	case "bij":
	default:
		return nil, fmt.Errorf("invalid Af/Bij value %q", record[5])
	}

	return &ParsedRow{
		Datum:           datum,
		Omschrijving:    strings.TrimSpace(record[8]),
		NaamTegenpartij: strings.TrimSpace(record[1]),
		Tegenrekening:   strings.TrimSpace(record[3]),
		Bedrag:          bedrag,
		Valuta:          "EUR",
	}, nil
}

var datumLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

func parseDatum(s string) (time.Time, error) {
	for _, layout := range datumLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datum %q", s)
}

// parseBedrag accepts both "1234.56" and the Dutch "1.234,56".
func parseBedrag(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid bedrag %q", s)
	}
	return d, nil
}
