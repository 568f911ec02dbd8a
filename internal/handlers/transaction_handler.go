package handler

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/services/importing"
	"bank-reconciliation-backend/internal/services/invoicing"
	"bank-reconciliation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	importer *importing.Importer
	recon    *reconciliation.Service
	invoices *invoicing.Service
	log      *zap.Logger
}

func NewTransactionHandler(importer *importing.Importer, recon *reconciliation.Service, invoices *invoicing.Service, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{importer: importer, recon: recon, invoices: invoices, log: log}
}

// respondError translates domain errors into HTTP statuses: missing resources
// are 404, state machine conflicts 409, semantic rejections 422, bad input 400.
func (h *TransactionHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTransactionNotFound),
		errors.Is(err, apperrors.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAlreadyMatched),
		errors.Is(err, apperrors.ErrCannotDeleteMatched),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrInvoiceAlreadySettled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrCurrencyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnknownBankFormat),
		errors.Is(err, apperrors.ErrUnparseableFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Upload ingests a bank statement file. The bank format comes from the
// "bank_format" form field and defaults to the generic layout.
func (h *TransactionHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	format := c.PostForm("bank_format")
	if format == "" {
		format = "generiek"
	}

	res, err := h.importer.Import(file, header.Filename, format)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AutoMatch runs one unattended matching pass over all pending transactions.
func (h *TransactionHandler) AutoMatch(c *gin.Context) {
	res, err := h.recon.AutoMatch()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *TransactionHandler) List(c *gin.Context) {
	status := models.TransactionStatus(c.Query("status"))
	search := c.Query("search")
	cursor := c.Query("cursor")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txs, nextCursor, hasMore, stats, err := h.recon.List(status, search, cursor, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       txs,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       stats,
	})
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}
	trx, err := h.recon.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trx)
}

// Match confirms a transaction against a chosen invoice.
func (h *TransactionHandler) Match(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var payload struct {
		FactuurID   string `json:"factuur_id"`
		FactuurType string `json:"factuur_type"`
		Reason      string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	factuurID, err := uuid.Parse(payload.FactuurID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid factuur_id"})
		return
	}
	// factuur_type is accepted for compatibility but the direction of the
	// transaction decides which invoice type can be settled; a mismatch
	// surfaces as invoice-not-found.
	if ft := models.InvoiceType(payload.FactuurType); ft != "" && ft != models.Verkoopfactuur && ft != models.Inkoopfactuur {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid factuur_type"})
		return
	}

	trx, err := h.recon.Match(id, factuurID, models.PerformedByManual, payload.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trx)
}

func (h *TransactionHandler) Ignore(c *gin.Context) {
	h.transition(c, h.recon.Ignore)
}

func (h *TransactionHandler) Reactivate(c *gin.Context) {
	h.transition(c, h.recon.Reactivate)
}

func (h *TransactionHandler) Reverse(c *gin.Context) {
	h.transition(c, h.recon.Reverse)
}

// transition handles the lifecycle endpoints that take an optional reason and
// no other input.
func (h *TransactionHandler) transition(c *gin.Context, apply func(uuid.UUID, string, string) (*models.BankTransaction, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	// The body is optional for these endpoints.
	_ = c.ShouldBindJSON(&payload)

	trx, err := apply(id, models.PerformedByManual, payload.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trx)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	if err := h.recon.Delete(id, models.PerformedByManual, c.Query("reason")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction deleted"})
}

// CreateInvoice registers a single invoice.
func (h *TransactionHandler) CreateInvoice(c *gin.Context) {
	var payload struct {
		Type            string `json:"type"`
		Factuurnummer   string `json:"factuurnummer"`
		TegenpartijNaam string `json:"tegenpartij_naam"`
		Totaal          string `json:"totaal"`
		Valuta          string `json:"valuta"`
		Status          string `json:"status"`
		VervalDatum     string `json:"verval_datum"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	invType := models.InvoiceType(payload.Type)
	if invType != models.Verkoopfactuur && invType != models.Inkoopfactuur {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice type"})
		return
	}
	totaal, err := decimal.NewFromString(payload.Totaal)
	if err != nil || !totaal.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid totaal"})
		return
	}
	vervalDatum, err := time.Parse("2006-01-02", payload.VervalDatum)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verval_datum, expected yyyy-mm-dd"})
		return
	}
	if payload.TegenpartijNaam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tegenpartij_naam required"})
		return
	}

	factuurnummer := payload.Factuurnummer
	if factuurnummer == "" {
		factuurnummer = uuid.New().String()
	}
	status := models.InvoiceStatus(payload.Status)
	if status == "" {
		status = models.FactuurOpen
	}

	inv, err := h.invoices.CreateInvoice(invType, factuurnummer, payload.TegenpartijNaam, totaal, payload.Valuta, status, vervalDatum)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// UploadInvoices bulk-loads invoices from a header-mapped CSV with columns
// type, factuurnummer, tegenpartij_naam, totaal, valuta, status, verval_datum.
func (h *TransactionHandler) UploadInvoices(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read CSV header"})
		return
	}
	cols := map[string]int{}
	for i, name := range headerRow {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"factuurnummer", "tegenpartij_naam", "totaal", "verval_datum"} {
		if _, ok := cols[required]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing column " + required})
			return
		}
	}

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	inserted := 0
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if strings.Join(record, "") == "" {
			continue
		}

		totaal, err := decimal.NewFromString(field(record, "totaal"))
		if err != nil || !totaal.IsPositive() {
			skipped++
			continue
		}
		vervalDatum, err := time.Parse("2006-01-02", field(record, "verval_datum"))
		if err != nil {
			skipped++
			continue
		}
		naam := field(record, "tegenpartij_naam")
		if naam == "" {
			skipped++
			continue
		}

		invType := models.InvoiceType(field(record, "type"))
		if invType == "" {
			invType = models.Verkoopfactuur
		}
		status := models.InvoiceStatus(field(record, "status"))
		if status == "" {
			status = models.FactuurOpen
		}

		if _, err := h.invoices.CreateInvoice(invType, field(record, "factuurnummer"), naam, totaal, field(record, "valuta"), status, vervalDatum); err != nil {
			skipped++
			continue
		}
		inserted++
	}

	h.log.Info("invoice upload finished",
		zap.String("filename", header.Filename),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)
	c.JSON(http.StatusOK, gin.H{
		"file":     header.Filename,
		"inserted": inserted,
		"skipped":  skipped,
	})
}

// ListOpenInvoices returns the invoices a transaction of the given direction
// could settle, the same pool the scorer draws candidates from.
func (h *TransactionHandler) ListOpenInvoices(c *gin.Context) {
	valuta := strings.ToUpper(c.DefaultQuery("valuta", "EUR"))

	direction := models.TransactionType(c.DefaultQuery("direction", string(models.TypeCredit)))
	if direction != models.TypeCredit && direction != models.TypeDebit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction"})
		return
	}

	invoices, err := h.invoices.ListOpenInvoices(valuta, direction)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices})
}
