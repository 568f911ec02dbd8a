package invoicing

import (
	"fmt"
	"testing"
	"time"

	"bank-reconciliation-backend/internal/apperrors"
	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Invoice{}))
	return NewService(repository.NewInvoiceRepository(db), zap.NewNop()), db
}

var due = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateInvoiceDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "", models.FactuurOpen, due)
	require.NoError(t, err)
	assert.Equal(t, "EUR", inv.Valuta)
	assert.True(t, inv.BetaaldBedrag.IsZero())

	got, err := svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.Factuurnummer)
}

func TestCreateInvoiceDuplicateNumberIgnored(t *testing.T) {
	svc, db := newTestService(t)

	_, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	_, err = svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterPaymentPartialAndFull(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("1000.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)

	require.NoError(t, svc.RegisterPayment(db, inv.ID, inv.Type, d("400.00"), due, "deel 1"))
	got, err := svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FactuurGedeeltelijkBetaald, got.Status)
	assert.True(t, got.Openstaand().Equal(d("600.00")))

	require.NoError(t, svc.RegisterPayment(db, inv.ID, inv.Type, d("600.00"), due, "deel 2"))
	got, err = svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FactuurBetaald, got.Status)
	assert.True(t, got.Openstaand().IsZero())
}

func TestRegisterPaymentOnSettledInvoice(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterPayment(db, inv.ID, inv.Type, d("100.00"), due, ""))

	err = svc.RegisterPayment(db, inv.ID, inv.Type, d("1.00"), due, "")
	assert.ErrorIs(t, err, apperrors.ErrInvoiceAlreadySettled)
}

func TestRegisterPaymentOnDraftInvoice(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurConcept, due)
	require.NoError(t, err)

	err = svc.RegisterPayment(db, inv.ID, inv.Type, d("100.00"), due, "")
	assert.ErrorIs(t, err, apperrors.ErrInvoiceAlreadySettled)
}

func TestRegisterPaymentExceedingOpenBalance(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)

	err = svc.RegisterPayment(db, inv.ID, inv.Type, d("150.00"), due, "")
	require.Error(t, err)

	// Balance untouched after the rejected payment.
	got, err := svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.True(t, got.BetaaldBedrag.IsZero())
}

func TestRegisterPaymentTypeMismatch(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)

	err = svc.RegisterPayment(db, inv.ID, models.Inkoopfactuur, d("100.00"), due, "")
	assert.ErrorIs(t, err, apperrors.ErrInvoiceNotFound)
}

func TestRetractPayment(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterPayment(db, inv.ID, inv.Type, d("100.00"), due, ""))

	require.NoError(t, svc.RetractPayment(db, inv.ID, inv.Type, d("100.00"), ""))
	got, err := svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FactuurOpen, got.Status)
	assert.True(t, got.BetaaldBedrag.IsZero())
}

func TestRetractPaymentPartial(t *testing.T) {
	svc, db := newTestService(t)
	inv, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterPayment(db, inv.ID, inv.Type, d("100.00"), due, ""))

	require.NoError(t, svc.RetractPayment(db, inv.ID, inv.Type, d("40.00"), ""))
	got, err := svc.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FactuurGedeeltelijkBetaald, got.Status)
	assert.True(t, got.Openstaand().Equal(d("40.00")))
}

func TestListOpenInvoicesByDirection(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateInvoice(models.Verkoopfactuur, "INV-1", "Jansen Bouw", d("100.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	_, err = svc.CreateInvoice(models.Inkoopfactuur, "LEV-1", "Energie NV", d("80.00"), "EUR", models.FactuurOpen, due)
	require.NoError(t, err)
	_, err = svc.CreateInvoice(models.Verkoopfactuur, "INV-2", "Concept BV", d("50.00"), "EUR", models.FactuurConcept, due)
	require.NoError(t, err)

	sales, err := svc.ListOpenInvoices("EUR", models.TypeCredit)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "INV-1", sales[0].Factuurnummer)

	purchases, err := svc.ListOpenInvoices("EUR", models.TypeDebit)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "LEV-1", purchases[0].Factuurnummer)
}
