package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/config"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	customerrepo "github.com/smallbiznis/tmsbilling/internal/customer/repository"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoice/render"
	invoicerepo "github.com/smallbiznis/tmsbilling/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/tmsbilling/internal/invoice/service"
	"github.com/smallbiznis/tmsbilling/internal/invoicedocument/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	loadrepo "github.com/smallbiznis/tmsbilling/internal/load/repository"
	"github.com/smallbiznis/tmsbilling/internal/storage"
	"github.com/smallbiznis/tmsbilling/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	invoice  invoicedomain.InvoiceWithDetails
	customer customerdomain.Customer
}

func setup(t *testing.T, store storage.Store) fixture {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&customerdomain.Customer{},
		&loaddomain.Load{},
		&invoicedomain.Invoice{},
		&domain.Document{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(testNow)
	billingCfg := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	validate := validator.New()

	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:            conn,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fc,
		Validate:      validate,
		BillingConfig: billingCfg,
		Repo:          invoicerepo.Provide(),
		CustomerRepo:  customerrepo.Provide(),
		LoadRepo:      loadrepo.Provide(),
	})

	customer := customerdomain.Customer{ID: node.Generate(), Name: "Acme Corp", Email: "ap@acme.example", CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, conn.Create(&customer).Error)

	var loadIDs []string
	for _, rate := range []string{"100", "250.50", "75"} {
		delivered := testNow.Add(-48 * time.Hour)
		l := loaddomain.Load{
			ID:           node.Generate(),
			CustomerID:   customer.ID,
			Origin:       "Dallas, TX",
			Destination:  "Memphis, TN",
			Commodity:    "Steel coils",
			Status:       loaddomain.StatusDelivered,
			DeliveryDate: &delivered,
			RateCustomer: decimal.NewNullDecimal(decimal.RequireFromString(rate)),
			CreatedAt:    testNow,
			UpdatedAt:    testNow,
		}
		require.NoError(t, conn.Create(&l).Error)
		loadIDs = append(loadIDs, l.ID.String())
	}
	inv, err := invoices.CreateInvoice(context.Background(), invoicedomain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		LoadIDs:    loadIDs,
	})
	require.NoError(t, err)

	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Validate:   validate,
		Store:      store,
		Renderer:   render.NewRenderer(billingCfg),
		InvoiceSvc: invoices,
	})
	return fixture{svc: svc, db: conn, invoice: inv, customer: customer}
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestGenerateStoresAndRecordsDocument(t *testing.T) {
	f := setup(t, newLocalStore(t))
	ctx := context.Background()

	doc, err := f.svc.Generate(ctx, f.invoice.ID.String(), domain.GenerateRequest{})
	require.NoError(t, err)

	assert.Equal(t, f.invoice.ID, doc.InvoiceID)
	assert.Regexp(t, `^invoices/INV-\d+_[0-9A-HJKMNP-TV-Z]{26}\.pdf$`, doc.FilePath)
	assert.Equal(t, "invoices/"+doc.FileName, doc.FilePath)
	assert.Equal(t, domain.PDFContentType, doc.ContentType)
	assert.Positive(t, doc.SizeBytes)

	docs, err := f.svc.List(ctx, f.invoice.ID.String())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	got, data, err := f.svc.Download(ctx, doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, doc.FilePath, got.FilePath)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	assert.Equal(t, doc.SizeBytes, int64(len(data)))
}

func TestGenerateTwiceKeepsBothDocuments(t *testing.T) {
	f := setup(t, newLocalStore(t))
	ctx := context.Background()

	first, err := f.svc.Generate(ctx, f.invoice.ID.String(), domain.GenerateRequest{})
	require.NoError(t, err)
	second, err := f.svc.Generate(ctx, f.invoice.ID.String(), domain.GenerateRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, first.FilePath, second.FilePath)

	docs, err := f.svc.List(ctx, f.invoice.ID.String())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestPersistSameFileNameConflicts(t *testing.T) {
	store := newLocalStore(t)
	f := setup(t, store)
	ctx := context.Background()

	res, err := f.svc.PersistInvoicePDF(ctx, []byte("%PDF-first"), "INV-1", "acme-march")
	require.NoError(t, err)
	assert.Equal(t, "invoices/acme-march.pdf", res.FilePath)
	assert.Equal(t, "acme-march.pdf", res.FileName)

	_, err = f.svc.PersistInvoicePDF(ctx, []byte("%PDF-second"), "INV-1", "acme-march.pdf")
	assert.ErrorIs(t, err, billingerr.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrDocumentExists)

	data, err := store.Get(ctx, res.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-first", string(data))
}

func TestPersistValidation(t *testing.T) {
	f := setup(t, newLocalStore(t))
	ctx := context.Background()

	_, err := f.svc.PersistInvoicePDF(ctx, nil, "INV-1", "")
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)

	_, err = f.svc.PersistInvoicePDF(ctx, []byte("%PDF"), "INV-1", "../escape.pdf")
	assert.ErrorIs(t, err, billingerr.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidFileName)

	_, err = f.svc.PersistInvoicePDF(ctx, []byte("%PDF"), " / ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInvoiceNumber)
}

type failingStore struct {
	mock.Mock
}

func (m *failingStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string, overwrite bool) (string, error) {
	args := m.Called(objectPath, contentType, overwrite)
	return args.String(0), args.Error(1)
}

func (m *failingStore) Get(ctx context.Context, objectPath string) ([]byte, error) {
	args := m.Called(objectPath)
	return nil, args.Error(1)
}

func (m *failingStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	return nil, nil
}

func TestStorageFailureIsDependencyNotRender(t *testing.T) {
	store := &failingStore{}
	store.On("Upload", mock.AnythingOfType("string"), domain.PDFContentType, false).
		Return("", errors.New("quota exceeded"))
	f := setup(t, store)

	_, err := f.svc.Generate(context.Background(), f.invoice.ID.String(), domain.GenerateRequest{})
	assert.ErrorIs(t, err, billingerr.ErrDependency)
	assert.NotErrorIs(t, err, billingerr.ErrRender)
	store.AssertExpectations(t)

	var count int64
	require.NoError(t, f.db.Model(&domain.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMissingCustomerIsRenderError(t *testing.T) {
	store := &failingStore{}
	f := setup(t, store)
	require.NoError(t, f.db.Delete(&customerdomain.Customer{}, "id = ?", f.customer.ID).Error)

	_, err := f.svc.Generate(context.Background(), f.invoice.ID.String(), domain.GenerateRequest{})
	assert.ErrorIs(t, err, billingerr.ErrRender)
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownloadMissing(t *testing.T) {
	f := setup(t, newLocalStore(t))

	_, _, err := f.svc.Download(context.Background(), "123")
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = f.svc.Download(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidDocumentID)
}

func TestGenerateUnknownInvoice(t *testing.T) {
	f := setup(t, newLocalStore(t))
	_, err := f.svc.Generate(context.Background(), "42", domain.GenerateRequest{})
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
}
