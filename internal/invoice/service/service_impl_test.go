package service

import (
	"context"
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
	"github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoice/repository"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	loadrepo "github.com/smallbiznis/tmsbilling/internal/load/repository"
	"github.com/smallbiznis/tmsbilling/internal/lock"
	"github.com/smallbiznis/tmsbilling/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	locker *lock.InProcessLocker
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&customerdomain.Customer{}, &loaddomain.Load{}, &domain.Invoice{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(testNow)
	locker := lock.NewInProcessLocker()
	svc := NewService(ServiceParam{
		DB:            conn,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         fc,
		Validate:      validator.New(),
		BillingConfig: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:          repository.Provide(),
		CustomerRepo:  customerrepo.Provide(),
		LoadRepo:      loadrepo.Provide(),
		Locker:        locker,
	})
	return fixture{svc: svc, db: conn, node: node, clock: fc, locker: locker}
}

func (f fixture) customer(t *testing.T, name string, terms *int) customerdomain.Customer {
	t.Helper()
	c := customerdomain.Customer{
		ID:           f.node.Generate(),
		Name:         name,
		Email:        "ap@" + name + ".example",
		PaymentTerms: terms,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f fixture) load(t *testing.T, customerID snowflake.ID, status loaddomain.Status, rate string) loaddomain.Load {
	t.Helper()
	l := loaddomain.Load{
		ID:          f.node.Generate(),
		CustomerID:  customerID,
		Origin:      "Dallas, TX",
		Destination: "Memphis, TN",
		Commodity:   "Steel coils",
		Status:      status,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if status == loaddomain.StatusDelivered {
		delivered := testNow.Add(-48 * time.Hour)
		l.DeliveryDate = &delivered
	}
	if rate != "" {
		l.RateCustomer = decimal.NewNullDecimal(decimal.RequireFromString(rate))
	}
	require.NoError(t, f.db.Create(&l).Error)
	return l
}

func ids(loads ...loaddomain.Load) []string {
	out := make([]string, 0, len(loads))
	for _, l := range loads {
		out = append(out, l.ID.String())
	}
	return out
}

func (f fixture) reloadLoad(t *testing.T, id snowflake.ID) loaddomain.Load {
	t.Helper()
	var l loaddomain.Load
	require.NoError(t, f.db.First(&l, "id = ?", id).Error)
	return l
}

func (f fixture) invoiceCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.Invoice{}).Count(&n).Error)
	return n
}

func intPtr(v int) *int { return &v }

func TestCreateInvoiceLinksLoadsAndTotals(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", intPtr(15))
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "1200.00")
	l2 := f.load(t, acme.ID, loaddomain.StatusDelivered, "800.50")

	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		LoadIDs:    ids(l1, l2),
		Notes:      " net 15 ",
	})
	require.NoError(t, err)

	assert.True(t, inv.Total().Equal(decimal.RequireFromString("2000.50")))
	assert.False(t, inv.IsPaid)
	assert.Nil(t, inv.PaidDate)
	assert.Equal(t, "net 15", inv.Notes)
	require.NotNil(t, inv.DueDate)
	assert.True(t, inv.DueDate.Equal(testNow.AddDate(0, 0, 15)))
	require.NotNil(t, inv.Customer)
	assert.Equal(t, acme.ID, inv.Customer.ID)
	require.Len(t, inv.Loads, 2)

	for _, l := range []loaddomain.Load{l1, l2} {
		stored := f.reloadLoad(t, l.ID)
		require.NotNil(t, stored.InvoiceID)
		assert.Equal(t, inv.ID, *stored.InvoiceID)
		assert.False(t, stored.ReadyForInvoice())
	}

	got, err := f.svc.GetByID(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.True(t, got.Total().Equal(inv.Total()))
	assert.Len(t, got.Loads, 2)
}

func TestCreateInvoiceDefaultsTermsAndMissingRates(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "")
	l2 := f.load(t, acme.ID, loaddomain.StatusDelivered, "99.99")

	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		LoadIDs:    ids(l1, l2),
	})
	require.NoError(t, err)
	assert.True(t, inv.Total().Equal(decimal.RequireFromString("99.99")))
	assert.True(t, inv.DueDate.Equal(testNow.AddDate(0, 0, 30)))
}

func TestCreateInvoiceExplicitDueDate(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "10")

	due := testNow.AddDate(0, 0, 7)
	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		LoadIDs:    ids(l1),
		DueDate:    &due,
	})
	require.NoError(t, err)
	assert.True(t, inv.DueDate.Equal(due))

	l2 := f.load(t, acme.ID, loaddomain.StatusDelivered, "10")
	past := testNow.AddDate(0, 0, -3)
	_, err = f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		LoadIDs:    ids(l2),
		DueDate:    &past,
	})
	assert.ErrorIs(t, err, billingerr.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidDueDate)
	assert.Nil(t, f.reloadLoad(t, l2.ID).InvoiceID)
}

func TestCreateInvoiceRejectsIneligibleLoadsWithoutWriting(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	globex := f.customer(t, "globex", nil)

	delivered := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")
	inTransit := f.load(t, acme.ID, loaddomain.StatusInTransit, "100")
	foreign := f.load(t, globex.ID, loaddomain.StatusDelivered, "100")

	invoiced := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")
	other := snowflake.ID(42)
	require.NoError(t, f.db.Model(&loaddomain.Load{}).Where("id = ?", invoiced.ID).Update("invoice_id", other).Error)

	cases := []struct {
		name  string
		loads []string
		kind  error
		cause error
	}{
		{"not delivered", ids(delivered, inTransit), billingerr.ErrValidation, domain.ErrLoadNotDelivered},
		{"other customer", ids(delivered, foreign), billingerr.ErrValidation, domain.ErrLoadCustomerMismatch},
		{"already invoiced", ids(delivered, invoiced), billingerr.ErrValidation, domain.ErrLoadAlreadyInvoiced},
		{"missing", append(ids(delivered), f.node.Generate().String()), billingerr.ErrNotFound, domain.ErrLoadNotFound},
		{"empty", []string{}, billingerr.ErrValidation, domain.ErrEmptyLoadIDs},
		{"duplicate", ids(delivered, delivered), billingerr.ErrValidation, domain.ErrDuplicateLoadID},
		{"malformed", []string{"abc"}, billingerr.ErrValidation, domain.ErrInvalidLoadID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
				CustomerID: acme.ID.String(),
				LoadIDs:    tc.loads,
			})
			assert.ErrorIs(t, err, tc.kind)
			assert.ErrorIs(t, err, tc.cause)
		})
	}

	assert.Zero(t, f.invoiceCount(t))
	assert.Nil(t, f.reloadLoad(t, delivered.ID).InvoiceID)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	f := setup(t)
	_, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: f.node.Generate().String(),
		LoadIDs:    []string{f.node.Generate().String()},
	})
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCreateInvoiceRollsBackWhenLoadClaimedConcurrently(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")
	l2 := f.load(t, acme.ID, loaddomain.StatusDelivered, "200")

	// Another writer claims l2 between validation and linking.
	require.NoError(t, f.db.Callback().Create().After("gorm:create").Register("test:claim_load", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "invoices" {
			return
		}
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE loads SET invoice_id = ? WHERE id = ?", int64(777), int64(l2.ID)).Error
		if err != nil {
			_ = tx.AddError(err)
		}
	}))

	_, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		LoadIDs:    ids(l1, l2),
	})
	assert.ErrorIs(t, err, billingerr.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrLoadsClaimed)

	assert.Zero(t, f.invoiceCount(t))
	assert.Nil(t, f.reloadLoad(t, l1.ID).InvoiceID)
}

func TestCreateInvoiceSecondAttemptOnSameLoadsFails(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")

	req := domain.CreateInvoiceRequest{CustomerID: acme.ID.String(), LoadIDs: ids(l1)}
	first, err := f.svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.CreateInvoice(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrLoadAlreadyInvoiced)
	assert.Equal(t, int64(1), f.invoiceCount(t))
	assert.Equal(t, first.ID, *f.reloadLoad(t, l1.ID).InvoiceID)
}

func TestCreateInvoiceLockHeld(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")

	release, err := f.locker.Acquire(context.Background(), "invoice:create:"+acme.ID.String(), time.Minute)
	require.NoError(t, err)

	_, err = f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{CustomerID: acme.ID.String(), LoadIDs: ids(l1)})
	assert.ErrorIs(t, err, billingerr.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrCreationInProgress)

	require.NoError(t, release(context.Background()))
	_, err = f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{CustomerID: acme.ID.String(), LoadIDs: ids(l1)})
	assert.NoError(t, err)
}

func TestMarkInvoicePaidIsIdempotent(t *testing.T) {
	f := setup(t)
	acme := f.customer(t, "acme", nil)
	l1 := f.load(t, acme.ID, loaddomain.StatusDelivered, "100")
	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{CustomerID: acme.ID.String(), LoadIDs: ids(l1)})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	paid, err := f.svc.MarkInvoicePaid(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidDate)
	firstPaid := *paid.PaidDate
	assert.True(t, firstPaid.Equal(testNow.Add(24*time.Hour)))

	f.clock.Advance(24 * time.Hour)
	again, err := f.svc.MarkInvoicePaid(context.Background(), inv.ID.String())
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	assert.True(t, again.PaidDate.Equal(firstPaid))

	_, err = f.svc.MarkInvoicePaid(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, billingerr.ErrNotFound)

	_, err = f.svc.MarkInvoicePaid(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidInvoiceID)
}

func TestOutstandingAndPaidLists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acme := f.customer(t, "acme", nil)
	globex := f.customer(t, "globex", nil)

	create := func(c customerdomain.Customer, rate string) domain.InvoiceWithDetails {
		l := f.load(t, c.ID, loaddomain.StatusDelivered, rate)
		inv, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{CustomerID: c.ID.String(), LoadIDs: ids(l)})
		require.NoError(t, err)
		return inv
	}

	oldPaid := create(acme, "10")
	recentPaid := create(acme, "20")
	openAcme := create(acme, "30")
	openGlobex := create(globex, "40")

	_, err := f.svc.MarkInvoicePaid(ctx, oldPaid.ID.String())
	require.NoError(t, err)
	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.svc.MarkInvoicePaid(ctx, recentPaid.ID.String())
	require.NoError(t, err)

	outstanding, err := f.svc.GetOutstandingInvoices(ctx, domain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{openAcme.ID, openGlobex.ID}, invoiceIDs(outstanding))
	for _, inv := range outstanding {
		assert.False(t, inv.IsPaid)
		assert.NotNil(t, inv.Customer)
		assert.Len(t, inv.Loads, 1)
	}

	paid, err := f.svc.GetPaidInvoicesLast30Days(ctx, domain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{recentPaid.ID}, invoiceIDs(paid))

	byCustomer, err := f.svc.GetOutstandingInvoices(ctx, domain.ListInvoiceRequest{CustomerID: globex.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{openGlobex.ID}, invoiceIDs(byCustomer))

	byNumber, err := f.svc.GetOutstandingInvoices(ctx, domain.ListInvoiceRequest{InvoiceNumber: "inv-" + openAcme.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{openAcme.ID}, invoiceIDs(byNumber))

	from := testNow.Add(time.Hour)
	to := testNow
	_, err = f.svc.GetOutstandingInvoices(ctx, domain.ListInvoiceRequest{CreatedFrom: &from, CreatedTo: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	empty, err := f.svc.GetOutstandingInvoices(ctx, domain.ListInvoiceRequest{CreatedFrom: &from})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAssignNumber(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acme := f.customer(t, "acme", nil)

	var invoices []domain.InvoiceWithDetails
	for i := 0; i < 3; i++ {
		l := f.load(t, acme.ID, loaddomain.StatusDelivered, "10")
		inv, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{CustomerID: acme.ID.String(), LoadIDs: ids(l)})
		require.NoError(t, err)
		invoices = append(invoices, inv)
	}

	first, err := f.svc.AssignNumber(ctx, invoices[0].ID.String(), domain.AssignNumberRequest{})
	require.NoError(t, err)
	assert.Equal(t, "INV-202503-00001", first.DisplayNumber())

	second, err := f.svc.AssignNumber(ctx, invoices[1].ID.String(), domain.AssignNumberRequest{})
	require.NoError(t, err)
	assert.Equal(t, "INV-202503-00002", second.DisplayNumber())

	_, err = f.svc.AssignNumber(ctx, invoices[0].ID.String(), domain.AssignNumberRequest{InvoiceNumber: "ACME-1"})
	assert.ErrorIs(t, err, billingerr.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrNumberAlreadyAssigned)

	_, err = f.svc.AssignNumber(ctx, invoices[2].ID.String(), domain.AssignNumberRequest{InvoiceNumber: "INV-202503-00001"})
	assert.ErrorIs(t, err, billingerr.ErrConflict)
	assert.ErrorIs(t, err, domain.ErrDuplicateNumber)

	third, err := f.svc.AssignNumber(ctx, invoices[2].ID.String(), domain.AssignNumberRequest{InvoiceNumber: " ACME-3 "})
	require.NoError(t, err)
	assert.Equal(t, "ACME-3", third.DisplayNumber())
}

func invoiceIDs(list []domain.InvoiceWithDetails) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(list))
	for _, inv := range list {
		out = append(out, inv.ID)
	}
	return out
}
