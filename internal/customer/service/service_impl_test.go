package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/customer/domain"
	"github.com/smallbiznis/tmsbilling/internal/customer/repository"
	"github.com/smallbiznis/tmsbilling/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	conn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Validate: validator.New(),
		Repo:     repository.Provide(),
	})
}

func TestCreateAndGetCustomer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	terms := 45

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:         "  Acme Corp ",
		Email:        "ap@acme.example",
		Phone:        "+1 555 0100",
		PaymentTerms: &terms,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", created.Name)
	assert.Equal(t, 45, created.PaymentTermsDays())

	got, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "ap@acme.example", got.Email)
	require.NotNil(t, got.PaymentTerms)
	assert.Equal(t, 45, *got.PaymentTerms)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "   "})
	assert.ErrorIs(t, err, billingerr.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Acme", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	zero := 0
	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Acme", PaymentTerms: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentTerms)
}

func TestGetCustomerErrors(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, billingerr.ErrValidation)

	_, err = svc.GetByID(context.Background(), "1234567")
	assert.ErrorIs(t, err, billingerr.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomersPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Acme Corp", "Beta Freight", "Acme West"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: name})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "Acme West", first.Customers[0].Name)

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Acme Corp", second.Customers[0].Name)

	filtered, err := svc.List(ctx, domain.ListCustomerRequest{Name: "acme"})
	require.NoError(t, err)
	assert.Len(t, filtered.Customers, 2)

	_, err = svc.List(ctx, domain.ListCustomerRequest{PageToken: "!!"})
	assert.ErrorIs(t, err, billingerr.ErrValidation)
}

func TestPaymentTermsDefault(t *testing.T) {
	assert.Equal(t, domain.DefaultPaymentTerms, domain.Customer{}.PaymentTermsDays())
}
