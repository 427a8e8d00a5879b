package authorization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthzTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func newTestService(t *testing.T) *ServiceImpl {
	t.Helper()
	enforcer, err := NewEnforcer(setupAuthzTestDB(t))
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	return &ServiceImpl{log: zap.NewNop(), enforcer: enforcer}
}

func TestAuthorizeAllowsDispatcherBilling(t *testing.T) {
	svc := newTestService(t)

	for _, action := range []string{ActionInvoiceCreate, ActionInvoicePay, ActionInvoiceRender} {
		if err := svc.Authorize(context.Background(), "Dispatcher", ObjectInvoice, action); err != nil {
			t.Fatalf("expected allow for %s, got %v", action, err)
		}
	}
	if err := svc.Authorize(context.Background(), "dispatcher", ObjectBilling, ActionBillingView); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAuthorizeDeniesNonDispatcherBilling(t *testing.T) {
	svc := newTestService(t)

	for _, role := range []string{"Customer", "Carrier", "Driver"} {
		err := svc.Authorize(context.Background(), role, ObjectBilling, ActionBillingView)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden for %s, got %v", role, err)
		}
	}
}

func TestAuthorizeDriverCanUpdateLoadStatus(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Authorize(context.Background(), "Driver", ObjectLoad, ActionLoadUpdateStatus); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	if err := svc.Authorize(context.Background(), "Carrier", ObjectLoad, ActionLoadUpdateStatus); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAuthorizeRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Authorize(context.Background(), "admin", ObjectBilling, ActionBillingView); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	if err := svc.Authorize(context.Background(), "Dispatcher", " ", ActionBillingView); !errors.Is(err, ErrInvalidObject) {
		t.Fatalf("expected invalid object, got %v", err)
	}
}

func TestSeedPoliciesIsIdempotent(t *testing.T) {
	db := setupAuthzTestDB(t)
	if _, err := NewEnforcer(db); err != nil {
		t.Fatalf("first enforcer: %v", err)
	}
	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("second enforcer: %v", err)
	}
	allowed, err := enforcer.Enforce("role:dispatcher", ObjectInvoice, ActionInvoicePay)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !allowed {
		t.Fatal("expected dispatcher policy to survive reseeding")
	}
}
