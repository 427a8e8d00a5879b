package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/tmsbilling/internal/identity"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectBilling  = "billing"
	ObjectInvoice  = "invoice"
	ObjectCustomer = "customer"
	ObjectLoad     = "load"
)

const (
	ActionBillingView   = "billing.view"
	ActionBillingExport = "billing.export"

	ActionInvoiceView   = "invoice.view"
	ActionInvoiceCreate = "invoice.create"
	ActionInvoicePay    = "invoice.pay"
	ActionInvoiceNumber = "invoice.number"
	ActionInvoiceRender = "invoice.render"

	ActionCustomerView   = "customer.view"
	ActionCustomerCreate = "customer.create"

	ActionLoadView         = "load.view"
	ActionLoadCreate       = "load.create"
	ActionLoadUpdateStatus = "load.update_status"
)

// rolePolicies lists what each role may do. Billing is dispatcher-only.
var rolePolicies = map[identity.Role][][2]string{
	identity.RoleDispatcher: {
		{ObjectBilling, ActionBillingView},
		{ObjectBilling, ActionBillingExport},
		{ObjectInvoice, ActionInvoiceView},
		{ObjectInvoice, ActionInvoiceCreate},
		{ObjectInvoice, ActionInvoicePay},
		{ObjectInvoice, ActionInvoiceNumber},
		{ObjectInvoice, ActionInvoiceRender},
		{ObjectCustomer, ActionCustomerView},
		{ObjectCustomer, ActionCustomerCreate},
		{ObjectLoad, ActionLoadView},
		{ObjectLoad, ActionLoadCreate},
		{ObjectLoad, ActionLoadUpdateStatus},
	},
	identity.RoleDriver: {
		{ObjectLoad, ActionLoadView},
		{ObjectLoad, ActionLoadUpdateStatus},
	},
	identity.RoleCarrier: {
		{ObjectLoad, ActionLoadView},
	},
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for role, rules := range rolePolicies {
		subject := role.Subject()
		for _, rule := range rules {
			if _, err := enforcer.AddPolicy(subject, rule[0], rule[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	parsed, ok := identity.ParseRole(role)
	if !ok {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(parsed.Subject(), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(parsed)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}
