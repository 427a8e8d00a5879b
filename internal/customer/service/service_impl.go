package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/customer/domain"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Validate *validator.Validate
	Repo     domain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	validate *validator.Validate
	repo     domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		validate: p.Validate,
		repo:     p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	const op = "customer.create"

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.Customer{}, billingerr.Validation(op, fieldError(err))
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:                    s.genID.Generate(),
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 req.Phone,
		PaymentTerms:          req.PaymentTerms,
		ConsolidatedInvoicing: req.ConsolidatedInvoicing,
		Metadata:              datatypes.JSONMap{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, billingerr.Dependency(op, err)
	}

	s.log.Info("customer created", zap.String("customer_id", customer.ID.String()))
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	const op = "customer.list"

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.MaxPageSize {
		pageSize = pagination.MaxPageSize
	}

	filter := domain.ListCustomerFilter{
		Name:  strings.ToLower(strings.TrimSpace(req.Name)),
		Limit: pageSize + 1,
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListCustomerResponse{}, billingerr.Validation(op, err)
	}
	if cursor != nil {
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListCustomerResponse{}, billingerr.Validation(op, pagination.ErrInvalidPageToken)
		}
		filter.BeforeID = id
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListCustomerResponse{}, billingerr.Dependency(op, err)
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(c *domain.Customer) pagination.Cursor {
		return pagination.Cursor{ID: c.ID.String()}
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		customers = append(customers, *item)
	}
	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	const op = "customer.get"

	customerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || customerID == 0 {
		return domain.Customer{}, billingerr.Validation(op, domain.ErrInvalidID)
	}

	item, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, billingerr.Dependency(op, err)
	}
	if item == nil {
		return domain.Customer{}, billingerr.NotFound(op, domain.ErrNotFound)
	}
	return *item, nil
}

func fieldError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Name":
		return domain.ErrInvalidName
	case "Email":
		return domain.ErrInvalidEmail
	case "Phone":
		return domain.ErrInvalidPhone
	case "PaymentTerms":
		return domain.ErrInvalidPaymentTerms
	default:
		return err
	}
}
