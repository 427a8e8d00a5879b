package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	"github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Validate     *validator.Validate
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	validate     *validator.Validate
	repo         domain.Repository
	customerRepo customerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("load.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		validate:     p.Validate,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateLoadRequest) (domain.Load, error) {
	const op = "load.create"

	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.Commodity = strings.TrimSpace(req.Commodity)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.Load{}, billingerr.Validation(op, fieldError(err))
	}
	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidCustomer)
	}

	rate := decimal.NullDecimal{}
	if req.RateCustomer != nil {
		if req.RateCustomer.IsNegative() {
			return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidRate)
		}
		rate = decimal.NewNullDecimal(req.RateCustomer.Round(2))
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Load{}, billingerr.Dependency(op, err)
	}
	if customer == nil {
		return domain.Load{}, billingerr.NotFound(op, domain.ErrCustomerNotFound)
	}

	now := s.clock.Now()
	load := domain.Load{
		ID:           s.genID.Generate(),
		CustomerID:   customerID,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Commodity:    req.Commodity,
		Status:       domain.StatusPendingPickup,
		PickupDate:   utcPtr(req.PickupDate),
		RateCustomer: rate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &load); err != nil {
		return domain.Load{}, billingerr.Dependency(op, err)
	}
	return load, nil
}

// UpdateStatus moves a load along Pending Pickup -> In Transit -> Delivered, or to Cancelled
// before delivery. The write is conditional on the status read, so a concurrent change surfaces
// as a conflict instead of being overwritten.
func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.UpdateStatusRequest) (domain.Load, error) {
	const op = "load.update_status"

	loadID, err := parseID(id)
	if err != nil {
		return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidID)
	}
	next, ok := domain.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidStatus)
	}

	current, err := s.repo.FindByID(ctx, s.db, loadID)
	if err != nil {
		return domain.Load{}, billingerr.Dependency(op, err)
	}
	if current == nil {
		return domain.Load{}, billingerr.NotFound(op, domain.ErrNotFound)
	}
	if current.InvoiceID != nil {
		return domain.Load{}, billingerr.Validation(op, domain.ErrAlreadyInvoiced)
	}
	if !current.Status.CanTransitionTo(next) {
		return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	var deliveryDate *time.Time
	if next == domain.StatusDelivered {
		delivered := now
		if req.DeliveryDate != nil {
			delivered = req.DeliveryDate.UTC()
		}
		deliveryDate = &delivered
	}

	affected, err := s.repo.UpdateStatus(ctx, s.db, loadID, current.Status, next, deliveryDate, now)
	if err != nil {
		return domain.Load{}, billingerr.Dependency(op, err)
	}
	if affected == 0 {
		return domain.Load{}, billingerr.Conflict(op, domain.ErrStatusChanged)
	}

	current.Status = next
	current.UpdatedAt = now
	if deliveryDate != nil {
		current.DeliveryDate = deliveryDate
	}
	s.log.Info("load status updated",
		zap.String("load_id", loadID.String()),
		zap.String("status", string(next)),
	)
	return *current, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Load, error) {
	const op = "load.get"

	loadID, err := parseID(id)
	if err != nil {
		return domain.Load{}, billingerr.Validation(op, domain.ErrInvalidID)
	}
	load, err := s.repo.FindByID(ctx, s.db, loadID)
	if err != nil {
		return domain.Load{}, billingerr.Dependency(op, err)
	}
	if load == nil {
		return domain.Load{}, billingerr.NotFound(op, domain.ErrNotFound)
	}
	return *load, nil
}

func (s *Service) List(ctx context.Context, req domain.ListLoadRequest) (domain.ListLoadResponse, error) {
	const op = "load.list"

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	pageSize = min(pageSize, pagination.MaxPageSize)

	filter := domain.ListLoadFilter{Limit: pageSize + 1}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		customerID, err := parseID(raw)
		if err != nil {
			return domain.ListLoadResponse{}, billingerr.Validation(op, domain.ErrInvalidCustomer)
		}
		filter.CustomerID = customerID
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListLoadResponse{}, billingerr.Validation(op, domain.ErrInvalidStatus)
		}
		filter.Status = status
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListLoadResponse{}, billingerr.Validation(op, err)
	}
	if cursor != nil {
		if filter.BeforeID, err = parseID(cursor.ID); err != nil {
			return domain.ListLoadResponse{}, billingerr.Validation(op, pagination.ErrInvalidPageToken)
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListLoadResponse{}, billingerr.Dependency(op, err)
	}
	items, pageInfo := pagination.Trim(items, pageSize, func(l *domain.Load) pagination.Cursor {
		return pagination.Cursor{ID: l.ID.String()}
	})

	loads := make([]domain.Load, 0, len(items))
	for _, item := range items {
		loads = append(loads, *item)
	}
	return domain.ListLoadResponse{PageInfo: pageInfo, Loads: loads}, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func fieldError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "CustomerID":
		return domain.ErrInvalidCustomer
	case "Origin":
		return domain.ErrInvalidOrigin
	case "Destination":
		return domain.ErrInvalidDest
	case "Commodity":
		return domain.ErrInvalidCommodity
	case "Status":
		return domain.ErrInvalidStatus
	default:
		return err
	}
}
