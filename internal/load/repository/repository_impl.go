package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tmsbilling/internal/load/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, load *domain.Load) error {
	return db.WithContext(ctx).Create(load).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Load, error) {
	var loads []domain.Load
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&loads).Error; err != nil {
		return nil, err
	}
	if len(loads) == 0 {
		return nil, nil
	}
	return &loads[0], nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Load, error) {
	var loads []domain.Load
	if len(ids) == 0 {
		return loads, nil
	}
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&loads).Error
	return loads, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListLoadFilter) ([]*domain.Load, error) {
	stmt := db.WithContext(ctx).Model(&domain.Load{})
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var loads []*domain.Load
	if err := stmt.Order("id desc").Find(&loads).Error; err != nil {
		return nil, err
	}
	return loads, nil
}

func (r *repo) ListByInvoiceIDs(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]domain.Load, error) {
	out := make(map[snowflake.ID][]domain.Load, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var loads []domain.Load
	err := db.WithContext(ctx).
		Where("invoice_id IN ?", invoiceIDs).
		Order("delivery_date asc, id asc").
		Find(&loads).Error
	if err != nil {
		return nil, err
	}
	for _, l := range loads {
		out[*l.InvoiceID] = append(out[*l.InvoiceID], l)
	}
	return out, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, deliveryDate *time.Time, now time.Time) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if deliveryDate != nil {
		updates["delivery_date"] = *deliveryDate
	}
	res := db.WithContext(ctx).
		Model(&domain.Load{}).
		Where("id = ? AND status = ? AND invoice_id IS NULL", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repo) LinkToInvoice(ctx context.Context, db *gorm.DB, invoiceID, customerID snowflake.ID, ids []snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Load{}).
		Where("id IN ? AND customer_id = ? AND status = ? AND invoice_id IS NULL", ids, customerID, domain.StatusDelivered).
		Updates(map[string]any{
			"invoice_id": invoiceID,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
