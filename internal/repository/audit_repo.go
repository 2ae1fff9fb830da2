package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openvbs/arbiter/internal/models"
)

// AuditQuery narrows audit listings.
type AuditQuery struct {
	EvaluationID *uuid.UUID
	Action       string
	Limit        int
}

// AuditRepository stores the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, query AuditQuery) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository instantiates the repository.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, query AuditQuery) ([]models.AuditEntry, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if query.EvaluationID != nil {
		q = q.Where("evaluation_id = ?", *query.EvaluationID)
	}
	if query.Action != "" {
		q = q.Where("action = ?", query.Action)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var entries []models.AuditEntry
	if err := q.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
