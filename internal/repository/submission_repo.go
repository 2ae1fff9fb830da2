package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openvbs/arbiter/internal/models"
)

// SubmissionQuery narrows submission listings.
type SubmissionQuery struct {
	EvaluationID *uuid.UUID
	TaskRunID    *uuid.UUID
	TeamID       *uuid.UUID
}

// SubmissionRepository defines data operations for durable submissions.
// Create runs inside a transaction: a submission is either fully durable or
// not stored at all.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	List(ctx context.Context, query SubmissionQuery) ([]models.Submission, error)
	UpdateVerdict(ctx context.Context, id uuid.UUID, verdict string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(submission).Error
	})
}

func (r *submissionRepository) List(ctx context.Context, query SubmissionQuery) ([]models.Submission, error) {
	q := r.db.WithContext(ctx).Model(&models.Submission{})
	if query.EvaluationID != nil {
		q = q.Where("evaluation_id = ?", *query.EvaluationID)
	}
	if query.TaskRunID != nil {
		q = q.Where("task_run_id = ?", *query.TaskRunID)
	}
	if query.TeamID != nil {
		q = q.Where("team_id = ?", *query.TeamID)
	}

	var submissions []models.Submission
	if err := q.Order("submitted_at ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) UpdateVerdict(ctx context.Context, id uuid.UUID, verdict string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("verdict", verdict).Error
}
