package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openvbs/arbiter/internal/models"
)

// EvaluationRepository defines data operations for persisted runs.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetByID(ctx context.Context, id uuid.UUID) (models.Evaluation, error)
	List(ctx context.Context) ([]models.Evaluation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveTaskRun(ctx context.Context, taskRun *models.TaskRun) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).Preload("Teams").First(&evaluation, "id = ?", id).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) List(ctx context.Context) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).Preload("Teams").Order("created_at DESC").Find(&evaluations).Error; err != nil {
		return nil, err
	}
	return evaluations, nil
}

func (r *evaluationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Evaluation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *evaluationRepository) SaveTaskRun(ctx context.Context, taskRun *models.TaskRun) error {
	return r.db.WithContext(ctx).Save(taskRun).Error
}
