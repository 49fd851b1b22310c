package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CourseRepository — чтение каталога курсов.
type CourseRepository interface {
	// ExistingIDs возвращает те из ids, которые есть в каталоге.
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository создаёт репозиторий каталога.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []int64
	if err := r.db.WithContext(ctx).
		Model(&CourseModel{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("ошибка чтения курсов: %w", err)
	}
	return found, nil
}
