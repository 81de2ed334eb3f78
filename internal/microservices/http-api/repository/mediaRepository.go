package repository

import (
	"context"
	"errors"
	"fmt"

	"clubmedia/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

var ErrMediaNotFound = errors.New("media not found")

type MediaRepository interface {
	Create(ctx context.Context, item *models.MediaItem) error
	GetByID(ctx context.Context, id int64) (*models.MediaItem, error)
	ListByClub(ctx context.Context, clubID int64, page, pageSize int) ([]models.MediaItem, int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type mediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, item *models.MediaItem) error {
	if item.Status == "" {
		item.Status = models.MediaStatusPending
	}
	if err := conn(ctx, r.db).Create(item).Error; err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

func (r *mediaRepository) GetByID(ctx context.Context, id int64) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := conn(ctx, r.db).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return &item, nil
}

func (r *mediaRepository) ListByClub(ctx context.Context, clubID int64, page, pageSize int) ([]models.MediaItem, int64, error) {
	var list []models.MediaItem
	var total int64

	db := conn(ctx, r.db)
	if err := db.Model(&models.MediaItem{}).Where("club_id = ?", clubID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count club media: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := db.Where("club_id = ?", clubID).
		Order("created_at desc").
		Limit(pageSize).
		Offset(offset).
		Find(&list).Error; err != nil {
		return nil, 0, fmt.Errorf("list club media: %w", err)
	}
	return list, total, nil
}

func (r *mediaRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result := conn(ctx, r.db).
		Model(&models.MediaItem{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update media status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}
