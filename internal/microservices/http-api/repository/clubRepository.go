package repository

import (
	"context"
	"errors"
	"fmt"

	"clubmedia/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

var ErrClubNotFound = errors.New("club not found")

type ClubRepository interface {
	Create(ctx context.Context, club *models.Club) error
	GetByID(ctx context.Context, id int64) (*models.Club, error)
}

type clubRepository struct {
	db *gorm.DB
}

func NewClubRepository(db *gorm.DB) ClubRepository {
	return &clubRepository{db: db}
}

func (r *clubRepository) Create(ctx context.Context, club *models.Club) error {
	if err := conn(ctx, r.db).Create(club).Error; err != nil {
		return fmt.Errorf("create club: %w", err)
	}
	return nil
}

func (r *clubRepository) GetByID(ctx context.Context, id int64) (*models.Club, error) {
	var club models.Club
	if err := conn(ctx, r.db).First(&club, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClubNotFound
		}
		return nil, fmt.Errorf("get club: %w", err)
	}
	return &club, nil
}
