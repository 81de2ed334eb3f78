package service

import (
	"context"
	"strings"

	"clubmedia/internal/microservices/http-api/models"
	"clubmedia/internal/microservices/http-api/repository"
)

type ClubService interface {
	Create(ctx context.Context, name, slug string) (*models.Club, error)
	Get(ctx context.Context, id int64) (*models.Club, error)
}

type clubService struct {
	repo repository.ClubRepository
}

func NewClubService(repo repository.ClubRepository) ClubService {
	return &clubService{repo: repo}
}

func (s *clubService) Create(ctx context.Context, name, slug string) (*models.Club, error) {
	club := &models.Club{
		Name: strings.TrimSpace(name),
		Slug: strings.ToLower(strings.TrimSpace(slug)),
	}
	if err := s.repo.Create(ctx, club); err != nil {
		return nil, err
	}
	return club, nil
}

func (s *clubService) Get(ctx context.Context, id int64) (*models.Club, error) {
	return s.repo.GetByID(ctx, id)
}
