package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clubmedia/internal/microservices/http-api/models"
	"clubmedia/internal/microservices/http-api/repository"
)

var (
	ErrInvalidKind     = errors.New("media kind must be photo, video or document")
	ErrAlreadyArchived = errors.New("media already archived")
)

var mediaKinds = map[string]bool{"photo": true, "video": true, "document": true}

type CreateMediaInput struct {
	ClubID int64
	Title  string
	Kind   string
	URL    string
}

type MediaService interface {
	Create(ctx context.Context, in CreateMediaInput) (*models.MediaItem, error)
	Get(ctx context.Context, id int64) (*models.MediaItem, error)
	ListByClub(ctx context.Context, clubID int64, page, pageSize int) ([]models.MediaItem, int64, error)
	Archive(ctx context.Context, id int64) (*models.MediaItem, error)
}

type mediaService struct {
	repo     repository.MediaRepository
	clubRepo repository.ClubRepository
}

func NewMediaService(repo repository.MediaRepository, clubRepo repository.ClubRepository) MediaService {
	return &mediaService{repo: repo, clubRepo: clubRepo}
}

func (s *mediaService) Create(ctx context.Context, in CreateMediaInput) (*models.MediaItem, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if !mediaKinds[kind] {
		return nil, ErrInvalidKind
	}
	// check the club inside the same transaction as the insert
	if _, err := s.clubRepo.GetByID(ctx, in.ClubID); err != nil {
		return nil, err
	}

	item := &models.MediaItem{
		ClubID: in.ClubID,
		Title:  strings.TrimSpace(in.Title),
		Kind:   kind,
		URL:    in.URL,
		Status: models.MediaStatusPending,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *mediaService) Get(ctx context.Context, id int64) (*models.MediaItem, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *mediaService) ListByClub(ctx context.Context, clubID int64, page, pageSize int) ([]models.MediaItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListByClub(ctx, clubID, page, pageSize)
}

func (s *mediaService) Archive(ctx context.Context, id int64) (*models.MediaItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == models.MediaStatusArchived {
		return nil, ErrAlreadyArchived
	}
	if err := s.repo.UpdateStatus(ctx, id, models.MediaStatusArchived); err != nil {
		return nil, fmt.Errorf("archive media %d: %w", id, err)
	}
	item.Status = models.MediaStatusArchived
	return item, nil
}
