package dto

import (
	"time"

	"clubmedia/internal/microservices/http-api/models"
)

// CreateMediaRequest: payload for POST /api/v1/media
type CreateMediaRequest struct {
	ClubID int64  `json:"club_id" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
	URL    string `json:"url" binding:"required,url"`
}

// CreateClubRequest: payload for POST /api/v1/clubs
type CreateClubRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

type MediaResponse struct {
	ID        int64     `json:"id"`
	ClubID    int64     `json:"club_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type MediaListResponse struct {
	Items    []MediaResponse `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func FromMediaModel(m models.MediaItem) MediaResponse {
	return MediaResponse{
		ID:        m.ID,
		ClubID:    m.ClubID,
		Title:     m.Title,
		Kind:      m.Kind,
		URL:       m.URL,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}
