package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clubmedia/internal/microservices/http-api/dto"
	"clubmedia/internal/microservices/http-api/repository"
	"clubmedia/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type ClubHandler struct {
	svc   service.ClubService
	media *MediaHandler
}

func NewClubHandler(svc service.ClubService, media *MediaHandler) *ClubHandler {
	return &ClubHandler{svc: svc, media: media}
}

func (h *ClubHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:club_id", h.Get)
	rg.GET("/:club_id/media", h.media.ListByClub)
}

func (h *ClubHandler) Create(c *gin.Context) {
	var req dto.CreateClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	club, err := h.svc.Create(ctx, req.Name, req.Slug)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, club)
}

func (h *ClubHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "club_id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	club, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClubNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "club not found"})
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, club)
}
