package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clubmedia/internal/microservices/http-api/dto"
	"clubmedia/internal/microservices/http-api/repository"
	"clubmedia/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	svc service.MediaService
}

func NewMediaHandler(svc service.MediaService) *MediaHandler {
	return &MediaHandler{svc: svc}
}

func (h *MediaHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:media_id", h.Get)
	rg.POST("/:media_id/archive", h.Archive)
}

func (h *MediaHandler) Create(c *gin.Context) {
	var req dto.CreateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.svc.Create(ctx, service.CreateMediaInput{
		ClubID: req.ClubID,
		Title:  req.Title,
		Kind:   req.Kind,
		URL:    req.URL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidKind):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrClubNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "club not found"})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, dto.FromMediaModel(*item))
}

func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "media_id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromMediaModel(*item))
}

func (h *MediaHandler) Archive(c *gin.Context) {
	id, ok := parseID(c, "media_id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.svc.Archive(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMediaNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		case errors.Is(err, service.ErrAlreadyArchived):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			internalError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, dto.FromMediaModel(*item))
}

// ListByClub serves GET /clubs/:club_id/media
func (h *MediaHandler) ListByClub(c *gin.Context) {
	clubID, ok := parseID(c, "club_id")
	if !ok {
		return
	}

	page := 1
	pageSize := 20
	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.svc.ListByClub(ctx, clubID, page, pageSize)
	if err != nil {
		internalError(c, err)
		return
	}

	items := make([]dto.MediaResponse, 0, len(list))
	for _, m := range list {
		items = append(items, dto.FromMediaModel(m))
	}
	c.JSON(http.StatusOK, dto.MediaListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}

// internalError records err for the middleware chain and answers with a generic fault.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
