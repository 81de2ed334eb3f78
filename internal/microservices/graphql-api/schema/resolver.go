package schema

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/graph-gophers/graphql-go"

	"clubmedia/internal/microservices/http-api/models"
	"clubmedia/internal/microservices/http-api/repository"
	"clubmedia/internal/microservices/http-api/service"
)

type Resolver struct {
	svc service.MediaService
}

func (r *Resolver) Media(ctx context.Context, args struct{ ID graphql.ID }) (*mediaResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	item, err := r.svc.Get(ctx, id)
	if errors.Is(err, repository.ErrMediaNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mediaResolver{m: *item}, nil
}

type clubMediaArgs struct {
	ClubID   graphql.ID
	Page     *int32
	PageSize *int32
}

func (r *Resolver) ClubMedia(ctx context.Context, args clubMediaArgs) (*mediaPageResolver, error) {
	clubID, err := parseID(args.ClubID)
	if err != nil {
		return nil, err
	}
	page, pageSize := 1, 20
	if args.Page != nil {
		page = int(*args.Page)
	}
	if args.PageSize != nil {
		pageSize = int(*args.PageSize)
	}
	list, total, err := r.svc.ListByClub(ctx, clubID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &mediaPageResolver{items: list, total: total}, nil
}

type createMediaArgs struct {
	Input struct {
		ClubID graphql.ID
		Title  string
		Kind   string
		URL    string
	}
}

func (r *Resolver) CreateMedia(ctx context.Context, args createMediaArgs) (*mediaResolver, error) {
	clubID, err := parseID(args.Input.ClubID)
	if err != nil {
		return nil, err
	}
	item, err := r.svc.Create(ctx, service.CreateMediaInput{
		ClubID: clubID,
		Title:  args.Input.Title,
		Kind:   args.Input.Kind,
		URL:    args.Input.URL,
	})
	if err != nil {
		return nil, err
	}
	return &mediaResolver{m: *item}, nil
}

func (r *Resolver) ArchiveMedia(ctx context.Context, args struct{ ID graphql.ID }) (*mediaResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	item, err := r.svc.Archive(ctx, id)
	if err != nil {
		return nil, err
	}
	return &mediaResolver{m: *item}, nil
}

type mediaResolver struct {
	m models.MediaItem
}

func (r *mediaResolver) ID() graphql.ID     { return formatID(r.m.ID) }
func (r *mediaResolver) ClubID() graphql.ID { return formatID(r.m.ClubID) }
func (r *mediaResolver) Title() string      { return r.m.Title }
func (r *mediaResolver) Kind() string       { return r.m.Kind }
func (r *mediaResolver) URL() string        { return r.m.URL }
func (r *mediaResolver) Status() string     { return r.m.Status }
func (r *mediaResolver) CreatedAt() string  { return r.m.CreatedAt.UTC().Format(time.RFC3339) }

type mediaPageResolver struct {
	items []models.MediaItem
	total int64
}

func (r *mediaPageResolver) Items() []*mediaResolver {
	out := make([]*mediaResolver, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, &mediaResolver{m: m})
	}
	return out
}

func (r *mediaPageResolver) Total() int32 { return int32(r.total) }

func parseID(id graphql.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid id %q", id)
	}
	return n, nil
}

func formatID(id int64) graphql.ID {
	return graphql.ID(strconv.FormatInt(id, 10))
}
