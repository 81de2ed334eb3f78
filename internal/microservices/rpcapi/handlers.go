// Package rpcapi holds the media RPC methods. Each call runs in its own pgx
// transaction.
package rpcapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"clubmedia/internal/microservices/http-api/models"
	"clubmedia/internal/rpc"
	"clubmedia/internal/txscope"
)

var (
	ErrInvalidParams = errors.New("invalid params")
	ErrMediaNotFound = errors.New("media not found")
)

type setStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type mediaCountParams struct {
	ClubID int64  `json:"club_id"`
	Status string `json:"status"`
}

// Register adds the media methods to reg. system.ping does not touch the database.
func Register(reg *rpc.Registry, client txscope.Client[pgx.Tx], timeout time.Duration) {
	reg.Register("media.setStatus", rpc.Transactional(client, timeout, SetStatus))
	reg.Register("club.mediaCount", rpc.Transactional(client, timeout, MediaCount))
	reg.RegisterFunc("system.ping", Ping)
}

// SetStatus moves a media item to a new status and returns the updated row.
func SetStatus(ctx context.Context, tx pgx.Tx, params map[string]any) (any, error) {
	var p setStatusParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.ID <= 0 || !models.ValidMediaStatus(p.Status) {
		return nil, fmt.Errorf("%w: id=%d status=%q", ErrInvalidParams, p.ID, p.Status)
	}

	var (
		clubID    int64
		updatedAt time.Time
	)
	err := tx.QueryRow(ctx,
		`UPDATE media_items SET status = $1, updated_at = now() WHERE id = $2 RETURNING club_id, updated_at`,
		p.Status, p.ID,
	).Scan(&clubID, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrMediaNotFound, p.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("update media status: %w", err)
	}

	return map[string]any{
		"id":         p.ID,
		"club_id":    clubID,
		"status":     p.Status,
		"updated_at": updatedAt,
	}, nil
}

// MediaCount counts a club's media, optionally only those with one status.
func MediaCount(ctx context.Context, tx pgx.Tx, params map[string]any) (any, error) {
	var p mediaCountParams
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.ClubID <= 0 {
		return nil, fmt.Errorf("%w: club_id=%d", ErrInvalidParams, p.ClubID)
	}
	if p.Status != "" && !models.ValidMediaStatus(p.Status) {
		return nil, fmt.Errorf("%w: status=%q", ErrInvalidParams, p.Status)
	}

	var count int64
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM media_items WHERE club_id = $1 AND ($2::text = '' OR status = $2::text)`,
		p.ClubID, p.Status,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count club media: %w", err)
	}
	return map[string]any{"club_id": p.ClubID, "count": count}, nil
}

func Ping(ctx context.Context, params map[string]any) (any, error) {
	return map[string]any{"pong": true, "time": time.Now().UTC()}, nil
}
