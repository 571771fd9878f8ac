package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination and time filters for history queries.
type ListOpts struct {
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// PositionStore persists trading positions. The scheduled jobs only read
// open positions and write marks (GetOpen, Update); Create, Close, GetByID,
// and ListHistory are the intake and review surface for whatever feeds
// positions into the system.
type PositionStore interface {
	Create(ctx context.Context, p Position) error
	Update(ctx context.Context, p Position) error
	Close(ctx context.Context, id string, exitPrice float64) error
	GetByID(ctx context.Context, id string) (Position, error)
	GetOpen(ctx context.Context) ([]Position, error)
	ListHistory(ctx context.Context, opts ListOpts) ([]Position, error)
}

// AlertStore is an append-only audit log of emitted risk alerts. Deletion is
// by ID so the archiver can prune exactly the rows it exported, even when
// several alerts share a creation timestamp.
type AlertStore interface {
	Record(ctx context.Context, a RiskAlert) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]RiskAlert, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}
