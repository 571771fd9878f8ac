package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL. The position
// snapshot and metrics map are stored as JSONB since they are audit payload,
// never queried by field.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates an AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Record appends one alert to the audit log.
func (s *AlertStore) Record(ctx context.Context, a domain.RiskAlert) error {
	var positionJSON []byte
	if a.Position != nil {
		b, err := json.Marshal(alertPosition(*a.Position))
		if err != nil {
			return fmt.Errorf("postgres: marshal alert position: %w", err)
		}
		positionJSON = b
	}

	var metricsJSON []byte
	if a.Metrics != nil {
		b, err := json.Marshal(a.Metrics)
		if err != nil {
			return fmt.Errorf("postgres: marshal alert metrics: %w", err)
		}
		metricsJSON = b
	}

	const query = `
		INSERT INTO risk_alerts (id, type, level, message, position, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, string(a.Type), string(a.Level), a.Message,
		positionJSON, metricsJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record alert %s: %w", a.ID, err)
	}
	return nil
}

// ListBefore returns up to limit alerts created strictly before cutoff,
// oldest first, for export. Ties on created_at are broken by id so repeated
// calls page through them deterministically.
func (s *AlertStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.RiskAlert, error) {
	const query = `
		SELECT id, type, level, message, position, metrics, created_at
		FROM risk_alerts
		WHERE created_at < $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var alerts []domain.RiskAlert
	for rows.Next() {
		var a domain.RiskAlert
		var typ, level string
		var positionJSON, metricsJSON []byte

		if err := rows.Scan(&a.ID, &typ, &level, &a.Message, &positionJSON, &metricsJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		a.Type = domain.AlertType(typ)
		a.Level = domain.AlertLevel(level)

		if len(positionJSON) > 0 {
			var ap positionSnapshot
			if err := json.Unmarshal(positionJSON, &ap); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal alert position: %w", err)
			}
			p, err := ap.toDomain()
			if err != nil {
				return nil, fmt.Errorf("postgres: alert position: %w", err)
			}
			a.Position = &p
		}
		if len(metricsJSON) > 0 {
			if err := json.Unmarshal(metricsJSON, &a.Metrics); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal alert metrics: %w", err)
			}
		}

		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return alerts, nil
}

// DeleteByIDs removes the given alerts, reporting how many rows were pruned.
// Unknown IDs are ignored.
func (s *AlertStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM risk_alerts WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d alerts: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// positionSnapshot is the JSONB shape of the position embedded in an alert.
// It exists because domain.Position keeps its size behind a validated type.
type positionSnapshot struct {
	ID            string     `json:"id"`
	MarketID      string     `json:"market_id"`
	Symbol        string     `json:"symbol"`
	Side          string     `json:"side"`
	Size          float64    `json:"size"`
	EntryPrice    float64    `json:"entry_price"`
	CurrentPrice  float64    `json:"current_price"`
	RealizedPnL   float64    `json:"realized_pnl"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	OpenedAt      time.Time  `json:"opened_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

func alertPosition(p domain.Position) positionSnapshot {
	return positionSnapshot{
		ID:            p.ID,
		MarketID:      p.MarketID,
		Symbol:        p.Symbol,
		Side:          string(p.Side),
		Size:          p.Size.Amount(),
		EntryPrice:    p.EntryPrice,
		CurrentPrice:  p.CurrentPrice,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL,
		OpenedAt:      p.OpenedAt,
		UpdatedAt:     p.UpdatedAt,
		ClosedAt:      p.ClosedAt,
	}
}

func (ps positionSnapshot) toDomain() (domain.Position, error) {
	qty, err := domain.NewQuantity(ps.Size)
	if err != nil {
		return domain.Position{}, err
	}
	return domain.Position{
		ID:            ps.ID,
		MarketID:      ps.MarketID,
		Symbol:        ps.Symbol,
		Side:          domain.Side(ps.Side),
		Size:          qty,
		EntryPrice:    ps.EntryPrice,
		CurrentPrice:  ps.CurrentPrice,
		RealizedPnL:   ps.RealizedPnL,
		UnrealizedPnL: ps.UnrealizedPnL,
		OpenedAt:      ps.OpenedAt,
		UpdatedAt:     ps.UpdatedAt,
		ClosedAt:      ps.ClosedAt,
	}, nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
