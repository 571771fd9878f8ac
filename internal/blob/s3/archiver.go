package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// Uploader is the single blob operation the archiver needs.
type Uploader interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ArchiverConfig controls retention and batching of the alert export job.
type ArchiverConfig struct {
	Retention time.Duration // alerts older than this are exported and pruned
	BatchSize int
	Prefix    string // object key prefix, e.g. "alerts"
}

// Archiver moves alerts past their retention window out of PostgreSQL into
// object storage as JSON Lines, then prunes the exported rows. Each batch is
// uploaded before its rows are deleted, so a crash can duplicate an archive
// but never lose one.
type Archiver struct {
	alerts domain.AlertStore
	blob   Uploader
	cfg    ArchiverConfig
	logger *slog.Logger

	now func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(alerts domain.AlertStore, blob Uploader, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "alerts"
	}
	return &Archiver{
		alerts: alerts,
		blob:   blob,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "alert_archiver")),
		now:    time.Now,
	}
}

// Run exports and prunes all alerts past the retention window. It is safe to
// run concurrently across processes only under a distributed lock; the
// scheduler wires it that way.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().Add(-a.cfg.Retention)

	var exported int64
	for {
		batch, err := a.alerts.ListBefore(ctx, cutoff, a.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("archiver: list alerts: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		key := a.objectKey(batch[0].CreatedAt)
		body, err := encodeJSONL(batch)
		if err != nil {
			return fmt.Errorf("archiver: encode batch: %w", err)
		}

		if err := a.blob.Put(ctx, key, bytes.NewReader(body), "application/x-ndjson"); err != nil {
			return fmt.Errorf("archiver: upload %s: %w", key, err)
		}

		// Prune exactly the rows this archive holds. A timestamp cutoff would
		// also delete rows that tie with the batch's newest created_at but
		// were cut off by the list limit.
		ids := make([]string, len(batch))
		for i, alert := range batch {
			ids[i] = alert.ID
		}
		n, err := a.alerts.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("archiver: prune after %s: %w", key, err)
		}

		exported += int64(len(batch))
		a.logger.Info("alert batch archived",
			slog.String("key", key),
			slog.Int("alerts", len(batch)),
			slog.Int64("pruned", n),
		)

		if len(batch) < a.cfg.BatchSize {
			break
		}
	}

	if exported > 0 {
		a.logger.Info("archive pass complete", slog.Int64("exported", exported))
	}
	return nil
}

// objectKey partitions archives by the batch's oldest alert day.
func (a *Archiver) objectKey(oldest time.Time) string {
	return fmt.Sprintf("%s/%s/alerts-%s.jsonl",
		a.cfg.Prefix,
		oldest.UTC().Format("2006/01/02"),
		a.now().UTC().Format("20060102T150405.000000000Z"),
	)
}

// archivedAlert is the stable JSONL shape of one exported alert.
type archivedAlert struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Level     string             `json:"level"`
	Message   string             `json:"message"`
	Symbol    string             `json:"symbol,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func encodeJSONL(alerts []domain.RiskAlert) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range alerts {
		rec := archivedAlert{
			ID:        a.ID,
			Type:      string(a.Type),
			Level:     string(a.Level),
			Message:   a.Message,
			Metrics:   a.Metrics,
			CreatedAt: a.CreatedAt,
		}
		if a.Position != nil {
			rec.Symbol = a.Position.Symbol
		}
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
