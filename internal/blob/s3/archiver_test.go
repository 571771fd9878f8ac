package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

type memAlertStore struct {
	alerts []domain.RiskAlert
}

func (s *memAlertStore) Record(ctx context.Context, a domain.RiskAlert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *memAlertStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.RiskAlert, error) {
	var out []domain.RiskAlert
	for _, a := range s.alerts {
		if a.CreatedAt.Before(cutoff) {
			out = append(out, a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memAlertStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []domain.RiskAlert
	var n int64
	for _, a := range s.alerts {
		if drop[a.ID] {
			n++
			continue
		}
		kept = append(kept, a)
	}
	s.alerts = kept
	return n, nil
}

type memUploader struct {
	keys    []string
	objects map[string][]byte
}

func (u *memUploader) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.keys = append(u.keys, key)
	u.objects[key] = b
	return nil
}

func makeAlert(id string, age time.Duration, now time.Time) domain.RiskAlert {
	return domain.RiskAlert{
		ID:        id,
		Type:      domain.AlertDrawdown,
		Level:     domain.AlertLevelWarning,
		Message:   "drawdown threshold crossed",
		Metrics:   map[string]float64{"drawdown_pct": 15},
		CreatedAt: now.Add(-age),
	}
}

func TestArchiverExportsAndPrunes(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	store := &memAlertStore{}
	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		store.alerts = append(store.alerts, makeAlert(string(rune('a'+i)), age, now))
	}

	up := &memUploader{}
	arch := NewArchiver(store, up, ArchiverConfig{Retention: 24 * time.Hour}, slog.Default())
	arch.now = func() time.Time { return now }

	require.NoError(t, arch.Run(context.Background()))

	// Two old alerts exported as one batch, the fresh one kept.
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "alerts/2026/08/29/"))

	lines := bytes.Split(bytes.TrimSpace(up.objects[up.keys[0]]), []byte("\n"))
	assert.Len(t, lines, 2)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, "c", store.alerts[0].ID)
}

func TestArchiverBatches(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	store := &memAlertStore{}
	for i := 0; i < 5; i++ {
		a := makeAlert("x", 48*time.Hour, now)
		a.ID = string(rune('a' + i))
		a.CreatedAt = a.CreatedAt.Add(time.Duration(i) * time.Minute)
		store.alerts = append(store.alerts, a)
	}

	up := &memUploader{}
	arch := NewArchiver(store, up, ArchiverConfig{Retention: 24 * time.Hour, BatchSize: 2}, slog.Default())
	arch.now = func() time.Time { return now }

	require.NoError(t, arch.Run(context.Background()))

	// 5 alerts at batch size 2 means 3 uploads.
	assert.Len(t, up.keys, 3)
	assert.Empty(t, store.alerts)
}

func TestArchiverKeepsTiedTimestampsAcrossBatches(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// One risk pass stamps all of its alerts with the same time, so ties
	// straddling a batch boundary are the normal case, not a corner.
	store := &memAlertStore{}
	for _, id := range []string{"a", "b", "c"} {
		store.alerts = append(store.alerts, makeAlert(id, 48*time.Hour, now))
	}

	up := &memUploader{}
	arch := NewArchiver(store, up, ArchiverConfig{Retention: 24 * time.Hour, BatchSize: 2}, slog.Default())

	// Advance the clock per call so each batch gets a distinct object key.
	tick := now
	arch.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	require.NoError(t, arch.Run(context.Background()))

	archived := make(map[string]bool)
	for _, key := range up.keys {
		for _, line := range bytes.Split(bytes.TrimSpace(up.objects[key]), []byte("\n")) {
			var rec archivedAlert
			require.NoError(t, json.Unmarshal(line, &rec))
			archived[rec.ID] = true
		}
	}

	// Every pruned alert must appear in an archive.
	assert.Empty(t, store.alerts)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, archived)
}

func TestArchiverNoopWhenNothingExpired(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	store := &memAlertStore{alerts: []domain.RiskAlert{makeAlert("a", time.Hour, now)}}
	up := &memUploader{}
	arch := NewArchiver(store, up, ArchiverConfig{Retention: 24 * time.Hour}, slog.Default())
	arch.now = func() time.Time { return now }

	require.NoError(t, arch.Run(context.Background()))
	assert.Empty(t, up.keys)
	assert.Len(t, store.alerts, 1)
}
