package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func alert(level domain.AlertLevel) domain.RiskAlert {
	return domain.RiskAlert{
		ID:        "a1",
		Type:      domain.AlertDrawdown,
		Level:     level,
		Message:   "drawdown 12.5% exceeds warning threshold",
		Metrics:   map[string]float64{"drawdown_pct": 12.5},
		CreatedAt: time.Now(),
	}
}

func TestSeverityFloor(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, domain.AlertLevelWarning, slog.Default())

	require.NoError(t, n.NotifyAlert(context.Background(), alert(domain.AlertLevelInfo)))
	assert.Empty(t, s.titles)

	require.NoError(t, n.NotifyAlert(context.Background(), alert(domain.AlertLevelWarning)))
	require.Len(t, s.titles, 1)
	assert.Equal(t, "[WARNING] drawdown", s.titles[0])
	assert.Contains(t, s.bodies[0], "drawdown_pct=12.5000")
}

func TestEmptyFloorForwardsEverything(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, "", slog.Default())

	require.NoError(t, n.NotifyAlert(context.Background(), alert(domain.AlertLevelInfo)))
	assert.Len(t, s.titles, 1)
}

func TestBrokenSenderDoesNotBlockOthers(t *testing.T) {
	broken := &fakeSender{name: "broken", err: errors.New("webhook down")}
	healthy := &fakeSender{name: "healthy"}
	n := NewNotifier([]Sender{broken, healthy}, "", slog.Default())

	err := n.NotifyAlert(context.Background(), alert(domain.AlertLevelCritical))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Len(t, healthy.titles, 1)
}

func TestJobFailureBypassesFloor(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, domain.AlertLevelCritical, slog.Default())

	require.NoError(t, n.NotifyJobFailure(context.Background(), "risk_check", 3, errors.New("db unreachable")))
	require.Len(t, s.titles, 1)
	assert.Contains(t, s.bodies[0], "risk_check")
	assert.Contains(t, s.bodies[0], "3 attempt(s)")
}

func TestPositionDetailInBody(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, "", slog.Default())

	p := domain.Position{
		ID:            "p1",
		Symbol:        "BTCUSDT",
		Side:          domain.SideBuy,
		Size:          domain.MustQuantity(0.5),
		EntryPrice:    60000,
		CurrentPrice:  54000,
		UnrealizedPnL: -3000,
	}
	a := alert(domain.AlertLevelCritical)
	a.Type = domain.AlertStopLoss
	a.Position = &p

	require.NoError(t, n.NotifyAlert(context.Background(), a))
	require.Len(t, s.bodies, 1)
	assert.Contains(t, s.bodies[0], "BTCUSDT")
	assert.Contains(t, s.bodies[0], "pnl=-3000.00")
}
