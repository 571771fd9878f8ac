package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/risk"
)

// AlertSink receives alerts raised by a risk pass. *notify.Notifier satisfies
// it.
type AlertSink interface {
	NotifyAlert(ctx context.Context, a domain.RiskAlert) error
}

// RiskService runs the periodic risk evaluation: load the position snapshot,
// evaluate it, persist and deliver whatever alerts fire.
type RiskService struct {
	positions domain.PositionStore
	engine    *risk.Engine
	alerts    domain.AlertStore
	sink      AlertSink
	logger    *slog.Logger
}

// NewRiskService creates a RiskService. alerts and sink may each be nil when
// the corresponding output is not wired.
func NewRiskService(
	positions domain.PositionStore,
	engine *risk.Engine,
	alerts domain.AlertStore,
	sink AlertSink,
	logger *slog.Logger,
) *RiskService {
	return &RiskService{
		positions: positions,
		engine:    engine,
		alerts:    alerts,
		sink:      sink,
		logger:    logger.With(slog.String("component", "risk_service")),
	}
}

// RunCheck executes one evaluation pass. Recording or delivering an alert is
// best-effort: a broken audit table or webhook is logged, never allowed to
// suppress the remaining alerts.
func (s *RiskService) RunCheck(ctx context.Context) error {
	snapshot, err := s.positions.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("service: load open positions: %w", err)
	}

	raised := s.engine.EvaluateAllPositions(snapshot)
	for _, a := range raised {
		if s.alerts != nil {
			if err := s.alerts.Record(ctx, a); err != nil {
				s.logger.Warn("alert record failed",
					slog.String("alert", a.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if s.sink != nil {
			if err := s.sink.NotifyAlert(ctx, a); err != nil {
				s.logger.Warn("alert delivery failed",
					slog.String("alert", a.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if len(raised) > 0 {
		s.logger.Info("risk check raised alerts", slog.Int("alerts", len(raised)))
	}
	return nil
}

// Snapshot computes the current aggregate metrics without raising alerts.
func (s *RiskService) Snapshot(ctx context.Context) (domain.RiskMetrics, error) {
	positions, err := s.positions.GetOpen(ctx)
	if err != nil {
		return domain.RiskMetrics{}, fmt.Errorf("service: load open positions: %w", err)
	}
	return s.engine.EvaluateRisk(positions), nil
}
