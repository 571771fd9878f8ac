// Package risk turns position snapshots into quantified portfolio metrics and
// threshold-based alerts. The engine is stateless apart from the running PnL
// peak used for drawdown tracking.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/query"
)

// Config holds the tunable thresholds for risk evaluation. Percentages are
// expressed as positive numbers (StopLossPct 10 means alert at -10% PnL).
type Config struct {
	StopLossPct         float64
	TakeProfitPct       float64
	DrawdownWarnPct     float64
	DrawdownCriticalPct float64
	MaxPositions        int
	MaxExposure         float64
}

// scoreWeights for the composite risk score. The blend is a tunable policy;
// the score stays in [0,100] and never decreases when exposure or drawdown
// grows.
const (
	weightExposure  = 40.0
	weightDrawdown  = 40.0
	weightPositions = 20.0
)

// Engine evaluates position snapshots against the configured thresholds.
// Safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	peakPnL float64 // running peak of aggregate PnL, floored at 0
}

// NewEngine creates a risk Engine with the given thresholds.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk_engine")),
	}
}

// EvaluateAllPositions applies every threshold rule to the open positions in
// the snapshot and returns the alerts raised this pass. Each rule emits at
// most one alert per position (or per portfolio for aggregate rules) per
// pass; suppressing repeats across passes is the notifier's concern. An empty
// snapshot yields no alerts.
func (e *Engine) EvaluateAllPositions(positions []domain.Position) []domain.RiskAlert {
	open := query.OpenPositions(positions)
	if len(open) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var alerts []domain.RiskAlert

	for _, p := range open {
		pnlPct := p.UnrealizedPnLPct()

		if e.cfg.StopLossPct > 0 && pnlPct <= -e.cfg.StopLossPct {
			alerts = append(alerts, e.newAlert(domain.AlertStopLoss, domain.AlertLevelCritical,
				fmt.Sprintf("position %s down %.2f%% (stop-loss %.2f%%)", p.ID, -pnlPct, e.cfg.StopLossPct),
				&p, map[string]float64{"pnl_pct": pnlPct}, now))
		}

		if e.cfg.TakeProfitPct > 0 && pnlPct >= e.cfg.TakeProfitPct {
			alerts = append(alerts, e.newAlert(domain.AlertTakeProfit, domain.AlertLevelInfo,
				fmt.Sprintf("position %s up %.2f%% (take-profit %.2f%%)", p.ID, pnlPct, e.cfg.TakeProfitPct),
				&p, map[string]float64{"pnl_pct": pnlPct}, now))
		}
	}

	metrics := e.EvaluateRisk(positions)

	if e.cfg.DrawdownWarnPct > 0 && metrics.DrawdownPercent >= e.cfg.DrawdownWarnPct {
		level := domain.AlertLevelWarning
		if e.cfg.DrawdownCriticalPct > 0 && metrics.DrawdownPercent >= e.cfg.DrawdownCriticalPct {
			level = domain.AlertLevelCritical
		}
		alerts = append(alerts, e.newAlert(domain.AlertDrawdown, level,
			fmt.Sprintf("portfolio drawdown %.2f%% (warn %.2f%%)", metrics.DrawdownPercent, e.cfg.DrawdownWarnPct),
			nil, metricsMap(metrics), now))
	}

	if e.cfg.MaxPositions > 0 && len(open) > e.cfg.MaxPositions {
		alerts = append(alerts, e.newAlert(domain.AlertPositionLimit, domain.AlertLevelWarning,
			fmt.Sprintf("open positions %d exceed cap %d", len(open), e.cfg.MaxPositions),
			nil, map[string]float64{"open_positions": float64(len(open))}, now))
	}

	if e.cfg.MaxExposure > 0 && metrics.TotalExposure > e.cfg.MaxExposure {
		alerts = append(alerts, e.newAlert(domain.AlertExposureLimit, domain.AlertLevelWarning,
			fmt.Sprintf("total exposure %.2f exceeds cap %.2f", metrics.TotalExposure, e.cfg.MaxExposure),
			nil, metricsMap(metrics), now))
	}

	e.logger.Debug("risk pass complete",
		slog.Int("open_positions", len(open)),
		slog.Int("alerts", len(alerts)),
		slog.Float64("exposure", metrics.TotalExposure),
		slog.Float64("drawdown_pct", metrics.DrawdownPercent),
	)

	return alerts
}

// EvaluateRisk computes the aggregate metrics for the snapshot. Drawdown is
// the percentage decline of aggregate PnL from its running peak; the peak is
// tracked across passes and floored at zero so a portfolio that has never
// been in profit reports no drawdown. An empty snapshot yields zero metrics
// and leaves the peak untouched.
func (e *Engine) EvaluateRisk(positions []domain.Position) domain.RiskMetrics {
	open := query.OpenPositions(positions)
	if len(open) == 0 {
		return domain.RiskMetrics{}
	}

	exposure := query.TotalExposure(open)
	aggregatePnL := query.SumBy(open, func(p domain.Position) float64 {
		return p.RealizedPnL + p.UnrealizedPnL
	})

	e.mu.Lock()
	if aggregatePnL > e.peakPnL {
		e.peakPnL = aggregatePnL
	}
	peak := e.peakPnL
	e.mu.Unlock()

	var drawdownPct float64
	if peak > 0 && aggregatePnL < peak {
		drawdownPct = (peak - aggregatePnL) / peak * 100
	}

	return domain.RiskMetrics{
		TotalExposure:   exposure,
		DrawdownPercent: drawdownPct,
		RiskScore:       e.score(exposure, drawdownPct, len(open)),
	}
}

// score blends exposure utilization, drawdown, and open-position count into a
// bounded [0,100] composite.
func (e *Engine) score(exposure, drawdownPct float64, openCount int) float64 {
	s := weightExposure*utilization(exposure, e.cfg.MaxExposure) +
		weightDrawdown*clamp01(drawdownPct/100) +
		weightPositions*utilization(float64(openCount), float64(e.cfg.MaxPositions))
	if s > 100 {
		s = 100
	}
	return s
}

// utilization maps value against a limit into [0,1]. Without a configured
// limit it falls back to a saturating curve so the score still grows with
// value.
func utilization(value, limit float64) float64 {
	if value <= 0 {
		return 0
	}
	if limit > 0 {
		return clamp01(value / limit)
	}
	return value / (value + 1)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func (e *Engine) newAlert(
	typ domain.AlertType,
	level domain.AlertLevel,
	msg string,
	pos *domain.Position,
	metrics map[string]float64,
	now time.Time,
) domain.RiskAlert {
	var snapshot *domain.Position
	if pos != nil {
		cp := *pos
		snapshot = &cp
	}
	return domain.RiskAlert{
		ID:        uuid.New().String(),
		Type:      typ,
		Level:     level,
		Message:   msg,
		Position:  snapshot,
		Metrics:   metrics,
		CreatedAt: now,
	}
}

func metricsMap(m domain.RiskMetrics) map[string]float64 {
	return map[string]float64{
		"total_exposure":   m.TotalExposure,
		"drawdown_percent": m.DrawdownPercent,
		"risk_score":       m.RiskScore,
	}
}
