package domain

import "time"

// AlertType identifies which risk rule produced an alert.
type AlertType string

const (
	AlertStopLoss      AlertType = "stop_loss"
	AlertTakeProfit    AlertType = "take_profit"
	AlertDrawdown      AlertType = "drawdown"
	AlertPositionLimit AlertType = "position_limit"
	AlertExposureLimit AlertType = "exposure_limit"
	AlertJobFailure    AlertType = "job_failure"
)

// AlertLevel is the severity of an alert. Levels only escalate through the
// defined thresholds; rules never emit a level they are not configured for.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// RiskAlert is produced per evaluation pass and handed to the notifier
// immediately. Cross-pass deduplication is the notifier layer's concern.
type RiskAlert struct {
	ID        string
	Type      AlertType
	Level     AlertLevel
	Message   string
	Position  *Position
	Metrics   map[string]float64
	CreatedAt time.Time
}

// RiskMetrics is the aggregate output of a risk evaluation pass.
type RiskMetrics struct {
	TotalExposure   float64
	DrawdownPercent float64
	RiskScore       float64
}
