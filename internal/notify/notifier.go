// Package notify fans risk alerts out to operator channels (Telegram,
// Discord). Alerts are filtered by severity so operators choose the noise
// floor; a failing channel never blocks the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns the channel identifier (e.g. "telegram").
	Name() string
}

// Notifier dispatches formatted risk alerts to all registered senders.
type Notifier struct {
	senders  []Sender
	minLevel domain.AlertLevel
	logger   *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Alerts
// below minLevel are dropped; an empty minLevel forwards everything.
func NewNotifier(senders []Sender, minLevel domain.AlertLevel, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:  senders,
		minLevel: minLevel,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

var levelRank = map[domain.AlertLevel]int{
	domain.AlertLevelInfo:     0,
	domain.AlertLevelWarning:  1,
	domain.AlertLevelCritical: 2,
}

// NotifyAlert formats and dispatches one risk alert, honouring the severity
// floor.
func (n *Notifier) NotifyAlert(ctx context.Context, a domain.RiskAlert) error {
	if n.minLevel != "" && levelRank[a.Level] < levelRank[n.minLevel] {
		n.logger.DebugContext(ctx, "alert below severity floor",
			slog.String("type", string(a.Type)),
			slog.String("level", string(a.Level)),
		)
		return nil
	}

	title := fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Level)), a.Type)
	return n.dispatch(ctx, title, formatAlert(a))
}

// NotifyJobFailure reports an exhausted job firing regardless of the
// severity floor; a silently dying job is worse than a noisy one.
func (n *Notifier) NotifyJobFailure(ctx context.Context, job string, attempts int, err error) error {
	title := fmt.Sprintf("[CRITICAL] %s", domain.AlertJobFailure)
	message := fmt.Sprintf("job %s failed after %d attempt(s): %v", job, attempts, err)
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender, collecting failures so one broken channel
// does not prevent delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func formatAlert(a domain.RiskAlert) string {
	var b strings.Builder
	b.WriteString(a.Message)

	if p := a.Position; p != nil {
		fmt.Fprintf(&b, "\nposition %s %s %s size=%.4f entry=%.4f mark=%.4f pnl=%.2f",
			p.ID, p.Symbol, p.Side, p.Size.Amount(), p.EntryPrice, p.CurrentPrice, p.UnrealizedPnL)
	}
	for _, k := range sortedKeys(a.Metrics) {
		fmt.Fprintf(&b, "\n%s=%.4f", k, a.Metrics[k])
	}
	return b.String()
}
