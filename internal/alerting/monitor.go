package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketalert/internal/lock"
	"marketalert/internal/metrics"
	"marketalert/internal/models"
	"marketalert/internal/notification"
	"marketalert/internal/service"
)

const DefaultJobName = "alert-monitor"

type AlertStore interface {
	ListActiveAlertsWithTickers(ctx context.Context) ([]models.Alert, error)
	MarkAlertTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, tc notification.AlertTriggeredContext) []notification.DeliveryResult
}

type FeatureSwitch interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// TickResult counts what one locked pass over the active alerts did.
type TickResult struct {
	Evaluated int `json:"evaluated"`
	Triggered int `json:"triggered"`
	Failed    int `json:"failed"`
}

type Status struct {
	LastTickAt            time.Time  `json:"last_tick_at"`
	LastOutcome           string     `json:"last_outcome"`
	LastRunAt             *time.Time `json:"last_run_at,omitempty"`
	LastResult            TickResult `json:"last_result"`
	ConsecutiveInfraSkips int        `json:"consecutive_infra_skips"`
	TotalTriggered        int64      `json:"total_triggered"`
}

// Monitor re-evaluates active alerts once per tick. Only the instance that
// holds the job lock runs a tick; the others skip it.
//
// Alerts move one way, from active to triggered. The triggered state is
// persisted before the notification is handed off, so a failed delivery
// is never retried by triggering the same alert again.
type Monitor struct {
	Repo       AlertStore
	Locks      lock.Store
	Dispatcher Dispatcher
	Explainer  Explainer
	Switches   FeatureSwitch
	Logger     *zap.Logger

	JobName string
	LockTTL time.Duration
	// EscalateAfter is the number of consecutive ticks lost to lock store
	// failures after which the monitor logs at error level.
	EscalateAfter int
	Now           func() time.Time

	mu     sync.Mutex
	status Status
}

// Tick runs one scheduled evaluation. It never panics and never returns an
// error; every outcome is logged and recorded in Status.
func (m *Monitor) Tick(ctx context.Context) {
	if m == nil {
		return
	}
	log := m.logger()
	outcome := "failed"
	defer func() {
		if r := recover(); r != nil {
			log.Error("alert monitor tick panicked", zap.Any("panic", r))
			m.record("failed", nil)
		}
	}()

	if m.Switches != nil && !m.Switches.IsEnabled(ctx, service.FeatureAlertMonitor, true) {
		log.Debug("alert monitor disabled by switch")
		metrics.MonitorTicksTotal.WithLabelValues("disabled").Inc()
		m.record("disabled", nil)
		return
	}

	start := time.Now()
	var result TickResult
	lockOutcome, err := lock.RunExclusive(ctx, m.Locks, m.jobName(), m.lockTTL(), log, func(ctx context.Context) error {
		var runErr error
		result, runErr = m.RunOnce(ctx)
		return runErr
	})
	switch lockOutcome {
	case lock.OutcomeLockHeld, lock.OutcomeLockFailed:
		outcome = string(lockOutcome)
	case lock.OutcomeRan:
		metrics.MonitorTickDuration.Observe(time.Since(start).Seconds())
		outcome = "ran"
		if err != nil && !errors.Is(err, context.Canceled) {
			outcome = "failed"
			log.Warn("alert monitor run failed", zap.Error(err))
		}
	}
	metrics.MonitorTicksTotal.WithLabelValues(outcome).Inc()
	if lockOutcome == lock.OutcomeRan {
		m.record(outcome, &result)
		log.Info("alert monitor tick complete",
			zap.Int("evaluated", result.Evaluated),
			zap.Int("triggered", result.Triggered),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	m.record(outcome, nil)
}

// RunOnce evaluates every active alert once. The caller must hold the job
// lock. Alerts are processed in load order and each is isolated from the
// others; only a failed bulk load or cancellation ends the pass early.
func (m *Monitor) RunOnce(ctx context.Context) (TickResult, error) {
	var res TickResult
	if m == nil || m.Repo == nil {
		return res, errors.New("alert store unavailable")
	}
	alerts, err := m.Repo.ListActiveAlertsWithTickers(ctx)
	if err != nil {
		return res, fmt.Errorf("load active alerts: %w", err)
	}
	for _, a := range alerts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m.processAlert(ctx, a, &res)
	}
	return res, nil
}

func (m *Monitor) processAlert(ctx context.Context, a models.Alert, res *TickResult) {
	log := m.logger().With(zap.String("alert_id", a.ID.String()))
	defer func() {
		if r := recover(); r != nil {
			res.Failed++
			metrics.AlertEvaluationErrorsTotal.WithLabelValues("panic").Inc()
			log.Error("alert processing panicked", zap.Any("panic", r))
		}
	}()

	res.Evaluated++
	metrics.AlertsEvaluatedTotal.Inc()
	ev := Evaluate(a, SnapshotFromTicker(a.Ticker))
	if ev.Err != nil {
		res.Failed++
		metrics.AlertEvaluationErrorsTotal.WithLabelValues("evaluate").Inc()
		log.Warn("alert condition not evaluable", zap.String("kind", string(a.Kind)), zap.Error(ev.Err))
		return
	}
	if !ev.Triggered {
		return
	}

	now := m.now()
	marked, err := m.Repo.MarkAlertTriggered(ctx, a.ID, now)
	if err != nil {
		// Without the write the alert stays active and fires again next tick.
		res.Failed++
		metrics.AlertEvaluationErrorsTotal.WithLabelValues("persist").Inc()
		log.Error("persist triggered alert failed, notification withheld", zap.Error(err))
		return
	}
	if !marked {
		log.Info("alert no longer active, skipping notification")
		return
	}
	res.Triggered++
	metrics.AlertsTriggeredTotal.WithLabelValues(string(a.Kind)).Inc()

	a.IsActive = false
	a.TriggeredAt = &now
	tc := notification.AlertTriggeredContext{
		Alert:        a,
		UserID:       a.UserID,
		CurrentValue: ev.Value,
		TriggeredAt:  now,
		Operator:     string(ev.Condition.Operator),
		Condition:    ev.Condition.Describe(a.Symbol(), ev.Quantity),
		Explanation:  explain(ctx, m.Explainer, a, ev),
	}
	log.Info("alert triggered",
		zap.String("user_id", a.UserID),
		zap.String("condition", tc.Condition),
		zap.String("value", ev.Value.String()),
	)
	if m.Dispatcher == nil {
		return
	}
	// The alert is already persisted as triggered; let delivery finish even
	// if shutdown starts. The router bounds each channel's time.
	m.Dispatcher.Dispatch(context.WithoutCancel(ctx), tc)
}

func (m *Monitor) record(outcome string, result *TickResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.status.LastTickAt = now
	m.status.LastOutcome = outcome
	switch outcome {
	case string(lock.OutcomeLockFailed):
		m.status.ConsecutiveInfraSkips++
		if n, every := m.status.ConsecutiveInfraSkips, m.escalateAfter(); n%every == 0 {
			m.logger().Error("alert monitor skipped consecutive ticks, lock store unavailable",
				zap.Int("consecutive_skips", n),
				zap.String("job", m.jobName()),
			)
		}
	case "ran", "failed":
		if result != nil {
			m.status.ConsecutiveInfraSkips = 0
			m.status.LastRunAt = &now
			m.status.LastResult = *result
			m.status.TotalTriggered += int64(result.Triggered)
		}
	}
	metrics.MonitorConsecutiveInfraSkips.Set(float64(m.status.ConsecutiveInfraSkips))
}

// Status returns a copy of the monitor's latest bookkeeping.
func (m *Monitor) Status() Status {
	if m == nil {
		return Status{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.status
	if out.LastRunAt != nil {
		t := *out.LastRunAt
		out.LastRunAt = &t
	}
	return out
}

func (m *Monitor) jobName() string {
	if m.JobName == "" {
		return DefaultJobName
	}
	return m.JobName
}

func (m *Monitor) lockTTL() time.Duration {
	if m.LockTTL <= 0 {
		return 2 * time.Minute
	}
	return m.LockTTL
}

func (m *Monitor) escalateAfter() int {
	if m.EscalateAfter <= 0 {
		return 5
	}
	return m.EscalateAfter
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *Monitor) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
