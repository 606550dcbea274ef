// Package engine runs the tick loop: collect a snapshot, record health,
// rebuild the day plan when stale, decide an action, persist the
// decision, and sleep until the next tick or shutdown.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jameshartig/gridpilot/pkg/analyser"
	"github.com/jameshartig/gridpilot/pkg/health"
	"github.com/jameshartig/gridpilot/pkg/learner"
	"github.com/jameshartig/gridpilot/pkg/planner"
	"github.com/jameshartig/gridpilot/pkg/storage"
	"github.com/jameshartig/gridpilot/pkg/supervisor"
	"github.com/jameshartig/gridpilot/pkg/types"
)

const healthLogEveryNCycles = 12

// Collector is the subset of collector.Collector the engine depends on.
type Collector interface {
	Collect(ctx context.Context) types.Snapshot
}

// UsageHistory supplies recent metered usage for profile learning.
type UsageHistory interface {
	GetUsage(ctx context.Context, start, end time.Time) ([]types.UsageInterval, error)
}

// Engine owns the tick loop's dependencies and mutable state (the active
// day plan and usage profile).
type Engine struct {
	collector  Collector
	usage      UsageHistory
	store      storage.Store
	planner    *planner.Planner
	supervisor *supervisor.Supervisor
	learner    *learner.Learner
	health     *health.Monitor
	cfg        types.Config

	// mu guards plan and profile, which the tick loop writes and the read
	// API's HTTP handlers read concurrently.
	mu      sync.RWMutex
	plan    types.DayPlan
	profile types.UsageProfile
}

// CurrentPlan returns the day plan most recently built by the tick loop.
func (e *Engine) CurrentPlan() types.DayPlan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.plan
}

// CurrentProfile returns the usage profile most recently learned.
func (e *Engine) CurrentProfile() types.UsageProfile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// Health returns the engine's health monitor, shared read-only with the
// read API.
func (e *Engine) Health() *health.Monitor {
	return e.health
}

// New constructs an Engine. The last persisted usage profile is loaded by
// Run, not here.
func New(
	collector Collector,
	usage UsageHistory,
	store storage.Store,
	p *planner.Planner,
	s *supervisor.Supervisor,
	l *learner.Learner,
	cfg types.Config,
) *Engine {
	return &Engine{
		collector:  collector,
		usage:      usage,
		store:      store,
		planner:    p,
		supervisor: s,
		learner:    l,
		health:     health.New(nil),
		cfg:        cfg,
	}
}

// Run blocks, ticking every cfg.DecisionIntervalSeconds, until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if profile, err := e.store.LoadProfile(ctx); err == nil {
		e.mu.Lock()
		e.profile = profile
		e.mu.Unlock()
	}

	slog.InfoContext(ctx, "gridpilot starting",
		slog.Int("decision_interval_seconds", e.cfg.DecisionIntervalSeconds),
		slog.Float64("battery_capacity_kwh", e.cfg.BatteryCapacityKWH),
		slog.Float64("battery_min_soc_pct", e.cfg.BatteryMinSOCPct),
	)

	interval := time.Duration(e.cfg.DecisionIntervalSeconds) * time.Second
	lastRelearnDay := -1

	for {
		e.tick(ctx)

		snapshot := e.health.Snapshot()
		if snapshot.TotalCycles%healthLogEveryNCycles == 0 {
			slog.InfoContext(ctx, "health", slog.String("summary", snapshot.Summary(time.Now())))
		}

		now := time.Now()
		if now.Hour() == 2 && now.Day() != lastRelearnDay {
			e.relearn(ctx, now)
			lastRelearnDay = now.Day()
		}

		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "gridpilot stopped", slog.String("health", e.health.Snapshot().Summary(time.Now())))
			return nil
		case <-time.After(interval):
		}
	}
}

// tick runs exactly one collect→decide→record cycle, isolating any
// failure to a logged health-failure record and a fallback decision
// rather than propagating it to the loop. A panic anywhere in
// planning/deciding is recovered here rather than crashing the process;
// three consecutive recovered failures escalate through health.Monitor's
// own alert threshold.
func (e *Engine) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick panic: %v", r)
			slog.ErrorContext(ctx, "tick failed", slog.Any("error", err))
			e.health.RecordFailure(ctx, err)
			e.recordFallbackDecision(ctx, err)
		}
	}()

	snap := e.collector.Collect(ctx)

	e.health.RecordAPIStatus(ctx, "retailer", snap.CurrentImportPrice != nil)
	e.health.RecordAPIStatus(ctx, "weather", len(snap.SolarForecast) > 0)

	plan := e.CurrentPlan()
	profile := e.CurrentProfile()

	if plan.Stale(time.Now(), time.Hour) && len(snap.PriceForecast) > 0 {
		windows := analyser.BuildWindows(generalChannel(snap.PriceForecast), feedInChannel(snap.PriceForecast))
		plan = e.planner.Build(windows, snap.SolarForecast, profile, time.Now())
		e.mu.Lock()
		e.plan = plan
		e.mu.Unlock()
	}

	stats := analyser.Analyse(snap.PriceForecast)
	decision := e.supervisor.Decide(snap, plan, profile, stats, time.Now())

	e.health.RecordSuccess()

	if err := e.store.RecordDecision(ctx, decision); err != nil {
		slog.ErrorContext(ctx, "failed to record decision", slog.Any("error", err))
	}

	slog.InfoContext(ctx, "decision",
		slog.String("action", decision.Action.String()),
		slog.Float64("power_kw", decision.PowerKW),
		slog.Float64("soc_pct", snap.Battery.SOCPct),
		slog.String("reason", decision.Reason),
	)

	e.emitToInverter(ctx, decision)
}

// emitToInverter is the decision's only current sink: a log line. Real
// inverter command transport is out of scope (spec.md §1); when the
// operator has paused the controller via the read API, the tick still
// collects, plans, and records the decision for audit, it just doesn't
// log it as emitted.
func (e *Engine) emitToInverter(ctx context.Context, d types.Decision) {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load runtime settings, assuming unpaused", slog.Any("error", err))
	}
	if settings.Pause {
		slog.InfoContext(ctx, "inverter emission suppressed: controller paused")
		return
	}
	slog.InfoContext(ctx, "emit_to_inverter", slog.String("action", d.Action.String()), slog.Float64("power_kw", d.PowerKW))
}

// recordFallbackDecision persists a conservative idle decision when tick
// panics before reaching its own RecordDecision call, so the audit log
// and decision history don't silently skip the cycle.
func (e *Engine) recordFallbackDecision(ctx context.Context, cause error) {
	d := types.Decision{
		Timestamp: time.Now(),
		Action:    types.ActionIdle,
		Reason:    fmt.Sprintf("tick recovered from panic: %v", cause),
	}
	if err := e.store.RecordDecision(ctx, d); err != nil {
		slog.ErrorContext(ctx, "failed to record fallback decision", slog.Any("error", err))
	}
}

// relearn rebuilds the usage profile from the last UsageLearnDays of
// metered history and persists it.
func (e *Engine) relearn(ctx context.Context, now time.Time) {
	start := now.AddDate(0, 0, -e.cfg.UsageLearnDays)
	history, err := e.usage.GetUsage(ctx, start, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch usage history for relearn", slog.Any("error", err))
		return
	}

	profile := e.learner.Learn(history, now)
	e.mu.Lock()
	e.profile = profile
	e.mu.Unlock()

	if err := e.store.SaveProfile(ctx, profile); err != nil {
		slog.ErrorContext(ctx, "failed to save usage profile", slog.Any("error", err))
		return
	}

	slog.InfoContext(ctx, "usage profile relearned",
		slog.Int("days_analysed", profile.DaysAnalysed),
		slog.Float64("base_load_kw", profile.BaseLoadKW),
	)
}

// generalChannel and feedInChannel filter to forecast-typed intervals
// only: snap.PriceForecast already excludes actual/current intervals
// (collector.splitByIntervalType), but both helpers re-check IntervalType
// so a caller handing them the raw 48-hour series can't leak stale
// actual/current intervals into the window pool.
func generalChannel(intervals []types.PriceInterval) []types.PriceInterval {
	var out []types.PriceInterval
	for _, p := range intervals {
		if p.Channel == types.ChannelGeneral && p.IntervalType == types.IntervalForecast {
			out = append(out, p)
		}
	}
	return out
}

func feedInChannel(intervals []types.PriceInterval) []types.PriceInterval {
	var out []types.PriceInterval
	for _, p := range intervals {
		if p.Channel == types.ChannelFeedIn && p.IntervalType == types.IntervalForecast {
			out = append(out, p)
		}
	}
	return out
}
