package trust

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/events"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/syncutil"
	"github.com/sentinel-labs/sentinelx/internal/traces"
)

// evaluateLimit bounds how many events per kind feed one evaluation;
// severityWindow is the shorter lookback for the lock decision.
const (
	evaluateLimit  = 100
	severityWindow = 20
)

// Severity triggers within the window that escalate restricted to locked.
const (
	lockHighLogins       = 3
	lockBlockedTransfers = 2
)

// Enforcer owns the trust state machine. Evaluations for the same
// identity are serialized through a sharded mutex so concurrent engine
// callbacks cannot interleave a read-compute-write.
type Enforcer struct {
	history events.HistoryProvider
	store   Store
	logger  *slog.Logger
	locks   *syncutil.ContextShardedMutex

	lockCooldown time.Duration
	onTransition func(state *TrustState, from string)
}

// NewEnforcer creates a trust enforcer.
func NewEnforcer(history events.HistoryProvider, store Store, logger *slog.Logger) *Enforcer {
	return &Enforcer{
		history:      history,
		store:        store,
		logger:       logger,
		locks:        syncutil.NewContextShardedMutex(),
		lockCooldown: LockCooldown,
	}
}

// SetLockCooldown overrides how long a lock holds once set.
func (e *Enforcer) SetLockCooldown(d time.Duration) {
	if d > 0 {
		e.lockCooldown = d
	}
}

// OnTransition sets a callback invoked after every status change
// (for realtime broadcast). Called outside the identity lock.
func (e *Enforcer) OnTransition(fn func(state *TrustState, from string)) {
	e.onTransition = fn
}

// Evaluate recomputes an identity's trust score and enforcement status
// from its event history. Locks are sticky: a locked identity stays
// locked until the cooldown expires even if its score recovers.
func (e *Enforcer) Evaluate(ctx context.Context, identity string) (*TrustState, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}

	ctx, span := traces.StartSpan(ctx, "trust.Evaluate", traces.Identity(identity))
	defer span.End()

	unlock, err := e.locks.LockContext(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logins, err := e.history.FetchRecent(ctx, identity, events.KindLogin, evaluateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login history: %w", err)
	}
	content, err := e.history.FetchRecent(ctx, identity, events.KindContent, evaluateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content history: %w", err)
	}
	transfers, err := e.history.FetchRecent(ctx, identity, events.KindTransfer, evaluateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfer history: %w", err)
	}

	prev, err := e.store.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}

	now := time.Now().UTC()
	score, breakdown := Compute(logins, content, transfers)

	state := &TrustState{
		Identity:      identity,
		TrustScore:    score,
		LastEvaluated: now,
	}

	switch {
	case prev != nil && prev.Status == StatusLocked && prev.LockedUntil.After(now):
		// Sticky: the lock outlives score recovery.
		state.Status = StatusLocked
		state.LockedUntil = prev.LockedUntil
		state.Reason = prev.Reason
	case score >= ThresholdActive:
		state.Status = StatusActive
	case score >= ThresholdStepUp:
		state.Status = StatusStepUpRequired
		state.Reason = reasonFor(breakdown)
	default:
		if shouldLock(logins, transfers) {
			state.Status = StatusLocked
			state.LockedUntil = now.Add(e.lockCooldown)
			state.Reason = "repeated severe risk signals"
		} else {
			state.Status = StatusRestricted
			state.Reason = reasonFor(breakdown)
		}
	}

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save trust state: %w", err)
	}

	from := StatusActive
	if prev != nil {
		from = prev.Status
	}
	if from != state.Status {
		metrics.TrustTransitions.WithLabelValues(from, state.Status).Inc()
		e.logger.Info("trust status changed",
			"identity", identity,
			"from", from,
			"to", state.Status,
			"score", state.TrustScore,
		)
		if e.onTransition != nil {
			e.onTransition(state, from)
		}
	}

	return state, nil
}

// State returns the current standing for an identity. A never-seen
// identity is fully trusted. Expired locks release to step_up_required
// here rather than silently back to active.
func (e *Enforcer) State(ctx context.Context, identity string) (*TrustState, error) {
	unlock, err := e.locks.LockContext(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := e.store.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}
	now := time.Now().UTC()
	if state == nil {
		return &TrustState{
			Identity:      identity,
			TrustScore:    baseScore,
			Status:        StatusActive,
			LastEvaluated: now,
		}, nil
	}

	if state.Status == StatusLocked && !state.LockedUntil.After(now) {
		from := state.Status
		state.Status = StatusStepUpRequired
		state.LockedUntil = time.Time{}
		state.Reason = "lock expired, verification required"
		state.LastEvaluated = now
		if err := e.store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to save trust state: %w", err)
		}
		metrics.TrustTransitions.WithLabelValues(from, state.Status).Inc()
		if e.onTransition != nil {
			e.onTransition(state, from)
		}
	}

	return state, nil
}

// CheckAction gates an action against the identity's current status.
// Never mutates state beyond lock expiry handled by State.
func (e *Enforcer) CheckAction(ctx context.Context, identity, action string) (*Decision, error) {
	state, err := e.State(ctx, identity)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		Identity: identity,
		Action:   action,
		Status:   state.Status,
		Allowed:  true,
	}

	switch state.Status {
	case StatusLocked:
		d.Allowed = false
		d.Reason = "identity is locked"
		if remaining := time.Until(state.LockedUntil); remaining > 0 {
			d.RetryAfterMs = remaining.Milliseconds()
		}
	case StatusRestricted:
		if action == ActionTransfer || action == ActionContentSend {
			d.Allowed = false
			d.Reason = "action unavailable while restricted"
		}
	case StatusStepUpRequired:
		if action == ActionTransfer {
			d.StepUp = true
			d.Reason = "additional verification required"
		}
	}

	return d, nil
}

// shouldLock applies the severity check over the most recent events: a
// low score alone restricts, but only repeated severe signals lock.
func shouldLock(logins, transfers []*events.ScoredEvent) bool {
	highLogins := 0
	for _, e := range recentWindow(logins) {
		if e.Level == events.LevelHigh {
			highLogins++
		}
	}
	if highLogins >= lockHighLogins {
		return true
	}

	blocked := 0
	for _, e := range recentWindow(transfers) {
		if e.Blocked {
			blocked++
		}
	}
	return blocked >= lockBlockedTransfers
}

// recentWindow takes the newest severityWindow events from a
// most-recent-first slice.
func recentWindow(list []*events.ScoredEvent) []*events.ScoredEvent {
	if len(list) > severityWindow {
		return list[:severityWindow]
	}
	return list
}

func reasonFor(b Breakdown) string {
	worst := "login risk"
	max := b.LoginPenalty
	if b.ContentPenalty > max {
		worst, max = "content risk", b.ContentPenalty
	}
	if b.TransferPenalty > max {
		worst = "transfer risk"
	}
	return "trust reduced by " + worst
}
