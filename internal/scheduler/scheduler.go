package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/database"
	"github.com/pressflow/pressflow/internal/generation"
	"github.com/pressflow/pressflow/internal/models"
	"github.com/pressflow/pressflow/internal/workerpool"
)

const (
	// executionWindow bounds how far from its target time a rule may still
	// fire. A rule due at 09:00 will not fire at 11:00.
	executionWindow = 30 * time.Minute

	// failureCooldown is how long a failure-disabled rule sits idle before
	// its counter is reset. The rule stays inactive either way.
	failureCooldown = 24 * time.Hour
)

// RuleStore is the rule persistence the scheduler needs.
type RuleStore interface {
	GetRule(ctx context.Context, id string) (*models.AutomationRule, error)
	GetDueRules(ctx context.Context, now time.Time) ([]models.AutomationRule, error)
	MarkDispatched(ctx context.Context, ruleID string, now, next time.Time) (bool, error)
	MarkManualDispatch(ctx context.Context, ruleID string, now time.Time) error
	RecordFailure(ctx context.Context, ruleID string) (int, bool, error)
	ResetStaleFailures(ctx context.Context, cutoff time.Time) (int, error)
	Counts(ctx context.Context) (database.RuleCounts, error)
	ListExecutedSince(ctx context.Context, since time.Time) ([]string, error)
}

// Executor runs the pipeline for one rule.
type Executor interface {
	Execute(ctx context.Context, rule models.AutomationRule) models.RuleExecutionResult
}

// TopicJanitor archives stale topics during the cleanup pass.
type TopicJanitor interface {
	CleanupOld(ctx context.Context, now time.Time) (int, error)
}

// ReportSource aggregates execution outcomes for the daily report.
type ReportSource interface {
	SummarizeSince(ctx context.Context, since time.Time) (database.ExecutionSummary, error)
}

// taskQueue is the submission surface of the worker pool.
type taskQueue interface {
	TrySubmit(task workerpool.Task) bool
	QueueDepth() int
}

// Scheduler drives the automation control loop: it evaluates rule eligibility
// on a fixed tick, claims eligible rules and hands them to the worker pool.
// Lower-frequency cleanup and reporting passes share the same loop.
type Scheduler struct {
	rules    RuleStore
	executor Executor
	topics   TopicJanitor
	reports  ReportSource
	pool     taskQueue
	notifier generation.Notifier
	cfg      config.SchedulerConfig
	logger   *slog.Logger
	stopChan chan struct{}

	mu      sync.Mutex
	running bool
}

// New creates a scheduler. Start must be called for rules to run.
func New(
	rules RuleStore,
	executor Executor,
	topics TopicJanitor,
	reports ReportSource,
	pool taskQueue,
	notifier generation.Notifier,
	cfg config.SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		rules:    rules,
		executor: executor,
		topics:   topics,
		reports:  reports,
		pool:     pool,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs the control loop until Stop is called or the context ends. The
// first evaluation happens immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("starting automation scheduler",
		"tick_interval", s.cfg.TickInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
		"report_interval", s.cfg.ReportInterval)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	cleanupTicker := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanupTicker.Stop()
	reportTicker := time.NewTicker(s.cfg.ReportInterval)
	defer reportTicker.Stop()

	s.tick(ctx, time.Now())

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, time.Now())
		case <-cleanupTicker.C:
			s.cleanup(ctx, time.Now())
		case <-reportTicker.C:
			s.report(ctx, time.Now())
		case <-s.stopChan:
			s.logger.Info("automation scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("automation scheduler stopping, context cancelled")
			return
		}
	}
}

// Stop ends the control loop. In-flight worker tasks are not interrupted.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// tick evaluates due rules and dispatches the eligible ones. The claim and the
// next-run update happen synchronously here, before the task runs, so a slow
// invocation cannot be re-dispatched on the following tick.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	due, err := s.rules.GetDueRules(ctx, now)
	if err != nil {
		s.logger.Error("failed to load due rules", "error", err)
		return
	}

	for _, rule := range due {
		if !s.shouldExecute(rule, now) {
			continue
		}

		next := scheduleNext(rule, now)
		claimed, err := s.rules.MarkDispatched(ctx, rule.ID, now, next)
		if err != nil {
			s.logger.Error("failed to claim rule", "rule_id", rule.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		rule := rule
		if !s.pool.TrySubmit(func() { s.invoke(ctx, rule) }) {
			s.logger.Warn("worker queue full, rule waits for next eligibility",
				"rule_id", rule.ID,
				"next_execution_at", next)
			continue
		}

		s.logger.Info("dispatched rule",
			"rule_id", rule.ID,
			"name", rule.Name,
			"next_execution_at", next)
	}
}

// shouldExecute applies the eligibility checks beyond database due-ness: day
// of week, the bounded time window around the target time, and the minimum
// interval since the last run. A rule failing a check is skipped, not
// penalized.
func (s *Scheduler) shouldExecute(rule models.AutomationRule, now time.Time) bool {
	if !rule.RunsOn(now.Weekday()) {
		return false
	}

	target, err := rule.TargetTimeOn(now)
	if err != nil {
		s.logger.Warn("rule has invalid publishing time",
			"rule_id", rule.ID,
			"publishing_time", rule.PublishingTime)
		return false
	}

	diff := now.Sub(target)
	if diff < -executionWindow || diff > executionWindow {
		return false
	}

	if rule.LastExecutionAt != nil && now.Sub(*rule.LastExecutionAt) < rule.MinInterval {
		return false
	}
	return true
}

// scheduleNext estimates the next run. Single-post rules land on tomorrow's
// target time; multi-post rules spread evenly across the day. This drifts
// toward the configured cadence rather than guaranteeing exact wall-clock
// slots.
func scheduleNext(rule models.AutomationRule, now time.Time) time.Time {
	if rule.PostsPerDay <= 1 {
		target, err := rule.TargetTimeOn(now.Add(24 * time.Hour))
		if err != nil {
			return now.Add(24 * time.Hour)
		}
		return target
	}
	return now.Add(24 * time.Hour / time.Duration(rule.PostsPerDay))
}

// invoke runs one rule on a worker and settles the failure counter. Success
// never decrements the counter; only toggleRule and the cooldown reset do.
func (s *Scheduler) invoke(ctx context.Context, rule models.AutomationRule) {
	result := s.executor.Execute(ctx, rule)
	if result.Success {
		return
	}

	count, disabled, err := s.rules.RecordFailure(ctx, rule.ID)
	if err != nil {
		s.logger.Error("failed to record rule failure", "rule_id", rule.ID, "error", err)
		return
	}

	if !disabled {
		s.logger.Warn("rule execution failed",
			"rule_id", rule.ID,
			"failure_count", count,
			"max_failures", rule.MaxFailures)
		return
	}

	s.logger.Warn("rule disabled after repeated failures",
		"rule_id", rule.ID,
		"failure_count", count)

	if s.notifier != nil {
		s.notifier.Notify(ctx, models.NotificationEvent{
			Type:    "rule_disabled",
			RuleID:  rule.ID,
			BlogID:  rule.BlogID,
			Message: fmt.Sprintf("rule %s disabled after %d consecutive failures", rule.Name, count),
		})
	}
}

// cleanup resets counters for rules that have cooled down and archives stale
// topics.
func (s *Scheduler) cleanup(ctx context.Context, now time.Time) {
	reset, err := s.rules.ResetStaleFailures(ctx, now.Add(-failureCooldown))
	if err != nil {
		s.logger.Error("failed to reset stale failure counters", "error", err)
	} else if reset > 0 {
		s.logger.Info("reset failure counters after cooldown", "rules", reset)
	}

	if s.topics != nil {
		if _, err := s.topics.CleanupOld(ctx, now); err != nil {
			s.logger.Error("failed to archive stale topics", "error", err)
		}
	}
}

// report logs an aggregate of the last reporting window. Read-only; it never
// touches scheduling state.
func (s *Scheduler) report(ctx context.Context, now time.Time) {
	since := now.Add(-s.cfg.ReportInterval)

	summary, err := s.reports.SummarizeSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to summarize executions", "error", err)
		return
	}

	names, err := s.rules.ListExecutedSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to list executed rules", "error", err)
		return
	}

	s.logger.Info("daily execution report",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"rules_executed", names)
}

// ManualExecute dispatches one rule immediately, bypassing the eligibility
// checks but not the active flag or pool capacity. The run itself is
// asynchronous and detached from the caller's context, which is typically an
// HTTP request that ends long before a worker picks the task up.
func (s *Scheduler) ManualExecute(ctx context.Context, ruleID string) error {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("rule not found")
	}
	if !rule.IsActive {
		return fmt.Errorf("rule is not active")
	}

	r := *rule
	runCtx := context.WithoutCancel(ctx)
	if !s.pool.TrySubmit(func() { s.invoke(runCtx, r) }) {
		return fmt.Errorf("worker queue is full")
	}

	// Recorded only after the task is accepted; a rejected request must not
	// advance last_execution_at and trip the min-interval gate on the next
	// scheduled run.
	if err := s.rules.MarkManualDispatch(ctx, ruleID, time.Now()); err != nil {
		s.logger.Error("failed to record manual dispatch", "rule_id", ruleID, "error", err)
	}

	s.logger.Info("manually dispatched rule", "rule_id", ruleID)
	return nil
}

// Status is a point-in-time snapshot of the scheduler and rule fleet.
type Status struct {
	Running         bool `json:"running"`
	TotalRuleCount  int  `json:"total_rule_count"`
	ActiveRuleCount int  `json:"active_rule_count"`
	FailedRuleCount int  `json:"failed_rule_count"`
	QueueDepth      int  `json:"queue_depth"`
}

// Status reports the loop state and fleet counts.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	counts, err := s.rules.Counts(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Running:         s.isRunning(),
		TotalRuleCount:  counts.Total,
		ActiveRuleCount: counts.Active,
		FailedRuleCount: counts.Failed,
		QueueDepth:      s.pool.QueueDepth(),
	}, nil
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
