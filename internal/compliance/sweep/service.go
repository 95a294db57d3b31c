// Package sweep implements the time-driven batch jobs: expiring approved
// items whose expiry has passed, clearing lapsed overrides, and sending
// expiration reminders at fixed day-offsets. The sweeps own no schedule of
// their own; an external scheduler calls the Run* entry points.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	"credready/internal/compliance/status"
	"credready/internal/platform/metrics"
	id "credready/pkg/domain"
	"credready/pkg/platform/audit"
)

// DefaultReminderOffsets are the day-counts before expiry at which reminders
// fire. Offset 0 means "expires today".
var DefaultReminderOffsets = []int{30, 14, 7, 1, 0}

// DefaultAdminAlertThresholdDays is the offset at or below which every org
// admin is alerted in addition to the clinician.
const DefaultAdminAlertThresholdDays = 7

// DefaultRecomputeConcurrency bounds recompute fan-out across clinicians.
const DefaultRecomputeConcurrency = 8

type Service struct {
	clinicians ports.ClinicianStore
	items      ports.ItemStore
	engine     *status.Engine
	notifier   ports.Notifier
	admins     ports.AdminDirectory
	clock      ports.Clock
	sink       audit.Sink
	logger     *slog.Logger
	metrics    *metrics.Metrics

	reminderOffsets     []int
	adminAlertThreshold int
	concurrency         int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithClock(clock ports.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithAdminDirectory(d ports.AdminDirectory) Option {
	return func(s *Service) { s.admins = d }
}

func WithReminderOffsets(offsets []int) Option {
	return func(s *Service) { s.reminderOffsets = offsets }
}

func WithAdminAlertThreshold(days int) Option {
	return func(s *Service) { s.adminAlertThreshold = days }
}

func WithRecomputeConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(clinicians ports.ClinicianStore, items ports.ItemStore, engine *status.Engine, opts ...Option) (*Service, error) {
	if clinicians == nil {
		return nil, fmt.Errorf("clinician store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("status engine is required")
	}

	s := &Service{
		clinicians:          clinicians,
		items:               items,
		engine:              engine,
		clock:               ports.RealClock{},
		reminderOffsets:     DefaultReminderOffsets,
		adminAlertThreshold: DefaultAdminAlertThresholdDays,
		concurrency:         DefaultRecomputeConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result summarizes one sweep run. Per-entity failures are collected here
// rather than aborting the run; items processed before a failure keep their
// new state.
type Result struct {
	ItemsExpired         int
	OverridesLapsed      int
	RemindersSent        int
	AdminAlertsSent      int
	DeliveryFailures     int
	CliniciansRecomputed int
	RecomputeErrors      []error
}

// RunItemExpiration transitions every approved item whose expiry has passed
// to expired, then recomputes each affected clinician once, no matter how
// many of their items lapsed. Safe to re-run: expired items no longer match
// the selection query.
func (s *Service) RunItemExpiration(ctx context.Context) (result *Result, err error) {
	defer s.recoverJob("item_expiration", &err)

	now := s.clock.Now()
	expiring, err := s.items.ListApprovedExpiringBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select expiring items: %w", err)
	}

	result = &Result{}
	affected := make(map[id.ClinicianID]struct{})

	for _, iwd := range expiring {
		item := iwd.Item
		if err := item.CanExpire(now); err != nil {
			// The query predicate and CanExpire should agree; a mismatch
			// means a concurrent transition, skip rather than fight it.
			s.logWarn(ctx, "skipping item that no longer qualifies for expiration",
				"item_id", item.ID.String(), "error", err)
			continue
		}
		item.ApplyExpiration(now)
		if err := s.items.Update(ctx, item); err != nil {
			return result, fmt.Errorf("persist expired item %s: %w", item.ID, err)
		}

		if s.metrics != nil {
			s.metrics.ItemsExpiredTotal.Inc()
		}
		ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
			OrgID:       iwd.Definition.OrgID,
			ClinicianID: item.ClinicianID,
			EntityType:  audit.EntityChecklistItem,
			EntityID:    item.ID.String(),
			Action:      audit.ActionItemExpired,
			Details: audit.ItemTransitionDetails{
				DefinitionLabel: iwd.Definition.Label,
				FromStatus:      string(models.ItemApproved),
				ToStatus:        string(models.ItemExpired),
			},
		})

		result.ItemsExpired++
		affected[item.ClinicianID] = struct{}{}
	}

	s.recomputeAll(ctx, affected, status.TriggerItemExpiration, result)
	return result, nil
}

// RunOverrideExpiration finds clinicians whose override has lapsed and runs
// the status engine for each; the engine owns the clear and its audit entry.
func (s *Service) RunOverrideExpiration(ctx context.Context) (result *Result, err error) {
	defer s.recoverJob("override_expiration", &err)

	now := s.clock.Now()
	lapsed, err := s.clinicians.ListWithLapsedOverrides(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select lapsed overrides: %w", err)
	}

	result = &Result{OverridesLapsed: len(lapsed)}
	affected := make(map[id.ClinicianID]struct{}, len(lapsed))
	for _, c := range lapsed {
		affected[c.ID] = struct{}{}
	}
	s.recomputeAll(ctx, affected, status.TriggerOverrideExpiration, result)
	return result, nil
}

// RunReminders sends expiration reminders for approved items whose expiry
// falls exactly on today+offset for each configured offset. Offsets at or
// below the admin threshold also alert every org admin. Delivery failures are
// counted and skipped per recipient; one failing mailbox never starves the
// rest of the sweep.
func (s *Service) RunReminders(ctx context.Context) (result *Result, err error) {
	defer s.recoverJob("reminders", &err)

	result = &Result{}
	if s.notifier == nil {
		return result, nil
	}

	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, offset := range s.reminderOffsets {
		from := today.AddDate(0, 0, offset)
		to := from.AddDate(0, 0, 1)

		due, err := s.items.ListApprovedExpiringBetween(ctx, from, to)
		if err != nil {
			return result, fmt.Errorf("select items expiring in %d days: %w", offset, err)
		}

		for _, iwd := range due {
			s.remindOne(ctx, iwd, offset, result)
		}
	}
	return result, nil
}

func (s *Service) remindOne(ctx context.Context, iwd models.ItemWithDefinition, offset int, result *Result) {
	item := iwd.Item
	clinician, err := s.clinicians.Get(ctx, item.ClinicianID)
	if err != nil {
		s.logWarn(ctx, "reminder skipped, clinician lookup failed",
			"clinician_id", item.ClinicianID.String(), "error", err)
		result.DeliveryFailures++
		return
	}

	expiresAt := *item.ExpiresAt
	recipient := ports.Recipient{Name: clinician.FullName(), Email: clinician.Email}
	if err := s.notifier.SendExpirationReminder(ctx, recipient, iwd.Definition.Label, offset, expiresAt); err != nil {
		s.logWarn(ctx, "reminder delivery failed",
			"clinician_id", clinician.ID.String(), "item_id", item.ID.String(), "error", err)
		if s.metrics != nil {
			s.metrics.NotifyFailuresTotal.Inc()
		}
		result.DeliveryFailures++
		return
	}
	result.RemindersSent++
	if s.metrics != nil {
		s.metrics.RemindersSentTotal.Inc()
	}

	adminsAlerted := 0
	if offset <= s.adminAlertThreshold && s.admins != nil {
		admins, err := s.admins.ListOrgAdmins(ctx, clinician.OrgID)
		if err != nil {
			s.logWarn(ctx, "admin alert skipped, directory lookup failed",
				"org_id", clinician.OrgID.String(), "error", err)
		} else {
			for _, admin := range admins {
				if err := s.notifier.SendAdminExpirationAlert(ctx, admin, clinician.FullName(), iwd.Definition.Label, offset, expiresAt); err != nil {
					s.logWarn(ctx, "admin alert delivery failed",
						"recipient", admin.Email, "error", err)
					if s.metrics != nil {
						s.metrics.NotifyFailuresTotal.Inc()
					}
					result.DeliveryFailures++
					continue
				}
				adminsAlerted++
				result.AdminAlertsSent++
			}
		}
	}

	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityChecklistItem,
		EntityID:    item.ID.String(),
		Action:      audit.ActionReminderSent,
		Details: audit.ReminderDetails{
			DefinitionLabel: iwd.Definition.Label,
			DaysUntilExpiry: offset,
			ExpiresAt:       expiresAt,
			AdminsAlerted:   adminsAlerted,
		},
	})
}

// recomputeAll fans recomputation out across clinicians. They are causally
// independent, so bounded parallelism is safe; per-clinician failures are
// collected, not fatal.
func (s *Service) recomputeAll(ctx context.Context, affected map[id.ClinicianID]struct{}, trigger status.Trigger, result *Result) {
	if len(affected) == 0 {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for clinicianID := range affected {
		g.Go(func() error {
			if _, err := s.engine.Recompute(gctx, clinicianID, trigger); err != nil {
				mu.Lock()
				result.RecomputeErrors = append(result.RecomputeErrors,
					fmt.Errorf("recompute clinician %s: %w", clinicianID, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.CliniciansRecomputed++
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()
}

// recoverJob is the job-level catch-all: a panic partway through logs with
// stack detail and surfaces as an error instead of crashing the process.
// Work completed before the failure keeps its state; the next scheduled run
// picks up the remainder.
func (s *Service) recoverJob(job string, err *error) {
	if r := recover(); r != nil {
		if s.metrics != nil {
			s.metrics.SweepFailuresTotal.WithLabelValues(job).Inc()
		}
		if s.logger != nil {
			s.logger.Error("sweep panicked",
				"job", job, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
		*err = fmt.Errorf("%s sweep panicked: %v", job, r)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
