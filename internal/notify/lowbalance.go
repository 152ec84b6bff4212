package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"subvault/internal/subscription/service"
)

// DefaultLowBalanceSchedule runs the scan daily at 09:00 UTC.
const DefaultLowBalanceSchedule = "0 9 * * *"

type StatusLister interface {
	ListStatuses(ctx context.Context) ([]*service.Status, error)
}

// LowBalanceJob emails owners of active subscriptions whose escrow cannot
// cover the next cycle. It only notifies; it never triggers a payment.
type LowBalanceJob struct {
	subs     StatusLister
	notifier *Service
	timeout  time.Duration
	log      *slog.Logger
}

func NewLowBalanceJob(subs StatusLister, notifier *Service, log *slog.Logger) *LowBalanceJob {
	if log == nil {
		log = slog.Default()
	}
	return &LowBalanceJob{subs: subs, notifier: notifier, timeout: 5 * time.Minute, log: log.With("job", "low_balance")}
}

// Run scans once and returns the number of owners notified. A failure for
// one owner does not stop the scan.
func (j *LowBalanceJob) Run(ctx context.Context) (int, error) {
	statuses, err := j.subs.ListStatuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}
	var (
		notified int
		errs     []error
	)
	for _, st := range statuses {
		if !st.Record.IsActive || st.Covered() {
			continue
		}
		if err := j.notifier.LowBalance(ctx, st.Record.Owner, st.EscrowBalance, st.TotalRequired); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.Record.Owner, err))
			continue
		}
		notified++
	}
	return notified, errors.Join(errs...)
}

// Scheduler runs the job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(spec string, job *LowBalanceJob) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), job.timeout)
		defer cancel()
		n, err := job.Run(ctx)
		if err != nil {
			job.log.ErrorContext(ctx, "low balance scan finished with errors", "notified", n, "error", err)
			return
		}
		job.log.InfoContext(ctx, "low balance scan finished", "notified", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running scan until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
