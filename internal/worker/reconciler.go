package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type StreakReconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Reconciler periodically repairs cached streak counters that fell behind the
// record log, which happens when a toggle's record was written but its
// counter write failed. Cached counters are a floor, so a lapsed streak keeps
// its cached current value here and is not reset.
type Reconciler struct {
	habits   StreakReconciler
	cron     *cron.Cron
	interval time.Duration
	timeout  time.Duration
}

func NewReconciler(habits StreakReconciler, interval time.Duration) *Reconciler {
	return &Reconciler{
		habits:   habits,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		interval: interval,
		timeout:  5 * time.Minute,
	}
}

func (r *Reconciler) Start() error {
	if r.interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	if _, err := r.cron.AddFunc("@every "+r.interval.String(), r.RunOnce); err != nil {
		return errors.New("adding cron job error: " + err.Error())
	}
	r.cron.Start()
	slog.Info("streak reconciler started", slog.Duration("interval", r.interval))
	return nil
}

// Stop waits for a running pass to finish.
func (r *Reconciler) Stop() error {
	<-r.cron.Stop().Done()
	slog.Info("streak reconciler stopped")
	return nil
}

func (r *Reconciler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	started := time.Now()
	corrected, err := r.habits.ReconcileAll(ctx)
	if err != nil {
		slog.Error("streak reconciliation failed", slog.String("error", err.Error()))
		return
	}
	slog.Info("streak reconciliation done",
		slog.Int("corrected", corrected),
		slog.Duration("took", time.Since(started)),
	)
}
