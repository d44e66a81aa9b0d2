package outbox

import (
	"context"
	"time"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/config"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/store"
	"go.uber.org/zap"
)

// Drainer delivers outbox jobs to the remote gateway in priority-then-
// age order. A failed attempt increments the job's run count and leaves
// it queued; a job is deleted only on confirmed acceptance. Retry policy
// (interval, attempt cap, superseded pruning) comes from configuration.
type Drainer struct {
	db     *store.DB
	gw     remote.Gateway
	bus    *bus.Bus
	cfg    config.Drain
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewDrainer creates a drainer with the given policy.
func NewDrainer(db *store.DB, gw remote.Gateway, b *bus.Bus, cfg config.Drain, logger *zap.Logger) *Drainer {
	return &Drainer{db: db, gw: gw, bus: b, cfg: cfg, logger: logger}
}

// Start begins polling the outbox.
func (d *Drainer) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	go d.loop(ctx)
}

// Stop stops the drain loop.
func (d *Drainer) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Drainer) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.DrainOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// DrainOnce runs a single drain pass. Exported so tests and one-shot
// callers can drive the queue without the ticker.
func (d *Drainer) DrainOnce(ctx context.Context) {
	if d.cfg.PruneSuperseded {
		n, err := d.db.PruneSupersededJobs()
		if err != nil {
			d.logger.Error("failed to prune superseded jobs", zap.Error(err))
		} else if n > 0 {
			d.logger.Info("pruned superseded jobs", zap.Int64("count", n))
		}
	}

	jobs, err := d.db.PendingOutboxJobs(d.cfg.MaxAttempts, 100)
	if err != nil {
		d.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for i := range jobs {
		job := &jobs[i]
		if err := d.gw.SubmitJob(ctx, job); err != nil {
			d.logger.Warn("job delivery failed",
				zap.Error(err), zap.String("job_id", job.JobID), zap.Int("run_count", job.RunCount))
			if err := d.db.IncrementRunCount(job.JobID); err != nil {
				d.logger.Error("failed to record attempt", zap.Error(err), zap.String("job_id", job.JobID))
			}
			d.bus.Notify(bus.OutboxAttemptFailed, job.JobID)
			continue
		}

		if err := d.db.DeleteOutboxJob(job.JobID); err != nil {
			d.logger.Error("failed to remove delivered job", zap.Error(err), zap.String("job_id", job.JobID))
			continue
		}
		d.bus.Notify(bus.OutboxDelivered, job.JobID)
	}
}
