package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/backoff"
	"github.com/cinco36/iv-ingestion/ext"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/job"
)

// QueueManager controls per-kind and per-tenant rate limiting and
// concurrency. The worker pool calls Acquire before executing a claimed
// job and Release after execution completes.
type QueueManager interface {
	// Acquire checks rate limits and concurrency for the document
	// kind/tenant combination. Returns true if the job is allowed to
	// proceed.
	Acquire(kind, tenantID string) bool
	// Release decrements the active count for the kind/tenant pair.
	Release(kind, tenantID string)
}

// Pool manages a set of concurrent worker goroutines that claim jobs
// from a job.Store and execute them through the Executor.
type Pool struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	workerID   id.WorkerID
	logger     *slog.Logger

	concurrency int
	leaseFor    time.Duration
	idleBackoff backoff.Strategy
	queueWait   time.Duration

	// Heartbeat / reaper configuration.
	heartbeatInterval time.Duration
	reapInterval      time.Duration

	queueManager QueueManager

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithLeaseDuration sets how long an acquired job's lease runs before
// it is eligible for reaping absent a heartbeat.
func WithLeaseDuration(d time.Duration) PoolOption {
	return func(p *Pool) { p.leaseFor = d }
}

// WithIdleBackoff sets the strategy used to back off between Acquire
// calls that return no jobs, avoiding a busy loop against the store.
func WithIdleBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) { p.idleBackoff = s }
}

// WithHeartbeatInterval sets how often the pool sends heartbeats for
// active jobs. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithReapInterval sets how often the pool checks for jobs whose lease
// expired without a heartbeat. A zero value disables reaping.
func WithReapInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.reapInterval = d }
}

// WithQueueManager sets the queue manager for rate limiting and
// concurrency control.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:             store,
		executor:          executor,
		extensions:        extensions,
		workerID:          id.NewWorkerID(),
		logger:            logger,
		concurrency:       10,
		leaseFor:          5 * time.Minute,
		idleBackoff:       backoff.NewExponentialWithJitter(100*time.Millisecond, 5*time.Second),
		queueWait:         500 * time.Millisecond,
		heartbeatInterval: 0,
		reapInterval:      0,
		stopCh:            make(chan struct{}),
		activeJobs:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	if p.reapInterval > 0 {
		p.wg.Add(1)
		go p.reaperLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context has a deadline, active jobs are cancelled when time runs out.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// dequeueLoop is run by each worker goroutine. It claims one job at a
// time, blocking on the kind/tenant queue gate (via heartbeats that
// keep the claimed lease alive) before handing the job to the executor.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	emptyStreak := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		jobs, err := p.store.Acquire(context.Background(), p.workerID, 1, p.leaseFor)
		if err != nil {
			p.logger.Error("acquire error", slog.String("error", err.Error()))
			emptyStreak++
			p.sleep(p.idleBackoff.Delay(emptyStreak))
			continue
		}

		if len(jobs) == 0 {
			emptyStreak++
			p.sleep(p.idleBackoff.Delay(emptyStreak))
			continue
		}
		emptyStreak = 0

		j := jobs[0]
		if !p.waitForQueueSlot(j) {
			// Lease holder gave up (heartbeat failed or pool stopping);
			// the lease will expire and the reaper returns the job to
			// queued as a retryable failure.
			continue
		}

		p.runJob(j)

		if p.queueManager != nil {
			p.queueManager.Release(j.Kind, j.TenantID.String())
		}
	}
}

// waitForQueueSlot blocks until the queue manager admits j's kind/tenant
// pair, heartbeating the held lease while it waits. Returns false if the
// pool is stopping or the heartbeat fails (lease presumed lost).
func (p *Pool) waitForQueueSlot(j *job.Job) bool {
	if p.queueManager == nil {
		return true
	}
	for !p.queueManager.Acquire(j.Kind, j.TenantID.String()) {
		select {
		case <-p.stopCh:
			return false
		case <-time.After(p.queueWait):
		}
		if err := p.store.Heartbeat(context.Background(), j.ID, j.Progress, j.Stage, p.leaseFor); err != nil {
			p.logger.Warn("heartbeat while queue-gated failed",
				slog.String("job_id", j.ID.String()), slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

// runJob executes one claimed job end to end, tracking it for
// cancellation and heartbeats while it runs.
func (p *Pool) runJob(j *job.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.trackJob(j.ID.String(), cancel)
	defer p.untrackJob(j.ID.String())

	if execErr := p.executor.Execute(ctx, j); execErr != nil {
		p.logger.Debug("job execution failed",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.String("error", execErr.Error()),
		)
	}
}

// heartbeatLoop periodically sends heartbeats for all active jobs.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendHeartbeats()
		}
	}
}

func (p *Pool) sendHeartbeats() {
	p.activeMu.Lock()
	jobIDs := make([]string, 0, len(p.activeJobs))
	for jobID := range p.activeJobs {
		jobIDs = append(jobIDs, jobID)
	}
	p.activeMu.Unlock()

	for _, jobIDStr := range jobIDs {
		parsedID, parseErr := id.ParseJobID(jobIDStr)
		if parseErr != nil {
			p.logger.Warn("heartbeat: invalid job id", slog.String("job_id", jobIDStr))
			continue
		}
		j, getErr := p.store.Get(context.Background(), parsedID)
		if getErr != nil {
			continue
		}
		if err := p.store.Heartbeat(context.Background(), parsedID, j.Progress, j.Stage, p.leaseFor); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobIDStr),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reaperLoop periodically reaps jobs whose lease expired without a
// heartbeat, returning them to the queue as a retryable failure.
func (p *Pool) reaperLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapExpiredLeases()
		}
	}
}

// reapExpiredLeases counts a lease expiry as a retryable failure at the
// moment it is detected: the worker holding it is presumed gone, so the
// job is returned to queued (or moved to dead if attempts are already
// exhausted) rather than left stuck active forever.
func (p *Pool) reapExpiredLeases() {
	stale, err := p.store.ReapExpiredLeases(context.Background())
	if err != nil {
		p.logger.Error("reap expired leases error", slog.String("error", err.Error()))
		return
	}

	for _, j := range stale {
		cause := ingest.NewError(ingest.CodeProcessingFailed, ingest.CategoryTimeout,
			"worker lease expired before heartbeat", nil)
		if failErr := p.store.Fail(context.Background(), j.ID, cause, true, 0); failErr != nil {
			p.logger.Error("reap: failed to reset expired-lease job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", failErr.Error()),
			)
			continue
		}
		p.logger.Warn("reaped job with expired lease",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.Int("attempts", j.Attempts+1),
		)
	}
}

func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
