package intake

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cinco36/iv-ingestion"
	"github.com/cinco36/iv-ingestion/id"
	"github.com/cinco36/iv-ingestion/ratelimit"
)

const (
	processedSubdir = "processed"
	failedSubdir    = "failed"
)

// Watcher polls a directory for dropped documents and submits each one
// through a Service, moving it into a processed/ or failed/ subdirectory
// once handled so it is never resubmitted. It stands in for the HTTP (or
// other) transport this module does not itself provide — grounded in
// the same poll-and-process-then-archive shape dlq.Replay and the
// worker pool's dequeue loop already use, just driven off a filesystem
// directory instead of the job store.
type Watcher struct {
	svc      *Service
	dir      string
	tenantID id.ID
	tier     ratelimit.Tier
	interval time.Duration
	logger   *slog.Logger

	wg      sync.WaitGroup
	stopCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewWatcher builds a Watcher that submits every file dropped into dir
// as a job owned by tenantID, admitted at tier.
func NewWatcher(svc *Service, dir string, tenantID id.ID, tier ratelimit.Tier, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		svc:      svc,
		dir:      dir,
		tenantID: tenantID,
		tier:     tier,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start creates the processed/ and failed/ subdirectories if needed and
// begins polling in a background goroutine. It returns immediately.
func (w *Watcher) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	for _, sub := range []string{processedSubdir, failedSubdir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return err
		}
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop signals the poll loop to exit and waits for the in-flight pass
// to finish.
func (w *Watcher) Stop(_ context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pollOnce(context.Background())
		}
	}
}

// pollOnce submits every regular file directly inside dir (skipping the
// processed/ and failed/ subdirectories themselves), archiving each one
// as it's handled. A rate-limited file is left in place for the next
// poll; any other failure moves it to failed/ so it doesn't block the
// ones behind it.
func (w *Watcher) pollOnce(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Error("intake: read watch dir", slog.String("error", err.Error()))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		w.submitFile(ctx, name)
	}
}

func (w *Watcher) submitFile(ctx context.Context, name string) {
	path := filepath.Join(w.dir, name)
	kind := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	f, err := os.Open(path)
	if err != nil {
		w.logger.Error("intake: open dropped file", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	j, err := w.svc.Submit(ctx, Request{TenantID: w.tenantID, Kind: kind, Tier: w.tier, Body: f})
	if err != nil {
		if errors.Is(err, ingest.ErrRateLimited) {
			w.logger.Warn("intake: submission denied by rate limit, will retry", slog.String("file", name))
			return
		}
		w.logger.Error("intake: submit failed", slog.String("file", name), slog.String("error", err.Error()))
		w.archive(name, failedSubdir)
		return
	}

	w.logger.Info("intake: submitted dropped file", slog.String("file", name), slog.String("job_id", j.ID.String()))
	w.archive(name, processedSubdir)
}

func (w *Watcher) archive(name, subdir string) {
	src := filepath.Join(w.dir, name)
	dst := filepath.Join(w.dir, subdir, name)
	if err := os.Rename(src, dst); err != nil {
		w.logger.Error("intake: archive file", slog.String("file", name), slog.String("error", err.Error()))
	}
}
