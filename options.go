package ingest

import (
	"context"
	"log/slog"
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// Storer is the minimal store interface held by the Coordinator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Coordinator is the central process for job processing: it owns the
// worker pool, the store, and the extension registry. It does not
// itself know about parsing, extraction, or webhooks — those are
// wired in at the cmd/ level via job handlers and ext.Extension
// implementations.
//
// Create one with New() and functional options.
type Coordinator struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Coordinator with the given options.
func New(opts ...Option) (*Coordinator, error) {
	d := &Coordinator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Logger returns the coordinator's logger.
func (d *Coordinator) Logger() *slog.Logger { return d.logger }

// Store returns the coordinator's store.
func (d *Coordinator) Store() Storer { return d.store }

// Config returns a copy of the coordinator's configuration.
func (d *Coordinator) Config() Config { return d.config }

// SetPool sets the worker pool (called by the wiring code in cmd/).
func (d *Coordinator) SetPool(p poolRunner) { d.pool = p }

// SetExtensions sets the extension emitter (called by the wiring code in cmd/).
func (d *Coordinator) SetExtensions(e extensionEmitter) { d.extensions = e }

// Start begins job processing.
func (d *Coordinator) Start(ctx context.Context) error {
	if d.pool == nil {
		return ErrNoStore
	}
	if err := d.pool.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// Stop gracefully shuts down the coordinator.
func (d *Coordinator) Stop(ctx context.Context) error {
	if d.pool != nil && d.started {
		if err := d.pool.Stop(ctx); err != nil {
			d.logger.Error("pool stop error", "error", err)
		}
	}
	if d.extensions != nil {
		d.extensions.EmitShutdown(ctx)
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent job processors.
func WithConcurrency(n int) Option {
	return func(d *Coordinator) error {
		d.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the coordinator will poll.
func WithQueues(queues []string) Option {
	return func(d *Coordinator) error {
		d.config.Queues = queues
		return nil
	}
}

// WithLogger sets the structured logger for the coordinator.
func WithLogger(l *slog.Logger) Option {
	return func(d *Coordinator) error {
		d.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the coordinator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(d *Coordinator) error {
		d.store = s
		return nil
	}
}
