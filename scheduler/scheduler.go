package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/admirito/avalon/errors"
	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/metric"
	workerpool "github.com/admirito/avalon/pkg/worker"
)

// Config holds the runtime parameters of one pipeline run.
type Config struct {
	// Number is the total emitted-record cap: negative means unlimited,
	// zero means exit immediately without writing.
	Number int64
	// Rate caps global emission in records per second; 0 means unlimited.
	Rate float64
	// BatchSize is the records per dispatched batch.
	BatchSize int
	// Writers is the writer pool size; the queue capacity equals it so
	// back-pressure reaches producers.
	Writers int
	// Duration optionally caps the wall-clock run time; 0 disables.
	Duration time.Duration
	// ShutdownTimeout bounds the drain after cancellation or exhaustion.
	ShutdownTimeout time.Duration
	// Progress logs pipeline counters at this interval; 0 disables.
	Progress time.Duration

	// Error policy thresholds (consecutive failures)
	MaxModelErrors    int
	MaxFormatErrors   int
	MaxMediumFailures int

	Logger  *slog.Logger
	Metrics *metric.PipelineMetrics
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Rate < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate must be positive")
	}
	if c.BatchSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"batch size must be at least 1")
	}
	if c.Writers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"writer count must be at least 1")
	}
	return nil
}

// withDefaults fills unset policy values.
func (c Config) withDefaults() Config {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxModelErrors <= 0 {
		c.MaxModelErrors = 100
	}
	if c.MaxFormatErrors <= 0 {
		c.MaxFormatErrors = 100
	}
	if c.MaxMediumFailures <= 0 {
		c.MaxMediumFailures = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Stats exposes the pipeline counters for progress reporting and tests.
type Stats struct {
	Produced      atomic.Int64
	Emitted       atomic.Int64
	Dropped       atomic.Int64
	ModelErrors   atomic.Int64
	MappingErrors atomic.Int64
	FormatErrors  atomic.Int64
	WriteFailures atomic.Int64
}

// writeReport is a writer slot's outcome message for one batch.
type writeReport struct {
	records int
	err     error
}

// workerState is the coordinator's view of one worker for the smooth
// weighted round-robin dispatch.
type workerState struct {
	w       *worker
	current float64
	ready   bool
	retired bool
}

// Scheduler coordinates producers, the rate and count governors, and the
// writer pool. The coordinator goroutine owns every counter; workers and
// writers communicate through messages only.
type Scheduler struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metric.PipelineMetrics
	governor *Governor
	medium   extension.Medium

	workers []*workerState
	pool    *workerpool.Pool[batchItem]
	builds  chan buildReport
	results chan writeReport

	abortCtx  context.Context
	abortFunc context.CancelFunc

	workerWG sync.WaitGroup

	stats Stats
}

// New assembles a scheduler over expanded producers and an opened-on-Run
// medium.
func New(cfg Config, producers []Producer, m extension.Medium) (*Scheduler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(producers) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Scheduler", "New",
			"at least one producer is required")
	}

	s := &Scheduler{
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		governor: NewGovernor(cfg.Rate, cfg.BatchSize),
		medium:   m,
		builds:   make(chan buildReport, len(producers)),
		results:  make(chan writeReport, cfg.Writers),
	}

	// The queue capacity equals the writer count so a saturated sink blocks
	// submission, starving producers instead of buffering batches.
	s.pool = workerpool.NewPool[batchItem](cfg.Writers, cfg.Writers, s.writeBatch)

	for i, p := range producers {
		w := &worker{
			id:     i,
			p:      p,
			s:      s,
			grants: make(chan int, 1),
		}
		s.workers = append(s.workers, &workerState{w: w, ready: true})
	}

	return s, nil
}

// Stats returns the live pipeline counters.
func (s *Scheduler) Stats() *Stats {
	return &s.stats
}

// Run executes the pipeline until the count or duration cap is reached,
// all producers retire, the medium exceeds its failure limit, or ctx is
// cancelled. It returns nil on a clean run or clean cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Number == 0 {
		return nil
	}

	if err := s.medium.Open(ctx); err != nil {
		return errors.Wrap(err, "Scheduler", "Run", "open medium")
	}
	defer func() {
		if err := s.medium.Close(); err != nil {
			s.logger.Warn("medium close failed", "error", err)
		}
	}()

	abortCtx, abortFunc := context.WithCancel(context.Background())
	s.abortCtx = abortCtx
	s.abortFunc = abortFunc
	defer abortFunc()

	if err := s.pool.Start(abortCtx); err != nil {
		return errors.Wrap(err, "Scheduler", "Run", "start writer pool")
	}

	for _, ws := range s.workers {
		s.workerWG.Add(1)
		go ws.w.run(ctx)
	}
	if s.metrics != nil {
		s.metrics.ActiveProducers.Set(float64(len(s.workers)))
	}

	stopProgress := s.startProgress()
	defer stopProgress()

	runErr := s.coordinate(ctx)

	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// remaining returns the unclaimed record budget: emitted plus outstanding
// grants never exceed Number.
func (s *Scheduler) remaining(emitted, outstanding int64) int64 {
	if s.cfg.Number < 0 {
		return int64(s.cfg.BatchSize) // effectively unlimited, one batch at a time
	}
	return s.cfg.Number - emitted - outstanding
}

// pickWorker runs one smooth weighted round-robin step over the active
// workers and returns the worker with the highest accumulated credit. When
// that worker is still busy with its previous grant, no step is taken and
// nil is returned: the coordinator waits for it instead of handing its turn
// to another worker, so per-producer emission ratios follow the weight
// ratios within one batch over any sufficiently large window.
func (s *Scheduler) pickWorker() *workerState {
	var total float64
	for _, ws := range s.workers {
		if !ws.retired {
			total += ws.w.p.Weight
		}
	}
	if total == 0 {
		return nil
	}

	var best *workerState
	for _, ws := range s.workers {
		if ws.retired {
			continue
		}
		if best == nil || ws.current+ws.w.p.Weight > best.current+best.w.p.Weight {
			best = ws
		}
	}
	if !best.ready {
		return nil
	}
	for _, ws := range s.workers {
		if !ws.retired {
			ws.current += ws.w.p.Weight
		}
	}
	best.current -= total
	return best
}

// coordinate is the dispatch loop: grant credit to workers in weighted
// order under the rate and count governors, and account build and write
// outcomes. All counters live here.
func (s *Scheduler) coordinate(ctx context.Context) error {
	var (
		emitted     int64
		outstanding int64
		granting    = true
		runErr      error

		consecutiveWriteFailures int
		activeWorkers            = len(s.workers)
	)

	var durationCh <-chan time.Time
	if s.cfg.Duration > 0 {
		timer := time.NewTimer(s.cfg.Duration)
		defer timer.Stop()
		durationCh = timer.C
	}

	cancelCh := ctx.Done()

	fail := func(err error) {
		if runErr == nil {
			runErr = err
		}
		granting = false
	}

	for {
		// dispatch while budget and a ready worker exist
		if granting && activeWorkers > 0 {
			if budget := s.remaining(emitted, outstanding); budget > 0 {
				if ws := s.pickWorker(); ws != nil {
					grant := int64(s.cfg.BatchSize)
					if budget < grant {
						grant = budget
					}
					if err := s.governor.WaitN(ctx, int(grant)); err != nil {
						granting = false
						continue
					}
					ws.ready = false
					outstanding += grant
					ws.w.grants <- int(grant)
					continue
				}
			} else if outstanding == 0 {
				// emitted reached Number: clean drain
				break
			}
		}

		if outstanding == 0 && (!granting || activeWorkers == 0) {
			break
		}

		select {
		case <-cancelCh:
			granting = false
			cancelCh = nil

		case <-durationCh:
			s.logger.Info("duration cap reached, draining")
			granting = false
			durationCh = nil

		case report := <-s.builds:
			outstanding -= int64(report.granted - report.built)
			ws := s.workers[report.worker.id]
			switch {
			case report.fatal != nil:
				ws.retired = true
				activeWorkers--
				fail(errors.WrapFatal(report.fatal, "Scheduler", "coordinate",
					"format error limit reached"))
			case report.retired:
				ws.retired = true
				activeWorkers--
				s.logger.Error("producer retired after consecutive errors",
					"model", report.worker.p.Title, "worker", report.worker.id)
				if s.metrics != nil {
					s.metrics.ActiveProducers.Dec()
				}
				if activeWorkers == 0 {
					fail(errors.WrapFatal(errors.ErrProducersExhausted,
						"Scheduler", "coordinate", "producer pool"))
				}
			default:
				ws.ready = true
			}

		case report := <-s.results:
			if report.err != nil {
				outstanding -= int64(report.records)
				s.stats.WriteFailures.Add(1)
				if s.metrics != nil {
					s.metrics.WriteFailure.Inc()
				}
				s.logger.Error("batch write failed", "records", report.records,
					"error", report.err)
				consecutiveWriteFailures++
				if consecutiveWriteFailures >= s.cfg.MaxMediumFailures {
					fail(errors.WrapFatal(report.err, "Scheduler", "coordinate",
						"medium failure limit reached"))
				}
			} else {
				consecutiveWriteFailures = 0
				emitted += int64(report.records)
				outstanding -= int64(report.records)
				s.stats.Emitted.Add(int64(report.records))
				if s.metrics != nil {
					s.metrics.Emitted.Add(float64(report.records))
					s.metrics.WriteSuccess.Inc()
				}
			}
		}
	}

	return runErr
}

// shutdown closes the worker grants, drains the queue through the writer
// pool, and aborts hard when the drain exceeds the shutdown timeout.
func (s *Scheduler) shutdown() error {
	for _, ws := range s.workers {
		close(ws.w.grants)
	}

	done := make(chan struct{})
	go func() {
		// workers exit before Stop, so no Submit is in flight
		s.workerWG.Wait()
		s.pool.Stop()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.ShutdownTimeout)
	defer timer.Stop()

	aborted := false
	for {
		select {
		case <-done:
			if aborted {
				return errors.WrapFatal(errors.ErrShutdownTimeout,
					"Scheduler", "shutdown", "drain")
			}
			return nil

		case report := <-s.results:
			// keep accounting late successes so Stats stay truthful
			if report.err == nil {
				s.stats.Emitted.Add(int64(report.records))
				if s.metrics != nil {
					s.metrics.Emitted.Add(float64(report.records))
				}
			}

		case <-s.builds:
			// workers finishing their last grant

		case <-timer.C:
			s.logger.Error("shutdown timeout, aborting outstanding writes")
			aborted = true
			s.abortFunc()
		}
	}
}

// writeBatch is the writer pool handler: it calls the medium synchronously
// and reports the outcome to the coordinator.
func (s *Scheduler) writeBatch(ctx context.Context, item batchItem) error {
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(s.pool.QueueDepth()))
	}

	err := s.medium.Write(ctx, item.payload)

	select {
	case s.results <- writeReport{records: item.records, err: err}:
	case <-s.abortCtx.Done():
		// hard abort: the coordinator no longer consumes reports
	}
	return err
}
