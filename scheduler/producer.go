package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/admirito/avalon/extension"
	"github.com/admirito/avalon/mapping"
)

// Producer is everything one worker needs: its own model instance, the
// per-producer mapping chain (inline mappings first, then globals), and its
// own format instance. Instances are never shared between workers.
type Producer struct {
	Title  string
	Weight float64
	Model  extension.Model
	Chain  mapping.Chain
	Format extension.Format
}

// warnInterval rate-limits per-worker error logging
const warnInterval = time.Second

// worker runs one producer: it waits for grants, builds batches of exactly
// the granted size (drawing extra records to cover mapping drops), and
// hands payloads to the writer queue.
type worker struct {
	id int
	p  Producer
	s  *Scheduler

	grants chan int

	consecutiveModelErrors   int
	consecutiveMappingErrors int
	consecutiveFormatErrors  int
	lastWarn                 time.Time
}

// buildReport is the worker's message back to the coordinator after a
// grant: how many records actually went into the queue, and whether the
// worker retired or hit a fatal serialization failure.
type buildReport struct {
	worker  *worker
	granted int
	built   int
	retired bool
	fatal   error
}

// batchItem is one payload travelling from a worker to a writer slot.
type batchItem struct {
	payload extension.Payload
	records int
}

// replaySource is the model-shaped proxy handed to formats: its Next
// replays the post-mapping records the worker collected for this batch.
type replaySource struct {
	records []extension.Record
	i       int
}

// Next implements extension.Model.
func (r *replaySource) Next() (extension.Record, error) {
	if r.i >= len(r.records) {
		return nil, io.EOF
	}
	record := r.records[r.i]
	r.i++
	return record, nil
}

// run consumes grants until the channel closes or the worker retires.
func (w *worker) run(ctx context.Context) {
	defer w.s.workerWG.Done()

	for granted := range w.grants {
		report, payload := w.buildBatch(ctx, granted)

		if report.built > 0 {
			item := batchItem{payload: payload, records: report.built}
			if err := w.s.pool.Submit(w.s.abortCtx, item); err != nil {
				return
			}
		}

		select {
		case w.s.builds <- report:
		case <-w.s.abortCtx.Done():
			return
		}

		if report.retired || report.fatal != nil {
			return
		}
	}
}

// warn logs a worker error at most once per warnInterval.
func (w *worker) warn(msg string, err error) {
	if time.Since(w.lastWarn) < warnInterval {
		return
	}
	w.lastWarn = time.Now()
	w.s.logger.Warn(msg,
		slog.String("model", w.p.Title),
		slog.Int("worker", w.id),
		slog.Any("error", err))
}

// buildBatch draws records from the model through the mapping chain until
// the granted count survives, then serializes them. Model and mapping
// failures drop the record without advancing any counter; too many
// consecutive failures retire the worker.
func (w *worker) buildBatch(ctx context.Context, granted int) (buildReport, extension.Payload) {
	report := buildReport{worker: w, granted: granted}
	m := w.s.metrics

	records := make([]extension.Record, 0, granted)
	for len(records) < granted {
		select {
		case <-ctx.Done():
			// shutting down: clip the batch to what survived so far
			granted = len(records)
			continue
		default:
		}

		record, err := w.p.Model.Next()
		if err != nil {
			w.s.stats.ModelErrors.Add(1)
			if m != nil {
				m.ModelErrors.Inc()
			}
			w.warn("model production failed, dropping record", err)
			w.consecutiveModelErrors++
			if w.consecutiveModelErrors >= w.s.cfg.MaxModelErrors {
				report.retired = true
				break
			}
			continue
		}
		w.consecutiveModelErrors = 0
		w.s.stats.Produced.Add(1)
		if m != nil {
			m.Produced.Inc()
		}

		mapped, err := w.p.Chain.Apply(record)
		if err != nil {
			w.s.stats.MappingErrors.Add(1)
			if m != nil {
				m.MappingErrors.Inc()
			}
			w.warn("mapping failed, dropping record", err)
			w.consecutiveMappingErrors++
			if w.consecutiveMappingErrors >= w.s.cfg.MaxModelErrors {
				report.retired = true
				break
			}
			continue
		}
		w.consecutiveMappingErrors = 0

		if mapped == nil {
			w.s.stats.Dropped.Add(1)
			if m != nil {
				m.Dropped.Inc()
			}
			continue
		}
		records = append(records, mapped)
	}

	payload, err := w.p.Format.Batch(&replaySource{records: records}, len(records))
	if err != nil {
		w.s.stats.FormatErrors.Add(1)
		if m != nil {
			m.FormatErrors.Inc()
		}
		w.warn("batch serialization failed, dropping batch", err)
		w.consecutiveFormatErrors++
		if w.consecutiveFormatErrors >= w.s.cfg.MaxFormatErrors {
			report.fatal = err
		}
		return report, extension.Payload{}
	}
	w.consecutiveFormatErrors = 0

	report.built = len(records)
	if m != nil {
		m.BatchRecords.Observe(float64(len(records)))
	}
	return report, payload
}
