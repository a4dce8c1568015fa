package scheduler

import (
	"time"
)

// startProgress launches the periodic progress log when configured. The
// returned stop function is idempotent enough for a deferred call.
func (s *Scheduler) startProgress() func() {
	if s.cfg.Progress <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.cfg.Progress)
		defer ticker.Stop()

		var lastEmitted int64
		lastTime := time.Now()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				emitted := s.stats.Emitted.Load()
				elapsed := now.Sub(lastTime).Seconds()
				var rate float64
				if elapsed > 0 {
					rate = float64(emitted-lastEmitted) / elapsed
				}
				s.logger.Info("progress",
					"emitted", emitted,
					"produced", s.stats.Produced.Load(),
					"dropped", s.stats.Dropped.Load(),
					"write_failures", s.stats.WriteFailures.Load(),
					"rate", rate)
				lastEmitted = emitted
				lastTime = now
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}
