package pipeline

import (
	"context"
	"fmt"
	"time"

	"quill/internal/tasks"
)

// Transcription backends report nothing while they run, so progress between
// the transcribe start and its completion is estimated from elapsed wall
// time against the expected runtime (media duration divided by the
// backend's realtime factor). The estimate is capped below the ceiling and
// only emitted on a five-point advance to keep the update stream quiet.
type estimator struct {
	cancel context.CancelFunc
	done   chan struct{}
}

const (
	transcribeStartPct   = 20
	transcribeCeilDirect = 85
	transcribeCeilDiar   = 70
	estimateCap          = 0.95
	minEmitAdvance       = 5
)

// startEstimator launches the background ticker. Call stop before applying
// any terminal transition so that no late estimate can race it.
func startEstimator(duration, factor float64, diarize bool, interval time.Duration, report func(tasks.Progress)) *estimator {
	ctx, cancel := context.WithCancel(context.Background())
	e := &estimator{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(e.done)
		e.run(ctx, duration, factor, diarize, interval, report)
	}()
	return e
}

// stop cancels the ticker and waits for the goroutine to drain.
func (e *estimator) stop() {
	e.cancel()
	<-e.done
}

func (e *estimator) run(ctx context.Context, duration, factor float64, diarize bool, interval time.Duration, report func(tasks.Progress)) {
	estimatedTotal := 0.0
	if duration > 0 && factor > 0 {
		estimatedTotal = duration / factor
	}

	ceiling := transcribeCeilDirect
	if diarize {
		ceiling = transcribeCeilDiar
	}

	start := time.Now()
	last := transcribeStartPct

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if estimatedTotal <= 0 {
			continue
		}

		elapsed := time.Since(start).Seconds()
		ratio := elapsed / estimatedTotal
		if ratio > estimateCap {
			ratio = estimateCap
		}
		current := transcribeStartPct + int(ratio*float64(ceiling-transcribeStartPct))
		if current < last+minEmitAdvance {
			continue
		}
		last = current

		// The playhead cannot move past the end of the media.
		currentTime := elapsed * factor
		if currentTime > duration {
			currentTime = duration
		}
		report(tasks.Progress{
			Step:        tasks.StepTranscribing,
			Percent:     current,
			Message:     fmt.Sprintf("Transcribing audio (%ds elapsed)...", int(elapsed)),
			CurrentTime: currentTime,
		})
	}
}
