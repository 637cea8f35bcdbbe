package pipeline

import (
	"sync"
	"testing"
	"time"

	"quill/internal/tasks"
)

func collectEstimates(t *testing.T, duration, factor float64, diarize bool, runFor time.Duration) []tasks.Progress {
	t.Helper()
	var mu sync.Mutex
	var reports []tasks.Progress

	est := startEstimator(duration, factor, diarize, 5*time.Millisecond, func(p tasks.Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	})
	time.Sleep(runFor)
	est.stop()

	mu.Lock()
	defer mu.Unlock()
	return reports
}

func TestEstimatorClimbsAndCaps(t *testing.T) {
	// duration 1s at 10x realtime: expected total 100ms, so 200ms of
	// ticking is enough for the estimate to hit the cap.
	reports := collectEstimates(t, 1.0, 10.0, false, 200*time.Millisecond)
	if len(reports) == 0 {
		t.Fatal("estimator emitted nothing")
	}

	last := transcribeStartPct
	for _, p := range reports {
		if p.Step != tasks.StepTranscribing {
			t.Errorf("step = %s, want transcribing", p.Step)
		}
		if p.Percent < last+minEmitAdvance {
			t.Errorf("emit at %d did not advance five points past %d", p.Percent, last)
		}
		last = p.Percent
	}

	// 20 + 0.95*(85-20) truncates to 81.
	if final := reports[len(reports)-1].Percent; final > 81 {
		t.Errorf("estimate %d exceeded the 95%% cap", final)
	}
	if reports[len(reports)-1].CurrentTime <= 0 {
		t.Error("playhead position should advance with elapsed time")
	}
}

func TestEstimatorPlayheadNeverExceedsDuration(t *testing.T) {
	// 10x realtime against 1s of media: elapsed*factor passes the duration
	// within milliseconds, so every report exercises the clamp.
	reports := collectEstimates(t, 1.0, 10.0, false, 200*time.Millisecond)
	if len(reports) == 0 {
		t.Fatal("estimator emitted nothing")
	}
	for _, p := range reports {
		if p.CurrentTime > 1.0 {
			t.Errorf("playhead %.3f exceeds media duration 1.0", p.CurrentTime)
		}
	}
}

func TestEstimatorDiarizeCeiling(t *testing.T) {
	reports := collectEstimates(t, 1.0, 10.0, true, 200*time.Millisecond)
	for _, p := range reports {
		// 20 + 0.95*(70-20) truncates to 67.
		if p.Percent > 67 {
			t.Errorf("estimate %d exceeded the diarization ceiling", p.Percent)
		}
	}
}

func TestEstimatorSilentWithoutDuration(t *testing.T) {
	reports := collectEstimates(t, 0, 10.0, false, 50*time.Millisecond)
	if len(reports) != 0 {
		t.Errorf("estimator emitted %d reports with unknown duration", len(reports))
	}
}

func TestEstimatorStopBlocksUntilDrained(t *testing.T) {
	est := startEstimator(1.0, 10.0, false, time.Millisecond, func(tasks.Progress) {})
	done := make(chan struct{})
	go func() {
		est.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}
	// After stop, no further emits can occur; a second stop-path read of
	// the done channel must not block.
	<-est.done
}
