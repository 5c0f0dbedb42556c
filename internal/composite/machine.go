// Package composite runs merge and caption jobs: an event-driven state
// machine walks a frozen clip sequence through the decoder, compositor and
// recorder, one clip at a time.
package composite

import (
	"math"
	"time"

	"studio/internal/domain"
)

// signal is an input to the job state machine.
type signal string

const (
	sigLoad            signal = "load"
	sigMetadataReady   signal = "metadata_ready"
	sigPlay            signal = "play"
	sigFrame           signal = "frame"
	sigEnded           signal = "ended"
	sigMediaError      signal = "media_error"
	sigRecorderStopped signal = "recorder_stopped"
	sigCancel          signal = "cancel"
)

// forward edges; cancelled and failed are reachable from every
// non-terminal state.
var transitions = map[domain.CompositeState][]domain.CompositeState{
	domain.StateIdle:        {domain.StateLoadingClip},
	domain.StateLoadingClip: {domain.StatePlaying},
	domain.StatePlaying:     {domain.StateClipEnded},
	domain.StateClipEnded:   {domain.StateLoadingClip, domain.StateFinalizing},
	domain.StateFinalizing:  {domain.StateDone},
}

func isValidTransition(from, to domain.CompositeState) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StateCancelled || to == domain.StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Progress computes overall completion in percent. processed clips count in
// full; the current clip contributes elapsed/duration of its share, clamped
// to [0, 1]. Unknown, zero or NaN durations contribute nothing.
func Progress(processed, total int, elapsed time.Duration, clipSeconds float64) float64 {
	if total <= 0 {
		return 0
	}
	share := 100 / float64(total)
	base := float64(processed) * share

	frac := 0.0
	if clipSeconds > 0 && !math.IsNaN(clipSeconds) && !math.IsInf(clipSeconds, 0) {
		frac = elapsed.Seconds() / clipSeconds
		if frac < 0 || math.IsNaN(frac) {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
	}
	return base + frac*share
}

// boundaryProgress is the exact value at the instant clip processed-1 ends.
func boundaryProgress(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(processed) / float64(total)
}
