package asr

import (
	"context"
	"fmt"
	"sort"
)

// Diarizer labels transcript segments with speaker identities.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, segments []Segment, minSpeakers, maxSpeakers int) ([]Segment, int, error)
}

// gapDiarizer is a heuristic diarizer that alternates speakers at long
// silences between consecutive segments. It needs no external model or
// token, so it serves as the fallback when pyannote is unavailable.
type gapDiarizer struct {
	// gapThreshold is the minimum silence, in seconds, treated as a
	// possible speaker change.
	gapThreshold float64
}

// NewGapDiarizer returns a diarizer that infers speaker turns from silence
// gaps. threshold <= 0 selects the default of 1.5 seconds.
func NewGapDiarizer(threshold float64) Diarizer {
	if threshold <= 0 {
		threshold = 1.5
	}
	return &gapDiarizer{gapThreshold: threshold}
}

func (d *gapDiarizer) Diarize(_ context.Context, _ string, segments []Segment, minSpeakers, maxSpeakers int) ([]Segment, int, error) {
	if len(segments) == 0 {
		return segments, 0, nil
	}
	if maxSpeakers < 1 {
		maxSpeakers = 2
	}
	if minSpeakers < 1 {
		minSpeakers = 1
	}

	labeled := make([]Segment, len(segments))
	copy(labeled, segments)

	speaker := 0
	used := 1
	labeled[0].Speaker = speakerLabel(0)
	for i := 1; i < len(labeled); i++ {
		gap := labeled[i].Start - labeled[i-1].End
		if gap >= d.gapThreshold {
			speaker = (speaker + 1) % maxSpeakers
			if speaker+1 > used {
				used = speaker + 1
			}
		}
		labeled[i].Speaker = speakerLabel(speaker)
	}

	if used < minSpeakers {
		used = minSpeakers
	}
	return labeled, used, nil
}

func speakerLabel(index int) string {
	return fmt.Sprintf("SPEAKER_%02d", index)
}

// AssignSpeakers maps diarization turns onto transcript segments. Each
// segment takes the speaker whose turns overlap it the most; segments with
// no overlapping turn keep an empty speaker.
func AssignSpeakers(segments []Segment, turns []Turn) []Segment {
	if len(turns) == 0 {
		return segments
	}

	assigned := make([]Segment, len(segments))
	copy(assigned, segments)

	for i := range assigned {
		overlap := make(map[string]float64)
		for _, turn := range turns {
			start := assigned[i].Start
			if turn.Start > start {
				start = turn.Start
			}
			end := assigned[i].End
			if turn.End < end {
				end = turn.End
			}
			if end > start {
				overlap[turn.Speaker] += end - start
			}
		}
		assigned[i].Speaker = dominantSpeaker(overlap)
	}
	return assigned
}

func dominantSpeaker(overlap map[string]float64) string {
	speakers := make([]string, 0, len(overlap))
	for speaker := range overlap {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)

	best := ""
	bestOverlap := 0.0
	for _, speaker := range speakers {
		if overlap[speaker] > bestOverlap {
			best = speaker
			bestOverlap = overlap[speaker]
		}
	}
	return best
}

// CountSpeakers returns the number of distinct non-empty speaker labels.
func CountSpeakers(segments []Segment) int {
	seen := make(map[string]struct{})
	for _, seg := range segments {
		if seg.Speaker != "" {
			seen[seg.Speaker] = struct{}{}
		}
	}
	return len(seen)
}
