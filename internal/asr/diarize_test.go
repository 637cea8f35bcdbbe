package asr

import (
	"context"
	"testing"
)

func TestGapDiarizerAlternatesAtSilences(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1.2, End: 2, Text: "there"},
		{Start: 4, End: 5, Text: "anyone home"},
	}

	labeled, speakers, err := NewGapDiarizer(1.5).Diarize(context.Background(), "unused.wav", segments, 0, 0)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if speakers != 2 {
		t.Errorf("speakers = %d, want 2", speakers)
	}

	want := []string{"SPEAKER_00", "SPEAKER_00", "SPEAKER_01"}
	for i, seg := range labeled {
		if seg.Speaker != want[i] {
			t.Errorf("segment %d speaker = %q, want %q", i, seg.Speaker, want[i])
		}
	}

	// The input slice is never labeled in place.
	if segments[0].Speaker != "" {
		t.Error("Diarize mutated its input")
	}
}

func TestGapDiarizerHonorsSpeakerBounds(t *testing.T) {
	segments := []Segment{{Start: 0, End: 1, Text: "solo"}}

	_, speakers, err := NewGapDiarizer(0).Diarize(context.Background(), "unused.wav", segments, 2, 0)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if speakers != 2 {
		t.Errorf("speakers = %d, want the min_speakers floor of 2", speakers)
	}

	// Three long gaps but max_speakers 2 wraps the alternation.
	spaced := []Segment{
		{Start: 0, End: 1},
		{Start: 5, End: 6},
		{Start: 10, End: 11},
	}
	labeled, speakers, err := NewGapDiarizer(0).Diarize(context.Background(), "unused.wav", spaced, 0, 2)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if speakers != 2 {
		t.Errorf("speakers = %d, want 2", speakers)
	}
	if labeled[2].Speaker != "SPEAKER_00" {
		t.Errorf("third segment = %q, want wrap back to SPEAKER_00", labeled[2].Speaker)
	}
}

func TestAssignSpeakersByOverlap(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 2, Text: "hello"},
		{Start: 2, End: 4, Text: "hi there"},
		{Start: 10, End: 11, Text: "uncovered"},
	}
	turns := []Turn{
		{Start: 0, End: 1.5, Speaker: "SPEAKER_00"},
		{Start: 1.5, End: 4, Speaker: "SPEAKER_01"},
	}

	assigned := AssignSpeakers(segments, turns)
	if assigned[0].Speaker != "SPEAKER_00" {
		t.Errorf("segment 0 = %q, want SPEAKER_00 (1.5s vs 0.5s overlap)", assigned[0].Speaker)
	}
	if assigned[1].Speaker != "SPEAKER_01" {
		t.Errorf("segment 1 = %q, want SPEAKER_01", assigned[1].Speaker)
	}
	if assigned[2].Speaker != "" {
		t.Errorf("segment 2 = %q, want empty without any overlapping turn", assigned[2].Speaker)
	}
}

func TestAssignSpeakersNoTurns(t *testing.T) {
	segments := []Segment{{Start: 0, End: 1, Text: "hello"}}
	assigned := AssignSpeakers(segments, nil)
	if len(assigned) != 1 || assigned[0].Speaker != "" {
		t.Errorf("assigned = %+v", assigned)
	}
}

func TestCountSpeakers(t *testing.T) {
	segments := []Segment{
		{Speaker: "SPEAKER_00"},
		{Speaker: "SPEAKER_01"},
		{Speaker: "SPEAKER_00"},
		{Speaker: ""},
	}
	if got := CountSpeakers(segments); got != 2 {
		t.Errorf("CountSpeakers = %d, want 2", got)
	}
}
