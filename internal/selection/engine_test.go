package selection

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

// strictConfig disables the fill passes so the base algorithm is observable
// in isolation.
func strictConfig(target int) Config {
	return Config{
		MinScore:         30,
		MinDuration:      10,
		MaxDuration:      60,
		TargetClips:      target,
		OverlapThreshold: 0.75,
		MinTargetClips:   1,
		MaxTargetClips:   40,
	}
}

func TestSelectOrdersByScoreAndRejectsOverlap(t *testing.T) {
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 8.0},
		{Start: 20, End: 45, EngagementScore: 7.0},
		{Start: 100, End: 140, EngagementScore: 9.0},
	}
	cfg := strictConfig(2)
	cfg.MinTargetClips = 2

	clips := Select(candidates, cfg)
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2: %+v", len(clips), clips)
	}
	if clips[0].Start != 100 || clips[0].Score != 90 {
		t.Errorf("first clip = %+v, want the 90-score span at 100", clips[0])
	}
	if clips[1].Start != 0 || clips[1].Score != 80 {
		t.Errorf("second clip = %+v, want the 80-score span at 0", clips[1])
	}
}

func TestSelectEmptyCandidates(t *testing.T) {
	if clips := Select(nil, strictConfig(5)); clips != nil {
		t.Fatalf("empty input produced clips: %+v", clips)
	}
}

func TestAdjustedScoreOverridesEngagement(t *testing.T) {
	c := Candidate{Start: 0, End: 30, EngagementScore: 2.0, AdjustedEngagementScore: floatPtr(85)}
	if got := c.Score(); got != 85 {
		t.Errorf("Score() = %v, want adjusted 85", got)
	}
	c.AdjustedEngagementScore = nil
	if got := c.Score(); got != 20 {
		t.Errorf("Score() = %v, want scaled 20", got)
	}
}

func TestOverlapWithinThresholdAccepted(t *testing.T) {
	// 0.5 seconds of shared span is under the 0.75 threshold.
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 9.0},
		{Start: 29.5, End: 55, EngagementScore: 8.0},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want both near-adjacent spans: %+v", len(clips), clips)
	}
}

func TestRelaxationLowersScoreFloor(t *testing.T) {
	// All candidates score below 30 but above 10.
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 1.5},
		{Start: 50, End: 80, EngagementScore: 2.0},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 2 {
		t.Fatalf("relaxed pass rejected viable candidates: %+v", clips)
	}
	if clips[0].Score != 20 {
		t.Errorf("best clip score = %v, want 20", clips[0].Score)
	}
}

func TestRelaxationWidensDurations(t *testing.T) {
	// Good score, but 8 seconds is under the 10 second floor. The second
	// relaxation drops the floor to 5.
	candidates := []Candidate{
		{Start: 10, End: 18, EngagementScore: 9.0},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 1 {
		t.Fatalf("short candidate lost: %+v", clips)
	}
	if clips[0].Duration() != 8 {
		t.Errorf("duration = %v, want untouched 8", clips[0].Duration())
	}
}

func TestRankOnlyFallbackClampsToRelaxedDurations(t *testing.T) {
	// 300 seconds exceeds even the widened ceiling, so only the rank-only
	// fallback can accept it. By then the ladder has widened the ceiling to
	// 90 seconds, and the clamp uses that bound, not the strict one.
	candidates := []Candidate{
		{Start: 0, End: 300, EngagementScore: 9.5},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 1 {
		t.Fatalf("fallback produced %d clips: %+v", len(clips), clips)
	}
	if clips[0].Start != 0 || clips[0].End != 90 {
		t.Errorf("clamped span = [%v, %v], want [0, 90]", clips[0].Start, clips[0].End)
	}
}

func TestEmptySpanCandidatesYieldNothing(t *testing.T) {
	// Spans with no duration cannot be stretched into clips; a candidate
	// set holding only empty spans is a terminal no-viable-clip result.
	candidates := []Candidate{
		{Start: 10, End: 10, EngagementScore: 9.5},
		{Start: 50, End: 50, EngagementScore: 9.0},
		{Start: 80, End: 70, EngagementScore: 8.5},
	}
	if clips := Select(candidates, strictConfig(5)); len(clips) != 0 {
		t.Fatalf("empty spans produced clips: %+v", clips)
	}
}

func TestEmptySpanCandidatesSkippedInFallback(t *testing.T) {
	// The higher-scoring empty span is ignored; the real span survives via
	// the rank-only fallback.
	candidates := []Candidate{
		{Start: 10, End: 10, EngagementScore: 9.9},
		{Start: 100, End: 400, EngagementScore: 0.5},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 1 {
		t.Fatalf("got %d clips, want 1: %+v", len(clips), clips)
	}
	if clips[0].Start != 100 {
		t.Errorf("clip = %+v, want the non-empty span at 100", clips[0])
	}
}

func TestRankOnlyFallbackEnforcesStartGap(t *testing.T) {
	// Every candidate fails the strict passes (scores below 10 and spans
	// beyond the ceiling), so rank-only runs with the 3 second start gap.
	candidates := []Candidate{
		{Start: 0, End: 300, EngagementScore: 0.9},
		{Start: 1, End: 290, EngagementScore: 0.8},
		{Start: 50, End: 400, EngagementScore: 0.7},
	}
	clips := Select(candidates, strictConfig(5))
	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2: %+v", len(clips), clips)
	}
	if clips[0].Start != 0 || clips[1].Start != 50 {
		t.Errorf("starts = %v, %v; the start at 1 should be suppressed", clips[0].Start, clips[1].Start)
	}
}

func TestFillPassTopsUpUndersizedSelection(t *testing.T) {
	// Strict pass yields one clip; min target of 3 forces the fill passes,
	// whose looser overlap threshold admits the heavily overlapping spans.
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 9.0},
		{Start: 5, End: 35, EngagementScore: 8.5},
		{Start: 10, End: 40, EngagementScore: 8.0},
	}
	cfg := strictConfig(3)
	cfg.MinTargetClips = 3

	clips := Select(candidates, cfg)
	if len(clips) != 3 {
		t.Fatalf("fill passes produced %d clips, want 3: %+v", len(clips), clips)
	}
}

func TestFillNeverShrinksSelection(t *testing.T) {
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 9.0},
		{Start: 100, End: 130, EngagementScore: 8.0},
	}
	cfg := strictConfig(5)
	cfg.MinTargetClips = 10

	clips := Select(candidates, cfg)
	if len(clips) < 2 {
		t.Fatalf("fill lost clips: %+v", clips)
	}
}

func TestDefaultTitleApplied(t *testing.T) {
	candidates := []Candidate{
		{Start: 0, End: 30, EngagementScore: 8.0},
		{Start: 50, End: 80, EngagementScore: 7.0, Title: "Big reveal"},
	}
	clips := Select(candidates, strictConfig(5))
	if clips[0].Title != "Viral Clip" {
		t.Errorf("untitled clip got %q, want default", clips[0].Title)
	}
	if clips[1].Title != "Big reveal" {
		t.Errorf("title lost: %q", clips[1].Title)
	}
}

func TestTargetCapsAcceptedClips(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 20; i++ {
		start := float64(i * 100)
		candidates = append(candidates, Candidate{
			Start: start, End: start + 30, EngagementScore: 9.0 - float64(i)*0.1,
		})
	}
	cfg := strictConfig(4)
	cfg.MinTargetClips = 4
	clips := Select(candidates, cfg)
	if len(clips) != 4 {
		t.Fatalf("got %d clips, want target cap 4", len(clips))
	}
}

func TestScoreRounding(t *testing.T) {
	c := Candidate{EngagementScore: 7.777}
	if got := c.Score(); math.Abs(got-77.77) > 1e-9 {
		t.Errorf("Score() = %v, want 77.77", got)
	}
}
