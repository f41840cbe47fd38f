package selection

import (
	"math"
	"sort"
)

// Candidate is one scored span proposed by the analysis stage.
type Candidate struct {
	Start           float64
	End             float64
	EngagementScore float64
	// AdjustedEngagementScore overrides EngagementScore when the scoring
	// stage has re-ranked the candidate. Already on the 0-100 scale.
	AdjustedEngagementScore *float64
	Title                   string
	Reason                  string
}

// Duration returns the candidate span in seconds.
func (c Candidate) Duration() float64 {
	return c.End - c.Start
}

// Score normalizes the candidate onto the 0-100 scale: the adjusted score
// wins when present, otherwise the raw 0-10 engagement score is scaled up.
// Rounded to two decimals so equal candidates compare equal.
func (c Candidate) Score() float64 {
	if c.AdjustedEngagementScore != nil {
		return round2(*c.AdjustedEngagementScore)
	}
	return round2(c.EngagementScore * 10)
}

// Clip is an accepted selection.
type Clip struct {
	Start  float64
	End    float64
	Score  float64
	Title  string
	Reason string
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// Config bounds a single selection pass.
type Config struct {
	MinScore         float64
	MinDuration      float64
	MaxDuration      float64
	TargetClips      int
	OverlapThreshold float64
	MinTargetClips   int
	MaxTargetClips   int
}

const (
	defaultMinScore         = 30.0
	relaxedMinScore         = 10.0
	relaxedMinDuration      = 5.0
	relaxedMaxDurationFloor = 90.0
	fillOverlapThreshold    = 0.92
	fallbackMinGap          = 3.0
	fillFallbackMinGap      = 0.5
	defaultTitle            = "Viral Clip"
)

// Select runs the full selection pipeline: a strict pass, a relaxation
// ladder that loosens score and duration constraints until something
// survives, and fill passes that top up an undersized result. Each rung
// mutates the working config, so the rank-only fallback and the fill
// passes operate under whatever bounds the ladder reached. Candidates are
// never invented; an empty input yields an empty output.
func Select(candidates []Candidate, cfg Config) []Clip {
	if len(candidates) == 0 {
		return nil
	}
	cfg = normalize(cfg)

	clips := pass(candidates, cfg)

	if len(clips) == 0 {
		cfg.MinScore = relaxedMinScore
		clips = pass(candidates, cfg)

		if len(clips) == 0 {
			cfg.MinDuration = relaxedMinDuration
			cfg.MaxDuration = math.Max(cfg.MaxDuration, relaxedMaxDurationFloor)
			clips = pass(candidates, cfg)
		}
		if len(clips) == 0 {
			clips = rankOnly(candidates, cfg, math.Inf(-1), fallbackMinGap)
		}
	}

	if len(clips) > 0 && len(clips) < cfg.MinTargetClips {
		clips = fill(candidates, cfg, clips)
	}
	return clips
}

// pass applies the strict filter-sort-greedy selection for one config.
func pass(candidates []Candidate, cfg Config) []Clip {
	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		d := c.Duration()
		if d < cfg.MinDuration || d > cfg.MaxDuration {
			continue
		}
		if c.Score() < cfg.MinScore {
			continue
		}
		eligible = append(eligible, c)
	}
	sortByScore(eligible)

	var accepted []Clip
	for _, c := range eligible {
		if len(accepted) >= cfg.TargetClips {
			break
		}
		if overlapsAny(accepted, c.Start, c.End, cfg.OverlapThreshold) {
			continue
		}
		accepted = append(accepted, toClip(c, c.Start, c.End))
	}
	return accepted
}

// rankOnly ignores the score floor entirely and clamps every candidate's
// duration into bounds, keeping candidates whose starts are at least
// minGap apart. Spans with no duration are unusable and never stretched
// into clips. The last resort returns the single best clamped candidate.
func rankOnly(candidates []Candidate, cfg Config, minScore, minGap float64) []Clip {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.End <= c.Start {
			continue
		}
		ranked = append(ranked, c)
	}
	sortByScore(ranked)

	var accepted []Clip
	for _, c := range ranked {
		if len(accepted) >= cfg.TargetClips {
			break
		}
		if c.Score() < minScore {
			continue
		}
		start, end := clampDuration(c, cfg)
		tooClose := false
		for _, a := range accepted {
			if math.Abs(a.Start-start) < minGap {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		accepted = append(accepted, toClip(c, start, end))
	}

	if len(accepted) == 0 && len(ranked) > 0 {
		best := ranked[0]
		start, end := clampDuration(best, cfg)
		accepted = []Clip{toClip(best, start, end)}
	}
	return accepted
}

// fill tops up an undersized selection. Each pass is kept only when it
// strictly improves the clip count, so relaxation can never lose clips.
func fill(candidates []Candidate, cfg Config, clips []Clip) []Clip {
	loose := cfg
	loose.OverlapThreshold = fillOverlapThreshold
	loose.MinScore = math.Min(cfg.MinScore, relaxedMinScore)
	loose.TargetClips = maxInt(cfg.MinTargetClips, cfg.TargetClips)
	if more := pass(candidates, loose); len(more) > len(clips) {
		clips = more
	}

	if len(clips) < cfg.MinTargetClips {
		loose.MinScore = -1
		if more := rankOnly(candidates, loose, loose.MinScore, fillFallbackMinGap); len(more) > len(clips) {
			clips = more
		}
	}
	return clips
}

// clampDuration forces a candidate span into the configured bounds,
// anchored at its start.
func clampDuration(c Candidate, cfg Config) (float64, float64) {
	start, end := c.Start, c.End
	d := end - start
	switch {
	case d < cfg.MinDuration:
		end = start + cfg.MinDuration
	case d > cfg.MaxDuration:
		end = start + cfg.MaxDuration
	}
	return start, end
}

// overlapsAny reports whether the span shares more than threshold seconds
// with any accepted clip.
func overlapsAny(accepted []Clip, start, end, threshold float64) bool {
	for _, a := range accepted {
		overlap := math.Min(end, a.End) - math.Max(start, a.Start)
		if overlap > threshold {
			return true
		}
	}
	return false
}

// sortByScore orders candidates best first, stable so ties keep their
// analysis order.
func sortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score() > candidates[j].Score()
	})
}

func toClip(c Candidate, start, end float64) Clip {
	title := c.Title
	if title == "" {
		title = defaultTitle
	}
	return Clip{Start: start, End: end, Score: c.Score(), Title: title, Reason: c.Reason}
}

func normalize(cfg Config) Config {
	if cfg.MinScore == 0 {
		cfg.MinScore = defaultMinScore
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = 0.75
	}
	if cfg.MinTargetClips <= 0 {
		cfg.MinTargetClips = 10
	}
	if cfg.MaxTargetClips <= 0 {
		cfg.MaxTargetClips = 40
	}
	if cfg.TargetClips <= 0 {
		cfg.TargetClips = cfg.MinTargetClips
	}
	return cfg
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
