package telemetry

import (
	"log/slog"
	"slices"
	"time"
)

// Stage names for one pipeline run, in execution order.
const (
	StageMesh            = "mesh"
	StageMantlePotential = "mantle_potential"
	StageMantleForcing   = "mantle_forcing"
	StageCrustInit       = "crust_init"
	StagePlateGraph      = "plate_graph"
	StagePlateMotion     = "plate_motion"
	StageSegments        = "segments"
	StageHistory         = "history"
	StageCrustEvolution  = "crust_evolution"
	StageProjection      = "projection"
)

// Stages lists every stage in execution order.
var Stages = []string{
	StageMesh, StageMantlePotential, StageMantleForcing, StageCrustInit,
	StagePlateGraph, StagePlateMotion, StageSegments, StageHistory,
	StageCrustEvolution, StageProjection,
}

// PerfSample holds timing data for a single run.
type PerfSample struct {
	RunDuration time.Duration
	Stages      map[string]time.Duration
}

// PerfCollector tracks stage timings over a rolling window of runs.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentStages map[string]time.Duration
	runStart      time.Time
	stageStart    time.Time
	lastStage     string
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of runs to average over. A single CLI run uses 1; the
// tuner keeps a longer window.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 1
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentStages: make(map[string]time.Duration),
	}
}

// StartRun begins timing a new pipeline run.
func (p *PerfCollector) StartRun() {
	p.runStart = time.Now()
	p.currentStages = make(map[string]time.Duration)
	p.lastStage = ""
}

// StartStage begins timing a specific stage, ending the previous one.
func (p *PerfCollector) StartStage(stage string) {
	now := time.Now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
	}
	p.stageStart = now
	p.lastStage = stage
}

// EndRun finishes timing the current run and records the sample.
func (p *PerfCollector) EndRun() {
	now := time.Now()
	if p.lastStage != "" {
		p.currentStages[p.lastStage] += now.Sub(p.stageStart)
		p.lastStage = ""
	}

	p.samples[p.writeIndex] = PerfSample{
		RunDuration: now.Sub(p.runStart),
		Stages:      p.currentStages,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// Last returns the duration of stage in the most recent run.
func (p *PerfCollector) Last(stage string) time.Duration {
	if p.sampleCount == 0 {
		return 0
	}
	idx := (p.writeIndex - 1 + p.windowSize) % p.windowSize
	return p.samples[idx].Stages[stage]
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Runs int

	AvgRunDuration time.Duration
	MinRunDuration time.Duration
	MaxRunDuration time.Duration

	// Stage breakdown (average durations)
	StageAvg map[string]time.Duration

	// Stage percentages of total run time
	StagePct map[string]float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			StageAvg: make(map[string]time.Duration),
			StagePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minRun, maxRun time.Duration
	stageSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.RunDuration

		if i == 0 || s.RunDuration < minRun {
			minRun = s.RunDuration
		}
		if s.RunDuration > maxRun {
			maxRun = s.RunDuration
		}
		for stage, dur := range s.Stages {
			stageSum[stage] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	stageAvg := make(map[string]time.Duration)
	stagePct := make(map[string]float64)
	for stage, sum := range stageSum {
		stageAvg[stage] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			stagePct[stage] = float64(stageAvg[stage]) / float64(avg) * 100
		}
	}

	return PerfStats{
		Runs:           p.sampleCount,
		AvgRunDuration: avg,
		MinRunDuration: minRun,
		MaxRunDuration: maxRun,
		StageAvg:       stageAvg,
		StagePct:       stagePct,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("runs", s.Runs),
		slog.Int64("avg_run_us", s.AvgRunDuration.Microseconds()),
		slog.Int64("min_run_us", s.MinRunDuration.Microseconds()),
		slog.Int64("max_run_us", s.MaxRunDuration.Microseconds()),
	}
	for _, stage := range Stages {
		if pct, ok := s.StagePct[stage]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(stage+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// StageRecord is one stages.csv row.
type StageRecord struct {
	Stage      string  `csv:"stage"`
	DurationUS int64   `csv:"duration_us"`
	Pct        float64 `csv:"pct"`
}

// ToCSV flattens the stage breakdown into rows, known stages first in
// execution order and any others after them by name.
func (s PerfStats) ToCSV() []StageRecord {
	names := make([]string, 0, len(s.StageAvg))
	for stage := range s.StageAvg {
		if !slices.Contains(Stages, stage) {
			names = append(names, stage)
		}
	}
	slices.Sort(names)

	var out []StageRecord
	for _, stage := range append(slices.Clone(Stages), names...) {
		d, ok := s.StageAvg[stage]
		if !ok {
			continue
		}
		out = append(out, StageRecord{Stage: stage, DurationUS: d.Microseconds(), Pct: s.StagePct[stage]})
	}
	return out
}
