package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/pipeline"
	"github.com/pthm-cable/foundation/telemetry"
)

// Targets are what a tuned config should produce.
type Targets struct {
	ContinentalFraction float64 // final continental share of cells
	MinQuality          float64 // mean plate fit quality, 0..255
}

// FitnessEvaluator runs the pipeline over several seeds and scores the
// result against the targets (lower = better).
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []int64
	baseConfig *config.Config
	targets    Targets
	out        *telemetry.OutputManager

	mu        sync.Mutex
	lastStats []telemetry.RunStats
}

// NewFitnessEvaluator creates a new evaluator. out may be nil.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, baseCfg *config.Config, targets Targets, out *telemetry.OutputManager) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		seeds:      seeds,
		baseConfig: baseCfg,
		targets:    targets,
		out:        out,
	}
}

// LastStats returns the per-seed stats from the most recent evaluation.
func (fe *FitnessEvaluator) LastStats() []telemetry.RunStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStats
}

// failedFitness scores a candidate the pipeline rejected.
const failedFitness = 1e6

// Evaluate computes the mean fitness of x across all seeds.
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) float64 {
	stats := make([]telemetry.RunStats, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			cfg := fe.baseConfig.Clone()
			fe.params.ApplyToConfig(cfg, x)
			cfg.World.Seed = s
			if err := cfg.Refresh(); err != nil {
				errs[idx] = err
				return
			}
			r, err := pipeline.Run(ctx, cfg)
			if err != nil {
				errs[idx] = err
				return
			}
			stats[idx] = r.Stats
		}(i, seed)
	}
	wg.Wait()

	var total float64
	for i := range fe.seeds {
		if errs[i] != nil {
			slog.Warn("candidate failed", "seed", fe.seeds[i], "error", errs[i])
			total += failedFitness
			continue
		}
		total += fe.Score(stats[i])
		if err := fe.out.WriteRun(stats[i]); err != nil {
			slog.Error("failed to write run", "error", err)
		}
	}

	fe.mu.Lock()
	fe.lastStats = stats
	fe.mu.Unlock()

	return total / float64(len(fe.seeds))
}

// Score is the squared continental-fraction miss plus a penalty for plate
// fit quality below the target.
func (fe *FitnessEvaluator) Score(s telemetry.RunStats) float64 {
	if s.Plates == 0 {
		return failedFitness
	}
	miss := s.ContinentalFinal - fe.targets.ContinentalFraction
	score := miss * miss * 100
	if short := fe.targets.MinQuality - s.QualityMean; short > 0 {
		score += short / 255
	}
	return score
}
