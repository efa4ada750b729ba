// Package pipeline runs the full tectonic pipeline, from mesh construction
// to tile projection, for one seed and grid size.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/crust"
	"github.com/pthm-cable/foundation/history"
	"github.com/pthm-cable/foundation/mantle"
	"github.com/pthm-cable/foundation/mesh"
	"github.com/pthm-cable/foundation/plates"
	"github.com/pthm-cable/foundation/projection"
	"github.com/pthm-cable/foundation/telemetry"
)

// Result holds every bundle a run produces.
type Result struct {
	Seed          int64
	Width, Height int

	Mesh         *mesh.Mesh
	Potential    *mantle.Potential
	Forcing      *mantle.Forcing
	InitialCrust *crust.Crust
	Graph        *plates.Graph
	Motion       *plates.Motion
	Segments     *plates.Segments
	History      *history.Result
	Crust        *crust.Crust // evolved
	Tiles        *projection.Tiles

	Stats telemetry.RunStats
	Perf  telemetry.PerfStats
}

// Run executes every stage in order. An invalid config is rejected before
// the first stage. ctx is checked between stages; a cancelled run returns an
// error wrapping ctx.Err() and no partial result.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	return RunWith(ctx, cfg, telemetry.NewPerfCollector(1))
}

// RunWith is Run with a caller-owned perf collector, so repeated runs share
// one timing window.
func RunWith(ctx context.Context, cfg *config.Config, perf *telemetry.PerfCollector) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	w, h, seed := cfg.World.Width, cfg.World.Height, cfg.World.Seed
	r := &Result{Seed: seed, Width: w, Height: h}

	perf.StartRun()
	s := &stager{ctx: ctx, perf: perf}

	var err error
	if s.begin(telemetry.StageMesh) {
		r.Mesh, err = mesh.Build(w, h, seed, cfg.Mesh, cfg.Plates)
		s.end(err, "cells", meshCells(r.Mesh))
	}
	if s.begin(telemetry.StageMantlePotential) {
		r.Potential, err = mantle.ComputePotential(r.Mesh, seed, cfg.Mantle)
		s.end(err, "sources", potentialSources(r.Potential))
	}
	if s.begin(telemetry.StageMantleForcing) {
		r.Forcing, err = mantle.ComputeForcing(r.Mesh, r.Potential, cfg.Forcing)
		s.end(err)
	}
	if s.begin(telemetry.StageCrustInit) {
		r.InitialCrust, err = crust.Init(r.Forcing, cfg.Crust)
		s.end(err, "continental_fraction", continentalFraction(r.InitialCrust))
	}
	if s.begin(telemetry.StagePlateGraph) {
		r.Graph, err = plates.BuildGraph(r.Mesh, r.InitialCrust, w, h, seed, cfg.Plates)
		s.end(err, "plates", plateCount(r.Graph))
	}
	if s.begin(telemetry.StagePlateMotion) {
		r.Motion, err = plates.FitMotion(r.Mesh, r.Graph, r.Forcing, cfg.Motion)
		s.end(err, "mean_speed", meanSpeed(r.Motion))
	}
	if s.begin(telemetry.StageSegments) {
		r.Segments, err = plates.BuildSegments(r.Mesh, r.InitialCrust, r.Graph, r.Motion, cfg.Segments)
		s.end(err, "segments", segmentCount(r.Segments))
	}
	if s.begin(telemetry.StageHistory) {
		r.History, err = history.Run(history.Inputs{
			Mesh:     r.Mesh,
			Forcing:  r.Forcing,
			Crust:    r.InitialCrust,
			Graph:    r.Graph,
			Motion:   r.Motion,
			Segments: r.Segments,
		}, cfg.History, cfg.Motion, cfg.Segments)
		s.end(err, "eras", eraCount(r.History))
	}
	if s.begin(telemetry.StageCrustEvolution) {
		r.Crust, err = crust.Evolve(r.InitialCrust,
			r.History.History.EvolutionSignals(), r.History.Provenance.CrustAge,
			cfg.Evolution, crust.MaterialFrom(cfg.Crust))
		s.end(err, "continental_fraction", continentalFraction(r.Crust))
	}
	if s.begin(telemetry.StageProjection) {
		r.Tiles, err = projection.Project(projection.Inputs{
			Width:      w,
			Height:     h,
			Mesh:       r.Mesh,
			Crust:      r.Crust,
			Graph:      r.Graph,
			Motion:     r.Motion,
			History:    r.History.History,
			Tectonics:  r.History.Tectonics,
			Provenance: r.History.Provenance,
		}, cfg.Projection)
		s.end(err, "tiles", w*h)
	}
	perf.EndRun()

	if s.err != nil {
		return nil, s.err
	}

	r.Perf = perf.Stats()
	r.Stats = telemetry.NewRunStats(telemetry.RunInputs{
		Seed:         seed,
		Width:        w,
		Height:       h,
		Mesh:         r.Mesh,
		Graph:        r.Graph,
		Motion:       r.Motion,
		Segments:     r.Segments,
		InitialCrust: r.InitialCrust,
		FinalCrust:   r.Crust,
		History:      r.History,
	})
	slog.Info("run complete", "stats", r.Stats, "perf", r.Perf)
	return r, nil
}

// stager sequences stages: once a stage fails or ctx is done, every later
// begin reports false.
type stager struct {
	ctx   context.Context
	perf  *telemetry.PerfCollector
	stage string
	start time.Time
	err   error
}

func (s *stager) begin(stage string) bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = fmt.Errorf("pipeline: before %s: %w", stage, err)
		return false
	}
	s.stage = stage
	s.start = time.Now()
	s.perf.StartStage(stage)
	return true
}

func (s *stager) end(err error, attrs ...any) {
	if err != nil {
		s.err = fmt.Errorf("pipeline: %s: %w", s.stage, err)
		slog.Error("stage failed", "stage", s.stage, "error", err)
		return
	}
	args := append([]any{"stage", s.stage, "duration_us", time.Since(s.start).Microseconds()}, attrs...)
	slog.Info("stage done", args...)
}

func meshCells(m *mesh.Mesh) int {
	if m == nil {
		return 0
	}
	return m.CellCount
}

func potentialSources(p *mantle.Potential) int {
	if p == nil {
		return 0
	}
	return len(p.Sources)
}

func continentalFraction(c *crust.Crust) float64 {
	if c == nil {
		return 0
	}
	return c.ContinentalFraction()
}

func plateCount(g *plates.Graph) int {
	if g == nil {
		return 0
	}
	return g.PlateCount()
}

func meanSpeed(mo *plates.Motion) float64 {
	if mo == nil {
		return 0
	}
	return mo.MeanSpeed()
}

func segmentCount(s *plates.Segments) int {
	if s == nil {
		return 0
	}
	return s.Len()
}

func eraCount(h *history.Result) int {
	if h == nil || h.History == nil {
		return 0
	}
	return h.History.EraCount
}
