// Field preview tool: runs the pipeline once and writes PNG previews of the
// mantle potential and the projected tile fields.
//
// Usage: go run ./cmd/potentialpreview -seed 7 -out previews/
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "World seed (0 = keep config value)")
	outDir := flag.String("out", "previews", "Directory for PNG files")
	scale := flag.Int("scale", 4, "Pixels per tile")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
		if err := cfg.Refresh(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}

	r, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("pipeline failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	for _, l := range Layers(r) {
		img := Render(l, r.Width, r.Height, *scale)
		path := filepath.Join(*outDir, l.Name+".png")
		if err := writePNG(path, img); err != nil {
			log.Fatalf("writing %s: %v", path, err)
		}
		fmt.Println(path)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
