package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/foundation/config"
)

// OutputManager handles per-run CSV diagnostics.
type OutputManager struct {
	dir       string
	plateFile *os.File
	eraFile   *os.File
	stageFile *os.File
	runFile   *os.File
	runHeader bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  **os.File
	}{
		{"plates.csv", &om.plateFile},
		{"eras.csv", &om.eraFile},
		{"stages.csv", &om.stageFile},
	}
	for _, f := range files {
		fh, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", f.name, err)
		}
		*f.dst = fh
	}

	// runs.csv accumulates across runs; the header goes in once.
	runFile, err := os.OpenFile(filepath.Join(dir, "runs.csv"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		om.Close()
		return nil, fmt.Errorf("opening runs.csv: %w", err)
	}
	om.runFile = runFile
	info, err := runFile.Stat()
	if err != nil {
		om.Close()
		return nil, fmt.Errorf("stat runs.csv: %w", err)
	}
	om.runHeader = info.Size() > 0
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WritePlates writes plates.csv.
func (om *OutputManager) WritePlates(records []PlateRecord) error {
	if om == nil {
		return nil
	}
	if err := gocsv.Marshal(records, om.plateFile); err != nil {
		return fmt.Errorf("writing plates: %w", err)
	}
	return nil
}

// WriteEras writes eras.csv.
func (om *OutputManager) WriteEras(records []EraRecord) error {
	if om == nil {
		return nil
	}
	if err := gocsv.Marshal(records, om.eraFile); err != nil {
		return fmt.Errorf("writing eras: %w", err)
	}
	return nil
}

// WriteStages writes the stage breakdown to stages.csv.
func (om *OutputManager) WriteStages(stats PerfStats) error {
	if om == nil {
		return nil
	}
	if err := gocsv.Marshal(stats.ToCSV(), om.stageFile); err != nil {
		return fmt.Errorf("writing stages: %w", err)
	}
	return nil
}

// WriteRun appends a run summary to runs.csv. The tuner calls this once per
// evaluated candidate.
func (om *OutputManager) WriteRun(stats RunStats) error {
	if om == nil {
		return nil
	}

	records := []RunStats{stats}

	if !om.runHeader {
		// First write includes headers
		if err := gocsv.Marshal(records, om.runFile); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
		om.runHeader = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.runFile); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files. Closing twice is a no-op.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []**os.File{&om.plateFile, &om.eraFile, &om.stageFile, &om.runFile} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		*f = nil
	}
	return firstErr
}
