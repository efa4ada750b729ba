package store

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/foundation/pipeline"
	"github.com/pthm-cable/foundation/telemetry"
)

// Catalog is a SQLite index of pipeline runs.
type Catalog struct {
	conn *sqlx.DB
}

// RunRow is one row of the runs table.
type RunRow struct {
	ID               int64   `db:"id"`
	Seed             int64   `db:"seed"`
	Width            int     `db:"width"`
	Height           int     `db:"height"`
	Cells            int     `db:"cells"`
	Plates           int     `db:"plates"`
	Segments         int     `db:"segments"`
	Events           int     `db:"events"`
	ContinentalFinal float64 `db:"continental_final"`
	QualityMean      float64 `db:"quality_mean"`
	MeanCrustAge     float64 `db:"mean_crust_age"`
	DumpDir          string  `db:"dump_dir"`
}

// PlateRow is one row of the plates table.
type PlateRow struct {
	RunID     int64   `db:"run_id"`
	PlateID   int     `db:"plate_id"`
	Role      string  `db:"role"`
	Kind      string  `db:"kind"`
	Cells     int     `db:"cells"`
	Area      float64 `db:"area"`
	VelocityX float64 `db:"velocity_x"`
	VelocityY float64 `db:"velocity_y"`
	Omega     float64 `db:"omega"`
	FitRms    float64 `db:"fit_rms"`
	FitP90    float64 `db:"fit_p90"`
	Quality   int     `db:"quality"`
}

// OpenCatalog opens or creates a catalog database at the given path.
func OpenCatalog(path string) (*Catalog, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	c := &Catalog{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

func (c *Catalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		cells INTEGER NOT NULL,
		plates INTEGER NOT NULL,
		segments INTEGER NOT NULL,
		events INTEGER NOT NULL,
		continental_final REAL NOT NULL,
		quality_mean REAL NOT NULL,
		mean_crust_age REAL NOT NULL,
		dump_dir TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS plates (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		plate_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		kind TEXT NOT NULL,
		cells INTEGER NOT NULL,
		area REAL NOT NULL,
		velocity_x REAL NOT NULL,
		velocity_y REAL NOT NULL,
		omega REAL NOT NULL,
		fit_rms REAL NOT NULL,
		fit_p90 REAL NOT NULL,
		quality INTEGER NOT NULL,
		PRIMARY KEY (run_id, plate_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	`
	_, err := c.conn.Exec(schema)
	return err
}

// RecordRun stores a run and its plates in one transaction and returns the
// new run id.
func (c *Catalog) RecordRun(r *pipeline.Result, dumpDir string) (int64, error) {
	s := r.Stats
	tx, err := c.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.NamedExec(`INSERT INTO runs
		(seed, width, height, cells, plates, segments, events, continental_final, quality_mean, mean_crust_age, dump_dir)
		VALUES (:seed, :width, :height, :cells, :plates, :segments, :events, :continental_final, :quality_mean, :mean_crust_age, :dump_dir)`,
		RunRow{
			Seed:             s.Seed,
			Width:            s.Width,
			Height:           s.Height,
			Cells:            s.Cells,
			Plates:           s.Plates,
			Segments:         s.Segments,
			Events:           s.Events,
			ContinentalFinal: s.ContinentalFinal,
			QualityMean:      s.QualityMean,
			MeanCrustAge:     s.MeanCrustAge,
			DumpDir:          dumpDir,
		})
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range telemetry.PlateRecords(r.Graph, r.Motion) {
		row := PlateRow{
			RunID:     id,
			PlateID:   int(p.ID),
			Role:      p.Role,
			Kind:      p.Kind,
			Cells:     p.Cells,
			Area:      float64(p.Area),
			VelocityX: float64(p.VelocityX),
			VelocityY: float64(p.VelocityY),
			Omega:     float64(p.Omega),
			FitRms:    float64(p.FitRms),
			FitP90:    float64(p.FitP90),
			Quality:   int(p.Quality),
		}
		if _, err := tx.NamedExec(`INSERT INTO plates
			(run_id, plate_id, role, kind, cells, area, velocity_x, velocity_y, omega, fit_rms, fit_p90, quality)
			VALUES (:run_id, :plate_id, :role, :kind, :cells, :area, :velocity_x, :velocity_y, :omega, :fit_rms, :fit_p90, :quality)`,
			row); err != nil {
			return 0, fmt.Errorf("insert plate %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("run cataloged", "run_id", id, "seed", s.Seed, "plates", s.Plates)
	return id, nil
}

// Run returns one run by id.
func (c *Catalog) Run(id int64) (RunRow, error) {
	var row RunRow
	err := c.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	return row, err
}

// RunsBySeed returns every run with the given seed, oldest first.
func (c *Catalog) RunsBySeed(seed int64) ([]RunRow, error) {
	var rows []RunRow
	err := c.conn.Select(&rows, "SELECT * FROM runs WHERE seed = ? ORDER BY id", seed)
	return rows, err
}

// Plates returns the plates recorded for a run, ordered by plate id.
func (c *Catalog) Plates(runID int64) ([]PlateRow, error) {
	var rows []PlateRow
	err := c.conn.Select(&rows, "SELECT * FROM plates WHERE run_id = ? ORDER BY plate_id", runID)
	return rows, err
}
