package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	network       TEXT NOT NULL,
	config_json   TEXT,
	status        TEXT NOT NULL,
	reason        TEXT,
	best_fitness  REAL,
	best_cost     REAL,
	feasible      INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS generations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	execution     INTEGER NOT NULL,
	generation    INTEGER NOT NULL,
	evaluations   INTEGER NOT NULL,
	best_cost     REAL NOT NULL,
	mean          REAL NOT NULL,
	std_dev       REAL NOT NULL,
	min           REAL NOT NULL,
	max           REAL NOT NULL,
	feasible_rate REAL NOT NULL,
	best_so_far   REAL NOT NULL,
	non_converged INTEGER NOT NULL,
	UNIQUE (run_id, execution, generation),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS best_designs (
	run_id          TEXT PRIMARY KEY,
	chromosome      TEXT NOT NULL,
	assignment_json TEXT NOT NULL,
	result_json     TEXT,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	generation    INTEGER,
	kind          TEXT NOT NULL,
	detail        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store persists optimization runs in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection; a single connection also serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region create-run
// CreateRun inserts a new run in the running state.
func (s *Store) CreateRun(meta RunMeta) (RunRecord, error) {
	rec := RunRecord{
		RunID:      uuid.New().String(),
		Network:    meta.Network,
		ConfigJSON: meta.ConfigJSON,
		Status:     StatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, network, config_json, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Network, nullIfEmpty(rec.ConfigJSON), string(rec.Status),
		rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}
// #endregion create-run

// #region append-generation
// AppendGeneration stores one convergence-history row.
func (s *Store) AppendGeneration(runID string, g GenerationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO generations (run_id, execution, generation, evaluations, best_cost, mean, std_dev,
		                          min, max, feasible_rate, best_so_far, non_converged)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, g.Execution, g.Generation, g.Evaluations, g.BestCost, g.Mean, g.StdDev,
		g.Min, g.Max, g.FeasibleRate, g.BestSoFar, g.NonConverged,
	)
	if err != nil {
		return fmt.Errorf("append generation %d/%d: %w", g.Execution, g.Generation, err)
	}
	return nil
}
// #endregion append-generation

// #region save-best
// SaveBest records, or replaces, the best design of a run.
func (s *Store) SaveBest(b BestRecord) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO best_designs (run_id, chromosome, assignment_json, result_json, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   chromosome = excluded.chromosome,
		   assignment_json = excluded.assignment_json,
		   result_json = excluded.result_json,
		   created_at = excluded.created_at`,
		b.RunID, b.Chromosome, b.AssignmentJSON, nullIfEmpty(b.ResultJSON),
		b.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("save best: %w", err)
	}
	return nil
}
// #endregion save-best

// #region finish-run
// FinishRun closes a run with its final status and best values.
func (s *Store) FinishRun(runID string, out RunOutcome) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, reason = ?, best_fitness = ?, best_cost = ?, feasible = ?, finished_at = ?
		 WHERE run_id = ?`,
		string(out.Status), nullIfEmpty(out.Reason), out.BestFitness, out.BestCost, boolInt(out.Feasible),
		time.Now().UTC().Format(timeFormat), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
// #endregion finish-run

// #region get-run
const runColumns = `run_id, network, config_json, status, reason, best_fitness, best_cost, feasible, created_at, finished_at`

// GetRun retrieves one run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var status, createdStr string
	var configJSON, reason, finishedStr sql.NullString
	var bestFitness, bestCost sql.NullFloat64
	var feasible int

	if err := sc.Scan(&rec.RunID, &rec.Network, &configJSON, &status, &reason,
		&bestFitness, &bestCost, &feasible, &createdStr, &finishedStr); err != nil {
		return RunRecord{}, err
	}
	rec.Status = Status(status)
	rec.ConfigJSON = configJSON.String
	rec.Reason = reason.String
	rec.BestFitness = bestFitness.Float64
	rec.BestCost = bestCost.Float64
	rec.Feasible = feasible != 0
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	if finishedStr.Valid {
		rec.FinishedAt, _ = time.Parse(timeFormat, finishedStr.String)
	}
	return rec, nil
}
// #endregion get-run

// #region history
// History returns the convergence history of a run in execution, generation order.
func (s *Store) History(runID string) ([]GenerationRecord, error) {
	rows, err := s.db.Query(
		`SELECT execution, generation, evaluations, best_cost, mean, std_dev, min, max,
		        feasible_rate, best_so_far, non_converged
		 FROM generations WHERE run_id = ? ORDER BY execution, generation`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []GenerationRecord
	for rows.Next() {
		var g GenerationRecord
		if err := rows.Scan(&g.Execution, &g.Generation, &g.Evaluations, &g.BestCost, &g.Mean, &g.StdDev,
			&g.Min, &g.Max, &g.FeasibleRate, &g.BestSoFar, &g.NonConverged); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
// #endregion history

// #region best-design
// BestDesign retrieves the stored best design of a run.
func (s *Store) BestDesign(runID string) (BestRecord, error) {
	var b BestRecord
	var resultJSON sql.NullString
	var createdStr string
	err := s.db.QueryRow(
		`SELECT run_id, chromosome, assignment_json, result_json, created_at
		 FROM best_designs WHERE run_id = ?`, runID,
	).Scan(&b.RunID, &b.Chromosome, &b.AssignmentJSON, &resultJSON, &createdStr)
	if err != nil {
		return BestRecord{}, fmt.Errorf("best design %s: %w", runID, err)
	}
	b.ResultJSON = resultJSON.String
	b.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	return b, nil
}
// #endregion best-design

// #region helpers
// timeFormat is fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion helpers
