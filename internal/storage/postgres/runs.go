package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeDeath     Outcome = "death"
	OutcomeAbandoned Outcome = "abandoned"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeDeath || o == OutcomeAbandoned
}

var (
	// ErrRunNotFound is returned when no run matches the requested id.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunExists is returned when a run id has already been recorded.
	ErrRunExists = errors.New("run already recorded")
)

// Run is one finished game.
type Run struct {
	ID           uuid.UUID
	PlayerName   string
	Class        string
	FloorReached int
	Level        int
	Kills        int
	// Killer is empty for abandoned runs.
	Killer    string
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   time.Time
}

// RunRepository stores finished runs.
type RunRepository struct {
	db Querier
}

// NewRunRepository creates a repository backed by db.
//
// Precondition: db must be non-nil.
func NewRunRepository(db Querier) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, player_name, class, floor_reached, level, kills, killer, outcome, started_at, ended_at`

// Record inserts a finished run.
//
// Precondition: run.ID must be non-zero and run.Outcome valid.
// Postcondition: Returns ErrRunExists if the id was already recorded.
func (r *RunRepository) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("recording run: id must be set")
	}
	if !run.Outcome.Valid() {
		return fmt.Errorf("recording run: invalid outcome %q", run.Outcome)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.PlayerName, run.Class, run.FloorReached, run.Level, run.Kills,
		run.Killer, string(run.Outcome), run.StartedAt, run.EndedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrRunExists
		}
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Get returns the run with the given id.
//
// Postcondition: Returns ErrRunNotFound if no such run exists.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// Top returns up to limit runs ordered by deepest floor, then most kills,
// then earliest finish.
//
// Precondition: limit must be positive.
func (r *RunRepository) Top(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		return nil, fmt.Errorf("listing runs: limit must be positive, got %d", limit)
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 ORDER BY floor_reached DESC, kills DESC, ended_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var outcome string
	err := row.Scan(
		&run.ID, &run.PlayerName, &run.Class, &run.FloorReached, &run.Level, &run.Kills,
		&run.Killer, &outcome, &run.StartedAt, &run.EndedAt,
	)
	run.Outcome = Outcome(outcome)
	return run, err
}

// isDuplicateKeyError checks for SQLSTATE 23505 (unique_violation).
func isDuplicateKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
