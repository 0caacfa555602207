package db

import (
	"database/sql"
	"time"
)

// CreateMonitorRun records the start of a monitor run
func (db *DB) CreateMonitorRun(run *MonitorRun) error {
	query := `
		INSERT INTO monitor_runs (
			run_id, started_at, ended_at, output_dir, stats_file,
			max_time_without_finds, check_interval, final_state, stop_reason
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(db.Rebind(query),
		run.RunID,
		run.StartedAt,
		run.EndedAt,
		run.OutputDir,
		run.StatsFile,
		run.MaxTimeWithoutFinds,
		run.CheckInterval,
		run.FinalState,
		run.StopReason,
	)

	return err
}

// FinishMonitorRun stores the terminal state of a run
func (db *DB) FinishMonitorRun(runID string, endedAt time.Time, finalState string, stopReason *string) error {
	query := `
		UPDATE monitor_runs
		SET ended_at = ?, final_state = ?, stop_reason = ?
		WHERE run_id = ?
	`

	result, err := db.Exec(db.Rebind(query), endedAt, finalState, stopReason, runID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetMonitorRun retrieves a run by ID
func (db *DB) GetMonitorRun(runID string) (*MonitorRun, error) {
	run := &MonitorRun{}

	query := `
		SELECT run_id, started_at, ended_at, output_dir, stats_file,
			max_time_without_finds, check_interval, final_state, stop_reason
		FROM monitor_runs
		WHERE run_id = ?
	`

	err := db.QueryRow(db.Rebind(query), runID).Scan(
		&run.RunID,
		&run.StartedAt,
		&run.EndedAt,
		&run.OutputDir,
		&run.StatsFile,
		&run.MaxTimeWithoutFinds,
		&run.CheckInterval,
		&run.FinalState,
		&run.StopReason,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return run, nil
}
