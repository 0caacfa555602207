package db

// CreateMonitorTick inserts the outcome of one check
func (db *DB) CreateMonitorTick(tick *MonitorTick) error {
	query := `
		INSERT INTO monitor_ticks (
			run_id, tick, checked_at, available, time_wo_finds, last_find,
			corpus_count, unique_crashes, unique_hangs, execs_done, verdict, reported
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(db.Rebind(query),
		tick.RunID,
		tick.Tick,
		tick.CheckedAt,
		tick.Available,
		tick.TimeWoFinds,
		tick.LastFind,
		tick.CorpusCount,
		tick.UniqueCrashes,
		tick.UniqueHangs,
		tick.ExecsDone,
		tick.Verdict,
		tick.Reported,
	)

	return err
}

// GetMonitorTicks returns every tick of a run in order
func (db *DB) GetMonitorTicks(runID string) ([]MonitorTick, error) {
	query := `
		SELECT run_id, tick, checked_at, available, time_wo_finds, last_find,
			corpus_count, unique_crashes, unique_hangs, execs_done, verdict, reported
		FROM monitor_ticks
		WHERE run_id = ?
		ORDER BY tick
	`

	rows, err := db.Query(db.Rebind(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ticks := []MonitorTick{}
	for rows.Next() {
		var t MonitorTick
		err := rows.Scan(
			&t.RunID,
			&t.Tick,
			&t.CheckedAt,
			&t.Available,
			&t.TimeWoFinds,
			&t.LastFind,
			&t.CorpusCount,
			&t.UniqueCrashes,
			&t.UniqueHangs,
			&t.ExecsDone,
			&t.Verdict,
			&t.Reported,
		)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ticks, nil
}

// CreateTerminations records every signal sent while stopping the fuzzer
func (db *DB) CreateTerminations(terminations []Termination) error {
	if len(terminations) == 0 {
		return nil
	}

	query := `
		INSERT INTO terminations (run_id, pid, signalled_at, error)
		VALUES (?, ?, ?, ?)
	`

	return db.WithTransaction(func(tx *Tx) error {
		for _, term := range terminations {
			if _, err := tx.Exec(query, term.RunID, term.PID, term.SignalledAt, term.Error); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTerminations returns the signals recorded for a run
func (db *DB) GetTerminations(runID string) ([]Termination, error) {
	query := `
		SELECT run_id, pid, signalled_at, error
		FROM terminations
		WHERE run_id = ?
		ORDER BY pid
	`

	rows, err := db.Query(db.Rebind(query), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := []Termination{}
	for rows.Next() {
		var t Termination
		if err := rows.Scan(&t.RunID, &t.PID, &t.SignalledAt, &t.Error); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return terms, nil
}
