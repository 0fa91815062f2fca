package execution

import (
	"database/sql"
	"time"

	"github.com/teranos/tempo/errors"
)

// Store handles persistence of process and output logs
type Store struct {
	db *sql.DB
}

// NewStore creates a new execution store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertProcessLog persists a new process log and fills in its assigned id.
func (s *Store) InsertProcessLog(pl *ProcessLog) error {
	query := `
		INSERT INTO process_log (task_id, status, start_date, finish_date, return_code)
		VALUES (?, ?, ?, ?, ?)
	`

	var finishDate interface{}
	if pl.FinishDate != nil {
		finishDate = pl.FinishDate.UTC().Format(time.RFC3339Nano)
	}
	var returnCode interface{}
	if pl.ReturnCode != nil {
		returnCode = *pl.ReturnCode
	}

	res, err := s.db.Exec(query,
		pl.TaskID,
		pl.Status,
		pl.StartDate.UTC().Format(time.RFC3339Nano),
		finishDate,
		returnCode,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert process log for task %d", pl.TaskID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read inserted process log id")
	}
	pl.ID = int(id)

	return nil
}

// FinishProcessLog moves a process log into a terminal status with its finish
// date and return code.
func (s *Store) FinishProcessLog(id int, status string, finishDate time.Time, returnCode *int) error {
	query := `
		UPDATE process_log
		SET status = ?, finish_date = ?, return_code = ?
		WHERE process_log_id = ?
	`

	var rc interface{}
	if returnCode != nil {
		rc = *returnCode
	}

	res, err := s.db.Exec(query, status, finishDate.UTC().Format(time.RFC3339Nano), rc, id)
	if err != nil {
		return errors.Wrapf(err, "failed to finish process log %d", id)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to finish process log %d", id)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("no process log with ID %d", id)
	}

	return nil
}

// GetProcessLog retrieves a process log by id
func (s *Store) GetProcessLog(id int) (*ProcessLog, error) {
	query := `
		SELECT process_log_id, task_id, status, start_date, finish_date, return_code
		FROM process_log
		WHERE process_log_id = ?
	`

	var pl ProcessLog
	var startDate string
	var finishDate sql.NullString
	var returnCode sql.NullInt64

	err := s.db.QueryRow(query, id).Scan(
		&pl.ID,
		&pl.TaskID,
		&pl.Status,
		&startDate,
		&finishDate,
		&returnCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no process log with ID %d", id)
		}
		return nil, errors.Wrapf(err, "failed to get process log %d", id)
	}

	pl.StartDate, err = time.Parse(time.RFC3339Nano, startDate)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse start_date for process log %d", id)
	}
	if finishDate.Valid {
		at, err := time.Parse(time.RFC3339Nano, finishDate.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse finish_date for process log %d", id)
		}
		pl.FinishDate = &at
	}
	if returnCode.Valid {
		rc := int(returnCode.Int64)
		pl.ReturnCode = &rc
	}

	return &pl, nil
}

// ListProcessLogs returns all process logs ordered by id
func (s *Store) ListProcessLogs() ([]*ProcessLog, error) {
	query := `
		SELECT process_log_id, task_id, status, start_date, finish_date, return_code
		FROM process_log
		ORDER BY process_log_id ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list process logs")
	}
	defer rows.Close()

	var logs []*ProcessLog
	for rows.Next() {
		var pl ProcessLog
		var startDate string
		var finishDate sql.NullString
		var returnCode sql.NullInt64

		err := rows.Scan(
			&pl.ID,
			&pl.TaskID,
			&pl.Status,
			&startDate,
			&finishDate,
			&returnCode,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan process log row")
		}

		pl.StartDate, err = time.Parse(time.RFC3339Nano, startDate)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start_date for process log %d", pl.ID)
		}
		if finishDate.Valid {
			at, err := time.Parse(time.RFC3339Nano, finishDate.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse finish_date for process log %d", pl.ID)
			}
			pl.FinishDate = &at
		}
		if returnCode.Valid {
			rc := int(returnCode.Int64)
			pl.ReturnCode = &rc
		}

		logs = append(logs, &pl)
	}

	return logs, rows.Err()
}

// InsertOutputLogs writes a batch of output records in one transaction,
// preserving their order. A failure rolls the whole batch back.
func (s *Store) InsertOutputLogs(logs []*OutputLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin output log transaction")
	}

	query := `
		INSERT INTO output_log (process_log_id, message, time, is_error)
		VALUES (?, ?, ?, ?)
	`

	for _, log := range logs {
		_, err := tx.Exec(query,
			log.ProcessLogID,
			log.Message,
			log.Time.UTC().Format(time.RFC3339Nano),
			log.IsError,
		)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to insert output log for process log %d", log.ProcessLogID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit output logs")
	}

	return nil
}

// ListOutputLogs returns the output records of one process log ordered by id.
// With afterID > 0 only records past that high-water mark are returned.
func (s *Store) ListOutputLogs(processLogID, afterID int) ([]*OutputLog, error) {
	query := `
		SELECT output_log_id, process_log_id, message, time, is_error
		FROM output_log
		WHERE process_log_id = ?
	`
	args := []interface{}{processLogID}

	if afterID > 0 {
		query += ` AND output_log_id > ?`
		args = append(args, afterID)
	}
	query += ` ORDER BY output_log_id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list output logs for process log %d", processLogID)
	}
	defer rows.Close()

	var logs []*OutputLog
	for rows.Next() {
		var ol OutputLog
		var at string

		err := rows.Scan(
			&ol.ID,
			&ol.ProcessLogID,
			&ol.Message,
			&at,
			&ol.IsError,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan output log row")
		}

		ol.Time, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse time for output log %d", ol.ID)
		}

		logs = append(logs, &ol)
	}

	return logs, rows.Err()
}
