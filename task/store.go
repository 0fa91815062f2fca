package task

import (
	"database/sql"
	"time"

	"github.com/teranos/tempo/errors"
)

// Store handles persistence of tasks
type Store struct {
	db *sql.DB
}

// NewStore creates a new task store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertTask validates the draft, canonicalizes its trigger args and inserts
// a new task with starting_date set to now. The returned task carries the
// assigned id.
func (s *Store) InsertTask(d *Draft) (*Task, error) {
	args, err := d.Validate()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO task (title, descr, command, trigger_type, trigger_args, starting_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	res, err := s.db.Exec(query,
		d.Title,
		d.Descr,
		d.Command,
		d.TriggerType,
		args,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert task")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read inserted task id")
	}

	return &Task{
		ID:           int(id),
		Title:        d.Title,
		Descr:        d.Descr,
		Command:      d.Command,
		TriggerType:  d.TriggerType,
		TriggerArgs:  args,
		StartingDate: &now,
	}, nil
}

// GetTask retrieves a task by id
func (s *Store) GetTask(id int) (*Task, error) {
	query := `
		SELECT task_id, title, descr, command, trigger_type, trigger_args, starting_date, last_run
		FROM task
		WHERE task_id = ?
	`

	var t Task
	var startingDate, lastRun sql.NullString

	err := s.db.QueryRow(query, id).Scan(
		&t.ID,
		&t.Title,
		&t.Descr,
		&t.Command,
		&t.TriggerType,
		&t.TriggerArgs,
		&startingDate,
		&lastRun,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("No task with ID %d", id)
		}
		return nil, errors.Wrapf(err, "failed to get task %d", id)
	}

	if startingDate.Valid {
		at, err := time.Parse(time.RFC3339Nano, startingDate.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse starting_date for task %d", id)
		}
		t.StartingDate = &at
	}
	if lastRun.Valid {
		at, err := time.Parse(time.RFC3339Nano, lastRun.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last_run for task %d", id)
		}
		t.LastRun = &at
	}

	return &t, nil
}

// ListTasks returns all tasks ordered by id
func (s *Store) ListTasks() ([]*Task, error) {
	query := `
		SELECT task_id, title, descr, command, trigger_type, trigger_args, starting_date, last_run
		FROM task
		ORDER BY task_id ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var t Task
		var startingDate, lastRun sql.NullString

		err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Descr,
			&t.Command,
			&t.TriggerType,
			&t.TriggerArgs,
			&startingDate,
			&lastRun,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan task row")
		}

		if startingDate.Valid {
			at, err := time.Parse(time.RFC3339Nano, startingDate.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse starting_date for task %d", t.ID)
			}
			t.StartingDate = &at
		}
		if lastRun.Valid {
			at, err := time.Parse(time.RFC3339Nano, lastRun.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse last_run for task %d", t.ID)
			}
			t.LastRun = &at
		}

		tasks = append(tasks, &t)
	}

	return tasks, rows.Err()
}

// UpdateTask replaces the mutable fields of an existing task: title, descr,
// command and trigger. starting_date and last_run are preserved.
func (s *Store) UpdateTask(id int, d *Draft) error {
	args, err := d.Validate()
	if err != nil {
		return err
	}

	query := `
		UPDATE task
		SET title = ?, descr = ?, command = ?, trigger_type = ?, trigger_args = ?
		WHERE task_id = ?
	`

	res, err := s.db.Exec(query, d.Title, d.Descr, d.Command, d.TriggerType, args, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update task %d", id)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to update task %d", id)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("No task with ID %d", id)
	}

	return nil
}

// DeleteTask removes a task. Its process and output logs stay behind as
// history of what ran.
func (s *Store) DeleteTask(id int) error {
	res, err := s.db.Exec(`DELETE FROM task WHERE task_id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete task %d", id)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to delete task %d", id)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("No task with ID %d", id)
	}

	return nil
}

// TouchLastRun records the start instant of the task's most recent run.
// A vanished task is not an error here: the run itself proceeds regardless.
func (s *Store) TouchLastRun(id int, at time.Time) error {
	query := `UPDATE task SET last_run = ? WHERE task_id = ?`

	if _, err := s.db.Exec(query, at.UTC().Format(time.RFC3339Nano), id); err != nil {
		return errors.Wrapf(err, "failed to record last run for task %d", id)
	}
	return nil
}
