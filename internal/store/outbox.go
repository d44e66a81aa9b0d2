package store

import "database/sql"

const outboxColumns = `job_id, action, created_at, priority, payload,
	conversation_id, user_id, order_id, resend_target_id, run_count`

// AppendOutboxJob durably appends one job. This is a purely local write
// and must succeed even when the remote side is unreachable.
func (db *DB) AppendOutboxJob(j *OutboxJob) error {
	_, err := db.Exec(`
		INSERT INTO outbox_jobs (`+outboxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.JobID, j.Action, j.CreatedAt, j.Priority, j.Payload,
		j.ConversationID, j.UserID, j.OrderID, j.ResendTargetID, j.RunCount)
	return err
}

// GetOutboxJob returns one job by identifier, or nil if absent.
func (db *DB) GetOutboxJob(jobID string) (*OutboxJob, error) {
	var j OutboxJob
	err := db.QueryRow(`SELECT `+outboxColumns+` FROM outbox_jobs WHERE job_id = ?`, jobID).
		Scan(&j.JobID, &j.Action, &j.CreatedAt, &j.Priority, &j.Payload,
			&j.ConversationID, &j.UserID, &j.OrderID, &j.ResendTargetID, &j.RunCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// PendingOutboxJobs returns jobs in delivery order: priority first, then
// age. maxAttempts > 0 skips (but keeps) jobs that already ran that many
// times; 0 means no cap.
func (db *DB) PendingOutboxJobs(maxAttempts, limit int) ([]OutboxJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + outboxColumns + ` FROM outbox_jobs`
	args := []any{}
	if maxAttempts > 0 {
		query += ` WHERE run_count < ?`
		args = append(args, maxAttempts)
	}
	query += ` ORDER BY priority DESC, created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []OutboxJob
	for rows.Next() {
		var j OutboxJob
		if err := rows.Scan(&j.JobID, &j.Action, &j.CreatedAt, &j.Priority, &j.Payload,
			&j.ConversationID, &j.UserID, &j.OrderID, &j.ResendTargetID, &j.RunCount); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// IncrementRunCount records one failed delivery attempt.
func (db *DB) IncrementRunCount(jobID string) error {
	_, err := db.Exec(`UPDATE outbox_jobs SET run_count = run_count + 1 WHERE job_id = ?`, jobID)
	return err
}

// DeleteOutboxJob removes a job after confirmed remote acceptance.
func (db *DB) DeleteOutboxJob(jobID string) error {
	_, err := db.Exec(`DELETE FROM outbox_jobs WHERE job_id = ?`, jobID)
	return err
}

// PruneSupersededJobs deletes undelivered jobs that a newer job names as
// its resend target, returning how many were removed.
func (db *DB) PruneSupersededJobs() (int64, error) {
	res, err := db.Exec(`
		DELETE FROM outbox_jobs WHERE job_id IN (
			SELECT resend_target_id FROM outbox_jobs WHERE resend_target_id != ''
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
