package queue

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveJob upserts job at position in a single transaction.
func (s *Store) SaveJob(ctx context.Context, job *Job, position int) error {
	if job == nil {
		return nil
	}
	ctx = ensureContext(ctx)
	row, err := encodeJob(job, position)
	if err != nil {
		return persistenceError("save job "+job.ID, err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.id,
			row.video,
			row.audio,
			row.subtitles,
			row.chapters,
			row.outputFile,
			row.status,
			row.errorMessage,
			row.createdAt,
			row.startedAt,
			row.completedAt,
			row.position,
		)
		return err
	})
	return persistenceError("save job "+job.ID, err)
}

// LoadAllJobs returns every stored job ordered by queue position.
func (s *Store) LoadAllJobs(ctx context.Context) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY queue_position ASC, created_at ASC`)
	if err != nil {
		return nil, persistenceError("load jobs", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, _, err := scanJob(rows)
		if err != nil {
			return nil, persistenceError("load jobs", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("load jobs", err)
	}
	return jobs, nil
}

// DeleteJob removes a single job. Missing ids are not an error.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE job_id = ?`, id)
	return persistenceError("delete job "+id, err)
}

// DeleteCompletedJobs removes every job in a terminal status.
func (s *Store) DeleteCompletedJobs(ctx context.Context) (int, error) {
	args := terminalStatusArgs()
	query := fmt.Sprintf(`DELETE FROM jobs WHERE status IN (%s)`, makePlaceholders(len(args)))
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, persistenceError("delete completed jobs", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceError("delete completed jobs", err)
	}
	return int(affected), nil
}

// ClearAll removes every job.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	return persistenceError("clear jobs", err)
}

// RewritePositions stores ids[i] at queue_position i in one transaction.
func (s *Store) RewritePositions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE jobs SET queue_position = ? WHERE job_id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, id := range ids {
			if _, err := stmt.ExecContext(ctx, i, id); err != nil {
				return err
			}
		}
		return nil
	})
	return persistenceError("rewrite positions", err)
}
