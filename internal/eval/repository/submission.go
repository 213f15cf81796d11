package repository

import (
	"context"
	"encoding/json"

	"ojcore/internal/common/db"
	"ojcore/internal/eval/model"
	"ojcore/pkg/errors"
)

const (
	sqlUpdateSubmissionResult = `
		UPDATE submissions
		SET status = ?, score = ?, compilation_messages = ?
		WHERE id = ?`

	sqlMarkSubmissionStatus = `
		UPDATE submissions
		SET status = ?
		WHERE id = ?`

	sqlListWaitingSubmissions = `
		SELECT id, task_id, participation_id, files, status,
		       COALESCE(compilation_messages, ''), COALESCE(score, 0)
		FROM submissions
		WHERE status = ?
		ORDER BY id`

	sqlGetParticipationUser = `
		SELECT user_id
		FROM participations
		WHERE id = ?`
)

// SubmissionRepository mutates submission verdicts and drives the pending
// sweep. Rows are created by the upload path; this service never inserts or
// deletes them.
type SubmissionRepository interface {
	// UpdateResult sets status, score and compilation messages in one
	// statement. A nil tx runs against the pool.
	UpdateResult(ctx context.Context, tx db.Transaction, id int64, status model.SubmissionStatus, score float64, compilationMessages string) error

	// MarkInternalError moves a submission to internal_error, taking it out
	// of the waiting set for good.
	MarkInternalError(ctx context.Context, id int64) error

	// ListWaiting returns every submission still in waiting state.
	ListWaiting(ctx context.Context) ([]*model.Submission, error)

	// GetParticipationUser resolves the user owning a participation.
	GetParticipationUser(ctx context.Context, participationID int64) (int64, error)
}

type mysqlSubmissionRepository struct {
	database db.Database
}

func NewSubmissionRepository(database db.Database) SubmissionRepository {
	return &mysqlSubmissionRepository{database: database}
}

func (r *mysqlSubmissionRepository) UpdateResult(ctx context.Context, tx db.Transaction, id int64, status model.SubmissionStatus, score float64, compilationMessages string) error {
	q := db.GetQuerier(r.database, tx)
	if _, err := q.Exec(ctx, sqlUpdateSubmissionResult, status, score, compilationMessages, id); err != nil {
		return errors.Wrap(err, errors.DatabaseError).
			WithDetail("submission_id", id)
	}
	return nil
}

func (r *mysqlSubmissionRepository) MarkInternalError(ctx context.Context, id int64) error {
	if _, err := r.database.Exec(ctx, sqlMarkSubmissionStatus, model.StatusInternalError, id); err != nil {
		return errors.Wrap(err, errors.DatabaseError).
			WithDetail("submission_id", id)
	}
	return nil
}

func (r *mysqlSubmissionRepository) ListWaiting(ctx context.Context) ([]*model.Submission, error) {
	rows, err := r.database.Query(ctx, sqlListWaitingSubmissions, model.StatusWaiting)
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	defer rows.Close()

	var submissions []*model.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return submissions, nil
}

func (r *mysqlSubmissionRepository) GetParticipationUser(ctx context.Context, participationID int64) (int64, error) {
	var userID int64
	err := r.database.QueryRow(ctx, sqlGetParticipationUser, participationID).Scan(&userID)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, errors.Newf(errors.ParticipationNotFound,
				"participation %d not found", participationID)
		}
		return 0, errors.Wrap(err, errors.DatabaseError)
	}
	return userID, nil
}

func scanSubmission(rows db.Rows) (*model.Submission, error) {
	var (
		submission model.Submission
		filesJSON  string
	)
	if err := rows.Scan(
		&submission.ID,
		&submission.TaskID,
		&submission.ParticipationID,
		&filesJSON,
		&submission.Status,
		&submission.CompilationMessages,
		&submission.Score,
	); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	if err := json.Unmarshal([]byte(filesJSON), &submission.Files); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError).
			WithDetail("submission_id", submission.ID)
	}
	return &submission, nil
}
