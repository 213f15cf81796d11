package repository

import (
	"context"
	"strconv"

	"ojcore/internal/common/db"
	"ojcore/internal/eval/judge"
	"ojcore/internal/eval/model"
	"ojcore/pkg/errors"
)

const (
	sqlDeleteTestcaseResults = `
		DELETE tr FROM testcase_results tr
		JOIN subtask_results sr ON tr.subtask_result_id = sr.id
		WHERE sr.submission_id = ?`

	sqlDeleteSubtaskResults = `
		DELETE FROM subtask_results
		WHERE submission_id = ?`

	sqlInsertSubtaskResult = `
		INSERT INTO subtask_results (submission_id, subtask_id, score)
		VALUES (?, ?, ?)`

	sqlInsertTestcaseResult = `
		INSERT INTO testcase_results
			(subtask_result_id, num, running_time, memory_usage, message, score)
		VALUES (?, ?, ?, ?, ?, ?)`
)

// ResultRepository turns a terminal judge message into durable rows.
type ResultRepository interface {
	// PersistIOI stores the outcome of a subtask-scored run and returns the
	// submission's final score. On compilation failure it short-circuits to
	// a single submission update; otherwise the whole write runs in one
	// transaction and re-evaluation replaces any earlier result rows.
	PersistIOI(ctx context.Context, submission *model.Submission, result *judge.IOIResult, subtasks map[int]*model.Subtask) (float64, error)

	// PersistOpenEnded exists for the open-ended task format, which has no
	// relational result mapping. It always fails with a typed error.
	PersistOpenEnded(ctx context.Context, submission *model.Submission, result *judge.OpenEndedResult) (float64, error)
}

type mysqlResultRepository struct {
	database    db.Database
	submissions SubmissionRepository
}

func NewResultRepository(database db.Database, submissions SubmissionRepository) ResultRepository {
	return &mysqlResultRepository{database: database, submissions: submissions}
}

func (r *mysqlResultRepository) PersistIOI(ctx context.Context, submission *model.Submission, result *judge.IOIResult, subtasks map[int]*model.Subtask) (float64, error) {
	file := submission.Files[0]

	compilation, ok := result.Solutions[file]
	if !ok {
		return 0, errors.Newf(errors.SolutionRecordMissing,
			"terminal result has no compilation record for %q", file)
	}
	stderr := compilation.Stderr()

	if compilation.Status == judge.CompilationFailure {
		err := r.submissions.UpdateResult(ctx, nil, submission.ID,
			model.StatusCompilationError, 0, stderr)
		if err != nil {
			return 0, errors.Wrap(err, errors.ResultPersistFailed)
		}
		return 0, nil
	}

	testing, ok := result.Testing[file]
	if !ok {
		return 0, errors.Newf(errors.SolutionRecordMissing,
			"terminal result has no testing record for %q", file)
	}

	err := r.database.Transaction(ctx, func(tx db.Transaction) error {
		q := db.GetQuerier(r.database, tx)

		// Re-evaluation replaces earlier rows instead of accumulating them.
		if _, err := q.Exec(ctx, sqlDeleteTestcaseResults, submission.ID); err != nil {
			return errors.Wrap(err, errors.DatabaseError)
		}
		if _, err := q.Exec(ctx, sqlDeleteSubtaskResults, submission.ID); err != nil {
			return errors.Wrap(err, errors.DatabaseError)
		}

		if err := r.submissions.UpdateResult(ctx, tx, submission.ID,
			model.StatusSuccess, testing.Score, stderr); err != nil {
			return err
		}

		subtaskResultIDs, err := r.insertSubtaskResults(ctx, q, submission, subtasks, testing.SubtaskScores)
		if err != nil {
			return err
		}
		return r.insertTestcaseResults(ctx, q, subtaskResultIDs, testing.TestcaseResults)
	})
	if err != nil {
		if errors.GetError(err) != nil {
			return 0, err
		}
		return 0, errors.Wrap(err, errors.ResultPersistFailed)
	}
	return testing.Score, nil
}

// insertSubtaskResults creates one row per subtask score entry and returns
// the inserted ids keyed by subtask number.
func (r *mysqlResultRepository) insertSubtaskResults(ctx context.Context, q db.Querier, submission *model.Submission, subtasks map[int]*model.Subtask, scores map[string]float64) (map[int]int64, error) {
	ids := make(map[int]int64, len(scores))
	for numStr, score := range scores {
		num, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, errors.Newf(errors.SubtaskUnknown,
				"non-numeric subtask key %q in judge result", numStr)
		}
		subtask, ok := subtasks[num]
		if !ok {
			return nil, errors.Newf(errors.SubtaskUnknown,
				"judge reported subtask %d unknown to task %d", num, submission.TaskID)
		}
		res, err := q.Exec(ctx, sqlInsertSubtaskResult, submission.ID, subtask.ID, score)
		if err != nil {
			return nil, errors.Wrap(err, errors.DatabaseError)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, errors.Wrap(err, errors.DatabaseError)
		}
		ids[num] = id
	}
	return ids, nil
}

func (r *mysqlResultRepository) insertTestcaseResults(ctx context.Context, q db.Querier, subtaskResultIDs map[int]int64, results map[string]map[string]judge.SolutionTestcaseResult) error {
	for subtaskStr, cases := range results {
		subtaskNum, err := strconv.Atoi(subtaskStr)
		if err != nil {
			return errors.Newf(errors.SubtaskUnknown,
				"non-numeric subtask key %q in judge result", subtaskStr)
		}
		subtaskResultID, ok := subtaskResultIDs[subtaskNum]
		if !ok {
			return errors.Newf(errors.SubtaskUnknown,
				"testcase results reference subtask %d with no score entry", subtaskNum)
		}
		for caseStr, testcase := range cases {
			caseNum, err := strconv.Atoi(caseStr)
			if err != nil {
				return errors.Newf(errors.ResultPersistFailed,
					"non-numeric testcase key %q in judge result", caseStr)
			}
			if len(testcase.Result) == 0 || testcase.Result[0] == nil {
				return errors.Newf(errors.ResultPersistFailed,
					"testcase %d/%d carries no execution result", subtaskNum, caseNum)
			}
			resources := testcase.Result[0].Resources
			runningTime := resources.CPUTime + resources.SysTime
			_, err = q.Exec(ctx, sqlInsertTestcaseResult,
				subtaskResultID, caseNum, runningTime, resources.Memory,
				testcase.Message, testcase.Score)
			if err != nil {
				return errors.Wrap(err, errors.DatabaseError)
			}
		}
	}
	return nil
}

func (r *mysqlResultRepository) PersistOpenEnded(ctx context.Context, submission *model.Submission, result *judge.OpenEndedResult) (float64, error) {
	return 0, errors.Newf(errors.UnsupportedResultFormat,
		"open-ended result persistence is not supported (submission %d)", submission.ID)
}
