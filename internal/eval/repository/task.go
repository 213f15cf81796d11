package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/eval/model"
	"ojcore/pkg/errors"
)

const (
	sqlGetTask = `
		SELECT id, name, title, time_limit, memory_limit, max_score, format
		FROM tasks
		WHERE id = ?`

	sqlListSubtasks = `
		SELECT id, task_id, num, max_score
		FROM subtasks
		WHERE task_id = ?
		ORDER BY num`

	taskCacheTTL      = 10 * time.Minute
	taskCacheEmptyTTL = 30 * time.Second
)

// TaskRepository reads task and subtask reference data. Both are owned by
// task management and change rarely, so reads go through a cache-aside
// redis layer.
type TaskRepository interface {
	GetTask(ctx context.Context, id int64) (*model.Task, error)

	// ListSubtasks returns the task's subtasks keyed by their number.
	ListSubtasks(ctx context.Context, taskID int64) (map[int]*model.Subtask, error)
}

type cachedTaskRepository struct {
	database db.Database
	cache    cache.Cache
}

func NewTaskRepository(database db.Database, c cache.Cache) TaskRepository {
	return &cachedTaskRepository{database: database, cache: c}
}

func taskCacheKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

func subtasksCacheKey(taskID int64) string {
	return fmt.Sprintf("task:%d:subtasks", taskID)
}

func (r *cachedTaskRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	task, err := cache.GetWithCached(ctx, r.cache, taskCacheKey(id),
		taskCacheTTL, taskCacheEmptyTTL,
		func(t *model.Task) bool { return t == nil },
		func(t *model.Task) string {
			data, _ := json.Marshal(t)
			return string(data)
		},
		func(s string) (*model.Task, error) {
			var t model.Task
			if err := json.Unmarshal([]byte(s), &t); err != nil {
				return nil, err
			}
			return &t, nil
		},
		func(ctx context.Context) (*model.Task, error) {
			return r.getTaskFromDB(ctx, id)
		},
	)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errors.Newf(errors.TaskNotFound, "task %d not found", id)
	}
	return task, nil
}

func (r *cachedTaskRepository) getTaskFromDB(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := r.database.QueryRow(ctx, sqlGetTask, id).Scan(
		&task.ID,
		&task.Name,
		&task.Title,
		&task.TimeLimit,
		&task.MemoryLimit,
		&task.MaxScore,
		&task.Format,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return &task, nil
}

func (r *cachedTaskRepository) ListSubtasks(ctx context.Context, taskID int64) (map[int]*model.Subtask, error) {
	subtasks, err := cache.GetWithCached(ctx, r.cache, subtasksCacheKey(taskID),
		taskCacheTTL, taskCacheEmptyTTL,
		func(s []*model.Subtask) bool { return len(s) == 0 },
		func(s []*model.Subtask) string {
			data, _ := json.Marshal(s)
			return string(data)
		},
		func(s string) ([]*model.Subtask, error) {
			var out []*model.Subtask
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		func(ctx context.Context) ([]*model.Subtask, error) {
			return r.listSubtasksFromDB(ctx, taskID)
		},
	)
	if err != nil {
		return nil, err
	}

	byNum := make(map[int]*model.Subtask, len(subtasks))
	for _, st := range subtasks {
		byNum[st.Num] = st
	}
	return byNum, nil
}

func (r *cachedTaskRepository) listSubtasksFromDB(ctx context.Context, taskID int64) ([]*model.Subtask, error) {
	rows, err := r.database.Query(ctx, sqlListSubtasks, taskID)
	if err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	defer rows.Close()

	var subtasks []*model.Subtask
	for rows.Next() {
		var st model.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Num, &st.MaxScore); err != nil {
			return nil, errors.Wrap(err, errors.DatabaseError)
		}
		subtasks = append(subtasks, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.DatabaseError)
	}
	return subtasks, nil
}
