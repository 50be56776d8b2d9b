package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"court-watch-backend/internal/model"
)

// Task transitions are conditional updates. Each reports whether the row was
// in a state that allowed the transition; terminal states never change.

var liveStatuses = []model.TaskStatus{model.TaskPending, model.TaskRunning}

func (s *gormStore) CreateTask(ctx context.Context, task *model.SearchTask) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

func (s *gormStore) GetTask(ctx context.Context, id string) (*model.SearchTask, error) {
	var task model.SearchTask
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&task).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("task %s", id))
	}
	return &task, nil
}

// StartTask moves a pending task to running.
func (s *gormStore) StartTask(ctx context.Context, id string, total int, step string, at time.Time) (bool, error) {
	return s.transition(ctx, id, []model.TaskStatus{model.TaskPending}, map[string]any{
		"status":          model.TaskRunning,
		"started_at":      at,
		"total_locations": total,
		"current_step":    step,
	}, "start")
}

// UpdateTaskProgress records progress of a running task. Progress never moves
// backwards.
func (s *gormStore) UpdateTaskProgress(ctx context.Context, id string, progress, processed int, step string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.SearchTask{}).
		Where("id = ? AND status = ? AND progress <= ?", id, model.TaskRunning, clampProgress(progress)).
		Updates(map[string]any{
			"progress":            clampProgress(progress),
			"processed_locations": processed,
			"current_step":        step,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update progress of task %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompleteTask stores the result of a running task and marks it completed.
func (s *gormStore) CompleteTask(ctx context.Context, id string, result *model.SearchResult, at time.Time) (bool, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to encode result of task %s: %w", id, err)
	}
	return s.transition(ctx, id, []model.TaskStatus{model.TaskRunning}, map[string]any{
		"status":       model.TaskCompleted,
		"progress":     100,
		"current_step": "Search completed",
		"result":       string(payload),
		"completed_at": at,
	}, "complete")
}

func (s *gormStore) FailTask(ctx context.Context, id string, message string, at time.Time) (bool, error) {
	return s.transition(ctx, id, liveStatuses, map[string]any{
		"status":        model.TaskFailed,
		"error_message": message,
		"current_step":  "Search failed",
		"completed_at":  at,
	}, "fail")
}

func (s *gormStore) CancelTask(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.transition(ctx, id, liveStatuses, map[string]any{
		"status":       model.TaskCancelled,
		"current_step": "Search cancelled",
		"completed_at": at,
	}, "cancel")
}

// FailOrphanedTasks fails every pending or running task. It is called at
// startup, before any worker runs, so live rows can only be left over from a
// previous process.
func (s *gormStore) FailOrphanedTasks(ctx context.Context, message string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.SearchTask{}).
		Where("status IN ?", liveStatuses).
		Updates(map[string]any{
			"status":        model.TaskFailed,
			"error_message": message,
			"current_step":  "Search failed",
			"completed_at":  at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail orphaned tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteTasksBefore garbage-collects tasks created before the cutoff.
func (s *gormStore) DeleteTasksBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.SearchTask{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *gormStore) transition(ctx context.Context, id string, from []model.TaskStatus, values map[string]any, op string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.SearchTask{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to %s task %s: %w", op, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
