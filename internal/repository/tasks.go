package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"devpulse/internal/models"
)

type TaskInput struct {
	ProjectID   string
	Title       string
	Description *string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	Hours       float64
	DueDate     *time.Time
}

type TaskPatch struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	Hours       *float64
	DueDate     *time.Time
}

type TaskFilter struct {
	ProjectID string
	Status    models.TaskStatus
	Priority  models.TaskPriority
}

const taskSelect = `
	SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.hours,
	       t.due_date, t.completed_at, t.created_at, t.updated_at, p.name
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	`

// taskOrder sorts by priority, most urgent first, then newest first.
const taskOrder = `CASE t.priority WHEN 'URGENT' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END DESC, t.created_at DESC`

func scanTask(row scanner) (*models.Task, error) {
	var (
		t           models.Task
		projectName string
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Hours,
		&t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt, &projectName)
	if err != nil {
		return nil, err
	}
	t.Project = &models.ProjectSummary{ID: t.ProjectID, Name: projectName}
	return &t, nil
}

func (s *Store) queryTasks(ctx context.Context, tail string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListTasks returns the user's tasks. Filtering by a project the user does not own is NotFound.
func (s *Store) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]models.Task, error) {
	where := `WHERE p.user_id = $1`
	args := []any{userID}
	if f.ProjectID != "" {
		if err := s.requireProject(ctx, s.db, userID, f.ProjectID); err != nil {
			return nil, err
		}
		args = append(args, f.ProjectID)
		where += fmt.Sprintf(` AND t.project_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND t.status = $%d`, len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where += fmt.Sprintf(` AND t.priority = $%d`, len(args))
	}
	return s.queryTasks(ctx, where+` ORDER BY `+taskOrder, args...)
}

func (s *Store) getTask(ctx context.Context, q querier, userID, id string, lock bool) (*models.Task, error) {
	query := taskSelect + `WHERE t.id = $1 AND p.user_id = $2`
	if lock {
		query += ` FOR UPDATE OF t`
	}
	t, err := scanTask(q.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.getTask(ctx, s.db, userID, id, false)
}

func (s *Store) CreateTask(ctx context.Context, userID string, in TaskInput) (*models.Task, error) {
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	now := s.now()
	t := models.Task{Status: models.TaskTodo}
	next := in.Status
	if next == "" {
		next = models.TaskTodo
	}
	models.ApplyTaskStatus(&t, next, now)

	var task *models.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireProject(ctx, tx, userID, in.ProjectID); err != nil {
			return err
		}
		id := newID()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, title, description, status, priority, hours, due_date, completed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			id, in.ProjectID, in.Title, in.Description, t.Status, in.Priority, in.Hours, in.DueDate, t.CompletedAt, now)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		task, err = s.getTask(ctx, tx, userID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies the patch to a task the user owns. A status change
// keeps CompletedAt consistent through models.ApplyTaskStatus.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, p TaskPatch) (*models.Task, error) {
	var task *models.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := s.getTask(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		now := s.now()
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Description != nil {
			t.Description = p.Description
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if p.Hours != nil {
			t.Hours = *p.Hours
		}
		if p.DueDate != nil {
			t.DueDate = p.DueDate
		}
		if p.Status != nil {
			models.ApplyTaskStatus(t, *p.Status, now)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET title = $2, description = $3, status = $4, priority = $5, hours = $6,
			       due_date = $7, completed_at = $8, updated_at = $9
			WHERE id = $1`,
			t.ID, t.Title, t.Description, t.Status, t.Priority, t.Hours, t.DueDate, t.CompletedAt, now)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		t.UpdatedAt = now
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task the user owns and returns its project id.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) (string, error) {
	var projectID string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM tasks t USING projects p
		WHERE t.project_id = p.id AND t.id = $1 AND p.user_id = $2
		RETURNING t.project_id`, id, userID).Scan(&projectID)
	if err != nil {
		return "", notFound(err, "Task not found")
	}
	return projectID, nil
}
