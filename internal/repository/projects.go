package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/models"

	"github.com/shopspring/decimal"
)

type ProjectInput struct {
	ClientID    *string
	Name        string
	Description *string
	Status      models.ProjectStatus
	Budget      decimal.NullDecimal
	StartDate   *time.Time
	EndDate     *time.Time
}

type ProjectPatch struct {
	ClientID    *string
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	Budget      decimal.NullDecimal
	StartDate   *time.Time
	EndDate     *time.Time
}

type ProjectFilter struct {
	Status   models.ProjectStatus
	ClientID string
	Search   string
	Page
}

const projectSelect = `
	SELECT p.id, p.user_id, p.client_id, p.name, p.description, p.status, p.budget,
	       p.start_date, p.end_date, p.created_at, p.updated_at,
	       c.id, c.name, c.company,
	       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id),
	       (SELECT COUNT(*) FROM invoices i WHERE i.project_id = p.id)
	FROM projects p
	LEFT JOIN clients c ON c.id = p.client_id
	`

func scanProject(row scanner) (*models.Project, error) {
	var (
		p             models.Project
		count         models.ProjectCount
		clientID      sql.NullString
		clientName    sql.NullString
		clientCompany *string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.ClientID, &p.Name, &p.Description, &p.Status, &p.Budget,
		&p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt,
		&clientID, &clientName, &clientCompany, &count.Tasks, &count.Invoices)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		p.Client = &models.ClientSummary{ID: clientID.String, Name: clientName.String, Company: clientCompany}
	}
	p.Count = &count
	return &p, nil
}

// queryProjects runs projectSelect with the given WHERE/ORDER tail.
func (s *Store) queryProjects(ctx context.Context, tail string, args ...any) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (s *Store) ListProjects(ctx context.Context, userID string, f ProjectFilter) ([]models.Project, Pagination, error) {
	page := f.Page.normalized()
	where := `WHERE p.user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND p.status = $%d`, len(args))
	}
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		where += fmt.Sprintf(` AND p.client_id = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, containsPattern(f.Search))
		where += fmt.Sprintf(` AND (p.name ILIKE $%[1]d ESCAPE '\' OR p.description ILIKE $%[1]d ESCAPE '\')`, len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects p `+where, args...).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("count projects: %w", err)
	}

	args = append(args, page.Limit, page.offset())
	projects, err := s.queryProjects(ctx,
		fmt.Sprintf(`%s ORDER BY p.updated_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return projects, newPagination(page, total), nil
}

func (s *Store) getProject(ctx context.Context, q querier, userID, id string) (*models.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, projectSelect+`WHERE p.id = $1 AND p.user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "Project not found")
	}
	return p, nil
}

// GetProject returns the project with its tasks, invoices and task statistics.
func (s *Store) GetProject(ctx context.Context, userID, id string) (*models.ProjectDetail, error) {
	p, err := s.getProject(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	detail := &models.ProjectDetail{Project: *p}

	detail.Tasks, err = s.queryTasks(ctx, `WHERE t.project_id = $1 AND p.user_id = $2 ORDER BY `+taskOrder, id, userID)
	if err != nil {
		return nil, err
	}
	detail.Invoices, err = s.queryInvoices(ctx, `WHERE i.project_id = $1 AND c.user_id = $2 ORDER BY i.created_at DESC`, id, userID)
	if err != nil {
		return nil, err
	}
	detail.TaskStats = ComputeTaskStats(detail.Tasks)
	return detail, nil
}

// ComputeTaskStats summarizes a project's tasks.
func ComputeTaskStats(tasks []models.Task) models.TaskStats {
	stats := models.TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case models.TaskCompleted:
			stats.Completed++
		case models.TaskInProgress:
			stats.InProgress++
		}
		stats.TotalHours += t.Hours
	}
	return stats
}

// ProjectOwned reports whether the project belongs to the user.
func (s *Store) ProjectOwned(ctx context.Context, userID, projectID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND user_id = $2)`, projectID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return ok, nil
}

func (s *Store) requireProject(ctx context.Context, q querier, userID, projectID string) error {
	var ok bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND user_id = $2)`, projectID, userID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !ok {
		return apperror.NotFound("Project not found")
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, userID string, in ProjectInput) (*models.Project, error) {
	if in.Status == "" {
		in.Status = models.ProjectPending
	}
	var project *models.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if in.ClientID != nil {
			if err := s.requireClient(ctx, tx, userID, *in.ClientID); err != nil {
				return err
			}
		}
		id := newID()
		now := s.now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, user_id, client_id, name, description, status, budget, start_date, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			id, userID, in.ClientID, in.Name, in.Description, in.Status, in.Budget, in.StartDate, in.EndDate, now)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		project, err = s.getProject(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Store) UpdateProject(ctx context.Context, userID, id string, p ProjectPatch) (*models.Project, error) {
	var project *models.Project
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if p.ClientID != nil {
			if err := s.requireClient(ctx, tx, userID, *p.ClientID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET
			    client_id = COALESCE($3, client_id),
			    name = COALESCE($4, name),
			    description = COALESCE($5, description),
			    status = COALESCE($6, status),
			    budget = COALESCE($7, budget),
			    start_date = COALESCE($8, start_date),
			    end_date = COALESCE($9, end_date),
			    updated_at = $10
			WHERE id = $1 AND user_id = $2`,
			id, userID, p.ClientID, p.Name, p.Description, p.Status, p.Budget, p.StartDate, p.EndDate, s.now())
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if err := requireAffected(res, "Project not found"); err != nil {
			return err
		}
		project, err = s.getProject(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Store) DeleteProject(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res, "Project not found")
}
