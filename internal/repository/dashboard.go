package repository

import (
	"context"
	"fmt"
	"time"

	"devpulse/internal/dashboard"
	"devpulse/internal/models"

	"github.com/lib/pq"
)

var _ dashboard.Source = (*Store)(nil)

func (s *Store) ProjectTally(ctx context.Context, userID string) (dashboard.ProjectTally, error) {
	var t dashboard.ProjectTally
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM clients WHERE user_id = $1),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3)
		FROM projects WHERE user_id = $1`,
		userID, models.ProjectInProgress, models.ProjectCompleted,
	).Scan(&t.Clients, &t.Projects, &t.Active, &t.Completed)
	if err != nil {
		return t, fmt.Errorf("project tally: %w", err)
	}
	return t, nil
}

func (s *Store) TaskTally(ctx context.Context, userID string, pending []models.TaskStatus) (dashboard.TaskTally, error) {
	var t dashboard.TaskTally
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE t.status = $2),
		       COUNT(*) FILTER (WHERE t.status = ANY($3))
		FROM tasks t JOIN projects p ON p.id = t.project_id
		WHERE p.user_id = $1`,
		userID, models.TaskCompleted, pq.Array(statusStrings(pending)),
	).Scan(&t.Total, &t.Completed, &t.Pending)
	if err != nil {
		return t, fmt.Errorf("task tally: %w", err)
	}
	return t, nil
}

func (s *Store) InvoiceTally(ctx context.Context, userID string, pending []models.InvoiceStatus) (dashboard.InvoiceTally, error) {
	var t dashboard.InvoiceTally
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE i.status = $2),
		       COUNT(*) FILTER (WHERE i.status = ANY($3)),
		       COALESCE(SUM(i.total) FILTER (WHERE i.status = $2), 0),
		       COALESCE(SUM(i.total) FILTER (WHERE i.status NOT IN ($2, $4)), 0)
		FROM invoices i JOIN clients c ON c.id = i.client_id
		WHERE c.user_id = $1`,
		userID, models.InvoicePaid, pq.Array(statusStrings(pending)), models.InvoiceCancelled,
	).Scan(&t.Total, &t.Paid, &t.Pending, &t.Revenue, &t.PendingRevenue)
	if err != nil {
		return t, fmt.Errorf("invoice tally: %w", err)
	}
	return t, nil
}

func (s *Store) RecentProjects(ctx context.Context, userID string, limit int) ([]models.Project, error) {
	return s.queryProjects(ctx, `WHERE p.user_id = $1 ORDER BY p.updated_at DESC LIMIT $2`, userID, limit)
}

// UpcomingTasks returns the soonest-due tasks that are not completed and have a due date.
func (s *Store) UpcomingTasks(ctx context.Context, userID string, limit int) ([]models.Task, error) {
	return s.queryTasks(ctx, `
		WHERE p.user_id = $1 AND t.status <> $2 AND t.due_date IS NOT NULL
		ORDER BY t.due_date ASC LIMIT $3`, userID, models.TaskCompleted, limit)
}

func (s *Store) ProjectsByStatus(ctx context.Context, userID string) ([]dashboard.StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM projects WHERE user_id = $1
		GROUP BY status ORDER BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("projects by status: %w", err)
	}
	defer rows.Close()

	out := []dashboard.StatusCount{}
	for rows.Next() {
		var sc dashboard.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// HoursPerProject sums task hours per project. Projects without tasks are left out.
func (s *Store) HoursPerProject(ctx context.Context, userID string) ([]dashboard.ProjectHours, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, COALESCE(SUM(t.hours), 0)
		FROM tasks t JOIN projects p ON p.id = t.project_id
		WHERE p.user_id = $1
		GROUP BY p.id, p.name
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("hours per project: %w", err)
	}
	defer rows.Close()

	out := []dashboard.ProjectHours{}
	for rows.Next() {
		var ph dashboard.ProjectHours
		if err := rows.Scan(&ph.ProjectID, &ph.ProjectName, &ph.Hours); err != nil {
			return nil, err
		}
		out = append(out, ph)
	}
	return out, rows.Err()
}

// PaidInvoices returns PAID invoices whose paid date falls in [from, to).
func (s *Store) PaidInvoices(ctx context.Context, userID string, from, to time.Time) ([]dashboard.PaidInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.paid_date, i.total
		FROM invoices i JOIN clients c ON c.id = i.client_id
		WHERE c.user_id = $1 AND i.status = $2 AND i.paid_date IS NOT NULL
		  AND i.paid_date >= $3 AND i.paid_date < $4`,
		userID, models.InvoicePaid, from, to)
	if err != nil {
		return nil, fmt.Errorf("paid invoices: %w", err)
	}
	defer rows.Close()

	out := []dashboard.PaidInvoice{}
	for rows.Next() {
		var pi dashboard.PaidInvoice
		if err := rows.Scan(&pi.PaidDate, &pi.Total); err != nil {
			return nil, err
		}
		out = append(out, pi)
	}
	return out, rows.Err()
}

func (s *Store) RecentTasks(ctx context.Context, userID string, limit int) ([]models.Task, error) {
	return s.queryTasks(ctx, `WHERE p.user_id = $1 ORDER BY t.updated_at DESC LIMIT $2`, userID, limit)
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
