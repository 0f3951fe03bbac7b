package repository

import (
	"context"
	"fmt"

	"devpulse/internal/apperror"
	"devpulse/internal/models"
)

type ClientInput struct {
	Name    string
	Email   string
	Phone   *string
	Company *string
	Address *string
	Notes   *string
}

// ClientPatch holds the fields to change; nil leaves a field as is.
type ClientPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Address *string
	Notes   *string
}

type ClientFilter struct {
	Search string
	Page
}

const clientColumns = `c.id, c.user_id, c.name, c.email, c.phone, c.company, c.address, c.notes, c.created_at, c.updated_at`

func scanClient(row scanner, extra ...any) (*models.Client, error) {
	var c models.Client
	dest := append([]any{&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns one page of the user's clients, newest first, with project and invoice counts.
func (s *Store) ListClients(ctx context.Context, userID string, f ClientFilter) ([]models.Client, Pagination, error) {
	page := f.Page.normalized()
	where := `c.user_id = $1`
	args := []any{userID}
	if f.Search != "" {
		args = append(args, containsPattern(f.Search))
		where += fmt.Sprintf(` AND (c.name ILIKE $%[1]d ESCAPE '\' OR c.email ILIKE $%[1]d ESCAPE '\' OR c.company ILIKE $%[1]d ESCAPE '\')`, len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("count clients: %w", err)
	}

	args = append(args, page.Limit, page.offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+clientColumns+`,
		       (SELECT COUNT(*) FROM projects p WHERE p.client_id = c.id),
		       (SELECT COUNT(*) FROM invoices i WHERE i.client_id = c.id)
		FROM clients c WHERE %s
		ORDER BY c.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var count models.ClientCount
		c, err := scanClient(rows, &count.Projects, &count.Invoices)
		if err != nil {
			return nil, Pagination{}, fmt.Errorf("scan client: %w", err)
		}
		c.Count = &count
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, Pagination{}, err
	}
	return clients, newPagination(page, total), nil
}

func (s *Store) getClient(ctx context.Context, q querier, userID, id string) (*models.Client, error) {
	c, err := scanClient(q.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients c WHERE c.id = $1 AND c.user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "Client not found")
	}
	return c, nil
}

// GetClient returns the client with its five latest projects and invoices.
func (s *Store) GetClient(ctx context.Context, userID, id string) (*models.ClientDetail, error) {
	c, err := s.getClient(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	detail := &models.ClientDetail{Client: *c}

	detail.Projects, err = s.queryProjects(ctx, `WHERE p.client_id = $1 AND p.user_id = $2 ORDER BY p.created_at DESC LIMIT 5`, id, userID)
	if err != nil {
		return nil, err
	}
	detail.Invoices, err = s.queryInvoices(ctx, `WHERE i.client_id = $1 AND c.user_id = $2 ORDER BY i.created_at DESC LIMIT 5`, id, userID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) CreateClient(ctx context.Context, userID string, in ClientInput) (*models.Client, error) {
	now := s.now()
	c, err := scanClient(s.db.QueryRowContext(ctx, `
		INSERT INTO clients AS c (id, user_id, name, email, phone, company, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+clientColumns,
		newID(), userID, in.Name, in.Email, in.Phone, in.Company, in.Address, in.Notes, now))
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, userID, id string, p ClientPatch) (*models.Client, error) {
	c, err := scanClient(s.db.QueryRowContext(ctx, `
		UPDATE clients AS c SET
		    name = COALESCE($3, c.name),
		    email = COALESCE($4, c.email),
		    phone = COALESCE($5, c.phone),
		    company = COALESCE($6, c.company),
		    address = COALESCE($7, c.address),
		    notes = COALESCE($8, c.notes),
		    updated_at = $9
		WHERE c.id = $1 AND c.user_id = $2
		RETURNING `+clientColumns,
		id, userID, p.Name, p.Email, p.Phone, p.Company, p.Address, p.Notes, s.now()))
	if err != nil {
		return nil, notFound(err, "Client not found")
	}
	return c, nil
}

func (s *Store) DeleteClient(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return requireAffected(res, "Client not found")
}

// requireClient fails with NotFound when clientID is not one of the user's clients.
func (s *Store) requireClient(ctx context.Context, q querier, userID, clientID string) error {
	var ok bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND user_id = $2)`, clientID, userID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("check client: %w", err)
	}
	if !ok {
		return apperror.NotFound("Client not found")
	}
	return nil
}
