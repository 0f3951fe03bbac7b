package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"devpulse/internal/billing"
	"devpulse/internal/models"
)

type InvoiceInput struct {
	ClientID  string
	ProjectID *string
	Totals    billing.Totals
	DueDate   time.Time
	Notes     *string
}

type InvoiceFilter struct {
	Status   models.InvoiceStatus
	ClientID string
	Page
}

const invoiceSelect = `
	SELECT i.id, i.number, i.client_id, i.project_id, i.status, i.amount, i.tax, i.tax_amount, i.total,
	       i.issue_date, i.due_date, i.paid_date, i.notes, i.created_at, i.updated_at,
	       c.name, c.company, pr.name,
	       (SELECT COUNT(*) FROM invoice_items ii WHERE ii.invoice_id = i.id)
	FROM invoices i
	JOIN clients c ON c.id = i.client_id
	LEFT JOIN projects pr ON pr.id = i.project_id
	`

func scanInvoice(row scanner) (*models.Invoice, error) {
	var (
		inv         models.Invoice
		count       models.InvoiceCount
		clientName  string
		company     *string
		projectName sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.ProjectID, &inv.Status,
		&inv.Amount, &inv.Tax, &inv.TaxAmount, &inv.Total,
		&inv.IssueDate, &inv.DueDate, &inv.PaidDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		&clientName, &company, &projectName, &count.Items)
	if err != nil {
		return nil, err
	}
	inv.Client = &models.ClientSummary{ID: inv.ClientID, Name: clientName, Company: company}
	if inv.ProjectID != nil && projectName.Valid {
		inv.Project = &models.ProjectSummary{ID: *inv.ProjectID, Name: projectName.String}
	}
	inv.Count = &count
	return &inv, nil
}

func (s *Store) queryInvoices(ctx context.Context, tail string, args ...any) ([]models.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, invoiceSelect+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *Store) ListInvoices(ctx context.Context, userID string, f InvoiceFilter) ([]models.Invoice, Pagination, error) {
	page := f.Page.normalized()
	where := `WHERE c.user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND i.status = $%d`, len(args))
	}
	if f.ClientID != "" {
		args = append(args, f.ClientID)
		where += fmt.Sprintf(` AND i.client_id = $%d`, len(args))
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices i JOIN clients c ON c.id = i.client_id `+where, args...).Scan(&total)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("count invoices: %w", err)
	}

	args = append(args, page.Limit, page.offset())
	invoices, err := s.queryInvoices(ctx,
		fmt.Sprintf(`%s ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	return invoices, newPagination(page, total), nil
}

func (s *Store) getInvoice(ctx context.Context, q querier, userID, id string, lock bool) (*models.Invoice, error) {
	if lock {
		var locked string
		err := q.QueryRowContext(ctx, `
			SELECT i.id FROM invoices i JOIN clients c ON c.id = i.client_id
			WHERE i.id = $1 AND c.user_id = $2
			FOR UPDATE OF i`, id, userID).Scan(&locked)
		if err != nil {
			return nil, notFound(err, "Invoice not found")
		}
	}
	inv, err := scanInvoice(q.QueryRowContext(ctx, invoiceSelect+`WHERE i.id = $1 AND c.user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "Invoice not found")
	}
	return inv, nil
}

// GetInvoice returns the invoice with its full client, project and items.
func (s *Store) GetInvoice(ctx context.Context, userID, id string) (*models.InvoiceDetail, error) {
	inv, err := s.getInvoice(ctx, s.db, userID, id, false)
	if err != nil {
		return nil, err
	}
	client, err := s.getClient(ctx, s.db, userID, inv.ClientID)
	if err != nil {
		return nil, err
	}
	detail := &models.InvoiceDetail{Invoice: *inv, Client: *client}
	if inv.ProjectID != nil {
		p, err := s.getProject(ctx, s.db, userID, *inv.ProjectID)
		if err == nil {
			detail.Project = p
		}
	}
	detail.Items, err = s.invoiceItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) invoiceItems(ctx context.Context, invoiceID string) ([]models.InvoiceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, total
		FROM invoice_items WHERE invoice_id = $1
		ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	defer rows.Close()

	items := []models.InvoiceItem{}
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// nextInvoiceNumber draws the next number of the month from the counter row.
// The upsert takes a row lock, so concurrent creators serialize on it.
func nextInvoiceNumber(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	period := billing.SequencePeriod(now)
	var seq int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (period, value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET value = invoice_sequences.value + 1
		RETURNING value`, period).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return billing.FormatNumber(period, seq), nil
}

// CreateInvoice stores a DRAFT invoice and its items in one transaction.
func (s *Store) CreateInvoice(ctx context.Context, userID string, in InvoiceInput) (*models.InvoiceDetail, error) {
	var id string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireClient(ctx, tx, userID, in.ClientID); err != nil {
			return err
		}
		if in.ProjectID != nil {
			if err := s.requireProject(ctx, tx, userID, *in.ProjectID); err != nil {
				return err
			}
		}

		now := s.now()
		number, err := nextInvoiceNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		id = newID()
		t := in.Totals
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoices (id, number, client_id, project_id, status, amount, tax, tax_amount, total,
			                      issue_date, due_date, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $10, $10)`,
			id, number, in.ClientID, in.ProjectID, models.InvoiceDraft, t.Amount, t.Tax, t.TaxAmount, t.Total,
			now, in.DueDate, in.Notes)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}

		for pos, it := range t.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, total)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				newID(), id, pos, it.Description, it.Quantity, it.UnitPrice, it.Total)
			if err != nil {
				return fmt.Errorf("insert invoice item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, userID, id)
}

// UpdateInvoiceStatus moves the invoice through the status state machine under a row lock.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, userID, id string, next models.InvoiceStatus) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		inv, err := s.getInvoice(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		previous := inv.Status
		if err := models.TransitionInvoice(inv, next, s.now()); err != nil {
			return err
		}
		if inv.Status != previous {
			_, err = tx.ExecContext(ctx,
				`UPDATE invoices SET status = $2, paid_date = $3, updated_at = $4 WHERE id = $1`,
				inv.ID, inv.Status, inv.PaidDate, inv.UpdatedAt)
			if err != nil {
				return fmt.Errorf("update invoice status: %w", err)
			}
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM invoices i USING clients c
		WHERE i.client_id = c.id AND i.id = $1 AND c.user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return requireAffected(res, "Invoice not found")
}
