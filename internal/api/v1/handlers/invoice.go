package handlers

import (
	"bytes"
	"fmt"
	"strconv"

	"devpulse/internal/apperror"
	"devpulse/internal/billing"
	"devpulse/internal/models"
	"devpulse/internal/repository"
	"devpulse/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var maxTax = decimal.NewFromInt(100)

type invoiceItemRequest struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type invoiceRequest struct {
	ClientID  string               `json:"clientId" validate:"required,uuid"`
	ProjectID *string              `json:"projectId" validate:"omitempty,uuid"`
	Items     []invoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	Tax       *decimal.Decimal     `json:"tax"`
	DueDate   *Date                `json:"dueDate" validate:"required"`
	Notes     *string              `json:"notes"`
}

// totals checks the amounts the validator tags cannot express and computes the invoice totals.
// Values must fit the scale of their columns.
func (r invoiceRequest) totals() (billing.Totals, error) {
	var fields []apperror.FieldError
	tax := decimal.Zero
	if r.Tax != nil {
		tax = *r.Tax
	}
	if tax.IsNegative() || tax.GreaterThan(maxTax) {
		fields = append(fields, apperror.FieldError{Field: "tax", Rule: "range", Param: "0-100"})
	} else if !billing.HasScale(tax, billing.TaxPlaces) {
		fields = append(fields, apperror.FieldError{Field: "tax", Rule: "decimals", Param: "2"})
	}

	lines := make([]billing.LineInput, 0, len(r.Items))
	for i, it := range r.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		fields = append(fields, checkAmount(prefix+"quantity", it.Quantity, true)...)
		fields = append(fields, checkAmount(prefix+"unitPrice", it.UnitPrice, false)...)
		lines = append(lines, billing.LineInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	if len(fields) > 0 {
		return billing.Totals{}, apperror.Validation("Validation error", fields...)
	}

	t := billing.ComputeTotals(lines, tax)
	if !t.Fits() {
		return billing.Totals{}, apperror.Validation("Validation error",
			apperror.FieldError{Field: "total", Rule: "lt", Param: billing.MaxMoney.String()})
	}
	return t, nil
}

func checkAmount(field string, d decimal.Decimal, positive bool) []apperror.FieldError {
	switch {
	case positive && !d.IsPositive():
		return []apperror.FieldError{{Field: field, Rule: "gt", Param: "0"}}
	case d.IsNegative():
		return []apperror.FieldError{{Field: field, Rule: "gte", Param: "0"}}
	case d.GreaterThanOrEqual(billing.MaxQuantity):
		return []apperror.FieldError{{Field: field, Rule: "lt", Param: billing.MaxQuantity.String()}}
	case !billing.HasScale(d, billing.QuantityPlaces):
		return []apperror.FieldError{{Field: field, Rule: "decimals", Param: "4"}}
	}
	return nil
}

func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	clientID, err := queryID(c, "clientId")
	if err != nil {
		return err
	}
	invoices, pagination, err := h.Store.ListInvoices(c.UserContext(), userID(c), repository.InvoiceFilter{
		Status:   models.InvoiceStatus(c.Query("status")),
		ClientID: clientID,
		Page:     pageParams(c),
	})
	if err != nil {
		return err
	}
	return ok(c, "Invoices retrieved successfully", fiber.Map{"invoices": invoices, "pagination": pagination})
}

func (h *Handler) GetInvoice(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	invoice, err := h.Store.GetInvoice(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Invoice retrieved successfully", invoice)
}

// CreateInvoice computes every financial field server-side; only item descriptions,
// quantities and unit prices come from the caller.
func (h *Handler) CreateInvoice(c *fiber.Ctx) error {
	var req invoiceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	totals, err := req.totals()
	if err != nil {
		return err
	}

	uid := userID(c)
	invoice, err := h.Store.CreateInvoice(c.UserContext(), uid, repository.InvoiceInput{
		ClientID:  req.ClientID,
		ProjectID: emptyToNil(req.ProjectID),
		Totals:    totals,
		DueDate:   req.DueDate.Time,
		Notes:     emptyToNil(req.Notes),
	})
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Invoice created",
		zap.String("user_id", uid), zap.String("invoice_id", invoice.ID), zap.String("number", invoice.Number))
	return created(c, "Invoice created successfully", invoice)
}

func (h *Handler) UpdateInvoiceStatus(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	type StatusRequest struct {
		Status string `json:"status" validate:"required,oneof=DRAFT SENT PAID OVERDUE CANCELLED"`
	}
	var req StatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	uid := userID(c)
	invoice, err := h.Store.UpdateInvoiceStatus(c.UserContext(), uid, id, models.InvoiceStatus(req.Status))
	if err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Invoice status updated",
		zap.String("user_id", uid), zap.String("invoice_id", id), zap.String("status", req.Status))
	return ok(c, "Invoice status updated successfully", invoice)
}

func (h *Handler) InvoicePDF(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	invoice, err := h.Store.GetInvoice(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := billing.RenderPDF(&buf, invoice); err != nil {
		return apperror.Internal("Error generating PDF", err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", billing.Filename(invoice)))
	return c.Send(buf.Bytes())
}

func (h *Handler) DeleteInvoice(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	uid := userID(c)
	if err := h.Store.DeleteInvoice(c.UserContext(), uid, id); err != nil {
		return err
	}
	h.Dashboard.Invalidate(c.UserContext(), uid)
	logger.AuditLogger.Info("Invoice deleted", zap.String("user_id", uid), zap.String("invoice_id", id))
	return ok(c, "Invoice deleted successfully", nil)
}
