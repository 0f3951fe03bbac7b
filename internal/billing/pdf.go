package billing

import (
	"fmt"
	"io"

	"devpulse/internal/models"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	pageBottom = 700.0
	dateLayout = "02/01/2006"
)

// Filename is the attachment name used for the PDF download.
func Filename(inv *models.InvoiceDetail) string {
	return fmt.Sprintf("factura-%s.pdf", inv.Number)
}

// RenderPDF writes the printable invoice to w.
func RenderPDF(w io.Writer, inv *models.InvoiceDetail) error {
	return newInvoicePDF(inv).Output(w)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(MoneyPlaces)
}

// newInvoicePDF lays the invoice out on a Letter page. Section headings and their
// order match the invoices already printed by the previous system.
func newInvoicePDF(inv *models.InvoiceDetail) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Factura "+inv.Number, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(x, y float64, s string) {
		// Positions are top-left; fpdf places text on its baseline.
		pdf.Text(x, y+10, tr(s))
	}

	// Header
	pdf.SetFont("Helvetica", "", 24)
	pdf.Text(50, 70, "FACTURA")
	pdf.SetFont("Helvetica", "", 12)
	text(400, 50, "Nº: "+inv.Number)
	text(400, 65, "Fecha: "+inv.IssueDate.Format(dateLayout))
	text(400, 80, "Vencimiento: "+inv.DueDate.Format(dateLayout))

	pdf.SetFont("Helvetica", "", 10)
	if inv.Status == models.InvoicePaid {
		pdf.SetTextColor(0, 128, 0)
	} else {
		pdf.SetTextColor(255, 0, 0)
	}
	text(400, 95, string(inv.Status))
	pdf.SetTextColor(0, 0, 0)

	pdf.Line(50, 120, 550, 120)

	// Client
	pdf.SetFont("Helvetica", "", 12)
	text(50, 140, "CLIENTE:")
	pdf.SetFont("Helvetica", "", 10)
	text(50, 155, inv.Client.Name)
	text(50, 170, inv.Client.Email)
	text(50, 185, deref(inv.Client.Company))
	text(50, 200, deref(inv.Client.Address))

	// Project
	if inv.Project != nil {
		pdf.SetFont("Helvetica", "", 12)
		text(300, 140, "PROYECTO:")
		pdf.SetFont("Helvetica", "", 10)
		text(300, 155, inv.Project.Name)
	}

	// Items
	y := 250.0
	pdf.SetFont("Helvetica", "B", 10)
	text(50, y, "Descripción")
	text(300, y, "Cantidad")
	text(380, y, "Precio")
	text(470, y, "Total")
	pdf.Line(50, y+15, 550, y+15)
	y += 25

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		if y > pageBottom {
			pdf.AddPage()
			y = 50
		}
		pdf.SetXY(50, y)
		pdf.MultiCell(240, 12, tr(item.Description), "", "L", false)
		text(300, y, item.Quantity.String())
		text(380, y, money(item.UnitPrice))
		text(470, y, money(item.Total))
		y = max(y+20, pdf.GetY()+8)
	}

	// Totals
	if y > pageBottom-60 {
		pdf.AddPage()
		y = 50
	}
	pdf.Line(350, y+10, 550, y+10)
	y += 25

	text(380, y, "Subtotal:")
	text(470, y, money(inv.Amount))
	y += 20

	if inv.Tax.IsPositive() {
		text(380, y, fmt.Sprintf("IVA (%s%%):", inv.Tax.String()))
		text(470, y, money(inv.TaxAmount))
		y += 20
	}

	pdf.SetFont("Helvetica", "B", 10)
	text(380, y, "TOTAL:")
	text(470, y, money(inv.Total))

	// Notes
	if inv.Notes != nil && *inv.Notes != "" {
		y += 50
		if y > pageBottom {
			pdf.AddPage()
			y = 50
		}
		pdf.SetFont("Helvetica", "", 10)
		text(50, y, "Notas:")
		pdf.SetXY(50, y+15)
		pdf.MultiCell(500, 12, tr(*inv.Notes), "", "L", false)
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(50, 750)
	pdf.CellFormat(512, 10, "Generado con DevPulse", "", 0, "C", false, 0, "")

	return pdf
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
