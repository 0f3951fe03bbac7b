package dashboard

import (
	"devpulse/internal/models"

	"github.com/shopspring/decimal"
)

var monthNames = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// BucketRevenue sums invoice totals by the UTC month of their paid date.
// Invoices paid outside year are ignored and empty months report zero.
func BucketRevenue(year int, invoices []PaidInvoice) []MonthlyRevenue {
	months := make([]MonthlyRevenue, 12)
	for i := range months {
		months[i] = MonthlyRevenue{Month: i + 1, MonthName: monthNames[i], Revenue: decimal.Zero}
	}
	for _, inv := range invoices {
		if inv.PaidDate.IsZero() {
			continue
		}
		paid := inv.PaidDate.UTC()
		if paid.Year() != year {
			continue
		}
		m := &months[paid.Month()-1]
		m.Revenue = m.Revenue.Add(inv.Total)
	}
	return months
}

// ActivityFromTasks renders recently touched tasks as activity entries.
func ActivityFromTasks(tasks []models.Task) []Activity {
	out := make([]Activity, 0, len(tasks))
	for _, t := range tasks {
		action := "updated"
		if t.Status == models.TaskCompleted {
			action = "completed"
		}
		var projectName string
		if t.Project != nil {
			projectName = t.Project.Name
		}
		out = append(out, Activity{
			ID:          t.ID,
			Type:        "task",
			Action:      action,
			Title:       t.Title,
			ProjectName: projectName,
			Timestamp:   t.UpdatedAt,
		})
	}
	return out
}

