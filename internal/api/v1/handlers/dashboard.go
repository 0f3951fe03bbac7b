package handlers

import (
	"strconv"

	"devpulse/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) DashboardMetrics(c *fiber.Ctx) error {
	metrics, err := h.Dashboard.Metrics(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "Dashboard metrics retrieved successfully", metrics)
}

// MonthlyRevenue takes an optional ?year=YYYY, defaulting to the current year.
func (h *Handler) MonthlyRevenue(c *fiber.Ctx) error {
	year := 0
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1970 || y > 9999 {
			return apperror.Validation("Invalid year", apperror.FieldError{Field: "year", Rule: "year"})
		}
		year = y
	}
	revenue, err := h.Dashboard.Revenue(c.UserContext(), userID(c), year)
	if err != nil {
		return err
	}
	return ok(c, "Monthly revenue retrieved successfully", revenue)
}

func (h *Handler) RecentActivity(c *fiber.Ctx) error {
	activity, err := h.Dashboard.Activity(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return ok(c, "Recent activity retrieved successfully", activity)
}
