// Package dashboard aggregates a user's business data into the overview, revenue and activity views.
package dashboard

import (
	"context"
	"time"

	"devpulse/internal/cache"
	"devpulse/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	recentProjectsLimit = 5
	upcomingTasksLimit  = 5
	activityLimit       = 10
)

var (
	// PendingTaskStatuses counts as pending work on the overview.
	PendingTaskStatuses = []models.TaskStatus{models.TaskTodo, models.TaskInProgress}
	// PendingInvoiceStatuses counts as pending invoices on the overview.
	// Pending revenue is broader: every invoice that is neither PAID nor CANCELLED.
	PendingInvoiceStatuses = []models.InvoiceStatus{models.InvoiceDraft, models.InvoiceSent}
)

type ProjectTally struct {
	Clients   int
	Projects  int
	Active    int
	Completed int
}

type TaskTally struct {
	Total     int
	Completed int
	Pending   int
}

type InvoiceTally struct {
	Total          int
	Paid           int
	Pending        int
	Revenue        decimal.Decimal
	PendingRevenue decimal.Decimal
}

type Overview struct {
	TotalClients      int             `json:"totalClients"`
	TotalProjects     int             `json:"totalProjects"`
	ActiveProjects    int             `json:"activeProjects"`
	CompletedProjects int             `json:"completedProjects"`
	TotalTasks        int             `json:"totalTasks"`
	CompletedTasks    int             `json:"completedTasks"`
	PendingTasks      int             `json:"pendingTasks"`
	TotalInvoices     int             `json:"totalInvoices"`
	PaidInvoices      int             `json:"paidInvoices"`
	PendingInvoices   int             `json:"pendingInvoices"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	PendingRevenue    decimal.Decimal `json:"pendingRevenue"`
}

type StatusCount struct {
	Status models.ProjectStatus `json:"status"`
	Count  int                  `json:"count"`
}

type ProjectHours struct {
	ProjectID   string  `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Hours       float64 `json:"hours"`
}

type Charts struct {
	ProjectsByStatus []StatusCount  `json:"projectsByStatus"`
	HoursPerProject  []ProjectHours `json:"hoursPerProject"`
}

type Metrics struct {
	Overview       Overview         `json:"overview"`
	RecentProjects []models.Project `json:"recentProjects"`
	UpcomingTasks  []models.Task    `json:"upcomingTasks"`
	Charts         Charts           `json:"charts"`
}

type PaidInvoice struct {
	PaidDate time.Time
	Total    decimal.Decimal
}

type MonthlyRevenue struct {
	Month     int             `json:"month"`
	MonthName string          `json:"monthName"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Action      string    `json:"action"`
	Title       string    `json:"title"`
	ProjectName string    `json:"projectName"`
	Timestamp   time.Time `json:"timestamp"`
}

// Source is the read side the dashboard is computed from. Every method is
// scoped to userID through the ownership chain.
type Source interface {
	ProjectTally(ctx context.Context, userID string) (ProjectTally, error)
	TaskTally(ctx context.Context, userID string, pending []models.TaskStatus) (TaskTally, error)
	InvoiceTally(ctx context.Context, userID string, pending []models.InvoiceStatus) (InvoiceTally, error)
	RecentProjects(ctx context.Context, userID string, limit int) ([]models.Project, error)
	UpcomingTasks(ctx context.Context, userID string, limit int) ([]models.Task, error)
	ProjectsByStatus(ctx context.Context, userID string) ([]StatusCount, error)
	HoursPerProject(ctx context.Context, userID string) ([]ProjectHours, error)
	PaidInvoices(ctx context.Context, userID string, from, to time.Time) ([]PaidInvoice, error)
	RecentTasks(ctx context.Context, userID string, limit int) ([]models.Task, error)
}

type Service struct {
	src   Source
	cache *cache.Cache
	now   func() time.Time
}

func NewService(src Source, c *cache.Cache) *Service {
	return &Service{src: src, cache: c, now: time.Now}
}

// Metrics builds the overview. The independent queries run concurrently and
// the result is cached per user until the next write invalidates it.
func (s *Service) Metrics(ctx context.Context, userID string) (*Metrics, error) {
	key := cache.DashboardKey(userID)
	var cached Metrics
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	var (
		projects ProjectTally
		tasks    TaskTally
		invoices InvoiceTally
		m        Metrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projects, err = s.src.ProjectTally(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = s.src.TaskTally(gctx, userID, PendingTaskStatuses)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = s.src.InvoiceTally(gctx, userID, PendingInvoiceStatuses)
		return err
	})
	g.Go(func() (err error) {
		m.RecentProjects, err = s.src.RecentProjects(gctx, userID, recentProjectsLimit)
		return err
	})
	g.Go(func() (err error) {
		m.UpcomingTasks, err = s.src.UpcomingTasks(gctx, userID, upcomingTasksLimit)
		return err
	})
	g.Go(func() (err error) {
		m.Charts.ProjectsByStatus, err = s.src.ProjectsByStatus(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		m.Charts.HoursPerProject, err = s.src.HoursPerProject(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.Overview = Overview{
		TotalClients:      projects.Clients,
		TotalProjects:     projects.Projects,
		ActiveProjects:    projects.Active,
		CompletedProjects: projects.Completed,
		TotalTasks:        tasks.Total,
		CompletedTasks:    tasks.Completed,
		PendingTasks:      tasks.Pending,
		TotalInvoices:     invoices.Total,
		PaidInvoices:      invoices.Paid,
		PendingInvoices:   invoices.Pending,
		TotalRevenue:      invoices.Revenue,
		PendingRevenue:    invoices.PendingRevenue,
	}
	m.RecentProjects = nonNil(m.RecentProjects)
	m.UpcomingTasks = nonNil(m.UpcomingTasks)
	m.Charts.ProjectsByStatus = nonNil(m.Charts.ProjectsByStatus)
	m.Charts.HoursPerProject = nonNil(m.Charts.HoursPerProject)

	s.cache.SetJSON(ctx, key, m, cache.DashboardTTL)
	return &m, nil
}

// Invalidate drops the cached overview after a write that can change it.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	s.cache.Delete(ctx, cache.DashboardKey(userID))
}

// Revenue returns the twelve monthly buckets of PAID invoices for year.
// A year of 0 means the current one.
func (s *Service) Revenue(ctx context.Context, userID string, year int) ([]MonthlyRevenue, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	invoices, err := s.src.PaidInvoices(ctx, userID, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	return BucketRevenue(year, invoices), nil
}

func (s *Service) Activity(ctx context.Context, userID string) ([]Activity, error) {
	tasks, err := s.src.RecentTasks(ctx, userID, activityLimit)
	if err != nil {
		return nil, err
	}
	return ActivityFromTasks(tasks), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
