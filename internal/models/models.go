package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Avatar         *string   `json:"avatar"`
	GitHubUsername *string   `json:"githubUsername"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type UserCount struct {
	Clients  int `json:"clients"`
	Projects int `json:"projects"`
}

type UserProfile struct {
	User
	Count UserCount `json:"_count"`
}

type Client struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     *string      `json:"phone"`
	Company   *string      `json:"company"`
	Address   *string      `json:"address"`
	Notes     *string      `json:"notes"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Count     *ClientCount `json:"_count,omitempty"`
}

type ClientCount struct {
	Projects int `json:"projects"`
	Invoices int `json:"invoices"`
}

type ClientSummary struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Company *string `json:"company,omitempty"`
}

// ClientDetail is a client with its latest projects and invoices.
type ClientDetail struct {
	Client
	Projects []Project `json:"projects"`
	Invoices []Invoice `json:"invoices"`
}

type Project struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	ClientID    *string             `json:"clientId"`
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Status      ProjectStatus       `json:"status"`
	Budget      decimal.NullDecimal `json:"budget"`
	StartDate   *time.Time          `json:"startDate"`
	EndDate     *time.Time          `json:"endDate"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Client      *ClientSummary      `json:"client,omitempty"`
	Count       *ProjectCount       `json:"_count,omitempty"`
}

type ProjectCount struct {
	Tasks    int `json:"tasks"`
	Invoices int `json:"invoices"`
}

type ProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TaskStats struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	InProgress int     `json:"inProgress"`
	TotalHours float64 `json:"totalHours"`
}

type ProjectDetail struct {
	Project
	Tasks     []Task    `json:"tasks"`
	Invoices  []Invoice `json:"invoices"`
	TaskStats TaskStats `json:"taskStats"`
}

type Task struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Status      TaskStatus      `json:"status"`
	Priority    TaskPriority    `json:"priority"`
	Hours       float64         `json:"hours"`
	DueDate     *time.Time      `json:"dueDate"`
	CompletedAt *time.Time      `json:"completedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Project     *ProjectSummary `json:"project,omitempty"`
}

type Invoice struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	ClientID  string          `json:"clientId"`
	ProjectID *string         `json:"projectId"`
	Status    InvoiceStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Tax       decimal.Decimal `json:"tax"`
	TaxAmount decimal.Decimal `json:"taxAmount"`
	Total     decimal.Decimal `json:"total"`
	IssueDate time.Time       `json:"issueDate"`
	DueDate   time.Time       `json:"dueDate"`
	PaidDate  *time.Time      `json:"paidDate"`
	Notes     *string         `json:"notes"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Client    *ClientSummary  `json:"client,omitempty"`
	Project   *ProjectSummary `json:"project,omitempty"`
	Count     *InvoiceCount   `json:"_count,omitempty"`
}

type InvoiceCount struct {
	Items int `json:"items"`
}

type InvoiceItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceDetail carries everything needed to show or print one invoice.
// Client and Project shadow the summaries embedded in Invoice.
type InvoiceDetail struct {
	Invoice
	Client  Client        `json:"client"`
	Project *Project      `json:"project"`
	Items   []InvoiceItem `json:"items"`
}

type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ContributionSeries is stored as JSONB.
type ContributionSeries []ContributionDay

// Value returns a string so lib/pq sends it as text rather than bytea.
func (s ContributionSeries) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *ContributionSeries) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = ContributionSeries{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported contribution series type")
	}
}

type GitHubStats struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	TotalCommits     int                `json:"totalCommits"`
	TotalRepos       int                `json:"totalRepos"`
	TotalPRs         int                `json:"totalPRs"`
	TotalIssues      int                `json:"totalIssues"`
	ContributionData ContributionSeries `json:"contributionData"`
	LastSyncAt       time.Time          `json:"lastSyncAt"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}
